package interview

import (
	"encoding/json"
	"fmt"
)

// AnalysisKind tags one analysis result variant.
type AnalysisKind string

const (
	KindSkillsMatch     AnalysisKind = "SKILLS_MATCH"
	KindExperienceMatch AnalysisKind = "EXPERIENCE_MATCH"
	KindEducationMatch  AnalysisKind = "EDUCATION_MATCH"
)

// Analysis is one typed result produced by the AI agent for an interview.
type Analysis interface {
	Kind() AnalysisKind
}

// SkillsMatch compares the job post's skills with what the candidate showed.
type SkillsMatch struct {
	Score   float64  `json:"score"`
	Matched []string `json:"matched"`
	Missing []string `json:"missing"`
}

// ExperienceMatch compares required and demonstrated years of experience.
type ExperienceMatch struct {
	Score          float64 `json:"score"`
	RequiredYears  float64 `json:"requiredYears"`
	CandidateYears float64 `json:"candidateYears"`
	Notes          string  `json:"notes,omitempty"`
}

// EducationMatch compares required and declared education.
type EducationMatch struct {
	Score     float64 `json:"score"`
	Required  string  `json:"required"`
	Candidate string  `json:"candidate"`
	Meets     bool    `json:"meets"`
}

func (SkillsMatch) Kind() AnalysisKind     { return KindSkillsMatch }
func (ExperienceMatch) Kind() AnalysisKind { return KindExperienceMatch }
func (EducationMatch) Kind() AnalysisKind  { return KindEducationMatch }

// Analyses serialises as [{"kind": ..., "data": {...}}, ...].
type Analyses []Analysis

type analysisEnvelope struct {
	Kind AnalysisKind    `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (a Analyses) MarshalJSON() ([]byte, error) {
	out := make([]analysisEnvelope, 0, len(a))
	for _, item := range a {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", item.Kind(), err)
		}
		out = append(out, analysisEnvelope{Kind: item.Kind(), Data: data})
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Unknown kinds are rejected.
func (a *Analyses) UnmarshalJSON(b []byte) error {
	var envs []analysisEnvelope
	if err := json.Unmarshal(b, &envs); err != nil {
		return err
	}
	out := make(Analyses, 0, len(envs))
	for _, env := range envs {
		var (
			item Analysis
			err  error
		)
		switch env.Kind {
		case KindSkillsMatch:
			var v SkillsMatch
			err = json.Unmarshal(env.Data, &v)
			item = v
		case KindExperienceMatch:
			var v ExperienceMatch
			err = json.Unmarshal(env.Data, &v)
			item = v
		case KindEducationMatch:
			var v EducationMatch
			err = json.Unmarshal(env.Data, &v)
			item = v
		default:
			return fmt.Errorf("unknown analysis kind %q", env.Kind)
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", env.Kind, err)
		}
		out = append(out, item)
	}
	*a = out
	return nil
}
