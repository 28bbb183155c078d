package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// TranscriptInput is one utterance posted by the agent. SequenceNumber 0
// means "next after the previous one".
type TranscriptInput struct {
	SpeakerType    string   `json:"speakerType"`
	SpeakerName    string   `json:"speakerName"`
	Content        string   `json:"content"`
	StartTime      float64  `json:"startTime"`
	EndTime        float64  `json:"endTime"`
	Duration       *float64 `json:"duration"`
	SequenceNumber int      `json:"sequenceNumber"`
	Confidence     *float64 `json:"confidence"`
	Sentiment      *string  `json:"sentiment"`
	Keywords       []string `json:"keywords"`
	Importance     *int     `json:"importance"`
}

// AddTranscripts appends a batch of transcripts to an interview. Sequence
// numbers must increase strictly within the batch and past the highest
// number already stored; the batch is stored whole or not at all.
func (s *Service) AddTranscripts(ctx context.Context, companyID, interviewID string, in []TranscriptInput) ([]Transcript, error) {
	if len(in) == 0 {
		return nil, validationf("at least one transcript is required")
	}
	iv, err := s.owned(ctx, companyID, interviewID)
	if err != nil {
		return nil, err
	}
	return s.addTranscripts(ctx, iv, in)
}

func (s *Service) addTranscripts(ctx context.Context, iv *Interview, in []TranscriptInput) ([]Transcript, error) {
	last, err := s.store.MaxTranscriptSequence(ctx, iv.ID)
	if err != nil {
		return nil, fmt.Errorf("max transcript sequence: %w", err)
	}

	rows := make([]Transcript, 0, len(in))
	needKeywords := false
	for i, t := range in {
		speaker, err := ParseSpeakerType(t.SpeakerType)
		if err != nil {
			return nil, validationf("transcripts[%d]: %v", i, err)
		}
		content := strings.TrimSpace(t.Content)
		if content == "" {
			return nil, validationf("transcripts[%d]: content is required", i)
		}
		if t.StartTime < 0 || t.EndTime < t.StartTime {
			return nil, validationf("transcripts[%d]: endTime must not precede startTime", i)
		}
		if t.Confidence != nil && (*t.Confidence < 0 || *t.Confidence > 1) {
			return nil, validationf("transcripts[%d]: confidence must be between 0 and 1", i)
		}
		seq := t.SequenceNumber
		if seq == 0 {
			seq = last + 1
		}
		if seq <= last {
			return nil, validationf("transcripts[%d]: sequenceNumber %d must be greater than %d", i, seq, last)
		}
		last = seq

		duration := t.EndTime - t.StartTime
		if t.Duration != nil {
			duration = *t.Duration
		}
		if len(t.Keywords) == 0 {
			needKeywords = true
		}
		rows = append(rows, Transcript{
			InterviewID:    iv.ID,
			SpeakerType:    speaker,
			SpeakerName:    t.SpeakerName,
			Content:        content,
			StartTime:      t.StartTime,
			EndTime:        t.EndTime,
			Duration:       duration,
			SequenceNumber: seq,
			Confidence:     t.Confidence,
			Sentiment:      t.Sentiment,
			Keywords:       t.Keywords,
			Importance:     t.Importance,
		})
	}

	if needKeywords {
		s.fillKeywords(ctx, iv.JobPostID, rows)
	}

	stored, err := s.store.InsertTranscripts(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("insert transcripts for %s: %w", iv.ID, err)
	}
	return stored, nil
}

// fillKeywords tags keyword-less transcripts with the job skills they
// mention.
func (s *Service) fillKeywords(ctx context.Context, jobPostID string, rows []Transcript) {
	job, err := s.store.GetJobPost(ctx, jobPostID)
	if err != nil {
		slog.Warn("load job skills for keywords failed", "jobPostId", jobPostID, "err", err)
		return
	}
	for i := range rows {
		if len(rows[i].Keywords) == 0 {
			rows[i].Keywords = MatchKeywords(rows[i].Content, job.Skills)
		}
	}
}

// GetTranscriptsByInterview returns an interview's transcripts ordered by
// sequence number.
func (s *Service) GetTranscriptsByInterview(ctx context.Context, companyID, interviewID string) ([]Transcript, error) {
	if _, err := s.owned(ctx, companyID, interviewID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListTranscripts(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("list transcripts for %s: %w", interviewID, err)
	}
	return rows, nil
}
