package interview

import (
	"fmt"
	"time"
)

// ─── Enums ───────────────────────────────────────────────────────────────────

// Type is the kind of interview being held.
type Type string

const (
	TypeAIScreening Type = "AI_SCREENING"
	TypeTechnical   Type = "TECHNICAL"
	TypeBehavioral  Type = "BEHAVIORAL"
	TypeCulturalFit Type = "CULTURAL_FIT"
	TypeFinal       Type = "FINAL"
)

// ParseType converts a raw string to a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	switch t {
	case TypeAIScreening, TypeTechnical, TypeBehavioral, TypeCulturalFit, TypeFinal:
		return t, nil
	}
	return "", fmt.Errorf("unknown interview type %q", s)
}

// ApplicationStatus mirrors the backend's application_status enum.
type ApplicationStatus string

const (
	ApplicationSubmitted          ApplicationStatus = "SUBMITTED"
	ApplicationReviewing          ApplicationStatus = "REVIEWING"
	ApplicationInterviewScheduled ApplicationStatus = "INTERVIEW_SCHEDULED"
	ApplicationInterviewed        ApplicationStatus = "INTERVIEWED"
	ApplicationOffered            ApplicationStatus = "OFFERED"
	ApplicationHired              ApplicationStatus = "HIRED"
	ApplicationRejected           ApplicationStatus = "REJECTED"
	ApplicationWithdrawn          ApplicationStatus = "WITHDRAWN"
)

// SpeakerType attributes a transcript segment to a participant role.
type SpeakerType string

const (
	SpeakerInterviewer SpeakerType = "INTERVIEWER"
	SpeakerCandidate   SpeakerType = "CANDIDATE"
	SpeakerSystem      SpeakerType = "SYSTEM"
	SpeakerAIAssistant SpeakerType = "AI_ASSISTANT"
)

// ParseSpeakerType converts a raw string to a SpeakerType.
func ParseSpeakerType(s string) (SpeakerType, error) {
	st := SpeakerType(s)
	switch st {
	case SpeakerInterviewer, SpeakerCandidate, SpeakerSystem, SpeakerAIAssistant:
		return st, nil
	}
	return "", fmt.Errorf("unknown speaker type %q", s)
}

// ─── Entities ────────────────────────────────────────────────────────────────

// Company owns job posts.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// JobPost is the posting an interview is held for.
type JobPost struct {
	ID                 string   `json:"id"`
	CompanyID          string   `json:"companyId"`
	CompanyName        string   `json:"companyName"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Skills             []string `json:"skills"`
	InterviewLanguage  string   `json:"interviewLanguage"`
	InterviewPrompt    string   `json:"interviewPrompt"`
	TechnicalQuestions []string `json:"technicalQuestions"`
}

// Candidate is identified by phone number across applications.
type Candidate struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Application links a candidate to a job post.
type Application struct {
	ID          string            `json:"id"`
	JobPostID   string            `json:"jobPostId"`
	CandidateID string            `json:"candidateId"`
	Status      ApplicationStatus `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Interview is the backend record of one interview session.
type Interview struct {
	ID             string     `json:"id"`
	ApplicationID  string     `json:"applicationId"`
	CandidateID    string     `json:"candidateId"`
	JobPostID      string     `json:"jobPostId"`
	CompanyID      string     `json:"companyId"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Type           Type       `json:"type"`
	Status         Status     `json:"status"`
	RoomName       string     `json:"roomName"`
	RoomCode       string     `json:"roomCode"`
	ScheduledAt    *time.Time `json:"scheduledAt"`
	StartedAt      *time.Time `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	Duration       *int       `json:"duration"`
	MaxDuration    int        `json:"maxDuration"`
	CandidatePhone string     `json:"candidatePhone"`
	CandidateName  string     `json:"candidateName"`
	Summary        *string    `json:"summary"`
	Feedback       *string    `json:"feedback"`
	Rating         *int       `json:"rating"`
	Analysis       Analyses   `json:"analysis"`
	RecordingKey   *string    `json:"recordingKey"`
	RecordingURL   *string    `json:"recordingUrl"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Transcript is one timestamped utterance within an interview.
type Transcript struct {
	ID             string      `json:"id"`
	InterviewID    string      `json:"interviewId"`
	SpeakerType    SpeakerType `json:"speakerType"`
	SpeakerName    string      `json:"speakerName"`
	Content        string      `json:"content"`
	StartTime      float64     `json:"startTime"`
	EndTime        float64     `json:"endTime"`
	Duration       float64     `json:"duration"`
	SequenceNumber int         `json:"sequenceNumber"`
	Confidence     *float64    `json:"confidence"`
	Sentiment      *string     `json:"sentiment"`
	Keywords       []string    `json:"keywords"`
	Importance     *int        `json:"importance"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// ─── Store inputs ────────────────────────────────────────────────────────────

// CandidateInput is the upsert payload for a candidate keyed by phone.
// Empty name fields never overwrite stored values.
type CandidateInput struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	Email       string
}

// Patch lists the optional interview columns written by UpdateInterview
// and by transitions. Nil fields are left untouched.
type Patch struct {
	Title        *string
	Description  *string
	Type         *Type
	ScheduledAt  *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Duration     *int
	MaxDuration  *int
	Summary      *string
	Feedback     *string
	Rating       *int
	Analysis     Analyses
	// An empty RecordingKey or RecordingURL clears the column.
	RecordingKey *string
	RecordingURL *string
}

// ListFilter scopes and pages FindAll.
type ListFilter struct {
	CompanyID     string
	Search        string
	Status        Status
	From          *time.Time
	To            *time.Time
	JobPostID     string
	CandidateID   string
	ApplicationID string
	Page          int
	Limit         int
	SortBy        string
	SortOrder     string
}

// Page is a paginated interview listing.
type Page struct {
	Data       []Interview `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

const (
	defaultPageLimit   = 10
	maxPageLimit       = 100
	defaultMaxDuration = 1800
)

var sortColumns = map[string]string{
	"scheduledAt":   "scheduled_at",
	"createdAt":     "created_at",
	"status":        "status",
	"candidateName": "candidate_name",
}

// normalize applies paging defaults and validates sort fields.
func (f *ListFilter) normalize() error {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	if f.SortBy == "" {
		f.SortBy = "createdAt"
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		return validationf("unsupported sortBy %q", f.SortBy)
	}
	switch f.SortOrder {
	case "":
		f.SortOrder = "desc"
	case "asc", "desc":
	default:
		return validationf("sortOrder must be asc or desc")
	}
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return &ValidationError{Msg: err.Error()}
		}
	}
	return nil
}

func newPage(data []Interview, total int, f ListFilter) *Page {
	pages := 0
	if total > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	if data == nil {
		data = []Interview{}
	}
	return &Page{Data: data, Total: total, Page: f.Page, Limit: f.Limit, TotalPages: pages}
}
