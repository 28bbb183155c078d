package livekit

// RoomMetadata is attached to a room at creation and read by the AI
// interviewer agent when it joins.
type RoomMetadata struct {
	Candidate CandidateInfo `json:"candidate"`
	Job       JobInfo       `json:"job"`
	Company   CompanyInfo   `json:"company"`
	Interview InterviewInfo `json:"interview"`
}

type CandidateInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type JobInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

type CompanyInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InterviewInfo carries the prompt configuration for the agent.
type InterviewInfo struct {
	ApplicationID      string   `json:"applicationId"`
	RoomCode           string   `json:"roomCode"`
	Language           string   `json:"language"`
	Prompt             string   `json:"prompt"`
	TechnicalQuestions []string `json:"technicalQuestions"`
	MaxDuration        int      `json:"maxDuration"`
}
