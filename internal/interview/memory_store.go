package interview

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the interview domain in-process. It is used when
// STORE=memory and by tests; data is lost on restart.
type MemoryStore struct {
	mu           sync.RWMutex
	companies    map[string]Company
	jobs         map[string]JobPost
	candidates   map[string]Candidate
	phones       map[string]string // phone -> candidate ID
	applications map[string]Application
	appKeys      map[[2]string]string // (job post, candidate) -> application ID
	interviews   map[string]Interview
	rooms        map[string]string // room name -> interview ID
	transcripts  map[string][]Transcript
	now          func() time.Time
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies:    make(map[string]Company),
		jobs:         make(map[string]JobPost),
		candidates:   make(map[string]Candidate),
		phones:       make(map[string]string),
		applications: make(map[string]Application),
		appKeys:      make(map[[2]string]string),
		interviews:   make(map[string]Interview),
		rooms:        make(map[string]string),
		transcripts:  make(map[string][]Transcript),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for createdAt/updatedAt stamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SaveCompany stores or replaces a company. Companies and job posts are
// owned by other services; these seeders exist for local runs and tests.
func (m *MemoryStore) SaveCompany(c Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
}

// SaveJobPost stores or replaces a job post.
func (m *MemoryStore) SaveJobPost(j JobPost) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
}

// CandidateCount returns the number of stored candidates.
func (m *MemoryStore) CandidateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.candidates)
}

func (m *MemoryStore) GetJobPost(_ context.Context, id string) (*JobPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c, ok := m.companies[j.CompanyID]; ok {
		j.CompanyName = c.Name
	}
	return &j, nil
}

func (m *MemoryStore) UpsertCandidate(_ context.Context, in CandidateInput) (*Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if id, ok := m.phones[in.PhoneNumber]; ok {
		c := m.candidates[id]
		if in.FirstName != "" {
			c.FirstName = in.FirstName
		}
		if in.LastName != "" {
			c.LastName = in.LastName
		}
		if in.Email != "" {
			c.Email = in.Email
		}
		c.Name = fullName(c.FirstName, c.LastName)
		c.UpdatedAt = now
		m.candidates[id] = c
		return &c, nil
	}
	c := Candidate{
		ID:          uuid.NewString(),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Name:        fullName(in.FirstName, in.LastName),
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.candidates[c.ID] = c
	m.phones[c.PhoneNumber] = c.ID
	return &c, nil
}

func (m *MemoryStore) GetCandidate(_ context.Context, id string) (*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) EnsureApplication(_ context.Context, jobPostID, candidateID string, status ApplicationStatus) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{jobPostID, candidateID}
	if id, ok := m.appKeys[key]; ok {
		a := m.applications[id]
		return &a, nil
	}
	now := m.now()
	a := Application{
		ID:          uuid.NewString(),
		JobPostID:   jobPostID,
		CandidateID: candidateID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.applications[a.ID] = a
	m.appKeys[key] = a.ID
	return &a, nil
}

func (m *MemoryStore) GetApplication(_ context.Context, id string) (*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryStore) SetApplicationStatus(_ context.Context, id string, to ApplicationStatus, from ...ApplicationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return ErrNotFound
	}
	if len(from) > 0 && !slices.Contains(from, a.Status) {
		return nil
	}
	a.Status = to
	a.UpdatedAt = m.now()
	m.applications[id] = a
	return nil
}

func (m *MemoryStore) CreateInterview(_ context.Context, iv *Interview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.rooms[iv.RoomName]; taken {
		return ErrConflict
	}
	now := m.now()
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	iv.CreatedAt, iv.UpdatedAt, iv.Version = now, now, 1
	m.interviews[iv.ID] = *iv
	m.rooms[iv.RoomName] = iv.ID
	return nil
}

func (m *MemoryStore) GetInterview(_ context.Context, id string) (*Interview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	iv, ok := m.interviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &iv, nil
}

func (m *MemoryStore) GetInterviewByRoom(_ context.Context, roomName string) (*Interview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.rooms[roomName]
	if !ok {
		return nil, ErrNotFound
	}
	iv := m.interviews[id]
	return &iv, nil
}

func (m *MemoryStore) ListInterviews(_ context.Context, f ListFilter) ([]Interview, int, error) {
	m.mu.RLock()
	matched := make([]Interview, 0)
	search := strings.ToLower(f.Search)
	for _, iv := range m.interviews {
		if f.CompanyID != "" && iv.CompanyID != f.CompanyID {
			continue
		}
		if f.Status != "" && iv.Status != f.Status {
			continue
		}
		if f.JobPostID != "" && iv.JobPostID != f.JobPostID {
			continue
		}
		if f.CandidateID != "" && iv.CandidateID != f.CandidateID {
			continue
		}
		if f.ApplicationID != "" && iv.ApplicationID != f.ApplicationID {
			continue
		}
		if f.From != nil && (iv.ScheduledAt == nil || iv.ScheduledAt.Before(*f.From)) {
			continue
		}
		if f.To != nil && (iv.ScheduledAt == nil || iv.ScheduledAt.After(*f.To)) {
			continue
		}
		if search != "" && !containsAny(search, iv.Title, iv.CandidateName, iv.CandidatePhone, iv.RoomCode) {
			continue
		}
		matched = append(matched, iv)
	}
	m.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b Interview) int {
		c := compareBy(f.SortBy, a, b)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if f.SortOrder == "desc" {
			return -c
		}
		return c
	})

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func compareBy(field string, a, b Interview) int {
	switch field {
	case "scheduledAt":
		return compareTimePtr(a.ScheduledAt, b.ScheduledAt)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "candidateName":
		return strings.Compare(a.CandidateName, b.CandidateName)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

func (m *MemoryStore) UpdateInterview(_ context.Context, id string, p Patch) (*Interview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.apply(&iv, p)
	m.interviews[id] = iv
	return &iv, nil
}

func (m *MemoryStore) TransitionInterview(_ context.Context, id string, from, to Status, p Patch) (*Interview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	if iv.Status != from {
		return nil, nil
	}
	iv.Status = to
	m.apply(&iv, p)
	m.interviews[id] = iv
	return &iv, nil
}

func (m *MemoryStore) apply(iv *Interview, p Patch) {
	if p.Title != nil {
		iv.Title = *p.Title
	}
	if p.Description != nil {
		iv.Description = *p.Description
	}
	if p.Type != nil {
		iv.Type = *p.Type
	}
	if p.ScheduledAt != nil {
		iv.ScheduledAt = p.ScheduledAt
	}
	if p.StartedAt != nil {
		iv.StartedAt = p.StartedAt
	}
	if p.CompletedAt != nil {
		iv.CompletedAt = p.CompletedAt
	}
	if p.Duration != nil {
		iv.Duration = p.Duration
	}
	if p.MaxDuration != nil {
		iv.MaxDuration = *p.MaxDuration
	}
	if p.Summary != nil {
		iv.Summary = p.Summary
	}
	if p.Feedback != nil {
		iv.Feedback = p.Feedback
	}
	if p.Rating != nil {
		iv.Rating = p.Rating
	}
	if p.Analysis != nil {
		iv.Analysis = p.Analysis
	}
	if p.RecordingKey != nil {
		iv.RecordingKey = nilIfEmpty(p.RecordingKey)
	}
	if p.RecordingURL != nil {
		iv.RecordingURL = nilIfEmpty(p.RecordingURL)
	}
	iv.Version++
	iv.UpdatedAt = m.now()
}

func nilIfEmpty(s *string) *string {
	if *s == "" {
		return nil
	}
	return s
}

func (m *MemoryStore) DeleteInterview(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interviews[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.interviews, id)
	delete(m.rooms, iv.RoomName)
	delete(m.transcripts, id)
	return nil
}

func (m *MemoryStore) ListOverdueInterviews(_ context.Context, now time.Time) ([]Interview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Interview
	for _, iv := range m.interviews {
		if iv.Status != StatusInProgress || iv.StartedAt == nil || iv.MaxDuration <= 0 {
			continue
		}
		if iv.StartedAt.Add(time.Duration(iv.MaxDuration) * time.Second).Before(now) {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertTranscripts(_ context.Context, rows []Transcript) ([]Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[[2]any]struct{}, len(rows))
	for _, r := range rows {
		if _, ok := m.interviews[r.InterviewID]; !ok {
			return nil, ErrNotFound
		}
		key := [2]any{r.InterviewID, r.SequenceNumber}
		if _, dup := seen[key]; dup {
			return nil, ErrConflict
		}
		seen[key] = struct{}{}
		for _, t := range m.transcripts[r.InterviewID] {
			if t.SequenceNumber == r.SequenceNumber {
				return nil, ErrConflict
			}
		}
	}
	now := m.now()
	out := make([]Transcript, 0, len(rows))
	for _, r := range rows {
		r.ID = uuid.NewString()
		r.CreatedAt = now
		m.transcripts[r.InterviewID] = append(m.transcripts[r.InterviewID], r)
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) ListTranscripts(_ context.Context, interviewID string) ([]Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.transcripts[interviewID])
	slices.SortStableFunc(out, func(a, b Transcript) int { return a.SequenceNumber - b.SequenceNumber })
	if out == nil {
		out = []Transcript{}
	}
	return out, nil
}

func (m *MemoryStore) MaxTranscriptSequence(_ context.Context, interviewID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	maxSeq := 0
	for _, t := range m.transcripts[interviewID] {
		maxSeq = max(maxSeq, t.SequenceNumber)
	}
	return maxSeq, nil
}
