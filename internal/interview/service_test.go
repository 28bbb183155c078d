package interview_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"rolevate/interview-service/internal/events"
	"rolevate/interview-service/internal/interview"
	"rolevate/interview-service/internal/livekit"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

type fakeRooms struct {
	mu      sync.Mutex
	created []livekit.CreateRoomRequest
	deleted []string
	err     error
}

func (f *fakeRooms) CreateRoom(_ context.Context, req livekit.CreateRoomRequest) (*livekit.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &livekit.Room{SID: "RM_" + req.Name, Name: req.Name}, nil
}

func (f *fakeRooms) DeleteRoom(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) JoinToken(identity, _, room, _ string) (string, time.Time, error) {
	return "token:" + identity + "@" + room, time.Unix(0, 0).Add(2 * time.Hour), nil
}

type recordedEvents struct {
	mu  sync.Mutex
	evs []events.StatusChanged
}

func (r *recordedEvents) PublishStatus(_ context.Context, ev events.StatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return nil
}

func (r *recordedEvents) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.evs))
	for _, ev := range r.evs {
		out = append(out, ev.To)
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *interview.Service
	store  *interview.MemoryStore
	rooms  *fakeRooms
	events *recordedEvents
	clock  *clock
}

const (
	companyA = "company-a"
	companyB = "company-b"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  interview.NewMemoryStore(),
		rooms:  &fakeRooms{},
		events: &recordedEvents{},
		clock:  &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.store.SetClock(f.clock.Now)
	f.store.SaveCompany(interview.Company{ID: companyA, Name: "Acme"})
	f.store.SaveCompany(interview.Company{ID: companyB, Name: "Globex"})
	f.store.SaveJobPost(interview.JobPost{
		ID:                "J1",
		CompanyID:         companyA,
		Title:             "Backend Engineer",
		Skills:            []string{"Go", "PostgreSQL", "Kubernetes"},
		InterviewLanguage: "en",
	})
	f.svc = f.newService(f.store)
	return f
}

func (f *fixture) newService(store interview.Store) *interview.Service {
	return interview.NewService(interview.Config{
		Store:      store,
		Rooms:      f.rooms,
		Tokens:     fakeTokens{},
		Events:     f.events,
		LiveKitURL: "wss://livekit.test",
		Now:        f.clock.Now,
	})
}

// scheduled creates a SCHEDULED interview for a fresh candidate on J1.
func (f *fixture) scheduled(t *testing.T, phone string) *interview.Interview {
	t.Helper()
	ctx := context.Background()
	cand, err := f.store.UpsertCandidate(ctx, interview.CandidateInput{PhoneNumber: phone, FirstName: "Sam", LastName: "Lee"})
	if err != nil {
		t.Fatalf("upsert candidate: %v", err)
	}
	at := f.clock.Now().Add(24 * time.Hour)
	iv, err := f.svc.ScheduleInterview(ctx, companyA, interview.ScheduleInput{
		JobPostID:   "J1",
		CandidateID: cand.ID,
		ScheduledAt: &at,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return iv
}

// ─── Session creation ────────────────────────────────────────────────────────

func TestCreateInterviewSession_NewCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.CreateInterviewSession(ctx, interview.SessionInput{
		JobPostID:   "J1",
		PhoneNumber: "+15551234567",
		FirstName:   "Jane",
		LastName:    "Doe",
	})
	if err != nil {
		t.Fatalf("CreateInterviewSession: %v", err)
	}

	if sess.Status != interview.SessionReady {
		t.Errorf("status = %q, want %q", sess.Status, interview.SessionReady)
	}
	if !strings.HasPrefix(sess.RoomName, "interview_") {
		t.Errorf("roomName = %q, want interview_ prefix", sess.RoomName)
	}
	if !strings.HasPrefix(sess.RoomCode, "4567") || len(sess.RoomCode) != 10 {
		t.Errorf("roomCode = %q, want 4567 + 6 digits", sess.RoomCode)
	}
	if sess.ServerURL != "wss://livekit.test" || sess.Token == "" {
		t.Errorf("unexpected connection info: %+v", sess)
	}
	if sess.ParticipantName != "Jane Doe" {
		t.Errorf("participantName = %q", sess.ParticipantName)
	}

	cand, err := f.store.GetCandidate(ctx, sess.CandidateID)
	if err != nil {
		t.Fatalf("GetCandidate: %v", err)
	}
	if cand.Name != "Jane Doe" {
		t.Errorf("candidate name = %q, want Jane Doe", cand.Name)
	}

	app, err := f.store.GetApplication(ctx, sess.ApplicationID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if app.Status != interview.ApplicationInterviewScheduled {
		t.Errorf("application status = %s, want INTERVIEW_SCHEDULED", app.Status)
	}

	iv, err := f.svc.GetInterviewByRoomID(ctx, sess.RoomName)
	if err != nil {
		t.Fatalf("GetInterviewByRoomID: %v", err)
	}
	if iv.ID != sess.InterviewID || iv.RoomName != sess.RoomName || iv.RoomCode != sess.RoomCode {
		t.Errorf("room round trip mismatch: %+v vs %+v", iv, sess)
	}
	if iv.Status != interview.StatusInProgress || iv.StartedAt == nil {
		t.Errorf("interview status = %s startedAt = %v, want IN_PROGRESS with startedAt", iv.Status, iv.StartedAt)
	}
	if iv.CompanyID != companyA || iv.Type != interview.TypeAIScreening {
		t.Errorf("unexpected interview: %+v", iv)
	}

	if len(f.rooms.created) != 1 {
		t.Fatalf("expected 1 room created, got %d", len(f.rooms.created))
	}
	room := f.rooms.created[0]
	if room.Name != sess.RoomName || room.MaxParticipants != 2 || room.EmptyTimeout != 1800 {
		t.Errorf("unexpected room request: %+v", room)
	}
	if !strings.Contains(room.Metadata, `"title":"Backend Engineer"`) || !strings.Contains(room.Metadata, `"name":"Acme"`) {
		t.Errorf("room metadata missing job/company: %s", room.Metadata)
	}
	if got := f.events.statuses(); len(got) != 1 || got[0] != "IN_PROGRESS" {
		t.Errorf("events = %v, want [IN_PROGRESS]", got)
	}
}

func TestCreateInterviewSession_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   interview.SessionInput
	}{
		{"missing job", interview.SessionInput{PhoneNumber: "+15551234567"}},
		{"missing phone", interview.SessionInput{JobPostID: "J1"}},
		{"short phone", interview.SessionInput{JobPostID: "J1", PhoneNumber: "12-34"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateInterviewSession(context.Background(), tt.in)
			var verr *interview.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
	if len(f.rooms.created) != 0 {
		t.Errorf("no room should be created on validation failure")
	}
}

func TestCreateInterviewSession_UnknownJobPost(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateInterviewSession(context.Background(), interview.SessionInput{
		JobPostID:   "missing",
		PhoneNumber: "+15551234567",
	})
	if !errors.Is(err, interview.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.store.CandidateCount() != 0 {
		t.Errorf("candidate created for unknown job post")
	}
}

func TestCreateInterviewSession_SamePhoneConcurrently(t *testing.T) {
	f := newFixture(t)
	const n = 8

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateInterviewSession(context.Background(), interview.SessionInput{
				JobPostID:   "J1",
				PhoneNumber: "+15550001111",
				FirstName:   "Ana",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("CreateInterviewSession: %v", err)
		}
	}
	if got := f.store.CandidateCount(); got != 1 {
		t.Errorf("candidates = %d, want 1 per phone number", got)
	}
}

func TestCreateInterviewSession_SecondCallEnrichesName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.svc.CreateInterviewSession(ctx, interview.SessionInput{JobPostID: "J1", PhoneNumber: "+15550002222"})
	if err != nil {
		t.Fatalf("first session: %v", err)
	}
	second, err := f.svc.CreateInterviewSession(ctx, interview.SessionInput{
		JobPostID: "J1", PhoneNumber: "+15550002222", FirstName: "Omar", LastName: "Haddad",
	})
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if first.CandidateID != second.CandidateID || first.ApplicationID != second.ApplicationID {
		t.Errorf("expected same candidate and application across sessions")
	}
	if first.RoomName == second.RoomName {
		t.Errorf("expected distinct room names, got %q twice", first.RoomName)
	}
	cand, _ := f.store.GetCandidate(ctx, second.CandidateID)
	if cand.Name != "Omar Haddad" {
		t.Errorf("candidate name = %q, want Omar Haddad", cand.Name)
	}
}

type failingCreateStore struct {
	*interview.MemoryStore
}

func (failingCreateStore) CreateInterview(context.Context, *interview.Interview) error {
	return errors.New("disk full")
}

func TestCreateInterviewSession_NoRoomWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	svc := f.newService(failingCreateStore{f.store})

	_, err := svc.CreateInterviewSession(context.Background(), interview.SessionInput{
		JobPostID:   "J1",
		PhoneNumber: "+15551234567",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.rooms.created) != 0 || len(f.rooms.deleted) != 0 {
		t.Errorf("no room should be touched, created=%v deleted=%v", f.rooms.created, f.rooms.deleted)
	}
}

// barrierRooms holds every CreateRoom caller until n of them have arrived.
type barrierRooms struct {
	*fakeRooms
	arrived sync.WaitGroup
}

func newBarrierRooms(n int) *barrierRooms {
	b := &barrierRooms{fakeRooms: &fakeRooms{}}
	b.arrived.Add(n)
	return b
}

func (b *barrierRooms) CreateRoom(ctx context.Context, req livekit.CreateRoomRequest) (*livekit.Room, error) {
	b.arrived.Done()
	b.arrived.Wait()
	return b.fakeRooms.CreateRoom(ctx, req)
}

func (f *fixture) serviceFrozenAt(at time.Time, rooms interview.RoomProvisioner) *interview.Service {
	return interview.NewService(interview.Config{
		Store:      f.store,
		Rooms:      rooms,
		Tokens:     fakeTokens{},
		Events:     f.events,
		LiveKitURL: "wss://livekit.test",
		Now:        func() time.Time { return at },
	})
}

func TestCreateInterviewSession_SameMillisecondGetsDistinctRooms(t *testing.T) {
	f := newFixture(t)
	rooms := newBarrierRooms(2)
	svc := f.serviceFrozenAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), rooms)

	var wg sync.WaitGroup
	sessions := make([]*interview.Session, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions[i], errs[i] = svc.CreateInterviewSession(context.Background(), interview.SessionInput{
				JobPostID:   "J1",
				PhoneNumber: "+15550001212",
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("session %d: %v", i, err)
		}
	}
	if sessions[0].RoomName == sessions[1].RoomName {
		t.Fatalf("both sessions got room %q", sessions[0].RoomName)
	}
	if len(rooms.created) != 2 || len(rooms.deleted) != 0 {
		t.Errorf("created=%v deleted=%v, want 2 rooms and no deletions", rooms.created, rooms.deleted)
	}
	for _, sess := range sessions {
		iv, err := f.svc.GetInterviewByRoomID(context.Background(), sess.RoomName)
		if err != nil || iv.ID != sess.InterviewID {
			t.Errorf("room %s -> %+v, %v", sess.RoomName, iv, err)
		}
	}
}

func TestCreateInterviewSession_RoomNameAttemptsExhausted(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := f.serviceFrozenAt(at, f.rooms)
	ctx := context.Background()
	in := interview.SessionInput{JobPostID: "J1", PhoneNumber: "+15550001313"}

	seen := map[string]bool{}
	for i := range 3 {
		sess, err := svc.CreateInterviewSession(ctx, in)
		if err != nil {
			t.Fatalf("session %d: %v", i, err)
		}
		want := interview.RoomName(sess.CandidateID, at.Add(time.Duration(i)*time.Millisecond))
		if sess.RoomName != want || seen[sess.RoomName] {
			t.Errorf("session %d room = %q, want %q", i, sess.RoomName, want)
		}
		seen[sess.RoomName] = true
	}

	if _, err := svc.CreateInterviewSession(ctx, in); !errors.Is(err, interview.ErrConflict) {
		t.Fatalf("fourth session err = %v, want ErrConflict", err)
	}
	if len(f.rooms.created) != 3 || len(f.rooms.deleted) != 0 {
		t.Errorf("created=%d deleted=%v", len(f.rooms.created), f.rooms.deleted)
	}
}

func TestCreateInterviewSession_RoomProviderError(t *testing.T) {
	f := newFixture(t)
	f.rooms.err = errors.New("livekit down")
	_, err := f.svc.CreateInterviewSession(context.Background(), interview.SessionInput{
		JobPostID:   "J1",
		PhoneNumber: "+15551234567",
	})
	if err == nil || !strings.Contains(err.Error(), "livekit down") {
		t.Fatalf("expected room error, got %v", err)
	}
	page, _ := f.svc.FindAll(context.Background(), interview.AgentScope, interview.ListFilter{})
	if page.Total != 0 {
		t.Errorf("no interview should exist, got %d", page.Total)
	}
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

func TestCompleteAndCancelRace_ExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for round := range 50 {
		iv := f.scheduled(t, fmt.Sprintf("+1555100%04d", round))
		if _, err := f.svc.StartInterview(ctx, companyA, iv.ID); err != nil {
			t.Fatalf("start: %v", err)
		}

		var (
			wg        sync.WaitGroup
			completed error
			cancelled error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, completed = f.svc.CompleteInterview(ctx, companyA, iv.ID, interview.CompleteInput{})
		}()
		go func() {
			defer wg.Done()
			_, cancelled = f.svc.CancelInterview(ctx, companyA, iv.ID, "no show")
		}()
		wg.Wait()

		if (completed == nil) == (cancelled == nil) {
			t.Fatalf("round %d: complete=%v cancel=%v, want exactly one success", round, completed, cancelled)
		}
		loser := completed
		if loser == nil {
			loser = cancelled
		}
		var terr *interview.TransitionError
		if !errors.As(loser, &terr) {
			t.Fatalf("round %d: losing call err = %v, want *TransitionError", round, loser)
		}

		got, err := f.svc.FindOne(ctx, companyA, iv.ID)
		if err != nil {
			t.Fatalf("FindOne: %v", err)
		}
		want := interview.StatusCompleted
		if completed != nil {
			want = interview.StatusCancelled
		}
		if got.Status != want {
			t.Errorf("round %d: status = %s, want %s", round, got.Status, want)
		}
	}
}

func TestStartInterview_FromScheduled(t *testing.T) {
	f := newFixture(t)
	iv := f.scheduled(t, "+15550003333")

	started, err := f.svc.StartInterview(context.Background(), companyA, iv.ID)
	if err != nil {
		t.Fatalf("StartInterview: %v", err)
	}
	if started.Status != interview.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", started.Status)
	}
	if started.StartedAt == nil || started.StartedAt.Before(iv.CreatedAt) {
		t.Errorf("startedAt = %v, want >= %v", started.StartedAt, iv.CreatedAt)
	}
}

func TestStartInterview_RejectedLeavesStartedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550004444")
	started, err := f.svc.StartInterview(ctx, companyA, iv.ID)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	_, err = f.svc.StartInterview(ctx, companyA, iv.ID)
	if !errors.Is(err, interview.ErrForbidden) {
		t.Fatalf("expected Forbidden-class error, got %v", err)
	}
	var terr *interview.TransitionError
	if !errors.As(err, &terr) || terr.From != interview.StatusInProgress {
		t.Errorf("expected TransitionError from IN_PROGRESS, got %v", err)
	}
	after, _ := f.svc.FindOne(ctx, companyA, iv.ID)
	if !after.StartedAt.Equal(*started.StartedAt) || after.Version != started.Version {
		t.Errorf("rejected start mutated the row: before %+v after %+v", started, after)
	}
}

func TestCompleteInterview_RequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550005555")

	_, err := f.svc.CompleteInterview(ctx, companyA, iv.ID, interview.CompleteInput{})
	if !errors.Is(err, interview.ErrForbidden) {
		t.Fatalf("expected Forbidden-class error, got %v", err)
	}
	after, _ := f.svc.FindOne(ctx, companyA, iv.ID)
	if after.CompletedAt != nil || after.Status != interview.StatusScheduled {
		t.Errorf("rejected complete mutated the row: %+v", after)
	}
}

func TestCompleteInterview_PersistsOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550006666")
	if _, err := f.svc.StartInterview(ctx, companyA, iv.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(90 * time.Second)

	rating := 4
	feedback := "strong systems knowledge"
	done, err := f.svc.CompleteInterview(ctx, companyA, iv.ID, interview.CompleteInput{
		Feedback: &feedback,
		Rating:   &rating,
		Analysis: interview.Analyses{interview.SkillsMatch{Score: 0.9, Matched: []string{"Go"}}},
	})
	if err != nil {
		t.Fatalf("CompleteInterview: %v", err)
	}
	if done.Status != interview.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("unexpected completed interview: %+v", done)
	}
	if done.Feedback == nil || *done.Feedback != feedback || done.Rating == nil || *done.Rating != 4 {
		t.Errorf("feedback/rating not persisted: %+v", done)
	}
	if done.Duration == nil || *done.Duration < 90 {
		t.Errorf("duration = %v, want >= 90s", done.Duration)
	}
	if len(done.Analysis) != 1 || done.Analysis[0].Kind() != interview.KindSkillsMatch {
		t.Errorf("analysis not stored: %+v", done.Analysis)
	}
	app, _ := f.store.GetApplication(ctx, iv.ApplicationID)
	if app.Status != interview.ApplicationInterviewed {
		t.Errorf("application status = %s, want INTERVIEWED", app.Status)
	}
}

func TestCompleteInterview_RejectsBadRating(t *testing.T) {
	f := newFixture(t)
	iv := f.scheduled(t, "+15550007777")
	rating := 6
	_, err := f.svc.CompleteInterview(context.Background(), companyA, iv.ID, interview.CompleteInput{Rating: &rating})
	var verr *interview.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCancelInterview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550008888")
	if _, err := f.svc.StartInterview(ctx, companyA, iv.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	cancelled, err := f.svc.CancelInterview(ctx, companyA, iv.ID, "candidate no-show")
	if err != nil {
		t.Fatalf("CancelInterview: %v", err)
	}
	if cancelled.Status != interview.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}
	if cancelled.Summary == nil || !strings.Contains(*cancelled.Summary, "Cancelled: candidate no-show") {
		t.Errorf("summary = %v", cancelled.Summary)
	}

	if _, err := f.svc.CancelInterview(ctx, companyA, iv.ID, "again"); !errors.Is(err, interview.ErrForbidden) {
		t.Errorf("cancel of CANCELLED: expected Forbidden-class error, got %v", err)
	}
}

func TestCancelInterview_CompletedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550009999")
	if _, err := f.svc.StartInterview(ctx, companyA, iv.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.CompleteInterview(ctx, companyA, iv.ID, interview.CompleteInput{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.svc.CancelInterview(ctx, companyA, iv.ID, ""); !errors.Is(err, interview.ErrForbidden) {
		t.Fatalf("expected Forbidden-class error, got %v", err)
	}
	after, _ := f.svc.FindOne(ctx, companyA, iv.ID)
	if after.Status != interview.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", after.Status)
	}
}

func TestLifecycle_OtherCompanyForbidden(t *testing.T) {
	f := newFixture(t)
	iv := f.scheduled(t, "+15550001212")
	if _, err := f.svc.StartInterview(context.Background(), companyB, iv.ID); !errors.Is(err, interview.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	after, _ := f.svc.FindOne(context.Background(), companyA, iv.ID)
	if after.Status != interview.StatusScheduled {
		t.Errorf("status = %s, want SCHEDULED", after.Status)
	}
}

func TestLifecycle_EventsFollowTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550001313")
	if _, err := f.svc.StartInterview(ctx, companyA, iv.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.CompleteInterview(ctx, companyA, iv.ID, interview.CompleteInput{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	want := []string{"SCHEDULED", "IN_PROGRESS", "COMPLETED"}
	got := f.events.statuses()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.CreateInterviewSession(ctx, interview.SessionInput{JobPostID: "J1", PhoneNumber: "+15550001414"})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	waiting := f.scheduled(t, "+15550001515")

	// memory store records started_at from the service clock
	overdueAt := f.clock.Now().Add(31 * time.Minute)
	n, err := f.svc.ExpireOverdue(ctx, overdueAt)
	if err != nil {
		t.Fatalf("ExpireOverdue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d interviews, want 1", n)
	}

	iv, _ := f.svc.GetInterviewByRoomID(ctx, sess.RoomName)
	if iv.Status != interview.StatusCompleted || iv.Summary == nil || *iv.Summary != interview.ExpiredSummary {
		t.Errorf("overdue interview not expired: %+v", iv)
	}
	other, _ := f.svc.FindOne(ctx, companyA, waiting.ID)
	if other.Status != interview.StatusScheduled {
		t.Errorf("scheduled interview touched by expiry: %s", other.Status)
	}

	n, err = f.svc.ExpireOverdue(ctx, overdueAt)
	if err != nil || n != 0 {
		t.Errorf("second run expired %d (err %v), want 0", n, err)
	}
}

// ─── Scheduled CRUD ──────────────────────────────────────────────────────────

func TestScheduleInterview_OtherCompanyJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cand, _ := f.store.UpsertCandidate(ctx, interview.CandidateInput{PhoneNumber: "+15550001616"})
	at := f.clock.Now()
	_, err := f.svc.ScheduleInterview(ctx, companyB, interview.ScheduleInput{JobPostID: "J1", CandidateID: cand.ID, ScheduledAt: &at})
	if !errors.Is(err, interview.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestScheduleInterview_Defaults(t *testing.T) {
	f := newFixture(t)
	iv := f.scheduled(t, "+15550001717")
	if iv.Status != interview.StatusScheduled || iv.Type != interview.TypeAIScreening {
		t.Errorf("unexpected status/type: %s/%s", iv.Status, iv.Type)
	}
	if iv.MaxDuration != 1800 || iv.Title == "" || iv.CandidateName != "Sam Lee" {
		t.Errorf("defaults not applied: %+v", iv)
	}
	app, _ := f.store.GetApplication(context.Background(), iv.ApplicationID)
	if app.Status != interview.ApplicationInterviewScheduled {
		t.Errorf("application status = %s", app.Status)
	}
}

func TestUpdate_OtherCompanyLeavesRowUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550001818")

	title := "hijacked"
	_, err := f.svc.Update(ctx, companyB, iv.ID, interview.UpdateInput{Title: &title})
	if !errors.Is(err, interview.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	after, _ := f.svc.FindOne(ctx, companyA, iv.ID)
	if after.Title != iv.Title || after.Version != iv.Version {
		t.Errorf("row modified by foreign company: %+v", after)
	}
}

func TestUpdate_StatusGoesThroughTransitionTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550001919")

	title, completed := "renamed", "COMPLETED"
	_, err := f.svc.Update(ctx, companyA, iv.ID, interview.UpdateInput{Title: &title, Status: &completed})
	if !errors.Is(err, interview.ErrForbidden) {
		t.Fatalf("expected rejected transition, got %v", err)
	}
	after, _ := f.svc.FindOne(ctx, companyA, iv.ID)
	if after.Title != iv.Title || after.Status != interview.StatusScheduled {
		t.Errorf("rejected update wrote fields: %+v", after)
	}

	inProgress := "IN_PROGRESS"
	updated, err := f.svc.Update(ctx, companyA, iv.ID, interview.UpdateInput{Title: &title, Status: &inProgress})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "renamed" || updated.Status != interview.StatusInProgress || updated.StartedAt == nil {
		t.Errorf("unexpected update result: %+v", updated)
	}

	scheduled := "SCHEDULED"
	var verr *interview.ValidationError
	if _, err := f.svc.Update(ctx, companyA, iv.ID, interview.UpdateInput{Status: &scheduled}); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError moving back to SCHEDULED, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550002020")
	if err := f.svc.Remove(ctx, companyB, iv.ID); !errors.Is(err, interview.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Remove(ctx, companyA, iv.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := f.svc.FindOne(ctx, companyA, iv.ID); !errors.Is(err, interview.ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestFindAll_FiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, phone := range []string{"+15550100001", "+15550100002", "+15550100003"} {
		f.scheduled(t, phone)
	}
	f.store.SaveJobPost(interview.JobPost{ID: "J2", CompanyID: companyB, Title: "Designer"})
	cand, _ := f.store.UpsertCandidate(ctx, interview.CandidateInput{PhoneNumber: "+15550100004"})
	at := f.clock.Now()
	if _, err := f.svc.ScheduleInterview(ctx, companyB, interview.ScheduleInput{JobPostID: "J2", CandidateID: cand.ID, ScheduledAt: &at}); err != nil {
		t.Fatalf("schedule for company B: %v", err)
	}

	page, err := f.svc.FindAll(ctx, companyA, interview.ListFilter{Limit: 2, SortBy: "createdAt", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if page.Total != 3 || len(page.Data) != 2 || page.TotalPages != 2 {
		t.Errorf("unexpected page: total=%d len=%d pages=%d", page.Total, len(page.Data), page.TotalPages)
	}
	if page.Data[0].CandidatePhone != "+15550100001" {
		t.Errorf("asc order broken: first = %s", page.Data[0].CandidatePhone)
	}

	page, err = f.svc.FindAll(ctx, companyA, interview.ListFilter{Search: "0100003"})
	if err != nil {
		t.Fatalf("FindAll search: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("search matched %d, want 1", page.Total)
	}
	for _, wild := range []string{"%", "_"} {
		page, err = f.svc.FindAll(ctx, companyA, interview.ListFilter{Search: wild})
		if err != nil || page.Total != 0 {
			t.Errorf("search %q matched %v (%v), want a literal match only", wild, page, err)
		}
	}

	_, err = f.svc.FindAll(ctx, companyA, interview.ListFilter{SortBy: "password"})
	var verr *interview.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for bad sortBy, got %v", err)
	}
}

func TestGetInterviewsByCandidateAndApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550002121")
	f.scheduled(t, "+15550002222")

	byCand, err := f.svc.GetInterviewsByCandidate(ctx, companyA, iv.CandidateID)
	if err != nil || len(byCand) != 1 || byCand[0].ID != iv.ID {
		t.Errorf("by candidate = %v (err %v)", byCand, err)
	}
	byApp, err := f.svc.GetInterviewsByApplication(ctx, companyA, iv.ApplicationID)
	if err != nil || len(byApp) != 1 || byApp[0].ID != iv.ID {
		t.Errorf("by application = %v (err %v)", byApp, err)
	}
	foreign, err := f.svc.GetInterviewsByCandidate(ctx, companyB, iv.CandidateID)
	if err != nil || len(foreign) != 0 {
		t.Errorf("company B sees %d interviews (err %v), want 0", len(foreign), err)
	}
}

// ─── Transcripts ─────────────────────────────────────────────────────────────

func TestAddTranscripts_BulkOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550002323")

	in := []interview.TranscriptInput{
		{SpeakerType: "AI_ASSISTANT", Content: "Tell me about Go.", StartTime: 0, EndTime: 2.5, SequenceNumber: 1},
		{SpeakerType: "CANDIDATE", Content: "I run Go and kubernetes in production.", StartTime: 2.5, EndTime: 7, SequenceNumber: 2},
		{SpeakerType: "AI_ASSISTANT", Content: "Thanks.", StartTime: 7, EndTime: 8, SequenceNumber: 3},
	}
	if _, err := f.svc.AddTranscripts(ctx, companyA, iv.ID, in); err != nil {
		t.Fatalf("AddTranscripts: %v", err)
	}

	got, err := f.svc.GetTranscriptsByInterview(ctx, companyA, iv.ID)
	if err != nil {
		t.Fatalf("GetTranscriptsByInterview: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d transcripts, want 3", len(got))
	}
	for i, tr := range got {
		if tr.SequenceNumber != i+1 {
			t.Errorf("transcripts[%d].sequenceNumber = %d", i, tr.SequenceNumber)
		}
	}
	if got[1].Duration != 4.5 {
		t.Errorf("duration = %v, want end-start = 4.5", got[1].Duration)
	}
	if strings.Join(got[1].Keywords, ",") != "Go,Kubernetes" {
		t.Errorf("keywords = %v, want job skills mentioned", got[1].Keywords)
	}
}

func TestAddTranscripts_SequenceRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550002424")

	line := func(seq int) interview.TranscriptInput {
		return interview.TranscriptInput{SpeakerType: "CANDIDATE", Content: "hello", SequenceNumber: seq}
	}
	if _, err := f.svc.AddTranscripts(ctx, companyA, iv.ID, []interview.TranscriptInput{line(1), line(2)}); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	tests := []struct {
		name  string
		batch []interview.TranscriptInput
	}{
		{"not past stored max", []interview.TranscriptInput{line(2)}},
		{"decreasing in batch", []interview.TranscriptInput{line(5), line(4)}},
		{"duplicate in batch", []interview.TranscriptInput{line(6), line(6)}},
		{"unknown speaker", []interview.TranscriptInput{{SpeakerType: "NARRATOR", Content: "x", SequenceNumber: 9}}},
		{"empty batch", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddTranscripts(ctx, companyA, iv.ID, tt.batch)
			var verr *interview.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	got, _ := f.svc.GetTranscriptsByInterview(ctx, companyA, iv.ID)
	if len(got) != 2 {
		t.Errorf("rejected batches stored rows: %d transcripts", len(got))
	}

	auto, err := f.svc.AddTranscripts(ctx, companyA, iv.ID, []interview.TranscriptInput{line(0), line(0)})
	if err != nil {
		t.Fatalf("auto-numbered batch: %v", err)
	}
	if auto[0].SequenceNumber != 3 || auto[1].SequenceNumber != 4 {
		t.Errorf("auto sequence = %d,%d want 3,4", auto[0].SequenceNumber, auto[1].SequenceNumber)
	}
}

// ─── Agent operations ────────────────────────────────────────────────────────

func TestStartRoom_InProgressIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.CreateInterviewSession(ctx, interview.SessionInput{JobPostID: "J1", PhoneNumber: "+15550002525"})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	before, _ := f.svc.GetInterviewByRoomID(ctx, sess.RoomName)
	started, err := f.svc.StartRoom(ctx, sess.RoomName)
	if err != nil {
		t.Fatalf("StartRoom: %v", err)
	}
	if started.Version != before.Version || !started.StartedAt.Equal(*before.StartedAt) {
		t.Errorf("StartRoom on IN_PROGRESS mutated the row")
	}
}

func TestEndSession_CompletesAndDeletesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.CreateInterviewSession(ctx, interview.SessionInput{JobPostID: "J1", PhoneNumber: "+15550002626"})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	iv, err := f.svc.EndSession(ctx, sess.RoomName, interview.CompleteInput{})
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if iv.Status != interview.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", iv.Status)
	}
	if len(f.rooms.deleted) != 1 || f.rooms.deleted[0] != sess.RoomName {
		t.Errorf("deleted rooms = %v", f.rooms.deleted)
	}

	// ending twice is harmless
	if _, err := f.svc.EndSession(ctx, sess.RoomName, interview.CompleteInput{}); err != nil {
		t.Errorf("second EndSession: %v", err)
	}
}

func TestEndRoom_UnknownRoom(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.EndRoom(context.Background(), "interview_nope_1", nil); !errors.Is(err, interview.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type memoryRecordings struct {
	objects map[string]string
	expiry  time.Duration
}

func (m *memoryRecordings) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = string(b)
	return nil
}

func (m *memoryRecordings) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.expiry = expiry
	return "https://minio.test/recordings/" + key + "?sig=x", nil
}

func TestSaveRecording(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recs := &memoryRecordings{objects: map[string]string{}}
	svc := interview.NewService(interview.Config{
		Store: f.store, Rooms: f.rooms, Tokens: fakeTokens{}, Recordings: recs, Now: f.clock.Now,
	})
	sess, err := svc.CreateInterviewSession(ctx, interview.SessionInput{JobPostID: "J1", PhoneNumber: "+15550002727"})
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	iv, err := svc.SaveRecording(ctx, sess.RoomName, interview.RecordingInput{
		Filename: "call.mp4", ContentType: "video/mp4", Size: 5, Body: strings.NewReader("video"),
	})
	if err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	if iv.RecordingKey == nil || !strings.HasPrefix(*iv.RecordingKey, "interviews/"+iv.ID+"/") {
		t.Fatalf("recordingKey = %v", iv.RecordingKey)
	}
	if recs.objects[*iv.RecordingKey] != "video" {
		t.Errorf("object not stored under %s", *iv.RecordingKey)
	}
	if iv.RecordingURL == nil || !strings.Contains(*iv.RecordingURL, *iv.RecordingKey) {
		t.Errorf("recordingUrl = %v", iv.RecordingURL)
	}

	// Only the key is stored; links are signed on every read.
	raw, err := f.store.GetInterview(ctx, iv.ID)
	if err != nil || raw.RecordingURL != nil || raw.RecordingKey == nil {
		t.Fatalf("stored row = %+v, %v; want key and no url", raw, err)
	}
	f.clock.Advance(30 * 24 * time.Hour)
	for name, read := range map[string]func() (*interview.Interview, error){
		"FindOne":              func() (*interview.Interview, error) { return svc.FindOne(ctx, companyA, iv.ID) },
		"GetInterviewByRoomID": func() (*interview.Interview, error) { return svc.GetInterviewByRoomID(ctx, sess.RoomName) },
	} {
		recs.expiry = 0
		got, err := read()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got.RecordingURL == nil || !strings.Contains(*got.RecordingURL, *raw.RecordingKey) {
			t.Errorf("%s recordingUrl = %v", name, got.RecordingURL)
		}
		if recs.expiry <= 0 || recs.expiry > 24*time.Hour {
			t.Errorf("%s presigned for %v", name, recs.expiry)
		}
	}

	iv, err = svc.SaveRecording(ctx, sess.RoomName, interview.RecordingInput{URL: "https://cdn.test/v.webm"})
	if err != nil || *iv.RecordingURL != "https://cdn.test/v.webm" || iv.RecordingKey != nil {
		t.Errorf("save by URL: %+v %v", iv, err)
	}
	if got, _ := svc.FindOne(ctx, companyA, iv.ID); got == nil || got.RecordingURL == nil || *got.RecordingURL != "https://cdn.test/v.webm" {
		t.Errorf("external url not kept on read: %+v", got)
	}
	var verr *interview.ValidationError
	if _, err := svc.SaveRecording(ctx, sess.RoomName, interview.RecordingInput{URL: "ftp://x"}); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for ftp URL, got %v", err)
	}
}

func TestSaveRecording_StorageDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.svc.CreateInterviewSession(ctx, interview.SessionInput{JobPostID: "J1", PhoneNumber: "+15550002828"})
	_, err := f.svc.SaveRecording(ctx, sess.RoomName, interview.RecordingInput{Body: strings.NewReader("x")})
	var verr *interview.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSaveInterview_CreatesAndCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cand, _ := f.store.UpsertCandidate(ctx, interview.CandidateInput{PhoneNumber: "+15550002929"})

	summary, completed := "good call", "COMPLETED"
	res, err := f.svc.SaveInterview(ctx, interview.SaveInterviewInput{
		JobPostID:   "J1",
		CandidateID: cand.ID,
		Transcripts: []interview.TranscriptInput{
			{SpeakerType: "AI_ASSISTANT", Content: "Hi", SequenceNumber: 1},
			{SpeakerType: "CANDIDATE", Content: "Hello", SequenceNumber: 2},
		},
		UpdateInput: interview.UpdateInput{Summary: &summary, Status: &completed},
	})
	if err != nil {
		t.Fatalf("SaveInterview: %v", err)
	}
	if res.Interview.Status != interview.StatusCompleted || res.Interview.StartedAt == nil {
		t.Errorf("interview not walked to COMPLETED: %+v", res.Interview)
	}
	if res.Interview.Summary == nil || *res.Interview.Summary != summary {
		t.Errorf("summary = %v", res.Interview.Summary)
	}
	if len(res.Transcripts) != 2 {
		t.Errorf("transcripts = %d, want 2", len(res.Transcripts))
	}
}

func TestSaveInterview_ExistingRoomAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.CreateInterviewSession(ctx, interview.SessionInput{JobPostID: "J1", PhoneNumber: "+15550003030"})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	res, err := f.svc.SaveInterview(ctx, interview.SaveInterviewInput{
		RoomName:    sess.RoomName,
		Transcripts: []interview.TranscriptInput{{SpeakerType: "CANDIDATE", Content: "ok"}},
	})
	if err != nil {
		t.Fatalf("SaveInterview: %v", err)
	}
	if res.Interview.ID != sess.InterviewID || res.Interview.Status != interview.StatusInProgress {
		t.Errorf("expected existing interview untouched in status, got %+v", res.Interview)
	}
	if len(res.Transcripts) != 1 || res.Transcripts[0].SequenceNumber != 1 {
		t.Errorf("unexpected transcripts: %+v", res.Transcripts)
	}
}

func TestSaveInterview_UnknownRoomIsNotCreated(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SaveInterview(context.Background(), interview.SaveInterviewInput{
		RoomName:    "interview_gone_1",
		JobPostID:   "J1",
		PhoneNumber: "+15550003232",
		Transcripts: []interview.TranscriptInput{{SpeakerType: "CANDIDATE", Content: "hello?"}},
	})
	if !errors.Is(err, interview.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(f.rooms.created) != 0 {
		t.Errorf("rooms created for an unknown room name: %v", f.rooms.created)
	}
	if got := f.store.CandidateCount(); got != 0 {
		t.Errorf("candidates = %d, want 0", got)
	}
}

func TestUpdateInterviewComposite_InvalidStatusWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iv := f.scheduled(t, "+15550003131")
	bogus := "DONE"
	_, err := f.svc.UpdateInterviewComposite(ctx, iv.ID, interview.CompositeUpdate{
		UpdateInput: interview.UpdateInput{Status: &bogus},
		Transcripts: []interview.TranscriptInput{{SpeakerType: "CANDIDATE", Content: "x"}},
	})
	var verr *interview.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	got, _ := f.svc.GetTranscriptsByInterview(ctx, interview.AgentScope, iv.ID)
	if len(got) != 0 {
		t.Errorf("transcripts stored despite invalid update: %d", len(got))
	}
}
