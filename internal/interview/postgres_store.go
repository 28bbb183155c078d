package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const interviewColumns = `
	id, application_id, candidate_id, job_post_id, company_id, title, description,
	type::text, status::text, room_name, room_code, scheduled_at, started_at,
	completed_at, duration, max_duration, candidate_phone, candidate_name,
	summary, feedback, rating, analysis, recording_key, recording_url, version,
	created_at, updated_at`

func scanInterview(row pgx.Row) (*Interview, error) {
	var (
		iv       Interview
		analysis []byte
	)
	err := row.Scan(
		&iv.ID, &iv.ApplicationID, &iv.CandidateID, &iv.JobPostID, &iv.CompanyID,
		&iv.Title, &iv.Description, &iv.Type, &iv.Status, &iv.RoomName, &iv.RoomCode,
		&iv.ScheduledAt, &iv.StartedAt, &iv.CompletedAt, &iv.Duration, &iv.MaxDuration,
		&iv.CandidatePhone, &iv.CandidateName, &iv.Summary, &iv.Feedback, &iv.Rating,
		&analysis, &iv.RecordingKey, &iv.RecordingURL, &iv.Version,
		&iv.CreatedAt, &iv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &iv.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	return &iv, nil
}

// notFound maps pgx.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// pgError maps constraint violations to domain sentinels.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return notFound(op, err)
}

// ─── Job posts / candidates / applications ────────────────────────────────────

func (s *PostgresStore) GetJobPost(ctx context.Context, id string) (*JobPost, error) {
	var j JobPost
	err := s.pool.QueryRow(ctx,
		`SELECT jp.id, jp.company_id, c.name, jp.title, jp.description, jp.skills,
		        jp.interview_language, jp.interview_prompt, jp.technical_questions
		 FROM job_posts jp
		 JOIN companies c ON c.id = jp.company_id
		 WHERE jp.id = $1`,
		id,
	).Scan(&j.ID, &j.CompanyID, &j.CompanyName, &j.Title, &j.Description, &j.Skills,
		&j.InterviewLanguage, &j.InterviewPrompt, &j.TechnicalQuestions)
	if err != nil {
		return nil, notFound("getJobPost", err)
	}
	return &j, nil
}

const candidateColumns = `id, first_name, last_name, name, email, phone_number, created_at, updated_at`

func scanCandidate(row pgx.Row) (*Candidate, error) {
	var c Candidate
	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Name, &c.Email,
		&c.PhoneNumber, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) UpsertCandidate(ctx context.Context, in CandidateInput) (*Candidate, error) {
	c, err := scanCandidate(s.pool.QueryRow(ctx,
		`INSERT INTO candidates (id, first_name, last_name, name, email, phone_number)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (phone_number) DO UPDATE SET
		   first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), candidates.first_name),
		   last_name  = COALESCE(NULLIF(EXCLUDED.last_name, ''), candidates.last_name),
		   email      = COALESCE(NULLIF(EXCLUDED.email, ''), candidates.email),
		   name       = TRIM(COALESCE(NULLIF(EXCLUDED.first_name, ''), candidates.first_name) || ' ' ||
		                     COALESCE(NULLIF(EXCLUDED.last_name, ''), candidates.last_name)),
		   updated_at = NOW()
		 RETURNING `+candidateColumns,
		uuid.NewString(), in.FirstName, in.LastName, fullName(in.FirstName, in.LastName),
		in.Email, in.PhoneNumber,
	))
	if err != nil {
		return nil, fmt.Errorf("upsertCandidate: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	c, err := scanCandidate(s.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("getCandidate", err)
	}
	return c, nil
}

const applicationColumns = `id, job_post_id, candidate_id, status::text, created_at, updated_at`

func scanApplication(row pgx.Row) (*Application, error) {
	var a Application
	if err := row.Scan(&a.ID, &a.JobPostID, &a.CandidateID, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) EnsureApplication(ctx context.Context, jobPostID, candidateID string, status ApplicationStatus) (*Application, error) {
	// The no-op DO UPDATE makes RETURNING yield the existing row.
	a, err := scanApplication(s.pool.QueryRow(ctx,
		`INSERT INTO applications (id, job_post_id, candidate_id, status)
		 VALUES ($1, $2, $3, $4::application_status)
		 ON CONFLICT (job_post_id, candidate_id) DO UPDATE SET updated_at = applications.updated_at
		 RETURNING `+applicationColumns,
		uuid.NewString(), jobPostID, candidateID, string(status),
	))
	if err != nil {
		return nil, pgError("ensureApplication", err)
	}
	return a, nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("getApplication", err)
	}
	return a, nil
}

func (s *PostgresStore) SetApplicationStatus(ctx context.Context, id string, to ApplicationStatus, from ...ApplicationStatus) error {
	froms := make([]string, 0, len(from))
	for _, f := range from {
		froms = append(froms, string(f))
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications
		 SET status = $2::application_status, updated_at = NOW()
		 WHERE id = $1
		   AND (cardinality($3::text[]) = 0 OR status::text = ANY($3::text[]))`,
		id, string(to), froms,
	)
	if err != nil {
		return fmt.Errorf("setApplicationStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetApplication(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ─── Interviews ───────────────────────────────────────────────────────────────

func (s *PostgresStore) CreateInterview(ctx context.Context, iv *Interview) error {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	analysis, err := json.Marshal(iv.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	created, err := scanInterview(s.pool.QueryRow(ctx,
		`INSERT INTO interviews (
		   id, application_id, candidate_id, job_post_id, company_id, title, description,
		   type, status, room_name, room_code, scheduled_at, started_at, max_duration,
		   candidate_phone, candidate_name, analysis)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::interview_type, $9::interview_status,
		         $10, $11, $12, $13, $14, $15, $16, $17::jsonb)
		 RETURNING `+interviewColumns,
		iv.ID, iv.ApplicationID, iv.CandidateID, iv.JobPostID, iv.CompanyID, iv.Title,
		iv.Description, string(iv.Type), string(iv.Status), iv.RoomName, iv.RoomCode,
		iv.ScheduledAt, iv.StartedAt, iv.MaxDuration, iv.CandidatePhone, iv.CandidateName,
		string(analysis),
	))
	if err != nil {
		return pgError("createInterview", err)
	}
	*iv = *created
	return nil
}

func (s *PostgresStore) GetInterview(ctx context.Context, id string) (*Interview, error) {
	iv, err := scanInterview(s.pool.QueryRow(ctx,
		`SELECT `+interviewColumns+` FROM interviews WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("getInterview", err)
	}
	return iv, nil
}

func (s *PostgresStore) GetInterviewByRoom(ctx context.Context, roomName string) (*Interview, error) {
	iv, err := scanInterview(s.pool.QueryRow(ctx,
		`SELECT `+interviewColumns+` FROM interviews WHERE room_name = $1`, roomName))
	if err != nil {
		return nil, notFound("getInterviewByRoom", err)
	}
	return iv, nil
}

// likeEscaper escapes LIKE metacharacters so search text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern is a substring match for text under ILIKE's default escape.
func likePattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}

func (s *PostgresStore) ListInterviews(ctx context.Context, f ListFilter) ([]Interview, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CompanyID != "" {
		add("company_id = $%d", f.CompanyID)
	}
	if f.Status != "" {
		add("status = $%d::interview_status", string(f.Status))
	}
	if f.JobPostID != "" {
		add("job_post_id = $%d", f.JobPostID)
	}
	if f.CandidateID != "" {
		add("candidate_id = $%d", f.CandidateID)
	}
	if f.ApplicationID != "" {
		add("application_id = $%d", f.ApplicationID)
	}
	if f.From != nil {
		add("scheduled_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("scheduled_at <= $%d", *f.To)
	}
	if f.Search != "" {
		add("(title ILIKE $%[1]d OR candidate_name ILIKE $%[1]d OR candidate_phone ILIKE $%[1]d OR room_code ILIKE $%[1]d)",
			likePattern(f.Search))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM interviews`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("listInterviews count: %w", err)
	}

	// sortColumns is a closed whitelist, so the ORDER BY is not user text.
	order := fmt.Sprintf(" ORDER BY %s %s NULLS LAST, id", sortColumns[f.SortBy], strings.ToUpper(f.SortOrder))
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	page := fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, `SELECT `+interviewColumns+` FROM interviews`+where+order+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listInterviews query: %w", err)
	}
	defer rows.Close()

	out := make([]Interview, 0)
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("listInterviews scan: %w", err)
		}
		out = append(out, *iv)
	}
	return out, total, rows.Err()
}

// patchSet renders the SET fragment for p starting at placeholder $first.
// Nil fields keep the stored value via COALESCE.
func patchSet(first int, p Patch) (string, []any, error) {
	var analysis *string
	if p.Analysis != nil {
		b, err := json.Marshal(p.Analysis)
		if err != nil {
			return "", nil, fmt.Errorf("encode analysis: %w", err)
		}
		s := string(b)
		analysis = &s
	}
	var typ *string
	if p.Type != nil {
		t := string(*p.Type)
		typ = &t
	}
	cols := []struct {
		expr string
		val  any
	}{
		{"title = COALESCE($%d, title)", p.Title},
		{"description = COALESCE($%d, description)", p.Description},
		{"type = COALESCE($%d::interview_type, type)", typ},
		{"scheduled_at = COALESCE($%d, scheduled_at)", p.ScheduledAt},
		{"started_at = COALESCE($%d, started_at)", p.StartedAt},
		{"completed_at = COALESCE($%d, completed_at)", p.CompletedAt},
		{"duration = COALESCE($%d, duration)", p.Duration},
		{"max_duration = COALESCE($%d, max_duration)", p.MaxDuration},
		{"summary = COALESCE($%d, summary)", p.Summary},
		{"feedback = COALESCE($%d, feedback)", p.Feedback},
		{"rating = COALESCE($%d, rating)", p.Rating},
		{"analysis = COALESCE($%d::jsonb, analysis)", analysis},
		{"recording_key = NULLIF(COALESCE($%d, recording_key), '')", p.RecordingKey},
		{"recording_url = NULLIF(COALESCE($%d, recording_url), '')", p.RecordingURL},
	}
	sets := make([]string, 0, len(cols)+2)
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf(c.expr, first+i))
		args = append(args, c.val)
	}
	sets = append(sets, "version = version + 1", "updated_at = NOW()")
	return strings.Join(sets, ", "), args, nil
}

func (s *PostgresStore) UpdateInterview(ctx context.Context, id string, p Patch) (*Interview, error) {
	set, args, err := patchSet(2, p)
	if err != nil {
		return nil, err
	}
	iv, err := scanInterview(s.pool.QueryRow(ctx,
		`UPDATE interviews SET `+set+` WHERE id = $1 RETURNING `+interviewColumns,
		append([]any{id}, args...)...,
	))
	if err != nil {
		return nil, notFound("updateInterview", err)
	}
	return iv, nil
}

func (s *PostgresStore) TransitionInterview(ctx context.Context, id string, from, to Status, p Patch) (*Interview, error) {
	set, args, err := patchSet(4, p)
	if err != nil {
		return nil, err
	}
	iv, err := scanInterview(s.pool.QueryRow(ctx,
		`UPDATE interviews SET status = $3::interview_status, `+set+`
		 WHERE id = $1 AND status = $2::interview_status
		 RETURNING `+interviewColumns,
		append([]any{id, string(from), string(to)}, args...)...,
	))
	if err == nil {
		return iv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transitionInterview: %w", err)
	}
	// Distinguish a missing row from a lost compare-and-set.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM interviews WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("transitionInterview exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, nil
}

func (s *PostgresStore) DeleteInterview(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM interviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleteInterview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListOverdueInterviews(ctx context.Context, now time.Time) ([]Interview, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+interviewColumns+`
		 FROM interviews
		 WHERE status = 'IN_PROGRESS'
		   AND started_at IS NOT NULL
		   AND max_duration > 0
		   AND started_at + make_interval(secs => max_duration) < $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("listOverdue query: %w", err)
	}
	defer rows.Close()

	var out []Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("listOverdue scan: %w", err)
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

// ─── Transcripts ──────────────────────────────────────────────────────────────

const transcriptColumns = `
	id, interview_id, speaker_type::text, speaker_name, content, start_time, end_time,
	duration, sequence_number, confidence, sentiment, keywords, importance, created_at`

func scanTranscript(row pgx.Row) (*Transcript, error) {
	var t Transcript
	if err := row.Scan(&t.ID, &t.InterviewID, &t.SpeakerType, &t.SpeakerName, &t.Content,
		&t.StartTime, &t.EndTime, &t.Duration, &t.SequenceNumber, &t.Confidence,
		&t.Sentiment, &t.Keywords, &t.Importance, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) InsertTranscripts(ctx context.Context, rows []Transcript) ([]Transcript, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("insertTranscripts begin: %w", err)
	}
	defer tx.Rollback(ctx)

	out := make([]Transcript, 0, len(rows))
	for _, r := range rows {
		keywords := r.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		t, err := scanTranscript(tx.QueryRow(ctx,
			`INSERT INTO transcripts (
			   id, interview_id, speaker_type, speaker_name, content, start_time, end_time,
			   duration, sequence_number, confidence, sentiment, keywords, importance)
			 VALUES ($1, $2, $3::speaker_type, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 RETURNING `+transcriptColumns,
			uuid.NewString(), r.InterviewID, string(r.SpeakerType), r.SpeakerName, r.Content,
			r.StartTime, r.EndTime, r.Duration, r.SequenceNumber, r.Confidence, r.Sentiment,
			keywords, r.Importance,
		))
		if err != nil {
			return nil, pgError("insertTranscripts", err)
		}
		out = append(out, *t)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("insertTranscripts commit: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListTranscripts(ctx context.Context, interviewID string) ([]Transcript, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts
		 WHERE interview_id = $1
		 ORDER BY sequence_number ASC`,
		interviewID,
	)
	if err != nil {
		return nil, fmt.Errorf("listTranscripts query: %w", err)
	}
	defer rows.Close()

	out := make([]Transcript, 0)
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("listTranscripts scan: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MaxTranscriptSequence(ctx context.Context, interviewID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM transcripts WHERE interview_id = $1`,
		interviewID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("maxTranscriptSequence: %w", err)
	}
	return n, nil
}
