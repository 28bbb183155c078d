package interview

// Agent routes (no auth; called by the AI interviewer backend and the room
// page):
//
//	POST /interviews                                    → create (scheduled)
//	GET  /interviews/{id}            PUT /interviews/{id}
//	GET  /interviews/job/{jobId}     GET /interviews/candidate/{candidateId}
//	POST /interviews/transcripts     POST /interviews/transcripts/bulk
//	GET  /interviews/{id}/transcripts
//	POST /interviews/room/create-new-room               → ad-hoc session
//	GET  /interviews/room/{roomName}
//	POST /interviews/room/{roomName}/start|end|complete|end-session|transcripts|save-video
//	POST /interviews/fastapi/save-interview
//	PUT  /interviews/fastapi/update-interview/{id}

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rolevate/interview-service/internal/util"
)

// RegisterAgentRoutes mounts the no-auth /interviews surface.
func (h *Handler) RegisterAgentRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/interviews", h.handleAgentCollection)
	mux.HandleFunc("/interviews/", h.handleAgentItem)
}

// createInterviewRequest is the body of POST /interviews.
type createInterviewRequest struct {
	JobID         string     `json:"jobId"`
	CandidateID   string     `json:"candidateId"`
	CompanyID     string     `json:"companyId"`
	ApplicationID string     `json:"applicationId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	ScheduledAt   *time.Time `json:"scheduledAt"`
	MaxDuration   int        `json:"maxDuration"`
}

// handleAgentCollection handles POST /interviews
func (h *Handler) handleAgentCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		util.JSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in createInterviewRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	// companyId, when sent, must own the job post.
	iv, err := h.svc.ScheduleInterview(r.Context(), in.CompanyID, ScheduleInput{
		ApplicationID: in.ApplicationID,
		JobPostID:     in.JobID,
		CandidateID:   in.CandidateID,
		Title:         in.Title,
		Description:   in.Description,
		Type:          in.Type,
		ScheduledAt:   in.ScheduledAt,
		MaxDuration:   in.MaxDuration,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.JSON(w, http.StatusCreated, iv)
}

// handleAgentItem handles /interviews/{...}
func (h *Handler) handleAgentItem(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/interviews/")
	if len(parts) == 0 {
		util.JSONError(w, "not found", http.StatusNotFound)
		return
	}
	ctx := r.Context()

	switch parts[0] {
	case "room":
		h.handleRoom(w, r, parts[1:])
		return
	case "fastapi":
		h.handleFastAPI(w, r, parts[1:])
		return
	case "transcripts":
		h.handleTranscriptPost(w, r, parts[1:])
		return
	case "job", "candidate":
		if len(parts) == 2 && r.Method == http.MethodGet {
			var (
				list []Interview
				err  error
			)
			if parts[0] == "job" {
				list, err = h.svc.GetInterviewsByJob(ctx, AgentScope, parts[1])
			} else {
				list, err = h.svc.GetInterviewsByCandidate(ctx, AgentScope, parts[1])
			}
			respond(w, r, list, err)
			return
		}
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		iv, err := h.svc.FindOne(ctx, AgentScope, parts[0])
		respond(w, r, iv, err)
	case len(parts) == 1 && r.Method == http.MethodPut:
		var in UpdateInput
		if !decodeJSON(w, r, &in) {
			return
		}
		iv, err := h.svc.Update(ctx, AgentScope, parts[0], in)
		respond(w, r, iv, err)
	case len(parts) == 2 && parts[1] == "transcripts" && r.Method == http.MethodGet:
		rows, err := h.svc.GetTranscriptsByInterview(ctx, AgentScope, parts[0])
		respond(w, r, rows, err)
	default:
		util.JSONError(w, "not found", http.StatusNotFound)
	}
}

// handleTranscriptPost handles POST /interviews/transcripts[/bulk]
func (h *Handler) handleTranscriptPost(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodPost {
		util.JSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var (
		interviewID string
		batch       []TranscriptInput
	)
	switch {
	case len(rest) == 0:
		var in struct {
			InterviewID string `json:"interviewId"`
			TranscriptInput
		}
		if !decodeJSON(w, r, &in) {
			return
		}
		interviewID, batch = in.InterviewID, []TranscriptInput{in.TranscriptInput}
	case len(rest) == 1 && rest[0] == "bulk":
		var in struct {
			InterviewID string            `json:"interviewId"`
			Transcripts []TranscriptInput `json:"transcripts"`
		}
		if !decodeJSON(w, r, &in) {
			return
		}
		interviewID, batch = in.InterviewID, in.Transcripts
	default:
		util.JSONError(w, "not found", http.StatusNotFound)
		return
	}
	rows, err := h.svc.AddTranscripts(r.Context(), AgentScope, interviewID, batch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.JSON(w, http.StatusCreated, rows)
}

// handleRoom handles /interviews/room/...
func (h *Handler) handleRoom(w http.ResponseWriter, r *http.Request, rest []string) {
	ctx := r.Context()
	switch {
	case len(rest) == 1 && rest[0] == "create-new-room" && r.Method == http.MethodPost:
		var in SessionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		sess, err := h.svc.CreateInterviewSession(ctx, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		util.JSON(w, http.StatusCreated, sess)

	case len(rest) == 1 && r.Method == http.MethodGet:
		iv, err := h.svc.GetInterviewByRoomID(ctx, rest[0])
		respond(w, r, iv, err)

	case len(rest) == 2 && r.Method == http.MethodPost:
		h.roomAction(w, r, rest[0], rest[1])

	default:
		util.JSONError(w, "not found", http.StatusNotFound)
	}
}

// roomAction handles POST /interviews/room/{roomName}/{action}
func (h *Handler) roomAction(w http.ResponseWriter, r *http.Request, roomName, action string) {
	ctx := r.Context()
	switch action {
	case "start":
		iv, err := h.svc.StartRoom(ctx, roomName)
		respond(w, r, iv, err)
	case "end":
		var in struct {
			Summary *string `json:"summary"`
		}
		if !decodeOptionalJSON(w, r, &in) {
			return
		}
		iv, err := h.svc.EndRoom(ctx, roomName, in.Summary)
		respond(w, r, iv, err)
	case "complete":
		var in CompleteInput
		if !decodeOptionalJSON(w, r, &in) {
			return
		}
		iv, err := h.svc.CompleteRoom(ctx, roomName, in)
		respond(w, r, iv, err)
	case "end-session":
		var in CompleteInput
		if !decodeOptionalJSON(w, r, &in) {
			return
		}
		iv, err := h.svc.EndSession(ctx, roomName, in)
		respond(w, r, iv, err)
	case "transcripts":
		batch, ok := decodeTranscriptBatch(w, r)
		if !ok {
			return
		}
		rows, err := h.svc.AddRoomTranscripts(ctx, roomName, batch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		util.JSON(w, http.StatusCreated, rows)
	case "save-video":
		h.saveVideo(w, r, roomName)
	default:
		util.JSONError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// decodeTranscriptBatch accepts either a JSON array of transcripts or an
// object with a "transcripts" array.
func decodeTranscriptBatch(w http.ResponseWriter, r *http.Request) ([]TranscriptInput, bool) {
	var raw json.RawMessage
	if !decodeJSON(w, r, &raw) {
		return nil, false
	}
	var batch []TranscriptInput
	var err error
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &batch)
	} else {
		var wrapped struct {
			Transcripts []TranscriptInput `json:"transcripts"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		batch = wrapped.Transcripts
	}
	if err != nil {
		util.JSONError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return batch, true
}

// saveVideo accepts a multipart "video" file or a JSON {"videoUrl": ...}.
func (h *Handler) saveVideo(w http.ResponseWriter, r *http.Request, roomName string) {
	var in RecordingInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				util.JSONError(w, "recording exceeds upload limit", http.StatusRequestEntityTooLarge)
				return
			}
			util.JSONError(w, "invalid multipart body", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()
		file, header, err := r.FormFile("video")
		switch {
		case err == nil:
			defer file.Close()
			in = RecordingInput{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			}
		case errors.Is(err, http.ErrMissingFile):
			in.URL = r.FormValue("videoUrl")
		default:
			util.JSONError(w, "invalid video file", http.StatusBadRequest)
			return
		}
	} else {
		var body struct {
			VideoURL string `json:"videoUrl"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		in.URL = body.VideoURL
	}
	iv, err := h.svc.SaveRecording(r.Context(), roomName, in)
	respond(w, r, iv, err)
}

// handleFastAPI handles the composite agent-backend endpoints.
func (h *Handler) handleFastAPI(w http.ResponseWriter, r *http.Request, rest []string) {
	ctx := r.Context()
	switch {
	case len(rest) == 1 && rest[0] == "save-interview" && r.Method == http.MethodPost:
		var in SaveInterviewInput
		if !decodeJSON(w, r, &in) {
			return
		}
		res, err := h.svc.SaveInterview(ctx, in)
		respond(w, r, res, err)
	case len(rest) == 2 && rest[0] == "update-interview" && r.Method == http.MethodPut:
		var in CompositeUpdate
		if !decodeJSON(w, r, &in) {
			return
		}
		res, err := h.svc.UpdateInterviewComposite(ctx, rest[1], in)
		respond(w, r, res, err)
	default:
		util.JSONError(w, "not found", http.StatusNotFound)
	}
}
