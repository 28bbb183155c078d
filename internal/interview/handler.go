// HTTP surfaces of the interview service.
//
// Company routes (Authorization: Bearer <token> with a companyId claim):
//
//	GET    /api/interviews                          → list (filter, sort, page)
//	POST   /api/interviews                          → schedule
//	GET    /api/interviews/{id}                     → detail
//	PUT    /api/interviews/{id}                     → update
//	DELETE /api/interviews/{id}                     → remove
//	POST   /api/interviews/{id}/start|complete|cancel
//	GET    /api/interviews/{id}/transcripts
//	GET    /api/interviews/candidate/{candidateId}
//	GET    /api/interviews/application/{applicationId}
//
// Agent routes are listed in agent_handler.go.

package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rolevate/interview-service/internal/auth"
	"rolevate/interview-service/internal/util"
)

const maxJSONBody = 4 << 20

// Handler serves both HTTP surfaces over one Service.
type Handler struct {
	svc       *Service
	maxUpload int64
}

// NewHandler returns a Handler. maxUpload bounds recording uploads.
func NewHandler(svc *Service, maxUpload int64) *Handler {
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// RegisterCompanyRoutes mounts /api/interviews behind requireAuth.
func (h *Handler) RegisterCompanyRoutes(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.Handle("/api/interviews", requireAuth(http.HandlerFunc(h.handleCompanyCollection)))
	mux.Handle("/api/interviews/", requireAuth(http.HandlerFunc(h.handleCompanyItem)))
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

func companyOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok || sess.CompanyID == "" {
		util.JSONError(w, "missing company session", http.StatusUnauthorized)
		return "", false
	}
	return sess.CompanyID, true
}

// handleCompanyCollection handles GET|POST /api/interviews
func (h *Handler) handleCompanyCollection(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyOf(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		f, err := parseListFilter(r.URL.Query())
		if err != nil {
			util.JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		page, err := h.svc.FindAll(r.Context(), companyID, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		util.JSONOK(w, page)
	case http.MethodPost:
		var in ScheduleInput
		if !decodeJSON(w, r, &in) {
			return
		}
		iv, err := h.svc.ScheduleInterview(r.Context(), companyID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		util.JSON(w, http.StatusCreated, iv)
	default:
		util.JSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCompanyItem handles /api/interviews/{...}
func (h *Handler) handleCompanyItem(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyOf(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/api/interviews/")
	ctx := r.Context()

	switch {
	case len(parts) == 2 && parts[0] == "candidate" && r.Method == http.MethodGet:
		list, err := h.svc.GetInterviewsByCandidate(ctx, companyID, parts[1])
		respond(w, r, list, err)

	case len(parts) == 2 && parts[0] == "application" && r.Method == http.MethodGet:
		list, err := h.svc.GetInterviewsByApplication(ctx, companyID, parts[1])
		respond(w, r, list, err)

	case len(parts) == 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			iv, err := h.svc.FindOne(ctx, companyID, id)
			respond(w, r, iv, err)
		case http.MethodPut, http.MethodPatch:
			var in UpdateInput
			if !decodeJSON(w, r, &in) {
				return
			}
			iv, err := h.svc.Update(ctx, companyID, id, in)
			respond(w, r, iv, err)
		case http.MethodDelete:
			if err := h.svc.Remove(ctx, companyID, id); err != nil {
				writeError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			util.JSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 2 && parts[1] == "transcripts" && r.Method == http.MethodGet:
		rows, err := h.svc.GetTranscriptsByInterview(ctx, companyID, parts[0])
		respond(w, r, rows, err)

	case len(parts) == 2 && r.Method == http.MethodPost:
		h.companyAction(w, r, companyID, parts[0], parts[1])

	default:
		util.JSONError(w, "not found", http.StatusNotFound)
	}
}

// companyAction handles POST /api/interviews/{id}/start|complete|cancel
func (h *Handler) companyAction(w http.ResponseWriter, r *http.Request, companyID, id, action string) {
	ctx := r.Context()
	switch action {
	case "start":
		iv, err := h.svc.StartInterview(ctx, companyID, id)
		respond(w, r, iv, err)
	case "complete":
		var in CompleteInput
		if !decodeOptionalJSON(w, r, &in) {
			return
		}
		iv, err := h.svc.CompleteInterview(ctx, companyID, id, in)
		respond(w, r, iv, err)
	case "cancel":
		var in struct {
			Reason string `json:"reason"`
		}
		if !decodeOptionalJSON(w, r, &in) {
			return
		}
		iv, err := h.svc.CancelInterview(ctx, companyID, id, in.Reason)
		respond(w, r, iv, err)
	default:
		util.JSONError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseListFilter(q url.Values) (ListFilter, error) {
	f := ListFilter{
		Search:      strings.TrimSpace(q.Get("search")),
		Status:      Status(strings.ToUpper(q.Get("status"))),
		JobPostID:   q.Get("jobPostId"),
		CandidateID: q.Get("candidateId"),
		SortBy:      q.Get("sortBy"),
		SortOrder:   strings.ToLower(q.Get("sortOrder")),
	}
	for _, p := range []struct {
		key string
		dst *int
	}{{"page", &f.Page}, {"limit", &f.Limit}} {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, fmt.Errorf("%s must be an integer", p.key)
			}
			*p.dst = n
		}
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		if v := q.Get(p.key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("%s must be an RFC 3339 timestamp", p.key)
			}
			*p.dst = &t
		}
	}
	return f, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		util.JSONError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		util.JSONError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.JSONOK(w, v)
}

// writeError maps service errors to HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *ValidationError
		terr *TransitionError
	)
	switch {
	case errors.As(err, &verr):
		util.JSONError(w, verr.Msg, http.StatusBadRequest)
	case errors.As(err, &terr):
		util.JSONError(w, terr.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		util.JSONError(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		util.JSONError(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrConflict):
		util.JSONError(w, "conflict", http.StatusConflict)
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		util.JSONError(w, "internal error", http.StatusInternalServerError)
	}
}
