// Package httpadapter exposes the intake API: session upload, review
// decisions, state reads and the progress event stream.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/notelib/score-intake/internal/core/domain"
	"github.com/notelib/score-intake/internal/core/ports"
	"github.com/notelib/score-intake/internal/events"
	"github.com/notelib/score-intake/internal/observability/metrics"
)

const defaultListLimit = 50

type RouterConfig struct {
	ServiceName      string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	ingestor ports.SessionIngestor
	reviewer ports.SessionReviewer
	reader   ports.SessionReader
	bus      *events.Bus
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
	cfg      RouterConfig
}

func NewRouter(
	ingestor ports.SessionIngestor,
	reviewer ports.SessionReviewer,
	reader ports.SessionReader,
	bus *events.Bus,
	serverMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	cfg RouterConfig,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "intake-api"
	}
	return &Router{
		ingestor: ingestor,
		reviewer: reviewer,
		reader:   reader,
		bus:      bus,
		metrics:  serverMetrics,
		logger:   logger,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/sessions", rt.sessions)
	mux.HandleFunc("/v1/sessions/", rt.sessionSubtree)
	mux.HandleFunc("/v1/events", rt.streamAllEvents)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadSession(w, r)
	case http.MethodGet:
		rt.listSessions(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadSession(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		rt.recordUpload("rejected", 0)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	input := domain.UploadInput{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
	}

	if raw := strings.TrimSpace(r.FormValue("metadata")); raw != "" {
		var meta domain.ExtractedMetadata
		decoder := json.NewDecoder(strings.NewReader(raw))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&meta); err != nil {
			rt.recordUpload("rejected", 0)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid metadata json: " + err.Error()})
			return
		}
		input.Metadata = &meta
	}
	if raw := strings.TrimSpace(r.FormValue("confidence")); raw != "" {
		confidence, err := strconv.Atoi(raw)
		if err != nil {
			rt.recordUpload("rejected", 0)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "confidence must be an integer"})
			return
		}
		input.ConfidenceScore = confidence
	}

	session, err := rt.ingestor.Upload(r.Context(), input, file)
	if err != nil {
		rt.recordUpload("rejected", 0)
		rt.writeError(w, err)
		return
	}

	rt.recordUpload("accepted", fileHeader.Size)
	writeJSON(w, http.StatusAccepted, session)
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	status := domain.SessionStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status == "" {
		status = domain.StatusPendingReview
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	sessions, err := rt.reader.ListByStatus(r.Context(), status, limit)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []domain.UploadSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// sessionSubtree dispatches /v1/sessions/{id}, /{id}/approve, /{id}/reject
// and /{id}/events.
func (rt *Router) sessionSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	switch action {
	case "":
		rt.getSession(w, r, id)
	case "approve":
		rt.approveSession(w, r, id)
	case "reject":
		rt.rejectSession(w, r, id)
	case "events":
		rt.streamSessionEvents(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
	}
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	session, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type reviewRequest struct {
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason"`
}

func (rt *Router) approveSession(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeReview(w, r)
	if !ok {
		return
	}

	session, err := rt.reviewer.Approve(r.Context(), id, req.Reviewer)
	if err != nil {
		rt.recordDecision("approve", "error")
		rt.writeError(w, err)
		return
	}

	rt.recordDecision("approve", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": session,
	})
}

func (rt *Router) rejectSession(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeReview(w, r)
	if !ok {
		return
	}

	outcome, err := rt.reviewer.Reject(r.Context(), id, req.Reviewer, strings.TrimSpace(req.Reason))
	if err != nil {
		rt.recordDecision("reject", "error")
		rt.writeError(w, err)
		return
	}

	rt.recordDecision("reject", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"session":        outcome.Session,
		"cleanup_failed": outcome.Cleanup.Failed(),
	})
}

func (rt *Router) decodeReview(w http.ResponseWriter, r *http.Request) (reviewRequest, bool) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return reviewRequest{}, false
	}
	if strings.TrimSpace(req.Reviewer) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reviewer is required"})
		return reviewRequest{}, false
	}
	return req, true
}

func (rt *Router) recordUpload(outcome string, size int64) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.cfg.ServiceName, outcome, size)
	}
}

func (rt *Router) recordDecision(decision, outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordReviewDecision(rt.cfg.ServiceName, decision, outcome)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	status, payload := mapError(err)
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
