package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/domain"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/tracker"
)

// StatusTracker is the core consumed by the HTTP surface.
type StatusTracker interface {
	GetStatus(ctx context.Context, meetingID uuid.UUID) (domain.StatusRecord, error)
	UpdateStatus(ctx context.Context, meetingID uuid.UUID, status domain.MeetingStatus, step, errorMessage string) (domain.StatusRecord, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// CachePinger provides cache health status for the /health endpoint.
type CachePinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	tracker StatusTracker
	// writeToken restricts the write endpoint to pipeline stages.
	// Empty disables the check (trusted-network deployments).
	writeToken string
	db         HealthChecker
	cache      CachePinger
}

func NewHandler(tracker StatusTracker) *Handler {
	return &Handler{tracker: tracker}
}

// WithWriteToken requires the given bearer token on status writes.
func (h *Handler) WithWriteToken(token string) *Handler {
	h.writeToken = token
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithCachePinger sets the cache health checker for verbose /health responses.
func (h *Handler) WithCachePinger(cache CachePinger) *Handler {
	h.cache = cache
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case strings.HasPrefix(path, "/meetings/") && strings.HasSuffix(path, "/status"):
		meetingID, ok := parseMeetingPath(path)
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.getStatus(w, r, meetingID)
		case http.MethodPost:
			h.updateStatus(w, r, meetingID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// parseMeetingPath extracts the meeting ID from /meetings/{id}/status.
func parseMeetingPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "meetings" || parts[2] != "status" {
		return "", false
	}
	return parts[1], true
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request, rawID string) {
	meetingID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid meeting id")
		return
	}

	rec, err := h.tracker.GetStatus(r.Context(), meetingID)
	if err != nil {
		log.Printf("api: get status meeting=%s error: %v", meetingID, err)
		if errors.Is(err, tracker.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "status store unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read status")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse(rec))
}

// maxRequestBodySize is the maximum allowed request body size (64KB).
const maxRequestBodySize = 64 << 10

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, rawID string) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	meetingID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid meeting id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.tracker.UpdateStatus(r.Context(), meetingID, status, req.Step, req.ErrorMessage)
	if err != nil {
		log.Printf("api: update status meeting=%s step=%q error: %v", meetingID, req.Step, err)
		if errors.Is(err, tracker.ErrWriteFailed) {
			writeError(w, http.StatusInternalServerError, "status write failed")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, UpdateAck{
		MeetingID: rec.MeetingID.String(),
		Status:    string(rec.Status),
		Attempts:  rec.Attempts,
	})
}

// authorized checks the bearer token on write requests. Authentication
// proper lives upstream; this only fences the write path off from read-only
// consumers when a token is configured.
func (h *Handler) authorized(r *http.Request) bool {
	if h.writeToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	token := auth[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.writeToken)) == 1
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || (h.db == nil && h.cache == nil) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["database"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["database"] = "healthy"
		}
	}

	// A dead cache degrades latency, not correctness; reads fall back to
	// the store. Report it without flipping the overall status.
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			resp.Components["cache"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["cache"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
