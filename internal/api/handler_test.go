package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/domain"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/tracker"
)

type mockTracker struct {
	getRec domain.StatusRecord
	getErr error

	updateRec domain.StatusRecord
	updateErr error

	gotStatus domain.MeetingStatus
	gotStep   string
	gotErrMsg string
	updates   int
}

func (m *mockTracker) GetStatus(ctx context.Context, meetingID uuid.UUID) (domain.StatusRecord, error) {
	if m.getErr != nil {
		return domain.StatusRecord{}, m.getErr
	}
	if m.getRec.MeetingID == uuid.Nil {
		return domain.NotStartedRecord(meetingID), nil
	}
	return m.getRec, nil
}

func (m *mockTracker) UpdateStatus(ctx context.Context, meetingID uuid.UUID, status domain.MeetingStatus, step, errorMessage string) (domain.StatusRecord, error) {
	m.updates++
	m.gotStatus = status
	m.gotStep = step
	m.gotErrMsg = errorMessage
	if m.updateErr != nil {
		return domain.StatusRecord{}, m.updateErr
	}
	if m.updateRec.MeetingID == uuid.Nil {
		return domain.StatusRecord{MeetingID: meetingID, Status: status, LastStep: step, Attempts: 1}, nil
	}
	return m.updateRec, nil
}

func doRequest(h *Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGetStatus_KnownMeeting(t *testing.T) {
	id := uuid.New()
	mt := &mockTracker{getRec: domain.StatusRecord{
		MeetingID: id,
		Status:    domain.StatusSuccess,
		LastStep:  "crm_push",
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Attempts:  2,
	}}
	h := NewHandler(mt)

	rr := doRequest(h, http.MethodGet, "/meetings/"+id.String()+"/status", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" || resp.LastStep != "crm_push" || resp.Attempts != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.UpdatedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("unexpected updated_at: %q", resp.UpdatedAt)
	}
}

func TestGetStatus_UnknownMeetingReturnsNotStarted(t *testing.T) {
	h := NewHandler(&mockTracker{})

	rr := doRequest(h, http.MethodGet, "/meetings/"+uuid.NewString()+"/status", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "not_started" {
		t.Errorf("expected not_started, got %q", resp.Status)
	}
	if resp.UpdatedAt != "" {
		t.Errorf("synthetic default must not carry updated_at, got %q", resp.UpdatedAt)
	}
}

func TestGetStatus_InvalidMeetingID(t *testing.T) {
	h := NewHandler(&mockTracker{})

	rr := doRequest(h, http.MethodGet, "/meetings/not-a-uuid/status", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestGetStatus_StoreUnavailableMapsTo503(t *testing.T) {
	h := NewHandler(&mockTracker{getErr: tracker.ErrStoreUnavailable})

	rr := doRequest(h, http.MethodGet, "/meetings/"+uuid.NewString()+"/status", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}

func TestUpdateStatus_Accepted(t *testing.T) {
	mt := &mockTracker{}
	h := NewHandler(mt)
	id := uuid.New()

	rr := doRequest(h, http.MethodPost, "/meetings/"+id.String()+"/status",
		`{"status":"in_progress","step":"transcribe"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var ack UpdateAck
	if err := json.Unmarshal(rr.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.MeetingID != id.String() || ack.Status != "in_progress" || ack.Attempts != 1 {
		t.Errorf("unexpected ack: %+v", ack)
	}
	if mt.gotStatus != domain.StatusInProgress || mt.gotStep != "transcribe" {
		t.Errorf("tracker called with status=%q step=%q", mt.gotStatus, mt.gotStep)
	}
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	mt := &mockTracker{}
	h := NewHandler(mt)

	rr := doRequest(h, http.MethodPost, "/meetings/"+uuid.NewString()+"/status",
		`{"status":"done"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if mt.updates != 0 {
		t.Errorf("tracker must not be called for an invalid status, got %d calls", mt.updates)
	}
}

func TestUpdateStatus_InvalidJSON(t *testing.T) {
	h := NewHandler(&mockTracker{})

	rr := doRequest(h, http.MethodPost, "/meetings/"+uuid.NewString()+"/status", "{broken", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestUpdateStatus_WriteFailureMapsTo500(t *testing.T) {
	h := NewHandler(&mockTracker{updateErr: tracker.ErrWriteFailed})

	rr := doRequest(h, http.MethodPost, "/meetings/"+uuid.NewString()+"/status",
		`{"status":"success","step":"crm_push"}`, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}

func TestUpdateStatus_WriteTokenEnforced(t *testing.T) {
	mt := &mockTracker{}
	h := NewHandler(mt).WithWriteToken("pipeline-secret")
	path := "/meetings/" + uuid.NewString() + "/status"
	body := `{"status":"success"}`

	rr := doRequest(h, http.MethodPost, path, body, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rr.Code)
	}

	rr = doRequest(h, http.MethodPost, path, body, map[string]string{"Authorization": "Bearer wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rr.Code)
	}

	rr = doRequest(h, http.MethodPost, path, body, map[string]string{"Authorization": "Bearer pipeline-secret"})
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWriteTokenNotRequiredForReads(t *testing.T) {
	h := NewHandler(&mockTracker{}).WithWriteToken("pipeline-secret")

	rr := doRequest(h, http.MethodGet, "/meetings/"+uuid.NewString()+"/status", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for unauthenticated read, got %d", rr.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	h := NewHandler(&mockTracker{})

	for _, path := range []string{"/", "/meetings", "/meetings/abc", "/meetings/x/status/extra"} {
		rr := doRequest(h, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("path %q: expected 404, got %d", path, rr.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewHandler(&mockTracker{})

	rr := doRequest(h, http.MethodDelete, "/meetings/"+uuid.NewString()+"/status", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestHealth_Simple(t *testing.T) {
	h := NewHandler(&mockTracker{})

	rr := doRequest(h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected ok, got %q", resp.Status)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }
func (p fakePinger) Ping(ctx context.Context) error        { return p.err }

func TestHealth_VerboseDegradedDatabase(t *testing.T) {
	h := NewHandler(&mockTracker{}).
		WithHealthChecker(fakePinger{err: context.DeadlineExceeded}).
		WithCachePinger(fakePinger{})

	rr := doRequest(h, http.MethodGet, "/health?verbose=true", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected degraded, got %q", resp.Status)
	}
	if resp.Components["cache"] != "healthy" {
		t.Errorf("expected healthy cache, got %q", resp.Components["cache"])
	}
}

func TestHealth_DeadCacheDoesNotDegradeOverallStatus(t *testing.T) {
	h := NewHandler(&mockTracker{}).
		WithHealthChecker(fakePinger{}).
		WithCachePinger(fakePinger{err: context.DeadlineExceeded})

	rr := doRequest(h, http.MethodGet, "/health?verbose=true", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with dead cache, got %d", rr.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected ok, got %q", resp.Status)
	}
	if !strings.HasPrefix(resp.Components["cache"], "unhealthy") {
		t.Errorf("expected unhealthy cache component, got %q", resp.Components["cache"])
	}
}
