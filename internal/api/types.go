package api

import (
	"time"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/domain"
)

// UpdateStatusRequest is the write-endpoint body posted by pipeline stages.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Step   string `json:"step,omitempty"`
	// ErrorMessage is only meaningful with status=failure.
	ErrorMessage string `json:"error_message,omitempty"`
}

// StatusResponse is the read-endpoint view of a meeting's record.
type StatusResponse struct {
	MeetingID    string `json:"meeting_id"`
	Status       string `json:"status"`
	LastStep     string `json:"last_step,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
	Attempts     int    `json:"attempts"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// UpdateAck acknowledges a durably committed write.
type UpdateAck struct {
	MeetingID string `json:"meeting_id"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func statusResponse(rec domain.StatusRecord) StatusResponse {
	resp := StatusResponse{
		MeetingID:    rec.MeetingID.String(),
		Status:       string(rec.Status),
		LastStep:     rec.LastStep,
		Attempts:     rec.Attempts,
		ErrorMessage: rec.ErrorMessage,
	}
	if !rec.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(rec.UpdatedAt)
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
