package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MeetingStatus string

const (
	StatusNotStarted MeetingStatus = "not_started"
	StatusInProgress MeetingStatus = "in_progress"
	StatusSuccess    MeetingStatus = "success"
	StatusFailure    MeetingStatus = "failure"
)

// ParseStatus validates a raw status value from an external caller.
// NotStarted is a valid input: a stage may reset a meeting for reprocessing.
func ParseStatus(raw string) (MeetingStatus, error) {
	switch MeetingStatus(raw) {
	case StatusNotStarted, StatusInProgress, StatusSuccess, StatusFailure:
		return MeetingStatus(raw), nil
	default:
		return "", fmt.Errorf("unrecognized status %q", raw)
	}
}

// StatusRecord is the tracked state of one meeting moving through the
// pipeline. The durable store holds exactly one row per meeting; cache
// entries are a derived projection of that row.
type StatusRecord struct {
	MeetingID uuid.UUID     `json:"meeting_id"`
	Status    MeetingStatus `json:"status"`

	// LastStep is the pipeline stage that wrote the record last
	// (e.g. "transcribe", "summarize", "crm_push"). Debug aid, may be empty.
	LastStep string `json:"last_step,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`

	// Attempts counts accepted durable writes for this meeting.
	// It never decreases.
	Attempts int `json:"attempts"`

	// ErrorMessage is set only while Status is failure.
	ErrorMessage string `json:"error_message,omitempty"`
}

// NotStartedRecord is the synthetic default returned for meetings the
// pipeline has never written. It is not persisted and not cached.
func NotStartedRecord(meetingID uuid.UUID) StatusRecord {
	return StatusRecord{
		MeetingID: meetingID,
		Status:    StatusNotStarted,
	}
}
