package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseStatus_Valid(t *testing.T) {
	for _, raw := range []string{"not_started", "in_progress", "success", "failure"} {
		status, err := ParseStatus(raw)
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error: %v", raw, err)
		}
		if string(status) != raw {
			t.Errorf("ParseStatus(%q) = %q", raw, status)
		}
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	for _, raw := range []string{"", "done", "SUCCESS", "in progress"} {
		if _, err := ParseStatus(raw); err == nil {
			t.Errorf("ParseStatus(%q): expected error, got nil", raw)
		}
	}
}

func TestNotStartedRecord(t *testing.T) {
	id := uuid.New()
	rec := NotStartedRecord(id)

	if rec.MeetingID != id {
		t.Errorf("expected meeting id %s, got %s", id, rec.MeetingID)
	}
	if rec.Status != StatusNotStarted {
		t.Errorf("expected status %s, got %s", StatusNotStarted, rec.Status)
	}
	if rec.Attempts != 0 {
		t.Errorf("expected 0 attempts, got %d", rec.Attempts)
	}
	if !rec.UpdatedAt.IsZero() {
		t.Errorf("expected zero UpdatedAt, got %v", rec.UpdatedAt)
	}
}
