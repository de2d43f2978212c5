// Package sqlite implements the durable status store on embedded SQLite
// (modernc.org/sqlite, no cgo). Used for single-node deployments and
// hermetic tests; the contract is identical to the PostgreSQL store.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/domain"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/tracker"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/watchdog"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS meeting_statuses (
    meeting_id    TEXT PRIMARY KEY,
    status        TEXT NOT NULL,
    last_step     TEXT NOT NULL DEFAULT '',
    updated_at    TIMESTAMP NOT NULL,
    attempts      INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NULL
);
`

const queryGetStatus = `
SELECT meeting_id, status, last_step, updated_at, attempts, error_message
FROM meeting_statuses
WHERE meeting_id = ?
`

const queryUpsertStatus = `
INSERT INTO meeting_statuses (meeting_id, status, last_step, updated_at, attempts, error_message)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT (meeting_id) DO UPDATE
SET status        = excluded.status,
    last_step     = excluded.last_step,
    updated_at    = excluded.updated_at,
    attempts      = meeting_statuses.attempts + 1,
    error_message = excluded.error_message
RETURNING attempts
`

const queryListStaleInProgress = `
SELECT meeting_id, status, last_step, updated_at, attempts, error_message
FROM meeting_statuses
WHERE status = 'in_progress'
  AND updated_at < ?
ORDER BY updated_at ASC
LIMIT ?
`

// Store implements tracker.Store and watchdog.Store using SQLite.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a SQLite store. opTimeout bounds each database operation;
// 0 disables the per-op deadline.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

// EnsureSchema creates the meeting_statuses table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get returns the status record for a meeting.
// Returns tracker.ErrNotFound when no record exists.
func (s *Store) Get(ctx context.Context, meetingID uuid.UUID) (domain.StatusRecord, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rec domain.StatusRecord
	var rawID string
	var errorMessage sql.NullString

	err := s.db.QueryRowContext(ctx, queryGetStatus, meetingID.String()).Scan(
		&rawID,
		&rec.Status,
		&rec.LastStep,
		&rec.UpdatedAt,
		&rec.Attempts,
		&errorMessage,
	)
	if err == sql.ErrNoRows {
		return domain.StatusRecord{}, tracker.ErrNotFound
	}
	if err != nil {
		return domain.StatusRecord{}, err
	}

	rec.MeetingID, err = uuid.Parse(rawID)
	if err != nil {
		return domain.StatusRecord{}, err
	}
	if errorMessage.Valid {
		rec.ErrorMessage = errorMessage.String
	}
	return rec, nil
}

// Upsert persists the record and atomically increments the stored attempts
// counter, returning the committed value.
func (s *Store) Upsert(ctx context.Context, rec domain.StatusRecord) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var attempts int
	err := s.db.QueryRowContext(ctx, queryUpsertStatus,
		rec.MeetingID.String(),
		string(rec.Status),
		rec.LastStep,
		rec.UpdatedAt,
		nullableString(rec.ErrorMessage),
	).Scan(&attempts)
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

// ListStaleInProgress returns meetings stuck in_progress since before
// olderThan, oldest first, limited to maxResults.
func (s *Store) ListStaleInProgress(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.StatusRecord, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListStaleInProgress, olderThan, maxResults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusRecord
	for rows.Next() {
		var rec domain.StatusRecord
		var rawID string
		var errorMessage sql.NullString

		err := rows.Scan(
			&rawID,
			&rec.Status,
			&rec.LastStep,
			&rec.UpdatedAt,
			&rec.Attempts,
			&errorMessage,
		)
		if err != nil {
			return nil, err
		}
		rec.MeetingID, err = uuid.Parse(rawID)
		if err != nil {
			return nil, err
		}
		if errorMessage.Valid {
			rec.ErrorMessage = errorMessage.String
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time interface assertions
var (
	_ tracker.Store  = (*Store)(nil)
	_ watchdog.Store = (*Store)(nil)
)
