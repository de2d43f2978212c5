// Package postgres implements the durable status store on PostgreSQL.
// The meeting_statuses row is the source of truth for a meeting's pipeline
// state; the upsert is a single atomic statement so concurrent writers
// serialize on the row and the attempts counter never undercounts.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/domain"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/tracker"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/watchdog"
)

// Store implements tracker.Store and watchdog.Store using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a PostgreSQL store. opTimeout bounds each database operation;
// 0 disables the per-op deadline.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
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
	var errorMessage sql.NullString

	err := s.db.QueryRowContext(ctx, queryGetStatus, meetingID).Scan(
		&rec.MeetingID,
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
	if errorMessage.Valid {
		rec.ErrorMessage = errorMessage.String
	}
	return rec, nil
}

// Upsert persists the record and atomically increments the stored attempts
// counter, returning the committed value. The row lock serializes concurrent
// writers for the same meeting; last writer wins on the payload columns.
func (s *Store) Upsert(ctx context.Context, rec domain.StatusRecord) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var attempts int
	err := s.db.QueryRowContext(ctx, queryUpsertStatus,
		rec.MeetingID,
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
		var errorMessage sql.NullString

		err := rows.Scan(
			&rec.MeetingID,
			&rec.Status,
			&rec.LastStep,
			&rec.UpdatedAt,
			&rec.Attempts,
			&errorMessage,
		)
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
