package postgres

const queryGetStatus = `
SELECT meeting_id, status, last_step, updated_at, attempts, error_message
FROM meeting_statuses
WHERE meeting_id = $1
`

const queryUpsertStatus = `
INSERT INTO meeting_statuses (meeting_id, status, last_step, updated_at, attempts, error_message)
VALUES ($1, $2, $3, $4, 1, $5)
ON CONFLICT (meeting_id) DO UPDATE
SET status        = EXCLUDED.status,
    last_step     = EXCLUDED.last_step,
    updated_at    = EXCLUDED.updated_at,
    attempts      = meeting_statuses.attempts + 1,
    error_message = EXCLUDED.error_message
RETURNING attempts
`

const queryListStaleInProgress = `
SELECT meeting_id, status, last_step, updated_at, attempts, error_message
FROM meeting_statuses
WHERE status = 'in_progress'
  AND updated_at < $1
ORDER BY updated_at ASC
LIMIT $2
`
