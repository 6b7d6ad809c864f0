package audit

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists attempts to the connection_attempts table.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a store on an existing pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With("component", "audit"),
	}
}

const insertAttempt = `
INSERT INTO connection_attempts
    (id, device_id, operation, method, endpoint, success, fell_back, message, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Record inserts the attempt. Failures are logged, never propagated; an
// unavailable audit table must not break device operations.
func (s *Store) Record(ctx context.Context, attempt Attempt) {
	_, err := s.pool.Exec(ctx, insertAttempt,
		attempt.ID, attempt.DeviceID, attempt.Operation, attempt.Method,
		attempt.Endpoint, attempt.Success, attempt.FellBack,
		attempt.Message, attempt.DurationMS, attempt.CreatedAt,
	)
	if err != nil {
		s.logger.Warn("Failed to record connection attempt",
			"device_id", attempt.DeviceID,
			"operation", attempt.Operation,
			"error", err.Error(),
		)
	}
}
