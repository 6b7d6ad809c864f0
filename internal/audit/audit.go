// Package audit records the terminal outcome of every connection-manager
// operation so operators can watch centralized-API degradation (fallbacks)
// over time.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Attempt is one recorded operation outcome.
type Attempt struct {
	ID         uuid.UUID `json:"id"`
	DeviceID   string    `json:"device_id"`
	Operation  string    `json:"operation"`
	Method     string    `json:"method"`
	Endpoint   string    `json:"endpoint,omitempty"`
	Success    bool      `json:"success"`
	FellBack   bool      `json:"fell_back"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Recorder persists attempts. Recording is best effort; implementations
// must not fail the operation they describe.
type Recorder interface {
	Record(ctx context.Context, attempt Attempt)
}

// NopRecorder discards attempts, used in tests and when auditing is
// disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Attempt) {}
