package audit

import (
	"context"
	"log/slog"
	"time"
)

// Entry kinds.
const (
	KindTransition      = "transition"
	KindDispatchSummary = "dispatch_summary"
	KindDispatchFailure = "dispatch_failure"
)

// Entry is one audit record: a state transition, a bulk-dispatch completion, or
// a per-recipient dispatch failure.
type Entry struct {
	Kind           string
	RegistrationID string
	JobID          string
	PreviousStatus string
	NewStatus      string
	Actor          string
	Note           string
	Detail         string
	At             time.Time
}

type Log interface {
	Record(ctx context.Context, e Entry)
}

// Slog writes audit entries to the structured log. Always available; used as
// the fallback when no durable sink is configured.
type Slog struct{}

func (Slog) Record(_ context.Context, e Entry) {
	slog.Info("audit",
		"kind", e.Kind,
		"registration_id", e.RegistrationID,
		"job_id", e.JobID,
		"previous_status", e.PreviousStatus,
		"new_status", e.NewStatus,
		"actor", e.Actor,
		"note", e.Note,
		"detail", e.Detail,
		"at", e.At,
	)
}

// Multi fans an entry out to several sinks.
type Multi []Log

func (m Multi) Record(ctx context.Context, e Entry) {
	for _, l := range m {
		l.Record(ctx, e)
	}
}
