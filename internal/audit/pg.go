package audit

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PG persists audit entries to the audit_log table. Audit failures are logged
// and swallowed: auditing must never fail the operation it describes.
type PG struct {
	DB *pgxpool.Pool
}

func (p *PG) Record(ctx context.Context, e Entry) {
	_, err := p.DB.Exec(ctx, `
		INSERT INTO audit_log
			(kind, registration_id, job_id, previous_status, new_status, actor, note, detail, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.Kind, nullIfEmpty(e.RegistrationID), nullIfEmpty(e.JobID),
		nullIfEmpty(e.PreviousStatus), nullIfEmpty(e.NewStatus),
		e.Actor, nullIfEmpty(e.Note), nullIfEmpty(e.Detail), e.At)
	if err != nil {
		slog.Error("audit insert failed", "err", err, "kind", e.Kind)
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
