package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"showreg/internal/domain"
	"showreg/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

const registrationCols = `
	id, registration_id, name, contact, program_name, type, performers,
	copyright, description, on_camera, COALESCE(remarks,''), status, created_at, updated_at`

func scanRegistration(row pgx.Row) (store.Registration, error) {
	var r store.Registration
	var status string
	err := row.Scan(&r.ID, &r.RegistrationID, &r.Name, &r.Contact, &r.ProgramName,
		&r.Type, &r.Performers, &r.Copyright, &r.Description, &r.OnCamera,
		&r.Remarks, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return store.Registration{}, err
	}
	r.Status = domain.Status(status)
	return r, nil
}

func (s *Store) GetRegistration(ctx context.Context, id string) (store.Registration, error) {
	row := s.DB.QueryRow(ctx, `SELECT`+registrationCols+` FROM registrations WHERE id=$1`, id)
	r, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Registration{}, fmt.Errorf("registration %s: %w", id, domain.ErrNotFound)
	}
	return r, err
}

func (s *Store) ListRegistrations(ctx context.Context, f store.RegistrationFilter) ([]store.Registration, error) {
	q := `SELECT` + registrationCols + ` FROM registrations`
	args := []any{}
	where := ""
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		where = fmt.Sprintf(" WHERE status = ANY($%d)", len(args))
	}
	if len(f.Types) > 0 {
		args = append(args, f.Types)
		if where == "" {
			where = fmt.Sprintf(" WHERE type = ANY($%d)", len(args))
		} else {
			where += fmt.Sprintf(" AND type = ANY($%d)", len(args))
		}
	}
	rows, err := s.DB.Query(ctx, q+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRegistration applies the patch only when updated_at still matches the
// caller's view. A zero-row update against an existing row is a lost race.
func (s *Store) UpdateRegistration(ctx context.Context, id string, expectedUpdatedAt time.Time, patch store.RegistrationPatch) (store.Registration, error) {
	set := "updated_at = now()"
	args := []any{id, expectedUpdatedAt}
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		set += fmt.Sprintf(", status=$%d", len(args))
	}
	if patch.Remarks != nil {
		args = append(args, *patch.Remarks)
		set += fmt.Sprintf(", remarks=$%d", len(args))
	}

	row := s.DB.QueryRow(ctx, `
		UPDATE registrations SET `+set+`
		WHERE id=$1 AND updated_at=$2
		RETURNING`+registrationCols, args...)
	r, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetRegistration(ctx, id); getErr != nil {
			return store.Registration{}, getErr
		}
		return store.Registration{}, fmt.Errorf("registration %s: %w", id, domain.ErrConflict)
	}
	return r, err
}

func (s *Store) CreateRegistration(ctx context.Context, r store.Registration) (store.Registration, error) {
	row := s.DB.QueryRow(ctx, `
		INSERT INTO registrations
			(id, registration_id, name, contact, program_name, type, performers,
			 copyright, description, on_camera, remarks, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
		RETURNING`+registrationCols,
		r.ID, r.RegistrationID, r.Name, r.Contact, r.ProgramName, r.Type,
		r.Performers, r.Copyright, r.Description, r.OnCamera, r.Remarks,
		string(r.Status), r.CreatedAt)
	return scanRegistration(row)
}

func (s *Store) ListAccounts(ctx context.Context) ([]store.EmailAccount, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, host, port, secure, smtp_user, secret, from_address, active,
		       success_count, failure_count, COALESCE(last_used_at, 'epoch'::timestamptz)
		FROM email_accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.EmailAccount
	for rows.Next() {
		var a store.EmailAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.Host, &a.Port, &a.Secure, &a.User,
			&a.Secret, &a.FromAddress, &a.Active, &a.SuccessCount, &a.FailureCount,
			&a.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FlushCounters writes counter state back. Counters only ever grow, so the
// GREATEST guard keeps a stale flush from rolling them back.
func (s *Store) FlushCounters(ctx context.Context, flushes []store.CounterFlush) error {
	for _, f := range flushes {
		_, err := s.DB.Exec(ctx, `
			UPDATE email_accounts
			SET success_count = GREATEST(success_count, $2),
			    failure_count = GREATEST(failure_count, $3),
			    last_used_at  = GREATEST(COALESCE(last_used_at, 'epoch'::timestamptz), $4)
			WHERE id=$1
		`, f.AccountID, f.SuccessCount, f.FailureCount, f.LastUsedAt)
		if err != nil {
			return err
		}
	}
	return nil
}
