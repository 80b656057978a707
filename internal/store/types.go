package store

import (
	"context"
	"time"

	"showreg/internal/domain"
)

// Registration is one applicant entry as persisted. RegistrationID is the
// business code (26ZCW + date + sequence), assigned once at creation.
type Registration struct {
	ID             string
	RegistrationID string
	Name           string
	Contact        string
	ProgramName    string
	Type           string
	Performers     string
	Copyright      string
	Description    string
	OnCamera       bool
	Remarks        string
	Status         domain.Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RegistrationPatch is the writable subset applied by a state transition.
// Nil fields are left untouched.
type RegistrationPatch struct {
	Status  *domain.Status
	Remarks *string
}

type RegistrationFilter struct {
	Statuses []string
	Types    []string
}

// EmailAccount is one SMTP credential in the pool. Secret is write-only: list
// operations return it blank.
type EmailAccount struct {
	ID           string
	Name         string
	Host         string
	Port         int
	Secure       bool // direct TLS; false means STARTTLS
	User         string
	Secret       string
	FromAddress  string
	Active       bool
	SuccessCount int64
	FailureCount int64
	LastUsedAt   time.Time
}

// CounterFlush carries one account's in-memory counter state back to storage.
type CounterFlush struct {
	AccountID    string
	SuccessCount int64
	FailureCount int64
	LastUsedAt   time.Time
}

// RegistrationStore is the external registration record store. Update applies
// optimistic concurrency: it fails with domain.ErrConflict when the stored
// updated_at no longer equals expectedUpdatedAt.
type RegistrationStore interface {
	GetRegistration(ctx context.Context, id string) (Registration, error)
	ListRegistrations(ctx context.Context, f RegistrationFilter) ([]Registration, error)
	UpdateRegistration(ctx context.Context, id string, expectedUpdatedAt time.Time, patch RegistrationPatch) (Registration, error)
	CreateRegistration(ctx context.Context, r Registration) (Registration, error)
}

type AccountStore interface {
	ListAccounts(ctx context.Context) ([]EmailAccount, error)
	FlushCounters(ctx context.Context, flushes []CounterFlush) error
}
