package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"showreg/internal/domain"
	"showreg/internal/store"
)

// Store is an in-memory RegistrationStore/AccountStore. It backs unit tests and
// local development; it enforces the same optimistic-concurrency contract as the
// Postgres store.
type Store struct {
	mu            sync.Mutex
	registrations map[string]store.Registration
	accounts      map[string]store.EmailAccount
}

func New() *Store {
	return &Store{
		registrations: make(map[string]store.Registration),
		accounts:      make(map[string]store.EmailAccount),
	}
}

func (s *Store) GetRegistration(_ context.Context, id string) (store.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return store.Registration{}, fmt.Errorf("registration %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (s *Store) ListRegistrations(_ context.Context, f store.RegistrationFilter) ([]store.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Registration
	for _, r := range s.registrations {
		if len(f.Statuses) > 0 && !contains(f.Statuses, string(r.Status)) {
			continue
		}
		if len(f.Types) > 0 && !contains(f.Types, r.Type) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateRegistration(_ context.Context, id string, expectedUpdatedAt time.Time, patch store.RegistrationPatch) (store.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrations[id]
	if !ok {
		return store.Registration{}, fmt.Errorf("registration %s: %w", id, domain.ErrNotFound)
	}
	if !r.UpdatedAt.Equal(expectedUpdatedAt) {
		return store.Registration{}, fmt.Errorf("registration %s: %w", id, domain.ErrConflict)
	}
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	if patch.Remarks != nil {
		r.Remarks = *patch.Remarks
	}
	now := time.Now().UTC()
	if !now.After(r.UpdatedAt) {
		now = r.UpdatedAt.Add(time.Microsecond)
	}
	r.UpdatedAt = now
	s.registrations[id] = r
	return r, nil
}

func (s *Store) CreateRegistration(_ context.Context, r store.Registration) (store.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.registrations[r.ID]; exists {
		return store.Registration{}, fmt.Errorf("registration %s already exists: %w", r.ID, domain.ErrConflict)
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	s.registrations[r.ID] = r
	return r, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]store.EmailAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.EmailAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FlushCounters(_ context.Context, flushes []store.CounterFlush) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range flushes {
		a, ok := s.accounts[f.AccountID]
		if !ok {
			continue
		}
		if f.SuccessCount > a.SuccessCount {
			a.SuccessCount = f.SuccessCount
		}
		if f.FailureCount > a.FailureCount {
			a.FailureCount = f.FailureCount
		}
		if f.LastUsedAt.After(a.LastUsedAt) {
			a.LastUsedAt = f.LastUsedAt
		}
		s.accounts[f.AccountID] = a
	}
	return nil
}

// PutAccount seeds or replaces an account record.
func (s *Store) PutAccount(a store.EmailAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
