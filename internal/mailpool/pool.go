package mailpool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"showreg/internal/domain"
	"showreg/internal/store"
)

// Pool owns the SMTP account set for the process lifetime. Selection is
// round-robin by recency: least-recently-used active account first, account id
// as the tie-break. Counters are authoritative in memory and flushed back to
// the account records periodically.
type Pool struct {
	store store.AccountStore

	mu       sync.Mutex
	accounts map[string]*store.EmailAccount
	now      func() time.Time
}

type Stats struct {
	TotalEmails    int     `json:"totalEmails"`
	ActiveEmails   int     `json:"activeEmails"`
	InactiveEmails int     `json:"inactiveEmails"`
	SuccessRate    float64 `json:"successRate"`
	RecentlyUsed   int     `json:"recentlyUsed"`
}

func New(s store.AccountStore) *Pool {
	return &Pool{
		store:    s,
		accounts: make(map[string]*store.EmailAccount),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reload re-reads the account set. In-memory counters survive for accounts that
// are still present, so a pool edit mid-flight cannot roll usage accounting back.
func (p *Pool) Reload(ctx context.Context) error {
	fresh, err := p.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]*store.EmailAccount, len(fresh))
	for i := range fresh {
		a := fresh[i]
		if prev, ok := p.accounts[a.ID]; ok {
			if prev.SuccessCount > a.SuccessCount {
				a.SuccessCount = prev.SuccessCount
			}
			if prev.FailureCount > a.FailureCount {
				a.FailureCount = prev.FailureCount
			}
			if prev.LastUsedAt.After(a.LastUsedAt) {
				a.LastUsedAt = prev.LastUsedAt
			}
		}
		next[a.ID] = &a
	}
	p.accounts = next
	return nil
}

// Select picks the least-recently-used active account not in excluded.
func (p *Pool) Select(excluded map[string]struct{}) (store.EmailAccount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var candidates []*store.EmailAccount
	for _, a := range p.accounts {
		if !a.Active {
			continue
		}
		if _, skip := excluded[a.ID]; skip {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return store.EmailAccount{}, fmt.Errorf("select account: %w", domain.ErrPoolExhausted)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].LastUsedAt.Equal(candidates[j].LastUsedAt) {
			return candidates[i].LastUsedAt.Before(candidates[j].LastUsedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return *candidates[0], nil
}

// Get returns one account by id regardless of recency, for explicit-account
// test sends. Inactive accounts are still refused.
func (p *Pool) Get(id string) (store.EmailAccount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.accounts[id]
	if !ok {
		return store.EmailAccount{}, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if !a.Active {
		return store.EmailAccount{}, fmt.Errorf("account %s is inactive: %w", id, domain.ErrPoolExhausted)
	}
	return *a, nil
}

// RecordOutcome bumps the per-account counters. lastUsedAt only moves on
// success, which keeps selection biased away from accounts that have been
// failing lately.
func (p *Pool) RecordOutcome(accountID string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.accounts[accountID]
	if !ok {
		// account removed between selection and outcome; nothing to account against
		return
	}
	if success {
		a.SuccessCount++
		a.LastUsedAt = p.now()
	} else {
		a.FailureCount++
	}
}

func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, a := range p.accounts {
		if a.Active {
			n++
		}
	}
	return n
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var st Stats
	var success, failure int64
	cutoff := p.now().Add(-24 * time.Hour)
	for _, a := range p.accounts {
		st.TotalEmails++
		if a.Active {
			st.ActiveEmails++
		} else {
			st.InactiveEmails++
		}
		success += a.SuccessCount
		failure += a.FailureCount
		if a.LastUsedAt.After(cutoff) {
			st.RecentlyUsed++
		}
	}
	if total := success + failure; total > 0 {
		st.SuccessRate = float64(success) / float64(total)
	}
	return st
}

// FlushCounters persists the current counter state.
func (p *Pool) FlushCounters(ctx context.Context) error {
	p.mu.Lock()
	flushes := make([]store.CounterFlush, 0, len(p.accounts))
	for _, a := range p.accounts {
		flushes = append(flushes, store.CounterFlush{
			AccountID:    a.ID,
			SuccessCount: a.SuccessCount,
			FailureCount: a.FailureCount,
			LastUsedAt:   a.LastUsedAt,
		})
	}
	p.mu.Unlock()

	if len(flushes) == 0 {
		return nil
	}
	return p.store.FlushCounters(ctx, flushes)
}
