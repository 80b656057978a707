package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"showreg/internal/domain"
	"showreg/internal/observability"
	"showreg/internal/providers/smtp"
	"showreg/internal/store"
)

type Transport interface {
	Deliver(ctx context.Context, account store.EmailAccount, msg smtp.Message) error
}

type Pool interface {
	Select(excluded map[string]struct{}) (store.EmailAccount, error)
	Get(id string) (store.EmailAccount, error)
	RecordOutcome(accountID string, success bool)
	ActiveCount() int
}

// Outcome is the terminal result of one recipient's send cycle.
type Outcome struct {
	OK        bool
	AccountID string
	Attempts  int
	Reason    string
	Err       error
}

// Executor drives retry and account failover for a single recipient. Attempts
// are strictly sequential; each tried account is excluded from the next pick.
type Executor struct {
	Pool        Pool
	Transport   Transport
	MaxAttempts int
	Limiter     *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

const (
	ReasonPoolExhausted = "pool_exhausted"
	ReasonFatal         = "fatal"
	ReasonCanceled      = "canceled"
)

// Send delivers one message. With explicitAccountID set (single-account test
// mode) exactly one attempt is made against that account, no failover.
func (e *Executor) Send(ctx context.Context, msg smtp.Message, explicitAccountID string) Outcome {
	if explicitAccountID != "" {
		account, err := e.Pool.Get(explicitAccountID)
		if err != nil {
			return Outcome{Reason: ReasonPoolExhausted, Err: err}
		}
		return e.attempt(ctx, account, msg, 1)
	}

	max := e.MaxAttempts
	if max <= 0 {
		max = 3
	}

	excluded := map[string]struct{}{}
	var lastErr error
	for attempt := 0; attempt < max; attempt++ {
		account, err := e.Pool.Select(excluded)
		if err != nil {
			observability.PoolExhaustions.Inc()
			if lastErr == nil {
				lastErr = err
			}
			return Outcome{Attempts: attempt, Reason: ReasonPoolExhausted, Err: lastErr}
		}

		out := e.attempt(ctx, account, msg, attempt+1)
		if out.OK || out.Reason == ReasonFatal || out.Reason == ReasonCanceled {
			return out
		}
		lastErr = out.Err
		excluded[account.ID] = struct{}{}

		if attempt < max-1 {
			select {
			case <-time.After(smtp.Backoff(attempt)):
			case <-ctx.Done():
				return Outcome{Attempts: attempt + 1, Reason: ReasonCanceled, Err: ctx.Err()}
			}
		}
	}

	observability.PoolExhaustions.Inc()
	return Outcome{
		Attempts: max,
		Reason:   ReasonPoolExhausted,
		Err:      fmt.Errorf("%w: %v", domain.ErrPoolExhausted, lastErr),
	}
}

func (e *Executor) attempt(ctx context.Context, account store.EmailAccount, msg smtp.Message, attemptNo int) Outcome {
	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			return Outcome{AccountID: account.ID, Attempts: attemptNo, Reason: ReasonCanceled, Err: err}
		}
	}

	start := time.Now()
	_, err := e.breakerFor(account.ID).Execute(func() (any, error) {
		return nil, e.Transport.Deliver(ctx, account, msg)
	})

	if err == nil {
		e.Pool.RecordOutcome(account.ID, true)
		observability.SMTPSend.WithLabelValues("ok", account.ID).Inc()
		observability.SMTPLatency.Observe(time.Since(start).Seconds())
		return Outcome{OK: true, AccountID: account.ID, Attempts: attemptNo}
	}

	// Open breaker: no attempt reached the server, so no counter movement. The
	// account is still excluded by the caller, which is the failover we want.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.SMTPSend.WithLabelValues("cb_open", account.ID).Inc()
		return Outcome{AccountID: account.ID, Attempts: attemptNo, Reason: "breaker_open", Err: err}
	}

	e.Pool.RecordOutcome(account.ID, false)
	observability.SMTPSend.WithLabelValues("error", account.ID).Inc()

	if !smtp.ShouldRetry(err) {
		return Outcome{AccountID: account.ID, Attempts: attemptNo, Reason: ReasonFatal, Err: err}
	}
	return Outcome{AccountID: account.ID, Attempts: attemptNo, Reason: "retryable", Err: err}
}

func (e *Executor) breakerFor(accountID string) *gobreaker.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.breakers == nil {
		e.breakers = make(map[string]*gobreaker.CircuitBreaker)
	}
	cb, ok := e.breakers[accountID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "smtp:" + accountID,
			MaxRequests: 3,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		})
		e.breakers[accountID] = cb
	}
	return cb
}
