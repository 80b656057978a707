package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"showreg/internal/domain"
	"showreg/internal/providers/smtp"
	"showreg/internal/store"
	"showreg/internal/store/memory"

	"showreg/internal/mailpool"
)

// stubTransport fails or succeeds per account id (or per recipient address)
// and records every delivery.
type stubTransport struct {
	mu               sync.Mutex
	failWith         map[string]error
	failPerRecipient map[string]error
	calls            []string
	messages         []smtp.Message
}

func (s *stubTransport) Deliver(_ context.Context, account store.EmailAccount, msg smtp.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, account.ID)
	s.messages = append(s.messages, msg)
	if err := s.failPerRecipient[msg.To]; err != nil {
		return err
	}
	return s.failWith[account.ID]
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func retryableErr() error {
	return &smtp.DeliveryError{Retryable: true, Code: 421, Err: errors.New("try again later")}
}

func fatalErr() error {
	return &smtp.DeliveryError{Retryable: false, Code: 550, Err: errors.New("no such user")}
}

func poolWith(t *testing.T, accounts ...store.EmailAccount) *mailpool.Pool {
	t.Helper()
	s := memory.New()
	for _, a := range accounts {
		s.PutAccount(a)
	}
	p := mailpool.New(s)
	if err := p.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return p
}

func testAccount(id string, lastUsed time.Time) store.EmailAccount {
	return store.EmailAccount{
		ID: id, Name: id, Host: "smtp.example.com", Port: 587,
		User: id, Secret: "s", FromAddress: id + "@example.com",
		Active: true, LastUsedAt: lastUsed,
	}
}

func testMessage() smtp.Message {
	return smtp.Message{To: "applicant@example.com", Subject: "s", Body: "b"}
}

func TestSendFailsOverToNextAccount(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	pool := poolWith(t, testAccount("a", base), testAccount("b", base.Add(time.Minute)))
	transport := &stubTransport{failWith: map[string]error{"a": retryableErr()}}
	e := &Executor{Pool: pool, Transport: transport, MaxAttempts: 3}

	out := e.Send(context.Background(), testMessage(), "")
	if !out.OK {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.AccountID != "b" || out.Attempts != 2 {
		t.Fatalf("expected success via b on attempt 2, got %+v", out)
	}

	a, _ := pool.Get("a")
	b, _ := pool.Get("b")
	if a.FailureCount != 1 || a.SuccessCount != 0 {
		t.Fatalf("account a counters: %+v", a)
	}
	if b.SuccessCount != 1 || b.FailureCount != 0 {
		t.Fatalf("account b counters: %+v", b)
	}
}

func TestSendFatalFailureStopsImmediately(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	pool := poolWith(t, testAccount("a", base), testAccount("b", base.Add(time.Minute)))
	transport := &stubTransport{failWith: map[string]error{"a": fatalErr()}}
	e := &Executor{Pool: pool, Transport: transport, MaxAttempts: 3}

	out := e.Send(context.Background(), testMessage(), "")
	if out.OK || out.Reason != ReasonFatal {
		t.Fatalf("expected fatal outcome, got %+v", out)
	}
	if transport.callCount() != 1 {
		t.Fatalf("fatal failure must not fail over, got %d attempts", transport.callCount())
	}
}

func TestSendPoolExhaustedAfterAllAccountsFail(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	pool := poolWith(t,
		testAccount("a", base),
		testAccount("b", base.Add(time.Minute)),
		testAccount("c", base.Add(2*time.Minute)),
	)
	transport := &stubTransport{failWith: map[string]error{
		"a": retryableErr(), "b": retryableErr(), "c": retryableErr(),
	}}
	e := &Executor{Pool: pool, Transport: transport, MaxAttempts: 3}

	out := e.Send(context.Background(), testMessage(), "")
	if out.OK || out.Reason != ReasonPoolExhausted {
		t.Fatalf("expected pool exhaustion, got %+v", out)
	}
	for _, id := range []string{"a", "b", "c"} {
		acc, _ := pool.Get(id)
		if acc.FailureCount != 1 {
			t.Fatalf("account %s: expected failureCount 1, got %d", id, acc.FailureCount)
		}
	}
}

func TestSendEmptyPool(t *testing.T) {
	pool := poolWith(t)
	e := &Executor{Pool: pool, Transport: &stubTransport{}, MaxAttempts: 3}

	out := e.Send(context.Background(), testMessage(), "")
	if out.OK || out.Reason != ReasonPoolExhausted {
		t.Fatalf("expected pool exhaustion on empty pool, got %+v", out)
	}
	if !errors.Is(out.Err, domain.ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", out.Err)
	}
}

func TestSendExplicitAccountNoFailover(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	pool := poolWith(t, testAccount("a", base), testAccount("b", base.Add(time.Minute)))
	transport := &stubTransport{failWith: map[string]error{"a": retryableErr()}}
	e := &Executor{Pool: pool, Transport: transport, MaxAttempts: 3}

	out := e.Send(context.Background(), testMessage(), "a")
	if out.OK {
		t.Fatalf("expected failure in single-account mode, got %+v", out)
	}
	if transport.callCount() != 1 {
		t.Fatalf("explicit account mode must not fail over, got %d attempts", transport.callCount())
	}

	out = e.Send(context.Background(), testMessage(), "b")
	if !out.OK || out.AccountID != "b" {
		t.Fatalf("expected success via b, got %+v", out)
	}

	out = e.Send(context.Background(), testMessage(), "nope")
	if out.OK || out.Reason != ReasonPoolExhausted {
		t.Fatalf("expected failure for unknown account, got %+v", out)
	}
}

func TestSendAttemptsAreSequentialPerRecipient(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	pool := poolWith(t, testAccount("a", base), testAccount("b", base.Add(time.Minute)))
	transport := &stubTransport{failWith: map[string]error{"a": retryableErr()}}
	e := &Executor{Pool: pool, Transport: transport, MaxAttempts: 3}

	_ = e.Send(context.Background(), testMessage(), "")
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.calls) != 2 || transport.calls[0] != "a" || transport.calls[1] != "b" {
		t.Fatalf("expected ordered attempts [a b], got %v", transport.calls)
	}
}
