package approval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"showreg/internal/audit"
	"showreg/internal/domain"
	"showreg/internal/store"
	"showreg/internal/store/memory"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureAudit) Record(_ context.Context, e audit.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func seedRegistration(t *testing.T, s *memory.Store, status domain.Status) store.Registration {
	t.Helper()
	now := time.Now().UTC()
	reg, err := s.CreateRegistration(context.Background(), store.Registration{
		ID:             "reg_1",
		RegistrationID: "26ZCW20260901-0001",
		Name:           "Li Hua",
		Contact:        "lihua@example.com",
		ProgramName:    "Solo violin",
		Type:           "instrumental",
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("seed registration: %v", err)
	}
	return reg
}

func newMachine(s *memory.Store) (*Machine, *captureAudit) {
	ca := &captureAudit{}
	return &Machine{Store: s, Audit: ca}, ca
}

func TestDecideGateAdvancement(t *testing.T) {
	cases := []struct {
		current domain.Status
		level   int
		action  domain.Action
		want    domain.Status
	}{
		{domain.StatusPending, 0, domain.ActionApprove, domain.StatusFirstApproved},
		{domain.StatusFirstApproved, 1, domain.ActionApprove, domain.StatusSecondApproved},
		{domain.StatusSecondApproved, 2, domain.ActionApprove, domain.StatusFinalApproved},
		{domain.StatusPending, 0, domain.ActionReject, domain.StatusFirstRejected},
		{domain.StatusFirstApproved, 1, domain.ActionReject, domain.StatusSecondRejected},
		{domain.StatusSecondApproved, 2, domain.ActionReject, domain.StatusFinalRejected},
	}
	for _, c := range cases {
		got, err := Decide(c.current, c.level, c.action, "because")
		if err != nil {
			t.Fatalf("%s %s at %d: %v", c.action, c.current, c.level, err)
		}
		if got != c.want {
			t.Fatalf("%s %s at %d: expected %s, got %s", c.action, c.current, c.level, c.want, got)
		}
	}
}

func TestDecideTerminalStatesRefuseGateActions(t *testing.T) {
	terminals := []domain.Status{
		domain.StatusFinalApproved,
		domain.StatusFirstRejected, domain.StatusSecondRejected, domain.StatusFinalRejected,
		domain.StatusWithdrawnByOwner, domain.StatusUnreachable, domain.StatusContacted,
	}
	for _, s := range terminals {
		for _, action := range []domain.Action{domain.ActionApprove, domain.ActionReject} {
			for level := 0; level <= 2; level++ {
				if _, err := Decide(s, level, action, "n"); !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("%s %s at %d: expected ErrInvalidTransition, got %v", action, s, level, err)
				}
			}
		}
	}
}

func TestDecideRejectRequiresNote(t *testing.T) {
	for _, note := range []string{"", "   ", "\t\n"} {
		if _, err := Decide(domain.StatusPending, 0, domain.ActionReject, note); !errors.Is(err, domain.ErrMissingNote) {
			t.Fatalf("note %q: expected ErrMissingNote, got %v", note, err)
		}
	}
	if _, err := Decide(domain.StatusPending, 0, domain.ActionApprove, ""); err != nil {
		t.Fatalf("approve without note: %v", err)
	}
}

func TestDecideStaleLevelConflicts(t *testing.T) {
	// registration already advanced past the level the caller believes it is at
	if _, err := Decide(domain.StatusSecondApproved, 1, domain.ActionApprove, ""); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := Decide(domain.StatusPending, 2, domain.ActionReject, "n"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestApplyAppendsNoteAndAudits(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := seedRegistration(t, s, domain.StatusPending)
	m, ca := newMachine(s)

	updated, err := m.Apply(ctx, reg.ID, 0, domain.ActionApprove, "looks good", "alice")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if updated.Status != domain.StatusFirstApproved {
		t.Fatalf("expected first-approved, got %s", updated.Status)
	}
	if !strings.Contains(updated.Remarks, "looks good") {
		t.Fatalf("expected note in remarks, got %q", updated.Remarks)
	}
	if !strings.HasPrefix(updated.Remarks, "[") {
		t.Fatalf("expected timestamp prefix, got %q", updated.Remarks)
	}
	if !updated.UpdatedAt.After(reg.UpdatedAt) {
		t.Fatalf("expected updatedAt bump")
	}

	if len(ca.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(ca.entries))
	}
	e := ca.entries[0]
	if e.Kind != audit.KindTransition || e.PreviousStatus != "pending" ||
		e.NewStatus != "first-approved" || e.Actor != "alice" {
		t.Fatalf("unexpected audit entry: %+v", e)
	}
}

func TestApplyStaleViewConflict(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := seedRegistration(t, s, domain.StatusPending)
	m, _ := newMachine(s)

	if _, err := m.Apply(ctx, reg.ID, 0, domain.ActionApprove, "", "alice"); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// second submit of the same level-0 action sees first-approved now
	if _, err := m.Apply(ctx, reg.ID, 0, domain.ActionApprove, "", "bob"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on double submit, got %v", err)
	}
}

func TestConcurrentUpdateOneWinner(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := seedRegistration(t, s, domain.StatusPending)

	next := domain.StatusFirstApproved
	if _, err := s.UpdateRegistration(ctx, reg.ID, reg.UpdatedAt, store.RegistrationPatch{Status: &next}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	// second writer still holds the old updatedAt
	if _, err := s.UpdateRegistration(ctx, reg.ID, reg.UpdatedAt, store.RegistrationPatch{Status: &next}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale writer, got %v", err)
	}
}

func TestOverrideSideStates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := seedRegistration(t, s, domain.StatusFinalApproved)
	m, ca := newMachine(s)

	// side override is legal even from a terminal gate status
	updated, err := m.Override(ctx, reg.ID, domain.StatusWithdrawnByOwner, "", "alice")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if updated.Status != domain.StatusWithdrawnByOwner {
		t.Fatalf("expected withdrawn-by-owner, got %s", updated.Status)
	}

	// note-required side state without a note
	if _, err := m.Override(ctx, reg.ID, domain.StatusUnreachable, "  ", "alice"); !errors.Is(err, domain.ErrMissingNote) {
		t.Fatalf("expected ErrMissingNote, got %v", err)
	}

	if _, err := m.Override(ctx, reg.ID, "nonsense", "n", "alice"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if len(ca.entries) != 1 {
		t.Fatalf("expected exactly the successful override audited, got %d entries", len(ca.entries))
	}
}

func TestEndToEndPipeline(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := seedRegistration(t, s, domain.StatusPending)
	m, _ := newMachine(s)

	r1, err := m.Apply(ctx, reg.ID, 0, domain.ActionApprove, "ok", "alice")
	if err != nil {
		t.Fatalf("approve level 0: %v", err)
	}
	if r1.Status != domain.StatusFirstApproved {
		t.Fatalf("expected first-approved, got %s", r1.Status)
	}

	r2, err := m.Apply(ctx, reg.ID, 1, domain.ActionReject, "issue", "bob")
	if err != nil {
		t.Fatalf("reject level 1: %v", err)
	}
	if r2.Status != domain.StatusSecondRejected {
		t.Fatalf("expected second-rejected, got %s", r2.Status)
	}

	if _, err := m.Apply(ctx, reg.ID, 2, domain.ActionApprove, "", "carol"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after rejection, got %v", err)
	}
}

func TestApplyMissingRegistration(t *testing.T) {
	m, _ := newMachine(memory.New())
	if _, err := m.Apply(context.Background(), "reg_missing", 0, domain.ActionApprove, "", "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
