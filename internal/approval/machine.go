package approval

import (
	"context"
	"fmt"
	"strings"

	"showreg/internal/audit"
	"showreg/internal/domain"
	"showreg/internal/observability"
	"showreg/internal/store"
	"showreg/internal/util"
)

// Machine validates and applies status transitions for a single registration.
// It is pure data transition: notifications stay with the dispatch engine.
type Machine struct {
	Store store.RegistrationStore
	Audit audit.Log
}

// Decide computes the next status for a gate action without touching storage.
//
// From level L in {0,1,2}: approve moves to L+1, reject moves to -(L+1).
// Terminal statuses (final approval, any rejection, any side state) admit no
// gate action. A live gate status that does not match the actor's level means
// the caller acted on a stale view.
func Decide(current domain.Status, actorLevel int, action domain.Action, note string) (domain.Status, error) {
	if !current.IsKnown() {
		return "", fmt.Errorf("%w: unknown status %q", domain.ErrValidation, current)
	}
	if actorLevel < 0 || actorLevel > 2 {
		return "", fmt.Errorf("%w: no gate action from level %d", domain.ErrInvalidTransition, actorLevel)
	}
	if current.IsTerminal() {
		return "", fmt.Errorf("%w: %s is terminal for the gate pipeline", domain.ErrInvalidTransition, current)
	}
	level, _ := current.Level()
	if level != actorLevel {
		return "", fmt.Errorf("%w: registration is at level %d, caller acted on level %d", domain.ErrConflict, level, actorLevel)
	}

	switch action {
	case domain.ActionApprove:
		next, _ := domain.StatusForLevel(level + 1)
		return next, nil
	case domain.ActionReject:
		if strings.TrimSpace(note) == "" {
			return "", fmt.Errorf("reject: %w", domain.ErrMissingNote)
		}
		next, _ := domain.StatusForLevel(-(level + 1))
		return next, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", domain.ErrValidation, action)
}

// Apply runs one gate transition against storage with optimistic concurrency
// and emits the audit entry.
func (m *Machine) Apply(ctx context.Context, id string, actorLevel int, action domain.Action, note, actor string) (store.Registration, error) {
	reg, err := m.Store.GetRegistration(ctx, id)
	if err != nil {
		return store.Registration{}, err
	}

	next, err := Decide(reg.Status, actorLevel, action, note)
	if err != nil {
		observability.Transitions.WithLabelValues(string(action), "rejected").Inc()
		return store.Registration{}, err
	}
	return m.write(ctx, reg, next, note, actor, string(action))
}

// Override moves a registration directly to a target status from any state.
// This is the administrative escape hatch for side states and for bulk status
// updates; note rules follow the target status.
func (m *Machine) Override(ctx context.Context, id string, target domain.Status, note, actor string) (store.Registration, error) {
	if !target.IsKnown() {
		return store.Registration{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, target)
	}
	if target.RequiresNote() && strings.TrimSpace(note) == "" {
		return store.Registration{}, fmt.Errorf("override to %s: %w", target, domain.ErrMissingNote)
	}

	reg, err := m.Store.GetRegistration(ctx, id)
	if err != nil {
		return store.Registration{}, err
	}
	return m.write(ctx, reg, target, note, actor, "override")
}

func (m *Machine) write(ctx context.Context, reg store.Registration, next domain.Status, note, actor, action string) (store.Registration, error) {
	patch := store.RegistrationPatch{Status: &next}
	if strings.TrimSpace(note) != "" {
		remarks := appendNote(reg.Remarks, note)
		patch.Remarks = &remarks
	}

	updated, err := m.Store.UpdateRegistration(ctx, reg.ID, reg.UpdatedAt, patch)
	if err != nil {
		observability.Transitions.WithLabelValues(action, "conflict").Inc()
		return store.Registration{}, err
	}

	observability.Transitions.WithLabelValues(action, "ok").Inc()
	m.Audit.Record(ctx, audit.Entry{
		Kind:           audit.KindTransition,
		RegistrationID: updated.RegistrationID,
		PreviousStatus: string(reg.Status),
		NewStatus:      string(next),
		Actor:          actor,
		Note:           strings.TrimSpace(note),
		At:             util.NowUTC(),
	})
	return updated, nil
}

// appendNote adds a timestamp-prefixed note line to the remarks field.
func appendNote(remarks, note string) string {
	line := "[" + util.NowUTC().Format("2006-01-02 15:04") + "] " + strings.TrimSpace(note)
	if remarks == "" {
		return line
	}
	return remarks + "\n" + line
}
