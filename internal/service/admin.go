package service

import (
	"context"
	"fmt"
	"strings"

	"showreg/internal/approval"
	"showreg/internal/dispatch"
	"showreg/internal/domain"
	"showreg/internal/mailpool"
	"showreg/internal/providers/smtp"
	"showreg/internal/store"
)

// AdminService exposes the call shapes the admin HTTP/CLI layer consumes. It
// only receives an already-authenticated actor; authorization is external.
type AdminService struct {
	Store        store.RegistrationStore
	Machine      *approval.Machine
	Pool         *mailpool.Pool
	Executor     *dispatch.Executor
	Orchestrator *dispatch.Orchestrator
}

func (s *AdminService) Approve(ctx context.Context, registrationID string, level int, note, actor string) (store.Registration, error) {
	return s.Machine.Apply(ctx, registrationID, level, domain.ActionApprove, note, actor)
}

func (s *AdminService) Reject(ctx context.Context, registrationID string, level int, note, actor string) (store.Registration, error) {
	return s.Machine.Apply(ctx, registrationID, level, domain.ActionReject, note, actor)
}

func (s *AdminService) Override(ctx context.Context, registrationID string, status, note, actor string) (store.Registration, error) {
	target, ok := domain.ParseStatus(status)
	if !ok {
		return store.Registration{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return s.Machine.Override(ctx, registrationID, target, note, actor)
}

func (s *AdminService) GetRegistration(ctx context.Context, id string) (store.Registration, error) {
	return s.Store.GetRegistration(ctx, id)
}

func (s *AdminService) ListRegistrations(ctx context.Context, statuses, types []string) ([]store.Registration, error) {
	return s.Store.ListRegistrations(ctx, store.RegistrationFilter{Statuses: statuses, Types: types})
}

// SendSingleTest pushes a synthetic message through the executor. With
// accountID set only that account is attempted; otherwise normal failover runs.
func (s *AdminService) SendSingleTest(ctx context.Context, recipient, accountID string) dispatch.Outcome {
	msg := smtp.Message{
		To:      recipient,
		Subject: "Mail pool test",
		Body: "This is a test message from the registration portal.\n" +
			"If you received it, the sending account is working.",
	}
	return s.Executor.Send(ctx, msg, accountID)
}

func (s *AdminService) SendBulk(ctx context.Context, job domain.DispatchJob, actor string) (domain.DispatchResult, error) {
	if strings.TrimSpace(actor) == "" {
		return domain.DispatchResult{}, fmt.Errorf("%w: missing actor", domain.ErrValidation)
	}
	return s.Orchestrator.Dispatch(ctx, job, actor)
}

func (s *AdminService) PoolStats() mailpool.Stats {
	return s.Pool.Stats()
}
