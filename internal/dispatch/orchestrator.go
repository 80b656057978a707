package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"showreg/internal/audit"
	"showreg/internal/domain"
	"showreg/internal/observability"
	"showreg/internal/store"
	"showreg/internal/util"
)

type Registrations interface {
	GetRegistration(ctx context.Context, id string) (store.Registration, error)
	ListRegistrations(ctx context.Context, f store.RegistrationFilter) ([]store.Registration, error)
}

// StatusOverrider applies a direct administrative status override; the approval
// machine implements it.
type StatusOverrider interface {
	Override(ctx context.Context, id string, target domain.Status, note, actor string) (store.Registration, error)
}

// Orchestrator resolves a bulk job's recipients once, fans the sends out over a
// bounded worker pool, and aggregates per-recipient outcomes. One recipient's
// failure never aborts the batch.
type Orchestrator struct {
	Store    Registrations
	Machine  StatusOverrider
	Executor *Executor
	Audit    audit.Log
	Workers  int
}

type recipientJob struct {
	index int
	reg   store.Registration
}

func (o *Orchestrator) Dispatch(ctx context.Context, job domain.DispatchJob, actor string) (domain.DispatchResult, error) {
	if err := job.Validate(); err != nil {
		observability.DispatchJobs.WithLabelValues(string(job.EmailType), "rejected").Inc()
		return domain.DispatchResult{}, err
	}

	// Fail fast before any resolution work: a job against an empty pool would
	// otherwise produce a confusing all-failed report.
	if o.Executor.Pool.ActiveCount() == 0 {
		observability.DispatchJobs.WithLabelValues(string(job.EmailType), "rejected").Inc()
		return domain.DispatchResult{}, fmt.Errorf("dispatch: %w", domain.ErrPoolExhausted)
	}

	recipients, err := o.resolve(ctx, job)
	if err != nil {
		return domain.DispatchResult{}, err
	}
	if len(recipients) == 0 {
		observability.DispatchJobs.WithLabelValues(string(job.EmailType), "rejected").Inc()
		return domain.DispatchResult{}, fmt.Errorf("dispatch: %w", domain.ErrEmptyTarget)
	}

	jobID := util.NewJobID()
	result := domain.DispatchResult{
		JobID:    jobID,
		Total:    len(recipients),
		Outcomes: make([]domain.RecipientOutcome, len(recipients)),
	}

	workers := o.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(recipients) {
		workers = len(recipients)
	}

	jobs := make(chan recipientJob)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rj := range jobs {
				result.Outcomes[rj.index] = o.processRecipient(ctx, job, jobID, rj, actor)
			}
		}()
	}
	for i, reg := range recipients {
		jobs <- recipientJob{index: i, reg: reg}
	}
	close(jobs)
	wg.Wait()

	for _, out := range result.Outcomes {
		if out.OK {
			result.Success++
			observability.DispatchRecipients.WithLabelValues("ok").Inc()
		} else {
			result.Failed++
			observability.DispatchRecipients.WithLabelValues("failed").Inc()
			o.Audit.Record(ctx, audit.Entry{
				Kind:           audit.KindDispatchFailure,
				RegistrationID: out.RegistrationID,
				JobID:          jobID,
				Actor:          actor,
				Detail:         out.Reason,
				At:             util.NowUTC(),
			})
		}
	}

	o.Audit.Record(ctx, audit.Entry{
		Kind:   audit.KindDispatchSummary,
		JobID:  jobID,
		Actor:  actor,
		Detail: fmt.Sprintf("type=%s %s", job.EmailType, result.Summary()),
		At:     util.NowUTC(),
	})
	observability.DispatchJobs.WithLabelValues(string(job.EmailType), "completed").Inc()

	return result, nil
}

// resolve computes the target set exactly once at job start. Explicit ids win
// over filters; registrations without a usable contact are dropped; duplicates
// collapse on registration code.
func (o *Orchestrator) resolve(ctx context.Context, job domain.DispatchJob) ([]store.Registration, error) {
	var regs []store.Registration
	if len(job.TargetIDs) > 0 {
		for _, id := range job.TargetIDs {
			r, err := o.Store.GetRegistration(ctx, id)
			if err != nil {
				slog.Warn("dispatch target skipped", "id", id, "err", err)
				continue
			}
			regs = append(regs, r)
		}
	} else {
		all, err := o.Store.ListRegistrations(ctx, store.RegistrationFilter{
			Statuses: job.StatusFilter,
			Types:    job.TypeFilter,
		})
		if err != nil {
			return nil, err
		}
		regs = all
	}

	seen := make(map[string]struct{}, len(regs))
	out := regs[:0]
	for _, r := range regs {
		if strings.TrimSpace(r.Contact) == "" {
			slog.Warn("dispatch target has no contact", "registration_id", r.RegistrationID)
			continue
		}
		if _, dup := seen[r.RegistrationID]; dup {
			continue
		}
		seen[r.RegistrationID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

func (o *Orchestrator) processRecipient(ctx context.Context, job domain.DispatchJob, jobID string, rj recipientJob, actor string) domain.RecipientOutcome {
	reg := rj.reg
	outcome := domain.RecipientOutcome{
		Index:          rj.index,
		RegistrationID: reg.RegistrationID,
		Contact:        reg.Contact,
	}

	if job.EmailType == domain.EmailStatusUpdate {
		updated, err := o.Machine.Override(ctx, reg.ID, domain.Status(job.Content.NewStatus), job.Content.AdminNote, actor)
		if err != nil {
			outcome.Reason = fmt.Sprintf("status update: %v", err)
			return outcome
		}
		reg = updated
	}

	msg := renderMessage(job.EmailType, job.Content, reg, job.BCC)
	sendOut := o.Executor.Send(ctx, msg, "")
	if !sendOut.OK {
		outcome.Reason = fmt.Sprintf("%s: %v", sendOut.Reason, sendOut.Err)
		slog.Warn("dispatch recipient failed",
			"job_id", jobID,
			"registration_id", reg.RegistrationID,
			"reason", sendOut.Reason,
			"attempts", sendOut.Attempts,
		)
		return outcome
	}
	outcome.OK = true
	return outcome
}
