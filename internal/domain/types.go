package domain

import "fmt"

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

type EmailType string

const (
	EmailResend       EmailType = "resend"
	EmailCustom       EmailType = "custom"
	EmailReminder     EmailType = "reminder"
	EmailStatusUpdate EmailType = "status_update"
)

// DispatchContent carries the admin-authored template fields. Which fields are
// required depends on the email type.
type DispatchContent struct {
	Subject        string `json:"subject,omitempty"`
	Title          string `json:"title,omitempty"`
	Message        string `json:"message,omitempty"`
	NewStatus      string `json:"newStatus,omitempty"`
	AdminNote      string `json:"adminNote,omitempty"`
	Priority       string `json:"priority,omitempty"`
	Urgent         bool   `json:"urgent,omitempty"`
	Deadline       string `json:"deadline,omitempty"`
	ActionRequired bool   `json:"actionRequired,omitempty"`
}

// DispatchJob is one bulk-send request. TargetIDs and the filters are mutually
// exclusive: explicit ids take precedence and clear the filters.
type DispatchJob struct {
	EmailType    EmailType       `json:"emailType"`
	TargetIDs    []string        `json:"targetIds,omitempty"`
	StatusFilter []string        `json:"statusFilter,omitempty"`
	TypeFilter   []string        `json:"typeFilter,omitempty"`
	Content      DispatchContent `json:"content"`
	BCC          string          `json:"bcc,omitempty"`
}

func (j *DispatchJob) Validate() error {
	switch j.EmailType {
	case EmailResend:
	case EmailCustom, EmailReminder:
		if j.Content.Title == "" && j.Content.Message == "" {
			return fmt.Errorf("%w: %s requires title or message", ErrValidation, j.EmailType)
		}
	case EmailStatusUpdate:
		target, ok := ParseStatus(j.Content.NewStatus)
		if !ok {
			return fmt.Errorf("%w: unknown target status %q", ErrValidation, j.Content.NewStatus)
		}
		if target == StatusPending {
			return fmt.Errorf("%w: cannot bulk-update back to %s", ErrValidation, StatusPending)
		}
		if target.RequiresNote() && j.Content.AdminNote == "" {
			return fmt.Errorf("%w: status %s: %s", ErrValidation, target, ErrMissingNote)
		}
	default:
		return fmt.Errorf("%w: unknown email type %q", ErrValidation, j.EmailType)
	}
	if len(j.TargetIDs) > 0 {
		j.StatusFilter = nil
		j.TypeFilter = nil
	}
	return nil
}

// RecipientOutcome is one per-recipient result. Index tags the position in the
// resolved target set; batch completion order is unordered.
type RecipientOutcome struct {
	Index          int    `json:"index"`
	RegistrationID string `json:"registrationId"`
	Contact        string `json:"contact"`
	OK             bool   `json:"ok"`
	Reason         string `json:"reason,omitempty"`
}

type DispatchResult struct {
	JobID    string             `json:"jobId"`
	Total    int                `json:"total"`
	Success  int                `json:"success"`
	Failed   int                `json:"failed"`
	Outcomes []RecipientOutcome `json:"outcomes"`
}

// Summary renders the qualified-success line shown to admins.
func (r DispatchResult) Summary() string {
	return fmt.Sprintf("%d of %d sent", r.Success, r.Total)
}
