package dispatch

import (
	"strings"

	"showreg/internal/domain"
	"showreg/internal/providers/smtp"
	"showreg/internal/store"
	"showreg/internal/util"
)

// Subject/body text per email type. HTML rendering of outgoing mail happens
// outside this core; these fill the placeholders the render step consumes.
var (
	resendSubject = "Registration received: {programName}"
	resendBody    = "Dear {name},\n\n" +
		"This is a copy of your registration confirmation.\n\n" +
		"Registration code: {registrationId}\n" +
		"Program: {programName}\n" +
		"Type: {type}\n" +
		"Performers: {performers}\n" +
		"Current status: {status}\n\n" +
		"Please keep this code for any inquiry."

	customBody = "Dear {name},\n\n{title}\n\n{message}"

	statusUpdateSubject = "Registration {registrationId}: status updated"
	statusUpdateBody    = "Dear {name},\n\n" +
		"The status of your registration {registrationId} ({programName}) is now: {status}.\n" +
		"{noteLine}"
)

// renderMessage builds the per-recipient payload. For status_update the caller
// has already applied the new status to reg.
func renderMessage(emailType domain.EmailType, content domain.DispatchContent, reg store.Registration, bcc string) smtp.Message {
	vars := map[string]string{
		"name":           reg.Name,
		"registrationId": reg.RegistrationID,
		"programName":    reg.ProgramName,
		"type":           reg.Type,
		"performers":     reg.Performers,
		"status":         string(reg.Status),
		"title":          content.Title,
		"message":        content.Message,
		"adminNote":      content.AdminNote,
		"deadline":       content.Deadline,
		"priority":       content.Priority,
	}

	var subject, body string
	switch emailType {
	case domain.EmailResend:
		subject = resendSubject
		body = resendBody
	case domain.EmailCustom:
		subject = firstNonEmpty(content.Subject, content.Title, "A message about your registration")
		body = customBody
	case domain.EmailReminder:
		subject = firstNonEmpty(content.Subject, content.Title, "Reminder about your registration")
		body = customBody
		var extra []string
		if content.Deadline != "" {
			extra = append(extra, "Deadline: {deadline}")
		}
		if content.Urgent {
			extra = append(extra, "This reminder is urgent.")
		}
		if content.ActionRequired {
			extra = append(extra, "Action on your side is required.")
		}
		if len(extra) > 0 {
			body += "\n\n" + strings.Join(extra, "\n")
		}
	case domain.EmailStatusUpdate:
		subject = firstNonEmpty(content.Subject, statusUpdateSubject)
		body = statusUpdateBody
		if content.AdminNote != "" {
			vars["noteLine"] = "Reviewer note: {adminNote}"
		} else {
			vars["noteLine"] = ""
		}
	}

	// two passes so values injected through vars (noteLine) get filled too
	body = util.RenderTemplate(util.RenderTemplate(body, vars), vars)
	return smtp.Message{
		To:      reg.Contact,
		BCC:     bcc,
		Subject: util.RenderTemplate(subject, vars),
		Body:    strings.TrimRight(body, "\n"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
