package dispatch

import (
	"strings"
	"testing"

	"showreg/internal/domain"
	"showreg/internal/store"
)

func renderFixtureRegistration() store.Registration {
	return store.Registration{
		RegistrationID: "26ZCW20260901-0007",
		Name:           "Li Hua",
		Contact:        "lihua@example.com",
		ProgramName:    "Solo violin",
		Type:           "instrumental",
		Performers:     "Li Hua",
		Status:         domain.StatusFirstApproved,
	}
}

func TestRenderResendFillsRegistrationFields(t *testing.T) {
	msg := renderMessage(domain.EmailResend, domain.DispatchContent{}, renderFixtureRegistration(), "")
	if !strings.Contains(msg.Subject, "Solo violin") {
		t.Fatalf("subject missing program name: %q", msg.Subject)
	}
	for _, want := range []string{"26ZCW20260901-0007", "Li Hua", "first-approved", "instrumental"} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Body)
		}
	}
	if strings.Contains(msg.Body, "{") {
		t.Fatalf("unfilled placeholder left in body:\n%s", msg.Body)
	}
}

func TestRenderReminderFlags(t *testing.T) {
	content := domain.DispatchContent{
		Title:          "Submit your recording",
		Message:        "We still need your video.",
		Deadline:       "2026-09-15",
		Urgent:         true,
		ActionRequired: true,
	}
	msg := renderMessage(domain.EmailReminder, content, renderFixtureRegistration(), "")
	for _, want := range []string{"2026-09-15", "urgent", "Action on your side"} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("reminder body missing %q:\n%s", want, msg.Body)
		}
	}

	plain := renderMessage(domain.EmailReminder, domain.DispatchContent{Title: "t"}, renderFixtureRegistration(), "")
	if strings.Contains(plain.Body, "Deadline") || strings.Contains(plain.Body, "urgent") {
		t.Fatalf("flags rendered without being set:\n%s", plain.Body)
	}
}

func TestRenderStatusUpdateNoteLine(t *testing.T) {
	reg := renderFixtureRegistration()
	reg.Status = domain.StatusFinalApproved

	withNote := renderMessage(domain.EmailStatusUpdate, domain.DispatchContent{AdminNote: "well done"}, reg, "")
	if !strings.Contains(withNote.Body, "well done") {
		t.Fatalf("expected note line:\n%s", withNote.Body)
	}
	if !strings.Contains(withNote.Body, "final-approved") {
		t.Fatalf("expected new status:\n%s", withNote.Body)
	}

	noNote := renderMessage(domain.EmailStatusUpdate, domain.DispatchContent{}, reg, "")
	if strings.Contains(noNote.Body, "Reviewer note") {
		t.Fatalf("unexpected note line:\n%s", noNote.Body)
	}
}

func TestRenderCustomSubjectFallback(t *testing.T) {
	msg := renderMessage(domain.EmailCustom, domain.DispatchContent{Title: "Schedule change"}, renderFixtureRegistration(), "bcc@example.com")
	if msg.Subject != "Schedule change" {
		t.Fatalf("expected title as subject, got %q", msg.Subject)
	}
	if msg.BCC != "bcc@example.com" {
		t.Fatalf("expected bcc carried through, got %q", msg.BCC)
	}
	if msg.To != "lihua@example.com" {
		t.Fatalf("expected recipient contact, got %q", msg.To)
	}
}
