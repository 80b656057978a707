package util

import (
	"strings"
	"testing"
	"time"
)

func TestNewRegistrationCode(t *testing.T) {
	ts := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	got := NewRegistrationCode(ts, 42)
	if got != "26ZCW20260901-0042" {
		t.Fatalf("unexpected code %q", got)
	}
}

func TestIDPrefixes(t *testing.T) {
	if !strings.HasPrefix(NewJobID(), "job_") {
		t.Fatalf("job id prefix missing")
	}
	if !strings.HasPrefix(NewRegistrationKey(), "reg_") {
		t.Fatalf("registration key prefix missing")
	}
	if NewJobID() == NewJobID() {
		t.Fatalf("job ids must be unique")
	}
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("Hi {name}, ref {ref}", map[string]string{"name": "Li", "ref": "26ZCW"})
	if got != "Hi Li, ref 26ZCW" {
		t.Fatalf("unexpected render %q", got)
	}
	got = RenderTemplate("no vars", nil)
	if got != "no vars" {
		t.Fatalf("unexpected render %q", got)
	}
}
