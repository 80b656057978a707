package util

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// registration codes carry the show-season prefix, a date, and a 4-digit
// per-day sequence, e.g. 26ZCW20260901-0042
const registrationCodePrefix = "26ZCW"

func NewJobID() string {
	t := time.Now().UTC()
	return "job_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NewRegistrationKey() string {
	t := time.Now().UTC()
	return "reg_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NewRegistrationCode(t time.Time, seq int) string {
	return fmt.Sprintf("%s%s-%04d", registrationCodePrefix, t.UTC().Format("20060102"), seq)
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
