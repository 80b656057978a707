package domain

// Status is the closed set of registration status labels. Gate statuses form the
// sequential review pipeline; side statuses are administrative terminals reachable
// from any state by direct override.
type Status string

const (
	StatusPending        Status = "pending"
	StatusFirstApproved  Status = "first-approved"
	StatusSecondApproved Status = "second-approved"
	StatusFinalApproved  Status = "final-approved"
	StatusFirstRejected  Status = "first-rejected"
	StatusSecondRejected Status = "second-rejected"
	StatusFinalRejected  Status = "final-rejected"

	StatusUnqualifiedForm    Status = "unqualified-form"
	StatusWithdrawnByOwner   Status = "withdrawn-by-owner"
	StatusContacted          Status = "contacted"
	StatusUnderConsideration Status = "under-consideration"
	StatusSpunOffIndependent Status = "spun-off-independent"
	StatusContactRefused     Status = "contact-refused"
	StatusUnreachable        Status = "unreachable"
)

var gateLevels = map[Status]int{
	StatusPending:        0,
	StatusFirstApproved:  1,
	StatusSecondApproved: 2,
	StatusFinalApproved:  3,
	StatusFirstRejected:  -1,
	StatusSecondRejected: -2,
	StatusFinalRejected:  -3,
}

var sideStatuses = map[Status]bool{
	StatusUnqualifiedForm:    true,
	StatusWithdrawnByOwner:   true,
	StatusContacted:          true,
	StatusUnderConsideration: true,
	StatusSpunOffIndependent: true,
	StatusContactRefused:     true,
	StatusUnreachable:        true,
}

// Side statuses whose override requires a non-empty note, same rule as gate rejections.
var noteRequiredSide = map[Status]bool{
	StatusUnqualifiedForm:    true,
	StatusContactRefused:     true,
	StatusUnreachable:        true,
	StatusUnderConsideration: true,
}

// Level returns the gate level for a gate status. ok is false for side statuses.
func (s Status) Level() (int, bool) {
	l, ok := gateLevels[s]
	return l, ok
}

// IsSide reports whether s is an administrative side status.
func (s Status) IsSide() bool { return sideStatuses[s] }

// IsKnown reports whether s is one of the enumerated labels.
func (s Status) IsKnown() bool {
	_, gate := gateLevels[s]
	return gate || sideStatuses[s]
}

// IsTerminal reports whether no gate transition may leave s: final approval,
// any rejection, or any side status.
func (s Status) IsTerminal() bool {
	if s.IsSide() {
		return true
	}
	l, ok := gateLevels[s]
	return ok && (l < 0 || l == 3)
}

// RequiresNote reports whether an override to s must carry a note.
func (s Status) RequiresNote() bool { return noteRequiredSide[s] }

// StatusForLevel maps a non-terminal gate level to its status.
func StatusForLevel(level int) (Status, bool) {
	switch level {
	case 0:
		return StatusPending, true
	case 1:
		return StatusFirstApproved, true
	case 2:
		return StatusSecondApproved, true
	case 3:
		return StatusFinalApproved, true
	case -1:
		return StatusFirstRejected, true
	case -2:
		return StatusSecondRejected, true
	case -3:
		return StatusFinalRejected, true
	}
	return "", false
}

// ParseStatus validates a raw label against the closed set.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.IsKnown()
}
