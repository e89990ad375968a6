package claims

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a claim. The zero value is invalid.
type Status uint8

const (
	statusInvalid Status = iota
	StatusPending
	StatusInProgress
	StatusApproved
	StatusDenied
)

// Statuses lists every valid status in declaration order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusApproved, StatusDenied}

// String returns the canonical name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "InProgress"
	case StatusApproved:
		return "Approved"
	case StatusDenied:
		return "Denied"
	case statusInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusApproved, StatusDenied:
		return true
	case statusInvalid:
		return false
	default:
		return false
	}
}

// ParseStatus parses a status name. Matching is case-insensitive and
// accepts in_progress / in-progress for InProgress.
func ParseStatus(name string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pending":
		return StatusPending, nil
	case "inprogress", "in_progress", "in-progress":
		return StatusInProgress, nil
	case "approved":
		return StatusApproved, nil
	case "denied":
		return StatusDenied, nil
	default:
		return statusInvalid, invalidArgument("unknown status %q", name)
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal status: invalid value %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
