package claims

import (
	"slices"
)

// Limits bound claim contents. Zero means unbounded.
type Limits struct {
	MaxDocuments         int
	MaxDocumentRefBytes  int
	MaxPolicyNumberBytes int
}

// Transitions maps a status to the statuses it may move to. A nil map is
// fully permissive. In a non-nil map a status without an entry is terminal,
// and staying in the same status must be listed explicitly.
type Transitions map[Status][]Status

// Allows reports whether a claim in from may move to to.
func (t Transitions) Allows(from, to Status) bool {
	if t == nil {
		return true
	}
	return slices.Contains(t[from], to)
}

// Rules are the business limits the service enforces.
type Rules struct {
	Limits      Limits
	Transitions Transitions

	// RequireNonEmpty rejects an empty claimant, policy number or
	// document ref.
	RequireNonEmpty bool
}

// DefaultRules accepts any input and any transition. Bounds, non-empty
// checks and a transition graph are opt-in through a policy file.
func DefaultRules() Rules {
	return Rules{}
}
