package claims

import (
	"slices"
	"strconv"

	"github.com/roach88/claimledger/internal/auth"
)

// ID identifies a claim. Assigned by the registry, starting at 1.
type ID uint64

// String renders the id in decimal.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a decimal claim id. Zero is never a valid id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, invalidArgument("claim id %q is not a positive integer", s)
	}
	return ID(n), nil
}

// Principal is an opaque identity capable of being authenticated.
type Principal = auth.Principal

// Claim is one insurance claim record.
type Claim struct {
	ID           ID        `json:"id"`
	Claimant     Principal `json:"claimant"`
	PolicyNumber string    `json:"policy_number"`
	Documents    []string  `json:"documents"`
	Status       Status    `json:"status"`

	// Version counts committed mutations; 1 right after creation.
	Version uint64 `json:"version"`
}

// Clone returns a deep copy.
func (c Claim) Clone() Claim {
	c.Documents = slices.Clone(c.Documents)
	if c.Documents == nil {
		c.Documents = []string{}
	}
	return c
}
