package harness

import "github.com/roach88/claimledger/internal/notify"

// OutcomeOK marks a step that returned no error.
const OutcomeOK = "ok"

// StepOutcome records what one flow step returned.
type StepOutcome struct {
	Index  int    `json:"index"`
	Invoke string `json:"invoke"`
	Caller string `json:"caller,omitempty"`

	// Outcome is OutcomeOK or the claim error code.
	Outcome string `json:"outcome"`

	// ClaimID is the id the step targeted or created, 0 when unknown.
	ClaimID uint64 `json:"claim_id,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Steps []StepOutcome `json:"steps"`

	// Trace is every notification the run emitted, in seq order.
	Trace []notify.Notification `json:"trace"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Trace:  []notify.Notification{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
