package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one claim registry test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Principals are the identities the verifier accepts.
	Principals []string `yaml:"principals"`

	// Policy is an optional CUE policy file. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Policy string `yaml:"policy,omitempty"`

	// Flow is executed in order against a fresh registry.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are checked after the whole flow has run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Flow step kinds.
const (
	InvokeCreateClaim  = "create_claim"
	InvokeAddDocument  = "add_document"
	InvokeUpdateStatus = "update_status"
	InvokeGetClaim     = "get_claim"
)

// FlowStep invokes one registry operation.
//
// Arguments by kind:
//
//	create_claim:  claimant, policy_number, documents (optional list)
//	add_document:  claim_id, document
//	update_status: claim_id, status
//	get_claim:     claim_id
type FlowStep struct {
	Invoke string `yaml:"invoke"`

	// Caller is the principal performing the step. Not used by get_claim.
	Caller string `yaml:"caller,omitempty"`

	Args map[string]any `yaml:"args"`

	// Expect is optional. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause describes the expected outcome of a step.
type ExpectClause struct {
	// ID is the id create_claim must return. Zero skips the check.
	ID uint64 `yaml:"id,omitempty"`

	// Error is the expected error code, e.g. NOT_FOUND. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Claim is a subset match against the record get_claim returns.
	Claim map[string]any `yaml:"claim,omitempty"`
}

// Assertion validates the final state or the notification trace.
type Assertion struct {
	// Type is one of claim_state, notification_count, notification_order, last_id.
	Type string `yaml:"type"`

	// ClaimID selects the claim (claim_state).
	ClaimID uint64 `yaml:"claim_id,omitempty"`

	// Expect holds expected claim fields, subset match (claim_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Kind restricts the count to one notification kind (notification_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of notifications (notification_count).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected notification order (notification_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// ID is the expected highest assigned id (last_id).
	ID uint64 `yaml:"id,omitempty"`
}

// Assertion types.
const (
	AssertClaimState        = "claim_state"
	AssertNotificationCount = "notification_count"
	AssertNotificationOrder = "notification_order"
	AssertLastID            = "last_id"
)

// LoadScenario reads a scenario file, rejecting unknown fields, and resolves
// the policy path relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Policy != "" && !filepath.IsAbs(scenario.Policy) {
		scenario.Policy = filepath.Join(filepath.Dir(path), scenario.Policy)
	}
	if scenario.Policy != "" {
		if _, err := os.Stat(scenario.Policy); err != nil {
			return nil, fmt.Errorf("invalid scenario: policy file not found: %s", scenario.Policy)
		}
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		switch step.Invoke {
		case InvokeCreateClaim, InvokeAddDocument, InvokeUpdateStatus:
			if step.Caller == "" {
				return fmt.Errorf("flow[%d]: caller is required for %s", i, step.Invoke)
			}
		case InvokeGetClaim:
		case "":
			return fmt.Errorf("flow[%d]: invoke is required", i)
		default:
			return fmt.Errorf("flow[%d]: unknown invoke %q", i, step.Invoke)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != nil && step.Expect.Error != "" && (step.Expect.ID != 0 || step.Expect.Claim != nil) {
			return fmt.Errorf("flow[%d].expect: error cannot be combined with id or claim", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertClaimState:
		if a.ClaimID == 0 {
			return fmt.Errorf("assertions[%d]: claim_id is required for claim_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for claim_state", index)
		}
	case AssertNotificationCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertNotificationOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for notification_order", index)
		}
	case AssertLastID:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
