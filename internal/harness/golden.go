package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/claimledger/internal/canonical"
	"github.com/roach88/claimledger/internal/notify"
)

// TraceSnapshot is what golden files store for one scenario run.
type TraceSnapshot struct {
	ScenarioName string                `json:"scenario_name"`
	Steps        []StepOutcome         `json:"steps"`
	Trace        []notify.Notification `json:"trace"`
}

// Snapshot captures a result under the given name.
func Snapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{ScenarioName: name, Steps: result.Steps, Trace: result.Trace}
}

func (s TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, st := range s.Steps {
		m := map[string]any{
			"index":   st.Index,
			"invoke":  st.Invoke,
			"outcome": st.Outcome,
		}
		if st.Caller != "" {
			m["caller"] = st.Caller
		}
		if st.ClaimID != 0 {
			m["claim_id"] = st.ClaimID
		}
		steps[i] = m
	}

	trace := make([]any, len(s.Trace))
	for i, n := range s.Trace {
		fields := make([]any, len(n.Fields))
		for j, f := range n.Fields {
			fields[j] = map[string]any{"name": f.Name, "value": f.Value}
		}
		trace[i] = map[string]any{
			"seq":          n.Seq,
			"operation_id": n.OperationID,
			"kind":         string(n.Kind),
			"claim_id":     n.ClaimID,
			"fields":       fields,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"trace":         trace,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return canonical.Marshal(s.toCanonicalMap())
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
