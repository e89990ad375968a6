package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/claimledger/internal/auth"
	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/kv"
	"github.com/roach88/claimledger/internal/notify"
	"github.com/roach88/claimledger/internal/policy"
	"github.com/roach88/claimledger/internal/testutil"
)

// Harness holds the registry built for one scenario run.
type Harness struct {
	store    *kv.Memory
	service  *claims.Service
	recorder *notify.Recorder
	clock    *testutil.DeterministicClock
	logger   *slog.Logger
}

// Run executes a scenario against a fresh in-memory registry.
//
// Run returns an error only when the scenario itself cannot be executed,
// e.g. a malformed argument or unreadable policy. Expectation and assertion
// failures are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	h.logger.Info("running scenario", "name", scenario.Name, "steps", len(scenario.Flow))

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}
	}

	for i, assertion := range scenario.Assertions {
		if err := h.check(ctx, assertion); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	result.Trace = h.recorder.Notifications()
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	rules := claims.DefaultRules()
	if scenario.Policy != "" {
		loaded, err := policy.Load(scenario.Policy)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		rules = loaded
	}

	principals := make([]auth.Principal, len(scenario.Principals))
	for i, p := range scenario.Principals {
		principals[i] = auth.Principal(p)
	}

	h := &Harness{
		store:    kv.NewMemory(),
		recorder: &notify.Recorder{},
		clock:    testutil.NewDeterministicClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	emitter := notify.NewEmitter(h.recorder,
		notify.WithSequencer(h.clock),
		notify.WithLogger(h.logger),
	)
	h.service = claims.New(h.store, auth.NewAllowList(principals...),
		claims.WithEmitter(emitter),
		claims.WithRules(rules),
		claims.WithOperationIDs(testutil.NewSequenceGenerator("op")),
		claims.WithLogger(h.logger),
	)
	return h, nil
}

func (h *Harness) runStep(ctx context.Context, index int, step FlowStep, result *Result) error {
	caller := claims.Principal(step.Caller)
	outcome := StepOutcome{Index: index, Invoke: step.Invoke, Caller: step.Caller}

	var (
		created claims.ID
		got     claims.Claim
		opErr   error
	)
	switch step.Invoke {
	case InvokeCreateClaim:
		claimant, err := stringArg(step.Args, "claimant")
		if err != nil {
			return err
		}
		policyNumber, err := stringArg(step.Args, "policy_number")
		if err != nil {
			return err
		}
		docs, err := stringsArg(step.Args, "documents")
		if err != nil {
			return err
		}
		created, opErr = h.service.CreateClaim(ctx, caller, claims.Principal(claimant), policyNumber, docs)
		outcome.ClaimID = uint64(created)

	case InvokeAddDocument:
		id, err := idArg(step.Args)
		if err != nil {
			return err
		}
		doc, err := stringArg(step.Args, "document")
		if err != nil {
			return err
		}
		outcome.ClaimID = uint64(id)
		opErr = h.service.AddDocument(ctx, caller, id, doc)

	case InvokeUpdateStatus:
		id, err := idArg(step.Args)
		if err != nil {
			return err
		}
		status, err := stringArg(step.Args, "status")
		if err != nil {
			return err
		}
		outcome.ClaimID = uint64(id)
		opErr = h.service.UpdateStatusByName(ctx, caller, id, status)

	case InvokeGetClaim:
		id, err := idArg(step.Args)
		if err != nil {
			return err
		}
		outcome.ClaimID = uint64(id)
		got, opErr = h.service.GetClaim(ctx, id)

	default:
		return fmt.Errorf("unknown invoke %q", step.Invoke)
	}

	outcome.Outcome = outcomeOf(opErr)
	result.Steps = append(result.Steps, outcome)

	prefix := fmt.Sprintf("flow[%d] %s", index, step.Invoke)
	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{}
	}

	if expect.Error != "" {
		if outcome.Outcome != expect.Error {
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s", prefix, expect.Error, describe(opErr)))
		}
		return nil
	}
	if opErr != nil {
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, opErr))
		return nil
	}
	if expect.ID != 0 && uint64(created) != expect.ID {
		result.AddError(fmt.Sprintf("%s: expected id %d, got %d", prefix, expect.ID, created))
	}
	if expect.Claim != nil {
		if err := matchFields(claimFields(got), expect.Claim); err != nil {
			result.AddError(fmt.Sprintf("%s: %v", prefix, err))
		}
	}
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := claims.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func describe(err error) string {
	if err == nil {
		return "success"
	}
	return err.Error()
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", name, v)
	}
	return s, nil
}

func stringsArg(args map[string]any, name string) ([]string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a list, got %T", name, v)
	}
	out := make([]string, len(list))
	for i, elem := range list {
		s, ok := elem.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q[%d] must be a string, got %T", name, i, elem)
		}
		out[i] = s
	}
	return out, nil
}

// idArg reads claim_id. Zero and negative ids are passed through as-is
// where representable so the registry can reject them.
func idArg(args map[string]any) (claims.ID, error) {
	v, ok := args["claim_id"]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", "claim_id")
	}
	switch n := v.(type) {
	case int:
		if n < 0 {
			return 0, fmt.Errorf("claim_id must be non-negative, got %d", n)
		}
		return claims.ID(n), nil
	case uint64:
		return claims.ID(n), nil
	case string:
		return claims.ParseID(n)
	default:
		return 0, fmt.Errorf("claim_id must be an integer, got %T", v)
	}
}
