package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/notify"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Trace is the notification trace at the time of the check.
	Trace []notify.Notification
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nNotifications:\n")
		for _, n := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s claim=%d\n", n.Seq, n.Kind, n.ClaimID)
		}
	}
	return buf.String()
}

func (h *Harness) check(ctx context.Context, a Assertion) error {
	trace := h.recorder.Notifications()
	switch a.Type {
	case AssertClaimState:
		return h.assertClaimState(ctx, a)
	case AssertNotificationCount:
		return assertNotificationCount(trace, a)
	case AssertNotificationOrder:
		return assertNotificationOrder(trace, a)
	case AssertLastID:
		return h.assertLastID(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) assertClaimState(ctx context.Context, a Assertion) error {
	c, err := h.service.GetClaim(ctx, claims.ID(a.ClaimID))
	if err != nil {
		return &AssertionError{
			Type:     AssertClaimState,
			Expected: fmt.Sprintf("claim %d to exist", a.ClaimID),
			Actual:   err.Error(),
		}
	}
	if err := matchFields(claimFields(c), a.Expect); err != nil {
		return &AssertionError{
			Type:     AssertClaimState,
			Expected: fmt.Sprintf("claim %d matching %v", a.ClaimID, a.Expect),
			Actual:   err.Error(),
		}
	}
	return nil
}

// assertNotificationCount counts notifications, optionally of one kind.
func assertNotificationCount(trace []notify.Notification, a Assertion) error {
	count := 0
	for _, n := range trace {
		if a.Kind == "" || string(n.Kind) == a.Kind {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	what := "notifications"
	if a.Kind != "" {
		what = a.Kind + " notifications"
	}
	return &AssertionError{
		Type:     AssertNotificationCount,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    trace,
	}
}

// assertNotificationOrder requires the trace's kinds to equal Kinds exactly.
func assertNotificationOrder(trace []notify.Notification, a Assertion) error {
	actual := make([]string, len(trace))
	for i, n := range trace {
		actual[i] = string(n.Kind)
	}
	if reflect.DeepEqual(actual, a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertNotificationOrder,
		Expected: fmt.Sprintf("%v", a.Kinds),
		Actual:   fmt.Sprintf("%v", actual),
		Trace:    trace,
	}
}

func (h *Harness) assertLastID(ctx context.Context, a Assertion) error {
	last, err := h.service.LastID(ctx)
	if err != nil {
		return fmt.Errorf("read last id: %w", err)
	}
	if uint64(last) != a.ID {
		return &AssertionError{
			Type:     AssertLastID,
			Expected: fmt.Sprintf("%d", a.ID),
			Actual:   fmt.Sprintf("%d", last),
		}
	}
	return nil
}

// claimFields flattens a claim to the field names scenarios use.
func claimFields(c claims.Claim) map[string]any {
	docs := make([]any, len(c.Documents))
	for i, d := range c.Documents {
		docs[i] = d
	}
	return map[string]any{
		"id":            int64(c.ID),
		"claimant":      string(c.Claimant),
		"policy_number": c.PolicyNumber,
		"documents":     docs,
		"status":        c.Status.String(),
		"version":       int64(c.Version),
	}
}

// matchFields reports the first expected field that is absent from actual
// or differs from it. Extra actual fields are ignored.
func matchFields(actual, expected map[string]any) error {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			return fmt.Errorf("unknown claim field %q", k)
		}
		want := normalize(expected[k])
		if !reflect.DeepEqual(want, got) {
			return fmt.Errorf("field %q = %v, want %v", k, got, want)
		}
	}
	return nil
}

// normalize maps YAML-decoded values onto the types claimFields produces.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case uint64:
		return int64(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	default:
		return v
	}
}
