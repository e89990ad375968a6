package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/policy"
)

// NewPolicyCommand creates the policy command group.
func NewPolicyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Work with CUE policy files",
	}
	cmd.AddCommand(newPolicyCheckCommand(rootOpts))
	return cmd
}

func newPolicyCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a policy file and print the effective rules",
		Long: `Load a CUE policy file, apply defaults and print the resulting bounds and
transition graph.

Exit codes:
  0 - Policy valid
  1 - Policy invalid`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			rules, err := policy.Load(args[0])
			if err != nil {
				if ferr := out.Error("INVALID_POLICY", err.Error(), nil); ferr != nil {
					return ferr
				}
				return WrapExitError(ExitFailure, "invalid policy", err)
			}
			return out.Success(newRulesView(rules))
		},
	}
}

type rulesView struct {
	MaxDocuments         int                 `json:"max_documents"`
	MaxDocumentRefBytes  int                 `json:"max_document_ref_bytes"`
	MaxPolicyNumberBytes int                 `json:"max_policy_number_bytes"`
	RequireNonEmpty      bool                `json:"require_non_empty"`
	Transitions          map[string][]string `json:"transitions,omitempty"`
}

func newRulesView(r claims.Rules) rulesView {
	v := rulesView{
		MaxDocuments:         r.Limits.MaxDocuments,
		MaxDocumentRefBytes:  r.Limits.MaxDocumentRefBytes,
		MaxPolicyNumberBytes: r.Limits.MaxPolicyNumberBytes,
		RequireNonEmpty:      r.RequireNonEmpty,
	}
	if r.Transitions != nil {
		v.Transitions = make(map[string][]string, len(r.Transitions))
		for from, tos := range r.Transitions {
			names := make([]string, len(tos))
			for i, to := range tos {
				names[i] = to.String()
			}
			v.Transitions[from.String()] = names
		}
	}
	return v
}

func (v rulesView) Text() string {
	bound := func(n int) string {
		if n == 0 {
			return "unbounded"
		}
		return fmt.Sprint(n)
	}

	var b strings.Builder
	b.WriteString("Policy valid\n")
	fmt.Fprintf(&b, "  Max documents:           %s\n", bound(v.MaxDocuments))
	fmt.Fprintf(&b, "  Max document ref bytes:  %s\n", bound(v.MaxDocumentRefBytes))
	fmt.Fprintf(&b, "  Max policy number bytes: %s\n", bound(v.MaxPolicyNumberBytes))
	fmt.Fprintf(&b, "  Require non-empty:       %t\n", v.RequireNonEmpty)
	if v.Transitions == nil {
		b.WriteString("  Transitions:             any")
		return b.String()
	}
	b.WriteString("  Transitions:")
	for _, s := range claims.Statuses {
		to, ok := v.Transitions[s.String()]
		if !ok {
			fmt.Fprintf(&b, "\n    %s -> (terminal)", s)
			continue
		}
		fmt.Fprintf(&b, "\n    %s -> %s", s, strings.Join(to, ", "))
	}
	return b.String()
}
