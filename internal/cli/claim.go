package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/claimledger/internal/claims"
)

// ClaimCreateOptions holds flags for claim create.
type ClaimCreateOptions struct {
	*RootOptions
	Claimant     string
	PolicyNumber string
	Documents    []string
}

// ClaimListOptions holds flags for claim list.
type ClaimListOptions struct {
	*RootOptions
	After uint64
	Limit int
}

// NewClaimCommand creates the claim command group.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Create, read and update claims",
		Long: `Operate on the claim registry directly.

Mutating subcommands need --caller plus --token or --api-key, unless the
configured auth mode is allowlist or insecure.

Exit codes:
  0 - Operation succeeded
  1 - Operation rejected (UNAUTHORIZED, NOT_FOUND, INVALID_ARGUMENT, ...)
  2 - Command error (bad flags, store unavailable, STORE_ERROR)`,
	}

	cmd.AddCommand(newClaimCreateCommand(rootOpts))
	cmd.AddCommand(newClaimGetCommand(rootOpts))
	cmd.AddCommand(newClaimListCommand(rootOpts))
	cmd.AddCommand(newClaimAddDocumentCommand(rootOpts))
	cmd.AddCommand(newClaimSetStatusCommand(rootOpts))
	return cmd
}

func newClaimCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClaimCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new Pending claim",
		Example: `  claimledger claim create --caller alice --token $TOKEN \
    --claimant alice --policy-number POL-1 --doc doc://photo`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app, out *OutputFormatter) error {
				caller, err := opts.requireCaller()
				if err != nil {
					return err
				}
				claimant := opts.Claimant
				if claimant == "" {
					claimant = string(caller)
				}
				id, err := a.service.CreateClaim(ctx, caller, claims.Principal(claimant), opts.PolicyNumber, opts.Documents)
				if err != nil {
					return out.Fail("create claim", err)
				}
				return out.Success(createdView{ID: id})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Claimant, "claimant", "", "claimant principal (default --caller)")
	cmd.Flags().StringVar(&opts.PolicyNumber, "policy-number", "", "policy number (required)")
	cmd.Flags().StringArrayVar(&opts.Documents, "doc", nil, "initial document reference (repeatable)")
	_ = cmd.MarkFlagRequired("policy-number")
	return cmd
}

func newClaimGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Show one claim",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out *OutputFormatter) error {
				c, err := a.service.GetClaim(ctx, id)
				if err != nil {
					return out.Fail("get claim", err)
				}
				return out.Success(claimView{c})
			})
		},
	}
}

func newClaimListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClaimListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List claims in id order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app, out *OutputFormatter) error {
				list, err := a.service.ListClaims(ctx, claims.ID(opts.After), opts.Limit)
				if err != nil {
					return out.Fail("list claims", err)
				}
				view := claimListView{Claims: list}
				limit := opts.Limit
				if limit <= 0 {
					limit = claims.DefaultListLimit
				}
				if len(list) > 0 && len(list) == min(limit, claims.MaxListLimit) {
					view.Next = list[len(list)-1].ID
				}
				return out.Success(view)
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.After, "after", 0, "list claims with id greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", claims.DefaultListLimit, "maximum number of claims")
	return cmd
}

func newClaimAddDocumentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "add-document <id> <document-ref>",
		Short:         "Append a document reference to a claim",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out *OutputFormatter) error {
				caller, err := rootOpts.requireCaller()
				if err != nil {
					return err
				}
				if err := a.service.AddDocument(ctx, caller, id, args[1]); err != nil {
					return out.Fail("add document", err)
				}
				return out.Success(ackView{ID: id, Message: fmt.Sprintf("Document added to claim %d", id)})
			})
		},
	}
}

func newClaimSetStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move a claim to a new status",
		Long: `Move a claim to Pending, InProgress, Approved or Denied.
Status names are case-insensitive; in_progress is accepted.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out *OutputFormatter) error {
				caller, err := rootOpts.requireCaller()
				if err != nil {
					return err
				}
				if err := a.service.UpdateStatusByName(ctx, caller, id, args[1]); err != nil {
					return out.Fail("update status", err)
				}
				c, err := a.service.GetClaim(ctx, id)
				if err != nil {
					return out.Fail("get claim", err)
				}
				return out.Success(ackView{ID: id, Message: fmt.Sprintf("Claim %d status set to %s", id, c.Status)})
			})
		},
	}
}

// withApp opens the registry, runs fn with the caller's credentials in the
// context, and closes the registry.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *app, *OutputFormatter) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "failed to close store", cerr)
		}
	}()
	return fn(opts.callerContext(ctx), a, opts.formatter(cmd))
}

func (o *RootOptions) requireCaller() (claims.Principal, error) {
	if o.Caller == "" {
		return "", NewExitError(ExitCommandError, "--caller is required")
	}
	return claims.Principal(o.Caller), nil
}

func parseIDArg(s string) (claims.ID, error) {
	id, err := claims.ParseID(s)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid claim id", err)
	}
	return id, nil
}

type createdView struct {
	ID claims.ID `json:"id"`
}

func (v createdView) Text() string {
	return fmt.Sprintf("Created claim %d", v.ID)
}

type ackView struct {
	ID      claims.ID `json:"id"`
	Message string    `json:"message"`
}

func (v ackView) Text() string {
	return v.Message
}

type claimView struct {
	claims.Claim
}

func (v claimView) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim %d\n", v.ID)
	fmt.Fprintf(&b, "  Claimant:      %s\n", v.Claimant)
	fmt.Fprintf(&b, "  Policy Number: %s\n", v.PolicyNumber)
	fmt.Fprintf(&b, "  Status:        %s\n", v.Status)
	fmt.Fprintf(&b, "  Version:       %d\n", v.Version)
	if len(v.Documents) == 0 {
		b.WriteString("  Documents:     (none)")
		return b.String()
	}
	b.WriteString("  Documents:")
	for _, d := range v.Documents {
		fmt.Fprintf(&b, "\n    - %s", d)
	}
	return b.String()
}

type claimListView struct {
	Claims []claims.Claim `json:"claims"`
	Next   claims.ID      `json:"next,omitempty"`
}

func (v claimListView) Text() string {
	if len(v.Claims) == 0 {
		return "No claims found."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDOCS\tCLAIMANT\tPOLICY")
	for _, c := range v.Claims {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", c.ID, c.Status, len(c.Documents), c.Claimant, c.PolicyNumber)
	}
	tw.Flush()
	out := strings.TrimRight(b.String(), "\n")
	if v.Next != 0 {
		out += fmt.Sprintf("\n(more: --after %d)", v.Next)
	}
	return out
}
