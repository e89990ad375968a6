package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/claimledger/internal/audit"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Verify the journal and compare it with stored claims",
		Long: `Recompute the journal's digest chain, replay its notifications per claim,
and compare the result with the stored claims. Requires the sqlite backend.

Notifications are best-effort, so drift is reported, never repaired.

Exit codes:
  0 - Chain intact and no drift
  1 - Chain break or drift detected
  2 - Command error (store unavailable, wrong backend)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app, _ *OutputFormatter) error {
				if a.journal == nil {
					return NewExitError(ExitCommandError, fmt.Sprintf("the %s backend has no notification journal", a.cfg.Backend))
				}
				report, err := audit.Run(ctx, a.service, a.journal)
				if err != nil {
					return WrapExitError(ExitCommandError, "audit failed", err)
				}
				if rootOpts.Format == "json" {
					return outputAuditJSON(cmd, report)
				}
				return outputAuditText(cmd, report, rootOpts.Verbose)
			})
		},
	}
	return cmd
}

func outputAuditJSON(cmd *cobra.Command, report audit.Report) error {
	response := CLIResponse{Status: "ok", Data: report}
	if !report.OK() {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "AUDIT_FAILED",
			Message: "journal does not match stored claims",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	if !report.OK() {
		return NewExitError(ExitFailure, "audit failed")
	}
	return nil
}

func outputAuditText(cmd *cobra.Command, report audit.Report, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Audit Summary: %d claim(s), %d journal entries\n", report.Claims, report.Entries)
	if verbose && report.Chain.Head != "" {
		fmt.Fprintf(w, "  Chain head: %s\n", report.Chain.Head)
	}
	fmt.Fprintln(w)

	if report.Chain.OK() {
		fmt.Fprintln(w, "✓ Digest chain intact")
	} else {
		fmt.Fprintf(w, "✗ Digest chain broken at %d entr(ies)\n", len(report.Chain.Breaks))
		for _, b := range report.Chain.Breaks {
			fmt.Fprintf(w, "  seq %d: %s\n", b.Seq, b.Reason)
		}
	}

	if len(report.Drift) == 0 {
		fmt.Fprintln(w, "✓ Journal matches stored claims")
	} else {
		fmt.Fprintf(w, "✗ %d difference(s) between journal and store\n", len(report.Drift))
		for _, d := range report.Drift {
			fmt.Fprintf(w, "  claim %d %s: journal=%s stored=%s\n", d.ClaimID, d.Field, d.Journal, d.Stored)
		}
	}

	if report.OK() {
		return nil
	}
	return NewExitError(ExitFailure, "audit failed")
}
