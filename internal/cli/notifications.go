package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/claimledger/internal/notify"
	"github.com/roach88/claimledger/internal/store"
)

// NotificationsOptions holds flags for the notifications command.
type NotificationsOptions struct {
	*RootOptions
	ClaimID  uint64
	Kind     string
	AfterSeq int64
	Limit    int
}

// NewNotificationsCommand creates the notifications command.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Read the notification journal",
		Long: `Print journaled notifications in seq order. Requires the sqlite backend.

Examples:
  claimledger notifications
  claimledger notifications --claim 12
  claimledger notifications --kind status_updated --after 100 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if a.journal == nil {
					return NewExitError(ExitCommandError, fmt.Sprintf("the %s backend has no notification journal", a.cfg.Backend))
				}
				entries, err := a.journal.ReadNotifications(ctx, store.Filter{
					ClaimID:  opts.ClaimID,
					Kind:     notify.Kind(opts.Kind),
					AfterSeq: opts.AfterSeq,
					Limit:    opts.Limit,
				})
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read journal", err)
				}
				return out.Success(journalView{Entries: entries})
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.ClaimID, "claim", 0, "only this claim")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only this kind (claim_created|document_added|status_updated)")
	cmd.Flags().Int64Var(&opts.AfterSeq, "after", 0, "only entries with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")
	return cmd
}

type journalView struct {
	Entries []store.Entry `json:"entries"`
}

func (v journalView) Text() string {
	if len(v.Entries) == 0 {
		return "No notifications found."
	}
	blocks := make([]string, len(v.Entries))
	for i, e := range v.Entries {
		blocks[i] = fmt.Sprintf("#%d %s (op %s)\n%s", e.Seq, e.Digest[:min(12, len(e.Digest))], e.OperationID, e.Text())
	}
	return strings.Join(blocks, "\n\n")
}
