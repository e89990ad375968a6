package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/claimledger/internal/canonical"
)

// Version is the claimledger release, overridden at link time with
// -ldflags "-X github.com/roach88/claimledger/internal/cli.Version=...".
var Version = "0.1.0-dev"

type versionView struct {
	Version      string `json:"version"`
	DigestDomain string `json:"digest_domain"`
}

func (v versionView) Text() string {
	return fmt.Sprintf("claimledger %s (journal %s)", v.Version, v.DigestDomain)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rootOpts.formatter(cmd).Success(versionView{
				Version:      Version,
				DigestDomain: canonical.DomainNotification,
			})
		},
	}
}
