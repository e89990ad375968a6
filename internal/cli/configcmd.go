package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Long: `Print the configuration after defaults, the config file, CLAIMLEDGER_*
environment variables and flags have been applied.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.Config()
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()
			if rootOpts.Format == "json" {
				return rootOpts.formatter(cmd).Success(redacted)
			}
			data, err := yaml.Marshal(redacted)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to encode config", err)
			}
			_, err = cmd.OutOrStdout().Write([]byte(strings.TrimRight(string(data), "\n") + "\n"))
			return err
		},
	})
	return cmd
}
