package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/claimledger/internal/auth"
	"github.com/roach88/claimledger/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Caller and its proof, used by mutating claim commands.
	Caller string
	Token  string
	APIKey string

	v   *viper.Viper
	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"backend":      "backend",
	"db":           "database",
	"policy":       "policy_file",
	"log-format":   "log.format",
	"trace-stdout": "trace.stdout",
}

// NewRootCommand creates the root command for the claimledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "claimledger",
		Short: "claimledger - insurance claim registry",
		Long: `An insurance claim registry with authenticated mutations, a durable
store, and a hash-chained notification journal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		if !isValidFormat(opts.Format) {
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		}
		v := viper.New()
		for flag, key := range flagKeys {
			if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
		opts.v = v
		return nil
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default $HOME/.claimledger/config.yaml)")
	pf.StringVar(&opts.Caller, "caller", "", "principal performing mutations")
	pf.StringVar(&opts.Token, "token", "", "bearer token proving --caller")
	pf.StringVar(&opts.APIKey, "api-key", "", "API key proving --caller")
	pf.String("backend", "", "storage backend (sqlite|badger|memory)")
	pf.String("db", "", "path to SQLite database")
	pf.String("policy", "", "path to CUE policy file")
	pf.String("log-format", "", "log format (text|json)")
	pf.Bool("trace-stdout", false, "export spans to stderr")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewClaimCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewPolicyCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewKeyringCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// Config resolves the effective configuration once. Commands built without
// the root command (as in tests) read the config file and environment only.
func (o *RootOptions) Config() (config.Config, error) {
	if o.cfg != nil {
		return *o.cfg, nil
	}
	v := o.v
	if v == nil {
		v = viper.New()
	}
	if _, err := config.Prepare(v, o.ConfigFile); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	o.cfg = &cfg
	return cfg, nil
}

// credentials returns the caller proof given on the command line.
func (o *RootOptions) credentials() auth.Credentials {
	return auth.Credentials{Token: o.Token, APIKey: o.APIKey}
}

// formatter returns an OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
