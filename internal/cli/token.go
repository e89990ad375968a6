package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/claimledger/internal/auth"
)

// NewTokenCommand creates the token command group.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue bearer tokens",
	}
	cmd.AddCommand(newTokenIssueCommand(rootOpts))
	return cmd
}

func newTokenIssueCommand(rootOpts *RootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue <principal>",
		Short: "Sign an HS256 token for a principal",
		Long: `Sign a bearer token with auth.jwt_secret and auth.jwt_issuer from the
configuration. The token proves the principal on --token or in an
Authorization header.

Examples:
  CLAIMLEDGER_AUTH_JWT_SECRET=s3cret claimledger token issue alice --ttl 1h`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.Config()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return NewExitError(ExitCommandError, "auth.jwt_secret is not configured")
			}
			now := time.Now()
			token, err := auth.IssueToken([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer, auth.Principal(args[0]), ttl, now)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to issue token", err)
			}
			return rootOpts.formatter(cmd).Success(tokenView{
				Principal: args[0],
				Token:     token,
				ExpiresAt: now.Add(ttl).UTC(),
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

type tokenView struct {
	Principal string    `json:"principal"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (v tokenView) Text() string { return v.Token }

// NewKeyringCommand creates the keyring command group.
func NewKeyringCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage API key hashes",
	}
	cmd.AddCommand(newKeyringHashCommand(rootOpts))
	return cmd
}

func newKeyringHashCommand(rootOpts *RootOptions) *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash <principal> <key>",
		Short: "Print a keyring entry for an API key",
		Long: `Hash an API key with bcrypt and print it as a keyring YAML entry, ready to
append to the file named by auth.keyring_file.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashKey(args[1], cost)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to hash key", err)
			}
			return rootOpts.formatter(cmd).Success(keyringEntryView{Principal: args[0], Hash: hash})
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (0 = library default)")
	return cmd
}

type keyringEntryView struct {
	Principal string `json:"principal"`
	Hash      string `json:"hash"`
}

func (v keyringEntryView) Text() string {
	return fmt.Sprintf("%s: %q", v.Principal, v.Hash)
}
