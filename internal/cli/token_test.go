package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssue_AuthenticatesClaimCreate(t *testing.T) {
	cfg := writeConfig(t, "auth:\n  mode: jwt\n  jwt_secret: s3cret\n")

	out, _, err := execute(t, "--config", cfg, "--format", "json", "token", "issue", "alice", "--ttl", "10m")
	require.NoError(t, err)
	var issued tokenView
	decodeData(t, out, &issued)
	assert.Equal(t, "alice", issued.Principal)
	require.NotEmpty(t, issued.Token)

	_, _, err = execute(t, "--config", cfg, "--caller", "alice", "--token", issued.Token,
		"claim", "create", "--policy-number", "POL-1")
	require.NoError(t, err)

	t.Run("token names another principal", func(t *testing.T) {
		_, _, err := execute(t, "--config", cfg, "--caller", "bob", "--token", issued.Token,
			"claim", "create", "--policy-number", "POL-2")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("no token", func(t *testing.T) {
		out, _, err := execute(t, "--config", cfg, "--caller", "alice", "claim", "create", "--policy-number", "POL-2")
		require.Error(t, err)
		assert.Contains(t, out, "Error [UNAUTHORIZED]")
	})
}

func TestTokenIssue_RequiresSecret(t *testing.T) {
	cfg := writeConfig(t, "auth:\n  mode: allowlist\n")
	_, _, err := execute(t, "--config", cfg, "token", "issue", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "auth.jwt_secret is not configured")
}

func TestKeyringHash_AuthenticatesAPIKey(t *testing.T) {
	out, _, err := execute(t, "keyring", "hash", "bob", "k3y", "--cost", "4")
	require.NoError(t, err)
	entry := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(entry, `bob: "$2a$04$`), entry)

	dir := t.TempDir()
	keyring := filepath.Join(dir, "keyring.yaml")
	require.NoError(t, os.WriteFile(keyring, []byte("principals:\n  "+entry+"\n"), 0o600))
	cfg := writeConfig(t, "auth:\n  mode: keyring\n  keyring_file: "+keyring+"\n")

	_, _, err = execute(t, "--config", cfg, "--caller", "bob", "--api-key", "k3y",
		"claim", "create", "--policy-number", "POL-1")
	require.NoError(t, err)

	_, _, err = execute(t, "--config", cfg, "--caller", "bob", "--api-key", "wrong",
		"claim", "create", "--policy-number", "POL-2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
