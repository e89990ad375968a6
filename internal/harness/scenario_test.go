package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/approve_claim.yaml")
	require.NoError(t, err)

	assert.Equal(t, "approve_claim", s.Name)
	assert.Equal(t, []string{"alice", "adjuster"}, s.Principals)
	require.Len(t, s.Flow, 4)
	assert.Equal(t, InvokeCreateClaim, s.Flow[0].Invoke)
	require.NotNil(t, s.Flow[0].Expect)
	assert.Equal(t, uint64(1), s.Flow[0].Expect.ID)
	assert.Nil(t, s.Flow[1].Expect)
}

func TestLoadScenario_ResolvesPolicy(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/strict_policy.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "policies", "strict.cue"), s.Policy)
}

func TestLoadScenario_MissingPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: x
description: x
policy: nope.cue
flow:
  - invoke: get_claim
    args: {claim_id: 1}
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy file not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.Error(t, err)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: x\nflows: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: x\nflow:\n  - invoke: get_claim\n    args: {claim_id: 1}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nflow:\n  - invoke: get_claim\n    args: {claim_id: 1}\n",
			wantErr: "description is required",
		},
		{
			name:    "empty flow",
			yaml:    "name: x\ndescription: x\nflow: []\n",
			wantErr: "flow list is required",
		},
		{
			name:    "unknown invoke",
			yaml:    "name: x\ndescription: x\nflow:\n  - invoke: delete_claim\n    args: {}\n",
			wantErr: `unknown invoke "delete_claim"`,
		},
		{
			name:    "mutation without caller",
			yaml:    "name: x\ndescription: x\nflow:\n  - invoke: add_document\n    args: {claim_id: 1, document: d}\n",
			wantErr: "caller is required",
		},
		{
			name:    "missing args",
			yaml:    "name: x\ndescription: x\nflow:\n  - invoke: get_claim\n",
			wantErr: "args is required",
		},
		{
			name:    "error with id",
			yaml:    "name: x\ndescription: x\nflow:\n  - invoke: create_claim\n    caller: a\n    args: {}\n    expect: {id: 1, error: NOT_FOUND}\n",
			wantErr: "error cannot be combined",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: x\nflow:\n  - invoke: get_claim\n    args: {claim_id: 1}\nassertions:\n  - type: trace_count\n",
			wantErr: `unknown assertion type "trace_count"`,
		},
		{
			name:    "claim_state without id",
			yaml:    "name: x\ndescription: x\nflow:\n  - invoke: get_claim\n    args: {claim_id: 1}\nassertions:\n  - type: claim_state\n    expect: {status: Pending}\n",
			wantErr: "claim_id is required",
		},
		{
			name:    "order without kinds",
			yaml:    "name: x\ndescription: x\nflow:\n  - invoke: get_claim\n    args: {claim_id: 1}\nassertions:\n  - type: notification_order\n",
			wantErr: "kinds list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
