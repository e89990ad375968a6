package claims

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"Pending", StatusPending},
		{"pending", StatusPending},
		{"InProgress", StatusInProgress},
		{"in_progress", StatusInProgress},
		{"in-progress", StatusInProgress},
		{"APPROVED", StatusApproved},
		{" Denied ", StatusDenied},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "Paid", "in progress", "0"} {
		_, err := ParseStatus(bad)
		assert.True(t, IsInvalidArgument(err), "input %q", bad)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid(), s.String())
	}
	assert.False(t, Status(0).Valid())
	assert.False(t, Status(9).Valid())
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestStatusJSONByName(t *testing.T) {
	data, err := json.Marshal(Claim{ID: 3, Claimant: "alice", PolicyNumber: "P", Documents: []string{}, Status: StatusInProgress, Version: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"claimant":"alice","policy_number":"P","documents":[],"status":"InProgress","version":1}`, string(data))

	var c Claim
	require.NoError(t, json.Unmarshal(data, &c))
	assert.Equal(t, StatusInProgress, c.Status)

	_, err = json.Marshal(Claim{})
	assert.Error(t, err, "zero status must not be persisted")
}

func TestParseID(t *testing.T) {
	id, err := ParseID("17")
	require.NoError(t, err)
	assert.Equal(t, ID(17), id)

	for _, bad := range []string{"0", "-1", "x", ""} {
		_, err := ParseID(bad)
		assert.True(t, IsInvalidArgument(err), bad)
	}
}

func TestClaimKeyIsZeroPadded(t *testing.T) {
	assert.Equal(t, "claimledger/claim/00000000000000000042", claimKey(42))
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Code: CodeNotFound, Message: "claim not found", ClaimID: 5}
	assert.Equal(t, "NOT_FOUND: claim not found (claim=5)", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStore)
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}
