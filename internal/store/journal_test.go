package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/claimledger/internal/auth"
	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/notify"
)

func testNotification(seq int64, kind notify.Kind, claimID uint64, fields ...notify.Field) notify.Notification {
	return notify.Notification{
		Seq:         seq,
		OperationID: "op-test",
		Kind:        kind,
		ClaimID:     claimID,
		Fields:      fields,
	}
}

func seedJournal(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, testNotification(1, notify.KindClaimCreated, 1,
		notify.Field{Name: notify.FieldClaimID, Value: "1"},
		notify.Field{Name: notify.FieldClaimant, Value: "alice"},
		notify.Field{Name: notify.FieldPolicyNumber, Value: "POL-1"},
	)))
	require.NoError(t, s.Append(ctx, testNotification(2, notify.KindClaimCreated, 2,
		notify.Field{Name: notify.FieldClaimID, Value: "2"},
		notify.Field{Name: notify.FieldClaimant, Value: "bob"},
		notify.Field{Name: notify.FieldPolicyNumber, Value: "POL-2"},
	)))
	require.NoError(t, s.Append(ctx, testNotification(3, notify.KindDocumentAdded, 1,
		notify.Field{Name: notify.FieldClaimID, Value: "1"},
		notify.Field{Name: notify.FieldDocumentURL, Value: "doc://a"},
	)))
}

func TestJournal_ReadPreservesFieldOrder(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	entries, err := s.ReadNotifications(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, notify.KindClaimCreated, first.Kind)
	assert.Equal(t, []notify.Field{
		{Name: notify.FieldClaimID, Value: "1"},
		{Name: notify.FieldClaimant, Value: "alice"},
		{Name: notify.FieldPolicyNumber, Value: "POL-1"},
	}, first.Fields)
	assert.Empty(t, first.PrevDigest)
	assert.Equal(t, first.Digest, entries[1].PrevDigest)
}

func TestJournal_Filters(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	tests := []struct {
		name    string
		filter  Filter
		wantSeq []int64
	}{
		{"all", Filter{}, []int64{1, 2, 3}},
		{"by claim", Filter{ClaimID: 1}, []int64{1, 3}},
		{"by kind", Filter{Kind: notify.KindDocumentAdded}, []int64{3}},
		{"after seq", Filter{AfterSeq: 1}, []int64{2, 3}},
		{"limit", Filter{Limit: 2}, []int64{1, 2}},
		{"no match", Filter{ClaimID: 9}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.ReadNotifications(ctx, tt.filter)
			require.NoError(t, err)
			got := []int64{}
			for _, e := range entries {
				got = append(got, e.Seq)
			}
			assert.Equal(t, tt.wantSeq, got)
		})
	}
}

func TestJournal_AssignsSeqFromHead(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	tests := []struct {
		name    string
		seq     int64
		wantSeq int64
	}{
		{"stale seq", 3, 4},
		{"zero seq", 0, 5},
		{"seq ahead of head", 42, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.Append(ctx, testNotification(tt.seq, notify.KindStatusUpdated, 1)))
			last, err := s.LastSeq(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeq, last)
		})
	}

	report, err := s.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 6, report.Entries)
}

func TestJournal_TwoHandlesShareOneChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	newService := func(t *testing.T) (*Store, *claims.Service) {
		s, err := Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		head, err := s.LastSeq(ctx)
		require.NoError(t, err)
		var dropped []error
		svc := claims.New(s, auth.NewAllowList("alice"),
			claims.WithEmitter(notify.NewEmitter(s,
				notify.WithSequencer(notify.NewClockAt(head)),
				notify.WithDropHook(func(_ notify.Notification, err error) { dropped = append(dropped, err) }),
			)),
		)
		t.Cleanup(func() { assert.Empty(t, dropped) })
		return s, svc
	}

	// Both handles start from the same empty head.
	s1, svc1 := newService(t)
	s2, svc2 := newService(t)

	id1, err := svc1.CreateClaim(ctx, "alice", "alice", "POL-1", nil)
	require.NoError(t, err)
	id2, err := svc2.CreateClaim(ctx, "alice", "alice", "POL-2", nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	entries, err := s1.ReadNotifications(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, uint64(id1), entries[0].ClaimID)
	assert.Equal(t, uint64(id2), entries[1].ClaimID)

	report, err := s2.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Entries)
}

func TestJournal_ConcurrentHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()
	const perHandle = 10

	var svcs []*claims.Service
	var first *Store
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		if first == nil {
			first = s
		}
		svcs = append(svcs, claims.New(s, auth.NewAllowList("alice"),
			claims.WithEmitter(notify.NewEmitter(s)),
		))
	}

	var wg sync.WaitGroup
	for _, svc := range svcs {
		wg.Add(1)
		go func(svc *claims.Service) {
			defer wg.Done()
			for j := 0; j < perHandle; j++ {
				_, err := svc.CreateClaim(ctx, "alice", "alice", "POL", nil)
				assert.NoError(t, err)
			}
		}(svc)
	}
	wg.Wait()

	entries, err := first.ReadNotifications(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2*perHandle)
	seen := make(map[uint64]bool)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.False(t, seen[e.ClaimID], "claim %d journaled twice", e.ClaimID)
		seen[e.ClaimID] = true
	}

	report, err := first.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestJournal_LastSeqEmpty(t *testing.T) {
	s := createTestStore(t)
	last, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestJournal_VerifyChainDetectsTampering(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	report, err := s.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 3, report.Entries)
	assert.Len(t, report.Head, 64)

	_, err = s.db.Exec(`UPDATE notifications SET fields = ? WHERE seq = 2`,
		`[{"name":"claim_id","value":"2"},{"name":"claimant","value":"mallory"},{"name":"policy_number","value":"POL-2"}]`)
	require.NoError(t, err)

	report, err = s.VerifyChain(ctx)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Equal(t, int64(2), report.Breaks[0].Seq)
	assert.Equal(t, "digest does not match row contents", report.Breaks[0].Reason)
}

func TestJournal_VerifyChainDetectsDeletion(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	_, err := s.db.Exec(`DELETE FROM notifications WHERE seq = 2`)
	require.NoError(t, err)

	report, err := s.VerifyChain(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Breaks, 1)
	assert.Equal(t, int64(3), report.Breaks[0].Seq)
}
