package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNotifications() []Notification {
	return []Notification{
		{
			OperationID: "op-1",
			Kind:        KindClaimCreated,
			ClaimID:     1,
			Fields: []Field{
				{Name: FieldClaimID, Value: "1"},
				{Name: FieldClaimant, Value: "alice"},
				{Name: FieldPolicyNumber, Value: "POL-1"},
			},
		},
		{
			OperationID: "op-2",
			Kind:        KindDocumentAdded,
			ClaimID:     1,
			Fields: []Field{
				{Name: FieldClaimID, Value: "1"},
				{Name: FieldDocumentURL, Value: "https://docs.example/receipt.pdf"},
			},
		},
		{
			OperationID: "op-3",
			Kind:        KindStatusUpdated,
			ClaimID:     1,
			Fields: []Field{
				{Name: FieldClaimID, Value: "1"},
				{Name: FieldNewStatus, Value: "Approved"},
			},
		},
	}
}

func TestNotificationText(t *testing.T) {
	var parts []string
	for _, n := range sampleNotifications() {
		parts = append(parts, n.Text())
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "notification_text", []byte(strings.Join(parts, "\n\n")))
}

func TestNotificationField(t *testing.T) {
	n := sampleNotifications()[0]

	v, ok := n.Field(FieldClaimant)
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	_, ok = n.Field(FieldNewStatus)
	assert.False(t, ok)
}

func TestUnknownKindAndFieldRenderRaw(t *testing.T) {
	n := Notification{Kind: "custom", Fields: []Field{{Name: "note", Value: "x"}}}
	assert.Equal(t, "custom\nnote: x", n.Text())
}

func TestEmitterStampsSequence(t *testing.T) {
	rec := &Recorder{}
	e := NewEmitter(rec, WithSequencer(NewClockAt(41)))

	for _, n := range sampleNotifications() {
		_, ok := e.Emit(context.Background(), n)
		require.True(t, ok)
	}

	got := rec.Notifications()
	require.Len(t, got, 3)
	assert.Equal(t, int64(42), got[0].Seq)
	assert.Equal(t, int64(43), got[1].Seq)
	assert.Equal(t, int64(44), got[2].Seq)
	assert.Equal(t, []Kind{KindClaimCreated, KindDocumentAdded, KindStatusUpdated}, rec.Kinds())
}

func TestEmitterSwallowsSinkFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	var dropped []Notification
	sinkErr := errors.New("sink offline")
	e := NewEmitter(
		SinkFunc(func(context.Context, Notification) error { return sinkErr }),
		WithLogger(logger),
		WithDropHook(func(n Notification, err error) {
			assert.ErrorIs(t, err, sinkErr)
			dropped = append(dropped, n)
		}),
	)

	n, ok := e.Emit(context.Background(), sampleNotifications()[0])
	assert.False(t, ok)
	assert.Equal(t, int64(1), n.Seq)
	require.Len(t, dropped, 1)
	assert.Contains(t, logs.String(), "notification dropped")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestNilSinkDiscards(t *testing.T) {
	e := NewEmitter(nil)
	_, ok := e.Emit(context.Background(), sampleNotifications()[0])
	assert.True(t, ok)
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	failing := SinkFunc(func(context.Context, Notification) error { return errors.New("boom") })

	err := Multi(a, failing, b).Append(context.Background(), sampleNotifications()[0])
	assert.Error(t, err)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len(), "later sinks still receive after an earlier failure")
}

func TestLogSink(t *testing.T) {
	var logs bytes.Buffer
	s := NewLogSink(slog.New(slog.NewTextHandler(&logs, nil)))

	require.NoError(t, s.Append(context.Background(), sampleNotifications()[0]))
	out := logs.String()
	assert.Contains(t, out, `msg="Claim created"`)
	assert.Contains(t, out, "claimant=alice")
	assert.Contains(t, out, "policy_number=POL-1")
}

func TestRecorderConcurrent(t *testing.T) {
	rec := &Recorder{}
	e := NewEmitter(rec)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Emit(context.Background(), sampleNotifications()[1])
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, n := range rec.Notifications() {
		assert.False(t, seen[n.Seq], "duplicate seq %d", n.Seq)
		seen[n.Seq] = true
	}
	assert.Len(t, seen, 50)
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}
