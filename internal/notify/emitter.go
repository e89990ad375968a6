package notify

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

// Sequencer hands out strictly increasing sequence numbers.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. Every emitted notification is stamped
// with a strictly increasing seq, so replay order never depends on wall
// time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, e.g. the last seq in
// a durable journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Emitter stamps notifications and hands them to a Sink. The stamped seq
// orders in-process sinks; a durable journal assigns its own.
type Emitter struct {
	sink   Sink
	clock  Sequencer
	logger *slog.Logger
	onDrop func(Notification, error)
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithSequencer sets the sequence source. Defaults to a fresh Clock.
func WithSequencer(s Sequencer) EmitterOption {
	return func(e *Emitter) { e.clock = s }
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(l *slog.Logger) EmitterOption {
	return func(e *Emitter) { e.logger = l }
}

// WithDropHook registers a callback invoked for every notification the
// sink failed to accept.
func WithDropHook(fn func(Notification, error)) EmitterOption {
	return func(e *Emitter) { e.onDrop = fn }
}

// NewEmitter creates an emitter for sink. A nil sink discards.
func NewEmitter(sink Sink, opts ...EmitterOption) *Emitter {
	if sink == nil {
		sink = Discard
	}
	e := &Emitter{
		sink:   sink,
		clock:  NewClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit stamps n with the next sequence number and appends it to the sink.
// It returns the stamped notification and whether the sink accepted it.
// Failures are logged at warn level and otherwise swallowed.
func (e *Emitter) Emit(ctx context.Context, n Notification) (Notification, bool) {
	n.Seq = e.clock.Next()
	if err := e.sink.Append(ctx, n); err != nil {
		e.logger.WarnContext(ctx, "notification dropped",
			"seq", n.Seq,
			"kind", string(n.Kind),
			"claim_id", n.ClaimID,
			"operation_id", n.OperationID,
			"error", err,
		)
		if e.onDrop != nil {
			e.onDrop(n, err)
		}
		return n, false
	}
	return n, true
}
