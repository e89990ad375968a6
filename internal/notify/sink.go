package notify

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// Sink receives notifications. Append may fail; callers treat failure as
// non-fatal.
type Sink interface {
	Append(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n Notification) error

// Append implements Sink.
func (f SinkFunc) Append(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Multi fans a notification out to every sink. All sinks are attempted;
// failures are joined.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, n Notification) error {
		var errs []error
		for _, s := range sinks {
			if err := s.Append(ctx, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(context.Context, Notification) error { return nil })

// LogSink writes notifications to a structured logger at info level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Append implements Sink.
func (s *LogSink) Append(ctx context.Context, n Notification) error {
	attrs := make([]any, 0, 4+2*len(n.Fields))
	attrs = append(attrs,
		"seq", n.Seq,
		"operation_id", n.OperationID,
		"kind", string(n.Kind),
		"claim_id", n.ClaimID,
	)
	for _, f := range n.Fields {
		if f.Name == FieldClaimID {
			continue
		}
		attrs = append(attrs, f.Name, f.Value)
	}
	s.logger.InfoContext(ctx, n.Kind.Headline(), attrs...)
	return nil
}

// Recorder keeps every notification in memory. Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

// Append implements Sink.
func (r *Recorder) Append(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.Fields = slices.Clone(n.Fields)
	r.all = append(r.all, n)
	return nil
}

// Notifications returns a copy of everything recorded, in append order.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.all)
}

// Kinds returns the kinds recorded, in append order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.all))
	for i, n := range r.all {
		kinds[i] = n.Kind
	}
	return kinds
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.all)
}
