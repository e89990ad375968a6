package claims

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/claimledger/internal/auth"
	"github.com/roach88/claimledger/internal/kv"
	"github.com/roach88/claimledger/internal/notify"
)

const instrumentationName = "github.com/roach88/claimledger/internal/claims"

// Operation names, used for spans, metrics and logs.
const (
	OpCreateClaim  = "CreateClaim"
	OpGetClaim     = "GetClaim"
	OpListClaims   = "ListClaims"
	OpLastID       = "LastID"
	OpAddDocument  = "AddDocument"
	OpUpdateStatus = "UpdateStatus"
)

// Observer is told the outcome of every operation. code is "" on success.
type Observer interface {
	OperationDone(op string, code ErrorCode, elapsed time.Duration)
}

// Service is the claim registry, document ledger and status engine over a
// kv.Store.
//
// Thread-safety: Service is safe for concurrent use. Atomicity of each
// operation is delegated to kv.Store.Update.
type Service struct {
	store    kv.Store
	verifier auth.Verifier
	emitter  *notify.Emitter
	rules    Rules
	ids      OperationIDGenerator
	observer Observer
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEmitter sets the notification emitter. Without one notifications are
// discarded.
func WithEmitter(e *notify.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithRules replaces DefaultRules.
func WithRules(r Rules) Option {
	return func(s *Service) { s.rules = r }
}

// WithOperationIDs sets the operation id generator (default UUIDv7).
func WithOperationIDs(g OperationIDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithTracerProvider sets the span source (default: the global provider).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. store and verifier are required.
func New(store kv.Store, verifier auth.Verifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		verifier: verifier,
		emitter:  notify.NewEmitter(notify.Discard),
		rules:    DefaultRules(),
		ids:      UUIDv7Generator{},
		tracer:   otel.Tracer(instrumentationName),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the active rules.
func (s *Service) Rules() Rules {
	return s.rules
}

// operation tracks one call from start to finish.
type operation struct {
	svc   *Service
	name  string
	id    string
	span  trace.Span
	start time.Time
}

func (s *Service) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	op := &operation{svc: s, name: name, id: s.ids.Generate(), start: time.Now()}
	attrs = append(attrs, attribute.String("claim.operation_id", op.id))
	ctx, op.span = s.tracer.Start(ctx, "claims."+name, trace.WithAttributes(attrs...))
	return ctx, op
}

func (op *operation) setClaim(id ID) {
	op.span.SetAttributes(attribute.Int64("claim.id", int64(id)))
}

func (op *operation) end(err error) {
	code := CodeOf(err)
	if err != nil {
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, string(code))
		op.svc.logger.Debug("claim operation failed",
			"op", op.name,
			"operation_id", op.id,
			"code", string(code),
			"error", err,
		)
	}
	op.span.End()
	if op.svc.observer != nil {
		op.svc.observer.OperationDone(op.name, code, time.Since(op.start))
	}
}

func callerAttr(caller Principal) attribute.KeyValue {
	return attribute.String("claim.caller", string(caller))
}

// authorize verifies caller before any state is read.
func (s *Service) authorize(ctx context.Context, caller Principal) error {
	if err := s.verifier.Verify(ctx, caller); err != nil {
		return unauthorized(caller, err)
	}
	return nil
}

// emit hands a notification for a committed unit to the emitter.
func (s *Service) emit(ctx context.Context, op *operation, kind notify.Kind, id ID, fields ...notify.Field) {
	all := make([]notify.Field, 0, len(fields)+1)
	all = append(all, notify.Field{Name: notify.FieldClaimID, Value: id.String()})
	all = append(all, fields...)
	s.emitter.Emit(ctx, notify.Notification{
		OperationID: op.id,
		Kind:        kind,
		ClaimID:     uint64(id),
		Fields:      all,
	})
}
