package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/claimledger/internal/auth"
	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/config"
	"github.com/roach88/claimledger/internal/kv"
	"github.com/roach88/claimledger/internal/kv/badgerkv"
	"github.com/roach88/claimledger/internal/metrics"
	"github.com/roach88/claimledger/internal/notify"
	"github.com/roach88/claimledger/internal/policy"
	"github.com/roach88/claimledger/internal/store"
)

// app is the wired registry a command operates on.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	kv      kv.Store
	journal *store.Store // nil unless the backend is sqlite
	metrics *metrics.Metrics
	tracer  trace.TracerProvider
	service *claims.Service

	shutdown []func(context.Context) error
}

// openApp builds the registry described by the effective config.
// Diagnostics (logs, exported spans) go to errOut.
func openApp(ctx context.Context, opts *RootOptions, errOut io.Writer) (*app, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: newLogger(cfg.Log, errOut), metrics: metrics.New()}
	slog.SetDefault(a.logger)

	if err := a.openBackend(); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	verifier, err := buildVerifier(cfg.Auth, a.logger)
	if err != nil {
		a.Close(ctx)
		return nil, WrapExitError(ExitCommandError, "failed to configure auth", err)
	}

	rules := claims.DefaultRules()
	if cfg.PolicyFile != "" {
		rules, err = policy.Load(cfg.PolicyFile)
		if err != nil {
			a.Close(ctx)
			return nil, WrapExitError(ExitCommandError, "failed to load policy", err)
		}
	}

	a.tracer, err = a.setupTracing(cfg.Trace, errOut)
	if err != nil {
		a.Close(ctx)
		return nil, WrapExitError(ExitCommandError, "failed to configure tracing", err)
	}

	emitter, err := a.newEmitter(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, WrapExitError(ExitCommandError, "failed to read journal head", err)
	}

	a.service = claims.New(a.kv, verifier,
		claims.WithEmitter(emitter),
		claims.WithRules(rules),
		claims.WithObserver(a.metrics),
		claims.WithTracerProvider(a.tracer),
		claims.WithLogger(a.logger),
	)
	return a, nil
}

func (a *app) openBackend() error {
	switch a.cfg.Backend {
	case config.BackendSQLite:
		a.logger.Debug("opening database", "path", a.cfg.Database)
		st, err := store.Open(a.cfg.Database)
		if err != nil {
			return err
		}
		a.kv, a.journal = st, st
	case config.BackendBadger:
		a.logger.Debug("opening badger", "dir", a.cfg.BadgerDir)
		bcfg := badgerkv.DefaultConfig(a.cfg.BadgerDir)
		bcfg.Logger = a.logger
		st, err := badgerkv.Open(bcfg)
		if err != nil {
			return err
		}
		a.kv = st
	case config.BackendMemory:
		a.logger.Warn("memory backend: claims are lost when the process exits")
		a.kv = kv.NewMemory()
	default:
		return fmt.Errorf("unknown backend %q", a.cfg.Backend)
	}
	a.shutdown = append(a.shutdown, func(context.Context) error { return a.kv.Close() })
	return nil
}

// newEmitter fans notifications out to the log and, when present, the
// journal. The sequence resumes after the journal head.
func (a *app) newEmitter(ctx context.Context) (*notify.Emitter, error) {
	sink := notify.Sink(notify.NewLogSink(a.logger))
	var start int64
	if a.journal != nil {
		head, err := a.journal.LastSeq(ctx)
		if err != nil {
			return nil, err
		}
		start = head
		sink = notify.Multi(a.journal, sink)
	}
	return notify.NewEmitter(sink,
		notify.WithSequencer(notify.NewClockAt(start)),
		notify.WithLogger(a.logger),
		notify.WithDropHook(a.metrics.NotificationDropped),
	), nil
}

func (a *app) setupTracing(cfg config.TraceConfig, w io.Writer) (trace.TracerProvider, error) {
	if !cfg.Stdout {
		return noop.NewTracerProvider(), nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "claimledger"))),
	)
	a.shutdown = append(a.shutdown, tp.Shutdown)
	return tp, nil
}

// Close flushes spans and closes the store, in reverse setup order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.shutdown = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("error during shutdown", "error", err)
		return err
	}
	return nil
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// buildVerifier constructs the verifier for the configured auth mode.
func buildVerifier(cfg config.AuthConfig, logger *slog.Logger) (auth.Verifier, error) {
	switch cfg.Mode {
	case config.AuthInsecure:
		logger.Warn("authentication disabled: every caller is accepted")
		return auth.Insecure{}, nil
	case config.AuthAllowList:
		principals := make([]auth.Principal, len(cfg.Allow))
		for i, p := range cfg.Allow {
			principals[i] = auth.Principal(p)
		}
		return auth.NewAllowList(principals...), nil
	}

	var verifiers []auth.Verifier
	if cfg.UsesJWT() && cfg.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.JWTSecret),
			auth.WithIssuer(cfg.JWTIssuer),
			auth.WithLeeway(cfg.JWTLeeway),
		)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}
	if cfg.UsesKeyring() && cfg.KeyringFile != "" {
		v, err := auth.LoadKeyring(cfg.KeyringFile)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}

	switch {
	case cfg.Mode == config.AuthJWT && len(verifiers) == 0:
		return nil, errors.New("auth.jwt_secret is required for jwt mode")
	case cfg.Mode == config.AuthKeyring && len(verifiers) == 0:
		return nil, errors.New("auth.keyring_file is required for keyring mode")
	case len(verifiers) == 0:
		return nil, errors.New("jwt+keyring mode needs auth.jwt_secret or auth.keyring_file")
	case len(verifiers) == 1:
		return verifiers[0], nil
	}
	return auth.Any(verifiers...), nil
}

// callerContext attaches the command-line credentials to ctx.
func (o *RootOptions) callerContext(ctx context.Context) context.Context {
	return auth.WithCredentials(ctx, o.credentials())
}
