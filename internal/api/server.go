// Package api serves the claim registry over HTTP with gin.
//
// The caller's principal comes from the X-Principal header; its proof from
// "Authorization: Bearer <jwt>" or X-API-Key. Both are handed to the claim
// service through the request context, which verifies them itself.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/claimledger/internal/claims"
	"github.com/roach88/claimledger/internal/metrics"
	"github.com/roach88/claimledger/internal/store"
)

// Journal reads notifications back. Implemented by *store.Store.
type Journal interface {
	ReadNotifications(ctx context.Context, f store.Filter) ([]store.Entry, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	svc     *claims.Service
	journal Journal
	pinger  Pinger
	metrics *metrics.Metrics
	limiter *callerLimiter
	tracer  trace.TracerProvider
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithJournal enables GET /v1/claims/:id/notifications.
func WithJournal(j Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithPinger makes /healthz check the backend.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimit limits mutating requests per caller to r per second with
// the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(s *Server) { s.limiter = newCallerLimiter(r, burst, limiterIdleTTL) }
}

// WithTracerProvider opens a server span per request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server for svc.
func New(svc *claims.Service, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.tracer != nil {
		r.Use(otelgin.Middleware("claimledger", otelgin.WithTracerProvider(s.tracer)))
	}
	r.Use(s.observe(), credentials())

	r.GET("/healthz", s.healthz)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := r.Group("/v1/claims")
	v1.GET("", s.listClaims)
	v1.GET("/:id", s.getClaim)
	v1.GET("/:id/notifications", s.claimNotifications)

	mutating := v1.Group("", s.rateLimit())
	mutating.POST("", s.createClaim)
	mutating.POST("/:id/documents", s.addDocument)
	mutating.PUT("/:id/status", s.updateStatus)

	return r
}
