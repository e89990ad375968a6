package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/claimledger/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// ready, when set, receives the bound address once listening.
	ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the claim registry over HTTP",
		Long: `Start the HTTP API and block until interrupted.

Routes:
  POST /v1/claims                      create a claim
  GET  /v1/claims                      list claims (?after=&limit=)
  GET  /v1/claims/:id                  read a claim
  POST /v1/claims/:id/documents        append a document reference
  PUT  /v1/claims/:id/status           change the status
  GET  /v1/claims/:id/notifications    journal entries (sqlite backend)
  GET  /healthz, GET /metrics

Examples:
  claimledger serve
  claimledger serve --addr :9090 --db ./claims.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config http.addr)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	cfg := a.cfg.HTTP
	addr := opts.Addr
	if addr == "" {
		addr = cfg.Addr
	}

	gin.SetMode(gin.ReleaseMode)
	serverOpts := []api.Option{
		api.WithMetrics(a.metrics),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		api.WithTracerProvider(a.tracer),
		api.WithLogger(a.logger),
	}
	if a.journal != nil {
		serverOpts = append(serverOpts, api.WithJournal(a.journal), api.WithPinger(a.journal))
	}

	srv := &http.Server{
		Handler:      api.New(a.service, serverOpts...).Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	a.logger.Info("server starting", "addr", ln.Addr().String(), "backend", a.cfg.Backend, "auth", a.cfg.Auth.Mode)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", ln.Addr())
	if opts.ready != nil {
		opts.ready(ln.Addr().String())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("shutting down", "reason", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "graceful shutdown failed", err)
	}
	a.logger.Info("server stopped gracefully")
	return nil
}
