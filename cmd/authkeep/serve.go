// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/httpapi"
	"github.com/authkeep/authkeep/internal/logging"
	"github.com/authkeep/authkeep/internal/notify"
	"github.com/authkeep/authkeep/internal/observability"
	"github.com/authkeep/authkeep/pkg/errutil"
)

const serviceName = "authkeep"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API",
		Long: `Start the HTTP account API and, unless disabled, the metrics and
health endpoints. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger, err := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, deps.LogWriter)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting authkeep",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"store", cfg.Store.Driver,
		"mail", cfg.Mail.Driver)

	accounts, closeStore, err := deps.StoreOpener(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hasher, err := auth.NewArgon2idHasher(cfg.Argon2Params())
	if err != nil {
		return err
	}
	codec, err := auth.NewJWTCodec(cfg.CodecConfig())
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.Metrics.Addr,
		observability.PingReadiness(accounts),
		observability.WithLogger(logger))
	metrics := obsServer.Metrics()

	sink, err := deps.SinkFactory(cfg, logger)
	if err != nil {
		return err
	}
	dispatcher, err := notify.NewDispatcher(sink,
		notify.WithLogger(logger),
		notify.WithSendTimeout(cfg.Mail.SendTimeout),
		notify.WithRecorder(metrics))
	if err != nil {
		return err
	}

	svc, err := auth.NewService(accounts, hasher, auth.NewRandomCodeGenerator(), codec, dispatcher,
		auth.WithLogger(logger),
		auth.WithRequireVerifiedLogin(cfg.Auth.RequireVerifiedLogin),
		auth.WithMailFrom(cfg.Mail.From))
	if err != nil {
		return err
	}
	handler := httpapi.NewHandler(svc,
		httpapi.WithLogger(logger),
		httpapi.WithRecorder(metrics))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	cmd.Println("authkeep started")
	logger.Info("authkeep ready", "http_addr", listener.Addr().String())
	if deps.Ready != nil {
		deps.Ready(listener.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case err, ok := <-obsErrCh:
		if ok && err != nil {
			runErr = oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
		}
	}

	// API first so no new notifications are queued, then drain the dispatcher.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping HTTP server", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		errutil.LogError(logger, "notifications still in flight at shutdown", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(s *observability.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("failed to stop observability server during cleanup", "error", err)
	}
}
