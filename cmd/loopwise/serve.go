package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/loopwise/internal/adapters/http/api"
	"github.com/okian/loopwise/internal/adapters/http/swagger"
	service "github.com/okian/loopwise/internal/app"
	"github.com/okian/loopwise/internal/config"
	"github.com/okian/loopwise/pkg/logger"
	"github.com/okian/loopwise/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Root context with cancel on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx, root)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			log, err := setupLog(cfg, os.Stdout)
			if err != nil {
				return err
			}
			if root.logLevel == "" {
				watchLogLevel(ctx, log)
			}
			return runServe(ctx, cfg, log, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

// watchLogLevel applies log_level changes from the config file while serving.
func watchLogLevel(ctx context.Context, log logger.Logger) {
	err := config.Watch(ctx,
		func(cfg *config.Config) {
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				log.Warn(ctx, "ignoring reloaded log level", logger.String("log_level", cfg.LogLevel), logger.Error(err))
				return
			}
			log.Info(ctx, "configuration reloaded", logger.String("log_level", cfg.LogLevel))
		},
		func(err error) {
			log.Warn(ctx, "configuration reload failed", logger.Error(err))
		},
	)
	if err != nil {
		log.Warn(ctx, "configuration file is not watched", logger.Error(err))
	}
}

// newService builds the analysis service from cfg.
func newService(cfg *config.Config, log logger.Logger) *service.Service {
	return service.New(
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithResultCacheSize(cfg.ResultCacheSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithDedupeTTL(time.Duration(cfg.DedupeTTLSeconds)*time.Second),
		service.WithMaxMetrics(cfg.MaxMetrics),
		service.WithEngineOptions(cfg.EngineOptions()...),
	)
}

// newHandler registers the docs and business routes for svc.
func newHandler(ctx context.Context, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

// runServe serves until ctx is done, then stops accepting requests and
// drains queued analyses. ready, when set, receives the bound address.
func runServe(ctx context.Context, cfg *config.Config, log logger.Logger, ready func(addr string)) error {
	metrics.SetEnabled(cfg.MetricsEnabled)
	metrics.SetRefreshInterval(time.Duration(cfg.MetricsRefreshSeconds) * time.Second)

	svc := newService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = svc.Stop(context.WithoutCancel(ctx))
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           newHandler(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	if ready != nil {
		ready(ln.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return runErr
}
