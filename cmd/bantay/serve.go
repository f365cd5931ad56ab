package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/lborres/bantay"
	chiadapter "github.com/lborres/bantay/adapters/chi"
	"github.com/lborres/bantay/adapters/nethttp"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/config"
	"github.com/lborres/bantay/internal/metrics"
	"github.com/lborres/bantay/providers"
)

func serveCmd() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auth server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.Load(), migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply SQL migrations before serving")
	return cmd
}

// buildProviders enables every provider whose credentials are configured.
func buildProviders(cfg config.AppConfig) []bantay.Provider {
	var out []bantay.Provider
	if cfg.GitHubClientID != "" {
		out = append(out, providers.GitHub(cfg.GitHubClientID, cfg.GitHubClientSecret))
	}
	if cfg.GoogleClientID != "" {
		out = append(out, providers.Google(cfg.GoogleClientID, cfg.GoogleClientSecret))
	}
	if cfg.TwitterConsumerKey != "" {
		out = append(out, providers.Twitter(cfg.TwitterConsumerKey, cfg.TwitterConsumerSecret))
	}
	if cfg.SMTPServer != "" && cfg.EmailFrom != "" {
		out = append(out, providers.Email(cfg.SMTPServer, cfg.EmailFrom))
	}
	return out
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newServer wires bantay, health, metrics and a protected /me route onto a
// chi router.
func newServer(cfg config.AppConfig, adapter core.Adapter, logger *zap.Logger) (*bantay.Bantay, http.Handler, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	auth, err := bantay.New(bantay.Config{
		Secret:    cfg.Secret,
		URL:       cfg.URL,
		BasePath:  cfg.BasePath,
		Providers: buildProviders(cfg),
		Adapter:   adapter,
		Session: bantay.SessionConfig{
			Strategy: core.SessionStrategy(cfg.SessionStrategy),
			MaxAge:   cfg.SessionMaxAge,
		},
		Logger:         logger,
		Debug:          cfg.Debug,
		Registerer:     registry,
		TracerProvider: otel.GetTracerProvider(),
		HTTP:           chiadapter.New(router),
	})
	if err != nil {
		return nil, nil, err
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Handle("/metrics", metrics.Handler(registry))
	router.With(chiadapter.Protected(auth)).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(nethttp.SessionFrom(r.Context()))
	})
	return auth, router, nil
}

// sweepSessions purges expired database sessions every interval until ctx
// is done.
func sweepSessions(ctx context.Context, sweeper core.SessionSweeper, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := sweeper.DeleteExpiredSessions(ctx, now)
			if err != nil {
				logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}

func serve(ctx context.Context, cfg config.AppConfig, migrateFirst bool) error {
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if migrateFirst {
		if err := runMigrations(cfg); err != nil {
			return err
		}
	}

	adapter, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	_, handler, err := newServer(cfg, adapter, logger)
	if err != nil {
		return err
	}

	if sweeper, ok := adapter.(core.SessionSweeper); ok && cfg.SweepInterval > 0 {
		go sweepSessions(ctx, sweeper, cfg.SweepInterval, logger)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
