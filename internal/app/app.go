package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/transport/middleware"
	"github.com/heartmarshall/nfc-fortune-backend/internal/transport/rest"
)

// Options are the command-line switches of the server binary.
type Options struct {
	ConfigPath string
	// Migrate applies pending migrations before serving, in addition to
	// database.auto_migrate.
	Migrate bool
}

// Run is the server entry point. It loads configuration, wires the fortune
// stack and serves HTTP until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.LoadFrom(opts.ConfigPath)
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("generation_mode", cfg.Fortune.GenerationMode),
		slog.String("ai_provider", cfg.AI.Provider),
	)

	stack, err := NewStack(ctx, cfg, logger, opts.Migrate || cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	defer stack.Close()

	limiter := middleware.NewRateLimiter(time.Minute)
	defer limiter.Stop()

	var healthOpts []rest.HealthOption
	if stack.Cache != nil {
		healthOpts = append(healthOpts, rest.WithOptionalComponent("cache", stack.Cache))
	}

	mux := rest.NewRouter(rest.Routes{
		Fortune:     rest.NewFortuneHandler(stack.Fortune, cfg.Batch.Timeout, logger),
		User:        rest.NewUserHandler(stack.Users, logger),
		Health:      rest.NewHealthHandler(stack.Pool, BuildVersion(), healthOpts...),
		Metrics:     promhttp.Handler(),
		PublicLimit: limiter.Limit(cfg.RateLimit.FortunePerMinute),
		BatchAuth:   middleware.BearerToken(cfg.Batch.Token),
	})

	handler := middleware.Chain(
		middleware.RequestID(),
		middleware.ClientIP(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.CORS),
	)(mux)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}
