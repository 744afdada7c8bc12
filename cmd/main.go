package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/auth"
	"github.com/GolovachevS/pr-reviewer-rbac/internal/config"
	migrate "github.com/GolovachevS/pr-reviewer-rbac/internal/db"
	transport "github.com/GolovachevS/pr-reviewer-rbac/internal/http"
	"github.com/GolovachevS/pr-reviewer-rbac/internal/service"
	postgres "github.com/GolovachevS/pr-reviewer-rbac/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("application stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := migrate.Connect(ctx, cfg.DatabaseURL, cfg.DBConnectAttempts)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrate.Run(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := postgres.New(pool)
	hasher := auth.BcryptHasher{Cost: cfg.BcryptCost}

	if cfg.AdminPassword != "" {
		if err := auth.EnsureAdmin(ctx, store, hasher, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	} else {
		logger.Warn("ADMIN_PASSWORD is empty, skipping admin bootstrap")
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	prs := service.NewPullRequests(service.PullRequestsConfig{
		Store:     store,
		Selector:  service.NewSelector(store, service.NewRandomPicker()),
		Tx:        store,
		Reviewers: cfg.ReviewersPerPR,
		Logger:    logger,
	})

	handler := transport.NewServer(transport.Deps{
		PullRequests: prs,
		Teams:        service.NewTeams(store, store, hasher),
		Auth:         auth.NewAuthenticator(store, hasher, tokens),
		Tokens:       tokens,
	})

	return serve(ctx, logger, &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	})
}

// serve runs srv until ctx is cancelled or the listener fails, then drains
// in-flight requests.
func serve(ctx context.Context, logger *slog.Logger, srv *http.Server) error {
	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", slog.String("addr", srv.Addr))
		listenErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch strings.ToLower(level) {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
