// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/nibsbin/quillmark/internal/api"
	"github.com/nibsbin/quillmark/internal/mcpserver"
	"github.com/nibsbin/quillmark/internal/quillservice"
	"github.com/nibsbin/quillmark/internal/registry"
	"github.com/nibsbin/quillmark/internal/sse"
	"github.com/nibsbin/quillmark/internal/storage"
	"github.com/nibsbin/quillmark/pkg/backend/html"
	"github.com/nibsbin/quillmark/pkg/engine"
)

// NewLogger builds the application logger from the configuration. Output
// goes to stderr when the MCP server is enabled, because stdout then
// carries the MCP stdio protocol.
func NewLogger(cfg *Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.MCP.Enabled {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.App.LogLevel}
	if cfg.App.LogJSON {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg)
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("quills_path", cfg.Quills.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("assets_dir", cfg.Render.AssetsDir),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Bool("watch", cfg.Quills.Watch),
		slog.Bool("mcp", cfg.MCP.Enabled))

	// Ensure working directories exist.
	if err := os.MkdirAll(cfg.Quills.Path, 0o755); err != nil {
		return fmt.Errorf("create quills dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Render.AssetsDir, 0o755); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	// Staged-asset storage.
	store, err := storage.NewFS(cfg.Render.AssetsDir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// SQLite quill catalog.
	db, err := registry.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init registry: %w", err)
	}
	defer db.Close()

	// Render engine with the HTML backend.
	engOpts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Quills.Default != "" {
		engOpts = append(engOpts, engine.WithDefaultQuill(cfg.Quills.Default))
	}
	eng := engine.New(engOpts...)
	eng.RegisterBackend(html.New())

	svc := quillservice.NewService(db, eng, store, cfg.Render.MaxBytes)

	// Initial catalog sync; discovered quills are registered with the engine.
	changes, err := registry.Sync(db, cfg.Quills.Path, logger)
	if err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	for _, c := range changes {
		svc.ApplyChange(c)
	}
	logger.Info("Catalog synced", slog.Int("changes", len(changes)))

	// SSE broker for registry events.
	broker := sse.NewBroker(2 * time.Second)

	// Build API router.
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoint (unauthenticated).
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Cancel on SIGINT/SIGTERM so the watcher and MCP goroutines unwind;
	// waiting on a signal channel alone would leave them blocked, since the
	// group context is only cancelled by an error or parent cancellation.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Start quills watcher with SSE callback.
	if cfg.Quills.Watch {
		g.Go(func() error {
			err := registry.Watch(gCtx, db, cfg.Quills.Path, logger, func(c registry.Change) {
				svc.ApplyChange(c)
				broker.PublishQuillEvent(c.Event)
			})
			if err != nil {
				logger.Warn("watcher exited", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start MCP server on stdio.
	if cfg.MCP.Enabled {
		g.Go(func() error {
			logger.Info("Starting MCP server on stdio")
			m := mcpserver.New(svc)
			if err := m.ServeStdio(gCtx); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown once the group context is cancelled.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
