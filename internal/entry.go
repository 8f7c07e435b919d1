// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mosaic/internal/api"
	"github.com/starford/mosaic/internal/controller"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/index"
	"github.com/starford/mosaic/internal/library"
	"github.com/starford/mosaic/internal/mcpserver"
	"github.com/starford/mosaic/internal/sse"
	"github.com/starford/mosaic/internal/storage"
)

// runtime holds the components shared by the HTTP server and the MCP server.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	lib    *library.Service
}

func setup(opts []Option) (*runtime, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		// Initialize structured JSON logger.
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("default_mode", cfg.Layout.DefaultMode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Library.Path, cfg.Library.Extensions...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	lib := library.NewService(store, db, library.Options{
		ProbeConcurrency: cfg.Layout.ProbeConcurrency,
		AssetBaseURL:     cfg.Layout.AssetBaseURL,
	}, logger)

	return &runtime{cfg: cfg, logger: logger, store: store, db: db, lib: lib}, nil
}

// initialSync indexes whatever changed on disk while the server was down.
func (rt *runtime) initialSync(ctx context.Context) {
	start := time.Now()
	stats, err := rt.lib.Rescan(ctx)
	if err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		return
	}
	total, _ := rt.db.Count()
	rt.logger.Info("initial sync complete",
		slog.Int("total", total),
		slog.Int("indexed", stats.Indexed),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", stats.Failed),
		slog.Duration("took", time.Since(start)))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	cfg, logger := rt.cfg, rt.logger

	rt.initialSync(ctx)

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	sessions := controller.NewRegistry(rt.lib, rt.lib, cfg.Layout.Settings(), logger)
	defer sessions.Close()

	apiRouter := api.NewRouter(rt.lib, sessions, api.Options{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		DefaultMode: gallery.Mode(cfg.Layout.DefaultMode),
		Geometry:    cfg.Layout.Geometry(0),
	}, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Image bytes for gallery items (unauthenticated, like <img src>).
	r.Get("/asset/*", api.NewAssetHandler(rt.store).ServeHTTP)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the library: index changes are pushed to SSE clients and every
	// mounted gallery reloads its image list.
	g.Go(func() error {
		err := index.Watch(gCtx, rt.db, rt.store, rt.store.Root(), logger, func(kind, path string) {
			rt.lib.Touch()
			event := sse.ImageEvent{Path: path}
			if kind != index.KindDeleted {
				event.URL = rt.lib.AssetURL(path)
			}
			broker.PublishImageEvent(kind, event, rt.lib.Version())
			sessions.ReloadAll()
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Close SSE streams first so Shutdown does not wait on them.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully", slog.Int("sessions", sessions.Count()))
	return nil
}

// errShutdown cancels the run group once shutdown has begun so the watcher
// stops too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdio. The index is synced first and kept
// current by a watcher for as long as the session lasts.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	rt.initialSync(ctx)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(watchCtx, rt.db, rt.store, rt.store.Root(), rt.logger, func(string, string) {
			rt.lib.Touch()
		}); err != nil {
			rt.logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	srv := mcpserver.New(rt.lib, rt.cfg.Layout.Geometry(0), gallery.Mode(rt.cfg.Layout.DefaultMode))
	return srv.ServeStdio()
}
