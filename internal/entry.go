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

	"github.com/starford/sway/internal/api"
	"github.com/starford/sway/internal/document"
	"github.com/starford/sway/internal/mcpserver"
	"github.com/starford/sway/internal/preset"
	"github.com/starford/sway/internal/sse"
	"github.com/starford/sway/internal/storage"
	"github.com/starford/sway/internal/swayservice"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Components are the document, preset library and service shared by every
// entry point.
type Components struct {
	Doc     *document.DB
	Store   *storage.FS
	Presets *preset.Library
	Service *swayservice.Service
	Logger  *slog.Logger
}

// Close releases the document database.
func (c *Components) Close() error {
	return c.Doc.Close()
}

// Open builds the components described by opts. extra is appended to the
// service options.
func Open(ctx context.Context, opts []Option, extra ...swayservice.Option) (*Components, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return app.open(ctx, extra...)
}

func (a *application) open(ctx context.Context, extra ...swayservice.Option) (*Components, error) {
	cfg := a.config
	logger := a.logger()

	store, err := storage.NewFS(cfg.Presets.Dir)
	if err != nil {
		return nil, fmt.Errorf("init preset storage: %w", err)
	}
	lib, err := preset.NewLibrary(store, logger)
	if err != nil {
		return nil, fmt.Errorf("init presets: %w", err)
	}

	db, err := document.Open(cfg.Document.Path)
	if err != nil {
		return nil, fmt.Errorf("init document: %w", err)
	}

	svcOpts := []swayservice.Option{
		swayservice.WithTuning(cfg.Engine.Tuning()),
		swayservice.WithTieTolerance(cfg.Engine.RootTieTolerance),
		swayservice.WithLogger(logger),
	}
	svc := swayservice.New(db, lib, append(svcOpts, extra...)...)

	if cfg.Document.Scene != "" {
		data, err := os.ReadFile(cfg.Document.Scene)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("read scene: %w", err)
		}
		if _, err := svc.ImportScene(ctx, data); err != nil {
			db.Close()
			return nil, fmt.Errorf("import scene: %w", err)
		}
	}

	return &Components{Doc: db, Store: store, Presets: lib, Service: svc, Logger: logger}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.open(ctx, swayservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer c.Close()

	logger := c.Logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("document_path", cfg.Document.Path),
		slog.String("presets_dir", c.Store.Root()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	apiRouter := api.NewRouter(c.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.Service.Timeline(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
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

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Reload presets on file changes and tell subscribers.
	if cfg.Presets.Watch {
		g.Go(func() error {
			err := c.Presets.Watch(gCtx, c.Store.Root(), func(names []string) {
				broker.PublishSwayEvent(swayservice.EventPresetsUpdated, map[string]any{"names": names})
			})
			if err != nil {
				logger.Warn("preset watcher stopped", slog.String("error", err.Error()))
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

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the sway tools over MCP stdio until stdin closes. Logs go
// to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, err := Open(ctx, append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer c.Close()

	c.Logger.Info("MCP server starting")
	return mcpserver.New(c.Service).ServeStdio()
}
