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

	"github.com/theoryandpractice/sitekit/internal/api"
	"github.com/theoryandpractice/sitekit/internal/index"
	"github.com/theoryandpractice/sitekit/internal/mcpserver"
	"github.com/theoryandpractice/sitekit/internal/siteservice"
	"github.com/theoryandpractice/sitekit/internal/sse"
	"github.com/theoryandpractice/sitekit/internal/storage"
	"github.com/theoryandpractice/sitekit/internal/watch"
)

// Version is reported by the MCP server.
const Version = "0.1.0"

// contextThrottle is the minimum gap between context.updated events.
const contextThrottle = 2 * time.Second

// Generate runs every plugin once and writes the data files and assets.
func Generate(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	store, err := storage.NewFS(".")
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	svc := siteservice.New(cfg.Site.Settings(), cfg.Site.PagesDir, store, nil, app.logger)

	if _, err := svc.Regenerate(ctx); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := svc.WriteData(cfg.Site.DataDir); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	for _, s := range svc.Sections() {
		fmt.Fprintf(app.out, "%s: %d records\n", s.Key, s.Records)
	}
	fmt.Fprintf(app.out, "Wrote data to %s\n", cfg.Site.DataDir)
	return nil
}

// Run starts the preview server: the site data is generated and indexed,
// served as JSON, and regenerated whenever a source file changes.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_path", cfg.Site.Path),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(".")
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	svc := siteservice.New(cfg.Site.Settings(), cfg.Site.PagesDir, store, db, logger)
	regenerate := func(ctx context.Context) []string {
		changed, err := svc.Regenerate(ctx)
		if err != nil {
			logger.Warn("regenerate failed", slog.String("error", err.Error()))
		}
		if err := svc.WriteData(cfg.Site.DataDir); err != nil {
			logger.Warn("write data failed", slog.String("error", err.Error()))
		}
		return changed
	}
	regenerate(ctx)

	broker := sse.NewBroker(contextThrottle)
	defer broker.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if svc.GeneratedAt().IsZero() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"generating"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(svc, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	watcher := watch.New(cfg.Site.Path, logger)
	g.Go(func() error {
		err := watcher.Run(gCtx, func(events []watch.Event) {
			for _, ev := range events {
				broker.PublishSourceEvent(ev.Op, ev.Path)
			}
			if changed := regenerate(gCtx); len(changed) > 0 {
				broker.PublishContextUpdated(changed)
			}
		})
		if err != nil {
			// The server stays useful without live reload.
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the HTTP server has been shut down.
var errShutdown = errors.New("shutdown")

// ServeMCP generates the site data once and serves it over MCP stdio.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	store, err := storage.NewFS(".")
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	svc := siteservice.New(cfg.Site.Settings(), cfg.Site.PagesDir, store, db, app.logger)
	if _, err := svc.Regenerate(ctx); err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	app.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(svc, Version).ServeStdio()
}
