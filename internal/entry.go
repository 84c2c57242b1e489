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

	"github.com/SilverRainZ/loveletter/internal/api"
	"github.com/SilverRainZ/loveletter/internal/archive"
	"github.com/SilverRainZ/loveletter/internal/gitrepo"
	"github.com/SilverRainZ/loveletter/internal/index"
	"github.com/SilverRainZ/loveletter/internal/mailbox"
)

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

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("letter_dir", cfg.Archive.LetterDir),
		slog.String("doc_dir", cfg.Archive.DocDir),
		slog.Bool("imap_enabled", cfg.IMAP.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure archive directories exist.
	if cfg.Archive.CreateDirs {
		if err := os.MkdirAll(cfg.Archive.LetterDir, 0o755); err != nil {
			return fmt.Errorf("create letter dir: %w", err)
		}
		if err := os.MkdirAll(cfg.Archive.DocDir, 0o755); err != nil {
			return fmt.Errorf("create doc dir: %w", err)
		}
	}

	// Resolve the git repositories behind the archive directories. Both
	// directories usually live in the same repository but may not.
	var letterRepo, docRepo gitrepo.Syncer
	if cfg.Archive.Git {
		var err error
		letterRepo, err = gitrepo.Load(cfg.Archive.LetterDir)
		if err != nil {
			return fmt.Errorf("load letter repo: %w", err)
		}
		docRepo, err = gitrepo.Load(cfg.Archive.DocDir)
		if err != nil {
			return fmt.Errorf("load doc repo: %w", err)
		}
	}

	arch, err := archive.New(archive.Options{
		LetterDir:   cfg.Archive.LetterDir,
		DocDir:      cfg.Archive.DocDir,
		AllowedFrom: cfg.Archive.AllowedFrom,
		AllowedTo:   cfg.Archive.AllowedTo,
		LetterRepo:  letterRepo,
		DocRepo:     docRepo,
		Push:        cfg.Archive.Push,
		PreCleanup:  cfg.Archive.PreCleanup,
		Overwrite:   cfg.Archive.Overwrite,
		Retry:       cfg.Archive.Retry,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, arch.Letters(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// Mailbox source: injected for tests, IMAP otherwise.
	source := app.source
	if source == nil && cfg.IMAP.Enabled() {
		source = mailbox.NewIMAP(cfg.IMAP.Host, cfg.IMAP.Port,
			cfg.IMAP.Username, cfg.IMAP.Password, cfg.IMAP.Mailbox, logger)
	}

	// Build API router.
	apiRouter := api.NewRouter(arch, db, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
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

	g, gCtx := errgroup.WithContext(ctx)

	// Start letter directory watcher.
	g.Go(func() error {
		if err := index.Watch(gCtx, db, arch.Letters(), logger); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start mailbox poll loop.
	if source != nil {
		g.Go(func() error {
			poll(gCtx, arch, source, time.Duration(cfg.Runtime.Interval)*time.Second, logger)
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

// poll fetches unseen mail on a fixed interval and archives each
// message. One failed message never blocks the rest of the batch, and
// documents are regenerated once per non-empty batch.
func poll(ctx context.Context, arch *archive.Archive, source mailbox.Source, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		msgs, err := source.FetchUnseen(ctx)
		if err != nil {
			logger.Error("mailbox fetch failed", slog.String("error", err.Error()))
		}

		archived := 0
		for _, msg := range msgs {
			letter, err := arch.UpsertLetter(msg)
			if err != nil {
				logger.Warn("letter rejected",
					slog.String("subject", msg.Subject),
					slog.String("error", err.Error()))
				continue
			}
			logger.Info("letter archived",
				slog.String("file", archive.Filename(letter.Date, letter.Title)),
				slog.String("date", letter.Date.String()))
			archived++
		}
		if archived > 0 {
			if err := arch.GenerateDocs(); err != nil {
				logger.Error("generate docs failed", slog.String("error", err.Error()))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
