package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/config"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer/memstore"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer/pgstore"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/logging"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/settings"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/web"
)

func main() {
	// Load .env if it exists; variables already set in the environment win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	var (
		settingsRepo settings.Repository
		reference    importer.ReferenceStore
		history      importer.HistoryStore
		serverOpts   []web.Option
	)

	if cfg.Database.Enabled() {
		store, err := pgstore.New(ctx, cfg.Database.URL, cfg.Import.HistoryLimit)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		settingsRepo = store.Settings()
		reference = store
		history = store
		serverOpts = append(serverOpts, web.WithReadiness(store.Ping))
		slog.Info("using postgres stores")
	} else {
		store := memstore.New(cfg.Import.HistoryLimit)
		fileRepo := settings.NewFileRepository(cfg.Settings.Path)
		settingsRepo = fileRepo
		reference = store
		history = store
		slog.Warn("DATABASE_URL not set, reference data is kept in memory",
			"settings_path", fileRepo.Path(),
		)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	processor := importer.NewProcessor(
		importer.NewRowValidator(cfg.Import.RequiredFields),
		importer.WithWorkers(cfg.Import.ValidateWorkers),
	)
	limiter := importer.NewLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)

	service := importer.NewService(settingsRepo, reference, history, processor,
		importer.WithLimiter(limiter),
		importer.WithMetrics(importer.NewMetrics(registry)),
		importer.WithMaxRows(cfg.Import.MaxRows),
		importer.WithHistoryLimit(cfg.Import.HistoryLimit),
		importer.WithSources(cfg.Import.Sources),
	)

	server := web.NewServer(cfg, service, registry, serverOpts...)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := limiter.Status(); st.Active > 0 {
			slog.Info("waiting for imports to complete", "active", st.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
