package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"price-advisor/internal/cache"
	"price-advisor/internal/config"
	"price-advisor/internal/metrics"
	"price-advisor/internal/scheduler"
	"price-advisor/internal/server"
	"price-advisor/internal/service"
	"price-advisor/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openCache(ctx context.Context, reg *metrics.Registry) (*cache.AnalysisCache, error) {
	return cache.New(ctx, a.Config.Redis, reg, a.Logger)
}

// Serve runs the HTTP API plus the optional scheduled analysis refresh
// until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; storage endpoints will report unavailable")
	} else {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if closeStore != nil {
		defer closeStore()
	}

	reg := metrics.NewRegistry()

	analysisCache, err := a.openCache(ctx, reg)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("redis unavailable; continuing without cache")
		analysisCache = nil
	}
	if analysisCache != nil {
		defer analysisCache.Close()
	}

	analyzer := service.New(a.Config, store, store, analysisCache, reg, a.Logger)

	var db server.Pinger
	if store != nil {
		db = store
	}
	srv := server.New(a.Config, store, store, analyzer, analysisCache, reg, db, a.Logger)

	if interval := a.Config.Analysis.RefreshInterval; interval > 0 && store != nil {
		target, targetErr := a.Config.ResolveTarget("")
		if targetErr != nil {
			return targetErr
		}
		sched := scheduler.New(scheduler.Options{
			Interval:     interval,
			AlignToStart: true,
			StartupDelay: a.Config.Analysis.StartupDelay,
		}, a.Logger)
		go func() {
			_ = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
				_, refreshErr := analyzer.RefreshAll(ctx, target)
				return refreshErr
			})
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.Logger.Error().Err(err).Msg("http server failed")
		}
		return err
	case <-ctx.Done():
		a.Logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		return <-errCh
	}
}

// ImportOptions configure a CSV import run.
type ImportOptions struct {
	Path   string
	Owner  string
	DryRun bool
}

// AnalyzeOptions configure an analysis run.
type AnalyzeOptions struct {
	Owner  string
	Target string
	All    bool
}

// ExportOptions hold parameters for exporting stored analyses and charts.
type ExportOptions struct {
	Owner     string
	Product   string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Owner string
}

// SimulateOptions configure an offline what-if run over a local CSV file.
type SimulateOptions struct {
	Path   string
	Target string
	Cost   float64
}
