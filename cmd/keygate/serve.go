package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keygate/internal/api"
	"keygate/internal/config"
	"keygate/internal/database"
	"keygate/internal/database/repositories"
	"keygate/internal/gate"
	"keygate/internal/geo"
	"keygate/internal/probe"
	"keygate/internal/realtime"
	"keygate/internal/risk"
	"keygate/internal/session"

	"github.com/panjf2000/ants/v2"
	"github.com/pterm/pterm"
)

const (
	collectInterval = time.Second
	shutdownTimeout = 10 * time.Second
)

// antsLogger routes the worker pool's own messages through pterm
type antsLogger struct {
	logger *pterm.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func runServe(cfg *config.Config, logger *pterm.Logger) error {
	db, err := database.NewConnection(&database.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnMaxLife:  cfg.Database.ConnMaxLife,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	repos := gate.Repositories{
		Bans:     repositories.NewBanListRepository(db, logger),
		Settings: repositories.NewSettingsRepository(db, logger),
		Visitors: repositories.NewVisitorLogRepository(db, logger),
		Blocked:  repositories.NewBlockedLogRepository(db, logger),
	}
	if err := repos.Settings.SeedDefaults(context.Background(), gate.DefaultSettings()); err != nil {
		return fmt.Errorf("seed site settings: %w", err)
	}

	cleanup := database.NewCleanupService(db, logger, database.RetentionOptions{
		Days:          cfg.Database.RetentionDays,
		CheckInterval: cfg.Database.CleanupInterval,
		DailyAt:       cfg.Database.CleanupTime,
		Vacuum:        cfg.Database.VacuumEnabled,
	})
	cleanup.Start()
	defer cleanup.Stop()

	providers, closers := buildProviders(cfg.Geo, logger)
	defer closeAll(closers, logger)
	chain := geo.NewChain(providers, cfg.Geo.Timeout, logger)
	logger.Info("Geolocation providers ready", logger.Args("order", chain.Providers()))

	scorer := risk.NewScorer(risk.WeightsFromConfig(cfg.Risk))
	prober := probe.NewProber(chain, probe.CandidateLeak{}, scorer, cfg.Geo.LeakTimeout, logger)

	collector := realtime.NewCollector(logger)
	collector.Start(collectInterval)
	defer collector.Stop()

	flags := session.NewStore(cfg.Session.TTL)
	service := gate.NewService(prober, repos, flags, collector, scorer.Threshold(), logger)

	pool, err := ants.NewPool(cfg.VisitWorkers,
		ants.WithNonblocking(true),
		ants.WithLogger(antsLogger{logger}),
		ants.WithPanicHandler(func(p any) {
			logger.WithCaller().Error("Visit worker panicked", logger.Args("panic", p))
		}),
	)
	if err != nil {
		return fmt.Errorf("visit worker pool: %w", err)
	}
	defer func() {
		if err := pool.ReleaseTimeout(shutdownTimeout); err != nil {
			logger.Warn("Visit workers did not finish in time", logger.Args("error", err))
		}
	}()

	router := api.NewRouter(api.Dependencies{
		Config:    cfg,
		DB:        db,
		Gate:      service,
		Repos:     repos,
		Collector: collector,
		Cleanup:   cleanup,
		Sessions:  flags,
		VisitPool: pool,
		Logger:    logger,
	})

	server := api.NewServer(cfg.Server.Addr(), router, logger)
	serveErr := server.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.Info("Shutting down", logger.Args("signal", sig.String()))
	}

	if err := server.Shutdown(shutdownTimeout); err != nil {
		logger.Warn("HTTP server did not shut down cleanly", logger.Args("error", err))
	}
	return nil
}
