package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/nes_dashboard/backend/internal/analytics"
	"github.com/nes_dashboard/backend/internal/cache"
	"github.com/nes_dashboard/backend/internal/config"
	"github.com/nes_dashboard/backend/internal/db"
	httpapi "github.com/nes_dashboard/backend/internal/http"
	"github.com/nes_dashboard/backend/internal/metrics"
	"github.com/nes_dashboard/backend/internal/service"
	"github.com/nes_dashboard/backend/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "nes-dashboard").Logger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	clock := quartz.NewReal()

	ctx := context.Background()
	store := db.New(db.Options{Path: cfg.StorePath, Logger: logger, Metrics: m})
	if err := store.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}

	// The cache is optional; without it loads go straight to the source.
	c, err := cache.Open(cfg.CachePath, cache.Options{Logger: logger, Metrics: m, Clock: clock})
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.CachePath).Msg("cache unavailable, continuing without it")
		c = nil
	}

	var warehouse *source.Warehouse
	if cfg.TicketsDatabaseURL != "" {
		warehouse, err = source.NewWarehouse(ctx, cfg.TicketsDatabaseURL)
		if err != nil {
			logger.Warn().Err(err).Msg("ticket warehouse unavailable, using TICKETS_URL")
			warehouse = nil
		}
	}

	engine := analytics.New(store, logger)
	sessionOpts := service.SessionOptions{
		Debounce: cfg.Debounce,
		RowCap:   cfg.RowCap,
		Clock:    clock,
		Logger:   logger,
		Location: time.Local,
	}
	tickets := service.NewTicketSession(store, engine, sessionOpts)
	participation := service.NewParticipationSession(store, engine, sessionOpts)

	loader := &service.Loader{
		Store:     store,
		Cache:     c,
		Fetcher:   &source.Fetcher{Timeout: cfg.LoadTimeout},
		Warehouse: warehouse,
		Config:    cfg,
		Metrics:   m,
		Logger:    logger,
		Clock:     clock,
		OnReady: func(dataset string) {
			switch dataset {
			case service.DatasetTickets:
				tickets.Invalidate()
			case service.DatasetParticipation:
				participation.Invalidate()
			}
		},
	}

	loadCtx, cancelLoads := context.WithCancel(ctx)
	go func() {
		for _, err := range loader.LoadAll(loadCtx, false) {
			logger.Error().Err(err).Msg("initial load failed")
		}
	}()

	router := httpapi.Router(httpapi.Deps{
		Config:        cfg,
		Store:         store,
		Engine:        engine,
		Loader:        loader,
		Tickets:       tickets,
		Participation: participation,
		Gatherer:      registry,
		Location:      time.Local,
		Clock:         clock,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(ctxShutdown)
	cancelLoads()
	tickets.Close()
	participation.Close()
	if warehouse != nil {
		warehouse.Close()
	}
	err = multierr.Combine(err, c.Close(), store.Close())
	if err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	logger.Info().Msg("server stopped")
}
