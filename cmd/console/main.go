package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playback-console/internal/console"
	"playback-console/internal/engine"
	"playback-console/internal/origin"
	"playback-console/internal/platform/config"
	"playback-console/internal/platform/logger"
	"playback-console/internal/platform/metrics"
	"playback-console/internal/sources"

	"github.com/go-chi/chi/v5"
)

const (
	shutdownTimeout = 10 * time.Second
	demoSegment     = 4 * time.Second
	demoRecorded    = 30
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	settings, closeSettings, err := sources.Open(ctx, sources.Backend{
		Kind:        cfg.SettingsBackend,
		Path:        cfg.SettingsPath,
		RedisURL:    cfg.RedisURL,
		RedisPrefix: cfg.RedisPrefix,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Error("settings store unavailable", "backend", cfg.SettingsBackend, "error", err)
		os.Exit(1)
	}
	defer closeSettings()

	seeds, protected := sources.SeedSet(cfg.SeedSet)
	history := sources.NewHistory(settings, sources.HistoryOptions{
		Key:       cfg.HistoryKey,
		Seeds:     seeds,
		Protected: protected,
		Logger:    log,
		Metrics:   met,
	})
	history.Load(ctx)

	repo := origin.NewRepository()
	svc := origin.NewService(repo, cfg.OriginWindowSize)
	if cfg.OriginDemo {
		pub := origin.NewPublisher(svc, origin.DemoRenditions, demoSegment, log)
		if err := pub.PublishRecorded("demo-vod", demoRecorded); err != nil {
			log.Error("demo publish failed", "error", err)
		}
		go func() {
			if err := pub.RunLive(ctx, "demo-live"); err != nil {
				log.Error("demo live stream stopped", "error", err)
			}
		}()
	}

	prober := engine.NewProber(&http.Client{Timeout: cfg.ProbeTimeout})
	sim := engine.NewSim(engine.SimOptions{
		Probe:        prober.Probe,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       log,
	})
	defer sim.Close()

	hub := console.NewHub(log, met)
	go hub.Run(ctx)

	screen := console.NewScreen(sim, history, console.Options{
		TickInterval: cfg.TickInterval,
		SeekTimeout:  cfg.SeekTimeout,
		StartURL:     cfg.StreamURL,
		Logger:       log,
		Metrics:      met,
		Hub:          hub,
	})
	go func() {
		if err := screen.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("screen stopped", "error", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetActiveStreams(svc.ActiveStreamCount())
			met.SetViewers(hub.Viewers(r.Context()))
		}).ServeHTTP(w, r)
	})
	r.Route("/origin", origin.NewHandler(svc, log, met).Routes)
	console.NewHandler(screen, hub, log).Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"settings_backend", cfg.SettingsBackend,
		"seed_set", cfg.SeedSet,
		"sliding_window_size", cfg.OriginWindowSize,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	stop()

	log.Info("server stopped")
}
