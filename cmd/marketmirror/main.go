package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketmirror/internal/config"
	"marketmirror/internal/core"
	"marketmirror/internal/ingestion"
	"marketmirror/internal/observability"
	"marketmirror/internal/rest"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log := observability.NewLogger("marketmirror")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	health := observability.NewHealthChecker()

	// --- REST client + engine ---
	client, err := rest.NewClient(rest.Config{
		BaseURL:   cfg.APIBaseURL,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.APITimeout,
		PageLimit: cfg.PageLimit,
	}, observability.NewLogger("rest"))
	if err != nil {
		log.Fatal().Err(err).Msg("building REST client")
	}

	engine := core.NewEngine(client, core.Options{
		SkipExpired:          cfg.SkipExpired,
		MaxParallelBookLoads: cfg.MaxParallelBookLoads,
		CatchUpLimit:         cfg.CatchUpLimit,
		ExpiryGuard:          cfg.ExpiryGuard,
		HeartbeatStaleness:   cfg.HeartbeatStaleness,
	}, metrics, health, observability.NewLogger("engine"))

	// --- Ledger replay for account balances ---
	if err := engine.LoadTransactions(ctx); err != nil {
		log.Warn().Err(err).Msg("transaction replay failed, balances start empty")
	}

	// --- Feed ---
	feedKey := ""
	if cfg.FeedAuthorized {
		feedKey = cfg.APIKey
	}
	feed := ingestion.NewFeed(cfg.FeedURL, feedKey, engine.HandleAction,
		metrics, observability.NewLogger("feed"))

	errChan := make(chan error, 4)

	// The repeater re-broadcasts raw frames for local consumers.
	if cfg.RepeatAddr != "" {
		repeater := ingestion.NewRepeater(observability.NewLogger("repeater"))
		feed.AttachRepeater(repeater)
		repeatServer := &http.Server{Addr: cfg.RepeatAddr, Handler: http.HandlerFunc(repeater.Handler)}
		go shutdownOnCancel(ctx, repeatServer)
		go func() {
			log.Info().Str("addr", cfg.RepeatAddr).Msg("repeater listening")
			if err := repeatServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("repeater server: %w", err)
			}
		}()
	}

	// Feed loop: the first connection triggers the initial market load.
	go func() {
		errChan <- feed.Run(ctx)
	}()

	// Periodic trade replay keeps the last-trade history fresh even for
	// contracts with no flow on the feed.
	go func() {
		ticker := time.NewTicker(cfg.TradeReplayInterval)
		defer ticker.Stop()
		for {
			if err := engine.ReplayRecentTrades(ctx, cfg.TradeReplayWindow); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Msg("trade replay failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// --- Metrics / health / status server ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)
	mux.Handle("/statusz", observability.StatusHandler(engine))
	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go shutdownOnCancel(ctx, httpServer)
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	log.Info().Str("feed", cfg.FeedURL).Str("api", cfg.APIBaseURL).
		Msg("market mirror started")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("fatal error, shutting down")
	}
	cancel()
}

func shutdownOnCancel(ctx context.Context, server *http.Server) {
	<-ctx.Done()
	shutCtx, release := context.WithTimeout(context.Background(), 5*time.Second)
	defer release()
	_ = server.Shutdown(shutCtx)
}
