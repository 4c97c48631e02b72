package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/broker"
	"github.com/tgparkk/autoswingtrade/internal/config"
	"github.com/tgparkk/autoswingtrade/internal/engine"
	"github.com/tgparkk/autoswingtrade/internal/httpapi"
	"github.com/tgparkk/autoswingtrade/internal/notify"
	"github.com/tgparkk/autoswingtrade/internal/store"
	"github.com/tgparkk/autoswingtrade/internal/util"
)

func main() {
	cfgPath := "config/autoswingtrade.yaml"
	if p := os.Getenv("AST_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	// Stores.
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer db.Close()
	archive := store.NewParquetArchive(cfg.Storage.DataDir)

	// Market calendar.
	cal, err := util.NewTradingCalendar(cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close)
	if err != nil {
		log.Fatalf("building trading calendar: %v", err)
	}

	// Broker gateway, wrapped with rate limiting and retries.
	var gw broker.Gateway
	switch cfg.Broker.Provider {
	case "alpaca":
		gw = broker.NewAlpacaGateway(cfg.Broker.APIKey, cfg.Broker.APISecret,
			cfg.Broker.BaseURL, cfg.Broker.DataURL)
	case "simulator":
		sim := broker.NewSimulatorGateway(10_000_000)
		sim.AutoFill = cfg.Trading.TestMode
		gw = sim
	default:
		log.Fatalf("unknown broker provider %q", cfg.Broker.Provider)
	}
	limiter := util.NewRateLimiter(cfg.Trading.RateLimitPerMin)
	gw = broker.WithRetry(gw, cfg.Trading.RetryAttempts,
		time.Duration(cfg.Trading.RetryDelayMs)*time.Millisecond, limiter)

	eng := engine.New(cfg, gw, db, db, db, archive, cal, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("autoswingtrade starting",
		"broker", gw.Name(), "test_mode", cfg.Trading.TestMode)

	if err := eng.Recover(ctx); err != nil {
		log.Fatalf("recovering positions: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	if cfg.Notify.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notify.Pump(ctx, eng.Events(), notify.NewWebhookNotifier(cfg.Notify.WebhookURL), logger)
		}()
	}

	api := httpapi.NewServer(eng, cfg.Server.Host, cfg.Server.Port, logger)
	if err := api.ListenAndServe(ctx); err != nil {
		logger.Error("status API failed", "error", err)
		cancel()
	}

	wg.Wait()
	logger.Info("autoswingtrade stopped")
}
