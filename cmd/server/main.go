package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gopaper/papersim/params"
	"github.com/gopaper/papersim/pkg/api"
	"github.com/gopaper/papersim/pkg/exchange"
	"github.com/gopaper/papersim/pkg/instrument"
	"github.com/gopaper/papersim/pkg/pricefeed"
	"github.com/gopaper/papersim/pkg/quotes"
	"github.com/gopaper/papersim/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Server.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Server.LogFile)

	// ---- Core: instruments, price process, ledger, accountant, engine ----
	registry := instrument.NewDefaultRegistry()
	simulator := pricefeed.NewSimulator()
	for _, inst := range registry.List() {
		simulator.Track(inst.Symbol, inst.BasePrice, inst.Volatility)
	}

	engine := exchange.NewEngine(registry, exchange.NewLedger(), exchange.NewAccountant(), simulator)
	engine.Delay = cfg.Engine.ExecutionDelay
	engine.Logger = sugar

	// ---- Real-market calibration ----
	// Seed the simulated series from the quote provider where available;
	// ErrUnavailable keeps the configured base prices.
	var quoteClient *quotes.Client
	if cfg.Quotes.AlphaVantageKey != "" {
		quoteClient = quotes.NewClient(cfg.Quotes.AlphaVantageKey)
		quoteClient.TTL = cfg.Quotes.CacheTTL
		seedInstruments(registry, simulator, quoteClient, sugar)
	} else {
		sugar.Info("real price seeding disabled - no ALPHAVANTAGE_API_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(engine, sugar)

	engine.OnTrade = func(trade exchange.Trade) {
		apiServer.BroadcastTrade(trade)
	}

	// Quote stream: step each symbol and broadcast to subscribers
	go streamQuotes(ctx, registry, simulator, apiServer, cfg.Quotes.StreamInterval)

	// Periodic recalibration against the real market
	if quoteClient != nil {
		go recalibrate(ctx, registry, simulator, quoteClient, sugar, cfg.Quotes.RecalibrateInterval)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: apiServer.Handler(),
	}

	go apiServer.RunHub()

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("shutdown_error", "err", err)
	}
}

// seedInstruments initializes the simulator from real-market prices
func seedInstruments(registry *instrument.Registry, sim *pricefeed.Simulator, client *quotes.Client, sugar *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, inst := range registry.List() {
		price, err := client.LookupPrice(ctx, inst.Symbol)
		if err != nil {
			sugar.Infow("seed_skipped", "symbol", inst.Symbol, "err", err)
			continue
		}
		sim.Seed(inst.Symbol, price)
		sugar.Infow("seeded_from_real_price", "symbol", inst.Symbol, "price", price)
	}
}

// streamQuotes drives the price process and broadcasts each step over WS
func streamQuotes(ctx context.Context, registry *instrument.Registry, sim *pricefeed.Simulator, server *api.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, inst := range registry.List() {
				quote, err := sim.Sample(inst.Symbol)
				if err != nil {
					continue
				}
				server.BroadcastQuote(quote.Symbol, quote.Price, quote.Change, quote.ChangePercent, quote.Volume, quote.Bid, quote.Ask)
			}
		}
	}
}

// recalibrate occasionally nudges the simulated series toward real prices
func recalibrate(ctx context.Context, registry *instrument.Registry, sim *pricefeed.Simulator, client *quotes.Client, sugar *zap.SugaredLogger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, inst := range registry.List() {
				price, err := client.LookupPrice(ctx, inst.Symbol)
				if err != nil {
					continue
				}
				sim.Seed(inst.Symbol, price)
			}
		}
	}
}
