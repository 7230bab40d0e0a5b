// Stockfolio server entrypoint.
//
// Startup order:
//  1. Load configuration (.env + environment)
//  2. Build the logger
//  3. Open and migrate the ledger and cache databases
//  4. Construct clients, cache, and services
//  5. Schedule background jobs (cache cleanup, rate-limit reset)
//  6. Serve HTTP until SIGINT/SIGTERM, then shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/dmarques/stockfolio/internal/clients/alphavantage"
	"github.com/dmarques/stockfolio/internal/clients/gemini"
	"github.com/dmarques/stockfolio/internal/config"
	"github.com/dmarques/stockfolio/internal/database"
	"github.com/dmarques/stockfolio/internal/marketcache"
	"github.com/dmarques/stockfolio/internal/modules/accounts"
	"github.com/dmarques/stockfolio/internal/modules/ledger"
	"github.com/dmarques/stockfolio/internal/modules/marketclock"
	"github.com/dmarques/stockfolio/internal/modules/marketdata"
	"github.com/dmarques/stockfolio/internal/modules/portfolio"
	"github.com/dmarques/stockfolio/internal/modules/recommendations"
	"github.com/dmarques/stockfolio/internal/server"
	"github.com/dmarques/stockfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.DevMode,
		App:    "stockfolio",
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Int("port", cfg.Port).Msg("Starting stockfolio")

	startingBalance, err := decimal.NewFromString(cfg.StartingBalance)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.StartingBalance).Msg("Invalid starting balance")
	}

	// Databases. The ledger gets the maximum-safety profile, the cache the
	// maximum-speed one.
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{ledgerDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Migration failed")
		}
	}

	// Clients and cache.
	cache := marketcache.New(cacheDB.Conn(), marketcache.Config{}, log)
	marketClient := alphavantage.NewClient(cfg.AlphaVantageAPIKey, cfg.ProviderTimeout, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AI client")
	}

	// Services.
	accountRepo := ledger.NewAccountRepository(ledgerDB.Conn())
	holdingRepo := ledger.NewHoldingRepository(ledgerDB.Conn())
	transactionRepo := ledger.NewTransactionRepository(ledgerDB.Conn())

	ledgerService := ledger.NewService(ledgerDB.Conn(), accountRepo, holdingRepo, transactionRepo, log)
	accountsService := accounts.NewService(accountRepo, startingBalance, log)
	clockService := marketclock.NewService()
	marketService := marketdata.NewService(marketClient, cache, clockService, log)
	portfolioService := portfolio.NewService(ledgerService, accountsService, marketService, log)
	recommendationService := recommendations.NewService(marketService, geminiClient, cache, log)

	// Background jobs.
	scheduler := cron.New()
	cleanup := marketcache.NewCleanupJob(cache, log)
	if _, err := scheduler.AddFunc("0 3 * * *", cleanup.Run); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache cleanup")
	}
	if _, err := scheduler.AddFunc("0 0 * * *", marketClient.ResetDailyCounter); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule rate-limit reset")
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(server.Config{
		Log:             log,
		Cfg:             cfg,
		LedgerDB:        ledgerDB,
		CacheDB:         cacheDB,
		Ledger:          ledgerService,
		Accounts:        accountsService,
		MarketData:      marketService,
		Portfolio:       portfolioService,
		Recommendations: recommendationService,
		MarketClock:     clockService,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
