package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/kmaier/quantlab/internal/audit"
	"github.com/kmaier/quantlab/internal/config"
	"github.com/kmaier/quantlab/internal/handlers"
	"github.com/kmaier/quantlab/internal/history"
	"github.com/kmaier/quantlab/internal/logger"
	"github.com/kmaier/quantlab/internal/providers"
	"github.com/kmaier/quantlab/internal/providers/alpaca"
	"github.com/kmaier/quantlab/internal/rates"
	"github.com/kmaier/quantlab/internal/universe"
)

func main() {
	// Local .env overrides are optional
	if err := godotenv.Load(); err == nil {
		log.Println("📄 Loaded environment from .env")
	}

	cfg := config.Load()

	if err := logger.InitWithConfig(cfg.Logging.LogLevel, cfg.Logging.LogFile); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger.Always.Printf("🚀 Quantlab pricing server starting - Port: %s", cfg.Port)

	if cfg.Logging.LogLevel == "verbose" {
		fmt.Printf("⚠️  VERBOSE LOGGING ENABLED - API calls and solver diagnostics go to %s\n", cfg.Logging.LogFile)
	}

	// Without vendor credentials the server runs against the synthetic
	// provider, which is enough for the model endpoints
	var provider providers.MarketProvider
	if cfg.MarketDataAPIKey != "" && cfg.MarketDataSecretKey != "" {
		logger.Info.Printf("📡 Using Alpaca market data provider")
		provider = alpaca.NewAlpacaProvider(cfg.MarketDataAPIKey, cfg.MarketDataSecretKey)
	} else {
		logger.Warn.Printf("⚠️ No market data credentials - serving synthetic chains")
		provider = providers.NewFakeProvider(100, 0.2, cfg.DefaultRate)
	}
	manager := providers.NewProviderManager(provider)
	defer manager.Close()

	treasury := rates.NewTreasuryClient(cfg.DefaultRate)

	catalog := universe.NewService("assets/universe")
	if err := catalog.EnsureLoaded(); err != nil {
		logger.Warn.Printf("⚠️ Instrument catalog unavailable: %v", err)
	} else {
		logger.Info.Printf("📇 Instrument catalog ready (%d symbols)", catalog.Count())
	}

	journal := audit.NewJournal("audits")
	defer journal.Close()

	h := handlers.New(cfg, manager, treasury, catalog, journal, history.YahooFetcher{})

	r := mux.NewRouter()
	h.Register(r)

	fmt.Printf("🌐 Server starting on http://localhost:%s\n", cfg.Port)
	logger.Always.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)

	if err := http.ListenAndServe("0.0.0.0:"+cfg.Port, r); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
