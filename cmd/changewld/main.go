package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	cfg "github.com/changewld/backend/config"
	"github.com/changewld/backend/internal/feeds"
	"github.com/changewld/backend/internal/handlers"
	"github.com/changewld/backend/internal/usecases"
	"github.com/changewld/backend/internal/usecases/repository"
	"github.com/changewld/backend/internal/workers"
	"github.com/changewld/backend/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Info("Starting ChangeWLD backend",
		"debug", config.App.Debug,
		"test_mode", config.Exchange.TestMode,
		"spread", config.Exchange.Spread,
		"server_port", config.HTTP.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pick the order store: Postgres when configured, flat file otherwise.
	ordersRepository, cleanup, err := newOrdersRepository(logger, config)
	if err != nil {
		logger.Error("Failed to initialize order store", "error", err)
		log.Fatal(err)
	}
	defer cleanup()

	// Upstream feed clients
	feedTimeout := time.Duration(config.Feeds.TimeoutSeconds) * time.Second
	binanceClient := feeds.NewBinanceClient(logger, config.Feeds.BinanceURL, feedTimeout)
	fxClient := feeds.NewExchangeRateClient(logger, config.Feeds.ExchangeRateURL, feedTimeout)
	worldIDClient := feeds.NewWorldIDClient(logger, config.WorldID.AppID, config.WorldID.Action, config.WorldID.APIURL)

	// Services
	orderService := usecases.NewOrderService(logger, ordersRepository, config.Exchange.WalletDestino, config.Exchange.TestMode)
	rateService := usecases.NewRateService(logger, binanceClient, fxClient,
		config.Exchange.Spread, time.Duration(config.Exchange.RateCacheTTL)*time.Second)
	walletAuthService := usecases.NewWalletAuthService(logger, config.Auth.NonceSecret)

	walletService, err := usecases.NewWalletService(logger, config.Blockchain.RPCURL, config.Blockchain.WLDTokenAddress)
	if err != nil {
		logger.Error("Failed to create wallet service", "error", err)
		log.Fatal(err)
	}

	// Handlers
	websocketManager := handlers.NewWebSocketManager(logger)
	httpHandler := handlers.NewHTTPHandler(logger, config, orderService, rateService, walletService, walletAuthService, worldIDClient)
	wsHandler := handlers.NewWebSocketHandler(logger, websocketManager)

	// Push order events to connected UIs
	orderNotifier := workers.NewOrderNotifier(logger, orderService, websocketManager)
	go orderNotifier.Start(ctx)

	// Create router
	router := mux.NewRouter()

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

// newOrdersRepository wires the configured order store and returns a cleanup
// function for its resources.
func newOrdersRepository(logger *slog.Logger, config *cfg.Config) (usecases.OrdersRepository, func(), error) {
	if config.DB.DatabaseURL == "" {
		logger.Info("No DATABASE_URL configured, using flat-file order store", "path", config.Store.OrdersFile)
		fileRepo, err := repository.NewFileOrdersRepository(logger, config.Store.OrdersFile)
		if err != nil {
			return nil, nil, err
		}
		return fileRepo, func() {}, nil
	}

	pg, err := database.New(config,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
	)
	if err != nil {
		return nil, nil, err
	}

	migrationsPath := "./migrations"
	if workDir, wdErr := os.Getwd(); wdErr == nil {
		if _, statErr := os.Stat(filepath.Join(workDir, "migrations")); statErr == nil {
			migrationsPath = filepath.Join(workDir, "migrations")
		} else if _, statErr = os.Stat(filepath.Join(workDir, "..", "migrations")); statErr == nil {
			migrationsPath = filepath.Join(workDir, "..", "migrations")
		}
	}

	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		pg.Close()
		return nil, nil, err
	}

	return repository.NewOrdersRepository(logger, pg), pg.Close, nil
}
