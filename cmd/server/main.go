package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	httpapi "tokenshop-backend/internal/api/http"
	"tokenshop-backend/internal/clock"
	"tokenshop-backend/internal/config"
	"tokenshop-backend/internal/disbursement"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/recordstore"
	"tokenshop-backend/internal/repository/postgres"
	"tokenshop-backend/internal/security"
	"tokenshop-backend/internal/service"
	"tokenshop-backend/migrations"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Token Shop Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Integrations", "hcb", cfg.HCB.Type, "record_store", cfg.RecordStore.Type, "email_enabled", cfg.SendGrid.Enabled())

	// Initialize Database
	db, err := sqlx.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.RunMigrations {
		if err := migrations.Apply(ctx, db.DB); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	// Initialize Repositories
	clk := clock.NewSystem()
	store := postgres.NewStore(db, clk)

	// Initialize external clients
	grantClient := newGrantClient(cfg)
	records := newRecordStore(cfg)
	emailSvc := service.NewEmailService(
		cfg.SendGrid.APIKey,
		cfg.SendGrid.FromEmail,
		cfg.SendGrid.FromName,
		cfg.SendGrid.ApprovedTemplateID,
		cfg.SendGrid.RejectedTemplateID,
	)

	// Initialize Services
	effects := service.NewAsyncSideEffects(cfg.SideEffects.Timeout())
	mirrorSvc := service.NewMirrorService(
		store.OrderRepository,
		store.UserRepository,
		store.ShopItemRepository,
		records,
		cfg.RecordStore.TrackPointsRedeemed,
	)
	ledgerSvc := service.NewLedgerService(store.LedgerRepository, store.UserRepository)
	orderSvc := service.NewOrderService(
		store.Transactor,
		store.LedgerRepository,
		store.ShopItemRepository,
		store.OrderRepository,
		store.UserRepository,
		mirrorSvc,
		emailSvc,
		service.WithSideEffects(effects),
		service.WithClock(clk),
	)
	grantSvc := service.NewGrantService(
		store.OrderRepository,
		store.UserRepository,
		grantClient,
		records,
		mirrorSvc,
		emailSvc,
		effects,
		cfg.Grants.Delay(),
	)

	// Initialize HTTP
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	handler := httpapi.NewHandler(ledgerSvc, orderSvc, grantSvc, db)
	router := httpapi.NewRouter(handler, httpapi.NewAuthMiddleware(tokenManager, store.UserRepository))

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	effects.Wait()
	logger.Info("Server stopped")
}

func newGrantClient(cfg *config.Config) disbursement.Client {
	if cfg.HCB.Type == "hcb" {
		logger.Info("Using HCB disbursement client", "base_url", cfg.HCB.BaseURL)
		return disbursement.NewHCBClient(cfg.HCB.BaseURL, cfg.HCB.APIKey, time.Duration(cfg.HCB.TimeoutSeconds)*time.Second)
	}
	logger.Warn("Using mock disbursement client; no real grants will be issued")
	return disbursement.NewMockClient(decimal.NewFromInt(1000))
}

func newRecordStore(cfg *config.Config) recordstore.Client {
	rs := cfg.RecordStore
	if rs.Type == "airtable" {
		return recordstore.NewAirtableClient(rs.BaseURL, rs.BaseID, rs.APIKey, recordstore.Tables{
			Orders:      rs.OrdersTable,
			ShopItems:   rs.ShopItemsTable,
			Signups:     rs.SignupsTable,
			Submissions: rs.SubmissionsTable,
		}, rs.ApprovedFormula, time.Duration(rs.TimeoutSeconds)*time.Second)
	}
	return recordstore.NoopClient{}
}
