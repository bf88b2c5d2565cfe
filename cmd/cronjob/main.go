package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/clock"
	"tokenshop-backend/internal/config"
	"tokenshop-backend/internal/disbursement"
	"tokenshop-backend/internal/jobs"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/recordstore"
	"tokenshop-backend/internal/repository/postgres"
	"tokenshop-backend/internal/scheduler"
	"tokenshop-backend/internal/service"
)

var availableJobs = []string{"plan-grants", "disburse-grants", "retry-order-mirror"}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (plan-grants, disburse-grants, retry-order-mirror)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Token Shop Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sqlx.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(context.Background()); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	clk := clock.NewSystem()
	store := postgres.NewStore(db, clk)

	// Initialize Services. Jobs run side effects inline so a run-once process
	// finishes its emails and mirror writes before exiting.
	records := newRecordStore(cfg)
	emailSvc := service.NewEmailService(
		cfg.SendGrid.APIKey,
		cfg.SendGrid.FromEmail,
		cfg.SendGrid.FromName,
		cfg.SendGrid.ApprovedTemplateID,
		cfg.SendGrid.RejectedTemplateID,
	)
	mirrorSvc := service.NewMirrorService(
		store.OrderRepository,
		store.UserRepository,
		store.ShopItemRepository,
		records,
		cfg.RecordStore.TrackPointsRedeemed,
	)
	grantSvc := service.NewGrantService(
		store.OrderRepository,
		store.UserRepository,
		newGrantClient(cfg),
		records,
		mirrorSvc,
		emailSvc,
		service.InlineSideEffects{},
		cfg.Grants.Delay(),
	)

	jobServices := &jobs.Services{
		Grant:  grantSvc,
		Mirror: mirrorSvc,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(jobServices, cfg, clk)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if err := jobRunner.RunJob(*runOnce); err != nil {
			fmt.Fprintf(os.Stderr, "Job %s failed: %v\n", *runOnce, err)
			fmt.Fprintf(os.Stderr, "Available jobs:\n")
			for _, name := range availableJobs {
				fmt.Fprintf(os.Stderr, "  - %s\n", name)
			}
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner, cfg.RecordStore.Type != "noop")
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

func newGrantClient(cfg *config.Config) disbursement.Client {
	if cfg.HCB.Type == "hcb" {
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
