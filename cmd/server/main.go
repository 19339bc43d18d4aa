package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/service"
	"github.com/lodgetix/invoicing/internal/config"
	"github.com/lodgetix/invoicing/internal/domain/entity"
	"github.com/lodgetix/invoicing/internal/infrastructure/export"
	"github.com/lodgetix/invoicing/internal/infrastructure/persistence/docstore"
	"github.com/lodgetix/invoicing/internal/infrastructure/persistence/repository"
	"github.com/lodgetix/invoicing/internal/infrastructure/worker"
	httpiface "github.com/lodgetix/invoicing/internal/interfaces/http"
	"github.com/lodgetix/invoicing/internal/matching"
	"github.com/lodgetix/invoicing/internal/resolve"
	"github.com/lodgetix/invoicing/internal/sequence"
	"github.com/lodgetix/invoicing/pkg/database"
	"github.com/lodgetix/invoicing/pkg/logging"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoicing service",
		zap.String("config", *configPath),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	store := docstore.New(db, logger)

	paymentRepo := repository.NewPaymentRepository(store, logger)
	registrationRepo := repository.NewRegistrationRepository(store, logger)
	invoiceRepo := repository.NewInvoiceRepository(store, logger)

	matcher := matching.NewMatcher(registrationRepo, matching.Tolerances{
		Amount:          decimal.NewFromFloat(cfg.Matching.AmountTolerance),
		IDTimeWindow:    cfg.Matching.IDTimeWindow,
		FuzzyTimeWindow: cfg.Matching.FuzzyTimeWindow,
	}, logger)

	computations := resolve.NewComputationEngine(logger)
	arrays := resolve.NewArrayResolver(store, cfg.Invoicing.LookupWorkers, logger)
	allocator := sequence.NewAllocator(store, cfg.Invoicing.NumberPrefix, logger)

	fees := resolve.FeeSchedule{}
	for source, fee := range cfg.Invoicing.Fees {
		fees[entity.PaymentSource(source)] = resolve.Fee{
			Percentage: decimal.NewFromFloat(fee.Percentage),
			Fixed:      decimal.NewFromFloat(fee.Fixed),
		}
	}

	supplier := entity.Party{
		Name: cfg.Invoicing.SupplierName,
		ABN:  cfg.Invoicing.SupplierABN,
	}

	invoiceService := service.NewInvoiceService(
		paymentRepo,
		registrationRepo,
		invoiceRepo,
		matcher,
		computations,
		arrays,
		store,
		allocator,
		fees,
		decimal.NewFromFloat(cfg.Invoicing.GSTRate),
		supplier,
		logger,
	)

	reports := export.NewExcelWriter(cfg.Reconcile.ReportDir, logger)
	invoiceExports := export.NewExcelWriter(cfg.Invoicing.ExportDir, logger)
	reconcileService := service.NewReconcileService(paymentRepo, matcher, reports, cfg.Reconcile.BatchLimit, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reconciler := worker.NewReconcileWorker(worker.ReconcileWorkerConfig{
		PollInterval: cfg.Reconcile.PollInterval,
		RunTimeout:   cfg.Server.WriteTimeout * 4,
		WriteReports: false,
	}, reconcileService, logger)
	if err := reconciler.Start(ctx); err != nil {
		logger.Fatal("Failed to start reconcile worker", zap.Error(err))
	}

	handlers := httpiface.NewHandlers(invoiceService, reconcileService, paymentRepo, invoiceRepo, matcher, allocator, invoiceExports, logger)
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()
	if err := reconciler.Stop(); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}
	if err := server.Stop(); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
