// Command reconcile runs one batch reconciliation pass and exits. It
// shares configuration with the server and is intended for cron use.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/service"
	"github.com/lodgetix/invoicing/internal/config"
	"github.com/lodgetix/invoicing/internal/infrastructure/export"
	"github.com/lodgetix/invoicing/internal/infrastructure/persistence/docstore"
	"github.com/lodgetix/invoicing/internal/infrastructure/persistence/repository"
	"github.com/lodgetix/invoicing/internal/matching"
	"github.com/lodgetix/invoicing/pkg/database"
	"github.com/lodgetix/invoicing/pkg/logging"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	withReport := flag.Bool("report", true, "write an Excel report for the run")
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

	matcher := matching.NewMatcher(registrationRepo, matching.Tolerances{
		Amount:          decimal.NewFromFloat(cfg.Matching.AmountTolerance),
		IDTimeWindow:    cfg.Matching.IDTimeWindow,
		FuzzyTimeWindow: cfg.Matching.FuzzyTimeWindow,
	}, logger)

	reports := export.NewExcelWriter(cfg.Reconcile.ReportDir, logger)
	reconcileService := service.NewReconcileService(paymentRepo, matcher, reports, cfg.Reconcile.BatchLimit, logger)

	summary, err := reconcileService.Run(context.Background(), *withReport)
	if err != nil {
		logger.Fatal("Reconcile run failed", zap.Error(err))
	}

	logger.Info("Reconcile run finished",
		zap.Int("total", summary.Statistics.Total),
		zap.Int("matched", summary.Statistics.Matched),
		zap.Int("unmatched", summary.Statistics.Unmatched),
		zap.String("report", summary.ReportPath))
}
