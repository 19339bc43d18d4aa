package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/domain/entity"
	"github.com/lodgetix/invoicing/internal/matching"
)

// ReportWriter renders a reconciliation run to a file and returns the
// written path.
type ReportWriter interface {
	WriteReconciliationReport(runAt time.Time, stats matching.Statistics, results []*entity.MatchResult) (string, error)
}

// RunSummary is the outcome of one reconciliation batch.
type RunSummary struct {
	RunAt      time.Time             `json:"runAt"`
	Statistics matching.Statistics   `json:"statistics"`
	Results    []*entity.MatchResult `json:"results"`
	ReportPath string                `json:"reportPath,omitempty"`
}

// ReconcileService matches batches of unprocessed payments and records
// the outcomes back on the payment documents.
type ReconcileService struct {
	payments   port.PaymentRepository
	matcher    *matching.Matcher
	reports    ReportWriter
	batchLimit int
	logger     *zap.Logger
}

// NewReconcileService wires the batch reconciliation flow. reports may
// be nil, in which case no file report is produced.
func NewReconcileService(payments port.PaymentRepository, matcher *matching.Matcher, reports ReportWriter, batchLimit int, logger *zap.Logger) *ReconcileService {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &ReconcileService{
		payments:   payments,
		matcher:    matcher,
		reports:    reports,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// Run matches one batch of unprocessed payments. Outcomes are recorded
// even for non-matches so a payment is only ever reconciled once.
func (s *ReconcileService) Run(ctx context.Context, withReport bool) (*RunSummary, error) {
	payments, err := s.payments.ListUnprocessed(ctx, s.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed payments: %w", err)
	}

	summary := &RunSummary{RunAt: time.Now().UTC()}
	if len(payments) == 0 {
		summary.Statistics = matching.Compute(nil)
		return summary, nil
	}

	results, err := s.matcher.MatchAll(ctx, payments)
	if err != nil {
		return nil, fmt.Errorf("reconcile batch aborted: %w", err)
	}

	for _, result := range results {
		if err := s.payments.MarkMatched(ctx, result.Payment.ID, result); err != nil {
			s.logger.Warn("Failed to record match outcome",
				zap.String("payment_id", result.Payment.ID), zap.Error(err))
		}
	}

	summary.Results = results
	summary.Statistics = matching.Compute(results)

	s.logger.Info("Reconciliation batch complete",
		zap.Int("total", summary.Statistics.Total),
		zap.Int("matched", summary.Statistics.Matched),
		zap.Int("unmatched", summary.Statistics.Unmatched))

	if withReport && s.reports != nil {
		path, err := s.reports.WriteReconciliationReport(summary.RunAt, summary.Statistics, results)
		if err != nil {
			s.logger.Error("Failed to write reconciliation report", zap.Error(err))
		} else {
			summary.ReportPath = path
		}
	}
	return summary, nil
}
