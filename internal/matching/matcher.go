// Package matching pairs imported vendor payments with event
// registrations using a fixed priority of strategies, each yielding a
// confidence score the downstream invoice flow can act on.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/domain/entity"
)

// Tolerances are the validation windows applied to candidate pairs.
type Tolerances struct {
	// Amount is the maximum absolute difference, in currency units,
	// still considered a matching amount on the id-based strategies.
	Amount decimal.Decimal
	// IDTimeWindow bounds the payment/registration timestamp gap on
	// the payment_id and metadata strategies.
	IDTimeWindow time.Duration
	// FuzzyTimeWindow is the symmetric window used by the amount_time
	// strategy.
	FuzzyTimeWindow time.Duration
}

// DefaultTolerances returns the production validation windows.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Amount:          decimal.NewFromFloat(0.10),
		IDTimeWindow:    10 * time.Minute,
		FuzzyTimeWindow: 5 * time.Minute,
	}
}

// Matcher assigns registrations to payments. Strategies run in fixed
// priority order and the first hit wins; a lower-priority strategy is
// never consulted once a higher one matched.
type Matcher struct {
	registrations port.RegistrationRepository
	tol           Tolerances
	logger        *zap.Logger
}

// NewMatcher creates a matcher over the given registration repository.
func NewMatcher(registrations port.RegistrationRepository, tol Tolerances, logger *zap.Logger) *Matcher {
	return &Matcher{
		registrations: registrations,
		tol:           tol,
		logger:        logger,
	}
}

// Match attempts to pair one payment with a registration. It never
// fails: repository errors are logged and the affected strategy is
// skipped, and an exhausted strategy list yields a confidence-0 result
// with no registration.
func (m *Matcher) Match(ctx context.Context, payment *entity.PaymentRecord) *entity.MatchResult {
	strategies := []func(context.Context, *entity.PaymentRecord) *entity.MatchResult{
		m.matchByPaymentID,
		m.matchByMetadata,
		m.matchByAmountAndTime,
		m.matchByEmailAndAmount,
	}

	for _, strategy := range strategies {
		if result := strategy(ctx, payment); result != nil {
			m.logger.Info("Payment matched",
				zap.String("payment_id", payment.ID),
				zap.String("registration_id", result.Registration.ID),
				zap.String("method", string(result.Method)),
				zap.Int("confidence", result.Confidence))
			return result
		}
	}

	m.logger.Info("No registration matched", zap.String("payment_id", payment.ID))
	return &entity.MatchResult{
		Payment:    payment,
		Confidence: 0,
		Method:     entity.MatchNone,
		Issues:     []string{},
	}
}

// MatchAll processes payments strictly sequentially in ascending
// timestamp order. Ordering affects reporting only; no result depends
// on another payment's outcome.
func (m *Matcher) MatchAll(ctx context.Context, payments []*entity.PaymentRecord) ([]*entity.MatchResult, error) {
	ordered := make([]*entity.PaymentRecord, len(payments))
	copy(ordered, payments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	results := make([]*entity.MatchResult, 0, len(ordered))
	for _, payment := range ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, m.Match(ctx, payment))
	}
	return results, nil
}

// matchByPaymentID looks the payment's transaction id up against the
// registration's recorded vendor payment id. Confidence 100 when both
// amount and timestamp validate, 80 otherwise.
func (m *Matcher) matchByPaymentID(ctx context.Context, payment *entity.PaymentRecord) *entity.MatchResult {
	if payment.TransactionID == "" {
		return nil
	}
	reg, err := m.registrations.GetByVendorPaymentID(ctx, payment.Source, payment.TransactionID)
	if err != nil {
		m.logger.Warn("payment_id strategy query failed",
			zap.String("payment_id", payment.ID), zap.Error(err))
		return nil
	}
	if reg == nil {
		return nil
	}
	issues := m.validatePair(payment, reg, m.tol.IDTimeWindow)
	confidence := 100
	if len(issues) > 0 {
		confidence = 80
	}
	return &entity.MatchResult{
		Payment:      payment,
		Registration: reg,
		Confidence:   confidence,
		Method:       entity.MatchByPaymentID,
		Issues:       issues,
	}
}

// matchByMetadata resolves a registration id carried in the payment's
// vendor metadata. Confidence 90 when amount and timestamp validate,
// 70 otherwise.
func (m *Matcher) matchByMetadata(ctx context.Context, payment *entity.PaymentRecord) *entity.MatchResult {
	regID, ok := payment.MetadataRegistrationID()
	if !ok {
		return nil
	}
	reg, err := m.registrations.GetByID(ctx, regID)
	if err != nil {
		m.logger.Warn("metadata strategy query failed",
			zap.String("payment_id", payment.ID), zap.Error(err))
		return nil
	}
	if reg == nil {
		return nil
	}
	issues := m.validatePair(payment, reg, m.tol.IDTimeWindow)
	confidence := 90
	if len(issues) > 0 {
		confidence = 70
	}
	return &entity.MatchResult{
		Payment:      payment,
		Registration: reg,
		Confidence:   confidence,
		Method:       entity.MatchByMetadata,
		Issues:       issues,
	}
}

// matchByAmountAndTime finds a registration with the exact payment
// amount created within the fuzzy time window. First candidate wins;
// ties are surfaced as an issue rather than silently dropped.
func (m *Matcher) matchByAmountAndTime(ctx context.Context, payment *entity.PaymentRecord) *entity.MatchResult {
	candidates, err := m.registrations.FindByAmount(ctx, payment.Amount)
	if err != nil {
		m.logger.Warn("amount_time strategy query failed",
			zap.String("payment_id", payment.ID), zap.Error(err))
		return nil
	}

	var inWindow []*entity.RegistrationRecord
	for _, reg := range candidates {
		if absDuration(payment.Timestamp.Sub(reg.CreatedAt)) <= m.tol.FuzzyTimeWindow {
			inWindow = append(inWindow, reg)
		}
	}
	if len(inWindow) == 0 {
		return nil
	}

	issues := []string{"matched by amount and time only"}
	if len(inWindow) > 1 {
		issues = append(issues, fmt.Sprintf(
			"%d candidate registrations share this amount within the time window", len(inWindow)))
	}
	return &entity.MatchResult{
		Payment:      payment,
		Registration: inWindow[0],
		Confidence:   60,
		Method:       entity.MatchByAmountTime,
		Issues:       issues,
	}
}

// matchByEmailAndAmount pairs on customer email plus exact total.
// Fixed confidence 50, always flagged for manual verification.
func (m *Matcher) matchByEmailAndAmount(ctx context.Context, payment *entity.PaymentRecord) *entity.MatchResult {
	if payment.CustomerEmail == "" {
		return nil
	}
	candidates, err := m.registrations.FindByEmailAndAmount(ctx, payment.CustomerEmail, payment.Amount)
	if err != nil {
		m.logger.Warn("email_amount strategy query failed",
			zap.String("payment_id", payment.ID), zap.Error(err))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	issues := []string{"matched by email and amount only; requires manual verification"}
	if len(candidates) > 1 {
		issues = append(issues, fmt.Sprintf(
			"%d candidate registrations share this email and amount", len(candidates)))
	}
	return &entity.MatchResult{
		Payment:      payment,
		Registration: candidates[0],
		Confidence:   50,
		Method:       entity.MatchByEmailAmount,
		Issues:       issues,
	}
}

// validatePair checks amount and timestamp agreement and returns a
// descriptive issue per failing check.
func (m *Matcher) validatePair(payment *entity.PaymentRecord, reg *entity.RegistrationRecord, window time.Duration) []string {
	issues := []string{}

	diff := payment.Amount.Sub(reg.TotalAmount).Abs()
	if diff.GreaterThan(m.tol.Amount) {
		issues = append(issues, fmt.Sprintf(
			"amount mismatch: payment %s vs registration %s",
			payment.Amount.String(), reg.TotalAmount.String()))
	}

	gap := absDuration(payment.Timestamp.Sub(reg.CreatedAt))
	if gap > window {
		issues = append(issues, fmt.Sprintf(
			"timestamp gap %s exceeds %s window", gap, window))
	}

	return issues
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
