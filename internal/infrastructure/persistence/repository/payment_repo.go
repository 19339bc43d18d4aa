// Package repository maps document-store bodies onto the typed domain
// entities the application layer works with.
package repository

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/entity"
)

const paymentsCollection = "payments"

// PaymentRepository implements port.PaymentRepository over the
// document store.
type PaymentRepository struct {
	store  port.DocumentStore
	logger *zap.Logger
}

// NewPaymentRepository creates a payment repository.
func NewPaymentRepository(store port.DocumentStore, logger *zap.Logger) *PaymentRepository {
	return &PaymentRepository{store: store, logger: logger}
}

// GetByID retrieves one payment, or (nil, nil) when absent.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*entity.PaymentRecord, error) {
	doc, err := r.store.FindOne(ctx, paymentsCollection, port.Filter{"id": id})
	if err != nil || doc == nil {
		return nil, err
	}
	return paymentFromDoc(doc), nil
}

// ListUnprocessed returns payments with no recorded match outcome,
// ascending by timestamp. A non-positive limit means no limit.
func (r *PaymentRepository) ListUnprocessed(ctx context.Context, limit int) ([]*entity.PaymentRecord, error) {
	docs, err := r.store.Find(ctx, paymentsCollection, port.Filter{"matchOutcome": nil})
	if err != nil {
		return nil, err
	}

	payments := make([]*entity.PaymentRecord, 0, len(docs))
	for _, doc := range docs {
		payments = append(payments, paymentFromDoc(doc))
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].Timestamp.Before(payments[j].Timestamp)
	})

	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

// MarkMatched records the match outcome on the payment document.
func (r *PaymentRepository) MarkMatched(ctx context.Context, paymentID string, result *entity.MatchResult) error {
	outcome := map[string]any{
		"method":     string(result.Method),
		"confidence": result.Confidence,
		"issues":     result.Issues,
		"matchedAt":  time.Now().UTC().Format(time.RFC3339),
	}
	if result.Registration != nil {
		outcome["registrationId"] = result.Registration.ID
	}
	return r.store.UpdateOne(ctx, paymentsCollection, paymentID, map[string]any{
		"matchOutcome": outcome,
	})
}

// paymentFromDoc builds a PaymentRecord from a raw document, keeping
// the full body around for field resolution.
func paymentFromDoc(doc document.Doc) *entity.PaymentRecord {
	p := &entity.PaymentRecord{Raw: doc}

	if v, ok := document.Get(doc, "id"); ok {
		p.ID = document.Text(v)
	}
	if v, ok := document.Get(doc, "transactionId"); ok {
		p.TransactionID = document.Text(v)
	}
	if v, ok := document.Get(doc, "amount"); ok {
		p.Amount, _ = document.Number(v)
	}
	if v, ok := document.Get(doc, "timestamp"); ok {
		p.Timestamp, _ = document.Time(v)
	}
	if v, ok := document.Get(doc, "source"); ok {
		p.Source = entity.PaymentSource(document.Text(v))
	}
	if v, ok := document.Get(doc, "customerEmail"); ok {
		p.CustomerEmail = document.Text(v)
	}
	if v, ok := document.Get(doc, "status"); ok {
		p.Status = document.Text(v)
	}
	return p
}

var _ port.PaymentRepository = (*PaymentRepository)(nil)
