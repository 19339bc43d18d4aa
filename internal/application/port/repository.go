package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/invoicing/internal/domain/entity"
)

// PaymentRepository reads imported payments and records match outcomes.
type PaymentRepository interface {
	GetByID(ctx context.Context, id string) (*entity.PaymentRecord, error)
	// ListUnprocessed returns payments with no recorded match outcome,
	// ascending by timestamp.
	ListUnprocessed(ctx context.Context, limit int) ([]*entity.PaymentRecord, error)
	// MarkMatched records the outcome of a match attempt against the
	// payment document.
	MarkMatched(ctx context.Context, paymentID string, result *entity.MatchResult) error
}

// RegistrationRepository reads registrations for matching and field
// resolution. All lookups return (nil, nil) when nothing matches.
type RegistrationRepository interface {
	GetByID(ctx context.Context, id string) (*entity.RegistrationRecord, error)
	GetByVendorPaymentID(ctx context.Context, source entity.PaymentSource, transactionID string) (*entity.RegistrationRecord, error)
	FindByAmount(ctx context.Context, amount decimal.Decimal) ([]*entity.RegistrationRecord, error)
	FindByEmailAndAmount(ctx context.Context, email string, amount decimal.Decimal) ([]*entity.RegistrationRecord, error)
}

// InvoiceRepository persists built invoices.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByNumber(ctx context.Context, number string) (*entity.Invoice, error)
}
