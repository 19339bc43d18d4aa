package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/entity"
)

const registrationsCollection = "registrations"

// RegistrationRepository implements port.RegistrationRepository over
// the document store.
type RegistrationRepository struct {
	store  port.DocumentStore
	logger *zap.Logger
}

// NewRegistrationRepository creates a registration repository.
func NewRegistrationRepository(store port.DocumentStore, logger *zap.Logger) *RegistrationRepository {
	return &RegistrationRepository{store: store, logger: logger}
}

// GetByID retrieves one registration, or (nil, nil) when absent.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*entity.RegistrationRecord, error) {
	doc, err := r.store.FindOne(ctx, registrationsCollection, port.Filter{"id": id})
	if err != nil || doc == nil {
		return nil, err
	}
	return registrationFromDoc(doc), nil
}

// GetByVendorPaymentID tries the source-specific candidate paths in
// precedence order and returns the first registration recording the
// transaction id.
func (r *RegistrationRepository) GetByVendorPaymentID(ctx context.Context, source entity.PaymentSource, transactionID string) (*entity.RegistrationRecord, error) {
	for _, path := range entity.VendorPaymentIDPaths(source) {
		doc, err := r.store.FindOne(ctx, registrationsCollection, port.Filter{path: transactionID})
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return registrationFromDoc(doc), nil
		}
	}
	return nil, nil
}

// FindByAmount returns registrations whose total equals the amount
// exactly, in insertion order.
func (r *RegistrationRepository) FindByAmount(ctx context.Context, amount decimal.Decimal) ([]*entity.RegistrationRecord, error) {
	docs, err := r.store.Find(ctx, registrationsCollection, port.Filter{"totalAmount": amount})
	if err != nil {
		return nil, err
	}
	return registrationsFromDocs(docs), nil
}

// FindByEmailAndAmount returns registrations sharing the customer
// email and the exact total amount.
func (r *RegistrationRepository) FindByEmailAndAmount(ctx context.Context, email string, amount decimal.Decimal) ([]*entity.RegistrationRecord, error) {
	docs, err := r.store.Find(ctx, registrationsCollection, port.Filter{
		"customerEmail": email,
		"totalAmount":   amount,
	})
	if err != nil {
		return nil, err
	}
	return registrationsFromDocs(docs), nil
}

func registrationsFromDocs(docs []document.Doc) []*entity.RegistrationRecord {
	regs := make([]*entity.RegistrationRecord, 0, len(docs))
	for _, doc := range docs {
		regs = append(regs, registrationFromDoc(doc))
	}
	return regs
}

func registrationFromDoc(doc document.Doc) *entity.RegistrationRecord {
	reg := &entity.RegistrationRecord{Raw: doc}

	if v, ok := document.Get(doc, "id"); ok {
		reg.ID = document.Text(v)
	}
	if v, ok := document.Get(doc, "confirmationNumber"); ok {
		reg.ConfirmationNumber = document.Text(v)
	}
	if v, ok := document.Get(doc, "totalAmount"); ok {
		reg.TotalAmount, _ = document.Number(v)
	}
	if v, ok := document.Get(doc, "createdAt"); ok {
		reg.CreatedAt, _ = document.Time(v)
	}
	if v, ok := document.Get(doc, "customerEmail"); ok {
		reg.CustomerEmail = document.Text(v)
	}
	return reg
}

var _ port.RegistrationRepository = (*RegistrationRepository)(nil)
