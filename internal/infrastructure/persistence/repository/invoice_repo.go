package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/entity"
)

const invoicesCollection = "invoices"

// InvoiceRepository persists built invoices as documents.
type InvoiceRepository struct {
	store  port.DocumentStore
	logger *zap.Logger
}

// NewInvoiceRepository creates an invoice repository.
func NewInvoiceRepository(store port.DocumentStore, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{store: store, logger: logger}
}

// Create stores a numbered invoice.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	body, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}
	doc, err := document.Parse(body)
	if err != nil {
		return fmt.Errorf("failed to normalize invoice document: %w", err)
	}
	if err := r.store.InsertOne(ctx, invoicesCollection, invoice.ID, doc); err != nil {
		return err
	}
	r.logger.Info("Invoice persisted",
		zap.String("invoice_id", invoice.ID),
		zap.String("invoice_number", invoice.InvoiceNumber))
	return nil
}

// GetByNumber retrieves an invoice by its allocated number, or
// (nil, nil) when absent.
func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	doc, err := r.store.FindOne(ctx, invoicesCollection, port.Filter{"invoiceNumber": number})
	if err != nil || doc == nil {
		return nil, err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode invoice document: %w", err)
	}
	var invoice entity.Invoice
	if err := json.Unmarshal(body, &invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice %s: %w", number, err)
	}
	return &invoice, nil
}

var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
