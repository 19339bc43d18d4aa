package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks an invoice through its lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusFinal InvoiceStatus = "final"
)

// InvoiceItem is one billable line. Child lines (e.g. tickets under an
// attendee) hang off SubItems.
type InvoiceItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	SubItems    []InvoiceItem   `json:"subItems,omitempty"`
}

// Amount returns quantity times price for this line alone.
func (i InvoiceItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

// Party is a supplier or bill-to block on an invoice.
type Party struct {
	Name         string `json:"name"`
	BusinessName string `json:"businessName,omitempty"`
	ABN          string `json:"abn,omitempty"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
}

// Invoice is the billable document materialized from a matched
// payment/registration pair. Built in memory, numbered by the sequence
// allocator, then handed to persistence.
type Invoice struct {
	ID             string          `json:"id"`
	InvoiceNumber  string          `json:"invoiceNumber"`
	Date           time.Time       `json:"date"`
	Status         InvoiceStatus   `json:"status"`
	Supplier       Party           `json:"supplier"`
	BillTo         Party           `json:"billTo"`
	Items          []InvoiceItem   `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ProcessingFees decimal.Decimal `json:"processingFees"`
	GSTIncluded    decimal.Decimal `json:"gstIncluded"`
	Total          decimal.Decimal `json:"total"`
	PaymentID      string          `json:"paymentId,omitempty"`
	RegistrationID string          `json:"registrationId,omitempty"`

	// Fields holds the user-configured target fields resolved by the
	// mapping layer that are not part of the fixed shape above.
	Fields map[string]any `json:"fields,omitempty"`

	// Warnings collects non-fatal resolution diagnostics surfaced to
	// the reviewer alongside the draft.
	Warnings []string `json:"warnings,omitempty"`
}

// Counter is the durable state behind invoice number allocation.
type Counter struct {
	Key      string `json:"key"`
	Sequence int64  `json:"sequenceValue"`
}
