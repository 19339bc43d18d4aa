package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/invoicing/internal/domain/document"
)

// PaymentSource identifies the vendor a payment was imported from.
type PaymentSource string

const (
	SourceSquare PaymentSource = "square"
	SourceStripe PaymentSource = "stripe"
)

// PaymentRecord is an ingested vendor payment. Records are immutable
// once imported; this core only reads them.
type PaymentRecord struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        PaymentSource   `json:"source"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	Status        string          `json:"status"`

	// Raw carries the full imported document, including the vendor
	// payload, for field resolution and metadata matching.
	Raw document.Doc `json:"-"`
}

// MetadataRegistrationID returns the registration identifier embedded
// in the vendor metadata, if the payment carries one.
func (p *PaymentRecord) MetadataRegistrationID() (string, bool) {
	for _, path := range []string{
		"metadata.registrationId",
		"rawVendorPayload.metadata.registrationId",
		"rawVendorPayload.metadata.registration_id",
	} {
		if v, ok := document.Get(p.Raw, path); ok {
			if id := document.Text(v); id != "" {
				return id, true
			}
		}
	}
	return "", false
}
