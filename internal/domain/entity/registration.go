package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/invoicing/internal/domain/document"
)

// RegistrationRecord is an event registration as read from the
// registrations collection. Owned by the registration subsystem;
// read-only here.
type RegistrationRecord struct {
	ID                 string          `json:"id"`
	ConfirmationNumber string          `json:"confirmationNumber"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	CreatedAt          time.Time       `json:"createdAt"`
	CustomerEmail      string          `json:"customerEmail,omitempty"`

	// Raw carries the full registration document, including the
	// nested registration data, for field resolution.
	Raw document.Doc `json:"-"`
}

// vendorPaymentIDPaths lists, per source and in precedence order, the
// fields a registration may record a vendor payment id under. Older
// registrations carry the id at the top level, newer ones under
// vendorPaymentIds.
var vendorPaymentIDPaths = map[PaymentSource][]string{
	SourceStripe: {
		"vendorPaymentIds.stripe",
		"stripePaymentIntentId",
		"registrationData.stripePaymentIntentId",
	},
	SourceSquare: {
		"vendorPaymentIds.square",
		"squarePaymentId",
		"registrationData.squarePaymentId",
	},
}

// VendorPaymentIDPaths returns the candidate document paths for a
// vendor payment id, in precedence order.
func VendorPaymentIDPaths(source PaymentSource) []string {
	return vendorPaymentIDPaths[source]
}

// VendorPaymentID returns the payment id this registration recorded
// for the given source, if any.
func (r *RegistrationRecord) VendorPaymentID(source PaymentSource) (string, bool) {
	for _, path := range vendorPaymentIDPaths[source] {
		if v, ok := document.Get(r.Raw, path); ok {
			if id := document.Text(v); id != "" {
				return id, true
			}
		}
	}
	return "", false
}
