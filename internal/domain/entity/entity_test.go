package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMetadataRegistrationID(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
		ok   bool
	}{
		{
			"top level metadata",
			map[string]any{"metadata": map[string]any{"registrationId": "reg_1"}},
			"reg_1", true,
		},
		{
			"vendor payload camel case",
			map[string]any{"rawVendorPayload": map[string]any{"metadata": map[string]any{"registrationId": "reg_2"}}},
			"reg_2", true,
		},
		{
			"vendor payload snake case",
			map[string]any{"rawVendorPayload": map[string]any{"metadata": map[string]any{"registration_id": "reg_3"}}},
			"reg_3", true,
		},
		{
			"empty id skipped",
			map[string]any{"metadata": map[string]any{"registrationId": ""}},
			"", false,
		},
		{"no metadata", map[string]any{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PaymentRecord{Raw: tt.raw}
			got, ok := p.MetadataRegistrationID()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVendorPaymentID(t *testing.T) {
	reg := &RegistrationRecord{Raw: map[string]any{
		"stripePaymentIntentId": "pi_legacy",
		"vendorPaymentIds":      map[string]any{"square": "sq_1"},
	}}

	// vendorPaymentIds wins for square; stripe falls through to the
	// legacy top-level field.
	id, ok := reg.VendorPaymentID(SourceSquare)
	assert.True(t, ok)
	assert.Equal(t, "sq_1", id)

	id, ok = reg.VendorPaymentID(SourceStripe)
	assert.True(t, ok)
	assert.Equal(t, "pi_legacy", id)

	_, ok = (&RegistrationRecord{Raw: map[string]any{}}).VendorPaymentID(SourceStripe)
	assert.False(t, ok)
}

func TestMatchResultMatched(t *testing.T) {
	assert.False(t, (&MatchResult{Method: MatchNone}).Matched())
	assert.True(t, (&MatchResult{
		Registration: &RegistrationRecord{ID: "reg_1"},
		Method:       MatchByPaymentID,
		Confidence:   100,
	}).Matched())
}

func TestInvoiceItemAmount(t *testing.T) {
	item := InvoiceItem{
		Quantity: decimal.NewFromInt(3),
		Price:    decimal.NewFromFloat(21.50),
	}
	assert.Equal(t, "64.50", item.Amount().StringFixed(2))
}
