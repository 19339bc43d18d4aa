package resolve

import (
	"github.com/shopspring/decimal"

	"github.com/lodgetix/invoicing/internal/domain/entity"
)

// Fee is a processing-fee schedule entry: a percentage of the subtotal
// plus a fixed per-transaction amount.
type Fee struct {
	Percentage decimal.Decimal
	Fixed      decimal.Decimal
}

// FeeSchedule keys processing fees by payment source.
type FeeSchedule map[entity.PaymentSource]Fee

// For computes the processing fee for an amount under this schedule.
// Unknown sources pay no fee.
func (s FeeSchedule) For(source entity.PaymentSource, amount decimal.Decimal) decimal.Decimal {
	fee, ok := s[source]
	if !ok {
		return decimal.Zero
	}
	return amount.Mul(fee.Percentage).Add(fee.Fixed).Round(2)
}

// Totals is the monetary fold of an invoice's line items. GSTIncluded
// is informational: it is already inside Subtotal and Total and is
// never added again.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ProcessingFees decimal.Decimal `json:"processingFees"`
	GSTIncluded    decimal.Decimal `json:"gstIncluded"`
	Total          decimal.Decimal `json:"total"`
}

// Subtotal recursively sums quantity*price across every item and every
// sub-item at any depth. The fold is independent of item ordering.
func Subtotal(items []entity.InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount())
		if len(item.SubItems) > 0 {
			total = total.Add(Subtotal(item.SubItems))
		}
	}
	return total
}

// Fold computes invoice totals: subtotal from the item tree, the
// processing fee on top, and the GST portion already included in the
// total at the given rate (gst = total * rate / (1 + rate)).
func Fold(items []entity.InvoiceItem, fees decimal.Decimal, gstRate decimal.Decimal) Totals {
	subtotal := Subtotal(items)
	total := subtotal.Add(fees)

	gst := decimal.Zero
	if gstRate.IsPositive() {
		gst = total.Mul(gstRate).Div(decimal.NewFromInt(1).Add(gstRate)).Round(2)
	}

	return Totals{
		Subtotal:       subtotal,
		ProcessingFees: fees,
		GSTIncluded:    gst,
		Total:          total,
	}
}
