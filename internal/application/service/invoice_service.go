// Package service orchestrates the matching and resolution layers
// into the application's two flows: building invoices and running
// batch reconciliation.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/entity"
	"github.com/lodgetix/invoicing/internal/domain/mapping"
	"github.com/lodgetix/invoicing/internal/matching"
	"github.com/lodgetix/invoicing/internal/resolve"
	"github.com/lodgetix/invoicing/internal/sequence"
)

// billToNamePaths and billToEmailPaths are the documented precedence
// orders for the bill-to block, replacing per-call-site fallback
// chains.
var (
	billToNamePaths = []string{
		"registration.billTo.name",
		"registration.registrationData.bookingContact.name",
		"registration.customerName",
	}
	billToEmailPaths = []string{
		"registration.customerEmail",
		"registration.registrationData.bookingContact.email",
		"payment.customerEmail",
	}
)

// InvoiceService builds billable invoices from matched
// payment/registration pairs and a mapping configuration.
type InvoiceService struct {
	payments      port.PaymentRepository
	registrations port.RegistrationRepository
	invoices      port.InvoiceRepository
	matcher       *matching.Matcher
	computations  *resolve.ComputationEngine
	arrays        *resolve.ArrayResolver
	lookups       port.Lookuper
	allocator     *sequence.Allocator
	fees          resolve.FeeSchedule
	gstRate       decimal.Decimal
	supplier      entity.Party
	logger        *zap.Logger
}

// NewInvoiceService wires the invoice build pipeline.
func NewInvoiceService(
	payments port.PaymentRepository,
	registrations port.RegistrationRepository,
	invoices port.InvoiceRepository,
	matcher *matching.Matcher,
	computations *resolve.ComputationEngine,
	arrays *resolve.ArrayResolver,
	lookups port.Lookuper,
	allocator *sequence.Allocator,
	fees resolve.FeeSchedule,
	gstRate decimal.Decimal,
	supplier entity.Party,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		payments:      payments,
		registrations: registrations,
		invoices:      invoices,
		matcher:       matcher,
		computations:  computations,
		arrays:        arrays,
		lookups:       lookups,
		allocator:     allocator,
		fees:          fees,
		gstRate:       gstRate,
		supplier:      supplier,
		logger:        logger,
	}
}

// BuildOptions controls numbering and persistence of a build.
type BuildOptions struct {
	// UseGlobalCounter numbers from the non-dated counter instead of
	// the per-day one.
	UseGlobalCounter bool
	// Persist allocates a number and stores the invoice. When false
	// the build is a draft preview: no counter is consumed.
	Persist bool
}

// Build matches the payment and materializes an invoice from the
// mapping configuration. Resolution problems degrade to warnings on
// the invoice; the only hard failures are unknown payments, store
// errors and counter allocation.
func (s *InvoiceService) Build(ctx context.Context, paymentID string, cfg *mapping.Config, opts BuildOptions) (*entity.Invoice, *entity.MatchResult, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load payment %s: %w", paymentID, err)
	}
	if payment == nil {
		return nil, nil, fmt.Errorf("payment %s not found", paymentID)
	}

	result := s.matcher.Match(ctx, payment)

	sources := resolve.Sources{Payment: payment.Raw}
	if result.Registration != nil {
		sources.Registration = result.Registration.Raw
	}

	invoice := &entity.Invoice{
		ID:        uuid.NewString(),
		Date:      time.Now().UTC(),
		Status:    entity.InvoiceStatusDraft,
		Supplier:  s.supplier,
		PaymentID: payment.ID,
		Fields:    map[string]any{},
	}
	if result.Registration != nil {
		invoice.RegistrationID = result.Registration.ID
	}
	s.fillBillTo(invoice, sources, payment)

	if cfg != nil {
		s.loadRelated(ctx, invoice, cfg.Related, &sources)
		s.resolveFields(invoice, cfg.Fields, sources)
		for _, arrayMapping := range cfg.Arrays {
			invoice.Items = append(invoice.Items, s.arrays.Resolve(ctx, arrayMapping, sources)...)
		}
	}

	fees := s.fees.For(payment.Source, resolve.Subtotal(invoice.Items))
	totals := resolve.Fold(invoice.Items, fees, s.gstRate)
	invoice.Subtotal = totals.Subtotal
	invoice.ProcessingFees = totals.ProcessingFees
	invoice.GSTIncluded = totals.GSTIncluded
	invoice.Total = totals.Total

	if !opts.Persist {
		return invoice, result, nil
	}

	number, err := s.allocateNumber(ctx, opts, invoice.Date)
	if err != nil {
		return nil, result, err
	}
	invoice.InvoiceNumber = number
	invoice.Status = entity.InvoiceStatusFinal

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, result, fmt.Errorf("failed to persist invoice %s: %w", number, err)
	}
	if err := s.payments.MarkMatched(ctx, payment.ID, result); err != nil {
		s.logger.Warn("Failed to record match outcome on payment",
			zap.String("payment_id", payment.ID), zap.Error(err))
	}
	return invoice, result, nil
}

func (s *InvoiceService) allocateNumber(ctx context.Context, opts BuildOptions, date time.Time) (string, error) {
	if opts.UseGlobalCounter {
		return s.allocator.NextGlobalNumber(ctx)
	}
	return s.allocator.NextInvoiceNumber(ctx, date)
}

// loadRelated fetches the configured related document and exposes it
// to field mappings under the related. prefix. A lookup the store
// cannot satisfy degrades to a warning, never a failed build.
func (s *InvoiceService) loadRelated(ctx context.Context, invoice *entity.Invoice, lookup *mapping.RelatedLookup, sources *resolve.Sources) {
	if lookup == nil || s.lookups == nil {
		return
	}

	value, ok := sources.Resolve(lookup.SourcePath)
	if !ok {
		invoice.Warnings = append(invoice.Warnings, fmt.Sprintf(
			"related document: path %s did not resolve", lookup.SourcePath))
		return
	}

	doc, err := s.lookups.Lookup(ctx, lookup.Collection, lookup.ForeignField, document.Unwrap(value))
	if err != nil {
		s.logger.Warn("Related document lookup failed",
			zap.String("collection", lookup.Collection), zap.Error(err))
		invoice.Warnings = append(invoice.Warnings, fmt.Sprintf(
			"related document: lookup in %s failed", lookup.Collection))
		return
	}
	if doc == nil {
		invoice.Warnings = append(invoice.Warnings, fmt.Sprintf(
			"related document: no %s document matched", lookup.Collection))
		return
	}
	sources.Related = doc
}

// resolveFields applies the scalar field mapping. When several source
// variants are set on one entry, resolution is last-write-wins in the
// order sourcePath, literalValue, computation, and the conflict is
// flagged as a warning rather than an error.
func (s *InvoiceService) resolveFields(invoice *entity.Invoice, fields mapping.FieldMapping, sources resolve.Sources) {
	targets := make([]string, 0, len(fields))
	for target := range fields {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		src := fields[target]
		if src.ActiveCount() > 1 {
			invoice.Warnings = append(invoice.Warnings, fmt.Sprintf(
				"field %s sets multiple sources; applying last-write-wins", target))
		}

		var value any
		resolved := false
		if src.SourcePath != "" {
			if v, ok := sources.Resolve(src.SourcePath); ok {
				value = document.Unwrap(v)
				resolved = true
			} else {
				invoice.Warnings = append(invoice.Warnings, fmt.Sprintf(
					"field %s: path %s did not resolve", target, src.SourcePath))
			}
		}
		if src.LiteralValue != nil {
			value = src.LiteralValue
			resolved = true
		}
		if src.Computation != nil {
			value = s.computations.Evaluate(*src.Computation, sources)
			resolved = true
		}
		if !resolved {
			continue
		}
		invoice.Fields[target] = value
	}
}

// fillBillTo populates the bill-to block from the documented candidate
// paths, falling back to payment data when the registration offers
// nothing.
func (s *InvoiceService) fillBillTo(invoice *entity.Invoice, sources resolve.Sources, payment *entity.PaymentRecord) {
	if v, ok := resolve.ResolveFirst(sources, billToNamePaths...); ok {
		invoice.BillTo.Name = document.Text(v)
	}
	if v, ok := resolve.ResolveFirst(sources, billToEmailPaths...); ok {
		invoice.BillTo.Email = document.Text(v)
	} else if payment.CustomerEmail != "" {
		invoice.BillTo.Email = payment.CustomerEmail
	}
}
