// Package sequence issues unique, atomically-incrementing invoice
// numbers per logical counter key.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
)

// GlobalKey is the non-dated counter key callers may request instead
// of the per-day key.
const GlobalKey = "invoice_number"

// DefaultPrefix is the issuer prefix on dated invoice numbers.
const DefaultPrefix = "LTIV"

// DailyKey returns the per-day counter key for a date, e.g.
// invoice_260901 for 2026-09-01.
func DailyKey(t time.Time) string {
	return "invoice_" + t.UTC().Format("060102")
}

// Allocator issues sequence values from the durable counter store.
// The store's increment is a single atomic read-modify-write, so no
// two concurrent callers observe the same post-increment value for a
// key. A failed increment is the one hard failure in the system: a
// duplicate invoice number is a correctness violation, not a degraded
// result, so the error propagates.
type Allocator struct {
	counters port.CounterStore
	prefix   string
	logger   *zap.Logger
}

// NewAllocator creates an allocator issuing numbers with the given
// prefix (DefaultPrefix when empty).
func NewAllocator(counters port.CounterStore, prefix string, logger *zap.Logger) *Allocator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Allocator{counters: counters, prefix: prefix, logger: logger}
}

// Next atomically increments the counter for key and returns the new
// value.
func (a *Allocator) Next(ctx context.Context, key string) (int64, error) {
	value, err := a.counters.Increment(ctx, key)
	if err != nil {
		a.logger.Error("Counter increment failed",
			zap.String("key", key), zap.Error(err))
		if errors.Is(err, port.ErrCounterUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", port.ErrCounterUnavailable, err)
	}
	return value, nil
}

// Peek returns the current counter value without incrementing. For
// diagnostics only; never use the result to number an invoice.
func (a *Allocator) Peek(ctx context.Context, key string) (int64, error) {
	value, err := a.counters.Peek(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to peek counter %s: %w", key, err)
	}
	return value, nil
}

// NextInvoiceNumber allocates from the per-day counter and formats the
// dated invoice number, e.g. LTIV-260901042.
func (a *Allocator) NextInvoiceNumber(ctx context.Context, date time.Time) (string, error) {
	seq, err := a.Next(ctx, DailyKey(date))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s%03d", a.prefix, date.UTC().Format("060102"), seq), nil
}

// NextGlobalNumber allocates from the non-dated global counter.
func (a *Allocator) NextGlobalNumber(ctx context.Context) (string, error) {
	seq, err := a.Next(ctx, GlobalKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", a.prefix, seq), nil
}
