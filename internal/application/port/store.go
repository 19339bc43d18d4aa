// Package port declares the interfaces the application layer consumes.
// Implementations live under internal/infrastructure.
package port

import (
	"context"
	"errors"

	"github.com/lodgetix/invoicing/internal/domain/document"
)

// ErrCounterUnavailable is the one error the core propagates as a hard
// failure: if the atomic counter operation cannot run, a duplicate
// invoice number would be a correctness violation, not a degraded
// result.
var ErrCounterUnavailable = errors.New("counter store unavailable")

// Filter selects documents by field equality. Keys may be dotted paths
// into the document body.
type Filter map[string]any

// DocumentStore is the opaque collection-query capability backing the
// core. Reads return (nil, nil) when no document matches.
type DocumentStore interface {
	FindOne(ctx context.Context, collection string, filter Filter) (document.Doc, error)
	Find(ctx context.Context, collection string, filter Filter) ([]document.Doc, error)
	CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error)
	InsertOne(ctx context.Context, collection, id string, doc document.Doc) error
	UpdateOne(ctx context.Context, collection, id string, fields map[string]any) error
}

// CounterStore issues atomically-incremented sequence values per
// counter key. Increment is a single read-modify-write operation in
// the backing store; failures surface as ErrCounterUnavailable.
type CounterStore interface {
	Increment(ctx context.Context, key string) (int64, error)
	Peek(ctx context.Context, key string) (int64, error)
}

// Lookuper fetches one enrichment document from a named collection by
// equality on a foreign field.
type Lookuper interface {
	Lookup(ctx context.Context, collection, foreignField string, value any) (document.Doc, error)
}
