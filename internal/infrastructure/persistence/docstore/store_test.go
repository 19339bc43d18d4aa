package docstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/pkg/database"
)

const testSchema = `
CREATE TABLE documents (
    collection TEXT NOT NULL,
    doc_id     TEXT NOT NULL,
    body       TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, doc_id)
);
CREATE TABLE counters (
    key            TEXT PRIMARY KEY,
    sequence_value INTEGER NOT NULL DEFAULT 0
);
`

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return New(db, zap.NewNop())
}

func TestInsertAndFindOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := document.Doc{
		"id":     "pay_1",
		"amount": 615.0,
		"customer": map[string]any{
			"email": "alice@example.com",
		},
	}
	require.NoError(t, s.InsertOne(ctx, "payments", "pay_1", doc))

	got, err := s.FindOne(ctx, "payments", port.Filter{"id": "pay_1"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pay_1", got["id"])
	assert.Equal(t, 615.0, got["amount"])

	// Dotted paths filter into nested objects.
	got, err = s.FindOne(ctx, "payments", port.Filter{"customer.email": "alice@example.com"})
	require.NoError(t, err)
	require.NotNil(t, got)

	// No match and wrong collection both yield nil without error.
	got, err = s.FindOne(ctx, "payments", port.Filter{"id": "pay_2"})
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.FindOne(ctx, "registrations", port.Filter{"id": "pay_1"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindNilFilterMatchesMissingField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "payments", "p1", document.Doc{"id": "p1"}))
	require.NoError(t, s.InsertOne(ctx, "payments", "p2", document.Doc{
		"id":           "p2",
		"matchOutcome": map[string]any{"method": "payment_id"},
	}))

	docs, err := s.Find(ctx, "payments", port.Filter{"matchOutcome": nil})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0]["id"])
}

func TestFindPreservesInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.InsertOne(ctx, "items", id, document.Doc{"id": id, "kind": "x"}))
	}

	docs, err := s.Find(ctx, "items", port.Filter{"kind": "x"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c", docs[0]["id"])
	assert.Equal(t, "a", docs[1]["id"])
	assert.Equal(t, "b", docs[2]["id"])
}

func TestCountDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "payments", "p1", document.Doc{"source": "stripe"}))
	require.NoError(t, s.InsertOne(ctx, "payments", "p2", document.Doc{"source": "stripe"}))
	require.NoError(t, s.InsertOne(ctx, "payments", "p3", document.Doc{"source": "square"}))

	n, err := s.CountDocuments(ctx, "payments", port.Filter{"source": "stripe"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpdateOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "payments", "p1", document.Doc{"id": "p1", "status": "paid"}))

	err := s.UpdateOne(ctx, "payments", "p1", map[string]any{
		"matchOutcome": map[string]any{"method": "payment_id", "confidence": 100},
	})
	require.NoError(t, err)

	got, err := s.FindOne(ctx, "payments", port.Filter{"id": "p1"})
	require.NoError(t, err)
	outcome, ok := got["matchOutcome"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "payment_id", outcome["method"])
	assert.Equal(t, "paid", got["status"])

	// Updating a missing document is an error, not a silent no-op.
	err = s.UpdateOne(ctx, "payments", "missing", map[string]any{"status": "x"})
	assert.Error(t, err)
}

func TestIncrementIsAtomicAndMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Increment(ctx, "invoice_260901")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	const n = 20
	values := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Increment(ctx, "invoice_260901")
			assert.NoError(t, err)
			values <- v
		}()
	}
	wg.Wait()
	close(values)

	seen := map[int64]bool{}
	for v := range values {
		assert.False(t, seen[v], "duplicate counter value %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)

	// Independent keys do not share sequences.
	other, err := s.Increment(ctx, "invoice_260902")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestPeek(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.Peek(ctx, "invoice_260901")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	_, err = s.Increment(ctx, "invoice_260901")
	require.NoError(t, err)

	v, err = s.Peek(ctx, "invoice_260901")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "eventTickets", "t1", document.Doc{
		"eventTicketId": "t_gala",
		"price":         195.0,
	}))

	doc, err := s.Lookup(ctx, "eventTickets", "eventTicketId", "t_gala")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 195.0, doc["price"])

	doc, err = s.Lookup(ctx, "eventTickets", "eventTicketId", "t_missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSanitizePath(t *testing.T) {
	assert.Equal(t, "customer.email", sanitizePath("customer.email"))
	assert.Equal(t, ") OR 1=1 --", sanitizePath("') OR 1=1 --"))
}
