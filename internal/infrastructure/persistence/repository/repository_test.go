package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/entity"
	"github.com/lodgetix/invoicing/internal/infrastructure/persistence/docstore"
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

func newTestStore(t *testing.T) *docstore.Store {
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

	return docstore.New(db, zap.NewNop())
}

func TestPaymentRepository(t *testing.T) {
	store := newTestStore(t)
	repo := NewPaymentRepository(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.InsertOne(ctx, "payments", "pay_1", document.Doc{
		"id":            "pay_1",
		"transactionId": "ch_abc",
		"amount":        615.0,
		"timestamp":     "2025-06-01T12:00:00Z",
		"source":        "stripe",
		"customerEmail": "alice@example.com",
		"status":        "paid",
	}))
	require.NoError(t, store.InsertOne(ctx, "payments", "pay_2", document.Doc{
		"id":        "pay_2",
		"amount":    100.0,
		"timestamp": "2025-06-01T10:00:00Z",
		"source":    "square",
	}))

	p, err := repo.GetByID(ctx, "pay_1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ch_abc", p.TransactionID)
	assert.Equal(t, "615", p.Amount.String())
	assert.Equal(t, entity.SourceStripe, p.Source)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), p.Timestamp)
	require.NotNil(t, p.Raw)

	missing, err := repo.GetByID(ctx, "pay_404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	unprocessed, err := repo.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unprocessed, 2)
	assert.Equal(t, "pay_2", unprocessed[0].ID, "earlier payment first")

	// Recording an outcome removes the payment from the unprocessed set.
	err = repo.MarkMatched(ctx, "pay_1", &entity.MatchResult{
		Payment:      p,
		Registration: &entity.RegistrationRecord{ID: "reg_1"},
		Confidence:   100,
		Method:       entity.MatchByPaymentID,
		Issues:       []string{},
	})
	require.NoError(t, err)

	unprocessed, err = repo.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "pay_2", unprocessed[0].ID)
}

func TestRegistrationRepositoryVendorPaymentIDFallback(t *testing.T) {
	store := newTestStore(t)
	repo := NewRegistrationRepository(store, zap.NewNop())
	ctx := context.Background()

	// Modern document records the id under vendorPaymentIds, legacy one
	// at the top level.
	require.NoError(t, store.InsertOne(ctx, "registrations", "reg_new", document.Doc{
		"id":               "reg_new",
		"totalAmount":      615.0,
		"createdAt":        "2025-06-01T11:58:00Z",
		"vendorPaymentIds": map[string]any{"stripe": "ch_abc"},
	}))
	require.NoError(t, store.InsertOne(ctx, "registrations", "reg_legacy", document.Doc{
		"id":                    "reg_legacy",
		"totalAmount":           200.0,
		"stripePaymentIntentId": "pi_legacy",
	}))

	reg, err := repo.GetByVendorPaymentID(ctx, entity.SourceStripe, "ch_abc")
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, "reg_new", reg.ID)

	reg, err = repo.GetByVendorPaymentID(ctx, entity.SourceStripe, "pi_legacy")
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, "reg_legacy", reg.ID)

	reg, err = repo.GetByVendorPaymentID(ctx, entity.SourceSquare, "ch_abc")
	require.NoError(t, err)
	assert.Nil(t, reg)
}

func TestRegistrationRepositoryAmountQueries(t *testing.T) {
	store := newTestStore(t)
	repo := NewRegistrationRepository(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.InsertOne(ctx, "registrations", "reg_1", document.Doc{
		"id": "reg_1", "totalAmount": 615.0, "customerEmail": "alice@example.com",
	}))
	require.NoError(t, store.InsertOne(ctx, "registrations", "reg_2", document.Doc{
		"id": "reg_2", "totalAmount": 615.0, "customerEmail": "bob@example.com",
	}))
	require.NoError(t, store.InsertOne(ctx, "registrations", "reg_3", document.Doc{
		"id": "reg_3", "totalAmount": 99.0, "customerEmail": "alice@example.com",
	}))

	byAmount, err := repo.FindByAmount(ctx, decimal.NewFromInt(615))
	require.NoError(t, err)
	assert.Len(t, byAmount, 2)

	byEmail, err := repo.FindByEmailAndAmount(ctx, "alice@example.com", decimal.NewFromInt(615))
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "reg_1", byEmail[0].ID)
}

func TestInvoiceRepositoryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	repo := NewInvoiceRepository(store, zap.NewNop())
	ctx := context.Background()

	invoice := &entity.Invoice{
		ID:            "inv_uuid_1",
		InvoiceNumber: "LTIV-260901001",
		Date:          time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		Status:        entity.InvoiceStatusFinal,
		BillTo:        entity.Party{Name: "Alice Smith", Email: "alice@example.com"},
		Items: []entity.InvoiceItem{{
			Description: "Alice Smith",
			Quantity:    decimal.NewFromInt(1),
			SubItems: []entity.InvoiceItem{{
				Description: "Gala Dinner",
				Quantity:    decimal.NewFromInt(1),
				Price:       decimal.NewFromFloat(195.00),
			}},
		}},
		Subtotal:       decimal.NewFromFloat(195.00),
		ProcessingFees: decimal.NewFromFloat(4.59),
		GSTIncluded:    decimal.NewFromFloat(18.14),
		Total:          decimal.NewFromFloat(199.59),
		PaymentID:      "pay_1",
	}

	require.NoError(t, repo.Create(ctx, invoice))

	got, err := repo.GetByNumber(ctx, "LTIV-260901001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, invoice.ID, got.ID)
	assert.Equal(t, entity.InvoiceStatusFinal, got.Status)
	assert.True(t, got.Total.Equal(invoice.Total))
	require.Len(t, got.Items, 1)
	require.Len(t, got.Items[0].SubItems, 1)
	assert.Equal(t, "Gala Dinner", got.Items[0].SubItems[0].Description)

	missing, err := repo.GetByNumber(ctx, "LTIV-000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
