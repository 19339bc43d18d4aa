package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcesResolve(t *testing.T) {
	sources := Sources{
		Payment:      map[string]any{"id": "pay_1", "amount": 150.0},
		Registration: map[string]any{"billTo": map[string]any{"name": "Alice"}},
		Related:      map[string]any{"name": "Grand Installation", "venue": map[string]any{"city": "Sydney"}},
	}

	tests := []struct {
		name string
		path string
		want any
		ok   bool
	}{
		{"payment field", "payment.id", "pay_1", true},
		{"registration nested", "registration.billTo.name", "Alice", true},
		{"related field", "related.name", "Grand Installation", true},
		{"related nested", "related.venue.city", "Sydney", true},
		{"related missing key", "related.capacity", nil, false},
		{"unknown prefix", "refund.id", nil, false},
		{"missing payment key", "payment.refunded", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sources.Resolve(tt.path)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourcesResolveEmptyRelated(t *testing.T) {
	sources := Sources{Payment: map[string]any{"id": "pay_1"}}

	// No related document loaded: the prefix stays addressable and
	// simply fails to resolve.
	_, ok := sources.Resolve("related.name")
	assert.False(t, ok)
}

func TestResolveFirst(t *testing.T) {
	sources := Sources{
		Registration: map[string]any{"customerEmail": "alice@example.com"},
	}

	v, ok := ResolveFirst(sources, "registration.billTo.email", "registration.customerEmail")
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", v)

	_, ok = ResolveFirst(sources, "payment.email", "registration.contactEmail")
	assert.False(t, ok)
}
