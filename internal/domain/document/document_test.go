package document

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	doc, err := Parse([]byte(`{
		"id": "pi_123",
		"customer": {"email": "alice@example.com"},
		"registrationData": {
			"attendees": [
				{"attendeeId": "a1", "firstName": "Alice"},
				{"attendeeId": "a2", "firstName": "Bob"}
			]
		},
		"emptyKey": null
	}`))
	require.NoError(t, err)

	tests := []struct {
		name  string
		path  string
		want  any
		found bool
	}{
		{"top level", "id", "pi_123", true},
		{"nested object", "customer.email", "alice@example.com", true},
		{"array index", "registrationData.attendees.1.firstName", "Bob", true},
		{"missing key", "customer.phone", nil, false},
		{"missing intermediate", "billing.address.city", nil, false},
		{"index out of range", "registrationData.attendees.5.firstName", nil, false},
		{"non-numeric index", "registrationData.attendees.first.firstName", nil, false},
		{"scalar mid-path", "id.sub", nil, false},
		{"null value", "emptyKey", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Get(doc, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnwrap(t *testing.T) {
	assert.Equal(t, "123.45", Unwrap(map[string]any{"$numberDecimal": "123.45"}))
	assert.Equal(t, "67.80", Unwrap(map[string]any{"numberDecimal": "67.80"}))

	// Anything that is not a one-key wrapper passes through.
	plain := map[string]any{"$numberDecimal": "1", "other": "2"}
	assert.Equal(t, plain, Unwrap(plain))
	assert.Equal(t, 42.0, Unwrap(42.0))
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
		ok    bool
	}{
		{"float", 123.45, "123.45", true},
		{"numeric string", "67.80", "67.8", true},
		{"padded string", " 15 ", "15", true},
		{"decimal wrapper", map[string]any{"$numberDecimal": "21.00"}, "21", true},
		{"decimal value", decimal.NewFromInt(9), "9", true},
		{"non-numeric string", "abc", "0", false},
		{"nil", nil, "0", false},
		{"bool", true, "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Number(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "hello", Text("hello"))
	assert.Equal(t, "150", Text(150.0))
	assert.Equal(t, "1.5", Text(1.5))
	assert.Equal(t, "true", Text(true))
	assert.Equal(t, "12.34", Text(map[string]any{"$numberDecimal": "12.34"}))
}

func TestTime(t *testing.T) {
	got, ok := Time("2025-01-15T10:30:00Z")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), got)

	got, ok = Time("2025-01-15")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got)

	// Vendor payloads carry epoch milliseconds.
	got, ok = Time(1736937000000.0)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), got)

	_, ok = Time("not a date")
	assert.False(t, ok)
	_, ok = Time(nil)
	assert.False(t, ok)
}
