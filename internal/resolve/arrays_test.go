package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/mapping"
)

// fakeLookuper serves enrichment documents keyed by foreign-field
// value and records whether it was called.
type fakeLookuper struct {
	docs  map[string]document.Doc
	err   error
	calls int
}

func (f *fakeLookuper) Lookup(_ context.Context, _ string, _ string, value any) (document.Doc, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[document.Text(value)], nil
}

func attendeeSources() Sources {
	return Sources{
		Registration: map[string]any{
			"registrationData": map[string]any{
				"attendees": []any{
					map[string]any{"attendeeId": "a1", "firstName": "Alice", "lastName": "Smith"},
					map[string]any{"attendeeId": "a2", "firstName": "Bob", "lastName": "Jones"},
				},
				"tickets": []any{
					map[string]any{"attendeeId": "a1", "eventTicketId": "t_gala", "name": "Gala Dinner"},
					map[string]any{"attendeeId": "a2", "eventTicketId": "t_gala", "name": "Gala Dinner"},
					map[string]any{"attendeeId": "a3", "eventTicketId": "t_gala", "name": "Gala Dinner"},
				},
			},
		},
	}
}

func attendeeMapping() mapping.ArrayMapping {
	return mapping.ArrayMapping{
		ParentArray: mapping.ParentArrayMapping{
			Path:     "registration.registrationData.attendees",
			KeyField: "attendeeId",
			ItemConfig: mapping.ItemConfig{
				DescriptionTemplate: []mapping.Segment{
					{Type: mapping.SegmentField, Value: "firstName"},
					{Type: mapping.SegmentField, Value: "lastName"},
				},
				Quantity:  mapping.ValueSpec{Type: mapping.ValueFixed, Value: 1},
				UnitPrice: mapping.ValueSpec{Type: mapping.ValueBlank},
			},
		},
		ChildArrays: []mapping.ChildArrayMapping{{
			Path:            "registration.registrationData.tickets",
			RelationshipKey: "attendeeId",
			ItemConfig: mapping.ItemConfig{
				DescriptionTemplate: []mapping.Segment{
					{Type: mapping.SegmentField, Value: "name"},
				},
				Quantity:  mapping.ValueSpec{Type: mapping.ValueFixed, Value: 1},
				UnitPrice: mapping.ValueSpec{Type: mapping.ValueLookup, Value: "eventTickets.price"},
			},
			Lookups: []mapping.Lookup{{
				LocalField:    "eventTicketId",
				Collection:    "eventTickets",
				ForeignField:  "eventTicketId",
				IncludeFields: []string{"price"},
			}},
		}},
	}
}

func TestArrayResolveParentChildJoin(t *testing.T) {
	lookups := &fakeLookuper{docs: map[string]document.Doc{
		"t_gala": {"eventTicketId": "t_gala", "price": 195.0},
	}}
	r := NewArrayResolver(lookups, 4, zap.NewNop())

	items := r.Resolve(context.Background(), attendeeMapping(), attendeeSources())

	require.Len(t, items, 2)
	assert.Equal(t, "Alice Smith", items[0].Description)
	assert.Equal(t, "Bob Jones", items[1].Description)

	// Each attendee gets exactly the tickets joined on attendeeId, with
	// the price pulled from the lookup collection.
	require.Len(t, items[0].SubItems, 1)
	require.Len(t, items[1].SubItems, 1)
	assert.Equal(t, "Gala Dinner", items[0].SubItems[0].Description)
	assert.Equal(t, "195", items[0].SubItems[0].Price.String())
	assert.Equal(t, "1", items[0].SubItems[0].Quantity.String())
}

func TestArrayResolveMissingParent(t *testing.T) {
	r := NewArrayResolver(&fakeLookuper{}, 4, zap.NewNop())

	m := attendeeMapping()
	m.ParentArray.Path = "registration.registrationData.nothing"

	assert.Empty(t, r.Resolve(context.Background(), m, attendeeSources()))
}

func TestArrayResolveNonArrayParent(t *testing.T) {
	r := NewArrayResolver(&fakeLookuper{}, 4, zap.NewNop())

	m := attendeeMapping()
	m.ParentArray.Path = "registration.registrationData"

	assert.Empty(t, r.Resolve(context.Background(), m, attendeeSources()))
}

func TestArrayResolveLookupFailureStillEmitsItem(t *testing.T) {
	lookups := &fakeLookuper{err: assert.AnError}
	r := NewArrayResolver(lookups, 4, zap.NewNop())

	items := r.Resolve(context.Background(), attendeeMapping(), attendeeSources())

	require.Len(t, items, 2)
	require.Len(t, items[0].SubItems, 1)
	assert.Equal(t, "Gala Dinner", items[0].SubItems[0].Description)
	assert.Equal(t, "0", items[0].SubItems[0].Price.String())
}

func TestArrayResolveNestedChild(t *testing.T) {
	src := Sources{
		Registration: map[string]any{
			"attendees": []any{
				map[string]any{
					"attendeeId": "a1",
					"firstName":  "Alice",
					"tickets": []any{
						map[string]any{"name": "Workshop", "price": 50.0},
						map[string]any{"name": "Dinner", "price": 120.0},
					},
				},
			},
		},
	}
	m := mapping.ArrayMapping{
		ParentArray: mapping.ParentArrayMapping{
			Path:     "registration.attendees",
			KeyField: "attendeeId",
			ItemConfig: mapping.ItemConfig{
				DescriptionTemplate: []mapping.Segment{{Type: mapping.SegmentField, Value: "firstName"}},
			},
		},
		ChildArrays: []mapping.ChildArrayMapping{{
			Path:     "tickets",
			IsNested: true,
			ItemConfig: mapping.ItemConfig{
				DescriptionTemplate: []mapping.Segment{{Type: mapping.SegmentField, Value: "name"}},
				UnitPrice:           mapping.ValueSpec{Type: mapping.ValueField, Value: "price"},
			},
		}},
	}

	r := NewArrayResolver(&fakeLookuper{}, 4, zap.NewNop())
	items := r.Resolve(context.Background(), m, src)

	require.Len(t, items, 1)
	require.Len(t, items[0].SubItems, 2)
	assert.Equal(t, "Workshop", items[0].SubItems[0].Description)
	assert.Equal(t, "50", items[0].SubItems[0].Price.String())
	assert.Equal(t, "Dinner", items[0].SubItems[1].Description)
	assert.Equal(t, "120", items[0].SubItems[1].Price.String())
	// Unset quantity spec falls back to one.
	assert.Equal(t, "1", items[0].SubItems[0].Quantity.String())
}

func TestArrayResolveUnmatchedChildDropped(t *testing.T) {
	r := NewArrayResolver(&fakeLookuper{}, 4, zap.NewNop())

	items := r.Resolve(context.Background(), attendeeMapping(), attendeeSources())

	// The a3 ticket has no attendee and must appear nowhere.
	total := 0
	for _, item := range items {
		total += len(item.SubItems)
	}
	assert.Equal(t, 2, total)
}
