package resolve

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/entity"
	"github.com/lodgetix/invoicing/internal/domain/mapping"
)

// ArrayResolver joins a parent array (e.g. attendees) to its child
// arrays (e.g. tickets) by key equality, optionally enriching child
// rows from external lookup collections, and emits the resulting line
// item tree. The join is a linear scan: expected cardinalities are a
// handful of attendees with a few tickets each.
type ArrayResolver struct {
	lookups       port.Lookuper
	lookupWorkers int
	logger        *zap.Logger
}

// NewArrayResolver creates a resolver issuing enrichment lookups with
// at most workers in flight.
func NewArrayResolver(lookups port.Lookuper, workers int, logger *zap.Logger) *ArrayResolver {
	if workers < 1 {
		workers = 1
	}
	return &ArrayResolver{
		lookups:       lookups,
		lookupWorkers: workers,
		logger:        logger,
	}
}

// Resolve materializes line items for one array mapping. A missing or
// non-array parent path yields an empty result, never an error.
func (a *ArrayResolver) Resolve(ctx context.Context, m mapping.ArrayMapping, src Sources) []entity.InvoiceItem {
	parentVal, ok := src.Resolve(m.ParentArray.Path)
	if !ok {
		a.logger.Warn("Parent array path did not resolve",
			zap.String("path", m.ParentArray.Path))
		return nil
	}
	parents, ok := parentVal.([]any)
	if !ok {
		a.logger.Warn("Parent array path is not an array",
			zap.String("path", m.ParentArray.Path))
		return nil
	}

	items := make([]entity.InvoiceItem, 0, len(parents))
	for _, raw := range parents {
		parent, isMap := raw.(map[string]any)
		if !isMap {
			continue
		}
		scope := newElementScope(parent, src)
		item := a.buildItem(m.ParentArray.ItemConfig, scope, decimal.NewFromInt(1))

		for _, child := range m.ChildArrays {
			elements := a.childElements(m, child, parent, src)
			for _, enriched := range a.enrichAll(ctx, child, elements) {
				childScope := newElementScope(enriched, src)
				item.SubItems = append(item.SubItems,
					a.buildItem(child.ItemConfig, childScope, decimal.NewFromInt(1)))
			}
		}
		items = append(items, item)
	}
	return items
}

// childElements selects the child rows belonging to one parent
// element. Nested mode reads the array straight off the parent;
// otherwise a sibling top-level array is filtered by key equality.
func (a *ArrayResolver) childElements(m mapping.ArrayMapping, child mapping.ChildArrayMapping, parent map[string]any, src Sources) []map[string]any {
	var raw any
	var ok bool
	if child.IsNested {
		raw, ok = document.Get(parent, child.Path)
	} else {
		raw, ok = src.Resolve(child.Path)
	}
	if !ok {
		return nil
	}
	arr, isArr := raw.([]any)
	if !isArr {
		return nil
	}

	parentKey := child.ParentKey
	if parentKey == "" {
		parentKey = m.ParentArray.KeyField
	}
	parentVal, _ := document.Get(parent, parentKey)

	var out []map[string]any
	for _, e := range arr {
		elem, isMap := e.(map[string]any)
		if !isMap {
			continue
		}
		if child.IsNested {
			out = append(out, elem)
			continue
		}
		childVal, has := document.Get(elem, child.RelationshipKey)
		if has && equalValues(childVal, parentVal) {
			out = append(out, elem)
		}
	}
	return out
}

// enrichAll runs the configured lookups for each child element.
// Lookups across elements fan out concurrently since they are
// read-only; results land in a slice indexed by source position so
// sub-item order stays deterministic.
func (a *ArrayResolver) enrichAll(ctx context.Context, child mapping.ChildArrayMapping, elements []map[string]any) []map[string]any {
	if len(child.Lookups) == 0 || len(elements) <= 1 {
		out := make([]map[string]any, 0, len(elements))
		for _, elem := range elements {
			out = append(out, a.enrich(ctx, child, elem))
		}
		return out
	}

	out := make([]map[string]any, len(elements))
	sem := make(chan struct{}, a.lookupWorkers)
	var wg sync.WaitGroup
	for i, elem := range elements {
		wg.Add(1)
		go func(i int, elem map[string]any) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i] = a.enrich(ctx, child, elem)
		}(i, elem)
	}
	wg.Wait()
	return out
}

// enrich merges lookup results into a copy of the element, namespaced
// by collection name. A failed or empty lookup leaves the element
// usable with only its own fields.
func (a *ArrayResolver) enrich(ctx context.Context, child mapping.ChildArrayMapping, elem map[string]any) map[string]any {
	if len(child.Lookups) == 0 {
		return elem
	}
	enriched := make(map[string]any, len(elem)+len(child.Lookups))
	for k, v := range elem {
		enriched[k] = v
	}

	for _, lookup := range child.Lookups {
		localVal, ok := document.Get(elem, lookup.LocalField)
		if !ok {
			continue
		}
		doc, err := a.lookups.Lookup(ctx, lookup.Collection, lookup.ForeignField, document.Unwrap(localVal))
		if err != nil {
			a.logger.Warn("Enrichment lookup failed, emitting item without enrichment",
				zap.String("collection", lookup.Collection),
				zap.String("local_field", lookup.LocalField),
				zap.Error(err))
			continue
		}
		if doc == nil {
			continue
		}

		fields := make(map[string]any)
		if len(lookup.IncludeFields) == 0 {
			for k, v := range doc {
				fields[k] = v
			}
		} else {
			for _, f := range lookup.IncludeFields {
				if v, has := document.Get(doc, f); has {
					fields[f] = v
				}
			}
		}
		enriched[lookup.Collection] = fields
	}
	return enriched
}

// buildItem renders one line item from an element scope.
func (a *ArrayResolver) buildItem(cfg mapping.ItemConfig, scope Resolver, defaultQuantity decimal.Decimal) entity.InvoiceItem {
	return entity.InvoiceItem{
		Description: RenderTemplate(cfg.DescriptionTemplate, scope),
		Quantity:    a.resolveValue(cfg.Quantity, scope, defaultQuantity),
		Price:       a.resolveValue(cfg.UnitPrice, scope, decimal.Zero),
	}
}

// resolveValue evaluates a quantity/price spec against the element
// scope. A lookup-sourced price is just a field reference into the
// enriched field set.
func (a *ArrayResolver) resolveValue(spec mapping.ValueSpec, scope Resolver, fallback decimal.Decimal) decimal.Decimal {
	switch spec.Type {
	case mapping.ValueFixed:
		if n, ok := document.Number(spec.Value); ok {
			return n
		}
		return fallback
	case mapping.ValueField, mapping.ValueLookup:
		path, _ := spec.Value.(string)
		if path == "" {
			return decimal.Zero
		}
		v, ok := scope.Resolve(path)
		if !ok {
			return decimal.Zero
		}
		n, numOK := document.Number(v)
		if !numOK {
			return decimal.Zero
		}
		return n
	case mapping.ValueBlank:
		return decimal.Zero
	case "":
		return fallback
	default:
		a.logger.Warn("Unknown value spec type", zap.String("type", string(spec.Type)))
		return decimal.Zero
	}
}

// elementScope resolves paths against an array element first, falling
// back to the prefixed source documents for paths the element does not
// carry.
type elementScope struct {
	element map[string]any
	base    Sources
}

func newElementScope(element map[string]any, base Sources) elementScope {
	return elementScope{element: element, base: base}
}

// Resolve implements Resolver.
func (s elementScope) Resolve(path string) (any, bool) {
	if v, ok := document.Get(s.element, path); ok {
		return v, true
	}
	return s.base.Resolve(path)
}

// equalValues compares join key values numerically when both sides are
// numbers, textually otherwise.
func equalValues(a, b any) bool {
	an, aok := document.Number(a)
	bn, bok := document.Number(b)
	if aok && bok {
		return an.Equal(bn)
	}
	return document.Text(a) == document.Text(b)
}
