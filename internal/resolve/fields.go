// Package resolve turns mapping configuration plus heterogeneous
// source documents into concrete invoice field values and line items.
package resolve

import (
	"strings"

	"github.com/lodgetix/invoicing/internal/domain/document"
)

// Resolver resolves a dotted path to a value. Implementations never
// fail: an unresolvable path yields (nil, false).
type Resolver interface {
	Resolve(path string) (any, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(path string) (any, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(path string) (any, bool) { return f(path) }

// Sources bundles the named documents a mapping path can select with
// its prefix: payment., registration. or related.
type Sources struct {
	Payment      document.Doc
	Registration document.Doc
	Related      document.Doc
}

// Resolve selects the source document by the path's prefix and walks
// the remainder. Paths without a recognized prefix, and any missing
// intermediate key, yield (nil, false).
func (s Sources) Resolve(path string) (any, bool) {
	prefix, rest, ok := strings.Cut(path, ".")
	if !ok {
		// A bare source name resolves to the whole document.
		prefix, rest = path, ""
	}
	switch prefix {
	case "payment":
		return document.Get(s.Payment, rest)
	case "registration":
		return document.Get(s.Registration, rest)
	case "related":
		return document.Get(s.Related, rest)
	default:
		return nil, false
	}
}

// ResolveFirst evaluates candidate paths in order and returns the
// first that resolves. This replaces scattered per-call-site fallback
// chains with one documented precedence order.
func ResolveFirst(r Resolver, paths ...string) (any, bool) {
	for _, path := range paths {
		if v, ok := r.Resolve(path); ok {
			return v, true
		}
	}
	return nil, false
}
