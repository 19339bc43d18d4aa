package resolve

import (
	"strings"
	"unicode"

	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/mapping"
)

// RenderTemplate interpolates a description template. Field segments
// resolve through r; unresolved fields render as empty strings and are
// skipped. A single space separates adjacent non-empty values unless
// the literal text on either side already provides the whitespace.
func RenderTemplate(segments []mapping.Segment, r Resolver) string {
	var b strings.Builder
	var prev mapping.Segment
	wrote := false

	for _, seg := range segments {
		value := seg.Value
		if seg.Type == mapping.SegmentField {
			v, ok := r.Resolve(seg.Value)
			if !ok {
				continue
			}
			value = document.Text(v)
		}
		if value == "" {
			continue
		}

		if wrote && needsSeparator(prev, seg, value) {
			b.WriteByte(' ')
		}
		b.WriteString(value)
		prev = seg
		prev.Value = value
		wrote = true
	}
	return b.String()
}

// needsSeparator applies the inter-segment spacing rule: separate two
// non-empty values unless the left literal already ends in whitespace
// or the right literal already starts with it.
func needsSeparator(left, right mapping.Segment, rightValue string) bool {
	if left.Type == mapping.SegmentText && endsWithSpace(left.Value) {
		return false
	}
	if right.Type == mapping.SegmentText && startsWithSpace(rightValue) {
		return false
	}
	return true
}

func endsWithSpace(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsSpace(rune(s[len(s)-1]))
}

func startsWithSpace(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsSpace(rune(s[0]))
}
