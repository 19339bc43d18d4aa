// Package mapping defines the user-authored configuration consumed by
// the invoice builder: field mappings, declarative computations and
// parent/child array relationships. Structures decode from JSON as
// authored externally; missing fields fall back to safe defaults and
// never fail the decode.
package mapping

import (
	"encoding/json"
	"fmt"
)

// ComputationType enumerates the supported declarative computations.
type ComputationType string

const (
	ComputeCount      ComputationType = "count"
	ComputeSum        ComputationType = "sum"
	ComputeArithmetic ComputationType = "arithmetic"
	ComputeExpression ComputationType = "expression"
	ComputeConcat     ComputationType = "concat"
	ComputeNow        ComputationType = "now"
	ComputeMinDate    ComputationType = "minDate"
	ComputeMaxDate    ComputationType = "maxDate"
)

// Parameters carries the per-type computation options. Operand is kept
// loosely typed because mapping authors write both numbers and numeric
// strings.
type Parameters struct {
	Operator   string `json:"operator,omitempty"`
	Operand    any    `json:"operand,omitempty"`
	Expression string `json:"expression,omitempty"`
	Separator  string `json:"separator,omitempty"`
}

// ComputationDefinition is a typed formula evaluated against the
// source documents.
type ComputationDefinition struct {
	Type       ComputationType `json:"type"`
	Sources    []string        `json:"sources"`
	Parameters Parameters      `json:"parameters"`
}

// FieldSource describes how a single invoice field is populated.
// Exactly one of SourcePath, LiteralValue or Computation should be
// set; when several are, the resolver applies last-write-wins in the
// order sourcePath, literalValue, computation and flags a warning.
type FieldSource struct {
	SourcePath   string                 `json:"sourcePath,omitempty"`
	LiteralValue any                    `json:"literalValue,omitempty"`
	Computation  *ComputationDefinition `json:"computation,omitempty"`
}

// ActiveCount reports how many of the three variants are populated.
func (f FieldSource) ActiveCount() int {
	n := 0
	if f.SourcePath != "" {
		n++
	}
	if f.LiteralValue != nil {
		n++
	}
	if f.Computation != nil {
		n++
	}
	return n
}

// FieldMapping maps target invoice field paths to their sources.
type FieldMapping map[string]FieldSource

// ValueSpecType enumerates how a quantity or unit price is obtained.
type ValueSpecType string

const (
	ValueFixed  ValueSpecType = "fixed"
	ValueField  ValueSpecType = "field"
	ValueLookup ValueSpecType = "lookup"
	ValueBlank  ValueSpecType = "blank"
)

// ValueSpec resolves to a quantity or unit price for a line item.
type ValueSpec struct {
	Type  ValueSpecType `json:"type"`
	Value any           `json:"value,omitempty"`
}

// SegmentType distinguishes literal text from field references inside
// a description template.
type SegmentType string

const (
	SegmentText  SegmentType = "text"
	SegmentField SegmentType = "field"
)

// Segment is one piece of a description template.
type Segment struct {
	Type  SegmentType `json:"type"`
	Value string      `json:"value"`
}

// ItemConfig describes how one line item is rendered from an array
// element.
type ItemConfig struct {
	DescriptionTemplate []Segment `json:"descriptionTemplate"`
	Quantity            ValueSpec `json:"quantity"`
	UnitPrice           ValueSpec `json:"unitPrice"`
}

// Lookup enriches a child element with fields fetched from an external
// collection, joined on LocalField = ForeignField.
type Lookup struct {
	LocalField    string   `json:"localField"`
	Collection    string   `json:"collection"`
	ForeignField  string   `json:"foreignField"`
	IncludeFields []string `json:"includeFields"`
}

// ParentArrayMapping selects the parent array and how its elements
// become top-level line items.
type ParentArrayMapping struct {
	Path       string     `json:"path"`
	KeyField   string     `json:"keyField"`
	ItemConfig ItemConfig `json:"itemConfig"`
}

// ChildArrayMapping joins a child array onto each parent element.
// When IsNested is set the child array lives inside the parent element
// at Path and the equality join is skipped.
type ChildArrayMapping struct {
	Path            string     `json:"path"`
	RelationshipKey string     `json:"relationshipKey"`
	ParentKey       string     `json:"parentKey"`
	ItemConfig      ItemConfig `json:"itemConfig"`
	Lookups         []Lookup   `json:"lookups,omitempty"`
	IsNested        bool       `json:"isNested,omitempty"`
}

// ArrayMapping is the full parent/child line-item configuration.
type ArrayMapping struct {
	ParentArray ParentArrayMapping  `json:"parentArray"`
	ChildArrays []ChildArrayMapping `json:"childArrays,omitempty"`
}

// RelatedLookup loads one supporting document alongside the matched
// pair. SourcePath is resolved against the payment/registration
// documents and the value joined on ForeignField; field mappings then
// address the result under the related. prefix.
type RelatedLookup struct {
	SourcePath   string `json:"sourcePath"`
	Collection   string `json:"collection"`
	ForeignField string `json:"foreignField"`
}

// Config is a complete authored mapping: scalar invoice fields plus
// zero or more array relationships and an optional related document.
type Config struct {
	Fields  FieldMapping   `json:"fields,omitempty"`
	Arrays  []ArrayMapping `json:"arrays,omitempty"`
	Related *RelatedLookup `json:"related,omitempty"`
}

// ParseConfig decodes an authored mapping configuration. Only the
// structural shape is validated; unknown computation or value-spec
// types are preserved and resolve to safe defaults later.
func ParseConfig(body []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse mapping config: %w", err)
	}
	if cfg.Fields == nil {
		cfg.Fields = FieldMapping{}
	}
	return &cfg, nil
}
