package resolve

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/domain/document"
	"github.com/lodgetix/invoicing/internal/domain/mapping"
)

// fieldToken matches {path} placeholders inside expression strings.
var fieldToken = regexp.MustCompile(`\{([^{}]+)\}`)

// ComputationEngine evaluates declarative computations over resolved
// field values. Evaluation never fails outward: any internal error
// surfaces as a zero or nil result plus a logged diagnostic, so one
// bad computed field cannot abort an invoice build.
type ComputationEngine struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewComputationEngine creates an engine logging diagnostics to logger.
func NewComputationEngine(logger *zap.Logger) *ComputationEngine {
	return &ComputationEngine{logger: logger, now: time.Now}
}

// Evaluate runs one computation against the resolver. The result is a
// decimal, string, time.Time or nil depending on the computation type.
func (e *ComputationEngine) Evaluate(def mapping.ComputationDefinition, r Resolver) (result any) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("Computation panicked, falling back to nil",
				zap.String("type", string(def.Type)), zap.Any("panic", rec))
			result = nil
		}
	}()

	switch def.Type {
	case mapping.ComputeCount:
		return e.count(def, r)
	case mapping.ComputeSum:
		return e.sum(def, r)
	case mapping.ComputeArithmetic:
		return e.arithmetic(def, r)
	case mapping.ComputeExpression:
		return e.expression(def, r)
	case mapping.ComputeConcat:
		return e.concat(def, r)
	case mapping.ComputeNow:
		return e.now().UTC()
	case mapping.ComputeMinDate:
		return e.dateExtremum(def, r, false)
	case mapping.ComputeMaxDate:
		return e.dateExtremum(def, r, true)
	default:
		e.logger.Warn("Unknown computation type", zap.String("type", string(def.Type)))
		return nil
	}
}

func (e *ComputationEngine) count(def mapping.ComputationDefinition, r Resolver) int {
	if len(def.Sources) == 0 {
		return 0
	}
	v, ok := r.Resolve(def.Sources[0])
	if !ok {
		return 0
	}
	arr, ok := v.([]any)
	if !ok {
		return 0
	}
	return len(arr)
}

// sum adds the numeric values found at each source path. Arrays are
// summed element-wise; non-numeric values contribute zero.
func (e *ComputationEngine) sum(def mapping.ComputationDefinition, r Resolver) decimal.Decimal {
	total := decimal.Zero
	for _, path := range def.Sources {
		v, ok := r.Resolve(path)
		if !ok {
			continue
		}
		if arr, isArr := v.([]any); isArr {
			for _, elem := range arr {
				if n, numOK := document.Number(elem); numOK {
					total = total.Add(n)
				}
			}
			continue
		}
		if n, numOK := document.Number(v); numOK {
			total = total.Add(n)
		}
	}
	return total
}

func (e *ComputationEngine) arithmetic(def mapping.ComputationDefinition, r Resolver) decimal.Decimal {
	var base decimal.Decimal
	if len(def.Sources) > 0 {
		if v, ok := r.Resolve(def.Sources[0]); ok {
			base, _ = document.Number(v)
		}
	}
	operand, _ := document.Number(def.Parameters.Operand)

	switch def.Parameters.Operator {
	case "+":
		return base.Add(operand)
	case "-":
		return base.Sub(operand)
	case "*":
		return base.Mul(operand)
	case "/":
		if operand.IsZero() {
			return decimal.Zero
		}
		return base.Div(operand)
	default:
		e.logger.Warn("Unknown arithmetic operator",
			zap.String("operator", def.Parameters.Operator))
		return decimal.Zero
	}
}

// expression substitutes {path} tokens with resolved numeric values,
// strips a dangling trailing operator, and evaluates the remaining
// arithmetic string. Malformed expressions evaluate to zero.
func (e *ComputationEngine) expression(def mapping.ComputationDefinition, r Resolver) decimal.Decimal {
	raw := def.Parameters.Expression
	substituted := fieldToken.ReplaceAllStringFunc(raw, func(token string) string {
		path := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		v, ok := r.Resolve(path)
		if !ok {
			return "0"
		}
		n, numOK := document.Number(v)
		if !numOK {
			return "0"
		}
		return n.String()
	})

	substituted = stripTrailingOperator(substituted)
	result, err := evalExpression(substituted)
	if err != nil {
		e.logger.Warn("Malformed expression evaluated to zero",
			zap.String("expression", raw), zap.Error(err))
		return decimal.Zero
	}
	return result
}

func (e *ComputationEngine) concat(def mapping.ComputationDefinition, r Resolver) string {
	separator := def.Parameters.Separator
	if separator == "" {
		separator = " "
	}
	var parts []string
	for _, path := range def.Sources {
		v, ok := r.Resolve(path)
		if !ok || v == nil {
			continue
		}
		parts = append(parts, document.Text(v))
	}
	return strings.Join(parts, separator)
}

// dateExtremum parses each source as a date, discards unparsable
// entries and returns the earliest or latest remaining timestamp.
// It returns nil when nothing parses.
func (e *ComputationEngine) dateExtremum(def mapping.ComputationDefinition, r Resolver, max bool) any {
	var best time.Time
	found := false
	for _, path := range def.Sources {
		v, ok := r.Resolve(path)
		if !ok {
			continue
		}
		t, parsed := document.Time(v)
		if !parsed {
			continue
		}
		if !found || (max && t.After(best)) || (!max && t.Before(best)) {
			best = t
			found = true
		}
	}
	if !found {
		return nil
	}
	return best
}

// stripTrailingOperator removes one dangling arithmetic operator left
// behind when the final substitution resolved to nothing.
func stripTrailingOperator(s string) string {
	trimmed := strings.TrimRight(s, " ")
	for len(trimmed) > 0 {
		last := trimmed[len(trimmed)-1]
		if last != '+' && last != '-' && last != '*' && last != '/' {
			break
		}
		trimmed = strings.TrimRight(trimmed[:len(trimmed)-1], " ")
	}
	return trimmed
}
