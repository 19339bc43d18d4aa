package resolve

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// evalExpression reduces an arithmetic string to a value using a small
// recursive-descent parser restricted to numeric literals, + - * / and
// parentheses. Mapping-authored strings never reach a general-purpose
// evaluator. Division by zero yields zero, matching the arithmetic
// computation type.
func evalExpression(input string) (decimal.Decimal, error) {
	p := &exprParser{input: strings.TrimSpace(input)}
	if p.input == "" {
		return decimal.Zero, fmt.Errorf("empty expression")
	}
	result, err := p.parseExpr()
	if err != nil {
		return decimal.Zero, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return decimal.Zero, fmt.Errorf("unexpected token at offset %d in %q", p.pos, p.input)
	}
	return result, nil
}

type exprParser struct {
	input string
	pos   int
}

// parseExpr handles + and - at the lowest precedence.
func (p *exprParser) parseExpr() (decimal.Decimal, error) {
	left, err := p.parseTerm()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.peek() == '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Add(right)
		case p.peek() == '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Sub(right)
		default:
			return left, nil
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (decimal.Decimal, error) {
	left, err := p.parseFactor()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.peek() == '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Mul(right)
		case p.peek() == '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			if right.IsZero() {
				left = decimal.Zero
			} else {
				left = left.Div(right)
			}
		default:
			return left, nil
		}
	}
}

// parseFactor handles numbers, unary minus and parenthesized groups.
func (p *exprParser) parseFactor() (decimal.Decimal, error) {
	p.skipSpaces()
	switch {
	case p.peek() == '-':
		p.pos++
		v, err := p.parseFactor()
		if err != nil {
			return decimal.Zero, err
		}
		return v.Neg(), nil
	case p.peek() == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return decimal.Zero, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return decimal.Zero, fmt.Errorf("missing closing parenthesis in %q", p.input)
		}
		p.pos++
		return v, nil
	default:
		return p.parseNumber()
	}
}

func (p *exprParser) parseNumber() (decimal.Decimal, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return decimal.Zero, fmt.Errorf("expected number at offset %d in %q", start, p.input)
	}
	d, err := decimal.NewFromString(p.input[start:p.pos])
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", p.input[start:p.pos], err)
	}
	return d, nil
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}
