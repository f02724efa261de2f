package builtin

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

// Calculate evaluates arithmetic expressions. Supports + - * / ^ with the
// usual precedence, parentheses, unary minus, and the functions sqrt, abs,
// sin, cos, tan, log, ln, ceil, floor.
func Calculate(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
	expression, ok := args["expression"].(string)
	if !ok || strings.TrimSpace(expression) == "" {
		return models.FailedResult(models.ErrorKindToolInternal, "expression must be a non-empty string"), nil
	}

	value, err := evaluateExpression(expression)
	if err != nil {
		return models.FailedResult(models.ErrorKindToolInternal, err.Error()), nil
	}

	output := formatNumber(value)
	return &models.ExecutionResult{
		Success: true,
		Value:   value,
		Output:  fmt.Sprintf("%s = %s", strings.TrimSpace(expression), output),
	}, nil
}

// formatNumber drops the fractional part when the result is integral.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type exprParser struct {
	input []rune
	pos   int
}

func evaluateExpression(expr string) (float64, error) {
	p := &exprParser{input: []rune(strings.ToLower(expr))}
	val, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", string(p.input[p.pos]), p.pos)
	}
	return val, nil
}

// parseExpr handles + and - (lowest precedence, left associative).
func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// parseTerm handles *, / and the unicode variants × ÷.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*', '×':
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/', '÷':
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

// parsePower handles ^ (right associative).
func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		val, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -val, nil
	}
	return p.parseAtom()
}

var exprFunctions = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"log":   math.Log10,
	"ln":    math.Log,
	"ceil":  math.Ceil,
	"floor": math.Floor,
}

func (p *exprParser) parseAtom() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	if p.peek() == '(' {
		p.pos++
		val, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return val, nil
	}

	if unicode.IsLetter(p.peek()) {
		name := p.readWhile(unicode.IsLetter)
		fn, ok := exprFunctions[name]
		if !ok {
			return 0, fmt.Errorf("unknown function %q", name)
		}
		p.skipSpace()
		if p.peek() != '(' {
			return 0, fmt.Errorf("expected ( after %s", name)
		}
		p.pos++
		arg, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis after %s", name)
		}
		p.pos++
		return fn(arg), nil
	}

	num := p.readWhile(func(r rune) bool {
		return unicode.IsDigit(r) || r == '.'
	})
	if num == "" {
		return 0, fmt.Errorf("unexpected %q at position %d", string(p.peek()), p.pos)
	}
	val, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", num)
	}
	return val, nil
}

func (p *exprParser) peek() rune {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *exprParser) readWhile(pred func(rune) bool) string {
	start := p.pos
	for p.pos < len(p.input) && pred(p.input[p.pos]) {
		p.pos++
	}
	return string(p.input[start:p.pos])
}
