// Package queryfilter parses the list-endpoint filter language, for example
//
//	AND(EQUAL(category,"work"),NOT(LESS_THAN(date,"2024-01-01")))
//
// and compiles it into a parameterised SQL WHERE fragment over a whitelist of columns.
package queryfilter

import (
	"fmt"
	"strings"
	"unicode"
)

// Operator names a filter function. Parsing is case-insensitive; operators are stored upper case.
type Operator string

const (
	OpEqual       Operator = "EQUAL"
	OpGreaterThan Operator = "GREATER_THAN"
	OpLessThan    Operator = "LESS_THAN"
	OpAnd         Operator = "AND"
	OpOr          Operator = "OR"
	OpNot         Operator = "NOT"
)

// Expr is one node of a parsed filter.
type Expr struct {
	Op    Operator
	Field string
	Value string
	Args  []*Expr
}

// SyntaxError reports where parsing stopped.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at %d: %s", e.Pos, e.Msg)
}

// FieldError reports a field that is not filterable.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q cannot be filtered", e.Field)
}

// Parse parses a complete filter expression.
func Parse(input string) (*Expr, error) {
	p := &parser{src: input}
	p.skipSpace()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return expr, nil
}

// Compile renders the expression as SQL. columns maps filterable field names to column
// expressions; placeholders start at $firstArg.
func Compile(expr *Expr, columns map[string]string, firstArg int) (string, []interface{}, error) {
	c := &compiler{columns: columns, next: firstArg}
	sql, err := c.compile(expr)
	if err != nil {
		return "", nil, err
	}
	return sql, c.args, nil
}

// MaxDepth is the deepest nesting of operators Parse accepts.
const MaxDepth = 32

type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) expect(ch byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != ch {
		return p.errorf("expected %q", ch)
	}
	p.pos++
	return nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		ch := rune(p.src[p.pos])
		if ch != '_' && !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseExpr() (*Expr, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, p.errorf("expression nested deeper than %d", MaxDepth)
	}
	p.skipSpace()
	name := p.ident()
	if name == "" {
		return nil, p.errorf("expected operator")
	}
	op := Operator(strings.ToUpper(name))
	if err := p.expect('('); err != nil {
		return nil, err
	}

	expr := &Expr{Op: op}
	switch op {
	case OpEqual, OpGreaterThan, OpLessThan:
		p.skipSpace()
		expr.Field = p.ident()
		if expr.Field == "" {
			return nil, p.errorf("expected field name")
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		expr.Value = value
	case OpAnd, OpOr, OpNot:
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			expr.Args = append(expr.Args, arg)
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			break
		}
		if op == OpNot && len(expr.Args) != 1 {
			return nil, p.errorf("NOT takes exactly one argument")
		}
		if op != OpNot && len(expr.Args) < 2 {
			return nil, p.errorf("%s takes at least two arguments", op)
		}
	default:
		return nil, p.errorf("unknown operator %q", name)
	}

	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *parser) value() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return "", p.errorf("expected value")
	}
	quote := p.src[p.pos]
	if quote != '"' && quote != '\'' {
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != ')' && p.src[p.pos] != ',' {
			p.pos++
		}
		v := strings.TrimSpace(p.src[start:p.pos])
		if v == "" {
			return "", p.errorf("expected value")
		}
		return v, nil
	}

	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		switch {
		case ch == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case ch == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(ch)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

type compiler struct {
	columns map[string]string
	args    []interface{}
	next    int
}

func (c *compiler) placeholder(v interface{}) string {
	c.args = append(c.args, v)
	ph := fmt.Sprintf("$%d", c.next)
	c.next++
	return ph
}

func (c *compiler) compile(e *Expr) (string, error) {
	switch e.Op {
	case OpEqual, OpGreaterThan, OpLessThan:
		column, ok := c.columns[strings.ToLower(e.Field)]
		if !ok {
			return "", &FieldError{Field: e.Field}
		}
		sign := "="
		if e.Op == OpGreaterThan {
			sign = ">"
		} else if e.Op == OpLessThan {
			sign = "<"
		}
		return fmt.Sprintf("%s %s %s", column, sign, c.placeholder(e.Value)), nil
	case OpNot:
		inner, err := c.compile(e.Args[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case OpAnd, OpOr:
		parts := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			part, err := c.compile(arg)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+part+")")
		}
		return strings.Join(parts, " "+string(e.Op)+" "), nil
	default:
		return "", &SyntaxError{Msg: fmt.Sprintf("unknown operator %q", e.Op)}
	}
}
