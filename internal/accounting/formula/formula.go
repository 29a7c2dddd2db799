// Package formula evaluates the small arithmetic expressions used by entry
// templates and statement mappings. All arithmetic runs on fixed-point
// decimals; binary floating point never touches a monetary amount.
package formula

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/grandlivre/grandlivre/internal/accounting/shared"
)

// Vars supplies named operands for evaluation.
type Vars map[string]decimal.Decimal

// Expr is a compiled expression. Compile once, evaluate many times; an Expr
// holds no mutable state and is safe for concurrent use.
type Expr struct {
	source string
	root   node
}

// Source returns the original expression text.
func (e *Expr) Source() string { return e.source }

// Vars lists the variable names the expression references, deduplicated.
func (e *Expr) Vars() []string {
	seen := map[string]struct{}{}
	var out []string
	e.root.collect(seen, &out)
	return out
}

// Compile parses an expression supporting the four arithmetic operators,
// unary minus, parentheses, decimal literals, and variables.
func Compile(source string) (*Expr, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{source: source, toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, &shared.EvalError{Expr: source, Reason: fmt.Sprintf("unexpected %q", p.peek().text)}
	}
	return &Expr{source: source, root: root}, nil
}

// Eval computes the expression over the supplied variables. Referencing a
// name absent from vars is an error: amounts must never default to zero.
func (e *Expr) Eval(vars Vars) (decimal.Decimal, error) {
	return e.root.eval(e.source, vars)
}

// Eval is a convenience for one-shot compile-and-evaluate.
func Eval(source string, vars Vars) (decimal.Decimal, error) {
	expr, err := Compile(source)
	if err != nil {
		return decimal.Zero, err
	}
	return expr.Eval(vars)
}

type node interface {
	eval(src string, vars Vars) (decimal.Decimal, error)
	collect(seen map[string]struct{}, out *[]string)
}

type literal struct{ value decimal.Decimal }

func (n literal) eval(string, Vars) (decimal.Decimal, error) { return n.value, nil }
func (literal) collect(map[string]struct{}, *[]string)       {}

type variable struct{ name string }

func (n variable) eval(src string, vars Vars) (decimal.Decimal, error) {
	v, ok := vars[n.name]
	if !ok {
		return decimal.Zero, &shared.EvalError{Expr: src, Reason: fmt.Sprintf("variable %q not supplied", n.name)}
	}
	return v, nil
}

func (n variable) collect(seen map[string]struct{}, out *[]string) {
	if _, ok := seen[n.name]; ok {
		return
	}
	seen[n.name] = struct{}{}
	*out = append(*out, n.name)
}

type unary struct{ operand node }

func (n unary) eval(src string, vars Vars) (decimal.Decimal, error) {
	v, err := n.operand.eval(src, vars)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

func (n unary) collect(seen map[string]struct{}, out *[]string) { n.operand.collect(seen, out) }

type binary struct {
	op          rune
	left, right node
}

func (n binary) eval(src string, vars Vars) (decimal.Decimal, error) {
	l, err := n.left.eval(src, vars)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := n.right.eval(src, vars)
	if err != nil {
		return decimal.Zero, err
	}
	switch n.op {
	case '+':
		return l.Add(r), nil
	case '-':
		return l.Sub(r), nil
	case '*':
		return l.Mul(r), nil
	case '/':
		if r.IsZero() {
			return decimal.Zero, &shared.EvalError{Expr: src, Reason: "division by zero"}
		}
		return l.Div(r), nil
	}
	return decimal.Zero, &shared.EvalError{Expr: src, Reason: fmt.Sprintf("unknown operator %q", n.op)}
}

func (n binary) collect(seen map[string]struct{}, out *[]string) {
	n.left.collect(seen, out)
	n.right.collect(seen, out)
}

type tokKind int

const (
	tokNumber tokKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
}

func lex(source string) ([]token, error) {
	var toks []token
	runes := []rune(source)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			toks = append(toks, token{tokOp, string(r)})
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, string(runes[start:i])})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			toks = append(toks, token{tokIdent, string(runes[start:i])})
		default:
			return nil, &shared.EvalError{Expr: source, Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	if len(toks) == 0 {
		return nil, &shared.EvalError{Expr: source, Reason: "empty expression"}
	}
	return toks, nil
}

type parser struct {
	source string
	toks   []token
	pos    int
}

func (p *parser) eof() bool     { return p.pos >= len(p.toks) }
func (p *parser) peek() token   { return p.toks[p.pos] }
func (p *parser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := rune(p.advance().text[0])
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokOp && (p.peek().text == "*" || p.peek().text == "/") {
		op := rune(p.advance().text[0])
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if !p.eof() && p.peek().kind == tokOp && p.peek().text == "-" {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unary{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.eof() {
		return nil, &shared.EvalError{Expr: p.source, Reason: "unexpected end of expression"}
	}
	t := p.advance()
	switch t.kind {
	case tokNumber:
		if strings.Count(t.text, ".") > 1 {
			return nil, &shared.EvalError{Expr: p.source, Reason: fmt.Sprintf("malformed number %q", t.text)}
		}
		v, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, &shared.EvalError{Expr: p.source, Reason: fmt.Sprintf("malformed number %q", t.text)}
		}
		return literal{value: v}, nil
	case tokIdent:
		return variable{name: t.text}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek().kind != tokRParen {
			return nil, &shared.EvalError{Expr: p.source, Reason: "missing closing parenthesis"}
		}
		p.advance()
		return inner, nil
	default:
		return nil, &shared.EvalError{Expr: p.source, Reason: fmt.Sprintf("unexpected %q", t.text)}
	}
}
