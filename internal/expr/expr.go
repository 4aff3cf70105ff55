package expr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// statusFuncs are the zero-argument functions that inspect job status.
// Their presence disables the implicit success() conjunct.
var statusFuncs = map[string]bool{
	"success":   true,
	"failure":   true,
	"cancelled": true,
	"always":    true,
}

// Compiled is a parsed condition expression ready for evaluation.
type Compiled struct {
	root       node
	usesStatus bool
}

// Parse compiles an expression. A leading/trailing ${{ }} wrapper is
// stripped first. Parse errors carry the offending position within the
// expression source.
func Parse(src string) (*Compiled, error) {
	src = Unwrap(src)
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	p := &parser{lexer: lexer{src: src}}
	p.next()
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.tok.text, p.tok.pos)
	}
	return &Compiled{root: root, usesStatus: p.usesStatus}, nil
}

// Eval evaluates the compiled expression and reduces the result to a
// boolean using the dialect's truthiness rules (empty string is false,
// any other string is true).
func (c *Compiled) Eval(ctx *Context) (bool, error) {
	v, err := c.root.eval(ctx)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// UsesStatusFunc reports whether the expression calls any of the status
// functions. Callers use this to decide whether the implicit success()
// conjunct applies.
func (c *Compiled) UsesStatusFunc() bool {
	return c.usesStatus
}

// Evaluate answers whether a step gated by ifExpr should run.
//
// An empty expression means "run while the job is succeeding". A
// non-empty expression without status functions gets the implicit
// success() conjunct; one with status functions stands alone, which is
// how always() steps run even after failure or cancellation.
func Evaluate(ifExpr string, ctx *Context) (bool, error) {
	if strings.TrimSpace(Unwrap(ifExpr)) == "" {
		return ctx.Job == workflow.StatusSuccess, nil
	}

	compiled, err := Parse(ifExpr)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", ifExpr, err)
	}

	result, err := compiled.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", ifExpr, err)
	}

	if !compiled.UsesStatusFunc() && ctx.Job != workflow.StatusSuccess {
		return false, nil
	}
	return result, nil
}

// Unwrap strips a single enclosing ${{ ... }} wrapper if present.
func Unwrap(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "${{") && strings.HasSuffix(trimmed, "}}") {
		return strings.TrimSpace(trimmed[3 : len(trimmed)-2])
	}
	return s
}

// value is the result of evaluating a subexpression: either a string
// (literals, context references) or a bool (comparisons, logic).
type value struct {
	s      string
	b      bool
	isBool bool
}

func stringValue(s string) value { return value{s: s} }
func boolValue(b bool) value     { return value{b: b, isBool: true} }

func truthy(v value) bool {
	if v.isBool {
		return v.b
	}
	return v.s != ""
}

// asString renders a value for comparison and interpolation.
func asString(v value) string {
	if v.isBool {
		if v.b {
			return "true"
		}
		return "false"
	}
	return v.s
}

type node interface {
	eval(ctx *Context) (value, error)
}

type litNode struct{ s string }

func (n litNode) eval(*Context) (value, error) { return stringValue(n.s), nil }

type refNode struct{ path string }

func (n refNode) eval(ctx *Context) (value, error) {
	return stringValue(ctx.Resolve(n.path)), nil
}

type callNode struct{ name string }

func (n callNode) eval(ctx *Context) (value, error) {
	switch n.name {
	case "success":
		return boolValue(ctx.Job == workflow.StatusSuccess), nil
	case "failure":
		return boolValue(ctx.Job == workflow.StatusFailure), nil
	case "cancelled":
		return boolValue(ctx.Job == workflow.StatusCancelled), nil
	case "always":
		return boolValue(true), nil
	default:
		return value{}, fmt.Errorf("unknown function %q", n.name)
	}
}

type notNode struct{ operand node }

func (n notNode) eval(ctx *Context) (value, error) {
	v, err := n.operand.eval(ctx)
	if err != nil {
		return value{}, err
	}
	return boolValue(!truthy(v)), nil
}

type binNode struct {
	op          string
	left, right node
}

func (n binNode) eval(ctx *Context) (value, error) {
	lv, err := n.left.eval(ctx)
	if err != nil {
		return value{}, err
	}

	// Short-circuit logic operators
	switch n.op {
	case "&&":
		if !truthy(lv) {
			return boolValue(false), nil
		}
		rv, err := n.right.eval(ctx)
		if err != nil {
			return value{}, err
		}
		return boolValue(truthy(rv)), nil
	case "||":
		if truthy(lv) {
			return boolValue(true), nil
		}
		rv, err := n.right.eval(ctx)
		if err != nil {
			return value{}, err
		}
		return boolValue(truthy(rv)), nil
	}

	rv, err := n.right.eval(ctx)
	if err != nil {
		return value{}, err
	}

	switch n.op {
	case "==":
		return boolValue(asString(lv) == asString(rv)), nil
	case "!=":
		return boolValue(asString(lv) != asString(rv)), nil
	default:
		return value{}, fmt.Errorf("unknown operator %q", n.op)
	}
}

// Lexer

type tokKind int

const (
	tokEOF tokKind = iota
	tokString
	tokIdent
	tokOp // == != && || ! ( )
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) lex() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch c {
	case '\'':
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] != '\'' {
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, fmt.Errorf("unterminated string at offset %d", start)
		}
		text := l.src[start+1 : l.pos]
		l.pos++
		return token{kind: tokString, text: text, pos: start}, nil

	case '(', ')':
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil

	case '!':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
			return token{kind: tokOp, text: "!=", pos: start}, nil
		}
		return token{kind: tokOp, text: "!", pos: start}, nil

	case '=':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokOp, text: "==", pos: start}, nil
		}
		return token{}, fmt.Errorf("unexpected '=' at offset %d (did you mean '==')", start)

	case '&':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '&' {
			l.pos += 2
			return token{kind: tokOp, text: "&&", pos: start}, nil
		}
		return token{}, fmt.Errorf("unexpected '&' at offset %d (did you mean '&&')", start)

	case '|':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '|' {
			l.pos += 2
			return token{kind: tokOp, text: "||", pos: start}, nil
		}
		return token{}, fmt.Errorf("unexpected '|' at offset %d (did you mean '||')", start)
	}

	if isIdentStart(rune(c)) {
		for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil
	}

	return token{}, fmt.Errorf("unexpected character %q at offset %d", c, start)
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

// Identifier parts include '.' for context paths (matrix.os) and '-'
// for hyphenated axis names (python-version). There is no arithmetic
// in this language, so '-' is unambiguous.
func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

// Parser (recursive descent, || < && < ==/!= < unary)

type parser struct {
	lexer      lexer
	tok        token
	err        error
	usesStatus bool
}

func (p *parser) next() {
	if p.err != nil {
		return
	}
	p.tok, p.err = p.lexer.lex()
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.err == nil && p.tok.kind == tokOp && p.tok.text == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binNode{op: "||", left: left, right: right}
	}
	return left, p.err
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.err == nil && p.tok.kind == tokOp && p.tok.text == "&&" {
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = binNode{op: "&&", left: left, right: right}
	}
	return left, p.err
}

func (p *parser) parseEquality() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.err == nil && p.tok.kind == tokOp && (p.tok.text == "==" || p.tok.text == "!=") {
		op := p.tok.text
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binNode{op: op, left: left, right: right}, p.err
	}
	return left, p.err
}

func (p *parser) parseUnary() (node, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.kind == tokOp && p.tok.text == "!" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{operand: operand}, p.err
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.err != nil {
		return nil, p.err
	}

	switch {
	case p.tok.kind == tokString:
		n := litNode{s: p.tok.text}
		p.next()
		return n, p.err

	case p.tok.kind == tokIdent:
		name := p.tok.text
		pos := p.tok.pos
		p.next()
		if p.err == nil && p.tok.kind == tokOp && p.tok.text == "(" {
			p.next()
			if p.err != nil || p.tok.kind != tokOp || p.tok.text != ")" {
				return nil, fmt.Errorf("expected ')' after %q at offset %d", name, pos)
			}
			p.next()
			if !statusFuncs[name] {
				return nil, fmt.Errorf("unknown function %q at offset %d", name, pos)
			}
			p.usesStatus = true
			return callNode{name: name}, p.err
		}
		return refNode{path: name}, p.err

	case p.tok.kind == tokOp && p.tok.text == "(":
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.err != nil || p.tok.kind != tokOp || p.tok.text != ")" {
			return nil, fmt.Errorf("expected ')' at offset %d", p.tok.pos)
		}
		p.next()
		return inner, p.err

	case p.tok.kind == tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")

	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", p.tok.text, p.tok.pos)
	}
}
