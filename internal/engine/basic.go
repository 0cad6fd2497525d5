package engine

import (
	"strconv"
	"strings"

	"github.com/cran/rserve-go/internal/qap1"
)

// Basic is the reference Engine: a small recursive-descent evaluator over
// a numeric/identifier expression language with +, -, *, /, unary minus,
// parentheses, and top-level ';'/newline-separated expression sequences.
// It exists solely to exercise the session state machine end-to-end
// without vendoring a real statistical runtime.
type Basic struct{}

// NewBasic returns a stateless Basic engine. Multiple connections share
// one Basic value safely since all mutable state lives in the per-call
// *Env.
func NewBasic() *Basic { return &Basic{} }

// errCode values returned by TryEval, propagated on the wire as -errCode.
const (
	errUnboundSymbol = 1
	errBadOperand    = 2
	errDivByZero     = 3
)

// basicExpr is the only Expr implementation Basic produces.
type basicExpr struct {
	node exprNode
}

func (basicExpr) isExpr() {}

// exprNode is the parsed AST.
type exprNode interface {
	eval(env *Env) (*qap1.Node, int)
}

type numberLit struct{ v float64 }

func (n numberLit) eval(*Env) (*qap1.Node, int) {
	return qap1.NewDoubles(n.v), 0
}

type identRef struct{ name Symbol }

func (n identRef) eval(env *Env) (*qap1.Node, int) {
	v, ok := env.Lookup(n.name)
	if !ok {
		return nil, errUnboundSymbol
	}
	return v, 0
}

type binOp struct {
	op   byte
	l, r exprNode
}

func (n binOp) eval(env *Env) (*qap1.Node, int) {
	lv, code := n.l.eval(env)
	if code != 0 {
		return nil, code
	}
	rv, code := n.r.eval(env)
	if code != 0 {
		return nil, code
	}
	lf, ok := asFloat(lv)
	if !ok {
		return nil, errBadOperand
	}
	rf, ok := asFloat(rv)
	if !ok {
		return nil, errBadOperand
	}
	switch n.op {
	case '+':
		return qap1.NewDoubles(lf + rf), 0
	case '-':
		return qap1.NewDoubles(lf - rf), 0
	case '*':
		return qap1.NewDoubles(lf * rf), 0
	case '/':
		if rf == 0 {
			return nil, errDivByZero
		}
		return qap1.NewDoubles(lf / rf), 0
	default:
		return nil, errBadOperand
	}
}

type negOp struct{ x exprNode }

func (n negOp) eval(env *Env) (*qap1.Node, int) {
	v, code := n.x.eval(env)
	if code != 0 {
		return nil, code
	}
	f, ok := asFloat(v)
	if !ok {
		return nil, errBadOperand
	}
	return qap1.NewDoubles(-f), 0
}

// asFloat coerces a scalar int or double value node to float64 (spec §8
// S2: "engine coerces int*double per its rules").
func asFloat(n *qap1.Node) (float64, bool) {
	switch {
	case len(n.Doubles) > 0:
		return n.Doubles[0], true
	case len(n.Ints) > 0:
		return float64(n.Ints[0]), true
	default:
		return 0, false
	}
}

// Install interns name as a Symbol. Basic's symbols are plain strings, so
// this is just a type conversion.
func (*Basic) Install(name string) Symbol { return Symbol(name) }

// Bind assigns value to sym in env.
func (*Basic) Bind(sym Symbol, value *qap1.Node, env *Env) {
	env.bindings[sym] = value
}

// TryEval evaluates expr (which must have come from this Basic's Parse)
// against env.
func (*Basic) TryEval(expr Expr, env *Env) (*qap1.Node, int) {
	be, ok := expr.(basicExpr)
	if !ok {
		return nil, errBadOperand
	}
	return be.node.eval(env)
}

// Parse splits src on top-level ';' and newline separators into at most
// maxSegments segments (0 or negative means unlimited) and parses each as
// one arithmetic expression. Per spec §4.5, a caller seeing
// StatusIncomplete or StatusEOF should retry with a smaller maxSegments;
// Basic's grammar has no construct that spans a segment boundary, so it
// only ever returns StatusOK, StatusNull (empty input), or StatusError.
func (*Basic) Parse(src string, maxSegments int) (Status, []Expr, error) {
	segments := splitSegments(src)
	if maxSegments > 0 && len(segments) > maxSegments {
		segments = segments[:maxSegments]
	}
	if len(segments) == 0 {
		return StatusNull, nil, nil
	}
	exprs := make([]Expr, 0, len(segments))
	for _, seg := range segments {
		p := &parser{toks: tokenize(seg)}
		node, err := p.parseExpr()
		if err != nil || !p.atEnd() {
			return StatusError, nil, errSyntax
		}
		exprs = append(exprs, basicExpr{node: node})
	}
	return StatusOK, exprs, nil
}

func splitSegments(src string) []string {
	var segments []string
	depth := 0
	start := 0
	for i, r := range src {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ';', '\n':
			if depth == 0 {
				seg := strings.TrimSpace(src[start:i])
				if seg != "" {
					segments = append(segments, seg)
				}
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(src[start:]); tail != "" {
		segments = append(segments, tail)
	}
	return segments
}

// token kinds for the arithmetic expression tokenizer.
type token struct {
	kind byte // 'n' number, 'i' ident, operator byte, '(' ')'
	text string
}

func tokenize(src string) []token {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')' || c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{kind: c, text: string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: 'n', text: src[i:j]})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: 'i', text: src[i:j]})
			i = j
		default:
			i++ // skip unrecognized characters rather than fail the tokenizer
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() (token, bool) {
	if p.atEnd() {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// parseExpr : term (('+'|'-') term)*
func (p *parser) parseExpr() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || (t.kind != '+' && t.kind != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binOp{op: t.kind, l: left, r: right}
	}
}

// parseTerm : factor (('*'|'/') factor)*
func (p *parser) parseTerm() (exprNode, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || (t.kind != '*' && t.kind != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binOp{op: t.kind, l: left, r: right}
	}
}

// parseFactor : '-' factor | '(' expr ')' | number | ident
func (p *parser) parseFactor() (exprNode, error) {
	t, ok := p.peek()
	if !ok {
		return nil, errSyntax
	}
	switch t.kind {
	case '-':
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return negOp{x: inner}, nil
	case '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != ')' {
			return nil, errSyntax
		}
		p.pos++
		return inner, nil
	case 'n':
		p.pos++
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, errSyntax
		}
		return numberLit{v: v}, nil
	case 'i':
		p.pos++
		return identRef{name: Symbol(t.text)}, nil
	default:
		return nil, errSyntax
	}
}
