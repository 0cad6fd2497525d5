// Package engine defines the abstract evaluation-engine collaborator
// interface of spec §6.5 (parse a string, try-evaluate, walk a recursive
// typed value graph) and a deterministic reference implementation,
// Basic, standing in for the out-of-scope real engine (spec §1). Basic
// is a minimal arithmetic evaluator over numbers and bound identifiers
// (it has no string literals), just enough to make
// the concrete scenarios of spec §8 mechanically checkable — it is not a
// claim of compatibility with any real statistical engine.
package engine

import "github.com/cran/rserve-go/internal/qap1"

// Status is a parse outcome (spec §6.5).
type Status int

const (
	StatusNull Status = iota
	StatusOK
	StatusIncomplete
	StatusError
	StatusEOF
)

// Symbol is an interned identifier produced by Install.
type Symbol string

// Env is one connection's global evaluation environment. Per the
// isolation decision recorded in DESIGN.md, every session owns its own
// Env; no Engine implementation may hold evaluation state outside the Env
// passed to it.
type Env struct {
	bindings map[Symbol]*qap1.Node
}

// NewEnv returns a fresh, empty environment.
func NewEnv() *Env {
	return &Env{bindings: make(map[Symbol]*qap1.Node)}
}

// Lookup returns the value bound to sym, if any.
func (e *Env) Lookup(sym Symbol) (*qap1.Node, bool) {
	v, ok := e.bindings[sym]
	return v, ok
}

// Engine is the out-of-scope evaluation engine's abstract interface
// (spec §6.5).
type Engine interface {
	// Parse parses src into an ordered sequence of expressions. Per
	// spec §4.5's multi-expression evaluation rule, callers that get
	// StatusIncomplete or StatusEOF should retry with a smaller
	// maxSegments.
	Parse(src string, maxSegments int) (Status, []Expr, error)
	// TryEval evaluates expr against env. errCode is 0 on success;
	// otherwise the wire reports -errCode (spec §6.5, §7).
	TryEval(expr Expr, env *Env) (value *qap1.Node, errCode int)
	// Install interns name as a Symbol.
	Install(name string) Symbol
	// Bind assigns value to sym in env.
	Bind(sym Symbol, value *qap1.Node, env *Env)
}

// Expr is one parsed expression, opaque to callers outside this package.
type Expr interface {
	isExpr()
}
