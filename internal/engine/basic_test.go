package engine

import (
	"testing"

	"github.com/cran/rserve-go/internal/qap1"
	"github.com/stretchr/testify/require"
)

func evalOne(t *testing.T, eng *Basic, env *Env, src string) *qap1.Node {
	t.Helper()
	status, exprs, err := eng.Parse(src, 0)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	require.Len(t, exprs, 1)
	v, code := eng.TryEval(exprs[0], env)
	require.Zero(t, code)
	return v
}

func TestScenarioS1OnePlusOne(t *testing.T) {
	eng := NewBasic()
	env := NewEnv()
	v := evalOne(t, eng, env, "1+1")
	require.Equal(t, []float64{2.0}, v.Doubles)
}

func TestScenarioS2IntTimesDoubleCoercion(t *testing.T) {
	eng := NewBasic()
	env := NewEnv()
	sym := eng.Install("x")
	eng.Bind(sym, qap1.NewInts(42), env)

	v := evalOne(t, eng, env, "x*2")
	require.Equal(t, []float64{84.0}, v.Doubles)
}

func TestUnboundSymbolErrors(t *testing.T) {
	eng := NewBasic()
	env := NewEnv()
	status, exprs, err := eng.Parse("y+1", 0)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	_, code := eng.TryEval(exprs[0], env)
	require.Equal(t, errUnboundSymbol, code)
}

func TestDivisionByZero(t *testing.T) {
	eng := NewBasic()
	env := NewEnv()
	status, exprs, err := eng.Parse("1/0", 0)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	_, code := eng.TryEval(exprs[0], env)
	require.Equal(t, errDivByZero, code)
}

func TestParenthesesAndPrecedence(t *testing.T) {
	eng := NewBasic()
	env := NewEnv()
	v := evalOne(t, eng, env, "(1+2)*3")
	require.Equal(t, []float64{9.0}, v.Doubles)
}

func TestUnaryMinus(t *testing.T) {
	eng := NewBasic()
	env := NewEnv()
	v := evalOne(t, eng, env, "-5+2")
	require.Equal(t, []float64{-3.0}, v.Doubles)
}

func TestMultiExpressionSequence(t *testing.T) {
	eng := NewBasic()
	env := NewEnv()
	status, exprs, err := eng.Parse("1+1; 2+2\n3+3", 0)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	require.Len(t, exprs, 3)

	var last *qap1.Node
	for _, e := range exprs {
		v, code := eng.TryEval(e, env)
		require.Zero(t, code)
		last = v
	}
	require.Equal(t, []float64{6.0}, last.Doubles)
}

func TestParseEmptyInputIsNull(t *testing.T) {
	eng := NewBasic()
	status, exprs, err := eng.Parse("   \n  ", 0)
	require.NoError(t, err)
	require.Equal(t, StatusNull, status)
	require.Empty(t, exprs)
}

func TestParseSyntaxErrorReportsStatusError(t *testing.T) {
	eng := NewBasic()
	status, _, err := eng.Parse("1+*2", 0)
	require.Error(t, err)
	require.Equal(t, StatusError, status)
}

func TestMaxSegmentsTruncates(t *testing.T) {
	eng := NewBasic()
	status, exprs, err := eng.Parse("1+1; 2+2; 3+3", 2)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	require.Len(t, exprs, 2)
}

func TestIsolationDistinctEnvironmentsDoNotShareBindings(t *testing.T) {
	eng := NewBasic()
	envA := NewEnv()
	envB := NewEnv()
	sym := eng.Install("x")
	eng.Bind(sym, qap1.NewInts(1), envA)

	_, ok := envB.Lookup(sym)
	require.False(t, ok)
}
