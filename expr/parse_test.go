package expr

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/ternlang/tern"
	"github.com/ternlang/tern/compile"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
)

func evalExpr(t *testing.T, input string, scope *Scope) float64 {
	t.Helper()
	v, err := Parse(input, scope)
	if err != nil {
		t.Fatalf("parse of %q failed: %v", input, err)
	}
	f, err := compile.NewFunction(nil, []*graph.Variable{v})
	if err != nil {
		t.Fatalf("compilation of %q failed: %v", input, err)
	}
	out, err := f.Call1()
	if err != nil {
		t.Fatalf("evaluation of %q failed: %v", input, err)
	}
	return out.ScalarValue()
}

func TestParsePrecedence(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.expr")
	defer teardown()
	//
	scope := NewScope("test", nil)
	if got := evalExpr(t, "1 + 2 * 3", scope); got != 7 {
		t.Errorf("1+2*3 should be 7, is %v", got)
	}
	if got := evalExpr(t, "(1 + 2) * 3", scope); got != 9 {
		t.Errorf("(1+2)*3 should be 9, is %v", got)
	}
	if got := evalExpr(t, "8 / 2 / 2", scope); got != 2 {
		t.Errorf("division should associate left, 8/2/2 is %v", got)
	}
	if got := evalExpr(t, "1 - 2 - 3", scope); got != -4 {
		t.Errorf("subtraction should associate left, 1-2-3 is %v", got)
	}
}

func TestParseUnaryMinus(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.expr")
	defer teardown()
	//
	scope := NewScope("test", nil)
	if got := evalExpr(t, "-3 + 5", scope); got != 2 {
		t.Errorf("-3+5 should be 2, is %v", got)
	}
	if got := evalExpr(t, "2 * -3", scope); got != -6 {
		t.Errorf("2*-3 should be -6, is %v", got)
	}
}

func TestParseFunctionCall(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.expr")
	defer teardown()
	//
	scope := NewScope("test", nil)
	if got := evalExpr(t, "sqrt(9)", scope); got != 3 {
		t.Errorf("sqrt(9) should be 3, is %v", got)
	}
	if got := evalExpr(t, "sqr(1 + 2)", scope); got != 9 {
		t.Errorf("sqr(1+2) should be 9, is %v", got)
	}
	got := evalExpr(t, "log(exp(2))", scope)
	if diff := got - 2; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("log(exp(2)) should be 2, is %v", got)
	}
}

func TestParseVariables(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.expr")
	defer teardown()
	//
	scope := NewScope("test", nil)
	w := compile.NewShared("w", tensor.Scalar(tern.Float64, 10))
	scope.Define("w", w.Variable)
	if got := evalExpr(t, "w * 2 + 1", scope); got != 21 {
		t.Errorf("w*2+1 with w=10 should be 21, is %v", got)
	}
}

func TestParseVectorBuiltins(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.expr")
	defer teardown()
	//
	scope := NewScope("test", nil)
	v := compile.NewShared("v", tensor.FromFloat64s(tern.Shape{4}, []float64{1, 2, 3, 4}))
	scope.Define("v", v.Variable)
	if got := evalExpr(t, "sum(v)", scope); got != 10 {
		t.Errorf("sum(v) should be 10, is %v", got)
	}
	if got := evalExpr(t, "mean(v * v)", scope); got != 7.5 {
		t.Errorf("mean(v·v) should be 7.5, is %v", got)
	}
}

func TestParseDot(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.expr")
	defer teardown()
	//
	scope := NewScope("test", nil)
	a := compile.NewShared("a", tensor.FromFloat64s(tern.Shape{2, 2}, []float64{1, 2, 3, 4}))
	b := compile.NewShared("b", tensor.FromFloat64s(tern.Shape{2, 2}, []float64{5, 6, 7, 8}))
	scope.Define("a", a.Variable)
	scope.Define("b", b.Variable)
	if got := evalExpr(t, "sum(dot(a, b))", scope); got != 134 {
		t.Errorf("sum(a·b) should be 134, is %v", got)
	}
}

func TestParseErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.expr")
	defer teardown()
	//
	scope := NewScope("test", nil)
	cases := []string{
		"1 +",
		"(1 + 2",
		"nosuchvar",
		"nosuchfn(1)",
		"1 2",
		"sqrt(1, 2)",
		"1 @ 2",
	}
	for _, input := range cases {
		if _, err := Parse(input, scope); err == nil {
			t.Errorf("%q should not parse", input)
		}
	}
}

func TestScopeShadowing(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.expr")
	defer teardown()
	//
	parent := NewScope("parent", nil)
	child := NewScope("child", parent)
	x := graph.Scalar("x", tern.Float64)
	y := graph.Scalar("y", tern.Float64)
	parent.Define("a", x)
	if v, ok := child.Resolve("a"); !ok || v != x {
		t.Error("child scope should see parent bindings")
	}
	child.Define("a", y)
	if v, _ := child.Resolve("a"); v != y {
		t.Error("child binding should shadow the parent")
	}
	if v, _ := parent.Resolve("a"); v != x {
		t.Error("parent binding must survive shadowing")
	}
}
