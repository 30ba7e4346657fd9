package grad

import (
	"math"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/ternlang/tern"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/ops"
	"github.com/ternlang/tern/tensor"
)

// evalGraph evaluates an expression by walking it in dependency order.
// The env map provides values for the free inputs.
func evalGraph(t *testing.T, out *graph.Variable, env map[*graph.Variable]*tensor.Dense) *tensor.Dense {
	t.Helper()
	if out.IsConstant() {
		return out.Const
	}
	order, err := graph.Toposort([]*graph.Variable{out})
	if err != nil {
		t.Fatalf("toposort failed: %v", err)
	}
	storage := make(map[*graph.Variable]*tensor.Dense)
	for v, val := range env {
		storage[v] = val
	}
	for _, node := range order {
		ins := make([]*tensor.Dense, len(node.Inputs))
		for i, in := range node.Inputs {
			if in.IsConstant() {
				ins[i] = in.Const
				continue
			}
			val, ok := storage[in]
			if !ok {
				t.Fatalf("no value for %s", in)
			}
			ins[i] = val
		}
		outs, err := node.Op.Perform(node, ins)
		if err != nil {
			t.Fatalf("%s failed: %v", node.Op.Name(), err)
		}
		for i, o := range node.Outputs {
			storage[o] = outs[i]
		}
	}
	return storage[out]
}

func scalarVal(v float64) *tensor.Dense {
	return tensor.Scalar(tern.Float64, v)
}

func TestGradProduct(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	x := graph.Scalar("x", tern.Float64)
	y := graph.Scalar("y", tern.Float64)
	z, err := ops.Mul(x, y)
	if err != nil {
		t.Fatalf("mul failed: %v", err)
	}
	grads, err := Grad(z, x, y)
	if err != nil {
		t.Fatalf("grad failed: %v", err)
	}
	env := map[*graph.Variable]*tensor.Dense{x: scalarVal(3), y: scalarVal(4)}
	if gx := evalGraph(t, grads[0], env); gx.ScalarValue() != 4 {
		t.Errorf("dz/dx should be 4, is %v", gx.ScalarValue())
	}
	if gy := evalGraph(t, grads[1], env); gy.ScalarValue() != 3 {
		t.Errorf("dz/dy should be 3, is %v", gy.ScalarValue())
	}
}

func TestGradJoinedPaths(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	// both mul inputs are the same variable, so the two gradient paths
	// must be summed
	x := graph.Scalar("x", tern.Float64)
	z, err := ops.Mul(x, x)
	if err != nil {
		t.Fatalf("mul failed: %v", err)
	}
	grads, err := Grad(z, x)
	if err != nil {
		t.Fatalf("grad failed: %v", err)
	}
	env := map[*graph.Variable]*tensor.Dense{x: scalarVal(3)}
	if gx := evalGraph(t, grads[0], env); gx.ScalarValue() != 6 {
		t.Errorf("d(x²)/dx at 3 should be 6, is %v", gx.ScalarValue())
	}
}

func TestGradSumOverVector(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	x := graph.Vector("x", tern.Float64)
	sq, err := ops.Sqr(x)
	if err != nil {
		t.Fatalf("sqr failed: %v", err)
	}
	cost, err := ops.Sum(sq)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	grads, err := Grad(cost, x)
	if err != nil {
		t.Fatalf("grad failed: %v", err)
	}
	xval := tensor.FromFloat64s(tern.Shape{3}, []float64{1, -2, 3})
	gx := evalGraph(t, grads[0], map[*graph.Variable]*tensor.Dense{x: xval})
	want := []float64{2, -4, 6}
	for i, w := range want {
		if gx.FlatAt(i) != w {
			t.Errorf("gradient at %d should be %v, is %v", i, w, gx.FlatAt(i))
		}
	}
}

func TestGradNumeric(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	// cost = sum(x · exp(x) + tanh(x))
	x := graph.Vector("x", tern.Float64)
	ex, _ := ops.Exp(x)
	prod, _ := ops.Mul(x, ex)
	th, _ := ops.Tanh(x)
	sum, _ := ops.Add(prod, th)
	cost, err := ops.Sum(sum)
	if err != nil {
		t.Fatalf("cost construction failed: %v", err)
	}
	grads, err := Grad(cost, x)
	if err != nil {
		t.Fatalf("grad failed: %v", err)
	}
	xval := tensor.FromFloat64s(tern.Shape{3}, []float64{-0.5, 0.1, 1.2})
	env := map[*graph.Variable]*tensor.Dense{x: xval}
	gx := evalGraph(t, grads[0], env)
	const eps = 1e-6
	for i := 0; i < xval.Len(); i++ {
		orig := xval.FlatAt(i)
		xval.SetFlat(i, orig+eps)
		up := evalGraph(t, cost, env).ScalarValue()
		xval.SetFlat(i, orig-eps)
		down := evalGraph(t, cost, env).ScalarValue()
		xval.SetFlat(i, orig)
		numeric := (up - down) / (2 * eps)
		if math.Abs(numeric-gx.FlatAt(i)) > 1e-5 {
			t.Errorf("gradient at %d is %v, numeric says %v", i, gx.FlatAt(i), numeric)
		}
	}
}

func TestGradDivision(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	x := graph.Scalar("x", tern.Float64)
	y := graph.Scalar("y", tern.Float64)
	q, err := ops.Div(x, y)
	if err != nil {
		t.Fatalf("div failed: %v", err)
	}
	grads, err := Grad(q, x, y)
	if err != nil {
		t.Fatalf("grad failed: %v", err)
	}
	env := map[*graph.Variable]*tensor.Dense{x: scalarVal(6), y: scalarVal(2)}
	if gx := evalGraph(t, grads[0], env); gx.ScalarValue() != 0.5 {
		t.Errorf("d(x/y)/dx should be 1/y = 0.5, is %v", gx.ScalarValue())
	}
	if gy := evalGraph(t, grads[1], env); gy.ScalarValue() != -1.5 {
		t.Errorf("d(x/y)/dy should be -x/y² = -1.5, is %v", gy.ScalarValue())
	}
}

func TestGradDisconnected(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	x := graph.Scalar("x", tern.Float64)
	y := graph.Vector("y", tern.Float64)
	grads, err := Grad(x, y)
	if err != nil {
		t.Fatalf("grad failed: %v", err)
	}
	yval := tensor.FromFloat64s(tern.Shape{2}, []float64{7, 8})
	gy := evalGraph(t, grads[0], map[*graph.Variable]*tensor.Dense{y: yval})
	if !gy.Shape().Eq(tern.Shape{2}) {
		t.Fatalf("zero gradient has shape %s", gy.Shape())
	}
	if gy.FlatAt(0) != 0 || gy.FlatAt(1) != 0 {
		t.Errorf("disconnected gradient should be zero, is %v", gy)
	}
}

func TestGradRejectsIntegerCost(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	n := graph.Scalar("n", tern.Int64)
	x := graph.Scalar("x", tern.Float64)
	if _, err := Grad(n, x); err == nil {
		t.Error("expected error for integer cost")
	}
}

func TestGradRejectsIntegerTarget(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	x := graph.Scalar("x", tern.Float64)
	n := graph.Scalar("n", tern.Int64)
	if _, err := Grad(x, n); err == nil {
		t.Error("expected error for integer target")
	}
}

func TestGradRejectsNonScalarCost(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	v := graph.Vector("v", tern.Float64)
	if _, err := Grad(v, v); err == nil {
		t.Error("expected error for non-scalar cost")
	}
}

func TestGradThroughDot(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.grad")
	defer teardown()
	//
	a := graph.Matrix("a", tern.Float64)
	b := graph.Matrix("b", tern.Float64)
	d, err := ops.Dot(a, b)
	if err != nil {
		t.Fatalf("dot failed: %v", err)
	}
	cost, err := ops.Sum(d)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	grads, err := Grad(cost, a, b)
	if err != nil {
		t.Fatalf("grad failed: %v", err)
	}
	aval := tensor.FromFloat64s(tern.Shape{2, 2}, []float64{1, 2, 3, 4})
	bval := tensor.FromFloat64s(tern.Shape{2, 2}, []float64{5, 6, 7, 8})
	env := map[*graph.Variable]*tensor.Dense{a: aval, b: bval}
	// d sum(A·B) / dA = ones · Bᵀ
	ga := evalGraph(t, grads[0], env)
	want := []float64{11, 15, 11, 15}
	for i, w := range want {
		if ga.FlatAt(i) != w {
			t.Errorf("dA at %d should be %v, is %v", i, w, ga.FlatAt(i))
		}
	}
	gb := evalGraph(t, grads[1], env)
	wantB := []float64{4, 4, 6, 6}
	for i, w := range wantB {
		if gb.FlatAt(i) != w {
			t.Errorf("dB at %d should be %v, is %v", i, w, gb.FlatAt(i))
		}
	}
}
