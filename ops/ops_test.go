package ops

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/ternlang/tern"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
)

func perform(t *testing.T, v *graph.Variable, ins ...*tensor.Dense) *tensor.Dense {
	t.Helper()
	outs, err := v.Owner.Op.Perform(v.Owner, ins)
	if err != nil {
		t.Fatalf("%s failed: %v", v.Owner.Op.Name(), err)
	}
	return outs[0]
}

func TestAddShapeInference(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Matrix("a", tern.Float64)
	a.Shape = tern.Shape{2, 3}
	b := graph.Matrix("b", tern.Float64)
	b.Shape = tern.Shape{2, 3}
	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !sum.Shape.Eq(tern.Shape{2, 3}) {
		t.Errorf("expected shape (2,3), have %s", sum.Shape)
	}
}

func TestScalarBroadcastShape(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Matrix("a", tern.Float64)
	a.Shape = tern.Shape{2, 3}
	s := graph.Scalar("s", tern.Float64)
	prod, err := Mul(a, s)
	if err != nil {
		t.Fatalf("mul failed: %v", err)
	}
	if !prod.Shape.Eq(tern.Shape{2, 3}) {
		t.Errorf("expected shape (2,3), have %s", prod.Shape)
	}
}

func TestAddShapeMismatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Vector("a", tern.Float64)
	a.Shape = tern.Shape{3}
	b := graph.Vector("b", tern.Float64)
	b.Shape = tern.Shape{4}
	if _, err := Add(a, b); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestAddDTypeMismatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Scalar("a", tern.Float64)
	b := graph.Scalar("b", tern.Float32)
	if _, err := Add(a, b); err == nil {
		t.Error("expected dtype mismatch error")
	}
}

func TestFloatOnlyOps(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	n := graph.Scalar("n", tern.Int64)
	if _, err := Exp(n); err == nil {
		t.Error("exp should reject integers")
	}
	if _, err := Log(n); err == nil {
		t.Error("log should reject integers")
	}
	if _, err := Mean(n); err == nil {
		t.Error("mean should reject integers")
	}
}

func TestDotShapeInference(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Matrix("a", tern.Float64)
	a.Shape = tern.Shape{2, 3}
	b := graph.Matrix("b", tern.Float64)
	b.Shape = tern.Shape{3, 4}
	d, err := Dot(a, b)
	if err != nil {
		t.Fatalf("dot failed: %v", err)
	}
	if !d.Shape.Eq(tern.Shape{2, 4}) {
		t.Errorf("expected shape (2,4), have %s", d.Shape)
	}
	b.Shape = tern.Shape{4, 2}
	if _, err := Dot(a, b); err == nil {
		t.Error("expected inner dimension mismatch error")
	}
}

func TestSumShape(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Matrix("a", tern.Float64)
	s, err := Sum(a)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if !s.Shape.IsScalar() {
		t.Errorf("sum should be scalar, has shape %s", s.Shape)
	}
}

func TestFillPerform(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Vector("a", tern.Float64)
	ones, err := OnesLike(a)
	if err != nil {
		t.Fatalf("ones_like failed: %v", err)
	}
	val := tensor.FromFloat64s(tern.Shape{3}, []float64{5, 6, 7})
	one := tensor.Scalar(tern.Float64, 1)
	out := perform(t, ones, val, one)
	if !out.Shape().Eq(tern.Shape{3}) {
		t.Fatalf("fill output shape is %s", out.Shape())
	}
	for i := 0; i < 3; i++ {
		if out.FlatAt(i) != 1 {
			t.Errorf("fill produced %v at %d", out.FlatAt(i), i)
		}
	}
}

func TestReshapePerform(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Matrix("a", tern.Float64)
	a.Shape = tern.Shape{2, 3}
	r, err := Reshape(a, tern.Shape{3, 2})
	if err != nil {
		t.Fatalf("reshape failed: %v", err)
	}
	if !r.Shape.Eq(tern.Shape{3, 2}) {
		t.Errorf("expected shape (3,2), have %s", r.Shape)
	}
	val := tensor.FromFloat64s(tern.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	out := perform(t, r, val)
	if out.At(2, 1) != 6 {
		t.Errorf("reshape scrambled the data: %v", out)
	}
}

func TestTransposeGradIsTranspose(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Matrix("a", tern.Float64)
	a.Shape = tern.Shape{2, 3}
	tr, err := Transpose(a)
	if err != nil {
		t.Fatalf("transpose failed: %v", err)
	}
	g := graph.Matrix("g", tern.Float64)
	g.Shape = tern.Shape{3, 2}
	grads, err := tr.Owner.Op.(graph.Differentiable).Grad(tr.Owner, g)
	if err != nil {
		t.Fatalf("grad failed: %v", err)
	}
	if grads[0].Owner.Op.Name() != "transpose" {
		t.Errorf("gradient of transpose should be a transpose, is %s", grads[0].Owner.Op.Name())
	}
	if !grads[0].Shape.Eq(tern.Shape{2, 3}) {
		t.Errorf("gradient shape is %s", grads[0].Shape)
	}
}

// The mul, div and neg gradient rules are wired up in an init function
// because they are written in terms of their own constructors. This
// checks the wiring happened and the rules build the expected subgraphs.
func TestSelfReferentialGradRules(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Scalar("a", tern.Float64)
	b := graph.Scalar("b", tern.Float64)
	g := graph.Scalar("g", tern.Float64)
	prod, err := Mul(a, b)
	if err != nil {
		t.Fatalf("mul failed: %v", err)
	}
	grads, err := prod.Owner.Op.(graph.Differentiable).Grad(prod.Owner, g)
	if err != nil {
		t.Fatalf("mul grad failed: %v", err)
	}
	if grads[0].Owner.Op.Name() != "mul" || grads[1].Owner.Op.Name() != "mul" {
		t.Errorf("gradient of a product should be products, is %s and %s",
			grads[0].Owner.Op.Name(), grads[1].Owner.Op.Name())
	}
	quot, err := Div(a, b)
	if err != nil {
		t.Fatalf("div failed: %v", err)
	}
	grads, err = quot.Owner.Op.(graph.Differentiable).Grad(quot.Owner, g)
	if err != nil {
		t.Fatalf("div grad failed: %v", err)
	}
	if grads[0].Owner.Op.Name() != "div" || grads[1].Owner.Op.Name() != "neg" {
		t.Errorf("quotient gradients should be div and neg, are %s and %s",
			grads[0].Owner.Op.Name(), grads[1].Owner.Op.Name())
	}
	na, err := Neg(a)
	if err != nil {
		t.Fatalf("neg failed: %v", err)
	}
	grads, err = na.Owner.Op.(graph.Differentiable).Grad(na.Owner, g)
	if err != nil {
		t.Fatalf("neg grad failed: %v", err)
	}
	if grads[0].Owner.Op.Name() != "neg" {
		t.Errorf("gradient of neg should be a neg, is %s", grads[0].Owner.Op.Name())
	}
}

func TestSizeHasNoGradient(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.ops")
	defer teardown()
	//
	a := graph.Vector("a", tern.Float64)
	sz, err := Size(a)
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if _, ok := sz.Owner.Op.(graph.Differentiable); ok {
		t.Error("size must not be differentiable")
	}
}
