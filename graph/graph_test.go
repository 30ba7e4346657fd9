package graph

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/ternlang/tern"
	"github.com/ternlang/tern/tensor"
)

// fakeOp is a minimal n-ary op for graph structure tests.
type fakeOp struct {
	name string
}

func (op *fakeOp) Name() string { return op.name }

func (op *fakeOp) MakeNode(inputs ...*Variable) (*Apply, error) {
	out := &Variable{DType: inputs[0].DType, Shape: inputs[0].Shape.Clone()}
	return NewApply(op, inputs, []*Variable{out}), nil
}

func (op *fakeOp) Perform(node *Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	return []*tensor.Dense{inputs[0]}, nil
}

func apply(t *testing.T, op Op, ins ...*Variable) *Variable {
	t.Helper()
	node, err := op.MakeNode(ins...)
	if err != nil {
		t.Fatalf("MakeNode failed: %v", err)
	}
	return node.Output()
}

func TestApplyWiring(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	x := Scalar("x", tern.Float64)
	y := apply(t, &fakeOp{name: "id"}, x)
	if y.Owner == nil {
		t.Fatal("output has no owner")
	}
	if y.Owner.Inputs[0] != x {
		t.Error("apply node does not reference its input")
	}
	if y.Index != 0 {
		t.Errorf("output index should be 0, is %d", y.Index)
	}
}

func TestToposortOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	op := &fakeOp{name: "id"}
	x := Scalar("x", tern.Float64)
	a := apply(t, op, x)
	b := apply(t, op, a)
	c := apply(t, op, a, b)
	order, err := Toposort([]*Variable{c})
	if err != nil {
		t.Fatalf("toposort failed: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 nodes, have %d", len(order))
	}
	pos := make(map[*Apply]int)
	for i, node := range order {
		pos[node] = i
	}
	if pos[a.Owner] > pos[b.Owner] || pos[b.Owner] > pos[c.Owner] {
		t.Errorf("order violates dependencies: %v", order)
	}
}

func TestToposortCycle(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	op := &fakeOp{name: "id"}
	x := Scalar("x", tern.Float64)
	a := apply(t, op, x)
	b := apply(t, op, a)
	a.Owner.Inputs[0] = b // tamper: a now depends on b
	if _, err := Toposort([]*Variable{b}); err == nil {
		t.Error("expected cycle error")
	}
}

func TestInputsDiscovery(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	op := &fakeOp{name: "id"}
	x := Scalar("x", tern.Float64)
	y := Scalar("y", tern.Float64)
	k := ScalarConstant(tern.Float64, 1)
	out := apply(t, op, x, y, k)
	ins := Inputs([]*Variable{out})
	if len(ins) != 2 {
		t.Fatalf("expected 2 free inputs, have %d", len(ins))
	}
	if !(ins[0] == x && ins[1] == y) && !(ins[0] == y && ins[1] == x) {
		t.Errorf("inputs are %v, %v", ins[0], ins[1])
	}
}

func TestCloneWithReplace(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	op := &fakeOp{name: "id"}
	x := Scalar("x", tern.Float64)
	y := Scalar("y", tern.Float64)
	a := apply(t, op, x)
	b := apply(t, op, a)
	cloned, err := CloneWithReplace([]*Variable{b}, map[*Variable]*Variable{x: y})
	if err != nil {
		t.Fatalf("clone failed: %v", err)
	}
	if cloned[0] == b {
		t.Error("clone returned the original variable")
	}
	ins := Inputs(cloned)
	if len(ins) != 1 || ins[0] != y {
		t.Errorf("replacement did not reach the leaf, inputs are %v", ins)
	}
	// original untouched
	if a.Owner.Inputs[0] != x {
		t.Error("clone modified the original graph")
	}
}

func TestCloneReplaceDTypeMismatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	x := Scalar("x", tern.Float64)
	y := Scalar("y", tern.Int64)
	a := apply(t, &fakeOp{name: "id"}, x)
	if _, err := CloneWithReplace([]*Variable{a}, map[*Variable]*Variable{x: y}); err == nil {
		t.Error("expected dtype mismatch error")
	}
}

func TestFGraphReplace(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	op := &fakeOp{name: "id"}
	x := Scalar("x", tern.Float64)
	a := apply(t, op, x)
	b := apply(t, op, a)
	fg, err := NewFGraph([]*Variable{x}, []*Variable{b})
	if err != nil {
		t.Fatalf("fgraph construction failed: %v", err)
	}
	if fg.NumApplies() != 2 {
		t.Fatalf("expected 2 applies, have %d", fg.NumApplies())
	}
	// replace the intermediate with the input: b = id(x)
	if err := fg.Replace(a, x); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if fg.NumApplies() != 1 {
		t.Errorf("expected 1 apply after replace, have %d", fg.NumApplies())
	}
	if b.Owner.Inputs[0] != x {
		t.Error("client was not rewired")
	}
	if err := fg.CheckIntegrity(); err != nil {
		t.Errorf("integrity check failed: %v", err)
	}
}

func TestFGraphReplaceOutput(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	op := &fakeOp{name: "id"}
	x := Scalar("x", tern.Float64)
	a := apply(t, op, x)
	fg, err := NewFGraph([]*Variable{x}, []*Variable{a})
	if err != nil {
		t.Fatalf("fgraph construction failed: %v", err)
	}
	if err := fg.Replace(a, x); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if fg.Outputs[0] != x {
		t.Error("output position was not updated")
	}
}

func TestFGraphUndeclaredInput(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	x := Scalar("x", tern.Float64)
	a := apply(t, &fakeOp{name: "id"}, x)
	if _, err := NewFGraph(nil, []*Variable{a}); err == nil {
		t.Error("expected undeclared input error")
	}
}

func TestSprint(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "tern.graph")
	defer teardown()
	//
	op := &fakeOp{name: "id"}
	x := Scalar("x", tern.Float64)
	a := apply(t, op, x)
	s := Sprint(a)
	if s == "" {
		t.Error("empty graph print")
	}
	t.Logf("graph:\n%s", s)
}
