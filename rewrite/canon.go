package rewrite

import (
	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/ops"
)

// canonicalize applies local algebraic simplifications:
//
//	x + 0 → x        x · 1 → x        x · 0 → zeros like x
//	x - 0 → x        x / 1 → x        −(−x) → x
//	exp(log x) → x   log(exp x) → x
//
// The neutral-element rules fire on scalar constants only, so the shape
// of the expression never changes.
type canonicalize struct{}

func (rw *canonicalize) Name() string { return "canonicalize" }

func (rw *canonicalize) Apply(fg *graph.FGraph) (bool, error) {
	changed := false
	// ordered worklist: simplifying a node can make its clients eligible
	work := linkedhashset.New()
	for _, node := range fg.Applies() {
		work.Add(node)
	}
	for !work.Empty() {
		it := work.Iterator()
		it.Next()
		node := it.Value().(*graph.Apply)
		work.Remove(node)
		repl, err := simplify(node)
		if err != nil {
			return changed, err
		}
		if repl == nil {
			continue
		}
		clients := fg.Clients(node.Output())
		if err := fg.Replace(node.Output(), repl); err != nil {
			return changed, err
		}
		changed = true
		for _, cl := range clients {
			work.Add(cl.Node)
		}
		if repl.Owner != nil {
			work.Add(repl.Owner)
		}
	}
	return changed, nil
}

// simplify returns the replacement for a node's output, or nil if no rule
// applies.
func simplify(node *graph.Apply) (*graph.Variable, error) {
	if len(node.Outputs) != 1 || graph.IsImpure(node.Op) {
		return nil, nil
	}
	out := node.Output()
	switch node.Op.Name() {
	case "add":
		a, b := node.Inputs[0], node.Inputs[1]
		if isScalarConst(b, 0) && sameShape(a, out) {
			return a, nil
		}
		if isScalarConst(a, 0) && sameShape(b, out) {
			return b, nil
		}
	case "sub":
		a, b := node.Inputs[0], node.Inputs[1]
		if isScalarConst(b, 0) && sameShape(a, out) {
			return a, nil
		}
	case "mul":
		a, b := node.Inputs[0], node.Inputs[1]
		if isScalarConst(b, 1) && sameShape(a, out) {
			return a, nil
		}
		if isScalarConst(a, 1) && sameShape(b, out) {
			return b, nil
		}
		if isScalarConst(b, 0) && sameShape(a, out) {
			return ops.ZerosLike(a)
		}
		if isScalarConst(a, 0) && sameShape(b, out) {
			return ops.ZerosLike(b)
		}
	case "div":
		a, b := node.Inputs[0], node.Inputs[1]
		if isScalarConst(b, 1) && sameShape(a, out) {
			return a, nil
		}
	case "neg":
		if inner := ownerNamed(node.Inputs[0], "neg"); inner != nil {
			return inner.Inputs[0], nil
		}
	case "exp":
		if inner := ownerNamed(node.Inputs[0], "log"); inner != nil {
			return inner.Inputs[0], nil
		}
	case "log":
		if inner := ownerNamed(node.Inputs[0], "exp"); inner != nil {
			return inner.Inputs[0], nil
		}
	}
	return nil, nil
}

func isScalarConst(v *graph.Variable, val float64) bool {
	return v.IsConstant() && v.Const.Shape().IsScalar() && v.Const.ScalarValue() == val
}

// sameShape guards rules that would replace the node output with one of
// its operands: the operand must carry the output's static shape.
func sameShape(a, out *graph.Variable) bool {
	return a.Shape.Eq(out.Shape)
}

func ownerNamed(v *graph.Variable, name string) *graph.Apply {
	if v.Owner != nil && v.Owner.Op.Name() == name {
		return v.Owner
	}
	return nil
}
