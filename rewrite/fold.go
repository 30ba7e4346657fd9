package rewrite

import (
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
)

// constantFold evaluates apply nodes whose inputs are all constants and
// replaces their outputs with constant variables. Impure operations stay
// untouched.
type constantFold struct{}

func (rw *constantFold) Name() string { return "constant_fold" }

func (rw *constantFold) Apply(fg *graph.FGraph) (bool, error) {
	changed := false
	for {
		node := findFoldable(fg)
		if node == nil {
			return changed, nil
		}
		ins := make([]*tensor.Dense, len(node.Inputs))
		for i, in := range node.Inputs {
			ins[i] = in.Const
		}
		outs, err := node.Op.Perform(node, ins)
		if err != nil {
			return changed, err
		}
		tracer().Debugf("folding %v", node)
		for i, out := range node.Outputs {
			if err := fg.Replace(out, graph.NewConstant(outs[i])); err != nil {
				return changed, err
			}
		}
		changed = true
	}
}

func findFoldable(fg *graph.FGraph) *graph.Apply {
	for _, node := range fg.Applies() {
		if graph.IsImpure(node.Op) {
			continue
		}
		all := true
		for _, in := range node.Inputs {
			if !in.IsConstant() {
				all = false
				break
			}
		}
		if all {
			return node
		}
	}
	return nil
}
