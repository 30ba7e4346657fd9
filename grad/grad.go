package grad

import (
	"fmt"

	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/ops"
)

// Grad differentiates a scalar cost with respect to a list of target
// variables and returns one gradient expression per target, in order.
// Targets the cost does not depend on receive a zero gradient of their
// own shape. The cost must be float-typed and declared scalar.
func Grad(cost *graph.Variable, wrt ...*graph.Variable) ([]*graph.Variable, error) {
	if !cost.DType.IsFloat() {
		return nil, fmt.Errorf("grad: cost has dtype %s, gradients need a float cost", cost.DType)
	}
	if !cost.Shape.IsScalar() {
		return nil, fmt.Errorf("grad: cost must be scalar, has shape %s", cost.Shape)
	}
	for _, w := range wrt {
		if !w.DType.IsFloat() {
			return nil, fmt.Errorf("grad: cannot differentiate with respect to %s variable %s",
				w.DType, w.Name)
		}
	}
	order, err := graph.Toposort([]*graph.Variable{cost})
	if err != nil {
		return nil, err
	}
	connected := connectedSet(order, wrt)
	seed, err := ops.OnesLike(cost)
	if err != nil {
		return nil, err
	}
	grads := map[*graph.Variable]*graph.Variable{cost: seed}
	accumulate := func(v, g *graph.Variable) error {
		prev, ok := grads[v]
		if !ok {
			grads[v] = g
			return nil
		}
		sum, err := ops.Add(prev, g)
		if err != nil {
			return fmt.Errorf("grad: joining gradient paths at %s: %w", v.Name, err)
		}
		grads[v] = sum
		return nil
	}
	// walk applies from the cost back to the leaves
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if len(node.Outputs) != 1 {
			if nodeHasGrad(node, grads) {
				return nil, fmt.Errorf("grad: %s has %d outputs, multi-output gradients are not supported",
					node.Op.Name(), len(node.Outputs))
			}
			continue
		}
		g, ok := grads[node.Output()]
		if !ok {
			continue // cost does not depend on this node
		}
		if !anyConnected(node.Inputs, connected) {
			continue // no target below this node
		}
		diff, ok := node.Op.(graph.Differentiable)
		if !ok {
			return nil, fmt.Errorf("grad: %s is not differentiable", node.Op.Name())
		}
		ingrads, err := diff.Grad(node, g)
		if err != nil {
			return nil, err
		}
		if len(ingrads) != len(node.Inputs) {
			return nil, fmt.Errorf("grad: %s returned %d gradients for %d inputs",
				node.Op.Name(), len(ingrads), len(node.Inputs))
		}
		for j, ig := range ingrads {
			if ig == nil || !connected[node.Inputs[j]] {
				continue
			}
			if err := accumulate(node.Inputs[j], ig); err != nil {
				return nil, err
			}
		}
	}
	result := make([]*graph.Variable, len(wrt))
	for i, w := range wrt {
		if g, ok := grads[w]; ok {
			result[i] = g
			continue
		}
		tracer().Debugf("cost is disconnected from %s, gradient is zero", w.Name)
		zero, err := ops.ZerosLike(w)
		if err != nil {
			return nil, err
		}
		result[i] = zero
	}
	return result, nil
}

// connectedSet marks every variable through which a target can influence
// the cost.
func connectedSet(order []*graph.Apply, wrt []*graph.Variable) map[*graph.Variable]bool {
	connected := make(map[*graph.Variable]bool)
	for _, w := range wrt {
		connected[w] = true
	}
	for _, node := range order {
		if anyConnected(node.Inputs, connected) {
			for _, out := range node.Outputs {
				connected[out] = true
			}
		}
	}
	return connected
}

func anyConnected(vars []*graph.Variable, connected map[*graph.Variable]bool) bool {
	for _, v := range vars {
		if connected[v] {
			return true
		}
	}
	return false
}

func nodeHasGrad(node *graph.Apply, grads map[*graph.Variable]*graph.Variable) bool {
	for _, out := range node.Outputs {
		if _, ok := grads[out]; ok {
			return true
		}
	}
	return false
}
