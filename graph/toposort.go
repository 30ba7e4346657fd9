package graph

import (
	"fmt"

	"github.com/emirpasic/gods/stacks/arraystack"
)

// Toposort returns the apply nodes reachable from outputs in dependency
// order: every node appears after the owners of all its inputs. An error is
// reported if the graph contains a cycle (which only happens when apply
// nodes were tampered with after construction).
func Toposort(outputs []*Variable) ([]*Apply, error) {
	const (
		white = 0 // unseen
		grey  = 1 // on the stack
		black = 2 // finished
	)
	state := make(map[*Apply]int)
	var order []*Apply
	stack := arraystack.New()
	for _, out := range outputs {
		if out.Owner != nil {
			stack.Push(out.Owner)
		}
	}
	for !stack.Empty() {
		top, _ := stack.Peek()
		node := top.(*Apply)
		switch state[node] {
		case black:
			stack.Pop()
		case grey:
			stack.Pop()
			state[node] = black
			order = append(order, node)
		default:
			state[node] = grey
			for _, in := range node.Inputs {
				if in.Owner == nil {
					continue
				}
				switch state[in.Owner] {
				case white:
					stack.Push(in.Owner)
				case grey:
					// a grey input owner is still being expanded,
					// i.e. it sits on the current DFS path
					return nil, fmt.Errorf("graph: cycle through %s", in.Owner)
				}
			}
		}
	}
	return order, nil
}

// Ancestors returns all variables reachable from outputs, outputs included,
// in no particular order.
func Ancestors(outputs []*Variable) []*Variable {
	seen := make(map[*Variable]bool)
	var result []*Variable
	var walk func(v *Variable)
	walk = func(v *Variable) {
		if seen[v] {
			return
		}
		seen[v] = true
		result = append(result, v)
		if v.Owner != nil {
			for _, in := range v.Owner.Inputs {
				walk(in)
			}
		}
	}
	for _, out := range outputs {
		walk(out)
	}
	return result
}

// Inputs returns the free input variables (not constants) the outputs
// depend on, in discovery order.
func Inputs(outputs []*Variable) []*Variable {
	var ins []*Variable
	for _, v := range Ancestors(outputs) {
		if v.IsInput() {
			ins = append(ins, v)
		}
	}
	return ins
}

// DependsOn reports whether any of the outputs transitively depends on v.
func DependsOn(outputs []*Variable, v *Variable) bool {
	for _, a := range Ancestors(outputs) {
		if a == v {
			return true
		}
	}
	return false
}

// CloneWithReplace deep-copies the apply nodes reachable from outputs,
// substituting variables per repl. Free inputs and constants are shared,
// not copied, unless they appear in repl. The returned slice parallels
// outputs.
func CloneWithReplace(outputs []*Variable, repl map[*Variable]*Variable) ([]*Variable, error) {
	memo := make(map[*Variable]*Variable)
	for old, sub := range repl {
		if old.DType != sub.DType {
			return nil, fmt.Errorf("graph: replacement dtype mismatch for %s: %s vs %s",
				old, old.DType, sub.DType)
		}
		memo[old] = sub
	}
	var clone func(v *Variable) *Variable
	clone = func(v *Variable) *Variable {
		if c, ok := memo[v]; ok {
			return c
		}
		if v.Owner == nil { // input or constant: share
			memo[v] = v
			return v
		}
		node := v.Owner
		ins := make([]*Variable, len(node.Inputs))
		for i, in := range node.Inputs {
			ins[i] = clone(in)
		}
		outs := make([]*Variable, len(node.Outputs))
		for i, out := range node.Outputs {
			outs[i] = &Variable{
				Name:  out.Name,
				DType: out.DType,
				Shape: out.Shape.Clone(),
				UData: out.UData,
			}
		}
		NewApply(node.Op, ins, outs)
		for i, out := range node.Outputs {
			memo[out] = outs[i]
		}
		return memo[v]
	}
	cloned := make([]*Variable, len(outputs))
	for i, out := range outputs {
		cloned[i] = clone(out)
	}
	return cloned, nil
}
