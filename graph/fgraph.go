package graph

import (
	"fmt"
)

// Client is a consumer of a variable: an apply node together with the input
// position the variable occupies.
type Client struct {
	Node *Apply
	Pos  int
}

// FGraph is a function graph: a set of output variables together with
// bookkeeping that makes the graph rewritable. For every variable it tracks
// the clients consuming it, so a rewriter can substitute one variable for
// another and have all consumers rewired consistently.
type FGraph struct {
	Inputs  []*Variable
	Outputs []*Variable
	nodes   map[*Apply]bool
	clients map[*Variable][]Client
}

// NewFGraph builds a function graph over the given inputs and outputs. All
// free variables reachable from outputs must be listed in inputs.
func NewFGraph(inputs, outputs []*Variable) (*FGraph, error) {
	fg := &FGraph{
		Inputs:  inputs,
		Outputs: outputs,
		nodes:   make(map[*Apply]bool),
		clients: make(map[*Variable][]Client),
	}
	declared := make(map[*Variable]bool)
	for _, in := range inputs {
		declared[in] = true
	}
	for _, v := range Ancestors(outputs) {
		if v.IsInput() && !declared[v] {
			return nil, fmt.Errorf("graph: undeclared input %s", v)
		}
	}
	order, err := Toposort(outputs)
	if err != nil {
		return nil, err
	}
	for _, node := range order {
		fg.importNode(node)
	}
	return fg, nil
}

func (fg *FGraph) importNode(node *Apply) {
	if fg.nodes[node] {
		return
	}
	fg.nodes[node] = true
	for pos, in := range node.Inputs {
		fg.clients[in] = append(fg.clients[in], Client{Node: node, Pos: pos})
	}
}

// Applies returns the graph's apply nodes in dependency order.
func (fg *FGraph) Applies() []*Apply {
	order, err := Toposort(fg.Outputs)
	if err != nil {
		// FGraph maintains acyclicity as an invariant
		panic(err)
	}
	return order
}

// NumApplies returns the number of apply nodes in the graph.
func (fg *FGraph) NumApplies() int {
	return len(fg.nodes)
}

// Clients returns the consumers of v inside the graph.
func (fg *FGraph) Clients(v *Variable) []Client {
	return fg.clients[v]
}

// IsOutput reports whether v is one of the graph outputs.
func (fg *FGraph) IsOutput(v *Variable) bool {
	for _, out := range fg.Outputs {
		if out == v {
			return true
		}
	}
	return false
}

// Replace substitutes new for old everywhere in the graph: all clients of
// old are rewired to new, output positions are updated, the subgraph below
// new is imported, and nodes that became unreachable are pruned. The
// replacement must preserve dtype; shapes must unify.
func (fg *FGraph) Replace(old, new *Variable) error {
	if old == new {
		return nil
	}
	if old.DType != new.DType {
		return fmt.Errorf("graph: replace dtype mismatch: %s vs %s", old.DType, new.DType)
	}
	if _, err := old.Shape.Unify(new.Shape); err != nil {
		return fmt.Errorf("graph: replace %s: %v", old, err)
	}
	tracer().Debugf("replace %v -> %v", old, new)
	// import the new subgraph first
	order, err := Toposort([]*Variable{new})
	if err != nil {
		return err
	}
	for _, node := range order {
		fg.importNode(node)
	}
	// rewire clients
	for _, cl := range fg.clients[old] {
		cl.Node.Inputs[cl.Pos] = new
		fg.clients[new] = append(fg.clients[new], cl)
	}
	delete(fg.clients, old)
	for i, out := range fg.Outputs {
		if out == old {
			fg.Outputs[i] = new
		}
	}
	fg.prune()
	return nil
}

// prune drops nodes no longer reachable from the outputs and cleans their
// client entries.
func (fg *FGraph) prune() {
	reachable := make(map[*Apply]bool)
	for _, v := range Ancestors(fg.Outputs) {
		if v.Owner != nil {
			reachable[v.Owner] = true
		}
	}
	for node := range fg.nodes {
		if reachable[node] {
			continue
		}
		delete(fg.nodes, node)
		for pos, in := range node.Inputs {
			cls := fg.clients[in][:0]
			for _, cl := range fg.clients[in] {
				if cl.Node != node || cl.Pos != pos {
					cls = append(cls, cl)
				}
			}
			if len(cls) == 0 {
				delete(fg.clients, in)
			} else {
				fg.clients[in] = cls
			}
		}
	}
}

// CheckIntegrity verifies the client bookkeeping against the actual graph
// structure. It is used by the debug-mode linker and by tests.
func (fg *FGraph) CheckIntegrity() error {
	for node := range fg.nodes {
		for pos, in := range node.Inputs {
			found := false
			for _, cl := range fg.clients[in] {
				if cl.Node == node && cl.Pos == pos {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("graph: missing client entry for %s at %s[%d]", in, node, pos)
			}
		}
	}
	for v, cls := range fg.clients {
		for _, cl := range cls {
			if !fg.nodes[cl.Node] {
				return fmt.Errorf("graph: stale client %s for %s", cl.Node, v)
			}
			if cl.Node.Inputs[cl.Pos] != v {
				return fmt.Errorf("graph: client position out of sync for %s", v)
			}
		}
	}
	return nil
}
