package compile

import (
	"fmt"

	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
	"golang.org/x/sync/errgroup"
)

// program is a linked, executable schedule over a function graph. A
// program is not safe for concurrent calls; Function serializes access.
type program struct {
	fg        *graph.FGraph
	order     []*graph.Apply
	freeAfter map[*graph.Apply][]*graph.Variable
	levels    [][]*graph.Apply
	allowGC   bool
	debug     bool
	footprint int
}

func link(fg *graph.FGraph, linker string) (*program, error) {
	p := &program{fg: fg, order: fg.Applies()}
	switch linker {
	case LinkerPerform, LinkerVMNoGC:
	case LinkerVM:
		p.allowGC = true
		p.computeFreeLists()
	case LinkerPVM:
		p.computeLevels()
	case LinkerDebug:
		p.debug = true
	default:
		return nil, fmt.Errorf("compile: unknown linker %q", linker)
	}
	tracer().Debugf("linked %d nodes with linker %s", len(p.order), linker)
	return p, nil
}

// computeFreeLists records, for every schedule step, the intermediate
// variables whose last consumer that step is. Outputs are never freed.
func (p *program) computeFreeLists() {
	p.freeAfter = make(map[*graph.Apply][]*graph.Variable)
	lastUse := make(map[*graph.Variable]*graph.Apply)
	for _, node := range p.order {
		for _, in := range node.Inputs {
			lastUse[in] = node
		}
	}
	for v, node := range lastUse {
		if v.Owner == nil || p.fg.IsOutput(v) {
			continue
		}
		p.freeAfter[node] = append(p.freeAfter[node], v)
	}
}

// computeLevels groups the schedule into waves of mutually independent
// nodes for the parallel linker.
func (p *program) computeLevels() {
	level := make(map[*graph.Apply]int)
	max := 0
	for _, node := range p.order {
		l := 0
		for _, in := range node.Inputs {
			if in.Owner != nil && level[in.Owner]+1 > l {
				l = level[in.Owner] + 1
			}
		}
		level[node] = l
		if l > max {
			max = l
		}
	}
	p.levels = make([][]*graph.Apply, max+1)
	for _, node := range p.order {
		p.levels[level[node]] = append(p.levels[level[node]], node)
	}
}

// Run evaluates the program. The inputs map provides storage for every
// free non-constant variable of the graph.
func (p *program) Run(inputs map[*graph.Variable]*tensor.Dense) ([]*tensor.Dense, error) {
	storage := make(map[*graph.Variable]*tensor.Dense, len(inputs))
	for v, val := range inputs {
		storage[v] = val
	}
	if p.debug {
		if err := p.fg.CheckIntegrity(); err != nil {
			return nil, err
		}
	}
	var err error
	if p.levels != nil {
		err = p.runParallel(storage)
	} else {
		err = p.runSequential(storage)
	}
	if err != nil {
		return nil, err
	}
	outs := make([]*tensor.Dense, len(p.fg.Outputs))
	for i, out := range p.fg.Outputs {
		val, ok := storage[out]
		if !ok && out.IsConstant() {
			val = out.Const
		}
		if val == nil {
			return nil, fmt.Errorf("compile: output %s was never computed", out)
		}
		outs[i] = val
	}
	p.footprint = retainedBytes(storage, inputs)
	return outs, nil
}

func (p *program) runSequential(storage map[*graph.Variable]*tensor.Dense) error {
	for _, node := range p.order {
		if err := p.step(node, storage); err != nil {
			return err
		}
		for _, v := range p.freeAfter[node] {
			delete(storage, v)
		}
	}
	return nil
}

// runParallel evaluates independent nodes of each wave concurrently.
// Waves write to disjoint storage keys, so a per-wave barrier is the only
// synchronization needed.
func (p *program) runParallel(storage map[*graph.Variable]*tensor.Dense) error {
	for _, wave := range p.levels {
		var g errgroup.Group
		results := make([][]*tensor.Dense, len(wave))
		for i, node := range wave {
			i, node := i, node
			g.Go(func() error {
				outs, err := p.perform(node, storage)
				if err != nil {
					return err
				}
				results[i] = outs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, node := range wave {
			for j, out := range node.Outputs {
				storage[out] = results[i][j]
			}
		}
	}
	return nil
}

func (p *program) step(node *graph.Apply, storage map[*graph.Variable]*tensor.Dense) error {
	outs, err := p.perform(node, storage)
	if err != nil {
		return err
	}
	for i, out := range node.Outputs {
		storage[out] = outs[i]
	}
	if p.debug {
		for i, out := range node.Outputs {
			if outs[i].DType() != out.DType {
				return fmt.Errorf("compile: %s produced %s for %s output %s",
					node, outs[i].DType(), out.DType, out)
			}
			if _, err := out.Shape.Unify(outs[i].Shape()); err != nil {
				return fmt.Errorf("compile: %s: %v", node, err)
			}
		}
		if err := p.fg.CheckIntegrity(); err != nil {
			return err
		}
	}
	return nil
}

func (p *program) perform(node *graph.Apply, storage map[*graph.Variable]*tensor.Dense) ([]*tensor.Dense, error) {
	ins := make([]*tensor.Dense, len(node.Inputs))
	for i, in := range node.Inputs {
		if in.IsConstant() {
			ins[i] = in.Const
			continue
		}
		val, ok := storage[in]
		if !ok {
			return nil, fmt.Errorf("compile: no storage for %s, input of %s", in, node)
		}
		ins[i] = val
	}
	outs, err := node.Op.Perform(node, ins)
	if err != nil {
		return nil, fmt.Errorf("compile: %s: %w", node, err)
	}
	if len(outs) != len(node.Outputs) {
		return nil, fmt.Errorf("compile: %s produced %d outputs, declared %d",
			node, len(outs), len(node.Outputs))
	}
	return outs, nil
}

// retainedBytes sums the storage a call leaves behind, not counting the
// caller-provided inputs.
func retainedBytes(storage, inputs map[*graph.Variable]*tensor.Dense) int {
	total := 0
	for v, val := range storage {
		if _, ok := inputs[v]; ok {
			continue
		}
		total += val.SizeBytes()
	}
	return total
}
