package rewrite

import (
	"strconv"

	"github.com/cnf/structhash"
	"github.com/ternlang/tern/graph"
)

// merge eliminates common subexpressions: constants with equal values are
// shared, and apply nodes with the same operation over the same inputs are
// collapsed into one. Impure operations are never merged.
type merge struct{}

func (rw *merge) Name() string { return "merge" }

func (rw *merge) Apply(fg *graph.FGraph) (bool, error) {
	changed := false
	for {
		old, new, err := findDuplicate(fg)
		if err != nil {
			return changed, err
		}
		if old == nil {
			return changed, nil
		}
		tracer().Debugf("merging %v into %v", old, new)
		if err := fg.Replace(old, new); err != nil {
			return changed, err
		}
		changed = true
	}
}

type applySig struct {
	Op  string
	Ins []string
}

type constData struct {
	DType string
	Shape []int
	Data  []float64
}

// findDuplicate scans the graph in dependency order and returns the first
// mergeable pair, or nils if there is none. The caller restarts the scan
// after every replacement, so earlier merges can expose later ones.
func findDuplicate(fg *graph.FGraph) (old, new *graph.Variable, err error) {
	ids := make(map[*graph.Variable]string)
	constants := make(map[string]*graph.Variable)
	next := 0
	for _, node := range fg.Applies() {
		for _, in := range node.Inputs {
			if _, ok := ids[in]; ok {
				continue
			}
			if !in.IsConstant() {
				ids[in] = "v" + strconv.Itoa(next)
				next++
				continue
			}
			h, err := constSig(in)
			if err != nil {
				return nil, nil, err
			}
			if first, ok := constants[h]; ok {
				return in, first, nil
			}
			constants[h] = in
			ids[in] = "c" + h
		}
	}
	seen := make(map[string]*graph.Apply)
	for _, node := range fg.Applies() {
		for _, out := range node.Outputs {
			if _, ok := ids[out]; !ok {
				ids[out] = "v" + strconv.Itoa(next)
				next++
			}
		}
		if graph.IsImpure(node.Op) || len(node.Outputs) != 1 {
			continue
		}
		sig := applySig{Op: node.Op.Name()}
		for _, in := range node.Inputs {
			sig.Ins = append(sig.Ins, ids[in])
		}
		h, err := structhash.Hash(sig, 1)
		if err != nil {
			return nil, nil, err
		}
		if first, ok := seen[h]; ok && first != node {
			return node.Output(), first.Output(), nil
		}
		seen[h] = node
	}
	return nil, nil, nil
}

func constSig(v *graph.Variable) (string, error) {
	d := constData{DType: v.DType.String(), Shape: []int(v.Const.Shape())}
	for i := 0; i < v.Const.Len(); i++ {
		d.Data = append(d.Data, v.Const.FlatAt(i))
	}
	return structhash.Hash(d, 1)
}
