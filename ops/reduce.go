package ops

import (
	"fmt"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
)

// --- Sum -------------------------------------------------------------------

type sumOpT struct{}

var sumOp = &sumOpT{}

var _ graph.Differentiable = (*sumOpT)(nil)

func (op *sumOpT) Name() string { return "sum" }

func (op *sumOpT) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("ops: sum takes 1 input, got %d", len(inputs))
	}
	out := &graph.Variable{DType: inputs[0].DType, Shape: tern.ScalarShape()}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *sumOpT) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	return []*tensor.Dense{tensor.Sum(inputs[0])}, nil
}

func (op *sumOpT) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	gx, err := Fill(node.Inputs[0], g)
	return []*graph.Variable{gx}, err
}

// Sum reduces all elements of a to a scalar.
func Sum(a *graph.Variable) (*graph.Variable, error) { return apply1(sumOp, a) }

// --- Mean ------------------------------------------------------------------

type meanOpT struct{}

var meanOp = &meanOpT{}

var _ graph.Differentiable = (*meanOpT)(nil)

func (op *meanOpT) Name() string { return "mean" }

func (op *meanOpT) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("ops: mean takes 1 input, got %d", len(inputs))
	}
	if !inputs[0].DType.IsFloat() {
		return nil, fmt.Errorf("ops: mean undefined for %s", inputs[0].DType)
	}
	out := &graph.Variable{DType: inputs[0].DType, Shape: tern.ScalarShape()}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *meanOpT) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	s := tensor.Sum(inputs[0])
	n := tensor.Scalar(inputs[0].DType(), float64(inputs[0].Len()))
	out, err := tensor.Div(s, n)
	if err != nil {
		return nil, err
	}
	return []*tensor.Dense{out}, nil
}

func (op *meanOpT) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	x := node.Inputs[0]
	filled, err := Fill(x, g)
	if err != nil {
		return nil, err
	}
	n, err := Size(x)
	if err != nil {
		return nil, err
	}
	gx, err := Div(filled, n)
	return []*graph.Variable{gx}, err
}

// Mean reduces all elements of a to their arithmetic mean.
func Mean(a *graph.Variable) (*graph.Variable, error) { return apply1(meanOp, a) }

// --- Size ------------------------------------------------------------------

// sizeOpT yields the element count of its input as a scalar of the input's
// dtype (float inputs only; the count participates in gradient arithmetic).
type sizeOpT struct{}

var sizeOp = &sizeOpT{}

func (op *sizeOpT) Name() string { return "size" }

func (op *sizeOpT) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("ops: size takes 1 input, got %d", len(inputs))
	}
	if !inputs[0].DType.IsFloat() {
		return nil, fmt.Errorf("ops: size undefined for %s", inputs[0].DType)
	}
	out := &graph.Variable{DType: inputs[0].DType, Shape: tern.ScalarShape()}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *sizeOpT) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	return []*tensor.Dense{tensor.Scalar(inputs[0].DType(), float64(inputs[0].Len()))}, nil
}

// Size builds the (runtime) element count of a as a scalar.
func Size(a *graph.Variable) (*graph.Variable, error) { return apply1(sizeOp, a) }

// --- Fill ------------------------------------------------------------------

// fillOpT broadcasts a scalar across the shape of a template tensor. It is
// the op behind OnesLike/ZerosLike and the seed of gradient propagation.
type fillOpT struct{}

var fillOp = &fillOpT{}

var _ graph.Differentiable = (*fillOpT)(nil)

func (op *fillOpT) Name() string { return "fill" }

func (op *fillOpT) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("ops: fill takes 2 inputs, got %d", len(inputs))
	}
	template, value := inputs[0], inputs[1]
	if !value.Shape.IsScalar() {
		return nil, fmt.Errorf("ops: fill value must be scalar, got %s", value.Shape)
	}
	if template.DType != value.DType {
		return nil, fmt.Errorf("ops: fill dtype mismatch %s vs %s", template.DType, value.DType)
	}
	out := &graph.Variable{DType: template.DType, Shape: template.Shape.Clone()}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *fillOpT) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	out := tensor.New(inputs[0].DType(), inputs[0].Shape())
	out.Fill(inputs[1].ScalarValue())
	return []*tensor.Dense{out}, nil
}

func (op *fillOpT) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	// the template contributes only its shape
	gv, err := Sum(g)
	if err != nil {
		return nil, err
	}
	return []*graph.Variable{nil, gv}, nil
}

// Fill builds a tensor shaped like template, filled with the scalar value.
func Fill(template, value *graph.Variable) (*graph.Variable, error) {
	return apply1(fillOp, template, value)
}

// OnesLike builds a tensor of ones shaped like a.
func OnesLike(a *graph.Variable) (*graph.Variable, error) {
	return Fill(a, graph.ScalarConstant(a.DType, 1))
}

// ZerosLike builds a tensor of zeros shaped like a.
func ZerosLike(a *graph.Variable) (*graph.Variable, error) {
	return Fill(a, graph.ScalarConstant(a.DType, 0))
}
