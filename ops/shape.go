package ops

import (
	"fmt"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
)

// --- Reshape ---------------------------------------------------------------

type reshapeOpT struct {
	shape tern.Shape
}

var _ graph.Differentiable = (*reshapeOpT)(nil)

func (op *reshapeOpT) Name() string { return fmt.Sprintf("reshape%s", op.shape) }

func (op *reshapeOpT) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("ops: reshape takes 1 input, got %d", len(inputs))
	}
	a := inputs[0]
	if a.Shape.Known() && a.Shape.NumElems() != op.shape.NumElems() {
		return nil, fmt.Errorf("ops: cannot reshape %s to %s", a.Shape, op.shape)
	}
	out := &graph.Variable{DType: a.DType, Shape: op.shape.Clone()}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *reshapeOpT) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	out, err := inputs[0].Reshape(op.shape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Dense{out}, nil
}

func (op *reshapeOpT) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	gx, err := reshapeLike(g, node.Inputs[0])
	return []*graph.Variable{gx}, err
}

// Reshape builds a view of a with the given (fully known) shape.
func Reshape(a *graph.Variable, shape tern.Shape) (*graph.Variable, error) {
	if !shape.Known() {
		return nil, fmt.Errorf("ops: reshape target must be fully known, got %s", shape)
	}
	return apply1(&reshapeOpT{shape: shape.Clone()}, a)
}

// --- ReshapeLike -----------------------------------------------------------

// reshapeLikeOpT reshapes its first input to the runtime shape of its
// second. Gradient propagation uses it to undo reshapes whose source shape
// is not statically known.
type reshapeLikeOpT struct{}

var reshapeLikeOp = &reshapeLikeOpT{}

var _ graph.Differentiable = (*reshapeLikeOpT)(nil)

func (op *reshapeLikeOpT) Name() string { return "reshape_like" }

func (op *reshapeLikeOpT) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("ops: reshape_like takes 2 inputs, got %d", len(inputs))
	}
	a, template := inputs[0], inputs[1]
	out := &graph.Variable{DType: a.DType, Shape: template.Shape.Clone()}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *reshapeLikeOpT) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	out, err := inputs[0].Reshape(inputs[1].Shape())
	if err != nil {
		return nil, err
	}
	return []*tensor.Dense{out}, nil
}

func (op *reshapeLikeOpT) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	gx, err := reshapeLike(g, node.Inputs[0])
	if err != nil {
		return nil, err
	}
	return []*graph.Variable{gx, nil}, nil
}

func reshapeLike(a, template *graph.Variable) (*graph.Variable, error) {
	return apply1(reshapeLikeOp, a, template)
}

// --- Transpose -------------------------------------------------------------

type transposeOpT struct{}

var transposeOp = &transposeOpT{}

var _ graph.Differentiable = (*transposeOpT)(nil)

func (op *transposeOpT) Name() string { return "transpose" }

func (op *transposeOpT) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("ops: transpose takes 1 input, got %d", len(inputs))
	}
	a := inputs[0]
	if a.Shape.Rank() != 2 {
		return nil, fmt.Errorf("ops: transpose needs a matrix, got %s", a.Shape)
	}
	out := &graph.Variable{DType: a.DType, Shape: tern.Shape{a.Shape[1], a.Shape[0]}}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *transposeOpT) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	out, err := tensor.Transpose2D(inputs[0])
	if err != nil {
		return nil, err
	}
	return []*tensor.Dense{out}, nil
}

func (op *transposeOpT) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	gx, err := Transpose(g)
	return []*graph.Variable{gx}, err
}

// Transpose builds the matrix transpose of a.
func Transpose(a *graph.Variable) (*graph.Variable, error) { return apply1(transposeOp, a) }

// --- Dot -------------------------------------------------------------------

type dotOpT struct{}

var dotOp = &dotOpT{}

var _ graph.Differentiable = (*dotOpT)(nil)

func (op *dotOpT) Name() string { return "dot" }

func (op *dotOpT) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("ops: dot takes 2 inputs, got %d", len(inputs))
	}
	a, b := inputs[0], inputs[1]
	if a.DType != b.DType {
		return nil, fmt.Errorf("ops: dot dtype mismatch %s vs %s", a.DType, b.DType)
	}
	if a.Shape.Rank() != 2 || b.Shape.Rank() != 2 {
		return nil, fmt.Errorf("ops: dot needs matrices, got %s and %s", a.Shape, b.Shape)
	}
	k1, k2 := a.Shape[1], b.Shape[0]
	if k1 != tern.UnknownDim && k2 != tern.UnknownDim && k1 != k2 {
		return nil, fmt.Errorf("ops: dot inner dimensions disagree: %s · %s", a.Shape, b.Shape)
	}
	out := &graph.Variable{DType: a.DType, Shape: tern.Shape{a.Shape[0], b.Shape[1]}}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *dotOpT) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	out, err := tensor.MatMul(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	return []*tensor.Dense{out}, nil
}

func (op *dotOpT) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	a, b := node.Inputs[0], node.Inputs[1]
	bt, err := Transpose(b)
	if err != nil {
		return nil, err
	}
	ga, err := Dot(g, bt)
	if err != nil {
		return nil, err
	}
	at, err := Transpose(a)
	if err != nil {
		return nil, err
	}
	gb, err := Dot(at, g)
	if err != nil {
		return nil, err
	}
	return []*graph.Variable{ga, gb}, nil
}

// Dot builds the matrix product a·b.
func Dot(a, b *graph.Variable) (*graph.Variable, error) { return apply1(dotOp, a, b) }
