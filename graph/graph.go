package graph

import (
	"fmt"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/tensor"
)

// Variable is a node in a symbolic expression graph. A variable either is a
// graph input (Owner == nil, Const == nil), a constant (Const != nil), or
// the output of an apply node (Owner != nil, Index selecting the output).
type Variable struct {
	Name  string
	DType tern.DType
	Shape tern.Shape // static shape; dimensions may be tern.UnknownDim
	Owner *Apply
	Index int
	Const *tensor.Dense // non-nil for constants
	UData interface{}   // extension point, e.g. the shared-variable wrapper
}

// NewVariable creates a free input variable of the given dtype and static
// shape. Pass tern.UnknownShape(rank) if only the rank is known.
func NewVariable(name string, dt tern.DType, shape tern.Shape) *Variable {
	return &Variable{Name: name, DType: dt, Shape: shape.Clone()}
}

// Scalar creates a rank-0 input variable.
func Scalar(name string, dt tern.DType) *Variable {
	return NewVariable(name, dt, tern.ScalarShape())
}

// Vector creates a rank-1 input variable of unknown extent.
func Vector(name string, dt tern.DType) *Variable {
	return NewVariable(name, dt, tern.UnknownShape(1))
}

// Matrix creates a rank-2 input variable of unknown extents.
func Matrix(name string, dt tern.DType) *Variable {
	return NewVariable(name, dt, tern.UnknownShape(2))
}

// Tensor4 creates a rank-4 input variable of unknown extents.
func Tensor4(name string, dt tern.DType) *Variable {
	return NewVariable(name, dt, tern.UnknownShape(4))
}

// NewConstant wraps a runtime value as a constant graph node.
func NewConstant(val *tensor.Dense) *Variable {
	return &Variable{
		Name:  val.String(),
		DType: val.DType(),
		Shape: val.Shape().Clone(),
		Const: val,
	}
}

// ScalarConstant is shorthand for a rank-0 constant.
func ScalarConstant(dt tern.DType, v float64) *Variable {
	return NewConstant(tensor.Scalar(dt, v))
}

// IsConstant reports whether v is a constant node.
func (v *Variable) IsConstant() bool {
	return v.Const != nil
}

// IsInput reports whether v is a free graph input.
func (v *Variable) IsInput() bool {
	return v.Owner == nil && v.Const == nil
}

func (v *Variable) String() string {
	name := v.Name
	if name == "" {
		if v.Owner != nil {
			name = v.Owner.Op.Name() + ".out"
		} else {
			name = "<var>"
		}
	}
	return fmt.Sprintf("%s:%s%s", name, v.DType, v.Shape)
}

// --- Apply nodes -----------------------------------------------------------

// Apply pairs an Op with concrete input variables; its outputs are fresh
// variables owned by the node.
type Apply struct {
	Op      Op
	Inputs  []*Variable
	Outputs []*Variable
}

func (a *Apply) String() string {
	return fmt.Sprintf("%s(%d inputs)", a.Op.Name(), len(a.Inputs))
}

// Output returns the single output of a node and panics for multi-output
// ops; nearly all ops have exactly one output.
func (a *Apply) Output() *Variable {
	if len(a.Outputs) != 1 {
		panic(fmt.Sprintf("graph: %s has %d outputs", a.Op.Name(), len(a.Outputs)))
	}
	return a.Outputs[0]
}

// NewApply constructs an apply node and wires ownership of the output
// variables. Ops call this from their MakeNode after inference.
func NewApply(op Op, inputs []*Variable, outputs []*Variable) *Apply {
	node := &Apply{Op: op, Inputs: inputs, Outputs: outputs}
	for i, out := range outputs {
		out.Owner = node
		out.Index = i
	}
	return node
}

// --- The Op interface ------------------------------------------------------

// Op is a symbolic tensor operation. MakeNode validates input variables and
// produces an apply node with dtype/shape-inferred outputs; Perform executes
// the operation on runtime values.
type Op interface {
	Name() string
	MakeNode(inputs ...*Variable) (*Apply, error)
	Perform(node *Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error)
}

// Differentiable is implemented by ops that know their gradient. Grad
// receives the apply node and the gradient flowing into its (single)
// output, and returns one gradient variable per input. A nil entry marks an
// input the output does not depend on differentiably.
type Differentiable interface {
	Op
	Grad(node *Apply, outGrad *Variable) ([]*Variable, error)
}

// Impure is implemented by ops that may not be merged or folded, such as
// random generators or destructive updates.
type Impure interface {
	Op
	Impure() bool
}

// IsImpure reports whether an op refuses merging and folding.
func IsImpure(op Op) bool {
	if im, ok := op.(Impure); ok {
		return im.Impure()
	}
	return false
}
