package ops

import (
	"fmt"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
)

// apply1 builds the node and returns its single output.
func apply1(op graph.Op, ins ...*graph.Variable) (*graph.Variable, error) {
	node, err := op.MakeNode(ins...)
	if err != nil {
		tracer().Errorf("building %s node: %v", op.Name(), err)
		return nil, err
	}
	return node.Output(), nil
}

// unbroadcast folds a gradient back onto the shape of input: when a scalar
// was broadcast against a tensor, the gradient arriving with the tensor's
// shape must be summed into a scalar.
func unbroadcast(g, input *graph.Variable) (*graph.Variable, error) {
	if input.Shape.IsScalar() && !g.Shape.IsScalar() {
		return Sum(g)
	}
	return g, nil
}

// --- Binary element-wise ops -----------------------------------------------

type binElem struct {
	name    string
	kern    func(a, b *tensor.Dense) (*tensor.Dense, error)
	gradfn  func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error)
	intOK   bool
	floatIn bool // require floating-point inputs
}

var _ graph.Differentiable = (*binElem)(nil)

func (op *binElem) Name() string { return op.name }

func (op *binElem) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("ops: %s takes 2 inputs, got %d", op.name, len(inputs))
	}
	a, b := inputs[0], inputs[1]
	if a.DType != b.DType {
		return nil, fmt.Errorf("ops: %s: dtype mismatch %s vs %s", op.name, a.DType, b.DType)
	}
	if op.floatIn && !a.DType.IsFloat() {
		return nil, fmt.Errorf("ops: %s undefined for %s", op.name, a.DType)
	}
	if !op.intOK && a.DType == tern.Int64 {
		return nil, fmt.Errorf("ops: %s undefined for %s", op.name, a.DType)
	}
	shape, err := elemwiseShape(a.Shape, b.Shape)
	if err != nil {
		return nil, fmt.Errorf("ops: %s: %v", op.name, err)
	}
	out := &graph.Variable{DType: a.DType, Shape: shape}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *binElem) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	out, err := op.kern(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	return []*tensor.Dense{out}, nil
}

func (op *binElem) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	return op.gradfn(node, g)
}

// elemwiseShape merges operand shapes under scalar broadcasting.
func elemwiseShape(a, b tern.Shape) (tern.Shape, error) {
	switch {
	case a.IsScalar():
		return b.Clone(), nil
	case b.IsScalar():
		return a.Clone(), nil
	}
	return a.Unify(b)
}

var addOp = &binElem{
	name: "add", kern: tensor.Add, intOK: true,
	gradfn: func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		ga, err := unbroadcast(g, node.Inputs[0])
		if err != nil {
			return nil, err
		}
		gb, err := unbroadcast(g, node.Inputs[1])
		if err != nil {
			return nil, err
		}
		return []*graph.Variable{ga, gb}, nil
	},
}

var subOp = &binElem{
	name: "sub", kern: tensor.Sub, intOK: true,
	gradfn: func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		ga, err := unbroadcast(g, node.Inputs[0])
		if err != nil {
			return nil, err
		}
		ng, err := Neg(g)
		if err != nil {
			return nil, err
		}
		gb, err := unbroadcast(ng, node.Inputs[1])
		if err != nil {
			return nil, err
		}
		return []*graph.Variable{ga, gb}, nil
	},
}

var mulOp = &binElem{name: "mul", kern: tensor.Mul, intOK: true}

var divOp = &binElem{name: "div", kern: tensor.Div, intOK: true}

// The gradients of mul, div and neg are expressed through the very
// constructors the op vars back, so assigning them inline would make
// each var's initializer depend on itself. Wiring them up here keeps
// the initializers cycle-free.
func init() {
	mulOp.gradfn = func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		a, b := node.Inputs[0], node.Inputs[1]
		gb1, err := Mul(g, b)
		if err != nil {
			return nil, err
		}
		ga, err := unbroadcast(gb1, a)
		if err != nil {
			return nil, err
		}
		ga1, err := Mul(g, a)
		if err != nil {
			return nil, err
		}
		gb, err := unbroadcast(ga1, b)
		if err != nil {
			return nil, err
		}
		return []*graph.Variable{ga, gb}, nil
	}
	divOp.gradfn = func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		a, b := node.Inputs[0], node.Inputs[1]
		gOverB, err := Div(g, b)
		if err != nil {
			return nil, err
		}
		ga, err := unbroadcast(gOverB, a)
		if err != nil {
			return nil, err
		}
		// -g·a/b²
		ga1, err := Mul(g, a)
		if err != nil {
			return nil, err
		}
		b2, err := Mul(b, b)
		if err != nil {
			return nil, err
		}
		q, err := Div(ga1, b2)
		if err != nil {
			return nil, err
		}
		nq, err := Neg(q)
		if err != nil {
			return nil, err
		}
		gb, err := unbroadcast(nq, b)
		if err != nil {
			return nil, err
		}
		return []*graph.Variable{ga, gb}, nil
	}
	negOp.gradfn = func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		ng, err := Neg(g)
		return []*graph.Variable{ng}, err
	}
}

// Add builds a + b with scalar broadcasting.
func Add(a, b *graph.Variable) (*graph.Variable, error) { return apply1(addOp, a, b) }

// Sub builds a - b with scalar broadcasting.
func Sub(a, b *graph.Variable) (*graph.Variable, error) { return apply1(subOp, a, b) }

// Mul builds a * b element-wise with scalar broadcasting.
func Mul(a, b *graph.Variable) (*graph.Variable, error) { return apply1(mulOp, a, b) }

// Div builds a / b element-wise with scalar broadcasting.
func Div(a, b *graph.Variable) (*graph.Variable, error) { return apply1(divOp, a, b) }

// --- Unary element-wise ops ------------------------------------------------

type unElem struct {
	name    string
	kern    func(a *tensor.Dense) (*tensor.Dense, error)
	gradfn  func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error)
	floatIn bool
}

var _ graph.Differentiable = (*unElem)(nil)

func (op *unElem) Name() string { return op.name }

func (op *unElem) MakeNode(inputs ...*graph.Variable) (*graph.Apply, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("ops: %s takes 1 input, got %d", op.name, len(inputs))
	}
	a := inputs[0]
	if op.floatIn && !a.DType.IsFloat() {
		return nil, fmt.Errorf("ops: %s undefined for %s", op.name, a.DType)
	}
	out := &graph.Variable{DType: a.DType, Shape: a.Shape.Clone()}
	return graph.NewApply(op, inputs, []*graph.Variable{out}), nil
}

func (op *unElem) Perform(node *graph.Apply, inputs []*tensor.Dense) ([]*tensor.Dense, error) {
	out, err := op.kern(inputs[0])
	if err != nil {
		return nil, err
	}
	return []*tensor.Dense{out}, nil
}

func (op *unElem) Grad(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
	return op.gradfn(node, g)
}

func one(dt tern.DType) *graph.Variable { return graph.ScalarConstant(dt, 1) }
func two(dt tern.DType) *graph.Variable { return graph.ScalarConstant(dt, 2) }

var negOp = &unElem{name: "neg", kern: tensor.Neg} // gradfn wired in init

var sqrOp = &unElem{
	name: "sqr", kern: tensor.Sqr,
	gradfn: func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		// d(x²) = 2x
		tx, err := Mul(two(node.Inputs[0].DType), node.Inputs[0])
		if err != nil {
			return nil, err
		}
		gx, err := Mul(g, tx)
		return []*graph.Variable{gx}, err
	},
}

var expOp = &unElem{
	name: "exp", kern: tensor.Exp, floatIn: true,
	gradfn: func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		gx, err := Mul(g, node.Outputs[0])
		return []*graph.Variable{gx}, err
	},
}

var logOp = &unElem{
	name: "log", kern: tensor.Log, floatIn: true,
	gradfn: func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		gx, err := Div(g, node.Inputs[0])
		return []*graph.Variable{gx}, err
	},
}

var tanhOp = &unElem{
	name: "tanh", kern: tensor.Tanh, floatIn: true,
	gradfn: func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		y := node.Outputs[0]
		y2, err := Mul(y, y)
		if err != nil {
			return nil, err
		}
		d, err := Sub(one(y.DType), y2)
		if err != nil {
			return nil, err
		}
		gx, err := Mul(g, d)
		return []*graph.Variable{gx}, err
	},
}

var sigmoidOp = &unElem{
	name: "sigmoid", kern: tensor.Sigmoid, floatIn: true,
	gradfn: func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		y := node.Outputs[0]
		oneMinusY, err := Sub(one(y.DType), y)
		if err != nil {
			return nil, err
		}
		d, err := Mul(y, oneMinusY)
		if err != nil {
			return nil, err
		}
		gx, err := Mul(g, d)
		return []*graph.Variable{gx}, err
	},
}

var sqrtOp = &unElem{
	name: "sqrt", kern: tensor.Sqrt, floatIn: true,
	gradfn: func(node *graph.Apply, g *graph.Variable) ([]*graph.Variable, error) {
		y := node.Outputs[0]
		ty, err := Mul(two(y.DType), y)
		if err != nil {
			return nil, err
		}
		gx, err := Div(g, ty)
		return []*graph.Variable{gx}, err
	},
}

// Neg builds -a.
func Neg(a *graph.Variable) (*graph.Variable, error) { return apply1(negOp, a) }

// Sqr builds a².
func Sqr(a *graph.Variable) (*graph.Variable, error) { return apply1(sqrOp, a) }

// Exp builds eᵃ.
func Exp(a *graph.Variable) (*graph.Variable, error) { return apply1(expOp, a) }

// Log builds ln(a).
func Log(a *graph.Variable) (*graph.Variable, error) { return apply1(logOp, a) }

// Tanh builds tanh(a).
func Tanh(a *graph.Variable) (*graph.Variable, error) { return apply1(tanhOp, a) }

// Sigmoid builds 1/(1+e⁻ᵃ).
func Sigmoid(a *graph.Variable) (*graph.Variable, error) { return apply1(sigmoidOp, a) }

// Sqrt builds √a.
func Sqrt(a *graph.Variable) (*graph.Variable, error) { return apply1(sqrtOp, a) }
