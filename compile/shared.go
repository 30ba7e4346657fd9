package compile

import (
	"fmt"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
)

// Container holds the runtime value of a shared variable. Functions read
// and write shared state through the container, so clones of a shared
// variable that hold the same container see each other's writes.
type Container struct {
	value *tensor.Dense
}

// Value returns the stored tensor without copying.
func (c *Container) Value() *tensor.Dense {
	return c.value
}

// SetValue stores a tensor without copying.
func (c *Container) SetValue(v *tensor.Dense) {
	c.value = v
}

// SharedVariable is a graph variable with state that persists across
// function calls. It participates in expressions like any other variable;
// functions pick its value up from the container as an implicit input.
type SharedVariable struct {
	*graph.Variable
	container     *Container
	defaultUpdate *graph.Variable
}

// NewShared wraps a tensor value in a shared variable.
func NewShared(name string, value *tensor.Dense) *SharedVariable {
	v := graph.NewVariable(name, value.DType(), value.Shape().Clone())
	s := &SharedVariable{
		Variable:  v,
		container: &Container{value: value},
	}
	v.UData = s
	return s
}

// Container exposes the variable's storage container.
func (s *SharedVariable) Container() *Container {
	return s.container
}

// GetValue returns the current value. Without borrow the caller gets a
// private copy; with borrow it gets the container's tensor and must not
// modify it.
func (s *SharedVariable) GetValue(borrow bool) *tensor.Dense {
	if borrow {
		return s.container.value
	}
	return s.container.value.Clone()
}

// SetValue replaces the current value. Without borrow the container gets a
// private copy; with borrow it aliases the caller's tensor.
func (s *SharedVariable) SetValue(v *tensor.Dense, borrow bool) error {
	if v.DType() != s.DType {
		return fmt.Errorf("compile: shared variable %s holds %s, cannot assign %s",
			s.Name, s.DType, v.DType())
	}
	if !borrow {
		v = v.Clone()
	}
	s.container.value = v
	return nil
}

// Zero overwrites the value with zeros in place.
func (s *SharedVariable) Zero() {
	s.container.value.Zero()
}

// Clone returns a new shared variable over the same container. The clone
// is a distinct graph variable, so the same state can enter a graph in
// two places.
func (s *SharedVariable) Clone() *SharedVariable {
	v := graph.NewVariable(s.Name, s.DType, s.Shape.Clone())
	c := &SharedVariable{
		Variable:      v,
		container:     s.container,
		defaultUpdate: s.defaultUpdate,
	}
	v.UData = c
	return c
}

// SetDefaultUpdate attaches an update expression that every function using
// this variable applies implicitly, unless an explicit update overrides it.
func (s *SharedVariable) SetDefaultUpdate(expr *graph.Variable) {
	s.defaultUpdate = expr
}

// DefaultUpdate returns the implicit update expression, or nil.
func (s *SharedVariable) DefaultUpdate() *graph.Variable {
	return s.defaultUpdate
}

// asShared recognizes graph variables backed by a shared container.
func asShared(v *graph.Variable) *SharedVariable {
	if s, ok := v.UData.(*SharedVariable); ok {
		return s
	}
	return nil
}

// Constructor builds a shared variable from a Go value, or reports that it
// does not handle the value's type.
type Constructor func(name string, value interface{}) (*SharedVariable, bool)

var constructors []Constructor

// RegisterConstructor adds a constructor. Later registrations take
// precedence over earlier ones.
func RegisterConstructor(c Constructor) {
	constructors = append(constructors, c)
}

// Shared builds a shared variable from a Go value, dispatching over the
// registered constructors.
func Shared(name string, value interface{}) (*SharedVariable, error) {
	for i := len(constructors) - 1; i >= 0; i-- {
		if s, ok := constructors[i](name, value); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("compile: no shared constructor handles %T", value)
}

func init() {
	RegisterConstructor(func(name string, value interface{}) (*SharedVariable, bool) {
		switch v := value.(type) {
		case *tensor.Dense:
			return NewShared(name, v), true
		case float64:
			return NewShared(name, tensor.Scalar(tern.Float64, v)), true
		case float32:
			return NewShared(name, tensor.Scalar(tern.Float32, float64(v))), true
		case int:
			return NewShared(name, tensor.Scalar(tern.Int64, float64(v))), true
		case int64:
			return NewShared(name, tensor.Scalar(tern.Int64, float64(v))), true
		case []float64:
			return NewShared(name, tensor.FromFloat64s(tern.Shape{len(v)}, v)), true
		case []float32:
			return NewShared(name, tensor.FromFloat32s(tern.Shape{len(v)}, v)), true
		case []int64:
			return NewShared(name, tensor.FromInt64s(tern.Shape{len(v)}, v)), true
		}
		return nil, false
	})
}
