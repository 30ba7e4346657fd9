package tern

import (
	"fmt"
	"strings"
)

// --- Element types ---------------------------------------------------------

// DType is the element type of a tensor. Graph variables carry a DType, and
// runtime values are checked against it when a compiled function is called.
type DType int

// Element types supported by the CPU kernels.
const (
	Invalid DType = iota
	Float32
	Float64
	Int64
)

func (dt DType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	}
	return "invalid"
}

// IsFloat returns true for floating-point element types.
func (dt DType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// Size returns the width of one element in bytes.
func (dt DType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64, Int64:
		return 8
	}
	return 0
}

// --- Shapes ----------------------------------------------------------------

// UnknownDim marks a dimension whose extent is not known statically. Shape
// inference propagates what it can and leaves the rest as UnknownDim until
// runtime.
const UnknownDim = -1

// Shape is the extent of a tensor along each axis. A nil or empty shape
// denotes a scalar. Entries may be UnknownDim in symbolic shapes; runtime
// values always carry fully-known shapes.
type Shape []int

// ScalarShape returns the shape of a scalar.
func ScalarShape() Shape {
	return Shape{}
}

// UnknownShape returns a shape of the given rank with every dimension
// unknown.
func UnknownShape(rank int) Shape {
	s := make(Shape, rank)
	for i := range s {
		s[i] = UnknownDim
	}
	return s
}

// Rank returns the number of axes.
func (s Shape) Rank() int {
	return len(s)
}

// IsScalar is true for rank-0 shapes.
func (s Shape) IsScalar() bool {
	return len(s) == 0
}

// Known reports whether every dimension has a concrete extent.
func (s Shape) Known() bool {
	for _, d := range s {
		if d == UnknownDim {
			return false
		}
	}
	return true
}

// NumElems returns the total element count, or UnknownDim if any dimension
// is unknown.
func (s Shape) NumElems() int {
	n := 1
	for _, d := range s {
		if d == UnknownDim {
			return UnknownDim
		}
		n *= d
	}
	return n
}

// Eq compares two shapes for structural equality.
func (s Shape) Eq(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i, d := range s {
		if d != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Shape) Clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

// Unify merges two shapes of equal rank, preferring known dimensions. It
// returns an error if both sides know a dimension and disagree.
func (s Shape) Unify(other Shape) (Shape, error) {
	if len(s) != len(other) {
		return nil, fmt.Errorf("rank mismatch: %s vs %s", s, other)
	}
	u := s.Clone()
	for i, d := range other {
		if u[i] == UnknownDim {
			u[i] = d
		} else if d != UnknownDim && d != u[i] {
			return nil, fmt.Errorf("shape mismatch at axis %d: %s vs %s", i, s, other)
		}
	}
	return u, nil
}

func (s Shape) String() string {
	if len(s) == 0 {
		return "()"
	}
	dims := make([]string, len(s))
	for i, d := range s {
		if d == UnknownDim {
			dims[i] = "?"
		} else {
			dims[i] = fmt.Sprintf("%d", d)
		}
	}
	return "(" + strings.Join(dims, "×") + ")"
}

// Strides returns row-major strides for the shape. Scalars yield an empty
// slice. Unknown dimensions are not allowed here.
func (s Shape) Strides() []int {
	str := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		str[i] = acc
		acc *= s[i]
	}
	return str
}
