package tensor

import (
	"fmt"
	"math"

	"github.com/ternlang/tern"
)

// Dense is a dense, row-major, contiguous tensor. Exactly one of the three
// backing slices is non-nil, matching the DType.
type Dense struct {
	dt    tern.DType
	shape tern.Shape
	f32   []float32
	f64   []float64
	i64   []int64
}

// New allocates a zero-filled tensor. The shape must be fully known.
func New(dt tern.DType, shape tern.Shape) *Dense {
	if !shape.Known() {
		panic("tensor: allocation with unknown shape")
	}
	n := shape.NumElems()
	d := &Dense{dt: dt, shape: shape.Clone()}
	switch dt {
	case tern.Float32:
		d.f32 = make([]float32, n)
	case tern.Float64:
		d.f64 = make([]float64, n)
	case tern.Int64:
		d.i64 = make([]int64, n)
	default:
		panic(fmt.Sprintf("tensor: cannot allocate dtype %s", dt))
	}
	return d
}

// FromFloat64s wraps data (not copied) in a float64 tensor.
func FromFloat64s(shape tern.Shape, data []float64) *Dense {
	if shape.NumElems() != len(data) {
		panic(fmt.Sprintf("tensor: %d elements for shape %s", len(data), shape))
	}
	return &Dense{dt: tern.Float64, shape: shape.Clone(), f64: data}
}

// FromFloat32s wraps data (not copied) in a float32 tensor.
func FromFloat32s(shape tern.Shape, data []float32) *Dense {
	if shape.NumElems() != len(data) {
		panic(fmt.Sprintf("tensor: %d elements for shape %s", len(data), shape))
	}
	return &Dense{dt: tern.Float32, shape: shape.Clone(), f32: data}
}

// FromInt64s wraps data (not copied) in an int64 tensor.
func FromInt64s(shape tern.Shape, data []int64) *Dense {
	if shape.NumElems() != len(data) {
		panic(fmt.Sprintf("tensor: %d elements for shape %s", len(data), shape))
	}
	return &Dense{dt: tern.Int64, shape: shape.Clone(), i64: data}
}

// Scalar creates a rank-0 tensor holding v, converted to dtype dt.
func Scalar(dt tern.DType, v float64) *Dense {
	d := New(dt, tern.ScalarShape())
	d.SetFlat(0, v)
	return d
}

// Ones allocates a tensor filled with 1.
func Ones(dt tern.DType, shape tern.Shape) *Dense {
	d := New(dt, shape)
	d.Fill(1)
	return d
}

// DType returns the element type.
func (d *Dense) DType() tern.DType {
	return d.dt
}

// Shape returns the tensor's shape. Callers must not modify it.
func (d *Dense) Shape() tern.Shape {
	return d.shape
}

// Len returns the number of elements.
func (d *Dense) Len() int {
	return d.shape.NumElems()
}

// SizeBytes returns the memory occupied by the element data.
func (d *Dense) SizeBytes() int {
	return d.Len() * d.dt.Size()
}

// Float64s returns the backing slice of a float64 tensor.
func (d *Dense) Float64s() []float64 {
	if d.dt != tern.Float64 {
		panic(fmt.Sprintf("tensor: Float64s on %s tensor", d.dt))
	}
	return d.f64
}

// Float32s returns the backing slice of a float32 tensor.
func (d *Dense) Float32s() []float32 {
	if d.dt != tern.Float32 {
		panic(fmt.Sprintf("tensor: Float32s on %s tensor", d.dt))
	}
	return d.f32
}

// Int64s returns the backing slice of an int64 tensor.
func (d *Dense) Int64s() []int64 {
	if d.dt != tern.Int64 {
		panic(fmt.Sprintf("tensor: Int64s on %s tensor", d.dt))
	}
	return d.i64
}

// FlatAt reads element i (in row-major order) as a float64, whatever the
// element type is.
func (d *Dense) FlatAt(i int) float64 {
	switch d.dt {
	case tern.Float32:
		return float64(d.f32[i])
	case tern.Float64:
		return d.f64[i]
	case tern.Int64:
		return float64(d.i64[i])
	}
	panic("tensor: invalid dtype")
}

// SetFlat writes element i (row-major) from a float64.
func (d *Dense) SetFlat(i int, v float64) {
	switch d.dt {
	case tern.Float32:
		d.f32[i] = float32(v)
	case tern.Float64:
		d.f64[i] = v
	case tern.Int64:
		d.i64[i] = int64(v)
	default:
		panic("tensor: invalid dtype")
	}
}

// At reads the element at the given multi-index.
func (d *Dense) At(idx ...int) float64 {
	return d.FlatAt(d.offset(idx))
}

// SetAt writes the element at the given multi-index.
func (d *Dense) SetAt(v float64, idx ...int) {
	d.SetFlat(d.offset(idx), v)
}

func (d *Dense) offset(idx []int) int {
	if len(idx) != d.shape.Rank() {
		panic(fmt.Sprintf("tensor: %d indices for rank-%d tensor", len(idx), d.shape.Rank()))
	}
	off := 0
	str := d.shape.Strides()
	for i, j := range idx {
		if j < 0 || j >= d.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d of %s", j, i, d.shape))
		}
		off += j * str[i]
	}
	return off
}

// ScalarValue returns the value of a single-element tensor.
func (d *Dense) ScalarValue() float64 {
	if d.Len() != 1 {
		panic(fmt.Sprintf("tensor: ScalarValue on tensor of shape %s", d.shape))
	}
	return d.FlatAt(0)
}

// Fill sets every element to v.
func (d *Dense) Fill(v float64) {
	for i, n := 0, d.Len(); i < n; i++ {
		d.SetFlat(i, v)
	}
}

// Zero sets every element to 0.
func (d *Dense) Zero() {
	d.Fill(0)
}

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	c := &Dense{dt: d.dt, shape: d.shape.Clone()}
	switch d.dt {
	case tern.Float32:
		c.f32 = append([]float32(nil), d.f32...)
	case tern.Float64:
		c.f64 = append([]float64(nil), d.f64...)
	case tern.Int64:
		c.i64 = append([]int64(nil), d.i64...)
	}
	return c
}

// Reshape returns a view of the same data with a different shape. The
// element counts must agree.
func (d *Dense) Reshape(shape tern.Shape) (*Dense, error) {
	if shape.NumElems() != d.Len() {
		return nil, fmt.Errorf("tensor: cannot reshape %s to %s", d.shape, shape)
	}
	return &Dense{dt: d.dt, shape: shape.Clone(), f32: d.f32, f64: d.f64, i64: d.i64}, nil
}

// Convert returns a copy of d with element type dt. Converting float to int
// truncates.
func (d *Dense) Convert(dt tern.DType) *Dense {
	if dt == d.dt {
		return d.Clone()
	}
	c := New(dt, d.shape)
	for i, n := 0, d.Len(); i < n; i++ {
		c.SetFlat(i, d.FlatAt(i))
	}
	return c
}

// AllClose compares element-wise within an absolute tolerance. Shapes and
// dtypes must match exactly.
func (d *Dense) AllClose(other *Dense, tol float64) bool {
	if d.dt != other.dt || !d.shape.Eq(other.shape) {
		return false
	}
	for i, n := 0, d.Len(); i < n; i++ {
		if math.Abs(d.FlatAt(i)-other.FlatAt(i)) > tol {
			return false
		}
	}
	return true
}

func (d *Dense) String() string {
	if d == nil {
		return "<nil>"
	}
	n := d.Len()
	if n > 8 {
		return fmt.Sprintf("<%s %s …>", d.dt, d.shape)
	}
	vals := make([]string, n)
	for i := 0; i < n; i++ {
		vals[i] = fmt.Sprintf("%g", d.FlatAt(i))
	}
	return fmt.Sprintf("<%s %s %v>", d.dt, d.shape, vals)
}
