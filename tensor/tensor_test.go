package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternlang/tern"
)

func TestNewAndFill(t *testing.T) {
	d := New(tern.Float64, tern.Shape{2, 3})
	assert.Equal(t, 6, d.Len())
	assert.Equal(t, tern.Shape{2, 3}, d.Shape())
	d.Fill(1.5)
	assert.Equal(t, 1.5, d.At(1, 2))
	d.Zero()
	assert.Equal(t, 0.0, d.At(0, 0))
}

func TestAtSetAt(t *testing.T) {
	d := New(tern.Float64, tern.Shape{2, 2})
	d.SetAt(3.25, 1, 0)
	assert.Equal(t, 3.25, d.At(1, 0))
	assert.Equal(t, 3.25, d.FlatAt(2)) // row-major layout
}

func TestFromSliceWraps(t *testing.T) {
	data := []float64{1, 2, 3}
	d := FromFloat64s(tern.Shape{3}, data)
	data[1] = 99
	assert.Equal(t, 99.0, d.At(1), "FromFloat64s should wrap, not copy")
}

func TestCloneIsPrivate(t *testing.T) {
	d := FromFloat64s(tern.Shape{2}, []float64{1, 2})
	c := d.Clone()
	c.SetAt(42, 0)
	assert.Equal(t, 1.0, d.At(0))
}

func TestReshapeSharesData(t *testing.T) {
	d := FromFloat64s(tern.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	r, err := d.Reshape(tern.Shape{3, 2})
	require.NoError(t, err)
	r.SetAt(42, 0, 1)
	assert.Equal(t, 42.0, d.At(0, 1))
	_, err = d.Reshape(tern.Shape{4, 2})
	assert.Error(t, err, "reshape must preserve the element count")
}

func TestConvert(t *testing.T) {
	d := FromInt64s(tern.Shape{2}, []int64{3, 4})
	f := d.Convert(tern.Float64)
	assert.Equal(t, tern.Float64, f.DType())
	assert.Equal(t, 3.0, f.At(0))
}

func TestScalarValue(t *testing.T) {
	s := Scalar(tern.Float32, 2.5)
	assert.Equal(t, 2.5, s.ScalarValue())
	assert.True(t, s.Shape().IsScalar())
}

func TestSizeBytes(t *testing.T) {
	assert.Equal(t, 8*6, New(tern.Float64, tern.Shape{2, 3}).SizeBytes())
	assert.Equal(t, 4*6, New(tern.Float32, tern.Shape{2, 3}).SizeBytes())
}

func TestAddSub(t *testing.T) {
	a := FromFloat64s(tern.Shape{3}, []float64{1, 2, 3})
	b := FromFloat64s(tern.Shape{3}, []float64{10, 20, 30})
	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33}, sum.Float64s())
	diff, err := Sub(b, a)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 18, 27}, diff.Float64s())
}

func TestScalarBroadcast(t *testing.T) {
	a := FromFloat64s(tern.Shape{3}, []float64{1, 2, 3})
	s := Scalar(tern.Float64, 10)
	prod, err := Mul(a, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, prod.Float64s())
	prod, err = Mul(s, a)
	require.NoError(t, err)
	assert.Equal(t, tern.Shape{3}, prod.Shape())
}

func TestShapeMismatch(t *testing.T) {
	a := New(tern.Float64, tern.Shape{3})
	b := New(tern.Float64, tern.Shape{4})
	_, err := Add(a, b)
	assert.Error(t, err)
}

func TestIntDivByZero(t *testing.T) {
	a := FromInt64s(tern.Shape{2}, []int64{4, 9})
	b := FromInt64s(tern.Shape{2}, []int64{2, 0})
	_, err := Div(a, b)
	assert.Error(t, err)
}

func TestUnaryKernels(t *testing.T) {
	a := FromFloat64s(tern.Shape{2}, []float64{0, 1})
	e, err := Exp(a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e.At(0), 1e-12)
	assert.InDelta(t, 2.718281828, e.At(1), 1e-8)
	n, err := Neg(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1}, n.Float64s())
	sq, err := Sqr(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, sq.Float64s())
}

func TestSigmoidTanh(t *testing.T) {
	a := FromFloat64s(tern.Shape{1}, []float64{0})
	s, err := Sigmoid(a)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.At(0), 1e-12)
	th, err := Tanh(a)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, th.At(0), 1e-12)
}

func TestSumReduce(t *testing.T) {
	a := FromFloat64s(tern.Shape{2, 2}, []float64{1, 2, 3, 4})
	s := Sum(a)
	assert.True(t, s.Shape().IsScalar())
	assert.Equal(t, 10.0, s.ScalarValue())
}

func TestMatMul(t *testing.T) {
	a := FromFloat64s(tern.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	b := FromFloat64s(tern.Shape{3, 2}, []float64{7, 8, 9, 10, 11, 12})
	c, err := MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, tern.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, c.Float64s())
}

func TestMatMulFloat32(t *testing.T) {
	a := FromFloat32s(tern.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := FromFloat32s(tern.Shape{2, 2}, []float32{5, 6, 7, 8})
	c, err := MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{19, 22, 43, 50}, c.Float32s())
}

func TestMatMulInt64(t *testing.T) {
	a := FromInt64s(tern.Shape{2, 2}, []int64{1, 2, 3, 4})
	b := FromInt64s(tern.Shape{2, 2}, []int64{5, 6, 7, 8})
	c, err := MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int64{19, 22, 43, 50}, c.Int64s())
}

func TestMatMulDimMismatch(t *testing.T) {
	a := New(tern.Float64, tern.Shape{2, 3})
	b := New(tern.Float64, tern.Shape{2, 2})
	_, err := MatMul(a, b)
	assert.Error(t, err)
}

func TestTranspose2D(t *testing.T) {
	a := FromFloat64s(tern.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	tr, err := Transpose2D(a)
	// require, not assert: we index into the result below
	require.NoError(t, err)
	assert.Equal(t, tern.Shape{3, 2}, tr.Shape())
	assert.Equal(t, 2.0, tr.At(1, 0))
	assert.Equal(t, 6.0, tr.At(2, 1))
}

func TestAllClose(t *testing.T) {
	a := FromFloat64s(tern.Shape{2}, []float64{1, 2})
	b := FromFloat64s(tern.Shape{2}, []float64{1 + 1e-9, 2})
	assert.True(t, a.AllClose(b, 1e-6))
	assert.False(t, a.AllClose(b, 1e-12))
}
