package tensor

import (
	"fmt"
	"math"

	"github.com/ternlang/tern"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// Element-wise kernels. Binary kernels accept operands of the same shape,
// or one scalar operand broadcast against the other side. All kernels
// allocate their result; in-place variants are an optimization the linkers
// may grow later.

type number interface {
	constraints.Float | constraints.Signed
}

func binKernel[T number](dst, a, b []T, f func(T, T) T) {
	switch {
	case len(a) == len(b):
		for i := range dst {
			dst[i] = f(a[i], b[i])
		}
	case len(a) == 1:
		for i := range dst {
			dst[i] = f(a[0], b[i])
		}
	case len(b) == 1:
		for i := range dst {
			dst[i] = f(a[i], b[0])
		}
	default:
		panic("tensor: unbroadcastable operands")
	}
}

func unKernel[T number](dst, a []T, f func(T) T) {
	for i := range dst {
		dst[i] = f(a[i])
	}
}

func binaryOutShape(a, b *Dense) (tern.Shape, error) {
	if a.dt != b.dt {
		return nil, fmt.Errorf("tensor: dtype mismatch %s vs %s", a.dt, b.dt)
	}
	switch {
	case a.shape.Eq(b.shape):
		return a.shape, nil
	case a.shape.IsScalar():
		return b.shape, nil
	case b.shape.IsScalar():
		return a.shape, nil
	}
	return nil, fmt.Errorf("tensor: incompatible shapes %s and %s", a.shape, b.shape)
}

func binary(a, b *Dense, f64 func(float64, float64) float64,
	f32 func(float32, float32) float32, i64 func(int64, int64) int64) (*Dense, error) {
	shape, err := binaryOutShape(a, b)
	if err != nil {
		return nil, err
	}
	out := New(a.dt, shape)
	switch a.dt {
	case tern.Float64:
		binKernel(out.f64, a.f64, b.f64, f64)
	case tern.Float32:
		binKernel(out.f32, a.f32, b.f32, f32)
	case tern.Int64:
		if i64 == nil {
			return nil, fmt.Errorf("tensor: operation undefined for %s", a.dt)
		}
		binKernel(out.i64, a.i64, b.i64, i64)
	}
	return out, nil
}

// Add computes a + b element-wise.
func Add(a, b *Dense) (*Dense, error) {
	return binary(a, b,
		func(x, y float64) float64 { return x + y },
		func(x, y float32) float32 { return x + y },
		func(x, y int64) int64 { return x + y })
}

// Sub computes a - b element-wise.
func Sub(a, b *Dense) (*Dense, error) {
	return binary(a, b,
		func(x, y float64) float64 { return x - y },
		func(x, y float32) float32 { return x - y },
		func(x, y int64) int64 { return x - y })
}

// Mul computes a * b element-wise.
func Mul(a, b *Dense) (*Dense, error) {
	return binary(a, b,
		func(x, y float64) float64 { return x * y },
		func(x, y float32) float32 { return x * y },
		func(x, y int64) int64 { return x * y })
}

// Div computes a / b element-wise. Floating-point division by zero yields
// Inf/NaN per IEEE; integer division by zero is an error.
func Div(a, b *Dense) (*Dense, error) {
	if a.dt == tern.Int64 {
		for i := range b.i64 {
			if b.i64[i] == 0 {
				return nil, fmt.Errorf("tensor: integer division by zero")
			}
		}
	}
	return binary(a, b,
		func(x, y float64) float64 { return x / y },
		func(x, y float32) float32 { return x / y },
		func(x, y int64) int64 { return x / y })
}

func unary(a *Dense, f64 func(float64) float64,
	f32 func(float32) float32, i64 func(int64) int64) (*Dense, error) {
	out := New(a.dt, a.shape)
	switch a.dt {
	case tern.Float64:
		unKernel(out.f64, a.f64, f64)
	case tern.Float32:
		unKernel(out.f32, a.f32, f32)
	case tern.Int64:
		if i64 == nil {
			return nil, fmt.Errorf("tensor: operation undefined for %s", a.dt)
		}
		unKernel(out.i64, a.i64, i64)
	}
	return out, nil
}

func floatUnary(a *Dense, f func(float64) float64) (*Dense, error) {
	return unary(a, f, func(x float32) float32 { return float32(f(float64(x))) }, nil)
}

// Neg computes -a.
func Neg(a *Dense) (*Dense, error) {
	return unary(a,
		func(x float64) float64 { return -x },
		func(x float32) float32 { return -x },
		func(x int64) int64 { return -x })
}

// Sqr computes a² element-wise.
func Sqr(a *Dense) (*Dense, error) {
	return unary(a,
		func(x float64) float64 { return x * x },
		func(x float32) float32 { return x * x },
		func(x int64) int64 { return x * x })
}

// Exp computes eᵃ element-wise (floating point only).
func Exp(a *Dense) (*Dense, error) { return floatUnary(a, math.Exp) }

// Log computes the natural logarithm element-wise (floating point only).
func Log(a *Dense) (*Dense, error) { return floatUnary(a, math.Log) }

// Tanh computes the hyperbolic tangent element-wise (floating point only).
func Tanh(a *Dense) (*Dense, error) { return floatUnary(a, math.Tanh) }

// Sigmoid computes 1/(1+e⁻ᵃ) element-wise (floating point only).
func Sigmoid(a *Dense) (*Dense, error) {
	return floatUnary(a, func(x float64) float64 { return 1 / (1 + math.Exp(-x)) })
}

// Sqrt computes the square root element-wise (floating point only).
func Sqrt(a *Dense) (*Dense, error) { return floatUnary(a, math.Sqrt) }

// Sum reduces to a scalar of the same dtype.
func Sum(a *Dense) *Dense {
	out := New(a.dt, tern.ScalarShape())
	switch a.dt {
	case tern.Float64:
		var acc float64
		for _, v := range a.f64 {
			acc += v
		}
		out.f64[0] = acc
	case tern.Float32:
		// accumulate in float64 to limit rounding drift
		var acc float64
		for _, v := range a.f32 {
			acc += float64(v)
		}
		out.f32[0] = float32(acc)
	case tern.Int64:
		var acc int64
		for _, v := range a.i64 {
			acc += v
		}
		out.i64[0] = acc
	}
	return out
}

// MatMul multiplies two rank-2 tensors. Floating-point inputs go through
// BLAS gemm; int64 falls back to a naive triple loop.
func MatMul(a, b *Dense) (*Dense, error) {
	if a.dt != b.dt {
		return nil, fmt.Errorf("tensor: dtype mismatch %s vs %s", a.dt, b.dt)
	}
	if a.shape.Rank() != 2 || b.shape.Rank() != 2 {
		return nil, fmt.Errorf("tensor: MatMul needs matrices, got %s and %s", a.shape, b.shape)
	}
	m, k1 := a.shape[0], a.shape[1]
	k2, n := b.shape[0], b.shape[1]
	if k1 != k2 {
		return nil, fmt.Errorf("tensor: inner dimensions disagree: %s · %s", a.shape, b.shape)
	}
	tracer().Debugf("gemm %s: (%d,%d)·(%d,%d)", a.dt, m, k1, k2, n)
	out := New(a.dt, tern.Shape{m, n})
	switch a.dt {
	case tern.Float64:
		ga := blas64.General{Rows: m, Cols: k1, Stride: k1, Data: a.f64}
		gb := blas64.General{Rows: k1, Cols: n, Stride: n, Data: b.f64}
		gc := blas64.General{Rows: m, Cols: n, Stride: n, Data: out.f64}
		blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, ga, gb, 0, gc)
	case tern.Float32:
		ga := blas32.General{Rows: m, Cols: k1, Stride: k1, Data: a.f32}
		gb := blas32.General{Rows: k1, Cols: n, Stride: n, Data: b.f32}
		gc := blas32.General{Rows: m, Cols: n, Stride: n, Data: out.f32}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, ga, gb, 0, gc)
	case tern.Int64:
		for i := 0; i < m; i++ {
			for l := 0; l < k1; l++ {
				v := a.i64[i*k1+l]
				if v == 0 {
					continue
				}
				row := b.i64[l*n : (l+1)*n]
				o := out.i64[i*n : (i+1)*n]
				for j, w := range row {
					o[j] += v * w
				}
			}
		}
	}
	return out, nil
}

// Transpose2D transposes a rank-2 tensor.
func Transpose2D(a *Dense) (*Dense, error) {
	if a.shape.Rank() != 2 {
		return nil, fmt.Errorf("tensor: Transpose2D needs a matrix, got %s", a.shape)
	}
	m, n := a.shape[0], a.shape[1]
	out := New(a.dt, tern.Shape{n, m})
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out.SetFlat(j*m+i, a.FlatAt(i*n+j))
		}
	}
	return out, nil
}
