/*
Package tensor implements dense runtime values and the CPU kernels
operating on them.

A Dense holds a row-major contiguous block of float32, float64 or int64
elements together with its shape. The kernels in this package are the
execution substrate for compiled graphs: ops call into them during
Perform. Element-wise kernels are generic over the element type; matrix
multiplication goes through gonum's BLAS routines.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package tensor

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'tern.tensor'.
func tracer() tracing.Trace {
	return tracing.Select("tern.tensor")
}
