/*
Package ops implements the tensor operations of tern.

Every op validates its inputs and infers output dtype and shape in
MakeNode, executes on dense values in Perform, and, when it is
differentiable, contributes gradient subgraphs through Grad. The
public functions (Add, Mul, Dot, Corr2D, …) are the expression-building
API: they apply the op to variables and hand back the output variable.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package ops

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'tern.ops'.
func tracer() tracing.Trace {
	return tracing.Select("tern.ops")
}
