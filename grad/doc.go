/*
Package grad derives gradient graphs by reverse-mode accumulation.

Given a scalar cost expression, Grad walks the expression graph from the
cost back to a set of target variables, asking each operation for its
local gradient contributions and summing contributions where paths in the
graph join. The result is a new set of symbolic variables, one per
target, which compile and evaluate like any other expression.

______________________________________________________________________

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package grad

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'tern.grad'.
func tracer() tracing.Trace {
	return tracing.Select("tern.grad")
}
