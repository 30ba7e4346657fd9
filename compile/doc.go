/*
Package compile turns expression graphs into callable functions.

A function is built from input variables and output expressions. Building
clones the graph, runs the rewriters selected by a compilation mode, and
links the result into an executable schedule. Modes pair a rewriter query
with a linker; linkers differ in evaluation strategy and in whether they
release intermediate storage during a call.

Shared variables carry state between calls: their values live in
containers owned by the variable, functions read them as implicit inputs,
and update expressions write them back after every call.

______________________________________________________________________

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package compile

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'tern.compile'.
func tracer() tracing.Trace {
	return tracing.Select("tern.compile")
}
