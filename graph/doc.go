/*
Package graph implements the symbolic IR of tern.

Expressions are directed acyclic graphs. Leaf nodes are Variables,
either free inputs or constants, and interior nodes are Apply nodes pairing
an Op with its input variables. Ops describe how to build a node
(validation plus dtype/shape inference) and how to execute it on dense
runtime values. The FGraph type wraps a set of outputs into a
rewritable graph that tracks, for every variable, the apply nodes
consuming it, so rewriters can substitute subgraphs without breaking
client links.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package graph

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'tern.graph'.
func tracer() tracing.Trace {
	return tracing.Select("tern.graph")
}
