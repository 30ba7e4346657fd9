/*
Package rewrite transforms expression graphs before they are linked.

Rewriters are registered in a database under tags, and a compilation mode
selects rewriters by querying the database with include/exclude tag sets.
The standard database ships three rewriters: merging of structurally
identical subexpressions, folding of constant subexpressions, and a set
of local algebraic simplifications.

______________________________________________________________________

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package rewrite

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'tern.rewrite'.
func tracer() tracing.Trace {
	return tracing.Select("tern.rewrite")
}
