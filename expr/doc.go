/*
Package expr parses textual math expressions into graphs.

The frontend is intentionally small: numbers, identifiers, the usual
arithmetic operators and a set of builtin functions. Identifiers resolve
against a scope, so a host (the REPL, tests) declares variables first and
then parses expressions over them.

______________________________________________________________________

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package expr

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'tern.expr'.
func tracer() tracing.Trace {
	return tracing.Select("tern.expr")
}
