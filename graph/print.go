package graph

import (
	"fmt"
	"strings"
)

// Sprint renders the expression tree below each output, one line per node,
// indented by depth. Shared subexpressions are printed once and referenced
// afterwards.
func Sprint(outputs ...*Variable) string {
	var sb strings.Builder
	seen := make(map[*Apply]int)
	n := 0
	var walk func(v *Variable, depth int)
	walk = func(v *Variable, depth int) {
		indent := strings.Repeat(" ", depth*2)
		switch {
		case v.IsConstant():
			fmt.Fprintf(&sb, "%sconst %s\n", indent, v.Const)
		case v.Owner == nil:
			fmt.Fprintf(&sb, "%s%s\n", indent, v)
		default:
			if id, ok := seen[v.Owner]; ok {
				fmt.Fprintf(&sb, "%s%s [see #%d]\n", indent, v.Owner.Op.Name(), id)
				return
			}
			seen[v.Owner] = n
			fmt.Fprintf(&sb, "%s%s:%s%s [#%d]\n", indent, v.Owner.Op.Name(), v.DType, v.Shape, n)
			n++
			for _, in := range v.Owner.Inputs {
				walk(in, depth+1)
			}
		}
	}
	for _, out := range outputs {
		walk(out, 0)
	}
	return sb.String()
}
