/*
Package tern is a symbolic tensor expression compiler.

Tern builds symbolic computation graphs over tensors, rewrites and
optimizes them, differentiates them, and lowers them into executable
functions running on CPU kernels. Package structure is as follows:

■ graph: Package graph implements the symbolic IR: variables, apply
nodes, the Op interface and rewritable function graphs.

■ rewrite: Package rewrite implements the graph rewrite database with
tagged rewriters, merging of common subexpressions, constant folding
and algebraic canonicalization.

■ ops: Package ops implements tensor operations with shape inference
and gradient rules, including 2-D correlation.

■ grad: Package grad implements reverse-mode automatic differentiation
over graphs.

■ tensor: Package tensor implements dense runtime values and the CPU
kernels executing them; tensor/sparse adds sparse matrices.

■ compile: Package compile turns graphs into callable functions:
compilation modes, shared variables, linkers and storage management.

■ expr: Package expr is a small infix frontend for writing graphs as
text.

The base package contains data types which are used throughout all the
other packages.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package tern
