package expr

import (
	"fmt"
	"sort"

	"github.com/ternlang/tern/graph"
)

// Symbol tables for expression variables. Symbol tables are attached to
// scopes; scopes form a tree, with lookups walking towards the root.

// SymbolTable stores variable bindings (map-like semantics).
type SymbolTable struct {
	Table map[string]*graph.Variable
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{Table: make(map[string]*graph.Variable)}
}

// ResolveVar checks for a binding in the symbol table. Returns a variable
// or nil.
func (t *SymbolTable) ResolveVar(name string) *graph.Variable {
	return t.Table[name]
}

// DefineVar binds a name, overwriting any previous binding. Returns the
// shadowed variable, if any.
func (t *SymbolTable) DefineVar(name string, v *graph.Variable) *graph.Variable {
	old := t.Table[name]
	t.Table[name] = v
	return old
}

// Scope is a node in the scope tree, carrying a symbol table.
type Scope struct {
	Name   string
	Parent *Scope
	symtab *SymbolTable
}

// NewScope creates a scope below a parent. The root scope has a nil
// parent.
func NewScope(name string, parent *Scope) *Scope {
	return &Scope{
		Name:   name,
		Parent: parent,
		symtab: NewSymbolTable(),
	}
}

func (sc *Scope) String() string {
	return fmt.Sprintf("<scope %s>", sc.Name)
}

// Define binds a name in this scope.
func (sc *Scope) Define(name string, v *graph.Variable) *graph.Variable {
	tracer().Debugf("defining %s in %v", name, sc)
	return sc.symtab.DefineVar(name, v)
}

// Resolve looks a name up in this scope and its ancestors.
func (sc *Scope) Resolve(name string) (*graph.Variable, bool) {
	for s := sc; s != nil; s = s.Parent {
		if v := s.symtab.ResolveVar(name); v != nil {
			return v, true
		}
	}
	return nil, false
}

// Names returns the names bound in this scope (not its ancestors), sorted.
func (sc *Scope) Names() []string {
	var names []string
	for name := range sc.symtab.Table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
