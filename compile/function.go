package compile

import (
	"fmt"
	"sync"

	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/rewrite"
	"github.com/ternlang/tern/tensor"
)

// Update writes the value of an expression into a shared variable after
// every call.
type Update struct {
	Shared *SharedVariable
	Expr   *graph.Variable
}

type config struct {
	mode     Mode
	updates  []Update
	db       *rewrite.Database
	name     string
	downcast bool
}

// Option configures function construction.
type Option func(*config)

// WithMode selects the compilation mode. Default is FAST_RUN.
func WithMode(m Mode) Option {
	return func(cfg *config) { cfg.mode = m }
}

// WithUpdates attaches shared-variable updates.
func WithUpdates(ups ...Update) Option {
	return func(cfg *config) { cfg.updates = append(cfg.updates, ups...) }
}

// WithDatabase substitutes the rewriter database the mode's query runs
// against. Default is the standard database.
func WithDatabase(db *rewrite.Database) Option {
	return func(cfg *config) { cfg.db = db }
}

// WithName names the function for tracing and error messages.
func WithName(name string) Option {
	return func(cfg *config) { cfg.name = name }
}

// WithAllowDowncast permits call arguments to be converted to a
// narrower float input dtype (float64 to float32, integers to float)
// instead of rejecting the call. Conversions to integer dtypes are
// never permitted.
func WithAllowDowncast() Option {
	return func(cfg *config) { cfg.downcast = true }
}

// Function is a compiled, callable expression. Shared variables read
// their state before and write their updates after every call. A
// Function may be called from multiple goroutines; calls are serialized.
type Function struct {
	mu       sync.Mutex
	name     string
	inputs   []*graph.Variable
	shared   []*SharedVariable
	numOuts  int
	updates  []Update
	prog     *program
	downcast bool
}

// NewFunction compiles output expressions over the given input variables.
// Shared variables occurring in the expressions are picked up implicitly
// and must not be listed as inputs.
func NewFunction(inputs, outputs []*graph.Variable, opts ...Option) (*Function, error) {
	cfg := &config{mode: FastRun(), db: rewrite.StdDB(), name: "function"}
	for _, opt := range opts {
		opt(cfg)
	}
	for _, in := range inputs {
		if asShared(in) != nil {
			return nil, fmt.Errorf("compile: %s: shared variable %s cannot be an explicit input",
				cfg.name, in.Name)
		}
	}
	updates, err := resolveUpdates(cfg, outputs)
	if err != nil {
		return nil, err
	}
	all := make([]*graph.Variable, 0, len(outputs)+len(updates))
	all = append(all, outputs...)
	for _, up := range updates {
		all = append(all, up.Expr)
	}
	shared, err := implicitInputs(cfg.name, inputs, all)
	if err != nil {
		return nil, err
	}
	// clone so rewriting never touches the caller's graph
	cloned, err := graph.CloneWithReplace(all, nil)
	if err != nil {
		return nil, err
	}
	fgInputs := make([]*graph.Variable, 0, len(inputs)+len(shared))
	fgInputs = append(fgInputs, inputs...)
	for _, s := range shared {
		fgInputs = append(fgInputs, s.Variable)
	}
	fg, err := graph.NewFGraph(fgInputs, cloned)
	if err != nil {
		return nil, err
	}
	before := fg.NumApplies()
	if err := rewrite.ApplyAll(fg, cfg.db.Select(cfg.mode.Query)); err != nil {
		return nil, err
	}
	tracer().Infof("%s: rewritten from %d to %d nodes", cfg.name, before, fg.NumApplies())
	prog, err := link(fg, cfg.mode.Linker)
	if err != nil {
		return nil, err
	}
	return &Function{
		name:     cfg.name,
		inputs:   inputs,
		shared:   shared,
		numOuts:  len(outputs),
		updates:  updates,
		prog:     prog,
		downcast: cfg.downcast,
	}, nil
}

// resolveUpdates validates the explicit updates and folds in default
// updates of shared variables the expressions reach. An explicit update
// overrides a default update on the same variable.
func resolveUpdates(cfg *config, outputs []*graph.Variable) ([]Update, error) {
	updates := make([]Update, 0, len(cfg.updates))
	updated := make(map[*SharedVariable]bool)
	for _, up := range cfg.updates {
		if up.Shared == nil || up.Expr == nil {
			return nil, fmt.Errorf("compile: %s: incomplete update", cfg.name)
		}
		if updated[up.Shared] {
			return nil, fmt.Errorf("compile: %s: duplicate update for %s", cfg.name, up.Shared.Name)
		}
		if up.Expr.DType != up.Shared.DType {
			return nil, fmt.Errorf("compile: %s: update for %s has dtype %s, variable holds %s",
				cfg.name, up.Shared.Name, up.Expr.DType, up.Shared.DType)
		}
		if _, err := up.Shared.Shape.Unify(up.Expr.Shape); err != nil {
			return nil, fmt.Errorf("compile: %s: update for %s: %v", cfg.name, up.Shared.Name, err)
		}
		updated[up.Shared] = true
		updates = append(updates, up)
	}
	// follow default updates transitively: an update expression may reach
	// further shared variables with defaults of their own
	frontier := make([]*graph.Variable, 0, len(outputs)+len(updates))
	frontier = append(frontier, outputs...)
	for _, up := range updates {
		frontier = append(frontier, up.Expr)
	}
	for len(frontier) > 0 {
		var next []*graph.Variable
		for _, v := range graph.Inputs(frontier) {
			s := asShared(v)
			if s == nil || updated[s] || s.DefaultUpdate() == nil {
				continue
			}
			updated[s] = true
			updates = append(updates, Update{Shared: s, Expr: s.DefaultUpdate()})
			next = append(next, s.DefaultUpdate())
		}
		frontier = next
	}
	return updates, nil
}

// implicitInputs collects the shared variables among the free variables
// of the expressions and checks that everything else was declared.
func implicitInputs(name string, declared, outputs []*graph.Variable) ([]*SharedVariable, error) {
	isDeclared := make(map[*graph.Variable]bool, len(declared))
	for _, in := range declared {
		isDeclared[in] = true
	}
	var shared []*SharedVariable
	for _, v := range graph.Inputs(outputs) {
		if s := asShared(v); s != nil {
			shared = append(shared, s)
			continue
		}
		if !isDeclared[v] {
			return nil, fmt.Errorf("compile: %s: %s is used but not an input", name, v)
		}
	}
	return shared, nil
}

// Call evaluates the function. Arguments match the input variables in
// order and dtype; conversions happen only under WithAllowDowncast.
func (f *Function) Call(args ...*tensor.Dense) ([]*tensor.Dense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(args) != len(f.inputs) {
		return nil, fmt.Errorf("compile: %s takes %d arguments, got %d", f.name, len(f.inputs), len(args))
	}
	storage := make(map[*graph.Variable]*tensor.Dense, len(args)+len(f.shared))
	for i, arg := range args {
		in := f.inputs[i]
		if arg.DType() != in.DType {
			if !f.downcast || !in.DType.IsFloat() {
				return nil, fmt.Errorf("compile: %s: argument %d is %s, %s expects %s",
					f.name, i, arg.DType(), in.Name, in.DType)
			}
			arg = arg.Convert(in.DType)
		}
		if _, err := in.Shape.Unify(arg.Shape()); err != nil {
			return nil, fmt.Errorf("compile: %s: argument %d: %v", f.name, i, err)
		}
		storage[in] = arg
	}
	for _, s := range f.shared {
		storage[s.Variable] = s.container.value
	}
	outs, err := f.prog.Run(storage)
	if err != nil {
		return nil, err
	}
	for i, up := range f.updates {
		up.Shared.container.value = outs[f.numOuts+i]
	}
	return outs[:f.numOuts], nil
}

// Call1 evaluates a single-output function.
func (f *Function) Call1(args ...*tensor.Dense) (*tensor.Dense, error) {
	outs, err := f.Call(args...)
	if err != nil {
		return nil, err
	}
	if len(outs) != 1 {
		return nil, fmt.Errorf("compile: %s has %d outputs", f.name, len(outs))
	}
	return outs[0], nil
}

// NumApplies returns the number of apply nodes in the linked graph, after
// rewriting.
func (f *Function) NumApplies() int {
	return f.prog.fg.NumApplies()
}

// StorageFootprint returns the bytes of intermediate and output storage
// the most recent call left behind. Linkers that release dead storage
// during a call report smaller footprints.
func (f *Function) StorageFootprint() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prog.footprint
}
