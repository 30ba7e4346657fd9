package compile

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternlang/tern/rewrite"
)

// Mode pairs a rewriter query with a linker. The query picks the graph
// rewriters to run, the linker the evaluation strategy.
type Mode struct {
	Linker string
	Query  rewrite.Query
}

// Including returns a copy of the mode with additional rewriter tags
// included.
func (m Mode) Including(tags ...string) Mode {
	return Mode{Linker: m.Linker, Query: m.Query.Including(tags...)}
}

// Excluding returns a copy of the mode with additional rewriter tags
// excluded.
func (m Mode) Excluding(tags ...string) Mode {
	return Mode{Linker: m.Linker, Query: m.Query.Excluding(tags...)}
}

func (m Mode) String() string {
	return fmt.Sprintf("mode{%s, %v}", m.Linker, m.Query)
}

// Named linkers. 'perform' walks the graph node by node, 'vm' precomputes
// a schedule and releases intermediate storage as soon as it is dead,
// 'vm_nogc' keeps all intermediate storage for the lifetime of the call,
// 'pvm' evaluates independent nodes concurrently, and 'debug' verifies
// graph integrity around every step.
const (
	LinkerPerform = "perform"
	LinkerVM      = "vm"
	LinkerVMNoGC  = "vm_nogc"
	LinkerPVM     = "pvm"
	LinkerDebug   = "debug"
)

var modesMu sync.Mutex
var modes = map[string]Mode{
	"FAST_RUN":     {Linker: LinkerVM, Query: rewrite.NewQuery("fast_run")},
	"FAST_COMPILE": {Linker: LinkerPerform, Query: rewrite.NewQuery("fast_compile")},
	"DEBUG_MODE":   {Linker: LinkerDebug, Query: rewrite.NewQuery("fast_run")},
}

// FastRun is the default mode: full rewriting, schedule-based linker.
func FastRun() Mode { return mustMode("FAST_RUN") }

// FastCompile trades rewriting effort for compilation speed.
func FastCompile() Mode { return mustMode("FAST_COMPILE") }

// DebugMode checks graph integrity at every evaluation step.
func DebugMode() Mode { return mustMode("DEBUG_MODE") }

// ModeByName looks up a registered mode.
func ModeByName(name string) (Mode, error) {
	modesMu.Lock()
	defer modesMu.Unlock()
	m, ok := modes[name]
	if !ok {
		return Mode{}, fmt.Errorf("compile: unknown mode %q, have %v", name, modeNames())
	}
	return m, nil
}

// RegisterMode adds a mode under a name, replacing any previous
// registration.
func RegisterMode(name string, m Mode) {
	modesMu.Lock()
	defer modesMu.Unlock()
	modes[name] = m
}

func mustMode(name string) Mode {
	m, err := ModeByName(name)
	if err != nil {
		panic(err)
	}
	return m
}

func modeNames() []string {
	var names []string
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
