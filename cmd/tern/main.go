package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/compile"
	"github.com/ternlang/tern/expr"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/tensor"
)

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

*/

func tracer() tracing.Trace {
	return gtrace.CoreTracer
}

// main() starts an interactive CLI, where users may enter math expressions
// over previously defined variables. Expressions are compiled and
// evaluated, with rewriting applied per the selected mode. The CLI is
// intended as a sandbox for experiments with graph construction and
// rewriting.
//
// Commands:
//
//	set x 3.5        define scalar variable x
//	vec v 1 2 3      define vector variable v
//	tree <expr>      show the expression graph as a tree
//	vars             list defined variables
//	<expr>           compile, evaluate and print
//
func main() {
	// set up logging
	initDisplay()
	gtrace.CoreTracer = gologadapter.New()
	tlevel := flag.String("trace", "Info", "Trace level [Debug|Info|Error]")
	mode := flag.String("mode", "FAST_RUN", "Compilation mode [FAST_RUN|FAST_COMPILE|DEBUG_MODE]")
	flag.Parse()
	tracer().SetTraceLevel(tracing.TraceLevelFromString(*tlevel))
	pterm.Info.Println("Welcome to tern") // colored welcome message
	m, err := compile.ModeByName(*mode)
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(2)
	}
	//
	// set up REPL
	repl, err := readline.New("tern> ")
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(3)
	}
	intp := &Intp{
		repl:  repl,
		scope: expr.NewScope("repl", nil),
		mode:  m,
	}
	tracer().Infof("Quit with <ctrl>D") // inform user how to stop the CLI
	intp.REPL()
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.EnableDebugMessages()
	pterm.Info.Prefix = pterm.Prefix{
		Text:  "  >>",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "  Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

// Intp is our interpreter object
type Intp struct {
	repl  *readline.Instance
	scope *expr.Scope
	mode  compile.Mode
}

// REPL starts interactive mode.
func (intp *Intp) REPL() {
	for {
		line, err := intp.repl.Readline()
		if err != nil { // io.EOF
			break
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		quit, err := intp.Execute(line)
		if err != nil {
			pterm.Error.Println(err.Error())
			continue
		}
		if quit {
			break
		}
	}
	println("Good bye!")
}

// Execute handles a single input line: either a command or an expression
// to evaluate.
func (intp *Intp) Execute(line string) (bool, error) {
	args := strings.Fields(line)
	switch args[0] {
	case "quit", "exit":
		return true, nil
	case "vars":
		for _, name := range intp.scope.Names() {
			v, _ := intp.scope.Resolve(name)
			if s, ok := v.UData.(*compile.SharedVariable); ok {
				pterm.Info.Println(name + " = " + s.GetValue(true).String())
			}
		}
		return false, nil
	case "set":
		if len(args) != 3 {
			return false, fmt.Errorf("usage: set <name> <value>")
		}
		val, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return false, fmt.Errorf("malformed value %q", args[2])
		}
		return false, intp.define(args[1], tensor.Scalar(tern.Float64, val))
	case "vec":
		if len(args) < 3 {
			return false, fmt.Errorf("usage: vec <name> <value>...")
		}
		data := make([]float64, len(args)-2)
		for i, a := range args[2:] {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return false, fmt.Errorf("malformed value %q", a)
			}
			data[i] = v
		}
		return false, intp.define(args[1], tensor.FromFloat64s(tern.Shape{len(data)}, data))
	case "tree":
		v, err := expr.Parse(strings.TrimPrefix(line, "tree"), intp.scope)
		if err != nil {
			return false, err
		}
		printTree(v)
		return false, nil
	}
	return false, intp.Eval(line)
}

func (intp *Intp) define(name string, val *tensor.Dense) error {
	s, err := compile.Shared(name, val)
	if err != nil {
		return err
	}
	intp.scope.Define(name, s.Variable)
	return nil
}

// Eval compiles and evaluates an expression over the defined variables.
func (intp *Intp) Eval(line string) error {
	v, err := expr.Parse(line, intp.scope)
	if err != nil {
		return err
	}
	f, err := compile.NewFunction(nil, []*graph.Variable{v},
		compile.WithMode(intp.mode), compile.WithName("repl"))
	if err != nil {
		return err
	}
	out, err := f.Call1()
	if err != nil {
		return err
	}
	pterm.Info.Println(out.String())
	return nil
}

// printTree renders an expression graph as a tree on the terminal.
func printTree(v *graph.Variable) {
	ll := leveledGraph(v, pterm.LeveledList{}, 0)
	tracer().Debugf("|ll| = %d, ll = %v", len(ll), ll)
	root := pterm.NewTreeFromLeveledList(ll)
	pterm.DefaultTree.WithRoot(root).Render()
}

func leveledGraph(v *graph.Variable, ll pterm.LeveledList, level int) pterm.LeveledList {
	ll = append(ll, pterm.LeveledListItem{
		Level: level,
		Text:  nodeLabel(v),
	})
	if v.Owner != nil {
		for _, in := range v.Owner.Inputs {
			ll = leveledGraph(in, ll, level+1)
		}
	}
	return ll
}

func nodeLabel(v *graph.Variable) string {
	if v.Owner != nil {
		return v.Owner.Op.Name()
	}
	if v.IsConstant() {
		return v.Const.String()
	}
	return v.Name
}
