package expr

import (
	"fmt"
	"strconv"

	"github.com/ternlang/tern"
	"github.com/ternlang/tern/graph"
	"github.com/ternlang/tern/ops"
)

// builtin functions callable from expressions
var builtins = map[string]func(*graph.Variable) (*graph.Variable, error){
	"exp":     ops.Exp,
	"log":     ops.Log,
	"tanh":    ops.Tanh,
	"sigmoid": ops.Sigmoid,
	"sqrt":    ops.Sqrt,
	"sqr":     ops.Sqr,
	"neg":     ops.Neg,
	"sum":     ops.Sum,
	"mean":    ops.Mean,
	"ones":    ops.OnesLike,
	"zeros":   ops.ZerosLike,
}

// binary builtins
var builtins2 = map[string]func(*graph.Variable, *graph.Variable) (*graph.Variable, error){
	"dot":  ops.Dot,
	"fill": ops.Fill,
}

// Parse turns an expression string into a graph variable, resolving
// identifiers against the scope.
//
//	expr   → term (('+'|'-') term)*
//	term   → factor (('*'|'/') factor)*
//	factor → '-' factor | primary
//	primary→ NUM | ID | ID '(' expr (',' expr)? ')' | '(' expr ')'
func Parse(input string, scope *Scope) (*graph.Variable, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, scope: scope}
	v, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokEOF {
		return nil, fmt.Errorf("expr: trailing input at %v", p.peek())
	}
	return v, nil
}

type parser struct {
	toks  []token
	pos   int
	scope *Scope
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ int) (token, error) {
	t := p.next()
	if t.typ != typ {
		return t, fmt.Errorf("expr: expected '%c', found %v", rune(typ), t)
	}
	return t, nil
}

func (p *parser) expr() (*graph.Variable, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().typ {
		case '+':
			p.next()
			right, err := p.term()
			if err != nil {
				return nil, err
			}
			if left, err = ops.Add(left, right); err != nil {
				return nil, err
			}
		case '-':
			p.next()
			right, err := p.term()
			if err != nil {
				return nil, err
			}
			if left, err = ops.Sub(left, right); err != nil {
				return nil, err
			}
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (*graph.Variable, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().typ {
		case '*':
			p.next()
			right, err := p.factor()
			if err != nil {
				return nil, err
			}
			if left, err = ops.Mul(left, right); err != nil {
				return nil, err
			}
		case '/':
			p.next()
			right, err := p.factor()
			if err != nil {
				return nil, err
			}
			if left, err = ops.Div(left, right); err != nil {
				return nil, err
			}
		default:
			return left, nil
		}
	}
}

func (p *parser) factor() (*graph.Variable, error) {
	if p.peek().typ == '-' {
		p.next()
		v, err := p.factor()
		if err != nil {
			return nil, err
		}
		return ops.Neg(v)
	}
	return p.primary()
}

func (p *parser) primary() (*graph.Variable, error) {
	t := p.next()
	switch t.typ {
	case tokNum:
		val, err := strconv.ParseFloat(t.lexeme, 64)
		if err != nil {
			return nil, fmt.Errorf("expr: malformed number %v", t)
		}
		return graph.ScalarConstant(tern.Float64, val), nil
	case tokID:
		if p.peek().typ == '(' {
			return p.call(t.lexeme)
		}
		v, ok := p.scope.Resolve(t.lexeme)
		if !ok {
			return nil, fmt.Errorf("expr: undefined variable %s", t.lexeme)
		}
		return v, nil
	case '(':
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(')'); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("expr: unexpected %v", t)
}

func (p *parser) call(name string) (*graph.Variable, error) {
	if _, err := p.expect('('); err != nil {
		return nil, err
	}
	arg, err := p.expr()
	if err != nil {
		return nil, err
	}
	if fn2, ok := builtins2[name]; ok {
		if _, err := p.expect(','); err != nil {
			return nil, fmt.Errorf("expr: %s takes two arguments", name)
		}
		arg2, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(')'); err != nil {
			return nil, err
		}
		return fn2(arg, arg2)
	}
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("expr: unknown function %s", name)
	}
	if _, err := p.expect(')'); err != nil {
		return nil, err
	}
	return fn(arg)
}
