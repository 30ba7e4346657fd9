package expr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// The tokens representing literal one-char lexemes
var literals = []string{"(", ")", ",", "=", "+", "-", "*", "/"}

// Token types. Literal lexemes are typed as their character value, so
// e.g. '(' scans as token type 40.
const (
	tokEOF = 0
	tokNum = -2
	tokID  = -3
)

var lexOnce sync.Once // monitors one-time DFA compilation
var lexer *lexmachine.Lexer
var lexerErr error

func sharedLexer() (*lexmachine.Lexer, error) {
	lexOnce.Do(func() {
		lexer = lexmachine.NewLexer()
		lexer.Add([]byte(`([a-z]|[A-Z]|_)([a-z]|[A-Z]|[0-9]|_)*`), makeToken(tokID))
		lexer.Add([]byte(`[0-9]+(\.[0-9]+)?`), makeToken(tokNum))
		lexer.Add([]byte(`( |\t|\n|\r)+`), skip)
		for _, lit := range literals {
			r := "\\" + strings.Join(strings.Split(lit, ""), "\\")
			lexer.Add([]byte(r), makeToken(int(lit[0])))
		}
		lexerErr = lexer.Compile()
	})
	return lexer, lexerErr
}

func makeToken(id int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(id, string(m.Bytes), m), nil
	}
}

func skip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// token is a scanned lexeme with its type and input position.
type token struct {
	typ    int
	lexeme string
	col    int
}

func (t token) String() string {
	if t.typ == tokEOF {
		return "<eof>"
	}
	return fmt.Sprintf("'%s'", t.lexeme)
}

// tokenize scans the complete input. Unrecognized characters are
// reported, not skipped.
func tokenize(input string) ([]token, error) {
	lx, err := sharedLexer()
	if err != nil {
		return nil, err
	}
	s, err := lx.Scanner([]byte(input))
	if err != nil {
		return nil, err
	}
	var toks []token
	for tok, err, eof := s.Next(); !eof; tok, err, eof = s.Next() {
		if err != nil {
			if ui, is := err.(*machines.UnconsumedInput); is {
				return nil, fmt.Errorf("expr: unexpected character at column %d", ui.FailColumn)
			}
			return nil, err
		}
		t := tok.(*lexmachine.Token)
		toks = append(toks, token{
			typ:    t.Type,
			lexeme: string(t.Lexeme),
			col:    t.StartColumn,
		})
	}
	toks = append(toks, token{typ: tokEOF})
	return toks, nil
}
