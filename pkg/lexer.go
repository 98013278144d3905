package kaleido

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type TokenType uint64
type stateFunc func(l *Lexer) stateFunc

//go:generate stringer -type=TokenType -trimprefix=Token
const (
	EOF rune = 0

	TokenError TokenType = iota
	TokenEOF
	TokenNumber
	TokenIdentifier

	TokenDef
	TokenExtern
	TokenIf
	TokenThen
	TokenElse
	TokenFor
	TokenIn
	TokenVar
	TokenBinary
	TokenUnary

	TokenOperator
	TokenOpenParentheses
	TokenCloseParentheses
	TokenComma
	TokenSemicolon
)

var keywordTable = map[string]TokenType{
	"def":    TokenDef,
	"extern": TokenExtern,
	"if":     TokenIf,
	"then":   TokenThen,
	"else":   TokenElse,
	"for":    TokenFor,
	"in":     TokenIn,
	"var":    TokenVar,
	"binary": TokenBinary,
	"unary":  TokenUnary,
}

// Punctuation with a fixed grammatical role. Every other symbol becomes a
// generic TokenOperator and is interpreted by the parser against its live
// operator tables.
var structuralTable = map[rune]TokenType{
	'(': TokenOpenParentheses,
	')': TokenCloseParentheses,
	',': TokenComma,
	';': TokenSemicolon,
}

type Location struct {
	File string
	Line int
	Col  int
}

func (l *Location) String() string {
	if l == nil {
		return "-"
	}

	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

type LexErrorKind int

const (
	LexInvalidNumber LexErrorKind = iota
	LexUnexpectedChar
)

type LexError struct {
	Kind LexErrorKind
	Text string
	Loc  *Location
}

func (e *LexError) Error() string {
	switch e.Kind {
	case LexInvalidNumber:
		return fmt.Sprintf("%s invalid number '%s'", e.Loc, e.Text)
	default:
		return fmt.Sprintf("%s unexpected character %q", e.Loc, e.Text)
	}
}

type Token struct {
	Typ   TokenType
	Value string
	Loc   *Location
	Err   *LexError
}

func (t Token) isValid() bool {
	return t.Typ != TokenError && t.Typ != TokenEOF
}

func (t Token) describe() string {
	switch t.Typ {
	case TokenEOF:
		return "end of file"
	case TokenError:
		return fmt.Sprintf("invalid token '%s'", t.Value)
	default:
		return "'" + t.Value + "'"
	}
}

type Tokenizer interface {
	Do()
	Get() Token
	GetFilename() string
}

type Lexer struct {
	filename string
	reader   *bufio.Reader
	done     chan Token

	line  int
	col   int
	start *Location
}

func NewLexer(filename string) (*Lexer, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	l := NewLexerFromReader(strings.NewReader(string(data)))
	l.filename = filename

	return l, nil
}

func NewLexerFromReader(reader io.Reader) *Lexer {
	return &Lexer{
		filename: "input",
		reader:   bufio.NewReader(reader),
		done:     make(chan Token),
		line:     1,
		col:      1,
	}
}

func (l *Lexer) GetFilename() string {
	return l.filename
}

func (l *Lexer) Chan() chan Token {
	return l.done
}

func (l *Lexer) Do() {
	for state := defaultState; state != nil; {
		state = state(l)
	}

	close(l.done)
}

func (l *Lexer) Get() Token {
	tok, ok := <-l.done
	if !ok {
		return Token{Typ: TokenEOF, Loc: l.loc()}
	}

	return tok
}

func (l *Lexer) RunBlocking() ([]Token, error) {
	go l.Do()

	var tokens []Token
	for {
		t := l.Get()
		if t.Typ == TokenEOF {
			return tokens, nil
		}

		if t.Typ == TokenError {
			return nil, t.Err
		}

		tokens = append(tokens, t)
	}
}

func defaultState(l *Lexer) stateFunc {
	for {
		switch r := l.peek(); {
		case r == EOF:
			l.start = l.loc()
			l.emmitValue(TokenEOF, "")
			return nil
		case unicode.IsSpace(r):
			l.next()
			continue
		case r == '#':
			return lineCommentState
		case r == '_' || unicode.IsLetter(r):
			l.start = l.loc()
			return identifierState
		case '0' <= r && r <= '9':
			l.start = l.loc()
			return numberState
		default:
			l.start = l.loc()
			return operatorState
		}
	}
}

// Comments run to the end of the line and are discarded, they never reach
// the parser.
func lineCommentState(l *Lexer) stateFunc {
	for r := l.peek(); r != '\n' && r != EOF; r = l.peek() {
		l.next()
	}

	return defaultState
}

func identifierState(l *Lexer) stateFunc {
	var id strings.Builder
	for r := l.peek(); r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r); r = l.peek() {
		id.WriteRune(l.next())
	}

	if t, ok := keywordTable[id.String()]; ok {
		return l.emmitValue(t, id.String())
	}

	return l.emmitValue(TokenIdentifier, id.String())
}

func numberState(l *Lexer) stateFunc {
	var num strings.Builder
	dot := false
	for {
		r := l.peek()
		if r == '.' {
			if dot {
				num.WriteRune(l.next())
				return l.errorf(LexInvalidNumber, num.String())
			}

			dot = true
		} else if r < '0' || r > '9' {
			break
		}

		num.WriteRune(l.next())
	}

	if _, err := strconv.ParseFloat(num.String(), 64); err != nil {
		return l.errorf(LexInvalidNumber, num.String())
	}

	return l.emmitValue(TokenNumber, num.String())
}

func operatorState(l *Lexer) stateFunc {
	r := l.next()
	if tok, ok := structuralTable[r]; ok {
		return l.emmitValue(tok, string(r))
	}

	if r == utf8.RuneError || unicode.IsControl(r) {
		return l.errorf(LexUnexpectedChar, string(r))
	}

	return l.emmitValue(TokenOperator, string(r))
}

// errorf emits an error token and resumes scanning at the next character, so
// one bad token does not hide the rest of the input.
func (l *Lexer) errorf(kind LexErrorKind, text string) stateFunc {
	err := &LexError{
		Kind: kind,
		Text: text,
		Loc:  l.start,
	}

	l.done <- Token{
		Typ:   TokenError,
		Value: text,
		Loc:   l.start,
		Err:   err,
	}

	return defaultState
}

func (l *Lexer) emmitValue(t TokenType, val string) stateFunc {
	l.done <- Token{
		Typ:   t,
		Value: val,
		Loc:   l.start,
	}

	return defaultState
}

func (l *Lexer) loc() *Location {
	return &Location{
		File: l.filename,
		Line: l.line,
		Col:  l.col,
	}
}

func (l *Lexer) peek() rune {
	r, _, err := l.reader.ReadRune()
	if err != nil {
		if err == io.EOF {
			return EOF
		}

		return utf8.RuneError
	}

	_ = l.reader.UnreadRune()

	return r
}

func (l *Lexer) next() rune {
	r, _, err := l.reader.ReadRune()
	if err != nil {
		if err == io.EOF {
			return EOF
		}

		return utf8.RuneError
	}

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}

	return r
}
