package kaleido

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type BufferedTokenizerMocker struct {
	buf []Token
	pos int
}

func NewBufferedTokenizerMocker(toks []Token) *BufferedTokenizerMocker {
	return &BufferedTokenizerMocker{
		buf: toks,
		pos: 0,
	}
}

func (b *BufferedTokenizerMocker) Do() {
	return
}

func (b *BufferedTokenizerMocker) Get() Token {
	if len(b.buf) <= b.pos {
		return Token{Typ: TokenEOF}
	}

	tok := b.buf[b.pos]
	b.pos++

	return tok
}

func (b *BufferedTokenizerMocker) GetFilename() string {
	return "testing"
}

func tok(typ TokenType, value string) Token {
	return Token{Typ: typ, Value: value}
}

func parseSource(src string) (*AST, error) {
	return NewParser(NewLexerFromReader(strings.NewReader(src))).Run()
}

func TestParser(t *testing.T) {
	cases := []struct {
		data   []Token
		fail   bool
		expect []Node
	}{
		{
			[]Token{
				tok(TokenDef, "def"),
				tok(TokenIdentifier, "foo"),
				tok(TokenOpenParentheses, "("),
				tok(TokenIdentifier, "a"),
				tok(TokenIdentifier, "b"),
				tok(TokenCloseParentheses, ")"),
				tok(TokenIdentifier, "a"),
				tok(TokenOperator, "+"),
				tok(TokenIdentifier, "b"),
				tok(TokenSemicolon, ";"),
			},
			false,
			[]Node{
				&Function{
					Proto: &Prototype{
						Name:   "foo",
						Params: []string{"a", "b"},
					},
					Body: &BinaryExpr{
						Operator: "+",
						Lhs:      &VariableExpr{Name: "a"},
						Rhs:      &VariableExpr{Name: "b"},
					},
				},
			},
		},
		{
			[]Token{
				tok(TokenExtern, "extern"),
				tok(TokenIdentifier, "sin"),
				tok(TokenOpenParentheses, "("),
				tok(TokenIdentifier, "x"),
				tok(TokenCloseParentheses, ")"),
				tok(TokenSemicolon, ";"),
			},
			false,
			[]Node{
				&Prototype{
					Name:   "sin",
					Params: []string{"x"},
				},
			},
		},
		{
			// A bare expression becomes an anonymous zero-parameter
			// function.
			[]Token{
				tok(TokenNumber, "1"),
				tok(TokenOperator, "+"),
				tok(TokenNumber, "1"),
				tok(TokenSemicolon, ";"),
			},
			false,
			[]Node{
				&Function{
					Proto: &Prototype{Name: "__anon_expr0"},
					Body: &BinaryExpr{
						Operator: "+",
						Lhs:      &NumberLiteral{Value: 1},
						Rhs:      &NumberLiteral{Value: 1},
					},
					IsAnonymous: true,
				},
			},
		},
		{
			// Missing terminator.
			[]Token{
				tok(TokenDef, "def"),
				tok(TokenIdentifier, "f"),
				tok(TokenOpenParentheses, "("),
				tok(TokenCloseParentheses, ")"),
				tok(TokenNumber, "1"),
			},
			true,
			nil,
		},
		{
			// Missing function name.
			[]Token{
				tok(TokenDef, "def"),
				tok(TokenOpenParentheses, "("),
				tok(TokenIdentifier, "x"),
				tok(TokenCloseParentheses, ")"),
				tok(TokenIdentifier, "x"),
				tok(TokenSemicolon, ";"),
			},
			true,
			nil,
		},
	}

	for _, c := range cases {
		tokenizer := NewBufferedTokenizerMocker(c.data)
		p := NewParser(tokenizer)

		got, err := p.Run()
		if c.fail {
			assert.Error(t, err)
			continue
		}

		assert.NoError(t, err)
		assert.Equal(t, &AST{Filename: "testing", Items: c.expect}, got)
	}
}

func TestParserPrecedence(t *testing.T) {
	cases := []struct {
		data   string
		expect Expr
	}{
		{
			"1 - 2 - 3;",
			&BinaryExpr{
				Operator: "-",
				Lhs: &BinaryExpr{
					Operator: "-",
					Lhs:      &NumberLiteral{Value: 1},
					Rhs:      &NumberLiteral{Value: 2},
				},
				Rhs: &NumberLiteral{Value: 3},
			},
		},
		{
			"1 + 2 * 3;",
			&BinaryExpr{
				Operator: "+",
				Lhs:      &NumberLiteral{Value: 1},
				Rhs: &BinaryExpr{
					Operator: "*",
					Lhs:      &NumberLiteral{Value: 2},
					Rhs:      &NumberLiteral{Value: 3},
				},
			},
		},
		{
			"(1 + 2) * 3;",
			&BinaryExpr{
				Operator: "*",
				Lhs: &BinaryExpr{
					Operator: "+",
					Lhs:      &NumberLiteral{Value: 1},
					Rhs:      &NumberLiteral{Value: 2},
				},
				Rhs: &NumberLiteral{Value: 3},
			},
		},
		{
			"1 < 2 + 3;",
			&BinaryExpr{
				Operator: "<",
				Lhs:      &NumberLiteral{Value: 1},
				Rhs: &BinaryExpr{
					Operator: "+",
					Lhs:      &NumberLiteral{Value: 2},
					Rhs:      &NumberLiteral{Value: 3},
				},
			},
		},
	}

	for _, c := range cases {
		ast, err := parseSource(c.data)
		if !assert.NoError(t, err) {
			continue
		}

		if assert.Len(t, ast.Items, 1) {
			fn := ast.Items[0].(*Function)
			assert.Equal(t, c.expect, fn.Body)
		}
	}
}

func TestParserCustomBinaryOperator(t *testing.T) {
	ast, err := parseSource("def binary| 10 (a b) a + b; 1 | 2 | 3;")
	if !assert.NoError(t, err) {
		return
	}

	if !assert.Len(t, ast.Items, 2) {
		return
	}

	decl := ast.Items[0].(*Function)
	assert.Equal(t, "binary|", decl.Proto.Name)
	assert.True(t, decl.Proto.IsOperator)
	assert.True(t, decl.Proto.IsBinaryOp())
	assert.Equal(t, 10, decl.Proto.Precedence)
	assert.Equal(t, "|", decl.Proto.OperatorSymbol())

	// Same precedence tier behaves like the built-ins: left-associative.
	use := ast.Items[1].(*Function)
	assert.Equal(t, &BinaryExpr{
		Operator: "|",
		Lhs: &BinaryExpr{
			Operator: "|",
			Lhs:      &NumberLiteral{Value: 1},
			Rhs:      &NumberLiteral{Value: 2},
		},
		Rhs: &NumberLiteral{Value: 3},
	}, use.Body)
}

func TestParserCustomOperatorDefaultPrecedence(t *testing.T) {
	ast, err := parseSource("def binary& (a b) a; 1 & 2;")
	if !assert.NoError(t, err) {
		return
	}

	decl := ast.Items[0].(*Function)
	assert.Equal(t, defaultUserPrecedence, decl.Proto.Precedence)
}

func TestParserCustomUnaryOperator(t *testing.T) {
	ast, err := parseSource("def unary!(v) if v then 0 else 1; !!x;")
	if !assert.NoError(t, err) {
		return
	}

	decl := ast.Items[0].(*Function)
	assert.Equal(t, "unary!", decl.Proto.Name)
	assert.True(t, decl.Proto.IsUnaryOp())
	assert.Equal(t, "!", decl.Proto.OperatorSymbol())

	use := ast.Items[1].(*Function)
	assert.Equal(t, &UnaryExpr{
		Operator: "!",
		Operand: &UnaryExpr{
			Operator: "!",
			Operand:  &VariableExpr{Name: "x"},
		},
	}, use.Body)
}

func TestParserOperatorUsableInOwnBody(t *testing.T) {
	// The precedence entry is registered when the prototype is parsed, so
	// the operator may recurse into itself.
	_, err := parseSource("def binary| 5 (a b) if a then a else a | b;")
	assert.NoError(t, err)
}

func TestParserUndeclaredOperator(t *testing.T) {
	_, err := parseSource("1 | 2;")

	var parseErr *ParseError
	if assert.ErrorAs(t, err, &parseErr) {
		assert.Equal(t, ErrUnknownOperator, parseErr.Kind)
		assert.Equal(t, "|", parseErr.Found)
	}
}

func TestParserOperatorDeclarationArity(t *testing.T) {
	cases := []string{
		"def binary| 10 (a) a;",
		"def unary! (a b) a;",
		"def binary 10 (a b) a;",
	}

	for _, src := range cases {
		_, err := parseSource(src)

		var parseErr *ParseError
		if assert.ErrorAs(t, err, &parseErr, src) {
			assert.Equal(t, ErrInvalidOperatorDeclaration, parseErr.Kind, src)
		}
	}
}

func TestParserPrecedenceTableIsScopedToInstance(t *testing.T) {
	_, err := parseSource("def binary| 10 (a b) a + b; 1 | 2;")
	assert.NoError(t, err)

	// A fresh parser starts from the builtin table only.
	_, err = parseSource("1 | 2;")

	var parseErr *ParseError
	if assert.ErrorAs(t, err, &parseErr) {
		assert.Equal(t, ErrUnknownOperator, parseErr.Kind)
	}
}

func TestParserIfExpr(t *testing.T) {
	ast, err := parseSource("if x then 1 else 2;")
	if !assert.NoError(t, err) {
		return
	}

	fn := ast.Items[0].(*Function)
	assert.Equal(t, &IfExpr{
		Cond: &VariableExpr{Name: "x"},
		Then: &NumberLiteral{Value: 1},
		Else: &NumberLiteral{Value: 2},
	}, fn.Body)
}

func TestParserIfMissingElse(t *testing.T) {
	_, err := parseSource("if x then 1;")

	var parseErr *ParseError
	if assert.ErrorAs(t, err, &parseErr) {
		assert.Equal(t, ErrUnexpectedToken, parseErr.Kind)
		assert.Equal(t, "'else'", parseErr.Expected)
	}
}

func TestParserForExpr(t *testing.T) {
	ast, err := parseSource("for i = 1, i < 10 in printd(i);")
	if !assert.NoError(t, err) {
		return
	}

	fn := ast.Items[0].(*Function)
	assert.Equal(t, &ForExpr{
		VarName: "i",
		Start:   &NumberLiteral{Value: 1},
		End: &BinaryExpr{
			Operator: "<",
			Lhs:      &VariableExpr{Name: "i"},
			Rhs:      &NumberLiteral{Value: 10},
		},
		Body: &CallExpr{
			Callee: "printd",
			Args:   []Expr{&VariableExpr{Name: "i"}},
		},
	}, fn.Body)
}

func TestParserForExprWithStep(t *testing.T) {
	ast, err := parseSource("for i = 0, i < 10, 2 in i;")
	if !assert.NoError(t, err) {
		return
	}

	fn := ast.Items[0].(*Function)
	forExpr := fn.Body.(*ForExpr)
	assert.Equal(t, &NumberLiteral{Value: 2}, forExpr.Step)
}

func TestParserVarExpr(t *testing.T) {
	ast, err := parseSource("var a = 1, b = a in a + b;")
	if !assert.NoError(t, err) {
		return
	}

	fn := ast.Items[0].(*Function)
	assert.Equal(t, &VarExpr{
		Bindings: []VarBinding{
			{Name: "a", Init: &NumberLiteral{Value: 1}},
			{Name: "b", Init: &VariableExpr{Name: "a"}},
		},
		Body: &BinaryExpr{
			Operator: "+",
			Lhs:      &VariableExpr{Name: "a"},
			Rhs:      &VariableExpr{Name: "b"},
		},
	}, fn.Body)
}

func TestParserCallArguments(t *testing.T) {
	ast, err := parseSource("foo(1, bar(x), 2 + 3);")
	if !assert.NoError(t, err) {
		return
	}

	fn := ast.Items[0].(*Function)
	assert.Equal(t, &CallExpr{
		Callee: "foo",
		Args: []Expr{
			&NumberLiteral{Value: 1},
			&CallExpr{
				Callee: "bar",
				Args:   []Expr{&VariableExpr{Name: "x"}},
			},
			&BinaryExpr{
				Operator: "+",
				Lhs:      &NumberLiteral{Value: 2},
				Rhs:      &NumberLiteral{Value: 3},
			},
		},
	}, fn.Body)
}

func TestParserAnonymousFunctionsAreNumbered(t *testing.T) {
	ast, err := parseSource("1 + 1; 4;")
	if !assert.NoError(t, err) {
		return
	}

	if assert.Len(t, ast.Items, 2) {
		first := ast.Items[0].(*Function)
		second := ast.Items[1].(*Function)

		assert.True(t, first.IsAnonymous)
		assert.Empty(t, first.Proto.Params)
		assert.Equal(t, "__anon_expr0", first.Proto.Name)
		assert.Equal(t, "__anon_expr1", second.Proto.Name)
	}
}

func TestParserErrors(t *testing.T) {
	cases := []struct {
		data string
		kind ParseErrorKind
	}{
		{")", ErrExpectedExpression},
		{"foo(1,);", ErrExpectedExpression},
		{"(1;", ErrMissingTerminator},
		{"1 + 1", ErrMissingTerminator},
		{"def 1(x) x;", ErrUnexpectedToken},
		{"if x 1 else 2;", ErrUnexpectedToken},
		{"for i 1, 10 in i;", ErrUnexpectedToken},
		{"var a = 1 a;", ErrUnexpectedToken},
	}

	for _, c := range cases {
		_, err := parseSource(c.data)

		var parseErr *ParseError
		if assert.ErrorAs(t, err, &parseErr, c.data) {
			assert.Equal(t, c.kind, parseErr.Kind, c.data)
		}
	}
}

func TestParserWrapsLexicalErrors(t *testing.T) {
	_, err := parseSource("def f(x) 1.2.3;")

	var parseErr *ParseError
	if assert.ErrorAs(t, err, &parseErr) {
		assert.Equal(t, ErrBadToken, parseErr.Kind)
	}

	var lexErr *LexError
	if assert.True(t, errors.As(err, &lexErr)) {
		assert.Equal(t, LexInvalidNumber, lexErr.Kind)
	}
}
