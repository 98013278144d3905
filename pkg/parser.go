package kaleido

import (
	"fmt"
	"strconv"
)

type ParseErrorKind int

const (
	ErrUnexpectedToken ParseErrorKind = iota
	ErrExpectedExpression
	ErrUnknownOperator
	ErrMissingTerminator
	ErrInvalidOperatorDeclaration
	ErrBadToken
)

type ParseError struct {
	Kind     ParseErrorKind
	Loc      *Location
	Expected string
	Found    string
	Err      *LexError
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrBadToken:
		if e.Err != nil {
			return e.Err.Error()
		}

		return fmt.Sprintf("%s invalid token '%s'", e.Loc, e.Found)
	case ErrExpectedExpression:
		return fmt.Sprintf("%s expected an expression, found %s", e.Loc, e.Found)
	case ErrUnknownOperator:
		return fmt.Sprintf("%s unknown operator '%s'", e.Loc, e.Found)
	case ErrMissingTerminator:
		return fmt.Sprintf("%s missing %s, found %s", e.Loc, e.Expected, e.Found)
	case ErrInvalidOperatorDeclaration:
		return fmt.Sprintf("%s invalid operator declaration: expected %s, found %s", e.Loc, e.Expected, e.Found)
	default:
		return fmt.Sprintf("%s expected %s, found %s", e.Loc, e.Expected, e.Found)
	}
}

func (e *ParseError) Unwrap() error {
	if e.Err == nil {
		return nil
	}

	return e.Err
}

// Precedence a user binary operator gets when the declaration omits the
// literal, between the comparison and additive tiers.
const defaultUserPrecedence = 30

type SyntacticAnalyzer interface {
	Run() (*AST, error)
	GetFilename() string
}

type Parser struct {
	filename  string
	tokenizer Tokenizer
	buf       *Token

	// Operator tables are owned by this parser instance. Two parsers never
	// see each other's custom declarations.
	binopPrecedence map[string]int
	unaryOps        map[string]bool

	anonCount int
}

func NewParser(tokenizer Tokenizer) *Parser {
	return &Parser{
		tokenizer: tokenizer,
		filename:  tokenizer.GetFilename(),
		binopPrecedence: map[string]int{
			"<": 10,
			"+": 20,
			"-": 20,
			"*": 40,
			"/": 40,
		},
		unaryOps: make(map[string]bool),
	}
}

func (p *Parser) GetFilename() string {
	return p.filename
}

func (p *Parser) Run() (*AST, error) {
	go p.tokenizer.Do()

	ast, err := p.parse()
	if err != nil {
		p.drain()
		return nil, err
	}

	return ast, nil
}

func (p *Parser) parse() (*AST, error) {
	ast := &AST{Filename: p.filename}

	for {
		switch tok := p.peek(); tok.Typ {
		case TokenEOF:
			return ast, nil
		case TokenError:
			return nil, p.badToken(tok)
		case TokenSemicolon:
			// Stray delimiter between items.
			p.next()
			continue
		}

		item, err := p.topLevel()
		if err != nil {
			return nil, err
		}

		if err := p.closing("';'", TokenSemicolon); err != nil {
			return nil, err
		}

		ast.Items = append(ast.Items, item)
	}
}

// drain unblocks the tokenizer goroutine when the token stream is abandoned
// after a parse error.
func (p *Parser) drain() {
	go func() {
		for tok := p.tokenizer.Get(); tok.Typ != TokenEOF; tok = p.tokenizer.Get() {
		}
	}()
}

func (p *Parser) peek() Token {
	if p.buf == nil {
		temp := p.next()
		p.buf = &temp
	}

	return *p.buf
}

func (p *Parser) next() Token {
	if p.buf != nil {
		if !p.buf.isValid() {
			// If an invalid token is buffered, don't try to get more tokens
			return *p.buf
		}

		temp := p.buf
		p.buf = nil

		return *temp
	}

	tok := p.tokenizer.Get()
	if !tok.isValid() {
		// If a token is invalid (such as Error or EOF) keep it buffered since no more valid tokens are expected
		p.buf = &tok
	}

	return tok
}

func (p *Parser) check(typ TokenType) bool {
	return p.peek().Typ == typ
}

func (p *Parser) expect(typ TokenType, what string) (Token, error) {
	tok := p.next()
	if tok.Typ == TokenError {
		return tok, p.badToken(tok)
	}

	if tok.Typ != typ {
		return tok, &ParseError{
			Kind:     ErrUnexpectedToken,
			Loc:      tok.Loc,
			Expected: what,
			Found:    tok.describe(),
		}
	}

	return tok, nil
}

func (p *Parser) expectOperator(sym string) error {
	tok := p.next()
	if tok.Typ == TokenError {
		return p.badToken(tok)
	}

	if tok.Typ != TokenOperator || tok.Value != sym {
		return &ParseError{
			Kind:     ErrUnexpectedToken,
			Loc:      tok.Loc,
			Expected: "'" + sym + "'",
			Found:    tok.describe(),
		}
	}

	return nil
}

// closing consumes the token ending the current production (';' or ')').
// An undeclared operator sitting where the terminator should be gets its
// own error kind: the expression loop stopped there on purpose.
func (p *Parser) closing(what string, typ TokenType) error {
	tok := p.next()
	switch {
	case tok.Typ == typ:
		return nil
	case tok.Typ == TokenError:
		return p.badToken(tok)
	case tok.Typ == TokenOperator:
		if _, known := p.binopPrecedence[tok.Value]; !known {
			return &ParseError{
				Kind:  ErrUnknownOperator,
				Loc:   tok.Loc,
				Found: tok.Value,
			}
		}
	}

	return &ParseError{
		Kind:     ErrMissingTerminator,
		Loc:      tok.Loc,
		Expected: what,
		Found:    tok.describe(),
	}
}

// badToken wraps a lexical error into the parse error channel; parsing
// cannot proceed past a malformed token.
func (p *Parser) badToken(tok Token) error {
	return &ParseError{
		Kind:  ErrBadToken,
		Loc:   tok.Loc,
		Found: tok.Value,
		Err:   tok.Err,
	}
}

func (p *Parser) topLevel() (Node, error) {
	switch tok := p.peek(); tok.Typ {
	case TokenDef:
		return p.function()
	case TokenExtern:
		return p.extern()
	default:
		return p.anonFunction()
	}
}

func (p *Parser) function() (Node, error) {
	p.next() // eat def

	proto, err := p.prototype()
	if err != nil {
		return nil, err
	}

	body, err := p.expression()
	if err != nil {
		return nil, err
	}

	return &Function{
		Proto: proto,
		Body:  body,
	}, nil
}

func (p *Parser) extern() (Node, error) {
	p.next() // eat extern

	proto, err := p.prototype()
	if err != nil {
		return nil, err
	}

	return proto, nil
}

// anonFunction wraps a bare top-level expression into a zero-parameter
// function, so the code generator has a uniform entry point.
func (p *Parser) anonFunction() (Node, error) {
	body, err := p.expression()
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("__anon_expr%d", p.anonCount)
	p.anonCount++

	return &Function{
		Proto:       &Prototype{Name: name},
		Body:        body,
		IsAnonymous: true,
	}, nil
}

func (p *Parser) prototype() (*Prototype, error) {
	proto := &Prototype{}
	arity := 0

	switch tok := p.next(); tok.Typ {
	case TokenIdentifier:
		proto.Name = tok.Value
	case TokenUnary:
		op, err := p.operatorSymbol("unary")
		if err != nil {
			return nil, err
		}

		proto.Name = "unary" + op
		proto.IsOperator = true
		arity = 1
	case TokenBinary:
		op, err := p.operatorSymbol("binary")
		if err != nil {
			return nil, err
		}

		proto.Name = "binary" + op
		proto.IsOperator = true
		proto.Precedence = defaultUserPrecedence
		arity = 2

		if num := p.peek(); num.Typ == TokenNumber {
			p.next()

			prec, err := strconv.Atoi(num.Value)
			if err != nil {
				return nil, &ParseError{
					Kind:     ErrInvalidOperatorDeclaration,
					Loc:      num.Loc,
					Expected: "an integer precedence",
					Found:    num.describe(),
				}
			}

			proto.Precedence = prec
		}
	case TokenError:
		return nil, p.badToken(tok)
	default:
		return nil, &ParseError{
			Kind:     ErrUnexpectedToken,
			Loc:      tok.Loc,
			Expected: "a function name",
			Found:    tok.describe(),
		}
	}

	if _, err := p.expect(TokenOpenParentheses, "'('"); err != nil {
		return nil, err
	}

	for p.check(TokenIdentifier) {
		proto.Params = append(proto.Params, p.next().Value)
	}

	if err := p.closing("')'", TokenCloseParentheses); err != nil {
		return nil, err
	}

	if proto.IsOperator {
		if len(proto.Params) != arity {
			return nil, &ParseError{
				Kind:     ErrInvalidOperatorDeclaration,
				Loc:      p.peek().Loc,
				Expected: fmt.Sprintf("%d parameters for '%s'", arity, proto.Name),
				Found:    strconv.Itoa(len(proto.Params)),
			}
		}

		// Register before the body is parsed, so an operator may be used
		// within its own definition.
		if arity == 1 {
			p.unaryOps[proto.OperatorSymbol()] = true
		} else {
			p.binopPrecedence[proto.OperatorSymbol()] = proto.Precedence
		}
	}

	return proto, nil
}

func (p *Parser) operatorSymbol(fixity string) (string, error) {
	tok := p.next()
	if tok.Typ == TokenError {
		return "", p.badToken(tok)
	}

	if tok.Typ != TokenOperator {
		return "", &ParseError{
			Kind:     ErrInvalidOperatorDeclaration,
			Loc:      tok.Loc,
			Expected: "an operator symbol after '" + fixity + "'",
			Found:    tok.describe(),
		}
	}

	return tok.Value, nil
}

func (p *Parser) expression() (Expr, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}

	return p.binOpRHS(0, lhs)
}

// binOpRHS climbs the precedence table: every operator at or above minPrec
// is folded left-associatively, the right-hand side recursing one level
// tighter. A symbol missing from the table ends the loop and is left for
// the caller, which decides whether it is a legitimate terminator.
func (p *Parser) binOpRHS(minPrec int, lhs Expr) (Expr, error) {
	for {
		tok := p.peek()
		if tok.Typ != TokenOperator {
			return lhs, nil
		}

		prec, known := p.binopPrecedence[tok.Value]
		if !known || prec < minPrec {
			return lhs, nil
		}

		p.next() // eat the operator

		rhs, err := p.unary()
		if err != nil {
			return nil, err
		}

		rhs, err = p.binOpRHS(prec+1, rhs)
		if err != nil {
			return nil, err
		}

		lhs = &BinaryExpr{
			Operator: tok.Value,
			Lhs:      lhs,
			Rhs:      rhs,
		}
	}
}

// unary binds tighter than any binary operator. Only symbols registered by
// a 'unary' declaration may start a unary expression.
func (p *Parser) unary() (Expr, error) {
	if tok := p.peek(); tok.Typ == TokenOperator && p.unaryOps[tok.Value] {
		p.next()

		operand, err := p.unary()
		if err != nil {
			return nil, err
		}

		return &UnaryExpr{
			Operator: tok.Value,
			Operand:  operand,
		}, nil
	}

	return p.primary()
}

func (p *Parser) primary() (Expr, error) {
	switch tok := p.peek(); tok.Typ {
	case TokenNumber:
		return p.number()
	case TokenOpenParentheses:
		return p.parenExpr()
	case TokenIdentifier:
		return p.identifierExpr()
	case TokenIf:
		return p.ifExpr()
	case TokenFor:
		return p.forExpr()
	case TokenVar:
		return p.varExpr()
	case TokenError:
		return nil, p.badToken(tok)
	default:
		return nil, &ParseError{
			Kind:  ErrExpectedExpression,
			Loc:   tok.Loc,
			Found: tok.describe(),
		}
	}
}

func (p *Parser) number() (Expr, error) {
	tok := p.next()

	v, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, &ParseError{
			Kind:     ErrUnexpectedToken,
			Loc:      tok.Loc,
			Expected: "a numeric literal",
			Found:    tok.describe(),
		}
	}

	return &NumberLiteral{Value: v}, nil
}

// parenExpr groups a sub-expression; the parentheses never survive into the
// AST.
func (p *Parser) parenExpr() (Expr, error) {
	p.next() // eat (

	expr, err := p.expression()
	if err != nil {
		return nil, err
	}

	if err := p.closing("')'", TokenCloseParentheses); err != nil {
		return nil, err
	}

	return expr, nil
}

func (p *Parser) identifierExpr() (Expr, error) {
	name := p.next().Value

	if !p.check(TokenOpenParentheses) {
		return &VariableExpr{Name: name}, nil
	}

	p.next() // eat (

	var args []Expr
	if !p.check(TokenCloseParentheses) {
		for {
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}

			args = append(args, arg)

			if !p.check(TokenComma) {
				break
			}

			p.next() // eat the comma
		}
	}

	if err := p.closing("')'", TokenCloseParentheses); err != nil {
		return nil, err
	}

	return &CallExpr{
		Callee: name,
		Args:   args,
	}, nil
}

func (p *Parser) ifExpr() (Expr, error) {
	p.next() // eat if

	cond, err := p.expression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenThen, "'then'"); err != nil {
		return nil, err
	}

	then, err := p.expression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenElse, "'else'"); err != nil {
		return nil, err
	}

	els, err := p.expression()
	if err != nil {
		return nil, err
	}

	return &IfExpr{
		Cond: cond,
		Then: then,
		Else: els,
	}, nil
}

func (p *Parser) forExpr() (Expr, error) {
	p.next() // eat for

	name, err := p.expect(TokenIdentifier, "a loop variable")
	if err != nil {
		return nil, err
	}

	if err := p.expectOperator("="); err != nil {
		return nil, err
	}

	start, err := p.expression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenComma, "','"); err != nil {
		return nil, err
	}

	end, err := p.expression()
	if err != nil {
		return nil, err
	}

	var step Expr
	if p.check(TokenComma) {
		p.next()

		step, err = p.expression()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(TokenIn, "'in'"); err != nil {
		return nil, err
	}

	body, err := p.expression()
	if err != nil {
		return nil, err
	}

	return &ForExpr{
		VarName: name.Value,
		Start:   start,
		End:     end,
		Step:    step,
		Body:    body,
	}, nil
}

func (p *Parser) varExpr() (Expr, error) {
	p.next() // eat var

	var bindings []VarBinding
	for {
		name, err := p.expect(TokenIdentifier, "a variable name")
		if err != nil {
			return nil, err
		}

		if err := p.expectOperator("="); err != nil {
			return nil, err
		}

		init, err := p.expression()
		if err != nil {
			return nil, err
		}

		bindings = append(bindings, VarBinding{
			Name: name.Value,
			Init: init,
		})

		if !p.check(TokenComma) {
			break
		}

		p.next() // eat the comma
	}

	if _, err := p.expect(TokenIn, "'in'"); err != nil {
		return nil, err
	}

	body, err := p.expression()
	if err != nil {
		return nil, err
	}

	return &VarExpr{
		Bindings: bindings,
		Body:     body,
	}, nil
}
