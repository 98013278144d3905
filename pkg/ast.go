package kaleido

import "strings"

type AST struct {
	Filename string
	Items    []Node
}

// Node is a top-level item: a *Function definition or a bare *Prototype
// coming from an extern declaration.
type Node interface{}

type Expr interface{}

type NumberLiteral struct {
	Value float64
}

type VariableExpr struct {
	Name string
}

type UnaryExpr struct {
	Operator string
	Operand  Expr
}

type BinaryExpr struct {
	Operator string
	Lhs      Expr
	Rhs      Expr
}

type CallExpr struct {
	Callee string
	Args   []Expr
}

// IfExpr is an expression, not a statement: both branches are mandatory and
// the chosen branch is the value of the whole form.
type IfExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// ForExpr loops VarName from Start until End becomes false, advancing by
// Step each iteration. A nil Step means the literal 1.0.
type ForExpr struct {
	VarName string
	Start   Expr
	End     Expr
	Step    Expr
	Body    Expr
}

type VarBinding struct {
	Name string
	Init Expr
}

// VarExpr introduces local bindings visible in Body. Later initializers see
// the bindings declared before them.
type VarExpr struct {
	Bindings []VarBinding
	Body     Expr
}

// Prototype describes a function signature. Operator declarations are
// prototypes too: their name is the fixity keyword glued to the symbol
// ("unary!", "binary|"), which is also the symbol the code generator
// resolves operator expressions against.
type Prototype struct {
	Name       string
	Params     []string
	IsOperator bool
	Precedence int
}

func (p *Prototype) IsUnaryOp() bool {
	return p.IsOperator && len(p.Params) == 1
}

func (p *Prototype) IsBinaryOp() bool {
	return p.IsOperator && len(p.Params) == 2
}

// OperatorSymbol returns the declared symbol of an operator prototype, e.g.
// "|" for "binary|".
func (p *Prototype) OperatorSymbol() string {
	if !p.IsOperator {
		return ""
	}

	name := strings.TrimPrefix(p.Name, "binary")
	return strings.TrimPrefix(name, "unary")
}

type Function struct {
	Proto       *Prototype
	Body        Expr
	IsAnonymous bool
}
