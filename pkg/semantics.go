package kaleido

import "fmt"

// The language is single-typed, so there is nothing to type-check. The
// semantic pass verifies what the grammar alone cannot: that every name
// resolves, that calls match the arity of their callee, and that operator
// expressions have a definition to lower to.

type SemanticAnalyzer interface {
	Do(ast *AST) []CompileError
}

type ContextAnalyzer struct {
	funcs *SymbolTable
}

func NewContextAnalyser() *ContextAnalyzer {
	return &ContextAnalyzer{
		funcs: NewGlobalSymbolTable(),
	}
}

func (c *ContextAnalyzer) Do(ast *AST) []CompileError {
	var errs []CompileError

	// Register every signature first, so definitions may call each other
	// regardless of order.
	for _, item := range ast.Items {
		switch n := item.(type) {
		case *Prototype:
			errs = append(errs, c.declare(n)...)
		case *Function:
			errs = append(errs, c.declare(n.Proto)...)
		}
	}

	for _, item := range ast.Items {
		if fn, ok := item.(*Function); ok {
			errs = append(errs, c.checkFunction(fn)...)
		}
	}

	return errs
}

func (c *ContextAnalyzer) declare(proto *Prototype) []CompileError {
	var errs []CompileError

	seen := make(map[string]bool)
	for _, param := range proto.Params {
		if seen[param] {
			errs = append(errs, &DuplicateParamError{
				Func:  proto.Name,
				Param: param,
			})
		}

		seen[param] = true
	}

	if prev := c.funcs.Get(proto.Name); prev != nil && len(prev.Params) != len(proto.Params) {
		errs = append(errs, &RedefinedError{
			Name:      proto.Name,
			PrevArity: len(prev.Params),
			Arity:     len(proto.Params),
		})

		return errs
	}

	c.funcs.Add(proto)
	return errs
}

func (c *ContextAnalyzer) checkFunction(fn *Function) []CompileError {
	scope := make(map[string]bool)
	for _, param := range fn.Proto.Params {
		scope[param] = true
	}

	return c.checkExpr(fn.Proto.Name, scope, fn.Body)
}

func (c *ContextAnalyzer) checkExpr(fn string, scope map[string]bool, expr Expr) []CompileError {
	var errs []CompileError

	switch e := expr.(type) {
	case *NumberLiteral:
	case *VariableExpr:
		if !scope[e.Name] {
			errs = append(errs, &UndefinedError{
				Func: fn,
				Name: e.Name,
			})
		}
	case *UnaryExpr:
		if c.funcs.Get("unary"+e.Operator) == nil {
			errs = append(errs, &UndefinedOperatorError{
				Func: fn,
				Op:   e.Operator,
			})
		}

		errs = append(errs, c.checkExpr(fn, scope, e.Operand)...)
	case *BinaryExpr:
		if !builtinBinaryOp(e.Operator) && c.funcs.Get("binary"+e.Operator) == nil {
			errs = append(errs, &UndefinedOperatorError{
				Func: fn,
				Op:   e.Operator,
			})
		}

		errs = append(errs, c.checkExpr(fn, scope, e.Lhs)...)
		errs = append(errs, c.checkExpr(fn, scope, e.Rhs)...)
	case *CallExpr:
		callee := c.funcs.Get(e.Callee)
		if callee == nil {
			errs = append(errs, &UndefinedError{
				Func: fn,
				Name: e.Callee,
			})
		} else if len(callee.Params) != len(e.Args) {
			errs = append(errs, &ArityError{
				Func:   fn,
				Callee: e.Callee,
				Want:   len(callee.Params),
				Got:    len(e.Args),
			})
		}

		for _, arg := range e.Args {
			errs = append(errs, c.checkExpr(fn, scope, arg)...)
		}
	case *IfExpr:
		errs = append(errs, c.checkExpr(fn, scope, e.Cond)...)
		errs = append(errs, c.checkExpr(fn, scope, e.Then)...)
		errs = append(errs, c.checkExpr(fn, scope, e.Else)...)
	case *ForExpr:
		errs = append(errs, c.checkExpr(fn, scope, e.Start)...)

		// The loop variable is visible to the end condition, the step and
		// the body, but not to the start expression.
		inner := copyScope(scope)
		inner[e.VarName] = true

		errs = append(errs, c.checkExpr(fn, inner, e.End)...)
		if e.Step != nil {
			errs = append(errs, c.checkExpr(fn, inner, e.Step)...)
		}
		errs = append(errs, c.checkExpr(fn, inner, e.Body)...)
	case *VarExpr:
		inner := copyScope(scope)
		for _, binding := range e.Bindings {
			errs = append(errs, c.checkExpr(fn, inner, binding.Init)...)
			inner[binding.Name] = true
		}

		errs = append(errs, c.checkExpr(fn, inner, e.Body)...)
	}

	return errs
}

func copyScope(scope map[string]bool) map[string]bool {
	inner := make(map[string]bool, len(scope))
	for name := range scope {
		inner[name] = true
	}

	return inner
}

func builtinBinaryOp(op string) bool {
	switch op {
	case "+", "-", "*", "/", "<":
		return true
	}

	return false
}

type CompileError interface {
	fmt.Stringer
}

type UndefinedError struct {
	Func string
	Name string
}

func (e UndefinedError) String() string {
	return fmt.Sprintf("in %s: undefined: %s", e.Func, e.Name)
}

type ArityError struct {
	Func   string
	Callee string
	Want   int
	Got    int
}

func (e ArityError) String() string {
	return fmt.Sprintf("in %s: %s expects %d arguments, got %d", e.Func, e.Callee, e.Want, e.Got)
}

type RedefinedError struct {
	Name      string
	PrevArity int
	Arity     int
}

func (e RedefinedError) String() string {
	return fmt.Sprintf("redefinition of %s with %d parameters, previously %d", e.Name, e.Arity, e.PrevArity)
}

type DuplicateParamError struct {
	Func  string
	Param string
}

func (e DuplicateParamError) String() string {
	return fmt.Sprintf("in %s: duplicate parameter %s", e.Func, e.Param)
}

type UndefinedOperatorError struct {
	Func string
	Op   string
}

func (e UndefinedOperatorError) String() string {
	return fmt.Sprintf("in %s: operator '%s' has no definition", e.Func, e.Op)
}

type SymbolTable struct {
	Entries map[string]*Prototype
}

// NewGlobalSymbolTable starts a table already knowing the builtins, the
// same set the IR builder defines.
func NewGlobalSymbolTable() *SymbolTable {
	t := NewSymbolTable()
	for _, proto := range builtinPrototypes() {
		t.Add(proto)
	}

	return t
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Entries: make(map[string]*Prototype),
	}
}

func (t *SymbolTable) Add(proto *Prototype) {
	t.Entries[proto.Name] = proto
}

func (t *SymbolTable) Get(name string) *Prototype {
	proto, contains := t.Entries[name]
	if !contains {
		return nil
	}

	return proto
}
