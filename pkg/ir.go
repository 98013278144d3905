package kaleido

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

type ValueLookup struct {
	vals map[string]value.Value
}

func NewValueLookup() *ValueLookup {
	return &ValueLookup{
		vals: make(map[string]value.Value),
	}
}

func (l *ValueLookup) Inherit(t2 *ValueLookup) {
	for k, v := range t2.vals {
		l.Set(k, v)
	}
}

func (l *ValueLookup) Get(id string) (value.Value, bool) {
	val, ok := l.vals[id]
	return val, ok
}

func (l *ValueLookup) Set(id string, val value.Value) {
	l.vals[id] = val
}

type IRGenerator interface {
	Do() (IR, error)
}

type IR interface {
	fmt.Stringer
}

type CodegenError struct {
	Func string
	Msg  string
}

func (e *CodegenError) Error() string {
	if e.Func == "" {
		return e.Msg
	}

	return fmt.Sprintf("in %s: %s", e.Func, e.Msg)
}

// LLVMIRBuilder lowers the AST into an in-memory LLVM module. Every value
// in the language is a double; comparison results are converted back to
// 0.0/1.0.
type LLVMIRBuilder struct {
	mod    *ir.Module
	fn     *ir.Func
	block  *ir.Block
	values *ValueLookup
}

func NewLLVMIRBuilder() *LLVMIRBuilder {
	builder := &LLVMIRBuilder{
		mod:    ir.NewModule(),
		values: NewValueLookup(),
	}

	defineBuiltins(builder)
	return builder
}

// prototype declares a double(double...) function, or returns the existing
// declaration. Operator prototypes land under their concatenated names
// ("binary|"), which is how operator expressions find them later.
func (b *LLVMIRBuilder) prototype(proto *Prototype) *ir.Func {
	if v, ok := b.values.Get(proto.Name); ok {
		if f, isFunc := v.(*ir.Func); isFunc {
			return f
		}
	}

	params := make([]*ir.Param, len(proto.Params))
	for i, name := range proto.Params {
		params[i] = ir.NewParam(name, types.Double)
	}

	f := b.mod.NewFunc(proto.Name, types.Double, params...)
	b.values.Set(proto.Name, f)

	return f
}

func (b *LLVMIRBuilder) function(fn *Function) error {
	f := b.prototype(fn.Proto)

	prevFn := b.fn
	prevBlock := b.block
	prevVals := b.values

	b.fn = f
	b.block = f.NewBlock("")
	b.values = NewValueLookup()
	b.values.Inherit(prevVals)

	defer func() {
		b.fn = prevFn
		b.block = prevBlock
		b.values = prevVals
	}()

	for i, param := range fn.Proto.Params {
		b.values.Set(param, f.Params[i])
	}

	ret, err := b.expr(fn.Body)
	if err != nil {
		return err
	}

	b.block.NewRet(ret)
	return nil
}

func (b *LLVMIRBuilder) expr(expr Expr) (value.Value, error) {
	switch e := expr.(type) {
	case *NumberLiteral:
		return constant.NewFloat(types.Double, e.Value), nil
	case *VariableExpr:
		v, ok := b.values.Get(e.Name)
		if !ok {
			return nil, b.errorf("undefined identifier: %s", e.Name)
		}

		return v, nil
	case *BinaryExpr:
		return b.binaryExpression(e)
	case *UnaryExpr:
		return b.unaryExpression(e)
	case *CallExpr:
		return b.functionCall(e)
	case *IfExpr:
		return b.ifExpression(e)
	case *ForExpr:
		return b.forExpression(e)
	case *VarExpr:
		return b.varExpression(e)
	default:
		return nil, b.errorf("cannot lower expression of type %T", expr)
	}
}

func (b *LLVMIRBuilder) binaryExpression(expr *BinaryExpr) (value.Value, error) {
	lhs, err := b.expr(expr.Lhs)
	if err != nil {
		return nil, err
	}

	rhs, err := b.expr(expr.Rhs)
	if err != nil {
		return nil, err
	}

	switch expr.Operator {
	case "+":
		return b.block.NewFAdd(lhs, rhs), nil
	case "-":
		return b.block.NewFSub(lhs, rhs), nil
	case "*":
		return b.block.NewFMul(lhs, rhs), nil
	case "/":
		return b.block.NewFDiv(lhs, rhs), nil
	case "<":
		cmp := b.block.NewFCmp(enum.FPredULT, lhs, rhs)
		return b.block.NewUIToFP(cmp, types.Double), nil
	default:
		f, err := b.operatorFunc("binary", expr.Operator)
		if err != nil {
			return nil, err
		}

		return b.block.NewCall(f, lhs, rhs), nil
	}
}

func (b *LLVMIRBuilder) unaryExpression(expr *UnaryExpr) (value.Value, error) {
	operand, err := b.expr(expr.Operand)
	if err != nil {
		return nil, err
	}

	f, err := b.operatorFunc("unary", expr.Operator)
	if err != nil {
		return nil, err
	}

	return b.block.NewCall(f, operand), nil
}

func (b *LLVMIRBuilder) operatorFunc(fixity, op string) (*ir.Func, error) {
	v, ok := b.values.Get(fixity + op)
	if !ok {
		return nil, b.errorf("%s operator '%s' has no definition", fixity, op)
	}

	f, isFunc := v.(*ir.Func)
	if !isFunc {
		return nil, b.errorf("%s operator '%s' is not callable", fixity, op)
	}

	return f, nil
}

func (b *LLVMIRBuilder) functionCall(expr *CallExpr) (value.Value, error) {
	v, ok := b.values.Get(expr.Callee)
	if !ok {
		return nil, b.errorf("undefined function: %s", expr.Callee)
	}

	f, isFunc := v.(*ir.Func)
	if !isFunc {
		return nil, b.errorf("%s is not callable", expr.Callee)
	}

	if len(f.Params) != len(expr.Args) {
		return nil, b.errorf("%s expects %d arguments, got %d", expr.Callee, len(f.Params), len(expr.Args))
	}

	args := make([]value.Value, len(expr.Args))
	for i, arg := range expr.Args {
		argVal, err := b.expr(arg)
		if err != nil {
			return nil, err
		}

		args[i] = argVal
	}

	return b.block.NewCall(f, args...), nil
}

func (b *LLVMIRBuilder) ifExpression(expr *IfExpr) (value.Value, error) {
	cond, err := b.expr(expr.Cond)
	if err != nil {
		return nil, err
	}

	// Any non-zero value is true.
	condBool := b.block.NewFCmp(enum.FPredONE, cond, constant.NewFloat(types.Double, 0))

	thenBlock := b.fn.NewBlock("")
	elseBlock := b.fn.NewBlock("")
	mergeBlock := b.fn.NewBlock("")
	b.block.NewCondBr(condBool, thenBlock, elseBlock)

	b.block = thenBlock
	thenVal, err := b.expr(expr.Then)
	if err != nil {
		return nil, err
	}
	// The branch body may have opened new blocks; the edge into the merge
	// block starts wherever it ended.
	thenExit := b.block
	thenExit.NewBr(mergeBlock)

	b.block = elseBlock
	elseVal, err := b.expr(expr.Else)
	if err != nil {
		return nil, err
	}
	elseExit := b.block
	elseExit.NewBr(mergeBlock)

	b.block = mergeBlock
	return mergeBlock.NewPhi(ir.NewIncoming(thenVal, thenExit), ir.NewIncoming(elseVal, elseExit)), nil
}

func (b *LLVMIRBuilder) forExpression(expr *ForExpr) (value.Value, error) {
	start, err := b.expr(expr.Start)
	if err != nil {
		return nil, err
	}

	preheader := b.block
	loopBlock := b.fn.NewBlock("")
	preheader.NewBr(loopBlock)

	b.block = loopBlock
	induction := loopBlock.NewPhi(ir.NewIncoming(start, preheader))

	// The loop variable shadows any outer binding of the same name.
	prevVals := b.values
	b.values = NewValueLookup()
	b.values.Inherit(prevVals)
	b.values.Set(expr.VarName, induction)

	defer func() {
		b.values = prevVals
	}()

	if _, err := b.expr(expr.Body); err != nil {
		return nil, err
	}

	var step value.Value = constant.NewFloat(types.Double, 1)
	if expr.Step != nil {
		step, err = b.expr(expr.Step)
		if err != nil {
			return nil, err
		}
	}

	next := b.block.NewFAdd(induction, step)

	endVal, err := b.expr(expr.End)
	if err != nil {
		return nil, err
	}

	endCond := b.block.NewFCmp(enum.FPredONE, endVal, constant.NewFloat(types.Double, 0))

	loopExit := b.block
	afterBlock := b.fn.NewBlock("")
	loopExit.NewCondBr(endCond, loopBlock, afterBlock)
	induction.Incs = append(induction.Incs, ir.NewIncoming(next, loopExit))

	b.block = afterBlock

	// The loop form always evaluates to 0.0.
	return constant.NewFloat(types.Double, 0), nil
}

func (b *LLVMIRBuilder) varExpression(expr *VarExpr) (value.Value, error) {
	prevVals := b.values
	b.values = NewValueLookup()
	b.values.Inherit(prevVals)

	defer func() {
		b.values = prevVals
	}()

	for _, binding := range expr.Bindings {
		v, err := b.expr(binding.Init)
		if err != nil {
			return nil, err
		}

		b.values.Set(binding.Name, v)
	}

	return b.expr(expr.Body)
}

func (b *LLVMIRBuilder) errorf(format string, args ...interface{}) error {
	name := ""
	if b.fn != nil {
		name = b.fn.Name()
	}

	return &CodegenError{
		Func: name,
		Msg:  fmt.Sprintf(format, args...),
	}
}

type LLVMGenerator struct {
	ast *AST
}

func NewLLVMGenerator(ast *AST) *LLVMGenerator {
	return &LLVMGenerator{
		ast: ast,
	}
}

func (g LLVMGenerator) Do() (IR, error) {
	builder := NewLLVMIRBuilder()

	for _, item := range g.ast.Items {
		switch n := item.(type) {
		case *Prototype:
			builder.prototype(n)
		case *Function:
			if err := builder.function(n); err != nil {
				return nil, err
			}
		}
	}

	return builder.mod, nil
}
