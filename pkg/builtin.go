package kaleido

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

// builtinPrototypes lists the signatures every compilation unit starts
// with. The semantic pass and the IR builder must agree on this set.
func builtinPrototypes() []*Prototype {
	return []*Prototype{
		{Name: "printd", Params: []string{"x"}},
		{Name: "putchard", Params: []string{"c"}},
	}
}

func defineBuiltins(b *LLVMIRBuilder) {
	defineBuiltinFunc(b, "printd", builtinPrintd)
	defineBuiltinFunc(b, "putchard", builtinPutchard)
}

type funcDefinition = func(mod *ir.Module) *ir.Func

func defineBuiltinFunc(b *LLVMIRBuilder, name string, definition funcDefinition) {
	f := definition(b.mod)
	f.SetName(name)
	b.values.Set(name, f)
}

// builtinPrintd prints its argument followed by a newline and evaluates to
// 0.0.
func builtinPrintd(mod *ir.Module) *ir.Func {
	f := mod.NewFunc("", types.Double, ir.NewParam("x", types.Double))
	b := f.NewBlock("")

	printf := mod.NewFunc("printf", types.I32, ir.NewParam("format", types.I8Ptr))
	printf.Sig.Variadic = true

	zero := constant.NewInt(types.I32, 0)

	format := constant.NewCharArrayFromString("%f\n\x00")
	formatGlob := mod.NewGlobalDef("._printd_fmt", format)

	fmtAddr := constant.NewGetElementPtr(types.NewArray(4, types.I8), formatGlob, zero, zero)

	b.NewCall(printf, fmtAddr, f.Params[0])

	b.NewRet(constant.NewFloat(types.Double, 0))

	return f
}

// builtinPutchard writes a single character given as its code point and
// evaluates to 0.0.
func builtinPutchard(mod *ir.Module) *ir.Func {
	f := mod.NewFunc("", types.Double, ir.NewParam("c", types.Double))
	b := f.NewBlock("")

	putchar := mod.NewFunc("putchar", types.I32, ir.NewParam("c", types.I32))

	code := b.NewFPToSI(f.Params[0], types.I32)
	b.NewCall(putchar, code)

	b.NewRet(constant.NewFloat(types.Double, 0))

	return f
}
