package main

import (
	"fmt"
	"os"

	"go.kaleido.dev/pkg"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: kaleido <file.k>")
		os.Exit(2)
	}

	c := kaleido.NewCompiler()
	mod, compileErrs, err := c.Compile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(compileErrs) != 0 {
		printErrors(compileErrs)
		os.Exit(1)
	}

	fmt.Print(mod)
}

func printErrors(errors []kaleido.CompileError) {
	for _, err := range errors {
		switch e := err.(type) {
		case *kaleido.UndefinedError:
			fmt.Fprintln(os.Stderr, "undefined value:", e.Name, "in", e.Func)
		case *kaleido.ArityError:
			fmt.Fprintln(os.Stderr, "bad call:", e.Callee, "expects", e.Want, "arguments, got", e.Got, "in", e.Func)
		case *kaleido.RedefinedError:
			fmt.Fprintln(os.Stderr, "redefinition:", e.Name)
		case *kaleido.DuplicateParamError:
			fmt.Fprintln(os.Stderr, "duplicate parameter:", e.Param, "in", e.Func)
		case *kaleido.UndefinedOperatorError:
			fmt.Fprintln(os.Stderr, "undefined operator:", e.Op, "in", e.Func)
		default:
			fmt.Fprintln(os.Stderr, e)
		}
	}
}
