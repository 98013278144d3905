package kaleido

import "io"

type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

func (c *Compiler) Compile(filename string) (IR, []CompileError, error) {
	lexer, err := NewLexer(filename)
	if err != nil {
		return nil, nil, err
	}

	return c.compile(NewParser(lexer))
}

func (c *Compiler) CompileFromReader(reader io.Reader) (IR, []CompileError, error) {
	return c.compile(NewParser(NewLexerFromReader(reader)))
}

func (c *Compiler) compile(p *Parser) (IR, []CompileError, error) {
	ast, err := p.Run()
	if err != nil {
		return nil, nil, err
	}

	if errs := NewContextAnalyser().Do(ast); len(errs) != 0 {
		return nil, errs, nil
	}

	mod, err := NewLLVMGenerator(ast).Do()
	if err != nil {
		return nil, nil, err
	}

	return mod, nil, nil
}
