package minswift

import (
	"io"
	"os"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
)

type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

func (c *Compiler) Compile(filename string) (*ir.Module, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open source")
	}
	defer f.Close()

	mod, err := c.CompileFromReader(f)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}

	return mod, nil
}

func (c *Compiler) CompileFromReader(reader io.Reader) (*ir.Module, error) {
	tokens, err := Tokenize(reader)
	if err != nil {
		return nil, err
	}

	return c.compile(ParseProgram(tokens))
}

func (c *Compiler) CompileString(src string) (*ir.Module, error) {
	return c.CompileFromReader(strings.NewReader(src))
}

// CompileAndLoad compiles the source and hands the module to engine. A
// module is only loaded if the whole compilation succeeded.
func (c *Compiler) CompileAndLoad(reader io.Reader, engine *Engine) (*ir.Module, error) {
	mod, err := c.CompileFromReader(reader)
	if err != nil {
		return nil, err
	}

	if err := engine.Compile(mod); err != nil {
		return nil, errors.Wrap(err, "load module")
	}

	return mod, nil
}

func (c *Compiler) compile(ast *AST) (*ir.Module, error) {
	if err := ast.Err(); err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	mod, err := NewLLVMGenerator(ast).Do()
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	return mod, nil
}

func Tokenize(reader io.Reader) ([]Token, error) {
	tokens, err := NewLexer(reader).RunBlocking()
	if err != nil {
		return nil, errors.Wrap(err, "lex")
	}

	return tokens, nil
}
