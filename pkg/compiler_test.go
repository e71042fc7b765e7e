package minswift

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fib.swift")
	require.NoError(t, os.WriteFile(path, []byte(fibonacci), 0o644))

	mod, err := NewCompiler().Compile(path)
	require.NoError(t, err)
	assert.NotNil(t, findFunc(mod, "fibonacci"))

	_, err = NewCompiler().Compile(filepath.Join(t.TempDir(), "missing.swift"))
	assert.Error(t, err)
}

func TestCompileUndefinedFunctionLoadsNothing(t *testing.T) {
	engine := NewEngine()

	mod, err := NewCompiler().CompileAndLoad(strings.NewReader(`
func f(x: Double) -> Double { x }
g(x: 1)
`), engine)
	assert.Nil(t, mod)

	var undefined *UndefinedFunctionError
	require.True(t, errors.As(err, &undefined))
	assert.Equal(t, "g", undefined.Name)

	// f compiled fine, but the failed module must not be reachable
	_, err = engine.Run("f", 1)
	assert.True(t, errors.As(err, &undefined))
}

func TestCompileReportsAllParseErrors(t *testing.T) {
	_, err := NewCompiler().CompileString(`
func a(x: Double) -> Double { if x { 1 } }
func b(x: Double) -> Double { (x + 1 }
func c(x: Double) -> Double { x }
`)

	var list ErrorList
	require.True(t, errors.As(err, &list))
	require.Len(t, list, 2)
	assert.IsType(t, &MissingElseError{}, list[0])
	assert.IsType(t, &UnmatchedDelimiterError{}, list[1])
}

func TestCompileLexError(t *testing.T) {
	_, err := NewCompiler().CompileString("1 + $")

	var lexErr *LexError
	assert.True(t, errors.As(err, &lexErr))
}

func TestCompileNulIsNotEndOfInput(t *testing.T) {
	mod, err := NewCompiler().CompileString("1 + 2 \x00 * 100")
	assert.Nil(t, mod)

	var lexErr *LexError
	require.True(t, errors.As(err, &lexErr))
	assert.Contains(t, lexErr.Msg, `'\x00'`)
}
