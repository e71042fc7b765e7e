package minswift

import (
	"testing"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope(t *testing.T) {
	vals := NewScope(nil)

	val1 := constant.NewFloat(types.Double, 1)
	val2 := constant.NewFloat(types.Double, 2)

	vals.Set("id1", val1)
	vals.Set("id2", val2)

	got, ok := vals.Get("id1")
	assert.True(t, ok)
	assert.Equal(t, val1, got)

	got, ok = vals.Get("id2")
	assert.True(t, ok)
	assert.Equal(t, val2, got)

	_, ok = vals.Get("id3")
	assert.False(t, ok)
}

func TestScopeShadowing(t *testing.T) {
	outer := NewScope(nil)

	val1 := constant.NewFloat(types.Double, 1)
	val2 := constant.NewFloat(types.Double, 2)
	val3 := constant.NewFloat(types.Double, 3)

	outer.Set("id1", val1)
	outer.Set("id2", val2)

	inner := outer.Push()
	inner.Set("id1", val3)

	got, _ := inner.Get("id1")
	assert.Equal(t, val3, got)

	got, _ = inner.Get("id2")
	assert.Equal(t, val2, got)

	assert.Same(t, outer, inner.Pop())
	got, _ = outer.Get("id1")
	assert.Equal(t, val1, got)

	assert.Same(t, outer, outer.Pop())
}

func generate(t *testing.T, src string) (*ir.Module, error) {
	t.Helper()

	ast := parseSource(t, src)
	require.NoError(t, ast.Err())

	return NewLLVMGenerator(ast).Do()
}

func findFunc(mod *ir.Module, name string) *ir.Func {
	for _, f := range mod.Funcs {
		if f.Name() == name {
			return f
		}
	}

	return nil
}

func TestGenerateArithmetic(t *testing.T) {
	mod, err := generate(t, "2 + 3 * 4")
	require.NoError(t, err)

	main := findFunc(mod, EntryFunction)
	require.NotNil(t, main)
	require.Len(t, main.Blocks, 1)

	insts := main.Blocks[0].Insts
	require.Len(t, insts, 2)
	assert.IsType(t, &ir.InstFMul{}, insts[0])
	assert.IsType(t, &ir.InstFAdd{}, insts[1])
	assert.IsType(t, &ir.TermRet{}, main.Blocks[0].Term)
	assert.True(t, types.Equal(types.Double, main.Sig.RetType))
}

func TestGenerateComparison(t *testing.T) {
	mod, err := generate(t, "func lt(a: Double, b: Double) -> Double { a < b }")
	require.NoError(t, err)

	insts := findFunc(mod, "lt").Blocks[0].Insts
	require.Len(t, insts, 2)
	assert.IsType(t, &ir.InstFCmp{}, insts[0])
	assert.IsType(t, &ir.InstUIToFP{}, insts[1])
}

func TestGenerateIfElse(t *testing.T) {
	mod, err := generate(t, `
func fibonacci(x: Double) -> Double {
    if x < 3 {
        return 1
    } else {
        return fibonacci(x: x - 1) + fibonacci(x: x - 2)
    }
}
`)
	require.NoError(t, err)

	f := findFunc(mod, "fibonacci")
	require.NotNil(t, f)
	require.Len(t, f.Blocks, 4) // entry, then, else, merge

	assert.IsType(t, &ir.TermCondBr{}, f.Blocks[0].Term)
	assert.IsType(t, &ir.TermBr{}, f.Blocks[1].Term)
	assert.IsType(t, &ir.TermBr{}, f.Blocks[2].Term)

	merge := f.Blocks[3]
	require.NotEmpty(t, merge.Insts)
	phi, ok := merge.Insts[0].(*ir.InstPhi)
	require.True(t, ok)
	require.Len(t, phi.Incs, 2)
	assert.True(t, interface{}(phi.Incs[0].Pred) == interface{}(f.Blocks[1]))
	assert.True(t, interface{}(phi.Incs[1].Pred) == interface{}(f.Blocks[2]))
}

func TestGenerateNestedIfMergesFromInnerBlock(t *testing.T) {
	mod, err := generate(t, `
func sign(x: Double) -> Double {
    if x < 0 { 0 - 1 } else { if 0 < x { 1 } else { 0 } }
}
`)
	require.NoError(t, err)

	f := findFunc(mod, "sign")
	require.Len(t, f.Blocks, 7)

	// The outer merge sees the else arm arrive from the inner merge block
	outerMerge := f.Blocks[3]
	phi := outerMerge.Insts[0].(*ir.InstPhi)
	innerMerge := f.Blocks[6]
	assert.True(t, interface{}(phi.Incs[1].Pred) == interface{}(innerMerge))
}

func TestGenerateForwardCall(t *testing.T) {
	_, err := generate(t, `
func first(x: Double) -> Double { second(y: x) }
func second(y: Double) -> Double { y * 2 }
`)
	assert.NoError(t, err)
}

func TestGenerateVoidFunction(t *testing.T) {
	mod, err := generate(t, "func nothing(x: Double) -> Void { return }")
	require.NoError(t, err)

	f := findFunc(mod, "nothing")
	assert.True(t, types.Equal(types.Void, f.Sig.RetType))
	ret := f.Blocks[0].Term.(*ir.TermRet)
	assert.Nil(t, ret.X)
}

func TestGenerateNestedFunctionIsNotANumber(t *testing.T) {
	mod, err := generate(t, `
func wrapper(z: Double) -> Double {
    if z < 1 { func inner(y: Double) -> Double { y } } else { z }
}
`)
	assert.Nil(t, mod)

	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "if expression", mismatch.Construct)
}

func TestGenerateNestedFunctionKeepsCursor(t *testing.T) {
	ctx := NewBuildContext()
	outer := &FunctionDef{
		Name:       "outer",
		Params:     []Param{{Label: "x", Name: "x", Type: TypeDouble}},
		ReturnType: TypeDouble,
		Body: &BinaryExpr{
			Operation: BinaryAddition,
			LHS:       &VariableRef{"x"},
			RHS:       &NumberLiteral{1},
		},
	}
	inner := &FunctionDef{Name: "inner", ReturnType: TypeDouble, Body: &NumberLiteral{2}}

	_, err := Lower(outer, ctx)
	require.NoError(t, err)

	// Simulate lowering a nested definition while outer is open
	entry := findFunc(ctx.Module, "outer").Blocks[0]
	ctx.PositionAtEnd(entry)
	ctx.scope.Set("x", findFunc(ctx.Module, "outer").Params[0])

	_, err = Lower(inner, ctx)
	require.NoError(t, err)

	assert.Same(t, entry, ctx.Cursor())
	_, ok := ctx.Scope().Get("x")
	assert.True(t, ok)

	fn, ok := ctx.LookupFunction("inner")
	require.True(t, ok)
	assert.Equal(t, FuncReturned, fn.State)
}

func TestGenerateErrors(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		expect interface{}
	}{
		{"undefined function", "missing(x: 1)", &UndefinedFunctionError{}},
		{"undefined variable", "func f(x: Double) -> Double { y }", &UndefinedVariableError{}},
		{"duplicate function", "func f(x: Double) -> Double { x } func f(y: Double) -> Double { y }", &DuplicateFunctionError{}},
		{"duplicate parameter", "func f(x: Double, x: Double) -> Double { x }", &DuplicateParameterError{}},
		{"label mismatch", "func f(x: Double) -> Double { x } f(y: 1)", &LabelMismatchError{}},
		{"arity mismatch", "func f(x: Double) -> Double { x } f(x: 1, y: 2)", &ArityMismatchError{}},
		{"unknown return type", "func f(x: Double) -> Int { x }", &UnknownTypeError{}},
		{"unknown parameter type", "func f(x: String) -> Double { x }", &UnknownTypeError{}},
		{"void return from double function", "func f(x: Double) -> Double { return }", &ReturnTypeMismatchError{}},
		{"value from void function", "func f(x: Double) -> Void { x }", &ReturnTypeMismatchError{}},
		{"void operand", "func g(x: Double) -> Void { return } func f(x: Double) -> Double { g(x: x) + 1 }", &TypeMismatchError{}},
		{"mixed if arms", "func f(x: Double) -> Double { if x { return } else { 1 } }", &TypeMismatchError{}},
		{"two entry expressions", "1 + 2 3 * 4", &DuplicateFunctionError{}},
		{"parameters do not leak", "func f(x: Double) -> Double { x } func g(y: Double) -> Double { x }", &UndefinedVariableError{}},
	}

	for _, c := range cases {
		mod, err := generate(t, c.src)

		assert.Nil(t, mod, c.name)
		require.Error(t, err, c.name)
		target := c.expect
		assert.True(t, asType(err, target), "%s: got %v", c.name, err)
	}
}

func TestGenerateSecondEntryExpression(t *testing.T) {
	ast := parseSource(t, "1 + 2\n3 * 4")
	require.NoError(t, ast.Err())
	require.Len(t, ast.Statements, 2)

	mod, err := NewLLVMGenerator(ast).Do()
	assert.Nil(t, mod)

	var duplicate *DuplicateFunctionError
	require.True(t, errors.As(err, &duplicate))
	assert.Equal(t, EntryFunction, duplicate.Name)
}

// asType reports whether err wraps an error of the same type as target.
func asType(err error, target interface{}) bool {
	switch target.(type) {
	case *UndefinedFunctionError:
		var e *UndefinedFunctionError
		return errors.As(err, &e)
	case *UndefinedVariableError:
		var e *UndefinedVariableError
		return errors.As(err, &e)
	case *DuplicateFunctionError:
		var e *DuplicateFunctionError
		return errors.As(err, &e)
	case *DuplicateParameterError:
		var e *DuplicateParameterError
		return errors.As(err, &e)
	case *LabelMismatchError:
		var e *LabelMismatchError
		return errors.As(err, &e)
	case *ArityMismatchError:
		var e *ArityMismatchError
		return errors.As(err, &e)
	case *UnknownTypeError:
		var e *UnknownTypeError
		return errors.As(err, &e)
	case *ReturnTypeMismatchError:
		var e *ReturnTypeMismatchError
		return errors.As(err, &e)
	case *TypeMismatchError:
		var e *TypeMismatchError
		return errors.As(err, &e)
	}

	return false
}

func TestGeneratedIRParses(t *testing.T) {
	mod, err := generate(t, `
func cube(x: Double) -> Double { return x * x * x }
func fibonacci(x: Double) -> Double {
    if x < 3 { return 1 } else { return fibonacci(x: x - 1) + fibonacci(x: x - 2) }
}
cube(x: fibonacci(x: 5)) / 2
`)
	require.NoError(t, err)

	parsed, err := asm.ParseString("generated.ll", mod.String())
	require.NoError(t, err)
	assert.Len(t, parsed.Funcs, 3)
}
