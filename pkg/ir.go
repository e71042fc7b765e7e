package minswift

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

type voidValue struct{}

func (voidValue) String() string   { return "void" }
func (voidValue) Type() types.Type { return types.Void }
func (voidValue) Ident() string    { return "void" }

// Void is what a bare `return` lowers to.
var Void value.Value = voidValue{}

func isDouble(v value.Value) bool {
	return types.Equal(v.Type(), types.Double)
}

func isVoid(v value.Value) bool {
	return types.Equal(v.Type(), types.Void)
}

func describe(v value.Value) string {
	switch {
	case isDouble(v):
		return TypeDouble
	case isVoid(v):
		return TypeVoid
	default:
		return v.Type().String()
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

// Do lowers the whole program. Every top level function is declared before
// any body is lowered, so calls may refer to functions defined later in the
// source. Either the complete module or an error is returned, never both.
func (g LLVMGenerator) Do() (*ir.Module, error) {
	if err := g.ast.Err(); err != nil {
		return nil, err
	}

	ctx := NewBuildContext()
	for _, stmt := range g.ast.Statements {
		if def, ok := stmt.(*FunctionDef); ok {
			if _, err := ctx.declare(def); err != nil {
				return nil, err
			}
		}
	}

	for _, stmt := range g.ast.Statements {
		if _, err := Lower(stmt, ctx); err != nil {
			return nil, err
		}
	}

	return ctx.Module, nil
}

// Lower emits the IR for node at the context's cursor and returns its value.
func Lower(node Node, ctx *BuildContext) (value.Value, error) {
	switch n := node.(type) {
	case *NumberLiteral:
		return ctx.BuildConstant(n.Value), nil
	case *VariableRef:
		return lowerVariable(n, ctx)
	case *BinaryExpr:
		return lowerBinary(n, ctx)
	case *FunctionDef:
		return lowerFunction(n, ctx)
	case *CallExpr:
		return lowerCall(n, ctx)
	case *IfElse:
		return lowerIfElse(n, ctx)
	case *Return:
		if n.Body == nil {
			return Void, nil
		}

		return Lower(n.Body, ctx)
	default:
		// Node is sealed, so this is a bug rather than bad input
		panic(fmt.Sprintf("unexpected node %T", node))
	}
}

func lowerVariable(n *VariableRef, ctx *BuildContext) (value.Value, error) {
	v, ok := ctx.scope.Get(n.Name)
	if !ok {
		return nil, &UndefinedVariableError{Name: n.Name, Function: ctx.currentName()}
	}

	return v, nil
}

func lowerBinary(n *BinaryExpr, ctx *BuildContext) (value.Value, error) {
	lhs, err := Lower(n.LHS, ctx)
	if err != nil {
		return nil, err
	}

	rhs, err := Lower(n.RHS, ctx)
	if err != nil {
		return nil, err
	}

	for _, v := range []value.Value{lhs, rhs} {
		if !isDouble(v) {
			return nil, &TypeMismatchError{
				Construct: fmt.Sprintf("operator '%s'", n.Operation),
				Got:       describe(v),
			}
		}
	}

	switch n.Operation {
	case BinaryAddition, BinarySubtraction, BinaryMultiplication, BinaryDivision:
		return ctx.BuildBinaryOp(n.Operation, lhs, rhs), nil
	case BinaryLessThan:
		cmp := ctx.BuildCompare(enum.FPredOLT, lhs, rhs)
		return ctx.BuildBoolToDouble(cmp), nil
	default:
		panic("unexpected binary op: " + n.Operation)
	}
}

// declare checks the signature of def and adds it to the module.
func (c *BuildContext) declare(def *FunctionDef) (*Function, error) {
	if _, exists := c.LookupFunction(def.Name); exists {
		return nil, &DuplicateFunctionError{Name: def.Name}
	}

	var void bool
	switch def.ReturnType {
	case TypeDouble:
	case TypeVoid:
		void = true
	default:
		return nil, &UnknownTypeError{Function: def.Name, Type: def.ReturnType}
	}

	seen := make(map[string]bool, len(def.Params))
	for _, param := range def.Params {
		if param.Type != TypeDouble {
			return nil, &UnknownTypeError{Function: def.Name, Type: param.Type}
		}

		if seen[param.Name] {
			return nil, &DuplicateParameterError{Function: def.Name, Name: param.Name}
		}
		seen[param.Name] = true
	}

	fn := c.DeclareFunction(def.Name, def.Params, void)
	c.declared[def] = fn

	return fn, nil
}

func lowerFunction(def *FunctionDef, ctx *BuildContext) (value.Value, error) {
	fn, ok := ctx.declared[def]
	if !ok {
		var err error
		if fn, err = ctx.declare(def); err != nil {
			return nil, err
		}
	}

	// Nested definitions must not disturb the enclosing function
	prevBlock, prevScope, prevFunc := ctx.block, ctx.scope, ctx.current
	defer func() {
		ctx.block, ctx.scope, ctx.current = prevBlock, prevScope, prevFunc
	}()

	ctx.current = fn
	ctx.PositionAtEnd(ctx.AppendBlock(fn.Func, "entry"))
	fn.State = FuncEntryOpened

	ctx.scope = NewScope(nil)
	for i, param := range def.Params {
		ctx.scope.Set(param.Name, fn.Func.Params[i])
	}

	body, err := Lower(def.Body, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "in function '%s'", def.Name)
	}
	fn.State = FuncBodyLowered

	switch {
	case fn.Void && isVoid(body):
		ctx.BuildReturn(nil)
	case !fn.Void && isDouble(body):
		ctx.BuildReturn(body)
	default:
		return nil, &ReturnTypeMismatchError{
			Function: def.Name,
			Declared: def.ReturnType,
			Got:      describe(body),
		}
	}
	fn.State = FuncReturned

	return fn.Func, nil
}

func lowerCall(n *CallExpr, ctx *BuildContext) (value.Value, error) {
	fn, ok := ctx.LookupFunction(n.Callee)
	if !ok {
		return nil, &UndefinedFunctionError{Name: n.Callee}
	}

	if len(n.Args) != len(fn.Labels) {
		return nil, &ArityMismatchError{Callee: n.Callee, Expected: len(fn.Labels), Got: len(n.Args)}
	}

	args := make([]value.Value, len(n.Args))
	for i, arg := range n.Args {
		if arg.Label != fn.Labels[i] {
			return nil, &LabelMismatchError{
				Callee:   n.Callee,
				Position: i + 1,
				Expected: fn.Labels[i],
				Got:      arg.Label,
			}
		}

		v, err := Lower(arg.Value, ctx)
		if err != nil {
			return nil, err
		}

		if !isDouble(v) {
			return nil, &TypeMismatchError{
				Construct: fmt.Sprintf("argument '%s' of '%s'", arg.Label, n.Callee),
				Got:       describe(v),
			}
		}
		args[i] = v
	}

	return ctx.BuildCall(fn, args), nil
}

func lowerIfElse(n *IfElse, ctx *BuildContext) (value.Value, error) {
	cond, err := Lower(n.Condition, ctx)
	if err != nil {
		return nil, err
	}

	if !isDouble(cond) {
		return nil, &TypeMismatchError{Construct: "if condition", Got: describe(cond)}
	}

	boolean := ctx.BuildCompare(enum.FPredONE, cond, ctx.BuildConstant(0))

	f := ctx.current.Func
	thenBlock := ctx.AppendBlock(f, "then")
	elseBlock := ctx.AppendBlock(f, "else")
	mergeBlock := ctx.AppendBlock(f, "merge")

	ctx.BuildCondBranch(boolean, thenBlock, elseBlock)

	thenVal, thenEnd, err := lowerArm(n.Then, thenBlock, mergeBlock, ctx)
	if err != nil {
		return nil, err
	}

	elseVal, elseEnd, err := lowerArm(n.Else, elseBlock, mergeBlock, ctx)
	if err != nil {
		return nil, err
	}

	ctx.PositionAtEnd(mergeBlock)

	switch {
	case isVoid(thenVal) && isVoid(elseVal):
		return Void, nil
	case isDouble(thenVal) && isDouble(elseVal):
		phi := ctx.BuildPhi(types.Double)
		ctx.AddIncoming(phi, thenVal, thenEnd)
		ctx.AddIncoming(phi, elseVal, elseEnd)

		return phi, nil
	default:
		return nil, &TypeMismatchError{
			Construct: "if expression",
			Got:       describe(thenVal) + " and " + describe(elseVal),
		}
	}
}

// lowerArm lowers one branch of an if expression into block and jumps to
// merge. The returned block is where the arm ended, which differs from block
// when the arm holds its own control flow.
func lowerArm(arm Node, block, merge *ir.Block, ctx *BuildContext) (value.Value, *ir.Block, error) {
	ctx.PositionAtEnd(block)

	ctx.scope = ctx.scope.Push()
	v, err := Lower(arm, ctx)
	ctx.scope = ctx.scope.Pop()
	if err != nil {
		return nil, nil, err
	}

	end := ctx.Cursor()
	ctx.BuildBranch(merge)

	return v, end, nil
}

func (c *BuildContext) currentName() string {
	if c.current == nil {
		return ""
	}

	return c.current.Func.Name()
}
