package minswift

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Scope maps identifiers to IR values. Lookups walk outwards through the
// parent scopes, so inner scopes may shadow outer names.
type Scope struct {
	parent *Scope
	vals   map[string]value.Value
}

func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent: parent,
		vals:   make(map[string]value.Value),
	}
}

func (s *Scope) Get(id string) (value.Value, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if val, ok := scope.vals[id]; ok {
			return val, true
		}
	}

	return nil, false
}

// Set binds id in this scope only.
func (s *Scope) Set(id string, val value.Value) {
	s.vals[id] = val
}

func (s *Scope) Push() *Scope {
	return NewScope(s)
}

// Pop returns the enclosing scope. The root scope pops to itself.
func (s *Scope) Pop() *Scope {
	if s.parent == nil {
		return s
	}

	return s.parent
}

// FuncState tracks how far lowering of a function got.
type FuncState int

const (
	FuncDeclared FuncState = iota
	FuncEntryOpened
	FuncBodyLowered
	FuncReturned
)

func (s FuncState) String() string {
	switch s {
	case FuncDeclared:
		return "declared"
	case FuncEntryOpened:
		return "entry opened"
	case FuncBodyLowered:
		return "body lowered"
	case FuncReturned:
		return "returned"
	default:
		return fmt.Sprintf("FuncState(%d)", int(s))
	}
}

// Function is a declared function plus what calls need to check against it.
type Function struct {
	Func   *ir.Func
	Labels []string
	Void   bool
	State  FuncState
}

// BuildContext is the mutable state of one compilation. It is not safe for
// concurrent use; every compilation needs its own.
type BuildContext struct {
	Module *ir.Module

	block    *ir.Block
	scope    *Scope
	current  *Function
	funcs    map[string]*Function
	declared map[*FunctionDef]*Function
	labels   int
}

func NewBuildContext() *BuildContext {
	return &BuildContext{
		Module:   ir.NewModule(),
		scope:    NewScope(nil),
		funcs:    make(map[string]*Function),
		declared: make(map[*FunctionDef]*Function),
	}
}

// Cursor is the block currently receiving instructions.
func (c *BuildContext) Cursor() *ir.Block {
	return c.block
}

func (c *BuildContext) Scope() *Scope {
	return c.scope
}

func (c *BuildContext) DeclareFunction(name string, params []Param, void bool) *Function {
	ret := types.Type(types.Double)
	if void {
		ret = types.Void
	}

	irParams := make([]*ir.Param, len(params))
	labels := make([]string, len(params))
	for i, param := range params {
		irParams[i] = ir.NewParam(param.Name, types.Double)
		labels[i] = param.Label
	}

	fn := &Function{
		Func:   c.Module.NewFunc(name, ret, irParams...),
		Labels: labels,
		Void:   void,
	}
	c.funcs[name] = fn

	return fn
}

func (c *BuildContext) LookupFunction(name string) (*Function, bool) {
	fn, ok := c.funcs[name]
	return fn, ok
}

// AppendBlock adds a block to f. Labels get a numeric suffix so nested
// constructs never produce clashing block names.
func (c *BuildContext) AppendBlock(f *ir.Func, label string) *ir.Block {
	if label != "entry" {
		c.labels++
		label = fmt.Sprintf("%s.%d", label, c.labels)
	}

	return f.NewBlock(label)
}

func (c *BuildContext) PositionAtEnd(block *ir.Block) {
	c.block = block
}

func (c *BuildContext) BuildConstant(v float64) value.Value {
	return constant.NewFloat(types.Double, v)
}

func (c *BuildContext) BuildBinaryOp(op BinaryOp, lhs, rhs value.Value) value.Value {
	switch op {
	case BinaryAddition:
		return c.block.NewFAdd(lhs, rhs)
	case BinarySubtraction:
		return c.block.NewFSub(lhs, rhs)
	case BinaryMultiplication:
		return c.block.NewFMul(lhs, rhs)
	case BinaryDivision:
		return c.block.NewFDiv(lhs, rhs)
	default:
		panic("unexpected arithmetic op: " + op)
	}
}

func (c *BuildContext) BuildCompare(pred enum.FPred, lhs, rhs value.Value) value.Value {
	return c.block.NewFCmp(pred, lhs, rhs)
}

// BuildBoolToDouble widens an i1 to 1.0 or 0.0.
func (c *BuildContext) BuildBoolToDouble(v value.Value) value.Value {
	return c.block.NewUIToFP(v, types.Double)
}

func (c *BuildContext) BuildCall(f *Function, args []value.Value) value.Value {
	return c.block.NewCall(f.Func, args...)
}

func (c *BuildContext) BuildCondBranch(cond value.Value, then, els *ir.Block) {
	c.block.NewCondBr(cond, then, els)
}

func (c *BuildContext) BuildBranch(target *ir.Block) {
	c.block.NewBr(target)
}

func (c *BuildContext) BuildPhi(typ types.Type) *ir.InstPhi {
	// Incomings are added once both arms are lowered, so the type can't be
	// inferred from them here.
	phi := &ir.InstPhi{Typ: typ}
	c.block.Insts = append(c.block.Insts, phi)

	return phi
}

func (c *BuildContext) AddIncoming(phi *ir.InstPhi, v value.Value, from *ir.Block) {
	phi.Incs = append(phi.Incs, ir.NewIncoming(v, from))
}

// BuildReturn emits ret. A nil value emits ret void.
func (c *BuildContext) BuildReturn(v value.Value) {
	c.block.NewRet(v)
}
