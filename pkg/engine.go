package minswift

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

const DefaultMaxDepth = 10000

var ErrStackOverflow = errors.New("call depth limit exceeded")

// Signature describes how a function is expected to be called: how many
// Double parameters it takes and whether it returns a Double or nothing.
type Signature struct {
	Params int
	Void   bool
}

func (s Signature) String() string {
	ret := TypeDouble
	if s.Void {
		ret = TypeVoid
	}

	return fmt.Sprintf("(%d x %s) -> %s", s.Params, TypeDouble, ret)
}

func signatureOf(f *ir.Func) Signature {
	return Signature{
		Params: len(f.Params),
		Void:   types.Equal(f.Sig.RetType, types.Void),
	}
}

type SignatureMismatchError struct {
	Name     string
	Expected Signature
	Got      Signature
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("function '%s' has signature %s, invoked as %s", e.Name, e.Got, e.Expected)
}

type EngineOption func(*Engine)

// WithMaxDepth bounds the depth of nested calls, so runaway recursion fails
// with ErrStackOverflow instead of exhausting the Go stack.
func WithMaxDepth(depth int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithTrace writes a line to w for every function call.
func WithTrace(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.trace = w
	}
}

// Engine executes compiled modules by interpreting their IR. Compiled
// functions are cached by name; Invoke may be called concurrently.
type Engine struct {
	mu    sync.RWMutex
	funcs map[string]*ir.Func

	maxDepth int
	trace    io.Writer
	traceMu  sync.Mutex
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		funcs:    make(map[string]*ir.Func),
		maxDepth: DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Compile checks that every function of mod is complete and makes them
// callable. Nothing is loaded if any function is rejected.
func (e *Engine) Compile(mod *ir.Module) error {
	if mod == nil {
		return errors.New("no module to compile")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, f := range mod.Funcs {
		name := f.Name()
		if _, exists := e.funcs[name]; exists {
			return errors.Errorf("function '%s' is already loaded", name)
		}

		if len(f.Blocks) == 0 {
			return errors.Errorf("function '%s' has no body", name)
		}

		for _, block := range f.Blocks {
			if block.Term == nil {
				return errors.Errorf("function '%s': block %s has no terminator", name, block.Ident())
			}
		}
	}

	for _, f := range mod.Funcs {
		e.funcs[f.Name()] = f
	}

	return nil
}

// Invoke calls the named function. sig must match the compiled function and
// args must have sig.Params elements. Void functions return 0.
func (e *Engine) Invoke(name string, sig Signature, args ...float64) (float64, error) {
	e.mu.RLock()
	f, ok := e.funcs[name]
	e.mu.RUnlock()

	if !ok {
		return 0, &UndefinedFunctionError{Name: name}
	}

	if got := signatureOf(f); got != sig || len(args) != sig.Params {
		return 0, &SignatureMismatchError{Name: name, Expected: sig, Got: got}
	}

	return e.call(f, args, 1)
}

// Run invokes a Double returning function with len(args) parameters.
func (e *Engine) Run(name string, args ...float64) (float64, error) {
	return e.Invoke(name, Signature{Params: len(args)}, args...)
}

type frame map[value.Value]float64

func (e *Engine) call(f *ir.Func, args []float64, depth int) (float64, error) {
	if depth > e.maxDepth {
		return 0, ErrStackOverflow
	}

	if e.trace != nil {
		e.traceMu.Lock()
		fmt.Fprintf(e.trace, "%*scall %s%v\n", 2*(depth-1), "", f.Name(), args)
		e.traceMu.Unlock()
	}

	fr := make(frame)
	for i, param := range f.Params {
		fr[param] = args[i]
	}

	var prev *ir.Block
	block := f.Blocks[0]
	for {
		if err := e.phis(fr, block, prev); err != nil {
			return 0, errors.Wrapf(err, "in function '%s'", f.Name())
		}

		for _, inst := range block.Insts {
			if _, isPhi := inst.(*ir.InstPhi); isPhi {
				continue
			}

			if err := e.exec(fr, inst, depth); err != nil {
				return 0, errors.Wrapf(err, "in function '%s'", f.Name())
			}
		}

		switch term := block.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return 0, nil
			}

			return fr.eval(term.X)
		case *ir.TermBr:
			next, err := asBlock(term.Target)
			if err != nil {
				return 0, err
			}
			prev, block = block, next
		case *ir.TermCondBr:
			cond, err := fr.eval(term.Cond)
			if err != nil {
				return 0, err
			}

			target := interface{}(term.TargetFalse)
			if cond != 0 {
				target = term.TargetTrue
			}

			next, err := asBlock(target)
			if err != nil {
				return 0, err
			}
			prev, block = block, next
		default:
			return 0, errors.Errorf("in function '%s': unsupported terminator %T", f.Name(), term)
		}
	}
}

// phis evaluates the phi nodes at the head of block. All incoming values are
// read before any phi is written.
func (e *Engine) phis(fr frame, block, prev *ir.Block) error {
	var (
		nodes []*ir.InstPhi
		vals  []float64
	)

	for _, inst := range block.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			break
		}

		found := false
		for _, inc := range phi.Incs {
			if interface{}(inc.Pred) != interface{}(prev) {
				continue
			}

			v, err := fr.eval(inc.X)
			if err != nil {
				return err
			}

			nodes = append(nodes, phi)
			vals = append(vals, v)
			found = true
			break
		}

		if !found {
			return errors.Errorf("phi in block %s has no incoming value for its predecessor", block.Ident())
		}
	}

	for i, phi := range nodes {
		fr[phi] = vals[i]
	}

	return nil
}

func (e *Engine) exec(fr frame, inst ir.Instruction, depth int) error {
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 { return x + y })
	case *ir.InstFSub:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 { return x - y })
	case *ir.InstFMul:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 { return x * y })
	case *ir.InstFDiv:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 { return x / y })
	case *ir.InstFCmp:
		cmp, err := fcmp(inst.Pred)
		if err != nil {
			return err
		}

		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 {
			if cmp(x, y) {
				return 1
			}
			return 0
		})
	case *ir.InstUIToFP:
		v, err := fr.eval(inst.From)
		if err != nil {
			return err
		}
		fr[inst] = v
	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok {
			return errors.Errorf("indirect call through %s", inst.Callee.Ident())
		}

		args := make([]float64, len(inst.Args))
		for i, arg := range inst.Args {
			v, err := fr.eval(arg)
			if err != nil {
				return err
			}
			args[i] = v
		}

		if len(args) != len(callee.Params) {
			return errors.Errorf("call to '%s' with %d arguments, expects %d", callee.Name(), len(args), len(callee.Params))
		}

		if len(callee.Blocks) == 0 {
			return errors.Errorf("call to '%s', which has no body", callee.Name())
		}

		v, err := e.call(callee, args, depth+1)
		if err != nil {
			return err
		}
		fr[inst] = v
	default:
		return errors.Errorf("unsupported instruction %T", inst)
	}

	return nil
}

func (fr frame) binary(inst value.Value, x, y value.Value, op func(x, y float64) float64) error {
	a, err := fr.eval(x)
	if err != nil {
		return err
	}

	b, err := fr.eval(y)
	if err != nil {
		return err
	}

	fr[inst] = op(a, b)
	return nil
}

func (fr frame) eval(v value.Value) (float64, error) {
	switch c := v.(type) {
	case *constant.Float:
		f, _ := c.X.Float64()
		return f, nil
	case *constant.Int:
		return float64(c.X.Int64()), nil
	}

	if f, ok := fr[v]; ok {
		return f, nil
	}

	return 0, errors.Errorf("value %s used before it was computed", v.Ident())
}

func fcmp(pred enum.FPred) (func(x, y float64) bool, error) {
	ordered := func(cmp func(x, y float64) bool) func(x, y float64) bool {
		return func(x, y float64) bool {
			return !math.IsNaN(x) && !math.IsNaN(y) && cmp(x, y)
		}
	}

	switch pred {
	case enum.FPredOEQ:
		return ordered(func(x, y float64) bool { return x == y }), nil
	case enum.FPredONE:
		return ordered(func(x, y float64) bool { return x != y }), nil
	case enum.FPredOLT:
		return ordered(func(x, y float64) bool { return x < y }), nil
	case enum.FPredOLE:
		return ordered(func(x, y float64) bool { return x <= y }), nil
	case enum.FPredOGT:
		return ordered(func(x, y float64) bool { return x > y }), nil
	case enum.FPredOGE:
		return ordered(func(x, y float64) bool { return x >= y }), nil
	default:
		return nil, errors.Errorf("unsupported fcmp predicate %s", pred)
	}
}

func asBlock(target interface{}) (*ir.Block, error) {
	block, ok := target.(*ir.Block)
	if !ok {
		return nil, errors.Errorf("branch target %v is not a block", target)
	}

	return block, nil
}
