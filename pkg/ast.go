package minswift

// EntryFunction names the implicit function wrapping a top level expression.
const EntryFunction = "main"

// Type names understood in signatures.
const (
	TypeDouble = "Double"
	TypeVoid   = "Void"
)

type AST struct {
	Statements []Node
	Errors     []CompileError
}

// Err reports the parse diagnostics as a single error, or nil.
func (a *AST) Err() error {
	return ErrorList(a.Errors).Err()
}

// Node is implemented only by the node types of this package.
type Node interface {
	node()
}

type NumberLiteral struct {
	Value float64
}

type VariableRef struct {
	Name string
}

type BinaryOp string

const (
	BinaryAddition       BinaryOp = "+"
	BinarySubtraction    BinaryOp = "-"
	BinaryMultiplication BinaryOp = "*"
	BinaryDivision       BinaryOp = "/"
	BinaryLessThan       BinaryOp = "<"
)

// Binding strength of each operator. Comparisons bind loosest.
var precedences = map[BinaryOp]int{
	BinaryLessThan:       10,
	BinaryAddition:       20,
	BinarySubtraction:    20,
	BinaryMultiplication: 40,
	BinaryDivision:       40,
}

type BinaryExpr struct {
	Operation BinaryOp
	LHS       Node
	RHS       Node
}

type Param struct {
	Label string
	Name  string
	Type  string
}

type FunctionDef struct {
	Name       string
	Params     []Param
	ReturnType string
	Body       Node
}

type Argument struct {
	Label string
	Value Node
}

type CallExpr struct {
	Callee string
	Args   []Argument
}

type IfElse struct {
	Condition Node
	Then      Node
	Else      Node
}

// Return with a nil Body is a void return.
type Return struct {
	Body Node
}

func (*NumberLiteral) node() {}
func (*VariableRef) node()   {}
func (*BinaryExpr) node()    {}
func (*FunctionDef) node()   {}
func (*CallExpr) node()      {}
func (*IfElse) node()        {}
func (*Return) node()        {}
