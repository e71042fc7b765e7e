package minswift

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CompileError is any diagnostic the front end can report for a source
// program. Parse and lowering failures both implement it.
type CompileError interface {
	error
	compileError()
}

type LexError struct {
	Msg string
}

func (e *LexError) Error() string {
	return "lex error: " + e.Msg
}

// Parse errors

type UnexpectedTokenError struct {
	Found   Token
	Context string
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("unexpected %s in %s", e.Found, e.Context)
}

type UnmatchedDelimiterError struct {
	Open    TokenType
	Found   Token
	Context string
}

func (e *UnmatchedDelimiterError) Error() string {
	return fmt.Sprintf("unmatched %s in %s: found %s", e.Open, e.Context, e.Found)
}

type MissingExpressionError struct {
	Found   Token
	Context string
}

func (e *MissingExpressionError) Error() string {
	return fmt.Sprintf("expected an expression in %s, found %s", e.Context, e.Found)
}

type InvalidLiteralError struct {
	Literal Token
	Err     error
}

func (e *InvalidLiteralError) Error() string {
	return fmt.Sprintf("invalid literal '%s': %v", e.Literal.Value, e.Err)
}

func (e *InvalidLiteralError) Unwrap() error {
	return e.Err
}

type MissingElseError struct {
	Found Token
}

func (e *MissingElseError) Error() string {
	return fmt.Sprintf("if expression without else branch: found %s", e.Found)
}

// Lowering errors

type UndefinedVariableError struct {
	Name     string
	Function string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable '%s' in function '%s'", e.Name, e.Function)
}

type UndefinedFunctionError struct {
	Name string
}

func (e *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("undefined function '%s'", e.Name)
}

type DuplicateFunctionError struct {
	Name string
}

func (e *DuplicateFunctionError) Error() string {
	return fmt.Sprintf("function '%s' is already defined", e.Name)
}

type DuplicateParameterError struct {
	Function string
	Name     string
}

func (e *DuplicateParameterError) Error() string {
	return fmt.Sprintf("duplicate parameter '%s' in function '%s'", e.Name, e.Function)
}

type ArityMismatchError struct {
	Callee   string
	Expected int
	Got      int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("call to '%s' expects %d arguments, got %d", e.Callee, e.Expected, e.Got)
}

type LabelMismatchError struct {
	Callee   string
	Position int
	Expected string
	Got      string
}

func (e *LabelMismatchError) Error() string {
	return fmt.Sprintf("call to '%s': argument %d is labelled '%s', expected '%s'",
		e.Callee, e.Position, e.Got, e.Expected)
}

type UnknownTypeError struct {
	Function string
	Type     string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type '%s' in function '%s'", e.Type, e.Function)
}

type ReturnTypeMismatchError struct {
	Function string
	Declared string
	Got      string
}

func (e *ReturnTypeMismatchError) Error() string {
	return fmt.Sprintf("function '%s' is declared to return %s but its body yields %s",
		e.Function, e.Declared, e.Got)
}

type TypeMismatchError struct {
	Construct string
	Got       string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s needs a Double operand, got %s", e.Construct, e.Got)
}

func (*UnexpectedTokenError) compileError()    {}
func (*UnmatchedDelimiterError) compileError() {}
func (*MissingExpressionError) compileError()  {}
func (*InvalidLiteralError) compileError()     {}
func (*MissingElseError) compileError()        {}
func (*UndefinedVariableError) compileError()  {}
func (*UndefinedFunctionError) compileError()  {}
func (*DuplicateFunctionError) compileError()  {}
func (*DuplicateParameterError) compileError() {}
func (*ArityMismatchError) compileError()      {}
func (*LabelMismatchError) compileError()      {}
func (*UnknownTypeError) compileError()        {}
func (*ReturnTypeMismatchError) compileError() {}
func (*TypeMismatchError) compileError()       {}

// ErrorList collects the diagnostics of a parse that recovered past failed
// declarations.
type ErrorList []CompileError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}

	var str strings.Builder
	fmt.Fprintf(&str, "%d errors:", len(l))
	for _, err := range l {
		str.WriteString("\n\t")
		str.WriteString(err.Error())
	}

	return str.String()
}

// Err returns nil for an empty list so callers can write `return list.Err()`.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}

	return l
}

// As lets errors.As find a specific diagnostic inside the list.
func (l ErrorList) As(target interface{}) bool {
	for _, err := range l {
		if errors.As(err, target) {
			return true
		}
	}

	return false
}
