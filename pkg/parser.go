package minswift

import (
	"strconv"
)

type Parser struct {
	tokens []Token
	pos    int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseProgram parses a whole token stream. Declarations that fail to parse
// are reported in AST.Errors and never appear in AST.Statements.
func ParseProgram(tokens []Token) *AST {
	return NewParser(tokens).Run()
}

func (p *Parser) Run() *AST {
	ast := &AST{}

	for !p.check(TokenEOF) {
		start := p.pos

		node, err := p.statement()
		if err != nil {
			ast.Errors = append(ast.Errors, err)
			p.recover(start)
			continue
		}

		ast.Statements = append(ast.Statements, node)
	}

	return ast
}

// recover skips past a failed top level declaration, resuming at the next
// func keyword outside of any braces opened since start. Functions nested in
// the broken body are skipped along with it.
func (p *Parser) recover(start int) {
	depth := 0
	for p.pos = start; !p.check(TokenEOF); p.pos++ {
		switch p.peek().Typ {
		case TokenOpenCurly:
			depth++
		case TokenCloseCurly:
			if depth > 0 {
				depth--
			}
		case TokenFunc:
			if depth == 0 && p.pos > start {
				return
			}
		}
	}
}

func (p *Parser) peek() Token {
	return p.peekN(0)
}

func (p *Parser) peekN(n int) Token {
	if i := p.pos + n; i < len(p.tokens) {
		return p.tokens[i]
	}

	// Streams without a trailing EOF behave as if they had one
	return Token{Typ: TokenEOF}
}

func (p *Parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}

	return tok
}

func (p *Parser) check(typ TokenType) bool {
	return p.peek().Typ == typ
}

func (p *Parser) expect(typ TokenType, context string) (Token, CompileError) {
	tok := p.next()
	if tok.Typ != typ {
		return tok, &UnexpectedTokenError{Found: tok, Context: context}
	}

	return tok, nil
}

func (p *Parser) closing(open, closer TokenType, context string) CompileError {
	if tok := p.next(); tok.Typ != closer {
		return &UnmatchedDelimiterError{Open: open, Found: tok, Context: context}
	}

	return nil
}

func (p *Parser) statement() (Node, CompileError) {
	if p.check(TokenFunc) {
		return p.funcDecl()
	}

	return p.topLevelExpr()
}

func (p *Parser) topLevelExpr() (Node, CompileError) {
	body, err := p.expr("top level expression")
	if err != nil {
		return nil, err
	}

	return &FunctionDef{
		Name:       EntryFunction,
		ReturnType: TypeDouble,
		Body:       body,
	}, nil
}

func (p *Parser) funcDecl() (Node, CompileError) {
	const context = "function declaration"

	if _, err := p.expect(TokenFunc, context); err != nil {
		return nil, err
	}

	name, err := p.expect(TokenIdentifier, context)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenOpenParentheses, context); err != nil {
		return nil, err
	}

	var params []Param
	for !p.check(TokenCloseParentheses) {
		if len(params) > 0 {
			if _, err := p.expect(TokenComma, "parameter list"); err != nil {
				return nil, err
			}
		}

		param, err := p.param()
		if err != nil {
			return nil, err
		}

		params = append(params, param)
	}
	p.next() // Skip )

	if _, err := p.expect(TokenArrow, context); err != nil {
		return nil, err
	}

	ret, err := p.expect(TokenIdentifier, "return type")
	if err != nil {
		return nil, err
	}

	body, err := p.block(context)
	if err != nil {
		return nil, err
	}

	return &FunctionDef{
		Name:       name.Value,
		Params:     params,
		ReturnType: ret.Value,
		Body:       body,
	}, nil
}

// param parses `[label] name : type`. Without a label, the name is used.
func (p *Parser) param() (Param, CompileError) {
	const context = "parameter list"

	if p.check(TokenEOF) {
		return Param{}, &UnmatchedDelimiterError{Open: TokenOpenParentheses, Found: p.peek(), Context: context}
	}

	label, err := p.expect(TokenIdentifier, context)
	if err != nil {
		return Param{}, err
	}

	name := label
	if p.check(TokenIdentifier) {
		name = p.next()
	}

	if _, err := p.expect(TokenColon, context); err != nil {
		return Param{}, err
	}

	typ, err := p.expect(TokenIdentifier, "parameter type")
	if err != nil {
		return Param{}, err
	}

	return Param{Label: label.Value, Name: name.Value, Type: typ.Value}, nil
}

// block parses `{ expr }`.
func (p *Parser) block(context string) (Node, CompileError) {
	if _, err := p.expect(TokenOpenCurly, context); err != nil {
		return nil, err
	}

	body, err := p.expr(context)
	if err != nil {
		return nil, err
	}

	if err := p.closing(TokenOpenCurly, TokenCloseCurly, context); err != nil {
		return nil, err
	}

	return body, nil
}

func (p *Parser) expr(context string) (Node, CompileError) {
	lhs, err := p.primary(context)
	if err != nil {
		return nil, err
	}

	return p.binaryRHS(context, 0, lhs)
}

// binaryRHS climbs precedences: operators binding at least as tight as
// minPrec are folded into lhs, and tighter operators to the right are
// absorbed into the right hand side first.
func (p *Parser) binaryRHS(context string, minPrec int, lhs Node) (Node, CompileError) {
	for {
		op, prec := p.operator()
		if prec < minPrec {
			return lhs, nil
		}
		p.next() // Skip the operator

		rhs, err := p.primary(context)
		if err != nil {
			return nil, err
		}

		if _, nextPrec := p.operator(); prec < nextPrec {
			rhs, err = p.binaryRHS(context, prec+1, rhs)
			if err != nil {
				return nil, err
			}
		}

		lhs = &BinaryExpr{
			Operation: op,
			LHS:       lhs,
			RHS:       rhs,
		}
	}
}

// operator returns the pending binary operator and its precedence, or -1
// when the next token isn't one.
func (p *Parser) operator() (BinaryOp, int) {
	tok := p.peek()
	if tok.Typ != TokenOperator {
		return "", -1
	}

	op := BinaryOp(tok.Value)
	prec, ok := precedences[op]
	if !ok {
		return "", -1
	}

	return op, prec
}

func (p *Parser) primary(context string) (Node, CompileError) {
	switch tok := p.peek(); tok.Typ {
	case TokenIdentifier:
		return p.identifierOrCall()
	case TokenInteger, TokenFloat:
		return p.number()
	case TokenOpenParentheses:
		return p.parenthesisedExpression()
	case TokenFunc:
		return p.funcDecl()
	case TokenReturn:
		return p.returnExpr()
	case TokenIf:
		return p.ifElse()
	case TokenEOF:
		return nil, &MissingExpressionError{Found: tok, Context: context}
	default:
		return nil, &UnexpectedTokenError{Found: tok, Context: context}
	}
}

func (p *Parser) startsPrimary() bool {
	switch p.peek().Typ {
	case TokenIdentifier, TokenInteger, TokenFloat, TokenOpenParentheses,
		TokenFunc, TokenReturn, TokenIf:
		return true
	}

	return false
}

func (p *Parser) number() (Node, CompileError) {
	tok := p.next()

	v, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, &InvalidLiteralError{Literal: tok, Err: err}
	}

	return &NumberLiteral{Value: v}, nil
}

func (p *Parser) parenthesisedExpression() (Node, CompileError) {
	const context = "parenthesised expression"
	p.next() // Skip (

	exp, err := p.expr(context)
	if err != nil {
		return nil, err
	}

	if err := p.closing(TokenOpenParentheses, TokenCloseParentheses, context); err != nil {
		return nil, err
	}

	return exp, nil
}

func (p *Parser) identifierOrCall() (Node, CompileError) {
	id := p.next()
	if !p.check(TokenOpenParentheses) {
		return &VariableRef{Name: id.Value}, nil
	}

	return p.funcCall(id)
}

// funcCall parses `(label: expr, ...)`. Labels are checked against the
// callee when lowering, not here.
func (p *Parser) funcCall(id Token) (Node, CompileError) {
	context := "call to " + id.Value
	p.next() // Skip (

	var args []Argument
	for !p.check(TokenCloseParentheses) {
		if p.check(TokenEOF) {
			return nil, &UnmatchedDelimiterError{Open: TokenOpenParentheses, Found: p.peek(), Context: context}
		}

		if len(args) > 0 {
			if _, err := p.expect(TokenComma, context); err != nil {
				return nil, err
			}
		}

		label, err := p.expect(TokenIdentifier, context)
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenColon, context); err != nil {
			return nil, err
		}

		value, err := p.expr(context)
		if err != nil {
			return nil, err
		}

		args = append(args, Argument{Label: label.Value, Value: value})
	}
	p.next() // Skip )

	return &CallExpr{
		Callee: id.Value,
		Args:   args,
	}, nil
}

func (p *Parser) returnExpr() (Node, CompileError) {
	p.next() // Skip return

	if !p.startsPrimary() {
		return &Return{}, nil
	}

	body, err := p.expr("return")
	if err != nil {
		return nil, err
	}

	return &Return{Body: body}, nil
}

func (p *Parser) ifElse() (Node, CompileError) {
	p.next() // Skip if

	cond, err := p.expr("if condition")
	if err != nil {
		return nil, err
	}

	then, err := p.block("then branch")
	if err != nil {
		return nil, err
	}

	if !p.check(TokenElse) {
		return nil, &MissingElseError{Found: p.peek()}
	}
	p.next() // Skip else

	els, err := p.block("else branch")
	if err != nil {
		return nil, err
	}

	return &IfElse{
		Condition: cond,
		Then:      then,
		Else:      els,
	}, nil
}
