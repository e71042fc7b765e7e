package minswift

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

type TokenType uint64
type stateFunc func(l *Lexer) stateFunc

const (
	EOF rune = -1

	TokenError TokenType = iota
	TokenEOF
	TokenInteger
	TokenFloat

	TokenIdentifier
	TokenFunc
	TokenReturn
	TokenIf
	TokenElse

	TokenOperator
	TokenArrow
	TokenColon
	TokenComma
	TokenOpenParentheses
	TokenCloseParentheses
	TokenOpenCurly
	TokenCloseCurly
)

var keywordTable = map[string]TokenType{
	"func":   TokenFunc,
	"return": TokenReturn,
	"if":     TokenIf,
	"else":   TokenElse,
}

var operatorTable = map[string]TokenType{
	"+":  TokenOperator,
	"-":  TokenOperator,
	"*":  TokenOperator,
	"/":  TokenOperator,
	"<":  TokenOperator,
	"->": TokenArrow,
	":":  TokenColon,
	",":  TokenComma,
	"(":  TokenOpenParentheses,
	")":  TokenCloseParentheses,
	"{":  TokenOpenCurly,
	"}":  TokenCloseCurly,
}

var tokenNames = map[TokenType]string{
	TokenError:            "error",
	TokenEOF:              "end of input",
	TokenInteger:          "integer literal",
	TokenFloat:            "float literal",
	TokenIdentifier:       "identifier",
	TokenFunc:             "'func'",
	TokenReturn:           "'return'",
	TokenIf:               "'if'",
	TokenElse:             "'else'",
	TokenOperator:         "operator",
	TokenArrow:            "'->'",
	TokenColon:            "':'",
	TokenComma:            "','",
	TokenOpenParentheses:  "'('",
	TokenCloseParentheses: "')'",
	TokenOpenCurly:        "'{'",
	TokenCloseCurly:       "'}'",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}

	return fmt.Sprintf("TokenType(%d)", uint64(t))
}

type Token struct {
	Typ   TokenType
	Value string
}

func (t Token) String() string {
	switch t.Typ {
	case TokenEOF:
		return t.Typ.String()
	case TokenIdentifier, TokenInteger, TokenFloat, TokenOperator:
		return fmt.Sprintf("%s '%s'", t.Typ, t.Value)
	default:
		return t.Typ.String()
	}
}

type Lexer struct {
	reader *bufio.Reader
	done   chan Token
}

func NewLexer(reader io.Reader) *Lexer {
	return &Lexer{
		reader: bufio.NewReader(reader),
		done:   make(chan Token),
	}
}

func (l *Lexer) Chan() chan Token {
	return l.done
}

func (l *Lexer) Run() {
	for state := defaultState; state != nil; {
		state = state(l)
	}

	close(l.done)
}

// RunBlocking lexes the whole input. On success the returned slice always
// ends with a TokenEOF.
func (l *Lexer) RunBlocking() ([]Token, error) {
	go l.Run()

	var tokens []Token
	for t := range l.Chan() {
		switch t.Typ {
		case TokenError:
			drain(l.Chan())
			return nil, &LexError{Msg: t.Value}
		case TokenEOF:
			tokens = append(tokens, t)
			drain(l.Chan())
			return tokens, nil
		}

		tokens = append(tokens, t)
	}

	return append(tokens, Token{Typ: TokenEOF}), nil
}

func drain(c chan Token) {
	for range c {
	}
}

func defaultState(l *Lexer) stateFunc {
	for {
		switch r := l.peek(); {
		case r == EOF:
			return l.emmitValue(TokenEOF, "")
		case unicode.IsSpace(r):
			l.next()
			continue
		case '0' <= r && r <= '9':
			return numberState
		case isIdentifierStart(r):
			return identifierState
		default:
			return operatorState
		}
	}
}

func numberState(l *Lexer) stateFunc {
	var num strings.Builder
	for r := l.peek(); isDigit(r); r = l.peek() {
		num.WriteRune(l.next())
	}

	if l.peek() != '.' {
		return l.emmitValue(TokenInteger, num.String())
	}

	num.WriteRune(l.next()) // Keep the dot
	if !isDigit(l.peek()) {
		return l.errorf("malformed number: %s", num.String())
	}

	for r := l.peek(); isDigit(r); r = l.peek() {
		num.WriteRune(l.next())
	}

	return l.emmitValue(TokenFloat, num.String())
}

func identifierState(l *Lexer) stateFunc {
	var id strings.Builder
	for r := l.peek(); isIdentifierStart(r) || isDigit(r); r = l.peek() {
		id.WriteRune(l.next())
	}

	if t, ok := keywordTable[id.String()]; ok {
		return l.emmitValue(t, id.String())
	}

	return l.emmitValue(TokenIdentifier, id.String())
}

func operatorState(l *Lexer) stateFunc {
	r := l.next()
	if r == '-' || r == '/' { // Some operators can be two runes
		switch next := l.peek(); {
		case r == '-' && next == '>':
			l.next()
			return l.emmitValue(TokenArrow, "->")
		case r == '/' && next == '/':
			l.next()
			return lineCommentState
		}
	}

	if tok, ok := operatorTable[string(r)]; ok {
		return l.emmitValue(tok, string(r))
	}

	return l.errorf("invalid symbol %q", r)
}

func lineCommentState(l *Lexer) stateFunc {
	for r := l.peek(); r != '\n' && r != EOF; r = l.peek() {
		l.next()
	}

	return defaultState
}

func (l *Lexer) errorf(format string, args ...interface{}) stateFunc {
	l.done <- Token{
		Typ:   TokenError,
		Value: fmt.Sprintf(format, args...),
	}

	return nil
}

func (l *Lexer) emmitValue(t TokenType, val string) stateFunc {
	l.done <- Token{
		Typ:   t,
		Value: val,
	}

	if t == TokenEOF {
		return nil
	}

	return defaultState
}

func (l *Lexer) peek() rune {
	r := l.next()
	if r != EOF {
		_ = l.reader.UnreadRune()
	}

	return r
}

func (l *Lexer) next() rune {
	r, _, err := l.reader.ReadRune()
	if err != nil {
		if err == io.EOF {
			return EOF
		}

		return utf8.RuneError
	}

	return r
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isIdentifierStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
