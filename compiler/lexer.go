package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chazu/flexscript/diag"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for script source
// ---------------------------------------------------------------------------

// Lexer tokenizes script source code. Bad input produces a TokenError and a
// lexical diagnostic; lexing carries on after it.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character

	diagnostics diag.Container
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokenize lexes the whole input. The returned slice always ends with
// TokenEOF. Calling it again on the same source yields the same tokens.
func Tokenize(input string) ([]Token, *diag.Container) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens, l.Diagnostics()
}

// Diagnostics returns the lexical diagnostics recorded so far.
func (l *Lexer) Diagnostics() *diag.Container {
	return &l.diagnostics
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// token builds a token spanning from start to the current position.
func (l *Lexer) token(typ TokenType, start int) Token {
	return Token{Type: typ, Literal: l.input[start:l.pos], Span: diag.NewSpan(start, l.pos-start)}
}

// errorToken records a lexical diagnostic and returns the matching error token.
func (l *Lexer) errorToken(start int, format string, args ...any) Token {
	msg := fmt.Sprintf(format, args...)
	span := diag.NewSpan(start, l.pos-start)
	l.diagnostics.Add(span, diag.KindLexical, msg)
	return Token{Type: TokenError, Literal: msg, Span: span}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	start := l.pos

	if l.atEOF() {
		return Token{Type: TokenEOF, Span: diag.NewSpan(start, 0)}
	}

	switch {
	case isDigit(l.ch):
		return l.readNumber(start)
	case l.ch == '.' && isDigit(l.peekChar()):
		return l.readNumber(start)
	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(start)
	case l.ch == '\'':
		return l.readCharLiteral(start)
	}

	ch := l.ch
	l.readChar()

	// two-character operators
	if typ, ok := l.twoCharOperator(ch); ok {
		l.readChar()
		return l.token(typ, start)
	}

	switch ch {
	case '+':
		return l.token(TokenPlus, start)
	case '-':
		return l.token(TokenMinus, start)
	case '*':
		return l.token(TokenStar, start)
	case '/':
		return l.token(TokenSlash, start)
	case '%':
		return l.token(TokenPercent, start)
	case '&':
		return l.token(TokenAmp, start)
	case '|':
		return l.token(TokenPipe, start)
	case '^':
		return l.token(TokenCaret, start)
	case '~':
		return l.token(TokenTilde, start)
	case '!':
		return l.token(TokenBang, start)
	case '<':
		return l.token(TokenLess, start)
	case '>':
		return l.token(TokenGreater, start)
	case '=':
		return l.token(TokenAssign, start)
	case '?':
		return l.token(TokenQuestion, start)
	case ':':
		return l.token(TokenColon, start)
	case '(':
		return l.token(TokenLParen, start)
	case ')':
		return l.token(TokenRParen, start)
	case '{':
		return l.token(TokenLBrace, start)
	case '}':
		return l.token(TokenRBrace, start)
	case ',':
		return l.token(TokenComma, start)
	case ';':
		return l.token(TokenSemicolon, start)
	}

	return l.errorToken(start, "unexpected character: %q", ch)
}

// twoCharOperator matches first (already consumed) plus the current char.
func (l *Lexer) twoCharOperator(first rune) (TokenType, bool) {
	second := l.ch
	switch first {
	case '&':
		switch second {
		case '&':
			return TokenAndAnd, true
		case '=':
			return TokenAmpEq, true
		}
	case '|':
		switch second {
		case '|':
			return TokenOrOr, true
		case '=':
			return TokenPipeEq, true
		}
	case '=':
		if second == '=' {
			return TokenEq, true
		}
	case '!':
		if second == '=' {
			return TokenNotEq, true
		}
	case '<':
		if second == '=' {
			return TokenLessEq, true
		}
	case '>':
		if second == '=' {
			return TokenGreaterEq, true
		}
	case '-':
		switch second {
		case '>':
			return TokenArrow, true
		case '=':
			return TokenMinusEq, true
		}
	case '+':
		if second == '=' {
			return TokenPlusEq, true
		}
	case '*':
		if second == '=' {
			return TokenStarEq, true
		}
	case '/':
		if second == '=' {
			return TokenSlashEq, true
		}
	case '%':
		if second == '=' {
			return TokenPercentEq, true
		}
	case '^':
		if second == '=' {
			return TokenCaretEq, true
		}
	}
	return 0, false
}

// skipWhitespaceAndComments skips whitespace, line comments and block
// comments. An unterminated block comment yields an error token and ok=false.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			start := l.pos
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.atEOF() {
					return l.errorToken(start, "unterminated block comment"), false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			continue
		}

		return Token{}, true
	}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(start int) Token {
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	tok := l.token(TokenIdentifier, start)
	if typ, ok := reservedWords[tok.Literal]; ok {
		tok.Type = typ
		switch typ {
		case TokenTrue:
			tok.IntValue = 1
		case TokenFalse:
			tok.IntValue = 0
		}
	}
	return tok
}

// readCharLiteral reads 'c' (or an escape such as '\n') as an int literal.
func (l *Lexer) readCharLiteral(start int) Token {
	l.readChar() // consume opening '

	if l.ch == '\'' || l.ch == '\n' || l.atEOF() {
		if l.ch == '\'' {
			l.readChar()
			return l.errorToken(start, "empty character literal")
		}
		return l.errorToken(start, "unterminated character literal")
	}

	value := l.ch
	if l.ch == '\\' {
		l.readChar()
		switch l.ch {
		case 'n':
			value = '\n'
		case 't':
			value = '\t'
		case 'r':
			value = '\r'
		case '0':
			value = 0
		case '\\', '\'':
			value = l.ch
		default:
			l.readChar()
			return l.errorToken(start, "unknown escape sequence")
		}
	}
	l.readChar()

	if l.ch != '\'' {
		for l.ch != '\'' && l.ch != '\n' && !l.atEOF() {
			l.readChar()
		}
		if l.ch == '\'' {
			l.readChar()
			return l.errorToken(start, "character literal has more than one character")
		}
		return l.errorToken(start, "unterminated character literal")
	}
	l.readChar() // consume closing '

	tok := l.token(TokenInteger, start)
	tok.IntValue = int32(value)
	return tok
}

// readNumber reads an integer or float literal.
func (l *Lexer) readNumber(start int) Token {
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		return l.readHexNumber(start)
	}

	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && (isDigit(l.peekChar()) || !isLetter(l.peekChar())) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return l.errorToken(start, "malformed exponent in number literal")
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isLetter(l.ch) || l.ch == '_' {
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		return l.errorToken(start, "invalid suffix on number literal %q", l.input[start:l.pos])
	}

	text := l.input[start:l.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return l.errorToken(start, "float literal %q out of range", text)
		}
		tok := l.token(TokenFloat, start)
		tok.FloatValue = float32(f)
		return tok
	}

	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil || n > math.MaxUint32 {
		return l.errorToken(start, "integer literal %q out of range", text)
	}
	tok := l.token(TokenInteger, start)
	tok.IntValue = int32(uint32(n))
	return tok
}

// readHexNumber reads 0x... literals. Values above MaxInt32 wrap, so
// 0xFFFFFFFF is -1.
func (l *Lexer) readHexNumber(start int) Token {
	l.readChar() // 0
	l.readChar() // x
	digitsStart := l.pos
	for isHexDigit(l.ch) {
		l.readChar()
	}
	if l.pos == digitsStart {
		return l.errorToken(start, "hex literal has no digits")
	}
	if isLetter(l.ch) || l.ch == '_' {
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		return l.errorToken(start, "invalid suffix on number literal %q", l.input[start:l.pos])
	}
	digits := strings.TrimLeft(l.input[digitsStart:l.pos], "0")
	if digits == "" {
		digits = "0"
	}
	n, err := strconv.ParseUint(digits, 16, 64)
	if err != nil || n > math.MaxUint32 {
		return l.errorToken(start, "integer literal %q out of range", l.input[start:l.pos])
	}
	tok := l.token(TokenInteger, start)
	tok.IntValue = int32(uint32(n))
	return tok
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
