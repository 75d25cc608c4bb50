package compiler

import (
	"fmt"

	"github.com/chazu/flexscript/diag"
)

// ---------------------------------------------------------------------------
// Token types for the script lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42, 0xFF, 'a'
	TokenFloat      // 3.14, 1.5e10
	TokenIdentifier // foo, bar_2

	// Keywords
	TokenInt
	TokenFloatType
	TokenFunc
	TokenExtern
	TokenReturn
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenBreak
	TokenContinue
	TokenYield
	TokenTrue
	TokenFalse

	// Operators
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenAmp       // &
	TokenPipe      // |
	TokenCaret     // ^
	TokenTilde     // ~
	TokenBang      // !
	TokenAndAnd    // &&
	TokenOrOr      // ||
	TokenEq        // ==
	TokenNotEq     // !=
	TokenLess      // <
	TokenLessEq    // <=
	TokenGreater   // >
	TokenGreaterEq // >=
	TokenAssign    // =
	TokenPlusEq    // +=
	TokenMinusEq   // -=
	TokenStarEq    // *=
	TokenSlashEq   // /=
	TokenPercentEq // %=
	TokenAmpEq     // &=
	TokenPipeEq    // |=
	TokenCaretEq   // ^=
	TokenQuestion  // ?
	TokenColon     // :
	TokenArrow     // ->

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenIdentifier: "IDENTIFIER",
	TokenInt:        "int",
	TokenFloatType:  "float",
	TokenFunc:       "func",
	TokenExtern:     "extern",
	TokenReturn:     "return",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenFor:        "for",
	TokenBreak:      "break",
	TokenContinue:   "continue",
	TokenYield:      "yield",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenPercent:    "%",
	TokenAmp:        "&",
	TokenPipe:       "|",
	TokenCaret:      "^",
	TokenTilde:      "~",
	TokenBang:       "!",
	TokenAndAnd:     "&&",
	TokenOrOr:       "||",
	TokenEq:         "==",
	TokenNotEq:      "!=",
	TokenLess:       "<",
	TokenLessEq:     "<=",
	TokenGreater:    ">",
	TokenGreaterEq:  ">=",
	TokenAssign:     "=",
	TokenPlusEq:     "+=",
	TokenMinusEq:    "-=",
	TokenStarEq:     "*=",
	TokenSlashEq:    "/=",
	TokenPercentEq:  "%=",
	TokenAmpEq:      "&=",
	TokenPipeEq:     "|=",
	TokenCaretEq:    "^=",
	TokenQuestion:   "?",
	TokenColon:      ":",
	TokenArrow:      "->",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenSemicolon:  ";",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t >= TokenInt && t <= TokenFalse
}

// IsTypeName reports whether t names a value type.
func (t TokenType) IsTypeName() bool {
	return t == TokenInt || t == TokenFloatType
}

// IsAssignOp reports whether t is '=' or a compound assignment.
func (t TokenType) IsAssignOp() bool {
	return t >= TokenAssign && t <= TokenCaretEq
}

// Token represents a lexical token. Literal tokens carry their decoded
// payload in IntValue or FloatValue.
type Token struct {
	Type       TokenType
	Literal    string // the raw text, or the message for TokenError
	Span       diag.Span
	IntValue   int32
	FloatValue float32
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"int":      TokenInt,
	"float":    TokenFloatType,
	"func":     TokenFunc,
	"extern":   TokenExtern,
	"return":   TokenReturn,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"yield":    TokenYield,
	"true":     TokenTrue,
	"false":    TokenFalse,
}
