package compiler

import (
	"strings"
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) { } , ; ? : -> = += -= *= /= %= &= |= ^=`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenComma, ","},
		{TokenSemicolon, ";"},
		{TokenQuestion, "?"},
		{TokenColon, ":"},
		{TokenArrow, "->"},
		{TokenAssign, "="},
		{TokenPlusEq, "+="},
		{TokenMinusEq, "-="},
		{TokenStarEq, "*="},
		{TokenSlashEq, "/="},
		{TokenPercentEq, "%="},
		{TokenAmpEq, "&="},
		{TokenPipeEq, "|="},
		{TokenCaretEq, "^="},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	input := `+ - * / % & | ^ ~ ! && || == != < <= > >=`
	expected := []TokenType{
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenAmp, TokenPipe, TokenCaret, TokenTilde, TokenBang,
		TokenAndAnd, TokenOrOr, TokenEq, TokenNotEq,
		TokenLess, TokenLessEq, TokenGreater, TokenGreaterEq,
		TokenEOF,
	}

	tokens, diags := Tokenize(input)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %s", diags)
	}
	if len(tokens) != len(expected) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(expected))
	}
	for i, typ := range expected {
		if tokens[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, tokens[i].Type, typ)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"int", TokenInt},
		{"float", TokenFloatType},
		{"func", TokenFunc},
		{"extern", TokenExtern},
		{"return", TokenReturn},
		{"if", TokenIf},
		{"else", TokenElse},
		{"while", TokenWhile},
		{"for", TokenFor},
		{"break", TokenBreak},
		{"continue", TokenContinue},
		{"yield", TokenYield},
		{"true", TokenTrue},
		{"false", TokenFalse},
		{"integer", TokenIdentifier},
		{"_tmp2", TokenIdentifier},
		{"größe", TokenIdentifier},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.want {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.want)
		}
	}
}

func TestLexerIntegers(t *testing.T) {
	tests := []struct {
		input string
		want  int32
	}{
		{"42", 42},
		{"0", 0},
		{"2147483647", 2147483647},
		{"4294967295", -1},
		{"0x1F", 31},
		{"0XfF", 255},
		{"0x10000", 0x10000},
		{"0xFFFFFFFF", -1},
		{"'a'", 97},
		{`'\n'`, 10},
		{`'\0'`, 0},
		{`'\''`, 39},
		{"true", 1},
		{"false", 0},
	}

	for _, tc := range tests {
		tokens, diags := Tokenize(tc.input)
		if !diags.Empty() {
			t.Errorf("Lexer(%q): unexpected diagnostics: %s", tc.input, diags)
			continue
		}
		tok := tokens[0]
		if tok.Type != TokenInteger && tok.Type != TokenTrue && tok.Type != TokenFalse {
			t.Errorf("Lexer(%q): type = %v, want INTEGER", tc.input, tok.Type)
		}
		if tok.IntValue != tc.want {
			t.Errorf("Lexer(%q): value = %d, want %d", tc.input, tok.IntValue, tc.want)
		}
		if tok.Literal != tc.input {
			t.Errorf("Lexer(%q): literal = %q", tc.input, tok.Literal)
		}
	}
}

func TestLexerFloats(t *testing.T) {
	tests := []struct {
		input string
		want  float32
	}{
		{"3.14", 3.14},
		{"0.5", 0.5},
		{".25", 0.25},
		{"3.", 3},
		{"1e10", 1e10},
		{"1.5e-3", 1.5e-3},
		{"2.0E+5", 2.0e5},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenFloat {
			t.Errorf("Lexer(%q): type = %v, want FLOAT", tc.input, tok.Type)
			continue
		}
		if tok.FloatValue != tc.want {
			t.Errorf("Lexer(%q): value = %g, want %g", tc.input, tok.FloatValue, tc.want)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := "x // line comment\n/* block\ncomment */ y"
	tokens, diags := Tokenize(input)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %s", diags)
	}
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3: %v", len(tokens), tokens)
	}
	if tokens[0].Literal != "x" || tokens[1].Literal != "y" {
		t.Errorf("tokens = %v", tokens)
	}
	if tokens[1].Span.Start != len(input)-1 {
		t.Errorf("y span start = %d, want %d", tokens[1].Span.Start, len(input)-1)
	}
}

func TestLexerSpans(t *testing.T) {
	tokens, _ := Tokenize("int total = 0x10;")
	want := []struct {
		start, length int
	}{
		{0, 3},
		{4, 5},
		{10, 1},
		{12, 4},
		{16, 1},
	}
	for i, w := range want {
		if tokens[i].Span.Start != w.start || tokens[i].Span.Length != w.length {
			t.Errorf("token[%d] %v span = %d+%d, want %d+%d",
				i, tokens[i], tokens[i].Span.Start, tokens[i].Span.Length, w.start, w.length)
		}
	}
}

func TestLexerErrorsContinue(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{"x @ y", "unexpected character"},
		{"/* never closed", "unterminated block comment"},
		{"'a", "unterminated character literal"},
		{"''", "empty character literal"},
		{"'ab'", "more than one character"},
		{"12abc", "invalid suffix"},
		{"1e+", "malformed exponent"},
		{"0x", "no digits"},
		{"99999999999", "out of range"},
	}

	for _, tc := range tests {
		tokens, diags := Tokenize(tc.input)
		if diags.Len() != 1 {
			t.Errorf("Lexer(%q): %d diagnostics, want 1", tc.input, diags.Len())
			continue
		}
		d := diags.Diagnostics()[0]
		if !strings.Contains(d.Message, tc.msg) {
			t.Errorf("Lexer(%q): message = %q, want substring %q", tc.input, d.Message, tc.msg)
		}
		if tokens[len(tokens)-1].Type != TokenEOF {
			t.Errorf("Lexer(%q): lexing did not reach EOF", tc.input)
		}
	}

	// lexing goes on after a bad character
	tokens, _ := Tokenize("x @ y")
	if len(tokens) != 4 || tokens[1].Type != TokenError || tokens[2].Literal != "y" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestTokenizeIsRestartable(t *testing.T) {
	src := "func f(int a) -> int { return a * 2; }\nint x = f(3);"
	a, _ := Tokenize(src)
	b, _ := Tokenize(src)
	if len(a) != len(b) {
		t.Fatalf("token counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("token[%d]: %v vs %v", i, a[i], b[i])
		}
	}
}
