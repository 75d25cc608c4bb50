package compiler

import (
	"fmt"

	"github.com/chazu/flexscript/diag"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for script syntax
// ---------------------------------------------------------------------------

// Parser parses script source code into an AST. Malformed constructs are
// recorded as syntax diagnostics and the parser resynchronizes at the next
// statement boundary, so one pass reports as many errors as it can.
type Parser struct {
	lexer     *Lexer
	prevToken Token
	curToken  Token
	peekToken Token
	depth     int // block nesting; 0 at top level

	diagnostics diag.Container
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse is a convenience wrapper returning the program and every lexical and
// syntax diagnostic.
func Parse(input string) (*Program, *diag.Container) {
	p := NewParser(input)
	prog := p.ParseProgram()
	return prog, p.Diagnostics()
}

// nextToken advances to the next token. Error tokens were already reported by
// the lexer and are skipped here.
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	for {
		p.peekToken = p.lexer.NextToken()
		if p.peekToken.Type != TokenError {
			return
		}
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, describe(p.curToken))
	return false
}

// errorf records a syntax error at the current token.
func (p *Parser) errorf(format string, args ...any) {
	p.errorAt(p.curToken.Span, format, args...)
}

func (p *Parser) errorAt(span diag.Span, format string, args ...any) {
	p.diagnostics.Add(span, diag.KindSyntactic, fmt.Sprintf(format, args...))
}

// spanFrom covers everything from start to the last consumed token.
func (p *Parser) spanFrom(start diag.Span) diag.Span {
	return start.Cover(p.prevToken.Span)
}

// Diagnostics returns lexical diagnostics followed by syntax diagnostics.
func (p *Parser) Diagnostics() *diag.Container {
	c := diag.NewContainer()
	c.Merge(p.lexer.Diagnostics())
	c.Merge(&p.diagnostics)
	return c
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenInteger, TokenFloat:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	default:
		return fmt.Sprintf("%q", tok.Type.String())
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses the whole input. The result is never nil, even when
// diagnostics were recorded.
func (p *Parser) ParseProgram() *Program {
	start := p.curToken.Span
	var stmts []Stmt
	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenRBrace) {
			p.errorf("unexpected '}'")
			p.nextToken()
			continue
		}
		stmts = append(stmts, p.parseStatementRecovering()...)
	}
	span := start
	if len(stmts) > 0 {
		span = stmts[0].Span().Cover(stmts[len(stmts)-1].Span())
	}
	return &Program{Body: &BlockStmt{SpanVal: span, Statements: stmts}}
}

// parseStatementRecovering parses one statement and resynchronizes when it
// fails. It always consumes at least one token.
func (p *Parser) parseStatementRecovering() []Stmt {
	before := p.curToken.Span
	errs := p.diagnostics.Len()

	stmt := p.parseStatement()
	if stmt == nil && p.diagnostics.Len() > errs {
		p.synchronize()
	}
	if p.curToken.Span == before && !p.curTokenIs(TokenEOF) {
		p.nextToken()
	}
	if stmt == nil {
		return nil
	}
	return []Stmt{stmt}
}

// synchronize skips to the next statement boundary: just past a ';', or at a
// '}' or a token that starts a statement.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) {
		switch {
		case p.curTokenIs(TokenSemicolon):
			p.nextToken()
			return
		case p.curTokenIs(TokenRBrace), startsStatement(p.curToken.Type):
			return
		}
		p.nextToken()
	}
}

func startsStatement(t TokenType) bool {
	switch t {
	case TokenInt, TokenFloatType, TokenFunc, TokenExtern, TokenReturn, TokenIf,
		TokenWhile, TokenFor, TokenBreak, TokenContinue, TokenYield, TokenLBrace:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLBrace:
		if block := p.parseBlock(); block != nil {
			return block
		}
		return nil
	case TokenInt, TokenFloatType:
		decl := p.parseVarDecl()
		if decl == nil || !p.expect(TokenSemicolon) {
			return nil
		}
		decl.SpanVal = p.spanFrom(decl.SpanVal)
		return decl
	case TokenFunc:
		return p.parseFuncDecl()
	case TokenExtern:
		return p.parseExternDecl()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenReturn:
		return p.parseReturn()
	case TokenBreak:
		start := p.curToken.Span
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		return &BreakStmt{SpanVal: p.spanFrom(start)}
	case TokenContinue:
		start := p.curToken.Span
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		return &ContinueStmt{SpanVal: p.spanFrom(start)}
	case TokenYield:
		start := p.curToken.Span
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		return &YieldStmt{SpanVal: p.spanFrom(start)}
	case TokenSemicolon:
		p.errorf("empty statement")
		return nil
	}

	stmt := p.parseSimpleStatement()
	if stmt == nil || !p.expect(TokenSemicolon) {
		return nil
	}
	return stmt
}

// parseSimpleStatement parses an assignment or an expression statement,
// without the trailing ';'. Used directly by for-clauses.
func (p *Parser) parseSimpleStatement() Stmt {
	if p.curTokenIs(TokenIdentifier) && p.peekToken.Type.IsAssignOp() {
		if assign := p.parseAssignment(); assign != nil {
			return assign
		}
		return nil
	}
	start := p.curToken.Span
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	return &ExprStmt{SpanVal: p.spanFrom(start), Expr: expr}
}

var compoundOps = map[TokenType]BinaryOp{
	TokenPlusEq:    BinaryAdd,
	TokenMinusEq:   BinarySub,
	TokenStarEq:    BinaryMul,
	TokenSlashEq:   BinaryDiv,
	TokenPercentEq: BinaryMod,
	TokenAmpEq:     BinaryBitAnd,
	TokenPipeEq:    BinaryBitOr,
	TokenCaretEq:   BinaryBitXor,
}

// parseAssignment parses name = expr or name op= expr.
func (p *Parser) parseAssignment() *AssignStmt {
	name := p.curToken
	p.nextToken()
	opTok := p.curToken
	p.nextToken()

	value := p.parseExpression()
	if value == nil {
		return nil
	}
	stmt := &AssignStmt{
		SpanVal:  p.spanFrom(name.Span),
		NameSpan: name.Span,
		Name:     name.Literal,
		Value:    value,
	}
	if op, ok := compoundOps[opTok.Type]; ok {
		stmt.Compound = true
		stmt.Op = op
	}
	return stmt
}

// parseType parses int or float.
func (p *Parser) parseType() (TypeName, bool) {
	switch p.curToken.Type {
	case TokenInt:
		p.nextToken()
		return TypeInt, true
	case TokenFloatType:
		p.nextToken()
		return TypeFloat, true
	}
	p.errorf("expected type name, got %s", describe(p.curToken))
	return TypeVoid, false
}

// parseVarDecl parses `int x [= expr]` without the trailing ';'.
func (p *Parser) parseVarDecl() *VarDecl {
	start := p.curToken.Span
	typ, ok := p.parseType()
	if !ok {
		return nil
	}
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected variable name, got %s", describe(p.curToken))
		return nil
	}
	decl := &VarDecl{Type: typ, Name: p.curToken.Literal}
	p.nextToken()

	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		decl.Value = p.parseExpression()
		if decl.Value == nil {
			return nil
		}
	}
	decl.SpanVal = p.spanFrom(start)
	return decl
}

// parseBlock parses { statements }.
func (p *Parser) parseBlock() *BlockStmt {
	start := p.curToken.Span
	if !p.expect(TokenLBrace) {
		return nil
	}
	p.depth++
	defer func() { p.depth-- }()

	var stmts []Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		stmts = append(stmts, p.parseStatementRecovering()...)
	}
	if !p.curTokenIs(TokenRBrace) {
		p.errorAt(start, "unterminated block")
		return nil
	}
	p.nextToken()
	return &BlockStmt{SpanVal: p.spanFrom(start), Statements: stmts}
}

// parseParams parses (type name, ...). Names are optional when allowUnnamed
// is set (extern signatures).
func (p *Parser) parseParams(allowUnnamed bool) ([]Param, bool) {
	if !p.expect(TokenLParen) {
		return nil, false
	}
	var params []Param
	for !p.curTokenIs(TokenRParen) {
		if len(params) > 0 && !p.expect(TokenComma) {
			return nil, false
		}
		start := p.curToken.Span
		typ, ok := p.parseType()
		if !ok {
			return nil, false
		}
		param := Param{Type: typ}
		if p.curTokenIs(TokenIdentifier) {
			param.Name = p.curToken.Literal
			p.nextToken()
		} else if !allowUnnamed {
			p.errorf("expected parameter name, got %s", describe(p.curToken))
			return nil, false
		}
		param.SpanVal = p.spanFrom(start)
		params = append(params, param)
	}
	p.nextToken() // consume )
	return params, true
}

// parseReturnType parses an optional `-> type`.
func (p *Parser) parseReturnType() (TypeName, bool) {
	if !p.curTokenIs(TokenArrow) {
		return TypeVoid, true
	}
	p.nextToken()
	return p.parseType()
}

// parseFuncDecl parses func name(params) [-> type] { body }.
func (p *Parser) parseFuncDecl() Stmt {
	start := p.curToken.Span
	nested := p.depth > 0
	p.nextToken() // consume func

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name, got %s", describe(p.curToken))
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	params, ok := p.parseParams(false)
	if !ok {
		return nil
	}
	ret, ok := p.parseReturnType()
	if !ok {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	fn := &FuncDecl{SpanVal: p.spanFrom(start), Name: name, Params: params, Returns: ret, Body: body}
	if nested {
		p.errorAt(fn.SpanVal, "function %s must be declared at top level", name)
		return nil
	}
	return fn
}

// parseExternDecl parses extern func name(params) [-> type] = address;
func (p *Parser) parseExternDecl() Stmt {
	start := p.curToken.Span
	nested := p.depth > 0
	p.nextToken() // consume extern
	if !p.expect(TokenFunc) {
		return nil
	}
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name, got %s", describe(p.curToken))
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	params, ok := p.parseParams(true)
	if !ok {
		return nil
	}
	ret, ok := p.parseReturnType()
	if !ok {
		return nil
	}
	if !p.expect(TokenAssign) {
		return nil
	}
	if !p.curTokenIs(TokenInteger) {
		p.errorf("expected external function address, got %s", describe(p.curToken))
		return nil
	}
	addr := p.curToken.IntValue
	p.nextToken()
	if !p.expect(TokenSemicolon) {
		return nil
	}
	decl := &ExternDecl{SpanVal: p.spanFrom(start), Name: name, Params: params, Returns: ret, Address: addr}
	if nested {
		p.errorAt(decl.SpanVal, "extern %s must be declared at top level", name)
		return nil
	}
	return decl
}

// parseCondition parses ( expr ).
func (p *Parser) parseCondition() Expr {
	if !p.expect(TokenLParen) {
		return nil
	}
	cond := p.parseExpression()
	if cond == nil || !p.expect(TokenRParen) {
		return nil
	}
	return cond
}

// parseBody parses a loop or branch body. A bare declaration is rejected
// since it would be scoped to nothing.
func (p *Parser) parseBody() Stmt {
	if p.curTokenIs(TokenInt) || p.curTokenIs(TokenFloatType) {
		p.errorf("declaration is not allowed as a statement body")
		return nil
	}
	p.depth++
	defer func() { p.depth-- }()
	return p.parseStatement()
}

// parseIf parses if (cond) stmt [else stmt].
func (p *Parser) parseIf() Stmt {
	start := p.curToken.Span
	p.nextToken() // consume if

	cond := p.parseCondition()
	if cond == nil {
		return nil
	}
	then := p.parseBody()
	if then == nil {
		return nil
	}
	stmt := &IfStmt{Condition: cond, Then: then}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		stmt.Else = p.parseBody()
		if stmt.Else == nil {
			return nil
		}
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

// parseWhile parses while (cond) stmt.
func (p *Parser) parseWhile() Stmt {
	start := p.curToken.Span
	p.nextToken() // consume while

	cond := p.parseCondition()
	if cond == nil {
		return nil
	}
	body := p.parseBody()
	if body == nil {
		return nil
	}
	return &WhileStmt{SpanVal: p.spanFrom(start), Condition: cond, Body: body}
}

// parseFor parses for (init; cond; post) stmt.
func (p *Parser) parseFor() Stmt {
	start := p.curToken.Span
	p.nextToken() // consume for
	if !p.expect(TokenLParen) {
		return nil
	}

	stmt := &ForStmt{}
	if !p.curTokenIs(TokenSemicolon) {
		if p.curTokenIs(TokenInt) || p.curTokenIs(TokenFloatType) {
			if decl := p.parseVarDecl(); decl != nil {
				stmt.Init = decl
			}
		} else {
			stmt.Init = p.parseSimpleStatement()
		}
		if stmt.Init == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}

	if !p.curTokenIs(TokenSemicolon) {
		stmt.Condition = p.parseExpression()
		if stmt.Condition == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}

	if !p.curTokenIs(TokenRParen) {
		stmt.Post = p.parseSimpleStatement()
		if stmt.Post == nil {
			return nil
		}
	}
	if !p.expect(TokenRParen) {
		return nil
	}

	stmt.Body = p.parseBody()
	if stmt.Body == nil {
		return nil
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

// parseReturn parses return [expr];
func (p *Parser) parseReturn() Stmt {
	start := p.curToken.Span
	p.nextToken() // consume return

	stmt := &ReturnStmt{}
	if !p.curTokenIs(TokenSemicolon) {
		stmt.Value = p.parseExpression()
		if stmt.Value == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

// ---------------------------------------------------------------------------
// Expressions (precedence climbing)
// ---------------------------------------------------------------------------

type binaryLevel struct {
	prec int
	op   BinaryOp
}

// Binding power of infix operators, low to high.
var binaryLevels = map[TokenType]binaryLevel{
	TokenOrOr:      {1, BinaryOr},
	TokenAndAnd:    {2, BinaryAnd},
	TokenEq:        {3, BinaryEqual},
	TokenNotEq:     {3, BinaryNotEqual},
	TokenLess:      {4, BinaryLess},
	TokenLessEq:    {4, BinaryLessEqual},
	TokenGreater:   {4, BinaryGreater},
	TokenGreaterEq: {4, BinaryGreaterEqual},
	TokenPipe:      {5, BinaryBitOr},
	TokenCaret:     {6, BinaryBitXor},
	TokenAmp:       {7, BinaryBitAnd},
	TokenPlus:      {8, BinaryAdd},
	TokenMinus:     {8, BinarySub},
	TokenStar:      {9, BinaryMul},
	TokenSlash:     {9, BinaryDiv},
	TokenPercent:   {9, BinaryMod},
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpression()
}

func (p *Parser) parseExpression() Expr {
	return p.parseTernary()
}

// parseTernary parses cond ? a : b (right associative).
func (p *Parser) parseTernary() Expr {
	cond := p.parseBinary(1)
	if cond == nil || !p.curTokenIs(TokenQuestion) {
		return cond
	}
	p.nextToken() // consume ?

	ifTrue := p.parseExpression()
	if ifTrue == nil || !p.expect(TokenColon) {
		return nil
	}
	ifFalse := p.parseTernary()
	if ifFalse == nil {
		return nil
	}
	return &TernaryExpr{
		SpanVal:   cond.Span().Cover(ifFalse.Span()),
		Condition: cond,
		IfTrue:    ifTrue,
		IfFalse:   ifFalse,
	}
}

// parseBinary parses left-associative infix operators binding at least as
// tightly as minPrec.
func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for {
		level, ok := binaryLevels[p.curToken.Type]
		if !ok || level.prec < minPrec {
			return left
		}
		p.nextToken()

		right := p.parseBinary(level.prec + 1)
		if right == nil {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: left.Span().Cover(right.Span()),
			Op:      level.op,
			Left:    left,
			Right:   right,
		}
	}
}

// parseUnary parses prefix -, ! and ~.
func (p *Parser) parseUnary() Expr {
	var op UnaryOp
	switch p.curToken.Type {
	case TokenMinus:
		op = UnaryNegate
	case TokenBang:
		op = UnaryNot
	case TokenTilde:
		op = UnaryInvert
	default:
		return p.parseCast()
	}
	start := p.curToken.Span
	p.nextToken()

	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &UnaryExpr{SpanVal: start.Cover(operand.Span()), Op: op, Operand: operand}
}

// parseCast parses (int)e and (float)e.
func (p *Parser) parseCast() Expr {
	if !p.curTokenIs(TokenLParen) || !p.peekToken.Type.IsTypeName() {
		return p.parsePrimary()
	}
	start := p.curToken.Span
	p.nextToken() // consume (
	to, _ := p.parseType()
	if !p.expect(TokenRParen) {
		return nil
	}
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &CastExpr{SpanVal: start.Cover(operand.Span()), To: to, Operand: operand}
}

// parsePrimary parses literals, identifiers, calls and parenthesized
// expressions.
func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenInteger, TokenTrue, TokenFalse:
		p.nextToken()
		return &IntLiteral{SpanVal: tok.Span, Value: tok.IntValue}

	case TokenFloat:
		p.nextToken()
		return &FloatLiteral{SpanVal: tok.Span, Value: tok.FloatValue}

	case TokenIdentifier:
		p.nextToken()
		if p.curTokenIs(TokenLParen) {
			return p.parseCall(tok)
		}
		return &Identifier{SpanVal: tok.Span, Name: tok.Literal}

	case TokenLParen:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil || !p.expect(TokenRParen) {
			return nil
		}
		return expr
	}

	p.errorf("unexpected %s in expression", describe(tok))
	return nil
}

// parseCall parses the argument list of name(args); name is already consumed.
func (p *Parser) parseCall(name Token) Expr {
	p.nextToken() // consume (
	var args []Expr
	for !p.curTokenIs(TokenRParen) {
		if len(args) > 0 && !p.expect(TokenComma) {
			return nil
		}
		arg := p.parseExpression()
		if arg == nil {
			return nil
		}
		args = append(args, arg)
	}
	p.nextToken() // consume )
	return &CallExpr{SpanVal: p.spanFrom(name.Span), Name: name.Literal, Args: args}
}
