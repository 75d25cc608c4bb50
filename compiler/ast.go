package compiler

import "github.com/chazu/flexscript/diag"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for scripts
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes. Every node owns its
// children; the tree is never shared.
type Node interface {
	Span() diag.Span
	node() // marker method
}

// TypeName is a declared value type.
type TypeName int

const (
	TypeVoid TypeName = iota
	TypeInt
	TypeFloat
)

func (t TypeName) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	default:
		return "void"
	}
}

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	UnaryNegate UnaryOp = iota // -
	UnaryNot                   // !
	UnaryInvert                // ~
)

var unaryOpNames = [...]string{"-", "!", "~"}

func (op UnaryOp) String() string { return unaryOpNames[op] }

// BinaryOp is an infix operator.
type BinaryOp int

const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryBitAnd
	BinaryBitOr
	BinaryBitXor
	BinaryEqual
	BinaryNotEqual
	BinaryLess
	BinaryLessEqual
	BinaryGreater
	BinaryGreaterEqual
	BinaryAnd
	BinaryOr
)

var binaryOpNames = [...]string{"+", "-", "*", "/", "%", "&", "|", "^", "==", "!=", "<", "<=", ">", ">=", "&&", "||"}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// IsComparison reports whether op produces a boolean from two numbers.
func (op BinaryOp) IsComparison() bool {
	return op >= BinaryEqual && op <= BinaryGreaterEqual
}

// IsLogical reports whether op is && or ||.
func (op BinaryOp) IsLogical() bool {
	return op == BinaryAnd || op == BinaryOr
}

// IsBitwise reports whether op is &, | or ^.
func (op BinaryOp) IsBitwise() bool {
	return op >= BinaryBitAnd && op <= BinaryBitXor
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLiteral represents an integer literal (including 'c', true and false).
type IntLiteral struct {
	SpanVal diag.Span
	Value   int32
}

func (n *IntLiteral) Span() diag.Span { return n.SpanVal }
func (n *IntLiteral) node()           {}
func (n *IntLiteral) expr()           {}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	SpanVal diag.Span
	Value   float32
}

func (n *FloatLiteral) Span() diag.Span { return n.SpanVal }
func (n *FloatLiteral) node()           {}
func (n *FloatLiteral) expr()           {}

// Identifier represents a variable reference.
type Identifier struct {
	SpanVal diag.Span
	Name    string
}

func (n *Identifier) Span() diag.Span { return n.SpanVal }
func (n *Identifier) node()           {}
func (n *Identifier) expr()           {}

// UnaryExpr represents a prefix operation.
type UnaryExpr struct {
	SpanVal diag.Span
	Op      UnaryOp
	Operand Expr
}

func (n *UnaryExpr) Span() diag.Span { return n.SpanVal }
func (n *UnaryExpr) node()           {}
func (n *UnaryExpr) expr()           {}

// BinaryExpr represents an infix operation.
type BinaryExpr struct {
	SpanVal diag.Span
	Op      BinaryOp
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() diag.Span { return n.SpanVal }
func (n *BinaryExpr) node()           {}
func (n *BinaryExpr) expr()           {}

// TernaryExpr represents cond ? a : b.
type TernaryExpr struct {
	SpanVal   diag.Span
	Condition Expr
	IfTrue    Expr
	IfFalse   Expr
}

func (n *TernaryExpr) Span() diag.Span { return n.SpanVal }
func (n *TernaryExpr) node()           {}
func (n *TernaryExpr) expr()           {}

// CallExpr represents name(args).
type CallExpr struct {
	SpanVal diag.Span
	Name    string
	Args    []Expr
}

func (n *CallExpr) Span() diag.Span { return n.SpanVal }
func (n *CallExpr) node()           {}
func (n *CallExpr) expr()           {}

// CastExpr represents (int)e or (float)e.
type CastExpr struct {
	SpanVal diag.Span
	To      TypeName
	Operand Expr
}

func (n *CastExpr) Span() diag.Span { return n.SpanVal }
func (n *CastExpr) node()           {}
func (n *CastExpr) expr()           {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// BlockStmt is a braced statement list. The program root is a BlockStmt.
type BlockStmt struct {
	SpanVal    diag.Span
	Statements []Stmt
}

func (n *BlockStmt) Span() diag.Span { return n.SpanVal }
func (n *BlockStmt) node()           {}
func (n *BlockStmt) stmt()           {}

// VarDecl represents `int x = e;`. Value is nil when omitted.
type VarDecl struct {
	SpanVal diag.Span
	Type    TypeName
	Name    string
	Value   Expr
}

func (n *VarDecl) Span() diag.Span { return n.SpanVal }
func (n *VarDecl) node()           {}
func (n *VarDecl) stmt()           {}

// AssignStmt represents `x = e;` or a compound form. Op is meaningful only
// when Compound is set.
type AssignStmt struct {
	SpanVal  diag.Span
	NameSpan diag.Span
	Name     string
	Compound bool
	Op       BinaryOp
	Value    Expr
}

func (n *AssignStmt) Span() diag.Span { return n.SpanVal }
func (n *AssignStmt) node()           {}
func (n *AssignStmt) stmt()           {}

// ExprStmt is an expression evaluated for effect (a call).
type ExprStmt struct {
	SpanVal diag.Span
	Expr    Expr
}

func (n *ExprStmt) Span() diag.Span { return n.SpanVal }
func (n *ExprStmt) node()           {}
func (n *ExprStmt) stmt()           {}

// IfStmt represents if/else. Else is nil when absent.
type IfStmt struct {
	SpanVal   diag.Span
	Condition Expr
	Then      Stmt
	Else      Stmt
}

func (n *IfStmt) Span() diag.Span { return n.SpanVal }
func (n *IfStmt) node()           {}
func (n *IfStmt) stmt()           {}

// WhileStmt represents a while loop.
type WhileStmt struct {
	SpanVal   diag.Span
	Condition Expr
	Body      Stmt
}

func (n *WhileStmt) Span() diag.Span { return n.SpanVal }
func (n *WhileStmt) node()           {}
func (n *WhileStmt) stmt()           {}

// ForStmt represents for (init; cond; post). Any clause may be nil.
type ForStmt struct {
	SpanVal   diag.Span
	Init      Stmt
	Condition Expr
	Post      Stmt
	Body      Stmt
}

func (n *ForStmt) Span() diag.Span { return n.SpanVal }
func (n *ForStmt) node()           {}
func (n *ForStmt) stmt()           {}

// ReturnStmt represents return with an optional value.
type ReturnStmt struct {
	SpanVal diag.Span
	Value   Expr
}

func (n *ReturnStmt) Span() diag.Span { return n.SpanVal }
func (n *ReturnStmt) node()           {}
func (n *ReturnStmt) stmt()           {}

// BreakStmt exits the innermost loop.
type BreakStmt struct {
	SpanVal diag.Span
}

func (n *BreakStmt) Span() diag.Span { return n.SpanVal }
func (n *BreakStmt) node()           {}
func (n *BreakStmt) stmt()           {}

// ContinueStmt jumps to the next iteration of the innermost loop.
type ContinueStmt struct {
	SpanVal diag.Span
}

func (n *ContinueStmt) Span() diag.Span { return n.SpanVal }
func (n *ContinueStmt) node()           {}
func (n *ContinueStmt) stmt()           {}

// YieldStmt suspends the VM until the host resumes it.
type YieldStmt struct {
	SpanVal diag.Span
}

func (n *YieldStmt) Span() diag.Span { return n.SpanVal }
func (n *YieldStmt) node()           {}
func (n *YieldStmt) stmt()           {}

// Param is one function parameter.
type Param struct {
	SpanVal diag.Span
	Type    TypeName
	Name    string
}

// FuncDecl represents a function definition.
type FuncDecl struct {
	SpanVal diag.Span
	Name    string
	Params  []Param
	Returns TypeName
	Body    *BlockStmt
}

func (n *FuncDecl) Span() diag.Span { return n.SpanVal }
func (n *FuncDecl) node()           {}
func (n *FuncDecl) stmt()           {}

// ExternDecl binds a name to a host function address.
type ExternDecl struct {
	SpanVal diag.Span
	Name    string
	Params  []Param
	Returns TypeName
	Address int32
}

func (n *ExternDecl) Span() diag.Span { return n.SpanVal }
func (n *ExternDecl) node()           {}
func (n *ExternDecl) stmt()           {}

// Program is the root of a parsed script: one block holding the top-level
// declarations and statements in source order.
type Program struct {
	Body *BlockStmt
}

// Functions returns the top-level function declarations.
func (p *Program) Functions() []*FuncDecl {
	var out []*FuncDecl
	for _, s := range p.Body.Statements {
		if fn, ok := s.(*FuncDecl); ok {
			out = append(out, fn)
		}
	}
	return out
}
