// Package ir defines the basic-block intermediate representation that sits
// between the AST and machine instructions, and the builder that lowers one
// into the other.
//
// A Module is a list of Blocks. Each block holds straight-line Assignments
// and ends in exactly one Terminator; terminators name their successor
// blocks by index into Module.Blocks. Top-level script code starts at block
// 0. Arithmetic is flattened into temporaries, while comparison, boolean and
// ternary trees are kept whole so the code generator can lower them with
// short-circuit evaluation.
package ir

import (
	"github.com/chazu/flexscript/compiler"
	"github.com/chazu/flexscript/diag"
)

// Type is the inferred type of an IR value.
type Type int

const (
	TypeNone Type = iota // unknown, or no value (void)
	TypeInt
	TypeFloat
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	default:
		return "none"
	}
}

// TypeOf converts a declared AST type.
func TypeOf(t compiler.TypeName) Type {
	switch t {
	case compiler.TypeInt:
		return TypeInt
	case compiler.TypeFloat:
		return TypeFloat
	}
	return TypeNone
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Value is an IR expression. Every value exclusively owns its operands.
type Value interface {
	Span() diag.Span
	Type() Type
	value() // marker method
}

// IntLiteral is an int constant.
type IntLiteral struct {
	SpanVal diag.Span
	Value   int32
}

func (v *IntLiteral) Span() diag.Span { return v.SpanVal }
func (v *IntLiteral) Type() Type      { return TypeInt }
func (v *IntLiteral) value()          {}

// FloatLiteral is a float constant.
type FloatLiteral struct {
	SpanVal diag.Span
	Value   float32
}

func (v *FloatLiteral) Span() diag.Span { return v.SpanVal }
func (v *FloatLiteral) Type() Type      { return TypeFloat }
func (v *FloatLiteral) value()          {}

// Identifier reads a variable by its qualified name.
type Identifier struct {
	SpanVal diag.Span
	Name    string
	Typ     Type
}

func (v *Identifier) Span() diag.Span { return v.SpanVal }
func (v *Identifier) Type() Type      { return v.Typ }
func (v *Identifier) value()          {}

// UnaryValue applies a prefix operator.
type UnaryValue struct {
	SpanVal diag.Span
	Op      compiler.UnaryOp
	Operand Value
	Typ     Type
}

func (v *UnaryValue) Span() diag.Span { return v.SpanVal }
func (v *UnaryValue) Type() Type      { return v.Typ }
func (v *UnaryValue) value()          {}

// BinaryValue applies an infix operator. Operands of arithmetic and bitwise
// operators always have the same type.
type BinaryValue struct {
	SpanVal diag.Span
	Op      compiler.BinaryOp
	Left    Value
	Right   Value
	Typ     Type
}

func (v *BinaryValue) Span() diag.Span { return v.SpanVal }
func (v *BinaryValue) Type() Type      { return v.Typ }
func (v *BinaryValue) value()          {}

// IsCondition reports whether the value yields a truth value that the code
// generator lowers through branches (comparisons, && and ||, logical not).
func IsCondition(v Value) bool {
	switch v := v.(type) {
	case *BinaryValue:
		return v.Op.IsComparison() || v.Op.IsLogical()
	case *UnaryValue:
		return v.Op == compiler.UnaryNot
	}
	return false
}

// TernaryValue is cond ? IfTrue : IfFalse. Only the selected arm is evaluated.
type TernaryValue struct {
	SpanVal   diag.Span
	Condition Value
	IfTrue    Value
	IfFalse   Value
	Typ       Type
}

func (v *TernaryValue) Span() diag.Span { return v.SpanVal }
func (v *TernaryValue) Type() Type      { return v.Typ }
func (v *TernaryValue) value()          {}

// FunctionCall calls a script function or a host extern. Exactly one of
// Function and Extern is set.
type FunctionCall struct {
	SpanVal  diag.Span
	Name     string
	Function *Function
	Extern   *Extern
	Args     []Value
}

func (v *FunctionCall) Span() diag.Span { return v.SpanVal }
func (v *FunctionCall) value()          {}

func (v *FunctionCall) Type() Type {
	switch {
	case v.Function != nil:
		return v.Function.Returns
	case v.Extern != nil:
		return v.Extern.Returns
	}
	return TypeNone
}

// CastValue converts Operand to To.
type CastValue struct {
	SpanVal diag.Span
	To      Type
	Operand Value
}

func (v *CastValue) Span() diag.Span { return v.SpanVal }
func (v *CastValue) Type() Type      { return v.To }
func (v *CastValue) value()          {}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

// Assignment binds Variable to Value. An empty Variable evaluates the value
// for its effect only (a call statement).
type Assignment struct {
	SpanVal  diag.Span
	Variable string
	Value    Value
}

func (a Assignment) Span() diag.Span { return a.SpanVal }

// Terminator ends a block.
type Terminator interface {
	Span() diag.Span
	Successors() []int
	terminator() // marker method
}

// Return leaves the current function (or ends the script at top level).
// Value is nil for a void return, otherwise always an Identifier.
type Return struct {
	SpanVal diag.Span
	Value   Value
}

func (t *Return) Span() diag.Span   { return t.SpanVal }
func (t *Return) Successors() []int { return nil }
func (t *Return) terminator()       {}

// Branch jumps unconditionally.
type Branch struct {
	SpanVal diag.Span
	Target  int
}

func (t *Branch) Span() diag.Span   { return t.SpanVal }
func (t *Branch) Successors() []int { return []int{t.Target} }
func (t *Branch) terminator()       {}

// NoBlock marks an absent Otherwise target.
const NoBlock = -1

// CondBranch jumps to Then when Condition is true, else to Otherwise. When
// Otherwise is NoBlock the false edge goes to block Then+1, which the builder
// always allocates as the merge block of an if without else.
type CondBranch struct {
	SpanVal   diag.Span
	Condition Value
	Then      int
	Otherwise int
}

func (t *CondBranch) Span() diag.Span { return t.SpanVal }
func (t *CondBranch) terminator()     {}

// FalseTarget resolves the false edge, applying the Then+1 fallback.
func (t *CondBranch) FalseTarget() int {
	if t.Otherwise == NoBlock {
		return t.Then + 1
	}
	return t.Otherwise
}

func (t *CondBranch) Successors() []int { return []int{t.Then, t.FalseTarget()} }

// Yield suspends the VM; on resumption control continues at Next.
type Yield struct {
	SpanVal diag.Span
	Next    int
}

func (t *Yield) Span() diag.Span   { return t.SpanVal }
func (t *Yield) Successors() []int { return []int{t.Next} }
func (t *Yield) terminator()       {}

// Halt stops the program.
type Halt struct {
	SpanVal diag.Span
}

func (t *Halt) Span() diag.Span   { return t.SpanVal }
func (t *Halt) Successors() []int { return nil }
func (t *Halt) terminator()       {}

// Block is a basic block. Index equals its position in Module.Blocks.
type Block struct {
	Index       int
	Function    *Function // nil for top-level code
	Assignments []Assignment
	Terminator  Terminator
}

// ---------------------------------------------------------------------------
// Module
// ---------------------------------------------------------------------------

// Param is a function parameter by qualified name.
type Param struct {
	Name string
	Type Type
}

// Function is a script function. Its code starts at block Entry; on entry
// the return address is kept in the variable ReturnAddress.
type Function struct {
	SpanVal       diag.Span
	Name          string
	Params        []Param
	Returns       Type
	Entry         int
	ReturnAddress string
}

// Extern is a host function bound to an address at or above the external
// threshold.
type Extern struct {
	SpanVal diag.Span
	Name    string
	Address int32
	Params  []Type
	Returns Type
}

// Module is a lowered program.
type Module struct {
	Blocks    []*Block
	Functions []*Function
	Externs   []*Extern
	VarTypes  map[string]Type
}

// Function returns the function named name, or nil.
func (m *Module) Function(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Extern returns the extern named name, or nil.
func (m *Module) Extern(name string) *Extern {
	for _, ext := range m.Externs {
		if ext.Name == name {
			return ext
		}
	}
	return nil
}

// FunctionAt returns the function whose entry is block index, or nil.
func (m *Module) FunctionAt(index int) *Function {
	for _, fn := range m.Functions {
		if fn.Entry == index {
			return fn
		}
	}
	return nil
}
