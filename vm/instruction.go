package vm

import (
	"fmt"
	"strings"
)

// RegisterCount is the size of the register file.
const RegisterCount = 1024

// OperandKind tags an Operand.
type OperandKind uint8

const (
	OperandInvalid OperandKind = iota // absent
	OperandConstant
	OperandRegister
)

// Operand is an instruction argument: a constant value or a register
// reference. The zero Operand is absent.
type Operand struct {
	Kind     OperandKind `cbor:"1,keyasint"`
	Value    Value       `cbor:"2,keyasint"`
	Register int         `cbor:"3,keyasint,omitempty"`
}

// Const returns a constant operand.
func Const(v Value) Operand { return Operand{Kind: OperandConstant, Value: v} }

// IntConst returns an int constant operand.
func IntConst(v int32) Operand { return Const(Int(v)) }

// Reg returns a register operand.
func Reg(index int) Operand { return Operand{Kind: OperandRegister, Register: index} }

// Valid reports whether the operand is present.
func (o Operand) Valid() bool { return o.Kind != OperandInvalid }

func (o Operand) IsRegister() bool { return o.Kind == OperandRegister }

func (o Operand) String() string {
	switch o.Kind {
	case OperandConstant:
		return o.Value.String()
	case OperandRegister:
		return fmt.Sprintf("r%d", o.Register)
	}
	return "_"
}

// Instruction is an opcode with up to three operands, destination first.
// Unused trailing operands are absent.
type Instruction struct {
	Op   Opcode     `cbor:"1,keyasint"`
	Args [3]Operand `cbor:"2,keyasint"`
}

// NewInstruction builds an instruction. Extra operands beyond three are
// dropped.
func NewInstruction(op Opcode, args ...Operand) Instruction {
	in := Instruction{Op: op}
	copy(in.Args[:], args)
	return in
}

// Operands returns the present operands.
func (in Instruction) Operands() []Operand {
	n := 0
	for n < len(in.Args) && in.Args[n].Valid() {
		n++
	}
	return in.Args[:n]
}

func (in Instruction) String() string {
	ops := in.Operands()
	if len(ops) == 0 {
		return in.Op.String()
	}
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.String()
	}
	return in.Op.String() + " " + strings.Join(parts, ", ")
}

// BlockIndex names an instruction block during code generation.
type BlockIndex int

// InstructionOffset is an absolute position in a flat instruction list.
type InstructionOffset int

// blockTarget encodes a block index in a jump or call operand before
// patching.
func blockTarget(b BlockIndex) Operand { return IntConst(int32(b)) }

// offsetTarget encodes an absolute jump or call destination.
func offsetTarget(o InstructionOffset) Operand { return IntConst(int32(o)) }
