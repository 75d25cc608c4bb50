package vm

import "fmt"

// Opcode identifies an instruction's effect.
type Opcode byte

const (
	// Data movement and arithmetic. The first operand is the destination.
	OpMov Opcode = iota // MOV dst, src
	OpAdd               // ADD dst, a, b
	OpSub               // SUB dst, a, b
	OpMul               // MUL dst, a, b
	OpDiv               // DIV dst, a, b
	OpMod               // MOD dst, a, b
	OpAnd               // AND dst, a, b
	OpOr                // OR dst, a, b
	OpXor               // XOR dst, a, b
	OpInv               // INV dst, src
	OpItf               // ITF dst, src: int to float
	OpFti               // FTI dst, src: float to int

	// Calls and the operand stack.
	OpCall // CALL addr [, argc]
	OpPush // PUSH src
	OpPop  // POP [dst]

	// Flags and jumps. Jumps test the flags set by the last CMP.
	OpCmp // CMP a, b
	OpJmp // JMP addr
	OpJz  // JZ addr: zero
	OpJnz // JNZ addr: not zero
	OpJlt // JLT addr: a < b
	OpJle // JLE addr: a <= b
	OpJgt // JGT addr: a > b
	OpJge // JGE addr: a >= b
	OpJeq // JEQ addr: a == b
	OpJne // JNE addr: a != b

	// Control.
	OpYield  // YIELD: suspend, resume at the next instruction
	OpReturn // RETURN [val]
	OpHalt   // HALT
)

// OpcodeInfo provides metadata about each opcode for validation and the
// assembler.
type OpcodeInfo struct {
	Name    string // Mnemonic
	MinArgs int    // Required operands
	MaxArgs int    // Operands accepted
	Target  bool   // First operand is a code address
	Dest    bool   // First operand is written
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpMov: {"MOV", 2, 2, false, true},
	OpAdd: {"ADD", 3, 3, false, true},
	OpSub: {"SUB", 3, 3, false, true},
	OpMul: {"MUL", 3, 3, false, true},
	OpDiv: {"DIV", 3, 3, false, true},
	OpMod: {"MOD", 3, 3, false, true},
	OpAnd: {"AND", 3, 3, false, true},
	OpOr:  {"OR", 3, 3, false, true},
	OpXor: {"XOR", 3, 3, false, true},
	OpInv: {"INV", 2, 2, false, true},
	OpItf: {"ITF", 2, 2, false, true},
	OpFti: {"FTI", 2, 2, false, true},

	OpCall: {"CALL", 1, 2, true, false},
	OpPush: {"PUSH", 1, 1, false, false},
	OpPop:  {"POP", 0, 1, false, true},

	OpCmp: {"CMP", 2, 2, false, false},
	OpJmp: {"JMP", 1, 1, true, false},
	OpJz:  {"JZ", 1, 1, true, false},
	OpJnz: {"JNZ", 1, 1, true, false},
	OpJlt: {"JLT", 1, 1, true, false},
	OpJle: {"JLE", 1, 1, true, false},
	OpJgt: {"JGT", 1, 1, true, false},
	OpJge: {"JGE", 1, 1, true, false},
	OpJeq: {"JEQ", 1, 1, true, false},
	OpJne: {"JNE", 1, 1, true, false},

	OpYield:  {"YIELD", 0, 0, false, false},
	OpReturn: {"RETURN", 0, 1, false, false},
	OpHalt:   {"HALT", 0, 0, false, false},
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// LookupOpcode finds an opcode by mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump returns true for JMP and the conditional jumps.
func (op Opcode) IsJump() bool {
	return op >= OpJmp && op <= OpJne
}

// IsConditionalJump returns true for jumps that test the flags.
func (op Opcode) IsConditionalJump() bool {
	return op > OpJmp && op <= OpJne
}

// HasTarget returns true if the first operand is a code address.
func (op Opcode) HasTarget() bool {
	return GetOpcodeInfo(op).Target
}

// Inverse returns the conditional jump taken exactly when op is not.
func (op Opcode) Inverse() Opcode {
	switch op {
	case OpJz:
		return OpJnz
	case OpJnz:
		return OpJz
	case OpJeq:
		return OpJne
	case OpJne:
		return OpJeq
	case OpJlt:
		return OpJge
	case OpJge:
		return OpJlt
	case OpJgt:
		return OpJle
	case OpJle:
		return OpJgt
	}
	return op
}

// taken evaluates a jump condition against the flags. zf is set when the
// compared values were equal, sf when the first was greater.
func (op Opcode) taken(zf, sf bool) bool {
	switch op {
	case OpJmp:
		return true
	case OpJz, OpJeq:
		return zf
	case OpJnz, OpJne:
		return !zf
	case OpJlt:
		return !sf && !zf
	case OpJle:
		return !sf || zf
	case OpJgt:
		return sf && !zf
	case OpJge:
		return sf || zf
	}
	return false
}

// AllOpcodes returns all defined opcodes in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := OpMov; op <= OpHalt; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
