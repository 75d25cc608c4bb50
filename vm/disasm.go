package vm

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Listing renders instructions in the flat listing format, one per line with
// its offset. Assemble reads the same format back.
func Listing(instrs []Instruction) string {
	var sb strings.Builder
	for i, in := range instrs {
		fmt.Fprintf(&sb, "%04d  %s\n", i, in)
	}
	return sb.String()
}

// Disassemble returns the flat listing annotated with source lines and the
// variables bound to registers.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	if len(p.Registers) > 0 {
		names := make([]string, 0, len(p.Registers))
		for name := range p.Registers {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return p.Registers[names[i]] < p.Registers[names[j]] })
		sb.WriteString("; registers:")
		for _, name := range names {
			fmt.Fprintf(&sb, " r%d=%s", p.Registers[name], name)
		}
		sb.WriteString("\n")
	}

	line := 0
	for i, in := range p.Instructions {
		text := fmt.Sprintf("%04d  %s", i, in)
		if i < len(p.Origins) {
			if o := p.Origins[i]; o.IsResolved() && o.Line != line {
				line = o.Line
				text = fmt.Sprintf("%-32s ; line %d", text, line)
			}
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Assemble parses the flat listing format. Leading offsets and ';' comments
// are ignored. Operands are registers (r3), ints (42, -1, 0x10000) or floats
// (1.5, 2.0).
func Assemble(text string) ([]Instruction, error) {
	var instrs []Instruction
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		mnemonic, rest, _ := strings.Cut(line, " ")
		if isDigits(mnemonic) {
			line = strings.TrimSpace(rest)
			mnemonic, rest, _ = strings.Cut(line, " ")
		}

		op, err := parseOpcode(mnemonic)
		if err != nil {
			return nil, fmt.Errorf("vm: assemble line %d: %w", lineNo, err)
		}

		var args []Operand
		if rest = strings.TrimSpace(rest); rest != "" {
			for _, field := range strings.Split(rest, ",") {
				arg, err := parseOperand(strings.TrimSpace(field))
				if err != nil {
					return nil, fmt.Errorf("vm: assemble line %d: %w", lineNo, err)
				}
				args = append(args, arg)
			}
		}
		if len(args) > len(Instruction{}.Args) {
			return nil, fmt.Errorf("vm: assemble line %d: %s takes at most 3 operands", lineNo, mnemonic)
		}
		if op.Valid() {
			info := GetOpcodeInfo(op)
			if len(args) < info.MinArgs || len(args) > info.MaxArgs {
				return nil, fmt.Errorf("vm: assemble line %d: %s takes %d to %d operands, got %d",
					lineNo, info.Name, info.MinArgs, info.MaxArgs, len(args))
			}
		}
		instrs = append(instrs, NewInstruction(op, args...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vm: assemble: %w", err)
	}
	return instrs, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parseOpcode accepts a mnemonic or the UNKNOWN(0xNN) form the listing uses
// for undefined opcodes.
func parseOpcode(s string) (Opcode, error) {
	if op, ok := LookupOpcode(strings.ToUpper(s)); ok {
		return op, nil
	}
	if hex, ok := strings.CutPrefix(s, "UNKNOWN("); ok {
		n, err := strconv.ParseUint(strings.TrimSuffix(hex, ")"), 0, 8)
		if err == nil {
			return Opcode(n), nil
		}
	}
	return 0, fmt.Errorf("unknown opcode %q", s)
}

func parseOperand(s string) (Operand, error) {
	if s == "" {
		return Operand{}, fmt.Errorf("empty operand")
	}
	if s == "none" {
		return Const(None), nil
	}
	if n, ok := strings.CutPrefix(s, "r"); ok {
		r, err := strconv.Atoi(n)
		if err != nil || r < 0 || r >= RegisterCount {
			return Operand{}, fmt.Errorf("bad register %q", s)
		}
		return Reg(r), nil
	}

	digits := strings.TrimLeft(s, "+-")
	if !strings.HasPrefix(digits, "0x") && !strings.HasPrefix(digits, "0X") && strings.ContainsAny(digits, ".eEnN") {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Operand{}, fmt.Errorf("bad float %q", s)
		}
		return Const(Float(float32(f))), nil
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil || n < -1<<31 || n > 1<<32-1 {
		return Operand{}, fmt.Errorf("bad integer %q", s)
	}
	return IntConst(int32(n)), nil
}
