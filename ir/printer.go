package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the module as the IR dump: functions and externs first,
// then every block with its assignments and terminator.
func (m *Module) String() string {
	var sb strings.Builder
	for _, ext := range m.Externs {
		params := make([]string, len(ext.Params))
		for i, p := range ext.Params {
			params[i] = p.String()
		}
		fmt.Fprintf(&sb, "extern %s(%s) -> %s = 0x%X\n", ext.Name, strings.Join(params, ", "), ext.Returns, uint32(ext.Address))
	}
	for _, fn := range m.Functions {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Type.String() + " " + p.Name
		}
		fmt.Fprintf(&sb, "func %s(%s) -> %s @ block %d\n", fn.Name, strings.Join(params, ", "), fn.Returns, fn.Entry)
	}
	for _, blk := range m.Blocks {
		sb.WriteString(blk.String())
	}
	return sb.String()
}

func (b *Block) String() string {
	var sb strings.Builder
	if b.Function != nil {
		fmt.Fprintf(&sb, "block %d (%s):\n", b.Index, b.Function.Name)
	} else {
		fmt.Fprintf(&sb, "block %d:\n", b.Index)
	}
	for _, a := range b.Assignments {
		if a.Variable == "" {
			fmt.Fprintf(&sb, "  %s\n", FormatValue(a.Value))
		} else {
			fmt.Fprintf(&sb, "  %s = %s\n", a.Variable, FormatValue(a.Value))
		}
	}
	fmt.Fprintf(&sb, "  %s\n", FormatTerminator(b.Terminator))
	return sb.String()
}

// FormatTerminator renders a terminator on one line.
func FormatTerminator(t Terminator) string {
	switch t := t.(type) {
	case nil:
		return "<unterminated>"
	case *Return:
		if t.Value == nil {
			return "return"
		}
		return "return " + FormatValue(t.Value)
	case *Branch:
		return fmt.Sprintf("branch %d", t.Target)
	case *CondBranch:
		if t.Otherwise == NoBlock {
			return fmt.Sprintf("branch %s ? %d : (%d)", FormatValue(t.Condition), t.Then, t.FalseTarget())
		}
		return fmt.Sprintf("branch %s ? %d : %d", FormatValue(t.Condition), t.Then, t.Otherwise)
	case *Yield:
		return fmt.Sprintf("yield -> %d", t.Next)
	case *Halt:
		return "halt"
	}
	return fmt.Sprintf("%T", t)
}

// FormatValue renders a value as an expression.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case *IntLiteral:
		return strconv.Itoa(int(v.Value))
	case *FloatLiteral:
		return FormatFloat(v.Value)
	case *Identifier:
		return v.Name
	case *UnaryValue:
		return v.Op.String() + FormatValue(v.Operand)
	case *BinaryValue:
		return "(" + FormatValue(v.Left) + " " + v.Op.String() + " " + FormatValue(v.Right) + ")"
	case *TernaryValue:
		return "(" + FormatValue(v.Condition) + " ? " + FormatValue(v.IfTrue) + " : " + FormatValue(v.IfFalse) + ")"
	case *FunctionCall:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = FormatValue(a)
		}
		return v.Name + "(" + strings.Join(args, ", ") + ")"
	case *CastValue:
		return "(" + v.To.String() + ")" + FormatValue(v.Operand)
	}
	return fmt.Sprintf("%T", v)
}

// FormatFloat renders a float so it always reads back as a float: 1 prints
// as 1.0.
func FormatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") { // NaN, Inf
		s += ".0"
	}
	return s
}
