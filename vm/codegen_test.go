package vm

import (
	"strings"
	"testing"

	"github.com/chazu/flexscript/compiler"
	"github.com/chazu/flexscript/diag"
	"github.com/chazu/flexscript/ir"
)

func generate(t *testing.T, src string) *Program {
	t.Helper()
	prog, diags := Compile(src)
	if !diags.Empty() {
		t.Fatalf("compile %q:\n%s", src, diags)
	}
	return prog
}

func opcodes(instrs []Instruction) string {
	names := make([]string, len(instrs))
	for i, in := range instrs {
		names[i] = in.Op.String()
	}
	return strings.Join(names, " ")
}

func TestOpcodeTable(t *testing.T) {
	want := "MOV ADD SUB MUL DIV MOD AND OR XOR INV ITF FTI CALL PUSH POP CMP JMP JZ JNZ JLT JLE JGT JGE JEQ JNE YIELD RETURN HALT"
	var names []string
	for _, op := range AllOpcodes() {
		names = append(names, op.String())
		if found, ok := LookupOpcode(op.String()); !ok || found != op {
			t.Errorf("LookupOpcode(%s) = %v, %t", op, found, ok)
		}
	}
	if got := strings.Join(names, " "); got != want {
		t.Errorf("opcodes = %s", got)
	}
	if OpcodeCount() != 28 {
		t.Errorf("OpcodeCount = %d", OpcodeCount())
	}
	if Opcode(0xEE).Valid() || !strings.HasPrefix(Opcode(0xEE).String(), "UNKNOWN") {
		t.Error("undefined opcode reported as valid")
	}
}

func TestInverseJumps(t *testing.T) {
	flags := [][2]bool{{false, false}, {true, false}, {false, true}}
	for _, op := range AllOpcodes() {
		if !op.IsConditionalJump() {
			continue
		}
		inv := op.Inverse()
		if inv.Inverse() != op {
			t.Errorf("%s inverse is not an involution", op)
		}
		for _, f := range flags {
			if op.taken(f[0], f[1]) == inv.taken(f[0], f[1]) {
				t.Errorf("%s and %s agree for zf=%t sf=%t", op, inv, f[0], f[1])
			}
		}
	}
}

func TestComparisonJumpsMatchFlags(t *testing.T) {
	cases := [][2]int32{{1, 2}, {2, 2}, {3, 2}, {-5, 4}}
	for op, jump := range comparisonJumps {
		for _, c := range cases {
			r := compare(Int(c[0]), Int(c[1]))
			var want bool
			switch op {
			case compiler.BinaryEqual:
				want = c[0] == c[1]
			case compiler.BinaryNotEqual:
				want = c[0] != c[1]
			case compiler.BinaryLess:
				want = c[0] < c[1]
			case compiler.BinaryLessEqual:
				want = c[0] <= c[1]
			case compiler.BinaryGreater:
				want = c[0] > c[1]
			case compiler.BinaryGreaterEqual:
				want = c[0] >= c[1]
			}
			if got := jump.taken(r == 0, r > 0); got != want {
				t.Errorf("%d %s %d: %s taken = %t", c[0], op, c[1], jump, got)
			}
		}
	}
}

func TestGenerateIfWithoutElse(t *testing.T) {
	prog := generate(t, "int x = 0; if (x < 2) { x = 10; }")
	// the true block follows, so only the inverse jump is needed
	if got := opcodes(prog.Instructions); got != "MOV CMP JGE MOV JMP HALT" {
		t.Errorf("opcodes = %s\n%s", got, Listing(prog.Instructions))
	}
	jge := prog.Instructions[2]
	if jge.Args[0] != offsetTarget(5) {
		t.Errorf("JGE target = %s, want 5", jge.Args[0])
	}
	if !strings.Contains(prog.Blocks, "  JGE 2\n") {
		t.Errorf("pre-patch listing keeps block indices:\n%s", prog.Blocks)
	}
}

func TestGenerateShortCircuitLayout(t *testing.T) {
	prog := generate(t, "int a = 1; int b = 2; int x = a && b;")
	want := []string{
		"MOV r0, 1",
		"MOV r1, 2",
		"CMP r0, 0",
		"JEQ 8",
		"CMP r1, 0",
		"JEQ 8",
		"MOV r2, 1",
		"JMP 9",
		"MOV r2, 0",
		"HALT",
	}
	if len(prog.Instructions) != len(want) {
		t.Fatalf("listing:\n%s\nwant:\n%s", Listing(prog.Instructions), strings.Join(want, "\n"))
	}
	for i, in := range prog.Instructions {
		if in.String() != want[i] {
			t.Fatalf("listing:\n%s\nwant:\n%s", Listing(prog.Instructions), strings.Join(want, "\n"))
		}
	}
	if strings.Count(prog.Blocks, "(synthetic)") != 4 {
		t.Errorf("want 4 synthetic blocks:\n%s", prog.Blocks)
	}
}

func TestGenerateCasts(t *testing.T) {
	prog := generate(t, "int i = 3; float f = (float)i; int j = (int)f; float g = (float)f;")
	if got := opcodes(prog.Instructions); got != "MOV ITF FTI MOV HALT" {
		t.Errorf("opcodes = %s\n%s", got, Listing(prog.Instructions))
	}
}

func TestGenerateUnary(t *testing.T) {
	prog := generate(t, "int i = 3; float f = 1.5; int a = -i; float b = -f; int c = ~i;")
	want := []string{"SUB r2, 0, r0", "SUB r3, 0.0, r1", "INV r4, r0"}
	for i, w := range want {
		if got := prog.Instructions[2+i].String(); got != w {
			t.Errorf("instruction %d = %s, want %s", 2+i, got, w)
		}
	}
}

func TestGenerateCallingConvention(t *testing.T) {
	prog := generate(t, `
extern func log_int(int v) = 0x10000;
func add(int a, int b) -> int { return a + b; }
int r = add(1, 2);
log_int(r);
`)
	got := opcodes(prog.Instructions)
	want := "PUSH PUSH CALL POP PUSH CALL POP HALT POP POP POP PUSH ADD RETURN"
	if got != want {
		t.Fatalf("opcodes = %s\nwant      %s\n%s", got, want, prog.Disassemble())
	}
	// local call patched to the prologue, external address untouched
	if prog.Instructions[2].Args[0] != offsetTarget(8) || prog.Instructions[2].Args[1] != IntConst(2) {
		t.Errorf("local CALL = %s", prog.Instructions[2])
	}
	if prog.Instructions[5].Args[0] != IntConst(0x10000) {
		t.Errorf("external CALL = %s", prog.Instructions[5])
	}
	// discarded external result is still popped
	if prog.Instructions[6].Args[0].Valid() {
		t.Errorf("expected a bare POP, got %s", prog.Instructions[6])
	}
}

func TestGenerateYield(t *testing.T) {
	prog := generate(t, "int x = 1; yield; x = 2;")
	if got := opcodes(prog.Instructions); got != "MOV YIELD JMP MOV HALT" {
		t.Errorf("opcodes = %s", got)
	}
}

func TestPatchReportsInvalidBlockIndex(t *testing.T) {
	span := diag.NewSpan(4, 2)
	mod := &ir.Module{
		Blocks: []*ir.Block{
			{Index: 0, Terminator: &ir.Branch{SpanVal: span, Target: 7}},
		},
		VarTypes: map[string]ir.Type{},
	}
	prog, diags := Generate(mod)
	if diags.Len() != 1 || !strings.Contains(diags.Diagnostics()[0].Message, "Invalid block index 7") {
		t.Fatalf("diagnostics = %s", diags)
	}
	if diags.Diagnostics()[0].Span != span {
		t.Errorf("diagnostic span = %v", diags.Diagnostics()[0].Span)
	}
	if len(prog.Instructions) != 1 {
		t.Errorf("instructions = %v", prog.Instructions)
	}
}

func TestGenerateReportsInvalidCast(t *testing.T) {
	mod := &ir.Module{
		Blocks: []*ir.Block{{
			Index: 0,
			Assignments: []ir.Assignment{{
				Variable: "x",
				Value: &ir.CastValue{
					To:      ir.TypeInt,
					Operand: &ir.Identifier{Name: "y", Typ: ir.TypeNone},
				},
			}},
			Terminator: &ir.Halt{SpanVal: diag.GeneratedSpan()},
		}},
		VarTypes: map[string]ir.Type{},
	}
	_, diags := Generate(mod)
	if diags.Len() != 1 || !strings.Contains(diags.Diagnostics()[0].Message, "invalid cast") {
		t.Errorf("diagnostics = %s", diags)
	}
}

func TestOriginsAreAligned(t *testing.T) {
	prog := generate(t, "int a = 1;\nint b = a * 2;\nif (b > a) {\n  a = b;\n}\n")
	if len(prog.Origins) != len(prog.Instructions) {
		t.Fatalf("%d origins for %d instructions", len(prog.Origins), len(prog.Instructions))
	}
	last := prog.Origins[len(prog.Origins)-1]
	if !last.IsGenerated() {
		t.Errorf("HALT origin = %v, want generated", last)
	}
	if prog.Origins[0].Line != 1 || prog.Origins[1].Line != 2 {
		t.Errorf("origins = %v", prog.Origins[:2])
	}
}
