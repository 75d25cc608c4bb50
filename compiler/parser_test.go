package compiler

import (
	"fmt"
	"strings"
	"testing"
)

func parseOK(t *testing.T, src string) *Program {
	t.Helper()
	prog, diags := Parse(src)
	if !diags.Empty() {
		t.Fatalf("Parse(%q) diagnostics:\n%s", src, diags)
	}
	return prog
}

func TestParserLiterals(t *testing.T) {
	prog := parseOK(t, "x = 42; y = 2.5; z = true; c = 'A';")
	stmts := prog.Body.Statements
	if len(stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(stmts))
	}

	if lit, ok := stmts[0].(*AssignStmt).Value.(*IntLiteral); !ok || lit.Value != 42 {
		t.Errorf("stmt 0 value = %#v", stmts[0].(*AssignStmt).Value)
	}
	if lit, ok := stmts[1].(*AssignStmt).Value.(*FloatLiteral); !ok || lit.Value != 2.5 {
		t.Errorf("stmt 1 value = %#v", stmts[1].(*AssignStmt).Value)
	}
	if lit, ok := stmts[2].(*AssignStmt).Value.(*IntLiteral); !ok || lit.Value != 1 {
		t.Errorf("stmt 2 value = %#v", stmts[2].(*AssignStmt).Value)
	}
	if lit, ok := stmts[3].(*AssignStmt).Value.(*IntLiteral); !ok || lit.Value != 'A' {
		t.Errorf("stmt 3 value = %#v", stmts[3].(*AssignStmt).Value)
	}
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"a || b && c", "(a || (b && c))"},
		{"a == b < c", "(a == (b < c))"},
		{"a | b ^ c & d", "(a | (b ^ (c & d)))"},
		{"a & b + c", "(a & (b + c))"},
		{"-a * b", "((-a) * b)"},
		{"!a && b", "((!a) && b)"},
		{"~a | b", "((~a) | b)"},
		{"(int)a + b", "((int)a + b)"},
		{"(float)-a", "(float)(-a)"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"a ? b : c ? d : e", "(a ? b : (c ? d : e))"},
		{"a || b ? 1 : 2", "((a || b) ? 1 : 2)"},
		{"f(a, b + 1) * 2", "(f(a, (b + 1)) * 2)"},
		{"g()", "g()"},
	}

	for _, tc := range tests {
		p := NewParser(tc.src)
		expr := p.ParseExpression()
		if !p.Diagnostics().Empty() {
			t.Errorf("%q: diagnostics:\n%s", tc.src, p.Diagnostics())
			continue
		}
		if got := exprString(expr); got != tc.want {
			t.Errorf("%q: got %s, want %s", tc.src, got, tc.want)
		}
	}
}

func exprString(e Expr) string {
	switch e := e.(type) {
	case *IntLiteral:
		return fmt.Sprint(e.Value)
	case *FloatLiteral:
		return fmt.Sprint(e.Value)
	case *Identifier:
		return e.Name
	case *UnaryExpr:
		return "(" + e.Op.String() + exprString(e.Operand) + ")"
	case *BinaryExpr:
		return "(" + exprString(e.Left) + " " + e.Op.String() + " " + exprString(e.Right) + ")"
	case *TernaryExpr:
		return "(" + exprString(e.Condition) + " ? " + exprString(e.IfTrue) + " : " + exprString(e.IfFalse) + ")"
	case *CastExpr:
		return "(" + e.To.String() + ")" + exprString(e.Operand)
	case *CallExpr:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = exprString(a)
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	}
	return "?"
}

func TestParserStatements(t *testing.T) {
	src := `
extern func print_int(int) = 0x10000;

func add(int a, float b) -> float {
	return a + b;
}

int x = 1;
float y;
x += 2;
if (x < 3) { x = 10; } else x = 20;
while (x > 0) { x -= 1; if (x == 5) break; else continue; }
for (int i = 0; i < 3; i = i + 1) yield;
for (;;) { break; }
print_int(x);
return;
`
	prog := parseOK(t, src)
	stmts := prog.Body.Statements

	wantTypes := []string{
		"*compiler.ExternDecl",
		"*compiler.FuncDecl",
		"*compiler.VarDecl",
		"*compiler.VarDecl",
		"*compiler.AssignStmt",
		"*compiler.IfStmt",
		"*compiler.WhileStmt",
		"*compiler.ForStmt",
		"*compiler.ForStmt",
		"*compiler.ExprStmt",
		"*compiler.ReturnStmt",
	}
	if len(stmts) != len(wantTypes) {
		t.Fatalf("got %d statements, want %d\n%s", len(stmts), len(wantTypes), FormatProgram(prog))
	}
	for i, want := range wantTypes {
		if got := fmt.Sprintf("%T", stmts[i]); got != want {
			t.Errorf("stmt %d = %s, want %s", i, got, want)
		}
	}

	ext := stmts[0].(*ExternDecl)
	if ext.Name != "print_int" || ext.Address != 0x10000 || len(ext.Params) != 1 || ext.Returns != TypeVoid {
		t.Errorf("extern = %+v", ext)
	}

	fn := stmts[1].(*FuncDecl)
	if fn.Name != "add" || len(fn.Params) != 2 || fn.Params[1].Type != TypeFloat || fn.Returns != TypeFloat {
		t.Errorf("func = %+v", fn)
	}
	if len(prog.Functions()) != 1 {
		t.Errorf("Functions() = %d, want 1", len(prog.Functions()))
	}

	if decl := stmts[3].(*VarDecl); decl.Value != nil || decl.Type != TypeFloat {
		t.Errorf("float y decl = %+v", decl)
	}
	if assign := stmts[4].(*AssignStmt); !assign.Compound || assign.Op != BinaryAdd {
		t.Errorf("x += 2 = %+v", assign)
	}
	if ifs := stmts[5].(*IfStmt); ifs.Else == nil {
		t.Error("if statement lost its else branch")
	}
	loop := stmts[8].(*ForStmt)
	if loop.Init != nil || loop.Condition != nil || loop.Post != nil {
		t.Errorf("for(;;) clauses = %+v", loop)
	}
}

func TestParserSpans(t *testing.T) {
	src := "int x = 1 + 2;"
	prog := parseOK(t, src)
	decl := prog.Body.Statements[0].(*VarDecl)
	if decl.Span().Start != 0 || decl.Span().End() != len(src) {
		t.Errorf("decl span = %d..%d, want 0..%d", decl.Span().Start, decl.Span().End(), len(src))
	}
	bin := decl.Value.(*BinaryExpr)
	if got := src[bin.Span().Start:bin.Span().End()]; got != "1 + 2" {
		t.Errorf("binary span covers %q", got)
	}
}

func TestParserRecoversAndReportsMultipleErrors(t *testing.T) {
	src := `
int x = ;
x = 1 +;
int y = 3;
if x < 2 { }
y = y * 2;
`
	prog, diags := Parse(src)
	if diags.Len() != 3 {
		t.Fatalf("got %d diagnostics, want 3:\n%s", diags.Len(), diags)
	}
	for _, d := range diags.Diagnostics() {
		if d.Kind.String() != "syntax" {
			t.Errorf("kind = %s, want syntax", d.Kind)
		}
	}

	// the well-formed statements survive
	var names []string
	for _, s := range prog.Body.Statements {
		switch s := s.(type) {
		case *VarDecl:
			names = append(names, s.Name)
		case *AssignStmt:
			names = append(names, s.Name)
		}
	}
	if strings.Join(names, ",") != "y,y" {
		t.Errorf("surviving statements = %v, want [y y]", names)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"x = 1", "expected ;"},
		{"{ x = 1;", "unterminated block"},
		{"}", "unexpected '}'"},
		{"int = 3;", "expected variable name"},
		{"if (1) { func f() {} }", "must be declared at top level"},
		{"extern func f() = foo;", "expected external function address"},
		{"func (int a) {}", "expected function name"},
		{"x = (int 3;", "expected )"},
		{"f(1 2);", "expected ,"},
		{";", "empty statement"},
		{"while (1) int z = 1;", "declaration is not allowed"},
	}

	for _, tc := range tests {
		_, diags := Parse(tc.src)
		if diags.Empty() {
			t.Errorf("%q: expected a diagnostic", tc.src)
			continue
		}
		if msg := diags.Diagnostics()[0].Message; !strings.Contains(msg, tc.msg) {
			t.Errorf("%q: first message = %q, want substring %q", tc.src, msg, tc.msg)
		}
	}
}

func TestParserLexicalErrorsAreReported(t *testing.T) {
	_, diags := Parse("int x = 1 @ 2;")
	if diags.Len() == 0 {
		t.Fatal("expected diagnostics")
	}
	if diags.Diagnostics()[0].Kind.String() != "lexical" {
		t.Errorf("first kind = %s, want lexical", diags.Diagnostics()[0].Kind)
	}
}

func TestFormat(t *testing.T) {
	prog := parseOK(t, "func f(int a) -> int { return -a; }\nint x = f(2) > 1 ? 3 : 4;")
	got := FormatProgram(prog)
	want := `Block
  Func f(int a) -> int
    Block
      Return
        Unary -
          Ident a
  VarDecl int x
    Ternary
      Binary >
        Call f
          Int 2
        Int 1
      Int 3
      Int 4
`
	if got != want {
		t.Errorf("Format:\n%s\nwant:\n%s", got, want)
	}
}
