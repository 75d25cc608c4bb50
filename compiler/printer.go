package compiler

import (
	"fmt"
	"strings"
)

// Format renders an AST as an indented tree, one node per line. It is the
// AST dump shown by debuggers and `flex dump -ast`.
func Format(n Node) string {
	var sb strings.Builder
	writeNode(&sb, n, 0)
	return sb.String()
}

// FormatProgram renders a program root.
func FormatProgram(p *Program) string {
	if p == nil || p.Body == nil {
		return ""
	}
	return Format(p.Body)
}

func writeLine(sb *strings.Builder, depth int, format string, args ...any) {
	sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(sb, format, args...)
	sb.WriteByte('\n')
}

func writeParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		if p.Name == "" {
			parts[i] = p.Type.String()
		} else {
			parts[i] = p.Type.String() + " " + p.Name
		}
	}
	return strings.Join(parts, ", ")
}

func writeNode(sb *strings.Builder, n Node, depth int) {
	switch n := n.(type) {
	case nil:
		writeLine(sb, depth, "<nil>")

	case *IntLiteral:
		writeLine(sb, depth, "Int %d", n.Value)
	case *FloatLiteral:
		writeLine(sb, depth, "Float %g", n.Value)
	case *Identifier:
		writeLine(sb, depth, "Ident %s", n.Name)
	case *UnaryExpr:
		writeLine(sb, depth, "Unary %s", n.Op)
		writeNode(sb, n.Operand, depth+1)
	case *BinaryExpr:
		writeLine(sb, depth, "Binary %s", n.Op)
		writeNode(sb, n.Left, depth+1)
		writeNode(sb, n.Right, depth+1)
	case *TernaryExpr:
		writeLine(sb, depth, "Ternary")
		writeNode(sb, n.Condition, depth+1)
		writeNode(sb, n.IfTrue, depth+1)
		writeNode(sb, n.IfFalse, depth+1)
	case *CallExpr:
		writeLine(sb, depth, "Call %s", n.Name)
		for _, a := range n.Args {
			writeNode(sb, a, depth+1)
		}
	case *CastExpr:
		writeLine(sb, depth, "Cast %s", n.To)
		writeNode(sb, n.Operand, depth+1)

	case *BlockStmt:
		writeLine(sb, depth, "Block")
		for _, s := range n.Statements {
			writeNode(sb, s, depth+1)
		}
	case *VarDecl:
		writeLine(sb, depth, "VarDecl %s %s", n.Type, n.Name)
		if n.Value != nil {
			writeNode(sb, n.Value, depth+1)
		}
	case *AssignStmt:
		if n.Compound {
			writeLine(sb, depth, "Assign %s %s=", n.Name, n.Op)
		} else {
			writeLine(sb, depth, "Assign %s", n.Name)
		}
		writeNode(sb, n.Value, depth+1)
	case *ExprStmt:
		writeLine(sb, depth, "ExprStmt")
		writeNode(sb, n.Expr, depth+1)
	case *IfStmt:
		writeLine(sb, depth, "If")
		writeNode(sb, n.Condition, depth+1)
		writeNode(sb, n.Then, depth+1)
		if n.Else != nil {
			writeLine(sb, depth, "Else")
			writeNode(sb, n.Else, depth+1)
		}
	case *WhileStmt:
		writeLine(sb, depth, "While")
		writeNode(sb, n.Condition, depth+1)
		writeNode(sb, n.Body, depth+1)
	case *ForStmt:
		writeLine(sb, depth, "For")
		for _, clause := range []Node{n.Init, n.Condition, n.Post} {
			if clause == nil {
				writeLine(sb, depth+1, "<empty>")
				continue
			}
			writeNode(sb, clause, depth+1)
		}
		writeNode(sb, n.Body, depth+1)
	case *ReturnStmt:
		writeLine(sb, depth, "Return")
		if n.Value != nil {
			writeNode(sb, n.Value, depth+1)
		}
	case *BreakStmt:
		writeLine(sb, depth, "Break")
	case *ContinueStmt:
		writeLine(sb, depth, "Continue")
	case *YieldStmt:
		writeLine(sb, depth, "Yield")
	case *FuncDecl:
		writeLine(sb, depth, "Func %s(%s) -> %s", n.Name, writeParams(n.Params), n.Returns)
		writeNode(sb, n.Body, depth+1)
	case *ExternDecl:
		writeLine(sb, depth, "Extern %s(%s) -> %s = 0x%X", n.Name, writeParams(n.Params), n.Returns, uint32(n.Address))

	default:
		writeLine(sb, depth, "%T", n)
	}
}
