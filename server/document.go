package server

import (
	"fmt"
	"sort"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/flexscript/compiler"
	"github.com/chazu/flexscript/diag"
	"github.com/chazu/flexscript/vm"
)

// symbolKind classifies a declaration found in a document.
type symbolKind int

const (
	symbolVariable symbolKind = iota
	symbolParam
	symbolFunction
	symbolExtern
)

// symbol is one declaration. Function is the enclosing function name, or ""
// at top level.
type symbol struct {
	Name     string
	Kind     symbolKind
	Detail   string
	Function string
	Span     diag.Span
	Body     diag.Span // whole function for functions and externs
}

// Register returns the register variable name the compiler gives the
// symbol.
func (s symbol) Register() string {
	if s.Function == "" {
		return s.Name
	}
	return s.Function + "." + s.Name
}

// document is an analyzed open text document.
type document struct {
	text    string
	index   *diag.LineIndex
	program *vm.Program
	diags   *diag.Container
	symbols []symbol
}

// analyze compiles text and collects its declarations. Symbols are
// collected even when compilation fails past parsing.
func analyze(text string) *document {
	d := &document{text: text, index: diag.NewLineIndex(text)}
	d.program, d.diags = vm.Compile(text)

	ast, _ := compiler.Parse(text)
	if ast != nil && ast.Body != nil {
		d.collect(ast.Body.Statements, "")
	}
	sort.SliceStable(d.symbols, func(i, j int) bool {
		return d.symbols[i].Span.Start < d.symbols[j].Span.Start
	})
	return d
}

func (d *document) collect(stmts []compiler.Stmt, fn string) {
	for _, s := range stmts {
		d.collectStmt(s, fn)
	}
}

func (d *document) collectStmt(s compiler.Stmt, fn string) {
	switch n := s.(type) {
	case *compiler.VarDecl:
		d.symbols = append(d.symbols, symbol{
			Name: n.Name, Kind: symbolVariable, Detail: n.Type.String(),
			Function: fn, Span: n.SpanVal,
		})
	case *compiler.FuncDecl:
		d.symbols = append(d.symbols, symbol{
			Name: n.Name, Kind: symbolFunction, Detail: signature(n.Params, n.Returns),
			Span: n.SpanVal, Body: n.SpanVal,
		})
		for _, p := range n.Params {
			d.symbols = append(d.symbols, symbol{
				Name: p.Name, Kind: symbolParam, Detail: p.Type.String(),
				Function: n.Name, Span: p.SpanVal,
			})
		}
		if n.Body != nil {
			d.collect(n.Body.Statements, n.Name)
		}
	case *compiler.ExternDecl:
		d.symbols = append(d.symbols, symbol{
			Name: n.Name, Kind: symbolExtern,
			Detail: fmt.Sprintf("%s = 0x%X", signature(n.Params, n.Returns), uint32(n.Address)),
			Span:   n.SpanVal, Body: n.SpanVal,
		})
	case *compiler.BlockStmt:
		d.collect(n.Statements, fn)
	case *compiler.IfStmt:
		d.collectStmt(n.Then, fn)
		d.collectStmt(n.Else, fn)
	case *compiler.WhileStmt:
		d.collectStmt(n.Body, fn)
	case *compiler.ForStmt:
		d.collectStmt(n.Init, fn)
		d.collectStmt(n.Body, fn)
	}
}

func signature(params []compiler.Param, ret compiler.TypeName) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Type.String() + " " + p.Name
	}
	sig := "(" + strings.Join(parts, ", ") + ")"
	if ret != compiler.TypeVoid {
		sig += " -> " + ret.String()
	}
	return sig
}

// offset converts an LSP position to a byte offset, clamped to the text.
func (d *document) offset(pos protocol.Position) int {
	start := d.index.LineStart(int(pos.Line) + 1)
	if start < 0 {
		return len(d.text)
	}
	return min(start+int(pos.Character), len(d.text))
}

// position converts a byte offset to an LSP position.
func (d *document) position(offset int) protocol.Position {
	line, col := d.index.Position(offset)
	return protocol.Position{Line: protocol.UInteger(line - 1), Character: protocol.UInteger(col - 1)}
}

func (d *document) rangeOf(s diag.Span) protocol.Range {
	if s.IsGenerated() {
		return protocol.Range{}
	}
	return protocol.Range{Start: d.position(s.Start), End: d.position(s.End())}
}

// functionAt returns the name of the function enclosing offset, or "".
func (d *document) functionAt(offset int) string {
	for _, s := range d.symbols {
		if s.Kind == symbolFunction && offset >= s.Body.Start && offset < s.Body.End() {
			return s.Name
		}
	}
	return ""
}

// lookup resolves name as seen from offset: a local of the enclosing
// function first, then top-level names.
func (d *document) lookup(name string, offset int) (symbol, bool) {
	fn := d.functionAt(offset)
	var global *symbol
	for i, s := range d.symbols {
		if s.Name != name {
			continue
		}
		if fn != "" && s.Function == fn {
			return s, true
		}
		if s.Function == "" && global == nil {
			global = &d.symbols[i]
		}
	}
	if global != nil {
		return *global, true
	}
	return symbol{}, false
}

// diagnostics converts compile diagnostics to LSP form.
func (d *document) diagnostics() []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := lspName
	for _, dg := range d.diags.Diagnostics() {
		severity := protocol.DiagnosticSeverityError
		if dg.Severity == diag.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		r := d.rangeOf(dg.Span)
		if dg.Span.Length == 0 {
			r.End.Character++
		}
		out = append(out, protocol.Diagnostic{
			Range:    r,
			Severity: &severity,
			Source:   &source,
			Message:  fmt.Sprintf("%s: %s", dg.Kind, dg.Message),
		})
	}
	return out
}

// lineListing returns the compiled instructions originating on the 1-based
// source line.
func (d *document) lineListing(line int) []string {
	if d.program == nil || !d.diags.Empty() {
		return nil
	}
	var out []string
	for i, o := range d.program.Origins {
		if !o.IsGenerated() && o.Line == line && i < len(d.program.Instructions) {
			out = append(out, fmt.Sprintf("%04d  %s", i, d.program.Instructions[i]))
		}
	}
	return out
}

// hover describes the word under pos and the instructions compiled from its
// line.
func (d *document) hover(pos protocol.Position) *protocol.Hover {
	var b strings.Builder

	offset := d.offset(pos)
	if word := extractWord(d.text, pos); word != "" {
		if s, ok := d.lookup(word, offset); ok {
			switch s.Kind {
			case symbolFunction:
				fmt.Fprintf(&b, "**func %s**%s\n\n", s.Name, s.Detail)
			case symbolExtern:
				fmt.Fprintf(&b, "**extern func %s**%s\n\n", s.Name, s.Detail)
			default:
				fmt.Fprintf(&b, "**%s %s**", s.Detail, s.Name)
				if d.program != nil && d.diags.Empty() {
					if r, ok := d.program.Registers[s.Register()]; ok {
						fmt.Fprintf(&b, " in `r%d`", r)
					}
				}
				b.WriteString("\n\n")
			}
		}
	}

	if listing := d.lineListing(int(pos.Line) + 1); len(listing) > 0 {
		b.WriteString("```\n")
		b.WriteString(strings.Join(listing, "\n"))
		b.WriteString("\n```\n")
	}

	if b.Len() == 0 {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

var keywords = []string{
	"int", "float", "func", "extern", "return", "if", "else", "while", "for",
	"break", "continue", "yield", "true", "false",
}

// complete returns keywords and names visible at pos starting with prefix.
func (d *document) complete(pos protocol.Position, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := map[string]bool{}
	fn := d.functionAt(d.offset(pos))

	for _, s := range d.symbols {
		if !strings.HasPrefix(s.Name, prefix) || seen[s.Name] {
			continue
		}
		if s.Function != "" && s.Function != fn {
			continue
		}
		seen[s.Name] = true
		kind := protocol.CompletionItemKindVariable
		if s.Kind == symbolFunction || s.Kind == symbolExtern {
			kind = protocol.CompletionItemKindFunction
		}
		detail := s.Detail
		name := s.Name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) && !seen[kw] {
			kind := protocol.CompletionItemKindKeyword
			name := kw
			items = append(items, protocol.CompletionItem{Label: name, Kind: &kind, InsertText: &name})
		}
	}
	return items
}

// documentSymbols lists top-level declarations with function locals as
// children.
func (d *document) documentSymbols() []protocol.DocumentSymbol {
	out := []protocol.DocumentSymbol{}
	byFunc := map[string]int{}
	for _, s := range d.symbols {
		detail := s.Detail
		ds := protocol.DocumentSymbol{
			Name:           s.Name,
			Detail:         &detail,
			Kind:           protocol.SymbolKindVariable,
			Range:          d.rangeOf(s.Span),
			SelectionRange: d.rangeOf(s.Span),
		}
		switch s.Kind {
		case symbolFunction, symbolExtern:
			ds.Kind = protocol.SymbolKindFunction
			if s.Kind == symbolFunction {
				byFunc[s.Name] = len(out)
			}
		}
		if s.Function != "" {
			if i, ok := byFunc[s.Function]; ok {
				out[i].Children = append(out[i].Children, ds)
				continue
			}
		}
		out = append(out, ds)
	}
	return out
}

// definition locates the declaration of the name under pos.
func (d *document) definition(uri protocol.DocumentUri, pos protocol.Position) []protocol.Location {
	word := extractWord(d.text, pos)
	if word == "" {
		return nil
	}
	s, ok := d.lookup(word, d.offset(pos))
	if !ok {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: d.rangeOf(s.Span)}}
}
