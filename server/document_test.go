package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/flexscript/vm"
)

const testDocument = `extern func print_int(int v) = 0x10000;
func twice(int n) -> int {
	int d = n * 2;
	return d;
}
int total = twice(21);
print_int(total);
return total;
`

func newTestVM() *vm.VM { return vm.NewVM() }

func pos(line, char int) protocol.Position {
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)}
}

func TestAnalyze_Symbols(t *testing.T) {
	doc := analyze(testDocument)
	if !doc.diags.Empty() {
		t.Fatalf("diagnostics:\n%s", doc.diags)
	}

	var names []string
	for _, s := range doc.symbols {
		names = append(names, s.Register())
	}
	if got := strings.Join(names, " "); got != "print_int twice twice.n twice.d total" {
		t.Errorf("symbols = %s", got)
	}

	syms := doc.documentSymbols()
	if len(syms) != 3 {
		t.Fatalf("document symbols = %d, want 3", len(syms))
	}
	if syms[1].Name != "twice" || len(syms[1].Children) != 2 {
		t.Errorf("twice = %+v", syms[1])
	}
	if *syms[0].Detail != "(int v) = 0x10000" || *syms[1].Detail != "(int n) -> int" {
		t.Errorf("details = %q, %q", *syms[0].Detail, *syms[1].Detail)
	}
	if syms[2].Range.Start != pos(5, 0) {
		t.Errorf("total range = %+v", syms[2].Range)
	}
}

func TestAnalyze_Diagnostics(t *testing.T) {
	doc := analyze("int a = 1;\nint b = c + 1;\n")
	diags := doc.diagnostics()
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	d := diags[0]
	if d.Range.Start != pos(1, 8) || d.Range.End != pos(1, 9) {
		t.Errorf("range = %+v", d.Range)
	}
	if *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v", *d.Severity)
	}
	if !strings.Contains(d.Message, "before it is assigned") || !strings.HasPrefix(d.Message, "semantic") {
		t.Errorf("message = %q", d.Message)
	}

	syntax := analyze("int x = ;").diagnostics()
	if len(syntax) == 0 || syntax[0].Range.Start.Line != 0 {
		t.Errorf("syntax diagnostics = %+v", syntax)
	}
}

func TestDocument_Hover(t *testing.T) {
	doc := analyze(testDocument)

	h := doc.hover(pos(5, 6))
	if h == nil {
		t.Fatal("no hover for total")
	}
	value := h.Contents.(protocol.MarkupContent).Value
	for _, want := range []string{"**int total** in `r", "```", "CALL"} {
		if !strings.Contains(value, want) {
			t.Errorf("hover missing %q:\n%s", want, value)
		}
	}

	h = doc.hover(pos(2, 6))
	if h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "**int d**") {
		t.Errorf("hover for local d = %+v", h)
	}

	h = doc.hover(pos(6, 2))
	if h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "**extern func print_int**(int v) = 0x10000") {
		t.Errorf("hover for print_int = %+v", h)
	}

	// blank line past the end
	if h := doc.hover(pos(8, 0)); h != nil {
		t.Errorf("hover on empty line = %+v", h)
	}
}

func TestDocument_Definition(t *testing.T) {
	doc := analyze(testDocument)
	uri := protocol.DocumentUri("file:///tmp/t.flex")

	locs := doc.definition(uri, pos(5, 14))
	if len(locs) != 1 || locs[0].Range.Start != pos(1, 0) || locs[0].URI != uri {
		t.Errorf("definition of twice = %+v", locs)
	}
	// n inside twice resolves to the parameter
	locs = doc.definition(uri, pos(2, 9))
	if len(locs) != 1 || locs[0].Range.Start.Line != 1 {
		t.Errorf("definition of n = %+v", locs)
	}
	if locs := doc.definition(uri, pos(7, 0)); locs != nil {
		t.Errorf("definition of keyword = %+v", locs)
	}
}

func TestDocument_Complete(t *testing.T) {
	doc := analyze(testDocument)

	labels := func(items []protocol.CompletionItem) string {
		var out []string
		for _, it := range items {
			out = append(out, it.Label)
		}
		return strings.Join(out, " ")
	}

	if got := labels(doc.complete(pos(6, 2), "t")); got != "twice total true" {
		t.Errorf("complete(t) at top level = %q", got)
	}
	// locals are visible only inside their function
	if got := labels(doc.complete(pos(6, 0), "d")); got != "" {
		t.Errorf("complete(d) at top level = %q", got)
	}
	if got := labels(doc.complete(pos(3, 8), "d")); got != "d" {
		t.Errorf("complete(d) in twice = %q", got)
	}
	if got := labels(doc.complete(pos(0, 0), "ext")); got != "extern" {
		t.Errorf("complete(ext) = %q", got)
	}
}
