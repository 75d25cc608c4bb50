package diag

import (
	"fmt"
	"strings"
)

// Severity ranks a diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", s)
	}
}

// Kind says which stage produced a diagnostic.
type Kind uint8

const (
	KindLexical Kind = iota
	KindSyntactic
	KindSemantic
	KindRuntime
)

var kindNames = map[Kind]string{
	KindLexical:   "lexical",
	KindSyntactic: "syntax",
	KindSemantic:  "semantic",
	KindRuntime:   "runtime",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Diagnostic is one error or warning attached to a span.
type Diagnostic struct {
	Span     Span
	Severity Severity
	Kind     Kind
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s %s: %s", d.Span, d.Kind, d.Severity, d.Message)
}

// Container accumulates diagnostics for one stage (or a merged pipeline).
// The zero value is ready to use.
type Container struct {
	diagnostics []Diagnostic
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{}
}

// Add records an error.
func (c *Container) Add(span Span, kind Kind, message string) {
	c.diagnostics = append(c.diagnostics, Diagnostic{Span: span, Severity: SeverityError, Kind: kind, Message: message})
}

// Addf records a formatted error.
func (c *Container) Addf(span Span, kind Kind, format string, args ...any) {
	c.Add(span, kind, fmt.Sprintf(format, args...))
}

// Warnf records a formatted warning.
func (c *Container) Warnf(span Span, kind Kind, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Span:     span,
		Severity: SeverityWarning,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns the recorded entries in insertion order.
func (c *Container) Diagnostics() []Diagnostic {
	if c == nil {
		return nil
	}
	return c.diagnostics
}

// Len returns the number of recorded entries.
func (c *Container) Len() int {
	if c == nil {
		return 0
	}
	return len(c.diagnostics)
}

// Empty reports whether nothing has been recorded.
func (c *Container) Empty() bool {
	return c.Len() == 0
}

// HasErrors reports whether any entry has error severity.
func (c *Container) HasErrors() bool {
	for _, d := range c.Diagnostics() {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Clear drops all entries.
func (c *Container) Clear() {
	c.diagnostics = c.diagnostics[:0]
}

// Merge appends every entry of other.
func (c *Container) Merge(other *Container) {
	if other == nil || other == c {
		return
	}
	c.diagnostics = append(c.diagnostics, other.diagnostics...)
}

// Resolve computes line and column for every entry from source.
func (c *Container) Resolve(source string) {
	if c.Len() == 0 {
		return
	}
	c.ResolveWith(NewLineIndex(source))
}

// ResolveWith computes line and column for every entry from an existing index.
func (c *Container) ResolveWith(idx *LineIndex) {
	for i := range c.diagnostics {
		c.diagnostics[i].Span.Resolve(idx)
	}
}

func (c *Container) String() string {
	var sb strings.Builder
	for _, d := range c.Diagnostics() {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Err returns nil when the container holds no errors, otherwise an error
// listing every entry.
func (c *Container) Err() error {
	if !c.HasErrors() {
		return nil
	}
	return &Error{Diagnostics: append([]Diagnostic(nil), c.diagnostics...)}
}

// Error adapts a set of diagnostics to the error interface.
type Error struct {
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	if len(e.Diagnostics) == 1 {
		return e.Diagnostics[0].String()
	}
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.String()
	}
	return fmt.Sprintf("%d diagnostics:\n%s", len(e.Diagnostics), strings.Join(lines, "\n"))
}
