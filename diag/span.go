// Package diag holds source spans and the diagnostic records shared by the
// lexer, parser, IR builder, code generator and virtual machine.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Span is a byte range [Start, Start+Length) into the source text, or a
// marker for compiler-generated code with no source origin.
//
// Line and Column are 1-based and stay zero until the span is resolved
// against a LineIndex.
type Span struct {
	Start     int
	Length    int
	Generated bool

	Line   int
	Column int
}

// NewSpan returns a span covering length bytes starting at start.
func NewSpan(start, length int) Span {
	if length < 0 {
		length = 0
	}
	return Span{Start: start, Length: length}
}

// GeneratedSpan returns the marker span for code with no source origin.
func GeneratedSpan() Span {
	return Span{Generated: true}
}

// IsGenerated reports whether the span has no source origin.
func (s Span) IsGenerated() bool {
	return s.Generated
}

// End returns the exclusive end offset.
func (s Span) End() int {
	return s.Start + s.Length
}

// IsResolved reports whether line and column have been computed.
func (s Span) IsResolved() bool {
	return s.Line > 0
}

// Cover returns the smallest span containing both s and o. A generated span
// contributes nothing.
func (s Span) Cover(o Span) Span {
	if s.Generated {
		return o
	}
	if o.Generated {
		return s
	}
	start := min(s.Start, o.Start)
	end := max(s.End(), o.End())
	out := Span{Start: start, Length: end - start}
	if s.Start <= o.Start {
		out.Line, out.Column = s.Line, s.Column
	} else {
		out.Line, out.Column = o.Line, o.Column
	}
	return out
}

// Resolve fills in Line and Column from idx. Generated spans are left alone.
func (s *Span) Resolve(idx *LineIndex) {
	if s.Generated || idx == nil {
		return
	}
	s.Line, s.Column = idx.Position(s.Start)
}

func (s Span) String() string {
	if s.Generated {
		return "<generated>"
	}
	if s.IsResolved() {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("@%d+%d", s.Start, s.Length)
}

// LineIndex maps byte offsets to line/column pairs. It is built once from the
// source split on '\n'.
type LineIndex struct {
	starts []int // byte offset of each line start
	size   int
}

// NewLineIndex splits source into lines and records where each one starts.
func NewLineIndex(source string) *LineIndex {
	lines := strings.Split(source, "\n")
	idx := &LineIndex{starts: make([]int, 0, len(lines)), size: len(source)}
	offset := 0
	for _, line := range lines {
		idx.starts = append(idx.starts, offset)
		offset += len(line) + 1
	}
	return idx
}

// LineCount returns the number of lines in the indexed source.
func (idx *LineIndex) LineCount() int {
	return len(idx.starts)
}

// Position returns the 1-based line and column of offset. Offsets past the
// end clamp to the last position.
func (idx *LineIndex) Position(offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	if offset > idx.size {
		offset = idx.size
	}
	i := sort.Search(len(idx.starts), func(i int) bool { return idx.starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - idx.starts[i] + 1
}

// LineStart returns the byte offset where the 1-based line begins.
func (idx *LineIndex) LineStart(line int) int {
	if line < 1 || line > len(idx.starts) {
		return -1
	}
	return idx.starts[line-1]
}
