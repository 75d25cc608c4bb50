package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/flexscript/diag"
	"github.com/chazu/flexscript/host"
	"github.com/chazu/flexscript/vm"
)

const (
	historyFile = ".flex_history"
	promptMain  = "flex> "
	promptCont  = "  ... "
)

// maxResumes bounds how often one input may yield.
const maxResumes = 1000

const replHelp = `REPL commands:
  :quit    Exit the REPL
  :decls   Show the functions and externs declared so far
  :asm     Show the listing of the last evaluated input
  :reset   Forget every declaration
Declarations (func, extern) persist between inputs. Variables do not.
An input without a trailing ';' or '}' is evaluated as an expression.
`

// session holds the declarations that persist across REPL inputs.
type session struct {
	decls string
	last  *vm.Program
	cfg   vm.Config
	out   io.Writer
}

func newSession(cfg vm.Config, out io.Writer) *session {
	return &session{decls: host.Prelude, cfg: cfg, out: out}
}

func isDeclaration(input string) bool {
	t := strings.TrimSpace(input)
	return strings.HasPrefix(t, "func ") || strings.HasPrefix(t, "extern ")
}

// wrap turns a bare expression into a return statement.
func wrap(input string) string {
	t := strings.TrimSpace(input)
	if strings.HasSuffix(t, ";") || strings.HasSuffix(t, "}") {
		return t
	}
	return "return " + t + ";"
}

// eval compiles input after the session declarations and runs it. It
// returns the text to show for the input.
func (s *session) eval(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}

	if isDeclaration(input) {
		src := s.decls + input + "\n"
		if _, diags := vm.Compile(src); !diags.Empty() {
			return "", diagnosticsError(diags.Diagnostics(), s.decls)
		}
		s.decls = src
		return "ok", nil
	}

	v := vm.NewVMWithConfig(s.cfg)
	if !v.CompileSource(s.decls + wrap(input) + "\n") {
		return "", diagnosticsError(v.CompileDiagnostics().Diagnostics(), s.decls)
	}
	s.last = v.Program()
	if err := host.Install(v, s.out); err != nil {
		return "", err
	}
	v.Execute(false)
	for n := 0; v.IsSuspended() && n < maxResumes; n++ {
		v.Execute(false)
	}
	if v.IsSuspended() {
		return "", fmt.Errorf("still suspended after %d resumes", maxResumes)
	}
	if d := v.RuntimeDiagnostics(); !d.Empty() {
		return "", diagnosticsError(d.Diagnostics(), s.decls)
	}
	if r := v.Result(); r.Type != vm.TypeNone {
		return r.String(), nil
	}
	return "", nil
}

// diagnosticsError reports diagnostics with lines counted from the start of
// the input rather than the session prelude.
func diagnosticsError(diags []diag.Diagnostic, prelude string) error {
	offset := strings.Count(prelude, "\n")
	lines := make([]string, len(diags))
	for i, d := range diags {
		pos := ""
		if d.Span.IsResolved() && d.Span.Line > offset {
			pos = fmt.Sprintf("%d:%d: ", d.Span.Line-offset, d.Span.Column)
		}
		lines[i] = fmt.Sprintf("%s%s: %s", pos, d.Kind, d.Message)
	}
	return errors.New(strings.Join(lines, "\n"))
}

// command runs a ':' command. It reports whether the REPL should exit.
func (s *session) command(cmd string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case ":quit", ":q":
		return "", true
	case ":help", ":h", ":?":
		return replHelp, false
	case ":decls":
		return strings.TrimRight(s.decls, "\n"), false
	case ":asm":
		if s.last == nil {
			return "nothing evaluated yet", false
		}
		return strings.TrimRight(s.last.Disassemble(), "\n"), false
	case ":reset":
		s.decls = host.Prelude
		s.last = nil
		return "declarations cleared", false
	}
	return "unknown command. Type :help for help.", false
}

// depth returns the count of unclosed braces and parentheses in src,
// ignoring comments and char literals.
func depth(src string) int {
	n := 0
	for i := 0; i < len(src); i++ {
		switch c := src[i]; {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return n + 1 // unterminated comment keeps reading
			}
			i += end + 3
		case c == '\'':
			for i++; i < len(src) && src[i] != '\'' && src[i] != '\n'; i++ {
				if src[i] == '\\' {
					i++
				}
			}
		case c == '{' || c == '(':
			n++
		case c == '}' || c == ')':
			n--
		}
	}
	return n
}

// readInput reads lines until braces and parentheses balance.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if depth(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

func cmdRepl(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", -1, "log verbosity 0-5")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	m, err := project("")
	if err != nil {
		fmt.Fprintf(stderr, "repl: %v\n", err)
		return 1
	}
	configureLogging(m, *verbosity)

	fmt.Fprintln(stdout, "flexscript REPL. Ctrl+C cancels input, Ctrl+D exits. Type :help for help.")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s := newSession(m.VMConfig(), stdout)
	for {
		input, ok := readInput(ln)
		if !ok {
			fmt.Fprintln(stdout)
			return 0
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))

		if strings.HasPrefix(strings.TrimSpace(input), ":") {
			text, quit := s.command(input)
			if quit {
				return 0
			}
			fmt.Fprintln(stdout, text)
			continue
		}

		text, err := s.eval(input)
		if err != nil {
			fmt.Fprintln(stderr, err)
			continue
		}
		if text != "" {
			fmt.Fprintln(stdout, text)
		}
	}
}
