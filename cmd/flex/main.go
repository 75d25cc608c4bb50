// flex is the flexscript command line: it runs, compiles, inspects and
// serves scripts.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/flexscript/cache"
	"github.com/chazu/flexscript/diag"
	"github.com/chazu/flexscript/host"
	"github.com/chazu/flexscript/image"
	"github.com/chazu/flexscript/manifest"
	"github.com/chazu/flexscript/server"
	"github.com/chazu/flexscript/vm"

	_ "github.com/tliron/commonlog/simple"
)

const (
	appName   = "flex"
	imageExt  = ".fxb"
	sourceExt = ".flex"
)

var log = commonlog.GetLogger("flexscript.cli")

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func dispatch(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	rest := args[1:]
	switch args[0] {
	case "run":
		return cmdRun(rest, stdout, stderr)
	case "build":
		return cmdBuild(rest, stdout, stderr)
	case "check":
		return cmdCheck(rest, stdout, stderr)
	case "dump":
		return cmdDump(rest, stdout, stderr)
	case "repl":
		return cmdRepl(rest, stdout, stderr)
	case "lsp":
		return cmdLSP(rest, stderr)
	case "externs":
		fmt.Fprint(stdout, host.Prelude)
		return 0
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "%s: unknown command %q\n\n", appName, args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: %s <command> [options] [file]

Commands:
  run      Compile (or load a %s image) and run a script
  build    Compile a script to a %s image
  check    Report diagnostics for scripts without running them
  dump     Print the AST, IR, block listing or flat listing of a script
  repl     Start an interactive session
  lsp      Start the language server on stdio
  externs  Print the extern declarations of the host library

Without a file, run/build/dump use the entry script named in %s.
`, appName, imageExt, imageExt, manifest.FileName)
}

// project loads the manifest governing path, falling back to defaults
// rooted at the script's directory.
func project(path string) (*manifest.Manifest, error) {
	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		m = manifest.Default(abs)
	}
	return m, nil
}

// scriptArg returns the single file argument, or the manifest entry when
// none is given.
func scriptArg(args []string) (string, *manifest.Manifest, error) {
	switch len(args) {
	case 0:
		m, err := project("")
		if err != nil {
			return "", nil, err
		}
		return m.EntryPath(), m, nil
	case 1:
		m, err := project(args[0])
		if err != nil {
			return "", nil, err
		}
		return args[0], m, nil
	default:
		return "", nil, fmt.Errorf("expected one script, got %d", len(args))
	}
}

// configureLogging applies a -v flag, or the manifest [log] section when
// the flag is negative.
func configureLogging(m *manifest.Manifest, verbosity int) {
	path := m.LogFile()
	if verbosity < 0 {
		verbosity = m.Log.Verbosity
	}
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

// loadProgram returns the runnable program for path: a decoded image, a
// cached compilation or a fresh one. Diagnostics are written to stderr.
func loadProgram(m *manifest.Manifest, path string, useCache bool, stderr io.Writer) (*vm.Program, error) {
	if strings.HasSuffix(path, imageExt) {
		img, err := image.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return img.Program(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	source := string(data)

	if useCache && m.CacheEnabled() {
		prog, err := compileCached(m.CachePath(), source)
		if err == nil {
			return prog, nil
		}
		var derr *diag.Error
		if errors.As(err, &derr) {
			printDiagnostics(stderr, path, derr.Diagnostics)
			return nil, errCompile
		}
		log.Warningf("cache unavailable, compiling directly: %s", err)
	}

	prog, diags := vm.Compile(source)
	if !diags.Empty() {
		printDiagnostics(stderr, path, diags.Diagnostics())
		return nil, errCompile
	}
	return prog, nil
}

var errCompile = errors.New("compilation failed")

func compileCached(dbPath, source string) (*vm.Program, error) {
	c, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	prog, hit, err := c.Compile(source)
	if err != nil {
		return nil, err
	}
	log.Debugf("cache %s: hit=%t", dbPath, hit)
	return prog, nil
}

func printDiagnostics(w io.Writer, path string, diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%s\n", path, d)
	}
}

func cmdLSP(args []string, stderr io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(stderr, "%s lsp takes no arguments\n", appName)
		return 2
	}
	if err := server.NewLSP(vm.NewVM()).Run(); err != nil {
		fmt.Fprintf(stderr, "lsp: %v\n", err)
		return 1
	}
	return 0
}
