package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/flexscript/host"
	"github.com/chazu/flexscript/image"
	"github.com/chazu/flexscript/vm"
)

func cmdRun(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", -1, "log verbosity 0-5 (default: manifest [log] verbosity)")
	noCache := fs.Bool("no-cache", false, "compile without the program cache")
	trace := fs.Bool("trace", false, "log every executed instruction")
	maxSteps := fs.Int("steps", 0, "step limit per resume (default: manifest [vm] max-steps)")
	resumes := fs.Int("resumes", 1000, "times to resume a script that yields")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path, m, err := scriptArg(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 2
	}
	configureLogging(m, *verbosity)

	prog, err := loadProgram(m, path, !*noCache, stderr)
	if err != nil {
		if !errors.Is(err, errCompile) {
			fmt.Fprintf(stderr, "run: %v\n", err)
		}
		return 1
	}

	cfg := m.VMConfig()
	if *trace {
		cfg.Trace = true
	}
	if *maxSteps > 0 {
		cfg.MaxSteps = *maxSteps
	}
	v := vm.NewVMWithConfig(cfg)
	v.LoadProgram(prog)
	if err := host.Install(v, stdout); err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	v.Execute(false)
	for n := 0; v.IsSuspended() && n < *resumes; n++ {
		v.Execute(false)
	}

	if d := v.RuntimeDiagnostics(); !d.Empty() {
		printDiagnostics(stderr, path, d.Diagnostics())
		return 1
	}
	if v.IsSuspended() {
		fmt.Fprintf(stderr, "run: %s still suspended after %d resumes\n", path, *resumes)
		return 1
	}
	if r := v.Result(); r.Type != vm.TypeNone {
		fmt.Fprintln(stdout, r)
	}
	return 0
}

func cmdBuild(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "output image path (default: script name with "+imageExt+")")
	verbosity := fs.Int("v", -1, "log verbosity 0-5")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path, m, err := scriptArg(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "build: %v\n", err)
		return 2
	}
	configureLogging(m, *verbosity)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "build: %v\n", err)
		return 1
	}
	source := string(data)
	prog, diags := vm.Compile(source)
	if !diags.Empty() {
		printDiagnostics(stderr, path, diags.Diagnostics())
		return 1
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(path, sourceExt) + imageExt
	}
	img := image.New(prog, source)
	if err := image.WriteFile(out, img); err != nil {
		fmt.Fprintf(stderr, "build: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s (%d instructions, build %s)\n", out, len(img.Instructions), img.BuildID)
	return 0
}

func cmdCheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	paths := fs.Args()
	if len(paths) == 0 {
		path, _, err := scriptArg(nil)
		if err != nil {
			fmt.Fprintf(stderr, "check: %v\n", err)
			return 2
		}
		paths = []string{path}
	}

	failed := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "check: %v\n", err)
			failed++
			continue
		}
		_, diags := vm.Compile(string(data))
		if !diags.Empty() {
			printDiagnostics(stdout, path, diags.Diagnostics())
			failed++
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

var dumpStages = []string{"ast", "ir", "blocks", "asm"}

func cmdDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	stage := fs.String("stage", "asm", "what to print: "+strings.Join(dumpStages, ", ")+" or all")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path, _, err := scriptArg(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "dump: %v\n", err)
		return 2
	}

	var prog *vm.Program
	if strings.HasSuffix(path, imageExt) {
		img, err := image.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "dump: %v\n", err)
			return 1
		}
		prog = img.Program()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "dump: %v\n", err)
			return 1
		}
		p, diags := vm.Compile(string(data))
		if !diags.Empty() {
			printDiagnostics(stderr, path, diags.Diagnostics())
		}
		prog = p
	}

	sections := map[string]string{
		"ast":    prog.AST,
		"ir":     prog.IR,
		"blocks": prog.Blocks,
		"asm":    prog.Disassemble(),
	}
	selected := []string{*stage}
	if *stage == "all" {
		selected = dumpStages
	}
	for _, name := range selected {
		text, ok := sections[name]
		if !ok {
			fmt.Fprintf(stderr, "dump: unknown stage %q\n", name)
			return 2
		}
		if len(selected) > 1 {
			fmt.Fprintf(stdout, "== %s ==\n", name)
		}
		fmt.Fprint(stdout, text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(stdout)
		}
	}
	return 0
}
