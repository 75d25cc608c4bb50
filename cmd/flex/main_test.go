package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/flexscript/host"
)

const scoreScript = `extern func print_int(int v) = 0x10000;
func score(int hits, float mult) -> int {
	return (int)(hits * mult);
}
print_int(score(21, 2.0));
return 7;
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func flex(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = dispatch(args, strings.NewReader(""), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "score.flex", scoreScript)

	for i, label := range []string{"cold", "cached"} {
		code, out, errOut := flex("run", path)
		if code != 0 || out != "42\n7\n" {
			t.Errorf("%s run %d: code %d, stdout %q, stderr %q", label, i, code, out, errOut)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ".flexscript", "cache.db")); err != nil {
		t.Errorf("cache database not created: %v", err)
	}

	code, out, _ := flex("run", "-no-cache", path)
	if code != 0 || out != "42\n7\n" {
		t.Errorf("uncached run: code %d, stdout %q", code, out)
	}
}

func TestRunFailures(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		source string
		code   int
		stderr string
	}{
		{"syntax", "int x = ;\n", 1, "syntax"},
		{"semantic", "int x = y;\n", 1, "semantic"},
		{"division", "int z = 0;\nreturn 1 / z;\n", 1, "division by zero"},
		{"runaway", "while (1) { }\n", 1, "exceeded 100 steps"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.name+".flex", tc.source)
			code, _, errOut := flex("run", "-no-cache", "-steps", "100", path)
			if code != tc.code || !strings.Contains(errOut, tc.stderr) || !strings.HasPrefix(errOut, path+":") {
				t.Errorf("code %d, stderr %q", code, errOut)
			}
		})
	}

	if code, _, _ := flex("run", filepath.Join(dir, "missing.flex")); code != 1 {
		t.Errorf("missing file: code %d", code)
	}
	if code, _, _ := flex("run", "a.flex", "b.flex"); code != 2 {
		t.Errorf("two files: code %d", code)
	}
}

func TestRunResumesYields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "frames.flex", `
int frame = 0;
while (frame < 3) {
	frame += 1;
	yield;
}
return frame;
`)
	code, out, errOut := flex("run", "-no-cache", path)
	if code != 0 || out != "3\n" {
		t.Errorf("code %d, stdout %q, stderr %q", code, out, errOut)
	}

	code, _, errOut = flex("run", "-no-cache", "-resumes", "1", path)
	if code != 1 || !strings.Contains(errOut, "still suspended") {
		t.Errorf("limited resumes: code %d, stderr %q", code, errOut)
	}
}

func TestBuildAndRunImage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "score.flex", scoreScript)

	code, out, errOut := flex("build", path)
	if code != 0 || !strings.Contains(out, "score.fxb") {
		t.Fatalf("build: code %d, stdout %q, stderr %q", code, out, errOut)
	}
	code, out, errOut = flex("run", filepath.Join(dir, "score.fxb"))
	if code != 0 || out != "42\n7\n" {
		t.Errorf("run image: code %d, stdout %q, stderr %q", code, out, errOut)
	}

	custom := filepath.Join(dir, "custom.fxb")
	if code, _, _ := flex("build", "-o", custom, path); code != 0 {
		t.Fatalf("build -o: code %d", code)
	}
	code, out, _ = flex("dump", custom)
	if code != 0 || !strings.Contains(out, "CALL") {
		t.Errorf("dump image: code %d, stdout %q", code, out)
	}

	bad := writeFile(t, dir, "bad.flex", "int = 3;")
	if code, _, _ := flex("build", bad); code != 1 {
		t.Errorf("build bad: code %d", code)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.flex", "int a = 1;\n")
	bad := writeFile(t, dir, "bad.flex", "int a = 1;\nbreak;\n")

	if code, out, _ := flex("check", good); code != 0 || out != "" {
		t.Errorf("check good: code %d, stdout %q", code, out)
	}
	code, out, _ := flex("check", good, bad)
	if code != 1 {
		t.Errorf("check bad: code %d", code)
	}
	if !strings.HasPrefix(out, bad+":2:1:") || !strings.Contains(out, "break outside of a loop") {
		t.Errorf("check output = %q", out)
	}
}

func TestDump(t *testing.T) {
	path := writeFile(t, t.TempDir(), "score.flex", scoreScript)

	code, out, _ := flex("dump", "-stage", "all", path)
	if code != 0 {
		t.Fatalf("dump all: code %d", code)
	}
	for _, want := range []string{"== ast ==", "== ir ==", "== blocks ==", "== asm ==", "; registers:", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q", want)
		}
	}
	if code, _, _ := flex("dump", "-stage", "bytes", path); code != 2 {
		t.Errorf("unknown stage: code %d", code)
	}
}

func TestManifestEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flexscript.toml", `
[script]
entry = "game.flex"

[vm]
max-steps = 50

[cache]
enabled = false
`)
	writeFile(t, dir, "game.flex", "int i = 0;\nwhile (i < 1000) { i += 1; }\nreturn i;\n")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	code, _, errOut := flex("run")
	if code != 1 || !strings.Contains(errOut, "exceeded 50 steps") {
		t.Errorf("code %d, stderr %q", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, ".flexscript")); !os.IsNotExist(err) {
		t.Errorf("cache directory created while disabled: %v", err)
	}

	code, out, _ := flex("run", "-steps", "100000")
	if code != 0 || out != "1000\n" {
		t.Errorf("raised limit: code %d, stdout %q", code, out)
	}
}

func TestDispatch(t *testing.T) {
	if code, _, errOut := flex("frobnicate"); code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Errorf("unknown command: code %d, stderr %q", code, errOut)
	}
	if code, _, _ := flex(); code != 2 {
		t.Errorf("no command: code %d", code)
	}
	if code, out, _ := flex("help"); code != 0 || !strings.Contains(out, "Usage: flex") {
		t.Errorf("help: code %d", code)
	}
	if code, out, _ := flex("externs"); code != 0 || out != host.Prelude {
		t.Errorf("externs: code %d, stdout %q", code, out)
	}
	if code, _, _ := flex("lsp", "extra"); code != 2 {
		t.Errorf("lsp with args: code %d", code)
	}
}

func TestExamples(t *testing.T) {
	examples := filepath.Join("..", "..", "examples")

	code, out, errOut := flex("run", "-no-cache", filepath.Join(examples, "main.flex"))
	if code != 0 || out != "4\n5\n8\n17\n" {
		t.Errorf("main.flex: code %d, stdout %q, stderr %q", code, out, errOut)
	}

	code, out, errOut = flex("run", "-no-cache", filepath.Join(examples, "physics.flex"))
	if code != 0 || !strings.Contains(out, "\n") {
		t.Errorf("physics.flex: code %d, stdout %q, stderr %q", code, out, errOut)
	}

	files, err := filepath.Glob(filepath.Join(examples, "*.flex"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no examples found: %v", err)
	}
	if code, out, _ := flex(append([]string{"check"}, files...)...); code != 0 {
		t.Errorf("check examples: code %d\n%s", code, out)
	}
}
