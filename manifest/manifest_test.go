package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/flexscript/vm"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "arena"
version = "0.1.0"

[script]
entry = "scripts/wave.flex"

[vm]
max-steps = 5000
memory-words = 256
trace = true

[cache]
path = "/tmp/arena-cache.db"
enabled = false

[log]
verbosity = 2
file = "logs/flex.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "arena" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if got, want := m.EntryPath(), filepath.Join(m.Dir, "scripts", "wave.flex"); got != want {
		t.Errorf("EntryPath = %q, want %q", got, want)
	}
	cfg := m.VMConfig()
	if cfg != (vm.Config{MaxSteps: 5000, MemoryWords: 256, Trace: true}) {
		t.Errorf("VMConfig = %+v", cfg)
	}
	if m.CacheEnabled() {
		t.Error("cache enabled = true, want false")
	}
	if m.CachePath() != "/tmp/arena-cache.db" {
		t.Errorf("CachePath = %q", m.CachePath())
	}
	if m.Log.Verbosity != 2 || m.LogFile() != filepath.Join(m.Dir, "logs", "flex.log") {
		t.Errorf("log = %+v, file %q", m.Log, m.LogFile())
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Script.Entry != "main.flex" {
		t.Errorf("default entry = %q, want main.flex", m.Script.Entry)
	}
	if m.VMConfig() != vm.DefaultConfig() {
		t.Errorf("VMConfig = %+v, want defaults", m.VMConfig())
	}
	if !m.CacheEnabled() {
		t.Error("cache should be enabled by default")
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, ".flexscript", "cache.db"); got != want {
		t.Errorf("CachePath = %q, want %q", got, want)
	}
	if m.LogFile() != "" {
		t.Errorf("LogFile = %q, want stderr", m.LogFile())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", "parse error"},
		{"unknown key", "[vm]\nmax-stepz = 3\n", "unknown key"},
		{"negative limit", "[vm]\nmemory-words = -1\n", "must not be negative"},
		{"wrong type", "[vm]\ntrace = \"yes\"\n", "parse error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[project]\nname = \"found-project\"\n")

	// found from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no flexscript.toml exists")
	}
}

func TestDefault(t *testing.T) {
	m := Default("/app")
	if m.EntryPath() != "/app/main.flex" {
		t.Errorf("EntryPath = %q", m.EntryPath())
	}
	if m.VMConfig() != vm.DefaultConfig() {
		t.Errorf("VMConfig = %+v", m.VMConfig())
	}
}
