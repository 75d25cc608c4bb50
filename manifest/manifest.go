// Package manifest handles flexscript.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/flexscript/vm"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "flexscript.toml"

// Manifest represents a flexscript.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Script  Script      `toml:"script"`
	VM      VMSection   `toml:"vm"`
	Cache   CacheConfig `toml:"cache"`
	Log     LogConfig   `toml:"log"`

	// Dir is the directory containing the flexscript.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Script names the entry script.
type Script struct {
	Entry string `toml:"entry"`
}

// VMSection sets interpreter limits.
type VMSection struct {
	MaxSteps    int  `toml:"max-steps"`
	MemoryWords int  `toml:"memory-words"`
	Trace       bool `toml:"trace"`
}

// CacheConfig configures the compiled-program cache.
type CacheConfig struct {
	Path    string `toml:"path"`
	Enabled *bool  `toml:"enabled"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the manifest used when no flexscript.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a flexscript.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if m.VM.MaxSteps < 0 || m.VM.MemoryWords < 0 {
		return nil, fmt.Errorf("%s: vm limits must not be negative", path)
	}

	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Script.Entry == "" {
		m.Script.Entry = "main.flex"
	}
	if m.VM.MaxSteps == 0 {
		m.VM.MaxSteps = vm.DefaultMaxSteps
	}
	if m.VM.MemoryWords == 0 {
		m.VM.MemoryWords = vm.DefaultMemoryWords
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".flexscript", "cache.db")
	}
	if m.Cache.Enabled == nil {
		enabled := true
		m.Cache.Enabled = &enabled
	}
}

// FindAndLoad walks up from startDir to find a flexscript.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// VMConfig returns the interpreter configuration.
func (m *Manifest) VMConfig() vm.Config {
	return vm.Config{
		MaxSteps:    m.VM.MaxSteps,
		MemoryWords: m.VM.MemoryWords,
		Trace:       m.VM.Trace,
	}
}

// EntryPath returns the absolute path of the entry script.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Script.Entry)
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// CacheEnabled reports whether compiled programs should be cached.
func (m *Manifest) CacheEnabled() bool {
	return m.Cache.Enabled == nil || *m.Cache.Enabled
}

// LogFile returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogFile() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
