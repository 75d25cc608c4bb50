package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/flexscript/diag"
	"github.com/chazu/flexscript/image"
	"github.com/chazu/flexscript/vm"
)

const source = "int a = 20; int b = 22; return a + b;"

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_PutGetDelete(t *testing.T) {
	c := openTemp(t)

	if _, err := c.Get(source); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty cache: err = %v, want ErrNotFound", err)
	}

	prog, diags := vm.Compile(source)
	if !diags.Empty() {
		t.Fatal(diags)
	}
	img := image.New(prog, source)
	if err := c.Put(source, img); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// replacing keeps a single row
	if err := c.Put(source, img); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	if n, err := c.Len(); err != nil || n != 1 {
		t.Errorf("Len = %d, %v", n, err)
	}

	got, err := c.Get(source)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BuildID != img.BuildID || got.SourceHash != image.HashSource(source) {
		t.Errorf("got image %s/%s", got.BuildID, got.SourceHash)
	}

	if err := c.Delete(source); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(source); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v", err)
	}
}

func TestCache_Compile(t *testing.T) {
	c := openTemp(t)

	prog, hit, err := c.Compile(source)
	if err != nil || hit {
		t.Fatalf("first Compile: hit=%t err=%v", hit, err)
	}
	again, hit, err := c.Compile(source)
	if err != nil || !hit {
		t.Fatalf("second Compile: hit=%t err=%v", hit, err)
	}
	if len(again.Instructions) != len(prog.Instructions) {
		t.Errorf("cached program has %d instructions, want %d", len(again.Instructions), len(prog.Instructions))
	}

	v := vm.NewVM()
	v.LoadProgram(again)
	v.Execute(false)
	if v.Result() != vm.Int(42) {
		t.Errorf("result = %s, want 42", v.Result())
	}
}

func TestCache_CompileErrorsAreNotCached(t *testing.T) {
	c := openTemp(t)

	_, _, err := c.Compile("int x = ;")
	var derr *diag.Error
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *diag.Error", err)
	}
	if n, _ := c.Len(); n != 0 {
		t.Errorf("Len = %d after failed compile", n)
	}
}

func TestCache_Prune(t *testing.T) {
	c := openTemp(t)
	if _, _, err := c.Compile(source); err != nil {
		t.Fatal(err)
	}

	n, err := c.Prune(time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Errorf("Prune(old cutoff) = %d, %v", n, err)
	}
	n, err = c.Prune(time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Errorf("Prune(future cutoff) = %d, %v", n, err)
	}
}
