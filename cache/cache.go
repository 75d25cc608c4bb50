// Package cache keeps compiled program images in SQLite, keyed by a hash of
// the source text, so unchanged scripts skip compilation.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/flexscript/image"
	"github.com/chazu/flexscript/vm"
)

// ErrNotFound indicates no image is cached for a source hash.
var ErrNotFound = errors.New("cache: program not found")

// Cache is a SQLite-backed image store. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		hash TEXT PRIMARY KEY,
		image BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating table: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.path }

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Put stores the image for a source text, replacing any previous one.
func (c *Cache) Put(source string, img *image.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := image.Marshal(img)
	if err != nil {
		return fmt.Errorf("cache: encoding image: %w", err)
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO programs (hash, image, created_at) VALUES (?, ?, ?)",
		image.HashSource(source), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: saving image: %w", err)
	}
	return nil
}

// Get returns the cached image for a source text, or ErrNotFound.
func (c *Cache) Get(source string) (*image.Image, error) {
	var data []byte
	err := c.db.QueryRow("SELECT image FROM programs WHERE hash = ?", image.HashSource(source)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: querying image: %w", err)
	}
	img, err := image.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("cache: decoding image: %w", err)
	}
	return img, nil
}

// Delete drops the cached image for a source text.
func (c *Cache) Delete(source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM programs WHERE hash = ?", image.HashSource(source)); err != nil {
		return fmt.Errorf("cache: deleting image: %w", err)
	}
	return nil
}

// Prune removes images stored before the cutoff and returns how many were
// removed.
func (c *Cache) Prune(before time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM programs WHERE created_at < ?", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("cache: pruning: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached images.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM programs").Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: counting: %w", err)
	}
	return n, nil
}

// Compile returns the program for source, compiling and storing it on a
// miss. hit reports whether the cache served it. Compilation failures are
// returned as a *diag.Error and never cached.
func (c *Cache) Compile(source string) (prog *vm.Program, hit bool, err error) {
	img, err := c.Get(source)
	switch {
	case err == nil:
		return img.Program(), true, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	prog, diags := vm.Compile(source)
	if err := diags.Err(); err != nil {
		return nil, false, err
	}
	if err := c.Put(source, image.New(prog, source)); err != nil {
		return nil, false, err
	}
	return prog, false, nil
}
