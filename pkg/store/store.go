// Package store keeps a catalog of serialized pattern databases so a
// database compiled once can be loaded by name later.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// ErrNotFound is returned by Get and Delete for an unknown name.
var ErrNotFound = errors.New("catalog entry not found")

// Entry is one catalogued database.
type Entry struct {
	Name      string     `json:"name"`
	Backend   string     `json:"backend"` // engine that produced Blob
	Mode      types.Mode `json:"mode"`
	Patterns  int        `json:"patterns"`
	Info      string     `json:"info"`
	Blob      []byte     `json:"-"` // serialized database; nil in List results
	Size      int        `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
}

// Store persists catalog entries.
type Store interface {
	// Put adds e, replacing any entry with the same name.
	Put(e *Entry) error

	// Get returns the entry with the given name, including its blob.
	Get(name string) (*Entry, error)

	// List returns all entries in name order, without blobs.
	List() ([]*Entry, error)

	// Delete removes the named entry.
	Delete(name string) error

	// Close closes the underlying connection.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path selects the backend: ":memory:" for an in-process catalog,
	// a postgres:// or postgresql:// URL for PostgreSQL, anything else is a
	// SQLite file path.
	Path string
}

// New creates a Store for cfg.Path.
func New(cfg Config) (Store, error) {
	switch {
	case cfg.Path == "":
		return nil, fmt.Errorf("path is required")
	case cfg.Path == ":memory:":
		return NewMemory(), nil
	case strings.HasPrefix(cfg.Path, "postgres://"), strings.HasPrefix(cfg.Path, "postgresql://"):
		return NewPostgres(cfg.Path)
	default:
		return NewSQLite(cfg.Path)
	}
}

func validate(e *Entry) error {
	if e == nil || e.Name == "" {
		return fmt.Errorf("entry name is required")
	}
	if len(e.Blob) == 0 {
		return fmt.Errorf("entry %q has no blob", e.Name)
	}
	return nil
}

// Copy puts every entry of src into dst and returns how many were copied.
func Copy(dst, src Store) (int, error) {
	entries, err := src.List()
	if err != nil {
		return 0, fmt.Errorf("listing source: %w", err)
	}
	n := 0
	for _, meta := range entries {
		e, err := src.Get(meta.Name)
		if err != nil {
			return n, fmt.Errorf("reading %s: %w", meta.Name, err)
		}
		if err := dst.Put(e); err != nil {
			return n, fmt.Errorf("writing %s: %w", meta.Name, err)
		}
		n++
	}
	return n, nil
}
