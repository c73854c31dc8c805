package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite catalog at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put stores e with its blob zstd-compressed.
func (s *SQLiteStore) Put(e *Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	data, err := compressBlob(e.Blob)
	if err != nil {
		return err
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.db.Exec(`
		INSERT INTO databases (name, backend, mode, patterns, info, blob, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			backend = excluded.backend,
			mode = excluded.mode,
			patterns = excluded.patterns,
			info = excluded.info,
			blob = excluded.blob,
			size = excluded.size,
			created_at = excluded.created_at
	`,
		e.Name,
		e.Backend,
		int64(e.Mode),
		e.Patterns,
		e.Info,
		data,
		len(e.Blob),
		created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// Get returns the named entry with its blob decompressed.
func (s *SQLiteStore) Get(name string) (*Entry, error) {
	var (
		e       Entry
		mode    int64
		data    []byte
		created int64
	)
	err := s.db.QueryRow(`
		SELECT name, backend, mode, patterns, info, blob, size, created_at
		FROM databases
		WHERE name = ?
	`, name).Scan(&e.Name, &e.Backend, &mode, &e.Patterns, &e.Info, &data, &e.Size, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}

	if e.Blob, err = decompressBlob(data); err != nil {
		return nil, err
	}
	e.Mode = types.Mode(mode)
	e.CreatedAt = time.Unix(0, created)
	return &e, nil
}

// List returns entry metadata in name order.
func (s *SQLiteStore) List() ([]*Entry, error) {
	rows, err := s.db.Query(`
		SELECT name, backend, mode, patterns, info, size, created_at
		FROM databases
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var (
			e       Entry
			mode    int64
			created int64
		)
		if err := rows.Scan(&e.Name, &e.Backend, &mode, &e.Patterns, &e.Info, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Mode = types.Mode(mode)
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// Delete removes the named entry.
func (s *SQLiteStore) Delete(name string) error {
	res, err := s.db.Exec("DELETE FROM databases WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
