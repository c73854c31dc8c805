package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgres connects to the PostgreSQL catalog at dsn and creates the
// schema if needed.
func NewPostgres(dsn string) (*PostgresStore, error) {
	s := &PostgresStore{timeout: 30 * time.Second}
	ctx, cancel := s.context()
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s.pool = pool

	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(postgresBlobType) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	var version *int
	if err := s.pool.QueryRow(ctx, "SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return err
	}
	if version == nil {
		_, err := s.pool.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", SchemaVersion)
		return err
	}
	return checkVersion(*version)
}

// Put stores e with its blob zstd-compressed.
func (s *PostgresStore) Put(e *Entry) error {
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

	ctx, cancel := s.context()
	defer cancel()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO databases (name, backend, mode, patterns, info, blob, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			backend = EXCLUDED.backend,
			mode = EXCLUDED.mode,
			patterns = EXCLUDED.patterns,
			info = EXCLUDED.info,
			blob = EXCLUDED.blob,
			size = EXCLUDED.size,
			created_at = EXCLUDED.created_at
	`, e.Name, e.Backend, int64(e.Mode), e.Patterns, e.Info, data, len(e.Blob), created.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// Get returns the named entry with its blob decompressed.
func (s *PostgresStore) Get(name string) (*Entry, error) {
	ctx, cancel := s.context()
	defer cancel()

	var (
		e       Entry
		mode    int64
		data    []byte
		created int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT name, backend, mode, patterns, info, blob, size, created_at
		FROM databases
		WHERE name = $1
	`, name).Scan(&e.Name, &e.Backend, &mode, &e.Patterns, &e.Info, &data, &e.Size, &created)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) List() ([]*Entry, error) {
	ctx, cancel := s.context()
	defer cancel()

	rows, err := s.pool.Query(ctx, `
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
func (s *PostgresStore) Delete(name string) error {
	ctx, cancel := s.context()
	defer cancel()

	tag, err := s.pool.Exec(ctx, "DELETE FROM databases WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
