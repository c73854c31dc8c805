package matcher

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/log"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Database owns a compiled pattern database. It is immutable after
// construction and may be scanned from many goroutines at once, each with
// its own Scratch.
//
// Close releases the engine database exactly once. A Database that is never
// closed is released by a finalizer, which logs the leak.
type Database struct {
	backend  engine.Backend
	db       engine.Database
	patterns int // -1 when unknown
	released atomic.Bool
}

func newDatabase(b engine.Backend, db engine.Database, patterns int) *Database {
	d := &Database{backend: b, db: db, patterns: patterns}
	runtime.SetFinalizer(d, (*Database).finalize)
	return d
}

func (d *Database) finalize() {
	if !d.released.CompareAndSwap(false, true) {
		return
	}
	log.Warn().Str("handle", "database").Msg("database was not closed; releasing from finalizer")
	if err := d.db.Free(); err != nil {
		log.Error().Err(err).Str("handle", "database").Msg("release failed in finalizer")
	}
}

// handle returns the engine database, or ErrReleased after Close.
func (d *Database) handle() (engine.Database, error) {
	if d == nil || d.released.Load() {
		return nil, ErrReleased
	}
	return d.db, nil
}

// Mode returns the mode the database was compiled for.
func (d *Database) Mode() types.Mode {
	return d.db.Mode()
}

// Patterns returns the number of patterns compiled into the database, or -1
// when it was deserialized by a backend that cannot tell.
func (d *Database) Patterns() int {
	return d.patterns
}

// Info describes the database, e.g. "Version: 5.4.2 Features: AVX2 Mode: BLOCK".
func (d *Database) Info() (string, error) {
	db, err := d.handle()
	if err != nil {
		return "", err
	}
	info, err := db.Info()
	if err != nil {
		return "", fmt.Errorf("database info: %w", err)
	}
	return info, nil
}

// Serialize returns an opaque blob accepted by Deserialize.
func (d *Database) Serialize() ([]byte, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	blob, err := db.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return blob, nil
}

// Size returns the database footprint in bytes.
func (d *Database) Size() (int, error) {
	db, err := d.handle()
	if err != nil {
		return 0, err
	}
	n, err := db.Size()
	if err != nil {
		return 0, fmt.Errorf("database size: %w", err)
	}
	return n, nil
}

// MakeScratch returns a new scratch sized for d.
func (d *Database) MakeScratch() (*Scratch, error) {
	s := NewScratch()
	if err := s.Grow(d); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the database. A second Close returns ErrReleased without
// touching the engine.
func (d *Database) Close() error {
	if d == nil || !d.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	runtime.SetFinalizer(d, nil)
	if err := d.db.Free(); err != nil {
		log.Error().Err(err).Str("handle", "database").Msg("release failed")
		return fmt.Errorf("release database: %w", err)
	}
	return nil
}
