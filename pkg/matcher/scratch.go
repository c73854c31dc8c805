package matcher

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/log"
)

// ErrEmptyScratch is returned when a scratch that was never grown is used
// for a scan, cloned or measured by the engine.
var ErrEmptyScratch = errors.New("scratch has not been grown for any database")

// Scratch owns per-scan working memory. A Scratch may serve any database it
// was grown for, but only one scan at a time; give each goroutine its own
// (see Clone and ScratchPool).
type Scratch struct {
	backend  engine.Backend
	s        engine.Scratch // nil until the first Grow
	released atomic.Bool
}

// NewScratch returns an empty scratch. Grow it for at least one database
// before scanning.
func NewScratch() *Scratch {
	return &Scratch{}
}

func newScratch(b engine.Backend, s engine.Scratch) *Scratch {
	sc := &Scratch{backend: b, s: s}
	runtime.SetFinalizer(sc, (*Scratch).finalize)
	return sc
}

func (s *Scratch) finalize() {
	if !s.released.CompareAndSwap(false, true) || s.s == nil {
		return
	}
	log.Warn().Str("handle", "scratch").Msg("scratch was not closed; releasing from finalizer")
	if err := s.s.Free(); err != nil {
		log.Error().Err(err).Str("handle", "scratch").Msg("release failed in finalizer")
	}
}

func (s *Scratch) handle() (engine.Scratch, error) {
	if s == nil || s.released.Load() {
		return nil, ErrReleased
	}
	if s.s == nil {
		return nil, ErrEmptyScratch
	}
	return s.s, nil
}

// Grow extends s in place so it can also serve db. Growing an empty scratch
// allocates it.
func (s *Scratch) Grow(db *Database) error {
	if s == nil || s.released.Load() {
		return ErrReleased
	}
	edb, err := db.handle()
	if err != nil {
		return err
	}
	if s.s != nil && s.backend != db.backend {
		return usageError("scratch", "was grown by the %s backend, database uses %s", s.backend.Name(), db.backend.Name())
	}

	grown, err := db.backend.AllocScratch(edb, s.s)
	if err != nil {
		return fmt.Errorf("grow scratch: %w", err)
	}
	if s.s == nil {
		s.backend = db.backend
		s.s = grown
		runtime.SetFinalizer(s, (*Scratch).finalize)
	}
	return nil
}

// Clone returns an independent scratch with the same capacity.
func (s *Scratch) Clone() (*Scratch, error) {
	es, err := s.handle()
	if err != nil {
		return nil, err
	}
	c, err := es.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone scratch: %w", err)
	}
	return newScratch(s.backend, c), nil
}

// Size returns the scratch footprint in bytes. An empty scratch has size 0.
func (s *Scratch) Size() (int, error) {
	es, err := s.handle()
	if errors.Is(err, ErrEmptyScratch) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := es.Size()
	if err != nil {
		return 0, fmt.Errorf("scratch size: %w", err)
	}
	return n, nil
}

// Close releases the scratch. A second Close returns ErrReleased.
func (s *Scratch) Close() error {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	runtime.SetFinalizer(s, nil)
	if s.s == nil {
		return nil
	}
	if err := s.s.Free(); err != nil {
		log.Error().Err(err).Str("handle", "scratch").Msg("release failed")
		return fmt.Errorf("release scratch: %w", err)
	}
	return nil
}
