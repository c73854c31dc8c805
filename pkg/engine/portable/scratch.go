package portable

import (
	"sync/atomic"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
)

// scratch records how many patterns it can serve and holds the event buffer
// reused across scans. Only one scan may use it at a time.
type scratch struct {
	capacity int
	events   []event
	inUse    atomic.Bool
	freed    atomic.Bool
}

func (s *scratch) acquire() bool { return s.inUse.CompareAndSwap(false, true) }
func (s *scratch) release()      { s.inUse.Store(false) }

// grow extends the scratch to serve db.
func (s *scratch) grow(db *database) error {
	if s.freed.Load() {
		return engine.OpError("alloc scratch", engine.CodeInvalid)
	}
	if !s.acquire() {
		return engine.OpError("alloc scratch", engine.CodeScratchInUse)
	}
	defer s.release()
	s.capacity = max(s.capacity, len(db.patterns))
	return nil
}

func (s *scratch) Size() (int, error) {
	if s.freed.Load() {
		return 0, engine.OpError("scratch size", engine.CodeInvalid)
	}
	return scratchBaseSize + s.capacity*scratchPerPattern, nil
}

func (s *scratch) Clone() (engine.Scratch, error) {
	if s.freed.Load() {
		return nil, engine.OpError("clone scratch", engine.CodeInvalid)
	}
	return &scratch{capacity: s.capacity}, nil
}

func (s *scratch) Free() error {
	if !s.freed.CompareAndSwap(false, true) {
		return engine.OpError("free scratch", engine.CodeInvalid)
	}
	s.events = nil
	return nil
}
