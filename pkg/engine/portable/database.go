package portable

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/log"
	"github.com/praetorian-inc/hsmatch/pkg/prefilter"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

const (
	databaseBaseSize  = 256
	patternOverhead   = 96
	scratchBaseSize   = 512
	scratchPerPattern = 64
)

// database is an immutable set of compiled patterns.
type database struct {
	mode     types.Mode
	platform types.Platform
	patterns []*pattern
	gate     *prefilter.Prefilter
	freed    atomic.Bool
}

func newDatabase(patterns []*pattern, mode types.Mode, platform types.Platform) *database {
	required := make([]string, len(patterns))
	for i, p := range patterns {
		required[i] = p.gate
	}
	return &database{
		mode:     mode,
		platform: platform,
		patterns: patterns,
		gate:     prefilter.New(required),
	}
}

func (d *database) Mode() types.Mode { return d.mode }
func (d *database) Patterns() int    { return len(d.patterns) }

func (d *database) Info() (string, error) {
	if d.freed.Load() {
		return "", engine.OpError("database info", engine.CodeInvalid)
	}
	return fmt.Sprintf("Version: %s Features: %s Mode: %s", Version, d.platform.FeatureNames(), d.mode), nil
}

func (d *database) Size() (int, error) {
	if d.freed.Load() {
		return 0, engine.OpError("database size", engine.CodeInvalid)
	}
	size := databaseBaseSize
	for _, p := range d.patterns {
		size += patternOverhead + len(p.expression)
	}
	return size, nil
}

func (d *database) Serialize() ([]byte, error) {
	if d.freed.Load() {
		return nil, engine.OpError("serialize", engine.CodeInvalid)
	}
	return encode(d), nil
}

func (d *database) Free() error {
	if !d.freed.CompareAndSwap(false, true) {
		return engine.OpError("free database", engine.CodeInvalid)
	}
	return nil
}

func (d *database) Scan(data []byte, flags uint32, s engine.Scratch, onMatch engine.MatchHandler) error {
	if d.mode.Base() != types.ModeBlock {
		return engine.OpError("scan", engine.CodeDBModeError)
	}
	return d.run(data, s, onMatch)
}

func (d *database) ScanVector(blocks [][]byte, flags uint32, s engine.Scratch, onMatch engine.MatchHandler) error {
	if d.mode.Base() != types.ModeVectored {
		return engine.OpError("scan vector", engine.CodeDBModeError)
	}
	return d.run(bytes.Join(blocks, nil), s, onMatch)
}

// event is one match waiting for delivery.
type event struct {
	index int
	from  uint64
	to    uint64
}

func (d *database) run(data []byte, s engine.Scratch, onMatch engine.MatchHandler) error {
	if d.freed.Load() || onMatch == nil {
		return engine.OpError("scan", engine.CodeInvalid)
	}
	sc, ok := s.(*scratch)
	if !ok || sc == nil {
		return engine.OpError("scan", engine.CodeInvalid)
	}
	if !sc.acquire() {
		return engine.OpError("scan", engine.CodeScratchInUse)
	}
	defer sc.release()
	if sc.freed.Load() || sc.capacity < len(d.patterns) {
		return engine.OpError("scan", engine.CodeInvalid)
	}

	candidates := d.gate.Candidates(data)
	events := sc.events[:0]
	for i, p := range d.patterns {
		if p.flags&types.Quiet != 0 || !candidates[i] {
			continue
		}
		spans, err := p.finder.findAll(data)
		if err != nil {
			log.Error().Err(err).Int("expression", i).Msg("scan failed")
			return engine.OpError("scan", engine.CodeUnknownError)
		}
		for _, span := range spans {
			from, to := uint64(span[0]), uint64(span[1])
			if !p.ext.Accepts(from, to) {
				continue
			}
			events = append(events, event{index: i, from: from, to: to})
			if p.flags&types.SingleMatch != 0 {
				break
			}
		}
	}

	slices.SortFunc(events, func(a, b event) int {
		if c := cmp.Compare(a.to, b.to); c != 0 {
			return c
		}
		if c := cmp.Compare(a.from, b.from); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
	sc.events = events

	for _, ev := range events {
		if err := onMatch(d.patterns[ev.index].id, ev.from, ev.to, 0); err != nil {
			return engine.OpError("scan", engine.CodeScanTerminated)
		}
	}
	return nil
}
