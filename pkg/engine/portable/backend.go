// Package portable is the pure-Go engine backend. Expressions are compiled
// with coregex, falling back to regexp2 where coregex cannot reproduce the
// expected semantics, and gated by an Aho-Corasick literal prefilter.
//
// Matches are leftmost and non-overlapping per expression, with exact start
// offsets, and are delivered ordered by end offset.
package portable

import (
	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Version is the engine version reported by this backend.
const Version = "1.0.0-portable"

// Backend implements engine.Backend without cgo.
type Backend struct{}

// New returns the portable backend.
func New() *Backend {
	return &Backend{}
}

var _ engine.Backend = (*Backend)(nil)

func (*Backend) Name() string    { return "portable" }
func (*Backend) Version() string { return Version }

func (*Backend) PopulatePlatform() (types.Platform, error) {
	return hostPlatform(), nil
}

func (b *Backend) Compile(expression string, flags uint32, mode types.Mode, platform *types.Platform) (engine.Database, error) {
	return b.build([]string{expression}, []uint32{flags}, nil, nil, mode, platform)
}

func (b *Backend) CompileMulti(expressions []string, flags []uint32, ids []uint32, mode types.Mode, platform *types.Platform) (engine.Database, error) {
	return b.build(expressions, flags, ids, nil, mode, platform)
}

func (b *Backend) CompileExtMulti(expressions []string, flags []uint32, ids []uint32, exts []*types.ExprExt, mode types.Mode, platform *types.Platform) (engine.Database, error) {
	return b.build(expressions, flags, ids, exts, mode, platform)
}

// build compiles every expression. A single expression is a batch of one, so
// its diagnostics name index 0.
func (b *Backend) build(expressions []string, flags, ids []uint32, exts []*types.ExprExt, mode types.Mode, platform *types.Platform) (engine.Database, error) {
	if !mode.Valid() {
		return nil, engine.NewCompileError(-1, "Invalid parameter: unrecognised mode flags.")
	}
	if len(expressions) == 0 {
		return nil, engine.NewCompileError(-1, "Invalid parameter: elements must be greater than zero.")
	}
	if (flags != nil && len(flags) != len(expressions)) ||
		(ids != nil && len(ids) != len(expressions)) ||
		(exts != nil && len(exts) != len(expressions)) {
		return nil, engine.OpError("compile", engine.CodeInvalid)
	}

	var target types.Platform
	if platform != nil {
		target = *platform
		if target.Tune > types.TuneICX {
			return nil, engine.NewCompileError(-1, "Invalid tuning value specified in the platform information.")
		}
	} else {
		target = hostPlatform()
	}

	patterns := make([]*pattern, len(expressions))
	for i, expr := range expressions {
		var f, id uint32
		var ext *types.ExprExt
		if flags != nil {
			f = flags[i]
		}
		if ids != nil {
			id = ids[i]
		}
		if exts != nil {
			ext = exts[i]
		}
		p, err := compilePattern(i, expr, f, id, ext)
		if err != nil {
			return nil, err
		}
		patterns[i] = p
	}

	return newDatabase(patterns, mode, target), nil
}

func (*Backend) ExpressionInfo(expression string, flags uint32) (*types.ExprInfo, error) {
	p, err := compilePattern(0, expression, flags, 0, nil)
	if err != nil {
		return nil, err
	}
	info := *p.info
	return &info, nil
}

func (b *Backend) Deserialize(blob []byte) (engine.Database, error) {
	h, stored, err := decode(blob)
	if err != nil {
		return nil, err
	}
	if !h.mode.Valid() {
		return nil, engine.OpError("deserialize", engine.CodeDBModeError)
	}
	if !runnable(h.platform) {
		return nil, engine.OpError("deserialize", engine.CodeDBPlatformError)
	}

	patterns := make([]*pattern, len(stored))
	for i, sp := range stored {
		p, err := compilePattern(i, sp.expression, sp.flags, sp.id, sp.ext)
		if err != nil {
			return nil, engine.OpError("deserialize", engine.CodeInvalid)
		}
		patterns[i] = p
	}
	return newDatabase(patterns, h.mode, h.platform), nil
}

func (*Backend) AllocScratch(db engine.Database, existing engine.Scratch) (engine.Scratch, error) {
	d, ok := db.(*database)
	if !ok || d == nil || d.freed.Load() {
		return nil, engine.OpError("alloc scratch", engine.CodeInvalid)
	}
	if !runnable(d.platform) {
		return nil, engine.OpError("alloc scratch", engine.CodeDBPlatformError)
	}

	s := &scratch{}
	if existing != nil {
		if s, ok = existing.(*scratch); !ok || s == nil {
			return nil, engine.OpError("alloc scratch", engine.CodeInvalid)
		}
	}
	if err := s.grow(d); err != nil {
		return nil, err
	}
	return s, nil
}
