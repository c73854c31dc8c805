package matcher

import (
	"fmt"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/log"
)

// Compile builds a database from req.
//
// The single path calls the engine's single-expression entry point. The
// multi path resolves per-pattern ids, flags and extended constraints into
// parallel arrays and uses the extended entry point only when some pattern
// carries a constraint. Engine failures come back as *engine.CompileError
// when the engine produced a diagnostic, otherwise as *engine.Error.
func Compile(req CompileRequest) (*Database, error) {
	p, err := req.resolve()
	if err != nil {
		return nil, err
	}

	var db engine.Database
	switch {
	case p.single:
		db, err = backend.Compile(p.expressions[0], p.flags[0], p.mode, p.platform)
	case p.hasExt():
		db, err = backend.CompileExtMulti(p.expressions, p.flags, p.ids, p.exts, p.mode, p.platform)
	default:
		db, err = backend.CompileMulti(p.expressions, p.flags, p.ids, p.mode, p.platform)
	}
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	log.Debug().
		Str("backend", backend.Name()).
		Int("patterns", len(p.expressions)).
		Stringer("mode", p.mode).
		Bool("ext", p.hasExt()).
		Msg("compiled database")
	return newDatabase(backend, db, len(p.expressions)), nil
}

// Deserialize reconstructs a database from Serialize output. Malformed input
// yields an engine error.
func Deserialize(blob []byte) (*Database, error) {
	db, err := backend.Deserialize(blob)
	if err != nil {
		return nil, fmt.Errorf("deserialize: %w", err)
	}
	patterns := -1
	if pc, ok := db.(engine.PatternCounter); ok {
		patterns = pc.Patterns()
	}
	return newDatabase(backend, db, patterns), nil
}
