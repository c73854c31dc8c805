// Package engine defines the narrow interface between the matcher wrapper and
// the automaton that actually compiles and executes patterns.
//
// A Backend compiles databases and allocates scratch space. A Database is an
// immutable compiled artifact that may be scanned concurrently, each scan
// using its own Scratch. Backends report failures as *Error or *CompileError.
package engine

import "github.com/praetorian-inc/hsmatch/pkg/types"

// MatchHandler is invoked once per match event in engine discovery order.
// Returning a non-nil error stops the scan; the scan then fails with
// CodeScanTerminated.
type MatchHandler func(id uint32, from, to uint64, flags uint32) error

// Backend is a pattern compiler plus the host queries that go with it.
type Backend interface {
	// Name identifies the backend ("portable", "hyperscan").
	Name() string

	// Version returns the engine version string.
	Version() string

	// PopulatePlatform describes the host CPU.
	PopulatePlatform() (types.Platform, error)

	// Compile builds a database from a single expression.
	Compile(expression string, flags uint32, mode types.Mode, platform *types.Platform) (Database, error)

	// CompileMulti builds a database from several expressions. flags and ids
	// may be nil, meaning 0 for every expression; otherwise they have the same
	// length as expressions.
	CompileMulti(expressions []string, flags []uint32, ids []uint32, mode types.Mode, platform *types.Platform) (Database, error)

	// CompileExtMulti is CompileMulti with per-expression extended
	// constraints. exts has the same length as expressions; nil entries carry
	// no constraint.
	CompileExtMulti(expressions []string, flags []uint32, ids []uint32, exts []*types.ExprExt, mode types.Mode, platform *types.Platform) (Database, error)

	// ExpressionInfo analyzes a single expression without building a database.
	ExpressionInfo(expression string, flags uint32) (*types.ExprInfo, error)

	// Deserialize reconstructs a database from Database.Serialize output.
	// Malformed input must fail with an error, never crash.
	Deserialize(blob []byte) (Database, error)

	// AllocScratch sizes scratch space for db. When existing is nil a new
	// scratch is returned; otherwise existing is grown in place to also
	// support db and returned.
	AllocScratch(db Database, existing Scratch) (Scratch, error)
}

// Database is a compiled, immutable pattern database.
type Database interface {
	// Info returns a human-readable description of the database.
	Info() (string, error)

	// Serialize returns a blob accepted by Backend.Deserialize.
	Serialize() ([]byte, error)

	// Size returns the database footprint in bytes.
	Size() (int, error)

	// Mode returns the mode the database was compiled for.
	Mode() types.Mode

	// Scan runs a block-mode scan of data. flags is reserved and must be 0.
	Scan(data []byte, flags uint32, scratch Scratch, onMatch MatchHandler) error

	// ScanVector runs a vectored-mode scan over blocks.
	ScanVector(blocks [][]byte, flags uint32, scratch Scratch, onMatch MatchHandler) error

	// Free releases the database.
	Free() error
}

// PatternCounter is implemented by databases that know how many patterns
// they hold, including ones rebuilt by Deserialize.
type PatternCounter interface {
	Patterns() int
}

// Scratch is per-scan working memory. A Scratch must not be used by more
// than one scan at a time.
type Scratch interface {
	// Size returns the scratch footprint in bytes.
	Size() (int, error)

	// Clone returns an independent scratch with the same capacity.
	Clone() (Scratch, error)

	// Free releases the scratch.
	Free() error
}
