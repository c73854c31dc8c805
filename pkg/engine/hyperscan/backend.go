//go:build cgo && hyperscan

// Package hyperscan adapts the Hyperscan/Vectorscan C library, through gohs,
// to the engine interface.
//
// Build with: go build -tags hyperscan (requires CGO_ENABLED=1 and libhs).
package hyperscan

import (
	"errors"
	"reflect"
	"sync/atomic"

	hs "github.com/flier/gohs/hyperscan"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/log"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Backend implements engine.Backend on top of libhs.
type Backend struct{}

// New returns the Hyperscan backend.
func New() *Backend {
	return &Backend{}
}

var _ engine.Backend = (*Backend)(nil)

func (*Backend) Name() string    { return "hyperscan" }
func (*Backend) Version() string { return hs.Version() }

func (*Backend) PopulatePlatform() (types.Platform, error) {
	p := hs.PopulatePlatform()
	if p == nil {
		return types.Platform{}, engine.OpError("populate platform", engine.CodeUnknownError)
	}
	return types.Platform{Tune: uint32(p.Tune()), CPUFeatures: uint32(p.CpuFeatures())}, nil
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

func newPattern(expression string, flags uint32, id uint32, ext *types.ExprExt) *hs.Pattern {
	p := hs.NewPattern(expression, hs.CompileFlag(flags))
	p.Id = int(id)
	if ext != nil {
		p.Ext = &hs.ExprExt{}
		if ext.Has(types.ExtMinOffset) {
			hs.MinOffset(ext.MinOffset)(p.Ext)
		}
		if ext.Has(types.ExtMaxOffset) {
			hs.MaxOffset(ext.MaxOffset)(p.Ext)
		}
		if ext.Has(types.ExtMinLength) {
			hs.MinLength(ext.MinLength)(p.Ext)
		}
	}
	return p
}

// build compiles through DatabaseBuilder, which selects hs_compile_ext_multi
// only when some pattern carries extended constraints.
func (b *Backend) build(expressions []string, flags, ids []uint32, exts []*types.ExprExt, mode types.Mode, platform *types.Platform) (engine.Database, error) {
	if (flags != nil && len(flags) != len(expressions)) ||
		(ids != nil && len(ids) != len(expressions)) ||
		(exts != nil && len(exts) != len(expressions)) {
		return nil, engine.OpError("compile", engine.CodeInvalid)
	}

	patterns := make([]*hs.Pattern, len(expressions))
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
		patterns[i] = newPattern(expr, f, id, ext)
	}

	builder := &hs.DatabaseBuilder{
		Patterns: patterns,
		Mode:     hs.ModeFlag(mode),
	}
	if platform != nil {
		builder.Platform = hs.NewPlatform(hs.TuneFlag(platform.Tune), hs.CpuFeature(platform.CPUFeatures))
	}

	db, err := builder.Build()
	if err != nil {
		return nil, compileError(patterns, err)
	}
	return &database{db: db, mode: mode}, nil
}

// compileError converts a failed build into a diagnostic carrying the
// expression index libhs reported.
func compileError(patterns []*hs.Pattern, err error) error {
	if code, ok := hsCode(err); ok && code != engine.CodeCompilerError {
		return engine.OpError("compile", code)
	}
	if index, ok := compileIndex(err); ok {
		if index >= len(patterns) {
			index = -1
		}
		return engine.NewCompileError(index, err.Error())
	}
	// No hs_compile_error_t in the chain: attribute to the first pattern that
	// fails on its own.
	for i, p := range patterns {
		if _, perr := p.Info(); perr != nil {
			return engine.NewCompileError(i, perr.Error())
		}
	}
	return engine.NewCompileError(-1, err.Error())
}

// compileIndex returns hs_compile_error_t.expression from err. gohs keeps that
// type in an internal package, so the field is read by name.
func compileIndex(err error) (int, bool) {
	for ; err != nil; err = errors.Unwrap(err) {
		v := reflect.ValueOf(err)
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				break
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			continue
		}
		if f := v.FieldByName("Expression"); f.IsValid() && f.CanInt() {
			index := int(f.Int())
			if index < 0 {
				index = -1
			}
			return index, true
		}
	}
	return 0, false
}

// hsCode extracts the hs_error_t carried by a gohs error.
func hsCode(err error) (engine.Code, bool) {
	var he hs.HsError
	if errors.As(err, &he) {
		return engine.Code(int(he)), true
	}
	return 0, false
}

// wrap converts a gohs runtime error into an engine error.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if code, ok := hsCode(err); ok {
		return engine.OpError(op, code)
	}
	log.Debug().Err(err).Str("op", op).Msg("unclassified hyperscan error")
	return engine.OpError(op, engine.CodeUnknownError)
}

func (*Backend) ExpressionInfo(expression string, flags uint32) (*types.ExprInfo, error) {
	info, err := hs.NewPattern(expression, hs.CompileFlag(flags)).Info()
	if err != nil {
		if code, ok := hsCode(err); ok && code != engine.CodeCompilerError {
			return nil, engine.OpError("expression info", code)
		}
		index, ok := compileIndex(err)
		if !ok || index > 0 {
			index = 0
		}
		return nil, engine.NewCompileError(index, err.Error())
	}
	return &types.ExprInfo{
		MinWidth:         uint32(info.MinWidth),
		MaxWidth:         uint32(info.MaxWidth),
		UnorderedMatches: info.ReturnUnordered,
		MatchesAtEOD:     info.AtEndOfData,
		MatchesOnlyAtEOD: info.OnlyAtEndOfData,
	}, nil
}

func (*Backend) Deserialize(blob []byte) (engine.Database, error) {
	info, err := hs.SerializedDatabaseInfo(blob)
	if err != nil {
		return nil, wrap("deserialize", err)
	}
	mode, err := info.Mode()
	if err != nil {
		return nil, wrap("deserialize", err)
	}

	var db hs.Database
	switch types.Mode(mode).Base() {
	case types.ModeBlock:
		db, err = hs.UnmarshalBlockDatabase(blob)
	case types.ModeStream:
		db, err = hs.UnmarshalStreamDatabase(blob)
	case types.ModeVectored:
		db, err = hs.UnmarshalVectoredDatabase(blob)
	default:
		return nil, engine.OpError("deserialize", engine.CodeDBModeError)
	}
	if err != nil {
		return nil, wrap("deserialize", err)
	}
	return &database{db: db, mode: types.Mode(mode)}, nil
}

func (*Backend) AllocScratch(db engine.Database, existing engine.Scratch) (engine.Scratch, error) {
	d, ok := db.(*database)
	if !ok || d == nil || d.freed.Load() {
		return nil, engine.OpError("alloc scratch", engine.CodeInvalid)
	}
	if existing == nil {
		s, err := hs.NewScratch(d.db)
		if err != nil {
			return nil, wrap("alloc scratch", err)
		}
		return &scratch{s: s}, nil
	}
	s, ok := existing.(*scratch)
	if !ok || s == nil || s.freed.Load() {
		return nil, engine.OpError("alloc scratch", engine.CodeInvalid)
	}
	if err := s.s.Realloc(d.db); err != nil {
		return nil, wrap("alloc scratch", err)
	}
	return s, nil
}

type database struct {
	db    hs.Database
	mode  types.Mode
	freed atomic.Bool
}

func (d *database) Mode() types.Mode { return d.mode }

func (d *database) Info() (string, error) {
	info, err := d.db.Info()
	if err != nil {
		return "", wrap("database info", err)
	}
	return string(info), nil
}

func (d *database) Serialize() ([]byte, error) {
	blob, err := d.db.Marshal()
	return blob, wrap("serialize", err)
}

func (d *database) Size() (int, error) {
	n, err := d.db.Size()
	return n, wrap("database size", err)
}

func (d *database) Scan(data []byte, flags uint32, s engine.Scratch, onMatch engine.MatchHandler) error {
	block, ok := d.db.(hs.BlockDatabase)
	if !ok {
		return engine.OpError("scan", engine.CodeDBModeError)
	}
	sc, ok := s.(*scratch)
	if !ok || sc == nil {
		return engine.OpError("scan", engine.CodeInvalid)
	}
	return wrap("scan", block.Scan(data, sc.s, handler(onMatch), nil))
}

func (d *database) ScanVector(blocks [][]byte, flags uint32, s engine.Scratch, onMatch engine.MatchHandler) error {
	vectored, ok := d.db.(hs.VectoredDatabase)
	if !ok {
		return engine.OpError("scan vector", engine.CodeDBModeError)
	}
	sc, ok := s.(*scratch)
	if !ok || sc == nil {
		return engine.OpError("scan vector", engine.CodeInvalid)
	}
	return wrap("scan vector", vectored.Scan(blocks, sc.s, handler(onMatch), nil))
}

func (d *database) Free() error {
	if !d.freed.CompareAndSwap(false, true) {
		return engine.OpError("free database", engine.CodeInvalid)
	}
	return wrap("free database", d.db.Close())
}

func handler(onMatch engine.MatchHandler) hs.MatchHandler {
	return func(id uint, from, to uint64, flags uint, _ interface{}) error {
		return onMatch(uint32(id), from, to, uint32(flags))
	}
}

type scratch struct {
	s     *hs.Scratch
	freed atomic.Bool
}

func (s *scratch) Size() (int, error) {
	n, err := s.s.Size()
	return n, wrap("scratch size", err)
}

func (s *scratch) Clone() (engine.Scratch, error) {
	c, err := s.s.Clone()
	if err != nil {
		return nil, wrap("clone scratch", err)
	}
	return &scratch{s: c}, nil
}

func (s *scratch) Free() error {
	if !s.freed.CompareAndSwap(false, true) {
		return engine.OpError("free scratch", engine.CodeInvalid)
	}
	return wrap("free scratch", s.s.Free())
}
