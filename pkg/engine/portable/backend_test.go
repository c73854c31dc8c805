package portable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

func compileMulti(t *testing.T, exprs []string, flags, ids []uint32, exts []*types.ExprExt, mode types.Mode) engine.Database {
	t.Helper()
	b := New()
	var db engine.Database
	var err error
	if exts != nil {
		db, err = b.CompileExtMulti(exprs, flags, ids, exts, mode, nil)
	} else {
		db, err = b.CompileMulti(exprs, flags, ids, mode, nil)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Free() })
	return db
}

func scratchFor(t *testing.T, db engine.Database) engine.Scratch {
	t.Helper()
	s, err := New().AllocScratch(db, nil)
	require.NoError(t, err)
	return s
}

func scanAll(t *testing.T, db engine.Database, data string) []types.MatchRecord {
	t.Helper()
	s := scratchFor(t, db)
	defer s.Free()

	var got []types.MatchRecord
	err := db.Scan([]byte(data), 0, s, func(id uint32, from, to uint64, flags uint32) error {
		got = append(got, types.MatchRecord{ID: id, From: from, To: to})
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestCompile_SingleLiteral(t *testing.T) {
	db, err := New().Compile("abc", 0, types.ModeBlock, nil)
	require.NoError(t, err)
	defer db.Free()

	got := scanAll(t, db, "xxabcxx")

	require.Len(t, got, 1)
	assert.Equal(t, types.MatchRecord{ID: 0, From: 2, To: 5}, got[0])
}

func TestCompileMulti_IDs(t *testing.T) {
	db := compileMulti(t, []string{"foo", "bar"}, nil, []uint32{10, 20}, nil, types.ModeBlock)

	got := scanAll(t, db, "foobar")

	assert.Equal(t, []types.MatchRecord{
		{ID: 10, From: 0, To: 3},
		{ID: 20, From: 3, To: 6},
	}, got)
}

func TestScan_OrderedByEndThenStart(t *testing.T) {
	db := compileMulti(t, []string{"cd", "abcd"}, nil, nil, nil, types.ModeBlock)

	got := scanAll(t, db, "abcd")

	assert.Equal(t, []types.MatchRecord{
		{ID: 0, From: 0, To: 4},
		{ID: 0, From: 2, To: 4},
	}, got)
}

func TestScan_ExtendedConstraints(t *testing.T) {
	tests := []struct {
		name string
		expr string
		ext  *types.ExprExt
		data string
		want []types.MatchRecord
	}{
		{
			name: "offset window",
			expr: "a",
			ext:  &types.ExprExt{Flags: types.ExtMinOffset | types.ExtMaxOffset, MinOffset: 2, MaxOffset: 3},
			data: "aaaa",
			want: []types.MatchRecord{{From: 1, To: 2}, {From: 2, To: 3}},
		},
		{
			name: "min length",
			expr: "a+",
			ext:  &types.ExprExt{Flags: types.ExtMinLength, MinLength: 2},
			data: "a aaa",
			want: []types.MatchRecord{{From: 2, To: 5}},
		},
		{
			name: "no constraint",
			expr: "a+",
			ext:  nil,
			data: "a aaa",
			want: []types.MatchRecord{{From: 0, To: 1}, {From: 2, To: 5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := compileMulti(t, []string{tt.expr}, nil, nil, []*types.ExprExt{tt.ext}, types.ModeBlock)
			assert.Equal(t, tt.want, scanAll(t, db, tt.data))
		})
	}
}

func TestScan_FlagSemantics(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		flags uint32
		data  string
		want  []types.MatchRecord
	}{
		{"single match", "a", types.SingleMatch, "aaa", []types.MatchRecord{{From: 0, To: 1}}},
		{"quiet", "a", types.Quiet, "aaa", nil},
		{"caseless", "abc", types.Caseless, "xABC", []types.MatchRecord{{From: 1, To: 4}}},
		{"dotall", "a.b", types.DotAll, "a\nb", []types.MatchRecord{{From: 0, To: 3}}},
		{"dot without dotall", "a.b", 0, "a\nb", nil},
		{"anchored", "^abc", 0, "abcabc", []types.MatchRecord{{From: 0, To: 3}}},
		{"multiline anchor", "^abc", types.MultiLine, "x\nabc", []types.MatchRecord{{From: 2, To: 5}}},
		{"word boundary", `\bfoo\b`, 0, "foo food foo", []types.MatchRecord{{From: 0, To: 3}, {From: 9, To: 12}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := compileMulti(t, []string{tt.expr}, []uint32{tt.flags}, nil, nil, types.ModeBlock)
			assert.Equal(t, tt.want, scanAll(t, db, tt.data))
		})
	}
}

func TestCompile_Diagnostics(t *testing.T) {
	tests := []struct {
		name      string
		exprs     []string
		flags     []uint32
		wantIndex int
		contains  string
	}{
		{"unbalanced", []string{"("}, nil, 0, "missing closing )"},
		{"second pattern", []string{"ok", "a[b"}, nil, 1, "missing closing ]"},
		{"empty expression", []string{""}, nil, 0, "empty"},
		{"matches empty", []string{"a*"}, nil, 0, "HS_FLAG_ALLOWEMPTY"},
		{"unknown flag", []string{"abc"}, []uint32{1 << 20}, 0, "Unrecognised flag"},
		{"logical combination", []string{"abc"}, []uint32{types.Logical}, 0, "Logical"},
		{"look-around without prefilter", []string{"foo(?=bar)"}, nil, 0, "(?="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().CompileMulti(tt.exprs, tt.flags, nil, types.ModeBlock, nil)
			require.Error(t, err)

			var ce *engine.CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.wantIndex, ce.Expression)
			assert.NotEmpty(t, ce.Message)
			assert.Contains(t, ce.Message, tt.contains)
		})
	}
}

func TestCompile_NotAttributable(t *testing.T) {
	b := New()

	_, err := b.Compile("abc", 0, 0, nil)
	var ce *engine.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, -1, ce.Expression)

	_, err = b.Compile("abc", 0, types.ModeBlock, &types.Platform{Tune: 42})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, -1, ce.Expression)

	_, err = b.CompileMulti(nil, nil, nil, types.ModeBlock, nil)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, -1, ce.Expression)
}

func TestCompile_MismatchedArrays(t *testing.T) {
	_, err := New().CompileMulti([]string{"a", "b"}, []uint32{0}, nil, types.ModeBlock, nil)

	assert.True(t, errors.Is(err, engine.ErrInvalid))
}

func TestCompile_AllowEmpty(t *testing.T) {
	db := compileMulti(t, []string{"x*"}, []uint32{types.AllowEmpty}, nil, nil, types.ModeBlock)

	got := scanAll(t, db, "ab")

	assert.Equal(t, []types.MatchRecord{{From: 0, To: 0}, {From: 1, To: 1}, {From: 2, To: 2}}, got)
}

func TestCompile_UTF8RequiresValidExpression(t *testing.T) {
	_, err := New().Compile("caf\xe9", types.UTF8, types.ModeBlock, nil)

	var ce *engine.CompileError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, 0, ce.Expression)
	assert.Contains(t, ce.Message, "UTF-8")

	db := compileMulti(t, []string{"café"}, []uint32{types.UTF8}, nil, nil, types.ModeBlock)
	assert.Equal(t, []types.MatchRecord{{From: 1, To: 6}}, scanAll(t, db, " café"))
}

func TestCompile_InvertedOffsets(t *testing.T) {
	ext := &types.ExprExt{Flags: types.ExtMinOffset | types.ExtMaxOffset, MinOffset: 5, MaxOffset: 1}

	_, err := New().CompileExtMulti([]string{"a"}, nil, nil, []*types.ExprExt{ext}, types.ModeBlock, nil)

	assert.True(t, errors.Is(err, engine.ErrCompiler))
}

func TestCompile_PrefilterFallback(t *testing.T) {
	db := compileMulti(t, []string{"foo(?=bar)"}, []uint32{types.Prefilter}, nil, nil, types.ModeBlock)

	got := scanAll(t, db, "foobaz foobar")

	assert.Equal(t, []types.MatchRecord{{From: 7, To: 10}}, got)
}

func TestScan_MultibyteOffsetsAreBytes(t *testing.T) {
	db := compileMulti(t, []string{`\bcafé\b`}, nil, nil, nil, types.ModeBlock)

	got := scanAll(t, db, "ßß café")

	assert.Equal(t, []types.MatchRecord{{From: 5, To: 10}}, got)
}

func TestScan_LiteralGate(t *testing.T) {
	db := compileMulti(t, []string{`secret[0-9]+`, `[a-z]+=`}, nil, []uint32{1, 2}, nil, types.ModeBlock)
	d := db.(*database)
	require.True(t, d.gate.Gated())

	assert.Equal(t, []types.MatchRecord{{ID: 2, From: 0, To: 4}}, scanAll(t, db, "key=value"))
	assert.Equal(t, []types.MatchRecord{{ID: 1, From: 4, To: 12}}, scanAll(t, db, "my: secret42"))
}

func TestScan_CallbackTerminates(t *testing.T) {
	db := compileMulti(t, []string{"a"}, nil, nil, nil, types.ModeBlock)
	s := scratchFor(t, db)
	defer s.Free()

	calls := 0
	err := db.Scan([]byte("aaa"), 0, s, func(id uint32, from, to uint64, flags uint32) error {
		calls++
		return errors.New("stop")
	})

	assert.True(t, errors.Is(err, engine.ErrScanTerminated))
	assert.Equal(t, 1, calls)
}

func TestScan_ModeMismatch(t *testing.T) {
	stream := compileMulti(t, []string{"abc"}, nil, nil, nil, types.ModeStream)
	s := scratchFor(t, stream)
	defer s.Free()
	noop := func(uint32, uint64, uint64, uint32) error { return nil }

	err := stream.Scan([]byte("abc"), 0, s, noop)
	assert.True(t, errors.Is(err, engine.ErrDBMode))

	block := compileMulti(t, []string{"abc"}, nil, nil, nil, types.ModeBlock)
	err = block.ScanVector([][]byte{[]byte("abc")}, 0, s, noop)
	assert.True(t, errors.Is(err, engine.ErrDBMode))
}

func TestScanVector_SpansBlocks(t *testing.T) {
	db := compileMulti(t, []string{"abc"}, nil, []uint32{7}, nil, types.ModeVectored)
	s := scratchFor(t, db)
	defer s.Free()

	var got []types.MatchRecord
	err := db.ScanVector([][]byte{[]byte("xa"), []byte("b"), []byte("cx")}, 0, s, func(id uint32, from, to uint64, flags uint32) error {
		got = append(got, types.MatchRecord{ID: id, From: from, To: to})
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []types.MatchRecord{{ID: 7, From: 1, To: 4}}, got)
}

func TestScratch_Lifecycle(t *testing.T) {
	b := New()
	small := compileMulti(t, []string{"a"}, nil, nil, nil, types.ModeBlock)
	large := compileMulti(t, []string{"a", "b", "c"}, nil, nil, nil, types.ModeBlock)
	noop := func(uint32, uint64, uint64, uint32) error { return nil }

	s, err := b.AllocScratch(small, nil)
	require.NoError(t, err)

	err = large.Scan([]byte("abc"), 0, s, noop)
	assert.True(t, errors.Is(err, engine.ErrInvalid), "scratch too small for large")

	before, err := s.Size()
	require.NoError(t, err)
	grown, err := b.AllocScratch(large, s)
	require.NoError(t, err)
	assert.Same(t, s, grown)
	after, err := s.Size()
	require.NoError(t, err)
	assert.Greater(t, after, before)

	require.NoError(t, large.Scan([]byte("abc"), 0, s, noop))
	require.NoError(t, small.Scan([]byte("abc"), 0, s, noop))

	clone, err := s.Clone()
	require.NoError(t, err)
	cloneSize, err := clone.Size()
	require.NoError(t, err)
	assert.Equal(t, after, cloneSize)
	require.NoError(t, large.Scan([]byte("abc"), 0, clone, noop))

	require.NoError(t, s.Free())
	assert.True(t, errors.Is(s.Free(), engine.ErrInvalid))
	assert.True(t, errors.Is(large.Scan([]byte("abc"), 0, s, noop), engine.ErrInvalid))
	_, err = s.Clone()
	assert.True(t, errors.Is(err, engine.ErrInvalid))

	// The clone is independent of the freed original.
	require.NoError(t, large.Scan([]byte("abc"), 0, clone, noop))
	require.NoError(t, clone.Free())
}

func TestScratch_InUse(t *testing.T) {
	db := compileMulti(t, []string{"a"}, nil, nil, nil, types.ModeBlock)
	s := scratchFor(t, db)
	defer s.Free()

	sc := s.(*scratch)
	require.True(t, sc.acquire())
	err := db.Scan([]byte("a"), 0, s, func(uint32, uint64, uint64, uint32) error { return nil })
	sc.release()

	assert.True(t, errors.Is(err, engine.ErrScratchInUse))
}

func TestDatabase_FreeOnce(t *testing.T) {
	db, err := New().Compile("abc", 0, types.ModeBlock, nil)
	require.NoError(t, err)

	require.NoError(t, db.Free())
	assert.True(t, errors.Is(db.Free(), engine.ErrInvalid))

	_, err = New().AllocScratch(db, nil)
	assert.True(t, errors.Is(err, engine.ErrInvalid))
	_, err = db.Serialize()
	assert.True(t, errors.Is(err, engine.ErrInvalid))
}

func TestDatabase_Info(t *testing.T) {
	platform := &types.Platform{CPUFeatures: 0}
	db, err := New().Compile("abc", 0, types.ModeVectored, platform)
	require.NoError(t, err)
	defer db.Free()

	info, err := db.Info()
	require.NoError(t, err)
	assert.Equal(t, "Version: "+Version+" Features:  Mode: VECTORED", info)

	size, err := db.Size()
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestExpressionInfo(t *testing.T) {
	tests := []struct {
		expr  string
		flags uint32
		want  types.ExprInfo
	}{
		{"abc", 0, types.ExprInfo{MinWidth: 3, MaxWidth: 3}},
		{"a+", 0, types.ExprInfo{MinWidth: 1, MaxWidth: types.UnboundedWidth}},
		{"ab?c", 0, types.ExprInfo{MinWidth: 2, MaxWidth: 3}},
		{"a{2,4}", 0, types.ExprInfo{MinWidth: 2, MaxWidth: 4}},
		{"foo|ba", 0, types.ExprInfo{MinWidth: 2, MaxWidth: 3}},
		{"é", 0, types.ExprInfo{MinWidth: 2, MaxWidth: 2}},
		{"k", types.Caseless, types.ExprInfo{MinWidth: 1, MaxWidth: 3}},
		{"abc$", 0, types.ExprInfo{MinWidth: 3, MaxWidth: 3, MatchesAtEOD: true, MatchesOnlyAtEOD: true}},
		{"abc$", types.MultiLine, types.ExprInfo{MinWidth: 3, MaxWidth: 3, MatchesAtEOD: true}},
		{"(abc$|x)", 0, types.ExprInfo{MinWidth: 1, MaxWidth: 3, MatchesAtEOD: true}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := New().ExpressionInfo(tt.expr, tt.flags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestExpressionInfo_Error(t *testing.T) {
	_, err := New().ExpressionInfo("(", 0)

	var ce *engine.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.Expression)
	assert.NotEmpty(t, ce.Message)
}

func TestPopulatePlatform(t *testing.T) {
	p, err := New().PopulatePlatform()

	require.NoError(t, err)
	assert.Equal(t, types.TuneGeneric, p.Tune)
	assert.Zero(t, p.CPUFeatures&^(types.CPUAVX2|types.CPUAVX512|types.CPUAVX512VBMI))
	assert.True(t, runnable(p))
}

func TestRuneOffsets(t *testing.T) {
	assert.Equal(t, []int{0, 1, 3, 4, 5}, runeOffsets("aé\xffb"))
	assert.Equal(t, []int{0}, runeOffsets(""))
}
