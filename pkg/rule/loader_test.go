package rule

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

func TestLoad_Single(t *testing.T) {
	set, err := NewLoader().Load([]byte(`
name: one
mode: block
expression: "abc"
flags: [caseless, 2]
`))
	require.NoError(t, err)

	require.NotNil(t, set.Expression)
	assert.Equal(t, "abc", *set.Expression)
	assert.Equal(t, types.Combination{types.Caseless, types.DotAll}, set.Flags)
	assert.Equal(t, types.ModeBlock, set.Mode)

	req := set.Request()
	assert.Equal(t, "abc", *req.Expression)
	assert.Nil(t, req.Expressions)
}

func TestLoad_Multi(t *testing.T) {
	set, err := NewLoader().Load([]byte(`
mode: 4
platform: {tune: 3, cpu_features: [avx2, 8]}
expressions:
  - "plain"
  - {expression: "foo", id: 10, flags: [caseless, dotall], min_offset: 2}
  - expression: "bar"
    name: Bar
    flags: 1
    max_offset: 100
    min_length: 3
`))
	require.NoError(t, err)

	assert.Equal(t, types.ModeVectored, set.Mode)
	assert.Equal(t, &types.Platform{Tune: 3, CPUFeatures: types.CPUAVX2 | types.CPUAVX512}, set.Platform)
	require.Len(t, set.Patterns, 3)

	plain := set.Patterns[0]
	assert.Equal(t, "plain", plain.Expression)
	assert.Nil(t, plain.ID)
	assert.Nil(t, plain.Flags)
	assert.Nil(t, plain.Ext)

	foo := set.Patterns[1]
	assert.Equal(t, uint32(10), *foo.ID)
	assert.Equal(t, types.Caseless|types.DotAll, foo.Flags.Bits())
	assert.Equal(t, uint64(2), *foo.Ext.MinOffset)
	assert.Nil(t, foo.Ext.MaxOffset)

	bar := set.Patterns[2]
	assert.Equal(t, "Bar", bar.Name)
	assert.Equal(t, types.Scalar(1), bar.Flags)
	assert.Equal(t, uint64(100), *bar.Ext.MaxOffset)
	assert.Equal(t, uint64(3), *bar.Ext.MinLength)

	req := set.Request()
	assert.Nil(t, req.Expression)
	assert.Len(t, req.Expressions, 3)
	assert.Equal(t, "Bar", set.Label(0), "bar has the default id")
	assert.Equal(t, "#10", set.Label(10))
}

func TestLoad_Extended(t *testing.T) {
	set, err := NewLoader().Load([]byte(`
mode: block
extended: true
expressions:
  - "a b c"
  - {expression: "d e", extended: false}
  - "(?x) f g"
`))
	require.NoError(t, err)

	assert.Equal(t, "abc", set.Patterns[0].Expression)
	assert.Equal(t, "d e", set.Patterns[1].Expression)
	assert.Equal(t, "fg", set.Patterns[2].Expression)
}

func TestLoad_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"flags as map", "mode: block\nexpression: a\nflags: {x: 1}", "flags"},
		{"unknown flag name", "mode: block\nexpression: a\nflags: [nope]", "flags[0]"},
		{"float flag", "mode: block\nexpression: a\nflags: 1.5", "flags"},
		{"negative flag", "mode: block\nexpression: a\nflags: -1", "flags"},
		{"flag out of range", "mode: block\nexpression: a\nflags: 4294967296", "flags"},
		{"pattern flags", "mode: block\nexpressions:\n  - a\n  - {expression: b, flags: true}", "expressions[1].flags"},
		{"pattern id", "mode: block\nexpressions:\n  - {expression: b, id: x}", "expressions[0].id"},
		{"min offset", "mode: block\nexpressions:\n  - {expression: b, min_offset: -3}", "expressions[0].min_offset"},
		{"entry shape", "mode: block\nexpressions:\n  - [a, b]", "expressions[0]"},
		{"expressions not a list", "mode: block\nexpressions: abc", "expressions"},
		{"cpu feature name", "mode: block\nexpression: a\nplatform: {cpu_features: [sse9]}", "platform.cpu_features[0]"},
		{"tune name", "mode: block\nexpression: a\nplatform: {tune: haswell}", "platform.tune"},
		{"mode name", "mode: sideways\nexpression: a", "mode"},
		{"flags on list", "mode: block\nflags: 1\nexpressions: [a]", "flags"},
		{"neither", "mode: block", ""},
		{"both", "mode: block\nexpression: a\nexpressions: [b]", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().Load([]byte(tt.yaml))

			var ue *matcher.UsageError
			require.True(t, errors.As(err, &ue), "got %v", err)
			assert.Equal(t, tt.field, ue.Field)
			assert.ErrorIs(t, err, matcher.ErrUsage)
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := NewLoader().Load([]byte(`this is not valid yaml: [[[`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "set.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: block\nexpression: abc\n"), 0o644))

	set, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", *set.Expression)

	_, err = NewLoader().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	l := NewLoader()

	names, err := l.BuiltinNames()
	require.NoError(t, err)
	assert.Contains(t, names, "secrets")
	assert.Contains(t, names, "network")

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			set, err := l.Builtin(name)
			require.NoError(t, err)
			require.NoError(t, Validate(set))

			db, err := matcher.Compile(set.Request())
			require.NoError(t, err)
			require.NoError(t, db.Close())

			failures, err := VerifyExamples(set)
			require.NoError(t, err)
			assert.Empty(t, failures)
		})
	}

	_, err = l.Builtin("nope")
	assert.Error(t, err)
}

func TestNewLoaderWithFS(t *testing.T) {
	fsys := fstest.MapFS{
		"sets/b.yaml":    {Data: []byte("mode: block\nexpression: b\n")},
		"sets/a.yaml":    {Data: []byte("mode: block\nexpression: a\n")},
		"sets/notes.txt": {Data: []byte("ignored")},
	}
	l := NewLoaderWithFS(fsys)

	names, err := l.BuiltinNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	set, err := l.Builtin("b")
	require.NoError(t, err)
	assert.Equal(t, "b", *set.Expression)
}
