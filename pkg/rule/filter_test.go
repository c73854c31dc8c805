package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

func TestParsePatterns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string returns empty slice", "", []string{}},
		{"single pattern", "aws.*", []string{"aws.*"}},
		{"multiple patterns", "aws.*,github.*,token", []string{"aws.*", "github.*", "token"}},
		{"whitespace trimmed", " aws.* , github.* , ", []string{"aws.*", "github.*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePatterns(tt.input))
		})
	}
}

func namedSet(names ...string) *Set {
	set := &Set{Mode: types.ModeBlock}
	for _, n := range names {
		set.Patterns = append(set.Patterns, Pattern{Name: n, PatternSpec: types.PatternSpec{Expression: "x"}})
	}
	return set
}

func patternNames(set *Set) []string {
	names := []string{}
	for _, p := range set.Patterns {
		names = append(names, p.Name)
	}
	return names
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		config   FilterConfig
		expected []string
	}{
		{"no filters", FilterConfig{}, []string{"AWS Key", "AWS Secret", "GitHub Token", "Generic Token"}},
		{"include", FilterConfig{Include: []string{"^AWS"}}, []string{"AWS Key", "AWS Secret"}},
		{"exclude", FilterConfig{Exclude: []string{"Token$"}}, []string{"AWS Key", "AWS Secret"}},
		{"include then exclude", FilterConfig{Include: []string{"AWS", "GitHub"}, Exclude: []string{"Secret"}}, []string{"AWS Key", "GitHub Token"}},
		{"include matches none", FilterConfig{Include: []string{"nomatch"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := namedSet("AWS Key", "AWS Secret", "GitHub Token", "Generic Token")
			require.NoError(t, Filter(set, tt.config))
			assert.Equal(t, tt.expected, patternNames(set))
		})
	}
}

func TestFilter_InvalidRegex(t *testing.T) {
	set := namedSet("a")
	assert.Error(t, Filter(set, FilterConfig{Include: []string{"[invalid"}}))
	assert.Error(t, Filter(set, FilterConfig{Exclude: []string{"(unclosed"}}))
	assert.Len(t, set.Patterns, 1)
}

func TestFilter_SingleExpressionUntouched(t *testing.T) {
	expr := "abc"
	set := &Set{Expression: &expr}

	require.NoError(t, Filter(set, FilterConfig{Include: []string{"nothing"}}))
	assert.Equal(t, "abc", *set.Expression)
}
