package rule

import (
	"fmt"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Pattern is one entry of a pattern set.
type Pattern struct {
	// Name labels the pattern in output. Optional.
	Name string
	types.PatternSpec
	// Examples must match this pattern; NegativeExamples must not.
	Examples         []string
	NegativeExamples []string
}

// Set is a loaded pattern-set file. It is either a single expression
// (Expression and Flags) or a list of Patterns.
type Set struct {
	Name        string
	Description string
	Mode        types.Mode
	Platform    *types.Platform

	Expression *string
	Flags      types.Flags

	Patterns []Pattern
}

// Request returns the compile request for the set.
func (s *Set) Request() matcher.CompileRequest {
	if s.Expression != nil {
		return matcher.CompileRequest{
			Expression: s.Expression,
			Flags:      s.Flags,
			Mode:       s.Mode,
			Platform:   s.Platform,
		}
	}
	specs := make([]types.PatternSpec, len(s.Patterns))
	for i, p := range s.Patterns {
		specs[i] = p.PatternSpec
	}
	return matcher.CompileRequest{Expressions: specs, Mode: s.Mode, Platform: s.Platform}
}

// Label returns a display name for match id: the name of the first pattern
// with that id, or the id itself.
func (s *Set) Label(id uint32) string {
	for _, p := range s.Patterns {
		var pid uint32
		if p.ID != nil {
			pid = *p.ID
		}
		if p.Name != "" && pid == id {
			return p.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}
