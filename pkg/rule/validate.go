package rule

import (
	"errors"
	"fmt"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Validate checks set consistency without compiling it.
func Validate(set *Set) error {
	if set == nil {
		return errors.New("pattern set is nil")
	}
	if set.Expression != nil {
		if *set.Expression == "" {
			return usage("expression", "must not be empty")
		}
		return nil
	}
	if len(set.Patterns) == 0 {
		return fmt.Errorf("pattern set %q has no patterns", set.Name)
	}

	names := make(map[string]int)
	for i, p := range set.Patterns {
		if p.Expression == "" {
			return usage(fmt.Sprintf("expressions[%d].expression", i), "must not be empty")
		}
		if p.Name == "" {
			continue
		}
		if j, ok := names[p.Name]; ok {
			return usage(fmt.Sprintf("expressions[%d].name", i), fmt.Sprintf("%q already used by expressions[%d]", p.Name, j))
		}
		names[p.Name] = i
	}
	return nil
}

// ExampleFailure is an example that did not behave as declared.
type ExampleFailure struct {
	Pattern  int    `json:"pattern"`  // index into Set.Patterns
	Example  string `json:"example"`  // the offending input
	Negative bool   `json:"negative"` // true for a negative example that matched
}

func (f ExampleFailure) String() string {
	if f.Negative {
		return fmt.Sprintf("expressions[%d]: negative example matched: %q", f.Pattern, f.Example)
	}
	return fmt.Sprintf("expressions[%d]: example did not match: %q", f.Pattern, f.Example)
}

// VerifyExamples compiles each pattern of set on its own and scans its
// examples and negative examples. A set without a mode is checked in block
// mode.
func VerifyExamples(set *Set) ([]ExampleFailure, error) {
	mode := set.Mode
	if mode == 0 {
		mode = types.ModeBlock
	}
	var failures []ExampleFailure
	for i, p := range set.Patterns {
		if len(p.Examples) == 0 && len(p.NegativeExamples) == 0 {
			continue
		}
		m, err := matcher.Compiled(matcher.CompileRequest{
			Expressions: []types.PatternSpec{p.PatternSpec},
			Mode:        mode,
			Platform:    set.Platform,
		})
		if err != nil {
			return nil, fmt.Errorf("expressions[%d]: %w", i, err)
		}
		for _, ex := range p.Examples {
			recs, err := m.Match([]byte(ex))
			if err != nil {
				m.Close()
				return nil, fmt.Errorf("expressions[%d]: %w", i, err)
			}
			if len(recs) == 0 {
				failures = append(failures, ExampleFailure{Pattern: i, Example: ex})
			}
		}
		for _, ex := range p.NegativeExamples {
			recs, err := m.Match([]byte(ex))
			if err != nil {
				m.Close()
				return nil, fmt.Errorf("expressions[%d]: %w", i, err)
			}
			if len(recs) > 0 {
				failures = append(failures, ExampleFailure{Pattern: i, Example: ex, Negative: true})
			}
		}
		if err := m.Close(); err != nil {
			return nil, err
		}
	}
	return failures, nil
}
