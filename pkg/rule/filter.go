package rule

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterConfig selects patterns of a set by name.
type FilterConfig struct {
	Include []string // regexes; only matching patterns are kept
	Exclude []string // regexes; matching patterns are dropped
}

// ParsePatterns splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func ParsePatterns(patterns string) []string {
	result := []string{}
	for _, p := range strings.Split(patterns, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter narrows set.Patterns in place. Include is applied first, then
// exclude; an empty include keeps everything. A single-expression set is
// left alone.
func Filter(set *Set, config FilterConfig) error {
	include, err := compileAll(config.Include)
	if err != nil {
		return err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return err
	}
	if set.Expression != nil || (len(include) == 0 && len(exclude) == 0) {
		return nil
	}

	kept := make([]Pattern, 0, len(set.Patterns))
	for _, p := range set.Patterns {
		if len(include) > 0 && !matchesAny(p.Name, include) {
			continue
		}
		if matchesAny(p.Name, exclude) {
			continue
		}
		kept = append(kept, p)
	}
	set.Patterns = kept
	return nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(name string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
