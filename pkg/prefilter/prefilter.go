// Package prefilter gates expressions on a required literal using a single
// Aho-Corasick pass over the input.
package prefilter

import (
	"github.com/cloudflare/ahocorasick"
)

// Prefilter uses Aho-Corasick for efficient keyword matching.
type Prefilter struct {
	matcher         *ahocorasick.Matcher
	keywords        []string         // keyword at each automaton index
	keywordPatterns map[string][]int // keyword -> pattern indices needing it
	ungated         []int            // patterns without keywords (always checked)
	n               int
}

// New creates a prefilter. required[i] is the literal pattern i cannot match
// without; an empty string means pattern i is always checked.
func New(required []string) *Prefilter {
	pf := &Prefilter{
		keywordPatterns: make(map[string][]int),
		n:               len(required),
	}

	for i, keyword := range required {
		if keyword == "" {
			pf.ungated = append(pf.ungated, i)
			continue
		}
		if _, ok := pf.keywordPatterns[keyword]; !ok {
			pf.keywords = append(pf.keywords, keyword)
		}
		pf.keywordPatterns[keyword] = append(pf.keywordPatterns[keyword], i)
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}

	return pf
}

// Gated reports whether any pattern has a keyword.
func (pf *Prefilter) Gated() bool {
	return pf.matcher != nil
}

// Candidates returns, per pattern index, whether the pattern might match
// content (its keyword occurs or it has none). It is safe for concurrent use.
func (pf *Prefilter) Candidates(content []byte) []bool {
	result := make([]bool, pf.n)
	for _, i := range pf.ungated {
		result[i] = true
	}

	if pf.matcher == nil {
		return result
	}

	for _, hit := range pf.matcher.MatchThreadSafe(content) {
		for _, i := range pf.keywordPatterns[pf.keywords[hit]] {
			result[i] = true
		}
	}

	return result
}
