package portable

import (
	"regexp/syntax"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// unbounded marks an infinite maximum width during analysis.
const unbounded int64 = -1

// minGateLiteral is the shortest required literal worth gating on.
const minGateLiteral = 3

// analysis is what the syntax tree tells us about an expression.
type analysis struct {
	minWidth   int64
	maxWidth   int64 // unbounded when matches can be arbitrarily long
	atEOD      bool
	onlyAtEOD  bool
	contextual bool   // depends on bytes before the match start (^, \b, \B)
	literal    string // case-sensitive literal every match contains
}

// source returns the expression with the compile flags applied as an inline
// flag group.
func source(expression string, flags uint32) string {
	var b strings.Builder
	if flags&types.Caseless != 0 {
		b.WriteByte('i')
	}
	if flags&types.DotAll != 0 {
		b.WriteByte('s')
	}
	if flags&types.MultiLine != 0 {
		b.WriteByte('m')
	}
	if b.Len() == 0 {
		return expression
	}
	return "(?" + b.String() + ")" + expression
}

// parse parses the flagged expression with Perl syntax.
func parse(src string) (*syntax.Regexp, error) {
	return syntax.Parse(src, syntax.Perl)
}

// parseMessage strips the Go parser's prefix from a syntax error.
func parseMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "error parsing regexp: ")
}

func analyze(re *syntax.Regexp) analysis {
	lo, hi := widths(re)
	return analysis{
		minWidth:   lo,
		maxWidth:   hi,
		atEOD:      contains(re, syntax.OpEndText, syntax.OpEndLine),
		onlyAtEOD:  endsAtEOD(re),
		contextual: contains(re, syntax.OpBeginLine, syntax.OpBeginText, syntax.OpWordBoundary, syntax.OpNoWordBoundary),
		literal:    requiredLiteral(re),
	}
}

// exprInfo converts an analysis into the public shape.
func (a analysis) exprInfo() *types.ExprInfo {
	info := &types.ExprInfo{
		MinWidth:         clampWidth(a.minWidth),
		MaxWidth:         clampWidth(a.maxWidth),
		MatchesAtEOD:     a.atEOD,
		MatchesOnlyAtEOD: a.onlyAtEOD,
	}
	return info
}

func clampWidth(w int64) uint32 {
	if w == unbounded || w >= int64(types.UnboundedWidth) {
		return types.UnboundedWidth
	}
	return uint32(w)
}

func runeLen(r rune) int64 {
	n := utf8.RuneLen(r)
	if n < 0 {
		return 3 // surrogates and invalid runes match as U+FFFD
	}
	return int64(n)
}

// runeWidths returns the byte widths a literal rune can match, including its
// case-folded variants.
func runeWidths(r rune, fold bool) (int64, int64) {
	lo := runeLen(r)
	hi := lo
	if fold {
		for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
			n := runeLen(f)
			lo = min(lo, n)
			hi = max(hi, n)
		}
	}
	return lo, hi
}

func addWidth(a, b int64) int64 {
	if a == unbounded || b == unbounded {
		return unbounded
	}
	return a + b
}

func mulWidth(w int64, n int) int64 {
	if w == unbounded {
		if n == 0 {
			return 0
		}
		return unbounded
	}
	return w * int64(n)
}

func maxWidth(a, b int64) int64 {
	if a == unbounded || b == unbounded {
		return unbounded
	}
	return max(a, b)
}

// widths computes the minimum and maximum match length in bytes.
func widths(re *syntax.Regexp) (int64, int64) {
	switch re.Op {
	case syntax.OpLiteral:
		var lo, hi int64
		fold := re.Flags&syntax.FoldCase != 0
		for _, r := range re.Rune {
			l, h := runeWidths(r, fold)
			lo += l
			hi += h
		}
		return lo, hi
	case syntax.OpCharClass:
		if len(re.Rune) == 0 {
			return 0, 0
		}
		return runeLen(re.Rune[0]), runeLen(re.Rune[len(re.Rune)-1])
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return 1, utf8.UTFMax
	case syntax.OpCapture:
		return widths(re.Sub[0])
	case syntax.OpStar:
		_, hi := widths(re.Sub[0])
		if hi == 0 {
			return 0, 0
		}
		return 0, unbounded
	case syntax.OpPlus:
		lo, hi := widths(re.Sub[0])
		if hi == 0 {
			return lo, 0
		}
		return lo, unbounded
	case syntax.OpQuest:
		_, hi := widths(re.Sub[0])
		return 0, hi
	case syntax.OpRepeat:
		lo, hi := widths(re.Sub[0])
		if re.Max == -1 {
			if hi == 0 {
				return mulWidth(lo, re.Min), 0
			}
			return mulWidth(lo, re.Min), unbounded
		}
		return mulWidth(lo, re.Min), mulWidth(hi, re.Max)
	case syntax.OpConcat:
		var lo, hi int64
		for _, sub := range re.Sub {
			l, h := widths(sub)
			lo = addWidth(lo, l)
			hi = addWidth(hi, h)
		}
		return lo, hi
	case syntax.OpAlternate:
		lo, hi := widths(re.Sub[0])
		for _, sub := range re.Sub[1:] {
			l, h := widths(sub)
			lo = min(lo, l)
			hi = maxWidth(hi, h)
		}
		return lo, hi
	default:
		// empty match, anchors, word boundaries, no-match
		return 0, 0
	}
}

func contains(re *syntax.Regexp, ops ...syntax.Op) bool {
	for _, op := range ops {
		if re.Op == op {
			return true
		}
	}
	for _, sub := range re.Sub {
		if contains(sub, ops...) {
			return true
		}
	}
	return false
}

// endsAtEOD reports whether every match must end at end of data.
func endsAtEOD(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpEndText:
		return true
	case syntax.OpCapture:
		return endsAtEOD(re.Sub[0])
	case syntax.OpConcat:
		return len(re.Sub) > 0 && endsAtEOD(re.Sub[len(re.Sub)-1])
	case syntax.OpAlternate:
		for _, sub := range re.Sub {
			if !endsAtEOD(sub) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// requiredLiteral returns the longest case-sensitive literal that every match
// of re contains, or "".
func requiredLiteral(re *syntax.Regexp) string {
	switch re.Op {
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 {
			return ""
		}
		return string(re.Rune)
	case syntax.OpCapture, syntax.OpPlus:
		return requiredLiteral(re.Sub[0])
	case syntax.OpRepeat:
		if re.Min < 1 {
			return ""
		}
		return requiredLiteral(re.Sub[0])
	case syntax.OpConcat:
		best := ""
		for _, sub := range re.Sub {
			if lit := requiredLiteral(sub); len(lit) > len(best) {
				best = lit
			}
		}
		return best
	default:
		return ""
	}
}
