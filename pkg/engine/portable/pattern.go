package portable

import (
	"errors"
	"unicode/utf8"

	"github.com/coregx/coregex"
	"github.com/dlclark/regexp2"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/log"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// knownFlags is every compile flag this engine accepts.
const knownFlags = types.Caseless | types.DotAll | types.MultiLine | types.SingleMatch |
	types.AllowEmpty | types.UTF8 | types.UCP | types.Prefilter | types.SomLeftMost |
	types.Logical | types.Quiet

// finder locates leftmost non-overlapping matches as byte offset pairs.
type finder interface {
	findAll(data []byte) ([][]int, error)
	name() string
}

type coregexFinder struct {
	re *coregex.Regex
}

func (f coregexFinder) findAll(data []byte) ([][]int, error) {
	return f.re.FindAllIndex(data, -1), nil
}

func (coregexFinder) name() string { return "coregex" }

// regexp2Finder handles expressions coregex cannot: anything whose result
// depends on bytes before the search position, and prefilter-mode expressions
// using look-around or back-references.
type regexp2Finder struct {
	re *regexp2.Regexp
}

func (f regexp2Finder) findAll(data []byte) ([][]int, error) {
	s := string(data)
	offsets := runeOffsets(s)

	var spans [][]int
	m, err := f.re.FindStringMatch(s)
	for m != nil && err == nil {
		start := offsets[m.Index]
		end := offsets[m.Index+m.Length]
		spans = append(spans, []int{start, end})
		m, err = f.re.FindNextMatch(m)
	}
	if err != nil {
		return nil, err
	}
	return spans, nil
}

func (regexp2Finder) name() string { return "regexp2" }

// runeOffsets maps rune index to byte offset; the final entry is len(s).
// Invalid bytes decode as one rune each, as regexp2 sees them.
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := 0; i < len(s); {
		offsets = append(offsets, i)
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return append(offsets, len(s))
}

// pattern is one compiled expression of a database.
type pattern struct {
	expression string
	flags      uint32
	id         uint32
	ext        *types.ExprExt
	finder     finder
	gate       string // required literal for the prefilter, "" when ungated
	info       *types.ExprInfo
}

// checkFlags rejects flags this engine cannot honor.
func checkFlags(flags uint32) string {
	if flags&^knownFlags != 0 {
		return "Unrecognised flag."
	}
	if flags&types.Logical != 0 {
		return "Logical combinations are not supported by this engine."
	}
	return ""
}

// compilePattern validates and compiles a single expression. index is used
// only for diagnostics.
func compilePattern(index int, expression string, flags uint32, id uint32, ext *types.ExprExt) (*pattern, error) {
	if msg := checkFlags(flags); msg != "" {
		return nil, engine.NewCompileError(index, msg)
	}
	if expression == "" {
		return nil, engine.NewCompileError(index, "Pattern is empty.")
	}
	if flags&types.UTF8 != 0 && !utf8.ValidString(expression) {
		return nil, engine.NewCompileError(index, "Expression is not valid UTF-8.")
	}
	if ext.Has(types.ExtMinOffset) && ext.Has(types.ExtMaxOffset) && ext.MinOffset > ext.MaxOffset {
		return nil, engine.NewCompileError(index, "In hs_expr_ext, min_offset must be less than or equal to max_offset.")
	}

	src := source(expression, flags)
	p := &pattern{expression: expression, flags: flags, id: id, ext: ext}

	tree, err := parse(src)
	if err != nil {
		if flags&types.Prefilter == 0 {
			return nil, engine.NewCompileError(index, parseMessage(err))
		}
		// Outside Go syntax; only the backtracking engine can take it.
		re, rerr := regexp2.Compile(src, regexp2.None)
		if rerr != nil {
			return nil, engine.NewCompileError(index, parseMessage(err))
		}
		p.finder = regexp2Finder{re: re}
		p.info = &types.ExprInfo{MaxWidth: types.UnboundedWidth}
		log.Debug().Int("expression", index).Str("finder", p.finder.name()).Msg("prefilter fallback")
		return p, nil
	}

	a := analyze(tree)
	if a.minWidth == 0 && flags&types.AllowEmpty == 0 {
		return nil, engine.NewCompileError(index, "Pattern matches empty buffer; use HS_FLAG_ALLOWEMPTY to enable support.")
	}
	p.info = a.exprInfo()
	if len(a.literal) >= minGateLiteral {
		p.gate = a.literal
	}

	p.finder, err = newFinder(src, a.contextual)
	if err != nil {
		return nil, engine.NewCompileError(index, err.Error())
	}
	log.Debug().Int("expression", index).Str("finder", p.finder.name()).Str("gate", p.gate).Msg("compiled expression")
	return p, nil
}

// newFinder picks the automaton for an expression that parsed as Go syntax.
func newFinder(src string, contextual bool) (finder, error) {
	if contextual {
		if re, err := regexp2.Compile(src, regexp2.RE2); err == nil {
			return regexp2Finder{re: re}, nil
		}
	}
	re, err := coregex.Compile(src)
	if err != nil {
		return nil, errors.New(parseMessage(err))
	}
	return coregexFinder{re: re}, nil
}
