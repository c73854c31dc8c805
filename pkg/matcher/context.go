package matcher

import (
	"bytes"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Context is a match with the surrounding lines, as shown by the CLI.
// All slices are copies and do not pin the scanned content.
type Context struct {
	Before []byte
	Match  []byte
	After  []byte
}

// ExtractContext returns the match text of rec in content plus up to lines
// full lines before and after it. A record that does not fit content yields
// an empty Context.
func ExtractContext(content []byte, rec types.MatchRecord, lines int) Context {
	start, end := rec.From, rec.To
	if start > end || end > uint64(len(content)) {
		return Context{}
	}
	ctx := Context{Match: bytes.Clone(content[start:end])}
	if lines <= 0 {
		return ctx
	}
	if b := linesBefore(content, int(start), lines); len(b) > 0 {
		ctx.Before = bytes.Clone(b)
	}
	if a := linesAfter(content, int(end), lines); len(a) > 0 {
		ctx.After = bytes.Clone(a)
	}
	return ctx
}

// linesBefore returns content from the start of the line n lines above the
// one containing start, up to start.
func linesBefore(content []byte, start, n int) []byte {
	from := start
	for seen := 0; from > 0; from-- {
		if content[from-1] == '\n' {
			if seen == n {
				break
			}
			seen++
		}
	}
	return content[from:start]
}

// linesAfter returns content from end through the newline closing the nth
// line below the one containing end. A newline right at end belongs to the
// match line and is skipped.
func linesAfter(content []byte, end, n int) []byte {
	if end >= len(content) {
		return nil
	}
	if content[end] == '\n' {
		end++
	}
	to := end
	for seen := 0; to < len(content); to++ {
		if content[to] == '\n' {
			seen++
			if seen == n {
				to++
				break
			}
		}
	}
	return content[end:to]
}
