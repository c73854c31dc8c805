package rule

import "strings"

const extendedPrefix = "(?x)"

// stripExtended rewrites a free-spacing expression into plain syntax:
// unescaped whitespace outside character classes is dropped, as are
// (?# ... ) groups and # comments running to end of line. Expressions that
// do not start with (?x) are returned unchanged unless force is set.
func stripExtended(expr string, force bool) string {
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, extendedPrefix) {
		expr = strings.TrimPrefix(trimmed, extendedPrefix)
	} else if !force {
		return expr
	}

	var b strings.Builder
	b.Grow(len(expr))
	inClass := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '\\':
			b.WriteByte(c)
			if i+1 < len(expr) {
				i++
				b.WriteByte(expr[i])
			}
		case inClass:
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
		case c == '[':
			inClass = true
			b.WriteByte(c)
			// A ']' right after '[' or '[^' is literal.
			if i+1 < len(expr) && expr[i+1] == '^' {
				i++
				b.WriteByte('^')
			}
			if i+1 < len(expr) && expr[i+1] == ']' {
				i++
				b.WriteByte(']')
			}
		case strings.HasPrefix(expr[i:], "(?#"):
			end := strings.IndexByte(expr[i:], ')')
			if end < 0 {
				i = len(expr)
			} else {
				i += end
			}
		case c == '#':
			end := strings.IndexByte(expr[i:], '\n')
			if end < 0 {
				i = len(expr)
			} else {
				i += end
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
