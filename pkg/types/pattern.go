package types

// Extended constraint flags (HS_EXT_FLAG_*).
const (
	ExtMinOffset uint64 = 1 << 0
	ExtMaxOffset uint64 = 1 << 1
	ExtMinLength uint64 = 1 << 2
)

// ExtConstraints narrows which matches of a pattern are reported.
// Each field is independently optional.
type ExtConstraints struct {
	MinOffset *uint64 // minimum end offset of a match
	MaxOffset *uint64 // maximum end offset of a match
	MinLength *uint64 // minimum match length (to - from)
}

// Empty reports whether no constraint is set.
func (c *ExtConstraints) Empty() bool {
	return c == nil || (c.MinOffset == nil && c.MaxOffset == nil && c.MinLength == nil)
}

// Resolve converts the optional constraints into the engine representation.
// Returns nil when no constraint is present.
func (c *ExtConstraints) Resolve() *ExprExt {
	if c.Empty() {
		return nil
	}
	ext := &ExprExt{}
	if c.MinOffset != nil {
		ext.Flags |= ExtMinOffset
		ext.MinOffset = *c.MinOffset
	}
	if c.MaxOffset != nil {
		ext.Flags |= ExtMaxOffset
		ext.MaxOffset = *c.MaxOffset
	}
	if c.MinLength != nil {
		ext.Flags |= ExtMinLength
		ext.MinLength = *c.MinLength
	}
	return ext
}

// ExprExt is the resolved, engine-facing form of ExtConstraints.
// Only the fields whose bit is set in Flags are meaningful.
type ExprExt struct {
	Flags     uint64
	MinOffset uint64
	MaxOffset uint64
	MinLength uint64
}

// Has reports whether the given ext flag is set.
func (e *ExprExt) Has(flag uint64) bool {
	return e != nil && e.Flags&flag != 0
}

// Accepts reports whether a match span satisfies the constraints.
func (e *ExprExt) Accepts(from, to uint64) bool {
	if e == nil {
		return true
	}
	if e.Has(ExtMinOffset) && to < e.MinOffset {
		return false
	}
	if e.Has(ExtMaxOffset) && to > e.MaxOffset {
		return false
	}
	if e.Has(ExtMinLength) && to-from < e.MinLength {
		return false
	}
	return true
}

// PatternSpec is one compilation unit of a multi-pattern request.
type PatternSpec struct {
	Expression string
	ID         *uint32         // nil = engine default
	Flags      Flags           // nil = no flags
	Ext        *ExtConstraints // nil = no constraints
}

// Uint32 returns a pointer to v, for optional fields.
func Uint32(v uint32) *uint32 { return &v }

// Uint64 returns a pointer to v, for optional fields.
func Uint64(v uint64) *uint64 { return &v }
