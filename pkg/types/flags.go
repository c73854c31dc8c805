package types

// Compile flags. Values match the Hyperscan C API (HS_FLAG_*), so a flag set
// means the same thing to every backend.
const (
	Caseless    uint32 = 1 << 0  // case-insensitive matching
	DotAll      uint32 = 1 << 1  // '.' matches newlines
	MultiLine   uint32 = 1 << 2  // '^' and '$' match at line boundaries
	SingleMatch uint32 = 1 << 3  // report only the first match per expression
	AllowEmpty  uint32 = 1 << 4  // allow expressions that can match the empty buffer
	UTF8        uint32 = 1 << 5  // treat the expression as UTF-8
	UCP         uint32 = 1 << 6  // Unicode property support for \w, \s, ...
	Prefilter   uint32 = 1 << 7  // compile a prefiltering approximation if needed
	SomLeftMost uint32 = 1 << 8  // report the leftmost start of match
	Logical     uint32 = 1 << 9  // logical combination of other expressions
	Quiet       uint32 = 1 << 10 // never report matches for this expression
)

// flagNames maps the lowercase names accepted by loaders to flag bits.
var flagNames = map[string]uint32{
	"caseless":     Caseless,
	"dotall":       DotAll,
	"multiline":    MultiLine,
	"singlematch":  SingleMatch,
	"allowempty":   AllowEmpty,
	"utf8":         UTF8,
	"ucp":          UCP,
	"prefilter":    Prefilter,
	"som_leftmost": SomLeftMost,
	"combination":  Logical,
	"quiet":        Quiet,
}

// FlagByName returns the flag bit for a lowercase flag name.
func FlagByName(name string) (uint32, bool) {
	v, ok := flagNames[name]
	return v, ok
}

// Flags is either a single bitmask or a combination of bitmasks OR-ed together.
// A nil Flags means "not specified".
type Flags interface {
	// Bits returns the resolved bitmask.
	Bits() uint32
	isFlags()
}

// Scalar is a single bitmask.
type Scalar uint32

// Bits returns the bitmask.
func (s Scalar) Bits() uint32 { return uint32(s) }

func (Scalar) isFlags() {}

// Combination is a set of bitmasks OR-ed together.
type Combination []uint32

// Bits returns the OR of all values.
func (c Combination) Bits() uint32 {
	var bits uint32
	for _, v := range c {
		bits |= v
	}
	return bits
}

func (Combination) isFlags() {}

// BitsOf resolves optional flags, returning 0 when f is nil.
func BitsOf(f Flags) uint32 {
	if f == nil {
		return 0
	}
	return f.Bits()
}
