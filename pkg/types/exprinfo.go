package types

// UnboundedWidth is reported as MaxWidth when matches can be arbitrarily long.
const UnboundedWidth uint32 = 0xffffffff

// ExprInfo describes a single expression without compiling a database.
type ExprInfo struct {
	MinWidth         uint32 `json:"min_width"`
	MaxWidth         uint32 `json:"max_width"`
	UnorderedMatches bool   `json:"unordered_matches"`
	MatchesAtEOD     bool   `json:"matches_at_eod"`
	MatchesOnlyAtEOD bool   `json:"matches_only_at_eod"`
}
