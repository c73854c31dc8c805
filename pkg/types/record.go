package types

import "fmt"

// MatchRecord is one reported match span. To is the exclusive end offset.
type MatchRecord struct {
	ID   uint32 `json:"id"`
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Len returns the length of the span.
func (m MatchRecord) Len() uint64 {
	return m.To - m.From
}

func (m MatchRecord) String() string {
	return fmt.Sprintf("id=%d [%d,%d)", m.ID, m.From, m.To)
}
