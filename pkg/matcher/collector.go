package matcher

import (
	"errors"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// errLimitReached stops a scan once a collector is full.
var errLimitReached = errors.New("match limit reached")

// collector accumulates match events in the order the engine reports them.
// With limit 0 it always asks the engine to continue.
type collector struct {
	records   []types.MatchRecord
	limit     int
	truncated bool
}

func newCollector(limit int) *collector {
	return &collector{records: make([]types.MatchRecord, 0, 16), limit: limit}
}

func (c *collector) onMatch(id uint32, from, to uint64, _ uint32) error {
	c.records = append(c.records, types.MatchRecord{ID: id, From: from, To: to})
	if c.limit > 0 && len(c.records) >= c.limit {
		c.truncated = true
		return errLimitReached
	}
	return nil
}
