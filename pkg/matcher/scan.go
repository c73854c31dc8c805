package matcher

import (
	"errors"
	"fmt"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Scan runs a block-mode scan of data and returns every match in engine
// order. On error no matches are returned.
func (d *Database) Scan(data []byte, scratch *Scratch) ([]types.MatchRecord, error) {
	return d.scan(data, scratch, 0)
}

// ScanVectored scans blocks as one logical stream. Offsets are relative to
// the concatenation of blocks. The database must be compiled in vectored
// mode.
func (d *Database) ScanVectored(blocks [][]byte, scratch *Scratch) ([]types.MatchRecord, error) {
	return d.scanVectored(blocks, scratch, 0)
}

func (d *Database) scan(data []byte, scratch *Scratch, limit int) ([]types.MatchRecord, error) {
	db, es, err := d.scanHandles(scratch)
	if err != nil {
		return nil, err
	}
	c := newCollector(limit)
	return c.finish(db.Scan(data, 0, es, c.onMatch), "scan")
}

func (d *Database) scanVectored(blocks [][]byte, scratch *Scratch, limit int) ([]types.MatchRecord, error) {
	db, es, err := d.scanHandles(scratch)
	if err != nil {
		return nil, err
	}
	c := newCollector(limit)
	return c.finish(db.ScanVector(blocks, 0, es, c.onMatch), "scan vectored")
}

func (d *Database) scanHandles(scratch *Scratch) (engine.Database, engine.Scratch, error) {
	db, err := d.handle()
	if err != nil {
		return nil, nil, err
	}
	es, err := scratch.handle()
	if err != nil {
		return nil, nil, err
	}
	if scratch.backend != d.backend {
		return nil, nil, usageError("scratch", "belongs to a different backend")
	}
	return db, es, nil
}

// finish converts the engine status into the scan result. A termination the
// collector asked for is a successful, truncated scan.
func (c *collector) finish(err error, op string) ([]types.MatchRecord, error) {
	if err == nil || (c.truncated && errors.Is(err, engine.ErrScanTerminated)) {
		return c.records, nil
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}
