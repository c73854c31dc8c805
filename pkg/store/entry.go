package store

import (
	"fmt"
	"time"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
)

// EntryFor serializes db into a catalog entry named name. An unknown pattern
// count is recorded as 0.
func EntryFor(name string, db *matcher.Database) (*Entry, error) {
	blob, err := db.Serialize()
	if err != nil {
		return nil, err
	}
	info, err := db.Info()
	if err != nil {
		return nil, err
	}
	size, err := db.Size()
	if err != nil {
		return nil, err
	}
	patterns := db.Patterns()
	if patterns < 0 {
		patterns = 0
	}
	return &Entry{
		Name:      name,
		Backend:   matcher.BackendName(),
		Mode:      db.Mode(),
		Patterns:  patterns,
		Info:      info,
		Blob:      blob,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Open deserializes the entry's blob. Entries produced by another engine
// backend are rejected before the engine sees the blob.
func (e *Entry) Open() (*matcher.Database, error) {
	if e.Backend != "" && e.Backend != matcher.BackendName() {
		return nil, fmt.Errorf("entry %q was built by the %s backend, running %s", e.Name, e.Backend, matcher.BackendName())
	}
	return matcher.Deserialize(e.Blob)
}
