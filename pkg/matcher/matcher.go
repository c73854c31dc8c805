package matcher

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Matcher scans content against one database from any number of goroutines.
// Each call borrows a scratch from an internal pool.
type Matcher struct {
	db     *Database
	pool   *ScratchPool
	config config
	closed atomic.Bool
}

type config struct {
	ownsDatabase bool
	maxMatches   int
	workers      int
	blockSize    int
}

// Option configures a Matcher.
type Option func(*config)

// WithOwnedDatabase makes Close also release the database.
func WithOwnedDatabase() Option {
	return func(c *config) {
		c.ownsDatabase = true
	}
}

// WithMaxMatches stops each scan after n matches (0 = unlimited). The scan
// still succeeds; the result is truncated.
func WithMaxMatches(n int) Option {
	return func(c *config) {
		c.maxMatches = n
	}
}

// WithWorkers sets the goroutine count used by MatchAll.
// Default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithBlockSize sets the block size Match uses to split content for a
// vectored database. Default is DefaultBlockSize.
func WithBlockSize(n int) Option {
	return func(c *config) {
		c.blockSize = n
	}
}

// New returns a Matcher for db.
func New(db *Database, opts ...Option) (*Matcher, error) {
	cfg := config{
		workers:   runtime.GOMAXPROCS(0),
		blockSize: DefaultBlockSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxMatches < 0 {
		return nil, usageError("max_matches", "must not be negative")
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	pool, err := NewScratchPool(db)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate scratch: %w", err)
	}
	return &Matcher{db: db, pool: pool, config: cfg}, nil
}

// Compiled compiles req and returns a Matcher that owns the result.
func Compiled(req CompileRequest, opts ...Option) (*Matcher, error) {
	db, err := Compile(req)
	if err != nil {
		return nil, err
	}
	m, err := New(db, append(opts, WithOwnedDatabase())...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// Database returns the database being scanned.
func (m *Matcher) Database() *Database {
	return m.db
}

// Match scans content. A vectored database sees content split into blocks
// at line boundaries; offsets are still relative to content.
func (m *Matcher) Match(content []byte) ([]types.MatchRecord, error) {
	if m.closed.Load() {
		return nil, ErrReleased
	}
	s, err := m.pool.Get()
	if err != nil {
		return nil, err
	}
	defer m.pool.Put(s)

	if m.db.Mode().Base() == types.ModeVectored {
		return m.db.scanVectored(SplitBlocks(content, m.config.blockSize), s, m.config.maxMatches)
	}
	return m.db.scan(content, s, m.config.maxMatches)
}

// MatchVectored scans blocks as one logical input.
func (m *Matcher) MatchVectored(blocks [][]byte) ([]types.MatchRecord, error) {
	if m.closed.Load() {
		return nil, ErrReleased
	}
	s, err := m.pool.Get()
	if err != nil {
		return nil, err
	}
	defer m.pool.Put(s)
	return m.db.scanVectored(blocks, s, m.config.maxMatches)
}

// MatchAll scans every input on a worker pool and returns results in input
// order. The first error stops the remaining work and is returned.
func (m *Matcher) MatchAll(inputs [][]byte) ([][]types.MatchRecord, error) {
	results := make([][]types.MatchRecord, len(inputs))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		failed   atomic.Bool
	)
	workers := min(m.config.workers, max(len(inputs), 1))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if failed.Load() {
					continue
				}
				recs, err := m.Match(inputs[i])
				if err != nil {
					once.Do(func() {
						firstErr = fmt.Errorf("input %d: %w", i, err)
						failed.Store(true)
					})
					continue
				}
				results[i] = recs
			}
		}()
	}
	for i := range inputs {
		if failed.Load() {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Close releases the scratch pool and, with WithOwnedDatabase, the
// database.
func (m *Matcher) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrReleased
	}
	var errs []error
	if err := m.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to free scratch: %w", err))
	}
	if m.config.ownsDatabase {
		if err := m.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
