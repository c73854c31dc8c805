package matcher

import (
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("scratch pool closed")

// ScratchPool hands out scratches cloned from a template sized for one
// database. Unlike sync.Pool it never drops a scratch silently: every scratch
// it created is released by Close.
type ScratchPool struct {
	mu       sync.Mutex
	template *Scratch
	free     []*Scratch
	created  []*Scratch
	closed   bool
}

// NewScratchPool returns a pool of scratches for db.
func NewScratchPool(db *Database) (*ScratchPool, error) {
	template, err := db.MakeScratch()
	if err != nil {
		return nil, err
	}
	return &ScratchPool{template: template}, nil
}

// Get returns a scratch for exclusive use until Put.
func (p *ScratchPool) Get() (*Scratch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s, nil
	}
	s, err := p.template.Clone()
	if err != nil {
		return nil, err
	}
	p.created = append(p.created, s)
	return s, nil
}

// Put returns s to the pool. Scratches returned after Close are ignored;
// Close already released them.
func (p *ScratchPool) Put(s *Scratch) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.free = append(p.free, s)
	}
}

// Created returns how many scratches the pool has cloned so far.
func (p *ScratchPool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}

// Close releases the template and every scratch the pool created, joining
// any release errors.
func (p *ScratchPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.closed = true

	var errs []error
	for _, s := range p.created {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.template.Close(); err != nil {
		errs = append(errs, err)
	}
	p.free, p.created = nil, nil
	return errors.Join(errs...)
}
