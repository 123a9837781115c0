// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Deduper maps request fingerprints to the job that first carried them, so
// identical submissions resolve to one analysis.
type Deduper interface {
	// Claim atomically records jobID for fingerprint unless the fingerprint is
	// already held. It returns the holder's job id and true when it was.
	Claim(ctx context.Context, fingerprint, jobID string) (existing string, seen bool)

	// Release forgets a fingerprint so it can be submitted again, but only
	// while jobID still holds it. It reports whether the entry was removed.
	Release(ctx context.Context, fingerprint, jobID string) bool

	Size() int
}

// lruDeduper implements Deduper on a size-bounded LRU whose entries expire
// after a TTL.
type lruDeduper struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, string]
	maxSize int
	ttl     time.Duration
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &lruDeduper{
		maxSize: 10_000,
		ttl:     10 * time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cache = expirable.NewLRU[string, string](d.maxSize, nil, d.ttl)
	return d
}

func (d *lruDeduper) Claim(_ context.Context, fingerprint, jobID string) (string, bool) {
	// Get and Add are individually safe; the lock makes the pair atomic.
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.cache.Get(fingerprint); ok {
		return existing, true
	}
	d.cache.Add(fingerprint, jobID)
	return jobID, false
}

func (d *lruDeduper) Release(_ context.Context, fingerprint, jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	holder, ok := d.cache.Peek(fingerprint)
	if !ok || holder != jobID {
		return false
	}
	return d.cache.Remove(fingerprint)
}

// Size returns the current number of live entries.
func (d *lruDeduper) Size() int {
	return d.cache.Len()
}
