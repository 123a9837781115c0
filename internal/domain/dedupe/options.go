// Package dedupe defines the interface for idempotency tracking.
package dedupe

import "time"

// Option applies a configuration option to the in-memory deduper.
type Option func(*lruDeduper)

// WithMaxSize sets the maximum number of fingerprints kept in memory. The
// least recently used entry is evicted first. Values <= 0 are ignored.
func WithMaxSize(maxSize int) Option {
	return func(d *lruDeduper) {
		if maxSize > 0 {
			d.maxSize = maxSize
		}
	}
}

// WithTTL sets how long a fingerprint is remembered. Zero keeps entries
// until they are evicted by size.
func WithTTL(ttl time.Duration) Option {
	return func(d *lruDeduper) {
		if ttl >= 0 {
			d.ttl = ttl
		}
	}
}
