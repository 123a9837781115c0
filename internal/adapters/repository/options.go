// Package repository defines the analysis job store interface and errors.
package repository

// Option applies a configuration option to the LRUStore.
type Option func(*LRUStore)

// WithCapacity sets the maximum number of jobs kept. Values <= 0 are ignored.
func WithCapacity(n int) Option {
	return func(s *LRUStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithEvictionHook registers a callback invoked with the id of every evicted job.
func WithEvictionHook(fn func(id string)) Option {
	return func(s *LRUStore) {
		s.onEvict = fn
	}
}
