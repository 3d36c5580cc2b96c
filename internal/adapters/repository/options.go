// Package repository keeps the cross-contest standings.
package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithSeed fixes the source of treap priorities.
func WithSeed(seed int64) Option {
	return func(s *TreapStore) {
		s.seed = seed
	}
}
