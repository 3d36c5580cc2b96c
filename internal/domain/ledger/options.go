package ledger

// Option applies a configuration option to the InMemoryLedger.
type Option func(*InMemoryLedger)

// WithCapacity pre-sizes the ledger for the expected participant count.
func WithCapacity(n int) Option {
	return func(l *InMemoryLedger) {
		if n > 0 {
			l.capacity = n
		}
	}
}
