package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithNormalizer maps every key before comparison. Keys are compared as exact
// strings by default; a nil normalizer is ignored.
func WithNormalizer(fn func(string) string) Option {
	return func(d *inMemoryDeduper) {
		if fn != nil {
			d.normalize = fn
		}
	}
}

// WithCapacity pre-sizes the seen set.
func WithCapacity(n int) Option {
	return func(d *inMemoryDeduper) {
		if n > 0 {
			d.capacity = n
		}
	}
}
