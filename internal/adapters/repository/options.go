package repository

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithRetention keeps only the newest n runs after every save. Zero keeps
// everything.
func WithRetention(n int) Option {
	return func(s *SQLiteStore) {
		if n >= 0 {
			s.retention = n
		}
	}
}
