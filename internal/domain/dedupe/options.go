package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*window)

// WithMaxSize sets how many IDs are remembered. Values <= 0 mean unbounded.
func WithMaxSize(maxSize int) Option {
	return func(w *window) {
		w.maxSize = maxSize
	}
}
