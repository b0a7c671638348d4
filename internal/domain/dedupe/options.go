package dedupe

// Option tunes the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps the number of mention keys remembered in one scan.
// Zero or less remembers every key.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = n
	}
}
