package caslist

const (
	DefaultPageSize = 25
	MaxPageSize     = 1000

	defaultMaxConcurrentPages = 4
	maxLoadAllPasses          = 4
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// clampPageSize applies the default and upper bound to a requested page size.
func clampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
