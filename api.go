package caslist

import (
	"context"
)

// UnknownTotal is reported as TotalLength until a response carries (or implies) a total.
const UnknownTotal = -1

// Page is one provider response. Items are in collection order.
// Providers that know the collection size set HasTotal (see NewPage).
type Page[T any] struct {
	Items    []T  `json:"items" msgpack:"items" cbor:"items"`
	Total    int  `json:"total" msgpack:"total" cbor:"total"`
	HasTotal bool `json:"has_total" msgpack:"has_total" cbor:"has_total"`
	Metadata any  `json:"metadata,omitempty" msgpack:"metadata,omitempty" cbor:"metadata,omitempty"`
}

// NewPage returns a page that reports total as the collection length.
func NewPage[T any](items []T, total int) Page[T] {
	return Page[T]{Items: items, Total: total, HasTotal: true}
}

// ListFunc fetches a whole, non-paginated collection.
type ListFunc[T any] func(ctx context.Context) (Page[T], error)

// PageFunc fetches page pageIndex of size pageSize.
type PageFunc[T any] func(ctx context.Context, pageSize, pageIndex int) (Page[T], error)

// Reconciler maps a freshly fetched value to its canonical instance.
// identity.Cache satisfies Reconciler[*E].
type Reconciler[T any] interface {
	Reconcile(T) T
}

// Options tune a List. All fields are optional.
type Options[T any] struct {
	Name       string        // used in logs and hooks; default "list"
	Reconciler Reconciler[T] // nil => values stored as fetched
	Logger     Logger        // nil => NopLogger
	Hooks      Hooks         // nil => NopHooks

	// BeforeReload runs at the start of a Reload that starts a new fetch.
	// Used to invalidate a second-level store the ListFunc reads through.
	BeforeReload func(ctx context.Context)
}

// PagedOptions tune a PagedList.
type PagedOptions[T any] struct {
	Name       string // default "paged"
	PageSize   int    // 0 => DefaultPageSize; capped at MaxPageSize
	Reconciler Reconciler[T]
	Logger     Logger
	Hooks      Hooks

	// MaxConcurrentPages bounds LoadAll. 0 => 4.
	MaxConcurrentPages int

	// BeforeReload runs synchronously at the start of Reload, before the version
	// is bumped. Used to invalidate a second-level page store.
	BeforeReload func(ctx context.Context)
}

// ReloadOptions control PagedList.Reload.
type ReloadOptions struct {
	Clear   bool // drop contents and total immediately
	Preload bool // start loading page 0 right away
}
