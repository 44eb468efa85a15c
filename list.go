package caslist

import (
	"context"
	"iter"
	"sync"
	"time"
)

// List is a reactive wrapper around one non-paginated ListFunc.
// At most one fetch is in flight at any time.
type List[T any] struct {
	ctx       context.Context
	name      string
	fetch     ListFunc[T]
	reconcile Reconciler[T]
	before    func(context.Context)
	log       Logger
	hooks     Hooks

	mu       sync.Mutex
	items    []T
	state    State
	inflight *Call[[]T]
	loaded   bool
	seq      uint64

	subs subscribers
}

// NewList creates a list that is empty and not yet loading.
// ctx is passed to every fetch; cancel it when the view is discarded.
func NewList[T any](ctx context.Context, fetch ListFunc[T], opts Options[T]) (*List[T], error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}
	if ctx == nil {
		ctx = context.Background()
	}
	l := &List[T]{
		ctx:       ctx,
		name:      coalesce(opts.Name, "list"),
		fetch:     fetch,
		reconcile: opts.Reconciler,
		before:    opts.BeforeReload,
	}
	l.log = coalesce[Logger](opts.Logger, NopLogger{})
	l.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	l.state.TotalLength = UnknownTotal
	return l, nil
}

// Preload starts the first load. If a load is running its handle is returned;
// once loaded, Preload resolves immediately with the current items.
func (l *List[T]) Preload() *Call[[]T] {
	l.mu.Lock()
	if l.inflight != nil {
		c := l.inflight
		l.mu.Unlock()
		l.hooks.FetchDeduped(l.name, -1, 0)
		return c
	}
	if l.loaded {
		items := l.snapshotItems()
		l.mu.Unlock()
		return Resolved(items, nil)
	}
	c, st := l.startLocked()
	l.mu.Unlock()

	l.subs.notify(st)
	return c
}

// Reload fetches the list again. With clear the current items are dropped
// synchronously first. A reload issued while loading joins the running fetch.
// Options.BeforeReload runs only when a new fetch is about to start.
func (l *List[T]) Reload(clear bool) *Call[[]T] {
	l.mu.Lock()
	changed := false
	if clear && len(l.items) > 0 {
		l.items = nil
		changed = true
	}
	if c, ok := l.joinLocked(changed); ok {
		return c
	}
	if l.before != nil {
		l.mu.Unlock()
		l.before(l.ctx)
		l.mu.Lock()
		// a load may have started while the hook ran
		if c, ok := l.joinLocked(changed); ok {
			return c
		}
	}
	c, st := l.startLocked()
	l.mu.Unlock()

	l.subs.notify(st)
	return c
}

// joinLocked hands out the running fetch, if any, and releases the lock.
func (l *List[T]) joinLocked(changed bool) (*Call[[]T], bool) {
	if l.inflight == nil {
		return nil, false
	}
	c := l.inflight
	st := l.stateLocked()
	l.mu.Unlock()
	if changed {
		l.subs.notify(st)
	}
	l.hooks.FetchDeduped(l.name, -1, 0)
	return c, true
}

func (l *List[T]) startLocked() (*Call[[]T], State) {
	c := newCall[[]T]()
	l.inflight = c
	l.state.IsLoading = true
	l.state.IsReloading = l.loaded
	l.state.InFlight = 1
	st := l.stateLocked()

	l.hooks.FetchStarted(l.name, -1, 0)
	go l.run(c)
	return c, st
}

func (l *List[T]) run(c *Call[[]T]) {
	page, err := l.fetch(l.ctx)

	var items []T
	if err == nil {
		items = reconcileAll(l.reconcile, page.Items)
	}

	l.mu.Lock()
	l.inflight = nil
	l.state.IsLoading = false
	l.state.IsReloading = false
	l.state.InFlight = 0
	if err != nil {
		// prior items are kept; only the error is surfaced
		err = &FetchError{List: l.name, Page: -1, Err: err}
		l.state.Err = err
	} else {
		l.items = items
		l.loaded = true
		l.state.Err = nil
		l.state.Metadata = page.Metadata
		if page.HasTotal {
			l.state.TotalLength = page.Total
		} else {
			l.state.TotalLength = len(items)
		}
		l.state.IsFullyLoaded = true
		now := time.Now()
		l.state.LoadedAt = now
		l.state.FullyLoadedAt = now
		items = l.snapshotItems()
	}
	st := l.stateLocked()
	l.mu.Unlock()

	if err != nil {
		l.hooks.FetchFailed(l.name, -1, err)
		l.log.Warn("list fetch failed", Fields{"list": l.name, "err": err})
		c.resolve(nil, err)
	} else {
		l.log.Debug("list loaded", Fields{"list": l.name, "count": len(items)})
		c.resolve(items, nil)
	}
	l.subs.notify(st)
}

// Items returns a copy of the current contents.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotItems()
}

func (l *List[T]) snapshotItems() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// At returns the item at i; ok is false when i is out of range.
func (l *List[T]) At(i int) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.items) {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// Len returns the number of items currently held.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// All iterates over a snapshot of the current items.
func (l *List[T]) All() iter.Seq2[int, T] {
	items := l.Items()
	return func(yield func(int, T) bool) {
		for i, v := range items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// State returns a snapshot of the side-record.
func (l *List[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *List[T]) stateLocked() State {
	l.seq++
	st := l.state
	st.Seq = l.seq
	return st
}

// Subscribe registers fn for every state change. The returned func unsubscribes.
func (l *List[T]) Subscribe(fn func(State)) func() {
	return l.subs.add(fn)
}
