package caslist

import (
	"context"
	"iter"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type slot[T any] struct {
	value   T
	version uint64
	set     bool
}

type pageKey struct {
	index   int
	version uint64
}

// PagedList is a random-access view over a paginated collection.
// Pages are fetched on first access and written only if no reload happened
// while they were in flight.
type PagedList[T any] struct {
	ctx          context.Context
	name         string
	fetch        PageFunc[T]
	pageSize     int
	maxPages     int
	reconcile    Reconciler[T]
	beforeReload func(context.Context)
	log          Logger
	hooks        Hooks

	mu       sync.Mutex
	slots    []slot[T]
	version  uint64
	inflight map[pageKey]*Call[[]T]
	state    State
	seq      uint64

	// failed pages of the live version; state.Err is set while any remain
	errPages map[int]error

	// version under which state.TotalLength was last set
	totalVersion uint64

	// lowest empty page start seen under boundVersion; -1 when none
	endBound     int
	boundVersion uint64

	subs subscribers
}

// NewPagedList creates an empty list with an unknown total.
// ctx is passed to every fetch; cancel it when the view is discarded.
func NewPagedList[T any](ctx context.Context, fetch PageFunc[T], opts PagedOptions[T]) (*PagedList[T], error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}
	if ctx == nil {
		ctx = context.Background()
	}
	l := &PagedList[T]{
		ctx:          ctx,
		name:         coalesce(opts.Name, "paged"),
		fetch:        fetch,
		pageSize:     clampPageSize(opts.PageSize),
		maxPages:     coalesce(opts.MaxConcurrentPages, defaultMaxConcurrentPages),
		reconcile:    opts.Reconciler,
		beforeReload: opts.BeforeReload,
		inflight:     make(map[pageKey]*Call[[]T]),
		errPages:     make(map[int]error),
		endBound:     -1,
	}
	l.log = coalesce[Logger](opts.Logger, NopLogger{})
	l.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	l.state.TotalLength = UnknownTotal
	return l, nil
}

// PageSize returns the normalised page size.
func (l *PagedList[T]) PageSize() int { return l.pageSize }

// Version returns the live version. It starts at 0 and grows by one per Reload.
func (l *PagedList[T]) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// GetItemAtIndex returns the value at i if its slot is fresh. Otherwise it
// starts loading the page that holds i and returns the zero value and false.
// It never blocks.
func (l *PagedList[T]) GetItemAtIndex(i int) (T, bool) {
	var zero T
	if i < 0 {
		return zero, false
	}
	l.mu.Lock()
	if l.beyondTotalLocked(i) {
		l.mu.Unlock()
		return zero, false
	}
	if l.freshLocked(i) {
		v := l.slots[i].value
		l.mu.Unlock()
		return v, true
	}
	l.mu.Unlock()

	l.LoadPage(i / l.pageSize)
	return zero, false
}

// GetPageAtIndex returns page p if every slot in it is fresh. Otherwise it
// starts loading the page and returns nil and false.
func (l *PagedList[T]) GetPageAtIndex(p int) ([]T, bool) {
	if p < 0 {
		return nil, false
	}
	l.mu.Lock()
	items, ok, past := l.pageLocked(p)
	l.mu.Unlock()
	if ok || past {
		return items, ok
	}

	l.LoadPage(p)
	return nil, false
}

// pageLocked returns the fresh contents of page p. past reports that p lies
// beyond a total learned under the live version.
func (l *PagedList[T]) pageLocked(p int) (items []T, ok, past bool) {
	start := p * l.pageSize
	if p > 0 && l.beyondTotalLocked(start) {
		return nil, false, true
	}
	end := start + l.pageSize
	if l.totalVersion == l.version && l.state.TotalLength != UnknownTotal {
		end = min(end, l.state.TotalLength)
	}
	// an empty page 0 is only complete once the live version knows the total
	if end > len(l.slots) || !l.rangeFreshLocked(start, end) || (end == start && l.totalVersion != l.version) {
		return nil, false, false
	}
	out := make([]T, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, l.slots[i].value)
	}
	return out, true, false
}

// beyondTotalLocked reports whether i lies past a total, or an empty page,
// seen under the live version. Older versions do not bound reads.
func (l *PagedList[T]) beyondTotalLocked(i int) bool {
	if l.endBound >= 0 && l.boundVersion == l.version && i >= l.endBound {
		return true
	}
	total := l.state.TotalLength
	return total != UnknownTotal && l.totalVersion == l.version && i >= total
}

func (l *PagedList[T]) freshLocked(i int) bool {
	return i < len(l.slots) && l.slots[i].set && l.slots[i].version == l.version
}

func (l *PagedList[T]) rangeFreshLocked(start, end int) bool {
	for i := start; i < end; i++ {
		if !l.freshLocked(i) {
			return false
		}
	}
	return true
}

// LoadPage fetches page p under the live version. If that exact page and
// version is already in flight the existing handle is returned.
//
// The handle resolves with the page items once they are written. If a reload
// happened meanwhile the payload is discarded and the handle fails with
// ErrStaleVersion.
func (l *PagedList[T]) LoadPage(p int) *Call[[]T] {
	if p < 0 {
		return Resolved[[]T](nil, nil)
	}
	l.mu.Lock()
	key := pageKey{index: p, version: l.version}
	if c, ok := l.inflight[key]; ok {
		l.mu.Unlock()
		l.hooks.FetchDeduped(l.name, p, key.version)
		l.log.Debug("page fetch deduped", Fields{"list": l.name, "page": p, "version": key.version})
		return c
	}
	c := newCall[[]T]()
	l.inflight[key] = c
	l.state.InFlight++
	l.state.IsLoading = true
	st := l.stateLocked()
	l.mu.Unlock()

	l.hooks.FetchStarted(l.name, p, key.version)
	l.subs.notify(st)
	go l.runPage(c, key)
	return c
}

func (l *PagedList[T]) runPage(c *Call[[]T], key pageKey) {
	page, err := l.fetch(l.ctx, l.pageSize, key.index)

	l.mu.Lock()
	delete(l.inflight, key)
	l.state.InFlight--
	l.state.IsLoading = l.state.InFlight > 0
	live := l.version

	if key.version != live {
		st := l.stateLocked()
		l.mu.Unlock()

		l.hooks.StaleDropped(l.name, key.index, key.version, live)
		l.log.Debug("stale page dropped", Fields{
			"list": l.name, "page": key.index, "requestVersion": key.version, "liveVersion": live,
		})
		if err == nil {
			err = ErrStaleVersion
		}
		c.resolve(nil, err)
		l.subs.notify(st)
		return
	}

	l.state.IsReloading = false
	if err != nil {
		err = &FetchError{List: l.name, Page: key.index, Version: key.version, Err: err}
		l.state.Err = err
		l.errPages[key.index] = err
		st := l.stateLocked()
		l.mu.Unlock()

		l.hooks.FetchFailed(l.name, key.index, err)
		l.log.Warn("page fetch failed", Fields{"list": l.name, "page": key.index, "err": err})
		c.resolve(nil, err)
		l.subs.notify(st)
		return
	}

	items := reconcileAll(l.reconcile, page.Items)
	l.applyLocked(key, page, items)
	st := l.stateLocked()
	l.mu.Unlock()

	l.log.Debug("page loaded", Fields{"list": l.name, "page": key.index, "version": key.version, "count": len(items)})
	c.resolve(items, nil)
	l.subs.notify(st)
}

func (l *PagedList[T]) applyLocked(key pageKey, page Page[T], items []T) {
	base := key.index * l.pageSize
	end := base + len(items)
	if len(items) > 0 && end > len(l.slots) {
		grown := make([]slot[T], end)
		copy(grown, l.slots)
		l.slots = grown
	}
	for i, v := range items {
		l.slots[base+i] = slot[T]{value: v, version: key.version, set: true}
	}

	switch {
	case page.HasTotal:
		l.state.TotalLength = page.Total
		l.totalVersion = key.version
	case len(items) < l.pageSize:
		l.inferTotalLocked(key, base, end)
	}
	if total := l.state.TotalLength; l.totalVersion == key.version && total != UnknownTotal && len(l.slots) > total {
		l.slots = l.slots[:total]
	}
	if page.Metadata != nil {
		l.state.Metadata = page.Metadata
	}
	if _, failed := l.errPages[key.index]; failed {
		delete(l.errPages, key.index)
		l.state.Err = l.remainingErrLocked()
	}

	now := time.Now()
	l.state.LoadedAt = now
	wasFull := l.state.IsFullyLoaded
	l.state.IsFullyLoaded = l.fullyLoadedLocked()
	if l.state.IsFullyLoaded && !wasFull {
		l.state.FullyLoadedAt = now
	}
}

// inferTotalLocked treats a short page ending at end as the end of the
// collection. An empty page only fixes the total when the page before it is
// fresh; otherwise it just bounds further reads. The smallest total seen under
// the live version wins, and none is taken while fresh slots follow end.
func (l *PagedList[T]) inferTotalLocked(key pageKey, base, end int) {
	if base == end && base > 0 && !l.freshLocked(base-1) {
		if l.endBound < 0 || l.boundVersion != key.version || base < l.endBound {
			l.endBound = base
			l.boundVersion = key.version
		}
		return
	}
	for i := end; i < len(l.slots); i++ {
		if l.freshLocked(i) {
			l.log.Debug("short page ignored, fresh items follow it", Fields{"list": l.name, "page": key.index, "version": key.version})
			return
		}
	}
	if cur := l.state.TotalLength; l.totalVersion == key.version && cur != UnknownTotal && cur < end {
		return
	}
	l.state.TotalLength = end
	l.totalVersion = key.version
}

// remainingErrLocked returns the error of the lowest still-failed page.
func (l *PagedList[T]) remainingErrLocked() error {
	lowest, err := -1, error(nil)
	for p, e := range l.errPages {
		if lowest == -1 || p < lowest {
			lowest, err = p, e
		}
	}
	return err
}

func (l *PagedList[T]) fullyLoadedLocked() bool {
	total := l.state.TotalLength
	if total == UnknownTotal || l.totalVersion != l.version || len(l.slots) < total {
		return false
	}
	return l.rangeFreshLocked(0, total)
}

// Reload invalidates every loaded slot by bumping the version. Values stay
// visible through Items until overwritten, unless opts.Clear drops them.
// With opts.Preload the returned handle tracks page 0; otherwise it is
// already resolved. Reload never blocks on the provider.
func (l *PagedList[T]) Reload(opts ReloadOptions) *Call[[]T] {
	if l.beforeReload != nil {
		l.beforeReload(l.ctx)
	}

	l.mu.Lock()
	l.version++
	v := l.version
	if opts.Clear {
		l.slots = nil
		l.state.TotalLength = UnknownTotal
		l.state.Metadata = nil
	}
	l.state.IsFullyLoaded = false
	l.state.IsReloading = true
	l.state.Err = nil
	clear(l.errPages)
	st := l.stateLocked()
	l.mu.Unlock()

	l.hooks.Reloaded(l.name, v, opts.Clear)
	l.log.Debug("list reloaded", Fields{"list": l.name, "version": v, "clear": opts.Clear})
	l.subs.notify(st)

	if opts.Preload {
		return l.LoadPage(0)
	}
	return Resolved[[]T](nil, nil)
}

// GetNextPage loads the page that follows the contiguous fresh prefix.
// Once fully loaded it resolves immediately with no items.
func (l *PagedList[T]) GetNextPage() *Call[[]T] {
	l.mu.Lock()
	if l.state.IsFullyLoaded {
		l.mu.Unlock()
		return Resolved[[]T](nil, nil)
	}
	n := 0
	for n < len(l.slots) && l.freshLocked(n) {
		n++
	}
	l.mu.Unlock()

	return l.LoadPage(n / l.pageSize)
}

// Preload starts loading page 0 unless it is already fresh.
func (l *PagedList[T]) Preload() *Call[[]T] {
	l.mu.Lock()
	items, ok, _ := l.pageLocked(0)
	l.mu.Unlock()
	if ok {
		return Resolved(items, nil)
	}
	return l.LoadPage(0)
}

// LoadAll loads pages until the total is known, then every remaining
// non-fresh page with at most MaxConcurrentPages fetches in flight. Pages that
// shrink the total are followed by another pass until the list is fully loaded.
// It returns the first error. A reload during LoadAll makes it fail with
// ErrStaleVersion; a provider that keeps contradicting itself makes it fail
// with ErrIncomplete.
func (l *PagedList[T]) LoadAll(ctx context.Context) error {
	l.mu.Lock()
	v := l.version
	l.mu.Unlock()

	if _, err := l.Preload().Wait(ctx); err != nil {
		return err
	}

	for pass, stalls := 0, 0; ; {
		l.mu.Lock()
		if l.version != v {
			l.mu.Unlock()
			return ErrStaleVersion
		}
		if l.state.IsFullyLoaded {
			l.mu.Unlock()
			return nil
		}
		if l.state.TotalLength == UnknownTotal || l.totalVersion != l.version {
			l.mu.Unlock()
			// providers without totals: walk forward until a short page ends the list
			items, err := l.GetNextPage().Wait(ctx)
			if err != nil {
				return err
			}
			if len(items) > 0 {
				stalls = 0
			} else if stalls++; stalls >= maxLoadAllPasses {
				return ErrIncomplete
			}
			continue
		}
		pages := l.missingPagesLocked()
		l.mu.Unlock()

		if len(pages) == 0 || pass >= maxLoadAllPasses {
			return ErrIncomplete
		}
		pass++

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.maxPages)
		for _, p := range pages {
			g.Go(func() error {
				_, err := l.LoadPage(p).Wait(gctx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

// missingPagesLocked lists the pages in [0, total) holding a non-fresh slot.
func (l *PagedList[T]) missingPagesLocked() []int {
	total := l.state.TotalLength
	var pages []int
	for p := 0; p*l.pageSize < total; p++ {
		start := p * l.pageSize
		end := min(start+l.pageSize, total)
		if end > len(l.slots) || !l.rangeFreshLocked(start, end) {
			pages = append(pages, p)
		}
	}
	return pages
}

// Items returns a copy of every allocated slot. Slots that were never written
// hold the zero value. Values loaded under an older version are included.
func (l *PagedList[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.slots))
	for i, s := range l.slots {
		out[i] = s.value
	}
	return out
}

// Peek returns whatever the slot at i holds without checking freshness and
// without fetching. ok is false for slots that were never written.
func (l *PagedList[T]) Peek(i int) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.slots) || !l.slots[i].set {
		var zero T
		return zero, false
	}
	return l.slots[i].value, true
}

// Len returns the total when known, otherwise the number of allocated slots.
func (l *PagedList[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.TotalLength != UnknownTotal {
		return l.state.TotalLength
	}
	return len(l.slots)
}

// All iterates over a snapshot of the allocated slots, including empty ones.
func (l *PagedList[T]) All() iter.Seq2[int, T] {
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
func (l *PagedList[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *PagedList[T]) stateLocked() State {
	l.seq++
	st := l.state
	st.Version = l.version
	st.Seq = l.seq
	return st
}

// Subscribe registers fn for every state change. The returned func unsubscribes.
func (l *PagedList[T]) Subscribe(fn func(State)) func() {
	return l.subs.add(fn)
}
