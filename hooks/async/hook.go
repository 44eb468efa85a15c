// Package asynchook moves hook delivery off the list's goroutines.
//
// Events go into a bounded queue drained by a fixed set of workers. When the
// queue is full the event is dropped; the list never waits on a slow sink.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{StaleEvery: 10})
//	hooks := asynchook.New(raw, 1, 1024)
//	defer hooks.Close()
//
//	users, _ := caslist.NewPagedList(ctx, fetchUsers, caslist.PagedOptions[*User]{
//	    Name:  "users",
//	    Hooks: hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/caslist"
)

type Hooks struct {
	inner   caslist.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards send vs close
	closed  bool
	dropped atomic.Uint64
}

var _ caslist.Hooks = (*Hooks)(nil)

func New(inner caslist.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close stops accepting events and waits for queued ones to be delivered.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed wrapper.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchStarted(list string, page int, v uint64) {
	h.try(func() { h.inner.FetchStarted(list, page, v) })
}

func (h *Hooks) FetchDeduped(list string, page int, v uint64) {
	h.try(func() { h.inner.FetchDeduped(list, page, v) })
}

func (h *Hooks) StaleDropped(list string, page int, req, live uint64) {
	h.try(func() { h.inner.StaleDropped(list, page, req, live) })
}

func (h *Hooks) FetchFailed(list string, page int, err error) {
	h.try(func() { h.inner.FetchFailed(list, page, err) })
}

func (h *Hooks) Reloaded(list string, v uint64, clear bool) {
	h.try(func() { h.inner.Reloaded(list, v, clear) })
}

func (h *Hooks) EntityMerged(cache, id string) { h.try(func() { h.inner.EntityMerged(cache, id) }) }

func (h *Hooks) EntityFetchCoalesced(cache, id string) {
	h.try(func() { h.inner.EntityFetchCoalesced(cache, id) })
}

func (h *Hooks) PageSelfHealed(k, reason string) { h.try(func() { h.inner.PageSelfHealed(k, reason) }) }
func (h *Hooks) PageSetRejected(k string)        { h.try(func() { h.inner.PageSetRejected(k) }) }
func (h *Hooks) PageGenError(group string, err error) {
	h.try(func() { h.inner.PageGenError(group, err) })
}
