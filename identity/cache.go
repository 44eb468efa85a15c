package identity

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/caslist"
)

// FetchFunc loads one entity by id from the source of truth.
type FetchFunc[K comparable, E any] func(ctx context.Context, id K) (*E, error)

// Options tune a Cache. All fields are optional.
type Options[K comparable, E any] struct {
	Name   string         // used in logs and hooks; default "identity"
	IDFunc IDFunc[K, E]   // nil => DefaultID
	Merge  MergeFunc[E]   // nil => Auto
	Logger caslist.Logger // nil => NopLogger
	Hooks  caslist.Hooks  // nil => NopHooks
}

// Cache maps ids to canonical entity instances. It is explicitly constructed
// and owned; there is no package-level state.
type Cache[K comparable, E any] struct {
	name  string
	id    IDFunc[K, E]
	merge MergeFunc[E]
	log   caslist.Logger
	hooks caslist.Hooks

	m     *xsync.MapOf[K, *E]
	group singleflight.Group

	// one ticket per fetch in flight; removed when the fetch returns
	pending *xsync.MapOf[string, *ticket]
}

// ticket marks one in-flight fetch. Forget and Clear drop it so the
// fetch's result is not registered.
type ticket struct{ dropped atomic.Bool }

var _ caslist.Reconciler[*struct{}] = (*Cache[string, struct{}])(nil)

func New[K comparable, E any](opts Options[K, E]) *Cache[K, E] {
	c := &Cache[K, E]{
		name:    opts.Name,
		id:      opts.IDFunc,
		merge:   opts.Merge,
		log:     opts.Logger,
		hooks:   opts.Hooks,
		m:       xsync.NewMapOf[K, *E](),
		pending: xsync.NewMapOf[string, *ticket](),
	}
	if c.name == "" {
		c.name = "identity"
	}
	if c.id == nil {
		c.id = DefaultID[K, E]
	}
	if c.merge == nil {
		c.merge = Auto[E]
	}
	if c.log == nil {
		c.log = caslist.NopLogger{}
	}
	if c.hooks == nil {
		c.hooks = caslist.NopHooks{}
	}
	return c
}

// Reconcile returns the canonical instance for candidate's id, merging
// candidate into it when one exists. Entities without an id are returned as is.
func (c *Cache[K, E]) Reconcile(candidate *E) *E {
	out, _ := c.reconcile(candidate, nil)
	return out
}

// reconcile registers or merges candidate. With a dropped ticket nothing is
// written and candidate comes back with registered false; the check runs
// inside the map's per-key compute so Forget cannot slip in between.
func (c *Cache[K, E]) reconcile(candidate *E, t *ticket) (*E, bool) {
	if candidate == nil {
		return nil, true
	}
	id, ok := c.id(candidate)
	if !ok {
		return candidate, true
	}
	merged, registered := false, true
	canonical, _ := c.m.Compute(id, func(old *E, loaded bool) (*E, bool) {
		if t != nil && t.dropped.Load() {
			registered = false
			return old, !loaded
		}
		if !loaded {
			return candidate, false
		}
		if old != candidate {
			c.merge(old, candidate)
			merged = true
		}
		return old, false
	})
	if !registered {
		return candidate, false
	}
	if merged {
		c.hooks.EntityMerged(c.name, c.key(id))
	}
	return canonical, true
}

// ReconcileAll reconciles every entity in place and returns the slice.
func (c *Cache[K, E]) ReconcileAll(es []*E) []*E {
	for i, e := range es {
		es[i] = c.Reconcile(e)
	}
	return es
}

// Lookup returns the canonical instance for id without fetching.
func (c *Cache[K, E]) Lookup(id K) (*E, bool) {
	return c.m.Load(id)
}

// Forget drops id. Missing ids are a no-op. A fetch for id that is still in
// flight will not register its result.
func (c *Cache[K, E]) Forget(id K) {
	key := c.key(id)
	if t, ok := c.pending.Load(key); ok {
		t.dropped.Store(true)
	}
	c.group.Forget(key)
	c.m.Delete(id)
}

// ForgetEntity drops the entry for e's id, if it has one.
func (c *Cache[K, E]) ForgetEntity(e *E) {
	if e == nil {
		return
	}
	if id, ok := c.id(e); ok {
		c.Forget(id)
	}
}

// Clear drops every entry. Fetches in flight will not register their results.
func (c *Cache[K, E]) Clear() {
	c.pending.Range(func(_ string, t *ticket) bool {
		t.dropped.Store(true)
		return true
	})
	c.m.Clear()
	c.log.Debug("identity cache cleared", caslist.Fields{"cache": c.name})
}

// Len returns the number of canonical instances.
func (c *Cache[K, E]) Len() int {
	return c.m.Size()
}

// Fetch loads id through fn and returns the reconciled result. Concurrent
// calls for the same id share one fn invocation; the shared call is cleared
// when it completes, whatever the outcome. Errors are not cached.
//
// The shared call is detached from ctx cancellation so that one caller giving
// up does not fail the others; ctx only bounds this caller's wait.
func (c *Cache[K, E]) Fetch(ctx context.Context, id K, fn FetchFunc[K, E]) (*E, error) {
	key := c.key(id)
	shared := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (any, error) {
		t := &ticket{}
		c.pending.Store(key, t)
		defer c.pending.Compute(key, func(cur *ticket, loaded bool) (*ticket, bool) {
			// a fetch started after Forget may own the entry by now
			return cur, !loaded || cur == t
		})

		e, err := fn(shared, id)
		if err != nil {
			return nil, err
		}
		out, registered := c.reconcile(e, t)
		if !registered {
			c.log.Debug("fetch result not registered (forgotten while in flight)", caslist.Fields{"cache": c.name, "id": key})
		}
		return out, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.hooks.EntityFetchCoalesced(c.name, key)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		e, _ := res.Val.(*E)
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FetchAsync is Fetch returning a completion handle.
func (c *Cache[K, E]) FetchAsync(ctx context.Context, id K, fn FetchFunc[K, E]) *caslist.Call[*E] {
	return caslist.Go(func() (*E, error) {
		return c.Fetch(ctx, id, fn)
	})
}

func (c *Cache[K, E]) key(id K) string {
	return fmt.Sprint(id)
}
