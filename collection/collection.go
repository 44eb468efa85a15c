// Package collection is the repository layer around a remote collection.
//
// A Collection owns one identity cache and hands out lists that reconcile
// through it. Writes go to the Transport first; their results are then
// reconciled (create, update), forgotten (delete) or cleared (delete all),
// and any cached pages are invalidated.
package collection

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/caslist"
	"github.com/unkn0wn-root/caslist/identity"
	"github.com/unkn0wn-root/caslist/pagestore"
	"github.com/unkn0wn-root/caslist/tracing"
)

// Transport talks to the source of truth. Implementations own URL shaping,
// auth and retries.
type Transport[K comparable, E any] interface {
	Get(ctx context.Context, id K) (*E, error)
	List(ctx context.Context) (caslist.Page[*E], error)
	Page(ctx context.Context, pageSize, pageIndex int) (caslist.Page[*E], error)
	Create(ctx context.Context, e *E) (*E, error)
	Update(ctx context.Context, e *E) (*E, error)
	Delete(ctx context.Context, id K) error
	DeleteAll(ctx context.Context) error
}

type Options[K comparable, E any] struct {
	Name   string                // default "collection"
	IDFunc identity.IDFunc[K, E] // nil => identity.DefaultID
	Merge  identity.MergeFunc[E] // nil => identity.Auto

	PageSize           int // for Pages when called with 0
	MaxConcurrentPages int

	// PageStore caches transport responses between list instances and, with a
	// shared provider, between processes.
	PageStore *pagestore.Store[caslist.Page[*E]]
	PageTTL   time.Duration

	// Tracer wraps every transport List and Page call in a span. Page store
	// hits are not traced.
	Tracer trace.Tracer

	Logger caslist.Logger
	Hooks  caslist.Hooks
}

type Collection[K comparable, E any] struct {
	name      string
	transport Transport[K, E]
	ids       *identity.Cache[K, E]
	store     *pagestore.Store[caslist.Page[*E]]
	pageTTL   time.Duration
	pageSize  int
	maxPages  int
	tracer    trace.Tracer
	log       caslist.Logger
	hooks     caslist.Hooks
}

func New[K comparable, E any](transport Transport[K, E], opts Options[K, E]) (*Collection[K, E], error) {
	if transport == nil {
		return nil, &caslist.ConfigError{Field: "Transport", Reason: "is required"}
	}
	c := &Collection[K, E]{
		name:      opts.Name,
		transport: transport,
		store:     opts.PageStore,
		pageTTL:   opts.PageTTL,
		pageSize:  opts.PageSize,
		maxPages:  opts.MaxConcurrentPages,
		tracer:    opts.Tracer,
		log:       opts.Logger,
		hooks:     opts.Hooks,
	}
	if c.name == "" {
		c.name = "collection"
	}
	if c.log == nil {
		c.log = caslist.NopLogger{}
	}
	if c.hooks == nil {
		c.hooks = caslist.NopHooks{}
	}
	c.ids = identity.New(identity.Options[K, E]{
		Name:   c.name,
		IDFunc: opts.IDFunc,
		Merge:  opts.Merge,
		Logger: c.log,
		Hooks:  c.hooks,
	})
	return c, nil
}

// Identity exposes the collection's identity cache.
func (c *Collection[K, E]) Identity() *identity.Cache[K, E] { return c.ids }

// Get fetches id from the transport. Concurrent calls for the same id share
// one request. The result is the canonical instance.
func (c *Collection[K, E]) Get(ctx context.Context, id K) (*E, error) {
	return c.ids.Fetch(ctx, id, c.transport.Get)
}

// Lookup returns the canonical instance for id if one is held. It never fetches.
func (c *Collection[K, E]) Lookup(id K) (*E, bool) { return c.ids.Lookup(id) }

func (c *Collection[K, E]) Create(ctx context.Context, e *E) (*E, error) {
	out, err := c.transport.Create(ctx, e)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return c.ids.Reconcile(out), nil
}

func (c *Collection[K, E]) Update(ctx context.Context, e *E) (*E, error) {
	out, err := c.transport.Update(ctx, e)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return c.ids.Reconcile(out), nil
}

// Delete removes id remotely, then forgets it locally. A get-by-id for id that
// is still in flight will not bring it back.
func (c *Collection[K, E]) Delete(ctx context.Context, id K) error {
	if err := c.transport.Delete(ctx, id); err != nil {
		return err
	}
	c.ids.Forget(id)
	c.invalidate(ctx)
	return nil
}

func (c *Collection[K, E]) DeleteAll(ctx context.Context) error {
	if err := c.transport.DeleteAll(ctx); err != nil {
		return err
	}
	c.ids.Clear()
	c.invalidate(ctx)
	return nil
}

// List returns a non-paginated list over Transport.List. ctx scopes its fetches.
func (c *Collection[K, E]) List(ctx context.Context) (*caslist.List[*E], error) {
	fetch := caslist.ListFunc[*E](c.transport.List)
	if c.tracer != nil {
		fetch = tracing.List(c.tracer, c.name, fetch)
	}
	var beforeReload func(context.Context)
	if c.store != nil {
		fetch = pagestore.CachedList(c.store, c.listGroup(), fetch, c.pageTTL)
		beforeReload = func(ctx context.Context) {
			if err := c.store.Invalidate(ctx, c.listGroup()); err != nil {
				c.log.Warn("page store invalidate on reload failed", caslist.Fields{"collection": c.name, "err": err})
			}
		}
	}
	return caslist.NewList(ctx, fetch, caslist.Options[*E]{
		Name:         c.name,
		Reconciler:   c.ids,
		Logger:       c.log,
		Hooks:        c.hooks,
		BeforeReload: beforeReload,
	})
}

// Pages returns a paginated list over Transport.Page. pageSize 0 uses
// Options.PageSize. Reloading the list also invalidates cached pages.
func (c *Collection[K, E]) Pages(ctx context.Context, pageSize int) (*caslist.PagedList[*E], error) {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	fetch := caslist.PageFunc[*E](c.transport.Page)
	if c.tracer != nil {
		fetch = tracing.Pages(c.tracer, c.name, fetch)
	}
	var beforeReload func(context.Context)
	if c.store != nil {
		pager := pagestore.NewPager(c.store, c.pagesGroup(), fetch, c.pageTTL)
		fetch = pager.Fetch
		beforeReload = func(ctx context.Context) {
			if err := pager.Invalidate(ctx); err != nil {
				c.log.Warn("page store invalidate on reload failed", caslist.Fields{"collection": c.name, "err": err})
			}
		}
	}
	return caslist.NewPagedList(ctx, fetch, caslist.PagedOptions[*E]{
		Name:               c.name,
		PageSize:           pageSize,
		Reconciler:         c.ids,
		Logger:             c.log,
		Hooks:              c.hooks,
		MaxConcurrentPages: c.maxPages,
		BeforeReload:       beforeReload,
	})
}

func (c *Collection[K, E]) invalidate(ctx context.Context) {
	if c.store == nil {
		return
	}
	for _, g := range []string{c.listGroup(), c.pagesGroup()} {
		if err := c.store.Invalidate(ctx, g); err != nil {
			c.log.Warn("page store invalidate failed", caslist.Fields{"collection": c.name, "group": g, "err": err})
		}
	}
}

func (c *Collection[K, E]) listGroup() string  { return c.name + ":list" }
func (c *Collection[K, E]) pagesGroup() string { return c.name + ":pages" }
