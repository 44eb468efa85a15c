package pagestore

import (
	"context"
	"strconv"
	"time"

	"github.com/unkn0wn-root/caslist"
)

// Pager puts a Store in front of a PageFunc. Its Fetch method is itself a
// PageFunc and can be handed straight to caslist.NewPagedList.
//
// Reloading a list does not bypass the store by itself; wire Invalidate into
// PagedOptions.BeforeReload so a reload reaches the remote source.
type Pager[T any] struct {
	store *Store[caslist.Page[T]]
	group string
	fetch caslist.PageFunc[T]
	ttl   time.Duration
}

// NewPager caches fetch under group. ttl 0 uses the store's DefaultTTL.
func NewPager[T any](store *Store[caslist.Page[T]], group string, fetch caslist.PageFunc[T], ttl time.Duration) *Pager[T] {
	return &Pager[T]{store: store, group: group, fetch: fetch, ttl: ttl}
}

func (p *Pager[T]) Fetch(ctx context.Context, pageSize, pageIndex int) (caslist.Page[T], error) {
	key := strconv.Itoa(pageSize) + ":" + strconv.Itoa(pageIndex)
	return readThrough(ctx, p.store, p.group, key, p.ttl, func(ctx context.Context) (caslist.Page[T], error) {
		return p.fetch(ctx, pageSize, pageIndex)
	})
}

// Invalidate retires every cached page of this pager's group.
func (p *Pager[T]) Invalidate(ctx context.Context) error {
	return p.store.Invalidate(ctx, p.group)
}

// CachedList puts a Store in front of a ListFunc. The whole response is one
// entry, key "all" in group.
func CachedList[T any](store *Store[caslist.Page[T]], group string, fetch caslist.ListFunc[T], ttl time.Duration) caslist.ListFunc[T] {
	return func(ctx context.Context) (caslist.Page[T], error) {
		return readThrough(ctx, store, group, "all", ttl, fetch)
	}
}

func readThrough[T any](ctx context.Context, s *Store[caslist.Page[T]], group, key string, ttl time.Duration, fetch func(context.Context) (caslist.Page[T], error)) (caslist.Page[T], error) {
	if !s.Enabled() {
		return fetch(ctx)
	}
	obs, genErr := s.SnapshotGen(ctx, group)
	if genErr == nil {
		page, ok, err := s.Get(ctx, group, key)
		if err != nil {
			s.log.Warn("page store read failed", caslist.Fields{"group": group, "key": key, "err": err})
		} else if ok {
			return page, nil
		}
	}

	page, err := fetch(ctx)
	if err != nil {
		return caslist.Page[T]{}, err
	}
	if genErr == nil {
		if err := s.SetWithGen(ctx, group, key, page, obs, ttl); err != nil {
			s.log.Warn("page store write failed", caslist.Fields{"group": group, "key": key, "err": err})
		}
	}
	return page, nil
}
