// Package pagestore is an optional second-level cache for provider responses.
//
// Entries are grouped (one group per list). Every group has a generation;
// a write commits only if the generation it observed before fetching is still
// current, and a read only trusts frames stamped with the current generation.
// Invalidate bumps the generation, which retires the whole group at once
// without enumerating its keys.
package pagestore

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/caslist"
	"github.com/unkn0wn-root/caslist/codec"
	"github.com/unkn0wn-root/caslist/genstore"
	"github.com/unkn0wn-root/caslist/internal/wire"
	"github.com/unkn0wn-root/caslist/provider"
)

type Store[V any] struct {
	ns         string
	provider   provider.Provider
	codec      codec.Codec[V]
	log        caslist.Logger
	hooks      caslist.Hooks
	gen        genstore.GenStore
	defaultTTL time.Duration
	cost       SetCostFunc
	enabled    bool
	now        func() time.Time
}

func New[V any](opts Options[V]) (*Store[V], error) {
	if opts.Namespace == "" {
		return nil, &caslist.ConfigError{Field: "Namespace", Reason: "is required"}
	}
	if opts.Provider == nil {
		return nil, &caslist.ConfigError{Field: "Provider", Reason: "is required"}
	}
	if opts.Codec == nil {
		return nil, &caslist.ConfigError{Field: "Codec", Reason: "is required"}
	}

	s := &Store[V]{
		ns:         opts.Namespace,
		provider:   opts.Provider,
		codec:      opts.Codec,
		log:        coalesce[caslist.Logger](opts.Logger, caslist.NopLogger{}),
		hooks:      coalesce[caslist.Hooks](opts.Hooks, caslist.NopHooks{}),
		defaultTTL: coalesce(opts.DefaultTTL, defaultTTL),
		cost:       opts.ComputeSetCost,
		enabled:    !opts.Disabled,
		now:        time.Now,
	}
	if s.cost == nil {
		s.cost = func(string, []byte) int64 { return 1 }
	}
	if opts.GenStore != nil {
		s.gen = opts.GenStore
	} else {
		s.gen = genstore.NewLocalGenStore(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}
	return s, nil
}

func (s *Store[V]) Enabled() bool { return s.enabled }

// Close closes the generation store, then the provider.
func (s *Store[V]) Close(ctx context.Context) error {
	genErr := s.gen.Close(ctx)
	return errors.Join(genErr, s.provider.Close(ctx))
}

// Get returns the entry for (group, key) if it was written under the group's
// current generation. Untrusted entries are deleted and reported as a miss.
func (s *Store[V]) Get(ctx context.Context, group, key string) (V, bool, error) {
	var zero V
	if !s.enabled {
		return zero, false, nil
	}
	sk := s.storageKey(group, key)
	raw, ok, err := s.provider.Get(ctx, sk)
	if err != nil || !ok {
		return zero, false, err
	}
	f, err := wire.Decode(raw)
	if err != nil {
		s.heal(ctx, sk, "corrupt")
		return zero, false, nil
	}
	cur, err := s.SnapshotGen(ctx, group)
	if err != nil {
		// cannot prove freshness; leave the entry for when the gen store is back
		return zero, false, nil
	}
	if f.Gen != cur {
		s.heal(ctx, sk, "stale_gen")
		return zero, false, nil
	}
	v, err := s.codec.Decode(f.Payload)
	if err != nil {
		s.heal(ctx, sk, "decode")
		return zero, false, nil
	}
	s.log.Debug("page store hit", caslist.Fields{"group": group, "key": key, "age": s.now().Sub(f.StoredAt)})
	return v, true, nil
}

// SetWithGen stores v only if the group generation still equals observedGen.
// ttl 0 means DefaultTTL.
func (s *Store[V]) SetWithGen(ctx context.Context, group, key string, v V, observedGen uint64, ttl time.Duration) error {
	if !s.enabled {
		return nil
	}
	cur, err := s.SnapshotGen(ctx, group)
	if err != nil {
		return err
	}
	if cur != observedGen {
		s.log.Debug("page store write skipped (generation moved)", caslist.Fields{"group": group, "key": key, "observed": observedGen, "current": cur})
		return nil
	}
	payload, err := s.codec.Encode(v)
	if err != nil {
		return err
	}
	sk := s.storageKey(group, key)
	frame := wire.Encode(observedGen, s.now(), payload)
	ok, err := s.provider.Set(ctx, sk, frame, s.cost(sk, frame), coalesce(ttl, s.defaultTTL))
	if err != nil {
		return err
	}
	if !ok {
		s.hooks.PageSetRejected(sk)
		s.log.Debug("page store write rejected by provider", caslist.Fields{"group": group, "key": key})
	}
	return nil
}

// Invalidate retires every entry of group. Old frames are removed lazily on read.
func (s *Store[V]) Invalidate(ctx context.Context, group string) error {
	if !s.enabled {
		return nil
	}
	g, err := s.gen.Bump(ctx, s.genKey(group))
	if err != nil {
		s.hooks.PageGenError(group, err)
		s.log.Error("page store invalidate failed", caslist.Fields{"group": group, "err": err})
		return err
	}
	s.log.Debug("page store group invalidated", caslist.Fields{"group": group, "gen": g})
	return nil
}

// SnapshotGen returns the group's current generation. Capture it before a
// fetch and hand it to SetWithGen afterwards.
func (s *Store[V]) SnapshotGen(ctx context.Context, group string) (uint64, error) {
	g, err := s.gen.Snapshot(ctx, s.genKey(group))
	if err != nil {
		s.hooks.PageGenError(group, err)
		return 0, err
	}
	return g, nil
}

func (s *Store[V]) heal(ctx context.Context, sk, reason string) {
	_ = s.provider.Del(ctx, sk)
	s.hooks.PageSelfHealed(sk, reason)
}

func (s *Store[V]) storageKey(group, key string) string {
	return "page:" + s.ns + ":" + group + ":" + key
}

func (s *Store[V]) genKey(group string) string {
	return s.ns + ":" + group
}
