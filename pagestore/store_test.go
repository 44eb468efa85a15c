package pagestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/caslist"
	"github.com/unkn0wn-root/caslist/codec"
	"github.com/unkn0wn-root/caslist/internal/wire"
	"github.com/unkn0wn-root/caslist/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time
}

type memProvider struct {
	mu     sync.Mutex
	m      map[string]memEntry
	reject bool
}

var _ provider.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

func (p *memProvider) put(key string, v []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = memEntry{v: v}
}

type healHooks struct {
	caslist.NopHooks
	mu       sync.Mutex
	reasons  []string
	rejected int
}

func (h *healHooks) PageSelfHealed(_ string, reason string) {
	h.mu.Lock()
	h.reasons = append(h.reasons, reason)
	h.mu.Unlock()
}

func (h *healHooks) PageSetRejected(string) {
	h.mu.Lock()
	h.rejected++
	h.mu.Unlock()
}

func (h *healHooks) last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reasons) == 0 {
		return ""
	}
	return h.reasons[len(h.reasons)-1]
}

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestStore(t *testing.T, mp provider.Provider, mod func(*Options[caslist.Page[user]])) *Store[caslist.Page[user]] {
	t.Helper()
	opts := Options[caslist.Page[user]]{
		Namespace: "users",
		Provider:  mp,
		Codec:     codec.JSON[caslist.Page[user]]{},
	}
	if mod != nil {
		mod(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestNewRequiresOptions(t *testing.T) {
	cases := map[string]Options[string]{
		"Namespace": {Provider: newMemProvider(), Codec: codec.JSON[string]{}},
		"Provider":  {Namespace: "ns", Codec: codec.JSON[string]{}},
		"Codec":     {Namespace: "ns", Provider: newMemProvider()},
	}
	for field, opts := range cases {
		_, err := New(opts)
		var ce *caslist.ConfigError
		if !errors.As(err, &ce) || ce.Field != field {
			t.Fatalf("missing %s: err = %v", field, err)
		}
	}
}

func TestCASFlow(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &healHooks{}
	s := newTestStore(t, mp, func(o *Options[caslist.Page[user]]) { o.Hooks = hooks })

	page := caslist.NewPage([]user{{ID: "1", Name: "Ada"}}, 1)

	if _, ok, err := s.Get(ctx, "all-users", "25:0"); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	obs, err := s.SnapshotGen(ctx, "all-users")
	if err != nil || obs != 0 {
		t.Fatalf("SnapshotGen = %d, %v", obs, err)
	}
	if err := s.SetWithGen(ctx, "all-users", "25:0", page, obs, 0); err != nil {
		t.Fatalf("SetWithGen: %v", err)
	}
	got, ok, err := s.Get(ctx, "all-users", "25:0")
	if err != nil || !ok || len(got.Items) != 1 || got.Items[0].Name != "Ada" || got.Total != 1 {
		t.Fatalf("Get after set: ok=%v err=%v page=%+v", ok, err, got)
	}

	if err := s.Invalidate(ctx, "all-users"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "all-users", "25:0"); ok {
		t.Fatalf("entry must be stale after Invalidate")
	}
	if hooks.last() != "stale_gen" {
		t.Fatalf("heal reason = %q, want stale_gen", hooks.last())
	}
	if mp.has(s.storageKey("all-users", "25:0")) {
		t.Fatalf("stale frame should have been deleted")
	}

	// a writer that observed the old generation must not commit
	if err := s.SetWithGen(ctx, "all-users", "25:0", page, obs, 0); err != nil {
		t.Fatalf("SetWithGen: %v", err)
	}
	if mp.has(s.storageKey("all-users", "25:0")) {
		t.Fatalf("write under old generation should be skipped")
	}
}

func TestInvalidateIsPerGroup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	page := caslist.NewPage([]user{{ID: "1"}}, 1)

	_ = s.SetWithGen(ctx, "a", "k", page, 0, 0)
	_ = s.SetWithGen(ctx, "b", "k", page, 0, 0)
	_ = s.Invalidate(ctx, "a")

	if _, ok, _ := s.Get(ctx, "a", "k"); ok {
		t.Fatalf("group a should be invalidated")
	}
	if _, ok, _ := s.Get(ctx, "b", "k"); !ok {
		t.Fatalf("group b should be untouched")
	}
}

func TestSelfHealCorruptAndUndecodable(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &healHooks{}
	s := newTestStore(t, mp, func(o *Options[caslist.Page[user]]) { o.Hooks = hooks })

	sk := s.storageKey("g", "junk")
	mp.put(sk, []byte("definitely not a frame"))
	if _, ok, err := s.Get(ctx, "g", "junk"); ok || err != nil {
		t.Fatalf("corrupt frame: ok=%v err=%v", ok, err)
	}
	if hooks.last() != "corrupt" || mp.has(sk) {
		t.Fatalf("corrupt frame not healed: reason=%q present=%v", hooks.last(), mp.has(sk))
	}

	sk = s.storageKey("g", "bad-json")
	mp.put(sk, wire.Encode(0, time.Now(), []byte("{not json")))
	if _, ok, _ := s.Get(ctx, "g", "bad-json"); ok {
		t.Fatalf("undecodable payload must miss")
	}
	if hooks.last() != "decode" || mp.has(sk) {
		t.Fatalf("undecodable payload not healed: reason=%q", hooks.last())
	}
}

func TestProviderRejectionReported(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	mp.reject = true
	hooks := &healHooks{}
	s := newTestStore(t, mp, func(o *Options[caslist.Page[user]]) { o.Hooks = hooks })

	if err := s.SetWithGen(ctx, "g", "k", caslist.Page[user]{}, 0, 0); err != nil {
		t.Fatalf("rejection is not an error: %v", err)
	}
	if hooks.rejected != 1 {
		t.Fatalf("rejected = %d, want 1", hooks.rejected)
	}
}

func TestDisabledStore(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, func(o *Options[caslist.Page[user]]) { o.Disabled = true })

	if s.Enabled() {
		t.Fatalf("Enabled() = true")
	}
	_ = s.SetWithGen(ctx, "g", "k", caslist.NewPage([]user{{ID: "1"}}, 1), 0, 0)
	if mp.has(s.storageKey("g", "k")) {
		t.Fatalf("disabled store must not write")
	}
	if _, ok, _ := s.Get(ctx, "g", "k"); ok {
		t.Fatalf("disabled store must miss")
	}
}

func TestCostFunc(t *testing.T) {
	var gotCost int64
	mp := &costProvider{memProvider: newMemProvider(), cost: &gotCost}
	s := newTestStore(t, mp, func(o *Options[caslist.Page[user]]) { o.ComputeSetCost = FrameSize })
	_ = s.SetWithGen(context.Background(), "g", "k", caslist.NewPage([]user{{ID: "1"}}, 1), 0, 0)
	raw, _, _ := mp.Get(context.Background(), s.storageKey("g", "k"))
	if gotCost != int64(len(raw)) || gotCost == 0 {
		t.Fatalf("cost = %d, frame len = %d", gotCost, len(raw))
	}
}

type costProvider struct {
	*memProvider
	cost *int64
}

func (p *costProvider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	*p.cost = cost
	return p.memProvider.Set(ctx, key, value, cost, ttl)
}
