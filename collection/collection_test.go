package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/unkn0wn-root/caslist"
	"github.com/unkn0wn-root/caslist/codec"
	"github.com/unkn0wn-root/caslist/pagestore"
	"github.com/unkn0wn-root/caslist/provider/ristretto"
)

type note struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// memTransport is an in-memory remote. It returns fresh copies on every call,
// the way a real transport decodes a new value per response.
type memTransport struct {
	mu        sync.Mutex
	notes     map[string]note
	pageCalls int
	listCalls int
	getCalls  int
	failNext  error
}

func newMemTransport(n int) *memTransport {
	m := &memTransport{notes: map[string]note{}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%02d", i)
		m.notes[id] = note{ID: id, Body: "body " + id}
	}
	return m
}

func (m *memTransport) sorted() []*note {
	ids := make([]string, 0, len(m.notes))
	for id := range m.notes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*note, len(ids))
	for i, id := range ids {
		n := m.notes[id]
		out[i] = &n
	}
	return out
}

func (m *memTransport) Get(_ context.Context, id string) (*note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	n, ok := m.notes[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &n, nil
}

func (m *memTransport) List(context.Context) (caslist.Page[*note], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	all := m.sorted()
	return caslist.NewPage(all, len(all)), nil
}

func (m *memTransport) Page(_ context.Context, size, index int) (caslist.Page[*note], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageCalls++
	all := m.sorted()
	start := min(index*size, len(all))
	end := min(start+size, len(all))
	return caslist.NewPage(all[start:end], len(all)), nil
}

func (m *memTransport) Create(_ context.Context, n *note) (*note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}
	m.notes[n.ID] = *n
	cp := *n
	return &cp, nil
}

func (m *memTransport) Update(ctx context.Context, n *note) (*note, error) {
	return m.Create(ctx, n)
}

func (m *memTransport) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, id)
	return nil
}

func (m *memTransport) DeleteAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = map[string]note{}
	return nil
}

func (m *memTransport) counts() (pages, lists, gets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pageCalls, m.listCalls, m.getCalls
}

func waitCall[T any](t *testing.T, c *caslist.Call[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return v
}

func TestNewRequiresTransport(t *testing.T) {
	_, err := New[string, note](nil, Options[string, note]{})
	var ce *caslist.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateIsVisibleInLists(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport(5)
	c, err := New[string, note](tr, Options[string, note]{Name: "notes"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l, _ := c.List(ctx)
	items := waitCall(t, l.Preload())
	held := items[1]

	updated, err := c.Update(ctx, &note{ID: held.ID, Body: "edited"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated != held || held.Body != "edited" {
		t.Fatalf("update did not merge into the listed instance: %+v", held)
	}
	if got, _ := l.At(1); got.Body != "edited" {
		t.Fatalf("list slot = %+v", got)
	}

	got, err := c.Get(ctx, held.ID)
	if err != nil || got != held {
		t.Fatalf("Get returned %p, want canonical %p (%v)", got, held, err)
	}
}

func TestDeleteForgets(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport(3)
	c, _ := New[string, note](tr, Options[string, note]{})

	if _, err := c.Get(ctx, "01"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := c.Delete(ctx, "01"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Lookup("01"); ok {
		t.Fatalf("deleted entity still cached")
	}

	_, _ = c.Get(ctx, "02")
	if err := c.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if c.Identity().Len() != 0 {
		t.Fatalf("identity cache not cleared")
	}
}

func TestFailedWriteChangesNothing(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport(1)
	c, _ := New[string, note](tr, Options[string, note]{})
	tr.failNext = errors.New("conflict")

	if _, err := c.Create(ctx, &note{ID: "99"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := c.Lookup("99"); ok {
		t.Fatalf("failed create registered an entity")
	}
}

func newStore(t *testing.T) *pagestore.Store[caslist.Page[*note]] {
	t.Helper()
	p, err := ristretto.New(ristretto.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatalf("ristretto: %v", err)
	}
	s, err := pagestore.New(pagestore.Options[caslist.Page[*note]]{
		Namespace:      "test",
		Provider:       &waitingProvider{Provider: p},
		Codec:          codec.JSON[caslist.Page[*note]]{},
		ComputeSetCost: pagestore.FrameSize,
	})
	if err != nil {
		t.Fatalf("pagestore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// waitingProvider makes ristretto writes visible before Set returns.
type waitingProvider struct{ *ristretto.Provider }

func (w *waitingProvider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	ok, err := w.Provider.Set(ctx, key, value, cost, ttl)
	w.Provider.Wait()
	return ok, err
}

func TestPagesReadThroughStore(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport(25)
	c, _ := New[string, note](tr, Options[string, note]{Name: "notes", PageStore: newStore(t), PageSize: 10})

	first, _ := c.Pages(ctx, 0)
	if err := first.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if pages, _, _ := tr.counts(); pages != 3 {
		t.Fatalf("transport page calls = %d, want 3", pages)
	}

	// a second view over the same collection is served from the store
	second, _ := c.Pages(ctx, 10)
	if err := second.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if pages, _, _ := tr.counts(); pages != 3 {
		t.Fatalf("second view hit the transport: %d calls", pages)
	}
	a, _ := first.GetItemAtIndex(4)
	b, _ := second.GetItemAtIndex(4)
	if a == nil || a != b {
		t.Fatalf("views should share canonical instances: %p %p", a, b)
	}

	// a write retires cached pages
	if _, err := c.Create(ctx, &note{ID: "25", Body: "new"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	third, _ := c.Pages(ctx, 10)
	_ = third.LoadAll(ctx)
	if pages, _, _ := tr.counts(); pages != 6 {
		t.Fatalf("page calls after create = %d, want 6", pages)
	}
	if third.Len() != 26 {
		t.Fatalf("Len = %d, want 26", third.Len())
	}

	// reloading a view bypasses the store as well
	third.Reload(caslist.ReloadOptions{})
	_ = third.LoadAll(ctx)
	if pages, _, _ := tr.counts(); pages != 9 {
		t.Fatalf("page calls after reload = %d, want 9", pages)
	}
}

func TestListReadThroughStore(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport(4)
	c, _ := New[string, note](tr, Options[string, note]{PageStore: newStore(t)})

	for i := 0; i < 2; i++ {
		l, _ := c.List(ctx)
		if items := waitCall(t, l.Preload()); len(items) != 4 {
			t.Fatalf("items = %d", len(items))
		}
	}
	if _, lists, _ := tr.counts(); lists != 1 {
		t.Fatalf("transport list calls = %d, want 1", lists)
	}
}

func TestListReloadBypassesStoredResponse(t *testing.T) {
	ctx := context.Background()
	tr := newMemTransport(4)
	c, _ := New[string, note](tr, Options[string, note]{PageStore: newStore(t)})

	l, _ := c.List(ctx)
	if items := waitCall(t, l.Preload()); len(items) != 4 {
		t.Fatalf("items = %d", len(items))
	}

	// a change made by someone else, not through the collection
	tr.mu.Lock()
	tr.notes["99"] = note{ID: "99", Body: "remote insert"}
	tr.mu.Unlock()

	if items := waitCall(t, l.Reload(false)); len(items) != 5 {
		t.Fatalf("items after reload = %d, want 5", len(items))
	}
	if _, lists, _ := tr.counts(); lists != 2 {
		t.Fatalf("transport list calls = %d, want 2", lists)
	}
}

func TestTracerWrapsTransportCalls(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	tr := newMemTransport(15)
	c, _ := New[string, note](tr, Options[string, note]{Name: "notes", Tracer: tp.Tracer("test")})
	l, _ := c.Pages(ctx, 10)
	if err := l.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if n := len(rec.Ended()); n != 2 {
		t.Fatalf("spans = %d, want 2", n)
	}
}
