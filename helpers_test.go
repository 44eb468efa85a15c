package caslist

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type item struct {
	ID   string
	Name string
}

// pageStub serves pages of a collection of total items. Individual pages can
// be held back with hold and released with release.
type pageStub struct {
	total   int  // collection size
	noTotal bool // omit the total from responses

	mu       sync.Mutex
	calls    map[int]int
	gates    map[int]chan struct{}
	fail     map[int]error
	running  int
	maxInFly int
	name     string // prefix for item names, changes to simulate remote edits
}

func newPageStub(total int) *pageStub {
	return &pageStub{
		total: total,
		calls: make(map[int]int),
		gates: make(map[int]chan struct{}),
		fail:  make(map[int]error),
		name:  "v0",
	}
}

func (s *pageStub) hold(page int) {
	s.mu.Lock()
	s.gates[page] = make(chan struct{})
	s.mu.Unlock()
}

func (s *pageStub) release(page int) {
	s.mu.Lock()
	g := s.gates[page]
	delete(s.gates, page)
	s.mu.Unlock()
	if g != nil {
		close(g)
	}
}

func (s *pageStub) failNext(page int, err error) {
	s.mu.Lock()
	s.fail[page] = err
	s.mu.Unlock()
}

func (s *pageStub) rename(prefix string) {
	s.mu.Lock()
	s.name = prefix
	s.mu.Unlock()
}

func (s *pageStub) callsFor(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[page]
}

func (s *pageStub) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *pageStub) fetch(_ context.Context, pageSize, pageIndex int) (Page[item], error) {
	s.mu.Lock()
	s.calls[pageIndex]++
	s.running++
	s.maxInFly = max(s.maxInFly, s.running)
	gate := s.gates[pageIndex]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running--
	if err, ok := s.fail[pageIndex]; ok {
		delete(s.fail, pageIndex)
		return Page[item]{}, err
	}
	var items []item
	for i := pageIndex * pageSize; i < min((pageIndex+1)*pageSize, s.total); i++ {
		items = append(items, item{ID: fmt.Sprint(i), Name: fmt.Sprintf("%s-%d", s.name, i)})
	}
	if s.noTotal {
		return Page[item]{Items: items, Total: UnknownTotal}, nil
	}
	return NewPage(items, s.total), nil
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func wait[T any](t *testing.T, c *Call[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := c.Wait(ctx)
	if err == context.DeadlineExceeded {
		t.Fatalf("call did not complete")
	}
	return v, err
}

func newTestPaged(t *testing.T, stub *pageStub, mod func(*PagedOptions[item])) *PagedList[item] {
	t.Helper()
	opts := PagedOptions[item]{Name: "items", PageSize: 10}
	if mod != nil {
		mod(&opts)
	}
	l, err := NewPagedList(context.Background(), stub.fetch, opts)
	if err != nil {
		t.Fatalf("NewPagedList: %v", err)
	}
	return l
}

func idle[T any](l *PagedList[T]) func() bool {
	return func() bool { return l.State().InFlight == 0 }
}
