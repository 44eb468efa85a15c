package caslist

import (
	"sync"
	"time"
)

// State is the side-record published alongside a list's contents.
// Lists hand out copies; mutating a State has no effect on the list.
type State struct {
	IsLoading     bool
	IsReloading   bool
	Err           error
	Metadata      any
	TotalLength   int // UnknownTotal until known
	IsFullyLoaded bool
	LoadedAt      time.Time
	FullyLoadedAt time.Time
	Version       uint64
	InFlight      int

	// Seq orders snapshots of one list. A snapshot with a higher Seq is newer.
	Seq uint64
}

// subscribers fans State snapshots out to registered listeners, outside the
// list's lock. Delivery is serialised and ordered by Seq: a snapshot older
// than one already delivered is dropped, and snapshots that arrive while a
// delivery is running are collapsed into the newest one, which the delivering
// goroutine hands out next.
type subscribers struct {
	mu   sync.Mutex
	next uint64
	fns  map[uint64]func(State)

	last       uint64 // Seq of the last delivered snapshot
	pending    State
	hasPending bool
	delivering bool
}

func (s *subscribers) add(fn func(State)) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[uint64]func(State))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(st State) {
	s.mu.Lock()
	if len(s.fns) == 0 || st.Seq <= s.last || (s.hasPending && st.Seq <= s.pending.Seq) {
		s.mu.Unlock()
		return
	}
	s.pending, s.hasPending = st, true
	if s.delivering {
		// a listener notifying from inside its callback lands here too
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for s.hasPending {
		cur := s.pending
		s.hasPending = false
		s.last = cur.Seq
		fns := make([]func(State), 0, len(s.fns))
		for _, fn := range s.fns {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn(cur)
		}
		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

// reconcileAll returns a copy of items with every value passed through r.
func reconcileAll[T any](r Reconciler[T], items []T) []T {
	out := make([]T, len(items))
	for i, v := range items {
		if r != nil {
			v = r.Reconcile(v)
		}
		out[i] = v
	}
	return out
}
