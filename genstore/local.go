package genstore

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type genEntry struct {
	gen     uint64
	touched int64 // unix nanos of the last Bump
}

// LocalGenStore keeps generations in process memory.
//
// With a positive sweep interval and retention, a background goroutine forgets
// groups not bumped within retention. A forgotten group reads as 0 again, so
// retention must outlast the slowest fetch that captured its generation.
type LocalGenStore struct {
	gens *xsync.MapOf[string, genEntry]

	stop      context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

func NewLocalGenStore(sweepEvery, retention time.Duration) *LocalGenStore {
	s := &LocalGenStore{gens: xsync.NewMapOf[string, genEntry]()}
	if sweepEvery <= 0 || retention <= 0 {
		return s
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.done = make(chan struct{})
	go s.sweep(ctx, sweepEvery, retention)
	return s
}

func (s *LocalGenStore) sweep(ctx context.Context, every, retention time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Cleanup(retention)
		case <-ctx.Done():
			return
		}
	}
}

func (s *LocalGenStore) Snapshot(_ context.Context, group string) (uint64, error) {
	e, _ := s.gens.Load(group)
	return e.gen, nil
}

func (s *LocalGenStore) SnapshotMany(_ context.Context, groups []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(groups))
	for _, g := range groups {
		e, _ := s.gens.Load(g)
		out[g] = e.gen
	}
	return out, nil
}

// Bump increments group's generation atomically and returns the new value.
func (s *LocalGenStore) Bump(_ context.Context, group string) (uint64, error) {
	now := time.Now().UnixNano()
	e, _ := s.gens.Compute(group, func(old genEntry, _ bool) (genEntry, bool) {
		return genEntry{gen: old.gen + 1, touched: now}, false
	})
	return e.gen, nil
}

// Cleanup forgets groups whose last bump is older than retention.
// A group bumped while the sweep runs is kept.
func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention).UnixNano()
	s.gens.Range(func(group string, e genEntry) bool {
		if e.touched < cutoff {
			s.gens.Compute(group, func(cur genEntry, loaded bool) (genEntry, bool) {
				return cur, !loaded || cur.touched < cutoff
			})
		}
		return true
	})
}

// Close stops the sweeper, if any. It is safe to call more than once.
func (s *LocalGenStore) Close(context.Context) error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			s.stop()
			<-s.done
		}
	})
	return nil
}
