package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/caslist"
)

type record struct {
	ID        uuid.UUID `json:"id" msgpack:"id" cbor:"id"`
	Seq       int       `json:"seq" msgpack:"seq" cbor:"seq"`
	Title     string    `json:"title" msgpack:"title" cbor:"title"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at" cbor:"updated_at"`
}

func (r *record) EntityID() (uuid.UUID, bool) { return r.ID, r.ID != uuid.Nil }

var errNotFound = errors.New("record not found")

// remote simulates a slow paginated API. Every response is a fresh copy.
type remote struct {
	latency time.Duration

	mu    sync.Mutex
	order []uuid.UUID
	rows  map[uuid.UUID]record
	calls int
}

func newRemote(n int, latency time.Duration) *remote {
	r := &remote{latency: latency, rows: make(map[uuid.UUID]record, n)}
	now := time.Now()
	for i := 0; i < n; i++ {
		id := uuid.New()
		r.order = append(r.order, id)
		r.rows[id] = record{ID: id, Seq: i, Title: fmt.Sprintf("record %d", i), UpdatedAt: now}
	}
	return r
}

func (r *remote) sleep(ctx context.Context) error {
	if r.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *remote) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *remote) Get(ctx context.Context, id uuid.UUID) (*record, error) {
	if err := r.sleep(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	row, ok := r.rows[id]
	if !ok {
		return nil, errNotFound
	}
	return &row, nil
}

func (r *remote) List(ctx context.Context) (caslist.Page[*record], error) {
	r.mu.Lock()
	n := len(r.order)
	r.mu.Unlock()
	return r.Page(ctx, n+1, 0)
}

func (r *remote) Page(ctx context.Context, pageSize, pageIndex int) (caslist.Page[*record], error) {
	if err := r.sleep(ctx); err != nil {
		return caslist.Page[*record]{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	start := min(pageIndex*pageSize, len(r.order))
	end := min(start+pageSize, len(r.order))
	items := make([]*record, 0, end-start)
	for _, id := range r.order[start:end] {
		row := r.rows[id]
		items = append(items, &row)
	}
	page := caslist.NewPage(items, len(r.order))
	page.Metadata = map[string]any{"served_at": time.Now().UTC().Format(time.RFC3339Nano)}
	return page, nil
}

func (r *remote) Create(ctx context.Context, rec *record) (*record, error) {
	if err := r.sleep(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	row := *rec
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if _, exists := r.rows[row.ID]; !exists {
		row.Seq = len(r.order)
		r.order = append(r.order, row.ID)
	}
	row.UpdatedAt = time.Now()
	r.rows[row.ID] = row
	return &row, nil
}

func (r *remote) Update(ctx context.Context, rec *record) (*record, error) {
	r.mu.Lock()
	_, ok := r.rows[rec.ID]
	r.mu.Unlock()
	if !ok {
		return nil, errNotFound
	}
	return r.Create(ctx, rec)
}

func (r *remote) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.sleep(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if _, ok := r.rows[id]; !ok {
		return errNotFound
	}
	delete(r.rows, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *remote) DeleteAll(ctx context.Context) error {
	if err := r.sleep(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.order = nil
	r.rows = map[uuid.UUID]record{}
	return nil
}
