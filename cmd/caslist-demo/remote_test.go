package main

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/caslist"
	"github.com/unkn0wn-root/caslist/collection"
)

func TestScanAgainstRemote(t *testing.T) {
	cfg := config{Items: 53, PageSize: 10, Concurrent: 3, Store: "ristretto", Codec: "cbor", Logger: "logrus", LogLevel: "error"}
	log := caslist.NopLogger{}
	store, err := newPageStore(cfg, log, caslist.NopHooks{})
	if err != nil {
		t.Fatalf("page store: %v", err)
	}
	defer store.Close(context.Background())

	remote := newRemote(cfg.Items, 0)
	coll, err := collection.New[uuid.UUID, record](remote, collection.Options[uuid.UUID, record]{
		Name:      "records",
		PageSize:  cfg.PageSize,
		PageStore: store,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := scan(context.Background(), cfg, log, coll, remote); err != nil {
		t.Fatalf("scan: %v", err)
	}

	pages, err := coll.Pages(context.Background(), cfg.PageSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := pages.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := pages.Len(); got != cfg.Items-1 {
		t.Fatalf("len after delete = %d, want %d", got, cfg.Items-1)
	}
	first, _ := pages.Peek(0)
	if first.Title != "record 0 (edited)" {
		t.Fatalf("first title = %q", first.Title)
	}
}

func TestRemotePageShape(t *testing.T) {
	r := newRemote(12, 0)
	p, err := r.Page(context.Background(), 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Items) != 2 || !p.HasTotal || p.Total != 12 {
		t.Fatalf("page = %+v", p)
	}
	if _, err := r.Update(context.Background(), &record{ID: uuid.New()}); err != errNotFound {
		t.Fatalf("update of unknown id: %v", err)
	}
}
