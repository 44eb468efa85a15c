package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/unkn0wn-root/caslist"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec, tp
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestPagesSpan(t *testing.T) {
	rec, tp := newRecorder(t)
	fetch := Pages(Tracer(tp), "users", func(_ context.Context, size, index int) (caslist.Page[int], error) {
		return caslist.NewPage([]int{1, 2, 3}, 23), nil
	})

	if _, err := fetch(context.Background(), 10, 2); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "caslist.fetch_page" {
		t.Fatalf("name = %q", s.Name())
	}
	a := attrs(s)
	if a[attrList].AsString() != "users" || a[attrPageSize].AsInt64() != 10 || a[attrPageIndex].AsInt64() != 2 {
		t.Fatalf("request attributes = %v", a)
	}
	if a[attrItems].AsInt64() != 3 || a[attrTotal].AsInt64() != 23 {
		t.Fatalf("response attributes = %v", a)
	}
}

func TestListSpanRecordsError(t *testing.T) {
	rec, tp := newRecorder(t)
	boom := errors.New("boom")
	fetch := List(Tracer(tp), "tags", func(context.Context) (caslist.Page[string], error) {
		return caslist.Page[string]{}, boom
	})

	if _, err := fetch(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	s := rec.Ended()[0]
	if s.Name() != "caslist.fetch_list" || s.Status().Code != codes.Error {
		t.Fatalf("span = %s status %v", s.Name(), s.Status())
	}
	if len(s.Events()) == 0 || s.Events()[0].Name != "exception" {
		t.Fatalf("error event missing: %v", s.Events())
	}
}

func TestUnknownTotalNotRecorded(t *testing.T) {
	rec, tp := newRecorder(t)
	fetch := Pages(Tracer(tp), "feed", func(context.Context, int, int) (caslist.Page[int], error) {
		return caslist.Page[int]{Items: []int{1}}, nil
	})
	_, _ = fetch(context.Background(), 5, 0)
	if _, ok := attrs(rec.Ended()[0])[attrTotal]; ok {
		t.Fatalf("total attribute should be absent when the page has no total")
	}
}
