// Package tracing wraps provider functions in OpenTelemetry spans.
//
// Spans start when the list issues the fetch and end when the provider
// returns, so a span outliving a reload shows up as a fetch whose response
// was later dropped as stale.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/caslist"
)

const instrumentation = "github.com/unkn0wn-root/caslist"

var (
	attrList      = attribute.Key("caslist.list")
	attrPageSize  = attribute.Key("caslist.page_size")
	attrPageIndex = attribute.Key("caslist.page_index")
	attrItems     = attribute.Key("caslist.items")
	attrTotal     = attribute.Key("caslist.total")
)

// Tracer returns the caslist tracer of tp, or of the global provider when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentation)
}

// Pages traces every call of fetch as "caslist.fetch_page".
func Pages[T any](tracer trace.Tracer, list string, fetch caslist.PageFunc[T]) caslist.PageFunc[T] {
	return func(ctx context.Context, pageSize, pageIndex int) (caslist.Page[T], error) {
		ctx, span := tracer.Start(ctx, "caslist.fetch_page",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attrList.String(list),
				attrPageSize.Int(pageSize),
				attrPageIndex.Int(pageIndex),
			))
		defer span.End()

		page, err := fetch(ctx, pageSize, pageIndex)
		finish(span, page, err)
		return page, err
	}
}

// List traces every call of fetch as "caslist.fetch_list".
func List[T any](tracer trace.Tracer, list string, fetch caslist.ListFunc[T]) caslist.ListFunc[T] {
	return func(ctx context.Context) (caslist.Page[T], error) {
		ctx, span := tracer.Start(ctx, "caslist.fetch_list",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrList.String(list)))
		defer span.End()

		page, err := fetch(ctx)
		finish(span, page, err)
		return page, err
	}
}

func finish[T any](span trace.Span, page caslist.Page[T], err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attrItems.Int(len(page.Items)))
	if page.HasTotal {
		span.SetAttributes(attrTotal.Int(page.Total))
	}
}
