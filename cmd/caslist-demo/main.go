// Command caslist-demo scans a simulated remote collection through a
// paginated list backed by a page store, then edits it and reloads.
//
// Configuration is read from CASLIST_DEMO_* environment variables; see config.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/unkn0wn-root/caslist"
	"github.com/unkn0wn-root/caslist/codec"
	"github.com/unkn0wn-root/caslist/collection"
	"github.com/unkn0wn-root/caslist/genstore"
	asynchook "github.com/unkn0wn-root/caslist/hooks/async"
	"github.com/unkn0wn-root/caslist/hooks/prom"
	"github.com/unkn0wn-root/caslist/pagestore"
	"github.com/unkn0wn-root/caslist/provider"
	bcprov "github.com/unkn0wn-root/caslist/provider/bigcache"
	redisprov "github.com/unkn0wn-root/caslist/provider/redis"
	rprov "github.com/unkn0wn-root/caslist/provider/ristretto"
	"github.com/unkn0wn-root/caslist/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "caslist-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, flush, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	ph, err := prom.New(prom.Options{Namespace: "caslist_demo", Registerer: reg})
	if err != nil {
		return err
	}
	hooks := asynchook.New(ph, 1, 1024)

	store, err := newPageStore(cfg, log, hooks)
	if err != nil {
		hooks.Close()
		return err
	}

	opts := collection.Options[uuid.UUID, record]{
		Name:               "records",
		PageSize:           cfg.PageSize,
		MaxConcurrentPages: cfg.Concurrent,
		PageStore:          store,
		PageTTL:            cfg.PageTTL,
		Logger:             log,
		Hooks:              hooks,
	}
	var tp *sdktrace.TracerProvider
	if cfg.Trace {
		tp = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanLogger{log: log}))
		opts.Tracer = tracing.Tracer(tp)
	}

	remote := newRemote(cfg.Items, cfg.Latency)
	coll, err := collection.New[uuid.UUID, record](remote, opts)
	if err != nil {
		return err
	}

	scanErr := scan(ctx, cfg, log, coll, remote)

	if tp != nil {
		_ = tp.Shutdown(context.Background())
	}
	if store != nil {
		if err := store.Close(context.Background()); err != nil {
			log.Warn("page store close failed", caslist.Fields{"err": err})
		}
	}
	hooks.Close()
	logCounters(log, reg)
	if d := hooks.Dropped(); d > 0 {
		log.Warn("hook events dropped", caslist.Fields{"dropped": d})
	}
	return scanErr
}

func scan(ctx context.Context, cfg config, log caslist.Logger, coll *collection.Collection[uuid.UUID, record], remote *remote) error {
	pages, err := coll.Pages(ctx, cfg.PageSize)
	if err != nil {
		return err
	}
	unsubscribe := pages.Subscribe(func(s caslist.State) {
		log.Debug("list state", caslist.Fields{
			"version":  s.Version,
			"loading":  s.IsLoading,
			"total":    s.TotalLength,
			"in_fly":   s.InFlight,
			"complete": s.IsFullyLoaded,
		})
	})
	defer unsubscribe()

	start := time.Now()
	if _, err := pages.Preload().Wait(ctx); err != nil {
		return fmt.Errorf("preload: %w", err)
	}
	if err := pages.LoadAll(ctx); err != nil {
		return fmt.Errorf("load all: %w", err)
	}
	st := pages.State()
	log.Info("scan complete", caslist.Fields{
		"items":    pages.Len(),
		"total":    st.TotalLength,
		"requests": remote.Calls(),
		"took":     time.Since(start).String(),
	})

	// A second list over the same collection is served by the page store.
	again, err := coll.Pages(ctx, cfg.PageSize)
	if err != nil {
		return err
	}
	before := remote.Calls()
	if err := again.LoadAll(ctx); err != nil {
		return fmt.Errorf("second scan: %w", err)
	}
	log.Info("second scan complete", caslist.Fields{"items": again.Len(), "requests": remote.Calls() - before})

	first, ok := pages.Peek(0)
	if !ok {
		return nil
	}
	edit := *first
	edit.Title = first.Title + " (edited)"
	if _, err := coll.Update(ctx, &edit); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if seen, ok := again.Peek(0); ok {
		log.Info("update reconciled", caslist.Fields{"title": seen.Title, "same_instance": seen == first})
	}

	if last, ok := pages.Peek(pages.Len() - 1); ok {
		if err := coll.Delete(ctx, last.ID); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
	}
	if _, err := pages.Reload(caslist.ReloadOptions{Clear: true, Preload: true}).Wait(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := pages.LoadAll(ctx); err != nil {
		return fmt.Errorf("load all after reload: %w", err)
	}
	log.Info("reload complete", caslist.Fields{
		"items":    pages.Len(),
		"version":  pages.Version(),
		"requests": remote.Calls(),
	})
	return nil
}

func newPageStore(cfg config, log caslist.Logger, hooks caslist.Hooks) (*pagestore.Store[caslist.Page[*record]], error) {
	if cfg.Store == "none" {
		return nil, nil
	}
	var (
		p    provider.Provider
		gens genstore.GenStore
		err  error
	)
	switch cfg.Store {
	case "bigcache":
		p, err = bcprov.New(bcprov.Config{LifeWindow: cfg.PageTTL, MaxEntrySize: 16 << 10})
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		p, err = redisprov.New(redisprov.Config{Client: rdb})
		gens = genstore.NewRedisGenStore(rdb, "caslist-demo", 0)
	default:
		p, err = rprov.New(rprov.DefaultConfig(64 << 20))
	}
	if err != nil {
		return nil, err
	}
	return pagestore.New(pagestore.Options[caslist.Page[*record]]{
		Namespace:      "caslist-demo:records",
		Provider:       p,
		Codec:          pageCodec(cfg.Codec),
		Logger:         log,
		Hooks:          hooks,
		DefaultTTL:     cfg.PageTTL,
		GenStore:       gens,
		ComputeSetCost: pagestore.FrameSize,
	})
}

func pageCodec(name string) codec.Codec[caslist.Page[*record]] {
	var inner codec.Codec[caslist.Page[*record]]
	switch name {
	case "json":
		inner = codec.JSON[caslist.Page[*record]]{}
	case "cbor":
		inner = codec.MustCBOR[caslist.Page[*record]](false)
	default:
		inner = codec.Msgpack[caslist.Page[*record]]{}
	}
	return codec.Limit[caslist.Page[*record]]{Inner: inner, MaxDecode: 4 << 20}
}

func logCounters(log caslist.Logger, g prometheus.Gatherer) {
	mfs, err := g.Gather()
	if err != nil {
		log.Warn("gather metrics failed", caslist.Fields{"err": err})
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			f := caslist.Fields{"metric": mf.GetName(), "value": m.GetCounter().GetValue()}
			for _, lp := range m.GetLabel() {
				f[lp.GetName()] = lp.GetValue()
			}
			log.Info("counter", f)
		}
	}
}

// spanLogger logs every finished span at debug level.
type spanLogger struct{ log caslist.Logger }

func (s spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (s spanLogger) OnEnd(sp sdktrace.ReadOnlySpan) {
	f := caslist.Fields{
		"span":     sp.Name(),
		"duration": sp.EndTime().Sub(sp.StartTime()).String(),
		"status":   sp.Status().Code.String(),
	}
	for _, kv := range sp.Attributes() {
		f[string(kv.Key)] = kv.Value.Emit()
	}
	s.log.Debug("span", f)
}

func (s spanLogger) Shutdown(context.Context) error   { return nil }
func (s spanLogger) ForceFlush(context.Context) error { return nil }
