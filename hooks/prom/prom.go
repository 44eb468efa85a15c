// Package prom counts caslist hook events with Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/caslist"
)

type Options struct {
	Namespace  string                // metric prefix; default "caslist"
	Registerer prometheus.Registerer // default prometheus.DefaultRegisterer
}

type Hooks struct {
	fetches   *prometheus.CounterVec // list, outcome
	stale     *prometheus.CounterVec // list
	reloads   *prometheus.CounterVec // list, clear
	entities  *prometheus.CounterVec // cache, event
	pageStore *prometheus.CounterVec // event
}

var _ caslist.Hooks = (*Hooks)(nil)

// New creates and registers the counters. Registering twice against the same
// registry fails with prometheus.AlreadyRegisteredError.
func New(opts Options) (*Hooks, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "caslist"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	h := &Hooks{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "fetches_total",
			Help: "Provider fetches by list and outcome (started, deduped, failed).",
		}, []string{"list", "outcome"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "stale_responses_total",
			Help: "Responses discarded because the list was reloaded while they were in flight.",
		}, []string{"list"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "reloads_total",
			Help: "List reloads.",
		}, []string{"list", "clear"}),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "identity_events_total",
			Help: "Identity cache merges and coalesced fetches.",
		}, []string{"cache", "event"}),
		pageStore: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "page_store_events_total",
			Help: "Page store self-heals, rejected writes and generation errors.",
		}, []string{"event"}),
	}
	for _, c := range []prometheus.Collector{h.fetches, h.stale, h.reloads, h.entities, h.pageStore} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) FetchStarted(list string, _ int, _ uint64) {
	h.fetches.WithLabelValues(list, "started").Inc()
}

func (h *Hooks) FetchDeduped(list string, _ int, _ uint64) {
	h.fetches.WithLabelValues(list, "deduped").Inc()
}

func (h *Hooks) FetchFailed(list string, _ int, _ error) {
	h.fetches.WithLabelValues(list, "failed").Inc()
}

func (h *Hooks) StaleDropped(list string, _ int, _, _ uint64) {
	h.stale.WithLabelValues(list).Inc()
}

func (h *Hooks) Reloaded(list string, _ uint64, clear bool) {
	l := "false"
	if clear {
		l = "true"
	}
	h.reloads.WithLabelValues(list, l).Inc()
}

// Entity ids are not used as labels.
func (h *Hooks) EntityMerged(cache, _ string) { h.entities.WithLabelValues(cache, "merged").Inc() }

func (h *Hooks) EntityFetchCoalesced(cache, _ string) {
	h.entities.WithLabelValues(cache, "fetch_coalesced").Inc()
}

func (h *Hooks) PageSelfHealed(_ string, reason string) {
	h.pageStore.WithLabelValues("self_heal_" + reason).Inc()
}

func (h *Hooks) PageSetRejected(string) { h.pageStore.WithLabelValues("set_rejected").Inc() }

func (h *Hooks) PageGenError(string, error) { h.pageStore.WithLabelValues("gen_error").Inc() }
