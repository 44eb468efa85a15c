// Package sloghooks writes caslist hook events to a log/slog logger.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/caslist"
)

type Options struct {
	// Sampling for the chatty events; 0 or 1 logs all.
	DedupEvery    uint64
	StaleEvery    uint64
	MergeEvery    uint64
	SelfHealEvery uint64

	// Redact rewrites entity ids and storage keys before they are logged.
	// Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	dedupCtr    atomic.Uint64
	staleCtr    atomic.Uint64
	mergeCtr    atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ caslist.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(list string, page int, version uint64) {
	if h.l == nil {
		return
	}
	h.l.Debug("caslist.fetch_started", "list", list, "page", page, "version", version)
}

func (h *Hooks) FetchDeduped(list string, page int, version uint64) {
	if h.l == nil || !sample(h.opts.DedupEvery, &h.dedupCtr) {
		return
	}
	h.l.Debug("caslist.fetch_deduped", "list", list, "page", page, "version", version)
}

func (h *Hooks) StaleDropped(list string, page int, requestVersion, liveVersion uint64) {
	if h.l == nil || !sample(h.opts.StaleEvery, &h.staleCtr) {
		return
	}
	h.l.Info("caslist.stale_dropped",
		"list", list,
		"page", page,
		"request_version", requestVersion,
		"live_version", liveVersion)
}

func (h *Hooks) FetchFailed(list string, page int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("caslist.fetch_failed", "list", list, "page", page, "err", err)
}

func (h *Hooks) Reloaded(list string, version uint64, clear bool) {
	if h.l == nil {
		return
	}
	h.l.Info("caslist.reloaded", "list", list, "version", version, "clear", clear)
}

func (h *Hooks) EntityMerged(cache, id string) {
	if h.l == nil || !sample(h.opts.MergeEvery, &h.mergeCtr) {
		return
	}
	h.l.Debug("caslist.entity_merged", "cache", cache, "id", h.redact(id))
}

func (h *Hooks) EntityFetchCoalesced(cache, id string) {
	if h.l == nil {
		return
	}
	h.l.Debug("caslist.entity_fetch_coalesced", "cache", cache, "id", h.redact(id))
}

func (h *Hooks) PageSelfHealed(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("caslist.page_self_healed", "key", h.redact(storageKey), "reason", reason)
}

func (h *Hooks) PageSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("caslist.page_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) PageGenError(group string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("caslist.page_gen_error", "group", group, "err", err)
}
