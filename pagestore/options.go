package pagestore

import (
	"time"

	"github.com/unkn0wn-root/caslist"
	"github.com/unkn0wn-root/caslist/codec"
	"github.com/unkn0wn-root/caslist/genstore"
	"github.com/unkn0wn-root/caslist/provider"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultSweep        = time.Hour
	defaultGenRetention = 30 * 24 * time.Hour
)

// SetCostFunc returns the cost passed to Provider.Set for one frame.
type SetCostFunc func(storageKey string, frame []byte) int64

// FrameSize charges the encoded frame length. Suits ristretto with MaxCost in bytes.
func FrameSize(_ string, frame []byte) int64 { return int64(len(frame)) }

type Options[V any] struct {
	// Namespace isolates keys and generations, e.g. "app:prod:users".
	Namespace string           // required
	Provider  provider.Provider // required
	Codec     codec.Codec[V]    // required

	Logger caslist.Logger // default NopLogger
	Hooks  caslist.Hooks  // default NopHooks

	DefaultTTL time.Duration // 0 => 10m

	// GenStore holds one generation per group. nil => LocalGenStore swept every
	// CleanupInterval, forgetting groups untouched for GenRetention.
	// Processes sharing a Redis provider should share a RedisGenStore too.
	GenStore        genstore.GenStore
	CleanupInterval time.Duration // 0 => 1h
	GenRetention    time.Duration // 0 => 30d

	// Disabled turns every read into a miss and every write into a no-op.
	Disabled bool

	ComputeSetCost SetCostFunc // nil => cost 1
}

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
