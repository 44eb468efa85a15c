// Package provider defines the byte store behind pagestore.
//
// A Provider must hand back from Get exactly the bytes it was given in Set.
// pagestore owns the "page:<ns>:" key space; anything else written under that
// prefix fails frame validation and is deleted on the next read.
package provider

import (
	"context"
	"time"
)

// Provider is a concurrent byte store with per-entry TTLs.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// Transport failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl. Stores without cost accounting ignore cost.
	// ok=false means the store dropped the write (admission, memory pressure).
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
