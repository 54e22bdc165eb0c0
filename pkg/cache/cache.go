// Package cache implements the two-tier cache subsystem: a local in-process
// tier, an optional distributed Redis tier, a gateway that orchestrates the
// two with silent degradation, and a statistics tracker shared by both.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a tier when a key is absent or expired
var ErrNotFound = errors.New("key not found in cache")

// MaxKeyLength bounds cache key size; longer keys are rejected at the gateway
const MaxKeyLength = 512

// TierName identifies one of the two cache backends
type TierName string

// Tier names
const (
	TierMemory      TierName = "memory"
	TierDistributed TierName = "distributed"
)

// Tier is the uniform contract implemented by both cache backends. Values
// cross the tier boundary as serialized bytes; the gateway owns the codec.
type Tier interface {
	// Name identifies the tier in statistics and logs
	Name() TierName

	// Get returns the stored bytes for key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores data under key for ttl
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key; absence is not an error
	Delete(ctx context.Context, key string) error

	// DeletePattern removes all keys matching a glob-like pattern and
	// returns the number of keys removed
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Clear removes every key owned by this tier
	Clear(ctx context.Context) (int, error)

	// Ping verifies the tier is reachable
	Ping(ctx context.Context) error

	// Len reports the number of keys currently stored, or -1 when the
	// tier cannot report it cheaply
	Len() int

	Close() error
}
