// Package state provides the key-value store behind handlers that need to
// keep data between calls. Two backends satisfy the same observable
// contract: a sharded in-memory map and a persistent sqlite tree. A value
// set with a TTL is invisible to Get and Exists once its deadline passes;
// backends may evict lazily.
package state

import (
	"context"
	"time"
)

// Store is the abstract KV contract. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value for key, or ok=false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string) (bool, error)
	// Close releases backend resources.
	Close() error
}

// deadlineFor converts a ttl into a unix millisecond deadline. Zero ttl
// means no deadline.
func deadlineFor(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixMilli()
}

func expired(deadline int64) bool {
	return deadline != 0 && time.Now().UnixMilli() >= deadline
}
