// Package store provides durable key/value byte storage and the audio vault
// that moves recordings from transient capture locations into durable
// storage.
//
// Three [Store] backends are available:
//
//   - [FileStore] keeps one file per key in a directory.
//   - [PostgresStore] keeps rows in a single kv table via pgx.
//   - [MemoryStore] keeps values in process memory (tests, dry runs).
//
// All implementations are safe for concurrent use.
package store

import (
	"context"
	"fmt"
	"regexp"
)

// Store is an asynchronous key/value byte store.
type Store interface {
	// Get returns the value stored under key. It returns (nil, nil) when the
	// key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateKey rejects keys that could escape a directory or exceed column
// limits.
func ValidateKey(key string) error {
	if !validKey.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("store: invalid key %q", key)
	}
	return nil
}
