// Package cache provides the durable key/value store that holds records
// with pending offline mutations. One entry per record, keyed by record id;
// the value is the full JSON-encoded record including its status. Synced
// records are never stored: absence of a key means "no pending mutation".
package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entry exists under the key.
var ErrNotFound = errors.New("cache: entry not found")

// Store is the durable pending-mutation store. Implementations must allow
// Keys followed by per-key Get to observe concurrent Set/Remove calls
// (replay re-reads entries instead of trusting the enumeration snapshot).
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
