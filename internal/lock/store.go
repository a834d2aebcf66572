// Package lock implements per-slot mutual exclusion with a lease (TTL).
//
// The lock is admission control in front of the reservation transaction:
// it keeps concurrent attempts on one slot from piling onto the database,
// while the conditional UPDATE on booked_count remains the guarantee that
// a slot is never over-booked.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned by Store.Get when nobody holds the key.
var ErrNotHeld = errors.New("lock not held")

// Store is the minimal key/owner/TTL contract the Manager needs.  A
// non-nil error means the store itself failed, not that the lock is taken.
type Store interface {
	// SetIfAbsent stores owner under key for ttl unless the key exists.
	SetIfAbsent(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Get returns the current owner or ErrNotHeld.
	Get(ctx context.Context, key string) (string, error)
	// CompareAndDelete deletes key only if it is held by owner, atomically.
	CompareAndDelete(ctx context.Context, key, owner string) (bool, error)
}
