// Package lock provides the per-subscription mutual exclusion required
// around a billing run. The lock is held from eligibility evaluation
// through the billing log append; without it two concurrent runs would
// both see the same unbilled window and double-emit entries.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Locker interface {
	// TryLock attempts to acquire key for ttl. It never blocks; ok is
	// false when another holder has the key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Release frees the key if token still owns it.
	Release(ctx context.Context, key, token string) error
}

var (
	ErrEmptyKey   = errors.New("lock key is empty")
	ErrInvalidTTL = errors.New("lock ttl must be positive")
)

// SubscriptionKey names the billing lock of one subscription.
func SubscriptionKey(id snowflake.ID) string {
	return fmt.Sprintf("billing:subscription:%d", id)
}
