// Package lock provides single-writer locks keyed by an unordered pair of
// user ids.
package lock

import "errors"

// ErrTimeout is returned by Redis.LockPair when the lock could not be taken
// before the wait budget ran out.
var ErrTimeout = errors.New("lock: timed out waiting for pair lock")

// PairKey returns the same key for (a, b) and (b, a).
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
