package locker

import (
	"context"
	"hash/fnv"
)

// AdvisoryLocker serialises boot-time critical sections across processes.
// It is never used by the coordination protocol itself.
type AdvisoryLocker interface {
	WithLock(ctx context.Context, key int64, fn func(ctx context.Context) error) error
}

// KeyFor derives a stable lock key from a name.
func KeyFor(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}
