package stores

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable wraps backend failures (network, disk).
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreCorrupt reports an unreadable persisted document.
	ErrStoreCorrupt = errors.New("store corrupt")
)

// Store is the keyed storage contract shared by every backend.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*FileStore)(nil)
)
