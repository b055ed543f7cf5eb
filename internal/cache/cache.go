// Package cache provides the shared cache and pub/sub handle backed by
// Redis, with an in-process fallback so the daemon stays bootable when no
// Redis endpoint is configured.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Cache is the handle granted to extensions holding the cache permission.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Publish sends a message on a pub/sub channel.
	Publish(ctx context.Context, channel, message string) error

	// Subscribe delivers messages for a channel until ctx is cancelled.
	Subscribe(ctx context.Context, channel string, fn func(message string)) error

	Ping(ctx context.Context) error
	Close() error
}
