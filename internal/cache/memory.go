package cache

import (
	"context"
	"sync"
	"time"
)

// memoryCache is a process-local Cache used when Redis is not configured.
// Pub/sub delivery is limited to subscribers within the same process.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	subs    map[string][]chan string
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory creates an in-process cache.
func NewMemory() Cache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		subs:    make(map[string][]chan string),
	}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Publish(_ context.Context, channel, message string) error {
	c.mu.RLock()
	subs := append([]chan string(nil), c.subs[channel]...)
	c.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- message:
		default:
			// Slow subscriber, drop rather than block the publisher.
		}
	}
	return nil
}

func (c *memoryCache) Subscribe(ctx context.Context, channel string, fn func(message string)) error {
	ch := make(chan string, 16)

	c.mu.Lock()
	c.subs[channel] = append(c.subs[channel], ch)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		subs := c.subs[channel]
		for i, sub := range subs {
			if sub == ch {
				c.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			fn(msg)
		}
	}
}

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) Close() error { return nil }
