package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// Memory tier defaults
const (
	DefaultMemoryMaxItems = 10000
	DefaultMemoryTTL      = 5 * time.Minute
	memoryJanitorInterval = 1 * time.Minute
)

// MemoryTier is the local in-process cache tier. Entries carry a per-key TTL
// and a janitor goroutine sweeps expired entries in the background.
type MemoryTier struct {
	items      map[string]memoryEntry
	mu         sync.RWMutex
	maxItems   int
	defaultTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type memoryEntry struct {
	data       []byte
	expiration time.Time
}

// NewMemoryTier creates a new in-process cache tier and starts its janitor
func NewMemoryTier(maxItems int, defaultTTL time.Duration) *MemoryTier {
	if maxItems <= 0 {
		maxItems = DefaultMemoryMaxItems
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultMemoryTTL
	}

	t := &MemoryTier{
		items:      make(map[string]memoryEntry),
		maxItems:   maxItems,
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	go t.janitor()
	return t
}

// Name implements Tier.Name
func (t *MemoryTier) Name() TierName {
	return TierMemory
}

// Get implements Tier.Get. An expired entry is deleted on the spot so it
// stops occupying capacity until the next janitor sweep.
func (t *MemoryTier) Get(ctx context.Context, key string) ([]byte, error) {
	t.mu.RLock()
	item, exists := t.items[key]
	t.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}
	if time.Now().After(item.expiration) {
		t.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry
		if cur, ok := t.items[key]; ok && cur.expiration.Equal(item.expiration) {
			delete(t.items, key)
		}
		t.mu.Unlock()
		return nil, ErrNotFound
	}
	return item.data, nil
}

// Set implements Tier.Set
func (t *MemoryTier) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[key]; !exists && len(t.items) >= t.maxItems {
		t.evictOldest()
	}

	t.items[key] = memoryEntry{
		data:       data,
		expiration: time.Now().Add(ttl),
	}
	return nil
}

// Delete implements Tier.Delete
func (t *MemoryTier) Delete(ctx context.Context, key string) error {
	t.mu.Lock()
	delete(t.items, key)
	t.mu.Unlock()
	return nil
}

// DeletePattern removes all keys matching the glob-like pattern by direct
// enumeration of the key set.
func (t *MemoryTier) DeletePattern(ctx context.Context, pattern string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key := range t.items {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return removed, err
		}
		if matched {
			delete(t.items, key)
			removed++
		}
	}
	return removed, nil
}

// Clear implements Tier.Clear
func (t *MemoryTier) Clear(ctx context.Context) (int, error) {
	t.mu.Lock()
	n := len(t.items)
	t.items = make(map[string]memoryEntry)
	t.mu.Unlock()
	return n, nil
}

// Ping implements Tier.Ping; the local tier is always reachable
func (t *MemoryTier) Ping(ctx context.Context) error {
	return nil
}

// Len implements Tier.Len
func (t *MemoryTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Close stops the janitor
func (t *MemoryTier) Close() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return nil
}

// evictOldest removes the entry with the earliest expiration.
// Caller must hold the write lock.
func (t *MemoryTier) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range t.items {
		if oldestKey == "" || item.expiration.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.expiration
		}
	}
	if oldestKey != "" {
		delete(t.items, oldestKey)
	}
}

// janitor periodically removes expired entries
func (t *MemoryTier) janitor() {
	ticker := time.NewTicker(memoryJanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			now := time.Now()
			t.mu.Lock()
			for key, item := range t.items {
				if now.After(item.expiration) {
					delete(t.items, key)
				}
			}
			t.mu.Unlock()
		}
	}
}
