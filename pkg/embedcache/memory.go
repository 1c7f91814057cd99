package embedcache

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type memoryEntry struct {
	values     []float32
	insertedAt time.Time
	expiresAt  time.Time
}

// MemoryTier is the in-process tier: bounded, insertion ordered, with a TTL
// per entry. Reads go through Peek so they never change eviction order, which
// makes the underlying LRU behave as a FIFO.
type MemoryTier struct {
	mu       sync.Mutex
	entries  *simplelru.LRU[Key, memoryEntry]
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryTier(capacity int, ttl time.Duration, now func() time.Time) (*MemoryTier, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("embedding cache capacity must be positive, got %d", capacity)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("embedding cache ttl must be positive, got %s", ttl)
	}
	if now == nil {
		now = time.Now
	}
	entries, err := simplelru.NewLRU[Key, memoryEntry](capacity, nil)
	if err != nil {
		return nil, err
	}
	return &MemoryTier{
		entries:  entries,
		capacity: capacity,
		ttl:      ttl,
		now:      now,
	}, nil
}

// Get returns a copy of the cached vector. Expired entries are removed and reported as a miss.
func (m *MemoryTier) Get(key Key) ([]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries.Peek(key)
	if !ok {
		return nil, false
	}
	if !m.now().Before(entry.expiresAt) {
		m.entries.Remove(key)
		return nil, false
	}
	return cloneVector(entry.values), true
}

// Put stores values. At capacity exactly the oldest inserted entry is evicted.
func (m *MemoryTier) Put(key Key, values []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	// re-inserting must move the key to the back of the queue
	m.entries.Remove(key)
	m.entries.Add(key, memoryEntry{
		values:     cloneVector(values),
		insertedAt: now,
		expiresAt:  now.Add(m.ttl),
	})
}

func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}

func (m *MemoryTier) Capacity() int {
	return m.capacity
}

func (m *MemoryTier) TTL() time.Duration {
	return m.ttl
}

func (m *MemoryTier) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Purge()
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
