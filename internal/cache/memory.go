package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultMemoryCapacity is the tier-1 entry limit.
const DefaultMemoryCapacity = 50

type memoryEntry struct {
	body      []byte
	expiresAt time.Time
}

// MemoryTier is the process-local tier. Reads use Peek so a hit does not
// refresh recency; the entry evicted at capacity is the one written least
// recently.
type MemoryTier struct {
	entries *lru.Cache
	now     func() time.Time
}

// NewMemoryTier creates a tier holding at most capacity entries.
func NewMemoryTier(capacity int) (*MemoryTier, error) {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	entries, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryTier{entries: entries, now: time.Now}, nil
}

// Get returns the body for key if present and unexpired.
func (m *MemoryTier) Get(key string) ([]byte, bool) {
	v, ok := m.entries.Peek(key)
	if !ok {
		return nil, false
	}
	entry := v.(memoryEntry)
	if !m.now().Before(entry.expiresAt) {
		m.entries.Remove(key)
		return nil, false
	}
	return entry.body, true
}

// Set stores body until expiresAt.
func (m *MemoryTier) Set(key string, body []byte, expiresAt time.Time) {
	m.entries.Add(key, memoryEntry{body: body, expiresAt: expiresAt})
}

// Len returns the number of entries held.
func (m *MemoryTier) Len() int {
	return m.entries.Len()
}
