package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/hszk-dev/audiostream/internal/domain/model"
)

const (
	// DefaultCapacity is the default maximum number of cached results.
	DefaultCapacity = 100
	// DefaultTTL is the default time after which a cached result is stale.
	DefaultTTL = 30 * time.Minute
)

// EvictionPolicy decides which key leaves a full cache.
// Implementations are not safe for concurrent use; Memory serialises access.
type EvictionPolicy interface {
	// Added records that key was inserted or overwritten.
	Added(key string)
	// Removed forgets key.
	Removed(key string)
	// Victim returns the key to evict, if any.
	Victim() (string, bool)
	// Keys returns the tracked keys in policy order.
	Keys() []string
	// Reset forgets all keys.
	Reset()
}

// InsertionOrder evicts the entry that was written least recently.
// Reads do not affect the order, so this is a FIFO queue and not an LRU.
type InsertionOrder struct {
	order *list.List
	elems map[string]*list.Element
}

// NewInsertionOrder creates an empty FIFO eviction policy.
func NewInsertionOrder() *InsertionOrder {
	return &InsertionOrder{
		order: list.New(),
		elems: make(map[string]*list.Element),
	}
}

func (p *InsertionOrder) Added(key string) {
	if e, ok := p.elems[key]; ok {
		p.order.MoveToBack(e)
		return
	}
	p.elems[key] = p.order.PushBack(key)
}

func (p *InsertionOrder) Removed(key string) {
	if e, ok := p.elems[key]; ok {
		p.order.Remove(e)
		delete(p.elems, key)
	}
}

func (p *InsertionOrder) Victim() (string, bool) {
	front := p.order.Front()
	if front == nil {
		return "", false
	}
	return front.Value.(string), true
}

func (p *InsertionOrder) Keys() []string {
	keys := make([]string, 0, p.order.Len())
	for e := p.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(string))
	}
	return keys
}

func (p *InsertionOrder) Reset() {
	p.order.Init()
	p.elems = make(map[string]*list.Element)
}

type memoryEntry struct {
	result    *model.Result
	createdAt time.Time
}

// Memory is a fixed-capacity, TTL-bound in-process result cache.
// It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	policy   EvictionPolicy
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithPolicy overrides the eviction policy.
func WithPolicy(p EvictionPolicy) MemoryOption {
	return func(m *Memory) {
		m.policy = p
	}
}

// NewMemory creates a cache holding at most capacity results for ttl each.
// Non-positive values fall back to DefaultCapacity and DefaultTTL.
func NewMemory(capacity int, ttl time.Duration, opts ...MemoryOption) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		entries:  make(map[string]memoryEntry),
		policy:   NewInsertionOrder(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached result for id if it is younger than the TTL.
// Expired and missing entries are indistinguishable to the caller.
func (m *Memory) Get(id string) (*model.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.createdAt) >= m.ttl {
		return nil, false
	}
	return e.result, true
}

// Set stores result under id. When id is new and the cache is full,
// exactly one entry chosen by the eviction policy is removed first.
// It reports the evicted key, if any.
func (m *Memory) Set(id string, result *model.Result) (evicted string, ok bool) {
	return m.SetAt(id, result, time.Time{})
}

// SetAt is Set with an explicit creation time, for results that were resolved
// elsewhere and must age from their original resolution. A zero or future
// createdAt means now.
func (m *Memory) SetAt(id string, result *model.Result, createdAt time.Time) (evicted string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if createdAt.IsZero() || createdAt.After(now) {
		createdAt = now
	}

	if _, exists := m.entries[id]; !exists && len(m.entries) >= m.capacity {
		if victim, found := m.policy.Victim(); found {
			delete(m.entries, victim)
			m.policy.Removed(victim)
			evicted, ok = victim, true
		}
	}

	m.entries[id] = memoryEntry{result: result, createdAt: createdAt}
	m.policy.Added(id)
	return evicted, ok
}

// Clear removes every entry and returns how many there were.
func (m *Memory) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	m.entries = make(map[string]memoryEntry)
	m.policy.Reset()
	return n
}

// Len returns the number of stored entries, including logically expired ones.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Keys returns the stored keys in eviction order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy.Keys()
}

// Capacity returns the maximum number of entries.
func (m *Memory) Capacity() int {
	return m.capacity
}

// TTL returns the entry time-to-live.
func (m *Memory) TTL() time.Duration {
	return m.ttl
}
