package state

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShardCount = 16

type memoryEntry struct {
	value    []byte
	deadline int64 // unix ms, 0 = no expiry
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	order   []string // insertion order, for budget eviction
	bytes   int64
}

// MemoryStore is the in-memory backend: a sharded concurrent map from key
// to (value, optional deadline). Expired entries are evicted lazily on
// read. When a byte budget is configured, insertions evict the oldest keys
// of the receiving shard first (approximate LRU).
type MemoryStore struct {
	shards      [memoryShardCount]*memoryShard
	budgetBytes int64 // per store; 0 = unbounded
}

// NewMemoryStore creates an unbounded in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithBudget(0)
}

// NewMemoryStoreWithBudget creates an in-memory store whose shards each
// evict down to an equal share of budgetBytes. The newest entry of a shard
// is always kept, so a value larger than that share can push the total past
// budgetBytes. Zero disables the budget.
func NewMemoryStoreWithBudget(budgetBytes int64) *MemoryStore {
	store := &MemoryStore{budgetBytes: budgetBytes}
	for i := range store.shards {
		store.shards[i] = &memoryShard{entries: make(map[string]*memoryEntry)}
	}
	return store
}

func (s *MemoryStore) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%memoryShardCount]
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		return nil, false, nil
	}
	if expired(entry.deadline) {
		shard.remove(key)
		return nil, false, nil
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.remove(key)
	shard.entries[key] = &memoryEntry{value: stored, deadline: deadlineFor(ttl)}
	shard.order = append(shard.order, key)
	shard.bytes += int64(len(stored))

	if s.budgetBytes > 0 {
		shardBudget := s.budgetBytes / memoryShardCount
		if shardBudget <= 0 {
			shardBudget = s.budgetBytes
		}
		for shard.bytes > shardBudget && len(shard.order) > 1 {
			oldest := shard.order[0]
			if oldest == key {
				break
			}
			shard.remove(oldest)
		}
	}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.remove(key)
	return nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Close implements Store. The in-memory backend has nothing to release.
func (s *MemoryStore) Close() error {
	return nil
}

// remove must be called with the shard lock held.
func (sh *memoryShard) remove(key string) {
	entry, ok := sh.entries[key]
	if !ok {
		return
	}
	delete(sh.entries, key)
	sh.bytes -= int64(len(entry.value))
	for i, k := range sh.order {
		if k == key {
			sh.order = append(sh.order[:i], sh.order[i+1:]...)
			break
		}
	}
}
