// Package snapshot implements the per-tag latest-value store: a
// monotonic-time gate so no subscriber downstream ever sees a sample
// older than one already accepted for the same tag.
//
// The map is striped across a fixed number of shards, each guarded by
// its own mutex, so concurrent readers and writers for distinct tags
// never contend on a single global lock — the same partitioning idea
// as a sharded connection table, generalized from "one shard per CPU
// core" to "one shard per hashed tag key" since there is no
// single-goroutine event loop here, just a hot compare-and-replace.
package snapshot

import (
	"hash/fnv"
	"sync"

	"github.com/adred-codev/taghub/internal/tag"
)

const defaultShardCount = 32

// entry is the cache record for one tag: its canonical identifier and
// the latest accepted query result.
type entry struct {
	id     tag.Identifier
	latest tag.QueryResult
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Cache is the snapshot cache. Exactly one entry exists per tag id
// (case-insensitive on Identifier.Key), and entry.latest.Value always
// carries the maximum UtcSampleTime ever accepted for that tag.
type Cache struct {
	shards []*shard
}

// New builds a Cache with the default shard count. Use NewSized to
// tune shard count for unusually wide or narrow tag spaces.
func New() *Cache { return NewSized(defaultShardCount) }

func NewSized(shardCount int) *Cache {
	if shardCount < 1 {
		shardCount = 1
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]entry)}
	}
	return &Cache{shards: shards}
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// AddOrUpdate applies the monotonic-time gate: if an entry already
// exists for value's tag and its sample time is strictly greater than
// value.Value.UtcSampleTime, the update is rejected. Ties replace.
// Returns true iff the entry was written.
func (c *Cache) AddOrUpdate(id tag.Identifier, value tag.QueryResult) bool {
	key := id.Key()
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		if existing.latest.Value.UtcSampleTime.After(value.Value.UtcSampleTime) {
			return false
		}
	}
	s.entries[key] = entry{id: id, latest: value}
	return true
}

// Get returns the latest accepted value for id, if any.
func (c *Cache) Get(id tag.Identifier) (tag.QueryResult, bool) {
	key := id.Key()
	s := c.shardFor(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return tag.QueryResult{}, false
	}
	return e.latest, true
}

// Remove deletes the entry for id, if present, and reports whether it
// was present.
func (c *Cache) Remove(id tag.Identifier) bool {
	key := id.Key()
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// RemoveStale removes every cached entry whose tag is no longer
// present (or maps to false) in hasSubscribers. Used by the hub's
// keep-or-evict policy on last-subscriber-removed.
func (c *Cache) RemoveStale(hasSubscribers map[string]bool) {
	for _, s := range c.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if !hasSubscribers[e.id.Key()] {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

// Len returns the total number of cached entries across all shards.
// Exposed for the health probe.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}
