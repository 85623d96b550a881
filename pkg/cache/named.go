package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats is a point-in-time snapshot of one named cache.
type Stats struct {
	Name   string `json:"name"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

type entry struct {
	value      any
	writtenAt  time.Time
	accessedAt time.Time
}

// named is a bounded LRU whose entries also expire a fixed time after
// they were written or after they were last read.
type named struct {
	name        string
	afterWrite  time.Duration
	afterAccess time.Duration
	now         func() time.Time

	mu         sync.Mutex
	entries    *lru.Cache[string, *entry]
	generation uint64
	hits       uint64
	misses     uint64
}

func newNamed(name string, o options) *named {
	size := o.maxEntries
	if size <= 0 {
		size = DefaultMaxEntries
	}
	// lru.New only fails on a non-positive size.
	entries, _ := lru.New[string, *entry](size)
	return &named{
		name:        name,
		afterWrite:  o.expireAfterWrite,
		afterAccess: o.expireAfterAccess,
		now:         o.now,
		entries:     entries,
	}
}

// get returns the live value for key and the generation the caller must
// hand back to put after a miss.
func (n *named) get(key string) (any, uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	e, ok := n.entries.Get(key)
	if ok && n.expired(e) {
		n.entries.Remove(key)
		ok = false
	}
	if !ok {
		n.misses++
		return nil, n.generation, false
	}
	e.accessedAt = n.now()
	n.hits++
	return e.value, n.generation, true
}

// put stores value unless the cache was invalidated since gen was read,
// so a load racing with a mutation never resurrects stale data.
func (n *named) put(key string, value any, gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if gen != n.generation {
		return
	}
	now := n.now()
	n.entries.Add(key, &entry{value: value, writtenAt: now, accessedAt: now})
}

func (n *named) remove(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.generation++
	n.entries.Remove(key)
}

func (n *named) purge() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.generation++
	n.entries.Purge()
}

func (n *named) expired(e *entry) bool {
	now := n.now()
	if n.afterWrite > 0 && now.Sub(e.writtenAt) >= n.afterWrite {
		return true
	}
	if n.afterAccess > 0 && now.Sub(e.accessedAt) >= n.afterAccess {
		return true
	}
	return false
}

func (n *named) stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Stats{Name: n.name, Hits: n.hits, Misses: n.misses, Size: n.entries.Len()}
}
