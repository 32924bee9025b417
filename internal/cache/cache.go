// Package cache implements the bounded, priority-aware blob store
// behind the hoard facade: a key-indexed entry map with byte-exact size
// accounting, a recency chain for eviction ordering, and a reclamation
// algorithm that weighs priority and idle time before evicting.
package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"goflare.io/hoard/config"
	"goflare.io/hoard/models"
)

// Store is the core cache. Internal state is split into three guarded
// regions: the entry map plus aggregate size under mu, the recency
// chain under lruMu, and cumulative counters as atomics. A single
// operation acquires the regions in sequence (mu before lruMu, never
// interleaved) rather than as one critical section; Clear and Optimize
// are the exceptions and hold both, Clear so the reset is atomic and
// Optimize so the rebuilt chain cannot miss a concurrent insert.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	currentSize uint64

	lruMu sync.Mutex
	lru   *recencyList

	maxSize    uint64
	maxEntries int

	cleanupThreshold float64
	cleanupTarget    float64
	minIdleTime      time.Duration
	maxAge           time.Duration
	cleanupInterval  time.Duration

	hits          atomic.Uint64
	misses        atomic.Uint64
	insertions    atomic.Uint64
	evictions     atomic.Uint64
	totalRequests atomic.Uint64

	memoryPressure atomic.Float64
	lastCleanup    *atomic.Time

	logger *zap.Logger
}

// NewStore creates a Store from cfg. The logger must not be nil.
func NewStore(cfg *config.Config, logger *zap.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lru:     newRecencyList(),

		maxSize:    cfg.MaxSize,
		maxEntries: cfg.MaxEntries(),

		cleanupThreshold: cfg.CleanupThreshold,
		cleanupTarget:    cfg.CleanupTarget,
		minIdleTime:      cfg.MinIdleTime,
		maxAge:           cfg.MaxAge,
		cleanupInterval:  cfg.CleanupInterval,

		lastCleanup: atomic.NewTime(time.Now()),
		logger:      logger,
	}
}

// Insert stores data under key, evicting other entries first if the
// blob would push the cache past its capacity or thresholds. A prior
// entry under the same key is replaced wholesale, priority included.
// Insert never fails: a blob larger than the configured capacity is
// still admitted and the overflow lasts until the next reclamation.
func (s *Store) Insert(key string, data []byte, priority models.Priority, tags ...string) {
	size := uint64(len(data))

	if s.shouldMakeSpace(size) {
		s.makeSpace(size, key)
	}

	e := newEntry(key, cloneBytes(data), priority, tags)

	s.mu.Lock()
	if old, ok := s.entries[key]; ok {
		s.currentSize -= old.size
	}
	s.entries[key] = e
	s.currentSize += size
	s.mu.Unlock()

	s.lruMu.Lock()
	s.lru.moveToFront(key)
	s.lruMu.Unlock()

	s.insertions.Inc()
	s.logger.Debug("cache insert",
		zap.String("key", key),
		zap.Uint64("size", size),
		zap.Stringer("priority", priority))
}

// Get returns a copy of the bytes stored under key and refreshes the
// entry's recency. The total-request counter moves on every call;
// hit/miss counters reflect presence.
func (s *Store) Get(key string) ([]byte, bool) {
	s.totalRequests.Inc()

	s.mu.RLock()
	e, ok := s.entries[key]
	var data []byte
	if ok {
		data = cloneBytes(e.data)
		e.touch()
	}
	s.mu.RUnlock()

	if !ok {
		s.misses.Inc()
		s.logger.Debug("cache miss", zap.String("key", key))
		return nil, false
	}

	s.lruMu.Lock()
	s.lru.moveToFront(key)
	s.lruMu.Unlock()

	s.hits.Inc()
	s.logger.Debug("cache hit", zap.String("key", key))
	return data, true
}

// Remove deletes the entry under key and returns its bytes. Both
// caller-driven removal and policy-driven eviction flow through here so
// size accounting and recency detachment stay consistent.
func (s *Store) Remove(key string) ([]byte, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	delete(s.entries, key)
	s.currentSize -= e.size
	s.mu.Unlock()

	s.lruMu.Lock()
	s.lru.remove(key)
	s.lruMu.Unlock()

	s.evictions.Inc()
	s.logger.Debug("cache remove", zap.String("key", key), zap.Uint64("size", e.size))
	return e.data, true
}

// Contains reports whether key is cached, without touching recency.
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	return ok
}

// Clear drops every entry. The entry map, size counter, and recency
// chain reset under both locks so no operation can observe one emptied
// without the other. Cumulative hit/miss/eviction counters survive.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lruMu.Lock()
	s.entries = make(map[string]*entry)
	s.currentSize = 0
	s.lru.clear()
	s.lruMu.Unlock()
	s.mu.Unlock()

	s.logger.Info("cache cleared")
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()
	return n
}

// MemoryUsage returns the total cached bytes.
func (s *Store) MemoryUsage() uint64 {
	s.mu.RLock()
	size := s.currentSize
	s.mu.RUnlock()
	return size
}

// Utilization returns cached bytes over configured capacity.
func (s *Store) Utilization() float64 {
	if s.maxSize == 0 {
		return 0
	}
	return float64(s.MemoryUsage()) / float64(s.maxSize)
}

// Warmup preloads a batch of assets.
func (s *Store) Warmup(assets []models.WarmupAsset) {
	s.logger.Info("cache warmup started", zap.Int("assets", len(assets)))
	for _, a := range assets {
		s.Insert(a.Key, a.Data, a.Priority, a.Tags...)
	}
	s.logger.Info("cache warmup finished")
}

// shouldMakeSpace reports whether inserting a blob of the given size
// warrants reclamation first. The byte capacity is authoritative; the
// entry-count bound is a soft hint derived from an assumed average
// entry size.
func (s *Store) shouldMakeSpace(size uint64) bool {
	s.mu.RLock()
	current := s.currentSize
	count := len(s.entries)
	s.mu.RUnlock()

	if current+size > s.maxSize || count >= s.maxEntries {
		return true
	}
	return s.maxSize > 0 && float64(current)/float64(s.maxSize) > s.cleanupThreshold
}

// makeSpace frees room for a blob of the given size. The pending key is
// the one about to be inserted and is never evicted.
//
// Two passes. The policy pass walks the recency chain from the tail and
// evicts entries whose idle time has outlived their priority-scaled
// protection window (Low entries are always eligible), stopping once
// enough has been freed to land on the cleanup target; it only runs
// when usage is above that target. Because fresh or high-priority
// entries are protected, that pass can come up short (or be skipped
// entirely); if the blob still would not fit under the hard byte
// capacity, the capacity pass evicts what remains in priority order
// (lowest first, least recently used first within a priority) until it
// does. A blob larger than the whole capacity skips the capacity pass:
// no amount of eviction can make it fit, and emptying the cache for it
// helps nobody.
func (s *Store) makeSpace(needed uint64, pending string) {
	target := uint64(float64(s.maxSize) * s.cleanupTarget)

	s.mu.RLock()
	current := s.currentSize
	s.mu.RUnlock()

	if current > target {
		spaceToFree := current - target + needed

		s.lruMu.Lock()
		order := s.lru.tailToHead()
		s.lruMu.Unlock()

		var victims []string
		var freed uint64

		s.mu.RLock()
		for _, key := range order {
			if freed >= spaceToFree {
				break
			}
			if key == pending {
				continue
			}
			e, ok := s.entries[key]
			if !ok {
				continue
			}
			requiredIdle := time.Duration(float64(s.minIdleTime) / e.priority.RetentionMultiplier())
			if e.priority == models.PriorityLow || e.idleTime() >= requiredIdle {
				victims = append(victims, key)
				freed += e.size
			}
		}
		s.mu.RUnlock()

		for _, key := range victims {
			s.Remove(key)
		}
		if freed > 0 {
			s.logger.Debug("space reclaimed", zap.Uint64("freed", freed), zap.Int("evicted", len(victims)))
		}

		s.mu.RLock()
		current = s.currentSize
		s.mu.RUnlock()
	}

	if current+needed <= s.maxSize || needed > s.maxSize {
		return
	}

	s.lruMu.Lock()
	order := s.lru.tailToHead()
	s.lruMu.Unlock()

	type candidate struct {
		key      string
		priority models.Priority
		size     uint64
	}
	candidates := make([]candidate, 0, len(order))

	s.mu.RLock()
	for _, key := range order {
		if key == pending {
			continue
		}
		if e, ok := s.entries[key]; ok {
			candidates = append(candidates, candidate{key: key, priority: e.priority, size: e.size})
		}
	}
	current = s.currentSize
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority < candidates[j].priority
	})

	evicted := 0
	for _, c := range candidates {
		if current+needed <= s.maxSize {
			break
		}
		s.Remove(c.key)
		current -= c.size
		evicted++
	}
	if evicted > 0 {
		s.logger.Debug("capacity enforced", zap.Int("evicted", evicted), zap.Uint64("needed", needed))
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
