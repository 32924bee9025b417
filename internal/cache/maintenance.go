package cache

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"goflare.io/hoard/models"
)

// CleanupExpired removes entries that outlived the absolute age bound,
// plus low-priority entries idle for more than twice the base idle
// window. It is throttled: calls inside the cleanup interval are
// no-ops. Returns the number of entries removed.
//
// This is a coarser mechanism than makeSpace: it reclaims on absolute
// age and idleness, independent of size pressure and insertion traffic.
func (s *Store) CleanupExpired() int {
	now := time.Now()
	if now.Sub(s.lastCleanup.Load()) < s.cleanupInterval {
		return 0
	}

	var expired []string
	s.mu.RLock()
	for key, e := range s.entries {
		if e.age() > s.maxAge || (e.priority == models.PriorityLow && e.idleTime() > 2*s.minIdleTime) {
			expired = append(expired, key)
		}
	}
	s.mu.RUnlock()

	for _, key := range expired {
		s.Remove(key)
	}
	s.lastCleanup.Store(now)

	if len(expired) > 0 {
		s.logger.Debug("expired entries removed", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// SetMemoryPressure records an external memory-scarcity signal, clamped
// to [0,1], and reacts to it: high pressure triggers immediate
// reclamation toward the cleanup target, moderate pressure triggers the
// lighter throttled expiry sweep.
func (s *Store) SetMemoryPressure(pressure float64) {
	if pressure < 0 {
		pressure = 0
	} else if pressure > 1 {
		pressure = 1
	}
	s.memoryPressure.Store(pressure)

	switch {
	case pressure > 0.8:
		s.logger.Debug("high memory pressure, reclaiming", zap.Float64("pressure", pressure))
		s.makeSpace(0, "")
	case pressure > 0.6:
		s.CleanupExpired()
	}
}

// Optimize rebuilds the recency chain so the most frequently accessed
// entries sit nearest the head. This protects hot entries from LRU
// churn caused by a burst of one-off reads of cold entries; recency
// ordering resumes from the rebuilt chain.
//
// The map lock stays held through the rebuild: a key inserted between
// the ranking snapshot and the rebuilt chain would otherwise be dropped
// from eviction order for good.
func (s *Store) Optimize() {
	start := time.Now()

	type ranked struct {
		key  string
		freq float64
	}

	s.mu.RLock()
	ranking := make([]ranked, 0, len(s.entries))
	for key, e := range s.entries {
		ranking = append(ranking, ranked{key: key, freq: e.accessFrequency()})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].freq > ranking[j].freq
	})

	keys := make([]string, len(ranking))
	for i, r := range ranking {
		keys[i] = r.key
	}

	s.lruMu.Lock()
	s.lru.rebuild(keys)
	s.lruMu.Unlock()
	s.mu.RUnlock()

	s.logger.Info("cache optimized",
		zap.Int("entries", len(keys)),
		zap.Duration("took", time.Since(start)))
}
