package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"goflare.io/hoard/models"
)

// Stats assembles a telemetry snapshot from the cumulative counters and
// the current entry population.
func (s *Store) Stats() models.Stats {
	s.mu.RLock()
	current := s.currentSize
	count := len(s.entries)
	var oldest time.Duration
	for _, e := range s.entries {
		if a := e.age(); a > oldest {
			oldest = a
		}
	}
	s.mu.RUnlock()

	st := models.Stats{
		Hits:           s.hits.Load(),
		Misses:         s.misses.Load(),
		Insertions:     s.insertions.Load(),
		Evictions:      s.evictions.Load(),
		TotalRequests:  s.totalRequests.Load(),
		CurrentSize:    current,
		MaxSize:        s.maxSize,
		EntryCount:     count,
		OldestEntryAge: oldest,
		MemoryPressure: s.memoryPressure.Load(),
	}
	if count > 0 {
		st.AverageEntrySize = current / uint64(count)
	}
	return st
}

// ExportReport renders a human-readable usage report: aggregate
// telemetry, the ten most accessed entries, and a JSON copy of the
// stats snapshot. Serializing the snapshot is the only failure path.
func (s *Store) ExportReport() (string, error) {
	st := s.Stats()

	snapshot, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize stats snapshot: %w", err)
	}

	var b strings.Builder
	b.WriteString("=== cache report ===\n")
	fmt.Fprintf(&b, "total requests: %d\n", st.TotalRequests)
	fmt.Fprintf(&b, "hits: %d (%.2f%%)\n", st.Hits, st.HitRate()*100)
	fmt.Fprintf(&b, "misses: %d (%.2f%%)\n", st.Misses, st.MissRate()*100)
	fmt.Fprintf(&b, "entries: %d\n", st.EntryCount)
	fmt.Fprintf(&b, "memory: %d / %d bytes (%.1f%%)\n", st.CurrentSize, st.MaxSize, st.Utilization()*100)
	fmt.Fprintf(&b, "average entry size: %d bytes\n", st.AverageEntrySize)
	fmt.Fprintf(&b, "oldest entry age: %s\n", st.OldestEntryAge)
	fmt.Fprintf(&b, "memory pressure: %.1f%%\n", st.MemoryPressure*100)

	type hot struct {
		key   string
		count int64
		freq  float64
		size  uint64
		idle  time.Duration
	}

	s.mu.RLock()
	hotEntries := make([]hot, 0, len(s.entries))
	for key, e := range s.entries {
		hotEntries = append(hotEntries, hot{
			key:   key,
			count: e.accessCount.Load(),
			freq:  e.accessFrequency(),
			size:  e.size,
			idle:  e.idleTime(),
		})
	}
	s.mu.RUnlock()

	sort.Slice(hotEntries, func(i, j int) bool {
		return hotEntries[i].count > hotEntries[j].count
	})

	b.WriteString("\n=== hot entries (top 10) ===\n")
	for i, h := range hotEntries {
		if i == 10 {
			break
		}
		fmt.Fprintf(&b, "%s: %d accesses, %.2f Hz, %d bytes, idle %s\n",
			h.key, h.count, h.freq, h.size, h.idle)
	}

	b.WriteString("\n=== stats snapshot ===\n")
	b.Write(snapshot)
	b.WriteByte('\n')
	return b.String(), nil
}
