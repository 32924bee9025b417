package models

import "time"

// Stats is a point-in-time snapshot of cache telemetry. It is derived
// from cache state on demand and is never a source of truth itself.
type Stats struct {
	Hits             uint64        `json:"hits"`
	Misses           uint64        `json:"misses"`
	Insertions       uint64        `json:"insertions"`
	Evictions        uint64        `json:"evictions"`
	TotalRequests    uint64        `json:"total_requests"`
	CurrentSize      uint64        `json:"current_size"`
	MaxSize          uint64        `json:"max_size"`
	EntryCount       int           `json:"entry_count"`
	AverageEntrySize uint64        `json:"average_entry_size"`
	OldestEntryAge   time.Duration `json:"oldest_entry_age"`
	MemoryPressure   float64       `json:"memory_pressure"`
}

// HitRate returns hits over total requests, or 0 when there has been
// no traffic yet.
func (s Stats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalRequests)
}

// MissRate is the complement of HitRate.
func (s Stats) MissRate() float64 {
	return 1 - s.HitRate()
}

// Utilization returns current size over configured capacity.
func (s Stats) Utilization() float64 {
	if s.MaxSize == 0 {
		return 0
	}
	return float64(s.CurrentSize) / float64(s.MaxSize)
}
