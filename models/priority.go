package models

// Priority ranks how strongly the cache should retain an entry under
// size pressure. It is fixed at insertion time; re-inserting a key
// replaces the whole entry, priority included.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// RetentionMultiplier scales the minimum idle time an entry must
// accumulate before it becomes eligible for eviction. Higher priority
// means a proportionally longer protected window; it never makes an
// entry permanently un-evictable.
func (p Priority) RetentionMultiplier() float64 {
	switch p {
	case PriorityLow:
		return 0.5
	case PriorityHigh:
		return 2.0
	case PriorityCritical:
		return 5.0
	default:
		return 1.0
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}
