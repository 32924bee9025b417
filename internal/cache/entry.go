package cache

import (
	"time"

	"go.uber.org/atomic"

	"goflare.io/hoard/models"
)

// entry is a cached blob plus its bookkeeping. The data slice is owned
// by the entry and never handed out directly; callers always receive
// copies. Priority and tags are fixed at insertion time.
type entry struct {
	key          string
	data         []byte
	size         uint64
	createdAt    time.Time
	lastAccessed *atomic.Time
	accessCount  *atomic.Int64
	priority     models.Priority
	tags         []string
}

func newEntry(key string, data []byte, priority models.Priority, tags []string) *entry {
	now := time.Now()
	return &entry{
		key:          key,
		data:         data,
		size:         uint64(len(data)),
		createdAt:    now,
		lastAccessed: atomic.NewTime(now),
		accessCount:  atomic.NewInt64(1),
		priority:     priority,
		tags:         tags,
	}
}

// touch records a successful read.
func (e *entry) touch() {
	e.lastAccessed.Store(time.Now())
	e.accessCount.Inc()
}

func (e *entry) age() time.Duration {
	return time.Since(e.createdAt)
}

// idleTime is the elapsed time since the last successful read.
func (e *entry) idleTime() time.Duration {
	return time.Since(e.lastAccessed.Load())
}

// accessFrequency is reads per second of lifetime, with the lifetime
// floored at one second so fresh entries don't rank arbitrarily high.
func (e *entry) accessFrequency() float64 {
	secs := e.age().Seconds()
	if secs < 1 {
		secs = 1
	}
	return float64(e.accessCount.Load()) / secs
}
