package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/hoard/config"
	"goflare.io/hoard/models"
)

func newSweepStore(t *testing.T, maxAge, minIdle, interval time.Duration) *Store {
	t.Helper()

	cfg := config.New()
	cfg.MaxSize = 1024
	cfg.MaxAge = maxAge
	cfg.MinIdleTime = minIdle
	cfg.CleanupInterval = interval
	return NewStore(cfg, zap.NewNop())
}

func TestCleanupExpiredThrottled(t *testing.T) {
	s := newSweepStore(t, time.Millisecond, time.Millisecond, time.Hour)

	s.Insert("k", make([]byte, 10), models.PriorityNormal)
	time.Sleep(5 * time.Millisecond)

	// The store was just created, so the sweep is inside its interval.
	assert.Zero(t, s.CleanupExpired())
	assert.True(t, s.Contains("k"))
}

func TestCleanupExpiredMaxAge(t *testing.T) {
	s := newSweepStore(t, 20*time.Millisecond, time.Hour, 0)

	s.Insert("old", make([]byte, 10), models.PriorityCritical)
	time.Sleep(40 * time.Millisecond)
	s.Insert("fresh", make([]byte, 10), models.PriorityNormal)

	removed := s.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.False(t, s.Contains("old"), "age bound applies regardless of priority")
	assert.True(t, s.Contains("fresh"))
	checkInvariants(t, s)
}

func TestCleanupExpiredIdleLowPriority(t *testing.T) {
	s := newSweepStore(t, time.Hour, 5*time.Millisecond, 0)

	s.Insert("low", make([]byte, 10), models.PriorityLow)
	s.Insert("normal", make([]byte, 10), models.PriorityNormal)
	time.Sleep(20 * time.Millisecond)

	removed := s.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.False(t, s.Contains("low"), "idle low-priority entries expire early")
	assert.True(t, s.Contains("normal"))
}

func TestCleanupExpiredUpdatesLastCleanup(t *testing.T) {
	s := newSweepStore(t, time.Hour, time.Hour, 0)
	before := s.lastCleanup.Load()

	time.Sleep(2 * time.Millisecond)
	s.CleanupExpired()
	assert.True(t, s.lastCleanup.Load().After(before))
}

func TestMemoryPressureHighTriggersReclamation(t *testing.T) {
	s := newTestStore(t, 100)

	s.Insert("a", make([]byte, 30), models.PriorityLow)
	s.Insert("b", make([]byte, 30), models.PriorityLow)
	s.Insert("c", make([]byte, 30), models.PriorityLow)
	require.Equal(t, uint64(90), s.MemoryUsage())

	s.SetMemoryPressure(0.9)

	// Reclamation frees down to the cleanup target (60 bytes here).
	assert.LessOrEqual(t, s.MemoryUsage(), uint64(60))
	assert.InDelta(t, 0.9, s.Stats().MemoryPressure, 1e-9)
	checkInvariants(t, s)
}

func TestMemoryPressureModerateTriggersSweep(t *testing.T) {
	s := newSweepStore(t, 20*time.Millisecond, time.Hour, 0)

	s.Insert("old", make([]byte, 10), models.PriorityNormal)
	time.Sleep(40 * time.Millisecond)

	s.SetMemoryPressure(0.7)
	assert.False(t, s.Contains("old"))
}

func TestMemoryPressureLowIsInert(t *testing.T) {
	s := newTestStore(t, 100)
	s.Insert("a", make([]byte, 90), models.PriorityLow)

	s.SetMemoryPressure(0.5)
	assert.True(t, s.Contains("a"))
	assert.Equal(t, uint64(90), s.MemoryUsage())
}

func TestMemoryPressureClamped(t *testing.T) {
	s := newTestStore(t, 100)

	s.SetMemoryPressure(1.7)
	assert.Equal(t, 1.0, s.Stats().MemoryPressure)

	s.SetMemoryPressure(-0.3)
	assert.Equal(t, 0.0, s.Stats().MemoryPressure)
}

func TestOptimizeKeepsConcurrentInsertsInChain(t *testing.T) {
	s := newTestStore(t, 1<<20)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Insert(fmt.Sprintf("key-%d", i), make([]byte, 8), models.PriorityNormal)
		}
	}()

	for i := 0; i < 50; i++ {
		s.Optimize()
	}
	wg.Wait()
	s.Optimize()

	require.Equal(t, 200, s.Len())
	checkInvariants(t, s)
}

func TestOptimizeRanksHotEntriesFirst(t *testing.T) {
	s := newTestStore(t, 1024)

	s.Insert("a", make([]byte, 10), models.PriorityNormal)
	s.Insert("b", make([]byte, 10), models.PriorityNormal)
	s.Insert("c", make([]byte, 10), models.PriorityNormal)

	// Make b the hottest entry, then push it to the cold end with a
	// burst of one-off reads.
	for i := 0; i < 10; i++ {
		_, _ = s.Get("b")
	}
	_, _ = s.Get("a")
	_, _ = s.Get("c")

	s.lruMu.Lock()
	require.NotEqual(t, "b", s.lru.head.key)
	s.lruMu.Unlock()

	s.Optimize()

	s.lruMu.Lock()
	assert.Equal(t, "b", s.lru.head.key, "most frequently accessed entry belongs at the head")
	assert.Equal(t, 3, s.lru.len())
	s.lruMu.Unlock()
	checkInvariants(t, s)
}
