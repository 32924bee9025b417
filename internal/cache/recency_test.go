package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainKeys walks head to tail and also verifies the chain links are
// mutually consistent in both directions.
func chainKeys(t *testing.T, l *recencyList) []string {
	t.Helper()

	var keys []string
	seen := make(map[string]bool)
	for n := l.head; n != nil; n = n.next {
		require.False(t, seen[n.key], "key %s appears twice in the chain", n.key)
		seen[n.key] = true
		keys = append(keys, n.key)
		if n.next != nil {
			require.Same(t, n, n.next.prev, "broken back-link at %s", n.key)
		} else {
			require.Same(t, n, l.tail, "tail sentinel out of sync")
		}
		if n.prev == nil {
			require.Same(t, n, l.head, "head sentinel out of sync")
		}
	}
	require.Len(t, keys, l.len())
	return keys
}

func TestRecencyMoveToFront(t *testing.T) {
	l := newRecencyList()

	l.moveToFront("a")
	l.moveToFront("b")
	l.moveToFront("c")
	assert.Equal(t, []string{"c", "b", "a"}, chainKeys(t, l))

	// Promoting the tail.
	l.moveToFront("a")
	assert.Equal(t, []string{"a", "c", "b"}, chainKeys(t, l))

	// Promoting the head is a no-op.
	l.moveToFront("a")
	assert.Equal(t, []string{"a", "c", "b"}, chainKeys(t, l))

	// Promoting a middle node.
	l.moveToFront("c")
	assert.Equal(t, []string{"c", "a", "b"}, chainKeys(t, l))
}

func TestRecencySingleNode(t *testing.T) {
	l := newRecencyList()

	l.moveToFront("only")
	require.Same(t, l.head, l.tail)
	assert.Equal(t, []string{"only"}, l.tailToHead())

	l.remove("only")
	assert.Nil(t, l.head)
	assert.Nil(t, l.tail)
	assert.Zero(t, l.len())
}

func TestRecencyRemove(t *testing.T) {
	l := newRecencyList()
	for _, k := range []string{"a", "b", "c", "d"} {
		l.moveToFront(k)
	}
	// Chain is d, c, b, a.

	l.remove("c") // middle
	assert.Equal(t, []string{"d", "b", "a"}, chainKeys(t, l))

	l.remove("d") // head
	assert.Equal(t, []string{"b", "a"}, chainKeys(t, l))

	l.remove("a") // tail
	assert.Equal(t, []string{"b"}, chainKeys(t, l))

	// Removing an unknown key is a no-op.
	l.remove("missing")
	assert.Equal(t, []string{"b"}, chainKeys(t, l))
}

func TestRecencyTailToHead(t *testing.T) {
	l := newRecencyList()
	assert.Empty(t, l.tailToHead())

	l.moveToFront("a")
	l.moveToFront("b")
	l.moveToFront("c")
	assert.Equal(t, []string{"a", "b", "c"}, l.tailToHead())
}

func TestRecencyRebuild(t *testing.T) {
	l := newRecencyList()
	l.moveToFront("a")
	l.moveToFront("b")

	l.rebuild([]string{"x", "y", "z"})
	assert.Equal(t, []string{"x", "y", "z"}, chainKeys(t, l))
	assert.False(t, l.contains("a"))
	assert.True(t, l.contains("x"))
}

func TestRecencyClear(t *testing.T) {
	l := newRecencyList()
	l.moveToFront("a")
	l.moveToFront("b")

	l.clear()
	assert.Zero(t, l.len())
	assert.Nil(t, l.head)
	assert.Nil(t, l.tail)
}
