package csync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapBasics(t *testing.T) {
	t.Parallel()

	m := NewMap[string, int]()
	require.Equal(t, 0, m.Len())

	m.Set("a", 1)
	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = m.Get("missing")
	require.False(t, ok)

	m.Del("a")
	require.Equal(t, 0, m.Len())
}

func TestMapFrom(t *testing.T) {
	t.Parallel()

	m := NewMapFrom(map[string]string{"x": "y"})
	v, ok := m.Get("x")
	require.True(t, ok)
	require.Equal(t, "y", v)

	require.NotNil(t, NewMapFrom[string, int](nil))
}

func TestGetOrSet(t *testing.T) {
	t.Parallel()

	m := NewMap[string, *int]()
	calls := 0
	mk := func() *int {
		calls++
		n := 42
		return &n
	}

	first := m.GetOrSet("k", mk)
	second := m.GetOrSet("k", mk)
	require.Same(t, first, second)
	require.Equal(t, 1, calls)
}

func TestTake(t *testing.T) {
	t.Parallel()

	m := NewMap[string, int]()
	m.Set("a", 1)

	v, ok := m.Take("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = m.Take("a")
	require.False(t, ok)
}

func TestSeq2Snapshot(t *testing.T) {
	t.Parallel()

	m := NewMap[int, int]()
	for i := range 10 {
		m.Set(i, i*i)
	}

	seen := map[int]int{}
	for k, v := range m.Seq2() {
		// Mutation during iteration must not deadlock or panic.
		m.Set(k+100, v)
		seen[k] = v
	}
	require.Len(t, seen, 10)
}

func TestMapConcurrent(t *testing.T) {
	t.Parallel()

	m := NewMap[int, int]()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Set(i, i)
			m.Get(i)
			m.GetOrSet(i%10, func() int { return i })
		}()
	}
	wg.Wait()
	require.Equal(t, 50, m.Len())
}
