package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InsertRetrieve(t *testing.T) {
	c := NewCache[string](10)
	require.NoError(t, c.Insert("A", "valueA", 1))
	assert.Equal(t, ErrKeyExists, c.Insert("A", "other", 1))

	val, ok := c.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, "valueA", val)

	_, ok = c.Retrieve("missing")
	assert.False(t, ok)

	assert.Equal(t, 1, c.GetWeight())
	assert.Equal(t, 10, c.GetBudget())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache[int](3)
	c.SetVerbose(true)

	require.NoError(t, c.Insert("A", 1, 1))
	require.NoError(t, c.Insert("B", 2, 1))
	require.NoError(t, c.Insert("C", 3, 1))

	// Touch A so B becomes the eviction candidate
	_, ok := c.Retrieve("A")
	require.True(t, ok)

	require.NoError(t, c.Insert("D", 4, 1))
	assert.False(t, c.Contains("B"))
	assert.True(t, c.Contains("A"))
	assert.True(t, c.Contains("C"))
	assert.True(t, c.Contains("D"))
	assert.Equal(t, 3, c.GetWeight())

	// A heavy entry evicts as many entries as needed
	require.NoError(t, c.Insert("E", 5, 3))
	assert.True(t, c.Contains("E"))
	assert.Equal(t, 3, c.GetWeight())
	for _, key := range []string{"A", "C", "D"} {
		assert.False(t, c.Contains(key))
	}
}

func TestCache_OversizedEntry(t *testing.T) {
	c := NewCache[int](2)
	require.NoError(t, c.Insert("big", 1, 3))
	assert.False(t, c.Contains("big"))
	assert.Equal(t, 0, c.GetWeight())

	require.NoError(t, c.Insert("small", 1, 1))
	assert.True(t, c.Contains("small"))
}

func TestCache_Clear(t *testing.T) {
	c := NewCache[int](5)
	require.NoError(t, c.Insert("A", 1, 1))
	c.Clear()
	assert.False(t, c.Contains("A"))
	assert.Equal(t, 0, c.GetWeight())
	require.NoError(t, c.Insert("A", 1, 1))
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache[int](100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("%d-%d", i, j)
				_ = c.Insert(key, j, 1)
				c.Retrieve(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, c.GetWeight())
}
