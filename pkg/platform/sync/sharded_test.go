package sync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_GetSetDelete(t *testing.T) {
	m := NewMap[int]()

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("a", 1)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)

	// Empty key defaults to shard 0 and must not panic
	m.Set("", 7)
	v, ok = m.Get("")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestMap_UpdateIsAtomic(t *testing.T) {
	m := NewMap[int]()
	var wg sync.WaitGroup

	for range 100 {
		wg.Go(func() {
			m.Update("counter", func(current int, _ bool) (int, bool) {
				return current + 1, true
			})
		})
	}
	wg.Wait()

	v, ok := m.Get("counter")
	assert.True(t, ok)
	assert.Equal(t, 100, v)
}

func TestMap_UpdateCanDelete(t *testing.T) {
	m := NewMap[string]()
	m.Set("key", "value")

	m.Update("key", func(current string, exists bool) (string, bool) {
		assert.True(t, exists)
		return "", false
	})

	_, ok := m.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMap_RangeAndLen(t *testing.T) {
	m := NewMap[int]()
	keys := []string{"user-123", "user-456", "session-abc", "session-xyz", "token-1", "token-2"}
	for i, k := range keys {
		m.Set(k, i)
	}

	assert.Equal(t, len(keys), m.Len())

	seen := map[string]bool{}
	m.Range(func(key string, _ int) bool {
		seen[key] = true
		return true
	})
	assert.Len(t, seen, len(keys))

	// Early stop visits fewer entries
	count := 0
	m.Range(func(string, int) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}

func TestMap_ConcurrentDistinctKeys(t *testing.T) {
	m := NewMap[int]()
	var wg sync.WaitGroup

	for i := range 100 {
		key := "key" + string(rune('A'+i%26))
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			m.Update(k, func(current int, _ bool) (int, bool) {
				return current + 1, true
			})
		}(key)
	}
	wg.Wait()

	total := 0
	m.Range(func(_ string, v int) bool {
		total += v
		return true
	})
	assert.Equal(t, 100, total)
}

func TestHashString(t *testing.T) {
	assert.Equal(t, hashString("test"), hashString("test"))
	assert.NotEqual(t, hashString("test1"), hashString("test2"))
	assert.Equal(t, uint32(0), hashString(""))
}
