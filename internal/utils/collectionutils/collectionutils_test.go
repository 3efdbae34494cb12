package collectionutils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssociateAndGetOrDefault(t *testing.T) {
	m := Associate([]string{"go", "sql"}, func(s string) (string, int) { return s, len(s) })
	assert.Equal(t, 2, GetOrDefault(m, "go", 0))
	assert.Equal(t, -1, GetOrDefault(m, "rust", -1))
}

func TestMap(t *testing.T) {
	assert.Equal(t, []int{2, 3}, Map([]string{"go", "sql"}, func(s string) int { return len(s) }))
	assert.Empty(t, Map([]string(nil), func(s string) int { return len(s) }))
}

func TestIndexOf(t *testing.T) {
	items := []int{3, 5, 8}
	assert.Equal(t, 1, IndexOf(items, func(i int) bool { return i == 5 }))
	assert.Equal(t, -1, IndexOf(items, func(i int) bool { return i == 7 }))
}

func TestSafeMapGetOrCreateIsAtomic(t *testing.T) {
	m := New[string, *int]()
	var created int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.GetOrCreate("ip", func() *int {
				mu.Lock()
				created++
				mu.Unlock()
				return new(int)
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, m.Len())

	m.DeleteFunc(func(string, *int) bool { return true })
	assert.Equal(t, 0, m.Len())
}
