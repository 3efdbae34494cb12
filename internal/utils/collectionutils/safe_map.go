package collectionutils

import "sync"

type SafeMap[K comparable, V any] struct {
	data   map[K]V
	mutext sync.RWMutex
}

func New[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		data: make(map[K]V),
	}
}

func (safeMap *SafeMap[K, V]) Store(newKey K, newValue V) {
	safeMap.mutext.Lock()
	defer safeMap.mutext.Unlock()
	safeMap.data[newKey] = newValue
}

func (safeMap *SafeMap[K, V]) Get(key K) (V, bool) {
	safeMap.mutext.RLock()
	defer safeMap.mutext.RUnlock()
	value, exists := safeMap.data[key]

	return value, exists
}

// GetOrCreate returns the value for key, storing create() first if absent.
func (safeMap *SafeMap[K, V]) GetOrCreate(key K, create func() V) V {
	if value, ok := safeMap.Get(key); ok {
		return value
	}

	safeMap.mutext.Lock()
	defer safeMap.mutext.Unlock()
	if value, ok := safeMap.data[key]; ok {
		return value
	}
	value := create()
	safeMap.data[key] = value
	return value
}

func (safeMap *SafeMap[K, V]) Delete(key K) {
	safeMap.mutext.Lock()
	defer safeMap.mutext.Unlock()
	delete(safeMap.data, key)
}

// DeleteFunc removes every entry for which remove returns true.
func (safeMap *SafeMap[K, V]) DeleteFunc(remove func(K, V) bool) {
	safeMap.mutext.Lock()
	defer safeMap.mutext.Unlock()
	for k, v := range safeMap.data {
		if remove(k, v) {
			delete(safeMap.data, k)
		}
	}
}

func (safeMap *SafeMap[K, V]) Len() int {
	safeMap.mutext.RLock()
	defer safeMap.mutext.RUnlock()
	return len(safeMap.data)
}
