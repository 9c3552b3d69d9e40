package embeddings

import (
	"fmt"
)

// Store is a read-only table of embeddings keyed by string. All vectors of
// a store have length Dims.
type Store interface {
	Dims() int
	Embedding(key string) ([]float32, bool)
	// Each calls fn for every embedding in the store.
	Each(fn func(key string, embedding []float32))
}

// MemoryStore keeps embeddings in a map and iterates them in insertion
// order.
type MemoryStore struct {
	dims    int
	keys    []string
	vectors map[string][]float32
}

func NewMemoryStore(dims int) *MemoryStore {
	return &MemoryStore{
		dims:    dims,
		vectors: make(map[string][]float32),
	}
}

func (store *MemoryStore) Dims() int {
	return store.dims
}

func (store *MemoryStore) Len() int {
	return len(store.keys)
}

// Add stores a copy of embedding under key, replacing an earlier value.
func (store *MemoryStore) Add(key string, embedding []float32) error {
	if len(embedding) != store.dims {
		return fmt.Errorf("embedding for %q has %d dimensions, expected %d", key, len(embedding), store.dims)
	}
	if _, ok := store.vectors[key]; !ok {
		store.keys = append(store.keys, key)
	}
	store.vectors[key] = append([]float32(nil), embedding...)
	return nil
}

func (store *MemoryStore) Embedding(key string) ([]float32, bool) {
	embedding, ok := store.vectors[key]
	return embedding, ok
}

func (store *MemoryStore) Each(fn func(key string, embedding []float32)) {
	for _, key := range store.keys {
		fn(key, store.vectors[key])
	}
}
