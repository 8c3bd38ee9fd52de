// Package container provides the hashed-keyed, insertion-ordered
// collection used throughout the Verse engine to store nodes, tag
// groups, tags, layers, and layer values.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package container

import (
	"sync"

	"github.com/OneOfOne/xxhash"
)

// Keyed is satisfied by any value stored in a Hashed container; Key
// returns the integer id the container indexes it by (spec.md §4.1:
// "the key is always an integer id taken from the stored struct").
type Keyed[K comparable] interface {
	Key() K
}

// bucketSize mirrors the source's HASH_MOD_256 / HASH_MOD_65536 choice:
// small containers (tags, tag groups, layers, keyed by a 16-bit id) use
// 256 buckets; node stores and layer values (keyed by a 32-bit id) use
// 65536.
type bucketSize int

const (
	SmallTable bucketSize = 1 << 8
	LargeTable bucketSize = 1 << 16
)

// Hashed is a thread-safe, insertion-ordered collection of T keyed by
// K, chained on collision. It is the generic replacement for the
// source's void-pointer VHashArrayBase duck-typed across nodes, tag
// groups, tags, layers, and layer values (spec.md §9).
type Hashed[K comparable, T Keyed[K]] struct {
	mu      sync.Mutex
	buckets [][]T
	order   []K
	index   map[K]int // position of key within order, for O(1) removal
	size    bucketSize
	hashFn  func(K, int) int
}

// NewHashed constructs a container with the given bucket table size.
// hashFn projects a key onto a bucket index; callers pass nil to use
// the default: xxhash over the key's little-endian bytes, modulo the
// table length.
func NewHashed[K comparable, T Keyed[K]](size bucketSize, hashFn func(K, int) int) *Hashed[K, T] {
	if hashFn == nil {
		hashFn = defaultHash[K]
	}
	return &Hashed[K, T]{
		buckets: make([][]T, size),
		index:   make(map[K]int),
		size:    size,
		hashFn:  hashFn,
	}
}

func defaultHash[K comparable](k K, tableLen int) int {
	h := xxhash.New64()
	_, _ = h.Write([]byte(keyBytes(k)))
	return int(h.Sum64() % uint64(tableLen))
}

// keyBytes renders an integer-like key as bytes for hashing. Verse
// keys are always uint16/uint32 ids (node/tag-group/tag/layer ids),
// so a fixed-width little-endian encoding covers every caller.
func keyBytes[K comparable](k K) []byte {
	switch v := any(k).(type) {
	case uint32:
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	case uint16:
		return []byte{byte(v), byte(v >> 8)}
	case int:
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	default:
		return []byte{}
	}
}

func (h *Hashed[K, T]) bucketIdx(k K) int {
	return h.hashFn(k, len(h.buckets))
}

// Add inserts item, keyed by item.Key(). If an item with the same key
// already exists it is replaced in place (the "copy" mode of the
// source; Verse never needs "pointer" mode because T is always a
// pointer-shaped type in practice).
func (h *Hashed[K, T]) Add(item T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := item.Key()
	idx := h.bucketIdx(k)
	bucket := h.buckets[idx]
	for i, existing := range bucket {
		if existing.Key() == k {
			bucket[i] = item
			return
		}
	}
	h.buckets[idx] = append(bucket, item)
	h.index[k] = len(h.order)
	h.order = append(h.order, k)
}

// Find returns the item stored under key k, or the zero value and
// false if none exists. An empty container never touches a bucket
// body (spec.md §8 boundary behaviour).
func (h *Hashed[K, T]) Find(k K) (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero T
	if len(h.buckets) == 0 {
		return zero, false
	}
	idx := h.bucketIdx(k)
	for _, existing := range h.buckets[idx] {
		if existing.Key() == k {
			return existing, true
		}
	}
	return zero, false
}

// Remove deletes the item keyed by k, if present.
func (h *Hashed[K, T]) Remove(k K) {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := h.bucketIdx(k)
	bucket := h.buckets[idx]
	for i, existing := range bucket {
		if existing.Key() == k {
			h.buckets[idx] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if pos, ok := h.index[k]; ok {
		h.order = append(h.order[:pos], h.order[pos+1:]...)
		delete(h.index, k)
		for key, p := range h.index {
			if p > pos {
				h.index[key] = p - 1
			}
		}
	}
}

// Count returns the number of stored items.
func (h *Hashed[K, T]) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

// Each calls fn for every item in insertion order. It snapshots the
// keys under the lock and releases the lock before calling fn, so fn
// may call back into the same container (Add/Remove/Find); an item
// removed before its turn is skipped, and an item added during the
// walk is not visited.
func (h *Hashed[K, T]) Each(fn func(item T)) {
	h.mu.Lock()
	keys := append([]K(nil), h.order...)
	h.mu.Unlock()
	for _, k := range keys {
		if item, ok := h.Find(k); ok {
			fn(item)
		}
	}
}

// Destroy empties the container.
func (h *Hashed[K, T]) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buckets = make([][]T, h.size)
	h.order = nil
	h.index = make(map[K]int)
}
