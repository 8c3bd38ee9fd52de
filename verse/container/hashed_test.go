// Tests for the generic hashed-keyed container (spec.md §4.1).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubItem struct {
	id  uint16
	tag string
}

func (s *stubItem) Key() uint16 { return s.id }

func TestHashedAddFind(t *testing.T) {
	h := NewHashed[uint16, *stubItem](SmallTable, nil)
	h.Add(&stubItem{id: 5, tag: "five"})

	got, ok := h.Find(5)
	require.True(t, ok)
	require.Equal(t, "five", got.tag)

	_, ok = h.Find(6)
	require.False(t, ok)
}

func TestHashedFindOnEmptyContainer(t *testing.T) {
	h := NewHashed[uint16, *stubItem](SmallTable, nil)
	_, ok := h.Find(0)
	require.False(t, ok)
	require.Equal(t, 0, h.Count())
}

func TestHashedAddReplacesSameKey(t *testing.T) {
	h := NewHashed[uint16, *stubItem](SmallTable, nil)
	h.Add(&stubItem{id: 1, tag: "first"})
	h.Add(&stubItem{id: 1, tag: "second"})

	require.Equal(t, 1, h.Count())
	got, ok := h.Find(1)
	require.True(t, ok)
	require.Equal(t, "second", got.tag)
}

func TestHashedRemove(t *testing.T) {
	h := NewHashed[uint16, *stubItem](SmallTable, nil)
	h.Add(&stubItem{id: 1})
	h.Add(&stubItem{id: 2})
	h.Remove(1)

	require.Equal(t, 1, h.Count())
	_, ok := h.Find(1)
	require.False(t, ok)
	_, ok = h.Find(2)
	require.True(t, ok)
}

func TestHashedRemoveMissingKeyIsNoop(t *testing.T) {
	h := NewHashed[uint16, *stubItem](SmallTable, nil)
	h.Add(&stubItem{id: 1})
	h.Remove(42)
	require.Equal(t, 1, h.Count())
}

func TestHashedEachPreservesInsertionOrder(t *testing.T) {
	h := NewHashed[uint16, *stubItem](SmallTable, nil)
	for _, id := range []uint16{10, 3, 77, 1} {
		h.Add(&stubItem{id: id})
	}

	var order []uint16
	h.Each(func(it *stubItem) { order = append(order, it.id) })
	require.Equal(t, []uint16{10, 3, 77, 1}, order)
}

func TestHashedEachAfterRemoveSkipsGoneItems(t *testing.T) {
	h := NewHashed[uint16, *stubItem](SmallTable, nil)
	h.Add(&stubItem{id: 1})
	h.Add(&stubItem{id: 2})
	h.Add(&stubItem{id: 3})
	h.Remove(2)

	var order []uint16
	h.Each(func(it *stubItem) { order = append(order, it.id) })
	require.Equal(t, []uint16{1, 3}, order)
}

func TestHashedDestroyEmptiesContainer(t *testing.T) {
	h := NewHashed[uint16, *stubItem](SmallTable, nil)
	h.Add(&stubItem{id: 1})
	h.Add(&stubItem{id: 2})
	h.Destroy()

	require.Equal(t, 0, h.Count())
	_, ok := h.Find(1)
	require.False(t, ok)
}

func TestHashedCollisionsWithinOneBucket(t *testing.T) {
	// A table of size 1 forces every key into the same bucket,
	// exercising the per-bucket linear scan independent of hashFn.
	h := NewHashed[uint16, *stubItem](bucketSize(1), nil)
	for _, id := range []uint16{1, 2, 3, 4} {
		h.Add(&stubItem{id: id, tag: "x"})
	}
	require.Equal(t, 4, h.Count())
	for _, id := range []uint16{1, 2, 3, 4} {
		got, ok := h.Find(id)
		require.True(t, ok)
		require.Equal(t, id, got.id)
	}
	h.Remove(2)
	require.Equal(t, 3, h.Count())
	_, ok := h.Find(2)
	require.False(t, ok)
}
