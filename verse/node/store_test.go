// Tests for the node store and id allocator (spec.md §4.2).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verse-project/verse/vtypes"
)

func TestCreateLinkedAllocatesFromCommonRange(t *testing.T) {
	s := NewStore()
	n, err := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 7)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n.ID(), vtypes.FirstCommonNodeID)
	require.Equal(t, vtypes.UserID(1000), n.Owner())
	require.Equal(t, uint16(7), n.CustomType())
}

func TestCreateLinkedExplicitID(t *testing.T) {
	s := NewStore()
	n, err := s.CreateLinked(vtypes.RootNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)
	require.Equal(t, vtypes.RootNodeID, n.ID())
}

func TestCreateLinkedExplicitIDConflict(t *testing.T) {
	s := NewStore()
	_, err := s.CreateLinked(vtypes.RootNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)
	_, err = s.CreateLinked(vtypes.RootNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.Error(t, err)
}

func TestAllocateIDWrapsAfterLastCommonID(t *testing.T) {
	s := NewStore()
	s.lastCommonNodeID = vtypes.LastCommonNodeID - 1

	first, err := s.AllocateID()
	require.NoError(t, err)
	require.Equal(t, vtypes.LastCommonNodeID, first)

	second, err := s.AllocateID()
	require.NoError(t, err)
	require.Equal(t, vtypes.FirstCommonNodeID, second, "allocator wraps back to the first common id")
}

func TestAllocateIDSkipsOverOccupiedIDs(t *testing.T) {
	s := NewStore()
	s.lastCommonNodeID = vtypes.FirstCommonNodeID - 1
	occupied, err := s.CreateLinked(vtypes.UnassignedNodeID, false, 1, 0)
	require.NoError(t, err)
	require.Equal(t, vtypes.FirstCommonNodeID, occupied.ID())

	next, err := s.AllocateID()
	require.NoError(t, err)
	require.Equal(t, vtypes.FirstCommonNodeID+1, next, "allocator must skip the id just taken")
}

func TestFindMissing(t *testing.T) {
	s := NewStore()
	_, ok := s.Find(vtypes.NodeID(123))
	require.False(t, ok)
}

func TestDestroyRefusedWithChildren(t *testing.T) {
	s := NewStore()
	parent, err := s.CreateLinked(vtypes.UnassignedNodeID, false, 1, 0)
	require.NoError(t, err)
	parent.AddChild(vtypes.NodeID(999))

	err = s.Destroy(parent)
	require.ErrorIs(t, err, ErrDestroyRefused)
	_, ok := s.Find(parent.ID())
	require.True(t, ok, "refused destroy must not remove the node")
}

func TestDestroyRefusedWithLiveFollowers(t *testing.T) {
	s := NewStore()
	n, err := s.CreateLinked(vtypes.UnassignedNodeID, false, 1, 0)
	require.NoError(t, err)
	n.Folls().AddFollower(1)

	err = s.Destroy(n)
	require.ErrorIs(t, err, ErrDestroyRefused)
}

func TestDestroySucceedsWhenChildlessAndFollowerless(t *testing.T) {
	s := NewStore()
	n, err := s.CreateLinked(vtypes.UnassignedNodeID, false, 1, 0)
	require.NoError(t, err)

	require.NoError(t, s.Destroy(n))
	_, ok := s.Find(n.ID())
	require.False(t, ok)
	require.Equal(t, 0, s.Count())
}

func TestEachVisitsEveryNode(t *testing.T) {
	s := NewStore()
	for i := 0; i < 3; i++ {
		_, err := s.CreateLinked(vtypes.UnassignedNodeID, false, 1, 0)
		require.NoError(t, err)
	}
	count := 0
	s.Each(func(*Node) { count++ })
	require.Equal(t, 3, count)
}

func TestNodePermFallbackToOtherUsers(t *testing.T) {
	n := New(vtypes.NodeID(1), 1000, 0)
	n.SetPerm(vtypes.VRSOtherUsersUID, vtypes.PermRead)

	mask, ok := n.PermFor(vtypes.UserID(2000))
	require.False(t, ok, "no explicit entry for 2000")
	_ = mask

	otherMask, ok := n.PermFor(vtypes.VRSOtherUsersUID)
	require.True(t, ok)
	require.Equal(t, vtypes.PermRead, otherMask)
}

func TestNodeSetPermUpsertsInPlace(t *testing.T) {
	n := New(vtypes.NodeID(1), 1000, 0)
	n.SetPerm(2000, vtypes.PermRead)
	n.SetPerm(2000, vtypes.PermAll)

	perms := n.Permissions()
	require.Len(t, perms, 1)
	require.Equal(t, vtypes.PermAll, perms[0].Mask)
}

func TestNodeLockUnlock(t *testing.T) {
	n := New(vtypes.NodeID(1), 1000, 0)
	_, locked := n.LockHolder()
	require.False(t, locked)

	n.Lock(42)
	holder, locked := n.LockHolder()
	require.True(t, locked)
	require.Equal(t, uint32(42), uint32(holder))

	n.Unlock()
	_, locked = n.LockHolder()
	require.False(t, locked)
}

func TestAllocateTagGroupIDStartsFromLastTGID(t *testing.T) {
	n := New(vtypes.NodeID(1), 1000, 0)
	first, ok := n.AllocateTagGroupID()
	require.True(t, ok)
	require.Equal(t, uint16(0), first)
}
