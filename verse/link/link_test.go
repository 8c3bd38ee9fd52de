// Tests for the single-parent link backbone and re-parent fan-out
// (spec.md §4.3).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package link

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verse-project/verse/fsm"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/vtypes"
)

func newTestStore(t *testing.T) (*node.Store, *node.Node) {
	t.Helper()
	s := node.NewStore()
	root, err := s.CreateLinked(vtypes.RootNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)
	return s, root
}

func TestCreateSetsParentAndLevel(t *testing.T) {
	s, root := newTestStore(t)
	child, err := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	require.NoError(t, err)

	Create(root, child)

	parentID, ok := child.Parent()
	require.True(t, ok)
	require.Equal(t, root.ID(), parentID)
	require.Equal(t, root.Level()+1, child.Level())
	require.Contains(t, root.Children(), child.ID())
}

func TestTestNodesRejectsCycle(t *testing.T) {
	s, root := newTestStore(t)
	a, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(root, a)
	b, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(a, b)

	// Re-parenting a (ancestor of b) under b would create a cycle.
	require.False(t, TestNodes(s, b, a))
}

func TestTestNodesAllowsNonCyclicMove(t *testing.T) {
	s, root := newTestStore(t)
	a, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(root, a)
	b, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(root, b)

	require.True(t, TestNodes(s, b, a))
}

// fakeSender is a minimal Sender used to drive Reparent without the
// full session.Registry/dispatch machinery.
type fakeSender struct {
	sessions map[session.ID]*session.Session
}

func newFakeSender(sessions ...*session.Session) *fakeSender {
	m := make(map[session.ID]*session.Session, len(sessions))
	for _, s := range sessions {
		m[s.ID] = s
	}
	return &fakeSender{sessions: m}
}

func (f *fakeSender) Get(id session.ID) (*session.Session, bool) {
	s, ok := f.sessions[id]
	return s, ok
}

// TestReparentThreeCohorts exercises spec.md §4.3's three notification
// cohorts without double-sending to any one session: a subscriber of
// the old parent only, an existing follower of the child reached
// through a different node, and a subscriber of the new parent that
// is not yet a follower.
func TestReparentThreeCohorts(t *testing.T) {
	s, root := newTestStore(t)
	oldParent, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(root, oldParent)
	newParent, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(root, newParent)
	child, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(oldParent, child)

	oldSub := session.New(1, 1000)
	existingFollower := session.New(2, 1000)
	newSub := session.New(3, 1000)
	doubleSub := session.New(4, 1000) // subscribed to both parents: must be notified once

	oldParent.AddSub(oldSub.ID, node.DefaultPriority)
	oldParent.AddSub(doubleSub.ID, node.DefaultPriority)
	newParent.AddSub(newSub.ID, node.DefaultPriority)
	newParent.AddSub(doubleSub.ID, node.DefaultPriority)
	child.Folls().AddFollower(fsm.FollowerKey(existingFollower.ID))

	sessions := newFakeSender(oldSub, existingFollower, newSub, doubleSub)

	var linked, created []session.ID
	sendLink := func(sess *session.Session, prio uint8) { linked = append(linked, sess.ID) }
	sendCreate := func(sess *session.Session, prio uint8) { created = append(created, sess.ID) }

	Reparent(s, sessions, child, oldParent, newParent, sendLink, sendCreate)

	require.ElementsMatch(t, []session.ID{oldSub.ID, existingFollower.ID, doubleSub.ID}, linked)
	require.ElementsMatch(t, []session.ID{newSub.ID}, created)

	parentID, ok := child.Parent()
	require.True(t, ok)
	require.Equal(t, newParent.ID(), parentID)
	require.NotContains(t, oldParent.Children(), child.ID())
	require.Contains(t, newParent.Children(), child.ID())
}

func TestReparentRecomputesDescendantLevels(t *testing.T) {
	s, root := newTestStore(t)
	oldParent, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(root, oldParent)
	newParent, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(root, newParent)
	child, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(oldParent, child)
	grandchild, _ := s.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	Create(child, grandchild)

	sessions := newFakeSender()
	Reparent(s, sessions, child, oldParent, newParent, func(*session.Session, uint8) {}, func(*session.Session, uint8) {})

	require.Equal(t, newParent.Level()+1, child.Level())
	require.Equal(t, child.Level()+1, grandchild.Level())
}
