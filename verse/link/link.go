// Package link implements the single-parent child-list backbone
// between nodes: cycle prevention, level maintenance, and the
// re-parent operation's three-cohort notification fan-out (spec.md
// §3 Link, §4.3).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package link

import (
	"github.com/golang/glog"

	"github.com/verse-project/verse/access"
	"github.com/verse-project/verse/fsm"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/vtypes"
)

// Create attaches child under parent: sets the child's parent id,
// appends child to parent's child list, and recomputes child's level
// as parent.level + 1 (spec.md §3 Link invariants).
func Create(parent, child *node.Node) {
	child.SetParent(parent.ID())
	parent.AddChild(child.ID())
	child.SetLevel(parent.Level() + 1)
}

// TestNodes reports whether parent may legally become (or remain) an
// ancestor of child without creating a cycle: true iff parent is
// strictly shallower than child, or no walk from parent to root
// passes through child (spec.md §4.3 vs_link_test_nodes). store
// resolves node ids to nodes to walk the parent chain.
func TestNodes(store *node.Store, parent, child *node.Node) bool {
	if parent.Level() < child.Level() {
		return true
	}
	cur := parent
	for {
		if cur.ID() == child.ID() {
			return false
		}
		parentID, hasParent := cur.Parent()
		if !hasParent {
			return true
		}
		next, ok := store.Find(parentID)
		if !ok {
			glog.Warningf("link: dangling parent id %d while walking ancestry of %d", parentID, parent.ID())
			return true
		}
		cur = next
	}
}

// recomputeLevels walks child's subtree after a re-parent, fixing up
// level (spec.md §4.3: "recompute child levels (not required by wire
// but an internal invariant)").
func recomputeLevels(store *node.Store, n *node.Node) {
	for _, childID := range n.Children() {
		child, ok := store.Find(childID)
		if !ok {
			continue
		}
		child.SetLevel(n.Level() + 1)
		recomputeLevels(store, child)
	}
}

// Sender is the minimal session-facing capability Reparent needs: the
// ability to look a session up and push a prioritized command to its
// outbound queue. verse/dispatch's session.Registry satisfies this
// directly.
type Sender interface {
	Get(id session.ID) (*session.Session, bool)
}

// Reparent moves child from its current parent to newParent, notifying
// three deterministic client cohorts without double-sending (spec.md
// §4.3):
//  1. subscribers of the old parent that can read it: node_link
//  2. existing followers of child: node_link
//  3. subscribers of newParent not already a follower of child: node_create
//
// sendCreate is called to actually perform the "send node_create"
// side effect (making the session a new follower of child and
// cascading its contents) since that logic belongs to the
// subscription engine, not to the link graph; Reparent only decides
// who falls in which cohort.
func Reparent(store *node.Store, sessions Sender, child, oldParent, newParent *node.Node,
	sendLink func(sess *session.Session, prio uint8),
	sendCreate func(sess *session.Session, prio uint8),
) {
	oldParent.RemoveChild(child.ID())
	newParent.AddChild(child.ID())
	child.SetParent(newParent.ID())
	child.SetLevel(newParent.Level() + 1)
	recomputeLevels(store, child)

	notified := make(map[session.ID]bool)

	// Cohort 1: subscribers of the old parent that can read it.
	for _, sub := range oldParent.Subs() {
		if !access.CanRead(oldParent, userOf(sessions, sub.SessionID)) {
			continue
		}
		sess, ok := sessions.Get(sub.SessionID)
		if !ok {
			continue
		}
		if !notified[sub.SessionID] {
			notified[sub.SessionID] = true
			sendLink(sess, sub.Prio)
		}
	}

	// Cohort 2: existing followers of child (learned through the old
	// parent), still owed a node_link rather than a fresh node_create.
	for _, f := range child.Folls().Followers() {
		id := session.ID(f.Key)
		sess, ok := sessions.Get(id)
		if !ok {
			continue
		}
		if !notified[id] {
			notified[id] = true
			sendLink(sess, node.DefaultPriority)
		}
	}

	// Cohort 3: subscribers of the new parent not already a follower
	// of child get a fresh node_create.
	for _, sub := range newParent.Subs() {
		if notified[sub.SessionID] {
			continue
		}
		if _, isFollower := child.Folls().FollowerState(fsm.FollowerKey(sub.SessionID)); isFollower {
			continue
		}
		sess, ok := sessions.Get(sub.SessionID)
		if !ok {
			continue
		}
		notified[sub.SessionID] = true
		sendCreate(sess, sub.Prio)
	}
}

func userOf(sessions Sender, id session.ID) vtypes.UserID {
	sess, ok := sessions.Get(id)
	if !ok {
		return vtypes.VRSOtherUsersUID
	}
	return sess.UserID
}
