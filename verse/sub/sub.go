// Package sub implements the subscription engine (spec.md §4.5):
// followers vs. subscribers, recursive node_create/tag/layer fan-out
// on subscribe, and the broadcast helpers the command handlers use to
// push create/destroy/set commands to the right cohort of sessions at
// the right priority.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package sub

import (
	"github.com/golang/glog"

	"github.com/verse-project/verse/access"
	"github.com/verse-project/verse/cmdproto"
	"github.com/verse-project/verse/fsm"
	"github.com/verse-project/verse/layer"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/tag"
	"github.com/verse-project/verse/vtypes"
)

// Engine ties the subscription operations to the live node store and
// session registry.
type Engine struct {
	Store    *node.Store
	Sessions *session.Registry
}

func New(store *node.Store, sessions *session.Registry) *Engine {
	return &Engine{Store: store, Sessions: sessions}
}

func (e *Engine) sess(id session.ID) (*session.Session, bool) {
	return e.Sessions.Get(id)
}

// --- node create/destroy broadcast (used by handlers and by link.Reparent cohort 3) ---

// SendNodeCreate registers sess as a follower of n and pushes
// node_create (spec.md §4.5 recursion step / §4.3 cohort 3).
func (e *Engine) SendNodeCreate(sess *session.Session, prio uint8, n *node.Node, parentID vtypes.NodeID) {
	n.Folls().AddFollower(fsm.FollowerKey(sess.ID))
	sess.PushOut(prio, cmdproto.Cmd{
		Op:           cmdproto.OpNodeCreate,
		NodeID:       n.ID(),
		ParentNodeID: parentID,
		UserID:       n.Owner(),
		CustomType:   n.CustomType(),
	})
}

// SendNodeLink pushes node_link without touching follower state
// (spec.md §4.3 cohorts 1 and 2).
func (e *Engine) SendNodeLink(sess *session.Session, prio uint8, parentID, childID vtypes.NodeID) {
	sess.PushOut(prio, cmdproto.Cmd{Op: cmdproto.OpNodeLink, ParentNodeID: parentID, NodeID: childID})
}

// BroadcastNodeCreate is the entry point a create-node handler calls:
// every subscriber of parent that can read parent becomes a follower
// of the new child and receives node_create.
func (e *Engine) BroadcastNodeCreate(parent, child *node.Node) {
	for _, s := range parent.Subs() {
		if !access.CanRead(parent, e.userOf(s.SessionID)) {
			continue
		}
		sess, ok := e.sess(s.SessionID)
		if !ok {
			continue
		}
		e.SendNodeCreate(sess, s.Prio, child, parent.ID())
	}
}

// RequestNodeDestroy transitions n (and implicitly every follower
// ready for it) toward DELETING and pushes node_destroy to every
// follower already CREATED; followers still CREATING are flagged and
// will receive destroy from their create_ack handler (spec.md §4.4).
func (e *Engine) RequestNodeDestroy(n *node.Node) {
	ready := n.Folls().RequestDestroy()
	for _, key := range ready {
		sess, ok := e.sess(session.ID(key))
		if !ok {
			continue
		}
		sess.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpNodeDestroy, NodeID: n.ID()})
	}
}

// AckNodeCreate processes a node_create_ack from sess, pushing the
// deferred node_destroy right away if one was pending (spec.md §4.4
// key invariant).
func (e *Engine) AckNodeCreate(n *node.Node, sessID session.ID) {
	if destroyPending := n.Folls().AckCreate(fsm.FollowerKey(sessID)); destroyPending {
		if sess, ok := e.sess(sessID); ok {
			sess.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpNodeDestroy, NodeID: n.ID()})
		}
	}
}

// AckNodeDestroy processes a node_destroy_ack, returning whether the
// node may now be physically reclaimed.
func (e *Engine) AckNodeDestroy(n *node.Node, sessID session.ID) (reclaimable bool) {
	n.RemoveSub(sessID)
	return n.Folls().AckDestroy(fsm.FollowerKey(sessID))
}

func (e *Engine) userOf(id session.ID) vtypes.UserID {
	sess, ok := e.sess(id)
	if !ok {
		return vtypes.VRSOtherUsersUID
	}
	return sess.UserID
}

// --- node subscribe/unsubscribe (spec.md §4.5) ---

// SubscribeNode implements "Subscribe to a node". version is logged
// and otherwise ignored per spec.md §9's open question (only version
// 0 is meaningful and is not yet honoured beyond the warning).
func (e *Engine) SubscribeNode(sessID session.ID, n *node.Node, version uint32) {
	if version != 0 {
		glog.Warningf("node subscribe: non-zero version %d requested for node %d, ignoring", version, n.ID())
	}
	state := n.State()
	if state != vtypes.Creating && state != vtypes.Created {
		return // precondition not met: node is not in a subscribable state
	}
	if n.IsSub(sessID) {
		return
	}
	n.AddSub(sessID, node.DefaultPriority)

	sess, ok := e.sess(sessID)
	if !ok {
		return
	}

	readable := access.CanRead(n, sess.UserID)

	// Step 1: node_perm for every permission entry, regardless of
	// read access, so the client understands why it receives nothing
	// else (spec.md §7 Permission denied treatment).
	for _, p := range n.Permissions() {
		sess.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpNodePerm, NodeID: n.ID(), UserID: p.User, PermMask: p.Mask})
	}
	sess.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpNodeOwner, NodeID: n.ID(), UserID: n.Owner()})

	if !readable {
		return
	}

	// Step 2: node_lock if locked.
	if holder, locked := n.LockHolder(); locked {
		sess.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpNodeLock, NodeID: n.ID(), UserID: e.userOf(holder)})
	}

	// Step 3: send node_create for each direct child the session does
	// not already follow, making it a follower of each; deeper
	// descendants are announced when the session subscribes to a child.
	for _, childID := range n.Children() {
		child, ok := e.Store.Find(childID)
		if !ok {
			continue
		}
		if _, isFollower := child.Folls().FollowerState(fsm.FollowerKey(sessID)); !isFollower {
			e.SendNodeCreate(sess, node.DefaultPriority, child, n.ID())
		}
	}

	// Step 4: taggroup_create for every tag group CREATING/CREATED.
	n.TagGroups().Each(func(tg *tag.TagGroup) {
		if st := tg.Folls.State(); st == vtypes.Creating || st == vtypes.Created {
			e.SendTagGroupCreate(sess, node.DefaultPriority, n, tg)
		}
	})

	// Step 5: layer_create for every layer CREATING/CREATED.
	n.Layers().Each(func(l *layer.Layer) {
		if st := l.Folls.State(); st == vtypes.Creating || st == vtypes.Created {
			e.SendLayerCreate(sess, node.DefaultPriority, n, l)
		}
	})
}

// UnsubscribeNode implements "Unsubscribe from a node": recursively
// unsubscribe from children, unsubscribe from every tag group (which
// cascades to its tags), remove from node_subs, and — for a nested
// (level>0) call — also remove from node_folls (spec.md §4.5).
func (e *Engine) UnsubscribeNode(sessID session.ID, n *node.Node, level int) {
	for _, childID := range n.Children() {
		child, ok := e.Store.Find(childID)
		if !ok {
			continue
		}
		if child.IsSub(sessID) {
			e.UnsubscribeNode(sessID, child, level+1)
		}
	}
	n.TagGroups().Each(func(tg *tag.TagGroup) {
		e.UnsubscribeTagGroup(sessID, tg)
	})
	n.RemoveSub(sessID)
	if level > 0 {
		n.Folls().RemoveFollowerUnacked(fsm.FollowerKey(sessID))
	}
}

// --- tag group subscribe/unsubscribe ---

// SendTagGroupCreate registers sess as a follower of tg and pushes
// taggroup_create.
func (e *Engine) SendTagGroupCreate(sess *session.Session, prio uint8, n *node.Node, tg *tag.TagGroup) {
	tg.Folls.AddFollower(fsm.FollowerKey(sess.ID))
	sess.PushOut(prio, cmdproto.Cmd{Op: cmdproto.OpTagGroupCreate, NodeID: n.ID(), TagGroupID: tg.ID(), CustomType: tg.CustomType()})
}

// BroadcastTagGroupCreate notifies subscribers of n that can read it.
func (e *Engine) BroadcastTagGroupCreate(n *node.Node, tg *tag.TagGroup) {
	for _, s := range n.Subs() {
		if !access.CanRead(n, e.userOf(s.SessionID)) {
			continue
		}
		sess, ok := e.sess(s.SessionID)
		if !ok {
			continue
		}
		e.SendTagGroupCreate(sess, s.Prio, n, tg)
	}
}

// SubscribeTagGroup requires sess to already be subscribed to n
// (spec.md §4.5); idempotent re-subscribe is rejected.
func (e *Engine) SubscribeTagGroup(sessID session.ID, n *node.Node, tg *tag.TagGroup) {
	if !n.IsSub(sessID) {
		return
	}
	if tg.IsSub(sessID) {
		return
	}
	tg.AddSub(sessID)
	sess, ok := e.sess(sessID)
	if !ok {
		return
	}
	tg.Tags().Each(func(t *tag.Tag) {
		e.SendTagCreate(sess, node.DefaultPriority, n, tg, t)
	})
}

func (e *Engine) UnsubscribeTagGroup(sessID session.ID, tg *tag.TagGroup) {
	tg.Tags().Each(func(t *tag.Tag) {
		t.Folls.RemoveFollowerUnacked(fsm.FollowerKey(sessID))
	})
	tg.RemoveSub(sessID)
}

// --- tag create/set ---

// SendTagCreate registers sess as a follower of t and pushes
// tag_create. The actual value, if the tag has been set since
// creation, is sent only after the follower acks tag_create (spec.md
// §4.6 rationale) — see AckTagCreate.
func (e *Engine) SendTagCreate(sess *session.Session, prio uint8, n *node.Node, tg *tag.TagGroup, t *tag.Tag) {
	t.Folls.AddFollower(fsm.FollowerKey(sess.ID))
	sess.PushOut(prio, cmdproto.Cmd{
		Op: cmdproto.OpTagCreate, NodeID: n.ID(), TagGroupID: tg.ID(), TagID: t.ID(),
		DataType: t.DataType(), Count: t.Count(), CustomType: t.CustomType(),
	})
}

// AckTagCreate: if the tag was set since creation, enqueue tag_set to
// this follower before transitioning it to CREATED (spec.md §4.6 /
// §8 scenario 6), then push the deferred tag_destroy if one was
// pending (spec.md §4.4 key invariant).
func (e *Engine) AckTagCreate(sess *session.Session, n *node.Node, tg *tag.TagGroup, t *tag.Tag) {
	if t.Initialized() {
		e.pushTagSet(sess, node.DefaultPriority, n, tg, t)
	}
	if e.AckAnyCreate(t.Folls, session.ID(sess.ID)) {
		sess.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpTagDestroy, NodeID: n.ID(), TagGroupID: tg.ID(), TagID: t.ID()})
	}
}

// AckAnyCreate records a create_ack from sessID on m and reports
// whether a destroy was pending for that follower; the caller emits it.
func (e *Engine) AckAnyCreate(m *fsm.Machine, sessID session.ID) (destroyPending bool) {
	return m.AckCreate(fsm.FollowerKey(sessID))
}

func (e *Engine) pushTagSet(sess *session.Session, prio uint8, n *node.Node, tg *tag.TagGroup, t *tag.Tag) {
	v := cmdproto.Value{DataType: t.DataType(), Count: t.Count()}
	if t.DataType() == vtypes.DataTypeString8 {
		v.Str = t.String()
	} else {
		v.Raw = t.Value()
	}
	sess.PushOut(prio, cmdproto.Cmd{Op: cmdproto.OpTagSet, NodeID: n.ID(), TagGroupID: tg.ID(), TagID: t.ID(), Value: v})
}

// BroadcastTagSet pushes tag_set to every CREATED follower of t
// (spec.md §4.6 set handler).
func (e *Engine) BroadcastTagSet(n *node.Node, tg *tag.TagGroup, t *tag.Tag) {
	for _, f := range t.Folls.Followers() {
		if f.State != vtypes.Created {
			continue
		}
		sess, ok := e.sess(session.ID(f.Key))
		if !ok {
			continue
		}
		e.pushTagSet(sess, node.DefaultPriority, n, tg, t)
	}
}

// --- layer subscribe/create/set ---

func (e *Engine) SendLayerCreate(sess *session.Session, prio uint8, n *node.Node, l *layer.Layer) {
	l.Folls.AddFollower(fsm.FollowerKey(sess.ID))
	parentID := uint16(vtypes.ReservedID)
	if p := l.Parent(); p != nil {
		parentID = p.ID()
	}
	sess.PushOut(prio, cmdproto.Cmd{
		Op: cmdproto.OpLayerCreate, NodeID: n.ID(), LayerID: l.ID(), ParentLayerID: parentID,
		DataType: l.DataType(), Count: l.NumVecComp(), CustomType: l.CustomType(),
	})
}

func (e *Engine) BroadcastLayerCreate(n *node.Node, l *layer.Layer) {
	for _, s := range n.Subs() {
		if !access.CanRead(n, e.userOf(s.SessionID)) {
			continue
		}
		sess, ok := e.sess(s.SessionID)
		if !ok {
			continue
		}
		e.SendLayerCreate(sess, s.Prio, n, l)
	}
}

// SubscribeLayer requires sess to already be subscribed to n; on
// success sends layer_set_value for every currently-set item (spec.md
// §4.5).
func (e *Engine) SubscribeLayer(sessID session.ID, n *node.Node, l *layer.Layer) {
	if !n.IsSub(sessID) {
		return
	}
	if l.IsSub(sessID) {
		return
	}
	l.AddSub(sessID)
	sess, ok := e.sess(sessID)
	if !ok {
		return
	}
	l.Values().Each(func(it *layer.Item) {
		sess.PushOut(node.DefaultPriority, cmdproto.Cmd{
			Op: cmdproto.OpLayerSetValue, NodeID: n.ID(), LayerID: l.ID(), ItemID: it.ID(),
			Value: cmdproto.Value{DataType: l.DataType(), Count: l.NumVecComp(), Raw: it.Value()},
		})
	})
}

func (e *Engine) UnsubscribeLayer(sessID session.ID, l *layer.Layer) {
	l.RemoveSub(sessID)
}

// BroadcastLayerSetValue pushes layer_set_value to every subscriber
// of l.
func (e *Engine) BroadcastLayerSetValue(n *node.Node, l *layer.Layer, itemID uint32, raw [4 * 8]byte) {
	for _, id := range l.Subs() {
		sess, ok := e.sess(id)
		if !ok {
			continue
		}
		sess.PushOut(node.DefaultPriority, cmdproto.Cmd{
			Op: cmdproto.OpLayerSetValue, NodeID: n.ID(), LayerID: l.ID(), ItemID: itemID,
			Value: cmdproto.Value{DataType: l.DataType(), Count: l.NumVecComp(), Raw: raw},
		})
	}
}

// BroadcastLayerUnsetValue pushes layer_unset_value to every
// subscriber of l only — never to descendant layers (spec.md §4.7:
// "the cascaded unset is not announced over the wire").
func (e *Engine) BroadcastLayerUnsetValue(n *node.Node, l *layer.Layer, itemID uint32) {
	for _, id := range l.Subs() {
		sess, ok := e.sess(id)
		if !ok {
			continue
		}
		sess.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpLayerUnsetValue, NodeID: n.ID(), LayerID: l.ID(), ItemID: itemID})
	}
}
