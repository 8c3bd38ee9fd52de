// Command handlers (spec.md §4.9, §6): validate, mutate, broadcast.
// Each handler receives the already-locked (data.mutex) Core and one
// decoded command.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package dispatch

import (
	"github.com/golang/glog"

	"github.com/verse-project/verse/access"
	"github.com/verse-project/verse/cmdproto"
	"github.com/verse-project/verse/fsm"
	"github.com/verse-project/verse/layer"
	"github.com/verse-project/verse/link"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/tag"
	"github.com/verse-project/verse/vtypes"
)

func (c *Core) handle(sess *session.Session, cmd cmdproto.Cmd) {
	if c.Metrics != nil {
		c.Metrics.CommandsHandled.WithLabelValues(opcodeName(cmd.Op)).Inc()
	}
	switch cmd.Op {
	case cmdproto.OpNodeCreate:
		c.handleNodeCreate(sess, cmd)
	case cmdproto.OpNodeCreateAck:
		c.handleNodeCreateAck(sess, cmd)
	case cmdproto.OpNodeDestroy:
		c.handleNodeDestroy(sess, cmd)
	case cmdproto.OpNodeDestroyAck:
		c.handleNodeDestroyAck(sess, cmd)
	case cmdproto.OpNodeSubscribe:
		c.handleNodeSubscribe(sess, cmd)
	case cmdproto.OpNodeUnsubscribe:
		c.handleNodeUnsubscribe(sess, cmd)
	case cmdproto.OpNodeLink:
		c.handleNodeLink(sess, cmd)
	case cmdproto.OpNodePerm:
		c.handleNodePerm(sess, cmd)
	case cmdproto.OpNodeOwner:
		c.handleNodeOwner(sess, cmd)
	case cmdproto.OpNodeLock:
		c.handleNodeLock(sess, cmd)
	case cmdproto.OpNodeUnlock:
		c.handleNodeUnlock(sess, cmd)
	case cmdproto.OpNodePrio:
		c.handleNodePrio(sess, cmd)

	case cmdproto.OpTagGroupCreate:
		c.handleTagGroupCreate(sess, cmd)
	case cmdproto.OpTagGroupCreateAck:
		c.handleTagGroupCreateAck(sess, cmd)
	case cmdproto.OpTagGroupDestroy:
		c.handleTagGroupDestroy(sess, cmd)
	case cmdproto.OpTagGroupDestroyAck:
		c.handleTagGroupDestroyAck(sess, cmd)
	case cmdproto.OpTagGroupSubscribe:
		c.handleTagGroupSubscribe(sess, cmd)
	case cmdproto.OpTagGroupUnsubscribe:
		c.handleTagGroupUnsubscribe(sess, cmd)

	case cmdproto.OpTagCreate:
		c.handleTagCreate(sess, cmd)
	case cmdproto.OpTagCreateAck:
		c.handleTagCreateAck(sess, cmd)
	case cmdproto.OpTagDestroy:
		c.handleTagDestroy(sess, cmd)
	case cmdproto.OpTagDestroyAck:
		c.handleTagDestroyAck(sess, cmd)
	case cmdproto.OpTagSet:
		c.handleTagSet(sess, cmd)

	case cmdproto.OpLayerCreate:
		c.handleLayerCreate(sess, cmd)
	case cmdproto.OpLayerCreateAck:
		c.handleLayerCreateAck(sess, cmd)
	case cmdproto.OpLayerDestroy:
		c.handleLayerDestroy(sess, cmd)
	case cmdproto.OpLayerDestroyAck:
		c.handleLayerDestroyAck(sess, cmd)
	case cmdproto.OpLayerSubscribe:
		c.handleLayerSubscribe(sess, cmd)
	case cmdproto.OpLayerUnsubscribe:
		c.handleLayerUnsubscribe(sess, cmd)
	case cmdproto.OpLayerSetValue:
		c.handleLayerSetValue(sess, cmd)
	case cmdproto.OpLayerUnsetValue:
		c.handleLayerUnsetValue(sess, cmd)

	default:
		glog.Warningf("dispatch: unknown opcode %d from session %d, dropping", cmd.Op, sess.ID)
	}
}

// --- node handlers ---

func (c *Core) handleNodeCreate(sess *session.Session, cmd cmdproto.Cmd) {
	parent, ok := c.Store.Find(cmd.ParentNodeID)
	if !ok {
		glog.V(2).Infof("node_create: unknown parent %d, dropping", cmd.ParentNodeID)
		return
	}
	if !access.CanWrite(parent, sess.UserID) {
		glog.V(2).Infof("node_create: session %d lacks write on parent %d, dropping", sess.ID, parent.ID())
		return
	}
	useExplicit := cmd.NodeID != vtypes.UnassignedNodeID
	n, err := c.Store.CreateLinked(cmd.NodeID, useExplicit, sess.UserID, cmd.CustomType)
	if err != nil {
		glog.Warningf("node_create: %v", err)
		return
	}
	link.Create(parent, n)
	c.Sub.BroadcastNodeCreate(parent, n)
}

func (c *Core) handleNodeCreateAck(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	c.Sub.AckNodeCreate(n, sess.ID)
}

func (c *Core) handleNodeDestroy(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	c.Sub.RequestNodeDestroy(n)
}

func (c *Core) handleNodeDestroyAck(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	if reclaimable := c.Sub.AckNodeDestroy(n, sess.ID); reclaimable {
		c.reclaimNode(n)
	}
}

// reclaimNode destroys tag groups/layers (already drained of
// followers by the time every node follower has acked) and removes
// the node from the store and its parent's child list (spec.md §4.2
// Destroy).
func (c *Core) reclaimNode(n *node.Node) {
	n.TagGroups().Each(func(tg *tag.TagGroup) { n.TagGroups().Remove(tg.ID()) })
	n.Layers().Each(func(l *layer.Layer) { n.Layers().Remove(l.ID()) })
	if parentID, ok := n.Parent(); ok {
		if parent, ok := c.Store.Find(parentID); ok {
			parent.RemoveChild(n.ID())
		}
	}
	if err := c.Store.Destroy(n); err != nil {
		glog.Errorf("reclaimNode: %v", err)
	}
}

func (c *Core) handleNodeSubscribe(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	c.Sub.SubscribeNode(sess.ID, n, cmd.Version)
}

func (c *Core) handleNodeUnsubscribe(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	c.Sub.UnsubscribeNode(sess.ID, n, 0)
}

func (c *Core) handleNodeLink(sess *session.Session, cmd cmdproto.Cmd) {
	child, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	newParent, ok := c.Store.Find(cmd.ParentNodeID)
	if !ok {
		return
	}
	oldParentID, hasParent := child.Parent()
	if !hasParent {
		return // root has no parent link to move
	}
	oldParent, ok := c.Store.Find(oldParentID)
	if !ok {
		return
	}
	if !access.CanWrite(child, sess.UserID) {
		return
	}
	if !link.TestNodes(c.Store, newParent, child) {
		glog.V(2).Infof("node_link: rejecting cyclic re-parent of %d under %d", child.ID(), newParent.ID())
		return
	}
	link.Reparent(c.Store, c.Sessions, child, oldParent, newParent,
		func(s *session.Session, prio uint8) { c.Sub.SendNodeLink(s, prio, newParent.ID(), child.ID()) },
		func(s *session.Session, prio uint8) { c.Sub.SendNodeCreate(s, prio, child, newParent.ID()) },
	)
}

func (c *Core) handleNodePerm(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	if n.Owner() != sess.UserID {
		return
	}
	access.SetPerm(n, cmd.UserID, cmd.PermMask)
	for _, s := range n.Subs() {
		target, ok := c.Sessions.Get(s.SessionID)
		if !ok {
			continue
		}
		target.PushOut(s.Prio, cmdproto.Cmd{Op: cmdproto.OpNodePerm, NodeID: n.ID(), UserID: cmd.UserID, PermMask: cmd.PermMask})
	}
}

func (c *Core) handleNodeOwner(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	if n.Owner() != sess.UserID {
		return
	}
	n.SetOwner(cmd.UserID)
	for _, s := range n.Subs() {
		target, ok := c.Sessions.Get(s.SessionID)
		if !ok {
			continue
		}
		target.PushOut(s.Prio, cmdproto.Cmd{Op: cmdproto.OpNodeOwner, NodeID: n.ID(), UserID: cmd.UserID})
	}
}

func (c *Core) handleNodeLock(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	if _, locked := n.LockHolder(); locked {
		return
	}
	n.Lock(sess.ID)
	for _, s := range n.Subs() {
		target, ok := c.Sessions.Get(s.SessionID)
		if !ok {
			continue
		}
		target.PushOut(s.Prio, cmdproto.Cmd{Op: cmdproto.OpNodeLock, NodeID: n.ID(), UserID: sess.UserID})
	}
}

func (c *Core) handleNodeUnlock(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	holder, locked := n.LockHolder()
	if !locked || holder != sess.ID {
		return
	}
	n.Unlock()
	c.broadcastUnlock(n)
}

func (c *Core) broadcastUnlock(n *node.Node) {
	for _, s := range n.Subs() {
		target, ok := c.Sessions.Get(s.SessionID)
		if !ok {
			continue
		}
		target.PushOut(s.Prio, cmdproto.Cmd{Op: cmdproto.OpNodeUnlock, NodeID: n.ID()})
	}
}

func (c *Core) handleNodePrio(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	c.setPrioRecursive(sess.ID, n, cmd.Prio)
}

// setPrioRecursive mirrors vs_node_prio's recursive descent: only
// recurses into a child if sess is subscribed to it too (spec.md
// §4.5 Priority).
func (c *Core) setPrioRecursive(sessID session.ID, n *node.Node, prio uint8) {
	if !n.IsSub(sessID) {
		return
	}
	n.SetPrio(sessID, prio)
	for _, childID := range n.Children() {
		child, ok := c.Store.Find(childID)
		if !ok {
			continue
		}
		c.setPrioRecursive(sessID, child, prio)
	}
}

// --- tag group handlers ---

func (c *Core) handleTagGroupCreate(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	if n.HasTagGroupCustomType(cmd.CustomType) {
		return
	}
	if n.TagGroups().Count() >= vtypes.MaxTagGroupsCount {
		return
	}
	id, ok := n.AllocateTagGroupID()
	if !ok {
		return
	}
	tg := tag.NewTagGroup(id, cmd.CustomType)
	n.TagGroups().Add(tg)
	c.Sub.BroadcastTagGroupCreate(n, tg)
}

func (c *Core) handleTagGroupCreateAck(sess *session.Session, cmd cmdproto.Cmd) {
	n, tg, ok := c.findTagGroup(cmd)
	if !ok {
		_ = n
		return
	}
	if destroyPending := tg.Folls.AckCreate(fsm.FollowerKey(sess.ID)); destroyPending {
		if target, ok := c.Sessions.Get(sess.ID); ok {
			target.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpTagGroupDestroy, NodeID: n.ID(), TagGroupID: tg.ID()})
		}
	}
}

func (c *Core) findTagGroup(cmd cmdproto.Cmd) (*node.Node, *tag.TagGroup, bool) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return nil, nil, false
	}
	tg, ok := n.TagGroups().Find(cmd.TagGroupID)
	if !ok {
		return n, nil, false
	}
	return n, tg, true
}

func (c *Core) handleTagGroupDestroy(sess *session.Session, cmd cmdproto.Cmd) {
	n, tg, ok := c.findTagGroup(cmd)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	ready := tg.Folls.RequestDestroy()
	for _, key := range ready {
		if target, ok := c.Sessions.Get(session.ID(key)); ok {
			target.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpTagGroupDestroy, NodeID: n.ID(), TagGroupID: tg.ID()})
		}
	}
}

func (c *Core) handleTagGroupDestroyAck(sess *session.Session, cmd cmdproto.Cmd) {
	_, tg, ok := c.findTagGroup(cmd)
	if !ok {
		return
	}
	if done := tg.Folls.AckDestroy(fsm.FollowerKey(sess.ID)); done {
		if n, ok := c.Store.Find(cmd.NodeID); ok {
			n.TagGroups().Remove(tg.ID())
		}
	}
}

func (c *Core) handleTagGroupSubscribe(sess *session.Session, cmd cmdproto.Cmd) {
	n, tg, ok := c.findTagGroup(cmd)
	if !ok {
		return
	}
	c.Sub.SubscribeTagGroup(sess.ID, n, tg)
}

func (c *Core) handleTagGroupUnsubscribe(sess *session.Session, cmd cmdproto.Cmd) {
	_, tg, ok := c.findTagGroup(cmd)
	if !ok {
		return
	}
	c.Sub.UnsubscribeTagGroup(sess.ID, tg)
}

// --- tag handlers ---

func (c *Core) findTag(cmd cmdproto.Cmd) (*node.Node, *tag.TagGroup, *tag.Tag, bool) {
	n, tg, ok := c.findTagGroup(cmd)
	if !ok {
		return nil, nil, nil, false
	}
	t, ok := tg.Tags().Find(cmd.TagID)
	if !ok {
		return n, tg, nil, false
	}
	return n, tg, t, true
}

func (c *Core) handleTagCreate(sess *session.Session, cmd cmdproto.Cmd) {
	n, tg, ok := c.findTagGroup(cmd)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	if !cmd.DataType.Valid() || cmd.Count < 1 || cmd.Count > vtypes.MaxVecComponents {
		return
	}
	if cmd.DataType == vtypes.DataTypeString8 && cmd.Count != 1 {
		return
	}
	if tg.HasCustomType(cmd.CustomType) {
		return
	}
	if tg.Tags().Count() >= vtypes.MaxTagsCount {
		return
	}
	id, ok := tg.AllocateTagID()
	if !ok {
		return
	}
	t := tag.NewTag(id, cmd.DataType, cmd.Count, cmd.CustomType)
	tg.Tags().Add(t)
	for _, sessID := range tg.Subs() {
		target, ok := c.Sessions.Get(sessID)
		if !ok {
			continue
		}
		c.Sub.SendTagCreate(target, node.DefaultPriority, n, tg, t)
	}
}

func (c *Core) handleTagCreateAck(sess *session.Session, cmd cmdproto.Cmd) {
	n, tg, t, ok := c.findTag(cmd)
	if !ok {
		return
	}
	c.Sub.AckTagCreate(sess, n, tg, t)
}

func (c *Core) handleTagDestroy(sess *session.Session, cmd cmdproto.Cmd) {
	n, _, t, ok := c.findTag(cmd)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	ready := t.Folls.RequestDestroy()
	for _, key := range ready {
		if target, ok := c.Sessions.Get(session.ID(key)); ok {
			target.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpTagDestroy, NodeID: cmd.NodeID, TagGroupID: cmd.TagGroupID, TagID: t.ID()})
		}
	}
}

func (c *Core) handleTagDestroyAck(sess *session.Session, cmd cmdproto.Cmd) {
	_, tg, t, ok := c.findTag(cmd)
	if !ok {
		return
	}
	if done := t.Folls.AckDestroy(fsm.FollowerKey(sess.ID)); done {
		tg.Tags().Remove(t.ID())
	}
}

func (c *Core) handleTagSet(sess *session.Session, cmd cmdproto.Cmd) {
	n, tg, t, ok := c.findTag(cmd)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	if cmd.DataType != t.DataType() || cmd.Count != t.Count() {
		return
	}
	if t.DataType() == vtypes.DataTypeString8 {
		t.SetString(cmd.Value.Str)
	} else {
		t.SetValue(cmd.Value.Raw)
	}
	tg.IncVersion()
	c.Sub.BroadcastTagSet(n, tg, t)
}

// --- layer handlers ---

func (c *Core) handleLayerCreate(sess *session.Session, cmd cmdproto.Cmd) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	if !cmd.DataType.Valid() || cmd.Count < 1 || cmd.Count > vtypes.MaxVecComponents {
		return
	}
	var parent *layer.Layer
	if cmd.ParentLayerID != uint16(vtypes.ReservedID) {
		p, ok := n.Layers().Find(cmd.ParentLayerID)
		if !ok {
			return
		}
		parent = p
	}
	if n.HasLayerCustomType(cmd.CustomType) {
		return
	}
	if n.Layers().Count() >= vtypes.MaxLayersCount {
		return
	}
	id, ok := n.AllocateLayerID()
	if !ok {
		return
	}
	l := layer.New(id, cmd.DataType, cmd.Count, cmd.CustomType, parent)
	n.Layers().Add(l)
	c.Sub.BroadcastLayerCreate(n, l)
}

func (c *Core) findLayer(cmd cmdproto.Cmd) (*node.Node, *layer.Layer, bool) {
	n, ok := c.Store.Find(cmd.NodeID)
	if !ok {
		return nil, nil, false
	}
	l, ok := n.Layers().Find(cmd.LayerID)
	if !ok {
		return n, nil, false
	}
	return n, l, true
}

func (c *Core) handleLayerCreateAck(sess *session.Session, cmd cmdproto.Cmd) {
	n, l, ok := c.findLayer(cmd)
	if !ok {
		return
	}
	if destroyPending := l.Folls.AckCreate(fsm.FollowerKey(sess.ID)); destroyPending {
		if target, ok := c.Sessions.Get(sess.ID); ok {
			target.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpLayerDestroy, NodeID: n.ID(), LayerID: l.ID()})
		}
	}
}

func (c *Core) handleLayerDestroy(sess *session.Session, cmd cmdproto.Cmd) {
	n, l, ok := c.findLayer(cmd)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	c.destroyLayerRecursive(n, l)
}

// destroyLayerRecursive destroys descendants depth-first first,
// respecting the create-before-destroy invariant at every layer
// (spec.md §4.7 "Destroying a layer recursively destroys its
// descendants").
func (c *Core) destroyLayerRecursive(n *node.Node, l *layer.Layer) {
	for _, child := range l.Children() {
		c.destroyLayerRecursive(n, child)
	}
	ready := l.Folls.RequestDestroy()
	for _, key := range ready {
		if target, ok := c.Sessions.Get(session.ID(key)); ok {
			target.PushOut(node.DefaultPriority, cmdproto.Cmd{Op: cmdproto.OpLayerDestroy, NodeID: n.ID(), LayerID: l.ID()})
		}
	}
}

func (c *Core) handleLayerDestroyAck(sess *session.Session, cmd cmdproto.Cmd) {
	n, l, ok := c.findLayer(cmd)
	if !ok {
		return
	}
	if done := l.Folls.AckDestroy(fsm.FollowerKey(sess.ID)); done {
		n.Layers().Remove(l.ID())
	}
}

func (c *Core) handleLayerSubscribe(sess *session.Session, cmd cmdproto.Cmd) {
	n, l, ok := c.findLayer(cmd)
	if !ok {
		return
	}
	c.Sub.SubscribeLayer(sess.ID, n, l)
}

func (c *Core) handleLayerUnsubscribe(sess *session.Session, cmd cmdproto.Cmd) {
	_, l, ok := c.findLayer(cmd)
	if !ok {
		return
	}
	c.Sub.UnsubscribeLayer(sess.ID, l)
}

func (c *Core) handleLayerSetValue(sess *session.Session, cmd cmdproto.Cmd) {
	n, l, ok := c.findLayer(cmd)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	// count and data_type must match the layer's schema exactly;
	// mismatch is silently rejected (spec.md §4.7).
	if cmd.DataType != l.DataType() || cmd.Count != l.NumVecComp() {
		return
	}
	l.SetValue(cmd.ItemID, cmd.Value.Raw)
	c.Sub.BroadcastLayerSetValue(n, l, cmd.ItemID, cmd.Value.Raw)
}

func (c *Core) handleLayerUnsetValue(sess *session.Session, cmd cmdproto.Cmd) {
	n, l, ok := c.findLayer(cmd)
	if !ok {
		return
	}
	if !access.CanWrite(n, sess.UserID) {
		return
	}
	l.UnsetValue(cmd.ItemID)
	c.Sub.BroadcastLayerUnsetValue(n, l, cmd.ItemID)
	l.CascadeUnset(cmd.ItemID)
}

// opcodeName gives metrics a stable, low-cardinality label without
// depending on cmdproto.Opcode growing a String method of its own.
func opcodeName(op cmdproto.Opcode) string {
	switch op {
	case cmdproto.OpNodeCreate:
		return "node_create"
	case cmdproto.OpNodeCreateAck:
		return "node_create_ack"
	case cmdproto.OpNodeDestroy:
		return "node_destroy"
	case cmdproto.OpNodeDestroyAck:
		return "node_destroy_ack"
	case cmdproto.OpNodeSubscribe:
		return "node_subscribe"
	case cmdproto.OpNodeUnsubscribe:
		return "node_unsubscribe"
	case cmdproto.OpNodeLink:
		return "node_link"
	case cmdproto.OpNodePerm:
		return "node_perm"
	case cmdproto.OpNodeOwner:
		return "node_owner"
	case cmdproto.OpNodeLock:
		return "node_lock"
	case cmdproto.OpNodeUnlock:
		return "node_unlock"
	case cmdproto.OpNodePrio:
		return "node_prio"
	case cmdproto.OpTagGroupCreate:
		return "tag_group_create"
	case cmdproto.OpTagGroupCreateAck:
		return "tag_group_create_ack"
	case cmdproto.OpTagGroupDestroy:
		return "tag_group_destroy"
	case cmdproto.OpTagGroupDestroyAck:
		return "tag_group_destroy_ack"
	case cmdproto.OpTagGroupSubscribe:
		return "tag_group_subscribe"
	case cmdproto.OpTagGroupUnsubscribe:
		return "tag_group_unsubscribe"
	case cmdproto.OpTagCreate:
		return "tag_create"
	case cmdproto.OpTagCreateAck:
		return "tag_create_ack"
	case cmdproto.OpTagDestroy:
		return "tag_destroy"
	case cmdproto.OpTagDestroyAck:
		return "tag_destroy_ack"
	case cmdproto.OpTagSet:
		return "tag_set"
	case cmdproto.OpLayerCreate:
		return "layer_create"
	case cmdproto.OpLayerCreateAck:
		return "layer_create_ack"
	case cmdproto.OpLayerDestroy:
		return "layer_destroy"
	case cmdproto.OpLayerDestroyAck:
		return "layer_destroy_ack"
	case cmdproto.OpLayerSubscribe:
		return "layer_subscribe"
	case cmdproto.OpLayerUnsubscribe:
		return "layer_unsubscribe"
	case cmdproto.OpLayerSetValue:
		return "layer_set_value"
	case cmdproto.OpLayerUnsetValue:
		return "layer_unset_value"
	case cmdproto.OpNodeLockAck:
		return "node_lock_ack"
	case cmdproto.OpNodeUnlockAck:
		return "node_unlock_ack"
	default:
		return "unknown"
	}
}
