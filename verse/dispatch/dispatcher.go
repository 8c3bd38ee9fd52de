// Package dispatch implements the single-threaded command dispatcher
// (spec.md §4.9) and the session lifecycle hooks it drives on connect
// and disconnect (spec.md §4.10). Every mutation of shared node/tag/
// layer state happens on this one goroutine: transports only enqueue
// decoded commands and drain outbound queues, they never touch node
// state directly.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package dispatch

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/verse-project/verse/fsm"
	"github.com/verse-project/verse/layer"
	"github.com/verse-project/verse/link"
	"github.com/verse-project/verse/metrics"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/sub"
	"github.com/verse-project/verse/tag"
	"github.com/verse-project/verse/vtypes"
)

// Core bundles the authoritative state the dispatcher loop owns:
// the node store, the subscription engine built on top of it, and the
// session registry. Nothing outside this package mutates any of it.
type Core struct {
	Store    *node.Store
	Sub      *sub.Engine
	Sessions *session.Registry
	Metrics  *metrics.Registry // nil is valid; handle() skips recording

	wake chan struct{}
}

// NewCore wires a fresh Core around an empty node store.
func NewCore(m *metrics.Registry) *Core {
	store := node.NewStore()
	sessions := session.NewRegistry()
	return &Core{
		Store:    store,
		Sub:      sub.New(store, sessions),
		Sessions: sessions,
		Metrics:  m,
		wake:     make(chan struct{}, 1),
	}
}

// Notify wakes the dispatcher loop, coalescing with any wake-up
// already pending (spec.md §4.9: "wakes, rather than polls, when
// inbound work arrives"). Safe to call from any transport goroutine.
func (c *Core) Notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run is the dispatcher's single goroutine: it blocks until woken (or
// until the idle timeout elapses, as a safety net against a missed
// wake-up), then drains every session's inbound queue in turn,
// applying each command under the data lock implied by running
// single-threaded (spec.md §4.9 "exactly one goroutine ever mutates
// node/tag/layer state"). It returns when ctx is cancelled.
func (c *Core) Run(ctx context.Context) {
	const idleTimeout = 200 * time.Millisecond
	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			glog.Infof("dispatch: core loop stopping: %v", ctx.Err())
			return
		case <-c.wake:
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(idleTimeout)
		if c.Metrics != nil {
			c.Metrics.DispatchWakeups.Inc()
		}
		c.drainAll()
	}
}

// drainAll scans every registered session once, in Registry.All's
// arbitrary order, and applies its queued inbound commands (spec.md
// §4.9). Sessions whose transport is no longer Open are skipped; their
// teardown is handled by HandleDisconnect, not here.
func (c *Core) drainAll() {
	for _, sess := range c.Sessions.All() {
		if sess.TransportState() != session.Open {
			continue
		}
		for _, cmd := range sess.DrainIn() {
			c.handle(sess, cmd)
		}
		if c.Metrics != nil {
			c.Metrics.OutQueueDepth.Observe(float64(sess.OutLen()))
		}
	}
}

// HandleConnect implements the on-connect hook (spec.md §4.10):
// register the session and create its avatar node under the
// well-known avatar-parent, owned by the connecting user.
func (c *Core) HandleConnect(sess *session.Session) {
	c.Sessions.Add(sess)
	if c.Metrics != nil {
		c.Metrics.SessionsConnected.Inc()
	}
	avatarParent, ok := c.Store.Find(vtypes.AvatarParentNodeID)
	if !ok {
		glog.Errorf("dispatch: avatar parent node missing, cannot create avatar for session %d", sess.ID)
		return
	}
	avatar, err := c.Store.CreateLinked(vtypes.UnassignedNodeID, false, sess.UserID, 0)
	if err != nil {
		glog.Errorf("dispatch: failed to create avatar for session %d: %v", sess.ID, err)
		return
	}
	link.Create(avatarParent, avatar)
	sess.AvatarID = avatar.ID()
	c.Sub.BroadcastNodeCreate(avatarParent, avatar)
	glog.Infof("dispatch: session %d connected as user %d, avatar node %d", sess.ID, sess.UserID, avatar.ID())
}

// HandleDisconnect implements the on-disconnect hook (spec.md §4.10):
// remove sess from every follower/subscriber list it appears in across
// the whole node store, then destroy its avatar subtree. Unlike a
// client-initiated node_destroy, there is no one left to ack, so every
// follower/subscriber record for this session is dropped immediately
// via the *Unacked path rather than the request/ack handshake.
func (c *Core) HandleDisconnect(sess *session.Session) {
	sess.SetTransportState(session.Closed)
	c.scrubSession(sess.ID)

	if avatar, ok := c.Store.Find(sess.AvatarID); ok {
		c.destroyNodeSubtree(avatar)
	}
	c.Sessions.Remove(sess.ID)
	if c.Metrics != nil {
		c.Metrics.SessionsConnected.Dec()
	}
	glog.Infof("dispatch: session %d disconnected, state scrubbed", sess.ID)
}

// scrubSession removes every trace of sessID from every node, tag
// group, tag, and layer in the store (spec.md §4.10), and releases any
// node lock sessID held, broadcasting node_unlock to the remaining
// subscribers (spec.md §4.8/§4.10, the "lock then disconnect" §8
// scenario). It does not remove the avatar node itself;
// destroyNodeSubtree does that separately once every other session's
// view of it has been retired.
func (c *Core) scrubSession(sessID session.ID) {
	key := fsm.FollowerKey(sessID)
	c.Store.Each(func(n *node.Node) {
		if holder, locked := n.LockHolder(); locked && holder == sessID {
			n.Unlock()
			c.broadcastUnlock(n)
		}
		n.Folls().RemoveFollowerUnacked(key)
		n.RemoveSub(sessID)
		n.TagGroups().Each(func(tg *tag.TagGroup) { scrubTagGroup(tg, sessID, key) })
		n.Layers().Each(func(l *layer.Layer) { scrubLayer(l, sessID, key) })
	})
}

func scrubTagGroup(tg *tag.TagGroup, sessID session.ID, key fsm.FollowerKey) {
	tg.Folls.RemoveFollowerUnacked(key)
	tg.RemoveSub(sessID)
	tg.Tags().Each(func(t *tag.Tag) {
		t.Folls.RemoveFollowerUnacked(key)
	})
}

func scrubLayer(l *layer.Layer, sessID session.ID, key fsm.FollowerKey) {
	l.Folls.RemoveFollowerUnacked(key)
	l.RemoveSub(sessID)
}

// destroyNodeSubtree tears n and its descendants down through the
// ordinary request/ack destroy path (spec.md §4.10: "destroy the
// avatar subtree (will send node_destroy to remaining followers and
// reclaim when all ack)"), exactly as a client-issued node_destroy
// would: depth-first so each child's own destroy is requested before
// its parent's, node_destroy is pushed to every follower the
// disconnecting session leaves behind, and a node left with no
// follower at all once destroy is requested is reclaimed immediately
// since there is no one left to ack. HandleDisconnect is the only
// caller, for the disconnecting session's own avatar — scrubSession
// has already dropped that session's own follower/subscriber records,
// so the followers left are other sessions'.
func (c *Core) destroyNodeSubtree(n *node.Node) {
	for _, childID := range n.Children() {
		if child, ok := c.Store.Find(childID); ok {
			c.destroyNodeSubtree(child)
		}
	}
	c.Sub.RequestNodeDestroy(n)
	if n.Folls().Empty() {
		c.reclaimNode(n)
	}
}
