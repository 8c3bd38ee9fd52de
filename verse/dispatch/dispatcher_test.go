// Integration tests for the command dispatcher and its session
// lifecycle hooks (spec.md §4.9, §4.10, and the §8 seeded scenarios).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verse-project/verse/access"
	"github.com/verse-project/verse/cmdproto"
	"github.com/verse-project/verse/fsm"
	"github.com/verse-project/verse/link"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/tag"
	"github.com/verse-project/verse/vtypes"
)

// newTestCore builds a bare Core with a root node but without the
// full well-known skeleton bootstrap builds (verse/bootstrap), since
// these tests drive the dispatcher directly rather than through the
// avatar/user/scene hierarchy.
func newTestCore(t *testing.T) (*Core, *node.Node) {
	t.Helper()
	c := NewCore(nil)
	root, err := c.Store.CreateLinked(vtypes.RootNodeID, true, 1000, 0)
	require.NoError(t, err)
	return c, root
}

func addSession(c *Core, id session.ID, userID vtypes.UserID) *session.Session {
	sess := session.New(id, userID)
	c.Sessions.Add(sess)
	return sess
}

func TestHandleNodeCreateBroadcastsToReadableSubscribers(t *testing.T) {
	c, root := newTestCore(t)
	owner := addSession(c, 1, 1000)
	root.AddSub(owner.ID, node.DefaultPriority)

	c.handle(owner, cmdproto.Cmd{Op: cmdproto.OpNodeCreate, ParentNodeID: root.ID(), NodeID: vtypes.UnassignedNodeID, UserID: 1000})

	require.Equal(t, 1, c.Store.Count()-1, "exactly one child created beyond root")
	cmd, ok := owner.PopOut()
	require.True(t, ok)
	require.Equal(t, cmdproto.OpNodeCreate, cmd.Op)
	require.Equal(t, root.ID(), cmd.ParentNodeID)
}

func TestHandleNodeCreateRejectsWriterWithoutPermission(t *testing.T) {
	c, root := newTestCore(t)
	access.SetPerm(root, vtypes.VRSOtherUsersUID, vtypes.PermNone)
	stranger := addSession(c, 1, 2000)

	c.handle(stranger, cmdproto.Cmd{Op: cmdproto.OpNodeCreate, ParentNodeID: root.ID(), NodeID: vtypes.UnassignedNodeID, UserID: 2000})

	require.Equal(t, 0, c.Store.Count()-1, "no child created for a writer without permission")
}

// TestDestroyRacesSubscribeAck covers spec.md §8's "destroy races
// subscribe-ack" scenario end to end through the dispatcher: a
// node_destroy requested while a follower's node_create is still
// unacked must not be delivered to that follower until its own
// node_create_ack arrives.
func TestDestroyRacesSubscribeAck(t *testing.T) {
	c, root := newTestCore(t)
	owner := addSession(c, 1, 1000)
	follower := addSession(c, 2, 1000)

	n, err := c.Store.CreateLinked(vtypes.UnassignedNodeID, false, 1000, 0)
	require.NoError(t, err)
	link.Create(root, n)
	n.AddSub(follower.ID, node.DefaultPriority)
	c.Sub.SendNodeCreate(follower, node.DefaultPriority, n, root.ID())
	_, ok := follower.PopOut() // drain the node_create itself
	require.True(t, ok)

	c.handle(owner, cmdproto.Cmd{Op: cmdproto.OpNodeDestroy, NodeID: n.ID(), UserID: 1000})
	require.Equal(t, vtypes.Deleting, n.State())
	require.Equal(t, 0, follower.OutLen(), "destroy must not be sent while the follower is still CREATING")

	c.handle(follower, cmdproto.Cmd{Op: cmdproto.OpNodeCreateAck, NodeID: n.ID()})
	require.Equal(t, 1, follower.OutLen(), "create_ack must immediately release the deferred destroy")
	cmd, ok := follower.PopOut()
	require.True(t, ok)
	require.Equal(t, cmdproto.OpNodeDestroy, cmd.Op)

	c.handle(follower, cmdproto.Cmd{Op: cmdproto.OpNodeDestroyAck, NodeID: n.ID()})
	_, ok = c.Store.Find(n.ID())
	require.False(t, ok, "node is physically reclaimed once every follower has acked destroy")
}

// TestLockAndDisconnectReleasesLock covers spec.md §8's "lock then
// disconnect" scenario: a session holding a node lock that disconnects
// must have the lock released and node_unlock broadcast to remaining
// subscribers, even though nothing explicitly unlocked it.
func TestLockAndDisconnectReleasesLock(t *testing.T) {
	c, root := newTestCore(t)
	locker := addSession(c, 1, 1000)
	locker.AvatarID = vtypes.UnassignedNodeID // no avatar subtree to tear down in this scenario
	observer := addSession(c, 2, 1000)
	root.AddSub(observer.ID, node.DefaultPriority)

	root.Lock(locker.ID)
	_, locked := root.LockHolder()
	require.True(t, locked)

	c.HandleDisconnect(locker)

	_, locked = root.LockHolder()
	require.False(t, locked, "a disconnecting session's lock must be released")

	cmd, ok := observer.PopOut()
	require.True(t, ok)
	require.Equal(t, cmdproto.OpNodeUnlock, cmd.Op)
	require.Equal(t, root.ID(), cmd.NodeID)
}

func TestHandleConnectCreatesAvatarUnderAvatarParent(t *testing.T) {
	c, _ := newTestCore(t)
	avatarParent, err := c.Store.CreateLinked(vtypes.AvatarParentNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)

	sess := session.New(1, 1000)
	c.HandleConnect(sess)

	require.NotEqual(t, vtypes.UnassignedNodeID, sess.AvatarID)
	avatar, ok := c.Store.Find(sess.AvatarID)
	require.True(t, ok)
	require.Equal(t, vtypes.UserID(1000), avatar.Owner())
	require.Contains(t, avatarParent.Children(), avatar.ID())
}

func TestHandleDisconnectScrubsFollowerStateEverywhere(t *testing.T) {
	c, root := newTestCore(t)
	_, err := c.Store.CreateLinked(vtypes.AvatarParentNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)

	sess := session.New(1, 1000)
	c.HandleConnect(sess)
	avatarID := sess.AvatarID

	root.Folls().AddFollower(fsm.FollowerKey(sess.ID))
	root.AddSub(sess.ID, node.DefaultPriority)

	c.HandleDisconnect(sess)

	require.False(t, root.IsSub(sess.ID))
	_, ok := root.Folls().FollowerState(fsm.FollowerKey(sess.ID))
	require.False(t, ok)
	_, ok = c.Store.Find(avatarID)
	require.False(t, ok, "the disconnecting session's own avatar is reclaimed")
	_, ok = c.Sessions.Get(sess.ID)
	require.False(t, ok)
}

// TestHandleDisconnectRoutesAvatarTeardownThroughAckDrain covers
// spec.md §4.10's "destroy the avatar subtree (will send node_destroy
// to remaining followers and reclaim when all ack)": when another
// session is already following the disconnecting session's avatar,
// the avatar must not be force-removed (it still has a live follower,
// which node.Store.Destroy refuses) — it must instead receive
// node_destroy and only disappear once that follower acks.
func TestHandleDisconnectRoutesAvatarTeardownThroughAckDrain(t *testing.T) {
	c, _ := newTestCore(t)
	avatarParent, err := c.Store.CreateLinked(vtypes.AvatarParentNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)
	access.SetPerm(avatarParent, vtypes.VRSOtherUsersUID, vtypes.PermRead)

	observer := addSession(c, 2, 2000)
	avatarParent.AddSub(observer.ID, node.DefaultPriority)

	owner := session.New(1, 1000)
	c.HandleConnect(owner)
	avatarID := owner.AvatarID

	cmd, ok := observer.PopOut() // the node_create broadcast from HandleConnect
	require.True(t, ok)
	require.Equal(t, cmdproto.OpNodeCreate, cmd.Op)
	c.handle(observer, cmdproto.Cmd{Op: cmdproto.OpNodeCreateAck, NodeID: avatarID})

	c.HandleDisconnect(owner)

	avatar, ok := c.Store.Find(avatarID)
	require.True(t, ok, "avatar with a live follower must not be force-removed")
	require.Equal(t, vtypes.Deleting, avatar.State())

	cmd, ok = observer.PopOut()
	require.True(t, ok, "the remaining follower must be sent node_destroy")
	require.Equal(t, cmdproto.OpNodeDestroy, cmd.Op)
	require.Equal(t, avatarID, cmd.NodeID)

	c.handle(observer, cmdproto.Cmd{Op: cmdproto.OpNodeDestroyAck, NodeID: avatarID})
	_, ok = c.Store.Find(avatarID)
	require.False(t, ok, "avatar is reclaimed once its last follower acks destroy")
}

func TestTagGroupCreateDestroyLifecycle(t *testing.T) {
	c, root := newTestCore(t)
	owner := addSession(c, 1, 1000)
	root.Folls().AddFollower(fsm.FollowerKey(owner.ID))
	c.Sub.SubscribeNode(owner.ID, root, 0)
	require.True(t, root.IsSub(owner.ID))

	c.handle(owner, cmdproto.Cmd{Op: cmdproto.OpTagGroupCreate, NodeID: root.ID(), CustomType: 5})
	require.Equal(t, 1, root.TagGroups().Count())

	tgID := firstTagGroupID(root)

	c.handle(owner, cmdproto.Cmd{Op: cmdproto.OpTagGroupDestroy, NodeID: root.ID(), TagGroupID: tgID})
	c.handle(owner, cmdproto.Cmd{Op: cmdproto.OpTagGroupDestroyAck, NodeID: root.ID(), TagGroupID: tgID})
	require.Equal(t, 0, root.TagGroups().Count(), "the only follower acked destroy, so it drains immediately")
}

func firstTagGroupID(n *node.Node) uint16 {
	var id uint16
	n.TagGroups().Each(func(tg *tag.TagGroup) { id = tg.ID() })
	return id
}
