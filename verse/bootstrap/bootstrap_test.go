// Tests for the well-known node skeleton builder (spec.md §4.2).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verse-project/verse/access"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/user"
	"github.com/verse-project/verse/vtypes"
)

func TestBuildWiresWellKnownIDs(t *testing.T) {
	store := node.NewStore()
	dir := user.NewDirectory()
	dir.Add(user.SuperUser())
	dir.Add(user.OtherUsers())

	skel := Build(store, dir)

	require.Equal(t, vtypes.RootNodeID, skel.Root.ID())
	require.Equal(t, vtypes.AvatarParentNodeID, skel.AvatarParent.ID())
	require.Equal(t, vtypes.UserParentNodeID, skel.UserParent.ID())
	require.Equal(t, vtypes.SceneParentNodeID, skel.SceneParent.ID())

	require.Contains(t, skel.Root.Children(), skel.AvatarParent.ID())
	require.Contains(t, skel.Root.Children(), skel.UserParent.ID())
	require.Contains(t, skel.Root.Children(), skel.SceneParent.ID())
}

func TestBuildSkipsFakePrincipalsForUserNodes(t *testing.T) {
	store := node.NewStore()
	dir := user.NewDirectory()
	dir.Add(user.SuperUser())
	dir.Add(user.OtherUsers())

	skel := Build(store, dir)
	require.Empty(t, skel.UserParent.Children(), "fake principals never get a user node")
}

func TestBuildCreatesUserNodeForEachRealAccount(t *testing.T) {
	store := node.NewStore()
	dir := user.NewDirectory()
	dir.Add(user.SuperUser())
	dir.Add(user.OtherUsers())
	dir.Add(&user.User{ID: vtypes.UserID(1001), Username: "alice", Realname: "Alice Example"})

	skel := Build(store, dir)
	require.Len(t, skel.UserParent.Children(), 1)

	userNode, ok := store.Find(vtypes.NodeID(1001))
	require.True(t, ok)
	require.True(t, access.CanRead(userNode, vtypes.VRSOtherUsersUID))
	require.False(t, access.CanWrite(userNode, vtypes.VRSOtherUsersUID))

	tg, ok := userNode.TagGroups().Find(0)
	require.True(t, ok)
	tagObj, ok := tg.Tags().Find(0)
	require.True(t, ok)
	require.Equal(t, "Alice Example", tagObj.String())
}

func TestSceneParentGrantsOtherUsersReadWrite(t *testing.T) {
	store := node.NewStore()
	dir := user.NewDirectory()
	dir.Add(user.SuperUser())
	dir.Add(user.OtherUsers())

	skel := Build(store, dir)
	require.True(t, access.CanRead(skel.SceneParent, vtypes.VRSOtherUsersUID))
	require.True(t, access.CanWrite(skel.SceneParent, vtypes.VRSOtherUsersUID))
	require.True(t, skel.SceneParent.Saveable())
}
