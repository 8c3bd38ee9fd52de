// Package bootstrap builds the well-known node skeleton every Verse
// server starts with (spec.md §4.2 "well-known node ids", §9 resolved
// open question "duplicate bootstrap routine"). Grounded on
// vs_nodes_init / vs_create_root_node / vs_create_avatar_parent /
// vs_create_user_parent / vs_create_scene_parent / vs_create_user_node
// in original_source/src/server/vs_node.c, which the C server called
// from exactly one place at start-up; this package is likewise the
// single place that ever constructs nodes 0-3 and per-user nodes, so
// nothing downstream needs its own ad-hoc "create if missing" path.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package bootstrap

import (
	"github.com/golang/glog"

	"github.com/verse-project/verse/access"
	"github.com/verse-project/verse/link"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/tag"
	"github.com/verse-project/verse/user"
	"github.com/verse-project/verse/vtypes"
)

// Skeleton is the set of well-known nodes a freshly bootstrapped
// server exposes.
type Skeleton struct {
	Root         *node.Node
	AvatarParent *node.Node
	UserParent   *node.Node
	SceneParent  *node.Node
}

// Build creates the four well-known nodes (root, avatar-parent,
// user-parent, scene-parent) at their fixed ids, each owned by the
// super user and readable by other_users, and wires one user node per
// registered user under the user-parent (spec.md §3 well-known node
// ids, §4.2). It is the sole canonical bootstrap routine:
// server.Context.Bootstrap calls it once at start-up, before any
// persistence restore, and a failed restore keeps the skeleton it built
// rather than calling it again (spec.md §9).
func Build(store *node.Store, users *user.Directory) *Skeleton {
	root := mustCreate(store, vtypes.RootNodeID, vtypes.VRSSuperUserUID, 0)
	root.SetLevel(0)
	grantOtherUsers(root, vtypes.PermRead)
	root.Folls().ForceCreated()

	avatarParent := mustCreate(store, vtypes.AvatarParentNodeID, vtypes.VRSSuperUserUID, 0)
	link.Create(root, avatarParent)
	grantOtherUsers(avatarParent, vtypes.PermRead)
	avatarParent.Folls().ForceCreated()

	userParent := mustCreate(store, vtypes.UserParentNodeID, vtypes.VRSSuperUserUID, 0)
	link.Create(root, userParent)
	grantOtherUsers(userParent, vtypes.PermRead)
	userParent.Folls().ForceCreated()

	sceneParent := mustCreate(store, vtypes.SceneParentNodeID, vtypes.VRSSuperUserUID, 0)
	link.Create(root, sceneParent)
	// Other users may read and write the scene parent: they can
	// subscribe to and contribute new top-level scenes (spec.md §4.2;
	// source comment: "Other users can only read parent of scene
	// nodes" undersells its own permission mask, which actually grants
	// read|write — followed verbatim here).
	grantOtherUsers(sceneParent, vtypes.PermRead|vtypes.PermWrite)
	sceneParent.SetFlags(node.SaveableFlag)
	sceneParent.Folls().ForceCreated()

	for _, u := range users.All() {
		if u.Fake {
			continue // super_user / other_users never get a user node of their own
		}
		buildUserNode(store, userParent, u)
	}

	glog.Infof("bootstrap: skeleton ready (root=%d avatar_parent=%d user_parent=%d scene_parent=%d)",
		root.ID(), avatarParent.ID(), userParent.ID(), sceneParent.ID())

	return &Skeleton{Root: root, AvatarParent: avatarParent, UserParent: userParent, SceneParent: sceneParent}
}

func mustCreate(store *node.Store, id vtypes.NodeID, owner vtypes.UserID, customType uint16) *node.Node {
	n, err := store.CreateLinked(id, true, owner, customType)
	if err != nil {
		// Well-known ids are only ever claimed once, at start-up,
		// before any client traffic flows; a collision here means the
		// server double-bootstrapped and is a programming error.
		glog.Fatalf("bootstrap: failed to create well-known node %d: %v", id, err)
	}
	return n
}

func grantOtherUsers(n *node.Node, mask vtypes.PermMask) {
	access.SetPerm(n, vtypes.VRSOtherUsersUID, mask)
}

// buildUserNode creates the per-user node under user-parent, readable
// by other_users, carrying a tag group with the user's real name
// (vs_create_user_node).
func buildUserNode(store *node.Store, userParent *node.Node, u *user.User) *node.Node {
	n, err := store.CreateLinked(vtypes.NodeID(u.ID), true, vtypes.VRSSuperUserUID, 0)
	if err != nil {
		glog.Errorf("bootstrap: failed to create user node for %d (%s): %v", u.ID, u.Username, err)
		return nil
	}
	link.Create(userParent, n)
	grantOtherUsers(n, vtypes.PermRead)
	n.Folls().ForceCreated()

	tg := tag.NewTagGroup(0, 0)
	n.TagGroups().Add(tg)
	realName := tag.NewTag(0, vtypes.DataTypeString8, 1, 0)
	realName.SetString(u.Realname)
	tg.Tags().Add(realName)

	return n
}
