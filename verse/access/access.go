// Package access implements the per-node access control policy
// (spec.md §4.8): owner bypass, explicit per-user mask, fallback to
// the other_users wildcard principal.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package access

import (
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/vtypes"
)

// CanRead reports whether userID may read n: true if userID owns n;
// else the explicit per-user mask's READ bit; else the other_users
// entry's READ bit, defaulting to false if even that entry is absent
// (spec.md §4.8, §8 "Permission fallback").
func CanRead(n *node.Node, userID vtypes.UserID) bool {
	return can(n, userID, vtypes.PermRead)
}

// CanWrite is CanRead with the WRITE bit.
func CanWrite(n *node.Node, userID vtypes.UserID) bool {
	return can(n, userID, vtypes.PermWrite)
}

func can(n *node.Node, userID vtypes.UserID, bit vtypes.PermMask) bool {
	if n.Owner() == userID {
		return true
	}
	if mask, ok := n.PermFor(userID); ok {
		return mask&bit != 0
	}
	if mask, ok := n.PermFor(vtypes.VRSOtherUsersUID); ok {
		return mask&bit != 0
	}
	return false
}

// SetPerm upserts the (user, mask) permission entry on n (spec.md
// §4.8 set_perm).
func SetPerm(n *node.Node, userID vtypes.UserID, mask vtypes.PermMask) {
	n.SetPerm(userID, mask)
}
