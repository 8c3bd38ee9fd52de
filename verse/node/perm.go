// Permission storage on Node (spec.md §3 Node.permissions, §4.8
// Access control). Kept in the node package because a node exclusively
// owns its permission entries (spec.md §3 Ownership); verse/access
// implements the read/write policy on top of this storage.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package node

import "github.com/verse-project/verse/vtypes"

// permEntry is one (user, mask) pair in a node's ordered permission
// list (spec.md §3: "permissions: ordered list of (User, mask)
// entries").
type permEntry struct {
	user vtypes.UserID
	mask vtypes.PermMask
}

// SetPerm upserts the permission entry for user, creating it at the
// end of the list if absent (spec.md §4.8 set_perm).
func (n *Node) SetPerm(user vtypes.UserID, mask vtypes.PermMask) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, e := range n.permissions {
		if e.user == user {
			n.permissions[i].mask = mask
			return
		}
	}
	n.permissions = append(n.permissions, permEntry{user: user, mask: mask})
}

// PermFor reports the explicit mask for user, if one was set via
// SetPerm (does not consult owner or other_users fallback; that
// policy lives in verse/access).
func (n *Node) PermFor(user vtypes.UserID) (vtypes.PermMask, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, e := range n.permissions {
		if e.user == user {
			return e.mask, true
		}
	}
	return vtypes.PermNone, false
}

// PermEntry is one (user, mask) pair as returned by Permissions.
type PermEntry struct {
	User vtypes.UserID
	Mask vtypes.PermMask
}

// Permissions returns a snapshot of the ordered permission list, used
// to replay `node_perm` on subscribe (spec.md §4.5 step 1).
func (n *Node) Permissions() []PermEntry {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]PermEntry, 0, len(n.permissions))
	for _, e := range n.permissions {
		out = append(out, PermEntry{User: e.user, Mask: e.mask})
	}
	return out
}

// Owner returns the node's owning user id.
func (n *Node) Owner() vtypes.UserID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.owner
}

// SetOwner reassigns ownership (node_owner command, §6).
func (n *Node) SetOwner(owner vtypes.UserID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.owner = owner
}
