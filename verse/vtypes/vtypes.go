// Package vtypes provides the primitive identifier, permission, and
// data-type constants shared across the Verse shared-scene engine.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package vtypes

// NodeID identifies a node within the global node store.
type NodeID uint32

// Well-known node ids (vs_sys_nodes.c).
const (
	RootNodeID         NodeID = 0
	AvatarParentNodeID NodeID = 1
	UserParentNodeID   NodeID = 2
	SceneParentNodeID  NodeID = 3

	// FirstCommonNodeID is the first id handed out to application nodes.
	FirstCommonNodeID NodeID = 65536
	// LastCommonNodeID is the last valid application node id; the
	// allocator wraps back to FirstCommonNodeID after this one.
	LastCommonNodeID NodeID = 0xFFFFFFFE
	// UnassignedNodeID is the sentinel a client sends in a create
	// request to mean "server, please allocate".
	UnassignedNodeID NodeID = 0xFFFFFFFF

	// SystemNodeIDCeiling is the exclusive upper bound of the reserved
	// system node range [0, 65536).
	SystemNodeIDCeiling NodeID = 65536
)

// UserID identifies a user account.
type UserID uint16

const (
	MinUserID UserID = 1000
	MaxUserID UserID = VRSOtherUsersUID - 1

	// VRSSuperUserUID owns every well-known system node.
	VRSSuperUserUID UserID = 100
	// VRSOtherUsersUID is the wildcard principal consulted when a
	// user has no explicit permission entry on a node.
	VRSOtherUsersUID UserID = 65535
)

// PermMask is a bitmask of access rights.
type PermMask uint8

const (
	PermRead  PermMask = 1 << 0
	PermWrite PermMask = 1 << 1

	PermNone PermMask = 0
	PermAll  PermMask = PermRead | PermWrite
)

// ReservedID is the sentinel a client sends in a tag-group/tag/layer
// create request asking the server to allocate the id.
const ReservedID uint16 = 0xFFFF

// LifecycleState is the 5-valued FSM shared by every entity kind and
// every per-follower record (spec.md §4.4).
type LifecycleState uint8

const (
	Reserved LifecycleState = iota
	Creating
	Created
	Deleting
	Deleted
)

func (s LifecycleState) String() string {
	switch s {
	case Reserved:
		return "reserved"
	case Creating:
		return "creating"
	case Created:
		return "created"
	case Deleting:
		return "deleting"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DataType enumerates the primitive value types tags and layers carry.
type DataType uint8

const (
	DataTypeUint8 DataType = iota
	DataTypeUint16
	DataTypeUint32
	DataTypeUint64
	DataTypeReal16
	DataTypeReal32
	DataTypeReal64
	DataTypeString8 // tag-only, length-prefixed UTF-8
)

// Width reports the byte width of a single component of the type; 0 for
// DataTypeString8, which has no fixed component width.
func (d DataType) Width() int {
	switch d {
	case DataTypeUint8:
		return 1
	case DataTypeUint16, DataTypeReal16:
		return 2
	case DataTypeUint32, DataTypeReal32:
		return 4
	case DataTypeUint64, DataTypeReal64:
		return 8
	default:
		return 0
	}
}

func (d DataType) Valid() bool {
	return d <= DataTypeString8
}

// MaxVecComponents is the largest count/num_vec_comp a tag or layer may
// declare (spec.md §3: "count ∈ {1..4}").
const MaxVecComponents = 4

const (
	MaxTagGroupsCount = 65534
	MaxTagsCount       = 65534
	MaxLayersCount     = 65534
)
