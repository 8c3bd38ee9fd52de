// Package cmdproto defines the decoded command records exchanged
// between the Verse core and the transport layer (spec.md §6). The
// wire encoding of the opcodes is explicitly out of scope (spec.md
// §1); this package only carries the semantic fields handlers read
// and write.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package cmdproto

import "github.com/verse-project/verse/vtypes"

// Opcode discriminates the tagged union of command records (spec.md
// §6 opcode families).
type Opcode uint8

const (
	OpNodeCreate Opcode = iota
	OpNodeDestroy
	OpNodeSubscribe
	OpNodeUnsubscribe
	OpNodeLink
	OpNodePerm
	OpNodeOwner
	OpNodeLock
	OpNodeUnlock
	OpNodePrio

	OpTagGroupCreate
	OpTagGroupDestroy
	OpTagGroupSubscribe
	OpTagGroupUnsubscribe

	OpTagCreate
	OpTagDestroy
	OpTagSet

	OpLayerCreate
	OpLayerDestroy
	OpLayerSubscribe
	OpLayerUnsubscribe
	OpLayerSetValue
	OpLayerUnsetValue

	// Fake ack opcodes, produced locally when the transport confirms
	// delivery (spec.md §6).
	OpNodeCreateAck
	OpNodeDestroyAck
	OpTagGroupCreateAck
	OpTagGroupDestroyAck
	OpTagCreateAck
	OpTagDestroyAck
	OpLayerCreateAck
	OpLayerDestroyAck
	OpNodeLockAck
	OpNodeUnlockAck
)

// ReservedNodeID is the sentinel a client sends as a node id in a
// create request to ask the server to allocate one.
const ReservedNodeID = vtypes.UnassignedNodeID

// Value is a small fixed-arity tuple of a primitive DataType, used by
// both tag_set and layer_set_value commands.
type Value struct {
	DataType vtypes.DataType
	Count    uint8 // 1..4 for vector types; always 1 for string8
	Raw      [4 * 8]byte
	Str      string // populated only when DataType == DataTypeString8
}

// Cmd is the tagged union of decoded command records (spec.md §6).
// Only the fields relevant to Op are populated; this mirrors the
// source's single Generic_Cmd struct reused across opcodes, expressed
// idiomatically as one flat record rather than a Go union (Go has no
// tagged unions).
type Cmd struct {
	Op Opcode

	NodeID       vtypes.NodeID
	ParentNodeID vtypes.NodeID
	UserID       vtypes.UserID
	CustomType   uint16

	TagGroupID uint16
	TagID      uint16

	LayerID       uint16
	ParentLayerID uint16
	ItemID        uint32

	DataType DataType_
	Count    uint8
	Value    Value

	Version uint32
	CRC32   uint32

	Prio uint8

	PermMask vtypes.PermMask
}

// DataType_ aliases vtypes.DataType; kept as a distinct name so Cmd's
// field reads naturally at call sites (layer_create and tag_create
// both carry a DataType alongside an unrelated node DataType concept
// in spec.md's grammar).
type DataType_ = vtypes.DataType
