// Package node implements the authoritative Node object, the global
// node store, and its id allocator (spec.md §3 Node, §4.2 Node store).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package node

import (
	"sync"

	"github.com/verse-project/verse/container"
	"github.com/verse-project/verse/fsm"
	"github.com/verse-project/verse/layer"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/tag"
	"github.com/verse-project/verse/vtypes"
)

// DefaultPriority is the priority assigned to a new node-subscriber
// record until a node_prio command changes it (spec.md §4.5).
const DefaultPriority uint8 = 128

// SaveableFlag marks a node as eligible for the persistence
// projection (spec.md §4.11, VS_NODE_SAVEABLE).
type Flags uint8

const SaveableFlag Flags = 1

// Subscriber is the per-session record tracked in a node's
// node_subs list: a follower that additionally wants content and
// updates, carrying the priority applied to commands generated for
// it against this node's subtree (spec.md §3, §4.5).
type Subscriber struct {
	SessionID session.ID
	Prio      uint8
}

// Node is the fundamental shared object (spec.md §3).
type Node struct {
	mu sync.RWMutex

	id         vtypes.NodeID
	customType uint16
	owner      vtypes.UserID
	permissions []permEntry

	hasParent bool
	parentID  vtypes.NodeID
	childIDs  []vtypes.NodeID

	tagGroups *container.Hashed[uint16, *tag.TagGroup]
	lastTGID  uint16

	layers        *container.Hashed[uint16, *layer.Layer]
	firstFreeLayerID uint16

	folls *fsm.Machine // node_folls: who knows this node exists
	subs  map[session.ID]*Subscriber // node_subs

	lockedBy  session.ID
	isLocked  bool

	level   uint32
	flags   Flags

	version      uint32
	savedVersion uint32
	crc32        uint32
}

// New constructs a node with no parent. Store.CreateLinked wraps it to
// assign an id and register the node; linking it under a parent is a
// separate step (verse/link).
func New(id vtypes.NodeID, owner vtypes.UserID, customType uint16) *Node {
	return &Node{
		id:         id,
		owner:      owner,
		customType: customType,
		tagGroups:  container.NewHashed[uint16, *tag.TagGroup](container.SmallTable, nil),
		layers:     container.NewHashed[uint16, *layer.Layer](container.SmallTable, nil),
		folls:      fsm.NewMachine(),
		subs:       make(map[session.ID]*Subscriber),
	}
}

func (n *Node) Key() vtypes.NodeID { return n.id }

func (n *Node) ID() vtypes.NodeID     { return n.id }
func (n *Node) CustomType() uint16    { return n.customType }

func (n *Node) Folls() *fsm.Machine { return n.folls }

func (n *Node) State() vtypes.LifecycleState { return n.folls.State() }

// --- links ---

func (n *Node) SetParent(parentID vtypes.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hasParent = true
	n.parentID = parentID
}

func (n *Node) ClearParent() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hasParent = false
}

func (n *Node) Parent() (vtypes.NodeID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parentID, n.hasParent
}

func (n *Node) AddChild(childID vtypes.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.childIDs = append(n.childIDs, childID)
}

func (n *Node) RemoveChild(childID vtypes.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, id := range n.childIDs {
		if id == childID {
			n.childIDs = append(n.childIDs[:i], n.childIDs[i+1:]...)
			return
		}
	}
}

func (n *Node) Children() []vtypes.NodeID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]vtypes.NodeID, len(n.childIDs))
	copy(out, n.childIDs)
	return out
}

func (n *Node) Level() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.level
}

func (n *Node) SetLevel(l uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.level = l
}

// --- tag groups / layers ---

func (n *Node) TagGroups() *container.Hashed[uint16, *tag.TagGroup] { return n.tagGroups }

func (n *Node) AllocateTagGroupID() (uint16, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := n.lastTGID
	for i := 0; i < 65535; i++ {
		candidate := uint16((int(start) + i) % 65535)
		if _, exists := n.tagGroups.Find(candidate); !exists {
			n.lastTGID = candidate
			return candidate, true
		}
	}
	return 0, false
}

func (n *Node) HasTagGroupCustomType(customType uint16) bool {
	found := false
	n.tagGroups.Each(func(tg *tag.TagGroup) {
		if tg.CustomType() == customType {
			found = true
		}
	})
	return found
}

func (n *Node) Layers() *container.Hashed[uint16, *layer.Layer] { return n.layers }

func (n *Node) AllocateLayerID() (uint16, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := n.firstFreeLayerID
	for i := 0; i < 65535; i++ {
		candidate := uint16((int(start) + i) % 65535)
		if _, exists := n.layers.Find(candidate); !exists {
			n.firstFreeLayerID = candidate
			return candidate, true
		}
	}
	return 0, false
}

func (n *Node) HasLayerCustomType(customType uint16) bool {
	found := false
	n.layers.Each(func(l *layer.Layer) {
		if l.CustomType() == customType {
			found = true
		}
	})
	return found
}

// --- subscribers ---

func (n *Node) AddSub(id session.ID, prio uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[id] = &Subscriber{SessionID: id, Prio: prio}
}

func (n *Node) RemoveSub(id session.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

func (n *Node) IsSub(id session.ID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.subs[id]
	return ok
}

func (n *Node) Sub(id session.ID) (*Subscriber, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	s, ok := n.subs[id]
	return s, ok
}

func (n *Node) Subs() []*Subscriber {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Subscriber, 0, len(n.subs))
	for _, s := range n.subs {
		out = append(out, s)
	}
	return out
}

// SetPrio updates the priority recorded for an existing subscriber
// (node_prio command, spec.md §4.5).
func (n *Node) SetPrio(id session.ID, prio uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if s, ok := n.subs[id]; ok {
		s.Prio = prio
	}
}

// --- locking ---

func (n *Node) Lock(by session.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.isLocked = true
	n.lockedBy = by
}

func (n *Node) Unlock() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.isLocked = false
}

func (n *Node) LockHolder() (session.ID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lockedBy, n.isLocked
}

// --- versioning / persistence bookkeeping ---

func (n *Node) IncVersion() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.version++
}

func (n *Node) Version() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.version
}

func (n *Node) SavedVersion() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.savedVersion
}

func (n *Node) SetSavedVersion(v uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.savedVersion = v
}

func (n *Node) SetCRC32(c uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.crc32 = c
}

func (n *Node) CRC32() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.crc32
}

func (n *Node) SetFlags(f Flags) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.flags |= f
}

func (n *Node) HasFlag(f Flags) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.flags&f != 0
}

// Saveable reports whether the persistence projection should consider
// this node (spec.md §4.11).
func (n *Node) Saveable() bool { return n.HasFlag(SaveableFlag) }
