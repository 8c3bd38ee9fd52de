// Node store: global id -> node map, id allocator with wrap-around
// (spec.md §4.2).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package node

import (
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/verse-project/verse/container"
	"github.com/verse-project/verse/vtypes"
)

// ErrNodeSpaceExhausted is returned when no free application node id
// can be found after a full wrap-around scan (spec.md §4.2, §7
// "Resource exhaustion").
var ErrNodeSpaceExhausted = errors.New("node store: application node id space exhausted")

// ErrDestroyRefused is returned by Destroy when the node still has
// children or followers; spec.md §4.2 calls this "a programming error
// logged and refused".
var ErrDestroyRefused = errors.New("node store: refusing to destroy node with live children or followers")

// Store is the global map of node id -> Node plus the allocation
// cursor (spec.md §4.2).
type Store struct {
	mu               sync.Mutex
	nodes            *container.Hashed[vtypes.NodeID, *Node]
	lastCommonNodeID vtypes.NodeID
}

func NewStore() *Store {
	return &Store{
		nodes:            container.NewHashed[vtypes.NodeID, *Node](container.LargeTable, nil),
		lastCommonNodeID: vtypes.FirstCommonNodeID - 1,
	}
}

// AllocateID probes upward from last_common_node_id+1, wrapping from
// 2^32-1 back to FirstCommonNodeID, skipping occupied ids (spec.md
// §4.2 Id allocation, §8 boundary: wrap at 2^32-2).
func (s *Store) AllocateID() (vtypes.NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.lastCommonNodeID
	cur := start
	for i := 0; i < int(vtypes.LastCommonNodeID-vtypes.FirstCommonNodeID)+2; i++ {
		cur++
		if cur > vtypes.LastCommonNodeID {
			cur = vtypes.FirstCommonNodeID
		}
		if _, exists := s.nodes.Find(cur); !exists {
			s.lastCommonNodeID = cur
			return cur, nil
		}
		if cur == start {
			break
		}
	}
	return 0, ErrNodeSpaceExhausted
}

// CreateLinked allocates a node id (unless explicitID is given, used
// for well-known/user nodes), constructs the Node, and attaches it to
// the store (spec.md §4.2 Create). Linking to the parent's child list
// and level computation is the caller's job (verse/link), since the
// store only owns id<->node identity.
func (s *Store) CreateLinked(explicitID vtypes.NodeID, useExplicit bool, owner vtypes.UserID, customType uint16) (*Node, error) {
	var id vtypes.NodeID
	if useExplicit {
		if _, exists := s.Find(explicitID); exists {
			return nil, errors.Errorf("node store: id %d already in use", explicitID)
		}
		id = explicitID
	} else {
		allocated, err := s.AllocateID()
		if err != nil {
			return nil, err
		}
		id = allocated
	}
	n := New(id, owner, customType)
	s.nodes.Add(n)
	return n, nil
}

func (s *Store) Find(id vtypes.NodeID) (*Node, bool) {
	return s.nodes.Find(id)
}

// Destroy removes a node from the store. Legal only when the node has
// no children and no followers (spec.md §4.2 Destroy); callers must
// already have destroyed its tag groups/layers.
func (s *Store) Destroy(n *Node) error {
	if len(n.Children()) > 0 || !n.Folls().Empty() {
		glog.Errorf("node store: refused destroy of node %d: children=%d followers=%d",
			n.ID(), len(n.Children()), n.Folls().FollowerCount())
		return ErrDestroyRefused
	}
	s.nodes.Remove(n.ID())
	return nil
}

func (s *Store) Count() int { return s.nodes.Count() }

func (s *Store) Each(fn func(*Node)) { s.nodes.Each(fn) }
