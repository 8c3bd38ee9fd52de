// Package fsm implements the uniform entity lifecycle state machine
// (spec.md §4.4): RESERVED -> CREATING -> CREATED -> DELETING ->
// DELETED, driven by per-follower acknowledgements. Node, tag group,
// tag, and layer all embed a Machine instead of re-deriving the same
// transition table the source repeats per entity kind (spec.md §9,
// "void-pointer generic structures").
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package fsm

import (
	"sync"

	"github.com/golang/glog"

	"github.com/verse-project/verse/vtypes"
)

// FollowerKey identifies a follower record; Verse keys followers by
// session id.
type FollowerKey uint32

// Follower is the per-session record tracked against an entity. It
// mirrors VSEntityFollower / VSNodeSubscriber's per-follower state
// field, plus the "destroy pending" flag used to implement the
// ack-driven deferred destroy (spec.md §9).
type Follower struct {
	Key             FollowerKey
	State           vtypes.LifecycleState
	DestroyPending  bool // destroy was requested while this follower was still CREATING
}

// Machine is the lifecycle state machine shared by every entity kind.
// It owns no domain data and emits no wire commands: its methods report
// which followers are ready for a destroy (RequestDestroy) or had one
// pending (AckCreate), and callers emit the commands themselves.
type Machine struct {
	mu        sync.Mutex
	state     vtypes.LifecycleState
	followers map[FollowerKey]*Follower
	order     []FollowerKey
}

// NewMachine constructs a machine in the RESERVED state with no
// followers.
func NewMachine() *Machine {
	return &Machine{
		state:     vtypes.Reserved,
		followers: make(map[FollowerKey]*Follower),
	}
}

// State returns the entity's current lifecycle state.
func (m *Machine) State() vtypes.LifecycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// FollowerCount returns the number of tracked followers.
func (m *Machine) FollowerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Followers returns a snapshot of current followers in insertion order.
func (m *Machine) Followers() []Follower {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Follower, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, *m.followers[k])
	}
	return out
}

// FollowerState reports the state of one follower, if tracked.
func (m *Machine) FollowerState(key FollowerKey) (vtypes.LifecycleState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.followers[key]
	if !ok {
		return 0, false
	}
	return f.State, true
}

// AddFollower registers a new follower in CREATING state. If this is
// the first follower, the entity transitions RESERVED -> CREATING
// (the "send_create succeeded" event in spec.md's transition table is
// folded into this call: adding a follower always means a create was
// just sent to it).
func (m *Machine) AddFollower(key FollowerKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.followers[key]; exists {
		return
	}
	m.followers[key] = &Follower{Key: key, State: vtypes.Creating}
	m.order = append(m.order, key)
	if m.state == vtypes.Reserved {
		m.state = vtypes.Creating
	}
}

// AckCreate transitions a follower CREATING -> CREATED. The entity
// becomes CREATED once every tracked follower has acked. Returns
// whether the follower had a destroy pending so the caller (the
// taggroup/tag/layer/node create_ack handler) can immediately emit
// destroy to it, preserving the "create always precedes destroy"
// invariant (spec.md §4.4 key invariant).
func (m *Machine) AckCreate(key FollowerKey) (destroyPending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.followers[key]
	if !ok {
		glog.Warningf("fsm: create_ack from untracked follower %d", key)
		return false
	}
	if f.State != vtypes.Creating {
		glog.Warningf("fsm: create_ack from follower %d in state %s, ignoring", key, f.State)
		return false
	}
	f.State = vtypes.Created
	if m.allFollowersAtLeast(vtypes.Created) {
		if m.state == vtypes.Creating {
			m.state = vtypes.Created
		}
	}
	if f.DestroyPending {
		f.DestroyPending = false
		f.State = vtypes.Deleting
		return true
	}
	return false
}

// RequestDestroy moves the entity to DELETING. Any follower already
// CREATED is returned as ready to receive destroy immediately; any
// follower still CREATING is flagged DestroyPending so its own
// create_ack handler fires the destroy later (spec.md §4.4).
func (m *Machine) RequestDestroy() (readyFollowers []FollowerKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = vtypes.Deleting
	for _, k := range m.order {
		f := m.followers[k]
		switch f.State {
		case vtypes.Created:
			f.State = vtypes.Deleting
			readyFollowers = append(readyFollowers, k)
		case vtypes.Creating:
			f.DestroyPending = true
		}
	}
	return readyFollowers
}

// AckDestroy removes a follower once it has acked destroy. The
// entity becomes DELETED (and physically reclaimable) once the
// follower set drains to empty.
func (m *Machine) AckDestroy(key FollowerKey) (entityDeleted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.followers[key]; !ok {
		glog.Warningf("fsm: destroy_ack from untracked follower %d", key)
		return m.state == vtypes.Deleted && len(m.order) == 0
	}
	delete(m.followers, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if len(m.order) == 0 {
		m.state = vtypes.Deleted
		return true
	}
	return false
}

// RemoveFollowerUnacked drops a follower without going through the
// destroy handshake — used when a session disconnects mid-handshake
// (its transport will never ack again). Entity state recomputes as if
// the follower had acked whatever it was waiting on.
func (m *Machine) RemoveFollowerUnacked(key FollowerKey) (entityDeleted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.followers[key]; !ok {
		return m.state == vtypes.Deleted && len(m.order) == 0
	}
	delete(m.followers, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if len(m.order) == 0 {
		if m.state == vtypes.Deleting {
			m.state = vtypes.Deleted
		}
		return m.state == vtypes.Deleted
	}
	if m.state == vtypes.Creating && m.allFollowersAtLeast(vtypes.Created) {
		m.state = vtypes.Created
	}
	return false
}

// allFollowersAtLeast must be called with mu held.
func (m *Machine) allFollowersAtLeast(min vtypes.LifecycleState) bool {
	for _, k := range m.order {
		if m.followers[k].State < min {
			return false
		}
	}
	return true
}

// ForceCreated marks a freshly RESERVED entity CREATED without going
// through the follower create/ack handshake (spec.md §4.2: the
// well-known skeleton nodes, and each bootstrap user node, are
// "immediately marked CREATED" since no client could possibly have
// subscribed to them before the server finished starting). A no-op
// once the entity has left RESERVED, so it is safe to call at most
// once per entity right after construction.
func (m *Machine) ForceCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == vtypes.Reserved {
		m.state = vtypes.Created
	}
}

// Empty reports whether the follower set has drained (spec.md §3:
// "E is physically reclaimed only when the follower list drains").
func (m *Machine) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order) == 0
}
