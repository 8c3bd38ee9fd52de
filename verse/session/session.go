// Package session models a connected client (spec.md §3 Session): its
// inbound command queue and its priority-ordered outbound queue.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package session

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/verse-project/verse/cmdproto"
	"github.com/verse-project/verse/vtypes"
)

// ID identifies a session for the lifetime of a connection.
type ID uint32

// TransportState tracks whether the transport backing this session
// is still usable; the dispatcher skips sessions that are not Open
// when draining inbound queues (spec.md §4.9).
type TransportState int32

const (
	Open TransportState = iota
	Closing
	Closed
)

// outItem is one command queued for delivery to this session, tagged
// with the priority of the node subtree that produced it (spec.md
// §4.5 Priority).
type outItem struct {
	prio uint8
	seq  uint64 // insertion order, for FIFO among equal priorities
	cmd  cmdproto.Cmd
}

// outQueue is a container/heap priority queue: higher prio pops
// first; ties broken by insertion order (matches spec.md §5 ordering
// guarantee "commands from a single mutation appear ... before the
// dispatcher moves on", which only holds if same-priority commands
// stay FIFO).
type outQueue []outItem

func (q outQueue) Len() int { return len(q) }
func (q outQueue) Less(i, j int) bool {
	if q[i].prio != q[j].prio {
		return q[i].prio > q[j].prio
	}
	return q[i].seq < q[j].seq
}
func (q outQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *outQueue) Push(x any)   { *q = append(*q, x.(outItem)) }
func (q *outQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Session is a connected client.
type Session struct {
	ID       ID
	AvatarID vtypes.NodeID
	UserID   vtypes.UserID

	transport atomic.Int32 // TransportState

	inMu  sync.Mutex
	inQ   []cmdproto.Cmd

	outMu sync.Mutex
	outQ  outQueue
	outSeq uint64
}

func New(id ID, userID vtypes.UserID) *Session {
	s := &Session{ID: id, UserID: userID}
	s.transport.Store(int32(Open))
	return s
}

func (s *Session) TransportState() TransportState {
	return TransportState(s.transport.Load())
}

func (s *Session) SetTransportState(st TransportState) {
	s.transport.Store(int32(st))
}

// PushIn enqueues a decoded command arriving from the transport. FIFO
// per session (spec.md §5 ordering guarantee).
func (s *Session) PushIn(cmd cmdproto.Cmd) {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	s.inQ = append(s.inQ, cmd)
}

// DrainIn removes and returns every queued inbound command, in FIFO
// order. The data thread calls this once per session per wake-up
// (spec.md §4.9).
func (s *Session) DrainIn() []cmdproto.Cmd {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	if len(s.inQ) == 0 {
		return nil
	}
	out := s.inQ
	s.inQ = nil
	return out
}

// PushOut enqueues an outbound command at the given priority.
func (s *Session) PushOut(prio uint8, cmd cmdproto.Cmd) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.outSeq++
	heap.Push(&s.outQ, outItem{prio: prio, seq: s.outSeq, cmd: cmd})
}

// PopOut removes and returns the highest-priority outbound command.
// Transport workers call this to drain toward the wire.
func (s *Session) PopOut() (cmdproto.Cmd, bool) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outQ.Len() == 0 {
		return cmdproto.Cmd{}, false
	}
	item := heap.Pop(&s.outQ).(outItem)
	return item.cmd, true
}

func (s *Session) OutLen() int {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.outQ.Len()
}

// Registry is the server-wide set of connected sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[ID]*Session)}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Get(id ID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// All returns a snapshot of every registered session. The dispatcher
// scans this once per wake-up (spec.md §4.9: "scans all sessions in
// OPEN state").
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
