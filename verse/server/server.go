// Package server holds the process-wide context (spec.md §9 "Global
// server context") and its READY/CLOSING/CLOSED lifecycle (spec.md §5
// "Cancellation & shutdown"): a single struct built once at start-up,
// passed explicitly to every handler rather than reached for through a
// package-level global, matching the teacher's Daemon value in
// ais/daemon.go (constructed in main, never a singleton).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package server

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.uber.org/atomic"

	"github.com/verse-project/verse/authn"
	"github.com/verse-project/verse/bootstrap"
	"github.com/verse-project/verse/dispatch"
	"github.com/verse-project/verse/metrics"
	"github.com/verse-project/verse/node"
	"github.com/verse-project/verse/persist"
	"github.com/verse-project/verse/user"
)

// State is the server-wide state enum (spec.md §5 "Cancellation &
// shutdown"): RESERVED -> CONF -> READY -> CLOSING -> CLOSED.
type State int32

const (
	Reserved State = iota
	Conf
	Ready
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Reserved:
		return "RESERVED"
	case Conf:
		return "CONF"
	case Ready:
		return "READY"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Context is the process-wide server context (vs_ctx_t equivalent):
// constructed in CONF state during start-up, flipped read-only at
// READY, and only ever mutated again by the shutdown path (spec.md §9
// "Global server context ... Lifecycle rules").
type Context struct {
	state atomic.Int32

	Users *user.Directory
	Auth  authn.Authenticator
	Core  *dispatch.Core
	Store *persist.Store // nil when persistence is disabled
	Skel  *bootstrap.Skeleton

	mu       sync.Mutex
	shutdown chan struct{}
}

// New constructs a Context in CONF state. Callers finish wiring
// (authn backend, optional persistence store) before calling
// Bootstrap, which flips the state to READY.
func New(auth authn.Authenticator, metricsReg *metrics.Registry) *Context {
	c := &Context{
		Users:    user.NewDirectory(),
		Auth:     auth,
		Core:     dispatch.NewCore(metricsReg),
		shutdown: make(chan struct{}),
	}
	c.state.Store(int32(Reserved))
	c.Users.Add(user.SuperUser())
	c.Users.Add(user.OtherUsers())
	c.setState(Conf)
	return c
}

// State reports the current server-state enum value.
func (c *Context) State() State {
	return State(c.state.Load())
}

func (c *Context) setState(s State) {
	c.state.Store(int32(s))
	glog.Infof("server: state -> %s", s)
}

// Bootstrap builds the well-known node skeleton — restoring it from
// the persistence store when one is configured and a scene-parent
// document exists, falling back to a fresh build otherwise (spec.md
// §4.11 "Restore at startup ... Failure to restore falls back to the
// bootstrap default") — and transitions CONF -> READY. Must be called
// exactly once, before Run.
func (c *Context) Bootstrap(ctx context.Context) error {
	if c.State() != Conf {
		glog.Fatalf("server: Bootstrap called outside CONF state (state=%s)", c.State())
	}
	skel := bootstrap.Build(c.Core.Store, c.Users)
	c.Skel = skel

	if c.Store != nil {
		c.restoreScene(ctx, skel)
	}
	c.setState(Ready)
	return nil
}

// restoreScene implements spec.md §4.11 "Restore at startup": look up
// the scene-parent document; if present, destroy the in-memory
// scene-parent subtree bootstrap just built and rebuild it from the
// stored tree. A missing document or a load error both fall back to
// keeping the bootstrap default untouched.
func (c *Context) restoreScene(ctx context.Context, skel *bootstrap.Skeleton) {
	for _, childID := range skel.SceneParent.Children() {
		if child, ok := c.Core.Store.Find(childID); ok {
			skel.SceneParent.RemoveChild(childID)
			destroyPlaceholder(c.Core.Store, child)
		}
	}
	restored, err := c.Store.LoadSceneSubtree(ctx, c.Core.Store, skel.SceneParent.ID(), skel.SceneParent.Owner())
	if err != nil {
		glog.Errorf("server: scene restore failed, keeping bootstrap default: %v", err)
		return
	}
	if restored == nil {
		glog.Infof("server: no persisted scene found, keeping bootstrap default")
		return
	}
	glog.Infof("server: scene-parent subtree restored from persistence")
}

// destroyPlaceholder reclaims a freshly-bootstrapped node (and its
// subtree) that restoreScene is about to replace with persisted state;
// bootstrap never attaches followers to it, so Destroy's precondition
// (no children, no followers) holds once children are cleared
// depth-first.
func destroyPlaceholder(store *node.Store, n *node.Node) {
	for _, childID := range n.Children() {
		if child, ok := store.Find(childID); ok {
			n.RemoveChild(childID)
			destroyPlaceholder(store, child)
		}
	}
	if err := store.Destroy(n); err != nil {
		glog.Warningf("server: could not reclaim placeholder node %d: %v", n.ID(), err)
	}
}

// Run drives the dispatcher loop until the context is cancelled or
// Shutdown is called, whichever comes first. It blocks; callers
// typically run it in its own goroutine from main.
func (c *Context) Run(parent context.Context) {
	if c.State() != Ready {
		glog.Fatalf("server: Run called outside READY state (state=%s)", c.State())
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-c.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()
	c.Core.Run(ctx)
	c.setState(Closed)
}

// Shutdown moves the server READY -> CLOSING and wakes the data
// thread so it observes cancellation instead of waiting out its idle
// timeout (spec.md §4.9 "the semaphore is posted once and the loop
// observes state == CLOSED to exit"). Idempotent.
func (c *Context) Shutdown(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != Ready {
		return
	}
	c.setState(Closing)
	close(c.shutdown)
	c.Core.Notify()
	_ = timeout // reserved for a future bounded drain-wait; Run's own ctx cancellation is immediate today
}
