// Package wsupgrade is the transport shim between a browser's
// WebSocket connection and a dispatch.Core session (vs_websocket.c's
// upgrade handshake plus its per-connection read/write pump pair).
// Wire encoding of cmdproto.Cmd itself is explicitly out of scope for
// spec.md §1 ("the protocol's byte-level wire encoding ... is a
// consumed interface, not reimplemented"); this package picks one
// concrete encoding — one JSON object per WebSocket text frame via
// json-iterator, the library verse/persist already uses for the CRC32
// input of its documents — so the dispatcher has something to actually
// read and write bytes with.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package wsupgrade

import (
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/verse-project/verse/cmdproto"
	"github.com/verse-project/verse/dispatch"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/vtypes"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// Upgrader adapts incoming HTTP requests into sessions registered
// with a dispatch.Core, mirroring vs_websocket_accept's hand-off of a
// freshly accepted socket to the core avatar-creation hook.
type Upgrader struct {
	Core       *dispatch.Core
	CheckOrigin func(r *http.Request) bool

	upgrader websocket.Upgrader
}

// NewUpgrader builds an Upgrader bound to core. If checkOrigin is nil
// all origins are accepted, matching vs_websocket.c's lack of any
// origin check (left as a caller concern since spec.md never defines
// a trust boundary for it).
func NewUpgrader(core *dispatch.Core, checkOrigin func(r *http.Request) bool) *Upgrader {
	u := &Upgrader{Core: core, CheckOrigin: checkOrigin}
	u.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if u.CheckOrigin == nil {
				return true
			}
			return u.CheckOrigin(r)
		},
	}
	return u
}

// ServeHTTP upgrades the connection, registers a new session with the
// dispatcher (spec.md §4.10 on-connect hook), and runs its read/write
// pumps until the socket closes.
func (u *Upgrader) ServeHTTP(w http.ResponseWriter, r *http.Request, id session.ID, userID vtypes.UserID) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("wsupgrade: upgrade failed for session %d: %v", id, err)
		return
	}

	sess := session.New(id, userID)
	u.Core.HandleConnect(sess)

	done := make(chan struct{})
	go writePump(conn, sess, done)
	readPump(conn, sess, u.Core)

	close(done)
	u.Core.HandleDisconnect(sess)
	conn.Close()
}

// readPump decodes one JSON-encoded cmdproto.Cmd per text frame and
// enqueues it on sess, waking the dispatcher after each frame
// (spec.md §4.9: the dispatcher wakes rather than polls). Returns
// when the connection errors or closes, at which point the caller
// tears the session down.
func readPump(conn *websocket.Conn, sess *session.Session, core *dispatch.Core) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				glog.Warningf("wsupgrade: session %d read error: %v", sess.ID, err)
			}
			return
		}
		var cmd cmdproto.Cmd
		if err := json.Unmarshal(data, &cmd); err != nil {
			glog.Warningf("wsupgrade: session %d sent undecodable frame, dropping: %v", sess.ID, err)
			continue
		}
		sess.PushIn(cmd)
		core.Notify()
	}
}

// writePump drains sess's priority outbound queue (spec.md §4.5) onto
// the wire, one command per text frame, and sends a ping on idle to
// keep the connection alive through NAT/proxy timeouts.
func writePump(conn *websocket.Conn, sess *session.Session, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		if cmd, ok := sess.PopOut(); ok {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(cmd)
			if err != nil {
				glog.Warningf("wsupgrade: session %d could not encode outbound command: %v", sess.ID, err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			continue
		}

		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-time.After(10 * time.Millisecond):
			// Outbound queue was empty; brief poll rather than blocking
			// forever, since PopOut has no wake channel of its own.
		}
	}
}
