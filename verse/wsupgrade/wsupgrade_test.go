// Tests for the WebSocket transport shim (spec.md §4.9, §4.10). These
// exercise the real gorilla/websocket upgrade and pump loop end to end
// over an httptest.Server and a local dialer; no external service is
// required since both ends of the socket are in-process.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package wsupgrade

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/verse-project/verse/dispatch"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/vtypes"
)

func newTestServer(t *testing.T, core *dispatch.Core, checkOrigin func(*http.Request) bool) (*httptest.Server, string) {
	t.Helper()
	up := NewUpgrader(core, checkOrigin)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up.ServeHTTP(w, r, session.ID(1), vtypes.UserID(1000))
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func TestNewUpgraderDefaultsToAcceptingAllOrigins(t *testing.T) {
	up := NewUpgrader(dispatch.NewCore(nil), nil)
	require.True(t, up.upgrader.CheckOrigin(httptest.NewRequest(http.MethodGet, "/ws", nil)))
}

func TestServeHTTPRegistersAndTearsDownSession(t *testing.T) {
	core := dispatch.NewCore(nil)
	_, err := core.Store.CreateLinked(vtypes.AvatarParentNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)

	_, wsURL := newTestServer(t, core, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := core.Sessions.Get(session.ID(1))
		return ok
	}, time.Second, 5*time.Millisecond, "session must be registered once the upgrade completes")

	conn.Close()

	require.Eventually(t, func() bool {
		_, ok := core.Sessions.Get(session.ID(1))
		return !ok
	}, time.Second, 5*time.Millisecond, "session must be torn down once the socket closes")
}

func TestServeHTTPRejectsUpgradeWhenOriginCheckFails(t *testing.T) {
	core := dispatch.NewCore(nil)
	_, wsURL := newTestServer(t, core, func(*http.Request) bool { return false })

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		require.NotEqual(t, http.StatusSwitchingProtocols, resp.StatusCode)
	}
	_, ok := core.Sessions.Get(session.ID(1))
	require.False(t, ok)
}

func TestReadPumpDeliversDecodedCommandsToTheSession(t *testing.T) {
	core := dispatch.NewCore(nil)
	root, err := core.Store.CreateLinked(vtypes.AvatarParentNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)
	_ = root

	_, wsURL := newTestServer(t, core, nil)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		_, ok := core.Sessions.Get(session.ID(1))
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":0}`)))

	require.Eventually(t, func() bool {
		sess, ok := core.Sessions.Get(session.ID(1))
		if !ok {
			return false
		}
		return len(sess.DrainIn()) > 0
	}, time.Second, 5*time.Millisecond, "a well-formed frame must reach the session's inbound queue")
}

func TestReadPumpDropsUndecodableFramesWithoutClosing(t *testing.T) {
	core := dispatch.NewCore(nil)
	_, err := core.Store.CreateLinked(vtypes.AvatarParentNodeID, true, vtypes.VRSSuperUserUID, 0)
	require.NoError(t, err)

	_, wsURL := newTestServer(t, core, nil)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		_, ok := core.Sessions.Get(session.ID(1))
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":0}`)))

	require.Eventually(t, func() bool {
		sess, ok := core.Sessions.Get(session.ID(1))
		return ok && sess.TransportState() == session.Open
	}, time.Second, 5*time.Millisecond, "an undecodable frame must not close the connection")
}
