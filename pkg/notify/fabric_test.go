// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func httpHandler(f *Fabric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = f.HandleWebsocket(w, r)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestFabricJoinTracksRoomMembership(t *testing.T) {
	t.Parallel()
	f := New(zerolog.Nop())
	srv := httptest.NewServer(httpHandler(f))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(clientMessage{Join: "snes"}))

	require.Eventually(t, func() bool {
		return f.RoomSize("snes") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestFabricEmitDeliversToRoomMembersOnly(t *testing.T) {
	t.Parallel()
	f := New(zerolog.Nop())
	srv := httptest.NewServer(httpHandler(f))
	defer srv.Close()

	snesConn := dial(t, srv)
	nesConn := dial(t, srv)
	require.NoError(t, snesConn.WriteJSON(clientMessage{Join: "snes"}))
	require.NoError(t, nesConn.WriteJSON(clientMessage{Join: "nes"}))

	require.Eventually(t, func() bool {
		return f.RoomSize("snes") == 1 && f.RoomSize("nes") == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.EmitSystemUpdated("snes", ActionGamelistUpdated, nil))

	_ = snesConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := snesConn.ReadMessage()
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, "system_updated", evt.Type)

	_ = nesConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = nesConn.ReadMessage()
	assert.Error(t, err, "nes room must not receive a snes emit")
}

func TestFabricEmitToEmptyRoomIsNoop(t *testing.T) {
	t.Parallel()
	f := New(zerolog.Nop())
	assert.NoError(t, f.EmitTaskCompleted("ghost-system", TaskCompleted{TaskID: "x", Success: true}))
}
