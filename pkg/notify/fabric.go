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

// Package notify implements the Change Notification Fabric (spec §4.8): a
// room-based, at-least-once pub/sub broadcaster over a websocket
// transport, one room per system name. It is a pure broadcaster — it
// persists nothing and silently drops emits to empty rooms.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/olahol/melody"
	"github.com/rs/zerolog"
)

// Action is the enumerated set of system_updated event reasons (spec §4.8).
type Action string

const (
	ActionGamelistUpdated Action = "gamelist_updated"
	ActionGamesDeleted    Action = "games_deleted"
	ActionGameUpdated     Action = "game_updated"
)

// Event is the common envelope every message on the wire carries; Type
// discriminates system_updated / task_progress / task_completed.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SystemUpdated is the §4.8 system_updated payload.
type SystemUpdated struct {
	System    string      `json:"system"`
	Action    Action      `json:"action"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// TaskProgress is the §4.8 task_progress payload.
type TaskProgress struct {
	TaskID             string                 `json:"task_id"`
	Message            string                 `json:"message"`
	ProgressPercentage int                    `json:"progress_percentage"`
	CurrentStep        int                    `json:"current_step"`
	TotalSteps         int                    `json:"total_steps"`
	Stats              map[string]interface{} `json:"stats,omitempty"`
}

// TaskCompleted is the §4.8 task_completed payload.
type TaskCompleted struct {
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	System  string `json:"system,omitempty"`
}

// Fabric tracks one room per system name and broadcasts events to every
// client currently joined to that room, non-blocking per client (grounded
// on pkg/service/broker/broker.go's select-default-drop pattern, adapted
// from an in-process fan-out to a melody-session fan-out).
type Fabric struct {
	mu         sync.Mutex
	melody     *melody.Melody
	rooms      map[string]map[*melody.Session]bool
	clientRoom map[*melody.Session]string
	log        zerolog.Logger
}

// New builds a Fabric and wires its websocket session lifecycle callbacks.
func New(log zerolog.Logger) *Fabric {
	f := &Fabric{
		melody:     melody.New(),
		rooms:      map[string]map[*melody.Session]bool{},
		clientRoom: map[*melody.Session]string{},
		log:        log.With().Str("component", "notify").Logger(),
	}

	f.melody.HandleDisconnect(func(s *melody.Session) {
		f.Leave(s)
	})
	f.melody.HandleMessage(func(s *melody.Session, msg []byte) {
		f.handleClientMessage(s, msg)
	})

	return f
}

// clientMessage is the tiny join/leave protocol a client sends to switch
// rooms: {"join": "snes"} or {"leave": true}.
type clientMessage struct {
	Join  string `json:"join"`
	Leave bool   `json:"leave"`
}

func (f *Fabric) handleClientMessage(s *melody.Session, msg []byte) {
	var m clientMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		f.log.Warn().Err(err).Msg("ignoring malformed client message")
		return
	}
	switch {
	case m.Join != "":
		f.Join(s, m.Join)
	case m.Leave:
		f.Leave(s)
	}
}

// HandleWebsocket upgrades an HTTP request to the fabric's websocket
// transport; mount it at the notification endpoint.
func (f *Fabric) HandleWebsocket(w http.ResponseWriter, r *http.Request) error {
	return f.melody.HandleRequest(w, r) //nolint:wrapcheck
}

// Join moves a client into system's room, removing it from any prior room
// atomically under the fabric's single process-wide lock (spec §4.8
// "Rooms").
func (f *Fabric) Join(s *melody.Session, system string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prior, ok := f.clientRoom[s]; ok {
		delete(f.rooms[prior], s)
	}

	if f.rooms[system] == nil {
		f.rooms[system] = map[*melody.Session]bool{}
	}
	f.rooms[system][s] = true
	f.clientRoom[s] = system
}

// Leave removes a client from whatever room it's tracked in.
func (f *Fabric) Leave(s *melody.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if room, ok := f.clientRoom[s]; ok {
		delete(f.rooms[room], s)
		delete(f.clientRoom, s)
	}
}

// RoomSize returns how many clients are tracked in a room, mostly for tests.
func (f *Fabric) RoomSize(system string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms[system])
}

// EmitSystemUpdated broadcasts a system_updated event to system's room.
func (f *Fabric) EmitSystemUpdated(system string, action Action, data interface{}) error {
	return f.emit(system, Event{Type: "system_updated", Data: SystemUpdated{
		System:    system,
		Action:    action,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}})
}

// EmitTaskProgress broadcasts a task_progress event to system's room.
func (f *Fabric) EmitTaskProgress(system string, p TaskProgress) error {
	return f.emit(system, Event{Type: "task_progress", Data: p})
}

// EmitTaskCompleted broadcasts a task_completed event to system's room.
func (f *Fabric) EmitTaskCompleted(system string, c TaskCompleted) error {
	return f.emit(system, Event{Type: "task_completed", Data: c})
}

// emit marshals event once and sends it to every session in system's room,
// non-blocking per client (a slow/dead client never blocks the others).
// Emitting to an empty or unknown room is a silent no-op (spec §4.8).
func (f *Fabric) emit(system string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err //nolint:wrapcheck
	}

	f.mu.Lock()
	sessions := make([]*melody.Session, 0, len(f.rooms[system]))
	for s := range f.rooms[system] {
		sessions = append(sessions, s)
	}
	f.mu.Unlock()

	for _, s := range sessions {
		if writeErr := s.Write(data); writeErr != nil {
			f.log.Warn().Err(writeErr).Str("system", system).Msg("dropping notification for disconnected client")
		}
	}
	return nil
}

// Close shuts down the underlying melody instance, closing every session.
func (f *Fabric) Close() error {
	return f.melody.Close() //nolint:wrapcheck
}
