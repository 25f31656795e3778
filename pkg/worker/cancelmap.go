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

package worker

import "github.com/aderumier/gamemanager-core/pkg/helpers/syncutil"

// CancelMap is the shared task_id -> cancelled map the worker polls
// between games (spec §4.7 "a shared cancel map task_id → bool carries
// stop signals"). Safe for concurrent use.
type CancelMap struct {
	mu syncutil.Mutex
	m  map[string]bool
}

// NewCancelMap builds an empty CancelMap.
func NewCancelMap() *CancelMap {
	return &CancelMap{m: map[string]bool{}}
}

// Cancel marks taskID as cancelled.
func (c *CancelMap) Cancel(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[taskID] = true
}

// IsCancelled reports whether taskID has been marked cancelled.
func (c *CancelMap) IsCancelled(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[taskID]
}

// Clear removes taskID's entry once the worker has returned.
func (c *CancelMap) Clear(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, taskID)
}
