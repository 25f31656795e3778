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

// Package task implements the Task Orchestrator (spec §4.6): a single-node,
// run-at-most-one FIFO scheduler over a closed set of Task kinds, each
// backed by an authoritative per-task log file.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of Task kinds a submission may request.
type Kind string

const (
	KindScraping        Kind = "scraping"
	KindImageDownload   Kind = "image_download"
	KindMediaScan       Kind = "media_scan"
	KindRomScan         Kind = "rom_scan"
	KindYoutubeDownload Kind = "youtube_download"
	KindManualCrop      Kind = "manual_crop"
	Kind2DBoxGeneration Kind = "2d_box_generation"
)

var validKinds = map[Kind]bool{
	KindScraping:        true,
	KindImageDownload:   true,
	KindMediaScan:       true,
	KindRomScan:         true,
	KindYoutubeDownload: true,
	KindManualCrop:      true,
	Kind2DBoxGeneration: true,
}

// Status is a Task's lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusStopped
}

// Submission is the validated request to create a Task.
type Submission struct {
	Kind      Kind                   `validate:"required"`
	Submitter string                 `validate:"required"`
	Payload   map[string]interface{} `validate:"omitempty"`
}

// Task is a single unit of orchestrated work. Progress is a monotonic
// percentage in [0,100]; StepsDone/StepsTotal give the underlying counters
// an operator can read off the log footer.
type Task struct {
	ID         uuid.UUID
	Kind       Kind
	Submitter  string
	Payload    map[string]interface{}
	Status     Status
	Progress   int
	StepsDone  int
	StepsTotal int
	Stats      map[string]interface{}
	Err        error

	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time

	logPath string
}
