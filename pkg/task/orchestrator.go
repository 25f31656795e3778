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

package task

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/aderumier/gamemanager-core/pkg/helpers/syncutil"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultMaxHistory is the default retention ceiling for completed Tasks
// (spec §4.6 "Retention/eviction").
const DefaultMaxHistory = 100

// DefaultIdleGrace is how long a running Task may go without a progress
// update before it's surfaced in the `idle` status (spec §4.6's Task
// status set includes `idle` alongside queued/running/completed/error/
// stopped).
const DefaultIdleGrace = 1 * time.Minute

// DefaultStuckTimeout is how long a Task may remain idle before the
// stuck-task sweeper force-transitions it to error (spec §4.6 "Stuck-task
// sweeper": idle for more than 5 minutes).
const DefaultStuckTimeout = 5 * time.Minute

// Runner executes a Task's actual work. Implementations must poll cancel
// periodically and return promptly once it closes; progress is the
// callback the runner uses to append log lines / update percentage.
type Runner func(t *Task, progress func(percent int, message string), cancel <-chan struct{}) error

// Orchestrator is the single-node, run-at-most-one FIFO Task scheduler.
type Orchestrator struct {
	mu syncutil.Mutex

	fs     afero.Fs
	logDir string
	log    zerolog.Logger

	maxHistory   int
	idleGrace    time.Duration
	stuckTimeout time.Duration

	running      *Task
	runningSince time.Time
	lastProgress time.Time
	idleSince    time.Time
	cancelFunc   func()

	queue   []*Task
	history []*Task

	validate *validator.Validate
}

// New constructs an Orchestrator. logDir is created if missing.
func New(fs afero.Fs, logDir string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		fs:           fs,
		logDir:       logDir,
		log:          log.With().Str("component", "task").Logger(),
		maxHistory:   DefaultMaxHistory,
		idleGrace:    DefaultIdleGrace,
		stuckTimeout: DefaultStuckTimeout,
		validate:     validator.New(),
	}
}

// SetMaxHistory overrides the retention ceiling (default 100).
func (o *Orchestrator) SetMaxHistory(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.maxHistory = n
}

// RestoreHistory reloads terminal Task state from the log directory,
// per spec §4.6: "the file is the authoritative source for Task state on
// restart".
func (o *Orchestrator) RestoreHistory() error {
	entries, err := loadHistoryFromLogs(o.fs, o.logDir)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range entries {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			o.log.Warn().Str("file", e.ID).Msg("skipping task log with non-UUID name")
			continue
		}
		o.history = append(o.history, &Task{
			ID:         id,
			Kind:       e.Kind,
			Submitter:  e.Submitter,
			Status:     e.Status,
			StartedAt:  e.StartedAt,
			FinishedAt: e.StartedAt,
		})
	}
	o.evictLocked()
	return nil
}

// Submit validates a Submission and either starts it immediately or
// appends it to the FIFO queue (spec §4.6 "Scheduling model").
func (o *Orchestrator) Submit(s Submission) (*Task, error) {
	if !validKinds[s.Kind] {
		return nil, fmt.Errorf("%w: unknown task kind %q", apperr.ErrPermanent, s.Kind)
	}
	if err := o.validate.Struct(s); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	t := &Task{
		ID:          uuid.New(),
		Kind:        s.Kind,
		Submitter:   s.Submitter,
		Payload:     s.Payload,
		Status:      StatusQueued,
		SubmittedAt: time.Now(),
	}
	t.logPath = logPathFor(o.logDir, t.ID.String())

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running == nil {
		o.startLocked(t)
	} else {
		o.queue = append(o.queue, t)
	}
	return t, nil
}

// Run starts the Runner for the currently-started Task. Callers invoke
// this right after Submit returns a Task whose Status is StatusRunning;
// it's separated from Submit so the caller controls the goroutine.
func (o *Orchestrator) Run(t *Task, runner Runner) {
	cancelCh := make(chan struct{})

	o.mu.Lock()
	o.cancelFunc = sync.OnceFunc(func() { close(cancelCh) })
	o.mu.Unlock()

	if err := writeHeader(o.fs, t.logPath, t); err != nil {
		o.log.Error().Err(err).Str("task", t.ID.String()).Msg("failed to write task log header")
	}

	progressFn := func(percent int, message string) {
		o.mu.Lock()
		t.Progress = percent
		o.lastProgress = time.Now()
		o.mu.Unlock()
		if err := appendProgressLine(o.fs, t.logPath, message); err != nil {
			o.log.Warn().Err(err).Str("task", t.ID.String()).Msg("failed to append task log line")
		}
	}

	err := runner(t, progressFn, cancelCh)

	var status Status
	switch {
	case err == nil:
		status = StatusCompleted
	case errors.Is(err, apperr.ErrCancelled):
		status = StatusStopped
	default:
		status = StatusError
	}

	o.mu.Lock()
	if t.Status.Terminal() {
		// CheckStuck already finished this Task and started the next one.
		o.mu.Unlock()
		return
	}
	if status == StatusCompleted {
		t.Progress = 100
	}
	next := o.finishLocked(t, status, err)
	o.mu.Unlock()

	if next != nil {
		o.log.Info().Str("task", next.ID.String()).Msg("dequeued next task")
	}
}

// finishLocked finalizes t with status, writes its footer, retires it to
// history, and starts the next queued Task if any. taskErr is recorded on
// t only when status is StatusError. Caller must hold o.mu.
func (o *Orchestrator) finishLocked(t *Task, status Status, taskErr error) *Task {
	t.FinishedAt = time.Now()
	t.Status = status
	if status == StatusError {
		t.Err = taskErr
	}
	if wErr := writeFooter(o.fs, t.logPath, t); wErr != nil {
		o.log.Error().Err(wErr).Str("task", t.ID.String()).Msg("failed to write task log footer")
	}

	o.history = append(o.history, t)
	o.evictLocked()
	o.running = nil
	o.cancelFunc = nil
	o.idleSince = time.Time{}

	var next *Task
	if len(o.queue) > 0 {
		next = o.queue[0]
		o.queue = o.queue[1:]
		o.startLocked(next)
	}
	return next
}

// startLocked transitions t to running. Caller must hold o.mu.
func (o *Orchestrator) startLocked(t *Task) {
	t.Status = StatusRunning
	t.StartedAt = time.Now()
	o.running = t
	o.runningSince = t.StartedAt
	o.lastProgress = t.StartedAt
}

// Cancel stops a Task: if queued, it's removed without side effects; if
// running, the runner's cancel channel is closed so it can wind down
// cooperatively.
func (o *Orchestrator) Cancel(id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, t := range o.queue {
		if t.ID == id {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			t.Status = StatusStopped
			return nil
		}
	}

	if o.running != nil && o.running.ID == id {
		if o.cancelFunc != nil {
			o.cancelFunc()
		}
		return nil
	}

	return fmt.Errorf("%w: task %s", apperr.ErrNotFound, id)
}

// CheckStuck implements spec §4.6's stuck-task sweeper. A running Task
// that hasn't progressed within idleGrace is surfaced in the `idle`
// status; one still idle after stuckTimeout is force-transitioned to
// error with message "stuck in idle" without waiting for the runner to
// acknowledge, unlike the cooperative Stop protocol Cancel implements.
// Intended to be called periodically by a background ticker.
func (o *Orchestrator) CheckStuck() {
	o.mu.Lock()
	running := o.running
	if running == nil {
		o.mu.Unlock()
		return
	}

	idleFor := time.Since(o.lastProgress)
	switch {
	case idleFor < o.idleGrace:
		if running.Status == StatusIdle {
			running.Status = StatusRunning
		}
		o.mu.Unlock()
	case running.Status != StatusIdle:
		running.Status = StatusIdle
		o.idleSince = o.lastProgress
		o.mu.Unlock()
		o.log.Warn().Str("task", running.ID.String()).Msg("task idle, no progress observed")
	case time.Since(o.idleSince) <= o.stuckTimeout:
		o.mu.Unlock()
	default:
		cancelFn := o.cancelFunc
		if wErr := appendProgressLine(o.fs, running.logPath, "stuck in idle"); wErr != nil {
			o.log.Warn().Err(wErr).Str("task", running.ID.String()).Msg("failed to append task log line")
		}
		next := o.finishLocked(running, StatusError, errors.New("stuck in idle"))
		o.mu.Unlock()

		o.log.Warn().Str("task", running.ID.String()).Msg("task force-transitioned to error: stuck in idle")
		if cancelFn != nil {
			cancelFn()
		}
		if next != nil {
			o.log.Info().Str("task", next.ID.String()).Msg("dequeued next task")
		}
	}
}

// Running returns the currently-running Task, if any.
func (o *Orchestrator) Running() *Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Queued returns a snapshot of the FIFO queue.
func (o *Orchestrator) Queued() []*Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Task(nil), o.queue...)
}

// History returns a snapshot of terminal Tasks, most recent last.
func (o *Orchestrator) History() []*Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Task(nil), o.history...)
}

// evictLocked drops the oldest history entries beyond maxHistory. Caller
// must hold o.mu.
func (o *Orchestrator) evictLocked() {
	max := o.maxHistory
	if max <= 0 {
		max = DefaultMaxHistory
	}
	if len(o.history) > max {
		o.history = o.history[len(o.history)-max:]
	}
}
