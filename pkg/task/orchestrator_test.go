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
	"testing"
	"time"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitStartsImmediatelyWhenIdle(t *testing.T) {
	t.Parallel()
	o := New(afero.NewMemMapFs(), "/logs", zerolog.Nop())

	tk, err := o.Submit(Submission{Kind: KindRomScan, Submitter: "ui"})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, tk.Status)
	assert.Same(t, tk, o.Running())
}

func TestSubmitQueuesWhenBusy(t *testing.T) {
	t.Parallel()
	o := New(afero.NewMemMapFs(), "/logs", zerolog.Nop())

	first, err := o.Submit(Submission{Kind: KindRomScan, Submitter: "ui"})
	require.NoError(t, err)
	second, err := o.Submit(Submission{Kind: KindMediaScan, Submitter: "ui"})
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, first.Status)
	assert.Equal(t, StatusQueued, second.Status)
	assert.Len(t, o.Queued(), 1)
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	t.Parallel()
	o := New(afero.NewMemMapFs(), "/logs", zerolog.Nop())
	_, err := o.Submit(Submission{Kind: Kind("bogus"), Submitter: "ui"})
	assert.Error(t, err)
}

func TestRunDequeuesNextOnCompletion(t *testing.T) {
	t.Parallel()
	o := New(afero.NewMemMapFs(), "/logs", zerolog.Nop())

	first, err := o.Submit(Submission{Kind: KindRomScan, Submitter: "ui"})
	require.NoError(t, err)
	second, err := o.Submit(Submission{Kind: KindMediaScan, Submitter: "ui"})
	require.NoError(t, err)

	o.Run(first, func(t *Task, progress func(int, string), cancel <-chan struct{}) error {
		progress(50, "halfway")
		return nil
	})

	assert.Equal(t, StatusCompleted, first.Status)
	assert.Equal(t, StatusRunning, second.Status)
	assert.Same(t, second, o.Running())
	assert.Empty(t, o.Queued())

	data, err := afero.ReadFile(o.fs, first.logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "halfway")
	assert.Contains(t, string(data), "status: completed")
}

func TestCancelQueuedRemovesWithoutRunning(t *testing.T) {
	t.Parallel()
	o := New(afero.NewMemMapFs(), "/logs", zerolog.Nop())

	_, err := o.Submit(Submission{Kind: KindRomScan, Submitter: "ui"})
	require.NoError(t, err)
	second, err := o.Submit(Submission{Kind: KindMediaScan, Submitter: "ui"})
	require.NoError(t, err)

	require.NoError(t, o.Cancel(second.ID))
	assert.Empty(t, o.Queued())
	assert.Equal(t, StatusStopped, second.Status)
}

func TestCancelRunningSignalsCancelChannel(t *testing.T) {
	t.Parallel()
	o := New(afero.NewMemMapFs(), "/logs", zerolog.Nop())

	tk, err := o.Submit(Submission{Kind: KindRomScan, Submitter: "ui"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		o.Run(tk, func(t *Task, progress func(int, string), cancel <-chan struct{}) error {
			<-cancel
			return apperr.ErrCancelled
		})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, o.Cancel(tk.ID))
	<-done

	assert.Equal(t, StatusStopped, tk.Status)
}

func TestHistoryEvictsBeyondMax(t *testing.T) {
	t.Parallel()
	o := New(afero.NewMemMapFs(), "/logs", zerolog.Nop())
	o.SetMaxHistory(2)

	for i := 0; i < 3; i++ {
		tk, err := o.Submit(Submission{Kind: KindRomScan, Submitter: "ui"})
		require.NoError(t, err)
		o.Run(tk, func(t *Task, progress func(int, string), cancel <-chan struct{}) error {
			return nil
		})
	}

	assert.Len(t, o.History(), 2)
}

func TestCheckStuckMarksIdleThenForcesError(t *testing.T) {
	t.Parallel()
	o := New(afero.NewMemMapFs(), "/logs", zerolog.Nop())
	o.idleGrace = 0
	o.stuckTimeout = 0

	tk, err := o.Submit(Submission{Kind: KindRomScan, Submitter: "ui"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		o.Run(tk, func(t *Task, progress func(int, string), cancel <-chan struct{}) error {
			<-cancel
			return apperr.ErrCancelled
		})
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)

	o.CheckStuck()
	assert.Equal(t, StatusIdle, tk.Status)

	o.CheckStuck()
	<-done
	assert.Equal(t, StatusError, tk.Status)
	assert.ErrorContains(t, tk.Err, "stuck in idle")
}

func TestRestoreHistoryMarksInterruptedTasksStopped(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	id := "11111111-1111-1111-1111-111111111111"
	require.NoError(t, afero.WriteFile(fs, "/logs/"+id+".log",
		[]byte("=== task "+id+" ===\nstarted: 2026-01-01T00:00:00Z\nkind: rom_scan\nsubmitter: ui\npayload: {}\n---\n"),
		0o640))

	o := New(fs, "/logs", zerolog.Nop())
	require.NoError(t, o.RestoreHistory())

	hist := o.History()
	require.Len(t, hist, 1)
	assert.Equal(t, StatusStopped, hist[0].Status)
}
