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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const osAppendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// logPathFor derives a Task's log file path from its UUID (spec §4.6
// "Per-task log").
func logPathFor(logDir string, id string) string {
	return filepath.Join(logDir, id+".log")
}

// writeHeader opens (or truncates) the per-task log file and writes the
// header line: start timestamp, kind, submitter, and the opaque submission
// payload encoded as JSON.
func writeHeader(fs afero.Fs, path string, t *Task) error {
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	header := fmt.Sprintf("=== task %s ===\nstarted: %s\nkind: %s\nsubmitter: %s\npayload: %s\n---\n",
		t.ID, t.StartedAt.Format(time.RFC3339), t.Kind, t.Submitter, payload)

	if err := afero.WriteFile(fs, path, []byte(header), 0o640); err != nil {
		return fmt.Errorf("failed to write task log header: %w", err)
	}
	return nil
}

// appendProgressLine appends one "[HH:MM:SS] message" line (spec §4.6).
func appendProgressLine(fs afero.Fs, path, message string) error {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"), message)
	return appendToFile(fs, path, line)
}

// writeFooter appends the terminal summary: final status, duration,
// progress percentage, step counters, and stats.
func writeFooter(fs afero.Fs, path string, t *Task) error {
	stats, err := json.Marshal(t.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode task stats: %w", err)
	}

	duration := t.FinishedAt.Sub(t.StartedAt)
	footer := fmt.Sprintf("---\nstatus: %s\nduration: %s\nprogress: %d%%\nsteps: %d/%d\nstats: %s\n",
		t.Status, duration, t.Progress, t.StepsDone, t.StepsTotal, stats)

	return appendToFile(fs, path, footer)
}

func appendToFile(fs afero.Fs, path, content string) error {
	f, err := fs.OpenFile(path, osAppendFlags, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open task log for append: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write([]byte(content)); err != nil {
		return fmt.Errorf("failed to append to task log: %w", err)
	}
	return nil
}

// HistoryEntry is a terminal Task reconstructed from its log file on
// restart (spec §4.6: "the file is the authoritative source for Task
// state on restart").
type HistoryEntry struct {
	ID        string
	Kind      Kind
	Submitter string
	Status    Status
	StartedAt time.Time
}

// loadHistoryFromLogs scans logDir and reconstructs a HistoryEntry per log
// file by reading its header and footer lines.
func loadHistoryFromLogs(fs afero.Fs, logDir string) ([]HistoryEntry, error) {
	exists, err := afero.DirExists(fs, logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat task log directory: %w", err)
	}
	if !exists {
		return nil, nil
	}

	entries, err := afero.ReadDir(fs, logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read task log directory: %w", err)
	}

	var out []HistoryEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		data, err := afero.ReadFile(fs, filepath.Join(logDir, e.Name()))
		if err != nil {
			continue
		}
		if entry, ok := parseHistoryEntry(string(data), strings.TrimSuffix(e.Name(), ".log")); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func parseHistoryEntry(content, id string) (HistoryEntry, bool) {
	entry := HistoryEntry{ID: id, Status: StatusRunning}
	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "kind: "):
			entry.Kind = Kind(strings.TrimPrefix(line, "kind: "))
		case strings.HasPrefix(line, "submitter: "):
			entry.Submitter = strings.TrimPrefix(line, "submitter: ")
		case strings.HasPrefix(line, "started: "):
			if ts, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "started: ")); err == nil {
				entry.StartedAt = ts
			}
		case strings.HasPrefix(line, "status: "):
			entry.Status = Status(strings.TrimPrefix(line, "status: "))
		}
	}
	if entry.Kind == "" {
		return HistoryEntry{}, false
	}
	// A task whose log never reached a footer was interrupted mid-run by
	// the prior process exiting; it's classified stopped rather than
	// silently resumed (spec §4.6 "History reload").
	if entry.Status == StatusRunning || entry.Status == StatusQueued {
		entry.Status = StatusStopped
	}
	return entry, true
}
