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

package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/aderumier/gamemanager-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

// maxBackoff caps the exponential retry delay (spec §4.4).
const maxBackoff = 10 * time.Second

// Task is a single queued download: fetch URL and write it to Path. Force
// overwrites an existing file in place; otherwise a non-empty existing
// file at Path is skipped before any network request (spec §4.4
// "Force vs. fill semantics").
type Task struct {
	URL      string
	Path     string
	Provider string
	Force    bool
	Retries  int
}

// Result reports the outcome of one Task.
type Result struct {
	Task  Task
	Err   error
	Bytes int64
}

// Pipeline is the long-lived Parallel Media Downloader (spec §4.4). Safe
// for concurrent Enqueue calls; Stop drains the queue and closes the
// client, and a Pipeline must not be reused after Stop.
type Pipeline struct {
	fs     afero.Fs
	client *http.Client
	log    zerolog.Logger

	queue   chan Task
	results chan Result

	limiters   map[string]*rate.Limiter
	limitersMu syncutil.Mutex

	wg      sync.WaitGroup
	cancel  atomic.Bool
	running atomic.Bool

	queueDepth int
}

// Config configures a new Pipeline.
type Config struct {
	Workers        int
	QueueDepth     int
	MaxConnections int
	TimeoutSeconds int
	RequestsPerSec map[string]float64 // per-provider rate.Limiter allowance
}

// NewPipeline creates a pipeline and starts its worker pool. Call Stop when
// done; a fresh Pipeline should be created for the next use, matching spec
// §4.4's "a fresh client is created on the next use".
func NewPipeline(fs afero.Fs, cfg Config, log zerolog.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 20
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Workers * 4
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 20
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	p := &Pipeline{
		fs:         fs,
		client:     newClient(cfg.MaxConnections, timeout),
		log:        log.With().Str("component", "download").Logger(),
		queue:      make(chan Task, cfg.QueueDepth),
		results:    make(chan Result, cfg.QueueDepth),
		limiters:   map[string]*rate.Limiter{},
		queueDepth: cfg.QueueDepth,
	}

	for provider, rps := range cfg.RequestsPerSec {
		if rps > 0 {
			p.limiters[provider] = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}

	p.running.Store(true)
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// IsRunning reports whether the worker pool is still accepting work.
func (p *Pipeline) IsRunning() bool {
	return p.running.Load()
}

// Enqueue adds a task to the queue. Returns apperr.ErrCancelled if the
// pipeline has been stopped.
func (p *Pipeline) Enqueue(t Task) error {
	if !p.running.Load() || p.cancel.Load() {
		return apperr.ErrCancelled
	}
	select {
	case p.queue <- t:
		return nil
	default:
		return fmt.Errorf("download queue full (depth %d)", p.queueDepth)
	}
}

// WaitForCompletion blocks until expectedCount results have been collected
// or the pipeline is cancelled/stopped, then returns whatever accumulated.
func (p *Pipeline) WaitForCompletion(expectedCount int) []Result {
	out := make([]Result, 0, expectedCount)
	for len(out) < expectedCount {
		r, ok := <-p.results
		if !ok {
			return out
		}
		out = append(out, r)
	}
	return out
}

// Stop drains the queue, signals in-flight workers to cancel, and closes
// the client. Safe to call once.
func (p *Pipeline) Stop() {
	p.cancel.Store(true)
	p.running.Store(false)
	close(p.queue)
	p.wg.Wait()
	close(p.results)
	if t, ok := p.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		if p.cancel.Load() {
			continue
		}
		p.results <- p.run(task)
	}
}

func (p *Pipeline) run(task Task) Result {
	if !task.Force {
		if exists, _ := afero.Exists(p.fs, task.Path); exists {
			if info, err := p.fs.Stat(task.Path); err == nil && info.Size() > 0 {
				return Result{Task: task}
			}
		}
	}

	retries := task.Retries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= retries; attempt++ {
		if p.cancel.Load() {
			return Result{Task: task, Err: apperr.ErrCancelled}
		}
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		n, err := p.attempt(task)
		if err == nil {
			return Result{Task: task, Bytes: n}
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	return Result{Task: task, Err: lastErr}
}

func (p *Pipeline) attempt(task Task) (int64, error) {
	p.limitersMu.Lock()
	limiter := p.limiters[task.Provider]
	p.limitersMu.Unlock()

	if limiter != nil {
		if err := limiter.Wait(context.Background()); err != nil {
			return 0, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, task.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperr.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if p.cancel.Load() {
		return 0, apperr.ErrCancelled
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		return 0, err
	}

	if err := p.fs.MkdirAll(filepath.Dir(task.Path), 0o750); err != nil {
		return 0, fmt.Errorf("%w: failed to create media directory: %w", apperr.ErrPermanent, err)
	}

	tmp := task.Path + ".part"
	f, err := p.fs.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	n, copyErr := p.copyChunked(f, resp.Body)
	closeErr := f.Close()

	if p.cancel.Load() {
		_ = p.fs.Remove(tmp)
		return 0, apperr.ErrCancelled
	}

	if copyErr != nil {
		_ = p.fs.Remove(tmp)
		return 0, fmt.Errorf("%w: %w", apperr.ErrTransient, copyErr)
	}
	if closeErr != nil {
		_ = p.fs.Remove(tmp)
		return 0, fmt.Errorf("%w: %w", apperr.ErrPermanent, closeErr)
	}
	if n == 0 {
		_ = p.fs.Remove(tmp)
		return 0, fmt.Errorf("%w: downloaded file is empty", apperr.ErrTransient)
	}

	if err := p.fs.Rename(tmp, task.Path); err != nil {
		_ = p.fs.Remove(tmp)
		return 0, fmt.Errorf("%w: failed to rename downloaded file: %w", apperr.ErrPermanent, err)
	}

	return n, nil
}

// downloadChunkSize bounds how much of a single response body is read
// between cancel checks (spec §4.4's cancel observer "between chunks").
const downloadChunkSize = 256 * 1024

// copyChunked streams src to dst in fixed-size chunks, checking p.cancel
// between each one so a large in-flight download can be interrupted
// promptly instead of only before/after the whole transfer.
func (p *Pipeline) copyChunked(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, downloadChunkSize)
	var total int64
	for {
		if p.cancel.Load() {
			return total, apperr.ErrCancelled
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return total, nil
			}
			return total, readErr
		}
	}
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited (%d)", apperr.ErrTransient, code)
	case code >= 500:
		return fmt.Errorf("%w: server error (%d)", apperr.ErrTransient, code)
	case code >= 400:
		return fmt.Errorf("%w: client error (%d)", apperr.ErrPermanent, code)
	default:
		return fmt.Errorf("%w: unexpected status (%d)", apperr.ErrPermanent, code)
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, apperr.ErrTransient)
}
