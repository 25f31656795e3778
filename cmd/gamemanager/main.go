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

// Command gamemanager runs the Task Orchestrator, Match Engine, Download
// Pipeline, Media Reconciler, and Change Notification Fabric as a single
// long-lived daemon, wiring a Task Submission over HTTP to the Runner
// registered for its kind.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aderumier/gamemanager-core/pkg/boxart"
	"github.com/aderumier/gamemanager-core/pkg/config"
	"github.com/aderumier/gamemanager-core/pkg/download"
	"github.com/aderumier/gamemanager-core/pkg/exectool"
	"github.com/aderumier/gamemanager-core/pkg/helpers"
	"github.com/aderumier/gamemanager-core/pkg/notify"
	"github.com/aderumier/gamemanager-core/pkg/task"
	"github.com/aderumier/gamemanager-core/pkg/worker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/aderumier/gamemanager-core/internal/telemetry"
)

// stuckSweepInterval is how often the orchestrator's liveness sweep runs
// (spec §4.6 implied liveness sweep).
const stuckSweepInterval = 30 * time.Second

func main() {
	configDir := flag.String("config-dir", defaultConfigDir(), "configuration directory")
	listenAddr := flag.String("listen", ":7497", "notification websocket listen address")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logWriters := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if err := helpers.InitLogging(*configDir, logWriters); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(*configDir, config.BaseDefaults)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.SetDebugLogging(true)
	}

	deviceID, err := os.Hostname()
	if err != nil || deviceID == "" {
		deviceID = "unknown-device"
	}
	reporting := cfg.ErrorReportingSettings()
	if err := telemetry.Init(reporting.Enabled, reporting.DSN, deviceID, config.AppVersion); err != nil {
		log.Error().Err(err).Msg("failed to initialize telemetry")
	}
	defer telemetry.Close()

	fs := afero.NewOsFs()

	a := &app{
		fs:  fs,
		log: log.Logger,
	}

	if err := run(cfg, fs, a, *listenAddr); err != nil {
		log.Error().Err(err).Msg("fatal error")
		telemetry.Flush()
		os.Exit(1)
	}
}

func run(cfg *config.Instance, fs afero.Fs, a *app, listenAddr string) error {
	taskLogDir := filepath.Join(cfg.StateDirectory(), cfg.TaskLogsDirectory())
	if err := fs.MkdirAll(taskLogDir, 0o750); err != nil {
		return fmt.Errorf("failed to create task log directory: %w", err)
	}

	orch := task.New(fs, taskLogDir, log.Logger)
	orch.SetMaxHistory(cfg.MaxTasksToKeep())
	if err := orch.RestoreHistory(); err != nil {
		log.Warn().Err(err).Msg("failed to restore task history")
	}

	fabric := notify.New(log.Logger)
	cancelMap := worker.NewCancelMap()

	dl := cfg.DownloadSettings()
	a.orch = orch
	a.fabric = fabric
	a.scraper = worker.New(fs, log.Logger, cancelMap)
	a.boxartGen = boxart.NewGenerator(toolDir(cfg))
	a.executor = exectool.RealExecutor{}
	a.toolBin = defaultToolBinaries()
	a.dlCfg = download.Config{
		MaxConnections: dl.MaxConnections,
		TimeoutSeconds: dl.TimeoutSeconds,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/notify", func(w http.ResponseWriter, r *http.Request) {
		if err := fabric.HandleWebsocket(w, r); err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
		}
	})
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		handleSubmitTask(a, w, r)
	})

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	stopSweep := make(chan struct{})
	go func() {
		ticker := time.NewTicker(stuckSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				orch.CheckStuck()
			case <-stopSweep:
				return
			}
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info().Msg("shutting down")
	case err := <-serveErrCh:
		close(stopSweep)
		if err := fabric.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing notification fabric")
		}
		return err
	}

	close(stopSweep)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("error during HTTP shutdown")
	}
	if err := fabric.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing notification fabric")
	}

	return nil
}

// handleSubmitTask decodes a JSON Task Submission and enqueues it. The
// request body's shape mirrors task.Submission directly.
func handleSubmitTask(a *app, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sub task.Submission
	if err := decodeJSONBody(r.Body, &sub); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := a.submitAndRun(sub)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = encodeJSONBody(w, map[string]string{"task_id": t.ID.String(), "status": string(t.Status)})
}

// decodeJSONBody decodes a JSON request body, rejecting unknown fields so
// a typo'd submission fails fast instead of silently dropping data.
func decodeJSONBody(body io.ReadCloser, v interface{}) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// encodeJSONBody writes v as the JSON response body.
func encodeJSONBody(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v) //nolint:wrapcheck
}

// defaultConfigDir resolves a per-user configuration directory, falling
// back to the working directory if the platform doesn't expose one.
func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, config.AppName)
}

// toolDir resolves where external CLI tool binaries (ImageMagick convert,
// ffmpeg, etc.) are looked up from; empty means rely on PATH.
func toolDir(_ *config.Instance) string {
	return ""
}

// defaultToolBinaries maps each exectool.Kind to the external binary that
// implements it (spec §6 "CLI / external collaborators").
func defaultToolBinaries() map[exectool.Kind]string {
	return map[exectool.Kind]string{
		exectool.KindFrameExtract:    "ffmpeg",
		exectool.KindSectionDownload: "yt-dlp",
		exectool.KindTranscode:       "ffmpeg",
		exectool.KindCropDetect:      "convert",
		exectool.KindComposite:       "convert",
	}
}
