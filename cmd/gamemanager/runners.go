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

package main

import (
	"context"
	"fmt"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/aderumier/gamemanager-core/pkg/boxart"
	"github.com/aderumier/gamemanager-core/pkg/catalog"
	"github.com/aderumier/gamemanager-core/pkg/download"
	"github.com/aderumier/gamemanager-core/pkg/exectool"
	"github.com/aderumier/gamemanager-core/pkg/media"
	"github.com/aderumier/gamemanager-core/pkg/notify"
	"github.com/aderumier/gamemanager-core/pkg/task"
	"github.com/aderumier/gamemanager-core/pkg/worker"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// app bundles the long-lived singletons every Task kind's Runner closes
// over. Kept as plain fields rather than an interface set, since there is
// exactly one real implementation of each and tests exercise the
// individual packages directly (pkg/worker, pkg/download, pkg/media,
// pkg/boxart all have their own test suites).
type app struct {
	fs        afero.Fs
	log       zerolog.Logger
	fabric    *notify.Fabric
	orch      *task.Orchestrator
	scraper   *worker.Worker
	boxartGen *boxart.Generator
	executor  exectool.Executor
	toolBin   map[exectool.Kind]string
	dlCfg     download.Config
}

// dispatch returns the Runner bound to a Task kind (spec §4.6's closed
// Kind set, task.go's own KindRomScan/KindMediaScan/... names).
func (a *app) dispatch(kind task.Kind) task.Runner {
	switch kind {
	case task.KindScraping:
		return a.scrapingRunner
	case task.KindImageDownload:
		return a.imageDownloadRunner
	case task.KindMediaScan:
		return a.mediaScanRunner
	case task.Kind2DBoxGeneration:
		return a.boxGenerationRunner
	case task.KindRomScan:
		return a.genericToolRunner(exectool.KindSectionDownload)
	case task.KindYoutubeDownload:
		return a.genericToolRunner(exectool.KindSectionDownload)
	case task.KindManualCrop:
		return a.genericToolRunner(exectool.KindCropDetect)
	default:
		return func(_ *task.Task, _ func(int, string), _ <-chan struct{}) error {
			return fmt.Errorf("%w: no runner registered for kind %q", apperr.ErrPermanent, kind)
		}
	}
}

// submitAndRun validates and enqueues s, then drives it (and whatever the
// orchestrator chains after it) on a new goroutine if it started
// immediately. The orchestrator only ever runs one Task at a time, so a
// single goroutine per submission chain is sufficient; startLocked's
// silent promotion of the next queued Task (pkg/task/orchestrator.go's
// Run) otherwise leaves that Task marked running with nobody driving it.
func (a *app) submitAndRun(s task.Submission) (*task.Task, error) {
	t, err := a.orch.Submit(s)
	if err != nil {
		return nil, err
	}
	if t.Status == task.StatusRunning {
		go a.runLoop(t)
	}
	return t, nil
}

func (a *app) runLoop(t *task.Task) {
	for t != nil {
		a.orch.Run(t, a.dispatch(t.Kind))
		t = a.orch.Running()
	}
}

// scrapingRunner adapts worker.Worker.Run and wires its OnMatched hook to
// enqueue the image_download follow-up Task (spec §4.7 step 6) plus notify
// the system's room.
func (a *app) scrapingRunner(t *task.Task, progress func(percent int, message string), cancel <-chan struct{}) error {
	sub, err := worker.DecodeScrapeSubmission(t.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	a.scraper.OnMatched = func(paths []string) {
		if len(paths) == 0 {
			return
		}
		_, err := a.submitAndRun(task.Submission{
			Kind:      task.KindImageDownload,
			Submitter: "scraper",
			Payload: map[string]interface{}{
				"system":       sub.System,
				"catalog_path": sub.CatalogPath,
			},
		})
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to submit follow-up image_download task")
		}
		_ = a.fabric.EmitSystemUpdated(sub.System, notify.ActionGamelistUpdated, nil)
	}
	a.scraper.OnPartialMatch = func(pm worker.PartialMatch) {
		_ = a.fabric.EmitSystemUpdated(sub.System, notify.ActionGameUpdated, pm)
	}

	return a.scraper.Run(t, progress, cancel)
}

// imageDownloadRunner drains a fixed set of download Tasks described by the
// submission payload through a fresh Pipeline, matching spec §4.4's "a
// fresh client is created on the next use".
func (a *app) imageDownloadRunner(t *task.Task, progress func(percent int, message string), cancel <-chan struct{}) error {
	var payload struct {
		System   string          `mapstructure:"system"`
		Requests []download.Task `mapstructure:"requests"`
	}
	if err := mapstructure.Decode(t.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}
	if len(payload.Requests) == 0 {
		return nil
	}

	pipeline := download.NewPipeline(a.fs, a.dlCfg, a.log)
	defer pipeline.Stop()

	for _, req := range payload.Requests {
		select {
		case <-cancel:
			return apperr.ErrCancelled
		default:
		}
		if err := pipeline.Enqueue(req); err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrTransient, err)
		}
	}

	results := pipeline.WaitForCompletion(len(payload.Requests))
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
		}
		progress(percentOf(i+1, len(results)), fmt.Sprintf("downloaded %s", r.Task.Path))
	}
	if payload.System != "" {
		_ = a.fabric.EmitSystemUpdated(payload.System, notify.ActionGamelistUpdated, nil)
	}
	if failed > 0 {
		t.Stats = map[string]interface{}{"failed": failed, "total": len(results)}
	}
	return nil
}

// mediaScanRunner reconciles one system's media directory against its
// catalog (spec §4.5) and notifies the system's room on completion.
func (a *app) mediaScanRunner(t *task.Task, progress func(percent int, message string), _ <-chan struct{}) error {
	var payload struct {
		System      string                  `mapstructure:"system"`
		CatalogPath string                  `mapstructure:"catalog_path"`
		RomTreeRoot string                  `mapstructure:"rom_tree_root"`
		Mappings    []media.CategoryMapping `mapstructure:"mappings"`
	}
	if err := mapstructure.Decode(t.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	games, err := catalog.ParseCatalog(a.fs, payload.CatalogPath)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	res, err := media.Reconcile(a.fs, payload.RomTreeRoot, payload.Mappings, games)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	if err := catalog.WriteCatalog(a.fs, payload.CatalogPath, games); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	progress(100, fmt.Sprintf("reconciled media: %d updated, %d removed", res.UpdatedGames, res.RemovedMedia))
	t.Stats = map[string]interface{}{"updated_games": res.UpdatedGames, "removed_media": res.RemovedMedia}

	if payload.System != "" {
		_ = a.fabric.EmitSystemUpdated(payload.System, notify.ActionGamelistUpdated, nil)
	}
	return nil
}

// boxGenerationRunner drives pkg/boxart for the 2d_box_generation Task kind
// (closed set in pkg/task/task.go, algorithm supplemented in SPEC_FULL.md §12.1).
func (a *app) boxGenerationRunner(t *task.Task, progress func(percent int, message string), _ <-chan struct{}) error {
	var req boxart.Request
	if err := mapstructure.Decode(t.Payload, &req); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	if err := a.boxartGen.Generate(context.Background(), a.toolBin[exectool.KindComposite], req); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}
	progress(100, "box art generated")
	return nil
}

// genericToolRunner is the thin pass-through for Task kinds whose only
// documented contract is "shell out, exit 0 = success, stderr to the
// log, per-kind timeout" (rom_scan, youtube_download, manual_crop): the
// payload carries the raw tool arguments and nothing else is specified for
// these kinds beyond that CLI contract.
func (a *app) genericToolRunner(kind exectool.Kind) task.Runner {
	return func(t *task.Task, progress func(percent int, message string), cancel <-chan struct{}) error {
		var payload struct {
			Args []string `mapstructure:"args"`
		}
		if err := mapstructure.Decode(t.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
		}

		binary, ok := a.toolBin[kind]
		if !ok || binary == "" {
			return fmt.Errorf("%w: no tool binary configured for %s", apperr.ErrPermanent, kind)
		}

		select {
		case <-cancel:
			return apperr.ErrCancelled
		default:
		}

		res, err := a.executor.Run(context.Background(), binary, exectool.Options{Kind: kind, Args: payload.Args})
		if err != nil {
			return fmt.Errorf("%w: %w (stderr: %s)", apperr.ErrTransient, err, res.Stderr)
		}
		progress(100, fmt.Sprintf("%s completed", kind))
		return nil
	}
}

func percentOf(done, total int) int {
	if total <= 0 {
		return 100
	}
	pct := done * 100 / total
	if pct > 100 {
		pct = 100
	}
	return pct
}
