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

// Package worker implements the Scraping Worker (spec §4.7): for a single
// scraping Task it loads its own platform view of the corpus, matches
// every selected catalog game against it via the Match Engine, applies
// updates, and writes the catalog back. It is adapted from the teacher's
// job-queue/progress-tracker pair into a single task.Runner so the
// Orchestrator (spec §4.6) can drive it without a second process: the
// "child process" and "shared cancel map" of the source design become an
// in-process goroutine and a CancelMap instance scoped to one Task.
package worker

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/aderumier/gamemanager-core/pkg/catalog"
	"github.com/aderumier/gamemanager-core/pkg/corpus"
	"github.com/aderumier/gamemanager-core/pkg/matcher"
	"github.com/aderumier/gamemanager-core/pkg/task"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// partialMatchCandidateCount is how many ranked alternatives accompany a
// partial-match review item (spec §4.7 "Partial-match review").
const partialMatchCandidateCount = 20

// PartialMatch is emitted for a game whose best fuzzy match scored below
// 1.0 when partial-match review is enabled (spec §4.7 "Partial-match
// review"). It is surfaced to the caller via the OnPartialMatch hook;
// processing continues as a no-match unless a later call resolves it.
type PartialMatch struct {
	GamePath   string
	GameName   string
	Candidates []matcher.Result
}

// Stats summarizes one worker run (spec example tests: "stats.matched=1,
// updated=1").
type Stats struct {
	Matched int
	Updated int
	NoMatch int
	Errors  int
	Total   int
}

// Result is the final outcome the worker hands back to its caller. On a
// cooperative stop, Stopped is true and Stats reflects the games processed
// before the cancel was observed.
type Result struct {
	Stats        Stats
	Stopped      bool
	MatchedPaths []string
}

// Worker runs one scraping Task to completion (or cancellation).
type Worker struct {
	fs  afero.Fs
	log zerolog.Logger

	cancelMap *CancelMap

	// OnPartialMatch, if set, is invoked once per fuzzy (non-1.0) match
	// when the submission requests partial-match review.
	OnPartialMatch func(PartialMatch)

	// OnMatched, if set, is invoked once per successfully matched and
	// updated game path, so the caller can enqueue a follow-up
	// image_download Task (spec §4.7 step 6).
	OnMatched func(paths []string)
}

// New builds a Worker. cm may be shared across concurrently-submitted
// scraping Tasks (only one ever runs at a time per the Orchestrator's
// single-running-Task invariant), or nil to have the Worker create its
// own private map.
func New(fs afero.Fs, log zerolog.Logger, cm *CancelMap) *Worker {
	if cm == nil {
		cm = NewCancelMap()
	}
	return &Worker{fs: fs, log: log.With().Str("component", "worker").Logger(), cancelMap: cm}
}

// Cancel marks taskID cancelled in the worker's shared cancel map; the
// running Runner observes this the next time it polls between games.
func (w *Worker) Cancel(taskID string) {
	w.cancelMap.Cancel(taskID)
}

// Run implements task.Runner. payload must decode into a ScrapeSubmission.
func (w *Worker) Run(t *task.Task, progress func(percent int, message string), cancel <-chan struct{}) error {
	sub, err := DecodeScrapeSubmission(t.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermanent, err)
	}

	taskID := t.ID.String()
	defer w.cancelMap.Clear(taskID)

	cache := corpus.NewCache(w.log)
	if err := cache.Load(w.fs, sub.CorpusPath); err != nil {
		return fmt.Errorf("%w: failed to load corpus: %w", apperr.ErrPermanent, err)
	}
	view := cache.BuildPlatformView(sub.PlatformAliases)
	engine := matcher.NewEngine(view)

	games, err := catalog.ParseCatalog(w.fs, sub.CatalogPath)
	if err != nil {
		return fmt.Errorf("%w: failed to load catalog: %w", apperr.ErrPermanent, err)
	}

	filter := sub.pathFilter()
	fields := sub.selectedFieldSet()

	var stats Stats
	var matchedPaths []string

	for i := range games {
		select {
		case <-cancel:
			return w.finishStopped(t, sub, games, stats, matchedPaths, progress)
		default:
		}
		if w.cancelMap.IsCancelled(taskID) {
			return w.finishStopped(t, sub, games, stats, matchedPaths, progress)
		}

		g := &games[i]
		if filter != nil && !filter[g.Path] {
			continue
		}
		stats.Total++

		res := engine.Match(matcher.Query{
			Name:       g.Name,
			ExistingID: g.LaunchBoxID,
			Publisher:  g.Publisher,
			Developer:  g.Developer,
		})

		switch {
		case res.Source == matcher.SourceNone:
			stats.NoMatch++
			progress(percentOf(stats.Total, len(games)), fmt.Sprintf("no match: %s", g.Name))
			continue
		case res.Score < 1.0:
			stats.NoMatch++
			if sub.PartialMatchReview && w.OnPartialMatch != nil {
				w.OnPartialMatch(PartialMatch{
					GamePath:   g.Path,
					GameName:   g.Name,
					Candidates: engine.TopCandidates(matcher.Query{Name: g.Name, Publisher: g.Publisher, Developer: g.Developer}, partialMatchCandidateCount),
				})
			}
			progress(percentOf(stats.Total, len(games)), fmt.Sprintf("partial match held for review: %s", g.Name))
			continue
		}

		stats.Matched++
		if applyMatch(g, res, sub.OverwriteTextFields, fields) {
			stats.Updated++
		}
		matchedPaths = append(matchedPaths, g.Path)
		progress(percentOf(stats.Total, len(games)), fmt.Sprintf("matched (%s): %s", res.Source, g.Name))
	}

	if err := catalog.WriteCatalog(w.fs, sub.CatalogPath, games); err != nil {
		return fmt.Errorf("%w: failed to write catalog: %w", apperr.ErrPermanent, err)
	}
	if sub.RomTreeCatalogPath != "" {
		if err := catalog.CopyCatalogToRomTree(w.fs, sub.CatalogPath, sub.RomTreeCatalogPath); err != nil {
			w.log.Warn().Err(err).Msg("failed to publish catalog to rom tree")
		}
	}

	if w.OnMatched != nil && len(matchedPaths) > 0 {
		w.OnMatched(matchedPaths)
	}

	t.Stats = statsToMap(stats)
	return nil
}

// finishStopped handles the cooperative-stop path: write the catalog in
// its current partial state (with backup), emit a final progress line,
// and return apperr.ErrCancelled wrapped with apperr.ErrPartial so the
// Orchestrator records a stopped/partial-save Task (spec §4.7
// "Cancellation").
func (w *Worker) finishStopped(
	t *task.Task, sub ScrapeSubmission, games []catalog.Game, stats Stats, matchedPaths []string,
	progress func(percent int, message string),
) error {
	if err := catalog.WriteCatalog(w.fs, sub.CatalogPath, games); err != nil {
		w.log.Error().Err(err).Msg("failed to write partial catalog on stop")
	}
	progress(percentOf(stats.Total, len(games)), "stopped by user")

	if w.OnMatched != nil && len(matchedPaths) > 0 {
		w.OnMatched(matchedPaths)
	}

	t.Stats = statsToMap(stats)
	return fmt.Errorf("%w: %w", apperr.ErrPartial, apperr.ErrCancelled)
}

// parenSuffixPattern extracts a trailing parenthetical group so it can be
// preserved verbatim across a name update (spec example 2: "original
// parenthetical region suffix preserved if present in input name").
var parenSuffixPattern = regexp.MustCompile(`\s*(\([^()]*\))\s*$`)

// applyMatch updates a catalog game's text fields from a match result.
// When overwrite is false, a field already carrying a non-empty value is
// left untouched. Returns true if anything on the game actually changed.
func applyMatch(g *catalog.Game, res matcher.Result, overwrite bool, fields map[string]bool) bool {
	changed := false

	setField := func(name string, cur *string, next string) {
		if next == "" {
			return
		}
		if !overwrite && *cur != "" {
			return
		}
		if len(fields) > 0 && !fields[name] && !fields[strings.ToLower(name)] {
			return
		}
		if *cur != next {
			*cur = next
			changed = true
		}
	}

	newName := res.DisplayName
	if m := parenSuffixPattern.FindStringSubmatch(g.Name); m != nil && !strings.Contains(newName, "(") {
		newName = strings.TrimSpace(newName) + " " + m[1]
	}
	setField("Name", &g.Name, newName)
	setField("Developer", &g.Developer, res.Entry.Developer)
	setField("Publisher", &g.Publisher, res.Entry.Publisher)
	setField("Genre", &g.Genre, res.Entry.Genre)
	setField("Desc", &g.Desc, res.Entry.Overview)
	setField("Rating", &g.Rating, res.Entry.CommunityRating)
	setField("Players", &g.Players, res.Entry.MaxPlayers)

	if g.LaunchBoxID != res.Entry.DatabaseID && res.Entry.DatabaseID != "" {
		g.LaunchBoxID = res.Entry.DatabaseID
		changed = true
	}

	return changed
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

func statsToMap(s Stats) map[string]interface{} {
	return map[string]interface{}{
		"matched":     s.Matched,
		"updated":     s.Updated,
		"no_match":    s.NoMatch,
		"errors":      s.Errors,
		"total":       s.Total,
		"finished_at": time.Now().Format(time.RFC3339),
	}
}
