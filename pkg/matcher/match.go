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

// Package matcher implements the Match Engine: it resolves a catalog
// entry's display name (and optional authoritative ID) against a
// per-platform corpus view, using exact/alternate-name indexing and a
// scored fuzzy fallback with tie-breaking bonuses (spec §4.3).
package matcher

import (
	"sort"

	"github.com/aderumier/gamemanager-core/pkg/corpus"
	"github.com/hbollon/go-edlib"
)

// Source identifies which signal produced a match.
type Source string

const (
	SourceLaunchboxID Source = "launchboxid"
	SourceMain        Source = "main"
	SourceAlternate   Source = "alternate"
	SourceNone        Source = "none"
)

// Query is the input to the Match Engine: the catalog entry's raw display
// name, its currently-recorded authoritative ID (if any), and whatever
// publisher/developer text the catalog already carries for bonus scoring.
type Query struct {
	Name       string
	ExistingID string
	Publisher  string
	Developer  string
}

// Result is the outcome of a match attempt.
type Result struct {
	Entry       corpus.Entry
	Score       float64
	Source      Source
	DisplayName string
}

// noMatch is the zero result returned when nothing resolves.
var noMatch = Result{Source: SourceNone}

// Engine holds the unified index built once per platform view; build one
// per scrape run (or per worker, since each worker loads its own view per
// spec §4.7) and reuse it across every game in that run.
type Engine struct {
	view corpus.View
	idx  *index
}

// NewEngine builds the unified normalized-name index over a platform view.
func NewEngine(view corpus.View) *Engine {
	return &Engine{view: view, idx: buildIndex(view)}
}

// Match resolves a single query against the engine's corpus view.
func (e *Engine) Match(q Query) Result {
	if q.ExistingID != "" {
		if entry, ok := e.view.EntryByID[q.ExistingID]; ok {
			return Result{Entry: entry, Score: 1.0, Source: SourceLaunchboxID, DisplayName: entry.Name}
		}
	}

	if q.Name == "" {
		return noMatch
	}

	withSuffix, withoutSuffix := normalizeVariants(q.Name)

	if hit, ok := e.exactHit(withSuffix, withoutSuffix); ok {
		return hit
	}

	return e.fuzzyMatch(q, withSuffix, withoutSuffix)
}

func (e *Engine) exactHit(withSuffix, withoutSuffix string) (Result, bool) {
	c, ok := e.idx.exactLookup(withSuffix)
	if !ok && withoutSuffix != withSuffix {
		c, ok = e.idx.exactLookup(withoutSuffix)
	}
	if !ok {
		return Result{}, false
	}
	return Result{
		Entry:       c.entry,
		Score:       1.0,
		Source:      sourceForKind(c.kind),
		DisplayName: c.displayName,
	}, true
}

func sourceForKind(k Kind) Source {
	if k == KindMain {
		return SourceMain
	}
	return SourceAlternate
}

// fuzzyMatch computes the LCS ratio of the query against every candidate's
// normalized name, takes the best over both query variants, applies the
// publisher/developer bonuses, and early-exits once a candidate clears 0.9
// (spec §4.3 step 4).
func (e *Engine) fuzzyMatch(q Query, withSuffix, withoutSuffix string) Result {
	best := noMatch
	bestScore := -1.0

	for _, c := range e.idx.all {
		candWith, candWithout := normalizeVariants(candidateName(c))

		score := maxRatio(withSuffix, withoutSuffix, candWith, candWithout)
		score = clampScore(score + bonus(q.Publisher, q.Developer, c.entry.Publisher, c.entry.Developer))

		if score > bestScore {
			bestScore = score
			best = Result{
				Entry:       c.entry,
				Score:       score,
				Source:      sourceForKind(c.kind),
				DisplayName: c.displayName,
			}
		}
		if bestScore >= 0.9 {
			break
		}
	}

	if bestScore < 0 {
		return noMatch
	}
	return best
}

func candidateName(c candidate) string {
	return c.displayName
}

func maxRatio(qWith, qWithout, cWith, cWithout string) float64 {
	r := lcsRatio(qWith, cWith)
	if v := lcsRatio(qWith, cWithout); v > r {
		r = v
	}
	if v := lcsRatio(qWithout, cWith); v > r {
		r = v
	}
	if v := lcsRatio(qWithout, cWithout); v > r {
		r = v
	}
	return r
}

// scoredCandidate pairs a result with the raw text used to tie-break it.
type scoredCandidate struct {
	result Result
	key    string
}

// TopCandidates returns up to n fuzzy candidates for partial-match review
// (spec §4.3 step 5), sorted best-first. Candidates with identical scores
// are tie-broken by Damerau-Levenshtein distance against the query, same
// as the corpus slug matcher does.
func (e *Engine) TopCandidates(q Query, n int) []Result {
	if q.Name == "" {
		return nil
	}
	withSuffix, withoutSuffix := normalizeVariants(q.Name)

	scored := make([]scoredCandidate, 0, len(e.idx.all))
	for _, c := range e.idx.all {
		candWith, candWithout := normalizeVariants(candidateName(c))
		score := maxRatio(withSuffix, withoutSuffix, candWith, candWithout)
		score = clampScore(score + bonus(q.Publisher, q.Developer, c.entry.Publisher, c.entry.Developer))
		scored = append(scored, scoredCandidate{
			result: Result{Entry: c.entry, Score: score, Source: sourceForKind(c.kind), DisplayName: c.displayName},
			key:    candWithout,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].result.Score > scored[j].result.Score
	})

	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}

	applyTieBreak(withoutSuffix, scored)

	out := make([]Result, len(scored))
	for i, s := range scored {
		out[i] = s.result
	}
	return out
}

// applyTieBreak re-sorts any run of candidates sharing an identical score
// by Damerau-Levenshtein distance to the query (lower distance first),
// leaving everything else in place.
func applyTieBreak(query string, scored []scoredCandidate) {
	i := 0
	for i < len(scored) {
		j := i + 1
		for j < len(scored) && scored[j].result.Score == scored[i].result.Score {
			j++
		}
		if j-i > 1 {
			group := scored[i:j]
			sort.SliceStable(group, func(a, b int) bool {
				da := edlib.DamerauLevenshteinDistance(query, group[a].key)
				db := edlib.DamerauLevenshteinDistance(query, group[b].key)
				return da < db
			})
		}
		i = j
	}
}
