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

package matcher

import (
	"sort"

	"github.com/aderumier/gamemanager-core/pkg/corpus"
)

// Kind distinguishes a main-name index hit from an alternate-name one; ties
// in the unified index always prefer main (spec §4.3 step 3).
type Kind string

const (
	KindMain      Kind = "main"
	KindAlternate Kind = "alternate"
)

// candidate is one entry reachable under a normalized key, carrying the
// original-cased name it was indexed under so callers can preserve casing
// when promoting an alternate to the display name.
type candidate struct {
	entry       corpus.Entry
	kind        Kind
	displayName string
}

// index is the unified normalized-name -> candidates map built once per
// platform view (spec §4.3 step 3).
type index struct {
	byKey map[string][]candidate
	all   []candidate
}

// buildIndex indexes every entry in view under both its main-name keys
// (with and without parenthetical suffix) and every alternate-name key.
func buildIndex(view corpus.View) *index {
	idx := &index{byKey: map[string][]candidate{}}

	ids := make([]string, 0, len(view.EntryByID))
	for id := range view.EntryByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		e := view.EntryByID[id]
		withSuffix, withoutSuffix := normalizeVariants(e.Name)
		main := candidate{entry: e, kind: KindMain, displayName: e.Name}
		idx.add(withSuffix, main)
		if withoutSuffix != withSuffix {
			idx.add(withoutSuffix, main)
		}
		idx.all = append(idx.all, main)

		for _, alt := range view.AlternateByID[id] {
			altWith, altWithout := normalizeVariants(alt.Name)
			altCand := candidate{entry: e, kind: KindAlternate, displayName: alt.Name}
			idx.add(altWith, altCand)
			if altWithout != altWith {
				idx.add(altWithout, altCand)
			}
			idx.all = append(idx.all, altCand)
		}
	}

	return idx
}

func (idx *index) add(key string, c candidate) {
	if key == "" {
		return
	}
	idx.byKey[key] = append(idx.byKey[key], c)
}

// exactLookup returns the best exact hit for a key, preferring main over
// alternate when both are present.
func (idx *index) exactLookup(key string) (candidate, bool) {
	hits, ok := idx.byKey[key]
	if !ok || len(hits) == 0 {
		return candidate{}, false
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if best.kind == KindAlternate && h.kind == KindMain {
			best = h
		}
	}
	return best, true
}
