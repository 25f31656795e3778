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

// Package media implements the Media Reconciler (spec §4.5): it walks each
// media category directory under a system's ROM tree and reconciles the
// catalog's media fields against the files actually present on disk.
//
// The directory convention (./media/<category>/<filename>) generalizes the
// teacher's Batocera-specific <stem>-<suffix>.<ext> naming convention
// (pkg/scraper/media_storage.go) into a plain per-category subdirectory
// layout, since this module targets a single ES-DE-shaped catalog rather
// than per-platform frontend conventions.
package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aderumier/gamemanager-core/pkg/catalog"
	"github.com/spf13/afero"
)

// CategoryMapping binds a media-category directory name to a catalog field
// and the set of file extensions considered valid for it.
type CategoryMapping struct {
	Category   string
	Field      string
	Extensions []string
}

// Result reports the totals of a single reconciliation pass (spec §4.5).
type Result struct {
	UpdatedGames int
	RemovedMedia int
}

// Reconcile walks romTreeRoot/media/<category> for each mapping and sets or
// clears the mapped catalog field on every game whose path stem matches a
// file found there with an allowed extension. Always rewrites the games
// slice in place; callers persist it via catalog.WriteCatalog, matching the
// idempotence note in spec §4.5 ("the catalog file is still rewritten").
func Reconcile(fs afero.Fs, romTreeRoot string, mappings []CategoryMapping, games []catalog.Game) (Result, error) {
	var res Result

	stemIndex := make(map[string]int, len(games))
	for i, g := range games {
		stemIndex[stem(g.Path)] = i
	}

	for _, m := range mappings {
		dir := filepath.Join(romTreeRoot, "media", m.Category)
		found, err := filesByStem(fs, dir, m.Extensions)
		if err != nil {
			return res, fmt.Errorf("failed to walk media category %q: %w", m.Category, err)
		}

		for gameStem, idx := range stemIndex {
			g := &games[idx]
			relPath, hasFile := found[gameStem]

			current, _ := g.MediaField(m.Field)
			switch {
			case hasFile && current != relPath:
				g.SetMediaField(m.Field, relPath)
				res.UpdatedGames++
			case !hasFile && current != "":
				g.SetMediaField(m.Field, "")
				res.RemovedMedia++
			}
		}
	}

	return res, nil
}

// filesByStem returns, for every file directly under dir whose extension is
// in allowed, a map of the file's stem to its "./media/<category>/<name>"
// relative path.
func filesByStem(fs afero.Fs, dir string, allowed []string) (map[string]string, error) {
	out := map[string]string{}

	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat media directory: %w", err)
	}
	if !exists {
		return out, nil
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, e := range allowed {
		allowedSet[strings.ToLower(e)] = true
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if len(allowedSet) > 0 && !allowedSet[ext] {
			continue
		}
		category := filepath.Base(dir)
		out[stem(entry.Name())] = fmt.Sprintf("./media/%s/%s", category, entry.Name())
	}

	return out, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
