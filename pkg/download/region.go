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
	"regexp"

	"github.com/aderumier/gamemanager-core/pkg/corpus"
)

// regionTag matches a single parenthesized region token in a ROM filename,
// e.g. "Super Mario Bros (USA).zip" -> "USA".
var regionTag = regexp.MustCompile(`\(([A-Za-z][A-Za-z, ]*)\)`)

// RegionFromPath extracts the first parenthesized region token from a
// catalog path's filename, if present (spec §4.4 "Region selection").
func RegionFromPath(path string) (string, bool) {
	m := regionTag.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RegionPriority returns the region priority list to use for a game:
// the path's own region promoted to first, followed by the configured
// default list (with the promoted region removed from its old position,
// and without duplicating it).
func RegionPriority(path string, defaults []string) []string {
	region, ok := RegionFromPath(path)
	if !ok {
		return append([]string(nil), defaults...)
	}

	out := make([]string, 0, len(defaults)+1)
	out = append(out, region)
	for _, d := range defaults {
		if d != region {
			out = append(out, d)
		}
	}
	return out
}

// SelectBestImage picks the highest region-priority image of the wanted
// type from a corpus entry's image list, grounded on the screenscraper
// provider's region-priority media selection.
func SelectBestImage(images []corpus.Image, imageType string, priority []string) (corpus.Image, bool) {
	byRegion := make(map[string]corpus.Image, len(images))
	for _, img := range images {
		if img.Type != imageType {
			continue
		}
		if _, exists := byRegion[img.Region]; !exists {
			byRegion[img.Region] = img
		}
	}
	if len(byRegion) == 0 {
		return corpus.Image{}, false
	}

	for _, region := range priority {
		if img, ok := byRegion[region]; ok {
			return img, true
		}
	}

	// No priority region matched; fall back to whatever is first in the
	// original (deterministic, corpus-file-order) image list.
	for _, img := range images {
		if img.Type == imageType {
			return img, true
		}
	}
	return corpus.Image{}, false
}
