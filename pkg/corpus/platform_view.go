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

package corpus

// View is a per-platform derived view over the global cache (spec §4.2).
// Worker processes that parse the corpus file directly (spec §4.7) build
// one of these without going through a shared Cache.
type View struct {
	Platform      string
	EntryByID     map[string]Entry
	ImagesByID    map[string][]Image
	AlternateByID map[string][]AlternateName
}

// BuildPlatformView filters the cache to entries whose platform tag
// matches the given platform alias set (the Corpus Cache's platform tag is
// free text; callers resolve the catalog system name to one or more
// corpus-platform aliases via the platform-alias table, spec §12.4, before
// calling this).
func (c *Cache) BuildPlatformView(platformAliases []string) View {
	wanted := make(map[string]bool, len(platformAliases))
	for _, p := range platformAliases {
		wanted[p] = true
	}

	v := View{
		EntryByID:     map[string]Entry{},
		ImagesByID:    map[string][]Image{},
		AlternateByID: map[string][]AlternateName{},
	}
	if len(platformAliases) > 0 {
		v.Platform = platformAliases[0]
	}

	for _, e := range c.AllEntries() {
		if len(wanted) > 0 && !wanted[e.Platform] {
			continue
		}
		v.EntryByID[e.DatabaseID] = e
		if imgs := c.Images(e.DatabaseID); len(imgs) > 0 {
			v.ImagesByID[e.DatabaseID] = imgs
		}
		if alts := c.AlternateNames(e.DatabaseID); len(alts) > 0 {
			v.AlternateByID[e.DatabaseID] = alts
		}
	}

	return v
}
