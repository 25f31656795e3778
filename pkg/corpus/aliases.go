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

import (
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/spf13/afero"
)

// platformAliasRow is one row of platform-aliases.csv (spec §12.4): maps a
// short catalog system name to the corpus's free-text platform tags.
type platformAliasRow struct {
	System    string `csv:"system"`
	CorpusTag string `csv:"corpus_platform"`
}

// AliasTable maps a catalog system name to the set of corpus platform tags
// that should be considered equivalent to it.
type AliasTable map[string][]string

// LoadAliasTable parses a platform-aliases.csv file via gocarina/gocsv.
func LoadAliasTable(fs afero.Fs, path string) (AliasTable, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open platform alias table: %w", err)
	}
	defer func() { _ = f.Close() }()

	var rows []platformAliasRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse platform alias table: %w", err)
	}

	table := make(AliasTable, len(rows))
	for _, r := range rows {
		table[r.System] = append(table[r.System], r.CorpusTag)
	}
	return table, nil
}

// AliasesFor returns the corpus platform tags equivalent to a catalog
// system name, falling back to the system name itself if no alias row
// matches (so an exact-match corpus still works without the CSV).
func (t AliasTable) AliasesFor(system string) []string {
	if tags, ok := t[system]; ok && len(tags) > 0 {
		return tags
	}
	return []string{system}
}
