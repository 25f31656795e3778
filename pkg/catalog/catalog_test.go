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

package catalog

import (
	"testing"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalogNotFound(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	_, err := ParseCatalog(fs, "/state/gamelists/nes/gamelist.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestParseCatalogMalformed(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/gamelist.xml", []byte("<gameList><game>"), 0o600))

	_, err := ParseCatalog(fs, "/gamelist.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrMalformed)
}

func TestParseCatalogDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	doc := `<?xml version="1.0"?>
<gameList>
  <game><path>./foo.zip</path></game>
  <game><name>Bar</name></game>
</gameList>`
	require.NoError(t, afero.WriteFile(fs, "/gamelist.xml", []byte(doc), 0o600))

	games, err := ParseCatalog(fs, "/gamelist.xml")
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Unknown Game", games[0].Name)
	assert.Equal(t, "1", games[0].ID)
	assert.Equal(t, "2", games[1].ID)
	assert.Equal(t, "unknown/2", games[1].Path)
}

func TestParseCatalogRepairsOverEscapedEntities(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	doc := `<?xml version="1.0"?>
<gameList>
  <game><path>./foo.zip</path><name>Foo &amp;amp;amp; Bar</name></game>
</gameList>`
	require.NoError(t, afero.WriteFile(fs, "/gamelist.xml", []byte(doc), 0o600))

	games, err := ParseCatalog(fs, "/gamelist.xml")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Foo & Bar", games[0].Name)
}

func TestWriteCatalogDedupesByPath(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	games := []Game{
		{Path: "./foo.zip", Name: "Foo", ID: "1"},
		{Path: "./foo.zip", Name: "Foo Duplicate", ID: "2"},
		{Path: "./bar.zip", Name: "Bar", ID: "3"},
	}

	require.NoError(t, WriteCatalog(fs, "/state/gamelists/nes/gamelist.xml", games))

	readBack, err := ParseCatalog(fs, "/state/gamelists/nes/gamelist.xml")
	require.NoError(t, err)
	require.Len(t, readBack, 2)
	assert.Equal(t, "Foo", readBack[0].Name)
	assert.Equal(t, "Bar", readBack[1].Name)
}

func TestWriteCatalogNoTwoEntriesShareNonEmptyPath(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	games := []Game{
		{Path: "./a.zip", Name: "A"},
		{Path: "./a.zip", Name: "A2"},
		{Path: "./a.zip", Name: "A3"},
	}
	deduped, removed := DedupeByPath(games)
	assert.Len(t, deduped, 1)
	assert.Equal(t, 2, removed)

	seen := map[string]bool{}
	for _, g := range deduped {
		if g.Path == "" {
			continue
		}
		require.False(t, seen[g.Path], "duplicate path %q", g.Path)
		seen[g.Path] = true
	}
}

func TestWriteCatalogBacksUpPreviousFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	path := "/state/gamelists/nes/gamelist.xml"

	require.NoError(t, WriteCatalog(fs, path, []Game{{Path: "./a.zip", Name: "A"}}))
	require.NoError(t, WriteCatalog(fs, path, []Game{{Path: "./a.zip", Name: "A2"}}))

	entries, err := afero.ReadDir(fs, "/state/gamelists/nes")
	require.NoError(t, err)

	var backups int
	for _, e := range entries {
		if e.Name() != "gamelist.xml" {
			backups++
		}
	}
	assert.Equal(t, 1, backups)
}

func TestDiffCatalogs(t *testing.T) {
	t.Parallel()

	baseline := []Game{
		{Path: "./a.zip", Name: "A"},
		{Path: "./b.zip", Name: "B", Boxart: "./media/box2dfront/b.png"},
	}
	candidate := []Game{
		{Path: "./a.zip", Name: "A", Screenshot: "./media/screenshot/a.png"},
		{Path: "./c.zip", Name: "C"},
	}

	d := DiffCatalogs(baseline, candidate)
	assert.Contains(t, d.Added, "./c.zip")
	assert.Contains(t, d.Removed, "./b.zip")
	assert.Equal(t, 1, d.MediaRemoved)
	assert.Equal(t, 2, d.TotalGames)
}

func TestCopyCatalogToRomTreeBacksUpPrior(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/state/gamelists/nes/gamelist.xml", []byte("state-version"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/roms/nes/gamelist.xml", []byte("old-version"), 0o600))

	require.NoError(t, CopyCatalogToRomTree(fs, "/state/gamelists/nes/gamelist.xml", "/roms/nes/gamelist.xml"))

	data, err := afero.ReadFile(fs, "/roms/nes/gamelist.xml")
	require.NoError(t, err)
	assert.Equal(t, "state-version", string(data))

	entries, err := afero.ReadDir(fs, "/roms/nes")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
