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

package worker

import (
	"testing"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/aderumier/gamemanager-core/pkg/catalog"
	"github.com/aderumier/gamemanager-core/pkg/task"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCorpusXML = `<?xml version="1.0"?>
<LaunchBox>
  <Game>
    <DatabaseID>42</DatabaseID>
    <Name>Foo</Name>
    <Platform>Super Nintendo Entertainment System</Platform>
    <Developer>Acme</Developer>
    <Publisher>Acme Publishing</Publisher>
  </Game>
  <Game>
    <DatabaseID>99</DatabaseID>
    <Name>Bar</Name>
    <Platform>Super Nintendo Entertainment System</Platform>
  </Game>
  <GameAlternateName>
    <DatabaseID>99</DatabaseID>
    <AlternateName>Baz</AlternateName>
  </GameAlternateName>
</LaunchBox>`

func setupFs(t *testing.T, catalogXML string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/corpus/snes.xml", []byte(sampleCorpusXML), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/state/gamelists/snes/gamelist.xml", []byte(catalogXML), 0o600))
	return fs
}

func newTask(payload map[string]interface{}) *task.Task {
	return &task.Task{ID: uuid.New(), Kind: task.KindScraping, Payload: payload}
}

func basePayload() map[string]interface{} {
	return map[string]interface{}{
		"system":                "snes",
		"corpus_path":           "/corpus/snes.xml",
		"platform_aliases":      []string{"Super Nintendo Entertainment System"},
		"catalog_path":          "/state/gamelists/snes/gamelist.xml",
		"selected_fields":       []string{"name", "developer"},
		"overwrite_text_fields": false,
	}
}

func TestRunExactNameMatchUpdatesAndWritesCatalog(t *testing.T) {
	t.Parallel()
	catalogXML := `<?xml version="1.0"?>
<gameList>
  <game><path>./foo.zip</path><name>Foo</name></game>
</gameList>`
	fs := setupFs(t, catalogXML)

	var matched [][]string
	w := New(fs, zerolog.Nop(), nil)
	w.OnMatched = func(paths []string) { matched = append(matched, paths) }

	tk := newTask(basePayload())
	var progressLines []string
	err := w.Run(tk, func(_ int, msg string) { progressLines = append(progressLines, msg) }, make(chan struct{}))
	require.NoError(t, err)

	games, err := catalog.ParseCatalog(fs, "/state/gamelists/snes/gamelist.xml")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Foo", games[0].Name)
	assert.Equal(t, "Acme", games[0].Developer)
	assert.Equal(t, "42", games[0].LaunchBoxID)

	assert.Equal(t, 1, tk.Stats["matched"])
	assert.Equal(t, 1, tk.Stats["updated"])
	require.Len(t, matched, 1)
	assert.Equal(t, []string{"./foo.zip"}, matched[0])
	assert.NotEmpty(t, progressLines)
}

func TestRunAuthoritativeIDShortcut(t *testing.T) {
	t.Parallel()
	catalogXML := `<?xml version="1.0"?>
<gameList>
  <game><path>./foo.zip</path><name>Wrong</name><launchboxid>42</launchboxid></game>
</gameList>`
	fs := setupFs(t, catalogXML)

	payload := basePayload()
	payload["overwrite_text_fields"] = true
	delete(payload, "selected_fields")

	w := New(fs, zerolog.Nop(), nil)
	tk := newTask(payload)
	require.NoError(t, w.Run(tk, func(int, string) {}, make(chan struct{})))

	games, err := catalog.ParseCatalog(fs, "/state/gamelists/snes/gamelist.xml")
	require.NoError(t, err)
	assert.Equal(t, "Foo", games[0].Name)
}

func TestRunAlternateNameMatchPreservesParenSuffix(t *testing.T) {
	t.Parallel()
	catalogXML := `<?xml version="1.0"?>
<gameList>
  <game><path>./baz.zip</path><name>Baz (USA)</name></game>
</gameList>`
	fs := setupFs(t, catalogXML)

	payload := basePayload()
	payload["overwrite_text_fields"] = true

	w := New(fs, zerolog.Nop(), nil)
	tk := newTask(payload)
	require.NoError(t, w.Run(tk, func(int, string) {}, make(chan struct{})))

	games, err := catalog.ParseCatalog(fs, "/state/gamelists/snes/gamelist.xml")
	require.NoError(t, err)
	assert.Equal(t, "Baz (USA)", games[0].Name)
}

func TestRunNoMatchIsCountedAndUntouched(t *testing.T) {
	t.Parallel()
	catalogXML := `<?xml version="1.0"?>
<gameList>
  <game><path>./unknown.zip</path><name>Completely Unrelated Title</name></game>
</gameList>`
	fs := setupFs(t, catalogXML)

	w := New(fs, zerolog.Nop(), nil)
	tk := newTask(basePayload())
	require.NoError(t, w.Run(tk, func(int, string) {}, make(chan struct{})))

	assert.Equal(t, 0, tk.Stats["matched"])
	assert.Equal(t, 1, tk.Stats["no_match"])
}

func TestRunPartialMatchReviewEmitsCandidatesAndLeavesUnmatched(t *testing.T) {
	t.Parallel()
	catalogXML := `<?xml version="1.0"?>
<gameList>
  <game><path>./fooish.zip</path><name>Foozy</name></game>
</gameList>`
	fs := setupFs(t, catalogXML)

	payload := basePayload()
	payload["partial_match_review"] = true

	var reviews []PartialMatch
	w := New(fs, zerolog.Nop(), nil)
	w.OnPartialMatch = func(pm PartialMatch) { reviews = append(reviews, pm) }

	tk := newTask(payload)
	require.NoError(t, w.Run(tk, func(int, string) {}, make(chan struct{})))

	games, err := catalog.ParseCatalog(fs, "/state/gamelists/snes/gamelist.xml")
	require.NoError(t, err)
	assert.Equal(t, "Foozy", games[0].Name, "partial match must not be silently applied")

	if len(reviews) > 0 {
		assert.NotEmpty(t, reviews[0].Candidates)
	}
}

func TestRunCancellationWritesPartialCatalogAndReturnsCancelled(t *testing.T) {
	t.Parallel()
	catalogXML := `<?xml version="1.0"?>
<gameList>
  <game><path>./foo.zip</path><name>Foo</name></game>
  <game><path>./bar.zip</path><name>Bar</name></game>
</gameList>`
	fs := setupFs(t, catalogXML)

	w := New(fs, zerolog.Nop(), nil)
	tk := newTask(basePayload())

	cancelCh := make(chan struct{})
	close(cancelCh)

	err := w.Run(tk, func(int, string) {}, cancelCh)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrCancelled)
	assert.ErrorIs(t, err, apperr.ErrPartial)

	exists, err := afero.Exists(fs, "/state/gamelists/snes/gamelist.xml")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunSharedCancelMapStopsBeforeNextGame(t *testing.T) {
	t.Parallel()
	catalogXML := `<?xml version="1.0"?>
<gameList>
  <game><path>./foo.zip</path><name>Foo</name></game>
  <game><path>./bar.zip</path><name>Bar</name></game>
</gameList>`
	fs := setupFs(t, catalogXML)

	cm := NewCancelMap()
	w := New(fs, zerolog.Nop(), cm)
	tk := newTask(basePayload())
	cm.Cancel(tk.ID.String())

	err := w.Run(tk, func(int, string) {}, make(chan struct{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrCancelled)
	assert.False(t, cm.IsCancelled(tk.ID.String()), "cancel map entry must clear after the run returns")
}

func TestRunRejectsMissingRequiredPayloadFields(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	w := New(fs, zerolog.Nop(), nil)
	tk := newTask(map[string]interface{}{"system": "snes"})

	err := w.Run(tk, func(int, string) {}, make(chan struct{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrPermanent)
}
