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

package media

import (
	"testing"

	"github.com/aderumier/gamemanager-core/pkg/catalog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapping() []CategoryMapping {
	return []CategoryMapping{
		{Category: "box", Field: "boxart", Extensions: []string{".png", ".jpg"}},
	}
}

func TestReconcileSetsFieldWhenFileFound(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/roms/nes/media/box/Foo.png", []byte("x"), 0o600))

	games := []catalog.Game{{Path: "./Foo.zip", Name: "Foo"}}
	res, err := Reconcile(fs, "/roms/nes", mapping(), games)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedGames)
	assert.Equal(t, "./media/box/Foo.png", games[0].Boxart)
}

func TestReconcileClearsFieldWhenFileMissing(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	games := []catalog.Game{{Path: "./Foo.zip", Name: "Foo", Boxart: "./media/box/Foo.png"}}
	res, err := Reconcile(fs, "/roms/nes", mapping(), games)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedMedia)
	assert.Equal(t, "", games[0].Boxart)
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/roms/nes/media/box/Foo.png", []byte("x"), 0o600))

	games := []catalog.Game{{Path: "./Foo.zip", Name: "Foo"}}
	_, err := Reconcile(fs, "/roms/nes", mapping(), games)
	require.NoError(t, err)

	res2, err := Reconcile(fs, "/roms/nes", mapping(), games)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.UpdatedGames)
	assert.Equal(t, 0, res2.RemovedMedia)
}

func TestReconcileIgnoresDisallowedExtension(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/roms/nes/media/box/Foo.txt", []byte("x"), 0o600))

	games := []catalog.Game{{Path: "./Foo.zip", Name: "Foo"}}
	res, err := Reconcile(fs, "/roms/nes", mapping(), games)
	require.NoError(t, err)
	assert.Equal(t, 0, res.UpdatedGames)
	assert.Equal(t, "", games[0].Boxart)
}
