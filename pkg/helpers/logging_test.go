// Zaparoo Core
// Copyright (c) 2026 The Zaparoo Project Contributors.
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

package helpers

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testWriter is a no-op io.Writer for testing.
type testWriter struct{}

func (*testWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func TestInitLogging(t *testing.T) {
	// Note: Cannot use t.Parallel() because InitLogging modifies global log.Logger

	t.Run("configures logging with state dir path", func(t *testing.T) {
		stateDir := filepath.Join(t.TempDir(), "state")

		err := InitLogging(stateDir, nil)
		require.NoError(t, err)

		info, err := os.Stat(stateDir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	})

	t.Run("works with additional writers", func(t *testing.T) {
		stateDir := filepath.Join(t.TempDir(), "state")

		err := InitLogging(stateDir, []io.Writer{&testWriter{}})
		require.NoError(t, err)
	})
}
