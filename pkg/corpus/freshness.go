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
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/afero"
)

// Updater downloads a fresh corpus archive, verifies extraction, backs up
// the previous corpus file, replaces it, and invalidates the cache (spec
// §4.2, "Freshness"). It reuses the caller's HTTP client so the download
// shares the pipeline's connection pool rather than opening a new one.
type Updater struct {
	Client *http.Client
}

// Update fetches archiveURL, extracts its first .xml member, and
// atomically replaces corpusPath, then reloads cache.
func (u *Updater) Update(ctx context.Context, fs afero.Fs, cache *Cache, archiveURL, corpusPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build corpus update request: %w", err)
	}

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download corpus archive: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("corpus archive download failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read corpus archive body: %w", err)
	}

	xmlData, err := extractCorpusXML(body)
	if err != nil {
		return fmt.Errorf("failed to extract corpus archive: %w", err)
	}

	if err := backupCorpusFile(fs, corpusPath); err != nil {
		return err
	}

	tmp := corpusPath + ".tmp"
	if err := afero.WriteFile(fs, tmp, xmlData, 0o600); err != nil {
		return fmt.Errorf("failed to write corpus temp file: %w", err)
	}
	if err := fs.Rename(tmp, corpusPath); err != nil {
		return fmt.Errorf("failed to rename corpus temp file: %w", err)
	}

	return cache.Reload(fs, corpusPath)
}

// extractCorpusXML reads a zip archive (LaunchBox ships its Metadata.xml
// this way) and returns the bytes of its first .xml member; any further
// .xml members are ignored.
func extractCorpusXML(archive []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("not a valid zip archive: %w", err)
	}

	for _, f := range r.File {
		if len(f.Name) > 4 && f.Name[len(f.Name)-4:] == ".xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open archive member %q: %w", f.Name, err)
			}
			defer func() { _ = rc.Close() }()
			data, err := io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("failed to read archive member %q: %w", f.Name, err)
			}
			return data, nil
		}
	}

	return nil, fmt.Errorf("no .xml member found in corpus archive")
}

func backupCorpusFile(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("failed to stat corpus file: %w", err)
	}
	if !exists {
		return nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read corpus file for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s.backup.%d", path, time.Now().Unix())
	if err := afero.WriteFile(fs, backupPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write corpus backup: %w", err)
	}
	return nil
}
