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

// Package catalog implements the per-system gamelist.xml parse/write
// pipeline: deduplication by ROM path, backup-before-write, and diffing
// between two catalogs.
package catalog

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Game is a single catalog entry (spec §3). Field order matches the
// well-known, closed set named in the spec and is preserved on write.
type Game struct {
	XMLName xml.Name `xml:"game"`

	ID   string `xml:"id,omitempty"`
	Path string `xml:"path"`
	Name string `xml:"name"`

	Desc      string `xml:"desc,omitempty"`
	Genre     string `xml:"genre,omitempty"`
	Developer string `xml:"developer,omitempty"`
	Publisher string `xml:"publisher,omitempty"`
	Rating    string `xml:"rating,omitempty"`
	Players   string `xml:"players,omitempty"`

	Image      string `xml:"image,omitempty"`
	Video      string `xml:"video,omitempty"`
	Marquee    string `xml:"marquee,omitempty"`
	Wheel      string `xml:"wheel,omitempty"`
	Boxart     string `xml:"boxart,omitempty"`
	Thumbnail  string `xml:"thumbnail,omitempty"`
	Screenshot string `xml:"screenshot,omitempty"`
	Cartridge  string `xml:"cartridge,omitempty"`
	Fanart     string `xml:"fanart,omitempty"`
	Titleshot  string `xml:"titleshot,omitempty"`
	Manual     string `xml:"manual,omitempty"`
	Boxback    string `xml:"boxback,omitempty"`
	Extra1     string `xml:"extra1,omitempty"`

	LaunchBoxID string `xml:"launchboxid,omitempty"`
	IGDBID      string `xml:"igdbid,omitempty"`
	SteamID     string `xml:"steamid,omitempty"`
}

// MediaField returns the value of one of the game's media-reference fields
// by catalog field name, or "" plus false if the name is not a media field.
func (g *Game) MediaField(name string) (string, bool) {
	switch name {
	case "image":
		return g.Image, true
	case "video":
		return g.Video, true
	case "marquee":
		return g.Marquee, true
	case "wheel":
		return g.Wheel, true
	case "boxart":
		return g.Boxart, true
	case "thumbnail":
		return g.Thumbnail, true
	case "screenshot":
		return g.Screenshot, true
	case "cartridge":
		return g.Cartridge, true
	case "fanart":
		return g.Fanart, true
	case "titleshot":
		return g.Titleshot, true
	case "manual":
		return g.Manual, true
	case "boxback":
		return g.Boxback, true
	case "extra1":
		return g.Extra1, true
	default:
		return "", false
	}
}

// SetMediaField sets one of the game's media-reference fields by catalog
// field name. Returns false if name is not a recognized media field.
func (g *Game) SetMediaField(name, value string) bool {
	switch name {
	case "image":
		g.Image = value
	case "video":
		g.Video = value
	case "marquee":
		g.Marquee = value
	case "wheel":
		g.Wheel = value
	case "boxart":
		g.Boxart = value
	case "thumbnail":
		g.Thumbnail = value
	case "screenshot":
		g.Screenshot = value
	case "cartridge":
		g.Cartridge = value
	case "fanart":
		g.Fanart = value
	case "titleshot":
		g.Titleshot = value
	case "manual":
		g.Manual = value
	case "boxback":
		g.Boxback = value
	case "extra1":
		g.Extra1 = value
	default:
		return false
	}
	return true
}

type gameListXML struct {
	XMLName xml.Name `xml:"gameList"`
	Games   []Game   `xml:"game"`
}

// ParseCatalog tolerantly parses a per-system gamelist.xml. Unknown child
// elements are ignored by encoding/xml automatically. Missing id is
// assigned a fresh positive integer in document order; missing name
// defaults to "Unknown Game"; missing path defaults to a placeholder of
// "unknown/<id>" and logs a warning, since WriteCatalog dedupes such
// entries by lowercased name rather than path.
func ParseCatalog(fs afero.Fs, path string) ([]Game, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	data = repairOverEscapedEntities(data)

	var doc gameListXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.WithOffset(fmt.Errorf("%w: %w", apperr.ErrMalformed, err), 0)
	}

	nextID := 1
	for i := range doc.Games {
		g := &doc.Games[i]
		if g.ID == "" {
			g.ID = strconv.Itoa(nextID)
		}
		nextID++
		if g.Name == "" {
			g.Name = "Unknown Game"
		}
		if g.Path == "" {
			g.Path = "unknown/" + g.ID
			log.Warn().Str("catalog", path).Str("id", g.ID).Str("name", g.Name).
				Msg("catalog entry missing path, assigning placeholder")
		}
	}

	return doc.Games, nil
}

// repairOverEscapedEntities collapses repeated escaping (e.g. &amp;amp;amp;)
// down to a single level of escaping, to a fixed point.
func repairOverEscapedEntities(data []byte) []byte {
	s := string(data)
	for {
		next := strings.ReplaceAll(s, "&amp;amp;", "&amp;")
		if next == s {
			break
		}
		s = next
	}
	return []byte(s)
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file") || strings.Contains(err.Error(), "does not exist") ||
		strings.Contains(err.Error(), "file does not exist")
}

// WriteCatalog deduplicates games by path (first occurrence wins; entries
// with no path are deduped by lowercased name), then writes UTF-8 XML to a
// temporary sibling and renames it over path. The previous file, if any, is
// first copied to "<path>.backup.<unix-ts>".
func WriteCatalog(fs afero.Fs, path string, games []Game) error {
	deduped, _ := DedupeByPath(games)

	if err := fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	if err := backupIfExists(fs, path); err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<gameList>\n")
	for i := range deduped {
		out, err := xml.MarshalIndent(&deduped[i], "  ", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal game %q: %w", deduped[i].Path, err)
		}
		buf.Write(out)
		buf.WriteString("\n")
	}
	buf.WriteString("</gameList>\n")

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write catalog temp file: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename catalog temp file: %w", err)
	}
	return nil
}

// DedupeByPath removes duplicate entries, keeping the first occurrence of
// each non-empty path (or, for entries without a path, the first occurrence
// of each lowercased name). It returns the deduped slice and the number of
// entries removed.
func DedupeByPath(games []Game) ([]Game, int) {
	seenPaths := make(map[string]bool, len(games))
	seenNames := make(map[string]bool)
	out := make([]Game, 0, len(games))
	removed := 0

	for _, g := range games {
		if g.Path != "" {
			if seenPaths[g.Path] {
				removed++
				continue
			}
			seenPaths[g.Path] = true
			out = append(out, g)
			continue
		}

		key := strings.ToLower(g.Name)
		if seenNames[key] {
			removed++
			continue
		}
		seenNames[key] = true
		out = append(out, g)
	}

	return out, removed
}

func backupIfExists(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("failed to stat catalog: %w", err)
	}
	if !exists {
		return nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read catalog for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s.backup.%d", path, time.Now().Unix())
	if err := afero.WriteFile(fs, backupPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write catalog backup: %w", err)
	}
	return nil
}

// Diff summarizes the difference between two catalogs, keyed by game path.
type Diff struct {
	Added        []string
	Removed      []string
	MediaAdded   int
	MediaRemoved int
	TotalGames   int
	TotalMedia   int
}

// DiffCatalogs compares a baseline and candidate catalog by path. Media
// counters sum the presence of non-empty media-reference fields on added
// and removed entries respectively.
func DiffCatalogs(baseline, candidate []Game) Diff {
	byPath := func(games []Game) map[string]Game {
		m := make(map[string]Game, len(games))
		for _, g := range games {
			if g.Path != "" {
				m[g.Path] = g
			}
		}
		return m
	}

	baseMap := byPath(baseline)
	candMap := byPath(candidate)

	var d Diff
	d.TotalGames = len(candMap)

	for path, g := range candMap {
		if _, ok := baseMap[path]; !ok {
			d.Added = append(d.Added, path)
			d.MediaAdded += countMedia(&g)
		}
		d.TotalMedia += countMedia(&g)
	}
	for path, g := range baseMap {
		if _, ok := candMap[path]; !ok {
			d.Removed = append(d.Removed, path)
			d.MediaRemoved += countMedia(&g)
		}
	}

	return d
}

func countMedia(g *Game) int {
	n := 0
	for _, f := range []string{
		"image", "video", "marquee", "wheel", "boxart", "thumbnail",
		"screenshot", "cartridge", "fanart", "titleshot", "manual",
		"boxback", "extra1",
	} {
		if v, ok := g.MediaField(f); ok && v != "" {
			n++
		}
	}
	return n
}

// CopyCatalogToRomTree idempotently copies the authoritative per-system
// catalog from the internal state directory to the ROM tree, backing up
// any prior file there with a timestamped sibling.
func CopyCatalogToRomTree(fs afero.Fs, statePath, romTreePath string) error {
	data, err := afero.ReadFile(fs, statePath)
	if err != nil {
		return fmt.Errorf("failed to read state catalog: %w", err)
	}

	if err := backupIfExists(fs, romTreePath); err != nil {
		return err
	}

	if err := fs.MkdirAll(filepath.Dir(romTreePath), 0o750); err != nil {
		return fmt.Errorf("failed to create rom tree directory: %w", err)
	}

	tmp := romTreePath + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write rom tree catalog temp file: %w", err)
	}
	if err := fs.Rename(tmp, romTreePath); err != nil {
		return fmt.Errorf("failed to rename rom tree catalog: %w", err)
	}
	return nil
}
