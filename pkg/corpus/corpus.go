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

// Package corpus implements the Metadata Corpus Cache: a process-wide,
// read-only-after-load index over the LaunchBox-shaped authoritative
// metadata XML (spec §4.2, §6).
package corpus

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aderumier/gamemanager-core/pkg/apperr"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Entry is an immutable authoritative record keyed by DatabaseID (spec §3).
type Entry struct {
	DatabaseID      string
	Name            string
	Platform        string
	Developer       string
	Publisher       string
	Overview        string
	Genre           string
	CommunityRating string
	MaxPlayers      string
	ReleaseDate     string
}

// Image is a single media descriptor attached to a corpus entry.
type Image struct {
	DatabaseID string
	Type       string
	FileName   string
	Region     string
}

// AlternateName is a single alternate-name record attached to a corpus entry.
type AlternateName struct {
	DatabaseID string
	Name       string
}

// rawGame/rawImage/rawAlternateName mirror the corpus XML shape (spec §6):
// three element kinds keyed by a DatabaseID child, tolerant of unknown
// children since encoding/xml ignores unmapped elements automatically.
type rawDatafile struct {
	XMLName        xml.Name           `xml:"LaunchBox"`
	Games          []rawGame          `xml:"Game"`
	Images         []rawImage         `xml:"GameImage"`
	AlternateNames []rawAlternateName `xml:"GameAlternateName"`
}

type rawGame struct {
	DatabaseID      string `xml:"DatabaseID"`
	Name            string `xml:"Name"`
	Platform        string `xml:"Platform"`
	Developer       string `xml:"Developer"`
	Publisher       string `xml:"Publisher"`
	Overview        string `xml:"Overview"`
	Genres          string `xml:"Genres"`
	CommunityRating string `xml:"CommunityRating"`
	MaxPlayers      string `xml:"MaxPlayers"`
	ReleaseDate     string `xml:"ReleaseDate"`
}

type rawImage struct {
	DatabaseID string `xml:"DatabaseID"`
	Type       string `xml:"Type"`
	FileName   string `xml:"FileName"`
	Region     string `xml:"Region"`
}

type rawAlternateName struct {
	DatabaseID    string `xml:"DatabaseID"`
	AlternateName string `xml:"AlternateName"`
}

// state is "loading" while a (re)load is in progress, "empty" when the
// backing file is missing, and "ready" once populated.
type state int

const (
	stateEmpty state = iota
	stateLoading
	stateReady
)

// Cache is the process-wide Metadata Corpus Cache (spec §4.2). It is safe
// for concurrent use; it is read-only after a Load/Reload completes.
type Cache struct {
	mu    sync.RWMutex
	state state

	entries        map[string]Entry
	images         map[string][]Image
	alternateNames map[string][]AlternateName
	platforms      []string

	log zerolog.Logger
}

// NewCache constructs an empty cache. Call Load to populate it.
func NewCache(log zerolog.Logger) *Cache {
	return &Cache{
		entries:        map[string]Entry{},
		images:         map[string][]Image{},
		alternateNames: map[string][]AlternateName{},
		state:          stateEmpty,
		log:            log.With().Str("component", "corpus").Logger(),
	}
}

// Load parses the corpus XML at path and populates the cache. If the file
// is missing, the cache marks itself empty and all matches become
// no-match; this is not an error. Partial parse errors abort the load and
// retain whatever was previously loaded.
func (c *Cache) Load(fs afero.Fs, path string) error {
	c.mu.Lock()
	prev := c.state
	c.state = stateLoading
	c.mu.Unlock()

	entries, images, altNames, err := parseCorpusFile(fs, path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if isNotExist(err) {
			c.state = stateEmpty
			c.log.Warn().Str("path", path).Msg("corpus file missing, cache is empty")
			return nil
		}
		c.log.Warn().Err(err).Msg("corpus parse error, retaining previous load")
		if prev == stateReady {
			c.state = stateReady
		} else {
			c.state = stateEmpty
		}
		return fmt.Errorf("%w: %w", apperr.ErrMalformed, err)
	}

	c.entries = entries
	c.images = images
	c.alternateNames = altNames

	platformSet := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Platform != "" {
			platformSet[e.Platform] = true
		}
	}
	platforms := make([]string, 0, len(platformSet))
	for p := range platformSet {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	c.platforms = platforms

	c.state = stateReady
	c.log.Info().Int("entries", len(entries)).Int("platforms", len(platforms)).Msg("corpus loaded")
	return nil
}

// Reload clears and repopulates the cache from the same file.
func (c *Cache) Reload(fs afero.Fs, path string) error {
	return c.Load(fs, path)
}

// IsEmpty reports whether the corpus file was missing at load time.
func (c *Cache) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateEmpty
}

// Platforms returns the sorted list of distinct platform tags in the corpus.
func (c *Cache) Platforms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.platforms...)
}

// Entry returns the authoritative entry for a DatabaseID.
func (c *Cache) Entry(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Images returns the image descriptors for a DatabaseID.
func (c *Cache) Images(id string) []Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Image(nil), c.images[id]...)
}

// AlternateNames returns the alternate-name records for a DatabaseID.
func (c *Cache) AlternateNames(id string) []AlternateName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]AlternateName(nil), c.alternateNames[id]...)
}

// AllEntries returns every entry currently loaded, for platform-view construction.
func (c *Cache) AllEntries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

func parseCorpusFile(fs afero.Fs, path string) (map[string]Entry, map[string][]Image, map[string][]AlternateName, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var doc rawDatafile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse corpus xml: %w", err)
	}

	entries := make(map[string]Entry, len(doc.Games))
	for _, g := range doc.Games {
		if g.DatabaseID == "" {
			continue
		}
		entries[g.DatabaseID] = Entry{
			DatabaseID:      g.DatabaseID,
			Name:            g.Name,
			Platform:        g.Platform,
			Developer:       g.Developer,
			Publisher:       g.Publisher,
			Overview:        g.Overview,
			Genre:           g.Genres,
			CommunityRating: g.CommunityRating,
			MaxPlayers:      g.MaxPlayers,
			ReleaseDate:     g.ReleaseDate,
		}
	}

	images := make(map[string][]Image, len(doc.Images))
	for _, img := range doc.Images {
		if img.DatabaseID == "" {
			continue
		}
		images[img.DatabaseID] = append(images[img.DatabaseID], Image{
			DatabaseID: img.DatabaseID,
			Type:       img.Type,
			FileName:   img.FileName,
			Region:     img.Region,
		})
	}

	altNames := make(map[string][]AlternateName, len(doc.AlternateNames))
	for _, a := range doc.AlternateNames {
		if a.DatabaseID == "" {
			continue
		}
		altNames[a.DatabaseID] = append(altNames[a.DatabaseID], AlternateName{
			DatabaseID: a.DatabaseID,
			Name:       a.AlternateName,
		})
	}

	return entries, images, altNames, nil
}

func isNotExist(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "no such file") || strings.Contains(err.Error(), "does not exist"))
}
