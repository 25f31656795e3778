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
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ScrapeSubmission is the decoded payload of a "scraping" Task submission
// (spec §4.7 "Loop"). Task.Payload arrives as a loosely-typed
// map[string]interface{} from the API layer; DecodeScrapeSubmission turns
// it into this typed form the same way the orchestrator's neighboring
// packages decode JSON-ish request bodies.
type ScrapeSubmission struct {
	System              string   `mapstructure:"system"`
	CorpusPath          string   `mapstructure:"corpus_path"`
	PlatformAliases     []string `mapstructure:"platform_aliases"`
	CatalogPath         string   `mapstructure:"catalog_path"`
	RomTreeCatalogPath  string   `mapstructure:"rom_tree_catalog_path"`
	SelectedFields      []string `mapstructure:"selected_fields"`
	OverwriteTextFields bool     `mapstructure:"overwrite_text_fields"`
	SelectedPaths       []string `mapstructure:"selected_paths"`
	PartialMatchReview  bool     `mapstructure:"partial_match_review"`
}

// DecodeScrapeSubmission decodes a Task's raw payload into a
// ScrapeSubmission, validating the fields the worker cannot proceed
// without.
func DecodeScrapeSubmission(payload map[string]interface{}) (ScrapeSubmission, error) {
	var sub ScrapeSubmission
	if err := mapstructure.Decode(payload, &sub); err != nil {
		return ScrapeSubmission{}, fmt.Errorf("failed to decode scrape submission: %w", err)
	}
	if sub.System == "" {
		return ScrapeSubmission{}, fmt.Errorf("scrape submission missing system")
	}
	if sub.CorpusPath == "" {
		return ScrapeSubmission{}, fmt.Errorf("scrape submission missing corpus_path")
	}
	if sub.CatalogPath == "" {
		return ScrapeSubmission{}, fmt.Errorf("scrape submission missing catalog_path")
	}
	return sub, nil
}

// selectedFieldSet turns SelectedFields into a lookup set; an empty list
// means "all known text fields" rather than "none".
func (s ScrapeSubmission) selectedFieldSet() map[string]bool {
	out := make(map[string]bool, len(s.SelectedFields))
	for _, f := range s.SelectedFields {
		out[f] = true
	}
	return out
}

func (s ScrapeSubmission) pathFilter() map[string]bool {
	if len(s.SelectedPaths) == 0 {
		return nil
	}
	out := make(map[string]bool, len(s.SelectedPaths))
	for _, p := range s.SelectedPaths {
		out[p] = true
	}
	return out
}
