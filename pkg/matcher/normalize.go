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

package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// parenSuffix matches a single trailing "(...)" group with its surrounding
// whitespace; stripParenSuffixes applies it repeatedly so names such as
// "Foo (USA) (En,Fr,De)" lose every trailing group.
var parenSuffix = regexp.MustCompile(`\s*\([^()]*\)\s*$`)

// romanNumeral folds the specific Roman numerals spec.md names (II, III,
// IV) when they appear as a standalone word.
var romanNumeral = regexp.MustCompile(`(?i)\b(ii|iii|iv)\b`)

var romanFold = map[string]string{
	"ii": "2", "iii": "3", "iv": "4",
}

// stripParenSuffixes removes every trailing parenthetical group from name,
// returning the base title with surrounding whitespace trimmed.
func stripParenSuffixes(name string) string {
	for {
		trimmed := parenSuffix.ReplaceAllString(name, "")
		if trimmed == name {
			return strings.TrimSpace(name)
		}
		name = trimmed
	}
}

// removeDiacritics strips diacritical marks via Unicode decomposition, the
// same transform chain the corpus slug normalizer uses.
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		return out
	}
	return s
}

func foldRomanNumerals(s string) string {
	return romanNumeral.ReplaceAllStringFunc(s, func(m string) string {
		return romanFold[strings.ToLower(m)]
	})
}

// normalizeKey lowercases, folds Roman numerals, strips accents, and drops
// every non-alphanumeric rune, producing a stable matching key (spec §4.3
// step 2).
func normalizeKey(s string) string {
	s = strings.ToLower(s)
	s = foldRomanNumerals(s)
	s = removeDiacritics(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeVariants returns the "with parenthetical suffix" and "without
// parenthetical suffix" normalized keys for a raw catalog name.
func normalizeVariants(raw string) (withSuffix, withoutSuffix string) {
	withSuffix = normalizeKey(raw)
	withoutSuffix = normalizeKey(stripParenSuffixes(raw))
	return withSuffix, withoutSuffix
}
