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
	"math"
	"strings"
)

// lcsRatio computes a longest-common-subsequence similarity ratio in
// [0,1], defined as 2*lcsLen / (len(a)+len(b)) so identical strings score
// 1.0 and disjoint strings score 0.0. No library in the corpus exposes an
// LCS ratio (go-edlib covers Jaro-Winkler and Damerau-Levenshtein only),
// so this is hand-written.
func lcsRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcsLen := prev[len(rb)]
	return 2 * float64(lcsLen) / float64(len(ra)+len(rb))
}

// bonus computes the additive publisher/developer bonuses of spec §4.3
// step 4. Exact (case-insensitive) matches score higher than substring
// containment; the two bonuses are independent and both may apply.
func bonus(queryPublisher, queryDeveloper, candPublisher, candDeveloper string) float64 {
	var total float64

	if queryPublisher != "" && candPublisher != "" {
		qp, cp := strings.ToLower(queryPublisher), strings.ToLower(candPublisher)
		switch {
		case qp == cp:
			total += 0.15
		case strings.Contains(cp, qp) || strings.Contains(qp, cp):
			total += 0.08
		}
	}

	if queryDeveloper != "" && candDeveloper != "" {
		qd, cd := strings.ToLower(queryDeveloper), strings.ToLower(candDeveloper)
		switch {
		case qd == cd:
			total += 0.12
		case strings.Contains(cd, qd) || strings.Contains(qd, cd):
			total += 0.06
		}
	}

	return total
}

// clampScore bounds a fuzzy score to [0,1): a score of exactly 1.0 belongs
// to exact-name and authoritative-ID hits only, so bonuses never lift a
// fuzzy candidate to it.
func clampScore(s float64) float64 {
	if s >= 1.0 {
		return math.Nextafter(1.0, 0)
	}
	if s < 0 {
		return 0
	}
	return s
}
