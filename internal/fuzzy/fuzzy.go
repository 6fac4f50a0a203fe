/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package fuzzy scores approximate matches between words and schema identifiers.
package fuzzy

// DefaultThreshold is the minimum score a candidate needs to be accepted.
const DefaultThreshold = 60

// Score is a candidate together with its similarity to the matched word.
type Score struct {
	Candidate string
	Value     float64
}

// Ratio returns the normalized Indel similarity of a and b on a 0-100 scale:
// 100 * (1 - indel(a, b) / (len(a) + len(b))), where indel is the number of
// single-rune insertions and deletions needed to turn a into b. Two empty
// strings are identical.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	lcs := longestCommonSubsequence(ra, rb)
	return 100 * float64(2*lcs) / float64(total)
}

// longestCommonSubsequence uses a two-row table; indel(a, b) equals
// len(a) + len(b) - 2*lcs(a, b).
func longestCommonSubsequence(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// BestMatch returns the highest scoring candidate. Ties keep the candidate
// that appears first. ok is false only when candidates is empty.
func BestMatch(word string, candidates []string) (best Score, ok bool) {
	for _, c := range candidates {
		s := Ratio(word, c)
		if !ok || s > best.Value {
			best = Score{Candidate: c, Value: s}
			ok = true
		}
	}
	return best, ok
}

// Match returns the best candidate for word if its score is at least
// threshold. It never fails; a missing match is reported through ok.
func Match(word string, candidates []string, threshold float64) (string, bool) {
	best, ok := BestMatch(word, candidates)
	if !ok || best.Value < threshold {
		return "", false
	}
	return best.Candidate, true
}
