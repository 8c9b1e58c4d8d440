/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultBreakThreshold is the share of the line a space break must fill
// before wider break classes are considered.
const DefaultBreakThreshold = 0.6

// wideBreakAfter are punctuation runes a line may end on when no space break
// is good enough.
const wideBreakAfter = "、。，．！？：；）」』】〉》,.;:!?)-/"

// BreakFinder chooses where runs of text are split into lines.
type BreakFinder struct {
	Backend   Backend
	Threshold float32
}

// Segment is one piece of a run placed on a line.
type Segment struct {
	Text  string
	Width float32
}

// Next returns the part of text to place on the current line and the
// remainder. avail is the width left on the line, capacity the full line
// width; avail < 0 disables wrapping. ok is false when nothing fits on a
// line that already holds something, so the caller should open a new line.
// On an empty line a run without a fitting break overflows up to its first
// break opportunity.
func (b *BreakFinder) Next(spec FontSpec, text string, avail, capacity float32, lineEmpty bool) (seg Segment, rest string, ok bool) {
	w := b.Backend.TextExtent(spec, text).Width
	if avail < 0 || w <= avail {
		return Segment{Text: text, Width: w}, "", true
	}
	threshold := b.Threshold
	if threshold <= 0 {
		threshold = DefaultBreakThreshold
	}

	spaces := breakPoints(text, false)
	cut, cw, found := b.longestFit(spec, text, spaces, avail)
	if !found || cw < threshold*capacity {
		all := breakPoints(text, true)
		if c2, w2, f2 := b.longestFit(spec, text, all, avail); f2 && (!found || w2 > cw) {
			cut, cw, found = c2, w2, true
		}
	}
	if found {
		return Segment{Text: strings.TrimRight(text[:cut], " "), Width: cw}, strings.TrimLeft(text[cut:], " "), true
	}
	if !lineEmpty {
		return Segment{}, text, false
	}
	// forced overflow
	for _, cut := range breakPoints(text, true) {
		if head := strings.TrimRight(text[:cut], " "); head != "" {
			return Segment{Text: head, Width: b.Backend.TextExtent(spec, head).Width}, strings.TrimLeft(text[cut:], " "), true
		}
	}
	return Segment{Text: text, Width: w}, "", true
}

// longestFit tries cuts from the longest down and returns the first whose
// trimmed prefix fits.
func (b *BreakFinder) longestFit(spec FontSpec, text string, cuts []int, avail float32) (int, float32, bool) {
	for i := len(cuts) - 1; i >= 0; i-- {
		head := strings.TrimRight(text[:cuts[i]], " ")
		if head == "" {
			continue
		}
		if w := b.Backend.TextExtent(spec, head).Width; w <= avail {
			return cuts[i], w, true
		}
	}
	return 0, 0, false
}

// breakPoints lists byte offsets where a line may end: at each space and,
// when wide is set, after CJK runes and break punctuation. Offsets always
// fall on rune boundaries; the end of text is not included.
func breakPoints(text string, wide bool) []int {
	var out []int
	for i, r := range text {
		switch {
		case r == ' ':
			if i > 0 {
				out = append(out, i)
			}
		case wide && wideBreak(r):
			if end := i + utf8.RuneLen(r); end < len(text) {
				out = append(out, end)
			}
		}
	}
	return out
}

func wideBreak(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		strings.ContainsRune(wideBreakAfter, r)
}
