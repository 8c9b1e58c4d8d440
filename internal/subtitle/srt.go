/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package subtitle

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// timingLine matches "HH:MM:SS,mmm --> HH:MM:SS,mmm" with '.', ',' or ':' as
// the fraction separator and 1..3 fraction digits. Trailing positioning
// hints after the end time are ignored.
var timingLine = regexp.MustCompile(`^\s*(\d+):(\d{1,2}):(\d{1,2})[,.:](\d{1,3})\s*-->\s*(\d+):(\d{1,2}):(\d{1,2})[,.:](\d{1,3})`)

type lineSpan struct{ start, end int }

// splitLines indexes buf by line without copying; end excludes the newline.
func splitLines(buf string) []lineSpan {
	var out []lineSpan
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] == '\n' {
			out = append(out, lineSpan{start, i})
			start = i + 1
		}
	}
	if start < len(buf) {
		out = append(out, lineSpan{start, len(buf)})
	}
	return out
}

// timedCaptionParser tokenizes SubRip style records. Dialogue text is a
// slice of buf.
type timedCaptionParser struct {
	buf      string
	lines    []lineSpan
	maxLines int
	log      *slog.Logger
}

func (p *timedCaptionParser) line(i int) string {
	l := p.lines[i]
	return p.buf[l.start:l.end]
}

func (p *timedCaptionParser) blank(i int) bool { return strings.TrimSpace(p.line(i)) == "" }

func isCounter(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// boundary reports whether a record header starts at line i, and the index
// of the timing line. A counter followed by any "-->" line counts as a
// boundary even when the times are malformed, so the broken record does not
// leak into the previous one.
func (p *timedCaptionParser) boundary(i int) (timing int, ok bool) {
	if i >= len(p.lines) {
		return 0, false
	}
	if isCounter(p.line(i)) && i+1 < len(p.lines) && strings.Contains(p.line(i+1), "-->") {
		return i + 1, true
	}
	if timingLine.MatchString(p.line(i)) {
		return i, true
	}
	return 0, false
}

func (p *timedCaptionParser) parse() []Dialogue {
	var out []Dialogue
	i := 0
	for i < len(p.lines) {
		ti, ok := p.boundary(i)
		if !ok {
			i++
			continue
		}
		start, end, ok := parseTiming(p.line(ti))
		if !ok {
			p.log.Debug("malformed timing, resyncing", slog.Int("line", ti+1))
			i++
			continue
		}
		first := ti + 1
		j := first
		for j < len(p.lines) {
			if _, ok := p.boundary(j); ok {
				break
			}
			j++
		}
		next := j
		for first < j && p.blank(first) {
			first++
		}
		if p.maxLines > 0 && j-first > p.maxLines {
			p.log.Debug("caption truncated", slog.Int("line", i+1), slog.Int("lines", j-first))
			j = first + p.maxLines
		}
		for j > first && p.blank(j-1) {
			j--
		}
		switch {
		case start >= end:
			p.log.Debug("dropping caption with empty time range", slog.Int("line", i+1))
		case j == first:
			p.log.Debug("dropping caption without text", slog.Int("line", i+1))
		default:
			out = append(out, Dialogue{
				Start:      start,
				End:        end,
				StyleName:  DefaultStyleName,
				Text:       p.buf[p.lines[first].start:p.lines[j-1].end],
				SourceLine: i + 1,
			})
		}
		i = next
	}
	return out
}

func parseTiming(s string) (start, end int64, ok bool) {
	m := timingLine.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	start, ok = clockMillis(m[1], m[2], m[3], m[4])
	if !ok {
		return 0, 0, false
	}
	end, ok = clockMillis(m[5], m[6], m[7], m[8])
	return start, end, ok
}

// clockMillis converts clock fields to milliseconds. The fraction is a
// decimal fraction of a second, so "5" is 500 ms and "05" is 50 ms.
func clockMillis(h, m, s, frac string) (int64, bool) {
	hh, err1 := strconv.ParseInt(h, 10, 64)
	mm, err2 := strconv.ParseInt(m, 10, 64)
	ss, err3 := strconv.ParseInt(s, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || mm > 59 || ss > 59 {
		return 0, false
	}
	var ms int64
	if frac != "" {
		for len(frac) < 3 {
			frac += "0"
		}
		v, err := strconv.ParseInt(frac[:3], 10, 64)
		if err != nil {
			return 0, false
		}
		ms = v
	}
	return ((hh*60+mm)*60+ss)*1000 + ms, true
}
