/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package subtitle

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"strconv"
	"strings"
)

var (
	defaultStyleFormatV4Plus = []string{
		"name", "fontname", "fontsize", "primarycolour", "secondarycolour", "outlinecolour", "backcolour",
		"bold", "italic", "underline", "strikeout", "scalex", "scaley", "spacing", "angle",
		"borderstyle", "outline", "shadow", "alignment", "marginl", "marginr", "marginv", "encoding",
	}
	defaultStyleFormatV4 = []string{
		"name", "fontname", "fontsize", "primarycolour", "secondarycolour", "tertiarycolour", "backcolour",
		"bold", "italic", "borderstyle", "outline", "shadow", "alignment", "marginl", "marginr", "marginv",
		"alphalevel", "encoding",
	}
	// CanonicalEventFormat is used when a script declares fewer than ten
	// event fields.
	CanonicalEventFormat = []string{
		"layer", "start", "end", "style", "name", "marginl", "marginr", "marginv", "effect", "text",
	}
	// blockEventFormat is the field order of event payloads carried inside a
	// media container, which drop the times and prepend a read order.
	blockEventFormat = []string{
		"readorder", "layer", "style", "name", "marginl", "marginr", "marginv", "effect", "text",
	}
)

// legacyAlignment maps SSA v4 alignment values to numpad positions.
var legacyAlignment = map[int]int{1: 1, 2: 2, 3: 3, 5: 7, 6: 8, 7: 9, 9: 4, 10: 5, 11: 6}

// LegacyToNumpad converts an SSA alignment value; unknown values give 2.
func LegacyToNumpad(a int) int {
	if n, ok := legacyAlignment[a]; ok {
		return n
	}
	return 2
}

var errMalformedEvent = errors.New("malformed event")

type markupParser struct {
	buf          string
	styleLimit   int
	defaultStyle Style
	log          *slog.Logger

	info        ScriptInfo
	styles      *StyleTable
	styleFormat []string
	eventFormat []string
	dialogues   []Dialogue
	legacy      bool
	sawStyles   bool
	sawEvents   bool
}

func (p *markupParser) parse() error {
	p.styles = NewStyleTable(p.styleLimit, p.defaultStyle)
	p.eventFormat = CanonicalEventFormat
	section := ""
	for n, ln := range splitLines(p.buf) {
		line := strings.TrimSpace(p.buf[ln.start:ln.end])
		if line == "" || line[0] == ';' || strings.HasPrefix(line, "!:") {
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			switch section {
			case "v4+ styles", "v4 styles+":
				p.sawStyles = true
				p.styleFormat = defaultStyleFormatV4Plus
			case "v4 styles":
				p.sawStyles = true
				p.legacy = true
				p.styleFormat = defaultStyleFormatV4
			case "events":
				p.sawEvents = true
			}
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch section {
		case "script info":
			p.scriptInfo(key, val)
		case "v4+ styles", "v4 styles+", "v4 styles":
			if err := p.styleLine(key, val, n+1); err != nil {
				return err
			}
		case "events":
			p.eventLine(key, ln, n+1)
		}
	}
	if !p.sawStyles && !p.sawEvents {
		return ErrNotSubtitle
	}
	p.info.PlayResX, p.info.PlayResY = derivePlayRes(p.info.PlayResX, p.info.PlayResY)
	return nil
}

func (p *markupParser) scriptInfo(key, val string) {
	switch strings.ToLower(key) {
	case "title":
		p.info.Title = val
	case "scripttype":
		p.info.ScriptType = val
		if strings.EqualFold(val, "v4.00") {
			p.legacy = true
		}
	case "playresx":
		p.info.PlayResX = atoi(val)
	case "playresy":
		p.info.PlayResY = atoi(val)
	case "wrapstyle":
		if w := atoi(val); w >= 0 && w <= 3 {
			p.info.WrapStyle = w
		}
	case "collisions":
		if strings.EqualFold(val, "reverse") {
			p.info.Collisions = CollisionsReverse
		} else {
			p.info.Collisions = CollisionsNormal
		}
	case "scaledborderandshadow":
		p.info.ScaledBorderAndShadow = strings.EqualFold(val, "yes")
	case "language":
		p.info.Language = val
	}
}

func (p *markupParser) styleLine(key, val string, lineNo int) error {
	switch strings.ToLower(key) {
	case "format":
		p.styleFormat = splitFormat(val)
	case "style":
		st, ok := decodeStyle(p.styleFormat, val, p.defaultStyle, p.legacy)
		if !ok {
			p.log.Debug("dropping malformed style", slog.Int("line", lineNo))
			return nil
		}
		if err := p.styles.Add(st); err != nil {
			return err
		}
	}
	return nil
}

func (p *markupParser) eventLine(key string, ln lineSpan, lineNo int) {
	switch strings.ToLower(key) {
	case "format":
		_, val, _ := strings.Cut(p.buf[ln.start:ln.end], ":")
		if f := splitFormat(val); len(f) >= len(CanonicalEventFormat) {
			p.eventFormat = f
		}
	case "dialogue":
		raw := p.buf[ln.start:ln.end]
		_, val, _ := strings.Cut(raw, ":")
		d, err := decodeEvent(p.eventFormat, strings.TrimLeft(val, " "))
		if err != nil || d.Start >= d.End {
			p.log.Debug("dropping malformed dialogue", slog.Int("line", lineNo))
			return
		}
		d.Style = HashStyleName(d.StyleName)
		d.SourceLine = lineNo
		p.dialogues = append(p.dialogues, d)
	}
}

func splitFormat(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, f := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(f)))
	}
	return out
}

// decodeStyle reads one style record positionally against format. Fields the
// format does not name keep the values of base.
func decodeStyle(format []string, val string, base Style, legacy bool) (Style, bool) {
	fields := strings.Split(val, ",")
	if len(fields) < len(format) {
		return Style{}, false
	}
	st := base
	st.Name = ""
	for i, name := range format {
		f := strings.TrimSpace(fields[i])
		switch name {
		case "name":
			st.Name = strings.TrimPrefix(f, "*")
		case "fontname":
			st.FontName = strings.TrimPrefix(f, "@")
		case "fontsize":
			st.FontSize = atof(f, st.FontSize)
		case "primarycolour":
			st.Primary = colorOr(f, st.Primary)
		case "secondarycolour":
			st.Secondary = colorOr(f, st.Secondary)
		case "outlinecolour", "tertiarycolour":
			st.Outline = colorOr(f, st.Outline)
		case "backcolour":
			st.Back = colorOr(f, st.Back)
		case "bold":
			st.Weight = weightOf(f)
		case "italic":
			st.Italic = flag(f)
		case "underline":
			st.Underline = flag(f)
		case "strikeout":
			st.StrikeOut = flag(f)
		case "scalex":
			st.ScaleX = atof(f, 100)
		case "scaley":
			st.ScaleY = atof(f, 100)
		case "spacing":
			st.Spacing = atof(f, 0)
		case "angle":
			st.Angle = atof(f, 0)
		case "borderstyle":
			st.BorderStyle = atoi(f)
		case "outline":
			st.OutlineWidth = atof(f, st.OutlineWidth)
		case "shadow":
			st.ShadowDepth = atof(f, st.ShadowDepth)
		case "alignment":
			a := atoi(f)
			if legacy {
				a = LegacyToNumpad(a)
			}
			if a < 1 || a > 9 {
				a = 2
			}
			st.Alignment = a
		case "marginl":
			st.MarginL = atoi(f)
		case "marginr":
			st.MarginR = atoi(f)
		case "marginv":
			st.MarginV = atoi(f)
		case "encoding":
			st.Encoding = atoi(f)
		}
	}
	if st.Name == "" {
		return Style{}, false
	}
	return st, true
}

// decodeEvent splits val into len(format) fields; the last field keeps any
// further commas verbatim.
func decodeEvent(format []string, val string) (Dialogue, error) {
	fields := strings.SplitN(val, ",", len(format))
	if len(fields) < len(format) {
		return Dialogue{}, fmt.Errorf("%w: %d of %d fields", errMalformedEvent, len(fields), len(format))
	}
	d := Dialogue{StyleName: DefaultStyleName}
	for i, name := range format {
		f := fields[i]
		if name != "text" {
			f = strings.TrimSpace(f)
		}
		switch name {
		case "layer":
			d.Layer = atoi(f)
		case "start":
			t, ok := parseScriptTime(f)
			if !ok {
				return Dialogue{}, fmt.Errorf("%w: start %q", errMalformedEvent, f)
			}
			d.Start = t
		case "end":
			t, ok := parseScriptTime(f)
			if !ok {
				return Dialogue{}, fmt.Errorf("%w: end %q", errMalformedEvent, f)
			}
			d.End = t
		case "style":
			if f != "" {
				d.StyleName = strings.TrimPrefix(f, "*")
			}
		case "name", "actor":
			d.Actor = f
		case "marginl":
			d.MarginL = atoi(f)
		case "marginr":
			d.MarginR = atoi(f)
		case "marginv":
			d.MarginV = atoi(f)
		case "effect":
			d.Effect = f
		case "text":
			d.Text = f
		}
	}
	return d, nil
}

// ParseEventLine decodes a single event. A line starting with "Dialogue:" is
// read against format (CanonicalEventFormat when nil) and carries its own
// times; anything else is treated as a container block payload without
// times, leaving Start and End zero.
func ParseEventLine(line string, format []string) (Dialogue, error) {
	line = strings.TrimRight(line, "\r\n")
	if key, val, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(key), "dialogue") {
		if len(format) < len(CanonicalEventFormat) {
			format = CanonicalEventFormat
		}
		d, err := decodeEvent(format, strings.TrimLeft(val, " "))
		if err != nil {
			return Dialogue{}, err
		}
		d.Style = HashStyleName(d.StyleName)
		return d, nil
	}
	d, err := decodeEvent(blockEventFormat, line)
	if err != nil {
		return Dialogue{}, err
	}
	d.Style = HashStyleName(d.StyleName)
	return d, nil
}

// parseScriptTime reads "H:MM:SS.cc".
func parseScriptTime(s string) (int64, bool) {
	h, rest, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	m, rest, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, false
	}
	sec, frac, _ := strings.Cut(rest, ".")
	if len(frac) > 3 {
		frac = frac[:3]
	}
	return clockMillis(strings.TrimSpace(h), m, sec, frac)
}

// derivePlayRes fills in a missing script resolution.
func derivePlayRes(x, y int) (int, int) {
	switch {
	case x <= 0 && y <= 0:
		return 384, 288
	case y <= 0:
		if x == 1280 {
			return x, 1024
		}
		return x, x * 3 / 4
	case x <= 0:
		if y == 1024 {
			return 1280, y
		}
		return y * 4 / 3, y
	}
	return x, y
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}

func atof(s string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

func flag(s string) bool { return atoi(s) != 0 }

func weightOf(s string) int {
	switch n := atoi(s); {
	case n == 0:
		return 400
	case n == 1 || n == -1:
		return 700
	case n > 1:
		return n
	}
	return 400
}

func colorOr(s string, def color.NRGBA) color.NRGBA {
	if c, ok := ParseColor(s); ok {
		return c
	}
	return def
}
