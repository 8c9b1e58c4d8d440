/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package subtitle holds the parsed form of a subtitle file: script metadata,
// the style table and the time-ordered dialogue store, plus the tokenizers
// that build them from normalized text.
package subtitle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/text/language"
)

// ErrNotSubtitle is returned when the input is too short, unreadable or
// yields no dialogue at all.
var ErrNotSubtitle = errors.New("not a subtitle")

// CapacityError reports that a bounded resource was exhausted. Required is
// the size that would have been needed so callers can retry with more room.
type CapacityError struct {
	Resource string
	Required int
	Limit    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s capacity exceeded: need %d, limit %d", e.Resource, e.Required, e.Limit)
}

// Format identifies the dialect a stream was read from.
type Format string

const (
	FormatSRT  Format = "srt"
	FormatASS  Format = "ass"
	FormatSSA  Format = "ssa"
	FormatVTT  Format = "vtt"
	FormatTTML Format = "ttml"
)

// TimedCaption reports whether the format is one of the plain caption
// dialects, as opposed to a markup script with styles and override tags.
func (f Format) TimedCaption() bool {
	switch f {
	case FormatSRT, FormatVTT, FormatTTML:
		return true
	}
	return false
}

// CollisionMode is the script-wide collision policy.
type CollisionMode uint8

const (
	CollisionsNormal CollisionMode = iota
	CollisionsReverse
)

func (c CollisionMode) String() string {
	if c == CollisionsReverse {
		return "Reverse"
	}
	return "Normal"
}

// ScriptInfo is the header metadata of a stream.
type ScriptInfo struct {
	Title                 string
	ScriptType            string
	PlayResX, PlayResY    int
	WrapStyle             int
	Collisions            CollisionMode
	ScaledBorderAndShadow bool
	Language              string
}

// StyleID is a stable hash of a style name. The default style is always 0.
type StyleID uint64

const DefaultStyleID StyleID = 0

// DefaultStyleName is the name scripts use for the fallback style.
const DefaultStyleName = "Default"

// HashStyleName maps a style name to its StyleID. Matching ignores case,
// surrounding spaces and the leading '*' some editors write.
func HashStyleName(name string) StyleID {
	n := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "*")))
	if n == "" || n == "default" {
		return DefaultStyleID
	}
	sum := blake3.Sum256([]byte(n))
	id := StyleID(binary.LittleEndian.Uint64(sum[:8]))
	if id == DefaultStyleID {
		id = 1
	}
	return id
}

// Style is one named style record. Colours are non-premultiplied with A as
// opacity (255 opaque); scripts store transparency, which the parser inverts.
type Style struct {
	ID        StyleID
	Name      string
	FontName  string
	FontSize  float64
	Primary   color.NRGBA
	Secondary color.NRGBA
	Outline   color.NRGBA
	Back      color.NRGBA
	Weight    int
	Italic    bool
	Underline bool
	StrikeOut bool
	ScaleX    float64
	ScaleY    float64
	Spacing   float64
	Angle     float64
	// BorderStyle 1 draws outline and shadow, 3 an opaque box.
	BorderStyle  int
	OutlineWidth float64
	ShadowDepth  float64
	// Alignment uses numpad layout: 1..3 bottom, 4..6 middle, 7..9 top.
	Alignment int
	MarginL   int
	MarginR   int
	MarginV   int
	Encoding  int
}

// Bold reports whether the weight is bold or heavier.
func (s Style) Bold() bool { return s.Weight >= 600 }

// DefaultStyle returns the style used when a stream declares none.
func DefaultStyle() Style {
	return Style{
		ID:           DefaultStyleID,
		Name:         DefaultStyleName,
		FontName:     "Arial",
		FontSize:     18,
		Primary:      color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Secondary:    color.NRGBA{R: 255, G: 0, B: 0, A: 255},
		Outline:      color.NRGBA{A: 255},
		Back:         color.NRGBA{A: 128},
		Weight:       400,
		ScaleX:       100,
		ScaleY:       100,
		BorderStyle:  1,
		OutlineWidth: 2,
		ShadowDepth:  2,
		Alignment:    2,
		MarginL:      10,
		MarginR:      10,
		MarginV:      10,
		Encoding:     1,
	}
}

// StyleTable is a bounded set of styles keyed by StyleID. It always contains
// a default record, which Lookup returns for unknown ids.
type StyleTable struct {
	styles []Style
	index  map[StyleID]int
	limit  int
}

// NewStyleTable creates a table holding at most limit styles (limit <= 0
// means unbounded) seeded with def as the default style.
func NewStyleTable(limit int, def Style) *StyleTable {
	def.ID = DefaultStyleID
	if def.Name == "" {
		def.Name = DefaultStyleName
	}
	return &StyleTable{
		styles: []Style{def},
		index:  map[StyleID]int{DefaultStyleID: 0},
		limit:  limit,
	}
}

// Add inserts s, replacing a style with the same name. Exceeding the limit
// returns a *CapacityError.
func (t *StyleTable) Add(s Style) error {
	s.ID = HashStyleName(s.Name)
	if i, ok := t.index[s.ID]; ok {
		t.styles[i] = s
		return nil
	}
	if t.limit > 0 && len(t.styles) >= t.limit {
		return &CapacityError{Resource: "styles", Required: len(t.styles) + 1, Limit: t.limit}
	}
	t.index[s.ID] = len(t.styles)
	t.styles = append(t.styles, s)
	return nil
}

func (t *StyleTable) Lookup(id StyleID) Style {
	if i, ok := t.index[id]; ok {
		return t.styles[i]
	}
	return t.styles[0]
}

func (t *StyleTable) LookupName(name string) (Style, bool) {
	i, ok := t.index[HashStyleName(name)]
	if !ok {
		return t.styles[0], false
	}
	return t.styles[i], true
}

func (t *StyleTable) Default() Style { return t.styles[0] }

func (t *StyleTable) Len() int { return len(t.styles) }

// All returns the styles in insertion order, default first.
func (t *StyleTable) All() []Style {
	out := make([]Style, len(t.styles))
	copy(out, t.styles)
	return out
}

// Dialogue is one timed subtitle event. Times are milliseconds; Start < End.
// Text is the raw event text, still carrying override tags.
type Dialogue struct {
	ID        int
	Start     int64
	End       int64
	Layer     int
	Style     StyleID
	StyleName string
	Actor     string
	MarginL   int
	MarginR   int
	MarginV   int
	Effect    string
	Text      string
	// SourceLine is the 1-based line the record started on, 0 when unknown.
	SourceLine int
}

// Duration returns End-Start.
func (d Dialogue) Duration() int64 { return d.End - d.Start }

// Stream is a fully parsed subtitle file.
type Stream struct {
	Name     string
	Format   Format
	Language language.Tag
	Codepage string
	Info     ScriptInfo
	Styles   *StyleTable
	// EventFormat is the declared field order of event records, lower-cased.
	EventFormat []string
	Dialogues   []Dialogue
	// Buffer is the normalized text the stream was parsed from.
	Buffer string
}

// sortDialogues orders by (Start, End), stable for equal keys, and assigns IDs.
func sortDialogues(ds []Dialogue) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Start != ds[j].Start {
			return ds[i].Start < ds[j].Start
		}
		return ds[i].End < ds[j].End
	})
	for i := range ds {
		ds[i].ID = i
	}
}
