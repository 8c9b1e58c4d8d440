/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package override interprets the inline markup of a dialogue. It walks the
// text once, applying override commands to a running style descriptor, and
// cuts the visible text into paragraphs: maximal runs that share one
// descriptor.
package override

import (
	"image/color"
	"log/slog"
	"strings"

	"gosubrender/internal/anim"
	applog "gosubrender/internal/log"
	"gosubrender/internal/subtitle"
	"gosubrender/internal/vector"
)

// Descriptor is the resolved style of a run of text. It is a comparable
// value; two runs belong to the same paragraph exactly when their
// descriptors are ==.
type Descriptor struct {
	FontName     string
	Size         float64
	Weight       int
	Italic       bool
	Underline    bool
	StrikeOut    bool
	ScaleX       float64
	ScaleY       float64
	Spacing      float64
	RotX         float64
	RotY         float64
	RotZ         float64
	Encoding     int
	Primary      color.NRGBA
	Secondary    color.NRGBA
	Outline      color.NRGBA
	Back         color.NRGBA
	OutlineWidth float64
	ShadowDepth  float64
	BorderStyle  int
	Karaoke      anim.Karaoke
	Anim         anim.Set
}

// FromStyle returns the descriptor a dialogue starts with.
func FromStyle(s subtitle.Style) Descriptor {
	return Descriptor{
		FontName:     s.FontName,
		Size:         s.FontSize,
		Weight:       s.Weight,
		Italic:       s.Italic,
		Underline:    s.Underline,
		StrikeOut:    s.StrikeOut,
		ScaleX:       s.ScaleX,
		ScaleY:       s.ScaleY,
		Spacing:      s.Spacing,
		RotZ:         s.Angle,
		Encoding:     s.Encoding,
		Primary:      s.Primary,
		Secondary:    s.Secondary,
		Outline:      s.Outline,
		Back:         s.Back,
		OutlineWidth: s.OutlineWidth,
		ShadowDepth:  s.ShadowDepth,
		BorderStyle:  s.BorderStyle,
	}
}

// Paragraph is a run of visible text with a single descriptor. Hard line
// breaks appear as '\n' inside Text.
type Paragraph struct {
	Text string
	Desc Descriptor
}

// Move is a \move request in canvas units; T1 and T2 are relative to the
// dialogue start.
type Move struct {
	X1, Y1, X2, Y2 float64
	T1, T2         int64
}

// Flags records dialogue-wide overrides that pin a dialogue in place.
type Flags struct {
	Transform bool
	Move      bool
	Origin    bool
	Pos       bool
}

// Fixed reports whether collision handling must leave the dialogue alone.
func (f Flags) Fixed() bool { return f.Transform || f.Move || f.Origin || f.Pos }

// Result is the interpreted form of one dialogue.
type Result struct {
	Paragraphs []Paragraph
	// Alignment is the numpad alignment requested by \an or \a, 0 if none.
	Alignment int
	// WrapStyle is the \q override, -1 if none.
	WrapStyle int
	Pos       *vector.Pt
	Move      *Move
	Origin    *vector.Pt
	Fade      anim.Fade
	Flags     Flags
}

// Text joins the paragraph texts.
func (r *Result) Text() string {
	var b strings.Builder
	for _, p := range r.Paragraphs {
		b.WriteString(p.Text)
	}
	return b.String()
}

// StyleLookup resolves \r targets; *subtitle.StyleTable implements it.
type StyleLookup interface {
	LookupName(name string) (subtitle.Style, bool)
}

// Input is one dialogue to interpret.
type Input struct {
	Text    string
	Style   subtitle.Style
	Dialect Dialect
	// Duration of the dialogue in ms, used for open-ended \t, \move and \fad.
	Duration int64
	// WrapStyle is the script default (0..3).
	WrapStyle int
}

// Interpreter turns dialogue text into paragraphs.
type Interpreter struct {
	Styles StyleLookup
	Log    *slog.Logger
}

// New returns an Interpreter resolving \r against styles (may be nil).
func New(styles StyleLookup) *Interpreter {
	return &Interpreter{Styles: styles, Log: applog.WithComponent("override")}
}

// Interpret applies every override command of in.Text. The returned error is
// non-nil only for exhausted animation capacity; the result is still usable
// and holds the keyframes that fitted.
func (ip *Interpreter) Interpret(in Input) (*Result, error) {
	s := &state{
		ip:       ip,
		base:     in.Style,
		cur:      FromStyle(in.Style),
		duration: in.Duration,
		dialect:  in.Dialect,
		res:      &Result{WrapStyle: -1},
	}
	soft := in.WrapStyle == 2 || in.Dialect == TimedCaption
	if in.Dialect == Markup {
		if q, ok := leadingWrapStyle(in.Text); ok {
			soft = q == 2
		}
	}
	scan(in.Text, in.Dialect, soft, s)
	s.flush()
	return s.res, s.err
}

// leadingWrapStyle finds a \q override so \n can be classified before the
// scan reaches it.
func leadingWrapStyle(text string) (int, bool) {
	i := strings.Index(text, `\q`)
	if i < 0 || i+2 >= len(text) {
		return 0, false
	}
	switch c := text[i+2]; c {
	case '0', '1', '2', '3':
		return int(c - '0'), true
	}
	return 0, false
}

// state is the running interpretation of one dialogue.
type state struct {
	ip       *Interpreter
	base     subtitle.Style
	cur      Descriptor
	duration int64
	dialect  Dialect
	res      *Result
	err      error

	para     strings.Builder
	paraDesc Descriptor

	karaokeAt  int64
	karaokeSeq int
	alignSet   bool
	placed     bool
	originSet  bool
	fadeSet    bool

	htmlStack map[string][]Descriptor
}

func (s *state) text(t string) {
	if t == "" {
		return
	}
	if s.para.Len() > 0 && s.paraDesc != s.cur {
		s.flush()
	}
	if s.para.Len() == 0 {
		s.paraDesc = s.cur
	}
	s.para.WriteString(t)
}

func (s *state) flush() {
	if s.para.Len() == 0 {
		return
	}
	s.res.Paragraphs = append(s.res.Paragraphs, Paragraph{Text: s.para.String(), Desc: s.paraDesc})
	s.para.Reset()
}

func (s *state) block(body string) {
	for _, cmd := range splitCommands(body) {
		name, h := lookupCommand(cmd)
		if h == nil {
			continue
		}
		h(s, cmd[len(name):])
	}
}

func (s *state) html(raw string) bool {
	tag, ok := parseHTMLTag(raw)
	if !ok {
		return false
	}
	if s.htmlStack == nil {
		s.htmlStack = map[string][]Descriptor{}
	}
	if tag.closing {
		st := s.htmlStack[tag.name]
		if len(st) == 0 {
			return true
		}
		prev := st[len(st)-1]
		s.htmlStack[tag.name] = st[:len(st)-1]
		switch tag.name {
		case "b":
			s.cur.Weight = prev.Weight
		case "i":
			s.cur.Italic = prev.Italic
		case "u":
			s.cur.Underline = prev.Underline
		case "s":
			s.cur.StrikeOut = prev.StrikeOut
		case "font":
			s.cur.Primary = prev.Primary
			s.cur.FontName = prev.FontName
			s.cur.Size = prev.Size
		}
		return true
	}
	s.htmlStack[tag.name] = append(s.htmlStack[tag.name], s.cur)
	switch tag.name {
	case "b":
		s.cur.Weight = 700
	case "i":
		s.cur.Italic = true
	case "u":
		s.cur.Underline = true
	case "s":
		s.cur.StrikeOut = true
	case "font":
		if c, ok := parseWebColor(tag.attrs["color"]); ok {
			s.cur.Primary = subtitle.WithAlpha(c, s.cur.Primary.A)
		}
		if face := strings.TrimSpace(tag.attrs["face"]); face != "" {
			s.cur.FontName = face
		}
		if v, ok := leadingNumber(tag.attrs["size"]); ok && v > 0 {
			s.cur.Size = v
			s.cur.Anim.Clear(anim.Size)
		}
	}
	return true
}
