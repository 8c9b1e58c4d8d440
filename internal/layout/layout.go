/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout turns interpreted dialogues into positioned single-line
// rectangles on the render canvas.
package layout

import (
	"log/slog"
	"strings"

	"gosubrender/internal/anim"
	"gosubrender/internal/collide"
	applog "gosubrender/internal/log"
	"gosubrender/internal/override"
	"gosubrender/internal/subtitle"
	"gosubrender/internal/textlayout"
	"gosubrender/internal/vector"
)

// Canvas maps the script's virtual resolution onto render pixels.
type Canvas struct {
	PlayResX, PlayResY float32
	Width, Height      float32
}

func (c Canvas) ScaleX() float32 {
	if c.PlayResX <= 0 {
		return 1
	}
	return c.Width / c.PlayResX
}

func (c Canvas) ScaleY() float32 {
	if c.PlayResY <= 0 {
		return 1
	}
	return c.Height / c.PlayResY
}

// Options tunes font selection and line breaking.
type Options struct {
	BreakThreshold float32
	DefaultFamily  string
	// FallbackFamily replaces faces the backend does not have.
	FallbackFamily string
	// Fallbacks picks a replacement by script encoding id first.
	Fallbacks map[int]string
}

// Engine lays out dialogues of one stream. It is not safe for concurrent
// use; the publisher serialises calls.
type Engine struct {
	Backend textlayout.Backend
	Canvas  Canvas
	Opts    Options
	Log     *slog.Logger

	breaks textlayout.BreakFinder
	warned map[string]bool
}

func New(backend textlayout.Backend, canvas Canvas, opts Options) *Engine {
	if opts.BreakThreshold <= 0 {
		opts.BreakThreshold = textlayout.DefaultBreakThreshold
	}
	return &Engine{
		Backend: backend,
		Canvas:  canvas,
		Opts:    opts,
		Log:     applog.WithComponent("layout"),
		breaks:  textlayout.BreakFinder{Backend: backend, Threshold: opts.BreakThreshold},
		warned:  map[string]bool{},
	}
}

// Input is one interpreted dialogue.
type Input struct {
	Dialogue subtitle.Dialogue
	Style    subtitle.Style
	Result   *override.Result
	// WrapStyle is the script default, used when the text has no \q.
	WrapStyle int
}

type segment struct {
	para    int
	text    string
	spec    textlayout.FontSpec
	desc    *override.Descriptor
	ext     textlayout.Extent
	xOffset float32
}

type line struct {
	segs    []segment
	width   float32
	ascent  float32
	descent float32
	soft    bool
}

func (l *line) add(s segment) {
	s.xOffset = l.width
	l.segs = append(l.segs, s)
	l.width += s.ext.Width
	l.ascent = max(l.ascent, s.ext.Ascent)
	l.descent = max(l.descent, s.ext.Descent)
}

func (l *line) height() float32 { return l.ascent + l.descent }

// Layout breaks the paragraphs of in into lines and places the block by
// alignment and margins, or at \pos/\move.
func (e *Engine) Layout(in Input) Laid {
	res := in.Result
	d := in.Dialogue
	sx, sy := e.Canvas.ScaleX(), e.Canvas.ScaleY()

	wrap := in.WrapStyle
	if res.WrapStyle >= 0 {
		wrap = res.WrapStyle
	}
	align := in.Style.Alignment
	if res.Alignment > 0 {
		align = res.Alignment
	}
	if align < 1 || align > 9 {
		align = 2
	}
	ml, mr, mv := margin(d.MarginL, in.Style.MarginL), margin(d.MarginR, in.Style.MarginR), margin(d.MarginV, in.Style.MarginV)
	left, right, vert := float32(ml)*sx, float32(mr)*sx, float32(mv)*sy

	capacity := e.Canvas.Width - left - right
	if capacity <= 0 {
		capacity = e.Canvas.Width
	}
	lines := e.breakLines(res, capacity, wrap == 2)
	if len(lines) == 0 {
		return Laid{Box: collide.DialogueRect{ID: d.ID, Start: d.Start, End: d.End, Layer: d.Layer, Alignment: align, Fixed: res.Flags.Fixed()}}
	}

	var blockH float32
	for _, l := range lines {
		blockH += l.height()
	}

	col, row := (align-1)%3, (align-1)/3
	var anchor vector.Pt
	positioned := false
	switch {
	case res.Pos != nil:
		anchor = vector.Pt{X: res.Pos.X * sx, Y: res.Pos.Y * sy}
		positioned = true
	case res.Move != nil:
		anchor = vector.Pt{X: float32(res.Move.X1) * sx, Y: float32(res.Move.Y1) * sy}
		positioned = true
	}

	var top float32
	if positioned {
		switch row {
		case 0:
			top = anchor.Y - blockH
		case 1:
			top = anchor.Y - blockH/2
		default:
			top = anchor.Y
		}
	} else {
		switch row {
		case 0:
			top = e.Canvas.Height - vert - blockH
		case 1:
			top = (e.Canvas.Height - blockH) / 2
		default:
			top = vert
		}
		switch col {
		case 0:
			anchor.X = left
		case 1:
			anchor.X = left + (e.Canvas.Width-left-right)/2
		default:
			anchor.X = e.Canvas.Width - right
		}
		anchor.Y = top + blockH*float32(2-row)/2
	}
	origin := anchor
	if res.Origin != nil {
		origin = vector.Pt{X: res.Origin.X * sx, Y: res.Origin.Y * sy}
	}

	var moveX, moveY anim.Keyframe
	if m := res.Move; m != nil {
		moveX = anim.Keyframe{Start: m.T1, End: m.T2, Value: float64(float32(m.X2-m.X1) * sx), Accel: 1}
		moveY = anim.Keyframe{Start: m.T1, End: m.T2, Value: float64(float32(m.Y2-m.Y1) * sy), Accel: 1}
	}

	laid := Laid{Rects: make([]SubtitleRect, 0, len(lines))}
	y := top
	for li, l := range lines {
		var x float32
		switch col {
		case 0:
			x = anchor.X
		case 1:
			x = anchor.X - l.width/2
		default:
			x = anchor.X - l.width
		}
		for _, s := range l.segs {
			r := e.rect(s, d)
			r.Line = li
			r.Alignment = align
			r.Box = vector.R(x+s.xOffset, y+l.ascent-s.ext.Ascent, s.ext.Width, s.ext.Height())
			r.Baseline = s.ext.Ascent
			r.Origin = origin
			r.Fade = res.Fade
			r.Fixed = res.Flags.Fixed()
			if res.Move != nil {
				_ = r.Anim.Add(anim.MoveX, moveX)
				_ = r.Anim.Add(anim.MoveY, moveY)
			}
			laid.Rects = append(laid.Rects, r)
		}
		y += l.height()
	}
	assignKaraoke(laid.Rects)

	box := laid.Rects[0].Box
	for _, r := range laid.Rects[1:] {
		box = box.Union(r.Box)
	}
	laid.Box = collide.DialogueRect{
		ID:        d.ID,
		Box:       box,
		Start:     d.Start,
		End:       d.End,
		Layer:     d.Layer,
		Alignment: align,
		Fixed:     res.Flags.Fixed(),
	}
	return laid
}

// breakLines cuts the paragraphs into lines no wider than capacity unless
// noWrap is set or a run has no usable break point.
func (e *Engine) breakLines(res *override.Result, capacity float32, noWrap bool) []line {
	var lines []line
	cur := &line{}
	newLine := func(soft bool) {
		lines = append(lines, *cur)
		cur = &line{soft: soft}
	}
	for pi := range res.Paragraphs {
		p := &res.Paragraphs[pi]
		spec := e.fontSpec(p.Desc)
		for j, piece := range strings.Split(p.Text, "\n") {
			if j > 0 {
				if len(cur.segs) == 0 {
					cur.ascent, cur.descent = e.emptyLine(spec)
				}
				newLine(false)
			}
			for piece != "" {
				if cur.soft && len(cur.segs) == 0 {
					piece = strings.TrimLeft(piece, " ")
					if piece == "" {
						break
					}
				}
				avail := max(capacity-cur.width, 0)
				if noWrap {
					avail = -1
				}
				seg, rest, ok := e.breaks.Next(spec, piece, avail, capacity, len(cur.segs) == 0)
				if !ok {
					newLine(true)
					continue
				}
				if seg.Text != "" {
					ext := e.Backend.TextExtent(spec, seg.Text)
					cur.add(segment{para: pi, text: seg.Text, spec: spec, desc: &p.Desc, ext: ext})
				}
				piece = rest
				if rest != "" {
					newLine(true)
				}
			}
		}
	}
	if len(cur.segs) > 0 {
		lines = append(lines, *cur)
	}
	// trailing breaks produce no empty lines at the bottom
	for len(lines) > 0 && len(lines[len(lines)-1].segs) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (e *Engine) emptyLine(spec textlayout.FontSpec) (float32, float32) {
	ext := e.Backend.TextExtent(spec, "")
	return ext.Ascent, ext.Descent
}

// fontSpec converts a descriptor to a display font request, substituting a
// fallback family when the backend lacks the requested one.
func (e *Engine) fontSpec(d override.Descriptor) textlayout.FontSpec {
	sx, sy := e.Canvas.ScaleX(), e.Canvas.ScaleY()
	spec := textlayout.FontSpec{
		Family:   d.FontName,
		SizePx:   float32(d.Size) * sy,
		Weight:   d.Weight,
		Italic:   d.Italic,
		ScaleX:   float32(d.ScaleX),
		ScaleY:   float32(d.ScaleY),
		Spacing:  float32(d.Spacing) * sx,
		Encoding: d.Encoding,
	}
	if spec.Family == "" {
		spec.Family = e.Opts.DefaultFamily
	}
	if e.Backend.Has(spec) {
		return spec
	}
	want := spec.Family
	fb := e.Opts.Fallbacks[d.Encoding]
	if fb == "" {
		fb = e.Opts.FallbackFamily
	}
	if fb != "" {
		spec.Family = fb
	}
	if !e.warned[want] {
		e.warned[want] = true
		e.Log.Warn("font unavailable, using fallback",
			slog.String("family", want), slog.String("fallback", spec.Family), slog.Int("encoding", d.Encoding))
	}
	return spec
}

func (e *Engine) rect(s segment, d subtitle.Dialogue) SubtitleRect {
	desc := s.desc
	sy := e.Canvas.ScaleY()
	r := SubtitleRect{
		Text:         s.text,
		Font:         s.spec,
		FontSize:     desc.Size,
		Dialogue:     d.ID,
		Paragraph:    s.para,
		Layer:        d.Layer,
		Start:        d.Start,
		End:          d.End,
		Primary:      desc.Primary,
		Secondary:    desc.Secondary,
		Outline:      desc.Outline,
		Back:         desc.Back,
		OutlineWidth: float32(desc.OutlineWidth) * sy,
		ShadowDepth:  float32(desc.ShadowDepth) * sy,
		BorderStyle:  desc.BorderStyle,
		Underline:    desc.Underline,
		StrikeOut:    desc.StrikeOut,
		ScaleX:       desc.ScaleX,
		ScaleY:       desc.ScaleY,
		RotX:         desc.RotX,
		RotY:         desc.RotY,
		RotZ:         desc.RotZ,
		Anim:         desc.Anim,
	}
	if k := desc.Karaoke; k.Active() {
		r.Karaoke = anim.Window{Mode: k.Mode, In: k.Start, Out: k.Start + k.Duration}
	}
	return r
}

// assignKaraoke splits each karaoke paragraph's window across its rects in
// proportion to their widths.
func assignKaraoke(rects []SubtitleRect) {
	byPara := map[int][]int{}
	var order []int
	for i, r := range rects {
		if r.Karaoke.Mode == anim.KaraokeNone {
			continue
		}
		if _, ok := byPara[r.Paragraph]; !ok {
			order = append(order, r.Paragraph)
		}
		byPara[r.Paragraph] = append(byPara[r.Paragraph], i)
	}
	for _, p := range order {
		idx := byPara[p]
		first := rects[idx[0]].Karaoke
		k := anim.Karaoke{Mode: first.Mode, Start: first.In, Duration: first.Out - first.In}
		widths := make([]float32, len(idx))
		for j, i := range idx {
			widths[j] = rects[i].Box.W
		}
		for j, w := range anim.PartitionKaraoke(widths, k) {
			rects[idx[j]].Karaoke = w
		}
	}
}

func margin(dialogue, style int) int {
	if dialogue > 0 {
		return dialogue
	}
	return style
}
