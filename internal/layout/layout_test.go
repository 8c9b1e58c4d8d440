/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"strings"
	"testing"

	"gosubrender/internal/anim"
	"gosubrender/internal/override"
	"gosubrender/internal/subtitle"
	"gosubrender/internal/textlayout"
)

// style13 renders at the basic face's native size: 7px per rune, 13px lines.
func style13() subtitle.Style {
	st := subtitle.DefaultStyle()
	st.FontSize = 13
	return st
}

func canvas(w, h float32) Canvas {
	return Canvas{PlayResX: w, PlayResY: h, Width: w, Height: h}
}

func layoutText(t *testing.T, e *Engine, text string) Laid {
	t.Helper()
	st := style13()
	res, err := override.New(nil).Interpret(override.Input{Text: text, Style: st, Duration: 2000})
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	d := subtitle.Dialogue{ID: 7, Start: 1000, End: 3000, Text: text}
	return e.Layout(Input{Dialogue: d, Style: st, Result: res})
}

func basicEngine(c Canvas) *Engine {
	return New(textlayout.NewFaceBackend(nil), c, Options{DefaultFamily: "Arial"})
}

func TestSingleLineBottomCenter(t *testing.T) {
	laid := layoutText(t, basicEngine(canvas(384, 288)), "Hello")
	if len(laid.Rects) != 1 {
		t.Fatalf("rects = %d", len(laid.Rects))
	}
	r := laid.Rects[0]
	if r.Box.X != 174.5 || r.Box.Y != 265 || r.Box.W != 35 || r.Box.H != 13 {
		t.Fatalf("box = %+v", r.Box)
	}
	if r.Baseline != 11 || r.Dialogue != 7 || r.Start != 1000 || r.Alignment != 2 {
		t.Fatalf("rect = %+v", r)
	}
	if laid.Box.Box != r.Box || laid.Box.Fixed {
		t.Fatalf("dialogue box = %+v", laid.Box)
	}
}

func TestWrappedLinesStayWithinCapacity(t *testing.T) {
	text := ""
	for i := 0; i < 20; i++ {
		text += "word "
	}
	laid := layoutText(t, basicEngine(canvas(384, 288)), text)
	if len(laid.Rects) < 2 {
		t.Fatalf("expected wrapping, got %d rects", len(laid.Rects))
	}
	for i, r := range laid.Rects {
		if r.Box.W > 364 {
			t.Fatalf("rect %d wider than line: %v", i, r.Box.W)
		}
		if r.Line != i {
			t.Fatalf("rect %d on line %d", i, r.Line)
		}
		if i > 0 && r.Box.Y != laid.Rects[i-1].Box.Y+13 {
			t.Fatalf("lines not stacked: %v after %v", r.Box.Y, laid.Rects[i-1].Box.Y)
		}
	}
	last := laid.Rects[len(laid.Rects)-1]
	if last.Box.Bottom() != 278 {
		t.Fatalf("block bottom = %v, want 278", last.Box.Bottom())
	}
}

func TestNoWrapStyle(t *testing.T) {
	text := `{\q2}`
	for i := 0; i < 20; i++ {
		text += "word "
	}
	laid := layoutText(t, basicEngine(canvas(384, 288)), text)
	if len(laid.Rects) != 1 {
		t.Fatalf("wrap style 2 must not wrap: %d rects", len(laid.Rects))
	}
}

func TestHardBreaksAndBlankLines(t *testing.T) {
	laid := layoutText(t, basicEngine(canvas(384, 288)), `A\N\NB\N`)
	if len(laid.Rects) != 2 {
		t.Fatalf("rects = %+v", laid.Rects)
	}
	if dy := laid.Rects[1].Box.Y - laid.Rects[0].Box.Y; dy != 26 {
		t.Fatalf("blank line gap = %v, want 26", dy)
	}
	if laid.Rects[1].Line != 2 {
		t.Fatalf("second rect line = %d", laid.Rects[1].Line)
	}
}

func TestOverflowAfterHardBreakKeepsLineNumbers(t *testing.T) {
	text := `x\N   ` + strings.Repeat("a", 60) + " bb"
	laid := layoutText(t, basicEngine(canvas(384, 288)), text)
	if len(laid.Rects) != 3 {
		t.Fatalf("rects = %+v", laid.Rects)
	}
	for i, r := range laid.Rects {
		if r.Line != i {
			t.Fatalf("rect %d (%q) on line %d", i, r.Text, r.Line)
		}
		if r.Box.H == 0 {
			t.Fatalf("rect %d has no height", i)
		}
	}
	if laid.Rects[2].Text != "bb" {
		t.Fatalf("last line = %q", laid.Rects[2].Text)
	}
}

func TestParagraphsShareLine(t *testing.T) {
	laid := layoutText(t, basicEngine(canvas(384, 288)), `{\b1}Bold{\b0} normal`)
	if len(laid.Rects) != 2 {
		t.Fatalf("rects = %d", len(laid.Rects))
	}
	a, b := laid.Rects[0], laid.Rects[1]
	if a.Box.Y != b.Box.Y || a.Box.Right() != b.Box.X || a.Paragraph != 0 || b.Paragraph != 1 {
		t.Fatalf("a=%+v b=%+v", a.Box, b.Box)
	}
	if a.Font.Weight != 700 || b.Font.Weight != 400 || a.Primary != b.Primary || a.Font.SizePx != b.Font.SizePx {
		t.Fatalf("fonts a=%+v b=%+v", a.Font, b.Font)
	}
}

func TestTopAlignmentUsesMargin(t *testing.T) {
	laid := layoutText(t, basicEngine(canvas(384, 288)), `{\an7}Hi`)
	r := laid.Rects[0]
	if r.Box.X != 10 || r.Box.Y != 10 || laid.Box.Alignment != 7 {
		t.Fatalf("box = %+v", r.Box)
	}
	laid = layoutText(t, basicEngine(canvas(384, 288)), `{\an6}Hi`)
	r = laid.Rects[0]
	if r.Box.Right() != 374 || r.Box.Y != 137.5 {
		t.Fatalf("middle right box = %+v", r.Box)
	}
}

func TestPositionAndMove(t *testing.T) {
	e := basicEngine(Canvas{PlayResX: 384, PlayResY: 288, Width: 768, Height: 576})
	laid := layoutText(t, e, `{\pos(100,50)\an7}Hi`)
	r := laid.Rects[0]
	if r.Box.X != 200 || r.Box.Y != 100 || !r.Fixed || !laid.Box.Fixed {
		t.Fatalf("pos rect = %+v", r)
	}
	if r.Origin.X != 200 || r.Origin.Y != 100 || r.Font.SizePx != 26 {
		t.Fatalf("origin = %+v size %v", r.Origin, r.Font.SizePx)
	}

	laid = layoutText(t, e, `{\move(10,20,110,220,0,1000)\an7\org(0,0)}Hi`)
	r = laid.Rects[0]
	if r.Box.X != 20 || r.Box.Y != 40 || r.Origin.X != 0 || r.Origin.Y != 0 {
		t.Fatalf("move rect = %+v", r)
	}
	kx := r.Anim.Track(anim.MoveX).Keys()
	ky := r.Anim.Track(anim.MoveY).Keys()
	if len(kx) != 1 || kx[0].Value != 200 || kx[0].End != 1000 || ky[0].Value != 400 {
		t.Fatalf("move keys x=%+v y=%+v", kx, ky)
	}
	if got := r.Anim.Eval(anim.MoveX, 500, 0); got != 100 {
		t.Fatalf("half-way x offset = %v", got)
	}
}

func TestKaraokeSplitAcrossLines(t *testing.T) {
	laid := layoutText(t, basicEngine(canvas(100, 100)), `{\k100}aaaaaaaa bbbbbbbb`)
	if len(laid.Rects) != 2 {
		t.Fatalf("rects = %+v", laid.Rects)
	}
	a, b := laid.Rects[0].Karaoke, laid.Rects[1].Karaoke
	if a.In != 0 || a.Out != 500 || b.In != 500 || b.Out != 1000 || a.Mode != anim.KaraokeSwitch {
		t.Fatalf("windows a=%+v b=%+v", a, b)
	}

	laid = layoutText(t, basicEngine(canvas(384, 288)), `{\kf50}ab{\kf100}cd`)
	a, b = laid.Rects[0].Karaoke, laid.Rects[1].Karaoke
	if a.In != 0 || a.Out != 500 || b.In != 500 || b.Out != 1500 {
		t.Fatalf("syllables a=%+v b=%+v", a, b)
	}
}

type onlyFamily struct {
	textlayout.Backend
	family string
}

func (o onlyFamily) Has(s textlayout.FontSpec) bool { return s.Family == o.family }

func TestFontFallback(t *testing.T) {
	b := onlyFamily{Backend: textlayout.NewFaceBackend(nil), family: "Fallback"}
	e := New(b, canvas(384, 288), Options{FallbackFamily: "Fallback", Fallbacks: map[int]string{128: "Gothic"}})
	laid := layoutText(t, e, "Hi")
	if got := laid.Rects[0].Font.Family; got != "Fallback" {
		t.Fatalf("family = %q", got)
	}
	laid = layoutText(t, e, `{\fe128}Hi`)
	if got := laid.Rects[0].Font.Family; got != "Gothic" {
		t.Fatalf("encoding fallback = %q", got)
	}
	if !e.warned["Arial"] {
		t.Fatalf("missing face must be logged once")
	}
}

func TestEmptyDialogue(t *testing.T) {
	laid := layoutText(t, basicEngine(canvas(384, 288)), `{\b1}`)
	if len(laid.Rects) != 0 || laid.Box.ID != 7 {
		t.Fatalf("laid = %+v", laid)
	}
}
