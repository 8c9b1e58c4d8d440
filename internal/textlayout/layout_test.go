/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"golang.org/x/image/font/gofont/goregular"

	"gosubrender/internal/fontdb"
)

func TestTextExtentScalesBasicFace(t *testing.T) {
	b := NewFaceBackend(nil)
	e := b.TextExtent(FontSpec{}, "abc")
	if e.Width != 21 || e.Ascent != 11 || e.Descent != 2 {
		t.Fatalf("native extent = %+v", e)
	}
	e = b.TextExtent(FontSpec{SizePx: 26, ScaleX: 50}, "abc")
	if e.Width != 21 || e.Height() != 26 {
		t.Fatalf("scaled extent = %+v", e)
	}
	e = b.TextExtent(FontSpec{Spacing: 2}, "abc")
	if e.Width != 27 {
		t.Fatalf("spaced width = %v, want 27", e.Width)
	}
	if !b.Has(FontSpec{Family: "anything"}) {
		t.Fatalf("basic provider serves every family")
	}
}

func TestRasterizeMatchesExtent(t *testing.T) {
	b := NewFaceBackend(BasicProvider{})
	for _, spec := range []FontSpec{{}, {SizePx: 26}, {SizePx: 20, Spacing: 3}} {
		m := b.Rasterize(spec, "Hi")
		e := b.TextExtent(spec, "Hi")
		if m.Rect.Dx() != ceil(e.Width) || m.Rect.Dy() != ceil(e.Height()) {
			t.Fatalf("%+v: mask %v, extent %+v", spec, m.Rect, e)
		}
		var ink int
		for _, p := range m.Pix {
			if p > 0 {
				ink++
			}
		}
		if ink == 0 {
			t.Fatalf("%+v: empty mask", spec)
		}
	}
	if m := b.Rasterize(FontSpec{}, ""); !m.Rect.Empty() {
		t.Fatalf("empty text mask = %v", m.Rect)
	}
}

func finder() *BreakFinder {
	return &BreakFinder{Backend: NewFaceBackend(nil), Threshold: DefaultBreakThreshold}
}

func TestBreakWholeRunFits(t *testing.T) {
	seg, rest, ok := finder().Next(FontSpec{}, "Hello world", 100, 100, true)
	if !ok || seg.Text != "Hello world" || rest != "" || seg.Width != 77 {
		t.Fatalf("seg=%+v rest=%q ok=%v", seg, rest, ok)
	}
	// negative avail means no wrapping at all
	seg, _, _ = finder().Next(FontSpec{}, "Hello world", -1, 10, true)
	if seg.Text != "Hello world" {
		t.Fatalf("unwrapped seg = %+v", seg)
	}
}

func TestBreakAtSpace(t *testing.T) {
	seg, rest, ok := finder().Next(FontSpec{}, "Hello world foo", 50, 50, true)
	if !ok || seg.Text != "Hello" || rest != "world foo" {
		t.Fatalf("seg=%+v rest=%q", seg, rest)
	}
}

func TestBreakWideClassWhenSpaceTooShort(t *testing.T) {
	seg, rest, ok := finder().Next(FontSpec{}, "ab cdefgh,ijklmn", 70, 70, true)
	if !ok || seg.Text != "ab cdefgh," || rest != "ijklmn" {
		t.Fatalf("seg=%+v rest=%q", seg, rest)
	}
}

func TestBreakCJKNeverSplitsRunes(t *testing.T) {
	text := "日本語のテキストです"
	seg, rest, ok := finder().Next(FontSpec{}, text, 35, 35, true)
	if !ok || seg.Text != "日本語のテ" || rest != "キストです" {
		t.Fatalf("seg=%+v rest=%q", seg, rest)
	}
	if !utf8.ValidString(seg.Text) || !utf8.ValidString(rest) {
		t.Fatalf("split inside a rune")
	}
}

func TestBreakWrapAndOverflow(t *testing.T) {
	_, rest, ok := finder().Next(FontSpec{}, "abcdefgh", 20, 100, false)
	if ok || rest != "abcdefgh" {
		t.Fatalf("expected wrap request, ok=%v rest=%q", ok, rest)
	}
	seg, rest, ok := finder().Next(FontSpec{}, "abcdefghij klm", 20, 20, true)
	if !ok || seg.Text != "abcdefghij" || rest != "klm" || seg.Width <= 20 {
		t.Fatalf("overflow seg=%+v rest=%q", seg, rest)
	}
	seg, rest, _ = finder().Next(FontSpec{}, "unbreakable", 20, 20, true)
	if seg.Text != "unbreakable" || rest != "" {
		t.Fatalf("unbreakable seg=%+v rest=%q", seg, rest)
	}
	seg, rest, _ = finder().Next(FontSpec{}, "   abcdefghij klm", 20, 20, true)
	if seg.Text != "   abcdefghij" || rest != "klm" {
		t.Fatalf("leading spaces seg=%+v rest=%q", seg, rest)
	}
	seg, rest, _ = finder().Next(FontSpec{}, "   unbreakable", 20, 20, true)
	if seg.Text != "   unbreakable" || rest != "" {
		t.Fatalf("leading spaces unbreakable seg=%+v rest=%q", seg, rest)
	}
}

func TestAtlasFirstFitRows(t *testing.T) {
	a := NewAtlas(512, 8)
	for _, s := range [][2]int{{100, 20}, {450, 30}, {400, 10}, {600, 5}} {
		a.Reserve(s[0], s[1])
	}
	if a.Width() != 600 || a.Height() != 45 || a.Required() != 600*45 {
		t.Fatalf("atlas %dx%d", a.Width(), a.Height())
	}
	if c := a.Cell(1); c.Min.X != 100 || c.Min.Y != 0 {
		t.Fatalf("cell 1 = %v", c)
	}
	if c := a.Cell(2); c.Min.X != 0 || c.Min.Y != 30 || c.Dx() != 400 {
		t.Fatalf("cell 2 = %v", c)
	}
	if c := a.Cell(3); c.Min.Y != 40 {
		t.Fatalf("cell 3 = %v", c)
	}

	a.Reset()
	a.Reserve(513, 4)
	if a.Width() != 520 {
		t.Fatalf("aligned width = %d", a.Width())
	}
	a.Reset()
	a.Reserve(10, 10)
	if a.Width() != 512 || a.Len() != 1 {
		t.Fatalf("min width = %d", a.Width())
	}
}

func TestAtlasBlit(t *testing.T) {
	b := NewFaceBackend(nil)
	a := NewAtlas(0, 0)
	a.Reserve(5, 5)
	m := b.Rasterize(FontSpec{}, "X")
	i := a.Reserve(m.Rect.Dx(), m.Rect.Dy())
	buf := make([]byte, a.Required())
	a.Blit(buf, i, m)
	c := a.Cell(i)
	for y := 0; y < c.Dy(); y++ {
		for x := 0; x < c.Dx(); x++ {
			if buf[(c.Min.Y+y)*a.Width()+c.Min.X+x] != m.AlphaAt(x, y).A {
				t.Fatalf("pixel %d,%d differs", x, y)
			}
		}
	}
}

type faceList []fontdb.Face

func (l faceList) Faces(_ context.Context, family string) ([]fontdb.Face, error) {
	var out []fontdb.Face
	for _, f := range l {
		if f.Family == family {
			out = append(out, f)
		}
	}
	return out, nil
}

func TestFontLibraryAndOTProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Go-Regular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	lib := NewFontLibrary()
	n, err := lib.LoadCatalog(context.Background(), faceList{{Family: "Go", Weight: 400, Path: path}}, "Go", "Missing")
	if err != nil || n != 1 {
		t.Fatalf("load catalog n=%d err=%v", n, err)
	}
	if fams := lib.Families(); len(fams) != 1 || fams[0] != "go" {
		t.Fatalf("families = %v", fams)
	}
	p := NewOTProvider(lib, nil)
	if !p.Has(FontSpec{Family: "GO", Weight: 700, Italic: true}) {
		t.Fatalf("family match must ignore case and fall back on weight")
	}
	if p.Has(FontSpec{Family: "Arial"}) {
		t.Fatalf("Arial is not loaded")
	}
	b := NewFaceBackend(p)
	small := b.TextExtent(FontSpec{Family: "Go", SizePx: 20}, "Subtitle")
	big := b.TextExtent(FontSpec{Family: "Go", SizePx: 40}, "Subtitle")
	if small.Width <= 0 || big.Width < small.Width*1.8 {
		t.Fatalf("extents small=%+v big=%+v", small, big)
	}
	if m := b.Rasterize(FontSpec{Family: "Go", SizePx: 20}, "Go"); m.Rect.Empty() {
		t.Fatalf("empty raster")
	}
}
