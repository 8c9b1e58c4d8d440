/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout is the boundary to the font backend. It isolates text
// measurement, rasterization and line breaking behind deterministic
// interfaces so the layout engine can run against real OpenType faces or
// the fixed basicfont face in tests.
package textlayout

import (
	"image"
	"math"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontSpec describes a requested face at a display size.
type FontSpec struct {
	Family string // logical family name
	SizePx float32
	Weight int // 100..900
	Italic bool
	// ScaleX and ScaleY are percentages; zero means 100.
	ScaleX, ScaleY float32
	// Spacing is extra advance in pixels after each rune.
	Spacing float32
	// Encoding is the script charset hint (128 Shift-JIS, 134 GBK, ...).
	Encoding int
}

func (s FontSpec) scale() (float32, float32) {
	sx, sy := s.ScaleX, s.ScaleY
	if sx <= 0 {
		sx = 100
	}
	if sy <= 0 {
		sy = 100
	}
	return sx / 100, sy / 100
}

// Metrics provides font metrics in pixels for the resolved face. Size is
// the pixel size the face was built for.
type Metrics struct {
	Ascent, Descent, LineGap float32
	Size                     float32
}

// Extent is the display footprint of a run of text.
type Extent struct {
	Width, Ascent, Descent float32
}

func (e Extent) Height() float32 { return e.Ascent + e.Descent }

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// Backend is what the layout engine asks of fonts. Implementations must be
// fast and must not block; they are called under the engine lock.
type Backend interface {
	// Has reports whether the requested family is available.
	Has(spec FontSpec) bool
	TextExtent(spec FontSpec, text string) Extent
	// Rasterize renders text as an 8-bit coverage mask sized to the
	// rounded-up extent.
	Rasterize(spec FontSpec, text string) *image.Alpha
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	return f, Metrics{
		Ascent:  float32(m.Ascent.Round()),
		Descent: float32(m.Descent.Round()),
		LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
		Size:    float32(m.Height.Round()),
	}
}

// FaceBackend implements Backend on top of a Provider. Faces whose native
// size differs from the request are scaled linearly.
type FaceBackend struct{ Provider Provider }

func NewFaceBackend(provider Provider) *FaceBackend {
	if provider == nil {
		provider = BasicProvider{}
	}
	return &FaceBackend{Provider: provider}
}

// Has defers to the provider when it can tell; a provider without a notion
// of availability is assumed to serve every family.
func (b *FaceBackend) Has(spec FontSpec) bool {
	if h, ok := b.Provider.(interface{ Has(FontSpec) bool }); ok {
		return h.Has(spec)
	}
	return true
}

func (b *FaceBackend) TextExtent(spec FontSpec, text string) Extent {
	face, met := b.Provider.Resolve(spec)
	k := sizeFactor(spec, met)
	sx, sy := spec.scale()
	w := float32(0)
	if text != "" {
		w = advance(&font.Drawer{Face: face}, text) * k * sx
		w += spec.Spacing * float32(utf8.RuneCountInString(text))
	}
	return Extent{Width: w, Ascent: met.Ascent * k * sy, Descent: met.Descent * k * sy}
}

func (b *FaceBackend) Rasterize(spec FontSpec, text string) *image.Alpha {
	ext := b.TextExtent(spec, text)
	dst := image.NewAlpha(image.Rect(0, 0, ceil(ext.Width), ceil(ext.Height())))
	if text == "" || dst.Rect.Empty() {
		return dst
	}
	face, met := b.Provider.Resolve(spec)
	k := sizeFactor(spec, met)
	sx, _ := spec.scale()

	// draw at native size, then scale into the display footprint
	nativeW := advance(&font.Drawer{Face: face}, text)
	if spec.Spacing != 0 {
		nativeW += spec.Spacing / (k * sx) * float32(utf8.RuneCountInString(text))
	}
	src := image.NewAlpha(image.Rect(0, 0, ceil(nativeW), ceil(met.Ascent+met.Descent)))
	d := &font.Drawer{Dst: src, Src: image.Opaque, Face: face, Dot: fixed.P(0, int(met.Ascent))}
	if spec.Spacing == 0 {
		d.DrawString(text)
	} else {
		gap := fixed.Int26_6(spec.Spacing / (k * sx) * 64)
		for _, r := range text {
			d.DrawString(string(r))
			d.Dot.X += gap
		}
	}
	if src.Rect.Eq(dst.Rect) {
		return src
	}
	draw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst
}

func sizeFactor(spec FontSpec, met Metrics) float32 {
	if spec.SizePx <= 0 || met.Size <= 0 {
		return 1
	}
	return spec.SizePx / met.Size
}

func advance(d *font.Drawer, s string) float32 {
	return float32(d.MeasureString(s)) / 64 // fixed.Int26_6 to px
}

func ceil(v float32) int { return int(math.Ceil(float64(v))) }
