/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render composes a published batch into an RGBA frame. It stands
// in for the host video renderer when inspecting output from the CLI.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"gosubrender/internal/anim"
	"gosubrender/internal/engine"
	"gosubrender/internal/layout"
	"gosubrender/internal/vector"
)

// Options controls frame composition.
//   - Background fills the frame before drawing; zero leaves it transparent.
//   - Effects disables outline and shadow passes when false.
type Options struct {
	Background color.NRGBA
	Effects    bool
}

func DefaultOptions() Options { return Options{Effects: true} }

// Compose draws every rect of out visible at ts onto a w×h frame.
func Compose(out *engine.Output, ts int64, w, h int, opt Options) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if opt.Background.A != 0 {
		draw.Draw(img, img.Bounds(), image.NewUniform(opt.Background), image.Point{}, draw.Src)
	}
	if out == nil || out.Width <= 0 || out.Height <= 0 {
		return img
	}
	atlas := &image.Alpha{Pix: out.Atlas[:out.Width*out.Height], Stride: out.Width, Rect: image.Rect(0, 0, out.Width, out.Height)}
	for i := range out.Rects {
		r := &out.Rects[i]
		if ts < r.Start || ts >= r.End {
			continue
		}
		drawRect(img, atlas, r, ts-r.Start, opt)
	}
	return img
}

// placement is the source-to-frame transform of one rect at one instant.
type placement struct {
	aff     f64.Aff3
	plain   bool
	x, y    int
	opacity float64
	// bounds of the transformed text in frame pixels
	bounds vector.Rect
}

func place(r *layout.SubtitleRect, t int64) placement {
	dx := float32(r.Anim.Eval(anim.MoveX, t, 0))
	dy := float32(r.Anim.Eval(anim.MoveY, t, 0))
	fx, fy := 1.0, 1.0
	if r.FontSize > 0 {
		s := r.Anim.Eval(anim.Size, t, r.FontSize) / r.FontSize
		fx, fy = s, s
	}
	if r.ScaleX > 0 {
		fx *= r.Anim.Eval(anim.ScaleX, t, r.ScaleX) / r.ScaleX
	}
	if r.ScaleY > 0 {
		fy *= r.Anim.Eval(anim.ScaleY, t, r.ScaleY) / r.ScaleY
	}
	rot := r.Anim.Eval(anim.Rotation, t, r.RotZ)

	p := placement{opacity: r.Fade.Opacity(t) / anim.Opaque}
	bx, by := r.Box.X+dx, r.Box.Y+dy
	if fx == 1 && fy == 1 && rot == 0 {
		p.plain = true
		p.x, p.y = int(math.Round(float64(bx))), int(math.Round(float64(by)))
		p.bounds = vector.R(float32(p.x), float32(p.y), float32(r.AtlasRect.Dx()), float32(r.AtlasRect.Dy()))
		return p
	}
	// screen y points down, so a counter-clockwise script angle is negated
	o := vector.Pt{X: r.Origin.X + dx, Y: r.Origin.Y + dy}
	m := vector.RotateAbout(o, float32(-rot)).
		Mul(vector.Translate(o.X, o.Y)).
		Mul(vector.Scale(float32(fx), float32(fy))).
		Mul(vector.Translate(bx-o.X, by-o.Y))
	p.bounds = m.Bounds(vector.R(0, 0, float32(r.AtlasRect.Dx()), float32(r.AtlasRect.Dy())))
	p.aff = f64.Aff3{
		float64(m.A), float64(m.C), float64(m.E),
		float64(m.B), float64(m.D), float64(m.F),
	}
	return p
}

func drawRect(dst *image.RGBA, atlas *image.Alpha, r *layout.SubtitleRect, t int64, opt Options) {
	cell := r.AtlasRect
	if cell.Empty() {
		return
	}
	mask := atlas.SubImage(cell).(*image.Alpha)
	p := place(r, t)
	if p.opacity <= 0 {
		return
	}
	pad := r.OutlineWidth + r.ShadowDepth
	visible := p.bounds.Offset(-pad, -pad)
	visible.W += 2 * pad
	visible.H += 2 * pad
	frame := dst.Bounds()
	if !visible.Intersects(vector.R(0, 0, float32(frame.Dx()), float32(frame.Dy()))) {
		return
	}
	progress := r.Karaoke.Progress(t)

	if r.BorderStyle == 3 {
		box := image.Rect(0, 0, cell.Dx(), cell.Dy()).Inset(-int(math.Ceil(float64(r.OutlineWidth))))
		fill := image.NewNRGBA(box)
		fillRect(fill, box, fade(r.Outline, p.opacity))
		blit(dst, fill, p, 0, 0)
	} else if opt.Effects {
		if r.ShadowDepth > 0 {
			sh := tint(mask, r.Back, r.Back, 1, p.opacity)
			d := int(math.Round(float64(r.ShadowDepth)))
			blit(dst, sh, p, d, d)
		}
		outlineOn := r.Karaoke.Mode != anim.KaraokeOutline || t >= r.Karaoke.In
		if w := int(math.Round(float64(r.OutlineWidth))); w > 0 && outlineOn {
			ol := tint(mask, r.Outline, r.Outline, 1, p.opacity)
			for _, o := range ring(w) {
				blit(dst, ol, p, o.X, o.Y)
			}
		}
	}

	left, right := r.Primary, r.Primary
	switch r.Karaoke.Mode {
	case anim.KaraokeSwitch, anim.KaraokeOutline:
		if t < r.Karaoke.In {
			left, right = r.Secondary, r.Secondary
		}
	case anim.KaraokeFill:
		right = r.Secondary
	default:
		progress = 1
	}
	blit(dst, tint(mask, left, right, progress, p.opacity), p, 0, 0)
}

// tint colours a coverage mask. Columns left of split×width take left, the
// rest right.
func tint(mask *image.Alpha, left, right color.NRGBA, split, opacity float64) *image.NRGBA {
	b := mask.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	cut := int(math.Round(split * float64(b.Dx())))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			cov := mask.AlphaAt(b.Min.X+x, b.Min.Y+y).A
			if cov == 0 {
				continue
			}
			c := right
			if x < cut {
				c = left
			}
			c.A = uint8(math.Round(float64(cov) * float64(c.A) / 255 * opacity))
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

func fade(c color.NRGBA, opacity float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * opacity))
	return c
}

// blit draws src, whose origin is the rect's top-left, at the placement
// shifted by (ox, oy) frame pixels.
func blit(dst *image.RGBA, src *image.NRGBA, p placement, ox, oy int) {
	if p.plain {
		sb := src.Bounds()
		dr := sb.Add(image.Pt(p.x+ox, p.y+oy))
		draw.Draw(dst, dr, src, sb.Min, draw.Over)
		return
	}
	aff := p.aff
	aff[2] += float64(ox)
	aff[5] += float64(oy)
	draw.ApproxBiLinear.Transform(dst, aff, src, src.Bounds(), draw.Over, nil)
}

// ring lists the offsets used to thicken a glyph mask into an outline.
func ring(w int) []image.Point {
	pts := make([]image.Point, 0, 8)
	for _, d := range []image.Point{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}} {
		pts = append(pts, d.Mul(w))
	}
	return pts
}

func fillRect(img *image.NRGBA, r image.Rectangle, col color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, col)
		}
	}
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}
