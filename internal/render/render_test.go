/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gosubrender/internal/anim"
	"gosubrender/internal/engine"
	"gosubrender/internal/layout"
	"gosubrender/internal/vector"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// solidOutput has one fully covered 4×2 atlas cell drawn at (10, 10).
func solidOutput() *engine.Output {
	out := &engine.Output{Atlas: make([]byte, 8*2), Width: 8, Height: 2}
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			out.Atlas[y*8+x] = 255
		}
	}
	out.Rects = []layout.SubtitleRect{{
		Text:      "ab",
		Start:     0,
		End:       1000,
		Box:       vector.R(10, 10, 4, 2),
		AtlasRect: image.Rect(0, 0, 4, 2),
		Primary:   red,
		Secondary: blue,
		ScaleX:    100,
		ScaleY:    100,
	}}
	return out
}

func at(img *image.RGBA, x, y int) color.RGBA { return img.RGBAAt(x, y) }

func TestComposeDrawsCellInPrimary(t *testing.T) {
	img := Compose(solidOutput(), 500, 32, 32, Options{})
	if c := at(img, 10, 10); c != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("pixel (10,10) = %v, want red", c)
	}
	if c := at(img, 13, 11); c.R != 255 {
		t.Fatalf("pixel (13,11) = %v", c)
	}
	if c := at(img, 14, 10); c.A != 0 {
		t.Fatalf("pixel right of the cell = %v, want transparent", c)
	}
}

func TestComposeHonoursDisplayWindow(t *testing.T) {
	out := solidOutput()
	for _, ts := range []int64{-1, 1000, 5000} {
		img := Compose(out, ts, 32, 32, Options{})
		if c := at(img, 10, 10); c.A != 0 {
			t.Fatalf("ts=%d drew %v", ts, c)
		}
	}
}

func TestComposeFade(t *testing.T) {
	out := solidOutput()
	out.Rects[0].Fade = anim.FadeInOut(200, 200, 1000)
	if c := at(Compose(out, 0, 32, 32, Options{}), 10, 10); c.A != 0 {
		t.Fatalf("fully faded pixel = %v", c)
	}
	half := at(Compose(out, 100, 32, 32, Options{}), 10, 10)
	if half.A < 120 || half.A > 135 {
		t.Fatalf("half-faded alpha = %d", half.A)
	}
	if c := at(Compose(out, 500, 32, 32, Options{}), 10, 10); c.A != 255 {
		t.Fatalf("opaque alpha = %d", c.A)
	}
}

func TestComposeKaraokeFill(t *testing.T) {
	out := solidOutput()
	out.Rects[0].Karaoke = anim.Window{Mode: anim.KaraokeFill, In: 0, Out: 1000}
	img := Compose(out, 500, 32, 32, Options{})
	if c := at(img, 11, 10); c.R != 255 || c.B != 0 {
		t.Fatalf("swept column = %v, want primary", c)
	}
	if c := at(img, 12, 10); c.B != 255 || c.R != 0 {
		t.Fatalf("pending column = %v, want secondary", c)
	}
}

func TestComposeKaraokeSwitch(t *testing.T) {
	out := solidOutput()
	out.Rects[0].Karaoke = anim.Window{Mode: anim.KaraokeSwitch, In: 300, Out: 600}
	if c := at(Compose(out, 100, 32, 32, Options{}), 10, 10); c.B != 255 {
		t.Fatalf("before window = %v, want secondary", c)
	}
	if c := at(Compose(out, 300, 32, 32, Options{}), 13, 10); c.R != 255 {
		t.Fatalf("inside window = %v, want primary", c)
	}
}

func TestComposeMove(t *testing.T) {
	out := solidOutput()
	_ = out.Rects[0].Anim.Add(anim.MoveX, anim.Keyframe{Start: 0, End: 1000, Value: 10})
	img := Compose(out, 500, 32, 32, Options{})
	if c := at(img, 10, 10); c.A != 0 {
		t.Fatalf("old position still drawn: %v", c)
	}
	if c := at(img, 15, 10); c.R != 255 {
		t.Fatalf("moved position = %v", c)
	}
}

func TestComposeScaledCellGrows(t *testing.T) {
	out := solidOutput()
	out.Rects[0].FontSize = 10
	out.Rects[0].Origin = vector.Pt{X: 10, Y: 10}
	_ = out.Rects[0].Anim.Add(anim.Size, anim.Keyframe{Start: 0, End: 100, Value: 20})
	img := Compose(out, 500, 32, 32, Options{})
	if c := at(img, 16, 12); c.R == 0 {
		t.Fatalf("doubled cell not drawn at (16,12): %v", c)
	}
	if c := at(img, 20, 10); c.A != 0 {
		t.Fatalf("drawn beyond the doubled cell: %v", c)
	}
}

func TestComposeRotatesAboutOrigin(t *testing.T) {
	out := solidOutput()
	out.Rects[0].RotZ = 90
	out.Rects[0].Origin = vector.Pt{X: 10, Y: 10}
	img := Compose(out, 500, 32, 32, Options{})
	// a quarter turn counter-clockwise stands the 4x2 cell upright above the origin
	if c := at(img, 11, 8); c.R == 0 {
		t.Fatalf("rotated cell not drawn at (11,8): %v", c)
	}
	if c := at(img, 13, 10); c.A != 0 {
		t.Fatalf("unrotated footprint still drawn: %v", c)
	}
}

func TestComposeSkipsOffFrameRects(t *testing.T) {
	out := solidOutput()
	out.Rects[0].Box = vector.R(100, 100, 4, 2)
	img := Compose(out, 500, 32, 32, Options{})
	for _, p := range img.Pix {
		if p != 0 {
			t.Fatalf("off-frame rect drew into the frame")
		}
	}
}

func TestComposeOpaqueBox(t *testing.T) {
	out := solidOutput()
	r := &out.Rects[0]
	r.BorderStyle = 3
	r.OutlineWidth = 2
	r.Outline = color.NRGBA{G: 255, A: 255}
	img := Compose(out, 500, 32, 32, DefaultOptions())
	if c := at(img, 8, 8); c.G != 255 {
		t.Fatalf("box corner = %v, want outline colour", c)
	}
	if c := at(img, 10, 10); c.R != 255 {
		t.Fatalf("text over box = %v", c)
	}
}

func TestComposeOutlineAndShadow(t *testing.T) {
	out := solidOutput()
	r := &out.Rects[0]
	r.OutlineWidth = 1
	r.Outline = color.NRGBA{G: 255, A: 255}
	r.ShadowDepth = 3
	r.Back = color.NRGBA{B: 200, A: 255}
	img := Compose(out, 500, 32, 32, DefaultOptions())
	if c := at(img, 9, 9); c.G != 255 {
		t.Fatalf("outline = %v", c)
	}
	if c := at(img, 16, 14); c.B != 200 {
		t.Fatalf("shadow = %v", c)
	}
	plain := Compose(out, 500, 32, 32, Options{})
	if c := at(plain, 9, 9); c.A != 0 {
		t.Fatalf("effects disabled but outline drawn: %v", c)
	}
}

func TestComposePublishedBatchAndWritePNG(t *testing.T) {
	e := engine.New(engine.DefaultOptions(), nil)
	id, err := e.AddStream([]byte("1\n00:00:01,000 --> 00:00:03,000\nHello world\n"), "clip.srt")
	if err != nil {
		t.Fatalf("AddStream: %v", err)
	}
	if err := e.ActivateStream(id); err != nil {
		t.Fatalf("ActivateStream: %v", err)
	}
	out := &engine.Output{Atlas: make([]byte, 1<<20)}
	if n, err := e.Publish(id, 1000, out); n != 1 || err != nil {
		t.Fatalf("Publish = %d, %v", n, err)
	}
	img := Compose(out, 1500, 1920, 1080, Options{Background: color.NRGBA{A: 255}})
	var lit int
	b := out.Rects[0].Box
	for y := int(b.Y); y < int(b.Bottom()); y++ {
		for x := int(b.X); x < int(b.Right()); x++ {
			if at(img, x, y).R > 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatalf("no glyph pixels inside %+v", b)
	}

	path := filepath.Join(t.TempDir(), "frames", "f.png")
	if err := WritePNG(path, img); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil || cfg.Width != 1920 || cfg.Height != 1080 {
		t.Fatalf("decoded %+v, %v", cfg, err)
	}
}
