/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"image"
	"image/color"

	"gosubrender/internal/anim"
	"gosubrender/internal/collide"
	"gosubrender/internal/textlayout"
	"gosubrender/internal/vector"
)

// SubtitleRect is one visually atomic run of text: a single line of a single
// paragraph, positioned in render pixels at the dialogue start.
type SubtitleRect struct {
	Text string
	Font textlayout.FontSpec
	// FontSize is the unscaled script size the Size track animates from.
	FontSize float64

	Dialogue  int
	Paragraph int
	Line      int
	Layer     int
	Start     int64
	End       int64

	Box      vector.Rect
	Baseline float32 // from Box.Y
	Origin   vector.Pt
	// AtlasRect is the rasterized run's region in the published atlas.
	AtlasRect image.Rectangle

	Primary, Secondary, Outline, Back color.NRGBA
	OutlineWidth, ShadowDepth         float32
	BorderStyle                       int
	Underline, StrikeOut              bool
	Alignment                         int
	ScaleX, ScaleY                    float64
	RotX, RotY, RotZ                  float64

	Anim    anim.Set
	Fade    anim.Fade
	Karaoke anim.Window
	Fixed   bool
}

// Offset moves the rect and its rotation origin vertically.
func (r *SubtitleRect) Offset(dy float32) {
	r.Box = r.Box.Offset(0, dy)
	r.Origin.Y += dy
}

// Laid is one dialogue after layout.
type Laid struct {
	Rects []SubtitleRect
	Box   collide.DialogueRect
}
