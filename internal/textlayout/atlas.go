/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import "image"

const (
	DefaultAtlasMinWidth = 512
	DefaultAtlasAlign    = 8
)

// Atlas packs rectangle footprints into rows of an 8-bit texture. Cells are
// reserved first and placed by Pack: first-fit in insertion order, each row
// as tall as its tallest cell.
type Atlas struct {
	MinWidth int
	Align    int

	sizes  []image.Point
	cells  []image.Rectangle
	width  int
	height int
	packed bool
}

func NewAtlas(minWidth, align int) *Atlas {
	return &Atlas{MinWidth: minWidth, Align: align}
}

// Reserve records a footprint and returns its cell index.
func (a *Atlas) Reserve(w, h int) int {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	a.sizes = append(a.sizes, image.Pt(w, h))
	a.packed = false
	return len(a.sizes) - 1
}

// Len returns the number of reserved cells.
func (a *Atlas) Len() int { return len(a.sizes) }

// Reset drops every reservation.
func (a *Atlas) Reset() {
	a.sizes = a.sizes[:0]
	a.cells = a.cells[:0]
	a.width, a.height = 0, 0
	a.packed = false
}

// Pack places every reserved cell.
func (a *Atlas) Pack() {
	minW := a.MinWidth
	if minW <= 0 {
		minW = DefaultAtlasMinWidth
	}
	align := a.Align
	if align <= 0 {
		align = DefaultAtlasAlign
	}
	widest := 0
	for _, s := range a.sizes {
		widest = max(widest, s.X)
	}
	a.width = roundUp(max(minW, widest), align)

	type row struct{ used, height int }
	var rows []row
	rowOf := make([]int, len(a.sizes))
	xs := make([]int, len(a.sizes))
	for i, s := range a.sizes {
		r := -1
		for j := range rows {
			if rows[j].used+s.X <= a.width {
				r = j
				break
			}
		}
		if r < 0 {
			rows = append(rows, row{})
			r = len(rows) - 1
		}
		xs[i] = rows[r].used
		rowOf[i] = r
		rows[r].used += s.X
		rows[r].height = max(rows[r].height, s.Y)
	}
	ys := make([]int, len(rows))
	a.height = 0
	for j, r := range rows {
		ys[j] = a.height
		a.height += r.height
	}
	a.cells = a.cells[:0]
	for i, s := range a.sizes {
		y := ys[rowOf[i]]
		a.cells = append(a.cells, image.Rect(xs[i], y, xs[i]+s.X, y+s.Y))
	}
	a.packed = true
}

// Cell returns the placed region of cell i; Pack must have run.
func (a *Atlas) Cell(i int) image.Rectangle {
	if !a.packed {
		a.Pack()
	}
	return a.cells[i]
}

// Width and Height return the texture size after packing.
func (a *Atlas) Width() int {
	if !a.packed {
		a.Pack()
	}
	return a.width
}

func (a *Atlas) Height() int {
	if !a.packed {
		a.Pack()
	}
	return a.height
}

// Required is the byte size of the packed texture.
func (a *Atlas) Required() int { return a.Width() * a.Height() }

// Blit copies mask into cell i of buf, a Width()-stride alpha texture.
func (a *Atlas) Blit(buf []byte, i int, mask *image.Alpha) {
	c := a.Cell(i)
	stride := a.width
	for y := 0; y < c.Dy() && y < mask.Rect.Dy(); y++ {
		srcRow := mask.Pix[y*mask.Stride:]
		dst := buf[(c.Min.Y+y)*stride+c.Min.X:]
		n := min(c.Dx(), mask.Rect.Dx())
		copy(dst[:n], srcRow[:n])
	}
}

func roundUp(v, align int) int {
	return (v + align - 1) / align * align
}
