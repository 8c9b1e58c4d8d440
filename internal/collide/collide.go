/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package collide moves simultaneously visible dialogues apart so their text
// does not overlap.
package collide

import (
	"gosubrender/internal/subtitle"
	"gosubrender/internal/vector"
)

// DialogueRect is the bounding box of one laid-out dialogue in render
// pixels.
type DialogueRect struct {
	ID         int
	Box        vector.Rect
	Start, End int64
	Layer      int
	// Alignment is the numpad position; rows 1-6 move up, 7-9 move down.
	Alignment int
	// Fixed dialogues (\pos, \move, \org, \t) are neither moved nor avoided.
	Fixed bool
}

func (d DialogueRect) overlaps(o DialogueRect) bool {
	return d.Layer == o.Layer && d.Start < o.End && o.Start < d.End && d.Box.Intersects(o.Box)
}

func (d DialogueRect) movesDown() bool { return d.Alignment >= 7 }

// Resolve returns the vertical displacement for each rect. With
// CollisionsNormal rects are placed in order and each avoids the ones before
// it; CollisionsReverse walks backwards and each avoids the ones after it. A
// shift that would leave the canvas stops at the last in-canvas position.
func Resolve(rects []DialogueRect, mode subtitle.CollisionMode, canvasHeight float32) []float32 {
	dy := make([]float32, len(rects))
	placed := make([]DialogueRect, len(rects))
	copy(placed, rects)

	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
		if mode == subtitle.CollisionsReverse {
			order[i] = len(rects) - 1 - i
		}
	}
	for k, i := range order {
		cur := placed[i]
		if cur.Fixed || cur.Box.Empty() {
			continue
		}
		before := order[:k]
		// each pass clears at least one obstacle, so len(before)+1 passes suffice
		for pass := 0; pass <= len(before); pass++ {
			hit := -1
			for _, j := range before {
				if !placed[j].Fixed && cur.overlaps(placed[j]) {
					hit = j
					break
				}
			}
			if hit < 0 {
				break
			}
			next := cur
			if cur.movesDown() {
				next.Box.Y = placed[hit].Box.Bottom()
			} else {
				next.Box.Y = placed[hit].Box.Y - cur.Box.H
			}
			if next.Box.Y < 0 || next.Box.Bottom() > canvasHeight {
				break
			}
			cur = next
		}
		placed[i] = cur
		dy[i] = cur.Box.Y - rects[i].Box.Y
	}
	return dy
}
