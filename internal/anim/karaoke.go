/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package anim

import "math"

// KaraokeMode selects how a syllable changes from the secondary to the
// primary colour.
type KaraokeMode uint8

const (
	KaraokeNone KaraokeMode = iota
	// KaraokeSwitch (\k) switches colour at the window start.
	KaraokeSwitch
	// KaraokeFill (\kf, \K) sweeps left to right across the window.
	KaraokeFill
	// KaraokeOutline (\ko) keeps the outline hidden until the window start.
	KaraokeOutline
)

// Karaoke describes one syllable as declared in a script: it starts Start ms
// after the dialogue start and lasts Duration ms.
type Karaoke struct {
	Mode     KaraokeMode
	Start    int64
	Duration int64
	Seq      int
}

func (k Karaoke) Active() bool { return k.Mode != KaraokeNone }

// Window is the [In, Out) interval during which one rendered rectangle of a
// syllable is highlighted.
type Window struct {
	Mode    KaraokeMode
	In, Out int64
}

// Progress is 0 before In, 1 from Out on and linear in between.
func (w Window) Progress(t int64) float64 {
	switch {
	case t < w.In:
		return 0
	case t >= w.Out || w.Out <= w.In:
		return 1
	}
	return float64(t-w.In) / float64(w.Out-w.In)
}

// PartitionKaraoke splits k's duration across rectangles proportionally to
// their rendered widths. The windows are contiguous and together cover
// [k.Start, k.Start+k.Duration). Zero total width splits evenly.
func PartitionKaraoke(widths []float32, k Karaoke) []Window {
	if len(widths) == 0 {
		return nil
	}
	var total float64
	for _, w := range widths {
		if w > 0 {
			total += float64(w)
		}
	}
	out := make([]Window, len(widths))
	end := k.Start + k.Duration
	in := k.Start
	var acc float64
	for i, w := range widths {
		if w > 0 {
			acc += float64(w)
		}
		var frac float64
		if total > 0 {
			frac = acc / total
		} else {
			frac = float64(i+1) / float64(len(widths))
		}
		o := k.Start + int64(math.Round(float64(k.Duration)*frac))
		if i == len(widths)-1 {
			o = end
		}
		out[i] = Window{Mode: k.Mode, In: in, Out: o}
		in = o
	}
	return out
}
