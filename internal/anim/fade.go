/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package anim

// Opaque and Transparent are the ends of the opacity scale used by Fade.
const (
	Transparent = 0.0
	Opaque      = 255.0
)

// FadeKey is one opacity control point.
type FadeKey struct {
	Time  int64
	Alpha float64
}

// Fade holds either no keyframes or exactly four. Opacity is interpolated
// linearly between neighbouring keys and held constant outside them.
type Fade struct {
	keys [4]FadeKey
	set  bool
}

// FadeInOut fades in over in ms from the start and out over out ms before
// duration.
func FadeInOut(in, out, duration int64) Fade {
	in = clamp64(in, 0, duration)
	outStart := max(in, duration-max(out, 0))
	return Fade{set: true, keys: [4]FadeKey{
		{0, Transparent},
		{in, Opaque},
		{outStart, Opaque},
		{duration, Transparent},
	}}
}

// FadeComplex builds the seven argument form. a1..a3 are transparency values
// (0 opaque, 255 invisible) as written in scripts.
func FadeComplex(a1, a2, a3 float64, t1, t2, t3, t4 int64) Fade {
	t2 = max(t2, t1)
	t3 = max(t3, t2)
	t4 = max(t4, t3)
	return Fade{set: true, keys: [4]FadeKey{
		{t1, Opaque - clampAlpha(a1)},
		{t2, Opaque - clampAlpha(a2)},
		{t3, Opaque - clampAlpha(a2)},
		{t4, Opaque - clampAlpha(a3)},
	}}
}

func (f Fade) Active() bool { return f.set }

func (f Fade) Keys() []FadeKey {
	if !f.set {
		return nil
	}
	out := f.keys
	return out[:]
}

// Opacity returns 0..255 at time t; an inactive fade is fully opaque.
func (f Fade) Opacity(t int64) float64 {
	if !f.set {
		return Opaque
	}
	if t <= f.keys[0].Time {
		return f.keys[0].Alpha
	}
	for i := 1; i < len(f.keys); i++ {
		a, b := f.keys[i-1], f.keys[i]
		if t > b.Time {
			continue
		}
		if b.Time == a.Time {
			return b.Alpha
		}
		p := float64(t-a.Time) / float64(b.Time-a.Time)
		return a.Alpha + (b.Alpha-a.Alpha)*p
	}
	return f.keys[3].Alpha
}

func clampAlpha(a float64) float64 {
	if a < 0 {
		return 0
	}
	if a > 255 {
		return 255
	}
	return a
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
