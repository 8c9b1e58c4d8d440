/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package anim evaluates the time-varying parts of a dialogue: property
// animation tracks, fades and karaoke windows. All times are milliseconds
// relative to the dialogue start unless stated otherwise.
package anim

import (
	"errors"
	"math"
)

// MaxKeyframes bounds the number of keyframes a single track can hold.
const MaxKeyframes = 8

// ErrTrackFull is returned by Track.Add once MaxKeyframes is reached.
var ErrTrackFull = errors.New("anim: keyframe track full")

// Property names an animatable value.
type Property uint8

const (
	Size Property = iota
	ScaleX
	ScaleY
	Rotation
	MoveX
	MoveY
	numProperties
)

func (p Property) String() string {
	switch p {
	case Size:
		return "size"
	case ScaleX:
		return "scale-x"
	case ScaleY:
		return "scale-y"
	case Rotation:
		return "rotation"
	case MoveX:
		return "move-x"
	case MoveY:
		return "move-y"
	}
	return "unknown"
}

// Keyframe moves a property towards Value between Start and End. Accel shapes
// the progress curve: progress = linear^Accel.
type Keyframe struct {
	Start, End int64
	Value      float64
	Accel      float64
}

// Track is a fixed-capacity, start-ordered list of keyframes. The zero value
// is an empty track. Tracks are plain values and compare with ==.
type Track struct {
	keys [MaxKeyframes]Keyframe
	n    int
}

// Add inserts k keeping keys ordered by Start; equal starts keep insertion order.
func (tr *Track) Add(k Keyframe) error {
	if tr.n >= MaxKeyframes {
		return ErrTrackFull
	}
	if k.Accel <= 0 {
		k.Accel = 1
	}
	i := tr.n
	for i > 0 && tr.keys[i-1].Start > k.Start {
		tr.keys[i] = tr.keys[i-1]
		i--
	}
	tr.keys[i] = k
	tr.n++
	return nil
}

func (tr *Track) Reset() { *tr = Track{} }

func (tr Track) Len() int { return tr.n }

// Keys returns a copy of the keyframes.
func (tr Track) Keys() []Keyframe {
	out := make([]Keyframe, tr.n)
	copy(out, tr.keys[:tr.n])
	return out
}

// Eval returns the property value at time t. Before the first keyframe the
// static value applies; after a keyframe completes its value is held.
func (tr Track) Eval(t int64, static float64) float64 {
	v := static
	for i := 0; i < tr.n; i++ {
		k := tr.keys[i]
		if t < k.Start {
			return v
		}
		if t >= k.End {
			v = k.Value
			continue
		}
		p := float64(t-k.Start) / float64(k.End-k.Start)
		if k.Accel != 1 {
			p = math.Pow(p, k.Accel)
		}
		return v + (k.Value-v)*p
	}
	return v
}

// Set groups one track per Property.
type Set struct {
	tracks [numProperties]Track
}

func (s *Set) Add(p Property, k Keyframe) error { return s.tracks[p].Add(k) }

func (s *Set) Clear(p Property) { s.tracks[p].Reset() }

func (s *Set) Reset() { *s = Set{} }

func (s Set) Track(p Property) Track { return s.tracks[p] }

func (s Set) Has(p Property) bool { return s.tracks[p].n > 0 }

func (s Set) Eval(p Property, t int64, static float64) float64 {
	return s.tracks[p].Eval(t, static)
}

// Empty reports whether no property is animated.
func (s Set) Empty() bool {
	for i := range s.tracks {
		if s.tracks[i].n > 0 {
			return false
		}
	}
	return true
}
