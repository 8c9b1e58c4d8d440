/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package override

import (
	"image/color"
	"log/slog"
	"sort"
	"strings"

	"gosubrender/internal/anim"
	"gosubrender/internal/subtitle"
	"gosubrender/internal/vector"
)

// handler applies one override command; arg is the text after the command
// name, e.g. "20" for \fs20 or "(10,20)" for \pos(10,20).
type handler func(s *state, arg string)

var commands map[string]handler

func init() {
	commands = map[string]handler{
		"b":     cmdBold,
		"i":     cmdItalic,
		"u":     cmdUnderline,
		"s":     cmdStrikeOut,
		"fn":    cmdFontName,
		"fs":    cmdFontSize,
		"fscx":  scaleCmd(anim.ScaleX),
		"fscy":  scaleCmd(anim.ScaleY),
		"fsp":   cmdSpacing,
		"frx":   rotCmd('x'),
		"fry":   rotCmd('y'),
		"frz":   rotCmd('z'),
		"fr":    rotCmd('z'),
		"fe":    cmdEncoding,
		"c":     colorCmd(1),
		"1c":    colorCmd(1),
		"2c":    colorCmd(2),
		"3c":    colorCmd(3),
		"4c":    colorCmd(4),
		"alpha": alphaCmd(0),
		"1a":    alphaCmd(1),
		"2a":    alphaCmd(2),
		"3a":    alphaCmd(3),
		"4a":    alphaCmd(4),
		"bord":  cmdBorder,
		"shad":  cmdShadow,
		"an":    cmdAlignNumpad,
		"a":     cmdAlignLegacy,
		"q":     cmdWrapStyle,
		"k":     karaokeCmd(anim.KaraokeSwitch),
		"K":     karaokeCmd(anim.KaraokeFill),
		"kf":    karaokeCmd(anim.KaraokeFill),
		"ko":    karaokeCmd(anim.KaraokeOutline),
		"pos":   cmdPos,
		"move":  cmdMove,
		"org":   cmdOrigin,
		"r":     cmdReset,
		"t":     cmdTransform,
		"fad":   cmdFade,
		"fade":  cmdFadeComplex,
	}
	commandNames = sortedNames()
}

// ignored are commands that are recognised but have no effect here. They
// must be known so that e.g. \blur is not read as \b with argument "lur".
var ignored = []string{
	"be", "blur", "clip", "iclip", "p", "pbo", "xbord", "ybord", "xshad", "yshad", "fax", "fay",
}

// commandNames is every known name, longest first, for prefix matching.
var commandNames []string

func sortedNames() []string {
	names := make([]string, 0, len(commands)+len(ignored))
	for k := range commands {
		names = append(names, k)
	}
	names = append(names, ignored...)
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// lookupCommand finds the longest command name prefixing cmd. Ignored
// commands return their name with a nil handler, unknown ones "" and nil.
func lookupCommand(cmd string) (string, handler) {
	for _, n := range commandNames {
		if strings.HasPrefix(cmd, n) {
			return n, commands[n]
		}
	}
	return "", nil
}

func pick[T any](reset bool, styleVal, v T) T {
	if reset {
		return styleVal
	}
	return v
}

func cmdBold(s *state, arg string) {
	v, ok := leadingNumber(arg)
	switch {
	case !ok:
		s.cur.Weight = s.base.Weight
	case v == 0:
		s.cur.Weight = 400
	case v == 1:
		s.cur.Weight = 700
	case v >= 100:
		s.cur.Weight = int(v)
	}
}

func cmdItalic(s *state, arg string) {
	v, ok := leadingNumber(arg)
	s.cur.Italic = pick(!ok, s.base.Italic, v != 0)
}

func cmdUnderline(s *state, arg string) {
	v, ok := leadingNumber(arg)
	s.cur.Underline = pick(!ok, s.base.Underline, v != 0)
}

func cmdStrikeOut(s *state, arg string) {
	v, ok := leadingNumber(arg)
	s.cur.StrikeOut = pick(!ok, s.base.StrikeOut, v != 0)
}

func cmdFontName(s *state, arg string) {
	name := strings.TrimSpace(arg)
	if name == "" || name == "0" {
		s.cur.FontName = s.base.FontName
		return
	}
	s.cur.FontName = strings.TrimPrefix(name, "@")
}

func cmdFontSize(s *state, arg string) {
	s.cur.Anim.Clear(anim.Size)
	arg = strings.TrimSpace(arg)
	v, ok := leadingNumber(arg)
	switch {
	case !ok:
		s.cur.Size = s.base.FontSize
	case strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-"):
		if n := s.cur.Size * (1 + v/10); n > 0 {
			s.cur.Size = n
		}
	case v > 0:
		s.cur.Size = v
	}
}

func scaleCmd(p anim.Property) handler {
	return func(s *state, arg string) {
		s.cur.Anim.Clear(p)
		v, ok := leadingNumber(arg)
		if ok && v < 0 {
			return
		}
		switch p {
		case anim.ScaleX:
			s.cur.ScaleX = pick(!ok, s.base.ScaleX, v)
		case anim.ScaleY:
			s.cur.ScaleY = pick(!ok, s.base.ScaleY, v)
		}
	}
}

func cmdSpacing(s *state, arg string) {
	v, ok := leadingNumber(arg)
	s.cur.Spacing = pick(!ok, s.base.Spacing, v)
}

func rotCmd(axis byte) handler {
	return func(s *state, arg string) {
		v, ok := leadingNumber(arg)
		switch axis {
		case 'x':
			s.cur.RotX = pick(!ok, 0, v)
		case 'y':
			s.cur.RotY = pick(!ok, 0, v)
		default:
			s.cur.Anim.Clear(anim.Rotation)
			s.cur.RotZ = pick(!ok, s.base.Angle, v)
		}
	}
}

func cmdEncoding(s *state, arg string) {
	v, ok := leadingNumber(arg)
	s.cur.Encoding = pick(!ok, s.base.Encoding, int(v))
}

func colorCmd(slot int) handler {
	return func(s *state, arg string) {
		dst, def := s.colorSlot(slot)
		c, ok := subtitle.ParseColor(arg)
		if !ok {
			*dst = subtitle.WithAlpha(def, dst.A)
			return
		}
		*dst = subtitle.WithAlpha(c, dst.A)
	}
}

// alphaCmd sets the opacity of one colour slot, or all four for slot 0.
func alphaCmd(slot int) handler {
	return func(s *state, arg string) {
		a, ok := subtitle.ParseAlpha(arg)
		slots := []int{slot}
		if slot == 0 {
			slots = []int{1, 2, 3, 4}
		}
		for _, sl := range slots {
			dst, def := s.colorSlot(sl)
			if ok {
				dst.A = a
			} else {
				dst.A = def.A
			}
		}
	}
}

func (s *state) colorSlot(slot int) (*color.NRGBA, color.NRGBA) {
	switch slot {
	case 2:
		return &s.cur.Secondary, s.base.Secondary
	case 3:
		return &s.cur.Outline, s.base.Outline
	case 4:
		return &s.cur.Back, s.base.Back
	}
	return &s.cur.Primary, s.base.Primary
}

func cmdBorder(s *state, arg string) {
	v, ok := leadingNumber(arg)
	if ok && v < 0 {
		return
	}
	s.cur.OutlineWidth = pick(!ok, s.base.OutlineWidth, v)
}

func cmdShadow(s *state, arg string) {
	v, ok := leadingNumber(arg)
	if ok && v < 0 {
		return
	}
	s.cur.ShadowDepth = pick(!ok, s.base.ShadowDepth, v)
}

// Alignment applies once per dialogue; later \an and \a are ignored.
func cmdAlignNumpad(s *state, arg string) {
	v, ok := leadingNumber(arg)
	if s.alignSet || !ok || v < 1 || v > 9 {
		return
	}
	s.alignSet = true
	s.res.Alignment = int(v)
}

func cmdAlignLegacy(s *state, arg string) {
	v, ok := leadingNumber(arg)
	if s.alignSet || !ok || v < 1 || v > 11 {
		return
	}
	s.alignSet = true
	s.res.Alignment = subtitle.LegacyToNumpad(int(v))
}

func cmdWrapStyle(s *state, arg string) {
	v, ok := leadingNumber(arg)
	if ok && v >= 0 && v <= 3 {
		s.res.WrapStyle = int(v)
	}
}

func karaokeCmd(mode anim.KaraokeMode) handler {
	return func(s *state, arg string) {
		v, ok := leadingNumber(arg)
		if !ok || v < 0 {
			v = 0
		}
		d := int64(v * 10)
		s.flush()
		s.karaokeSeq++
		s.cur.Karaoke = anim.Karaoke{Mode: mode, Start: s.karaokeAt, Duration: d, Seq: s.karaokeSeq}
		s.karaokeAt += d
	}
}

func cmdPos(s *state, arg string) {
	args, ok := parseArgs(arg)
	if !ok || s.placed {
		return
	}
	v, ok := numbers(args)
	if !ok || len(v) != 2 {
		return
	}
	s.placed = true
	s.res.Pos = &vector.Pt{X: float32(v[0]), Y: float32(v[1])}
	s.res.Flags.Pos = true
}

func cmdMove(s *state, arg string) {
	args, ok := parseArgs(arg)
	if !ok || s.placed {
		return
	}
	v, ok := numbers(args)
	if !ok || (len(v) != 4 && len(v) != 6) {
		return
	}
	m := &Move{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], T1: 0, T2: s.duration}
	if len(v) == 6 {
		m.T1, m.T2 = int64(v[4]), int64(v[5])
		if m.T1 == 0 && m.T2 == 0 {
			m.T2 = s.duration
		}
		if m.T2 < m.T1 {
			m.T1, m.T2 = m.T2, m.T1
		}
	}
	s.placed = true
	s.res.Move = m
	s.res.Flags.Move = true
}

func cmdOrigin(s *state, arg string) {
	args, ok := parseArgs(arg)
	if !ok || s.originSet {
		return
	}
	v, ok := numbers(args)
	if !ok || len(v) != 2 {
		return
	}
	s.originSet = true
	s.res.Origin = &vector.Pt{X: float32(v[0]), Y: float32(v[1])}
	s.res.Flags.Origin = true
}

// cmdReset restores the named style, or the dialogue style, dropping all
// animation.
func cmdReset(s *state, arg string) {
	st := s.base
	if name := strings.TrimSpace(arg); name != "" && s.ip != nil && s.ip.Styles != nil {
		if named, ok := s.ip.Styles.LookupName(name); ok {
			st = named
		}
	}
	k := s.cur.Karaoke
	s.cur = FromStyle(st)
	s.cur.Karaoke = k
}

func cmdFade(s *state, arg string) {
	args, ok := parseArgs(arg)
	if !ok || s.fadeSet {
		return
	}
	v, ok := numbers(args)
	if !ok || len(v) != 2 {
		return
	}
	s.fadeSet = true
	s.res.Fade = anim.FadeInOut(int64(v[0]), int64(v[1]), s.duration)
}

func cmdFadeComplex(s *state, arg string) {
	args, ok := parseArgs(arg)
	if !ok || s.fadeSet {
		return
	}
	v, ok := numbers(args)
	if !ok || len(v) != 7 {
		return
	}
	s.fadeSet = true
	s.res.Fade = anim.FadeComplex(v[0], v[1], v[2], int64(v[3]), int64(v[4]), int64(v[5]), int64(v[6]))
}

// animatable maps the commands allowed inside \t to their track.
var animatable = map[string]anim.Property{
	"fs":   anim.Size,
	"fscx": anim.ScaleX,
	"fscy": anim.ScaleY,
	"frz":  anim.Rotation,
	"fr":   anim.Rotation,
}

// cmdTransform handles \t([t1,t2,][accel,]\cmds). Each supported inner
// command adds a keyframe; the others are ignored.
func cmdTransform(s *state, arg string) {
	args, ok := parseArgs(arg)
	if !ok || len(args) == 0 || args[len(args)-1].Tag == nil {
		return
	}
	nums, ok := numbers(args[:len(args)-1])
	if !ok {
		return
	}
	k := anim.Keyframe{Start: 0, End: s.duration, Accel: 1}
	switch len(nums) {
	case 0:
	case 1:
		k.Accel = nums[0]
	case 2:
		k.Start, k.End = int64(nums[0]), int64(nums[1])
	case 3:
		k.Start, k.End, k.Accel = int64(nums[0]), int64(nums[1]), nums[2]
	default:
		return
	}
	if k.Start == 0 && k.End == 0 {
		k.End = s.duration
	}
	s.res.Flags.Transform = true
	for _, cmd := range splitCommands(*args[len(args)-1].Tag) {
		name, _ := lookupCommand(cmd)
		p, ok := animatable[name]
		if !ok {
			continue
		}
		v, ok := leadingNumber(cmd[len(name):])
		if !ok {
			continue
		}
		k.Value = v
		if err := s.cur.Anim.Add(p, k); err != nil {
			s.capacityExceeded(p)
		}
	}
}

func (s *state) capacityExceeded(p anim.Property) {
	if s.err == nil {
		s.err = &subtitle.CapacityError{Resource: "keyframes", Required: anim.MaxKeyframes + 1, Limit: anim.MaxKeyframes}
	}
	if s.ip != nil && s.ip.Log != nil {
		s.ip.Log.Debug("keyframe dropped", slog.String("property", p.String()))
	}
}
