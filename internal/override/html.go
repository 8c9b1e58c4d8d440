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
	"strconv"
	"strings"
)

type htmlTag struct {
	name    string
	closing bool
	attrs   map[string]string
}

// parseHTMLTag recognises the inline tags timed captions use. The name must
// follow '<' or '</' directly. Anything else is reported as not a tag and
// printed verbatim by the caller.
func parseHTMLTag(s string) (htmlTag, bool) {
	s = strings.TrimRight(s, " \t")
	var t htmlTag
	if strings.HasPrefix(s, "/") {
		t.closing = true
		s = s[1:]
	}
	if s == "" || s[0] == ' ' || s[0] == '\t' {
		return htmlTag{}, false
	}
	name, rest, _ := strings.Cut(s, " ")
	t.name = strings.ToLower(name)
	switch t.name {
	case "b", "i", "u", "s":
		return t, strings.TrimSpace(rest) == ""
	case "font":
		if !t.closing {
			t.attrs = parseAttrs(rest)
		}
		return t, true
	}
	return htmlTag{}, false
}

func parseAttrs(s string) map[string]string {
	attrs := map[string]string{}
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		k := i
		for i < len(s) && s[i] != '=' && s[i] != ' ' {
			i++
		}
		key := strings.ToLower(s[k:i])
		if i >= len(s) || s[i] != '=' {
			if key != "" {
				attrs[key] = ""
			}
			continue
		}
		i++
		var val string
		if i < len(s) && (s[i] == '"' || s[i] == '\'') {
			q := s[i]
			i++
			v := i
			for i < len(s) && s[i] != q {
				i++
			}
			val = s[v:i]
			if i < len(s) {
				i++
			}
		} else {
			v := i
			for i < len(s) && s[i] != ' ' {
				i++
			}
			val = s[v:i]
		}
		if key != "" {
			attrs[key] = val
		}
	}
	return attrs
}

var namedColors = map[string]color.NRGBA{
	"white":   {255, 255, 255, 255},
	"black":   {0, 0, 0, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"lime":    {0, 255, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"aqua":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"fuchsia": {255, 0, 255, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"silver":  {192, 192, 192, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
}

// parseWebColor reads "#rrggbb", "rrggbb", "#rgb" or a colour name.
func parseWebColor(s string) (color.NRGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}
