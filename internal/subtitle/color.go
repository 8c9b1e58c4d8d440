/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package subtitle

import (
	"image/color"
	"strconv"
	"strings"
)

// ParseColor reads a script colour: "&HAABBGGRR", "&HBBGGRR&", "H00FF00" or
// a decimal integer. Channels missing from a short hex value are zero. The
// script alpha byte (transparency) is inverted into opacity.
func ParseColor(s string) (color.NRGBA, bool) {
	v, ok := parseColorValue(s)
	if !ok {
		return color.NRGBA{}, false
	}
	return color.NRGBA{
		R: uint8(v),
		G: uint8(v >> 8),
		B: uint8(v >> 16),
		A: 255 - uint8(v>>24),
	}, true
}

// ParseAlpha reads a transparency value like "&H80&" and returns opacity.
func ParseAlpha(s string) (uint8, bool) {
	v, ok := parseColorValue(s)
	if !ok {
		return 0, false
	}
	return 255 - uint8(v), true
}

func parseColorValue(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "&")
	s = strings.TrimLeft(s, "&")
	if s == "" {
		return 0, false
	}
	if s[0] == 'H' || s[0] == 'h' {
		hex := s[1:]
		n := 0
		for n < len(hex) && n < 8 && isHex(hex[n]) {
			n++
		}
		if n == 0 {
			return 0, false
		}
		v, err := strconv.ParseUint(hex[:n], 16, 32)
		if err != nil {
			return 0, false
		}
		return uint32(v), true
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// WithAlpha returns c with its opacity replaced.
func WithAlpha(c color.NRGBA, a uint8) color.NRGBA {
	c.A = a
	return c
}
