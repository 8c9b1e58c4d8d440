/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package override

import "strings"

// Dialect selects which inline markup is recognised.
type Dialect uint8

const (
	// Markup is the script dialect: {\tag} groups and \N, \n, \h escapes.
	Markup Dialect = iota
	// TimedCaption additionally honours <b>, <i>, <u>, <s> and <font> tags
	// and treats physical newlines as hard breaks.
	TimedCaption
)

// visitor receives the pieces of a dialogue text in order.
type visitor interface {
	text(s string)
	block(body string)
	// html returns false when the tag is not recognised and should be
	// printed literally.
	html(tag string) bool
}

// scan walks text and reports visible runs, {...} override blocks and, for
// TimedCaption, <...> tags. softBreak decides whether \n is a line break.
func scan(text string, dialect Dialect, softBreak bool, v visitor) {
	i := 0
	for i < len(text) {
		switch c := text[i]; {
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				v.text(text[i:])
				return
			}
			v.block(text[i+1 : i+1+end])
			i += end + 2
		case c == '\\' && i+1 < len(text):
			switch text[i+1] {
			case 'N':
				v.text("\n")
			case 'n':
				if softBreak {
					v.text("\n")
				} else {
					v.text(" ")
				}
			case 'h':
				v.text("\u00a0")
			default:
				v.text(`\`)
				i++
				continue
			}
			i += 2
		case c == '<' && dialect == TimedCaption:
			end := strings.IndexByte(text[i:], '>')
			if end > 1 && v.html(text[i+1:i+end]) {
				i += end + 1
				continue
			}
			v.text("<")
			i++
		case c == '\n' && dialect == Markup:
			v.text(" ")
			i++
		default:
			j := i + 1
			for j < len(text) && !special(text[j], dialect) {
				j++
			}
			v.text(text[i:j])
			i = j
		}
	}
}

func special(c byte, d Dialect) bool {
	switch c {
	case '{', '\\':
		return true
	case '<':
		return d == TimedCaption
	case '\n':
		return d == Markup
	}
	return false
}

// splitCommands splits the body of an override block into tag bodies
// without the leading backslash. Backslashes inside parentheses belong to
// the enclosing tag, so \t(0,500,\fs20) stays one command.
func splitCommands(body string) []string {
	var out []string
	start := -1
	depth := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '\\':
			if depth > 0 {
				continue
			}
			if start >= 0 {
				out = append(out, body[start:i])
			}
			start = i + 1
		}
	}
	if start >= 0 && start <= len(body) {
		out = append(out, body[start:])
	}
	return out
}

// StripTags returns the visible text of a dialogue: override blocks and
// recognised caption tags removed, escapes resolved.
func StripTags(text string, dialect Dialect, wrapStyle int) string {
	var s stripper
	scan(text, dialect, wrapStyle == 2 || dialect == TimedCaption, &s)
	return s.b.String()
}

type stripper struct{ b strings.Builder }

func (s *stripper) text(t string) { s.b.WriteString(t) }
func (s *stripper) block(string)  {}
func (s *stripper) html(tag string) bool {
	_, ok := parseHTMLTag(tag)
	return ok
}

// FontNames lists the families a text switches to with \fn, in order of
// appearance.
func FontNames(text string) []string {
	var fc fontCollector
	scan(text, Markup, false, &fc)
	return fc.names
}

type fontCollector struct{ names []string }

func (*fontCollector) text(string)      {}
func (*fontCollector) html(string) bool { return false }

func (f *fontCollector) block(body string) {
	for _, cmd := range splitCommands(body) {
		if name, _ := lookupCommand(cmd); name == "fn" {
			if fam := strings.TrimPrefix(strings.TrimSpace(cmd[2:]), "@"); fam != "" && fam != "0" {
				f.names = append(f.names, fam)
			}
		}
	}
}
