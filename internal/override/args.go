/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package override

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// argList is the parenthesised argument list of tags such as \pos, \move,
// \org, \fad, \fade and \t. Nested tags (the animated part of \t) are kept
// as raw strings.
type argList struct {
	Args []*argValue `"(" ( @@ ( "," @@ )* )? ")"`
}

type argValue struct {
	Number *float64 `  @Number`
	Tag    *string  `| @Tag`
	Word   *string  `| @Word`
}

var argLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Tag", Pattern: `\\[^,()]+`},
	{Name: "Number", Pattern: `[-+]?(\d+(\.\d*)?|\.\d+)`},
	{Name: "Word", Pattern: `[^,()\s\\]+`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var argParser = participle.MustBuild[argList](
	participle.Lexer(argLexer),
	participle.Elide("Whitespace"),
)

// parseArgs parses "(a, b, ...)". ok is false for malformed lists.
func parseArgs(s string) ([]*argValue, bool) {
	list, err := argParser.ParseString("", s)
	if err != nil {
		return nil, false
	}
	return list.Args, true
}

// numbers returns the arguments as floats, failing if any is not numeric.
func numbers(args []*argValue) ([]float64, bool) {
	out := make([]float64, len(args))
	for i, a := range args {
		if a.Number == nil {
			return nil, false
		}
		out[i] = *a.Number
	}
	return out, true
}

// leadingNumber parses the numeric prefix of a bare tag argument such as
// "20" in \fs20 or "-15.5" in \frz-15.5.
func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := false
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		if s[end] != '.' {
			digits = true
		}
		end++
	}
	if !digits {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
