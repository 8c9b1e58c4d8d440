/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package charset turns raw subtitle bytes into UTF-8 text. It strips byte
// order marks and decodes legacy codepages through golang.org/x/text.
package charset

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnsupportedCodepage is returned for codepage names that cannot be resolved.
var ErrUnsupportedCodepage = errors.New("charset: unsupported codepage")

// Auto asks Normalize to detect the encoding.
const Auto = "auto"

// Result is normalized text plus the codepage it was decoded from.
type Result struct {
	Text     string
	Codepage string
	HadBOM   bool
	// Guessed is set when auto detection fell back to windows-1252.
	Guessed bool
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// aliases covers the Windows codepage spellings common in subtitle tooling
// that the WHATWG index does not know.
var aliases = map[string]encoding.Encoding{
	"cp932":     japanese.ShiftJIS,
	"sjis":      japanese.ShiftJIS,
	"shift-jis": japanese.ShiftJIS,
	"cp936":     simplifiedchinese.GBK,
	"gb2312":    simplifiedchinese.GBK,
	"cp949":     korean.EUCKR,
	"cp950":     traditionalchinese.Big5,
	"cp437":     charmap.CodePage437,
	"cp850":     charmap.CodePage850,
	"cp866":     charmap.CodePage866,
	"utf-16":    unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16le":  unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16be":  unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// Lookup resolves a codepage name such as "windows-1251", "cp1251" or "big5".
func Lookup(name string) (encoding.Encoding, string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == Auto {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedCodepage, name)
	}
	if n == "utf-8" || n == "utf8" {
		return encoding.Nop, "utf-8", nil
	}
	if e, ok := aliases[n]; ok {
		return e, n, nil
	}
	if strings.HasPrefix(n, "cp12") {
		n = "windows-" + strings.TrimPrefix(n, "cp")
	}
	e, err := htmlindex.Get(n)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedCodepage, name)
	}
	canon, err := htmlindex.Name(e)
	if err != nil {
		canon = n
	}
	return e, canon, nil
}

// Normalize decodes raw into UTF-8. A BOM always wins over hint. Without a BOM
// and with hint "" or "auto", NUL-interleaved input is read as UTF-16,
// valid UTF-8 is kept and everything else is read as windows-1252.
func Normalize(raw []byte, hint string) (Result, error) {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return Result{Text: string(raw[len(bomUTF8):]), Codepage: "utf-8", HadBOM: true}, nil
	case bytes.HasPrefix(raw, bomUTF16LE):
		s, err := decode(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), raw[2:])
		return Result{Text: s, Codepage: "utf-16le", HadBOM: true}, err
	case bytes.HasPrefix(raw, bomUTF16BE):
		s, err := decode(unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), raw[2:])
		return Result{Text: s, Codepage: "utf-16be", HadBOM: true}, err
	}

	h := strings.ToLower(strings.TrimSpace(hint))
	if h != "" && h != Auto {
		enc, name, err := Lookup(h)
		if err != nil {
			return Result{}, err
		}
		s, err := decode(enc, raw)
		return Result{Text: s, Codepage: name}, err
	}

	if order, ok := sniffUTF16(raw); ok {
		s, err := decode(unicode.UTF16(order, unicode.IgnoreBOM), raw)
		name := "utf-16le"
		if order == unicode.BigEndian {
			name = "utf-16be"
		}
		return Result{Text: s, Codepage: name}, err
	}
	if utf8.Valid(raw) {
		return Result{Text: string(raw), Codepage: "utf-8"}, nil
	}
	s, err := decode(charmap.Windows1252, raw)
	return Result{Text: s, Codepage: "windows-1252", Guessed: true}, err
}

func decode(enc encoding.Encoding, b []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(out), nil
}

// sniffUTF16 recognises BOM-less UTF-16 of mostly ASCII text by its NUL bytes.
func sniffUTF16(b []byte) (unicode.Endianness, bool) {
	n := min(len(b), 512) &^ 1
	if n < 4 {
		return unicode.LittleEndian, false
	}
	var evenNul, oddNul int
	for i := 0; i < n; i += 2 {
		if b[i] == 0 {
			evenNul++
		}
		if b[i+1] == 0 {
			oddNul++
		}
	}
	pairs := n / 2
	switch {
	case oddNul*10 >= pairs*8 && evenNul == 0:
		return unicode.LittleEndian, true
	case evenNul*10 >= pairs*8 && oddNul == 0:
		return unicode.BigEndian, true
	}
	return unicode.LittleEndian, false
}

// CodepageForEncoding maps the numeric font charset of a style record to a
// codepage name; unknown ids return "".
func CodepageForEncoding(id int) string {
	switch id {
	case 0, 1:
		return "windows-1252"
	case 128:
		return "shift_jis"
	case 129:
		return "euc-kr"
	case 134:
		return "gbk"
	case 136:
		return "big5"
	case 161:
		return "windows-1253"
	case 162:
		return "windows-1254"
	case 163:
		return "windows-1258"
	case 177:
		return "windows-1255"
	case 178:
		return "windows-1256"
	case 186:
		return "windows-1257"
	case 204:
		return "windows-1251"
	case 222:
		return "windows-874"
	case 238:
		return "windows-1250"
	}
	return ""
}

// IsCJK reports whether a style encoding id selects an East Asian charset.
func IsCJK(id int) bool {
	switch id {
	case 128, 129, 134, 136:
		return true
	}
	return false
}
