/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package subtitle

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/language"
)

func TestIngestTimedCaptions(t *testing.T) {
	src := "1\n00:00:01,000 --> 00:00:03,000\nHello\n\n2\n00:00:02,000 --> 00:00:04,000\nWorld\n"
	st, err := Ingest([]byte(src), "clip.en.srt", DefaultOptions())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if st.Format != FormatSRT || st.Language != language.English {
		t.Fatalf("tag = (%v, %v)", st.Format, st.Language)
	}
	if len(st.Dialogues) != 2 {
		t.Fatalf("dialogues = %d, want 2", len(st.Dialogues))
	}
	d := st.Dialogues[0]
	if d.Start != 1000 || d.End != 3000 || d.Text != "Hello" || d.Style != DefaultStyleID {
		t.Fatalf("first dialogue = %+v", d)
	}
	if st.Dialogues[1].Text != "World" || st.Dialogues[1].ID != 1 {
		t.Fatalf("second dialogue = %+v", st.Dialogues[1])
	}
	if !strings.Contains(st.Buffer, d.Text) {
		t.Fatalf("dialogue text must come from the buffer")
	}
	if st.Info.PlayResY != 288 || st.Info.PlayResX != 512 {
		t.Fatalf("caption canvas = %dx%d", st.Info.PlayResX, st.Info.PlayResY)
	}
}

func TestTimedCaptionsSortedAndCRLF(t *testing.T) {
	src := "1\r\n00:00:05,000 --> 00:00:06,000\r\nlater\r\n\r\n2\r\n00:00:01,000 --> 00:00:02,000\r\nearlier\r\n"
	st, err := Ingest([]byte(src), "x.srt", DefaultOptions())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if st.Dialogues[0].Text != "earlier" || st.Dialogues[1].Text != "later" {
		t.Fatalf("not sorted by start: %+v", st.Dialogues)
	}
}

func TestTimedCaptionsResyncOnMalformedTiming(t *testing.T) {
	src := strings.Join([]string{
		"1",
		"00:00:01,000 --> 00:00:02,000",
		"good one",
		"",
		"2",
		"00:00:xx,000 --> 00:00:03,000",
		"broken",
		"",
		"3",
		"00:00:04,5 --> 00:00:05.25",
		"good two",
		"",
		"4",
		"00:00:06:000 --> 00:00:07:05",
		"colon fraction",
	}, "\n")
	st, err := Ingest([]byte(src), "x.srt", DefaultOptions())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(st.Dialogues) != 3 {
		t.Fatalf("dialogues = %+v", st.Dialogues)
	}
	if st.Dialogues[0].Text != "good one" {
		t.Fatalf("broken record leaked into previous: %q", st.Dialogues[0].Text)
	}
	if d := st.Dialogues[1]; d.Start != 4500 || d.End != 5250 || d.Text != "good two" {
		t.Fatalf("fraction handling: %+v", d)
	}
	if d := st.Dialogues[2]; d.Start != 6000 || d.End != 7050 || d.Text != "colon fraction" {
		t.Fatalf("colon separator: %+v", d)
	}
}

func TestTimedCaptionsTruncatedToMaxLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("1\n00:00:01,000 --> 00:00:02,000\n")
	for i := 0; i < 14; i++ {
		b.WriteString("line\n")
	}
	st, err := Ingest([]byte(b.String()), "x.srt", DefaultOptions())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n := strings.Count(st.Dialogues[0].Text, "\n") + 1; n != 10 {
		t.Fatalf("lines = %d, want 10", n)
	}
}

func TestTimedCaptionsRejectEmptyRange(t *testing.T) {
	src := "1\n00:00:03,000 --> 00:00:03,000\nzero\n\n2\n00:00:04,000 --> 00:00:05,000\nok\n"
	st, err := Ingest([]byte(src), "x.srt", DefaultOptions())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(st.Dialogues) != 1 || st.Dialogues[0].Text != "ok" {
		t.Fatalf("dialogues = %+v", st.Dialogues)
	}
}

func TestIngestNotSubtitle(t *testing.T) {
	cases := map[string]string{
		"too short":   "1\n",
		"plain prose": "Once upon a time there was no subtitle here.\n",
		"header only": "[Script Info]\nTitle: nothing\n",
	}
	for name, src := range cases {
		if _, err := Ingest([]byte(src), "x", DefaultOptions()); !errors.Is(err, ErrNotSubtitle) {
			t.Fatalf("%s: err = %v, want ErrNotSubtitle", name, err)
		}
	}
}

const sampleScript = `[Script Info]
Title: sample
ScriptType: v4.00+
PlayResX: 1280
WrapStyle: 2
Collisions: Reverse

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,20,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1
Style: Sign,Verdana,32,&H0000FFFF,&H000000FF,&H00000000,&H00000000,-1,1,0,0,120,100,1,0,3,1,0,8,5,5,20,0

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:02.00,0:00:04.00,Sign,,0,0,0,,{\an8}Top, with, commas
Comment: 0,0:00:00.00,0:00:09.00,Default,,0,0,0,,ignored
Dialogue: 1,0:00:01.50,0:00:03.00,Default,Alice,0,0,0,,Hello\NWorld
`

func TestParseMarkupScript(t *testing.T) {
	st, err := Parse(sampleScript, "sample.ass", DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if st.Format != FormatASS {
		t.Fatalf("format = %v", st.Format)
	}
	if st.Info.PlayResX != 1280 || st.Info.PlayResY != 1024 {
		t.Fatalf("play res = %dx%d", st.Info.PlayResX, st.Info.PlayResY)
	}
	if st.Info.WrapStyle != 2 || st.Info.Collisions != CollisionsReverse {
		t.Fatalf("info = %+v", st.Info)
	}
	if st.Styles.Len() != 2 {
		t.Fatalf("styles = %d, want 2 (Default replaced + Sign)", st.Styles.Len())
	}
	sign, ok := st.Styles.LookupName("sign")
	if !ok {
		t.Fatalf("style lookup must ignore case")
	}
	if sign.FontName != "Verdana" || sign.Weight != 700 || !sign.Italic || sign.Alignment != 8 || sign.BorderStyle != 3 {
		t.Fatalf("sign style = %+v", sign)
	}
	if sign.Primary.R != 0xFF || sign.Primary.G != 0xFF || sign.Primary.B != 0 || sign.Primary.A != 255 {
		t.Fatalf("primary = %+v", sign.Primary)
	}
	if def := st.Styles.Default(); def.Back.A != 0x7F || def.FontSize != 20 {
		t.Fatalf("default style = %+v", def)
	}
	if len(st.Dialogues) != 2 {
		t.Fatalf("dialogues = %d", len(st.Dialogues))
	}
	first := st.Dialogues[0]
	if first.Start != 1500 || first.Actor != "Alice" || first.Layer != 1 || first.Text != `Hello\NWorld` {
		t.Fatalf("first = %+v", first)
	}
	second := st.Dialogues[1]
	if second.Text != `{\an8}Top, with, commas` || second.Style != sign.ID {
		t.Fatalf("second = %+v", second)
	}
	if st.Styles.Lookup(HashStyleName("missing")).Name != "Default" {
		t.Fatalf("unknown style must fall back to default")
	}
}

func TestIngestUsesStyleEncodingForLegacyBytes(t *testing.T) {
	line, err := japanese.ShiftJIS.NewEncoder().String("日本語")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	src := strings.Replace(sampleScript, "Hello\\NWorld", line, 1)
	src = strings.Replace(src, "8,5,5,20,0", "8,5,5,20,128", 1)
	st, err := Ingest([]byte(src), "jp.ass", DefaultOptions())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if st.Codepage != "shift_jis" {
		t.Fatalf("codepage = %q", st.Codepage)
	}
	if st.Dialogues[0].Text != "日本語" {
		t.Fatalf("text = %q", st.Dialogues[0].Text)
	}

	plain, err := Ingest([]byte(strings.Replace(sampleScript, "World", "Wörld", 1)), "x.ass", DefaultOptions())
	if err != nil {
		t.Fatalf("ingest utf-8: %v", err)
	}
	if plain.Codepage != "utf-8" {
		t.Fatalf("utf-8 input re-decoded as %q", plain.Codepage)
	}
}

func TestShortEventFormatFallsBack(t *testing.T) {
	src := "[Events]\nFormat: Start, End, Text\nDialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,fallback text\n"
	st, err := Parse(src, "x.ass", DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if st.Dialogues[0].Text != "fallback text" || st.Dialogues[0].End != 2000 {
		t.Fatalf("dialogue = %+v", st.Dialogues[0])
	}
}

func TestLegacyStyleAlignment(t *testing.T) {
	src := "[Script Info]\nScriptType: v4.00\n\n[V4 Styles]\n" +
		"Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, TertiaryColour, BackColour, Bold, Italic, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, AlphaLevel, Encoding\n" +
		"Style: Top,Arial,20,16777215,255,0,0,0,0,1,2,2,6,10,10,10,0,0\n" +
		"\n[Events]\nFormat: Marked, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n" +
		"Dialogue: Marked=0,0:00:01.00,0:00:02.00,Top,,0,0,0,,old school\n"
	st, err := Parse(src, "x.ssa", DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if st.Format != FormatSSA {
		t.Fatalf("format = %v", st.Format)
	}
	top, _ := st.Styles.LookupName("Top")
	if top.Alignment != 8 {
		t.Fatalf("legacy alignment 6 -> numpad %d, want 8", top.Alignment)
	}
	if top.Primary.R != 255 || top.Primary.G != 255 || top.Primary.B != 255 {
		t.Fatalf("decimal colour = %+v", top.Primary)
	}
}

func TestStyleTableCapacity(t *testing.T) {
	tbl := NewStyleTable(2, DefaultStyle())
	if err := tbl.Add(Style{Name: "A"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := tbl.Add(Style{Name: "B"})
	var ce *CapacityError
	if !errors.As(err, &ce) || ce.Required != 3 || ce.Limit != 2 {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if err := tbl.Add(Style{Name: "a", FontSize: 40}); err != nil {
		t.Fatalf("replacing an existing style must not hit the limit: %v", err)
	}
	if s, _ := tbl.LookupName("A"); s.FontSize != 40 {
		t.Fatalf("style not replaced: %+v", s)
	}
}

func TestHashStyleName(t *testing.T) {
	if HashStyleName("Default") != DefaultStyleID || HashStyleName("*Default") != DefaultStyleID {
		t.Fatalf("default must hash to 0")
	}
	if HashStyleName("Sign") == DefaultStyleID || HashStyleName("Sign") != HashStyleName(" sign ") {
		t.Fatalf("hash must be stable and non-zero")
	}
}

func TestParseEventLine(t *testing.T) {
	d, err := ParseEventLine(`Dialogue: 0,0:00:01.00,0:00:02.50,Sign,,0,0,0,,hi, there`, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Start != 1000 || d.End != 2500 || d.Text != "hi, there" || d.Style != HashStyleName("Sign") {
		t.Fatalf("dialogue = %+v", d)
	}
	blk, err := ParseEventLine(`7,0,Default,,0,0,0,,{\i1}block`, nil)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if blk.Text != `{\i1}block` || blk.Start != 0 || blk.End != 0 {
		t.Fatalf("block = %+v", blk)
	}
	if _, err := ParseEventLine("Dialogue: nope", nil); err == nil {
		t.Fatalf("expected error for truncated event")
	}
}

func TestParseColor(t *testing.T) {
	c, ok := ParseColor("&H80FF0000")
	if !ok || c.B != 0xFF || c.R != 0 || c.A != 0x7F {
		t.Fatalf("colour = %+v", c)
	}
	c, ok = ParseColor("&HFF&")
	if !ok || c.R != 0xFF || c.G != 0 || c.B != 0 || c.A != 255 {
		t.Fatalf("short colour = %+v", c)
	}
	if _, ok := ParseColor("&Hzz&"); ok {
		t.Fatalf("invalid colour accepted")
	}
	if a, ok := ParseAlpha("&HFF&"); !ok || a != 0 {
		t.Fatalf("alpha = %d", a)
	}
}

func TestIngestWebVTT(t *testing.T) {
	src := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nfirst cue\n\n00:00:03.000 --> 00:00:04.500\nsecond\ncue\n"
	st, err := Ingest([]byte(src), "talk.de.vtt", DefaultOptions())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if st.Format != FormatVTT || st.Language != language.German {
		t.Fatalf("tag = (%v, %v)", st.Format, st.Language)
	}
	if len(st.Dialogues) != 2 || st.Dialogues[1].Text != "second\ncue" || st.Dialogues[1].End != 4500 {
		t.Fatalf("dialogues = %+v", st.Dialogues)
	}
}
