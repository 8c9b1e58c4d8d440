/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gosubrender/internal/subtitle"
)

const twoCaptions = "1\n00:00:01,000 --> 00:00:03,000\nHello world\n\n2\n00:00:02,000 --> 00:00:04,000\nSecond line\n"

func activeEngine(t *testing.T, opts Options, raw, name string) (*Engine, int) {
	t.Helper()
	e := New(opts, nil)
	id, err := e.AddStream([]byte(raw), name)
	if err != nil {
		t.Fatalf("AddStream: %v", err)
	}
	if err := e.ActivateStream(id); err != nil {
		t.Fatalf("ActivateStream: %v", err)
	}
	return e, id
}

func bigOutput() *Output { return &Output{Atlas: make([]byte, 4<<20)} }

func TestOverlappingCaptionsShareBatch(t *testing.T) {
	e, id := activeEngine(t, DefaultOptions(), twoCaptions, "movie.en.srt")
	out := bigOutput()
	n, err := e.Publish(id, 1500, out)
	if err != nil || n != 2 {
		t.Fatalf("Publish = %d, %v", n, err)
	}
	a, b := out.Rects[0], out.Rects[1]
	if a.Dialogue != 0 || b.Dialogue != 1 || a.Text != "Hello world" || b.Text != "Second line" {
		t.Fatalf("rects = %+v / %+v", a, b)
	}
	if b.Box.Bottom() > a.Box.Y {
		t.Fatalf("second caption not displaced above the first: a=%+v b=%+v", a.Box, b.Box)
	}
	if e.Cursor(id) != 2 {
		t.Fatalf("cursor = %d", e.Cursor(id))
	}
	if out.Width < 512 || out.Width%8 != 0 || out.Height <= 0 {
		t.Fatalf("atlas %dx%d", out.Width, out.Height)
	}
	var ink bool
	for _, p := range out.Atlas[:out.Width*out.Height] {
		if p != 0 {
			ink = true
			break
		}
	}
	if !ink {
		t.Fatalf("atlas is empty")
	}
	if a.AtlasRect.Dx() == 0 || a.AtlasRect.Overlaps(b.AtlasRect) {
		t.Fatalf("atlas cells a=%v b=%v", a.AtlasRect, b.AtlasRect)
	}
}

func TestLookaheadWindow(t *testing.T) {
	e, id := activeEngine(t, DefaultOptions(), twoCaptions, "a.srt")
	out := bigOutput()
	if n, _ := e.Publish(id, 0, out); n != 0 || e.Cursor(id) != 0 {
		t.Fatalf("nothing is due at 0: n=%d cursor=%d", n, e.Cursor(id))
	}
	if n, _ := e.Publish(id, 600, out); n != 2 {
		t.Fatalf("due within look-ahead: n=%d", n)
	}
	if n, _ := e.Publish(id, 700, out); n != 0 || len(out.Rects) != 0 {
		t.Fatalf("batch must not repeat: n=%d", n)
	}
}

func TestSkipsExpiredDialogues(t *testing.T) {
	e, id := activeEngine(t, DefaultOptions(), twoCaptions, "a.srt")
	if e.IsFinished(id, 0) {
		t.Fatalf("fresh stream reported finished")
	}
	if !e.IsFinished(id, 4000) {
		t.Fatalf("stream not finished after its last end")
	}
	out := bigOutput()
	n, _ := e.Publish(id, 2600, out)
	if n != 1 || out.Rects[0].Dialogue != 1 {
		t.Fatalf("n=%d rects=%+v", n, out.Rects)
	}
	if !e.IsFinished(id, 2600) || e.Cursor(id) != 2 {
		t.Fatalf("cursor = %d after the last batch", e.Cursor(id))
	}
}

func TestInactiveStreamPublishesNothing(t *testing.T) {
	e := New(DefaultOptions(), nil)
	a, _ := e.AddStream([]byte(twoCaptions), "a.srt")
	b, _ := e.AddStream([]byte(twoCaptions), "b.srt")
	if err := e.ActivateStream(b); err != nil {
		t.Fatalf("activate: %v", err)
	}
	n, err := e.Publish(a, 1500, bigOutput())
	if n != 0 || err != nil {
		t.Fatalf("inactive publish = %d, %v", n, err)
	}
	if n, _ := e.Publish(b, 1500, bigOutput()); n != 2 {
		t.Fatalf("active publish = %d", n)
	}
	if !e.IsFinished(a, 0) {
		t.Fatalf("a stream never activated is finished")
	}
}

func TestSmallBufferReportsRequiredSize(t *testing.T) {
	e, id := activeEngine(t, DefaultOptions(), twoCaptions, "a.srt")
	out := &Output{Atlas: make([]byte, 16)}
	n, err := e.Publish(id, 1500, out)
	var ce *subtitle.CapacityError
	if n >= 0 || !errors.As(err, &ce) || ce.Required != -n || ce.Limit != 16 {
		t.Fatalf("Publish = %d, %v", n, err)
	}
	if e.Cursor(id) != 0 {
		t.Fatalf("cursor advanced on failure: %d", e.Cursor(id))
	}
	for _, p := range out.Atlas {
		if p != 0 {
			t.Fatalf("partial write into small buffer")
		}
	}
	out.Atlas = make([]byte, -n)
	if n, err := e.Publish(id, 1500, out); n != 2 || err != nil {
		t.Fatalf("retry = %d, %v", n, err)
	}
}

type frame struct {
	n     int
	texts string
	boxes string
}

func replay(e *Engine, id int) []frame {
	out := bigOutput()
	var frames []frame
	for ts := int64(0); ts <= 5000; ts += 250 {
		n, _ := e.Publish(id, ts, out)
		var texts, boxes []string
		for _, r := range out.Rects {
			texts = append(texts, r.Text)
			boxes = append(boxes, fmt.Sprint(r.Box))
		}
		frames = append(frames, frame{n, strings.Join(texts, "|"), strings.Join(boxes, "|")})
	}
	return frames
}

func TestClearCacheReplaysIdentically(t *testing.T) {
	e, id := activeEngine(t, DefaultOptions(), twoCaptions, "a.srt")
	first := replay(e, id)
	e.ClearCache()
	second := replay(e, id)
	if len(first) != len(second) {
		t.Fatalf("frame count differs")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("frame %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestTimedCaptionBatchCap(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%d\n00:00:01,%03d --> 00:00:05,000\nline %d\n\n", i, i, i)
	}
	e, id := activeEngine(t, DefaultOptions(), b.String(), "many.srt")
	out := bigOutput()
	if n, _ := e.Publish(id, 1000, out); n != 3 {
		t.Fatalf("first batch = %d, want 3", n)
	}
	if n, _ := e.Publish(id, 1000, out); n != 2 {
		t.Fatalf("second batch = %d, want 2", n)
	}
}

const script = `[Script Info]
ScriptType: v4.00+
PlayResX: 384
PlayResY: 288

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,20,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1
Style: Sign,Arial,30,&H0000FFFF,&H000000FF,&H00000000,&H00000000,-1,0,0,0,100,100,0,0,1,2,2,8,10,10,10,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:04.00,Default,,0,0,0,,{\b1}Bold{\b0} normal\Nsecond line
Dialogue: 0,0:00:01.50,0:00:03.00,Sign,,0,0,0,,{\pos(192,20)}SIGN
Dialogue: 0,0:00:02.00,0:00:03.00,Default,,0,0,0,,third
`

func TestMarkupBatchAndFixedDialogue(t *testing.T) {
	e, id := activeEngine(t, DefaultOptions(), script, "show.ass")
	out := bigOutput()
	n, err := e.Publish(id, 1000, out)
	if err != nil || n != 5 {
		t.Fatalf("Publish = %d, %v (%+v)", n, err, out.Rects)
	}
	var sign, bold bool
	for _, r := range out.Rects {
		switch r.Text {
		case "SIGN":
			sign = true
			if !r.Fixed || r.Box.Y != 20*3.75 {
				t.Fatalf("sign rect moved: %+v", r.Box)
			}
		case "Bold":
			bold = r.Font.Weight == 700
		}
	}
	if !sign || !bold {
		t.Fatalf("rects = %+v", out.Rects)
	}
}

func TestRectCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRects = 2
	e, id := activeEngine(t, opts, script, "show.ass")
	out := bigOutput()
	n, err := e.Publish(id, 1000, out)
	if err != nil || n != 2 || len(out.Rects) != 2 {
		t.Fatalf("Publish = %d, %v", n, err)
	}
}

func TestDialogueFromMarkup(t *testing.T) {
	e, _ := activeEngine(t, DefaultOptions(), script, "show.ass")
	out := bigOutput()
	n, err := e.DialogueFromMarkup(`3,0,Sign,,0,0,0,,{\i1}embedded`, 10000, 12000, out)
	if err != nil || n != 1 {
		t.Fatalf("DialogueFromMarkup = %d, %v", n, err)
	}
	r := out.Rects[0]
	if r.Text != "embedded" || !r.Font.Italic || r.Font.Weight != 700 || r.Start != 10000 || r.Alignment != 8 {
		t.Fatalf("rect = %+v", r)
	}
	n, err = e.DialogueFromMarkup(`Dialogue: 0,0:00:05.00,0:00:06.00,Default,,0,0,0,,timed`, 0, 0, out)
	if err != nil || n != 1 || out.Rects[0].Start != 5000 {
		t.Fatalf("full line = %d, %v", n, err)
	}
	if n, err := e.DialogueFromMarkup("garbage", 0, 1000, out); n != 0 || err != nil {
		t.Fatalf("malformed = %d, %v", n, err)
	}

	fresh := New(DefaultOptions(), nil)
	if n, _ := fresh.DialogueFromMarkup(`0,0,Default,,0,0,0,,hi`, 0, 1000, bigOutput()); n != 1 {
		t.Fatalf("no active stream: n=%d", n)
	}
}

func TestStreamErrors(t *testing.T) {
	e := New(DefaultOptions(), nil)
	if err := e.ActivateStream(0); !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("activate unknown = %v", err)
	}
	if _, err := e.AddStream([]byte("just some words, nothing else"), "x.txt"); !errors.Is(err, subtitle.ErrNotSubtitle) {
		t.Fatalf("AddStream garbage = %v", err)
	}
	if n, err := e.Publish(0, 0, bigOutput()); n != 0 || err != nil {
		t.Fatalf("publish without streams = %d, %v", n, err)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.srt", "b.ass", "c.srt"} {
		p := filepath.Join(dir, name)
		body := twoCaptions
		if strings.HasSuffix(name, ".ass") {
			body = script
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		paths = append(paths, p)
	}
	e := New(DefaultOptions(), nil)
	ids, err := e.LoadFiles(context.Background(), paths...)
	if err != nil || len(ids) != 3 || ids[0] != 0 || ids[2] != 2 {
		t.Fatalf("LoadFiles = %v, %v", ids, err)
	}
	if err := e.ActivateStream(ids[1]); err != nil {
		t.Fatalf("activate: %v", err)
	}

	e = New(DefaultOptions(), nil)
	if _, err := e.LoadFiles(context.Background(), paths[0], filepath.Join(dir, "missing.srt")); err == nil {
		t.Fatalf("missing file must fail")
	}
	if e.Streams() != 0 {
		t.Fatalf("failed load registered %d streams", e.Streams())
	}
}
