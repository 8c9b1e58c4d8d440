/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"errors"
	"log/slog"
	"math"
	"strings"

	"gosubrender/internal/collide"
	"gosubrender/internal/layout"
	"gosubrender/internal/override"
	"gosubrender/internal/subtitle"
)

// Publish lays out the batch of stream id due at ts into out and advances
// the stream's cursor past it. It returns the number of rectangles written.
// When out.Atlas is too small it returns minus the required size together
// with a *subtitle.CapacityError; nothing is written and the cursor stays,
// so the caller can retry with a larger buffer. Calls for a stream that is
// not active publish nothing.
func (e *Engine) Publish(id int, ts int64, out *Output) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != e.active || id < 0 || out == nil {
		return 0, nil
	}
	s := e.streams[id]
	ds := s.parsed.Dialogues
	horizon := ts + e.opts.Lookahead

	i := s.cursor
	for i < len(ds) && ds[i].End <= horizon {
		i++
	}
	if i == len(ds) || ds[i].Start > horizon {
		s.cursor = i
		out.Rects = out.Rects[:0]
		return 0, nil
	}
	limit := e.opts.MaxRects
	if s.parsed.Format.TimedCaption() {
		limit = e.opts.TimedCaptionBatch
	}
	first := ds[i]
	j := i + 1
	for j < len(ds) && j-i < limit && ds[j].Start < first.End {
		j++
	}

	n, err := e.publish(s.parsed, ds[i:j], out)
	if err != nil {
		return n, err
	}
	s.cursor = j
	return n, nil
}

// DialogueFromMarkup publishes a single event carried inside the media
// container: either a full "Dialogue:" line or a block payload
// "ReadOrder,Layer,Style,Name,MarginL,MarginR,MarginV,Effect,Text". start
// and end apply when the payload carries no times. Styles come from the
// active stream. Malformed input publishes nothing.
func (e *Engine) DialogueFromMarkup(raw string, start, end int64, out *Output) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if out == nil || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	st := e.embeddedStream()
	d, err := subtitle.ParseEventLine(raw, st.EventFormat)
	if err != nil {
		e.log.Debug("embedded event rejected", slog.Any("err", err))
		out.Rects = out.Rects[:0]
		return 0, nil
	}
	if d.Start == 0 && d.End == 0 {
		d.Start, d.End = start, end
	}
	if d.End <= d.Start {
		out.Rects = out.Rects[:0]
		return 0, nil
	}
	return e.publish(st, []subtitle.Dialogue{d}, out)
}

// embeddedStream returns the active stream, or an empty markup stream with
// the default style when none is active.
func (e *Engine) embeddedStream() *subtitle.Stream {
	if e.active >= 0 {
		return e.streams[e.active].parsed
	}
	st := &subtitle.Stream{
		Format:      subtitle.FormatASS,
		Info:        subtitle.ScriptInfo{PlayResX: 384, PlayResY: 288},
		Styles:      subtitle.NewStyleTable(e.opts.Ingest.MaxStyles, e.opts.Ingest.DefaultStyle),
		EventFormat: subtitle.CanonicalEventFormat,
	}
	e.interp = override.New(st.Styles)
	e.layout = layout.New(e.backend, e.canvas(st.Info), e.opts.Layout)
	return st
}

// publish lays out, collision-resolves, packs and rasterises one batch.
func (e *Engine) publish(st *subtitle.Stream, batch []subtitle.Dialogue, out *Output) (int, error) {
	dialect := override.Markup
	if st.Format.TimedCaption() {
		dialect = override.TimedCaption
	}
	laid := make([]layout.Laid, 0, len(batch))
	boxes := make([]collide.DialogueRect, 0, len(batch))
	for _, d := range batch {
		style := st.Styles.Lookup(d.Style)
		res, err := e.interp.Interpret(override.Input{
			Text:      d.Text,
			Style:     style,
			Dialect:   dialect,
			Duration:  d.Duration(),
			WrapStyle: st.Info.WrapStyle,
		})
		var ce *subtitle.CapacityError
		if errors.As(err, &ce) {
			e.log.Warn("animation keyframes dropped", slog.Int("dialogue", d.ID), slog.Int("limit", ce.Limit))
		}
		l := e.layout.Layout(layout.Input{Dialogue: d, Style: style, Result: res, WrapStyle: st.Info.WrapStyle})
		laid = append(laid, l)
		boxes = append(boxes, l.Box)
	}

	mode := st.Info.Collisions
	switch strings.ToLower(e.opts.Collisions) {
	case "normal":
		mode = subtitle.CollisionsNormal
	case "reverse":
		mode = subtitle.CollisionsReverse
	}
	dy := collide.Resolve(boxes, mode, float32(e.opts.RenderHeight))

	rects := out.Rects[:0]
collect:
	for k, l := range laid {
		for _, r := range l.Rects {
			if len(rects) == e.opts.MaxRects {
				e.log.Debug("rectangle cap reached", slog.Int("cap", e.opts.MaxRects), slog.Int("dialogue", r.Dialogue))
				break collect
			}
			r.Offset(dy[k])
			rects = append(rects, r)
		}
	}

	e.atlas.Reset()
	cells := make([]int, len(rects))
	for i, r := range rects {
		cells[i] = e.atlas.Reserve(int(math.Ceil(float64(r.Box.W))), int(math.Ceil(float64(r.Box.H))))
	}
	required := e.atlas.Required()
	if required > len(out.Atlas) {
		out.Rects = rects[:0]
		return -required, &subtitle.CapacityError{Resource: "atlas", Required: required, Limit: len(out.Atlas)}
	}
	buf := out.Atlas[:required]
	clear(buf)
	for i := range rects {
		mask := e.backend.Rasterize(rects[i].Font, rects[i].Text)
		e.atlas.Blit(buf, cells[i], mask)
		rects[i].AtlasRect = e.atlas.Cell(cells[i])
	}
	out.Width, out.Height = e.atlas.Width(), e.atlas.Height()
	out.Rects = rects
	return len(rects), nil
}
