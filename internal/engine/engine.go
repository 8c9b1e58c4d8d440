/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine is the publisher: it owns the registered streams, tracks
// which one is active and hands out the batch of rectangles due at a
// timestamp.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"gosubrender/internal/charset"
	"gosubrender/internal/layout"
	applog "gosubrender/internal/log"
	"gosubrender/internal/override"
	"gosubrender/internal/subtitle"
	"gosubrender/internal/textlayout"
)

// ErrUnknownStream is returned for stream ids that were never registered.
var ErrUnknownStream = errors.New("unknown stream")

// Options configures an Engine.
type Options struct {
	RenderWidth  int
	RenderHeight int
	// Lookahead in ms: dialogues ending within it are skipped, dialogues
	// starting within it are published early.
	Lookahead int64
	// MaxRects caps the rectangles of one batch, and the dialogues of a
	// markup batch.
	MaxRects int
	// TimedCaptionBatch caps the dialogues of a timed-caption batch.
	TimedCaptionBatch int
	// Collisions overrides the script policy: "", "normal" or "reverse".
	Collisions    string
	AtlasMinWidth int
	AtlasAlign    int
	Ingest        subtitle.Options
	Layout        layout.Options

	// FontLibrary, when set with FontSource, is filled on activation with
	// the families the stream uses.
	FontLibrary *textlayout.FontLibrary
	FontSource  textlayout.FaceSource
}

func DefaultOptions() Options {
	return Options{
		RenderWidth:       1920,
		RenderHeight:      1080,
		Lookahead:         500,
		MaxRects:          64,
		TimedCaptionBatch: 3,
		AtlasMinWidth:     textlayout.DefaultAtlasMinWidth,
		AtlasAlign:        textlayout.DefaultAtlasAlign,
		Ingest:            subtitle.DefaultOptions(),
		Layout: layout.Options{
			BreakThreshold: textlayout.DefaultBreakThreshold,
			DefaultFamily:  "Arial",
		},
	}
}

// Output receives a published batch. Atlas is caller-owned and reused; the
// engine writes an 8-bit coverage texture of Width×Height into its start.
type Output struct {
	Atlas  []byte
	Width  int
	Height int
	Rects  []layout.SubtitleRect
}

type stream struct {
	name     string
	text     string
	codepage string
	parsed   *subtitle.Stream
	cursor   int
	lastEnd  int64
}

// Engine is safe for concurrent use; one mutex serialises every operation.
type Engine struct {
	mu      sync.Mutex
	opts    Options
	backend textlayout.Backend
	log     *slog.Logger

	streams []*stream
	active  int
	layout  *layout.Engine
	interp  *override.Interpreter
	atlas   *textlayout.Atlas
}

// New creates an engine drawing with backend; a nil backend uses the basic
// fixed face.
func New(opts Options, backend textlayout.Backend) *Engine {
	def := DefaultOptions()
	if opts.RenderWidth <= 0 || opts.RenderHeight <= 0 {
		opts.RenderWidth, opts.RenderHeight = def.RenderWidth, def.RenderHeight
	}
	if opts.Lookahead < 0 {
		opts.Lookahead = 0
	}
	if opts.MaxRects <= 0 {
		opts.MaxRects = def.MaxRects
	}
	if opts.TimedCaptionBatch <= 0 {
		opts.TimedCaptionBatch = def.TimedCaptionBatch
	}
	if opts.Ingest.DefaultStyle.FontName == "" {
		opts.Ingest = def.Ingest
	}
	if opts.Ingest.VideoWidth <= 0 || opts.Ingest.VideoHeight <= 0 {
		opts.Ingest.VideoWidth, opts.Ingest.VideoHeight = opts.RenderWidth, opts.RenderHeight
	}
	if backend == nil {
		backend = textlayout.NewFaceBackend(nil)
	}
	return &Engine{
		opts:    opts,
		backend: backend,
		log:     applog.WithComponent("engine"),
		active:  -1,
		atlas:   textlayout.NewAtlas(opts.AtlasMinWidth, opts.AtlasAlign),
	}
}

// AddStream validates and registers a subtitle file. The returned id is
// used with ActivateStream and Publish.
func (e *Engine) AddStream(raw []byte, name string) (int, error) {
	st, err := subtitle.Ingest(raw, name, e.opts.Ingest)
	if err != nil {
		return -1, fmt.Errorf("add %s: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.register(name, st), nil
}

// LoadFiles reads, normalises and parses files concurrently and registers
// them in path order. Nothing is registered if any file fails.
func (e *Engine) LoadFiles(ctx context.Context, paths ...string) ([]int, error) {
	parsed := make([]*subtitle.Stream, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			st, err := subtitle.Ingest(raw, p, e.opts.Ingest)
			if err != nil {
				return fmt.Errorf("load %s: %w", p, err)
			}
			parsed[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int, len(paths))
	for i, st := range parsed {
		ids[i] = e.register(paths[i], st)
	}
	return ids, nil
}

func (e *Engine) register(name string, st *subtitle.Stream) int {
	e.streams = append(e.streams, &stream{name: name, text: st.Buffer, codepage: st.Codepage})
	id := len(e.streams) - 1
	e.log.Debug("stream registered", slog.Int("stream", id), slog.String("name", name), slog.String("format", string(st.Format)))
	return id
}

// Streams returns the number of registered streams.
func (e *Engine) Streams() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.streams)
}

// ActivateStream re-parses the stream's styles and dialogues, resets its
// cursor and makes it the one Publish serves.
func (e *Engine) ActivateStream(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id < 0 || id >= len(e.streams) {
		return fmt.Errorf("activate %d: %w", id, ErrUnknownStream)
	}
	s := e.streams[id]
	opts := e.opts.Ingest
	opts.Codepage = charset.Auto
	st, err := subtitle.Parse(s.text, s.name, opts)
	if err != nil {
		return fmt.Errorf("activate %d: %w", id, err)
	}
	st.Codepage = s.codepage
	s.parsed = st
	s.cursor = 0
	s.lastEnd = 0
	for _, d := range st.Dialogues {
		s.lastEnd = max(s.lastEnd, d.End)
	}

	e.active = id
	e.interp = override.New(st.Styles)
	e.layout = layout.New(e.backend, e.canvas(st.Info), e.opts.Layout)
	e.loadFonts(st)
	e.log.Info("stream activated",
		slog.Int("stream", id),
		slog.String("name", s.name),
		slog.String("format", string(st.Format)),
		slog.String("lang", st.Language.String()),
		slog.Int("dialogues", len(st.Dialogues)),
		slog.Int("styles", st.Styles.Len()),
	)
	return nil
}

func (e *Engine) canvas(info subtitle.ScriptInfo) layout.Canvas {
	return layout.Canvas{
		PlayResX: float32(info.PlayResX),
		PlayResY: float32(info.PlayResY),
		Width:    float32(e.opts.RenderWidth),
		Height:   float32(e.opts.RenderHeight),
	}
}

// loadFonts pulls the families a stream names from the catalog into the
// font library. Failures only cost the stream its preferred faces.
func (e *Engine) loadFonts(st *subtitle.Stream) {
	if e.opts.FontLibrary == nil || e.opts.FontSource == nil {
		return
	}
	seen := map[string]bool{}
	var fams []string
	add := func(name string) {
		key := strings.ToLower(name)
		if name != "" && !seen[key] {
			seen[key] = true
			fams = append(fams, name)
		}
	}
	for _, s := range st.Styles.All() {
		add(s.FontName)
	}
	for _, d := range st.Dialogues {
		for _, f := range override.FontNames(d.Text) {
			add(f)
		}
	}
	add(e.opts.Layout.DefaultFamily)
	add(e.opts.Layout.FallbackFamily)
	for _, f := range e.opts.Layout.Fallbacks {
		add(f)
	}
	n, err := e.opts.FontLibrary.LoadCatalog(context.Background(), e.opts.FontSource, fams...)
	if err != nil {
		e.log.Warn("font catalog load failed", slog.Any("err", err))
	}
	e.log.Debug("fonts loaded", slog.Int("faces", n), slog.Int("families", len(fams)))
}

// IsFinished reports whether stream id has nothing left to show at or
// after ts. Unknown and inactive streams are finished.
func (e *Engine) IsFinished(id int, ts int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id < 0 || id >= len(e.streams) || e.streams[id].parsed == nil {
		return true
	}
	s := e.streams[id]
	return s.cursor >= len(s.parsed.Dialogues) || ts >= s.lastEnd
}

// ClearCache rewinds every stream, e.g. after a seek.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.streams {
		s.cursor = 0
	}
}

// Cursor returns the index of the next dialogue stream id will consider.
func (e *Engine) Cursor(id int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id < 0 || id >= len(e.streams) {
		return 0
	}
	return e.streams[id].cursor
}

// Active returns the active stream id, -1 if none.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}
