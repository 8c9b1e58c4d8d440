/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gosubrender/internal/engine"
	"gosubrender/internal/fontdb"
	"gosubrender/internal/layout"
	"gosubrender/internal/subtitle"
	"gosubrender/internal/textlayout"
)

func (a *app) engineOptions() engine.Options {
	c := a.cfg
	opts := engine.DefaultOptions()
	opts.RenderWidth = c.Engine.RenderWidth
	opts.RenderHeight = c.Engine.RenderHeight
	opts.Lookahead = c.Engine.LookaheadMs
	opts.MaxRects = c.Engine.MaxRects
	opts.TimedCaptionBatch = c.Engine.TimedCaptionBatch
	opts.Collisions = c.Engine.Collisions
	opts.AtlasMinWidth = c.Engine.AtlasMinWidth
	opts.AtlasAlign = c.Engine.AtlasAlign

	opts.Ingest.Codepage = c.Input.Codepage
	opts.Ingest.MaxStyles = c.Engine.MaxStyles
	opts.Ingest.MaxLines = c.Engine.TimedCaptionMaxLines
	opts.Ingest.VideoWidth = c.Engine.RenderWidth
	opts.Ingest.VideoHeight = c.Engine.RenderHeight
	opts.Ingest.DefaultStyle.FontName = c.Fonts.DefaultFamily
	opts.Ingest.DefaultStyle.FontSize = c.Fonts.DefaultSize

	opts.Layout = layout.Options{
		BreakThreshold: float32(c.Engine.BreakThreshold),
		DefaultFamily:  c.Fonts.DefaultFamily,
		FallbackFamily: c.Fonts.FallbackFamily,
		Fallbacks:      c.Fonts.Fallbacks,
	}
	return opts
}

func (a *app) catalogPath() (string, error) {
	if a.cfg.Fonts.Catalog != "" {
		return a.cfg.Fonts.Catalog, nil
	}
	return fontdb.DefaultPath()
}

// newEngine builds an engine that draws with catalogued fonts when a font
// catalog exists and with the built-in fixed face otherwise. The returned
// func releases the catalog.
func (a *app) newEngine() (*engine.Engine, func(), error) {
	opts := a.engineOptions()
	path, err := a.catalogPath()
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		a.log.Debug("no font catalog, using the built-in face", slog.String("path", path))
		return engine.New(opts, nil), func() {}, nil
	}
	cat, err := fontdb.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open font catalog: %w", err)
	}
	lib := textlayout.NewFontLibrary()
	opts.FontLibrary = lib
	opts.FontSource = cat
	backend := textlayout.NewFaceBackend(textlayout.NewOTProvider(lib, textlayout.BasicProvider{}))
	closeFn := func() {
		if err := cat.Close(); err != nil {
			a.log.Warn("close font catalog", slog.Any("err", err))
		}
	}
	return engine.New(opts, backend), closeFn, nil
}

// openStream builds an engine with path registered and active.
func (a *app) openStream(ctx context.Context, path string) (*engine.Engine, int, func(), error) {
	e, closeFn, err := a.newEngine()
	if err != nil {
		return nil, 0, nil, err
	}
	ids, err := e.LoadFiles(ctx, path)
	if err != nil {
		closeFn()
		return nil, 0, nil, err
	}
	if err := e.ActivateStream(ids[0]); err != nil {
		closeFn()
		return nil, 0, nil, err
	}
	return e, ids[0], closeFn, nil
}

// publish is Publish growing out.Atlas until the batch fits.
func publish(e *engine.Engine, id int, ts int64, out *engine.Output) (int, error) {
	n, err := e.Publish(id, ts, out)
	var ce *subtitle.CapacityError
	if errors.As(err, &ce) && ce.Resource == "atlas" {
		out.Atlas = make([]byte, ce.Required)
		return e.Publish(id, ts, out)
	}
	return n, err
}
