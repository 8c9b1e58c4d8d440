/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gosubrender/internal/engine"
	"gosubrender/internal/layout"
)

type rectJSON struct {
	Dialogue int        `json:"dialogue"`
	Line     int        `json:"line"`
	Layer    int        `json:"layer"`
	Text     string     `json:"text"`
	Start    int64      `json:"start"`
	End      int64      `json:"end"`
	Box      [4]float32 `json:"box"`
	Atlas    [4]int     `json:"atlas"`
	Font     string     `json:"font"`
	SizePx   float32    `json:"size_px"`
	Fixed    bool       `json:"fixed,omitempty"`
}

type batchJSON struct {
	TS     int64      `json:"ts"`
	Width  int        `json:"atlas_width"`
	Height int        `json:"atlas_height"`
	Rects  []rectJSON `json:"rects"`
}

func toRectJSON(r layout.SubtitleRect) rectJSON {
	return rectJSON{
		Dialogue: r.Dialogue,
		Line:     r.Line,
		Layer:    r.Layer,
		Text:     r.Text,
		Start:    r.Start,
		End:      r.End,
		Box:      [4]float32{r.Box.X, r.Box.Y, r.Box.W, r.Box.H},
		Atlas:    [4]int{r.AtlasRect.Min.X, r.AtlasRect.Min.Y, r.AtlasRect.Dx(), r.AtlasRect.Dy()},
		Font:     r.Font.Family,
		SizePx:   r.Font.SizePx,
		Fixed:    r.Fixed,
	}
}

func newPublishCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [subtitle_file]",
		Short: "Drive the publisher over a simulated timeline",
		Long: `Register and activate a subtitle file, then call Publish from --from to
--to every --step milliseconds as a player would, printing each non-empty
batch as one JSON line.

Examples:
  gosubrender publish movie.srt
  gosubrender publish show.ass --from 60000 --to 120000 --step 40`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPublish(cmd, args[0])
		},
	}
	cmd.Flags().Int64("from", 0, "First timestamp in ms")
	cmd.Flags().Int64("to", 0, "Last timestamp in ms (0 = until the stream is finished)")
	cmd.Flags().Int64("step", 100, "Timeline step in ms")
	return cmd
}

func (a *app) runPublish(cmd *cobra.Command, path string) error {
	from, _ := cmd.Flags().GetInt64("from")
	to, _ := cmd.Flags().GetInt64("to")
	step, _ := cmd.Flags().GetInt64("step")
	if step <= 0 {
		return fmt.Errorf("invalid step %d: must be positive", step)
	}

	e, id, closeFn, err := a.openStream(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer closeFn()

	enc := json.NewEncoder(cmd.OutOrStdout())
	out := &engine.Output{Atlas: make([]byte, 1<<20)}
	batches := 0
	for ts := from; to == 0 || ts <= to; ts += step {
		if to == 0 && e.IsFinished(id, ts) {
			break
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		n, err := publish(e, id, ts, out)
		if err != nil {
			return fmt.Errorf("publish at %d: %w", ts, err)
		}
		if n == 0 {
			continue
		}
		b := batchJSON{TS: ts, Width: out.Width, Height: out.Height, Rects: make([]rectJSON, 0, n)}
		for _, r := range out.Rects {
			b.Rects = append(b.Rects, toRectJSON(r))
		}
		if err := enc.Encode(b); err != nil {
			return err
		}
		batches++
	}
	a.log.Info("publish finished", slog.String("file", path), slog.Int("batches", batches))
	return nil
}
