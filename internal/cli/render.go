/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gosubrender/internal/engine"
	"gosubrender/internal/render"
	"gosubrender/internal/subtitle"
)

func newRenderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [subtitle_file]",
		Short: "Write the frame due at a timestamp as PNG",
		Long: `Publish the batch due at --at and compose it onto a frame of the
configured render size, evaluating fades, karaoke and transforms at that
instant.

Examples:
  gosubrender render show.ass --at 61500 -o frame.png
  gosubrender render movie.srt --at 2000 --background '&H00303030'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd, args[0])
		},
	}
	cmd.Flags().Int64("at", 0, "Timestamp in ms")
	cmd.Flags().StringP("output", "o", "frame.png", "Output PNG path")
	cmd.Flags().String("background", "", "Background colour in script notation (&HAABBGGRR); transparent when empty")
	cmd.Flags().Bool("effects", true, "Draw outlines and shadows")
	return cmd
}

func (a *app) runRender(cmd *cobra.Command, path string) error {
	at, _ := cmd.Flags().GetInt64("at")
	outPath, _ := cmd.Flags().GetString("output")
	bg, _ := cmd.Flags().GetString("background")
	effects, _ := cmd.Flags().GetBool("effects")

	opt := render.Options{Effects: effects}
	if bg != "" {
		c, ok := subtitle.ParseColor(bg)
		if !ok {
			return fmt.Errorf("invalid background colour %q", bg)
		}
		opt.Background = c
	}

	e, id, closeFn, err := a.openStream(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer closeFn()

	out := &engine.Output{Atlas: make([]byte, 1<<20)}
	n, err := publish(e, id, at, out)
	if err != nil {
		return fmt.Errorf("publish at %d: %w", at, err)
	}
	img := render.Compose(out, at, a.cfg.Engine.RenderWidth, a.cfg.Engine.RenderHeight, opt)
	if err := render.WritePNG(outPath, img); err != nil {
		return err
	}
	a.log.Info("frame written", slog.String("path", outPath), slog.Int64("at", at), slog.Int("rects", n))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rects at %s\n", outPath, n, clock(at))
	return nil
}
