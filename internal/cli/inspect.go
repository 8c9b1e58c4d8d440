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
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gosubrender/internal/override"
	"gosubrender/internal/subtitle"
)

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [subtitle_file]",
		Short: "Print what a subtitle file parses to",
		Long: `Ingest a subtitle file and print its format, language, play resolution,
styles and dialogues with override tags stripped.

Examples:
  gosubrender inspect movie.en.srt
  gosubrender inspect --codepage windows-1251 episode.ass --styles=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInspect(cmd, args[0])
		},
	}
	cmd.Flags().Bool("styles", true, "List the style table")
	cmd.Flags().IntP("limit", "n", 0, "Print at most n dialogues (0 = all)")
	return cmd
}

func (a *app) runInspect(cmd *cobra.Command, path string) error {
	showStyles, _ := cmd.Flags().GetBool("styles")
	limit, _ := cmd.Flags().GetInt("limit")

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	st, err := subtitle.Ingest(raw, path, a.engineOptions().Ingest)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "File:       %s\n", path)
	fmt.Fprintf(w, "Format:     %s\n", st.Format)
	fmt.Fprintf(w, "Language:   %s\n", st.Language)
	fmt.Fprintf(w, "Codepage:   %s\n", st.Codepage)
	fmt.Fprintf(w, "PlayRes:    %dx%d\n", st.Info.PlayResX, st.Info.PlayResY)
	fmt.Fprintf(w, "WrapStyle:  %d\n", st.Info.WrapStyle)
	fmt.Fprintf(w, "Collisions: %s\n", st.Info.Collisions)
	fmt.Fprintf(w, "Dialogues:  %d\n", len(st.Dialogues))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if showStyles {
		fmt.Fprintln(w)
		fmt.Fprintln(tw, "STYLE\tFONT\tSIZE\tWEIGHT\tALIGN\tMARGINS\tENC")
		for _, s := range st.Styles.All() {
			fmt.Fprintf(tw, "%s\t%s\t%g\t%d\t%d\t%d,%d,%d\t%d\n",
				s.Name, s.FontName, s.FontSize, s.Weight, s.Alignment, s.MarginL, s.MarginR, s.MarginV, s.Encoding)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	dialect := override.Markup
	if st.Format.TimedCaption() {
		dialect = override.TimedCaption
	}
	fmt.Fprintln(w)
	fmt.Fprintln(tw, "#\tSTART\tEND\tLAYER\tSTYLE\tTEXT")
	for i, d := range st.Dialogues {
		if limit > 0 && i == limit {
			break
		}
		text := strings.ReplaceAll(override.StripTags(d.Text, dialect, st.Info.WrapStyle), "\n", " / ")
		style := d.StyleName
		if style == "" {
			style = subtitle.DefaultStyleName
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", d.ID, clock(d.Start), clock(d.End), d.Layer, style, text)
	}
	return tw.Flush()
}

// clock formats ms as H:MM:SS.mmm.
func clock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
