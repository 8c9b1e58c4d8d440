/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package subtitle

import (
	"fmt"
	"strings"

	"github.com/asticode/go-astisub"
)

// parseCaptionDocument reads WebVTT and TTML through astisub. Cue text is
// rebuilt line by line, so unlike SubRip records it is not a slice of the
// input buffer.
func parseCaptionDocument(text string, format Format, maxLines int) ([]Dialogue, error) {
	var (
		subs *astisub.Subtitles
		err  error
	)
	switch format {
	case FormatVTT:
		subs, err = astisub.ReadFromWebVTT(strings.NewReader(text))
	case FormatTTML:
		subs, err = astisub.ReadFromTTML(strings.NewReader(text))
	default:
		return nil, fmt.Errorf("caption document: unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", format, err)
	}
	out := make([]Dialogue, 0, len(subs.Items))
	for _, it := range subs.Items {
		lines := make([]string, 0, len(it.Lines))
		for _, l := range it.Lines {
			if s := strings.TrimSpace(l.String()); s != "" {
				lines = append(lines, s)
			}
		}
		if maxLines > 0 && len(lines) > maxLines {
			lines = lines[:maxLines]
		}
		start, end := it.StartAt.Milliseconds(), it.EndAt.Milliseconds()
		if len(lines) == 0 || start >= end {
			continue
		}
		out = append(out, Dialogue{
			Start:     start,
			End:       end,
			StyleName: DefaultStyleName,
			Text:      strings.Join(lines, "\n"),
		})
	}
	return out, nil
}
