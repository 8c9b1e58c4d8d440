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
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"gosubrender/internal/charset"
	applog "gosubrender/internal/log"
)

// minInputLen is the shortest input that can hold a single record.
const minInputLen = 8

// Options controls ingestion.
type Options struct {
	// Codepage is a charset name or "auto".
	Codepage string
	// MaxStyles bounds the style table; 0 means unbounded.
	MaxStyles int
	// MaxLines truncates timed captions with more physical lines.
	MaxLines int
	// DefaultStyle seeds every style table.
	DefaultStyle Style
	// VideoWidth and VideoHeight shape the canvas of timed captions.
	VideoWidth, VideoHeight int
	Logger                  *slog.Logger
}

// DefaultOptions returns the ingestion defaults.
func DefaultOptions() Options {
	return Options{
		Codepage:     charset.Auto,
		MaxStyles:    256,
		MaxLines:     10,
		DefaultStyle: DefaultStyle(),
		VideoWidth:   1920,
		VideoHeight:  1080,
	}
}

// Ingest normalizes raw to UTF-8 and parses it. name is used for the
// language tag ("movie.de.srt") and for logging. On failure no partial
// stream is returned.
func Ingest(raw []byte, name string, opts Options) (*Stream, error) {
	if len(raw) < minInputLen {
		return nil, ErrNotSubtitle
	}
	res, err := charset.Normalize(raw, opts.Codepage)
	if err != nil {
		if errors.Is(err, charset.ErrUnsupportedCodepage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNotSubtitle, err)
	}
	st, err := Parse(res.Text, name, opts)
	if err != nil {
		return nil, err
	}
	if res.Guessed && !st.Format.TimedCaption() {
		if cp := styleCodepage(st.Styles); cp != "" {
			if r2, err := charset.Normalize(raw, cp); err == nil {
				if st2, err := Parse(r2.Text, name, opts); err == nil {
					st, res = st2, r2
				}
			}
		}
	}
	st.Codepage = res.Codepage
	return st, nil
}

// styleCodepage picks the legacy codepage declared by the style Encoding
// fields. East Asian charsets win over single-byte ones.
func styleCodepage(t *StyleTable) string {
	var pick string
	for _, s := range t.All() {
		cp := charset.CodepageForEncoding(s.Encoding)
		if cp == "" || cp == "windows-1252" {
			continue
		}
		if charset.IsCJK(s.Encoding) {
			return cp
		}
		if pick == "" {
			pick = cp
		}
	}
	return pick
}

// Parse tokenizes already normalized text. Line endings are unified first
// and the result becomes Stream.Buffer.
func Parse(text, name string, opts Options) (*Stream, error) {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("subtitle")
	}
	l = l.With(slog.String("stream", filepath.Base(name)))
	if opts.DefaultStyle.FontName == "" {
		opts.DefaultStyle = DefaultStyle()
	}

	buf := normalizeNewlines(text)
	if len(strings.TrimSpace(buf)) < minInputLen {
		return nil, ErrNotSubtitle
	}

	st := &Stream{Name: name, Buffer: buf, Language: languageFromName(name)}
	format := detect(buf)
	switch format {
	case FormatASS, FormatSSA:
		p := &markupParser{buf: buf, styleLimit: opts.MaxStyles, defaultStyle: opts.DefaultStyle, log: l}
		if err := p.parse(); err != nil {
			return nil, err
		}
		if p.legacy {
			format = FormatSSA
		}
		st.Info = p.info
		st.Styles = p.styles
		st.EventFormat = p.eventFormat
		st.Dialogues = p.dialogues
		if tag, err := language.Parse(p.info.Language); err == nil && st.Language == language.Und {
			st.Language = tag
		}
	case FormatVTT, FormatTTML:
		ds, err := parseCaptionDocument(buf, format, opts.MaxLines)
		if err != nil {
			l.Debug("caption document rejected", slog.Any("err", err))
			return nil, fmt.Errorf("%w: %v", ErrNotSubtitle, err)
		}
		st.Dialogues = ds
	default:
		p := &timedCaptionParser{buf: buf, lines: splitLines(buf), maxLines: opts.MaxLines, log: l}
		st.Dialogues = p.parse()
	}
	st.Format = format
	if format.TimedCaption() {
		st.Info = captionInfo(opts.VideoWidth, opts.VideoHeight)
		st.Styles = NewStyleTable(opts.MaxStyles, opts.DefaultStyle)
		st.EventFormat = CanonicalEventFormat
	}
	if len(st.Dialogues) == 0 {
		return nil, ErrNotSubtitle
	}
	sortDialogues(st.Dialogues)
	l.Debug("stream parsed",
		slog.String("format", string(format)),
		slog.Int("dialogues", len(st.Dialogues)),
		slog.Int("styles", st.Styles.Len()),
	)
	return st, nil
}

// detect routes by header signature.
func detect(buf string) Format {
	head := strings.TrimSpace(buf)
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := strings.ToLower(head)
	switch {
	case strings.HasPrefix(lower, "[script info]"),
		strings.Contains(lower, "[v4+ styles]"),
		strings.Contains(lower, "[v4 styles]"),
		strings.HasPrefix(lower, "[events]"),
		strings.Contains(lower, "\n[events]"):
		return FormatASS
	case strings.HasPrefix(head, "WEBVTT"):
		return FormatVTT
	case strings.HasPrefix(lower, "<?xml"), strings.HasPrefix(lower, "<tt"):
		return FormatTTML
	}
	return FormatSRT
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// captionInfo builds the canvas for formats without a script header: 288
// lines tall, as wide as the video aspect allows.
func captionInfo(videoW, videoH int) ScriptInfo {
	info := ScriptInfo{PlayResX: 384, PlayResY: 288}
	if videoW > 0 && videoH > 0 {
		info.PlayResX = 288 * videoW / videoH
	}
	return info
}

// languageFromName reads the language suffix of "title.<lang>.<ext>".
func languageFromName(name string) language.Tag {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return language.Und
	}
	tag, err := language.Parse(base[i+1:])
	if err != nil {
		return language.Und
	}
	return tag
}
