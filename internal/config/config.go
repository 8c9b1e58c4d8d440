/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"gosubrender/internal/charset"
	applog "gosubrender/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type EngineConfig struct {
	RenderWidth          int     `yaml:"render_width" json:"render_width"`
	RenderHeight         int     `yaml:"render_height" json:"render_height"`
	LookaheadMs          int64   `yaml:"lookahead_ms" json:"lookahead_ms"`
	BreakThreshold       float64 `yaml:"break_threshold" json:"break_threshold"`
	MaxRects             int     `yaml:"max_rects" json:"max_rects"`
	TimedCaptionBatch    int     `yaml:"timed_caption_batch" json:"timed_caption_batch"`
	TimedCaptionMaxLines int     `yaml:"timed_caption_max_lines" json:"timed_caption_max_lines"`
	MaxStyles            int     `yaml:"max_styles" json:"max_styles"`
	AtlasMinWidth        int     `yaml:"atlas_min_width" json:"atlas_min_width"`
	AtlasAlign           int     `yaml:"atlas_align" json:"atlas_align"`
	Collisions           string  `yaml:"collisions" json:"collisions"` // "" | "normal" | "reverse"
}

type FontsConfig struct {
	Dirs           []string       `yaml:"dirs" json:"dirs"`
	Catalog        string         `yaml:"catalog" json:"catalog"`
	DefaultFamily  string         `yaml:"default_family" json:"default_family"`
	DefaultSize    float64        `yaml:"default_size" json:"default_size"`
	FallbackFamily string         `yaml:"fallback_family" json:"fallback_family"`
	Fallbacks      map[int]string `yaml:"fallbacks" json:"fallbacks"` // charset id -> family
}

type InputConfig struct {
	Codepage string `yaml:"codepage" json:"codepage"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Source bool   `yaml:"source" json:"source"`
	File   string `yaml:"file" json:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version" json:"config_version"`
	Engine        EngineConfig  `yaml:"engine" json:"engine"`
	Fonts         FontsConfig   `yaml:"fonts" json:"fonts"`
	Input         InputConfig   `yaml:"input" json:"input"`
	Logging       LoggingConfig `yaml:"logging" json:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Engine: EngineConfig{
			RenderWidth:          1920,
			RenderHeight:         1080,
			LookaheadMs:          500,
			BreakThreshold:       0.6,
			MaxRects:             64,
			TimedCaptionBatch:    3,
			TimedCaptionMaxLines: 10,
			MaxStyles:            256,
			AtlasMinWidth:        512,
			AtlasAlign:           8,
		},
		Fonts: FontsConfig{
			DefaultFamily: "Arial",
			DefaultSize:   18,
			Fallbacks:     map[int]string{},
		},
		Input:   InputConfig{Codepage: charset.Auto},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvRenderWidth  = "GSR_RENDER_WIDTH"
	EnvRenderHeight = "GSR_RENDER_HEIGHT"
	EnvLookaheadMs  = "GSR_LOOKAHEAD_MS"
	EnvCodepage     = "GSR_CODEPAGE"
	EnvFontDirs     = "GSR_FONT_DIRS"
	EnvFontCatalog  = "GSR_FONT_CATALOG"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GSR_LOG_LEVEL"
	EnvLogFormat = "GSR_LOG_FORMAT"
	EnvLogSource = "GSR_LOG_SOURCE"
	EnvLogFile   = "GSR_LOG_FILE"
)

//go:embed schema.json
var schemaJSON []byte

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoSubRender")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoSubRender")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "gosubrender")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "gosubrender")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file at path (the per-user file when empty), applies
// defaults, merges environment overrides and validates the result. A missing
// file is not an error.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path (the per-user file when empty).
func Save(path string, cfg AppConfig) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks cfg against the embedded JSON schema and that the input
// codepage is one the charset normalizer knows.
func Validate(cfg AppConfig) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(cfg))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	var msgs []string
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	if cp := cfg.Input.Codepage; cp != charset.Auto {
		if _, _, err := charset.Lookup(cp); err != nil {
			msgs = append(msgs, fmt.Sprintf("input.codepage: %v", err))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// engine: zero means unset
	e, s := &dst.Engine, src.Engine
	if s.RenderWidth != 0 {
		e.RenderWidth = s.RenderWidth
	}
	if s.RenderHeight != 0 {
		e.RenderHeight = s.RenderHeight
	}
	if s.LookaheadMs != 0 {
		e.LookaheadMs = s.LookaheadMs
	}
	if s.BreakThreshold != 0 {
		e.BreakThreshold = s.BreakThreshold
	}
	if s.MaxRects != 0 {
		e.MaxRects = s.MaxRects
	}
	if s.TimedCaptionBatch != 0 {
		e.TimedCaptionBatch = s.TimedCaptionBatch
	}
	if s.TimedCaptionMaxLines != 0 {
		e.TimedCaptionMaxLines = s.TimedCaptionMaxLines
	}
	if s.MaxStyles != 0 {
		e.MaxStyles = s.MaxStyles
	}
	if s.AtlasMinWidth != 0 {
		e.AtlasMinWidth = s.AtlasMinWidth
	}
	if s.AtlasAlign != 0 {
		e.AtlasAlign = s.AtlasAlign
	}
	if v := strings.ToLower(strings.TrimSpace(s.Collisions)); v != "" {
		e.Collisions = v
	}
	// fonts
	if len(src.Fonts.Dirs) > 0 {
		dst.Fonts.Dirs = append([]string(nil), src.Fonts.Dirs...)
	}
	if v := strings.TrimSpace(src.Fonts.Catalog); v != "" {
		dst.Fonts.Catalog = v
	}
	if v := strings.TrimSpace(src.Fonts.DefaultFamily); v != "" {
		dst.Fonts.DefaultFamily = v
	}
	if src.Fonts.DefaultSize != 0 {
		dst.Fonts.DefaultSize = src.Fonts.DefaultSize
	}
	if v := strings.TrimSpace(src.Fonts.FallbackFamily); v != "" {
		dst.Fonts.FallbackFamily = v
	}
	for id, fam := range src.Fonts.Fallbacks {
		if dst.Fonts.Fallbacks == nil {
			dst.Fonts.Fallbacks = map[int]string{}
		}
		dst.Fonts.Fallbacks[id] = fam
	}
	if v := strings.TrimSpace(src.Input.Codepage); v != "" {
		dst.Input.Codepage = strings.ToLower(v)
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvRenderWidth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.RenderWidth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRenderHeight)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.RenderHeight = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLookaheadMs)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Engine.LookaheadMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCodepage)); v != "" {
		cfg.Input.Codepage = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontDirs)); v != "" {
		cfg.Fonts.Dirs = filepath.SplitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontCatalog)); v != "" {
		cfg.Fonts.Catalog = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"engine.render_width":  EnvRenderWidth,
	"engine.render_height": EnvRenderHeight,
	"engine.lookahead_ms":  EnvLookaheadMs,
	"input.codepage":       EnvCodepage,
	"fonts.dirs":           EnvFontDirs,
	"fonts.catalog":        EnvFontCatalog,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// LogOptions converts the logging section for applog.Init.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}
