/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli is the gosubrender command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gosubrender/internal/config"
	applog "gosubrender/internal/log"
)

// app carries what the persistent flags resolve to.
type app struct {
	configPath string
	verbose    bool
	codepage   string

	cfg config.AppConfig
	log *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "gosubrender",
		Short: "Subtitle layout engine for video players",
		Long: `gosubrender ingests SRT, SSA/ASS, WebVTT and TTML subtitles, interprets
override tags and lays dialogue out into single-line rectangles with an
8-bit glyph atlas, the way a video player's renderer consumes them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default is the per-user config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.codepage, "codepage", "", "Input codepage (auto, windows-1251, shift_jis, ...)")

	root.AddCommand(
		newInspectCmd(a),
		newPublishCmd(a),
		newRenderCmd(a),
		newFontsCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.codepage != "" {
		cfg.Input.Codepage = a.codepage
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	applog.Init(cfg.Logging.LogOptions())
	a.cfg = cfg
	a.log = applog.WithComponent("cli")
	return nil
}

// Execute runs the command tree with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
