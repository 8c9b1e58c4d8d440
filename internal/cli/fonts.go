/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"gosubrender/internal/fontdb"
)

func newFontsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "Maintain the font catalog",
		Long: `The font catalog maps family names used by scripts to font files. The
publisher loads the faces a stream names from it on activation.`,
	}
	index := &cobra.Command{
		Use:   "index [dir...]",
		Short: "Scan directories for .ttf, .otf and .ttc files",
		Long: `Scan directories for font files and record their faces. Without
arguments the configured fonts.dirs are scanned.

Examples:
  gosubrender fonts index /usr/share/fonts ~/.fonts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := args
			if len(dirs) == 0 {
				dirs = a.cfg.Fonts.Dirs
			}
			if len(dirs) == 0 {
				return errors.New("no font directories given and fonts.dirs is empty")
			}
			return a.withCatalog(func(c *fontdb.Catalog) error {
				n, err := c.Index(cmd.Context(), dirs...)
				if err != nil {
					return err
				}
				a.log.Info("fonts indexed", slog.Int("faces", n), slog.String("catalog", c.Path()))
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d faces into %s\n", n, c.Path())
				return nil
			})
		},
	}
	lookup := &cobra.Command{
		Use:   "lookup [family]",
		Short: "Show the file a family resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bold, _ := cmd.Flags().GetBool("bold")
			italic, _ := cmd.Flags().GetBool("italic")
			weight := 400
			if bold {
				weight = 700
			}
			return a.withCatalog(func(c *fontdb.Catalog) error {
				f, ok, err := c.Lookup(cmd.Context(), args[0], weight, italic)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("family %q not in catalog", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (weight %d, italic %t): %s#%d\n",
					f.Family, f.Subfamily, f.Weight, f.Italic, f.Path, f.Index)
				return nil
			})
		},
	}
	lookup.Flags().Bool("bold", false, "Prefer a bold face")
	lookup.Flags().Bool("italic", false, "Prefer an italic face")

	list := &cobra.Command{
		Use:   "list",
		Short: "List catalogued families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCatalog(func(c *fontdb.Catalog) error {
				fams, err := c.Families(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(fams, "\n"))
				return nil
			})
		},
	}
	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search over family and style names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return a.withCatalog(func(c *fontdb.Catalog) error {
				fams, err := c.Search(cmd.Context(), strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				for _, f := range fams {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			})
		},
	}
	search.Flags().IntP("limit", "n", 20, "Maximum number of families")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Drop faces whose files no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCatalog(func(c *fontdb.Catalog) error {
				n, err := c.Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d faces\n", n)
				return nil
			})
		},
	}
	cmd.AddCommand(index, lookup, list, search, prune)
	return cmd
}

func (a *app) withCatalog(fn func(*fontdb.Catalog) error) error {
	path, err := a.catalogPath()
	if err != nil {
		return err
	}
	c, err := fontdb.Open(path)
	if err != nil {
		return fmt.Errorf("open font catalog: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			a.log.Warn("close font catalog", slog.Any("err", err))
		}
	}()
	return fn(c)
}
