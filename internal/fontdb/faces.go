/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fontdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/font/sfnt"
)

// Add inserts or replaces one face, keyed by file and face index.
func (c *Catalog) Add(ctx context.Context, f Face) error {
	return addFace(ctx, c.db, f)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addFace(ctx context.Context, db execer, f Face) error {
	if strings.TrimSpace(f.Family) == "" || f.Path == "" {
		return errors.New("face needs a family and a path")
	}
	if f.Weight <= 0 {
		f.Weight = 400
	}
	_, err := db.ExecContext(ctx, `INSERT INTO faces(family, family_lc, subfamily, weight, italic, path, face_index, indexed_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, face_index) DO UPDATE SET
			family=excluded.family, family_lc=excluded.family_lc, subfamily=excluded.subfamily,
			weight=excluded.weight, italic=excluded.italic, indexed_at=excluded.indexed_at`,
		f.Family, strings.ToLower(f.Family), f.Subfamily, f.Weight, boolInt(f.Italic), f.Path, f.Index,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("add face %s: %w", f.Path, err)
	}
	return nil
}

// Index walks dirs for .ttf, .otf, .ttc and .otc files and catalogs every
// face found. Unreadable files are logged and skipped. It returns the number
// of faces stored.
func (c *Catalog) Index(ctx context.Context, dirs ...string) (int, error) {
	l := c.log.With(slog.String("op", "index"))
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin index: %w", err)
	}
	n := 0
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				l.Warn("walk failed", slog.String("path", path), slog.Any("err", err))
				return nil
			}
			if d.IsDir() || !isFontFile(path) {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			faces, err := ReadFaces(path)
			if err != nil {
				l.Warn("skip font file", slog.String("path", path), slog.Any("err", err))
				return nil
			}
			for _, f := range faces {
				if err := addFace(ctx, tx, f); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("index %s: %w", dir, err)
		}
		l.Info("directory indexed", slog.String("dir", dir), slog.Int("faces", n))
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit index: %w", err)
	}
	return n, nil
}

func isFontFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf", ".ttc", ".otc":
		return true
	}
	return false
}

// ReadFaces parses a font file and returns one Face per contained font,
// with weight and slant guessed from the subfamily name.
func ReadFaces(path string) ([]Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	coll, err := sfnt.ParseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	var buf sfnt.Buffer
	var out []Face
	for i := 0; i < coll.NumFonts(); i++ {
		f, err := coll.Font(i)
		if err != nil {
			return nil, fmt.Errorf("font #%d: %w", i, err)
		}
		family, err := f.Name(&buf, sfnt.NameIDFamily)
		if err != nil || strings.TrimSpace(family) == "" {
			continue
		}
		sub, _ := f.Name(&buf, sfnt.NameIDSubfamily)
		w, italic := styleOf(sub)
		out = append(out, Face{Family: family, Subfamily: sub, Weight: w, Italic: italic, Path: path, Index: i})
	}
	return out, nil
}

var weightWords = []struct {
	word   string
	weight int
}{
	{"thin", 100}, {"hairline", 100},
	{"extralight", 200}, {"ultralight", 200},
	{"light", 300},
	{"medium", 500},
	{"semibold", 600}, {"demibold", 600},
	{"extrabold", 800}, {"ultrabold", 800},
	{"bold", 700},
	{"black", 900}, {"heavy", 900},
}

// styleOf maps a subfamily such as "Bold Italic" or "SemiBold" to a CSS
// weight and slant.
func styleOf(sub string) (int, bool) {
	s := strings.ToLower(strings.NewReplacer(" ", "", "-", "").Replace(sub))
	weight := 400
	for _, w := range weightWords {
		if strings.Contains(s, w.word) {
			weight = w.weight
			break
		}
	}
	return weight, strings.Contains(s, "italic") || strings.Contains(s, "oblique")
}

// Lookup returns the face of family closest to weight, preferring the
// requested slant. ok is false when the family is not catalogued.
func (c *Catalog) Lookup(ctx context.Context, family string, weight int, italic bool) (Face, bool, error) {
	row := c.db.QueryRowContext(ctx, `SELECT family, subfamily, weight, italic, path, face_index FROM faces
		WHERE family_lc=? ORDER BY (italic<>?), abs(weight-?), id LIMIT 1`,
		strings.ToLower(family), boolInt(italic), weight)
	f, err := scanFace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Face{}, false, nil
	}
	if err != nil {
		return Face{}, false, fmt.Errorf("lookup %q: %w", family, err)
	}
	return f, true, nil
}

// Faces lists every face of a family.
func (c *Catalog) Faces(ctx context.Context, family string) ([]Face, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT family, subfamily, weight, italic, path, face_index FROM faces
		WHERE family_lc=? ORDER BY weight, italic, path`, strings.ToLower(family))
	if err != nil {
		return nil, fmt.Errorf("faces %q: %w", family, err)
	}
	defer rows.Close()
	var out []Face
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Families lists catalogued family names.
func (c *Catalog) Families(ctx context.Context) ([]string, error) {
	return c.strings(ctx, `SELECT DISTINCT family FROM faces ORDER BY family_lc`)
}

// Search matches family names by word prefix, e.g. "comic" finds
// "Comic Sans MS".
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	match := `"` + strings.ReplaceAll(q, `"`, `""`) + `"*`
	return c.strings(ctx, `SELECT DISTINCT f.family FROM fts_faces JOIN faces f ON fts_faces.rowid = f.id
		WHERE fts_faces MATCH ? ORDER BY f.family_lc LIMIT ?`, match, limit)
}

// Prune drops faces whose file no longer exists and returns how many went.
func (c *Catalog) Prune(ctx context.Context) (int, error) {
	paths, err := c.strings(ctx, `SELECT DISTINCT path FROM faces`)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			continue
		}
		res, err := c.db.ExecContext(ctx, `DELETE FROM faces WHERE path=?`, p)
		if err != nil {
			return n, fmt.Errorf("prune %s: %w", p, err)
		}
		k, _ := res.RowsAffected()
		n += int(k)
	}
	return n, nil
}

func (c *Catalog) strings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanFace(s scanner) (Face, error) {
	var f Face
	var italic int
	if err := s.Scan(&f.Family, &f.Subfamily, &f.Weight, &italic, &f.Path, &f.Index); err != nil {
		return Face{}, err
	}
	f.Italic = italic != 0
	return f, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
