/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package fontdb keeps a SQLite catalog of font files so script family names
// can be resolved to faces without scanning font directories on every run.
package fontdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "gosubrender/internal/log"
	"gosubrender/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	FileName = "fonts.sqlite"

	// schemaVersion tracks the catalog schema. Bump it together with a new
	// step in runMigrations.
	schemaVersion = 2
)

// Face is one catalogued font face.
type Face struct {
	Family    string
	Subfamily string
	Weight    int
	Italic    bool
	Path      string
	// Index is the face number inside a collection file.
	Index int
}

// Catalog is an open font catalog.
type Catalog struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// DefaultPath returns the per-user catalog location.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(dir, "gosubrender", FileName), nil
}

// Open creates or opens the catalog at path, enables WAL mode and brings the
// schema up to date. A catalog that cannot be opened is moved aside and
// recreated empty; it only caches what Index can rebuild.
func Open(path string) (*Catalog, error) {
	l := applog.WithOperation(applog.WithComponent("fontdb"), "open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("catalog path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			l.Error("catalog open failed", slog.Any("err", err))
			return nil, err
		}
		l.Warn("catalog unusable, recreating", slog.Any("err", err))
		backupFile(path)
		_ = os.Remove(path)
		if db, err = openDB(path); err != nil {
			l.Error("catalog recreate failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Debug("catalog ready")
	return &Catalog{db: db, path: path, log: applog.WithComponent("fontdb")}, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.EqualFold(chk, "ok") {
		_ = db.Close()
		if err == nil {
			err = fmt.Errorf("quick_check: %s", chk)
		}
		return nil, fmt.Errorf("check catalog: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	for _, step := range []func(context.Context, *sql.DB) error{ensureMetaAndVersion, ensureSchema, runMigrations} {
		if err := step(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// Path returns the catalog file location.
func (c *Catalog) Path() string { return c.path }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureSchema creates the faces table and its contentless FTS index.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS faces (
			id         INTEGER PRIMARY KEY,
			family     TEXT    NOT NULL,
			family_lc  TEXT    NOT NULL,
			subfamily  TEXT    NOT NULL DEFAULT '',
			weight     INTEGER NOT NULL DEFAULT 400,
			italic     INTEGER NOT NULL DEFAULT 0,
			path       TEXT    NOT NULL,
			face_index INTEGER NOT NULL DEFAULT 0,
			indexed_at TEXT    NOT NULL,
			UNIQUE(path, face_index)
		);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_faces USING fts5(
			family,
			content='',
			tokenize = 'unicode61'
		);`,
		`CREATE TRIGGER IF NOT EXISTS faces_ai AFTER INSERT ON faces BEGIN
			INSERT INTO fts_faces(rowid, family) VALUES (new.id, new.family);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS faces_ad AFTER DELETE ON faces BEGIN
			INSERT INTO fts_faces(fts_faces, rowid, family) VALUES ('delete', old.id, old.family);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS faces_au AFTER UPDATE OF family ON faces BEGIN
			INSERT INTO fts_faces(fts_faces, rowid, family) VALUES ('delete', old.id, old.family);
			INSERT INTO fts_faces(rowid, family) VALUES (new.id, new.family);
		END;`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure catalog schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_faces_family ON faces(family_lc, italic, weight);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// backupFile copies a broken catalog next to itself with a timestamp suffix.
func backupFile(path string) {
	stamp := time.Now().Format("20060102-150405")
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(fmt.Sprintf("%s.%s.bak", path, stamp), data, 0o644)
	}
}
