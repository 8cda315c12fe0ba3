/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

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

	"github.com/google/uuid"

	applog "knitchart/internal/log"
	"knitchart/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// HistoryDirName holds per-directory history data next to the charts.
	HistoryDirName  = ".knitchart"
	HistoryFileName = "history.sqlite"

	// schemaVersion tracks the local SQLite schema of the history database.
	// Bump it on breaking schema changes and add a migration step.
	schemaVersion = 2

	// tsLayout is fixed width so stored timestamps sort as text.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

var (
	ErrNoRevision        = errors.New("no such revision")
	ErrAmbiguousRevision = errors.New("revision id prefix is ambiguous")
)

// language=SQL
// dialect=SQLite
const insertRevisionSQL = `INSERT INTO revisions(id, chart, ts, label, doc) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, chart, ts, label, length(doc) FROM revisions WHERE chart = ? ORDER BY ts DESC, rowid DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const findRevisionSQL = `SELECT id, chart, ts, label, doc FROM revisions WHERE chart = ? AND id LIKE ? || '%' ORDER BY ts DESC LIMIT 2`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM revisions WHERE chart = ? AND id NOT IN (
	SELECT id FROM revisions WHERE chart = ? ORDER BY ts DESC, rowid DESC LIMIT ?
)`

// Revision describes one saved state of a chart.
type Revision struct {
	ID    string
	Chart string // base name of the chart file
	Time  time.Time
	Label string
	Size  int
}

// History is the revision store of one directory of charts.
type History struct {
	db   *sql.DB
	path string
}

// HistoryPath returns the history database used for the chart at chartPath.
func HistoryPath(chartPath string) string {
	return filepath.Join(filepath.Dir(chartPath), HistoryDirName, HistoryFileName)
}

// OpenHistory opens, creating it if needed, the history database for the
// chart at chartPath. A database that cannot be opened or fails its
// integrity check is moved aside and replaced by an empty one, so a broken
// history never blocks editing.
func OpenHistory(ctx context.Context, chartPath string) (*History, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "history_open").With(
		slog.String("chart", chartPath),
	)
	if strings.TrimSpace(chartPath) == "" {
		return nil, errors.New("chart path is required")
	}
	path := HistoryPath(chartPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create history dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", HistoryDirName, err)
	}
	db, err := openHistoryDB(ctx, path)
	if err == nil {
		if err = healthCheck(ctx, db); err == nil {
			l.Debug("history ready", slog.String("path", path))
			return &History{db: db, path: path}, nil
		}
		_ = db.Close()
	}
	l.Warn("history unusable, starting a new one", slog.Any("err", err))
	if merr := quarantine(path); merr != nil {
		return nil, fmt.Errorf("open history: %w (quarantine: %v)", err, merr)
	}
	db, err = openHistoryDB(ctx, path)
	if err != nil {
		l.Error("history open failed", slog.Any("err", err))
		return nil, err
	}
	return &History{db: db, path: path}, nil
}

func openHistoryDB(ctx context.Context, path string) (*sql.DB, error) {
	// SQLite URIs want forward slashes.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureHistorySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func healthCheck(ctx context.Context, db *sql.DB) error {
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.Contains(strings.ToLower(chk), "ok") {
		return fmt.Errorf("quick_check: %s", chk)
	}
	return nil
}

// quarantine renames a broken database and its WAL files out of the way.
func quarantine(path string) error {
	stamp := time.Now().Format("20060102-150405")
	for _, suffix := range []string{"", "-wal", "-shm"} {
		p := path + suffix
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Rename(p, fmt.Sprintf("%s.%s.corrupt%s", path, stamp, suffix)); err != nil {
			return err
		}
	}
	return nil
}

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
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Keep the stored schema; runMigrations moves it forward.
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureHistorySchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS revisions (
			id    TEXT PRIMARY KEY,
			chart TEXT NOT NULL,
			ts    TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			doc   BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_chart_ts ON revisions(chart, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
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
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_revisions_chart_ts ON revisions(chart, ts);`}
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

// Path returns the database file path.
func (h *History) Path() string { return h.path }

// Close closes the database.
func (h *History) Close() error { return h.db.Close() }

// Record stores data as a new revision of chart.
func (h *History) Record(ctx context.Context, chart, label string, data []byte) (Revision, error) {
	rev := Revision{
		ID:    uuid.NewString(),
		Chart: filepath.Base(chart),
		Time:  time.Now().UTC(),
		Label: label,
		Size:  len(data),
	}
	if _, err := h.db.ExecContext(ctx, insertRevisionSQL, rev.ID, rev.Chart, rev.Time.Format(tsLayout), rev.Label, data); err != nil {
		return Revision{}, fmt.Errorf("record revision: %w", err)
	}
	return rev, nil
}

// List returns up to limit most recent revisions of chart, newest first.
func (h *History) List(ctx context.Context, chart string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx, listRevisionsSQL, filepath.Base(chart), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		var (
			r     Revision
			tsStr string
		)
		if err := rows.Scan(&r.ID, &r.Chart, &tsStr, &r.Label, &r.Size); err != nil {
			return nil, err
		}
		r.Time, _ = time.Parse(tsLayout, tsStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Load returns the revision of chart whose id starts with idPrefix together
// with its document bytes. Revisions of other charts are not found.
func (h *History) Load(ctx context.Context, chart, idPrefix string) (Revision, []byte, error) {
	idPrefix = strings.TrimSpace(idPrefix)
	if idPrefix == "" || strings.ContainsAny(idPrefix, "%_") {
		return Revision{}, nil, fmt.Errorf("%w: %q", ErrNoRevision, idPrefix)
	}
	rows, err := h.db.QueryContext(ctx, findRevisionSQL, filepath.Base(chart), idPrefix)
	if err != nil {
		return Revision{}, nil, err
	}
	defer func() { _ = rows.Close() }()
	var (
		found []Revision
		doc   []byte
	)
	for rows.Next() {
		var (
			r     Revision
			tsStr string
			blob  []byte
		)
		if err := rows.Scan(&r.ID, &r.Chart, &tsStr, &r.Label, &blob); err != nil {
			return Revision{}, nil, err
		}
		r.Time, _ = time.Parse(tsLayout, tsStr)
		r.Size = len(blob)
		found = append(found, r)
		doc = blob
	}
	if err := rows.Err(); err != nil {
		return Revision{}, nil, err
	}
	switch len(found) {
	case 0:
		return Revision{}, nil, fmt.Errorf("%w: %s", ErrNoRevision, idPrefix)
	case 1:
		return found[0], doc, nil
	default:
		return Revision{}, nil, fmt.Errorf("%w: %s", ErrAmbiguousRevision, idPrefix)
	}
}

// Prune keeps the keepLast newest revisions of chart and deletes the rest.
func (h *History) Prune(ctx context.Context, chart string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	name := filepath.Base(chart)
	res, err := h.db.ExecContext(ctx, pruneRevisionsSQL, name, name, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
