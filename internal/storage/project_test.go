/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"knitchart/internal/symbol"
)

func TestCheckExtension(t *testing.T) {
	if err := CheckExtension("a/b/scarf.kcp"); err != nil {
		t.Fatalf("kcp rejected: %v", err)
	}
	if err := CheckExtension("scarf.KCP"); err != nil {
		t.Fatalf("upper-case extension rejected: %v", err)
	}
	for _, p := range []string{"scarf.xml", "scarf", "scarf.kcp.bak"} {
		if err := CheckExtension(p); !errors.Is(err, ErrExtension) {
			t.Fatalf("CheckExtension(%q) = %v, want ErrExtension", p, err)
		}
	}
	if err := SaveFile(filepath.Join(t.TempDir(), "chart.xml"), Document{}); !errors.Is(err, ErrExtension) {
		t.Fatalf("SaveFile accepted wrong extension: %v", err)
	}
	if _, _, err := OpenFile("chart.txt", testCatalog()); !errors.Is(err, ErrExtension) {
		t.Fatalf("OpenFile accepted wrong extension: %v", err)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "scarf.kcp")
	c := sampleChart(t)
	if err := SaveFile(path, Snapshot(c.g, c.r, c.pal)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if bs, _ := Backups(path); len(bs) != 0 {
		t.Fatalf("first save produced backups: %v", bs)
	}
	if err := c.g.InsertRow(0); err != nil {
		t.Fatal(err)
	}
	if err := SaveFile(path, Snapshot(c.g, c.r, c.pal)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	bs, err := Backups(path)
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(bs) != 1 || !strings.HasSuffix(bs[0], ".bak") {
		t.Fatalf("expected one .bak file, got %v", bs)
	}
	// No temp files are left behind.
	ents, _ := os.ReadDir(root)
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	doc, _, err := OpenFile(path, testCatalog())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if doc.Rows != 5 {
		t.Fatalf("reopened rows = %d, want 5", doc.Rows)
	}
}

func TestOpenFallsBackToLatestBackup(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "hat.kcp")
	c := sampleChart(t)
	if err := SaveFile(path, Snapshot(c.g, c.r, c.pal)); err != nil {
		t.Fatal(err)
	}
	// The second save backs up the first, then the file gets corrupted.
	if err := SaveFile(path, Snapshot(c.g, c.r, c.pal)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("<knitchart><cell>"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, from, err := OpenFile(path, testCatalog())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if from == "" {
		t.Fatal("expected recovery from backup")
	}
	if doc.Columns != 6 || doc.Rows != 4 {
		t.Fatalf("recovered dims %dx%d", doc.Columns, doc.Rows)
	}
}

func TestOpenWithoutBackupReportsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.kcp")
	if err := os.WriteFile(path, []byte("<knitchart>\n<grid columns=\"x\"/>\n</knitchart>"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := OpenFile(path, testCatalog())
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
	if pe.Path != path {
		t.Fatalf("ParseError.Path = %q, want %q", pe.Path, path)
	}

	_, _, err = OpenFile(filepath.Join(t.TempDir(), "missing.kcp"), testCatalog())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}

func TestOpenUnknownSymbolDoesNotUseBackup(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "mitt.kcp")
	c := sampleChart(t)
	if err := SaveFile(path, Snapshot(c.g, c.r, c.pal)); err != nil {
		t.Fatal(err)
	}
	if err := SaveFile(path, Snapshot(c.g, c.r, c.pal)); err != nil {
		t.Fatal(err)
	}
	_, from, err := OpenFile(path, symbol.NewCatalog(purl))
	if !errors.Is(err, symbol.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if from != "" {
		t.Fatalf("backup %s used for an unresolvable chart", from)
	}
}

func TestBackupNamesSortByTime(t *testing.T) {
	p := filepath.Join("x", "a.kcp")
	t1 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b1 := backupPath(p, t1)
	b2 := backupPath(p, t1.Add(1500*time.Millisecond))
	if !(b1 < b2) {
		t.Fatalf("backup names do not sort: %s >= %s", b1, b2)
	}
	if filepath.Dir(b1) != filepath.Join("x", BackupsDirName) {
		t.Fatalf("backup outside backups dir: %s", b1)
	}
}
