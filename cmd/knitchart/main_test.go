/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"knitchart/internal/domain"
	"knitchart/internal/grid"
	"knitchart/internal/storage"
	"knitchart/internal/symbol"
)

// setupCLI isolates the config and symbol directories and returns a symbol
// path holding basic/knit (width 1) and cables/c2 (width 2).
func setupCLI(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("KNITCHART_CONFIG", filepath.Join(home, "config.yaml"))
	t.Setenv("KNITCHART_SYMBOL_PATH", "")
	t.Setenv("KNITCHART_LOG_LEVEL", "")
	t.Setenv("KNITCHART_LOG_FILE", "")

	syms := filepath.Join(home, "symbols")
	for _, s := range []struct {
		dir string
		sym symbol.Symbol
	}{
		{"knit", symbol.Symbol{Category: "basic", Name: "knit", Width: 1, Instructions: "knit"}},
		{"c2", symbol.Symbol{Category: "cables", Name: "c2", Width: 2, Instructions: "cable 2 front"}},
	} {
		if err := symbol.WriteDir(filepath.Join(syms, s.dir), s.sym, s.dir, []byte("<svg/>")); err != nil {
			t.Fatalf("write symbol: %v", err)
		}
	}
	return syms
}

func runCLI(t *testing.T, syms string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--symbols", syms}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, syms string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, syms, args...)
	if err != nil {
		t.Fatalf("knitchart %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestNewPlaceInfo(t *testing.T) {
	syms := setupCLI(t)
	chart := filepath.Join(t.TempDir(), "sock.kcp")

	out := mustRun(t, syms, "new", chart, "--cols", "4", "--rows", "2")
	if !strings.Contains(out, "4x2") {
		t.Fatalf("unexpected new output: %q", out)
	}
	mustRun(t, syms, "place", chart, "--symbol", "cables/c2", "--rect", "0,0,4,1", "--color", "red")
	mustRun(t, syms, "place", chart, "--symbol", "basic/knit", "--at", "1,1")

	out = mustRun(t, syms, "info", chart)
	for _, want := range []string{"4 columns x 2 rows", "cables/c2@#ff0000", "basic/knit@#ffffff"} {
		if !strings.Contains(out, want) {
			t.Fatalf("info output lacks %q:\n%s", want, out)
		}
	}

	doc, _, err := storage.OpenFile(chart, symbolCatalog(t, syms))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	wide := 0
	for _, c := range doc.Cells {
		if c.Width == 2 {
			wide++
		}
	}
	if wide != 2 {
		t.Fatalf("want 2 cables in row 0, got %d", wide)
	}
}

func TestNewRefusesExisting(t *testing.T) {
	syms := setupCLI(t)
	chart := filepath.Join(t.TempDir(), "a.kcp")
	mustRun(t, syms, "new", chart, "--cols", "2", "--rows", "2")
	if _, err := runCLI(t, syms, "new", chart); err == nil {
		t.Fatalf("expected error for existing file")
	}
	mustRun(t, syms, "new", chart, "--cols", "3", "--rows", "1", "--force")
}

func TestPlaceRejectsPartialBlock(t *testing.T) {
	syms := setupCLI(t)
	chart := filepath.Join(t.TempDir(), "a.kcp")
	mustRun(t, syms, "new", chart, "--cols", "4", "--rows", "1")
	before, err := os.ReadFile(chart)
	if err != nil {
		t.Fatal(err)
	}
	_, err = runCLI(t, syms, "place", chart, "--symbol", "cables/c2", "--at", "0,0")
	if !errors.Is(err, grid.ErrSelectionCount) {
		t.Fatalf("want ErrSelectionCount, got %v", err)
	}
	after, err := os.ReadFile(chart)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("rejected placement changed the file")
	}
}

func TestInsertDelete(t *testing.T) {
	syms := setupCLI(t)
	chart := filepath.Join(t.TempDir(), "a.kcp")
	mustRun(t, syms, "new", chart, "--cols", "4", "--rows", "2")

	if out := mustRun(t, syms, "insert", chart, "column", "2"); !strings.Contains(out, "now 5x2") {
		t.Fatalf("insert output: %q", out)
	}
	if out := mustRun(t, syms, "delete", chart, "row", "0"); !strings.Contains(out, "now 5x1") {
		t.Fatalf("delete output: %q", out)
	}
	if _, err := runCLI(t, syms, "insert", chart, "diagonal", "0"); err == nil {
		t.Fatalf("expected error for unknown axis")
	}

	mustRun(t, syms, "place", chart, "--symbol", "cables/c2", "--rect", "0,0,2,1")
	_, err := runCLI(t, syms, "delete", chart, "column", "1")
	if !errors.Is(err, grid.ErrWouldBisect) {
		t.Fatalf("want ErrWouldBisect, got %v", err)
	}
}

func TestMarkAndLegendLabel(t *testing.T) {
	syms := setupCLI(t)
	chart := filepath.Join(t.TempDir(), "a.kcp")
	mustRun(t, syms, "new", chart, "--cols", "4", "--rows", "3")
	mustRun(t, syms, "place", chart, "--symbol", "basic/knit", "--rect", "0,0,4,3")

	out := mustRun(t, syms, "mark", chart, "--rect", "1,1,2,2", "--color", "blue")
	if !strings.Contains(out, "marked 1,1 2x2") {
		t.Fatalf("mark output: %q", out)
	}
	out = mustRun(t, syms, "legend", chart, "--set-label", "basic/knit@#ffffff=Knit on RS")
	if !strings.Contains(out, "Knit on RS") {
		t.Fatalf("legend output lacks label:\n%s", out)
	}
	doc, _, err := storage.OpenFile(chart, symbolCatalog(t, syms))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	want := grid.Marker{Rect: domain.CellRect{Column: 1, Row: 1, Width: 2, Height: 2}, Color: domain.MustColor("blue")}
	if len(doc.Markers) != 1 || doc.Markers[0] != want {
		t.Fatalf("markers = %+v, want [%+v]", doc.Markers, want)
	}
	mustRun(t, syms, "mark", chart, "--remove", "0")
	if _, err := runCLI(t, syms, "mark", chart, "--remove", "0"); err == nil {
		t.Fatalf("expected error removing a missing marker")
	}
}

func TestExport(t *testing.T) {
	syms := setupCLI(t)
	dir := t.TempDir()
	chart := filepath.Join(dir, "a.kcp")
	mustRun(t, syms, "new", chart, "--cols", "3", "--rows", "2")
	mustRun(t, syms, "place", chart, "--symbol", "basic/knit", "--at", "0,0", "--color", "#336699")

	svg := filepath.Join(dir, "out", "chart.svg")
	mustRun(t, syms, "export", chart, svg)
	data, err := os.ReadFile(svg)
	if err != nil {
		t.Fatalf("read svg: %v", err)
	}
	if !bytes.Contains(data, []byte("#336699")) {
		t.Fatalf("svg lacks cell color")
	}

	out := mustRun(t, syms, "export", chart, "--preset", "sheet")
	if !strings.Contains(out, "exports/sheet/a.xlsx") {
		t.Fatalf("preset output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "exports", "sheet", "a.xlsx")); err != nil {
		t.Fatalf("xlsx not written: %v", err)
	}

	if _, err := runCLI(t, syms, "export", chart, filepath.Join(dir, "x.gif")); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestHistoryAndRestore(t *testing.T) {
	syms := setupCLI(t)
	chart := filepath.Join(t.TempDir(), "a.kcp")
	mustRun(t, syms, "new", chart, "--cols", "2", "--rows", "1")
	mustRun(t, syms, "place", chart, "--symbol", "cables/c2", "--rect", "0,0,2,1")

	out := mustRun(t, syms, "history", chart)
	if strings.Count(out, "save") != 2 {
		t.Fatalf("want 2 revisions:\n%s", out)
	}

	ctx := context.Background()
	h, err := storage.OpenHistory(ctx, chart)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	revs, err := h.List(ctx, chart, 10)
	_ = h.Close()
	if err != nil || len(revs) != 2 {
		t.Fatalf("list: %v (%d revisions)", err, len(revs))
	}
	oldest := revs[len(revs)-1]

	mustRun(t, syms, "restore", chart, oldest.ID[:8])
	doc, _, err := storage.OpenFile(chart, symbolCatalog(t, syms))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(doc.Cells) != 2 || doc.Cells[0].Width != 1 {
		t.Fatalf("restore did not bring back the empty chart: %+v", doc.Cells)
	}
}

func TestSymbolsAndPack(t *testing.T) {
	syms := setupCLI(t)
	out := mustRun(t, syms, "symbols", "--category", "cables")
	if !strings.Contains(out, "cables/c2") || strings.Contains(out, "basic/knit") {
		t.Fatalf("symbols output:\n%s", out)
	}

	pack := filepath.Join(t.TempDir(), "pack.zip")
	if out := mustRun(t, syms, "pack", "export", "--dir", syms, pack); !strings.Contains(out, "packed 2 symbols") {
		t.Fatalf("pack export output: %q", out)
	}
	if out := mustRun(t, syms, "pack", "list", pack); !strings.Contains(out, "basic/knit") {
		t.Fatalf("pack list output:\n%s", out)
	}
	target := t.TempDir()
	if out := mustRun(t, syms, "pack", "install", "--dir", target, pack); !strings.Contains(out, "installed 2 symbols") {
		t.Fatalf("pack install output: %q", out)
	}
}

func TestConfigShowsEnvOverrides(t *testing.T) {
	syms := setupCLI(t)
	t.Setenv("KNITCHART_LOG_FORMAT", "json")
	out := mustRun(t, syms, "config")
	if !strings.Contains(out, "format: json") || !strings.Contains(out, "KNITCHART_LOG_FORMAT") {
		t.Fatalf("config output:\n%s", out)
	}
}

func TestParseCellAndRect(t *testing.T) {
	if c, r, err := parseCell(" 3, 4"); err != nil || c != 3 || r != 4 {
		t.Fatalf("parseCell: %d %d %v", c, r, err)
	}
	for _, bad := range []string{"", "1", "a,2", "1,2,3"} {
		if _, _, err := parseCell(bad); err == nil {
			t.Fatalf("parseCell(%q) should fail", bad)
		}
	}
	r, err := parseRect("1,2,3,4")
	if err != nil || r != (domain.CellRect{Column: 1, Row: 2, Width: 3, Height: 4}) {
		t.Fatalf("parseRect: %+v %v", r, err)
	}
	for _, bad := range []string{"1,2,3", "1,2,0,1", "x,2,3,4"} {
		if _, err := parseRect(bad); err == nil {
			t.Fatalf("parseRect(%q) should fail", bad)
		}
	}
}

func symbolCatalog(t *testing.T, dir string) *symbol.Catalog {
	t.Helper()
	cat, err := symbol.LoadAll([]string{dir})
	if err != nil {
		t.Fatalf("load symbols: %v", err)
	}
	return cat
}
