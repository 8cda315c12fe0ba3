/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"knitchart/internal/storage"
)

type fakeChart struct {
	path string
	data []byte
	err  error
}

func (f fakeChart) Path() string            { return f.path }
func (f fakeChart) Encode() ([]byte, error) { return f.data, f.err }

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "knitchart crash report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestAutosaveUntitledGoesToTemp(t *testing.T) {
	path, err := Autosave(fakeChart{data: []byte("<knitchart/>")})
	if err != nil {
		t.Fatalf("Autosave: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	if filepath.Dir(path) != filepath.Clean(os.TempDir()) || !strings.HasPrefix(filepath.Base(path), "untitled.crash-") {
		t.Fatalf("unexpected autosave path %s", path)
	}
}

func TestAutosaveReportsEncodeError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Autosave(fakeChart{path: "x.kcp", err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected encode error, got %v", err)
	}
}

// TestRecover_PanickingGoroutine ensures Recover handles a panic, writes a report,
// autosaves the chart, and does not terminate the test process due to injected exitFn.
func TestRecover_PanickingGoroutine(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	chart := fakeChart{path: filepath.Join(root, "scarf"+storage.Extension), data: []byte("<knitchart version=\"1\"/>")}

	func() {
		defer Recover(chart)
		panic("boom")
	}()

	bdir := filepath.Join(root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	var report, autosave string
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			report = filepath.Join(bdir, f.Name())
		case strings.HasPrefix(f.Name(), "scarf.crash-") && strings.HasSuffix(f.Name(), storage.Extension):
			autosave = filepath.Join(bdir, f.Name())
		}
	}
	if report == "" || autosave == "" {
		t.Fatalf("expected crash report and autosave under backups dir, got %v", files)
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) || !bytes.Contains(b, []byte("Chart: "+chart.path)) {
		t.Fatalf("report content incomplete: %s", string(b))
	}
	saved, err := os.ReadFile(autosave)
	if err != nil || !bytes.Equal(saved, chart.data) {
		t.Fatalf("autosave content = %q, %v", saved, err)
	}
	if _, err := os.Stat(chart.path); !os.IsNotExist(err) {
		t.Fatalf("autosave must not create the chart file itself")
	}
	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(nil)
	}()
	if called {
		t.Fatalf("exit called without a panic")
	}
}
