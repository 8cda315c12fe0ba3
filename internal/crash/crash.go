/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and an autosave of the
// open chart before the process exits.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "knitchart/internal/log"
	"knitchart/internal/storage"
	"knitchart/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Chart is the open chart Recover tries to rescue. The editor session
// satisfies it.
type Chart interface {
	// Path is the chart file, empty for a chart never saved.
	Path() string
	Encode() ([]byte, error)
}

// Recover captures a panic, logs it with its stack trace, writes a crash
// report and, when c is not nil, autosaves the chart next to its backups.
//
// Usage: defer crash.Recover(session)
func Recover(c Chart) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(c, r, stack)
	if err != nil {
		l.Error("crash report failed", slog.Any("err", err))
	}
	if c != nil {
		if path, err := Autosave(c); err != nil {
			l.Error("autosave failed", slog.Any("err", err))
		} else {
			l.Info("autosave written", slog.String("path", path))
			_, _ = fmt.Fprintf(os.Stderr, "Your chart was autosaved to: %s\n", path)
		}
	}
	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// crashDir is the backups directory of the chart, or the temp directory for
// unsaved charts.
func crashDir(c Chart) string {
	if c != nil && c.Path() != "" {
		return filepath.Join(filepath.Dir(c.Path()), storage.BackupsDirName)
	}
	return os.TempDir()
}

// Autosave writes the chart's current state to a new file in the crash
// directory and returns its path. The chart file itself is not touched.
func Autosave(c Chart) (string, error) {
	data, err := c.Encode()
	if err != nil {
		return "", fmt.Errorf("encode chart: %w", err)
	}
	base := "untitled"
	if c.Path() != "" {
		base = strings.TrimSuffix(filepath.Base(c.Path()), filepath.Ext(c.Path()))
	}
	name := fmt.Sprintf("%s.crash-%s%s", base, time.Now().Format("20060102-150405"), storage.Extension)
	path := filepath.Join(crashDir(c), name)
	if err := storage.WriteRaw(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func writeReport(c Chart, panicVal any, stack []byte) (string, error) {
	dir := crashDir(c)
	_ = os.MkdirAll(dir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "knitchart crash report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if c != nil && c.Path() != "" {
		_, _ = fmt.Fprintf(&buf, "Chart: %s\n", c.Path())
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}
