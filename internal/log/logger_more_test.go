/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("KNITCHART_LOG_LEVEL", "warn")
	t.Setenv("KNITCHART_LOG_FORMAT", "json")
	t.Setenv("KNITCHART_LOG_SOURCE", "true")
	t.Setenv("KNITCHART_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("KNITCHART_TEST_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error should be enabled at warn level")
	}

	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")
	r := slog.NewRecord(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), slog.LevelError, "boom", 0)
	r.AddAttrs(
		slog.Int("n", 42),
		slog.Float64("pi", 3.14),
		slog.Bool("ok", true),
		slog.String("label", "two words"),
		slog.Any("err", errors.New("bad")),
		slog.Group("cell", slog.Int("col", 1)),
	)
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"09:30:00.000 ERR boom",
		" k=v",
		" grp.n=42",
		" grp.pi=3.14",
		" grp.ok=true",
		` grp.label="two words"`,
		" grp.err=bad",
		" grp.cell.col=1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q: %q", want, out)
		}
	}
	if strings.Contains(out, "grp.k=") {
		t.Fatalf("attr bound before the group got its prefix: %q", out)
	}
}

func TestWithChartSkipsEmptyPath(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newConsoleHandler(&buf, nil))
	WithChart(l, "  ").Info("unsaved")
	WithChart(l, "a.kcp").Info("saved")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if strings.Contains(lines[0], "chart=") || !strings.Contains(lines[1], "chart=a.kcp") {
		t.Fatalf("unexpected chart attrs: %q", lines)
	}
}
