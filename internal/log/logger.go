/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the process-wide slog logger of knitchart. Records go
// to a compact console handler (or JSON) and optionally to a rotating JSON
// file; helpers tag them with the component, operation and chart involved.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"knitchart/internal/version"
)

// Environment variables read by FromEnv.
const (
	envLevel  = "KNITCHART_LOG_LEVEL"  // debug|info|warn|error
	envFormat = "KNITCHART_LOG_FORMAT" // console|json
	envSource = "KNITCHART_LOG_SOURCE" // true|false
	envFile   = "KNITCHART_LOG_FILE"   // path of the rotated log file
)

// Options controls Init. The zero value logs INFO and above to stderr in
// console format.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string    // rotated JSON log file; empty disables it
	Console   io.Writer // nil means os.Stderr
	Rotation  Rotation
}

// Rotation bounds the log file. Zero fields take the defaults.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (r Rotation) writer(path string) *lj.Logger {
	w := &lj.Logger{Filename: path, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
	if r.MaxSizeMB > 0 {
		w.MaxSize = r.MaxSizeMB
	}
	if r.MaxBackups > 0 {
		w.MaxBackups = r.MaxBackups
	}
	if r.MaxAgeDays > 0 {
		w.MaxAge = r.MaxAgeDays
	}
	return w
}

const chartAttr = "chart"

var (
	mu      sync.RWMutex
	current *slog.Logger
	logFile *lj.Logger
	level   = new(slog.LevelVar)
)

// L returns the application logger. Before Init it is configured from the
// environment.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l == nil {
		Init(FromEnv())
		mu.RLock()
		l = current
		mu.RUnlock()
	}
	return l
}

// Init replaces the application logger and slog.Default. A log file opened
// by an earlier Init is closed.
func Init(opts Options) {
	level.Set(ParseLevel(opts.Level))
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	var hs []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		hs = append(hs, slog.NewJSONHandler(console, hopts))
	} else {
		hs = append(hs, newConsoleHandler(console, hopts))
	}
	var file *lj.Logger
	if p := strings.TrimSpace(opts.File); p != "" {
		file = opts.Rotation.writer(p)
		hs = append(hs, slog.NewJSONHandler(file, hopts))
	}

	var h slog.Handler = fanout(hs)
	if len(hs) == 1 {
		h = hs[0]
	}
	logger := slog.New(chartContext{next: h}).With(
		slog.String("app", "knitchart"),
		slog.String("ver", version.Version),
	)

	mu.Lock()
	old := logFile
	current, logFile = logger, file
	mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	slog.SetDefault(logger)
}

// SetLevel changes the level of the running logger.
func SetLevel(s string) { level.Set(ParseLevel(s)) }

// Close closes the log file, if any. Logging continues on the console.
func Close() error {
	mu.Lock()
	f := logFile
	logFile = nil
	mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// FromEnv reads Options from the KNITCHART_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv(envLevel, "info"),
		Format:    getenv(envFormat, "console"),
		AddSource: strings.EqualFold(getenv(envSource, "false"), "true"),
		File:      os.Getenv(envFile),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns the application logger tagged with a component.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// WithChart tags l with the path of the chart being edited. An empty path
// (unsaved chart) leaves l unchanged.
func WithChart(l *slog.Logger, path string) *slog.Logger {
	if strings.TrimSpace(path) == "" {
		return l
	}
	return l.With(slog.String(chartAttr, path))
}

type chartKey struct{}

// ContextWithChart stores the chart path in ctx. Records logged with that
// context carry it as the "chart" attribute.
func ContextWithChart(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, chartKey{}, path)
}

// chartContext copies the chart path from the context onto each record.
type chartContext struct{ next slog.Handler }

func (c chartContext) Enabled(ctx context.Context, l slog.Level) bool {
	return c.next.Enabled(ctx, l)
}

func (c chartContext) Handle(ctx context.Context, r slog.Record) error {
	if p, ok := ctx.Value(chartKey{}).(string); ok && p != "" {
		r.AddAttrs(slog.String(chartAttr, p))
	}
	return c.next.Handle(ctx, r)
}

func (c chartContext) WithAttrs(as []slog.Attr) slog.Handler {
	return chartContext{next: c.next.WithAttrs(as)}
}

func (c chartContext) WithGroup(name string) slog.Handler {
	return chartContext{next: c.next.WithGroup(name)}
}

// fanout sends every record to all handlers that accept its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(as []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(as)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// consoleHandler writes one line per record:
//
//	15:04:05.000 WRN message key=value group.key="quoted value" src=file.go:12
type consoleHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	opts   slog.HandlerOptions
	prefix string // open groups, "a.b."
	pre    []byte // attributes bound by WithAttrs, already formatted
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *consoleHandler {
	h := &consoleHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *consoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	lvl := slog.LevelInfo
	if h.opts.Level != nil {
		lvl = h.opts.Level.Level()
	}
	return l >= lvl
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	if !r.Time.IsZero() {
		buf = r.Time.AppendFormat(buf, "15:04:05.000")
		buf = append(buf, ' ')
	}
	buf = append(buf, levelTag(r.Level)...)
	if r.Message != "" {
		buf = append(buf, ' ')
		buf = append(buf, r.Message...)
	}
	buf = append(buf, h.pre...)
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, h.prefix, a)
		return true
	})
	if h.opts.AddSource && r.PC != 0 {
		fr, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if fr.File != "" {
			buf = append(buf, " src="...)
			buf = append(buf, filepath.Base(fr.File)...)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(fr.Line), 10)
		}
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *consoleHandler) WithAttrs(as []slog.Attr) slog.Handler {
	c := *h
	c.pre = append([]byte(nil), h.pre...)
	for _, a := range as {
		c.pre = appendAttr(c.pre, h.prefix, a)
	}
	return &c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			buf = appendAttr(buf, p, g)
		}
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendText(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	default:
		if err, ok := v.Any().(error); ok {
			return appendText(buf, err.Error())
		}
		return appendText(buf, fmt.Sprint(v.Any()))
	}
}

// appendText quotes s when it would not read back as one token.
func appendText(buf []byte, s string) []byte {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	default:
		return "ERR"
	}
}
