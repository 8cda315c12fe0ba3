/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the per-user configuration file, applies
// environment overrides and validates the result against an embedded JSON
// schema.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"knitchart/internal/domain"
	applog "knitchart/internal/log"
	"knitchart/internal/symbol"
	"knitchart/internal/undo"
)

//go:embed schema.json
var schemaJSON []byte

// ErrInvalid reports a configuration that violates the schema.
var ErrInvalid = errors.New("invalid configuration")

// ChartConfig holds defaults for new charts and the scene geometry.
type ChartConfig struct {
	Columns       int     `yaml:"columns"`
	Rows          int     `yaml:"rows"`
	DefaultColor  string  `yaml:"default_color"`
	CellWidth     float64 `yaml:"cell_width"`
	CellHeight    float64 `yaml:"cell_height"`
	LegendSpacing float64 `yaml:"legend_spacing"`
	LabelGap      float64 `yaml:"label_gap"`
	FontSize      float64 `yaml:"font_size"`
}

// SymbolsConfig lists the symbol search path. Default names the symbol new
// cells are filled with as "category/name"; empty means unfilled cells.
type SymbolsConfig struct {
	Paths   []string `yaml:"paths"`
	Default string   `yaml:"default"`
}

type EditorConfig struct {
	UndoDepth     int `yaml:"undo_depth"`
	UndoMegabytes int `yaml:"undo_megabytes"`
	CoalesceMs    int `yaml:"coalesce_ms"`
}

type ExportConfig struct {
	Preset string  `yaml:"preset"`
	Scale  float64 `yaml:"scale"`
	OutDir string  `yaml:"out_dir"`
}

// HistoryConfig controls the revision database kept beside each chart.
// Keep is the number of revisions retained per chart; 0 keeps all.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
	Keep    int  `yaml:"keep"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig represents the persisted application configuration.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Chart         ChartConfig   `yaml:"chart"`
	Symbols       SymbolsConfig `yaml:"symbols"`
	Editor        EditorConfig  `yaml:"editor"`
	Export        ExportConfig  `yaml:"export"`
	History       HistoryConfig `yaml:"history"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	l := domain.DefaultLayout()
	return AppConfig{
		ConfigVersion: 1,
		Chart: ChartConfig{
			Columns:       20,
			Rows:          20,
			DefaultColor:  domain.White.Name(),
			CellWidth:     l.CellWidth,
			CellHeight:    l.CellHeight,
			LegendSpacing: l.LegendSpacing,
			LabelGap:      l.LabelGap,
			FontSize:      l.FontSize,
		},
		Editor:  EditorConfig{UndoDepth: 200, UndoMegabytes: 16, CoalesceMs: 0},
		Export:  ExportConfig{Preset: "web", Scale: 1},
		History: HistoryConfig{Enabled: true, Keep: 50},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Environment variables.
const (
	EnvConfigFile = "KNITCHART_CONFIG"
	EnvSymbolPath = "KNITCHART_SYMBOL_PATH"
	EnvCellSize   = "KNITCHART_CELL_SIZE"

	EnvLogLevel  = "KNITCHART_LOG_LEVEL"
	EnvLogFormat = "KNITCHART_LOG_FORMAT"
	EnvLogSource = "KNITCHART_LOG_SOURCE"
	EnvLogFile   = "KNITCHART_LOG_FILE"
)

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "KnitChart")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "KnitChart")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "knitchart")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "knitchart")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the config file path; KNITCHART_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// UserSymbolDir is where installed symbol packs go. It is always part of
// the search path.
func UserSymbolDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "symbols"), nil
}

// Load reads the config file (a missing file means defaults), validates it
// and applies environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := Validate(data); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
		cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Validate checks YAML config bytes against the embedded schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		return nil
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(js))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Save writes cfg to the config path.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvSymbolPath)); v != "" {
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Symbols.Paths = append(cfg.Symbols.Paths, p)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCellSize)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.Chart.CellWidth = n
			cfg.Chart.CellHeight = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor reports which environment variable, if any, currently
// overrides the given dotted key.
func EnvOverrideFor(key string) (string, bool) {
	var env string
	switch key {
	case "symbols.paths":
		env = EnvSymbolPath
	case "chart.cell_width", "chart.cell_height":
		env = EnvCellSize
	case "logging.level":
		env = EnvLogLevel
	case "logging.format":
		env = EnvLogFormat
	case "logging.source":
		env = EnvLogSource
	case "logging.file":
		env = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Layout returns the scene geometry.
func (c AppConfig) Layout() domain.Layout {
	return domain.Layout{
		CellWidth:     c.Chart.CellWidth,
		CellHeight:    c.Chart.CellHeight,
		LegendSpacing: c.Chart.LegendSpacing,
		LabelGap:      c.Chart.LabelGap,
		FontSize:      c.Chart.FontSize,
	}.Normalized()
}

// DefaultColor parses Chart.DefaultColor, falling back to white.
func (c AppConfig) DefaultColor() domain.Color {
	col, err := domain.ParseColor(c.Chart.DefaultColor)
	if err != nil {
		return domain.White
	}
	return col
}

// SymbolPaths is the catalog search path: the user symbol directory
// followed by the configured paths.
func (c AppConfig) SymbolPaths() []string {
	var out []string
	if dir, err := UserSymbolDir(); err == nil {
		out = append(out, dir)
	}
	return append(out, c.Symbols.Paths...)
}

// DefaultSymbol resolves Symbols.Default in cat. An empty setting yields
// the empty symbol.
func (c AppConfig) DefaultSymbol(cat *symbol.Catalog) (symbol.Symbol, error) {
	if strings.TrimSpace(c.Symbols.Default) == "" {
		return symbol.Empty(), nil
	}
	ref, err := symbol.ParseRef(c.Symbols.Default)
	if err != nil {
		return symbol.Empty(), err
	}
	return cat.LookupRef(ref)
}

// Undo returns the undo manager limits.
func (c AppConfig) Undo() undo.Config {
	return undo.Config{
		MaxDepth:    c.Editor.UndoDepth,
		MaxBytes:    c.Editor.UndoMegabytes << 20,
		MinInterval: time.Duration(c.Editor.CoalesceMs) * time.Millisecond,
	}
}

// LogOptions converts the logging section for applog.Init.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		AddSource: c.Logging.Source,
		File:      c.Logging.File,
	}
}
