/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command knitchart creates, edits and exports knitting charts from the
// command line and starts the desktop editor.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"knitchart/internal/config"
	"knitchart/internal/crash"
	"knitchart/internal/domain"
	"knitchart/internal/editor"
	"knitchart/internal/export"
	applog "knitchart/internal/log"
	"knitchart/internal/symbol"
	"knitchart/internal/ui"
	"knitchart/internal/version"
)

func main() {
	defer crash.Recover(nil)
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true
	err := root.Execute()
	_ = applog.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by all subcommands.
type app struct {
	configPath  string
	symbolPaths []string
	verbose     bool
	debug       bool

	cfg config.AppConfig
	cat *symbol.Catalog
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "knitchart",
		Short: "Knitting chart editor",
		Long: strings.TrimSpace(`
knitchart edits knitting charts: a grid of stitch symbols with a legend of
every symbol and color in use. Charts are stored as .kcp files; every save
keeps a backup and a revision in the chart's history.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: per-user config.yaml, or $"+config.EnvConfigFile+")")
	cmd.PersistentFlags().StringArrayVar(&a.symbolPaths, "symbols", nil, "Additional symbol directory (repeatable)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable info logging")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging (overrides --verbose)")
	cmd.Version = version.String()

	cmd.AddCommand(
		newNewCmd(a),
		newInfoCmd(a),
		newPlaceCmd(a),
		newStructureCmd(a, "insert"),
		newStructureCmd(a, "delete"),
		newMarkCmd(a),
		newExportCmd(a),
		newSymbolsCmd(a),
		newLegendCmd(a),
		newHistoryCmd(a),
		newRestoreCmd(a),
		newPackCmd(a),
		newUICmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// init loads the configuration and sets up logging. The CLI logs warnings
// only unless asked for more.
func (a *app) init() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts := a.cfg.LogOptions()
	switch {
	case a.debug:
		opts.Level = "debug"
	case a.verbose:
		opts.Level = "info"
	case os.Getenv(config.EnvLogLevel) == "":
		opts.Level = "warn"
	}
	applog.Init(opts)
	a.log = applog.WithComponent("cli")
	return nil
}

// catalog loads the symbol catalog once. The user symbol directory is
// created on first use so that a fresh installation has a readable path.
func (a *app) catalog() (*symbol.Catalog, error) {
	if a.cat != nil {
		return a.cat, nil
	}
	if dir, err := config.UserSymbolDir(); err == nil {
		_ = os.MkdirAll(dir, 0o755)
	}
	paths := append(a.cfg.SymbolPaths(), a.symbolPaths...)
	cat, err := symbol.LoadAll(paths)
	if err != nil {
		return nil, err
	}
	a.cat = cat
	return cat, nil
}

func (a *app) editorOptions() (editor.Options, error) {
	cat, err := a.catalog()
	if err != nil {
		return editor.Options{}, err
	}
	def, err := a.cfg.DefaultSymbol(cat)
	if err != nil {
		return editor.Options{}, fmt.Errorf("default symbol %q: %w", a.cfg.Symbols.Default, err)
	}
	opts := editor.Options{
		Catalog:       cat,
		Layout:        a.cfg.Layout(),
		DefaultSymbol: def,
		DefaultColor:  a.cfg.DefaultColor(),
		Undo:          a.cfg.Undo(),
	}
	if a.cfg.History.Enabled {
		opts.KeepRevisions = a.cfg.History.Keep
		if opts.KeepRevisions == 0 {
			opts.KeepRevisions = -1
		}
	}
	return opts, nil
}

func (a *app) open(path string) (*editor.Session, error) {
	opts, err := a.editorOptions()
	if err != nil {
		return nil, err
	}
	return editor.Open(path, opts)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "knitchart %s\n", version.String())
		},
	}
}

func newUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ui [chart.kcp]",
		Short: "Launch the desktop editor (build with -tags fyne)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.editorOptions()
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return ui.Run(path, ui.Options{
				Editor:       opts,
				Columns:      a.cfg.Chart.Columns,
				Rows:         a.cfg.Chart.Rows,
				ExportPreset: export.PresetName(a.cfg.Export.Preset),
			})
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
			keys := []string{"symbols.paths", "chart.cell_width", "chart.cell_height", "logging.level", "logging.format", "logging.source", "logging.file"}
			tw := newTable(out)
			tw.AppendHeader(table.Row{"Setting", "Overridden by"})
			n := 0
			for _, k := range keys {
				if env, ok := config.EnvOverrideFor(k); ok {
					tw.AppendRow(table.Row{k, env})
					n++
				}
			}
			if n > 0 {
				fmt.Fprintln(out)
				tw.Render()
			}
			return nil
		},
	}
}

// newTable returns a table writer in the CLI's style. Borders are plain
// ASCII unless out is a terminal, whose width then limits the rows.
func newTable(out io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleDefault)
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tw.SetStyle(table.StyleRounded)
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 20 {
			tw.SetAllowedRowLength(width)
		}
	}
	return tw
}

// parseCell parses "col,row".
func parseCell(s string) (col, row int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("cell %q: want col,row", s)
	}
	col, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	row, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err := errors.Join(err1, err2); err != nil {
		return 0, 0, fmt.Errorf("cell %q: %w", s, err)
	}
	return col, row, nil
}

// parseRect parses "col,row,width,height".
func parseRect(s string) (domain.CellRect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.CellRect{}, fmt.Errorf("rect %q: want col,row,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return domain.CellRect{}, fmt.Errorf("rect %q: %w", s, err)
		}
		v[i] = n
	}
	r := domain.CellRect{Column: v[0], Row: v[1], Width: v[2], Height: v[3]}
	if r.Empty() {
		return r, fmt.Errorf("rect %q: width and height must be positive", s)
	}
	return r, nil
}
