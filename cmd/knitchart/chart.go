/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"knitchart/internal/crash"
	"knitchart/internal/domain"
	"knitchart/internal/editor"
	"knitchart/internal/grid"
	"knitchart/internal/legend"
)

func newNewCmd(a *app) *cobra.Command {
	var cols, rows int
	var force bool
	cmd := &cobra.Command{
		Use:   "new <chart.kcp>",
		Short: "Create an empty chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", path)
			}
			if !cmd.Flags().Changed("cols") {
				cols = a.cfg.Chart.Columns
			}
			if !cmd.Flags().Changed("rows") {
				rows = a.cfg.Chart.Rows
			}
			opts, err := a.editorOptions()
			if err != nil {
				return err
			}
			sess, err := editor.New(cols, rows, opts)
			if err != nil {
				return err
			}
			defer crash.Recover(sess)
			if err := sess.SaveAs(cmd.Context(), path); err != nil {
				return err
			}
			a.log.Info("chart created", "path", path, "cols", cols, "rows", rows)
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%dx%d)\n", path, cols, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&cols, "cols", 0, "Number of columns (default from config)")
	cmd.Flags().IntVar(&rows, "rows", 0, "Number of rows (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <chart.kcp>",
		Short: "Describe a chart: size, palette, legend and markers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			g := sess.Grid()
			cols, rows := g.Dims()
			fmt.Fprintf(out, "%s: %d columns x %d rows, %d cells\n", args[0], cols, rows, g.Len())
			if sess.Dirty() {
				fmt.Fprintln(out, "note: the file was damaged and a backup was loaded")
			}
			names := make([]string, 0, sess.Palette().Len())
			for _, c := range sess.Palette().Colors() {
				names = append(names, c.Name())
			}
			fmt.Fprintf(out, "palette: %s\n", strings.Join(names, " "))

			if entries := sess.Legend().Entries(); len(entries) > 0 {
				fmt.Fprintln(out)
				tw := newTable(out)
				tw.AppendHeader(table.Row{"Key", "Cells", "Label"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.Key.String(), e.Count, e.Text})
				}
				tw.Render()
			}
			if ms := g.Markers(); len(ms) > 0 {
				fmt.Fprintln(out)
				tw := newTable(out)
				tw.AppendHeader(table.Row{"#", "Column", "Row", "Width", "Height", "Color"})
				for i, m := range ms {
					tw.AppendRow(table.Row{i, m.Rect.Column, m.Rect.Row, m.Rect.Width, m.Rect.Height, m.Color.Name()})
				}
				tw.Render()
			}
			return nil
		},
	}
}

// selectCells selects the cells named by --at and --rect.
func selectCells(g *grid.Grid, at []string, rect string) error {
	g.ClearSelection()
	for _, s := range at {
		col, row, err := parseCell(s)
		if err != nil {
			return err
		}
		if err := g.Select(col, row); err != nil {
			return fmt.Errorf("select %s: %w", s, err)
		}
	}
	if rect != "" {
		r, err := parseRect(rect)
		if err != nil {
			return err
		}
		if err := g.SelectRect(r); err != nil {
			return fmt.Errorf("select %s: %w", rect, err)
		}
	}
	if g.SelectionLen() == 0 {
		return errors.New("nothing selected (use --at or --rect)")
	}
	return nil
}

func newPlaceCmd(a *app) *cobra.Command {
	var ref, colorName, rect string
	var at []string
	cmd := &cobra.Command{
		Use:   "place <chart.kcp>",
		Short: "Place a symbol on selected cells, or recolor them",
		Long: strings.TrimSpace(`
Selects the cells given by --at and --rect and fills them with --symbol in
--color. Without --symbol the selected cells only change their color.
Cells of one row that touch form a span; each span must be a multiple of
the symbol width.`),
		Example: "  knitchart place sock.kcp --symbol cables/c4 --rect 0,2,4,1 --color '#cc0000'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ref == "" && colorName == "" {
				return errors.New("need --symbol or --color")
			}
			sess, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer crash.Recover(sess)
			color := sess.Grid().DefaultColor()
			if colorName != "" {
				if color, err = domain.ParseColor(colorName); err != nil {
					return err
				}
			}
			if err := selectCells(sess.Grid(), at, rect); err != nil {
				return err
			}
			n := sess.Grid().SelectionLen()
			if ref != "" {
				err = sess.PlaceRef(ref, color)
			} else {
				err = sess.Recolor(color)
			}
			if err != nil {
				return err
			}
			if err := saveSession(cmd.Context(), sess); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d cells\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "symbol", "", "Symbol as category/name")
	cmd.Flags().StringVar(&colorName, "color", "", "Background color (name or #rrggbb)")
	cmd.Flags().StringArrayVar(&at, "at", nil, "Cell col,row to select (repeatable)")
	cmd.Flags().StringVar(&rect, "rect", "", "Rectangle col,row,width,height to select")
	return cmd
}

// newStructureCmd builds "insert" and "delete".
func newStructureCmd(a *app, verb string) *cobra.Command {
	short := "Insert a row or column before index"
	if verb == "delete" {
		short = "Delete the row or column at index"
	}
	return &cobra.Command{
		Use:       verb + " <chart.kcp> row|column <index>",
		Short:     short,
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"row", "column"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var axis grid.Axis
			switch strings.ToLower(args[1]) {
			case "row", "rows":
				axis = grid.Rows
			case "column", "columns", "col":
				axis = grid.Columns
			default:
				return fmt.Errorf("unknown axis %q: want row or column", args[1])
			}
			idx, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("index %q: %w", args[2], err)
			}
			sess, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer crash.Recover(sess)
			if verb == "delete" {
				err = sess.Delete(axis, idx)
			} else {
				err = sess.Insert(axis, idx)
			}
			if err != nil {
				return fmt.Errorf("%s %s %d: %w", verb, axis, idx, err)
			}
			if err := saveSession(cmd.Context(), sess); err != nil {
				return err
			}
			cols, rows := sess.Grid().Dims()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d: now %dx%d\n", verb, axis, idx, cols, rows)
			return nil
		},
	}
}

func newMarkCmd(a *app) *cobra.Command {
	var rect, colorName string
	var remove int
	cmd := &cobra.Command{
		Use:   "mark <chart.kcp>",
		Short: "Outline a rectangle of cells, or remove a marker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer crash.Recover(sess)
			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("remove") {
				if err := sess.RemoveMarker(remove); err != nil {
					return err
				}
				if err := saveSession(cmd.Context(), sess); err != nil {
					return err
				}
				fmt.Fprintf(out, "removed marker %d\n", remove)
				return nil
			}
			if rect == "" {
				return errors.New("need --rect or --remove")
			}
			color, err := domain.ParseColor(colorName)
			if err != nil {
				return err
			}
			if err := selectCells(sess.Grid(), nil, rect); err != nil {
				return err
			}
			m, err := sess.Mark(color)
			if err != nil {
				return err
			}
			if err := saveSession(cmd.Context(), sess); err != nil {
				return err
			}
			fmt.Fprintf(out, "marked %d,%d %dx%d\n", m.Rect.Column, m.Rect.Row, m.Rect.Width, m.Rect.Height)
			return nil
		},
	}
	cmd.Flags().StringVar(&rect, "rect", "", "Rectangle col,row,width,height")
	cmd.Flags().StringVar(&colorName, "color", "red", "Outline color")
	cmd.Flags().IntVar(&remove, "remove", 0, "Remove the marker with this index (see info)")
	return cmd
}

func newLegendCmd(a *app) *cobra.Command {
	var labels []string
	cmd := &cobra.Command{
		Use:   "legend <chart.kcp>",
		Short: "List legend entries or edit their labels",
		Example: "  knitchart legend sock.kcp --set-label 'cables/c4@#cc0000=Cable 4 front'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer crash.Recover(sess)
			out := cmd.OutOrStdout()
			for _, kv := range labels {
				id, text, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("label %q: want KEY=TEXT", kv)
				}
				k, err := legend.ParseKey(strings.TrimSpace(id))
				if err != nil {
					return err
				}
				if err := sess.SetLabel(k, text); err != nil {
					return fmt.Errorf("label %s: %w", k, err)
				}
			}
			if len(labels) > 0 {
				if err := saveSession(cmd.Context(), sess); err != nil {
					return err
				}
			}
			tw := newTable(out)
			tw.AppendHeader(table.Row{"Key", "Width", "Cells", "Icon", "Label"})
			for _, e := range sess.Legend().Entries() {
				tw.AppendRow(table.Row{
					e.Key.String(),
					e.Symbol.Width,
					e.Count,
					fmt.Sprintf("%.0f,%.0f", e.Icon.X, e.Icon.Y),
					e.Text,
				})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&labels, "set-label", nil, "Set a label as KEY=TEXT (repeatable)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <chart.kcp>",
		Short: "List saved revisions of a chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(args[0])
			if err != nil {
				return err
			}
			revs, err := sess.Revisions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(revs) == 0 {
				fmt.Fprintln(out, "no revisions")
				return nil
			}
			tw := newTable(out)
			tw.AppendHeader(table.Row{"ID", "Saved", "Label", "Bytes"})
			for _, r := range revs {
				tw.AppendRow(table.Row{r.ID[:8], r.Time.Local().Format("2006-01-02 15:04:05"), r.Label, r.Size})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of revisions to list")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <chart.kcp> <revision-id>",
		Short: "Restore a chart from a saved revision (id prefix is enough)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer crash.Recover(sess)
			rev, err := sess.RestoreRevision(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if err := saveSession(cmd.Context(), sess); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", args[0], rev.Time.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func saveSession(ctx context.Context, sess *editor.Session) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := sess.Save(ctx); err != nil {
		return fmt.Errorf("save %s: %w", sess.Path(), err)
	}
	return nil
}
