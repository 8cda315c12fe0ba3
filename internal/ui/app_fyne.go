//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"knitchart/internal/crash"
	"knitchart/internal/domain"
	"knitchart/internal/editor"
	"knitchart/internal/export"
	"knitchart/internal/grid"
	applog "knitchart/internal/log"
	"knitchart/internal/storage"
	"knitchart/internal/symbol"
	"knitchart/internal/version"
)

// Run opens the chart at path, or a new chart when path is empty, in the
// desktop editor and blocks until the window is closed.
func Run(path string, opts Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("chart", path))

	var sess *editor.Session
	var err error
	if path != "" {
		sess, err = editor.Open(path, opts.Editor)
	} else {
		sess, err = editor.New(max(opts.Columns, 1), max(opts.Rows, 1), opts.Editor)
	}
	if err != nil {
		return err
	}
	a := &chartApp{sess: sess, opts: opts, log: l}
	defer crash.Recover(a)
	a.build()
	a.win.ShowAndRun()
	return nil
}

// chartApp is the main window around one editor session at a time.
type chartApp struct {
	sess *editor.Session
	opts Options
	log  *slog.Logger

	fyne   fyne.App
	win    fyne.Window
	chart  *ChartCanvas
	status *widget.Label

	categories  *widget.Select
	symbols     []symbol.Symbol
	symbolList  *widget.List
	current     symbol.Symbol
	colors      *widget.Select
	color       domain.Color
	legendList  *widget.List
	legendCache []string
}

// Path and Encode let crash.Recover autosave whichever chart is open.
func (a *chartApp) Path() string            { return a.sess.Path() }
func (a *chartApp) Encode() ([]byte, error) { return a.sess.Encode() }

func (a *chartApp) build() {
	a.fyne = app.NewWithID("io.knitchart.editor")
	a.win = a.fyne.NewWindow("knitchart")
	prefs := a.fyne.Preferences()
	a.win.Resize(fyne.NewSize(
		float32(max(prefs.IntWithFallback("window.width", 1200), 800)),
		float32(max(prefs.IntWithFallback("window.height", 800), 600)),
	))

	a.status = widget.NewLabel("Ready")
	a.chart = NewChartCanvas(a.sess)
	a.chart.OnChanged = a.refresh
	a.chart.OnError = a.showError
	a.color = domain.Black

	left := a.buildPalette()
	right := a.buildLegend()
	center := container.NewHSplit(left, container.NewHSplit(a.chart, right))
	center.Offset = 0.2
	a.win.SetContent(container.NewBorder(nil, a.status, nil, nil, center))
	a.win.SetMainMenu(a.buildMenu())

	for key, fn := range map[fyne.KeyName]func(){
		fyne.KeyZ: a.undo,
		fyne.KeyY: a.redo,
		fyne.KeyP: a.place,
	} {
		fn := fn
		a.win.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { fn() })
	}

	a.win.SetCloseIntercept(func() {
		a.confirmDiscard(func() {
			sz := a.win.Canvas().Size()
			prefs.SetInt("window.width", int(sz.Width))
			prefs.SetInt("window.height", int(sz.Height))
			a.win.Close()
		})
	})
	a.refresh()
}

func (a *chartApp) buildPalette() fyne.CanvasObject {
	cat := a.sess.Catalog()
	a.categories = widget.NewSelect(append([]string{"All"}, cat.Categories()...), func(c string) {
		if c == "All" {
			a.symbols = cat.Symbols()
		} else {
			a.symbols = cat.ByCategory(c)
		}
		a.symbolList.UnselectAll()
		a.symbolList.Refresh()
	})
	a.symbols = cat.Symbols()
	a.symbolList = widget.NewList(
		func() int { return len(a.symbols) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i < 0 || int(i) >= len(a.symbols) {
				return
			}
			s := a.symbols[i]
			o.(*widget.Label).SetText(fmt.Sprintf("%s (%s, w%d)", s.Name, s.Category, s.Width))
		},
	)
	a.symbolList.OnSelected = func(id widget.ListItemID) {
		if id >= 0 && int(id) < len(a.symbols) {
			a.current = a.symbols[id]
			a.status.SetText("Symbol: " + a.current.Ref().String())
		}
	}
	a.categories.SetSelected("All")

	a.colors = widget.NewSelect(nil, func(name string) {
		if c, err := domain.ParseColor(name); err == nil {
			a.color = c
		}
	})
	addColor := widget.NewButton("Add color…", a.addColorDialog)

	buttons := container.NewGridWithColumns(2,
		widget.NewButton("Place", a.place),
		widget.NewButton("Recolor", a.recolor),
		widget.NewButton("Mark", a.mark),
		widget.NewButton("Clear", func() { a.sess.Grid().ClearSelection(); a.chart.Refresh() }),
	)
	top := container.NewVBox(widget.NewLabel("Symbols"), a.categories)
	bottom := container.NewVBox(widget.NewSeparator(), widget.NewLabel("Color"), a.colors, addColor, buttons)
	return container.NewBorder(top, bottom, nil, nil, a.symbolList)
}

func (a *chartApp) buildLegend() fyne.CanvasObject {
	a.legendList = widget.NewList(
		func() int { return len(a.legendCache) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && int(i) < len(a.legendCache) {
				o.(*widget.Label).SetText(a.legendCache[i])
			}
		},
	)
	a.legendList.OnSelected = func(id widget.ListItemID) {
		entries := a.sess.Legend().Entries()
		a.legendList.UnselectAll()
		if id < 0 || int(id) >= len(entries) {
			return
		}
		e := entries[id]
		entry := widget.NewEntry()
		entry.SetText(e.Text)
		dialog.ShowForm("Legend label", "Apply", "Cancel", []*widget.FormItem{
			widget.NewFormItem(e.Key.String(), entry),
		}, func(ok bool) {
			if !ok {
				return
			}
			a.apply("label", a.sess.SetLabel(e.Key, entry.Text))
		}, a.win)
	}
	return container.NewBorder(widget.NewLabel("Legend"), nil, nil, nil, a.legendList)
}

func (a *chartApp) buildMenu() *fyne.MainMenu {
	newItem := fyne.NewMenuItem("New…", a.newDialog)
	openItem := fyne.NewMenuItem("Open…", a.openDialog)
	saveItem := fyne.NewMenuItem("Save", a.save)
	saveAsItem := fyne.NewMenuItem("Save As…", a.saveAsDialog)
	exportItem := fyne.NewMenuItem("Export…", a.exportDialog)
	exportAllItem := fyne.NewMenuItem("Export All", a.exportAll)
	revisionsItem := fyne.NewMenuItem("Revisions…", a.revisionsDialog)
	newItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyN, Modifier: fyne.KeyModifierControl}
	openItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}
	saveItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}
	fileMenu := fyne.NewMenu("File", newItem, openItem, saveItem, saveAsItem,
		fyne.NewMenuItemSeparator(), exportItem, exportAllItem,
		fyne.NewMenuItemSeparator(), revisionsItem)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", a.undo),
		fyne.NewMenuItem("Redo", a.redo),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Place Symbol", a.place),
		fyne.NewMenuItem("Recolor", a.recolor),
		fyne.NewMenuItem("Mark Selection", a.mark),
		fyne.NewMenuItem("Remove Markers", a.removeMarkers),
		fyne.NewMenuItem("Clear Selection", func() { a.sess.Grid().ClearSelection(); a.chart.Refresh() }),
	)
	chartMenu := fyne.NewMenu("Chart",
		fyne.NewMenuItem("Insert Row Above", func() { a.structural(grid.Rows, true) }),
		fyne.NewMenuItem("Insert Column Left", func() { a.structural(grid.Columns, true) }),
		fyne.NewMenuItem("Delete Row", func() { a.structural(grid.Rows, false) }),
		fyne.NewMenuItem("Delete Column", func() { a.structural(grid.Columns, false) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Zoom In", func() { a.chart.Zoom(0.25) }),
		fyne.NewMenuItem("Zoom Out", func() { a.chart.Zoom(-0.25) }),
	)
	aboutMenu := fyne.NewMenu("About", fyne.NewMenuItem("About knitchart", func() {
		dialog.ShowInformation("About", fmt.Sprintf("knitchart %s\n\nLicensed under the Apache License, Version 2.0.", version.String()), a.win)
	}))
	return fyne.NewMainMenu(fileMenu, editMenu, chartMenu, aboutMenu)
}

// setSession swaps the open chart.
func (a *chartApp) setSession(s *editor.Session) {
	a.sess = s
	a.chart.SetSession(s)
	a.refresh()
}

// refresh redraws everything that depends on the session.
func (a *chartApp) refresh() {
	title := "Untitled"
	if p := a.sess.Path(); p != "" {
		title = filepath.Base(p)
	}
	if a.sess.Dirty() {
		title += " *"
	}
	a.win.SetTitle("knitchart: " + title)

	var names []string
	for _, c := range a.sess.Palette().Colors() {
		names = append(names, c.Name())
	}
	a.colors.Options = names
	a.colors.Refresh()
	if a.colors.Selected == "" && len(names) > 0 {
		a.colors.SetSelected(names[0])
	}

	a.legendCache = a.legendCache[:0]
	for _, e := range a.sess.Legend().Entries() {
		a.legendCache = append(a.legendCache, fmt.Sprintf("%s (%d)", e.Text, e.Count))
	}
	a.legendList.Refresh()
	a.chart.Refresh()
}

func (a *chartApp) showError(err error) {
	a.log.Warn("edit rejected", slog.Any("err", err))
	a.status.SetText("Error: " + err.Error())
	dialog.ShowError(err, a.win)
}

// apply reports the outcome of an edit.
func (a *chartApp) apply(what string, err error) {
	if err != nil {
		a.showError(err)
		return
	}
	a.status.SetText(what)
	a.refresh()
}

func (a *chartApp) place() {
	if a.current.IsEmpty() {
		a.showError(errors.New("choose a symbol first"))
		return
	}
	a.apply("Placed "+a.current.Name, a.sess.Place(a.current, a.color))
}

func (a *chartApp) recolor() { a.apply("Recolored", a.sess.Recolor(a.color)) }

func (a *chartApp) mark() {
	_, err := a.sess.Mark(a.color)
	a.apply("Marked selection", err)
}

func (a *chartApp) removeMarkers() {
	for n := len(a.sess.Grid().Markers()); n > 0; n-- {
		if err := a.sess.RemoveMarker(n - 1); err != nil {
			a.showError(err)
			break
		}
	}
	a.refresh()
}

// structural inserts before, or deletes, the row or column of the first
// selected cell.
func (a *chartApp) structural(axis grid.Axis, insert bool) {
	sel := a.sess.Grid().Selection()
	if len(sel) == 0 {
		a.showError(fmt.Errorf("select a cell in the %s first", axis))
		return
	}
	pivot := sel[0].Row
	if axis == grid.Columns {
		pivot = sel[0].Column
	}
	if insert {
		a.apply(fmt.Sprintf("Inserted %s %d", axis, pivot), a.sess.Insert(axis, pivot))
		return
	}
	a.apply(fmt.Sprintf("Deleted %s %d", axis, pivot), a.sess.Delete(axis, pivot))
}

func (a *chartApp) undo() {
	label, _ := a.sess.UndoManager().CanUndo()
	ok, err := a.sess.Undo()
	if err != nil {
		a.showError(err)
		return
	}
	if ok {
		a.apply("Undid "+label, nil)
	}
}

func (a *chartApp) redo() {
	label, _ := a.sess.UndoManager().CanRedo()
	ok, err := a.sess.Redo()
	if err != nil {
		a.showError(err)
		return
	}
	if ok {
		a.apply("Redid "+label, nil)
	}
}

func (a *chartApp) addColorDialog() {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("#rrggbb or a color name")
	dialog.ShowForm("Add color", "Add", "Cancel", []*widget.FormItem{widget.NewFormItem("Color", entry)}, func(ok bool) {
		if !ok {
			return
		}
		c, err := domain.ParseColor(entry.Text)
		if err != nil {
			a.showError(err)
			return
		}
		a.apply("Added "+c.Name(), a.sess.AddColor(c))
		a.colors.SetSelected(c.Name())
	}, a.win)
}

// confirmDiscard runs next right away for a clean chart and after a
// confirmation otherwise.
func (a *chartApp) confirmDiscard(next func()) {
	if !a.sess.Dirty() {
		next()
		return
	}
	dialog.ShowConfirm("Unsaved changes", "Discard the changes to this chart?", func(ok bool) {
		if ok {
			next()
		}
	}, a.win)
}

func (a *chartApp) newDialog() {
	a.confirmDiscard(func() {
		cols, rows := widget.NewEntry(), widget.NewEntry()
		cols.SetText(strconv.Itoa(max(a.opts.Columns, 1)))
		rows.SetText(strconv.Itoa(max(a.opts.Rows, 1)))
		dialog.ShowForm("New chart", "Create", "Cancel", []*widget.FormItem{
			widget.NewFormItem("Columns", cols),
			widget.NewFormItem("Rows", rows),
		}, func(ok bool) {
			if !ok {
				return
			}
			c, err1 := strconv.Atoi(strings.TrimSpace(cols.Text))
			r, err2 := strconv.Atoi(strings.TrimSpace(rows.Text))
			if err := errors.Join(err1, err2); err != nil {
				a.showError(err)
				return
			}
			s, err := editor.New(c, r, a.opts.Editor)
			if err != nil {
				a.showError(err)
				return
			}
			a.setSession(s)
		}, a.win)
	})
}

func (a *chartApp) openDialog() {
	a.confirmDiscard(func() {
		d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			s, err := editor.Open(path, a.opts.Editor)
			if err != nil {
				a.showError(err)
				return
			}
			a.setSession(s)
			a.status.SetText("Opened " + path)
		}, a.win)
		d.SetFilter(fstorage.NewExtensionFileFilter([]string{storage.Extension}))
		d.Show()
	})
}

func (a *chartApp) save() {
	if a.sess.Path() == "" {
		a.saveAsDialog()
		return
	}
	a.apply("Saved", a.sess.Save(context.Background()))
}

// savePath asks for a file to write and hands its path to fn. The dialog
// creates the file; an empty one is removed again so that no backup of it
// is taken.
func (a *chartApp) savePath(name string, fn func(path string)) {
	d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		path := wc.URI().Path()
		_ = wc.Close()
		if st, err := os.Stat(path); err == nil && st.Size() == 0 {
			_ = os.Remove(path)
		}
		fn(path)
	}, a.win)
	d.SetFileName(name)
	d.Show()
}

func (a *chartApp) saveAsDialog() {
	a.savePath("chart"+storage.Extension, func(path string) {
		if filepath.Ext(path) == "" {
			path += storage.Extension
		}
		a.apply("Saved as "+path, a.sess.SaveAs(context.Background(), path))
	})
}

func (a *chartApp) exportDialog() {
	a.savePath("chart.png", func(path string) {
		err := export.File(a.sess.Document(), a.sess.Layout(), path, export.Options{})
		a.apply("Exported "+path, err)
	})
}

func (a *chartApp) exportAll() {
	if a.sess.Path() == "" {
		a.showError(editor.ErrNoPath)
		return
	}
	preset := a.opts.ExportPreset
	if preset == "" {
		preset = export.PresetWeb
	}
	out, err := export.BatchExport(a.sess.Document(), a.sess.Layout(), a.sess.Path(), export.BatchOptions{Preset: preset})
	if err != nil {
		a.showError(err)
		return
	}
	a.status.SetText(fmt.Sprintf("Exported %d files to %s", len(out), filepath.Dir(out[0])))
}

func (a *chartApp) revisionsDialog() {
	revs, err := a.sess.Revisions(context.Background(), 50)
	if err != nil {
		a.showError(err)
		return
	}
	if len(revs) == 0 {
		dialog.ShowInformation("Revisions", "No saved revisions yet.", a.win)
		return
	}
	var d dialog.Dialog
	list := widget.NewList(
		func() int { return len(revs) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			r := revs[i]
			o.(*widget.Label).SetText(fmt.Sprintf("%s  %s  %s  %d bytes", r.ID[:8], r.Time.Local().Format("2006-01-02 15:04:05"), r.Label, r.Size))
		},
	)
	list.OnSelected = func(id widget.ListItemID) {
		r := revs[id]
		dialog.ShowConfirm("Restore revision", "Replace the chart with revision "+r.ID[:8]+"? This can be undone.", func(ok bool) {
			if !ok {
				list.UnselectAll()
				return
			}
			_, err := a.sess.RestoreRevision(context.Background(), r.ID)
			d.Hide()
			a.apply("Restored revision "+r.ID[:8], err)
		}, a.win)
	}
	d = dialog.NewCustom("Revisions", "Close", list, a.win)
	d.Resize(fyne.NewSize(560, 400))
	d.Show()
}

func toColor(c domain.Color) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}
