/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor ties the chart pieces together. A Session owns the grid,
// its legend, the palette and the undo history, and is the single place
// through which a front-end changes a chart.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"knitchart/internal/domain"
	"knitchart/internal/grid"
	"knitchart/internal/legend"
	applog "knitchart/internal/log"
	"knitchart/internal/storage"
	"knitchart/internal/symbol"
	"knitchart/internal/undo"
)

// ErrNoPath is returned by Save when the session was never saved or opened.
var ErrNoPath = errors.New("chart has no file yet")

// Options configures a Session.
type Options struct {
	Catalog       *symbol.Catalog
	Layout        domain.Layout
	DefaultSymbol symbol.Symbol
	DefaultColor  domain.Color
	Undo          undo.Config
	// KeepRevisions > 0 records every save in the history database and
	// prunes it to that many revisions per chart. A negative value records
	// without pruning; zero disables the history.
	KeepRevisions int
}

func (o Options) normalized() Options {
	if o.Catalog == nil {
		o.Catalog = symbol.NewCatalog()
	}
	o.Layout = o.Layout.Normalized()
	if o.DefaultColor == (domain.Color{}) {
		o.DefaultColor = domain.White
	}
	// Snapshots are restored through the catalog, so it must know the
	// default symbol.
	if !o.DefaultSymbol.IsEmpty() {
		if _, err := o.Catalog.LookupRef(o.DefaultSymbol.Ref()); err != nil {
			o.Catalog = symbol.NewCatalog(append(o.Catalog.Symbols(), o.DefaultSymbol)...)
		}
	}
	return o
}

// Session is one open chart. Not safe for concurrent use.
type Session struct {
	opts    Options
	grid    *grid.Grid
	legend  *legend.Registry
	palette *domain.Palette
	undo    *undo.Manager
	path    string
	dirty   bool
	log     *slog.Logger
}

func newSession(opts Options) (*Session, error) {
	opts = opts.normalized()
	s := &Session{
		opts:    opts,
		legend:  legend.New(opts.Layout),
		palette: domain.DefaultPalette(),
		undo:    undo.NewManager(opts.Undo),
		log:     applog.WithComponent("editor"),
	}
	def := opts.DefaultColor
	g, err := grid.New(0, 0, grid.Options{DefaultSymbol: opts.DefaultSymbol, DefaultColor: &def, Listener: s.legend})
	if err != nil {
		return nil, err
	}
	s.grid = g
	return s, nil
}

// New starts an unsaved cols x rows chart.
func New(cols, rows int, opts Options) (*Session, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, err
	}
	if err := s.grid.Reset(cols, rows); err != nil {
		return nil, err
	}
	return s, nil
}

// Open loads the chart at path. When the file is damaged the latest backup
// is used and the session is marked dirty.
func Open(path string, opts Options) (*Session, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, err
	}
	doc, from, err := storage.OpenFile(path, s.opts.Catalog)
	if err != nil {
		return nil, err
	}
	if err := storage.Apply(doc, s.grid, s.legend, s.palette); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.path = path
	s.dirty = from != ""
	s.log = applog.WithChart(s.log, path)
	return s, nil
}

// Grid gives read access and selection control. Structural and placement
// changes must go through the Session so they can be undone.
func (s *Session) Grid() *grid.Grid { return s.grid }

func (s *Session) Legend() *legend.Registry { return s.legend }
func (s *Session) Palette() *domain.Palette { return s.palette }
func (s *Session) Catalog() *symbol.Catalog { return s.opts.Catalog }
func (s *Session) Layout() domain.Layout { return s.opts.Layout }
func (s *Session) Path() string { return s.path }
func (s *Session) Dirty() bool { return s.dirty }
func (s *Session) UndoManager() *undo.Manager { return s.undo }

// Document captures the current chart.
func (s *Session) Document() storage.Document {
	return storage.Snapshot(s.grid, s.legend, s.palette)
}

// Encode returns the chart as a project document.
func (s *Session) Encode() ([]byte, error) {
	return storage.Marshal(s.Document())
}

// edit runs fn as one undoable step named label. The state before fn is
// pushed onto the undo stack only when fn succeeds.
func (s *Session) edit(label string, fn func() error) error {
	before, err := s.Encode()
	if err != nil {
		return err
	}
	if err := fn(); err != nil {
		if errors.Is(err, grid.ErrInternal) {
			// The grid finished the edit but the legend disagrees; go back
			// to the known good state.
			if rerr := s.restore(before); rerr != nil {
				s.log.Error("restore after internal error failed", slog.Any("err", rerr))
			}
		}
		s.log.Debug("edit rejected", slog.String("op", label), slog.Any("err", err))
		return err
	}
	s.undo.Push(undo.Snapshot{Label: label, Blob: before, TS: time.Now()})
	s.dirty = true
	s.log.Debug("edit", slog.String("op", label))
	return nil
}

func (s *Session) restore(data []byte) error {
	doc, err := storage.Unmarshal(data, s.opts.Catalog)
	if err != nil {
		return err
	}
	return storage.Apply(doc, s.grid, s.legend, s.palette)
}

// Reset replaces the chart with an empty cols x rows grid.
func (s *Session) Reset(cols, rows int) error {
	return s.edit("reset", func() error { return s.grid.Reset(cols, rows) })
}

// Insert inserts a row or column before pivot.
func (s *Session) Insert(axis grid.Axis, pivot int) error {
	return s.edit("insert "+axis.String(), func() error { return s.grid.Insert(axis, pivot) })
}

// Delete removes a row or column.
func (s *Session) Delete(axis grid.Axis, target int) error {
	return s.edit("delete "+axis.String(), func() error { return s.grid.Delete(axis, target) })
}

// Place fills the selection with sym in color.
func (s *Session) Place(sym symbol.Symbol, color domain.Color) error {
	if sym.IsEmpty() || s.grid.SelectionLen() == 0 {
		return s.grid.Place(sym, color)
	}
	return s.edit("place", func() error { return s.grid.Place(sym, color) })
}

// PlaceRef is Place for a catalog reference such as "cables/c2".
func (s *Session) PlaceRef(ref string, color domain.Color) error {
	r, err := symbol.ParseRef(ref)
	if err != nil {
		return err
	}
	sym, err := s.opts.Catalog.LookupRef(r)
	if err != nil {
		return err
	}
	return s.Place(sym, color)
}

// Recolor changes the background of the selected cells.
func (s *Session) Recolor(color domain.Color) error {
	return s.edit("recolor", func() error { return s.grid.Recolor(color) })
}

// Mark outlines the selection, which must be a rectangle.
func (s *Session) Mark(color domain.Color) (grid.Marker, error) {
	var m grid.Marker
	err := s.edit("mark", func() error {
		var err error
		m, err = s.grid.MarkSelection(color)
		return err
	})
	return m, err
}

// RemoveMarker deletes the marker at index i.
func (s *Session) RemoveMarker(i int) error {
	return s.edit("unmark", func() error { return s.grid.RemoveMarker(i) })
}

// SetLabel edits a legend label.
func (s *Session) SetLabel(k legend.Key, text string) error {
	return s.edit("label", func() error { return s.legend.SetLabel(k, text) })
}

// MoveLegend repositions a legend item.
func (s *Session) MoveLegend(k legend.Key, icon, label domain.Point) error {
	return s.edit("move legend", func() error { return s.legend.Move(k, icon, label) })
}

// AddColor appends c to the palette.
func (s *Session) AddColor(c domain.Color) error {
	return s.edit("palette", func() error {
		if !s.palette.Add(c) {
			return fmt.Errorf("color %s already in palette", c.Name())
		}
		return nil
	})
}

// RemoveColor drops c from the palette.
func (s *Session) RemoveColor(c domain.Color) error {
	return s.edit("palette", func() error {
		if !s.palette.Remove(c) {
			return fmt.Errorf("color %s not in palette", c.Name())
		}
		return nil
	})
}

// Undo reverts the latest edit. It reports false when there is nothing to
// undo.
func (s *Session) Undo() (bool, error) {
	cur, err := s.Encode()
	if err != nil {
		return false, err
	}
	snap, ok := s.undo.Undo(cur)
	if !ok {
		return false, nil
	}
	if err := s.restore(snap.Blob); err != nil {
		return false, fmt.Errorf("undo %s: %w", snap.Label, err)
	}
	s.dirty = true
	return true, nil
}

// Redo repeats the latest undone edit.
func (s *Session) Redo() (bool, error) {
	cur, err := s.Encode()
	if err != nil {
		return false, err
	}
	snap, ok := s.undo.Redo(cur)
	if !ok {
		return false, nil
	}
	if err := s.restore(snap.Blob); err != nil {
		return false, fmt.Errorf("redo %s: %w", snap.Label, err)
	}
	s.dirty = true
	return true, nil
}

// Save writes the chart to its current file.
func (s *Session) Save(ctx context.Context) error {
	if s.path == "" {
		return ErrNoPath
	}
	return s.SaveAs(ctx, s.path)
}

// SaveAs writes the chart to path, which becomes the current file.
func (s *Session) SaveAs(ctx context.Context, path string) error {
	if err := storage.CheckExtension(path); err != nil {
		return err
	}
	data, err := s.Encode()
	if err != nil {
		return err
	}
	if err := storage.WriteRaw(path, data); err != nil {
		return err
	}
	if s.path != path {
		s.log = applog.WithChart(applog.WithComponent("editor"), path)
	}
	s.path = path
	s.dirty = false
	if s.opts.KeepRevisions != 0 {
		if err := s.recordRevision(ctx, data); err != nil {
			// The chart itself is safely on disk.
			s.log.Warn("history update failed", slog.Any("err", err))
		}
	}
	return nil
}

func (s *Session) recordRevision(ctx context.Context, data []byte) error {
	h, err := storage.OpenHistory(ctx, s.path)
	if err != nil {
		return err
	}
	defer h.Close()
	if _, err := h.Record(ctx, s.path, "save", data); err != nil {
		return err
	}
	if s.opts.KeepRevisions < 0 {
		return nil
	}
	_, err = h.Prune(ctx, s.path, s.opts.KeepRevisions)
	return err
}

// Revisions lists the saved revisions of the current file, newest first.
func (s *Session) Revisions(ctx context.Context, limit int) ([]storage.Revision, error) {
	if s.path == "" {
		return nil, ErrNoPath
	}
	h, err := storage.OpenHistory(ctx, s.path)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.List(ctx, s.path, limit)
}

// RestoreRevision replaces the chart with a revision from the history of
// the current file. The restore itself can be undone.
func (s *Session) RestoreRevision(ctx context.Context, id string) (storage.Revision, error) {
	if s.path == "" {
		return storage.Revision{}, ErrNoPath
	}
	h, err := storage.OpenHistory(ctx, s.path)
	if err != nil {
		return storage.Revision{}, err
	}
	defer h.Close()
	rev, data, err := h.Load(ctx, s.path, id)
	if err != nil {
		return storage.Revision{}, err
	}
	doc, err := storage.Unmarshal(data, s.opts.Catalog)
	if err != nil {
		return storage.Revision{}, fmt.Errorf("revision %s: %w", rev.ID, err)
	}
	err = s.edit("restore", func() error {
		return storage.Apply(doc, s.grid, s.legend, s.palette)
	})
	return rev, err
}
