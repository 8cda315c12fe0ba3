/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package symbolpack moves custom symbol directories between machines as a
// single zip archive.
package symbolpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "knitchart/internal/log"
	"knitchart/internal/symbol"
)

// ManifestName is the informational text file at the root of every pack.
const ManifestName = "symbolpack.manifest.txt"

// ErrUnsafePath reports an archive entry that would escape the target.
var ErrUnsafePath = errors.New("unsafe path in symbol pack")

// Result summarizes an install.
type Result struct {
	Installed []symbol.Symbol
	// Skipped lists directory names that already existed or did not hold a
	// valid symbol.
	Skipped []string
}

// Export zips every valid symbol directory directly under root into
// destZip and returns the number of symbols written. Directories without a
// valid descriptor are logged and left out.
func Export(root, destZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("symbolpack"), "export").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return 0, errors.New("symbol root is required")
	}
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination is required")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("read symbol root: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZip)

	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		s, err := symbol.LoadDir(dir)
		if err != nil {
			l.Warn("skip directory", slog.String("dir", dir), slog.Any("err", err))
			continue
		}
		if err := addDir(zw, dir, e.Name()); err != nil {
			_ = zw.Close()
			return 0, fmt.Errorf("add %s: %w", e.Name(), err)
		}
		names = append(names, s.Ref().String())
	}

	manifest := fmt.Sprintf("knitchart symbol pack\nCreated: %s\nSymbols: %d\n\n%s\n",
		time.Now().Format(time.RFC3339), len(names), strings.Join(names, "\n"))
	w, err := zw.Create(ManifestName)
	if err != nil {
		_ = zw.Close()
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, manifest); err != nil {
		_ = zw.Close()
		return 0, fmt.Errorf("write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("symbol pack exported", slog.Int("symbols", len(names)), slog.String("zip", destZip))
	return len(names), nil
}

func addDir(zw *zip.Writer, dir, prefix string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		fw, err := zw.Create(path.Join(prefix, filepath.ToSlash(rel)))
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(fw, f)
		return err
	})
}

// Install unpacks packZip into root. Every top-level directory of the
// archive is one symbol; it is validated before it is moved into place and
// is skipped when root already has a directory of that name or when it
// does not hold a valid symbol.
func Install(root, packZip string) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("symbolpack"), "install").With(slog.String("root", root))
	var res Result
	if strings.TrimSpace(root) == "" {
		return res, errors.New("symbol root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return res, fmt.Errorf("ensure symbol root: %w", err)
	}
	staging, err := os.MkdirTemp(root, ".symbolpack-")
	if err != nil {
		return res, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	dirs, err := extract(packZip, staging)
	if err != nil {
		return res, err
	}
	for _, name := range dirs {
		target := filepath.Join(root, name)
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing symbol directory", slog.String("dir", target))
			res.Skipped = append(res.Skipped, name)
			continue
		}
		s, err := symbol.LoadDir(filepath.Join(staging, name))
		if err != nil {
			l.Warn("skip invalid symbol", slog.String("dir", name), slog.Any("err", err))
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if err := os.Rename(filepath.Join(staging, name), target); err != nil {
			return res, fmt.Errorf("install %s: %w", name, err)
		}
		s.Path = filepath.Join(target, filepath.Base(s.Path))
		res.Installed = append(res.Installed, s)
	}
	l.Info("symbol pack installed", slog.Int("symbols", len(res.Installed)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// Inspect lists the valid symbols contained in packZip without installing
// them.
func Inspect(packZip string) ([]symbol.Symbol, error) {
	staging, err := os.MkdirTemp("", "symbolpack-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()
	dirs, err := extract(packZip, staging)
	if err != nil {
		return nil, err
	}
	var out []symbol.Symbol
	for _, name := range dirs {
		s, err := symbol.LoadDir(filepath.Join(staging, name))
		if err != nil {
			continue
		}
		s.Path = path.Join(name, filepath.Base(s.Path))
		out = append(out, s)
	}
	return out, nil
}

// extract writes the archive below dst and returns its top-level
// directories in name order.
func extract(packZip, dst string) ([]string, error) {
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return nil, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	top := map[string]bool{}
	for _, f := range r.File {
		name := strings.TrimPrefix(f.Name, "./")
		if name == ManifestName {
			continue
		}
		clean := path.Clean(name)
		if path.IsAbs(name) || clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(name, `\`) {
			return nil, fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
		first, _, nested := strings.Cut(clean, "/")
		if !nested && !f.FileInfo().IsDir() {
			// Loose files at the root do not belong to any symbol.
			continue
		}
		top[first] = true
		target := filepath.Join(dst, filepath.FromSlash(clean))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	dirs := make([]string, 0, len(top))
	for d := range top {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
