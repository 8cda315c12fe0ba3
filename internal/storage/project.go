/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "knitchart/internal/log"
	"knitchart/internal/symbol"
)

const (
	// Extension is the project file extension.
	Extension      = ".kcp"
	BackupsDirName = "backups"
)

// ErrExtension rejects a path without the project extension.
var ErrExtension = errors.New("not a " + Extension + " project file")

// CheckExtension validates the project file extension of path.
func CheckExtension(path string) error {
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		return fmt.Errorf("%w: %s", ErrExtension, path)
	}
	return nil
}

// SaveFile writes doc to path with transactional semantics: the document
// goes to a temp file in the same directory which then replaces path. The
// previous file, if any, is first copied to a timestamped backup under
// backups/ beside it.
func SaveFile(path string, doc Document) error {
	if err := CheckExtension(path); err != nil {
		return err
	}
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	return writeProject(path, data)
}

// WriteRaw stores an already encoded document at path the same way SaveFile
// does. It is used to restore revisions from the history.
func WriteRaw(path string, data []byte) error {
	if err := CheckExtension(path); err != nil {
		return err
	}
	return writeProject(path, data)
}

func writeProject(path string, data []byte) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "save").With(slog.String("path", path))
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		bpath := backupPath(path, time.Now())
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current chart: %w", cerr)
		}
		l.Debug("backup written", slog.String("backup", bpath))
	}

	base := filepath.Base(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", base, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp chart: %w", werr)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace chart: %w", rerr)
	}
	l.Info("chart saved", slog.Int("bytes", len(data)))
	return nil
}

// OpenFile reads and decodes the project at path. When the file is missing
// or malformed, the latest backup is tried instead; its path is returned as
// the second value. A chart that names unknown symbols is not treated as
// corrupt and fails without touching backups.
func OpenFile(path string, cat *symbol.Catalog) (Document, string, error) {
	if err := CheckExtension(path); err != nil {
		return Document{}, "", err
	}
	doc, err := readProject(path, cat)
	if err == nil {
		return doc, "", nil
	}
	if errors.Is(err, symbol.ErrNotFound) {
		return Document{}, "", err
	}
	bpath, berr := latestBackup(path)
	if berr != nil {
		return Document{}, "", fmt.Errorf("open chart: %w; backup attempt: %v", err, berr)
	}
	doc, berr = readProject(bpath, cat)
	if berr != nil {
		return Document{}, "", fmt.Errorf("open chart: %w; backup attempt: %v", err, berr)
	}
	applog.WithComponent("storage").Warn("chart recovered from backup",
		slog.String("path", path), slog.String("backup", bpath), slog.Any("err", err))
	return doc, bpath, nil
}

func readProject(path string, cat *symbol.Catalog) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	doc, err := Decode(f, cat)
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Path = path
	}
	return doc, err
}

// Backups lists the backups of the project at path, oldest first.
func Backups(path string) ([]string, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // the timestamp in the name orders lexicographically
	return out, nil
}

func latestBackup(path string) (string, error) {
	bs, err := Backups(path)
	if err != nil {
		return "", err
	}
	if len(bs) == 0 {
		return "", errors.New("no backups found")
	}
	return bs[len(bs)-1], nil
}

func backupPath(path string, t time.Time) string {
	stamp := t.Format("20060102-150405.000")
	return filepath.Join(filepath.Dir(path), BackupsDirName, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
