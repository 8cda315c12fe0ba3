/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"os"
	"path/filepath"
	"testing"

	"knitchart/internal/domain"
)

func TestBatchExport_WebPreset(t *testing.T) {
	root := t.TempDir()
	chart := filepath.Join(root, "scarf.kcp")
	got, err := BatchExport(sampleDoc(t, 6, 4), domain.DefaultLayout(), chart, BatchOptions{Preset: PresetWeb})
	if err != nil {
		t.Fatalf("batch export web: %v", err)
	}
	checks := []string{
		filepath.Join(root, "exports", "web", "scarf.png"),
		filepath.Join(root, "exports", "web", "scarf.svg"),
	}
	if len(got) != len(checks) {
		t.Fatalf("written = %v, want %v", got, checks)
	}
	for i, p := range checks {
		if got[i] != p {
			t.Fatalf("written[%d] = %s, want %s", i, got[i], p)
		}
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
}

func TestBatchExport_PrintPreset(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	got, err := BatchExport(sampleDoc(t, 6, 4), domain.DefaultLayout(), filepath.Join(root, "scarf.kcp"),
		BatchOptions{Preset: PresetPrint, OutDir: out, BaseName: "final"})
	if err != nil {
		t.Fatalf("batch export print: %v", err)
	}
	want := []string{filepath.Join(out, "final.pdf"), filepath.Join(out, "final.png")}
	for i, p := range want {
		if got[i] != p {
			t.Fatalf("written[%d] = %s, want %s", i, got[i], p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
	}
}

func TestParsePreset(t *testing.T) {
	if p, err := ParsePreset(" Print "); err != nil || p != PresetPrint {
		t.Fatalf("ParsePreset = %q, %v", p, err)
	}
	if _, err := ParsePreset("poster"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}
