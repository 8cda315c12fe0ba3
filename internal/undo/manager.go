/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"
)

// Snapshot is a reversible chart state: the encoded document as it was
// before an edit. Blob content is opaque to the manager; its size is
// estimated as len(Blob).
type Snapshot struct {
	Label string // the edit that followed this state, e.g. "place"
	Blob  []byte
	TS    time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap over both stacks; the oldest entries are
	// pruned when exceeded.
	MaxBytes int
	// MaxDepth limits the number of undo steps kept (0 means unlimited).
	MaxDepth int
	// MinInterval coalesces edits with the same label pushed within the
	// interval: the earlier snapshot is kept so one undo reverts the whole
	// burst. Zero disables coalescing.
	MinInterval time.Duration
}

// Manager is an in-memory undo/redo stack of chart snapshots.
// It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo []Snapshot
	redo []Snapshot
	// accounting
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	return &Manager{cfg: cfg}
}

// Push records the state before an edit and clears the redo stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked()
	if n := len(m.undo); n > 0 && m.cfg.MinInterval > 0 {
		last := m.undo[n-1]
		if s.Label != "" && s.Label == last.Label && s.TS.Sub(last.TS) < m.cfg.MinInterval {
			// Keep the older state; only extend the burst window.
			m.undo[n-1].TS = s.TS
			return
		}
	}
	m.undo = append(m.undo, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked()
}

// Undo pops the latest snapshot and returns it for restoring. current, the
// state being left, goes onto the redo stack.
func (m *Manager) Undo(current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.undo)
	if n == 0 {
		return Snapshot{}, false
	}
	s := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.totalBytes -= len(s.Blob)
	m.redo = append(m.redo, Snapshot{Label: s.Label, Blob: current, TS: time.Now()})
	m.totalBytes += len(current)
	m.enforceCapsLocked()
	return s, true
}

// Redo pops the latest undone state and returns it for restoring. current
// goes back onto the undo stack.
func (m *Manager) Redo(current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.redo)
	if n == 0 {
		return Snapshot{}, false
	}
	s := m.redo[n-1]
	m.redo = m.redo[:n-1]
	m.totalBytes -= len(s.Blob)
	m.undo = append(m.undo, Snapshot{Label: s.Label, Blob: current, TS: time.Now()})
	m.totalBytes += len(current)
	m.enforceCapsLocked()
	return s, true
}

// CanUndo reports whether Undo would succeed and names the edit it reverts.
func (m *Manager) CanUndo() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return "", false
	}
	return m.undo[len(m.undo)-1].Label, true
}

// CanRedo reports whether Redo would succeed and names the edit it repeats.
func (m *Manager) CanRedo() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return "", false
	}
	return m.redo[len(m.redo)-1].Label, true
}

// Clear empties both stacks, e.g. when another chart is opened.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo = nil, nil
	m.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, undoDepth, redoDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.undo), len(m.redo)
}

func (m *Manager) dropRedoLocked() {
	for _, s := range m.redo {
		m.totalBytes -= len(s.Blob)
	}
	m.redo = nil
}

func (m *Manager) enforceCapsLocked() {
	if m.cfg.MaxDepth > 0 && len(m.undo) > m.cfg.MaxDepth {
		toDrop := len(m.undo) - m.cfg.MaxDepth
		for i := 0; i < toDrop; i++ {
			m.totalBytes -= len(m.undo[i].Blob)
		}
		m.undo = append([]Snapshot{}, m.undo[toDrop:]...)
	}
	// Memory cap: prune the oldest undo states first, then the furthest
	// redo states. The newest entry of each stack is always kept.
	for m.totalBytes > m.cfg.MaxBytes && len(m.undo) > 1 {
		m.totalBytes -= len(m.undo[0].Blob)
		m.undo = m.undo[1:]
	}
	for m.totalBytes > m.cfg.MaxBytes && len(m.redo) > 1 {
		m.totalBytes -= len(m.redo[0].Blob)
		m.redo = m.redo[1:]
	}
}
