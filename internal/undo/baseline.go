/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps the single "undo to last loaded" step the editor offers per
// settings field. There is no history beyond that one snapshot and no redo.
package undo

import (
	"encoding/json"
	"sync"
	"time"

	"missioneditor/internal/domain"
)

// Key addresses one field of one panel.
type Key struct {
	PanelID string
	Field   string
}

// Snapshot is the stored wire form of a field as it was loaded.
// Size is estimated as len(Blob).
type Snapshot struct {
	Key  Key
	Blob []byte
	TS   time.Time
}

// Config controls the memory cap.
type Config struct {
	// MaxBytes is a soft cap; the oldest snapshots are pruned when exceeded.
	MaxBytes int
}

// Baseline holds at most one snapshot per Key. It is safe for concurrent use.
type Baseline struct {
	cfg        Config
	mu         sync.Mutex
	snaps      map[Key]Snapshot
	totalBytes int
	now        func() time.Time
}

func NewBaseline(cfg Config) *Baseline {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024 // 4 MiB
	}
	return &Baseline{cfg: cfg, snaps: make(map[Key]Snapshot), now: time.Now}
}

// Capture records v as the loaded value of (panelID, field), replacing any
// earlier snapshot for the same key.
func (b *Baseline) Capture(panelID, field string, v domain.VariableField) {
	blob, err := v.MarshalJSON()
	if err != nil {
		return
	}
	k := Key{PanelID: panelID, Field: field}
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.snaps[k]; ok {
		b.totalBytes -= len(old.Blob)
	}
	b.snaps[k] = Snapshot{Key: k, Blob: blob, TS: b.now()}
	b.totalBytes += len(blob)
	b.enforceCapLocked()
}

// CapturePanel records every field of the panel's record.
func (b *Baseline) CapturePanel(p *domain.Panel) {
	r := p.Record()
	if r == nil {
		return
	}
	for name, f := range r.Fields {
		b.Capture(p.PanelID, name, f)
	}
}

// Get returns the loaded value of (panelID, field).
func (b *Baseline) Get(panelID, field string) (domain.VariableField, bool) {
	b.mu.Lock()
	s, ok := b.snaps[Key{PanelID: panelID, Field: field}]
	b.mu.Unlock()
	if !ok {
		return domain.VariableField{}, false
	}
	var v domain.VariableField
	if err := json.Unmarshal(s.Blob, &v); err != nil {
		return domain.VariableField{}, false
	}
	return v, true
}

// Forget drops every snapshot of panelID.
func (b *Baseline) Forget(panelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, s := range b.snaps {
		if k.PanelID == panelID {
			b.totalBytes -= len(s.Blob)
			delete(b.snaps, k)
		}
	}
	if b.totalBytes < 0 {
		b.totalBytes = 0
	}
}

// Rename moves the snapshots of oldID to newID, e.g. after a panel was
// re-identified by a cross-container move.
func (b *Baseline) Rename(oldID, newID string) {
	if oldID == newID {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, s := range b.snaps {
		if k.PanelID != oldID {
			continue
		}
		delete(b.snaps, k)
		nk := Key{PanelID: newID, Field: k.Field}
		if old, ok := b.snaps[nk]; ok {
			b.totalBytes -= len(old.Blob)
		}
		s.Key = nk
		b.snaps[nk] = s
	}
}

// Reset drops everything, e.g. when another mission is loaded.
func (b *Baseline) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = make(map[Key]Snapshot)
	b.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (b *Baseline) Stats() (totalBytes int, panels int, fields int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := map[string]struct{}{}
	for k := range b.snaps {
		seen[k.PanelID] = struct{}{}
	}
	return b.totalBytes, len(seen), len(b.snaps)
}

func (b *Baseline) enforceCapLocked() {
	// Global memory cap: prune oldest first
	for b.cfg.MaxBytes > 0 && b.totalBytes > b.cfg.MaxBytes && len(b.snaps) > 0 {
		var oldest Key
		var oldestTS time.Time
		first := true
		for k, s := range b.snaps {
			if first || s.TS.Before(oldestTS) {
				oldest, oldestTS, first = k, s.TS, false
			}
		}
		b.totalBytes -= len(b.snaps[oldest].Blob)
		delete(b.snaps, oldest)
	}
}
