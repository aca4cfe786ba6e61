/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"missioneditor/internal/domain"
	"missioneditor/internal/schema"
	"missioneditor/internal/storage"
	"missioneditor/internal/telemetry"
)

// Serialize renders the tree as a dataMission string. It fails as a whole
// when any panel cannot be stored.
func (s *Session) Serialize() (string, error) {
	s.mu.Lock()
	roots := s.roots
	s.mu.Unlock()
	return s.reg.SerializeMission(roots)
}

// Save serializes and validates the mission and writes it to the backend.
// Every failure is shown through the Notifier; nothing is written unless
// serialization and validation both succeed.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	m, loaded, roots := s.mission, s.loaded, s.roots
	s.mu.Unlock()
	if !loaded {
		return ErrNoMission
	}
	if s.backend == nil {
		return s.abort(m.ID, "offline", errors.New("no backend configured"))
	}

	data, err := s.reg.SerializeMission(roots)
	if err != nil {
		return s.abort(m.ID, "serialize", err)
	}
	m.DataMission = data
	if err := schema.ValidateMission(m); err != nil {
		return s.abort(m.ID, "validate", err)
	}
	if err := s.backend.PutMission(ctx, m); err != nil {
		return s.abort(m.ID, "write", err)
	}

	s.mu.Lock()
	s.mission = m
	if sameRoots(s.roots, roots) {
		s.dirty = false
		s.captureBaselineLocked()
	}
	s.mu.Unlock()
	s.log.Info("mission saved", slog.String("mission", m.ID), slog.Int("bytes", len(data)))
	s.events.Event(telemetry.EventMissionSaved, map[string]any{"bytes": len(data)})
	return nil
}

func (s *Session) abort(id, stage string, err error) error {
	s.log.Error("save aborted", slog.String("mission", id), slog.String("stage", stage), slog.Any("err", err))
	s.notifier.Notify("Mission not saved", err.Error())
	s.events.Event(telemetry.EventSaveAborted, map[string]any{"stage": stage})
	return fmt.Errorf("save mission %s: %w", id, err)
}

// sameRoots reports whether the tree was left alone while a save was in flight.
func sameRoots(a, b []*domain.Panel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Autosave writes the current tree as a mission file into dir and returns
// its path. Used by crash recovery.
func (s *Session) Autosave(dir string) (string, error) {
	s.mu.Lock()
	m, roots := s.mission, s.roots
	s.mu.Unlock()
	data, err := s.reg.SerializeMission(roots)
	if err != nil {
		return "", fmt.Errorf("autosave: %w", err)
	}
	m.DataMission = data
	return storage.AutosaveMission(dir, m)
}
