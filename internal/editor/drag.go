/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"log/slog"

	"missioneditor/internal/dnd"
	"missioneditor/internal/domain"
	"missioneditor/internal/geom"
	"missioneditor/internal/tree"
)

// Layout reports where containers and panels are drawn right now. Drop asks
// it at drop time; bounds are never cached across gestures.
type Layout interface {
	ContainerBounds(key domain.ContainerKey) (geom.Rect, bool)
	// PanelBounds returns an empty rect for panels that are not measured.
	PanelBounds(panelID string) geom.Rect
}

// StaticLayout is a Layout backed by maps, for headless use and tests.
type StaticLayout struct {
	Containers map[domain.ContainerKey]geom.Rect
	Panels     map[string]geom.Rect
}

func (l StaticLayout) ContainerBounds(key domain.ContainerKey) (geom.Rect, bool) {
	r, ok := l.Containers[key]
	return r, ok
}

func (l StaticLayout) PanelBounds(id string) geom.Rect { return l.Panels[id] }

// endpointLocked classifies container key in the current tree.
func (s *Session) endpointLocked(key domain.ContainerKey) (dnd.Endpoint, bool) {
	if key.IsRoot() {
		return dnd.Endpoint{Key: key, Class: dnd.ClassRoot}, true
	}
	if _, ok := tree.Children(s.roots, key); !ok {
		return dnd.Endpoint{}, false
	}
	owner, _, _ := tree.Find(s.roots, key.Owner)
	return dnd.Endpoint{Key: key, Class: dnd.ClassFor(key, owner.Level())}, true
}

// BeginDrag starts dragging panel id.
func (s *Session) BeginDrag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, loc, ok := tree.Find(s.roots, id)
	if !ok {
		return fmt.Errorf("drag: %w: %s", ErrPanelNotFound, id)
	}
	s.drag.Begin(dnd.DragItem{PanelID: id, Source: loc.Container, Payload: domain.CopyPanel(node)})
	return nil
}

// DragOver records the hovered container and returns whether it accepts the
// dragged panel.
func (s *Session) DragOver(key domain.ContainerKey, zone dnd.Zone) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.drag.Active()
	if !ok {
		return false
	}
	src, ok := s.endpointLocked(item.Source)
	if !ok {
		return false
	}
	dst, ok := s.endpointLocked(key)
	if !ok {
		return false
	}
	return s.drag.Over(src, dst, zone)
}

// Hovered returns the hover state for drawing the zone marker.
func (s *Session) Hovered() (dnd.Hover, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Hovered()
}

// CancelDrag abandons the current drag.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
}

// Drop commits the current drag into container key. pointerY is measured
// from the top of the container. The drag is cleared whatever the outcome.
func (s *Session) Drop(key domain.ContainerKey, pointerY float32, layout Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.drag.End()
	if err != nil {
		return err
	}
	_, loc, ok := tree.Find(s.roots, item.PanelID)
	if !ok {
		return fmt.Errorf("%w: %s", dnd.ErrStaleDrag, item.PanelID)
	}
	src, _ := s.endpointLocked(loc.Container)
	dst, ok := s.endpointLocked(key)
	if !ok {
		return fmt.Errorf("%w: %s", dnd.ErrUnknownContainer, key)
	}
	if !dnd.CanAccept(s.drag.Policy(), src, dst) {
		return fmt.Errorf("%w: %s does not accept from %s", dnd.ErrIllegalDrop, key, loc.Container)
	}

	kids, _ := tree.Children(s.roots, key)
	index := len(kids)
	if layout != nil {
		if bounds, ok := layout.ContainerBounds(key); ok {
			siblings := make([]geom.Rect, len(kids))
			for i, k := range kids {
				siblings[i] = layout.PanelBounds(k.PanelID)
			}
			index = dnd.ComputeDropIndex(pointerY, bounds, siblings)
		}
	}

	next, err := dnd.Commit(s.roots, item.PanelID, key, index, s.reg)
	if err != nil {
		return err
	}
	if loc.Container != key {
		s.rekeyBaselineLocked(item.PanelID, next, key, index)
	}
	s.set(next)
	s.log.Debug("panel dropped", slog.String("panel", item.PanelID), slog.String("from", loc.Container.String()),
		slog.String("to", key.String()), slog.Int("index", index))
	return nil
}

// rekeyBaselineLocked carries loaded values over to the clone a cross-container
// drop created. Clone and original have the same shape, so they are walked in
// step.
func (s *Session) rekeyBaselineLocked(oldID string, roots []*domain.Panel, key domain.ContainerKey, index int) {
	kids, ok := tree.Children(roots, key)
	if !ok || len(kids) == 0 {
		return
	}
	index = min(max(index, 0), len(kids)-1)
	clone := kids[index]
	var pair func(old, cp *domain.Panel)
	pair = func(old, cp *domain.Panel) {
		if old == nil || cp == nil {
			return
		}
		s.baseline.Rename(old.PanelID, cp.PanelID)
		or, cr := old.Record(), cp.Record()
		if or == nil || cr == nil {
			return
		}
		for _, name := range or.BranchNames() {
			a, _ := or.Branch(name)
			b, _ := cr.Branch(name)
			for i := 0; i < len(a) && i < len(b); i++ {
				pair(a[i], b[i])
			}
		}
	}
	if old, _, ok := tree.Find(s.roots, oldID); ok {
		pair(old, clone)
	}
}
