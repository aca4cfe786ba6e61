/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dnd

import (
	"errors"

	"missioneditor/internal/domain"
)

// ErrNoDrag is returned when a drop arrives without an active drag.
var ErrNoDrag = errors.New("no drag in progress")

// DragItem describes the panel being dragged. Payload is the panel as it was
// when the drag started; commits look the panel up again and never trust it.
type DragItem struct {
	PanelID string
	Source  domain.ContainerKey
	Payload *domain.Panel
}

// Hover is the container currently under the pointer and the zone marker
// drawn for it. Legal is false when the container refuses the dragged item.
type Hover struct {
	Container domain.ContainerKey
	Zone      Zone
	Legal     bool
}

// Session holds the single drag of an editing session. It is not persisted and
// every gesture ends with End or Cancel, both of which clear all state.
type Session struct {
	item   *DragItem
	hover  *Hover
	policy Policy
}

func NewSession(p Policy) *Session { return &Session{policy: p} }

// Policy returns the legality policy of the session.
func (s *Session) Policy() Policy { return s.policy }

// Begin starts a drag. A drag left over from an earlier gesture is discarded.
func (s *Session) Begin(item DragItem) {
	s.item = &item
	s.hover = nil
}

// Active returns the dragged item.
func (s *Session) Active() (DragItem, bool) {
	if s.item == nil {
		return DragItem{}, false
	}
	return *s.item, true
}

// Over records the hovered container. It returns whether the drop would be legal.
func (s *Session) Over(src, dst Endpoint, zone Zone) bool {
	if s.item == nil {
		return false
	}
	legal := CanAccept(s.policy, src, dst)
	if !legal {
		zone = ZoneNone
	}
	s.hover = &Hover{Container: dst.Key, Zone: zone, Legal: legal}
	return legal
}

// Hovered returns the current hover state.
func (s *Session) Hovered() (Hover, bool) {
	if s.hover == nil {
		return Hover{}, false
	}
	return *s.hover, true
}

// End clears the session and returns the item that was being dragged.
func (s *Session) End() (DragItem, error) {
	defer s.clear()
	if s.item == nil {
		return DragItem{}, ErrNoDrag
	}
	return *s.item, nil
}

// Cancel clears the session without producing a drop.
func (s *Session) Cancel() { s.clear() }

func (s *Session) clear() {
	s.item = nil
	s.hover = nil
}
