/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tree

import (
	"errors"
	"fmt"

	"missioneditor/internal/domain"
)

// Location is where a panel sits: its container, index and nesting depth.
type Location struct {
	Container domain.ContainerKey
	Index     int
	Depth     int
}

// VisitFunc is called for every panel; returning false stops the walk.
type VisitFunc func(p *domain.Panel, loc Location) bool

// Walk visits panels depth-first, parents before children.
func Walk(roots []*domain.Panel, fn VisitFunc) {
	walk(roots, domain.RootContainer, 0, fn)
}

func walk(list []*domain.Panel, key domain.ContainerKey, depth int, fn VisitFunc) bool {
	for i, p := range list {
		if p == nil {
			continue
		}
		if !fn(p, Location{Container: key, Index: i, Depth: depth}) {
			return false
		}
		r := p.Record()
		if r == nil {
			continue
		}
		for _, b := range r.Branches {
			if !walk(b.Panels, domain.ContainerOf(p.PanelID, b.Name), depth+1, fn) {
				return false
			}
		}
	}
	return true
}

// Find locates panel id.
func Find(roots []*domain.Panel, id string) (*domain.Panel, Location, bool) {
	var (
		found *domain.Panel
		at    Location
	)
	if id == "" {
		return nil, at, false
	}
	Walk(roots, func(p *domain.Panel, loc Location) bool {
		if p.PanelID == id {
			found, at = p, loc
			return false
		}
		return true
	})
	return found, at, found != nil
}

// Count returns the number of panels in the forest.
func Count(roots []*domain.Panel) int {
	n := 0
	Walk(roots, func(*domain.Panel, Location) bool { n++; return true })
	return n
}

// Children returns the current contents of the container key.
func Children(roots []*domain.Panel, key domain.ContainerKey) ([]*domain.Panel, bool) {
	if key.IsRoot() {
		return roots, true
	}
	owner, _, ok := Find(roots, key.Owner)
	if !ok {
		return nil, false
	}
	return owner.Record().Branch(key.Branch)
}

// LevelOf returns the level a child of container key has.
func LevelOf(roots []*domain.Panel, key domain.ContainerKey) (int, bool) {
	if key.IsRoot() {
		return 0, true
	}
	owner, _, ok := Find(roots, key.Owner)
	if !ok {
		return 0, false
	}
	if _, declared := owner.Record().Branch(key.Branch); !declared {
		return 0, false
	}
	return owner.Level() + 1, true
}

// ReplaceChildren swaps the contents of container key.
func ReplaceChildren(roots []*domain.Panel, key domain.ContainerKey, panels []*domain.Panel) ([]*domain.Panel, bool) {
	if key.IsRoot() {
		return panels, true
	}
	if _, ok := Children(roots, key); !ok {
		return roots, false
	}
	return FindAndApply(roots, key.Owner, func(p *domain.Panel) *domain.Panel {
		np := domain.ShallowPanel(p)
		np.Record().SetBranch(key.Branch, panels)
		return np
	})
}

// InsertAt inserts p into container key at index, clamped to [0, len].
func InsertAt(roots []*domain.Panel, key domain.ContainerKey, index int, p *domain.Panel) ([]*domain.Panel, bool) {
	kids, ok := Children(roots, key)
	if !ok {
		return roots, false
	}
	if index < 0 {
		index = 0
	}
	if index > len(kids) {
		index = len(kids)
	}
	out := make([]*domain.Panel, 0, len(kids)+1)
	out = append(out, kids[:index]...)
	out = append(out, p)
	out = append(out, kids[index:]...)
	return ReplaceChildren(roots, key, out)
}

// IsDescendant reports whether id lies strictly below ancestorID.
func IsDescendant(roots []*domain.Panel, ancestorID, id string) bool {
	anc, _, ok := Find(roots, ancestorID)
	if !ok || id == ancestorID {
		return false
	}
	_, _, below := Find([]*domain.Panel{anc}, id)
	return below
}

// Validation errors reported by Validate.
var (
	ErrDuplicateID = errors.New("duplicate panel id")
	ErrBadLevel    = errors.New("level does not match nesting")
	ErrBadParent   = errors.New("parent id does not match owner")
	ErrBadRecord   = errors.New("panel must hold exactly one action record with its id")
)

// Validate checks the forest's identity, level and parent invariants and
// returns every violation joined.
func Validate(roots []*domain.Panel) error {
	var errs []error
	seen := map[string]bool{}
	Walk(roots, func(p *domain.Panel, loc Location) bool {
		if seen[p.PanelID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateID, p.PanelID))
		}
		seen[p.PanelID] = true
		if len(p.Actions) != 1 || p.Record() == nil || p.Record().ID != p.PanelID {
			errs = append(errs, fmt.Errorf("%w: %s", ErrBadRecord, p.PanelID))
			return true
		}
		if p.Level() != loc.Depth {
			errs = append(errs, fmt.Errorf("%w: %s has level %d at depth %d", ErrBadLevel, p.PanelID, p.Level(), loc.Depth))
		}
		if p.ParentID != loc.Container.Owner {
			errs = append(errs, fmt.Errorf("%w: %s has parent %q, owner %q", ErrBadParent, p.PanelID, p.ParentID, loc.Container.Owner))
		}
		return true
	})
	return errors.Join(errs...)
}
