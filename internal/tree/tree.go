/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tree contains the pure functions that search and rebuild an action
// forest. Every mutation returns a new root slice; panels on the path from the
// root to the target are copied, everything else is shared with the input.
package tree

import (
	"missioneditor/internal/domain"
)

// ApplyFunc replaces a found panel. Returning nil deletes it.
type ApplyFunc func(*domain.Panel) *domain.Panel

// FindAndApply searches depth-first for id and replaces that panel with fn's
// result. The first match wins. found is false when id is not in the forest, in
// which case roots is returned unchanged.
func FindAndApply(roots []*domain.Panel, id string, fn ApplyFunc) (updated []*domain.Panel, found bool) {
	if id == "" {
		return roots, false
	}
	return applyIn(roots, id, fn)
}

func applyIn(list []*domain.Panel, id string, fn ApplyFunc) ([]*domain.Panel, bool) {
	for i, p := range list {
		if p == nil {
			continue
		}
		if p.PanelID == id {
			out := make([]*domain.Panel, 0, len(list))
			out = append(out, list[:i]...)
			if np := fn(p); np != nil {
				out = append(out, np)
			}
			out = append(out, list[i+1:]...)
			return out, true
		}
		if np, ok := applyBelow(p, id, fn); ok {
			out := make([]*domain.Panel, len(list))
			copy(out, list)
			out[i] = np
			return out, true
		}
	}
	return list, false
}

// applyBelow descends into the branches p's record declares.
func applyBelow(p *domain.Panel, id string, fn ApplyFunc) (*domain.Panel, bool) {
	r := p.Record()
	if r == nil {
		return nil, false
	}
	for bi, b := range r.Branches {
		kids, ok := applyIn(b.Panels, id, fn)
		if !ok {
			continue
		}
		np := domain.ShallowPanel(p)
		np.Record().Branches[bi].Panels = kids
		return np, true
	}
	return nil, false
}

// Patch is merged into a panel's action record by Update.
type Patch struct {
	Name   *string
	Fields map[string]domain.VariableField
	Attrs  map[string]string
}

// Apply returns a copy of p with the patch merged into its record.
func (pt Patch) Apply(p *domain.Panel) *domain.Panel {
	np := domain.ShallowPanel(p)
	r := np.Record()
	if r == nil {
		return np
	}
	if pt.Name != nil {
		r.Name = *pt.Name
		np.ActionName = *pt.Name
	}
	for k, v := range pt.Fields {
		r.SetField(k, v)
	}
	for k, v := range pt.Attrs {
		r.SetAttr(k, v)
	}
	return np
}

// Update merges patch into the record of panel id.
func Update(roots []*domain.Panel, id string, patch Patch) ([]*domain.Panel, bool) {
	return FindAndApply(roots, id, patch.Apply)
}

// Remove deletes panel id and its subtree.
func Remove(roots []*domain.Panel, id string) ([]*domain.Panel, bool) {
	return FindAndApply(roots, id, func(*domain.Panel) *domain.Panel { return nil })
}

// RecalculateLevels returns a deep copy of p attached at (level, parentID) with
// every descendant's level and parent rewritten to match its nesting.
func RecalculateLevels(p *domain.Panel, level int, parentID string) *domain.Panel {
	cp := domain.CopyPanel(p)
	relevel(cp, level, parentID)
	return cp
}

func relevel(p *domain.Panel, level int, parentID string) {
	if p == nil {
		return
	}
	p.ParentID = parentID
	r := p.Record()
	if r == nil {
		return
	}
	r.Level = level
	for _, b := range r.Branches {
		for _, c := range b.Panels {
			relevel(c, level+1, p.PanelID)
		}
	}
}

// ToggleExpanded flips the collapse state of panel id.
func ToggleExpanded(roots []*domain.Panel, id string) ([]*domain.Panel, bool) {
	return FindAndApply(roots, id, func(p *domain.Panel) *domain.Panel {
		np := domain.ShallowPanel(p)
		np.IsExpanded = !p.IsExpanded
		return np
	})
}
