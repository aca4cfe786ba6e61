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
	"fmt"

	"missioneditor/internal/domain"
	"missioneditor/internal/tree"
)

var (
	// ErrIllegalDrop rejects drops the tree cannot represent, such as a panel
	// into its own subtree.
	ErrIllegalDrop = errors.New("illegal drop")
	// ErrStaleDrag reports that the dragged panel is no longer in the tree.
	ErrStaleDrag = errors.New("dragged panel no longer exists")
	// ErrUnknownContainer reports a target container that does not exist.
	ErrUnknownContainer = errors.New("unknown drop container")
)

// Cloner clones a subtree under a new parent at a new level with fresh ids.
// *action.Registry implements it.
type Cloner interface {
	ClonePanel(p *domain.Panel, parentID string, level int) *domain.Panel
}

// Commit applies a drop of panelID into target at index against the current
// roots and returns the new roots. On error roots are returned unchanged.
//
// Within one container the panel is spliced out and reinserted, with index
// counted before removal. Across containers the subtree is cloned into the
// target and the original is removed afterwards. With a nil Cloner the subtree
// keeps its ids and is moved, with levels recalculated for its new depth.
func Commit(roots []*domain.Panel, panelID string, target domain.ContainerKey, index int, cl Cloner) ([]*domain.Panel, error) {
	node, loc, ok := tree.Find(roots, panelID)
	if !ok {
		return roots, fmt.Errorf("%w: %s", ErrStaleDrag, panelID)
	}
	if !target.IsRoot() && (target.Owner == panelID || tree.IsDescendant(roots, panelID, target.Owner)) {
		return roots, fmt.Errorf("%w: %s into its own subtree", ErrIllegalDrop, panelID)
	}
	kids, ok := tree.Children(roots, target)
	if !ok {
		return roots, fmt.Errorf("%w: %s", ErrUnknownContainer, target)
	}

	if loc.Container == target {
		return reorder(roots, target, kids, loc.Index, index)
	}

	level, _ := tree.LevelOf(roots, target)
	if cl == nil {
		return move(roots, node, target, index, level)
	}
	clone := cl.ClonePanel(node, target.Owner, level)
	if clone == nil {
		return roots, fmt.Errorf("%w: %s (%s) cannot be cloned", ErrIllegalDrop, panelID, node.Type)
	}
	next, ok := tree.InsertAt(roots, target, index, clone)
	if !ok {
		return roots, fmt.Errorf("%w: %s", ErrUnknownContainer, target)
	}
	next, ok = tree.Remove(next, panelID)
	if !ok {
		return roots, fmt.Errorf("%w: %s", ErrStaleDrag, panelID)
	}
	return next, nil
}

func reorder(roots []*domain.Panel, key domain.ContainerKey, kids []*domain.Panel, from, to int) ([]*domain.Panel, error) {
	if to > from {
		to--
	}
	if to < 0 {
		to = 0
	}
	if to > len(kids)-1 {
		to = len(kids) - 1
	}
	if to == from {
		return roots, nil
	}
	moved := kids[from]
	out := make([]*domain.Panel, 0, len(kids))
	out = append(out, kids[:from]...)
	out = append(out, kids[from+1:]...)
	out = append(out[:to], append([]*domain.Panel{moved}, out[to:]...)...)
	next, ok := tree.ReplaceChildren(roots, key, out)
	if !ok {
		return roots, fmt.Errorf("%w: %s", ErrUnknownContainer, key)
	}
	return next, nil
}

func move(roots []*domain.Panel, node *domain.Panel, target domain.ContainerKey, index, level int) ([]*domain.Panel, error) {
	relocated := tree.RecalculateLevels(node, level, target.Owner)
	next, ok := tree.Remove(roots, node.PanelID)
	if !ok {
		return roots, fmt.Errorf("%w: %s", ErrStaleDrag, node.PanelID)
	}
	next, ok = tree.InsertAt(next, target, index, relocated)
	if !ok {
		return roots, fmt.Errorf("%w: %s", ErrUnknownContainer, target)
	}
	return next, nil
}
