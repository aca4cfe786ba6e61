/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor is the editing session of one mission: it owns the action
// tree, turns user gestures into tree mutations and converts the tree to and
// from the stored mission format.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"missioneditor/internal/action"
	"missioneditor/internal/dnd"
	"missioneditor/internal/domain"
	applog "missioneditor/internal/log"
	"missioneditor/internal/telemetry"
	"missioneditor/internal/tree"
	"missioneditor/internal/undo"
)

var (
	// ErrPanelNotFound is returned for gestures naming a panel that is not in the tree.
	ErrPanelNotFound = errors.New("panel not found")
	// ErrNoBaseline is returned by RevertField when the field was never loaded.
	ErrNoBaseline = errors.New("no loaded value to revert to")
	// ErrNoMission is returned by Save before anything was loaded.
	ErrNoMission = errors.New("no mission loaded")
)

// Backend is the REST collaborator. *backend.Client satisfies it.
type Backend interface {
	GetMission(ctx context.Context, id string) (domain.Mission, error)
	PutMission(ctx context.Context, m domain.Mission) error
	ListGroups(ctx context.Context) ([]domain.Group, error)
	ListGroupActions(ctx context.Context, groupID string) ([]domain.GroupAction, error)
	PointsByMap(ctx context.Context, mapIDs []string) (map[string][]domain.Point, error)
	MarkersByMap(ctx context.Context, mapIDs []string) (map[string][]domain.Marker, error)
}

// Notifier shows a failure to the user, e.g. as a dialog.
type Notifier interface {
	Notify(title, message string)
}

// Events receives usage events. *telemetry.Client satisfies it.
type Events interface {
	Event(name string, props map[string]any)
}

type logNotifier struct{ log *slog.Logger }

func (n logNotifier) Notify(title, message string) {
	n.log.Error(title, slog.String("message", message))
}

type defaultEvents struct{}

func (defaultEvents) Event(name string, props map[string]any) { telemetry.Event(name, props) }

// Options configure a Session. Zero values pick the defaults.
type Options struct {
	DropPolicy dnd.Policy
	Notifier   Notifier
	Events     Events
	Baseline   undo.Config
	Logger     *slog.Logger
}

// Session is one open mission. Its methods are safe for concurrent use; the
// tree is replaced copy-on-write on every change.
type Session struct {
	reg      *action.Registry
	backend  Backend
	notifier Notifier
	events   Events
	log      *slog.Logger

	mu       sync.Mutex
	mission  domain.Mission
	loaded   bool
	lookups  domain.Lookups
	roots    []*domain.Panel
	dirty    bool
	drag     *dnd.Session
	baseline *undo.Baseline
}

// NewSession blocks until reg is built. backend may be nil for offline use;
// Load and Save then fail.
func NewSession(ctx context.Context, reg *action.Registry, backend Backend, opts Options) (*Session, error) {
	if reg == nil {
		return nil, errors.New("editor: nil registry")
	}
	if err := reg.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("editor: registry not ready: %w", err)
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("editor")
	}
	policy := opts.DropPolicy
	if policy == "" {
		policy = dnd.PolicyTiered
	}
	s := &Session{
		reg:      reg,
		backend:  backend,
		notifier: opts.Notifier,
		events:   opts.Events,
		log:      l,
		drag:     dnd.NewSession(policy),
		baseline: undo.NewBaseline(opts.Baseline),
	}
	if s.notifier == nil {
		s.notifier = logNotifier{log: l}
	}
	if s.events == nil {
		s.events = defaultEvents{}
	}
	return s, nil
}

// Panels returns a deep copy of the current roots.
func (s *Session) Panels() []*domain.Panel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CopyPanels(s.roots)
}

// Mission returns the mission record as last loaded or saved.
func (s *Session) Mission() domain.Mission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mission
}

// Dirty reports unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Lookups returns the name collections of the loaded mission.
func (s *Session) Lookups() domain.Lookups {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// Menu lists the add-action menu: every built-in action kind followed by
// the sub-missions of every loaded group.
func (s *Session) Menu() []domain.MenuTemplate {
	var out []domain.MenuTemplate
	for _, tag := range s.reg.Tags() {
		switch tag {
		case domain.TagUserCreate, domain.TagDefault, domain.TagUnrecognized:
			continue
		}
		name := string(tag)
		if pr, ok := s.reg.Presentation(tag); ok {
			name = pr.Label
		}
		out = append(out, domain.MenuTemplate{Name: name, Type: tag})
	}
	lk := s.Lookups()
	for _, g := range sortedKeys(lk.ActionsByGroup) {
		for _, a := range lk.ActionsByGroup[g] {
			out = append(out, domain.MenuTemplate{Name: a.Name, Type: domain.TagUserCreate, ID: a.ID, GroupID: g})
		}
	}
	return out
}

// set installs new roots. Callers hold s.mu.
func (s *Session) set(roots []*domain.Panel) {
	s.roots = roots
	s.dirty = true
}

// Add creates a panel from t and inserts it into container key at index.
func (s *Session) Add(t domain.MenuTemplate, key domain.ContainerKey, index int) (*domain.Panel, error) {
	p, err := s.reg.CreatePanel(t)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	level, ok := tree.LevelOf(s.roots, key)
	if !ok {
		return nil, fmt.Errorf("add: %w: %s", dnd.ErrUnknownContainer, key)
	}
	if !key.IsRoot() {
		p = tree.RecalculateLevels(p, level, key.Owner)
	}
	next, ok := tree.InsertAt(s.roots, key, index, p)
	if !ok {
		return nil, fmt.Errorf("add: %w: %s", dnd.ErrUnknownContainer, key)
	}
	s.set(next)
	s.log.Debug("panel added", slog.String("panel", p.PanelID), slog.String("type", string(p.Type)), slog.String("container", key.String()))
	return domain.CopyPanel(p), nil
}

// Clone copies panel id with fresh ids and inserts the copy right after it.
func (s *Session) Clone(id string) (*domain.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, loc, ok := tree.Find(s.roots, id)
	if !ok {
		return nil, fmt.Errorf("clone: %w: %s", ErrPanelNotFound, id)
	}
	cp := s.reg.ClonePanel(node, node.ParentID, node.Level())
	if cp == nil {
		return nil, fmt.Errorf("clone %s: no variant for %q", id, node.Type)
	}
	next, ok := tree.InsertAt(s.roots, loc.Container, loc.Index+1, cp)
	if !ok {
		return nil, fmt.Errorf("clone: %w: %s", dnd.ErrUnknownContainer, loc.Container)
	}
	s.set(next)
	return domain.CopyPanel(cp), nil
}

// Remove deletes panel id with its subtree.
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, _, ok := tree.Find(s.roots, id)
	if !ok {
		return fmt.Errorf("remove: %w: %s", ErrPanelNotFound, id)
	}
	next, _ := tree.Remove(s.roots, id)
	tree.Walk([]*domain.Panel{node}, func(p *domain.Panel, _ tree.Location) bool {
		s.baseline.Forget(p.PanelID)
		return true
	})
	s.set(next)
	return nil
}

// UpdateSettings applies the settings dialog result to panel id. Literal
// values are range-checked by the variant first; nothing is applied when any
// check fails.
func (s *Session) UpdateSettings(id string, patch tree.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, _, ok := tree.Find(s.roots, id)
	if !ok {
		return fmt.Errorf("update: %w: %s", ErrPanelNotFound, id)
	}
	if v, ok := s.reg.Variant(node.Type); ok {
		if c, ok := v.(action.Checker); ok {
			var errs []error
			for _, name := range sortedKeys(patch.Fields) {
				if err := c.Check(name, patch.Fields[name]); err != nil {
					errs = append(errs, err)
				}
			}
			if err := errors.Join(errs...); err != nil {
				return fmt.Errorf("update %s: %w", id, err)
			}
		}
	}
	next, _ := tree.Update(s.roots, id, patch)
	s.set(next)
	return nil
}

// ToggleExpanded flips the collapse state of panel id. It does not mark the
// session dirty.
func (s *Session) ToggleExpanded(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := tree.ToggleExpanded(s.roots, id)
	if !ok {
		return fmt.Errorf("toggle: %w: %s", ErrPanelNotFound, id)
	}
	s.roots = next
	return nil
}

// RevertField restores field of panel id to its value at load time.
func (s *Session) RevertField(id, field string) error {
	v, ok := s.baseline.Get(id, field)
	if !ok {
		return fmt.Errorf("revert %s.%s: %w", id, field, ErrNoBaseline)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, found := tree.Update(s.roots, id, tree.Patch{Fields: map[string]domain.VariableField{field: v}})
	if !found {
		return fmt.Errorf("revert: %w: %s", ErrPanelNotFound, id)
	}
	s.set(next)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
