/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package variants implements the built-in action kinds. Each kind is described
// by a layout: the ordered Properties keys it writes, which of them are Variable
// Fields and which hold branch arrays. The shared base turns a layout into the
// four protocol operations.
package variants

import (
	"fmt"
	"log/slog"

	"missioneditor/internal/action"
	"missioneditor/internal/domain"
)

type refKind int

const (
	refNone refKind = iota
	refPoint
	refMarker
)

// entry is one Properties key. Exactly one of field or branch is meaningful.
type entry struct {
	key    string
	def    string
	ref    refKind
	check  func(string) error
	branch domain.BranchName
}

func field(key, def string) entry { return entry{key: key, def: def} }

func checked(key, def string, check func(string) error) entry {
	return entry{key: key, def: def, check: check}
}

func pointRef(key string) entry { return entry{key: key, ref: refPoint} }

func markerRef(key string) entry { return entry{key: key, ref: refMarker} }

func branch(key string, b domain.BranchName) entry { return entry{key: key, branch: b} }

func (e entry) isBranch() bool { return e.branch != "" }

// layout describes one action kind on the wire.
type layout struct {
	tag     domain.TypeTag
	name    string
	code    string
	entries []entry
}

// base implements action.Variant and action.Checker from a layout.
type base struct {
	reg *action.Registry
	l   layout
}

func newBase(reg *action.Registry, l layout) base { return base{reg: reg, l: l} }

func (b base) Tag() domain.TypeTag { return b.l.tag }

// Code is the storage Type numeral.
func (b base) Code() string { return b.l.code }

func (b base) Branches() []domain.BranchName {
	var out []domain.BranchName
	for _, e := range b.l.entries {
		if e.isBranch() {
			out = append(out, e.branch)
		}
	}
	return out
}

func (b base) log() *slog.Logger {
	return b.reg.Logger().With(slog.String("type", string(b.l.tag)))
}

func (b base) newPanel(id, parentID string, level int) *domain.Panel {
	rec := domain.NewRecord(id, b.l.name, b.l.code, level, b.Branches()...)
	return &domain.Panel{
		PanelID:    id,
		ActionName: b.l.name,
		Type:       b.l.tag,
		ParentID:   parentID,
		IsExpanded: true,
		Actions:    []*domain.ActionRecord{rec},
	}
}

// ParseFromDatabase decodes rec. Malformed Properties fall back to defaults;
// a malformed branch becomes empty. Children are parsed through the registry.
func (b base) ParseFromDatabase(rec domain.StorageRecord, pc action.ParseContext) *domain.Panel {
	props, err := action.ParseProperties(rec.Properties)
	if err != nil {
		b.log().Warn("properties unreadable, using defaults", slog.Any("err", err))
	}
	p := b.newPanel(action.NewID(), pc.ParentID, pc.Level)
	r := p.Record()
	for _, e := range b.l.entries {
		if e.isBranch() {
			kids, err := props.Records(e.key)
			if err != nil {
				b.log().Warn("branch unreadable, left empty", slog.String("branch", string(e.branch)), slog.Any("err", err))
			}
			r.SetBranch(e.branch, b.reg.ParseBranch(kids, pc.Child(p.PanelID)))
			continue
		}
		f, ok := props.Field(e.key)
		if !ok {
			f = domain.Literal(e.def)
		}
		r.SetField(e.key, f)
	}
	b.resolveRefs(r, pc.Lookups)
	return p
}

// resolveRefs fills display names of id-reference fields; not found stays blank.
func (b base) resolveRefs(r *domain.ActionRecord, lk domain.Lookups) {
	mapID := r.Field("Map")
	for _, e := range b.l.entries {
		if e.ref == refNone {
			continue
		}
		f := r.Field(e.key)
		if f.IsBound() {
			continue
		}
		var name string
		switch e.ref {
		case refPoint:
			name = lk.PointName(mapID.Variable, f.Variable)
		case refMarker:
			name = lk.MarkerName(mapID.Variable, f.Variable)
		}
		r.SetAttr(e.key, name)
	}
}

// TransformToDatabase writes Properties in layout order. Nil if any branch child fails.
func (b base) TransformToDatabase(p *domain.Panel) *domain.StorageRecord {
	r := p.Record()
	if r == nil {
		b.log().Error("panel without action record", slog.String("panel", p.PanelID))
		return nil
	}
	props := action.NewProps()
	for _, e := range b.l.entries {
		if e.isBranch() {
			kids, _ := r.Branch(e.branch)
			s, ok := b.reg.TransformBranch(kids)
			if !ok {
				b.log().Error("branch not serializable", slog.String("panel", p.PanelID), slog.String("branch", string(e.branch)))
				return nil
			}
			props.String(e.key, s)
			continue
		}
		f, ok := r.Fields[e.key]
		if !ok {
			f = domain.Literal(e.def)
		}
		props.Field(e.key, f)
	}
	s, err := props.Encode()
	if err != nil {
		b.log().Error("encode properties", slog.String("panel", p.PanelID), slog.Any("err", err))
		return nil
	}
	return &domain.StorageRecord{ActionName: b.l.name, Properties: s, Type: b.l.code, UserCreate: "false"}
}

// CreatePanel builds a root panel holding the layout defaults.
func (b base) CreatePanel(_ domain.MenuTemplate) *domain.Panel {
	p := b.newPanel(action.NewID(), "", 0)
	r := p.Record()
	for _, e := range b.l.entries {
		if !e.isBranch() {
			r.SetField(e.key, domain.Literal(e.def))
		}
		if e.ref != refNone {
			r.SetAttr(e.key, "")
		}
	}
	return p
}

// ClonePanel copies this node, assigns its new identity, then clones each
// branch child through the registry under the new id.
func (b base) ClonePanel(src *domain.Panel, parentID string, level int) *domain.Panel {
	cp := domain.ShallowPanel(src)
	r := cp.Record()
	if r == nil {
		b.log().Error("clone of panel without action record", slog.String("panel", src.PanelID))
		return nil
	}
	cp.PanelID = action.NewID()
	cp.ParentID = parentID
	r.ID = cp.PanelID
	r.Level = level
	for i, br := range r.Branches {
		r.Branches[i].Panels = b.reg.CloneBranch(br.Panels, cp.PanelID, level+1)
	}
	return cp
}

// Check runs the field's range check on literal values.
func (b base) Check(key string, v domain.VariableField) error {
	if v.IsBound() {
		return nil
	}
	for _, e := range b.l.entries {
		if e.key == key && e.check != nil {
			if err := e.check(v.Variable); err != nil {
				return fmt.Errorf("%s.%s: %w", b.l.name, key, err)
			}
			return nil
		}
	}
	return nil
}
