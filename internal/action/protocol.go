/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package action

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"missioneditor/internal/domain"
)

// NewID returns a fresh panel id.
func NewID() string { return uuid.NewString() }

// Reidentify assigns fresh ids to p and its whole subtree and rewrites levels
// and parents from (parentID, level). It is the identity pass that follows a
// structural copy.
func Reidentify(p *domain.Panel, parentID string, level int) {
	if p == nil {
		return
	}
	p.PanelID = NewID()
	p.ParentID = parentID
	rec := p.Record()
	if rec == nil {
		return
	}
	rec.ID = p.PanelID
	rec.Level = level
	for _, b := range rec.Branches {
		for _, c := range b.Panels {
			Reidentify(c, p.PanelID, level+1)
		}
	}
}

// ParseRecord resolves rec's tag and parses it with that variant. Nil means the
// node is dropped; the reason is logged.
func (r *Registry) ParseRecord(rec domain.StorageRecord, pc ParseContext) *domain.Panel {
	tag := r.ResolveRecord(rec)
	v, ok := r.Variant(tag)
	if !ok {
		r.log.Error("no variant for type, dropping node",
			slog.String("type", string(tag)), slog.String("name", rec.ActionName))
		return nil
	}
	p := v.ParseFromDatabase(rec, pc)
	if p == nil {
		r.log.Warn("malformed record dropped",
			slog.String("type", string(tag)), slog.String("name", rec.ActionName), slog.Int("level", pc.Level))
	}
	return p
}

// ParseBranch parses sibling records, omitting nodes that fail.
func (r *Registry) ParseBranch(recs []domain.StorageRecord, pc ParseContext) []*domain.Panel {
	out := make([]*domain.Panel, 0, len(recs))
	for _, rec := range recs {
		if p := r.ParseRecord(rec, pc); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// TransformPanel serializes p with its own variant; nil when the type is not
// registered or the variant fails.
func (r *Registry) TransformPanel(p *domain.Panel) *domain.StorageRecord {
	if p == nil {
		return nil
	}
	v, ok := r.Variant(p.Type)
	if !ok {
		r.log.Error("no variant for type, cannot serialize",
			slog.String("panel", p.PanelID), slog.String("type", string(p.Type)))
		return nil
	}
	return v.TransformToDatabase(p)
}

// TransformBranch serializes children into the stringified array stored under
// a branch key. Any failing child fails the whole branch.
func (r *Registry) TransformBranch(children []*domain.Panel) (string, bool) {
	recs := make([]domain.StorageRecord, 0, len(children))
	for _, c := range children {
		rec := r.TransformPanel(c)
		if rec == nil {
			return "", false
		}
		recs = append(recs, *rec)
	}
	s, err := domain.EncodeRecords(recs)
	if err != nil {
		r.log.Error("encode branch", slog.Any("err", err))
		return "", false
	}
	return s, true
}

// ClonePanel clones p with its own variant. Nil when the type is not registered.
func (r *Registry) ClonePanel(p *domain.Panel, parentID string, level int) *domain.Panel {
	if p == nil {
		return nil
	}
	v, ok := r.Variant(p.Type)
	if !ok {
		r.log.Error("no variant for type, cannot clone",
			slog.String("panel", p.PanelID), slog.String("type", string(p.Type)))
		return nil
	}
	return v.ClonePanel(p, parentID, level)
}

// CloneBranch clones children under parentID at level, omitting failures.
func (r *Registry) CloneBranch(children []*domain.Panel, parentID string, level int) []*domain.Panel {
	out := make([]*domain.Panel, 0, len(children))
	for _, c := range children {
		if cp := r.ClonePanel(c, parentID, level); cp != nil {
			out = append(out, cp)
		}
	}
	return out
}

// CreatePanel instantiates a menu template with its variant's defaults.
func (r *Registry) CreatePanel(t domain.MenuTemplate) (*domain.Panel, error) {
	v, ok := r.Variant(t.Type)
	if !ok {
		return nil, fmt.Errorf("create %q: no variant for type %q", t.Name, t.Type)
	}
	return v.CreatePanel(t), nil
}

// ParseMission decodes a dataMission string into root panels. Only a
// structurally broken array is an error; individual bad nodes are dropped.
func (r *Registry) ParseMission(data string, lookups domain.Lookups) ([]*domain.Panel, error) {
	recs, err := domain.DecodeRecords(data)
	if err != nil {
		return nil, err
	}
	return r.ParseBranch(recs, ParseContext{Level: 0, Lookups: lookups}), nil
}

// SerializeMission renders root panels as a dataMission string. The mission is
// serialized wholesale or not at all.
func (r *Registry) SerializeMission(roots []*domain.Panel) (string, error) {
	recs := make([]domain.StorageRecord, 0, len(roots))
	for _, p := range roots {
		rec := r.TransformPanel(p)
		if rec == nil {
			return "", fmt.Errorf("%w: panel %s (%s)", ErrIncompleteMission, p.PanelID, p.Type)
		}
		recs = append(recs, *rec)
	}
	return domain.EncodeRecords(recs)
}

// ReferencedMaps returns the literal Map ids used anywhere in recs, sorted.
// Branch arrays are found by probing every property for nested records.
func ReferencedMaps(recs []domain.StorageRecord) []string {
	seen := map[string]struct{}{}
	var walk func([]domain.StorageRecord)
	walk = func(rs []domain.StorageRecord) {
		for _, rec := range rs {
			props, err := ParseProperties(rec.Properties)
			if err != nil {
				continue
			}
			for key := range props {
				if key == "Map" {
					if f, ok := props.Field(key); ok && !f.IsBound() && f.Variable != "" {
						seen[f.Variable] = struct{}{}
					}
					continue
				}
				if kids, err := props.Records(key); err == nil && len(kids) > 0 {
					walk(kids)
				}
			}
		}
	}
	walk(recs)
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
