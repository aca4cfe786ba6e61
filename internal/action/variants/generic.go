/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package variants

import (
	"log/slog"

	"missioneditor/internal/action"
	"missioneditor/internal/domain"
)

// rawAttr holds the verbatim Properties of a generic record.
const rawAttr = "properties"

// Generic keeps records it does not understand byte for byte: name, type code,
// User_create flag and Properties are written back exactly as read. It has no
// branches, so nested records inside its Properties are opaque.
type Generic struct {
	reg *action.Registry
	tag domain.TypeTag
}

// NewGeneric returns the generic variant under tag (default or unrecognized).
func NewGeneric(reg *action.Registry, tag domain.TypeTag) Generic {
	return Generic{reg: reg, tag: tag}
}

func (g Generic) Tag() domain.TypeTag { return g.tag }

func (g Generic) Branches() []domain.BranchName { return nil }

func (g Generic) ParseFromDatabase(rec domain.StorageRecord, pc action.ParseContext) *domain.Panel {
	if g.tag == domain.TagUnrecognized {
		g.reg.Logger().Warn("keeping unrecognized action verbatim",
			slog.String("name", rec.ActionName), slog.String("code", rec.Type), slog.Int("level", pc.Level))
	}
	id := action.NewID()
	r := domain.NewRecord(id, rec.ActionName, rec.Type, pc.Level)
	r.UserCreate = rec.IsUserCreate()
	r.SetAttr(rawAttr, rec.Properties)
	return &domain.Panel{
		PanelID:    id,
		ActionName: rec.ActionName,
		Type:       g.tag,
		ParentID:   pc.ParentID,
		IsExpanded: true,
		Actions:    []*domain.ActionRecord{r},
	}
}

func (g Generic) TransformToDatabase(p *domain.Panel) *domain.StorageRecord {
	r := p.Record()
	if r == nil {
		return nil
	}
	props := r.Attr(rawAttr)
	if props == "" {
		props = "{}"
	}
	return &domain.StorageRecord{ActionName: r.Name, Properties: props, Type: r.Type, UserCreate: r.UserCreateFlag()}
}

func (g Generic) CreatePanel(t domain.MenuTemplate) *domain.Panel {
	id := action.NewID()
	r := domain.NewRecord(id, t.Name, "", 0)
	r.SetAttr(rawAttr, "{}")
	return &domain.Panel{PanelID: id, ActionName: t.Name, Type: g.tag, IsExpanded: true, Actions: []*domain.ActionRecord{r}}
}

// ClonePanel is a structural copy followed by the identity pass.
func (g Generic) ClonePanel(src *domain.Panel, parentID string, level int) *domain.Panel {
	cp := domain.CopyPanel(src)
	action.Reidentify(cp, parentID, level)
	return cp
}
