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

const subMissionCode = "0"

// UserCreate references another mission. Its Action_name is the sub-mission's
// own name, so the stored name is kept rather than a fixed one.
type UserCreate struct{ base }

func NewUserCreate(reg *action.Registry) UserCreate {
	return UserCreate{newBase(reg, layout{
		tag: domain.TagUserCreate, name: "userCreate", code: subMissionCode,
		entries: []entry{
			field("Mission_ID", ""),
			field("Group_ID", ""),
		},
	})}
}

func (u UserCreate) withName(p *domain.Panel, name string) {
	p.ActionName = name
	r := p.Record()
	r.Name = name
	r.UserCreate = true
}

// ParseFromDatabase reads Mission_ID and Group_ID. Records without a readable
// Mission_ID (typically unknown actions routed here by the unknown-name
// policy) keep their Properties, Type and User_create flag verbatim so saving
// writes them back unchanged; Mission_ID stays blank until the user picks one.
func (u UserCreate) ParseFromDatabase(rec domain.StorageRecord, pc action.ParseContext) *domain.Panel {
	p := u.newPanel(action.NewID(), pc.ParentID, pc.Level)
	r := p.Record()
	if rec.Type != "" {
		r.Type = rec.Type
	}
	u.withName(p, rec.ActionName)

	props, err := action.ParseProperties(rec.Properties)
	mission, ok := props.Field("Mission_ID")
	if err != nil || !ok {
		u.log().Warn("sub-mission without Mission_ID, keeping record verbatim",
			slog.String("name", rec.ActionName), slog.String("code", rec.Type), slog.Any("err", err))
		r.SetField("Mission_ID", domain.Literal(""))
		r.SetField("Group_ID", domain.Literal(""))
		r.SetAttr(rawAttr, rec.Properties)
		r.UserCreate = rec.IsUserCreate()
		return p
	}
	group, _ := props.Field("Group_ID")
	r.SetField("Mission_ID", mission)
	r.SetField("Group_ID", group)
	r.SetAttr("Mission_ID", pc.Lookups.ActionName(group.Variable, mission.Variable))
	return p
}

// verbatim reports whether r still holds an unread record: Properties were
// kept raw and no sub-mission has been chosen since.
func verbatim(r *domain.ActionRecord) bool {
	if r.Attr(rawAttr) == "" {
		return false
	}
	f := r.Field("Mission_ID")
	return !f.IsBound() && f.Variable == ""
}

func (u UserCreate) TransformToDatabase(p *domain.Panel) *domain.StorageRecord {
	r := p.Record()
	if r != nil && verbatim(r) {
		return &domain.StorageRecord{ActionName: r.Name, Properties: r.Attr(rawAttr), Type: r.Type, UserCreate: r.UserCreateFlag()}
	}
	out := u.base.TransformToDatabase(p)
	if out == nil {
		return nil
	}
	out.ActionName = r.Name
	if r.Type != "" {
		out.Type = r.Type
	}
	out.UserCreate = "true"
	return out
}

// CreatePanel binds the template's sub-mission id and group.
func (u UserCreate) CreatePanel(t domain.MenuTemplate) *domain.Panel {
	p := u.base.CreatePanel(t)
	r := p.Record()
	r.SetField("Mission_ID", domain.Literal(t.ID))
	r.SetField("Group_ID", domain.Literal(t.GroupID))
	r.SetAttr("Mission_ID", t.Name)
	u.withName(p, t.Name)
	return p
}
