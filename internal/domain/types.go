/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the in-memory model of a mission script: a forest of panels,
// each wrapping exactly one action record whose variant decides which branch
// arrays it owns.

// TypeTag is the canonical short name of an action variant.
type TypeTag string

const (
	TagMove             TypeTag = "move"
	TagDocking          TypeTag = "docking"
	TagRelativeMove     TypeTag = "relativeMove"
	TagMoveToCoordinate TypeTag = "moveToCoordinate"
	TagSwitchMap        TypeTag = "switchMap"
	TagWait             TypeTag = "wait"
	TagLoop             TypeTag = "loop"
	TagIf               TypeTag = "if"
	TagWhile            TypeTag = "while"
	TagBreak            TypeTag = "break"
	TagContinue         TypeTag = "continue"
	TagReturn           TypeTag = "return"
	TagTryCatch         TypeTag = "tryCatch"
	TagCreateLog        TypeTag = "createLog"
	TagThrowError       TypeTag = "throwError"
	TagPromptUser       TypeTag = "promptUser"
	TagUserCreate       TypeTag = "userCreate"
	TagDefault          TypeTag = "default"
	// TagUnrecognized marks records whose Action_name matched no alias when the
	// registry runs with the "unrecognized" unknown-name policy.
	TagUnrecognized TypeTag = "unrecognized"
)

// BranchName names one child list on a container record.
type BranchName string

const (
	BranchChildren BranchName = "children"
	BranchThen     BranchName = "thenBlock"
	BranchElse     BranchName = "elseBlock"
	BranchYes      BranchName = "yesBlock"
	BranchNo       BranchName = "noBlock"
	BranchTimeout  BranchName = "timeoutBlock"
	BranchTry      BranchName = "tryBlock"
	BranchCatch    BranchName = "catchBlock"
)

// KnownBranches lists every branch name any variant may declare.
var KnownBranches = []BranchName{
	BranchChildren, BranchThen, BranchElse, BranchYes, BranchNo, BranchTimeout, BranchTry, BranchCatch,
}

// IsKnownBranch reports whether b is one of KnownBranches.
func IsKnownBranch(b BranchName) bool {
	for _, k := range KnownBranches {
		if k == b {
			return true
		}
	}
	return false
}

// Panel is one node of the action tree.
// PanelID is unique within a tree and regenerated on parse and clone.
// ParentID is empty for root panels.
type Panel struct {
	PanelID    string          `json:"panelId"`
	ActionName string          `json:"actionName"`
	Type       TypeTag         `json:"type"`
	ParentID   string          `json:"parentId,omitempty"`
	IsExpanded bool            `json:"isExpanded"`
	Actions    []*ActionRecord `json:"actions"`
}

// Record returns the embedded action record (actions[0]) or nil.
func (p *Panel) Record() *ActionRecord {
	if p == nil || len(p.Actions) == 0 {
		return nil
	}
	return p.Actions[0]
}

// Level returns the nesting depth of the panel's record, 0 when it has none.
func (p *Panel) Level() int {
	if r := p.Record(); r != nil {
		return r.Level
	}
	return 0
}

// Branch is a named ordered child list.
type Branch struct {
	Name   BranchName `json:"name"`
	Panels []*Panel   `json:"panels"`
}

// ActionRecord is the typed payload of a panel. Scalar values live in Fields
// (wire shape of a Variable Field), resolved display values of id references in
// Attrs, and child lists in Branches; a record only carries the branches its
// variant declared.
type ActionRecord struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	Level      int                      `json:"level"`
	UserCreate bool                     `json:"user_create"`
	Type       string                   `json:"type"`
	Fields     map[string]VariableField `json:"fields,omitempty"`
	Attrs      map[string]string        `json:"attrs,omitempty"`
	Branches   []Branch                 `json:"branches,omitempty"`
}

// NewRecord creates a record declaring the given branches, each empty.
func NewRecord(id, name, typeCode string, level int, branches ...BranchName) *ActionRecord {
	r := &ActionRecord{ID: id, Name: name, Type: typeCode, Level: level}
	r.DeclareBranches(branches...)
	return r
}

// DeclareBranches adds empty branch arrays for names not yet declared.
func (r *ActionRecord) DeclareBranches(names ...BranchName) {
	for _, n := range names {
		if r.branchIndex(n) < 0 {
			r.Branches = append(r.Branches, Branch{Name: n})
		}
	}
}

// BranchNames returns the declared branch names in declaration order.
func (r *ActionRecord) BranchNames() []BranchName {
	if r == nil {
		return nil
	}
	out := make([]BranchName, len(r.Branches))
	for i, b := range r.Branches {
		out[i] = b.Name
	}
	return out
}

func (r *ActionRecord) branchIndex(name BranchName) int {
	for i, b := range r.Branches {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// Branch returns the child list for name and whether the record declares it.
func (r *ActionRecord) Branch(name BranchName) ([]*Panel, bool) {
	if r == nil {
		return nil, false
	}
	i := r.branchIndex(name)
	if i < 0 {
		return nil, false
	}
	return r.Branches[i].Panels, true
}

// SetBranch replaces a declared branch. It returns false when the record's
// variant does not own a branch of that name.
func (r *ActionRecord) SetBranch(name BranchName, panels []*Panel) bool {
	if r == nil {
		return false
	}
	i := r.branchIndex(name)
	if i < 0 {
		return false
	}
	r.Branches[i].Panels = panels
	return true
}

// Field returns the named field or the zero literal.
func (r *ActionRecord) Field(name string) VariableField {
	if r == nil || r.Fields == nil {
		return VariableField{}
	}
	return r.Fields[name]
}

// SetField stores f under name.
func (r *ActionRecord) SetField(name string, f VariableField) {
	if r.Fields == nil {
		r.Fields = make(map[string]VariableField)
	}
	r.Fields[name] = f
}

// Attr returns a resolved display attribute.
func (r *ActionRecord) Attr(name string) string {
	if r == nil || r.Attrs == nil {
		return ""
	}
	return r.Attrs[name]
}

// SetAttr stores a resolved display attribute.
func (r *ActionRecord) SetAttr(name, v string) {
	if r.Attrs == nil {
		r.Attrs = make(map[string]string)
	}
	r.Attrs[name] = v
}

// UserCreateFlag renders the wire form of UserCreate.
func (r *ActionRecord) UserCreateFlag() string {
	if r != nil && r.UserCreate {
		return "true"
	}
	return "false"
}

// Mission is the persisted mission record. DataMission holds the JSON-stringified
// array of storage records.
type Mission struct {
	ID          string `json:"id"`
	MissionName string `json:"missionName"`
	GroupID     string `json:"groupID"`
	SiteID      string `json:"siteId"`
	DataMission string `json:"dataMission"`
}

// Point is a named location on a map.
type Point struct {
	ID          string `json:"ID"`
	DisplayName string `json:"displayName"`
}

// Marker is a docking marker on a map.
type Marker struct {
	ID          string `json:"ID"`
	DisplayName string `json:"displayName"`
}

// Group is a mission group shown in the add-action menu.
type Group struct {
	ID   string `json:"ID"`
	Name string `json:"name"`
}

// GroupAction is a sub-mission listed under a group.
type GroupAction struct {
	ID      string `json:"ID"`
	Name    string `json:"name"`
	GroupID string `json:"groupID"`
}

// Lookups are the id->name collections consulted while parsing stored records.
type Lookups struct {
	PointsByMap    map[string][]Point
	ActionsByGroup map[string][]GroupAction
	MarkersByMap   map[string][]Marker
}

// PointName finds a point's display name, preferring mapID and then scanning all maps.
func (l Lookups) PointName(mapID, pointID string) string {
	if pointID == "" {
		return ""
	}
	for _, p := range l.PointsByMap[mapID] {
		if p.ID == pointID {
			return p.DisplayName
		}
	}
	for _, pts := range l.PointsByMap {
		for _, p := range pts {
			if p.ID == pointID {
				return p.DisplayName
			}
		}
	}
	return ""
}

// MarkerName finds a marker's display name, preferring mapID and then scanning all maps.
func (l Lookups) MarkerName(mapID, markerID string) string {
	if markerID == "" {
		return ""
	}
	for _, m := range l.MarkersByMap[mapID] {
		if m.ID == markerID {
			return m.DisplayName
		}
	}
	for _, ms := range l.MarkersByMap {
		for _, m := range ms {
			if m.ID == markerID {
				return m.DisplayName
			}
		}
	}
	return ""
}

// ActionName finds a sub-mission's name, preferring groupID and then scanning all groups.
func (l Lookups) ActionName(groupID, actionID string) string {
	if actionID == "" {
		return ""
	}
	for _, a := range l.ActionsByGroup[groupID] {
		if a.ID == actionID {
			return a.Name
		}
	}
	for _, as := range l.ActionsByGroup {
		for _, a := range as {
			if a.ID == actionID {
				return a.Name
			}
		}
	}
	return ""
}

// MenuTemplate is one entry of the add-action menu.
// ID and GroupID are set for sub-mission references.
type MenuTemplate struct {
	Name    string  `json:"name"`
	Type    TypeTag `json:"type"`
	ID      string  `json:"id,omitempty"`
	GroupID string  `json:"groupID,omitempty"`
}
