/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"testing"

	"missioneditor/internal/action"
	"missioneditor/internal/action/variants"
	"missioneditor/internal/dnd"
	"missioneditor/internal/domain"
	"missioneditor/internal/geom"
	"missioneditor/internal/storage"
	"missioneditor/internal/telemetry"
	"missioneditor/internal/tree"
)

type fakeBackend struct {
	mu        sync.Mutex
	mission   domain.Mission
	puts      []domain.Mission
	pointMaps []string
	putErr    error
}

func (f *fakeBackend) GetMission(_ context.Context, id string) (domain.Mission, error) {
	if id != f.mission.ID {
		return domain.Mission{}, errors.New("not found")
	}
	return f.mission, nil
}

func (f *fakeBackend) PutMission(_ context.Context, m domain.Mission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, m)
	return nil
}

func (f *fakeBackend) ListGroups(context.Context) ([]domain.Group, error) {
	return []domain.Group{{ID: "g1", Name: "Warehouse"}, {ID: "g2", Name: "Charging"}}, nil
}

func (f *fakeBackend) ListGroupActions(_ context.Context, groupID string) ([]domain.GroupAction, error) {
	return []domain.GroupAction{{ID: "sub-" + groupID, Name: "Sub " + groupID, GroupID: groupID}}, nil
}

func (f *fakeBackend) PointsByMap(_ context.Context, ids []string) (map[string][]domain.Point, error) {
	f.mu.Lock()
	f.pointMaps = append([]string(nil), ids...)
	f.mu.Unlock()
	return map[string][]domain.Point{"m1": {{ID: "p1", DisplayName: "Dock A"}}}, nil
}

func (f *fakeBackend) MarkersByMap(context.Context, []string) (map[string][]domain.Marker, error) {
	return map[string][]domain.Marker{}, nil
}

type recorder struct {
	mu      sync.Mutex
	notices []string
	events  []string
}

func (r *recorder) Notify(title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, title+": "+message)
}

func (r *recorder) Event(name string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRegistry(t *testing.T) *action.Registry {
	t.Helper()
	reg, err := variants.NewRegistry(action.Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func newSession(t *testing.T, be Backend, policy dnd.Policy) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s, err := NewSession(context.Background(), newRegistry(t), be, Options{
		DropPolicy: policy, Notifier: rec, Events: rec, Logger: quiet(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, rec
}

func encode(t *testing.T, recs ...domain.StorageRecord) string {
	t.Helper()
	s, err := domain.EncodeRecords(recs)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func props(t *testing.T, p *action.Props) string {
	t.Helper()
	s, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func loopWithMove(t *testing.T) string {
	move := domain.StorageRecord{
		ActionName: "Move",
		Properties: props(t, action.NewProps().Field("Map", domain.Literal("m1")).Field("Position", domain.Literal("p1"))),
		Type:       "1", UserCreate: "false",
	}
	loop := domain.StorageRecord{
		ActionName: "Loop",
		Properties: props(t, action.NewProps().Field("Times", domain.Literal("3")).String("Children", encode(t, move))),
		Type:       "7", UserCreate: "false",
	}
	return encode(t, loop)
}

func waitRecord(t *testing.T, secs string) domain.StorageRecord {
	return domain.StorageRecord{
		ActionName: "Wait",
		Properties: props(t, action.NewProps().Field("Time", domain.Literal(secs))),
		Type:       "6", UserCreate: "false",
	}
}

func mission(data string) domain.Mission {
	return domain.Mission{ID: "ms1", MissionName: "Patrol", GroupID: "g1", SiteID: "s1", DataMission: data}
}

// Scenario A through the network path.
func TestLoadParsesLoopWithMove(t *testing.T) {
	be := &fakeBackend{mission: mission(loopWithMove(t))}
	s, rec := newSession(t, be, "")
	if err := s.Load(context.Background(), "ms1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	roots := s.Panels()
	if len(roots) != 1 || roots[0].Type != domain.TagLoop || roots[0].Level() != 0 {
		t.Fatalf("roots = %+v", roots)
	}
	kids, _ := roots[0].Record().Branch(domain.BranchChildren)
	if len(kids) != 1 || kids[0].Type != domain.TagMove || kids[0].Level() != 1 || kids[0].ParentID != roots[0].PanelID {
		t.Fatalf("children = %+v", kids)
	}
	if got := kids[0].Record().Attr("Position"); got != "Dock A" {
		t.Fatalf("Position name = %q", got)
	}
	if !slices.Equal(be.pointMaps, []string{"m1"}) {
		t.Fatalf("points requested for %v", be.pointMaps)
	}
	if lk := s.Lookups(); len(lk.ActionsByGroup) != 2 {
		t.Fatalf("group actions = %v", lk.ActionsByGroup)
	}
	if s.Dirty() {
		t.Fatal("fresh load is dirty")
	}
	if !slices.Contains(rec.events, telemetry.EventMissionLoaded) {
		t.Fatalf("events = %v", rec.events)
	}
}

// Scenario B through the session.
func TestCloneIfInsertsFreshCopyAfterSource(t *testing.T) {
	s, _ := newSession(t, nil, "")
	ifp, err := s.Add(domain.MenuTemplate{Name: "If", Type: domain.TagIf}, domain.RootContainer, 0)
	if err != nil {
		t.Fatal(err)
	}
	wait, err := s.Add(domain.MenuTemplate{Name: "Wait", Type: domain.TagWait}, domain.ContainerOf(ifp.PanelID, domain.BranchThen), 0)
	if err != nil {
		t.Fatal(err)
	}
	if wait.Level() != 1 || wait.ParentID != ifp.PanelID {
		t.Fatalf("added child = level %d parent %q", wait.Level(), wait.ParentID)
	}

	cp, err := s.Clone(ifp.PanelID)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	roots := s.Panels()
	if len(roots) != 2 || roots[0].PanelID != ifp.PanelID || roots[1].PanelID != cp.PanelID {
		t.Fatalf("clone not inserted after source")
	}
	then, _ := roots[1].Record().Branch(domain.BranchThen)
	if cp.PanelID == ifp.PanelID || len(then) != 1 {
		t.Fatalf("clone = %+v", roots[1])
	}
	if then[0].PanelID == wait.PanelID || then[0].ParentID != cp.PanelID {
		t.Fatalf("cloned child = %+v", then[0])
	}
	if err := tree.Validate(roots); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

// Scenario C through the drag API.
func TestDropRootMoveIntoThenBlock(t *testing.T) {
	s, _ := newSession(t, nil, dnd.PolicyTiered)
	ifp, _ := s.Add(domain.MenuTemplate{Type: domain.TagIf}, domain.RootContainer, 0)
	mv, _ := s.Add(domain.MenuTemplate{Type: domain.TagMove}, domain.RootContainer, 1)
	then := domain.ContainerOf(ifp.PanelID, domain.BranchThen)

	if err := s.BeginDrag(mv.PanelID); err != nil {
		t.Fatal(err)
	}
	if !s.DragOver(then, dnd.ZoneMiddle) {
		t.Fatal("thenBlock of a root If refused a root panel")
	}
	layout := StaticLayout{Containers: map[domain.ContainerKey]geom.Rect{then: geom.R(0, 100, 100, 40)}}
	if err := s.Drop(then, 10, layout); err != nil {
		t.Fatalf("Drop: %v", err)
	}

	roots := s.Panels()
	if len(roots) != 1 || roots[0].PanelID != ifp.PanelID {
		t.Fatalf("roots after drop = %d", len(roots))
	}
	kids, _ := roots[0].Record().Branch(domain.BranchThen)
	if len(kids) != 1 || kids[0].Type != domain.TagMove || kids[0].Level() != 1 || kids[0].ParentID != ifp.PanelID {
		t.Fatalf("thenBlock = %+v", kids)
	}
	if tree.Count(roots) != 2 {
		t.Fatalf("tree holds %d panels, want 2", tree.Count(roots))
	}
	if _, ok := s.Hovered(); ok {
		t.Fatal("hover state survived the drop")
	}
	if err := tree.Validate(roots); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDropIndexFromLayout(t *testing.T) {
	s, _ := newSession(t, nil, "")
	if err := s.LoadMission(mission(encode(t, waitRecord(t, "1"), waitRecord(t, "2"), waitRecord(t, "3"))), domain.Lookups{}); err != nil {
		t.Fatal(err)
	}
	roots := s.Panels()
	rows := geom.Stack(0, 40, 0, 3)
	layout := StaticLayout{
		Containers: map[domain.ContainerKey]geom.Rect{domain.RootContainer: geom.R(0, 0, 100, 120)},
		Panels:     map[string]geom.Rect{},
	}
	for i, p := range roots {
		layout.Panels[p.PanelID] = rows[i]
	}

	_ = s.BeginDrag(roots[2].PanelID)
	if err := s.Drop(domain.RootContainer, 10, layout); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	var order []string
	for _, p := range s.Panels() {
		order = append(order, p.Record().Field("Time").Variable)
	}
	if !slices.Equal(order, []string{"3", "1", "2"}) {
		t.Fatalf("order = %v", order)
	}
	if got := s.Panels()[0].PanelID; got != roots[2].PanelID {
		t.Fatal("reorder changed the panel id")
	}
}

func TestTieredPolicyRefusesRootIntoDeepNested(t *testing.T) {
	build := func(policy dnd.Policy) (*Session, domain.ContainerKey, string) {
		s, _ := newSession(t, nil, policy)
		loop, _ := s.Add(domain.MenuTemplate{Type: domain.TagLoop}, domain.RootContainer, 0)
		ifp, _ := s.Add(domain.MenuTemplate{Type: domain.TagIf}, domain.ContainerOf(loop.PanelID, domain.BranchChildren), 0)
		w, _ := s.Add(domain.MenuTemplate{Type: domain.TagWait}, domain.RootContainer, 1)
		return s, domain.ContainerOf(ifp.PanelID, domain.BranchThen), w.PanelID
	}

	s, deep, wait := build(dnd.PolicyTiered)
	before := s.Panels()
	_ = s.BeginDrag(wait)
	if s.DragOver(deep, dnd.ZoneTop) {
		t.Fatal("deep-nested container accepted a root panel")
	}
	if h, ok := s.Hovered(); !ok || h.Legal || h.Zone != dnd.ZoneNone {
		t.Fatalf("hover = %+v", h)
	}
	if err := s.Drop(deep, 0, nil); !errors.Is(err, dnd.ErrIllegalDrop) {
		t.Fatalf("Drop err = %v", err)
	}
	if tree.Count(s.Panels()) != tree.Count(before) || len(s.Panels()) != 2 {
		t.Fatal("illegal drop changed the tree")
	}
	if err := s.Drop(deep, 0, nil); !errors.Is(err, dnd.ErrNoDrag) {
		t.Fatalf("drag not cleared: %v", err)
	}

	s, deep, wait = build(dnd.PolicyAny)
	_ = s.BeginDrag(wait)
	if err := s.Drop(deep, 0, nil); err != nil {
		t.Fatalf("any-policy drop: %v", err)
	}
	kids, _ := tree.Children(s.Panels(), deep)
	if len(kids) != 1 || kids[0].Level() != 2 {
		t.Fatalf("deep branch = %+v", kids)
	}
}

func TestUpdateSettingsAndRevert(t *testing.T) {
	s, _ := newSession(t, nil, "")
	if err := s.LoadMission(mission(encode(t, waitRecord(t, "2"))), domain.Lookups{}); err != nil {
		t.Fatal(err)
	}
	id := s.Panels()[0].PanelID

	bad := tree.Patch{Fields: map[string]domain.VariableField{"Time": domain.Literal("-3")}}
	if err := s.UpdateSettings(id, bad); err == nil {
		t.Fatal("negative wait accepted")
	}
	if s.Dirty() {
		t.Fatal("rejected update marked the session dirty")
	}
	good := tree.Patch{Fields: map[string]domain.VariableField{"Time": domain.Literal("7")}}
	if err := s.UpdateSettings(id, good); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if got := s.Panels()[0].Record().Field("Time").Variable; got != "7" || !s.Dirty() {
		t.Fatalf("Time = %q dirty=%v", got, s.Dirty())
	}

	if err := s.RevertField(id, "Time"); err != nil {
		t.Fatalf("RevertField: %v", err)
	}
	if got := s.Panels()[0].Record().Field("Time").Variable; got != "2" {
		t.Fatalf("reverted Time = %q", got)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.RevertField(id, "Time"); !errors.Is(err, ErrNoBaseline) {
		t.Fatalf("baseline survived removal: %v", err)
	}
	if err := s.Remove(id); !errors.Is(err, ErrPanelNotFound) {
		t.Fatalf("second Remove = %v", err)
	}
}

func TestSaveWritesSerializedMission(t *testing.T) {
	be := &fakeBackend{mission: mission(loopWithMove(t))}
	s, rec := newSession(t, be, "")
	if err := s.Load(context.Background(), "ms1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(domain.MenuTemplate{Type: domain.TagWait}, domain.RootContainer, 1); err != nil {
		t.Fatal(err)
	}
	want, err := s.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(be.puts) != 1 || be.puts[0].DataMission != want || be.puts[0].ID != "ms1" {
		t.Fatalf("puts = %+v", be.puts)
	}
	if s.Dirty() || s.Mission().DataMission != want {
		t.Fatal("session not marked clean after save")
	}
	if !slices.Contains(rec.events, telemetry.EventMissionSaved) || len(rec.notices) != 0 {
		t.Fatalf("events %v notices %v", rec.events, rec.notices)
	}
}

// A panel whose type has no variant makes the whole mission unserializable;
// Save must tell the user and leave the backend alone.
func TestSaveAbortsOnUnregisteredType(t *testing.T) {
	be := &fakeBackend{mission: mission(loopWithMove(t))}
	s, rec := newSession(t, be, "")
	if err := s.Load(context.Background(), "ms1"); err != nil {
		t.Fatal(err)
	}
	loop := s.Panels()[0]
	ghost := &domain.Panel{PanelID: "ghost", Type: "teleport", ParentID: loop.PanelID,
		Actions: []*domain.ActionRecord{{ID: "ghost", Level: 1}}}
	s.mu.Lock()
	s.roots, _ = tree.InsertAt(s.roots, domain.ContainerOf(loop.PanelID, domain.BranchChildren), 0, ghost)
	s.mu.Unlock()

	err := s.Save(context.Background())
	if !errors.Is(err, action.ErrIncompleteMission) {
		t.Fatalf("Save err = %v", err)
	}
	if len(be.puts) != 0 {
		t.Fatal("backend written despite serialization failure")
	}
	if len(rec.notices) != 1 || !slices.Contains(rec.events, telemetry.EventSaveAborted) {
		t.Fatalf("notices %v events %v", rec.notices, rec.events)
	}
}

func TestSaveReportsBackendFailure(t *testing.T) {
	be := &fakeBackend{mission: mission(loopWithMove(t)), putErr: errors.New("503")}
	s, rec := newSession(t, be, "")
	if err := s.Save(context.Background()); !errors.Is(err, ErrNoMission) {
		t.Fatalf("Save before load = %v", err)
	}
	if err := s.Load(context.Background(), "ms1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background()); err == nil {
		t.Fatal("Save succeeded against a failing backend")
	}
	if len(rec.notices) != 1 {
		t.Fatalf("notices = %v", rec.notices)
	}
}

func TestAutosaveWritesMissionFile(t *testing.T) {
	s, _ := newSession(t, nil, "")
	if err := s.LoadMission(mission(loopWithMove(t)), domain.Lookups{}); err != nil {
		t.Fatal(err)
	}
	path, err := s.Autosave(t.TempDir())
	if err != nil {
		t.Fatalf("Autosave: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	m, err := storage.OpenMissionFile(path)
	if err != nil {
		t.Fatalf("OpenMissionFile: %v", err)
	}
	want, _ := s.Serialize()
	if m.DataMission != want || m.ID != "ms1" {
		t.Fatalf("autosaved mission = %+v", m)
	}
}

func TestMenuListsBuiltinsAndSubMissions(t *testing.T) {
	be := &fakeBackend{mission: mission("[]")}
	s, _ := newSession(t, be, "")
	if err := s.Load(context.Background(), "ms1"); err != nil {
		t.Fatal(err)
	}
	var subs, builtins int
	for _, m := range s.Menu() {
		switch m.Type {
		case domain.TagUserCreate:
			subs++
		case domain.TagDefault, domain.TagUnrecognized:
			t.Fatalf("internal tag %q offered in menu", m.Type)
		default:
			builtins++
		}
	}
	if subs != 2 || builtins != 16 {
		t.Fatalf("menu has %d built-ins and %d sub-missions", builtins, subs)
	}
}

func TestNewSessionWaitsForRegistry(t *testing.T) {
	reg := action.New(action.Options{Logger: quiet()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSession(ctx, reg, nil, Options{Logger: quiet()}); err == nil {
		t.Fatal("session created on an unbuilt registry")
	}
}

// An action this build does not know must survive a load/save cycle unchanged.
func TestSaveKeepsUnknownActionVerbatim(t *testing.T) {
	charge := domain.StorageRecord{
		ActionName: "Charge",
		Properties: `{"Station":{"Message":"","UserVariable":"false","Variable":"st-3"},"Until":"80%"}`,
		Type:       "20", UserCreate: "false",
	}
	data := encode(t, charge, waitRecord(t, "5"))
	be := &fakeBackend{mission: mission(data)}
	s, rec := newSession(t, be, "")
	if err := s.LoadMission(be.mission, domain.Lookups{}); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Panels()); n != 2 {
		t.Fatalf("loaded %d root panels, want 2", n)
	}
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(be.puts) != 1 || be.puts[0].DataMission != data {
		t.Fatalf("written %+v\nwant %s", be.puts, data)
	}
	if len(rec.notices) != 0 {
		t.Fatalf("notices %v", rec.notices)
	}
}
