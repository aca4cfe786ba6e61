/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package variants

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"missioneditor/internal/action"
	"missioneditor/internal/domain"
)

func testRegistry(t *testing.T, p action.UnknownPolicy) *action.Registry {
	t.Helper()
	reg, err := NewRegistry(action.Options{UnknownPolicy: p, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func lit(v string) string {
	return `{"Message":"","UserVariable":"false","Variable":"` + v + `"}`
}

func encode(t *testing.T, recs ...domain.StorageRecord) string {
	t.Helper()
	s, err := domain.EncodeRecords(recs)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreatePanelDefaultsAndKeyOrder(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	cases := []struct {
		tag   domain.TypeTag
		name  string
		code  string
		props string
	}{
		{domain.TagMove, "Move", "1", `{"Map":` + lit("") + `,"Position":` + lit("") + `,"Distance_threshold":` + lit("0.3") + `}`},
		{domain.TagDocking, "Docking", "2", `{"Map":` + lit("") + `,"Marker":` + lit("") + `,"Direction":` + lit("forward") + `}`},
		{domain.TagRelativeMove, "Relative Move", "3", `{"X":` + lit("0") + `,"Y":` + lit("0") + `,"Theta":` + lit("0") + `,"Speed":` + lit("0.3") + `}`},
		{domain.TagMoveToCoordinate, "Move To Coordinate", "4", `{"Map":` + lit("") + `,"X":` + lit("0") + `,"Y":` + lit("0") + `,"Theta":` + lit("0") + `}`},
		{domain.TagSwitchMap, "Switch Map", "5", `{"Map":` + lit("") + `,"Position":` + lit("") + `}`},
		{domain.TagWait, "Wait", "6", `{"Time":` + lit("5") + `}`},
		{domain.TagLoop, "Loop", "7", `{"Times":` + lit("-1") + `,"Children":"[]"}`},
		{domain.TagIf, "If", "8", `{"Left":` + lit("") + `,"Operator":` + lit("==") + `,"Right":` + lit("") + `,"True":"[]","False":"[]"}`},
		{domain.TagWhile, "While", "9", `{"Left":` + lit("") + `,"Operator":` + lit("==") + `,"Right":` + lit("") + `,"Children":"[]"}`},
		{domain.TagBreak, "Break", "10", `{}`},
		{domain.TagContinue, "Continue", "11", `{}`},
		{domain.TagReturn, "Return", "12", `{}`},
		{domain.TagTryCatch, "Try Catch", "13", `{"Try":"[]","Catch":"[]"}`},
		{domain.TagCreateLog, "Create Log", "14", `{"Level":` + lit("info") + `,"Message":` + lit("") + `}`},
		{domain.TagThrowError, "Throw Error", "15", `{"Code":` + lit("") + `,"Message":` + lit("") + `}`},
		{domain.TagPromptUser, "Prompt User", "16", `{"Question":` + lit("") + `,"Timeout":` + lit("30") + `,"Yes":"[]","No":"[]","Time_out":"[]"}`},
	}
	for _, tc := range cases {
		t.Run(string(tc.tag), func(t *testing.T) {
			p, err := reg.CreatePanel(domain.MenuTemplate{Name: tc.name, Type: tc.tag})
			if err != nil {
				t.Fatal(err)
			}
			if p.Level() != 0 || p.ParentID != "" || !p.IsExpanded || p.Record().ID != p.PanelID {
				t.Fatalf("created panel not a fresh root: %+v", p)
			}
			rec := reg.TransformPanel(p)
			if rec == nil {
				t.Fatalf("TransformPanel returned nil")
			}
			if rec.ActionName != tc.name || rec.Type != tc.code || rec.UserCreate != "false" {
				t.Fatalf("record header = %+v", rec)
			}
			if rec.Properties != tc.props {
				t.Fatalf("Properties =\n%s\nwant\n%s", rec.Properties, tc.props)
			}
		})
	}
}

func TestRoundTripPreservesPropertiesForEveryVariant(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	for _, tag := range reg.Tags() {
		if tag == domain.TagDefault || tag == domain.TagUnrecognized {
			continue // verbatim variants are covered by TestUnknownNamesFollowPolicy
		}
		t.Run(string(tag), func(t *testing.T) {
			p, err := reg.CreatePanel(domain.MenuTemplate{Name: "Recharge", Type: tag, ID: "m-1", GroupID: "g-1"})
			if err != nil {
				t.Fatal(err)
			}
			for _, key := range []string{"Map", "Time", "Times", "Message"} {
				if _, ok := p.Record().Fields[key]; ok {
					p.Record().SetField(key, domain.Literal("x<&>\"y"))
				}
			}
			first := reg.TransformPanel(p)
			if first == nil {
				t.Fatalf("first transform failed")
			}
			parsed := reg.ParseRecord(*first, action.ParseContext{})
			if parsed == nil {
				t.Fatalf("parse of %+v failed", first)
			}
			if parsed.Type != tag {
				t.Fatalf("parsed type = %q", parsed.Type)
			}
			second := reg.TransformPanel(parsed)
			if second == nil || *second != *first {
				t.Fatalf("round trip mismatch:\n%+v\n%+v", first, second)
			}
		})
	}
}

// Scenario: Loop with one Move child loads as a two-level tree.
func TestParseLoopWithMoveChild(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	moveProps, _ := action.NewProps().
		Field("Map", domain.Literal("m1")).
		Field("Position", domain.Literal("p7")).
		Field("Distance_threshold", domain.Literal("0.5")).Encode()
	children := encode(t, domain.StorageRecord{ActionName: "Move", Properties: moveProps, Type: "1", UserCreate: "false"})
	loopProps, _ := action.NewProps().Field("Times", domain.Literal("3")).String("Children", children).Encode()
	data := encode(t, domain.StorageRecord{ActionName: "Loop", Properties: loopProps, Type: "7", UserCreate: "false"})

	lk := domain.Lookups{PointsByMap: map[string][]domain.Point{"m1": {{ID: "p7", DisplayName: "Charger 7"}}}}
	roots, err := reg.ParseMission(data, lk)
	if err != nil {
		t.Fatalf("ParseMission: %v", err)
	}
	if len(roots) != 1 || roots[0].Type != domain.TagLoop || roots[0].Level() != 0 {
		t.Fatalf("roots = %+v", roots)
	}
	kids, ok := roots[0].Record().Branch(domain.BranchChildren)
	if !ok || len(kids) != 1 {
		t.Fatalf("children = %v,%v", kids, ok)
	}
	mv := kids[0]
	if mv.Type != domain.TagMove || mv.Level() != 1 || mv.ParentID != roots[0].PanelID {
		t.Fatalf("child = %+v level %d", mv, mv.Level())
	}
	if mv.Record().Attr("Position") != "Charger 7" {
		t.Fatalf("Position not resolved: %q", mv.Record().Attr("Position"))
	}
	if mv.PanelID == roots[0].PanelID {
		t.Fatalf("ids not unique")
	}
	back, err := reg.SerializeMission(roots)
	if err != nil || back != data {
		t.Fatalf("SerializeMission =\n%s\nwant\n%s\nerr %v", back, data, err)
	}
}

// Scenario: cloning an If regenerates every id and reparents the branch child.
func TestCloneIfWithWaitInThenBlock(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	ifp, _ := reg.CreatePanel(domain.MenuTemplate{Name: "If", Type: domain.TagIf})
	wait, _ := reg.CreatePanel(domain.MenuTemplate{Name: "Wait", Type: domain.TagWait})
	wait.ParentID = ifp.PanelID
	wait.Record().Level = 1
	ifp.Record().SetBranch(domain.BranchThen, []*domain.Panel{wait})

	cp := reg.ClonePanel(ifp, "", 0)
	if cp.PanelID == ifp.PanelID || cp.Record().ID != cp.PanelID {
		t.Fatalf("clone kept id or record id mismatch")
	}
	then, _ := cp.Record().Branch(domain.BranchThen)
	if len(then) != 1 {
		t.Fatalf("clone thenBlock = %v", then)
	}
	if then[0].PanelID == wait.PanelID || then[0].ParentID != cp.PanelID || then[0].Level() != 1 {
		t.Fatalf("cloned child = %+v", then[0])
	}

	then[0].Record().SetField("Time", domain.Literal("99"))
	cp.Record().SetField("Operator", domain.Literal("!="))
	if wait.Record().Field("Time").Variable != "5" || ifp.Record().Field("Operator").Variable != "==" {
		t.Fatalf("mutating the clone leaked into the source")
	}
	orig, _ := ifp.Record().Branch(domain.BranchThen)
	if len(orig) != 1 || orig[0] != wait {
		t.Fatalf("source branch changed by clone")
	}
}

func TestCloneAtDepthRewritesLevels(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	loop, _ := reg.CreatePanel(domain.MenuTemplate{Type: domain.TagLoop})
	brk, _ := reg.CreatePanel(domain.MenuTemplate{Type: domain.TagBreak})
	brk.ParentID, brk.Record().Level = loop.PanelID, 1
	loop.Record().SetBranch(domain.BranchChildren, []*domain.Panel{brk})

	cp := reg.ClonePanel(loop, "owner", 4)
	kids, _ := cp.Record().Branch(domain.BranchChildren)
	if cp.Level() != 4 || cp.ParentID != "owner" || kids[0].Level() != 5 || kids[0].ParentID != cp.PanelID {
		t.Fatalf("levels not rewritten: %d/%d", cp.Level(), kids[0].Level())
	}
}

// Scenario: a node without a registered variant fails every ancestor's transform.
func TestTransformFailsUpTheAncestorChain(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	loop, _ := reg.CreatePanel(domain.MenuTemplate{Type: domain.TagLoop})
	ifp, _ := reg.CreatePanel(domain.MenuTemplate{Type: domain.TagIf})
	ghost := &domain.Panel{PanelID: "ghost", Type: "teleport", Actions: []*domain.ActionRecord{{ID: "ghost", Level: 2}}}
	ifp.Record().SetBranch(domain.BranchThen, []*domain.Panel{ghost})
	loop.Record().SetBranch(domain.BranchChildren, []*domain.Panel{ifp})

	if reg.TransformPanel(ghost) != nil {
		t.Fatalf("unregistered leaf serialized")
	}
	if reg.TransformPanel(ifp) != nil {
		t.Fatalf("If with broken child serialized")
	}
	if reg.TransformPanel(loop) != nil {
		t.Fatalf("Loop with broken grandchild serialized")
	}
	if _, err := reg.SerializeMission([]*domain.Panel{loop}); !errors.Is(err, action.ErrIncompleteMission) {
		t.Fatalf("SerializeMission err = %v", err)
	}
}

func TestMalformedInputIsRecoveredLocally(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	goodWait := domain.StorageRecord{ActionName: "Wait", Properties: `{"Time":` + lit("2") + `}`, Type: "6", UserCreate: "false"}
	badWait := domain.StorageRecord{ActionName: "Wait", Properties: `{"Time":`, Type: "6", UserCreate: "false"}
	badLoop := domain.StorageRecord{ActionName: "Loop", Properties: `{"Times":` + lit("2") + `,"Children":"[{oops"}`, Type: "7", UserCreate: "false"}
	noMission := domain.StorageRecord{ActionName: "Charge", Properties: `{}`, Type: "0", UserCreate: "true"}

	roots, err := reg.ParseMission(encode(t, goodWait, badWait, badLoop, noMission), domain.Lookups{})
	if err != nil {
		t.Fatalf("ParseMission: %v", err)
	}
	if len(roots) != 3 {
		t.Fatalf("want 3 surviving roots, got %d", len(roots))
	}
	if roots[1].Record().Field("Time").Variable != "5" {
		t.Fatalf("malformed Wait should fall back to default Time")
	}
	kids, _ := roots[2].Record().Branch(domain.BranchChildren)
	if len(kids) != 0 || roots[2].Record().Field("Times").Variable != "2" {
		t.Fatalf("malformed branch should be empty while fields survive")
	}
	if _, err := reg.ParseMission("[{", domain.Lookups{}); err == nil {
		t.Fatalf("broken top-level array should error")
	}
}

func TestUserCreateRoundTripAndNameResolution(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	props := `{"Mission_ID":` + lit("a1") + `,"Group_ID":` + lit("g1") + `}`
	rec := domain.StorageRecord{ActionName: "Charge Battery", Properties: props, Type: "0", UserCreate: "true"}
	lk := domain.Lookups{ActionsByGroup: map[string][]domain.GroupAction{"g1": {{ID: "a1", Name: "Charging v2", GroupID: "g1"}}}}

	p := reg.ParseRecord(rec, action.ParseContext{Lookups: lk})
	if p == nil || p.Type != domain.TagUserCreate || !p.Record().UserCreate {
		t.Fatalf("parsed = %+v", p)
	}
	if p.Record().Attr("Mission_ID") != "Charging v2" || p.ActionName != "Charge Battery" {
		t.Fatalf("resolution = %q name %q", p.Record().Attr("Mission_ID"), p.ActionName)
	}
	if out := reg.TransformPanel(p); out == nil || *out != rec {
		t.Fatalf("transform = %+v, want %+v", out, rec)
	}
	miss := reg.ParseRecord(rec, action.ParseContext{})
	if miss == nil || miss.Record().Attr("Mission_ID") != "" {
		t.Fatalf("unresolved sub-mission should keep a blank name")
	}

	created, _ := reg.CreatePanel(domain.MenuTemplate{Name: "Patrol", Type: domain.TagUserCreate, ID: "a9", GroupID: "g2"})
	out := reg.TransformPanel(created)
	if out.ActionName != "Patrol" || out.UserCreate != "true" || out.Type != "0" ||
		out.Properties != `{"Mission_ID":`+lit("a9")+`,"Group_ID":`+lit("g2")+`}` {
		t.Fatalf("created sub-mission record = %+v", out)
	}
}

func TestUnknownNamesFollowPolicy(t *testing.T) {
	rec := domain.StorageRecord{ActionName: "Laser Show", Properties: `{"Beam":{"Color":"red"},"Mission_ID":` + lit("x") + `}`, Type: "42", UserCreate: "false"}

	lenient := testRegistry(t, action.UnknownAsSubmission)
	sub := lenient.ParseRecord(rec, action.ParseContext{})
	if sub == nil || sub.Type != domain.TagUserCreate {
		t.Fatalf("submission policy parsed %+v", sub)
	}
	def := domain.StorageRecord{ActionName: "Default", Properties: `{"a":1}`, Type: "99", UserCreate: "false"}
	dp := lenient.ParseRecord(def, action.ParseContext{})
	if dp == nil || dp.Type != domain.TagDefault {
		t.Fatalf("default record parsed %+v", dp)
	}
	if out := lenient.TransformPanel(dp); out == nil || *out != def {
		t.Fatalf("default record not preserved: %+v", out)
	}

	strict := testRegistry(t, action.UnknownAsUnrecognized)
	p := strict.ParseRecord(rec, action.ParseContext{Level: 1, ParentID: "o"})
	if p == nil || p.Type != domain.TagUnrecognized || p.ParentID != "o" || p.Level() != 1 {
		t.Fatalf("unrecognized policy parsed %+v", p)
	}
	if out := strict.TransformPanel(p); out == nil || *out != rec {
		t.Fatalf("unrecognized record not preserved verbatim: %+v", out)
	}
	cp := strict.ClonePanel(p, "", 0)
	if cp.PanelID == p.PanelID || cp.Record().Attr(rawAttr) != rec.Properties {
		t.Fatalf("generic clone = %+v", cp)
	}
}

func TestRangeChecks(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	check := func(tag domain.TypeTag, key string, v domain.VariableField) error {
		t.Helper()
		vv, _ := reg.Variant(tag)
		c, ok := vv.(action.Checker)
		if !ok {
			t.Fatalf("%s is not a Checker", tag)
		}
		return c.Check(key, v)
	}
	bad := []struct {
		tag domain.TypeTag
		key string
		v   string
	}{
		{domain.TagMove, "Distance_threshold", "0.05"},
		{domain.TagMove, "Distance_threshold", "near"},
		{domain.TagWait, "Time", "-1"},
		{domain.TagLoop, "Times", "-2"},
		{domain.TagLoop, "Times", "1.5"},
		{domain.TagPromptUser, "Timeout", "-3"},
		{domain.TagIf, "Operator", "=~"},
		{domain.TagWhile, "Operator", ""},
		{domain.TagDocking, "Direction", "sideways"},
		{domain.TagCreateLog, "Level", "debug"},
		{domain.TagRelativeMove, "Speed", "fast"},
	}
	for _, b := range bad {
		if err := check(b.tag, b.key, domain.Literal(b.v)); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("%s.%s=%q err = %v, want ErrOutOfRange", b.tag, b.key, b.v, err)
		}
	}
	good := []struct {
		tag domain.TypeTag
		key string
		v   string
	}{
		{domain.TagMove, "Distance_threshold", "0.1"},
		{domain.TagWait, "Time", "0"},
		{domain.TagLoop, "Times", "-1"},
		{domain.TagIf, "Operator", "<="},
		{domain.TagDocking, "Direction", "backward"},
		{domain.TagMove, "Map", "anything"},
	}
	for _, g := range good {
		if err := check(g.tag, g.key, domain.Literal(g.v)); err != nil {
			t.Fatalf("%s.%s=%q err = %v", g.tag, g.key, g.v, err)
		}
	}
	bound := domain.Literal("").Bind("threshold", nil)
	if err := check(domain.TagMove, "Distance_threshold", bound); err != nil {
		t.Fatalf("bound values must skip checks: %v", err)
	}
}

func TestDockingMarkerResolution(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	props := `{"Map":` + lit("m3") + `,"Marker":` + lit("k1") + `,"Direction":` + lit("backward") + `}`
	lk := domain.Lookups{MarkersByMap: map[string][]domain.Marker{"m3": {{ID: "k1", DisplayName: "Bay 1"}}}}
	p := reg.ParseRecord(domain.StorageRecord{ActionName: "docking", Properties: props, Type: "2", UserCreate: "false"}, action.ParseContext{Lookups: lk})
	if p == nil || p.Type != domain.TagDocking || p.Record().Attr("Marker") != "Bay 1" {
		t.Fatalf("docking = %+v", p)
	}
	if out := reg.TransformPanel(p); !strings.HasPrefix(out.Properties, `{"Map":`) || out.ActionName != "Docking" {
		t.Fatalf("docking transform = %+v", out)
	}
}

func TestPresentationsRegisteredForEveryVariant(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	tags := reg.Tags()
	if len(tags) != 19 {
		t.Fatalf("registered %d tags: %v", len(tags), tags)
	}
	for _, tag := range tags {
		if pre, ok := reg.Presentation(tag); !ok || pre.Label == "" {
			t.Fatalf("missing presentation for %s", tag)
		}
	}
}

func TestUnknownActionWithoutMissionIDIsKeptVerbatim(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsSubmission)
	charge := domain.StorageRecord{ActionName: "Charge", Properties: `{"Station":` + lit("st-3") + `,"Until":"80%"}`, Type: "20", UserCreate: "false"}
	broken := domain.StorageRecord{ActionName: "Beep", Properties: `{not json`, Type: "21", UserCreate: "false"}
	data := encode(t, charge, broken)

	roots, err := reg.ParseMission(data, domain.Lookups{})
	if err != nil || len(roots) != 2 {
		t.Fatalf("ParseMission = %d roots, %v", len(roots), err)
	}
	for _, p := range roots {
		if p.Type != domain.TagUserCreate || p.Record().Field("Mission_ID").Variable != "" {
			t.Fatalf("fallback panel = %+v", p)
		}
	}
	out, err := reg.SerializeMission(roots)
	if err != nil || out != data {
		t.Fatalf("SerializeMission =\n%s, %v\nwant\n%s", out, err, data)
	}

	// Once a sub-mission is chosen the record is written as a regular reference.
	cp := reg.ClonePanel(roots[0], "", 0)
	cp.Record().SetField("Mission_ID", domain.Literal("ms-9"))
	rec := reg.TransformPanel(cp)
	if rec == nil || rec.UserCreate != "true" || !strings.Contains(rec.Properties, `"Mission_ID"`) {
		t.Fatalf("chosen sub-mission = %+v", rec)
	}
	if again := reg.TransformPanel(roots[0]); again == nil || *again != charge {
		t.Fatalf("source changed by clone edit: %+v", again)
	}
}

func TestUnknownNameResolvesByTypeCode(t *testing.T) {
	reg := testRegistry(t, action.UnknownAsUnrecognized)
	rec := domain.StorageRecord{ActionName: "Repeat Block (v1)", Properties: `{"Times":` + lit("2") + `,"Children":"[]"}`, Type: "7", UserCreate: "false"}
	if got := reg.ResolveRecord(rec); got != domain.TagLoop {
		t.Fatalf("ResolveRecord = %s, want loop", got)
	}
	p := reg.ParseRecord(rec, action.ParseContext{})
	if p == nil || p.Type != domain.TagLoop || p.Record().Field("Times").Variable != "2" {
		t.Fatalf("parsed %+v", p)
	}
	if tag, ok := reg.ResolveTypeFromCode("404"); ok {
		t.Fatalf("unknown code resolved to %s", tag)
	}
	if got := reg.ResolveRecord(domain.StorageRecord{ActionName: "Laser", Type: "404"}); got != domain.TagUnrecognized {
		t.Fatalf("unknown name and code = %s", got)
	}
}
