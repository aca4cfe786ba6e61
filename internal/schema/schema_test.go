/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package schema

import (
	"errors"
	"strings"
	"testing"

	"missioneditor/internal/domain"
)

func encode(t *testing.T, recs ...domain.StorageRecord) string {
	t.Helper()
	s, err := domain.EncodeRecords(recs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return s
}

func moveRecord() domain.StorageRecord {
	return domain.StorageRecord{
		ActionName: "Move",
		Properties: `{"Map":{"Message":"","UserVariable":"false","Variable":"m1"},"Position":{"Message":"","UserVariable":"false","Variable":"p1"}}`,
		Type:       "1",
		UserCreate: "false",
	}
}

func loopRecord(t *testing.T, children string) domain.StorageRecord {
	t.Helper()
	props, err := domain.MarshalNoEscape(map[string]any{
		"Loop_time": map[string]string{"Message": "", "UserVariable": "false", "Variable": "-1"},
		"Children":  children,
	})
	if err != nil {
		t.Fatal(err)
	}
	return domain.StorageRecord{ActionName: "Loop", Properties: string(props), Type: "7", UserCreate: "false"}
}

func TestValidateActionsAcceptsNestedTree(t *testing.T) {
	data := encode(t, loopRecord(t, encode(t, moveRecord())), moveRecord())
	if err := ValidateActions(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateActions(""); err != nil {
		t.Fatalf("empty data should be valid: %v", err)
	}
}

func TestValidateActionsReportsNestedProblems(t *testing.T) {
	bad := moveRecord()
	bad.UserCreate = "maybe"
	data := encode(t, loopRecord(t, encode(t, moveRecord(), bad)))

	err := ValidateActions(data)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *ValidationError, got %v", err)
	}
	if len(ve.Problems) != 1 {
		t.Fatalf("want 1 problem, got %v", ve.Problems)
	}
	if !strings.HasPrefix(ve.Problems[0], "[0].Properties.Children.1.User_create") {
		t.Fatalf("problem not located in nested branch: %q", ve.Problems[0])
	}
}

func TestValidateActionsRejectsBrokenProperties(t *testing.T) {
	rec := moveRecord()
	rec.Properties = "{not json"
	err := ValidateActions(encode(t, rec))
	var ve *ValidationError
	if !errors.As(err, &ve) || !strings.Contains(ve.Error(), "[0].Properties") {
		t.Fatalf("want properties problem, got %v", err)
	}
	if err := ValidateActions("[{]"); err == nil {
		t.Fatal("want error for malformed array")
	}
}

func TestValidateMission(t *testing.T) {
	m := domain.Mission{ID: "m-1", MissionName: "Patrol", GroupID: "g", SiteID: "s", DataMission: encode(t, moveRecord())}
	if err := ValidateMission(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.MissionName = ""
	m.DataMission = `[{"Action_name":"Move"}]`
	err := ValidateMission(m)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *ValidationError, got %v", err)
	}
	if len(ve.Problems) < 2 {
		t.Fatalf("want envelope and action problems, got %v", ve.Problems)
	}
}
