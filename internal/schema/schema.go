/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package schema validates missions and their action arrays against embedded
// JSON Schemas before they leave the editor.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"missioneditor/internal/domain"
)

//go:embed *.schema.json
var files embed.FS

// ValidationError lists every violation found in one document.
type ValidationError struct {
	Document string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s invalid: %s", e.Document, e.Problems[0])
	}
	return fmt.Sprintf("%s invalid (%d problems): %s", e.Document, len(e.Problems), strings.Join(e.Problems, "; "))
}

type compiled struct {
	mission *gojsonschema.Schema
	actions *gojsonschema.Schema
}

var load = sync.OnceValues(func() (compiled, error) {
	var c compiled
	var err error
	if c.mission, err = compile("mission.schema.json"); err != nil {
		return c, err
	}
	if c.actions, err = compile("actions.schema.json"); err != nil {
		return c, err
	}
	return c, nil
})

func compile(name string) (*gojsonschema.Schema, error) {
	b, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return s, nil
}

func run(s *gojsonschema.Schema, doc []byte, prefix string, problems *[]string) error {
	res, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return err
	}
	for _, e := range res.Errors() {
		*problems = append(*problems, label(prefix, e.Field())+": "+e.Description())
	}
	return nil
}

// ValidateMission checks the mission envelope and, when it decodes, the
// dataMission action array it carries.
func ValidateMission(m domain.Mission) error {
	c, err := load()
	if err != nil {
		return err
	}
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var problems []string
	if err := run(c.mission, doc, "", &problems); err != nil {
		return err
	}
	if err := validateActions(c, m.DataMission, "dataMission", &problems); err != nil {
		return err
	}
	if len(problems) > 0 {
		return &ValidationError{Document: "mission " + m.ID, Problems: problems}
	}
	return nil
}

// ValidateActions checks a serialized action array, recursing into branch
// arrays nested inside each record's Properties.
func ValidateActions(data string) error {
	c, err := load()
	if err != nil {
		return err
	}
	var problems []string
	if err := validateActions(c, data, "", &problems); err != nil {
		return err
	}
	if len(problems) > 0 {
		return &ValidationError{Document: "actions", Problems: problems}
	}
	return nil
}

func validateActions(c compiled, data, prefix string, problems *[]string) error {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil
	}
	if !json.Valid([]byte(data)) {
		*problems = append(*problems, label(prefix, "(root)")+": not valid JSON")
		return nil
	}
	before := len(*problems)
	if err := run(c.actions, []byte(data), prefix, problems); err != nil {
		return err
	}
	if len(*problems) > before {
		return nil
	}
	var recs []domain.StorageRecord
	if err := json.Unmarshal([]byte(data), &recs); err != nil {
		*problems = append(*problems, label(prefix, "(root)")+": "+err.Error())
		return nil
	}
	for i, r := range recs {
		at := fmt.Sprintf("%s[%d].Properties", prefix, i)
		var props map[string]json.RawMessage
		if err := json.Unmarshal([]byte(r.Properties), &props); err != nil {
			*problems = append(*problems, at+": not a JSON object")
			continue
		}
		for key, raw := range props {
			nested, ok := nestedArray(raw)
			if !ok {
				continue
			}
			if err := validateActions(c, nested, at+"."+key, problems); err != nil {
				return err
			}
		}
	}
	return nil
}

// nestedArray returns the branch array held by a Properties value, which is
// stored either as a JSON string or inline.
func nestedArray(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "[") {
			return s, true
		}
		return "", false
	}
	t := strings.TrimSpace(string(raw))
	if strings.HasPrefix(t, "[") {
		return t, true
	}
	return "", false
}

func label(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "(root)":
		return prefix
	default:
		return prefix + "." + field
	}
}
