/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"missioneditor/internal/domain"
)

// Properties is a decoded Properties object keyed by storage key.
type Properties map[string]json.RawMessage

// ParseProperties decodes a Properties string. An empty string yields empty
// properties; malformed JSON yields empty properties and the decode error so the
// caller can log it and continue with defaults.
func ParseProperties(s string) (Properties, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Properties{}, nil
	}
	var p Properties
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Properties{}, fmt.Errorf("parse properties: %w", err)
	}
	if p == nil {
		p = Properties{}
	}
	return p, nil
}

// Has reports whether key is present.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Field decodes key as a Variable Field.
func (p Properties) Field(key string) (domain.VariableField, bool) {
	raw, ok := p[key]
	if !ok {
		return domain.VariableField{}, false
	}
	var f domain.VariableField
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.VariableField{}, false
	}
	return f, true
}

// Records decodes a branch stored under key. Branches are normally a
// JSON-stringified array; an inline array is accepted too. A missing key is an
// empty branch.
func (p Properties) Records(key string) ([]domain.StorageRecord, error) {
	raw, ok := p[key]
	if !ok {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("branch %s: %w", key, err)
		}
		return domain.DecodeRecords(s)
	}
	var out []domain.StorageRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("branch %s: %w", key, err)
	}
	return out, nil
}

// Props writes a Properties object with keys in call order. Key order is part
// of the wire format.
type Props struct {
	buf bytes.Buffer
	n   int
	err error
}

// NewProps starts an empty object.
func NewProps() *Props {
	p := &Props{}
	p.buf.WriteByte('{')
	return p
}

func (p *Props) key(k string) {
	if p.n > 0 {
		p.buf.WriteByte(',')
	}
	p.n++
	b, err := domain.MarshalNoEscape(k)
	if err != nil && p.err == nil {
		p.err = err
	}
	p.buf.Write(b)
	p.buf.WriteByte(':')
}

// Field appends a Variable Field.
func (p *Props) Field(k string, f domain.VariableField) *Props {
	p.key(k)
	b, err := f.MarshalJSON()
	if err != nil && p.err == nil {
		p.err = err
	}
	p.buf.Write(b)
	return p
}

// String appends a string value, e.g. a stringified branch array.
func (p *Props) String(k, v string) *Props {
	p.key(k)
	b, err := domain.MarshalNoEscape(v)
	if err != nil && p.err == nil {
		p.err = err
	}
	p.buf.Write(b)
	return p
}

// Encode closes the object and returns it.
func (p *Props) Encode() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.buf.String() + "}", nil
}
