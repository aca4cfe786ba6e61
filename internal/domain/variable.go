/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// VariableField is a user-editable value that is either a literal or bound to a
// named variable. For literals Variable holds the value and Message is unused.
// For bound values Variable holds the variable's display name and Message the
// JSON array of every Binding created for the field.
type VariableField struct {
	Message      string
	UserVariable bool
	Variable     string
}

// Binding is one entry of a bound field's history. At most one entry is current.
type Binding struct {
	Text      string `json:"text"`
	Value     any    `json:"value"`
	IsCurrent bool   `json:"is_current"`
}

// Literal returns an unbound field holding v.
func Literal(v string) VariableField { return VariableField{Variable: v} }

// IsBound reports whether the field refers to a variable.
func (f VariableField) IsBound() bool { return f.UserVariable }

// Bindings decodes Message. Malformed or empty messages yield nil.
func (f VariableField) Bindings() []Binding {
	msg := strings.TrimSpace(f.Message)
	if msg == "" {
		return nil
	}
	var out []Binding
	if err := json.Unmarshal([]byte(msg), &out); err != nil {
		return nil
	}
	return out
}

// Current returns the binding flagged is_current.
func (f VariableField) Current() (Binding, bool) {
	for _, b := range f.Bindings() {
		if b.IsCurrent {
			return b, true
		}
	}
	return Binding{}, false
}

// Bind marks the binding with the given text as current, appending it when new.
// Every other entry loses its is_current flag.
func (f VariableField) Bind(text string, value any) VariableField {
	bs := f.Bindings()
	found := false
	for i := range bs {
		bs[i].IsCurrent = false
		if !found && bs[i].Text == text {
			bs[i].Value = value
			bs[i].IsCurrent = true
			found = true
		}
	}
	if !found {
		bs = append(bs, Binding{Text: text, Value: value, IsCurrent: true})
	}
	msg, err := MarshalNoEscape(bs)
	if err != nil {
		msg = nil
	}
	return VariableField{Message: string(msg), UserVariable: true, Variable: text}
}

// Unbind turns the field back into a literal, keeping the binding history with no current entry.
func (f VariableField) Unbind(literal string) VariableField {
	bs := f.Bindings()
	for i := range bs {
		bs[i].IsCurrent = false
	}
	out := VariableField{Variable: literal}
	if len(bs) > 0 {
		if msg, err := MarshalNoEscape(bs); err == nil {
			out.Message = string(msg)
		}
	}
	return out
}

// Display returns the text shown for the field.
func (f VariableField) Display() string {
	if !f.UserVariable {
		return f.Variable
	}
	if b, ok := f.Current(); ok && b.Text != "" {
		return b.Text
	}
	return f.Variable
}

type wireField struct {
	Message      string `json:"Message"`
	UserVariable string `json:"UserVariable"`
	Variable     string `json:"Variable"`
}

// MarshalJSON writes the storage shape with keys Message, UserVariable, Variable.
func (f VariableField) MarshalJSON() ([]byte, error) {
	uv := "false"
	if f.UserVariable {
		uv = "true"
	}
	return MarshalNoEscape(wireField{Message: f.Message, UserVariable: uv, Variable: f.Variable})
}

// UnmarshalJSON accepts the storage shape and tolerates booleans or numbers
// where strings are expected, and bare scalars as literals.
func (f *VariableField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = VariableField{}
		return nil
	}
	if b[0] != '{' {
		*f = Literal(scalarString(b))
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := VariableField{
		Message:  scalarString(raw["Message"]),
		Variable: scalarString(raw["Variable"]),
	}
	out.UserVariable = scalarString(raw["UserVariable"]) == "true"
	*f = out
	return nil
}

// scalarString renders a JSON scalar as the string a stored field would hold.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	if bytes.Equal(raw, []byte("true")) || bytes.Equal(raw, []byte("false")) {
		return string(raw)
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return string(raw)
	}
	// objects and arrays are kept as their compact JSON text
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}

// MarshalNoEscape encodes v like JSON.stringify: no HTML escaping, no trailing newline.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
