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
	"fmt"
)

// StorageRecord is one element of a mission's serialized action array.
// Field order is the wire order.
type StorageRecord struct {
	ActionName string `json:"Action_name"`
	Properties string `json:"Properties"`
	Type       string `json:"Type"`
	UserCreate string `json:"User_create"`
}

// IsUserCreate reports whether the record references a sub-mission.
func (r StorageRecord) IsUserCreate() bool { return r.UserCreate == "true" }

// UnmarshalJSON tolerates numeric Type, boolean User_create and an inline
// object for Properties, all of which appear in older stored missions.
func (r *StorageRecord) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("storage record: %w", err)
	}
	*r = StorageRecord{
		ActionName: scalarString(raw["Action_name"]),
		Properties: scalarString(raw["Properties"]),
		Type:       scalarString(raw["Type"]),
		UserCreate: scalarString(raw["User_create"]),
	}
	if r.UserCreate == "" {
		r.UserCreate = "false"
	}
	return nil
}

// DecodeRecords parses a JSON array of storage records.
func DecodeRecords(s string) ([]StorageRecord, error) {
	s = string(bytes.TrimSpace([]byte(s)))
	if s == "" {
		return nil, nil
	}
	var out []StorageRecord
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out, nil
}

// EncodeRecords renders records in wire order without HTML escaping.
// A nil slice encodes as "[]".
func EncodeRecords(recs []StorageRecord) (string, error) {
	if recs == nil {
		recs = []StorageRecord{}
	}
	b, err := MarshalNoEscape(recs)
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	return string(b), nil
}
