/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dnd

import "missioneditor/internal/domain"

// NestingClass is the coarse depth class a drop container declares.
type NestingClass int

const (
	ClassRoot NestingClass = iota
	ClassNested
	ClassDeepNested
)

func (c NestingClass) String() string {
	switch c {
	case ClassRoot:
		return "root"
	case ClassNested:
		return "nested"
	default:
		return "deep-nested"
	}
}

// ClassFor classifies container key whose owner sits at ownerLevel. Branches of
// root-level panels are nested; anything deeper is deep-nested.
func ClassFor(key domain.ContainerKey, ownerLevel int) NestingClass {
	switch {
	case key.IsRoot():
		return ClassRoot
	case ownerLevel <= 0:
		return ClassNested
	default:
		return ClassDeepNested
	}
}

// Policy selects the cross-container legality rule.
type Policy string

const (
	// PolicyTiered applies the root/nested/deep-nested compatibility table.
	PolicyTiered Policy = "tiered"
	// PolicyAny lets every container accept from every other; levels are
	// rewritten on commit either way.
	PolicyAny Policy = "any"
)

// ParsePolicy maps a config value to a Policy, defaulting to tiered.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyAny {
		return PolicyAny
	}
	return PolicyTiered
}

// Endpoint is one side of a drop: the container and its class.
type Endpoint struct {
	Key   domain.ContainerKey
	Class NestingClass
}

// CanAccept reports whether dst may receive an item dragged out of src.
// Reordering within one container is always legal.
func CanAccept(p Policy, src, dst Endpoint) bool {
	if src.Key == dst.Key {
		return true
	}
	if p == PolicyAny {
		return true
	}
	switch dst.Class {
	case ClassRoot, ClassNested:
		return true
	default:
		return src.Class == ClassDeepNested
	}
}
