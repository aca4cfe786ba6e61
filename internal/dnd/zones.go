/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dnd turns a pointer drop over a container into an insertion index,
// decides whether a drop is legal, holds the one in-flight drag and commits
// drops against the live action tree.
package dnd

import (
	"math"

	"missioneditor/internal/geom"
)

// Zone is the buffer-zone marker shown while hovering a panel.
type Zone string

const (
	ZoneNone   Zone = ""
	ZoneTop    Zone = "top"
	ZoneMiddle Zone = "middle"
	ZoneBottom Zone = "bottom"
)

// ComputeDropIndex maps pointerY, measured from the top of container, to an
// insertion index among siblings (measured in the container's coordinate
// space). The N siblings split the container into N+1 zones at their vertical
// midpoints: above sibling 0's midpoint is index 0, below the last midpoint is
// index N. Unmeasured siblings and pointer values that land in no zone append
// at the end. An empty container always yields 0.
func ComputeDropIndex(pointerY float32, container geom.Rect, siblings []geom.Rect) int {
	n := len(siblings)
	if n == 0 {
		return 0
	}
	y := container.Y + pointerY
	if math.IsNaN(float64(y)) {
		return n
	}
	for i, s := range siblings {
		if s.Empty() {
			continue
		}
		if y < s.MidY() {
			return i
		}
	}
	return n
}

// ZoneFor classifies an absolute pointerY against one sibling's bounds: the
// upper and lower quarters are top and bottom, the rest is middle. Outside the
// sibling there is no zone.
func ZoneFor(pointerY float32, sibling geom.Rect) Zone {
	if sibling.Empty() || !sibling.ContainsY(pointerY) {
		return ZoneNone
	}
	quarter := sibling.H / 4
	switch {
	case pointerY < sibling.Y+quarter:
		return ZoneTop
	case pointerY > sibling.Bottom()-quarter:
		return ZoneBottom
	default:
		return ZoneMiddle
	}
}
