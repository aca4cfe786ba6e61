/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package variants

import (
	"missioneditor/internal/action"
	"missioneditor/internal/domain"
)

// Move drives to a named point on a map.
type Move struct{ base }

func NewMove(reg *action.Registry) Move {
	return Move{newBase(reg, layout{
		tag: domain.TagMove, name: "Move", code: "1",
		entries: []entry{
			field("Map", ""),
			pointRef("Position"),
			checked("Distance_threshold", "0.3", atLeast(0.1)),
		},
	})}
}

// Docking docks at a marker.
type Docking struct{ base }

func NewDocking(reg *action.Registry) Docking {
	return Docking{newBase(reg, layout{
		tag: domain.TagDocking, name: "Docking", code: "2",
		entries: []entry{
			field("Map", ""),
			markerRef("Marker"),
			checked("Direction", "forward", oneOf("forward", "backward")),
		},
	})}
}

// RelativeMove moves by an offset from the current pose.
type RelativeMove struct{ base }

func NewRelativeMove(reg *action.Registry) RelativeMove {
	return RelativeMove{newBase(reg, layout{
		tag: domain.TagRelativeMove, name: "Relative Move", code: "3",
		entries: []entry{
			checked("X", "0", number),
			checked("Y", "0", number),
			checked("Theta", "0", number),
			checked("Speed", "0.3", number),
		},
	})}
}

// MoveToCoordinate drives to an explicit pose on a map.
type MoveToCoordinate struct{ base }

func NewMoveToCoordinate(reg *action.Registry) MoveToCoordinate {
	return MoveToCoordinate{newBase(reg, layout{
		tag: domain.TagMoveToCoordinate, name: "Move To Coordinate", code: "4",
		entries: []entry{
			field("Map", ""),
			checked("X", "0", number),
			checked("Y", "0", number),
			checked("Theta", "0", number),
		},
	})}
}

// SwitchMap changes the active map and relocalizes at a point.
type SwitchMap struct{ base }

func NewSwitchMap(reg *action.Registry) SwitchMap {
	return SwitchMap{newBase(reg, layout{
		tag: domain.TagSwitchMap, name: "Switch Map", code: "5",
		entries: []entry{
			field("Map", ""),
			pointRef("Position"),
		},
	})}
}
