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

// Wait pauses for Time seconds.
type Wait struct{ base }

func NewWait(reg *action.Registry) Wait {
	return Wait{newBase(reg, layout{
		tag: domain.TagWait, name: "Wait", code: "6",
		entries: []entry{checked("Time", "5", atLeast(0))},
	})}
}

// Loop repeats its children Times times; -1 runs forever.
type Loop struct{ base }

func NewLoop(reg *action.Registry) Loop {
	return Loop{newBase(reg, layout{
		tag: domain.TagLoop, name: "Loop", code: "7",
		entries: []entry{
			checked("Times", "-1", integerAtLeast(-1)),
			branch("Children", domain.BranchChildren),
		},
	})}
}

// If runs thenBlock or elseBlock depending on a comparison.
type If struct{ base }

func NewIf(reg *action.Registry) If {
	return If{newBase(reg, layout{
		tag: domain.TagIf, name: "If", code: "8",
		entries: []entry{
			field("Left", ""),
			checked("Operator", "==", comparison),
			field("Right", ""),
			branch("True", domain.BranchThen),
			branch("False", domain.BranchElse),
		},
	})}
}

// While repeats its children while a comparison holds.
type While struct{ base }

func NewWhile(reg *action.Registry) While {
	return While{newBase(reg, layout{
		tag: domain.TagWhile, name: "While", code: "9",
		entries: []entry{
			field("Left", ""),
			checked("Operator", "==", comparison),
			field("Right", ""),
			branch("Children", domain.BranchChildren),
		},
	})}
}

// Break leaves the innermost loop.
type Break struct{ base }

func NewBreak(reg *action.Registry) Break {
	return Break{newBase(reg, layout{tag: domain.TagBreak, name: "Break", code: "10"})}
}

// Continue starts the next iteration of the innermost loop.
type Continue struct{ base }

func NewContinue(reg *action.Registry) Continue {
	return Continue{newBase(reg, layout{tag: domain.TagContinue, name: "Continue", code: "11"})}
}

// Return ends the mission.
type Return struct{ base }

func NewReturn(reg *action.Registry) Return {
	return Return{newBase(reg, layout{tag: domain.TagReturn, name: "Return", code: "12"})}
}
