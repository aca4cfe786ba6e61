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

// TryCatch runs tryBlock and falls into catchBlock on error.
type TryCatch struct{ base }

func NewTryCatch(reg *action.Registry) TryCatch {
	return TryCatch{newBase(reg, layout{
		tag: domain.TagTryCatch, name: "Try Catch", code: "13",
		entries: []entry{
			branch("Try", domain.BranchTry),
			branch("Catch", domain.BranchCatch),
		},
	})}
}

// CreateLog writes a mission log line.
type CreateLog struct{ base }

func NewCreateLog(reg *action.Registry) CreateLog {
	return CreateLog{newBase(reg, layout{
		tag: domain.TagCreateLog, name: "Create Log", code: "14",
		entries: []entry{
			checked("Level", "info", oneOf("info", "warn", "error")),
			field("Message", ""),
		},
	})}
}

// ThrowError aborts with an error code.
type ThrowError struct{ base }

func NewThrowError(reg *action.Registry) ThrowError {
	return ThrowError{newBase(reg, layout{
		tag: domain.TagThrowError, name: "Throw Error", code: "15",
		entries: []entry{
			field("Code", ""),
			field("Message", ""),
		},
	})}
}

// PromptUser asks the operator a yes/no question with a timeout.
type PromptUser struct{ base }

func NewPromptUser(reg *action.Registry) PromptUser {
	return PromptUser{newBase(reg, layout{
		tag: domain.TagPromptUser, name: "Prompt User", code: "16",
		entries: []entry{
			field("Question", ""),
			checked("Timeout", "30", atLeast(0)),
			branch("Yes", domain.BranchYes),
			branch("No", domain.BranchNo),
			branch("Time_out", domain.BranchTimeout),
		},
	})}
}
