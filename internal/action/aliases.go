/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package action

import (
	"strings"

	"missioneditor/internal/domain"
)

// aliases maps normalized names (lowercase, no spaces, dashes or underscores)
// to tags. Legacy spellings found in stored missions are listed alongside.
var aliases = map[string]domain.TypeTag{
	"move":              domain.TagMove,
	"movetopoint":       domain.TagMove,
	"docking":           domain.TagDocking,
	"dock":              domain.TagDocking,
	"relativemove":      domain.TagRelativeMove,
	"relmove":           domain.TagRelativeMove,
	"movetocoordinate":  domain.TagMoveToCoordinate,
	"movetocoordinates": domain.TagMoveToCoordinate,
	"movetocoord":       domain.TagMoveToCoordinate,
	"switchmap":         domain.TagSwitchMap,
	"changemap":         domain.TagSwitchMap,
	"wait":              domain.TagWait,
	"delay":             domain.TagWait,
	"loop":              domain.TagLoop,
	"repeat":            domain.TagLoop,
	"if":                domain.TagIf,
	"ifelse":            domain.TagIf,
	"while":             domain.TagWhile,
	"whileloop":         domain.TagWhile,
	"break":             domain.TagBreak,
	"continue":          domain.TagContinue,
	"return":            domain.TagReturn,
	"trycatch":          domain.TagTryCatch,
	"try":               domain.TagTryCatch,
	"createlog":         domain.TagCreateLog,
	"log":               domain.TagCreateLog,
	"throwerror":        domain.TagThrowError,
	"throw":             domain.TagThrowError,
	"promptuser":        domain.TagPromptUser,
	"prompt":            domain.TagPromptUser,
	"usercreate":        domain.TagUserCreate,
	"submission":        domain.TagUserCreate,
	"default":           domain.TagDefault,
}

func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '\t', '-', '_':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func lookupAlias(raw string) (domain.TypeTag, bool) {
	tag, ok := aliases[normalizeName(raw)]
	return tag, ok
}
