/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package variants

import (
	"errors"

	"missioneditor/internal/action"
	"missioneditor/internal/domain"
)

type registration struct {
	v   action.Variant
	pre action.Presentation
}

func builtins(reg *action.Registry) []registration {
	return []registration{
		{NewMove(reg), action.Presentation{Label: "Move", Category: "Motion"}},
		{NewDocking(reg), action.Presentation{Label: "Docking", Category: "Motion"}},
		{NewRelativeMove(reg), action.Presentation{Label: "Relative Move", Category: "Motion"}},
		{NewMoveToCoordinate(reg), action.Presentation{Label: "Move To Coordinate", Category: "Motion"}},
		{NewSwitchMap(reg), action.Presentation{Label: "Switch Map", Category: "Motion"}},
		{NewWait(reg), action.Presentation{Label: "Wait", Category: "Flow"}},
		{NewLoop(reg), action.Presentation{Label: "Loop", Category: "Flow"}},
		{NewIf(reg), action.Presentation{Label: "If", Category: "Flow"}},
		{NewWhile(reg), action.Presentation{Label: "While", Category: "Flow"}},
		{NewBreak(reg), action.Presentation{Label: "Break", Category: "Flow"}},
		{NewContinue(reg), action.Presentation{Label: "Continue", Category: "Flow"}},
		{NewReturn(reg), action.Presentation{Label: "Return", Category: "Flow"}},
		{NewTryCatch(reg), action.Presentation{Label: "Try Catch", Category: "Errors"}},
		{NewCreateLog(reg), action.Presentation{Label: "Create Log", Category: "Errors"}},
		{NewThrowError(reg), action.Presentation{Label: "Throw Error", Category: "Errors"}},
		{NewPromptUser(reg), action.Presentation{Label: "Prompt User", Category: "Interaction"}},
		{NewUserCreate(reg), action.Presentation{Label: "Sub-mission", Category: "Missions"}},
		{NewGeneric(reg, domain.TagDefault), action.Presentation{Label: "Custom", Category: "Other"}},
		{NewGeneric(reg, domain.TagUnrecognized), action.Presentation{Label: "Unrecognized", Category: "Other"}},
	}
}

// Register adds every built-in variant and its presentation to reg. The caller
// calls reg.Build afterwards.
func Register(reg *action.Registry) error {
	var errs []error
	for _, b := range builtins(reg) {
		tag := b.v.Tag()
		errs = append(errs, reg.RegisterVariant(tag, b.v), reg.RegisterPresentation(tag, b.pre))
	}
	return errors.Join(errs...)
}

// NewRegistry registers the built-ins and builds the registry.
func NewRegistry(opts action.Options) (*action.Registry, error) {
	reg := action.New(opts)
	if err := Register(reg); err != nil {
		return nil, err
	}
	if err := reg.Build(); err != nil {
		return nil, err
	}
	return reg, nil
}
