/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
)

// ContainerKey addresses one child list: the root list when Owner is empty,
// otherwise branch Branch of panel Owner. It is a drop-target identifier and is
// never written onto a panel.
type ContainerKey struct {
	Owner  string
	Branch BranchName
}

// RootContainer addresses the mission's top-level list.
var RootContainer = ContainerKey{}

// ContainerOf returns the key of branch b on panel owner.
func ContainerOf(owner string, b BranchName) ContainerKey {
	return ContainerKey{Owner: owner, Branch: b}
}

// IsRoot reports whether k addresses the root list.
func (k ContainerKey) IsRoot() bool { return k.Owner == "" }

func (k ContainerKey) String() string {
	if k.IsRoot() {
		return "root"
	}
	return k.Owner + "-" + string(k.Branch)
}

// ParseContainerKey reverses String. Panel ids may contain dashes, so the
// branch is matched as a known suffix.
func ParseContainerKey(s string) (ContainerKey, error) {
	if s == "" || s == "root" {
		return RootContainer, nil
	}
	for _, b := range KnownBranches {
		suffix := "-" + string(b)
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return ContainerKey{Owner: strings.TrimSuffix(s, suffix), Branch: b}, nil
		}
	}
	return ContainerKey{}, fmt.Errorf("container key %q: unknown branch", s)
}
