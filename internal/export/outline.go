/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a mission's action tree for people: a plain text
// outline and a printable PDF.
package export

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"missioneditor/internal/action"
	"missioneditor/internal/domain"
)

// Labeler supplies menu labels. *action.Registry satisfies it.
type Labeler interface {
	Presentation(tag domain.TypeTag) (action.Presentation, bool)
}

// Line is one row of the outline: either an action or a branch caption.
type Line struct {
	Depth    int
	Caption  string // branch name for caption rows
	Label    string
	Category string
	Summary  string
	PanelID  string
}

// IsCaption reports whether the row introduces a branch.
func (l Line) IsCaption() bool { return l.Caption != "" }

// Flatten walks roots depth-first. Branches of containers are introduced by
// a caption row one level deeper than their owner.
func Flatten(roots []*domain.Panel, lb Labeler) []Line {
	var out []Line
	var walk func(ps []*domain.Panel, depth int)
	walk = func(ps []*domain.Panel, depth int) {
		for _, p := range ps {
			if p == nil {
				continue
			}
			out = append(out, panelLine(p, depth, lb))
			rec := p.Record()
			if rec == nil {
				continue
			}
			for _, name := range rec.BranchNames() {
				kids, _ := rec.Branch(name)
				out = append(out, Line{Depth: depth + 1, Caption: string(name), PanelID: p.PanelID})
				walk(kids, depth+2)
			}
		}
	}
	walk(roots, 0)
	return out
}

func panelLine(p *domain.Panel, depth int, lb Labeler) Line {
	l := Line{Depth: depth, Label: p.ActionName, PanelID: p.PanelID}
	if lb != nil {
		if pr, ok := lb.Presentation(p.Type); ok {
			l.Label, l.Category = pr.Label, pr.Category
		}
	}
	if p.Type == domain.TagUserCreate && p.ActionName != "" {
		l.Label = p.ActionName
	}
	if rec := p.Record(); rec != nil {
		l.Summary = summary(rec)
	}
	return l
}

// summary lists the record's fields as key=value, sorted by key.
func summary(rec *domain.ActionRecord) string {
	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := rec.Fields[k].Display()
		if v == "" {
			continue
		}
		if rec.Fields[k].IsBound() {
			v = "$" + v
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}

// WriteOutline writes the tree as indented text, two spaces per level.
func WriteOutline(w io.Writer, roots []*domain.Panel, lb Labeler) error {
	bw := bufio.NewWriter(w)
	for _, l := range Flatten(roots, lb) {
		indent := strings.Repeat("  ", l.Depth)
		var err error
		switch {
		case l.IsCaption():
			_, err = fmt.Fprintf(bw, "%s%s:\n", indent, l.Caption)
		case l.Summary != "":
			_, err = fmt.Fprintf(bw, "%s- %s  %s\n", indent, l.Label, l.Summary)
		default:
			_, err = fmt.Fprintf(bw, "%s- %s\n", indent, l.Label)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}
