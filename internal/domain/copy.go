/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// CopyPanel returns a structural deep copy of p. Ids, levels and parents are
// preserved; reassigning identity is a separate pass.
func CopyPanel(p *Panel) *Panel {
	if p == nil {
		return nil
	}
	out := *p
	out.Actions = make([]*ActionRecord, len(p.Actions))
	for i, r := range p.Actions {
		out.Actions[i] = CopyRecord(r)
	}
	return &out
}

// CopyRecord deep-copies a record including its branch subtrees.
func CopyRecord(r *ActionRecord) *ActionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Fields = nil
	out.Attrs = nil
	out.Branches = nil
	if r.Fields != nil {
		out.Fields = make(map[string]VariableField, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.Attrs != nil {
		out.Attrs = make(map[string]string, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	if r.Branches != nil {
		out.Branches = make([]Branch, len(r.Branches))
		for i, b := range r.Branches {
			out.Branches[i] = Branch{Name: b.Name, Panels: CopyPanels(b.Panels)}
		}
	}
	return &out
}

// CopyPanels deep-copies a child list; nil stays nil.
func CopyPanels(ps []*Panel) []*Panel {
	if ps == nil {
		return nil
	}
	out := make([]*Panel, len(ps))
	for i, p := range ps {
		out[i] = CopyPanel(p)
	}
	return out
}

// ShallowRecord copies r with fresh Fields, Attrs and Branches headers while
// sharing the child panels. Copy-on-write paths use it to rebuild one level.
func ShallowRecord(r *ActionRecord) *ActionRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Fields != nil {
		out.Fields = make(map[string]VariableField, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.Attrs != nil {
		out.Attrs = make(map[string]string, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	if r.Branches != nil {
		out.Branches = make([]Branch, len(r.Branches))
		copy(out.Branches, r.Branches)
	}
	return &out
}

// ShallowPanel copies p and its record header, sharing child panels.
func ShallowPanel(p *Panel) *Panel {
	if p == nil {
		return nil
	}
	out := *p
	out.Actions = make([]*ActionRecord, len(p.Actions))
	for i, r := range p.Actions {
		out.Actions[i] = ShallowRecord(r)
	}
	return &out
}
