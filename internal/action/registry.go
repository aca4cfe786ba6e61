/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package action holds the registry that dispatches the four protocol
// operations (parse, transform, create, clone) to action variants by type tag,
// plus the helpers every variant shares.
//
// A Registry is constructed explicitly, filled during startup and then frozen
// by Build. Consumers wait on WaitReady before parsing stored missions.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"missioneditor/internal/domain"
	applog "missioneditor/internal/log"
)

var (
	// ErrRegistryFrozen is returned by registration calls after Build.
	ErrRegistryFrozen = errors.New("action registry is frozen")
	// ErrEmptyRegistry is returned by Build when nothing was registered.
	ErrEmptyRegistry = errors.New("action registry has no variants")
	// ErrIncompleteMission reports that a panel could not be serialized.
	ErrIncompleteMission = errors.New("mission cannot be serialized completely")
)

// ParseContext carries the caller-supplied position of a record being parsed.
type ParseContext struct {
	Level    int
	ParentID string
	Lookups  domain.Lookups
}

// Child returns the context for the branch children of the node with id.
func (pc ParseContext) Child(id string) ParseContext {
	return ParseContext{Level: pc.Level + 1, ParentID: id, Lookups: pc.Lookups}
}

// Variant implements the protocol for one action kind. Implementations hold no
// mutable state and perform no I/O. Nil results mean "drop this node".
type Variant interface {
	Tag() domain.TypeTag
	Branches() []domain.BranchName
	ParseFromDatabase(rec domain.StorageRecord, pc ParseContext) *domain.Panel
	TransformToDatabase(p *domain.Panel) *domain.StorageRecord
	CreatePanel(t domain.MenuTemplate) *domain.Panel
	ClonePanel(src *domain.Panel, parentID string, level int) *domain.Panel
}

// Coder is implemented by variants with a fixed storage Type code.
type Coder interface {
	Code() string
}

// Checker is implemented by variants with range checks on literal field values.
type Checker interface {
	Check(field string, v domain.VariableField) error
}

// Presentation describes how a variant is offered in the add-action menu.
type Presentation struct {
	Label    string
	Category string
}

// UnknownPolicy decides how unrecognized Action_name values are classified.
type UnknownPolicy string

const (
	// UnknownAsSubmission treats unknown names as sub-mission references.
	UnknownAsSubmission UnknownPolicy = "submission"
	// UnknownAsUnrecognized routes unknown names to the unrecognized tag.
	UnknownAsUnrecognized UnknownPolicy = "unrecognized"
)

// Options configure a Registry.
type Options struct {
	UnknownPolicy UnknownPolicy
	Logger        *slog.Logger
}

// Registry maps type tags to variants and storage names to type tags.
type Registry struct {
	mu            sync.RWMutex
	variants      map[domain.TypeTag]Variant
	presentations map[domain.TypeTag]Presentation
	codes         map[string]domain.TypeTag
	policy        UnknownPolicy
	frozen        bool
	ready         chan struct{}
	log           *slog.Logger
}

// New returns an empty, writable registry.
func New(opts Options) *Registry {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("action")
	}
	p := opts.UnknownPolicy
	if p != UnknownAsUnrecognized {
		p = UnknownAsSubmission
	}
	return &Registry{
		variants:      make(map[domain.TypeTag]Variant),
		presentations: make(map[domain.TypeTag]Presentation),
		codes:         make(map[string]domain.TypeTag),
		policy:        p,
		ready:         make(chan struct{}),
		log:           l,
	}
}

// Logger returns the registry's logger; variants log through it.
func (r *Registry) Logger() *slog.Logger { return r.log }

// Policy returns the unknown-name policy.
func (r *Registry) Policy() UnknownPolicy { return r.policy }

// RegisterVariant records v under tag. The last registration for a tag wins.
func (r *Registry) RegisterVariant(tag domain.TypeTag, v Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register %s: %w", tag, ErrRegistryFrozen)
	}
	if _, exists := r.variants[tag]; exists {
		r.log.Debug("variant overwritten", slog.String("type", string(tag)))
	}
	r.variants[tag] = v
	return nil
}

// RegisterPresentation records the menu presentation for tag.
func (r *Registry) RegisterPresentation(tag domain.TypeTag, p Presentation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register presentation %s: %w", tag, ErrRegistryFrozen)
	}
	r.presentations[tag] = p
	return nil
}

// Variant returns the variant registered for tag.
func (r *Registry) Variant(tag domain.TypeTag) (Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[tag]
	return v, ok
}

// Presentation returns the presentation registered for tag.
func (r *Registry) Presentation(tag domain.TypeTag) (Presentation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presentations[tag]
	return p, ok
}

// Tags lists registered tags in sorted order.
func (r *Registry) Tags() []domain.TypeTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TypeTag, 0, len(r.variants))
	for t := range r.variants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build freezes the registry and releases WaitReady callers. The variant that
// unknown names fall back to must be registered. Calling Build twice is a no-op.
func (r *Registry) Build() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return nil
	}
	if len(r.variants) == 0 {
		return ErrEmptyRegistry
	}
	fallback := r.fallbackTag()
	if _, ok := r.variants[fallback]; !ok {
		return fmt.Errorf("build registry: fallback variant %q not registered", fallback)
	}
	r.indexCodesLocked()
	r.frozen = true
	close(r.ready)
	r.log.Info("action registry ready", slog.Int("variants", len(r.variants)), slog.String("unknown_policy", string(r.policy)))
	return nil
}

// indexCodesLocked maps each variant's storage Type code to its tag. On a
// clash the lower tag keeps the code.
func (r *Registry) indexCodesLocked() {
	tags := make([]domain.TypeTag, 0, len(r.variants))
	for t := range r.variants {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	for _, t := range tags {
		c, ok := r.variants[t].(Coder)
		if !ok || c.Code() == "" {
			continue
		}
		if prev, dup := r.codes[c.Code()]; dup {
			r.log.Warn("type code claimed twice", slog.String("code", c.Code()), slog.String("kept", string(prev)), slog.String("type", string(t)))
			continue
		}
		r.codes[c.Code()] = t
	}
}

// ResolveTypeFromCode maps a storage Type numeral to a tag. Only valid after Build.
func (r *Registry) ResolveTypeFromCode(code string) (domain.TypeTag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.codes[strings.TrimSpace(code)]
	return t, ok
}

// Ready is closed once Build succeeded.
func (r *Registry) Ready() <-chan struct{} { return r.ready }

// WaitReady blocks until Build succeeded or ctx is done.
func (r *Registry) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for action registry: %w", ctx.Err())
	}
}

func (r *Registry) fallbackTag() domain.TypeTag {
	if r.policy == UnknownAsUnrecognized {
		return domain.TagUnrecognized
	}
	return domain.TagUserCreate
}

// ResolveTypeFromName maps a storage or display name to a tag. Names missing
// from the alias table fall back per the unknown-name policy; it never fails.
func (r *Registry) ResolveTypeFromName(raw string) domain.TypeTag {
	if tag, ok := lookupAlias(raw); ok {
		return tag
	}
	fallback := r.fallbackTag()
	if r.policy == UnknownAsUnrecognized {
		r.log.Warn("unrecognized action name", slog.String("name", raw))
	} else {
		r.log.Debug("unknown action name treated as sub-mission", slog.String("name", raw))
	}
	return fallback
}

// ResolveRecord picks the tag for a storage record. Sub-mission references are
// flagged by User_create and win over their (user-chosen) name. A name missing
// from the alias table is tried as its Type code before the unknown-name policy.
func (r *Registry) ResolveRecord(rec domain.StorageRecord) domain.TypeTag {
	if rec.IsUserCreate() {
		return domain.TagUserCreate
	}
	if tag, ok := lookupAlias(rec.ActionName); ok {
		return tag
	}
	if tag, ok := r.ResolveTypeFromCode(rec.Type); ok {
		r.log.Debug("action resolved by type code", slog.String("name", rec.ActionName), slog.String("code", rec.Type), slog.String("type", string(tag)))
		return tag
	}
	return r.ResolveTypeFromName(rec.ActionName)
}
