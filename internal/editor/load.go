/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"missioneditor/internal/action"
	"missioneditor/internal/domain"
	"missioneditor/internal/telemetry"
	"missioneditor/internal/tree"
)

// groupFetchLimit bounds concurrent per-group requests.
const groupFetchLimit = 4

// Load fetches mission id and everything needed to display it, then installs
// the parsed tree. Points, markers and group sub-missions are fetched
// concurrently.
func (s *Session) Load(ctx context.Context, id string) error {
	if s.backend == nil {
		return errors.New("load: no backend configured")
	}
	start := time.Now()
	l := s.log.With(slog.String("mission", id))

	m, err := s.backend.GetMission(ctx, id)
	if err != nil {
		return fmt.Errorf("load mission %s: %w", id, err)
	}
	recs, err := domain.DecodeRecords(m.DataMission)
	if err != nil {
		return fmt.Errorf("load mission %s: %w", id, err)
	}
	lk, err := s.fetchLookups(ctx, action.ReferencedMaps(recs))
	if err != nil {
		return fmt.Errorf("load mission %s: %w", id, err)
	}
	if err := s.LoadMission(m, lk); err != nil {
		return err
	}
	l.Info("mission loaded", slog.Int("maps", len(lk.PointsByMap)), slog.Int("groups", len(lk.ActionsByGroup)),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (s *Session) fetchLookups(ctx context.Context, mapIDs []string) (domain.Lookups, error) {
	lk := domain.Lookups{ActionsByGroup: map[string][]domain.GroupAction{}}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pts, err := s.backend.PointsByMap(gctx, mapIDs)
		if err != nil {
			return fmt.Errorf("points: %w", err)
		}
		lk.PointsByMap = pts
		return nil
	})
	g.Go(func() error {
		mks, err := s.backend.MarkersByMap(gctx, mapIDs)
		if err != nil {
			return fmt.Errorf("markers: %w", err)
		}
		lk.MarkersByMap = mks
		return nil
	})
	g.Go(func() error {
		groups, err := s.backend.ListGroups(gctx)
		if err != nil {
			return fmt.Errorf("groups: %w", err)
		}
		var mu sync.Mutex
		sub, sctx := errgroup.WithContext(gctx)
		sub.SetLimit(groupFetchLimit)
		for _, grp := range groups {
			sub.Go(func() error {
				acts, err := s.backend.ListGroupActions(sctx, grp.ID)
				if err != nil {
					return fmt.Errorf("group %s actions: %w", grp.ID, err)
				}
				mu.Lock()
				lk.ActionsByGroup[grp.ID] = acts
				mu.Unlock()
				return nil
			})
		}
		return sub.Wait()
	})

	if err := g.Wait(); err != nil {
		return domain.Lookups{}, err
	}
	return lk, nil
}

// LoadMission installs m without touching the network. Records that cannot be
// parsed are dropped; the rest of the mission still loads.
func (s *Session) LoadMission(m domain.Mission, lk domain.Lookups) error {
	roots, err := s.reg.ParseMission(m.DataMission, lk)
	if err != nil {
		return fmt.Errorf("parse mission %s: %w", m.ID, err)
	}
	if roots == nil {
		roots = []*domain.Panel{}
	}
	s.mu.Lock()
	s.mission = m
	s.loaded = true
	s.lookups = lk
	s.roots = roots
	s.dirty = false
	s.drag.Cancel()
	s.captureBaselineLocked()
	n := tree.Count(roots)
	s.mu.Unlock()

	s.events.Event(telemetry.EventMissionLoaded, map[string]any{"actions": n})
	return nil
}

// captureBaselineLocked snapshots every field as the value to revert to.
func (s *Session) captureBaselineLocked() {
	s.baseline.Reset()
	tree.Walk(s.roots, func(p *domain.Panel, _ tree.Location) bool {
		s.baseline.CapturePanel(p)
		return true
	})
}
