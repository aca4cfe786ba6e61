/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"missioneditor/internal/domain"
)

// Fixture is the seed file format of the development server.
type Fixture struct {
	Groups   []domain.Group             `json:"groups"`
	Actions  []domain.GroupAction       `json:"actions"`
	Points   map[string][]domain.Point  `json:"points"`
	Markers  map[string][]domain.Marker `json:"markers"`
	Missions []domain.Mission           `json:"missions"`
}

// LoadFixture reads a seed file.
func LoadFixture(path string) (Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(b, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// Seed upserts every entry of f in one transaction.
func (s *Store) Seed(ctx context.Context, f Fixture) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, g := range f.Groups {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO mission_groups (id, name) VALUES (?, ?)
				ON CONFLICT(id) DO UPDATE SET name = excluded.name`), g.ID, g.Name); err != nil {
				return fmt.Errorf("seed group %s: %w", g.ID, err)
			}
		}
		for _, a := range f.Actions {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO group_actions (id, group_id, name) VALUES (?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET group_id = excluded.group_id, name = excluded.name`), a.ID, a.GroupID, a.Name); err != nil {
				return fmt.Errorf("seed action %s: %w", a.ID, err)
			}
		}
		for mapID, pts := range f.Points {
			for _, p := range pts {
				if err := upsertMapEntry(ctx, tx, "map_points", mapID, p.ID, p.DisplayName); err != nil {
					return err
				}
			}
		}
		for mapID, ms := range f.Markers {
			for _, m := range ms {
				if err := upsertMapEntry(ctx, tx, "map_markers", mapID, m.ID, m.DisplayName); err != nil {
					return err
				}
			}
		}
		for _, m := range f.Missions {
			if err := upsertMission(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertMapEntry(ctx context.Context, tx *sqlx.Tx, table, mapID, id, name string) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO `+table+` (id, map_id, display_name) VALUES (?, ?, ?)
		ON CONFLICT(map_id, id) DO UPDATE SET display_name = excluded.display_name`), id, mapID, name)
	if err != nil {
		return fmt.Errorf("seed %s %s/%s: %w", table, mapID, id, err)
	}
	return nil
}
