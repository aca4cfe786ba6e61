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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"missioneditor/internal/domain"
	applog "missioneditor/internal/log"
	"missioneditor/internal/version"
)

// schemaVersion is the current store schema. Bump and add a step to
// runMigrations for incremental changes.
const schemaVersion = 2

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

// ErrNotFound is returned when a mission does not exist.
var ErrNotFound = errors.New("not found")

// Options select the database behind a Store.
type Options struct {
	Driver string // "sqlite" (default) or "pgx"
	DSN    string // file path for sqlite, connection URL for pgx
}

// Store persists missions and the lookup collections the editor consumes:
// groups with their sub-missions, and points and markers per map.
type Store struct {
	db     *sqlx.DB
	driver string
	log    *slog.Logger
}

// Open connects, pings and brings the schema up to date.
func Open(ctx context.Context, opts Options) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("driver", driver))
	dsn := strings.TrimSpace(opts.DSN)
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return nil, errors.New("sqlite path required")
		}
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			abs, err := filepath.Abs(dsn)
			if err != nil {
				return nil, fmt.Errorf("resolve sqlite path: %w", err)
			}
			dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(abs))
		}
	case DriverPgx:
		if dsn == "" {
			return nil, errors.New("pgx dsn required")
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// embedded usage; one writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, log: l}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		l.Error("migrate failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("store ready")
	return s, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the connection; the readiness probe uses it.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Driver returns the database driver name.
func (s *Store) Driver() string { return s.driver }

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, `SELECT schema FROM version WHERE id=1`); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS version (
		id          INTEGER PRIMARY KEY CHECK(id=1),
		schema      INTEGER NOT NULL,
		app         TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mission_groups (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS group_actions (
		id       TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		name     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS map_points (
		id           TEXT NOT NULL,
		map_id       TEXT NOT NULL,
		display_name TEXT NOT NULL,
		PRIMARY KEY (map_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS map_markers (
		id           TEXT NOT NULL,
		map_id       TEXT NOT NULL,
		display_name TEXT NOT NULL,
		PRIMARY KEY (map_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS missions (
		id           TEXT PRIMARY KEY,
		mission_name TEXT NOT NULL,
		group_id     TEXT NOT NULL DEFAULT '',
		site_id      TEXT NOT NULL DEFAULT '',
		data_mission TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	if s.driver == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
			s.log.Warn("enable WAL failed", slog.Any("err", err))
		}
	}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute schema statement %d: %w", i+1, err)
			}
		}
		return ensureVersion(ctx, tx)
	})
	if err != nil {
		return err
	}
	return s.runMigrations(ctx)
}

func ensureVersion(ctx context.Context, tx *sqlx.Tx) error {
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := tx.GetContext(ctx, &cur, `SELECT schema FROM version WHERE id=1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// a fresh database starts at schema 1 and migrates forward
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`), 1, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE version SET app=?, updated_at=? WHERE id=1`), appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func (s *Store) runMigrations(ctx context.Context) error {
	cur, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_group_actions_group ON group_actions(group_id)`,
				`CREATE INDEX IF NOT EXISTS idx_missions_group ON missions(group_id)`,
			}
		}
		err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE version SET schema=?, updated_at=? WHERE id=1`), next, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", next, err)
		}
		s.log.Info("schema migrated", slog.Int("schema", next))
		cur = next
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type missionRow struct {
	ID          string `db:"id"`
	MissionName string `db:"mission_name"`
	GroupID     string `db:"group_id"`
	SiteID      string `db:"site_id"`
	DataMission string `db:"data_mission"`
}

func (r missionRow) mission() domain.Mission {
	return domain.Mission{ID: r.ID, MissionName: r.MissionName, GroupID: r.GroupID, SiteID: r.SiteID, DataMission: r.DataMission}
}

// Missions lists missions ordered by name. DataMission is included.
func (s *Store) Missions(ctx context.Context) ([]domain.Mission, error) {
	var rows []missionRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, mission_name, group_id, site_id, data_mission FROM missions ORDER BY mission_name, id`); err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	out := make([]domain.Mission, len(rows))
	for i, r := range rows {
		out[i] = r.mission()
	}
	return out, nil
}

// Mission returns one mission or ErrNotFound.
func (s *Store) Mission(ctx context.Context, id string) (domain.Mission, error) {
	var row missionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, mission_name, group_id, site_id, data_mission FROM missions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Mission{}, fmt.Errorf("mission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Mission{}, fmt.Errorf("get mission %s: %w", id, err)
	}
	return row.mission(), nil
}

// SaveMission inserts or replaces a mission.
func (s *Store) SaveMission(ctx context.Context, m domain.Mission) error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("mission id required")
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return upsertMission(ctx, tx, m)
	})
}

func upsertMission(ctx context.Context, tx *sqlx.Tx, m domain.Mission) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO missions (id, mission_name, group_id, site_id, data_mission, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET mission_name = excluded.mission_name, group_id = excluded.group_id,
			site_id = excluded.site_id, data_mission = excluded.data_mission, updated_at = excluded.updated_at`),
		m.ID, m.MissionName, m.GroupID, m.SiteID, m.DataMission, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save mission %s: %w", m.ID, err)
	}
	return nil
}

// Groups lists mission groups ordered by name.
func (s *Store) Groups(ctx context.Context) ([]domain.Group, error) {
	var rows []struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name FROM mission_groups ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	out := make([]domain.Group, len(rows))
	for i, r := range rows {
		out[i] = domain.Group{ID: r.ID, Name: r.Name}
	}
	return out, nil
}

// GroupActions lists the sub-missions offered under a group.
func (s *Store) GroupActions(ctx context.Context, groupID string) ([]domain.GroupAction, error) {
	var rows []struct {
		ID      string `db:"id"`
		GroupID string `db:"group_id"`
		Name    string `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT id, group_id, name FROM group_actions WHERE group_id = ? ORDER BY name, id`), groupID); err != nil {
		return nil, fmt.Errorf("list actions of group %s: %w", groupID, err)
	}
	out := make([]domain.GroupAction, len(rows))
	for i, r := range rows {
		out[i] = domain.GroupAction{ID: r.ID, GroupID: r.GroupID, Name: r.Name}
	}
	return out, nil
}

type mapEntryRow struct {
	ID          string `db:"id"`
	MapID       string `db:"map_id"`
	DisplayName string `db:"display_name"`
}

func (s *Store) selectByMaps(ctx context.Context, table string, mapIDs []string) ([]mapEntryRow, error) {
	if len(mapIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT id, map_id, display_name FROM `+table+` WHERE map_id IN (?) ORDER BY map_id, display_name, id`, mapIDs)
	if err != nil {
		return nil, err
	}
	var rows []mapEntryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

// PointsByMap returns the points of every requested map. Maps without points
// are present with an empty list.
func (s *Store) PointsByMap(ctx context.Context, mapIDs []string) (map[string][]domain.Point, error) {
	rows, err := s.selectByMaps(ctx, "map_points", mapIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.Point, len(mapIDs))
	for _, id := range mapIDs {
		out[id] = []domain.Point{}
	}
	for _, r := range rows {
		out[r.MapID] = append(out[r.MapID], domain.Point{ID: r.ID, DisplayName: r.DisplayName})
	}
	return out, nil
}

// MarkersByMap returns the markers of every requested map.
func (s *Store) MarkersByMap(ctx context.Context, mapIDs []string) (map[string][]domain.Marker, error) {
	rows, err := s.selectByMaps(ctx, "map_markers", mapIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.Marker, len(mapIDs))
	for _, id := range mapIDs {
		out[id] = []domain.Marker{}
	}
	for _, r := range rows {
		out[r.MapID] = append(out[r.MapID], domain.Marker{ID: r.ID, DisplayName: r.DisplayName})
	}
	return out, nil
}
