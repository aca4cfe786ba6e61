/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"missioneditor/internal/domain"
)

const (
	MissionFileExt = ".mission.json"
	BackupsDirName = "backups"
)

// SaveMissionFile writes m to path with transactional semantics: the previous
// file (if any) is copied to a timestamped backup, the new content goes to a
// temp file in the same directory and is renamed over the target.
func SaveMissionFile(path string, m domain.Mission) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("mission file path is required")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mission: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure mission dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if berr := backupFile(path); berr != nil {
			return fmt.Errorf("backup current mission: %w", berr)
		}
	}

	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp mission: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace mission: %w", rerr)
	}
	return nil
}

// OpenMissionFile reads a mission file. If it is missing or unreadable the
// newest backup is used instead.
func OpenMissionFile(path string) (domain.Mission, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		m, berr := openLatestBackup(path)
		if berr != nil {
			return domain.Mission{}, fmt.Errorf("open mission: %w; backup attempt: %v", err, berr)
		}
		return m, nil
	}
	var m domain.Mission
	if uerr := json.Unmarshal(b, &m); uerr != nil {
		bm, berr := openLatestBackup(path)
		if berr != nil {
			return domain.Mission{}, fmt.Errorf("parse mission: %w; backup attempt: %v", uerr, berr)
		}
		return bm, nil
	}
	return m, nil
}

// AutosaveMission writes an extra copy of m into dir/backups, named after the
// mission and the current time. Crash recovery uses it.
func AutosaveMission(dir string, m domain.Mission) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	name := safeName(m.MissionName)
	if name == "" {
		name = "mission"
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(bdir, fmt.Sprintf("%s.autosave-%s%s", name, stamp, MissionFileExt))
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal mission: %w", err)
	}
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}

func backupDir(path string) string { return filepath.Join(filepath.Dir(path), BackupsDirName) }

func backupFile(path string) error {
	stamp := time.Now().Format("20060102-150405.000")
	bpath := filepath.Join(backupDir(path), fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	return copyFile(path, bpath)
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openLatestBackup opens the newest timestamped backup of path.
func openLatestBackup(path string) (domain.Mission, error) {
	bdir := backupDir(path)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return domain.Mission{}, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return domain.Mission{}, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return domain.Mission{}, fmt.Errorf("read latest backup: %w", err)
	}
	var m domain.Mission
	if err := json.Unmarshal(b, &m); err != nil {
		return domain.Mission{}, fmt.Errorf("parse latest backup: %w", err)
	}
	return m, nil
}
