/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeAutosaver struct {
	dir string
	err error
}

func (f *fakeAutosaver) Autosave(dir string) (string, error) {
	f.dir = dir
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(dir, "m.autosave.mission.json"), nil
}

// silenceStderr swaps os.Stderr for a pipe for the duration of the test.
func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	done := make(chan struct{})
	go func() { _, _ = io.Copy(io.Discard, r); close(done) }()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		os.Stderr = old
	})
}

func stubHooks(t *testing.T) (exitCode *int, uploads *[][]byte) {
	t.Helper()
	code := 0
	var ups [][]byte
	oldExit, oldUpload := exitFn, uploadFn
	exitFn = func(c int) { code = c }
	uploadFn = func(b []byte) { ups = append(ups, b) }
	t.Cleanup(func() { exitFn, uploadFn = oldExit, oldUpload })
	return &code, &ups
}

func TestWriteReportCreatesFile(t *testing.T) {
	_, uploads := stubHooks(t)
	dir := filepath.Join(t.TempDir(), "crashes")
	path, err := writeReport(dir, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("report written to %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Mission Editor Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("unexpected report: %s", s)
	}
	if len(*uploads) != 1 || !bytes.Equal((*uploads)[0], b) {
		t.Fatal("report not handed to telemetry")
	}
}

func TestRecoverWritesReportAutosavesAndExits(t *testing.T) {
	silenceStderr(t)
	code, _ := stubHooks(t)
	dir := t.TempDir()
	as := &fakeAutosaver{}

	func() {
		defer Recover(as, dir)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	if as.dir != dir {
		t.Fatalf("autosave dir = %q", as.dir)
	}
	files, _ := os.ReadDir(dir)
	var found bool
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			found = true
		}
	}
	if !found {
		t.Fatal("no crash report written")
	}
}

func TestRecoverSurvivesAutosaveFailure(t *testing.T) {
	silenceStderr(t)
	code, _ := stubHooks(t)
	func() {
		defer Recover(&fakeAutosaver{err: errors.New("disk full")}, t.TempDir())
		panic("boom")
	}()
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	code, uploads := stubHooks(t)
	func() {
		defer Recover(nil, t.TempDir())
	}()
	if *code != 0 || len(*uploads) != 0 {
		t.Fatalf("exit %d uploads %d", *code, len(*uploads))
	}
}
