/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"missioneditor/internal/domain"
	"missioneditor/internal/storage"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Options{Driver: storage.DriverSQLite, DSN: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	err = st.Seed(ctx, storage.Fixture{
		Groups:   []domain.Group{{ID: "g1", Name: "Warehouse"}},
		Actions:  []domain.GroupAction{{ID: "sub1", GroupID: "g1", Name: "Pick shelf"}},
		Points:   map[string][]domain.Point{"m1": {{ID: "p1", DisplayName: "Dock A"}}},
		Markers:  map[string][]domain.Marker{"m1": {{ID: "k1", DisplayName: "Charger 1"}}},
		Missions: []domain.Mission{{ID: "ms1", MissionName: "Patrol", GroupID: "g1", SiteID: "s1", DataMission: "[]"}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := httptest.NewServer(NewServer(st, ServerOptions{Secret: secret, Logger: quietLogger()}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientServerRoundTrip(t *testing.T) {
	srv := newTestServer(t, "")
	c := NewClient(srv.URL+"/", Options{Timeout: 5 * time.Second})
	ctx := context.Background()

	list, err := c.ListMissions(ctx)
	if err != nil || len(list) != 1 || list[0].ID != "ms1" {
		t.Fatalf("ListMissions = %v, %v", list, err)
	}

	m, err := c.GetMission(ctx, "ms1")
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	m.DataMission = `[{"Action_name":"Wait","Properties":"{}","Type":"6","User_create":"false"}]`
	if err := c.PutMission(ctx, m); err != nil {
		t.Fatalf("PutMission: %v", err)
	}
	got, err := c.GetMission(ctx, "ms1")
	if err != nil || got.DataMission != m.DataMission {
		t.Fatalf("after put: %+v, %v", got, err)
	}

	groups, err := c.ListGroups(ctx)
	if err != nil || len(groups) != 1 || groups[0].Name != "Warehouse" {
		t.Fatalf("ListGroups = %v, %v", groups, err)
	}
	acts, err := c.ListGroupActions(ctx, "g1")
	if err != nil || len(acts) != 1 || acts[0].ID != "sub1" {
		t.Fatalf("ListGroupActions = %v, %v", acts, err)
	}

	pts, err := c.PointsByMap(ctx, []string{"m1", "m404"})
	if err != nil {
		t.Fatalf("PointsByMap: %v", err)
	}
	if len(pts["m1"]) != 1 || pts["m1"][0].DisplayName != "Dock A" {
		t.Fatalf("points = %v", pts)
	}
	if v, ok := pts["m404"]; !ok || len(v) != 0 {
		t.Fatalf("unknown map should be present and empty: %v", pts)
	}
	mks, err := c.MarkersByMap(ctx, []string{"m1"})
	if err != nil || len(mks["m1"]) != 1 {
		t.Fatalf("MarkersByMap = %v, %v", mks, err)
	}
}

func TestServerRejectsInvalidMission(t *testing.T) {
	srv := newTestServer(t, "")
	c := NewClient(srv.URL, Options{})
	err := c.PutMission(context.Background(), domain.Mission{ID: "ms2", MissionName: "Broken", DataMission: `[{"Action_name":"Move"}]`})
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %v", err)
	}
}

func TestGetMissionNotFound(t *testing.T) {
	srv := newTestServer(t, "")
	_, err := NewClient(srv.URL, Options{}).GetMission(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestAuthRequired(t *testing.T) {
	const secret = "s3cret"
	srv := newTestServer(t, secret)
	ctx := context.Background()

	_, err := NewClient(srv.URL, Options{}).ListMissions(ctx)
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusUnauthorized {
		t.Fatalf("want 401, got %v", err)
	}

	tok, err := SignToken(secret, "tester", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewClient(srv.URL, Options{Token: tok}).ListMissions(ctx); err != nil {
		t.Fatalf("with token: %v", err)
	}

	expired, _ := SignToken(secret, "tester", time.Now().Add(-time.Minute))
	if _, err := VerifyToken(secret, expired); err == nil {
		t.Fatal("expired token accepted")
	}
	if _, err := VerifyToken("other", tok); err == nil {
		t.Fatal("token accepted under wrong secret")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, "x")
	for _, path := range []string{"/healthz", "/readyz", "/version"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"ID":"g1","name":"Warehouse"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{Retries: 2, Backoff: time.Millisecond})
	groups, err := c.ListGroups(context.Background())
	if err != nil || len(groups) != 1 {
		t.Fatalf("ListGroups = %v, %v", groups, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, Options{Retries: 3, Backoff: time.Millisecond}).ListGroups(context.Background())
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusBadRequest {
		t.Fatalf("want 400, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, Options{Retries: 2, Backoff: time.Millisecond}).ListMissions(context.Background())
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}
