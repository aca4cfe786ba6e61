/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend is the REST side of the mission editor: a client with a
// bounded retry policy used by the editing session, and a development server
// that serves the same API from a storage.Store.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"missioneditor/internal/domain"
	applog "missioneditor/internal/log"
)

// HTTPError is returned for non-2xx responses once retries are exhausted.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

// Options configure a Client.
type Options struct {
	Token   string        // bearer token
	Timeout time.Duration // per attempt
	Retries int           // extra attempts after the first
	Backoff time.Duration // linear step between attempts
	// HTTPClient replaces the default client (tests).
	HTTPClient *http.Client
}

// Client talks to the mission backend.
type Client struct {
	BaseURL string
	Token   string
	client  *http.Client
	retries int
	backoff time.Duration
	log     *slog.Logger
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   opts.Token,
		client:  hc,
		retries: retries,
		backoff: opts.Backoff,
		log:     applog.WithComponent("backend"),
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// doJSON sends body (if any) as JSON and decodes the response into dest (if
// any). Transport errors, 429 and 5xx are retried up to c.retries times.
func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var payload []byte
	if body != nil {
		if payload, err = domain.MarshalNoEscape(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.backoff
			c.log.Debug("retrying request", slog.String("method", method), slog.String("path", u.Path),
				slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("err", lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		var retry bool
		retry, lastErr = c.attempt(ctx, method, u, payload, dest)
		if lastErr == nil || !retry {
			return lastErr
		}
	}
	c.log.Warn("request failed after retries", slog.String("method", method), slog.String("path", u.Path), slog.Any("err", lastErr))
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method string, u *url.URL, payload []byte, dest any) (retry bool, err error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return retryable(resp.StatusCode), &HTTPError{Method: method, Path: u.Path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", method, u.Path, err)
	}
	return false, nil
}

// ListMissions returns every mission visible to the caller.
func (c *Client) ListMissions(ctx context.Context) ([]domain.Mission, error) {
	var list []domain.Mission
	if err := c.doJSON(ctx, http.MethodGet, "/api/missions", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetMission fetches one mission including its dataMission string.
func (c *Client) GetMission(ctx context.Context, id string) (domain.Mission, error) {
	var m domain.Mission
	if err := c.doJSON(ctx, http.MethodGet, "/api/missions/"+url.PathEscape(id), nil, &m); err != nil {
		return domain.Mission{}, err
	}
	return m, nil
}

// PutMission stores m under its id.
func (c *Client) PutMission(ctx context.Context, m domain.Mission) error {
	if m.ID == "" {
		return errors.New("put mission: id required")
	}
	return c.doJSON(ctx, http.MethodPut, "/api/missions/"+url.PathEscape(m.ID), m, nil)
}

// ListGroups returns the mission groups of the add-action menu.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	var list []domain.Group
	if err := c.doJSON(ctx, http.MethodGet, "/api/groups", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListGroupActions returns the sub-missions listed under a group.
func (c *Client) ListGroupActions(ctx context.Context, groupID string) ([]domain.GroupAction, error) {
	var list []domain.GroupAction
	if err := c.doJSON(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(groupID)+"/actions", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

type mapIDsRequest struct {
	MapIDs []string `json:"mapIds"`
}

// PointsByMap batch-fetches the points of the given maps.
func (c *Client) PointsByMap(ctx context.Context, mapIDs []string) (map[string][]domain.Point, error) {
	out := map[string][]domain.Point{}
	if len(mapIDs) == 0 {
		return out, nil
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/maps/points", mapIDsRequest{MapIDs: mapIDs}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkersByMap batch-fetches the markers of the given maps.
func (c *Client) MarkersByMap(ctx context.Context, mapIDs []string) (map[string][]domain.Marker, error) {
	out := map[string][]domain.Marker{}
	if len(mapIDs) == 0 {
		return out, nil
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/maps/markers", mapIDsRequest{MapIDs: mapIDs}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
