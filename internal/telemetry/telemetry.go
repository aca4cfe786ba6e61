/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in usage events for the mission editor (mission
// loaded, saved, save aborted) and optional crash reports. Only counters and
// stage names leave the process; mission content, names and ids never do.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"missioneditor/internal/config"
	applog "missioneditor/internal/log"
	"missioneditor/internal/version"
)

// Environment overrides read by FromEnv.
const (
	EnvOptIn     = config.EnvTelemetryOptIn
	EnvEventsURL = "MSE_TELEMETRY_URL"
	EnvCrashURL  = "MSE_CRASH_UPLOAD_URL"
	EnvTimeoutMs = "MSE_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "MSE_TELEMETRY_DEBUG"
)

const (
	defaultTimeout = 1500 * time.Millisecond
	queueSize      = 64
	flushWait      = 2 * time.Second
)

// Event names emitted by the editor.
const (
	EventMissionLoaded = "mission_loaded"
	EventMissionSaved  = "mission_saved"
	EventSaveAborted   = "save_aborted"
)

// allowedProps lists, per event, the property keys that may be sent.
// Anything else is stripped before queueing.
var allowedProps = map[string][]string{
	EventMissionLoaded: {"actions"},
	EventMissionSaved:  {"bytes"},
	EventSaveAborted:   {"stage"},
}

// Config controls the sender. Nothing is sent unless OptIn is set and the
// matching URL is configured.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

// FromEnv reads the MSE_TELEMETRY_* variables.
func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvTimeoutMs))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// FromAppConfig overlays the user's telemetry section on the environment
// settings. Environment values win when present.
func FromAppConfig(tc config.TelemetryConfig) Config {
	cfg := FromEnv()
	if strings.TrimSpace(os.Getenv(EnvOptIn)) == "" {
		cfg.OptIn = tc.OptIn
	}
	if cfg.EventsURL == "" {
		cfg.EventsURL = strings.TrimSpace(tc.EventsURL)
	}
	if cfg.CrashURL == "" {
		cfg.CrashURL = strings.TrimSpace(tc.CrashURL)
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

type payload struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events and posts them from one goroutine. Event never blocks:
// a full queue drops the event.
type Client struct {
	cfg Config
	log *slog.Logger
	cli *http.Client

	q       chan payload
	pending atomic.Int64
	once    sync.Once
	closed  chan struct{}
}

// New starts a client. Call Close when done.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan payload, queueSize),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues name with its allowed props. Unknown event names are dropped.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() {
		return
	}
	keys, known := allowedProps[name]
	if !known {
		c.log.Debug("unknown telemetry event dropped", slog.String("event", name))
		return
	}
	p := payload{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if p.Props == nil {
				p.Props = make(map[string]any, len(keys))
			}
			p.Props[k] = v
		}
	}
	c.pending.Add(1)
	select {
	case c.q <- p:
	default:
		c.pending.Add(-1)
	}
}

// Flush waits until queued events and crash uploads are sent, ctx is done or
// a short grace period passes.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.NewTimer(flushWait)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

// Close stops the sender. Queued events are discarded.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			for {
				select {
				case <-c.q:
					c.pending.Add(-1)
				default:
					return
				}
			}
		case p := <-c.q:
			c.post(c.cfg.EventsURL, "application/json", mustJSON(p), "event "+p.Name)
			c.pending.Add(-1)
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.String("what", what), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry sent", slog.String("what", what), slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a crash report when opted in and a crash URL is set.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	c.pending.Add(1)
	go func() {
		defer c.pending.Add(-1)
		c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b, "crash report")
	}()
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// NewDefault replaces the package-level client used by Event and UploadCrash.
func NewDefault(cfg Config) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient != nil {
		defaultClient.Close()
	}
	defaultClient = New(cfg)
}

// Default returns the package-level client, built from the environment on
// first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// Enabled reports whether the default client sends events.
func Enabled() bool { return Default().Enabled() }

// Event sends through the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// UploadCrash sends through the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
