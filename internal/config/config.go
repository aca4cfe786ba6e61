/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied after the file.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	Retries        int    `yaml:"retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
	SiteID         string `yaml:"site_id"`
	// Token is not stored on disk; it lives in the OS keychain.
}

// Drop legality policies.
const (
	DropPolicyTiered = "tiered"
	DropPolicyAny    = "any"
)

// Unknown action name policies.
const (
	UnknownSubmission   = "submission"
	UnknownUnrecognized = "unrecognized"
)

type EditorConfig struct {
	DropPolicy     string `yaml:"drop_policy"`     // "tiered" | "any"
	UnknownActions string `yaml:"unknown_actions"` // "submission" | "unrecognized"
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	Driver   string `yaml:"driver"` // "sqlite" | "pgx"
	DSN      string `yaml:"dsn"`
	SeedFile string `yaml:"seed_file"`

	// AuthSecret signs API tokens. Env only; empty disables auth.
	AuthSecret string `yaml:"-"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Backend       BackendConfig   `yaml:"backend"`
	Editor        EditorConfig    `yaml:"editor"`
	Server        ServerConfig    `yaml:"server"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, Retries: 3, RetryBackoffMs: 250},
		Editor:        EditorConfig{DropPolicy: DropPolicyTiered, UnknownActions: UnknownSubmission},
		Server:        ServerConfig{Addr: ":8080", Driver: "sqlite", DSN: "missions.db"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "MSE_CONFIG"
	EnvBackendURL       = "MSE_BACKEND_URL"
	EnvBackendTimeoutMs = "MSE_BACKEND_TIMEOUT_MS"
	EnvBackendRetries   = "MSE_BACKEND_RETRIES"
	EnvSiteID           = "MSE_SITE_ID"
	EnvDropPolicy       = "MSE_DROP_POLICY"
	EnvUnknownActions   = "MSE_UNKNOWN_ACTIONS"
	EnvServerAddr       = "MSE_SERVER_ADDR"
	EnvServerDriver     = "MSE_SERVER_DRIVER"
	EnvServerDSN        = "MSE_SERVER_DSN"
	EnvAuthSecret       = "MSE_AUTH_SECRET"
	EnvTelemetryOptIn   = "MSE_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "MSE_LOG_LEVEL"
	EnvLogFormat = "MSE_LOG_FORMAT"
	EnvLogSource = "MSE_LOG_SOURCE"
	EnvLogFile   = "MSE_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "MissionEditor"
	keyringToken   = "backend_token"
)

// TokenStore abstracts the keyring so tests can swap it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// ConfigPath returns the per-user config file path. MSE_CONFIG takes precedence.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MissionEditor")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MissionEditor")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "missioneditor")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and environment overrides.
// The backend token comes from the keyring and is returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", err
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	normalize(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and stores the token in the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// ClearToken removes the stored backend token.
func ClearToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	setStr(&dst.Backend.BaseURL, src.Backend.BaseURL)
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if src.Backend.Retries != 0 {
		dst.Backend.Retries = src.Backend.Retries
	}
	if src.Backend.RetryBackoffMs != 0 {
		dst.Backend.RetryBackoffMs = src.Backend.RetryBackoffMs
	}
	setStr(&dst.Backend.SiteID, src.Backend.SiteID)
	setLower(&dst.Editor.DropPolicy, src.Editor.DropPolicy)
	setLower(&dst.Editor.UnknownActions, src.Editor.UnknownActions)
	setStr(&dst.Server.Addr, src.Server.Addr)
	setLower(&dst.Server.Driver, src.Server.Driver)
	setStr(&dst.Server.DSN, src.Server.DSN)
	setStr(&dst.Server.SeedFile, src.Server.SeedFile)
	setLower(&dst.Logging.Level, src.Logging.Level)
	setLower(&dst.Logging.Format, src.Logging.Format)
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
	// booleans: copy directly from src (file) so user preferences persist
	dst.Telemetry.OptIn = src.Telemetry.OptIn
	setStr(&dst.Telemetry.EventsURL, src.Telemetry.EventsURL)
	setStr(&dst.Telemetry.CrashURL, src.Telemetry.CrashURL)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setLower(dst *string, v string) { setStr(dst, strings.ToLower(v)) }

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	env := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	setStr(&cfg.Backend.BaseURL, env(EnvBackendURL))
	if n, err := strconv.Atoi(env(EnvBackendTimeoutMs)); err == nil {
		cfg.Backend.TimeoutMs = n
	}
	if n, err := strconv.Atoi(env(EnvBackendRetries)); err == nil {
		cfg.Backend.Retries = n
	}
	setStr(&cfg.Backend.SiteID, env(EnvSiteID))
	setLower(&cfg.Editor.DropPolicy, env(EnvDropPolicy))
	setLower(&cfg.Editor.UnknownActions, env(EnvUnknownActions))
	setStr(&cfg.Server.Addr, env(EnvServerAddr))
	setLower(&cfg.Server.Driver, env(EnvServerDriver))
	setStr(&cfg.Server.DSN, env(EnvServerDSN))
	setStr(&cfg.Server.AuthSecret, env(EnvAuthSecret))
	if v := env(EnvTelemetryOptIn); v != "" {
		cfg.Telemetry.OptIn = envBool(v)
	}
	setLower(&cfg.Logging.Level, env(EnvLogLevel))
	setLower(&cfg.Logging.Format, env(EnvLogFormat))
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	setStr(&cfg.Logging.File, env(EnvLogFile))
}

// normalize replaces invalid enum values with defaults.
func normalize(cfg *AppConfig) {
	d := Defaults()
	switch cfg.Editor.DropPolicy {
	case DropPolicyTiered, DropPolicyAny:
	default:
		cfg.Editor.DropPolicy = d.Editor.DropPolicy
	}
	switch cfg.Editor.UnknownActions {
	case UnknownSubmission, UnknownUnrecognized:
	default:
		cfg.Editor.UnknownActions = d.Editor.UnknownActions
	}
	switch cfg.Server.Driver {
	case "sqlite", "pgx":
	default:
		cfg.Server.Driver = d.Server.Driver
	}
	if cfg.Backend.Retries < 0 {
		cfg.Backend.Retries = 0
	}
}

var envKeys = map[string]string{
	"backend.base_url":       EnvBackendURL,
	"backend.timeout_ms":     EnvBackendTimeoutMs,
	"backend.retries":        EnvBackendRetries,
	"backend.site_id":        EnvSiteID,
	"editor.drop_policy":     EnvDropPolicy,
	"editor.unknown_actions": EnvUnknownActions,
	"server.addr":            EnvServerAddr,
	"server.driver":          EnvServerDriver,
	"server.dsn":             EnvServerDSN,
	"server.auth_secret":     EnvAuthSecret,
	"telemetry.opt_in":       EnvTelemetryOptIn,
	"logging.level":          EnvLogLevel,
	"logging.format":         EnvLogFormat,
	"logging.source":         EnvLogSource,
	"logging.file":           EnvLogFile,
}

// OverridableKeys lists the config keys that have an environment override, sorted.
func OverridableKeys() []string {
	keys := make([]string, 0, len(envKeys))
	for k := range envKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the backend request timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Backoff returns the linear retry backoff step.
func (b BackendConfig) Backoff() time.Duration {
	return time.Duration(b.RetryBackoffMs) * time.Millisecond
}
