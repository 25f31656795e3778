// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

// Package config holds the single TOML configuration document and the
// process-wide Instance that guards access to it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aderumier/gamemanager-core/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Values is the full recognized configuration document (spec §9).
type Values struct {
	RomsRootDirectory string              `toml:"roms_root_directory"`
	TaskLogsDirectory string              `toml:"task_logs_directory"`
	StateDirectory    string              `toml:"state_directory"`
	CorpusPath        string              `toml:"corpus_path"`
	MaxTasksToKeep    int                 `toml:"max_tasks_to_keep"`
	Download          Download            `toml:"download,omitempty"`
	Media             Media               `toml:"media,omitempty"`
	MediaFields       map[string]Field    `toml:"media_fields,omitempty"`
	Providers         map[string]Provider `toml:"providers,omitempty"`
	ConfigSchema      int                 `toml:"config_schema"`
	DebugLogging      bool                `toml:"debug_logging"`
	ErrorReporting    ErrorReporting      `toml:"error_reporting,omitempty"`
}

// ErrorReporting configures opt-in crash telemetry (internal/telemetry).
type ErrorReporting struct {
	Enabled bool   `toml:"enabled"`
	DSN     string `toml:"dsn,omitempty"`
}

// Download holds the Download Pipeline's (§4.4) tunables.
type Download struct {
	MaxConnections int `toml:"max_connections"`
	TimeoutSeconds int `toml:"timeout_seconds"`
	RetryAttempts  int `toml:"retry_attempts"`
	ConnectTimeout int `toml:"connect_timeout_seconds"`
	ReadTimeout    int `toml:"read_timeout_seconds"`
}

// Media holds the Media Reconciler's (§4.5) mapping tables.
type Media struct {
	Mappings   map[string]string   `toml:"mappings,omitempty"`
	Extensions map[string][]string `toml:"extensions,omitempty"`
}

// Field configures per-field media conversion (game_utils.py).
type Field struct {
	TargetExtension string `toml:"target_extension"`
}

// Provider configures a single media/metadata provider (§4.4, §12.3).
type Provider struct {
	ImageTypeMappings map[string]string `toml:"image_type_mappings,omitempty"`
	RegionPriority    []string          `toml:"region_priority,omitempty"`
	RequestsPerSecond float64           `toml:"requests_per_second"`
}

// BaseDefaults is the seed configuration written on first run.
var BaseDefaults = Values{
	ConfigSchema:      SchemaVersion,
	TaskLogsDirectory: "task_logs",
	StateDirectory:    "state",
	MaxTasksToKeep:    100,
	Download: Download{
		MaxConnections: 20,
		TimeoutSeconds: 60,
		RetryAttempts:  3,
		ConnectTimeout: 10,
		ReadTimeout:    30,
	},
	Media: Media{
		Mappings: map[string]string{
			"screenshot": "screenshot",
			"box2dfront": "extra1",
			"marquee":    "marquee",
			"video":      "video",
			"manual":     "manual",
		},
		Extensions: map[string][]string{
			"screenshot": {".png", ".jpg", ".jpeg"},
			"box2dfront": {".png", ".jpg", ".jpeg"},
			"marquee":    {".png", ".jpg", ".jpeg"},
			"video":      {".mp4", ".webm"},
			"manual":     {".pdf"},
		},
	},
	Providers: map[string]Provider{
		"launchbox": {
			RegionPriority: []string{"World", "USA", "Europe", "Japan"},
		},
	},
}

// Instance is the process-wide configuration singleton, guarded by a
// read-write lock so readers never observe a partially-applied Load.
type Instance struct {
	cfgPath  string
	authPath string
	vals     Values
	mu       syncutil.RWMutex
}

// NewConfig loads (or seeds) the configuration document rooted at configDir.
//
//nolint:gocritic // defaults copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath: cfgPath,
		vals:    defaults,
	}
	cfg.authPath = filepath.Join(filepath.Dir(cfgPath), AuthFile)

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")
		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load re-reads the configuration and credentials files from disk.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var newVals Values
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf("schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema, SchemaVersion)
		return errors.New("schema version mismatch")
	}

	c.vals = newVals

	if data, err := os.ReadFile(c.authPath); err == nil {
		creds := LoadAuthFromData(data)
		authCreds.Store(creds)
		log.Info().Msgf("loaded %d provider credential entries", len(creds))
	}

	return nil
}

// Save writes the configuration document atomically (temp file + rename).
func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := c.cfgPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config temp file: %w", err)
	}
	if err := os.Rename(tmp, c.cfgPath); err != nil {
		return fmt.Errorf("failed to rename config temp file: %w", err)
	}
	return nil
}

// RomsRoot returns the root directory the ROM tree is published under.
func (c *Instance) RomsRoot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.RomsRootDirectory
}

// StateDirectory returns the internal state root (gamelists, task logs, db caches).
func (c *Instance) StateDirectory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.StateDirectory
}

// TaskLogsDirectory returns the directory Task log files are written under.
func (c *Instance) TaskLogsDirectory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.TaskLogsDirectory == "" {
		return TaskLogsDir
	}
	return c.vals.TaskLogsDirectory
}

// CorpusPath returns the configured path of the metadata corpus XML file.
func (c *Instance) CorpusPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.CorpusPath
}

// MaxTasksToKeep returns the in-memory Task retention ceiling.
func (c *Instance) MaxTasksToKeep() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.MaxTasksToKeep <= 0 {
		return 100
	}
	return c.vals.MaxTasksToKeep
}

// DownloadSettings returns a copy of the Download Pipeline tunables.
func (c *Instance) DownloadSettings() Download {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Download
}

// MediaMappings returns the media-category to catalog-field mapping table.
func (c *Instance) MediaMappings() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.vals.Media.Mappings))
	for k, v := range c.vals.Media.Mappings {
		out[k] = v
	}
	return out
}

// MediaExtensions returns the media-category to allowed-extensions table.
func (c *Instance) MediaExtensions() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.vals.Media.Extensions))
	for k, v := range c.vals.Media.Extensions {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// MediaFieldTargetExtension returns the configured output extension for a
// catalog media field, or "" if the field is not configured for conversion.
func (c *Instance) MediaFieldTargetExtension(field string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.vals.MediaFields[field]
	if !ok {
		return ""
	}
	return f.TargetExtension
}

// ProviderImageTypeMappings returns provider-type to catalog-field mappings
// for the named provider.
func (c *Instance) ProviderImageTypeMappings(provider string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.vals.Providers[provider]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(p.ImageTypeMappings))
	for k, v := range p.ImageTypeMappings {
		out[k] = v
	}
	return out
}

// ProviderRegionPriority returns the default region priority list for the
// named provider, falling back to a sane built-in default.
func (c *Instance) ProviderRegionPriority(provider string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.vals.Providers[provider]
	if !ok || len(p.RegionPriority) == 0 {
		return []string{"World", "USA", "Europe", "Japan"}
	}
	return append([]string(nil), p.RegionPriority...)
}

// ProviderRequestsPerSecond returns the configured rate-limit for a provider,
// or 0 (unlimited) if not configured.
func (c *Instance) ProviderRequestsPerSecond(provider string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Providers[provider].RequestsPerSecond
}

// DebugLogging reports whether verbose logging is enabled.
func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

// SetDebugLogging toggles verbose logging and the global zerolog level.
func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// ErrorReportingSettings returns the configured crash-telemetry settings.
func (c *Instance) ErrorReportingSettings() ErrorReporting {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReporting
}
