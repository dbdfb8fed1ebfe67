// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the YAML configuration schema §6
// defines: packages, storage, watch, embedding, and server settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tsgraph/engine/internal/embedpool"
	"github.com/tsgraph/engine/internal/ingest"
)

const (
	// DefaultConfigDir is the directory a project's config file lives
	// under, relative to the project root.
	DefaultConfigDir = ".tsgraph"
	// DefaultConfigFile is the config file name within DefaultConfigDir.
	DefaultConfigFile = "config.yaml"

	defaultStoragePath     = ".cache/graph.db"
	defaultWatchDebounceMS = 300
	defaultPoolSize        = 4
)

// Config is the top-level configuration document (§6 "Configuration
// schema").
type Config struct {
	Packages  []Package       `yaml:"packages"`
	Storage   StorageConfig   `yaml:"storage"`
	Watch     WatchConfig     `yaml:"watch"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// Package is one configured compilation unit: `{name,
// compilation_root_path}`.
type Package struct {
	Name                string `yaml:"name"`
	CompilationRootPath string `yaml:"compilation_root_path"`
}

// StorageConfig selects the graph-store backend and file path.
type StorageConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// WatchConfig controls the live file-watcher (C8).
type WatchConfig struct {
	Include  []string `yaml:"include,omitempty"`
	Exclude  []string `yaml:"exclude,omitempty"`
	Debounce int      `yaml:"debounce"` // milliseconds
}

// Duration returns Debounce as a time.Duration, applying the §6 default
// of 300ms when unset.
func (w WatchConfig) Duration() time.Duration {
	ms := w.Debounce
	if ms <= 0 {
		ms = defaultWatchDebounceMS
	}
	return time.Duration(ms) * time.Millisecond
}

// EmbeddingConfig selects the embedding model either by a named preset
// or by the explicit `{repo, filename, query_prefix, document_prefix}`
// fields §6 allows as an alternative.
type EmbeddingConfig struct {
	Preset         string `yaml:"preset,omitempty"`
	Repo           string `yaml:"repo,omitempty"`
	Filename       string `yaml:"filename,omitempty"`
	QueryPrefix    string `yaml:"query_prefix,omitempty"`
	DocumentPrefix string `yaml:"document_prefix,omitempty"`
	PoolSize       int    `yaml:"pool_size"`
	Dimensions     int    `yaml:"dimensions"`
}

// ServerConfig is external to the core (§6), carried here only so a
// transport binary can read its listen port from the same file.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// Default returns a config with the §6-documented defaults: no
// packages, sqlite storage under .cache/graph.db, a 300ms watch debounce,
// and a pool size of 4.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Type: "sqlite", Path: defaultStoragePath},
		Watch:   WatchConfig{Debounce: defaultWatchDebounceMS},
		Embedding: EmbeddingConfig{
			PoolSize: defaultPoolSize,
		},
	}
}

// Load reads and parses a config document from path, filling in §6's
// defaults for any field the file leaves unset, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-supplied, same trust boundary as the config file itself
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = defaultWatchDebounceMS
	}
	if cfg.Embedding.PoolSize <= 0 {
		cfg.Embedding.PoolSize = defaultPoolSize
	}
}

// Validate reports a configuration error (§7 "fatal at startup") for
// anything Load cannot safely proceed with: a storage type must be
// named, and the embedding model must be identified either by preset or
// by the full explicit {repo, filename} pair.
func (c *Config) Validate() error {
	if c.Storage.Type == "" {
		return fmt.Errorf("storage.type is required")
	}
	if c.Embedding.Preset == "" && (c.Embedding.Repo == "" || c.Embedding.Filename == "") {
		return fmt.Errorf("embedding requires either a preset name or both repo and filename")
	}
	for i, pkg := range c.Packages {
		if pkg.Name == "" {
			return fmt.Errorf("packages[%d].name is required", i)
		}
		if pkg.CompilationRootPath == "" {
			return fmt.Errorf("packages[%d].compilation_root_path is required", i)
		}
	}
	return nil
}

// Save writes cfg to path as YAML, creating the parent directory if
// needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Find searches startDir and its ancestors for
// <DefaultConfigDir>/<DefaultConfigFile>, returning the first match.
func Find(startDir string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, DefaultConfigDir, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no %s found in %s or any parent directory", filepath.Join(DefaultConfigDir, DefaultConfigFile), startDir)
}

// IngestPackages adapts Config.Packages to ingest.Package, leaving Files
// empty: enumerating a package's files is the caller's job (a directory
// walk scoped to CompilationRootPath), kept out of this package since it
// depends on filesystem layout the config schema itself doesn't name.
func (c *Config) IngestPackages() []ingest.Package {
	out := make([]ingest.Package, len(c.Packages))
	for i, p := range c.Packages {
		out[i] = ingest.Package{Name: p.Name, CompilationRootPath: p.CompilationRootPath}
	}
	return out
}

// EmbedPreset adapts EmbeddingConfig to embedpool.Preset. When Preset is
// unset, the named-preset lookup is the caller's job (a small table
// mapping known preset names to {repo, filename, prefixes,
// dimensions}); EmbedPreset here reflects only what this config
// document states explicitly.
func (c *Config) EmbedPreset() embedpool.Preset {
	return embedpool.Preset{
		Name:           c.Embedding.Preset,
		Dimensions:     c.Embedding.Dimensions,
		QueryPrefix:    c.Embedding.QueryPrefix,
		DocumentPrefix: c.Embedding.DocumentPrefix,
	}
}
