// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logbackcfg

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment identifies the deployment type. It has no behavioral
// effect on the registry itself; it only selects the operator CLI's
// logging format (see cmd/logback-ctl).
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// StoreKind selects which objectstore.Store implementation
// cmd/logback-ctl constructs.
type StoreKind string

const (
	StoreSQLite StoreKind = "sqlite"
	StoreFS     StoreKind = "fs"
	StoreMem    StoreKind = "mem"
)

// Config is the master configuration for a logback deployment.
type Config struct {
	// Environment selects the operator CLI's logging format.
	Environment Environment `yaml:"environment"`

	// Store selects the object store backend.
	Store StoreKind `yaml:"store"`

	// SQLitePath is the database file used by the sqlite store. Required
	// when Store is "sqlite".
	SQLitePath string `yaml:"sqlite_path"`

	// FSRoot is the directory used by the filesystem store. Required
	// when Store is "fs".
	FSRoot string `yaml:"fs_root"`

	// Shards is the number of shards each managed log is partitioned
	// across. Must be at least 1.
	Shards uint32 `yaml:"shards"`

	// DefaultType is the backing type used to bootstrap generation 0
	// when the metadata object does not yet exist: "omap" or "fifo".
	DefaultType string `yaml:"default_type"`

	// MetadataOID is the name of the object holding the generation map
	// for the log this deployment manages.
	MetadataOID string `yaml:"metadata_oid"`
}

// Default returns the default configuration. These defaults exist to
// give every field a sensible zero value, not as a fallback — the
// config file is still required by Load.
func Default() *Config {
	return &Config{
		Environment: Development,
		Store:       StoreMem,
		Shards:      1,
		DefaultType: "omap",
		MetadataOID: "logback.generations",
	}
}

// Load loads configuration from the LOGBACK_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults — if LOGBACK_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration with
// no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("LOGBACK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("LOGBACK_CONFIG environment variable not set; " +
			"set it to the path of your logback.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${VAR} for portability of file paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("logbackcfg: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("logbackcfg: parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.SQLitePath = expandVars(c.SQLitePath, vars)
	c.FSRoot = expandVars(c.FSRoot, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name, defaultValue := parts[1], ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Shards == 0 {
		errs = append(errs, errors.New("shards must be at least 1"))
	}
	if c.DefaultType != "omap" && c.DefaultType != "fifo" {
		errs = append(errs, fmt.Errorf("default_type must be omap or fifo, got %q", c.DefaultType))
	}
	if c.MetadataOID == "" {
		errs = append(errs, errors.New("metadata_oid is required"))
	}
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required when store=sqlite"))
		}
	case StoreFS:
		if c.FSRoot == "" {
			errs = append(errs, errors.New("fs_root is required when store=fs"))
		}
	case StoreMem:
		// no additional fields required
	default:
		errs = append(errs, fmt.Errorf("store must be one of sqlite, fs, mem, got %q", c.Store))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
