// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package config loads and persists the testhub station configuration. It
// layers defaults, the testhub.yaml config file (user, system or current
// directory), environment variables (TESTHUB_ prefix) and command-line
// flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the full station configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Station    string           `mapstructure:"station" yaml:"station"`
	Language   string           `mapstructure:"language" yaml:"language"`
	Instrument InstrumentConfig `mapstructure:"instrument" yaml:"instrument"`
	Sync       SyncConfig       `mapstructure:"sync" yaml:"sync"`
}

// DatabaseConfig selects the report store backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	Dsn  string `mapstructure:"dsn" yaml:"dsn"`
}

// InstrumentConfig selects the bench instrument backend: "analogdiscovery"
// for real hardware, "sim" for the simulated instrument.
type InstrumentConfig struct {
	Backend     string  `mapstructure:"backend" yaml:"backend"`
	SupplyVolts float64 `mapstructure:"supply_volts" yaml:"supply_volts"`
}

// SyncConfig configures report synchronization to the central origin.
type SyncConfig struct {
	// Mode is "git", "sftp" or "off".
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Dir is the local working tree that report exports are written into
	// (and committed from, in git mode).
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Remote is user@host[:port] for sftp mode.
	Remote string `mapstructure:"remote" yaml:"remote"`
	// RemotePath is the upload directory on the results server.
	RemotePath string `mapstructure:"remote_path" yaml:"remote_path"`
	// KeyFile is an optional private key for sftp auth; the SSH agent is
	// used as a fallback.
	KeyFile string `mapstructure:"key_file" yaml:"key_file"`
	// Schedule is a cron spec for watch mode (e.g. "@every 10m").
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Testhub")
		default:
			configDir = "/etc/testhub"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "testhub")
	}

	return filepath.Join(configDir, "testhub.yaml"), nil
}

// LoadConfig builds a Config from defaults, config files, environment and
// the command's flags. An explicit file path (from --config) takes
// precedence over the search locations.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("testhub")
	v.SetConfigType("yaml")

	if explicitPath != nil {
		v.SetConfigFile(*explicitPath)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	// A missing file still yields a usable config from defaults, env and
	// flags, but the not-found error is passed through so the caller can
	// write a default file on first run.
	var notFound error
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
		notFound = err
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("testhub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, notFound
}

// WriteConfigFile persists the configuration to the user (or system) config
// path, creating the directory if needed. Mode 0600 because the sync section
// may reference private key material.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	return nil
}
