package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cfg "github.com/mesa-nmanteufel/testhub/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	tmp := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", tmp)
	defer os.Unsetenv("XDG_CONFIG_HOME")

	// Run from an empty directory so no stray testhub.yaml is picked up.
	wd, _ := os.Getwd()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()

	defaults := map[string]any{
		"database.type":      "sqlite",
		"database.dsn":       "./testhub.db",
		"language":           "en",
		"instrument.backend": "analogdiscovery",
	}
	c, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, defaults, nil)
	// With no file anywhere the config is still usable, and the not-found
	// error tells the caller to write a default file.
	if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		t.Fatalf("err = %v (%T), want viper.ConfigFileNotFoundError", err, err)
	}
	if c.Database.Type != "sqlite" {
		t.Errorf("database.type = %q, want sqlite", c.Database.Type)
	}
	if c.Database.Dsn != "./testhub.db" {
		t.Errorf("database.dsn = %q, want ./testhub.db", c.Database.Dsn)
	}
	if c.Instrument.Backend != "analogdiscovery" {
		t.Errorf("instrument.backend = %q, want analogdiscovery", c.Instrument.Backend)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "station.yaml")
	content := []byte("database:\n  type: postgres\n  dsn: host=db user=hub\nstation: bench-03\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	defaults := map[string]any{"database.type": "sqlite", "database.dsn": "./testhub.db"}
	c, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, defaults, &path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Type != "postgres" {
		t.Errorf("database.type = %q, want postgres", c.Database.Type)
	}
	if c.Station != "bench-03" {
		t.Errorf("station = %q, want bench-03", c.Station)
	}
}

func TestWriteConfigFile_CreatesFile(t *testing.T) {
	tmp := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", tmp)
	defer os.Unsetenv("XDG_CONFIG_HOME")

	c := cfg.Config{}
	c.Database.Type = "sqlite"
	c.Database.Dsn = "./testhub.db"
	c.Station = "bench-01"

	if err := cfg.WriteConfigFile(&c, false); err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}

	written := filepath.Join(tmp, "testhub", "testhub.yaml")
	data, err := os.ReadFile(written)
	if err != nil {
		t.Fatalf("expected config file at %s: %v", written, err)
	}
	if len(data) == 0 {
		t.Fatal("config file is empty")
	}
}
