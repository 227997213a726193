// Package config loads the tool configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is consulted when no --config flag is given.
const DefaultPath = "/etc/snapset/snapset.yaml"

// Retention is the garbage-collection policy section.
type Retention struct {
	// MaxAge expires sets older than this duration, e.g. "720h"; empty
	// disables age-based expiry.
	MaxAge time.Duration `yaml:"max_age"`
	// MaxPerProfile keeps at most this many sets per profile; 0 disables.
	MaxPerProfile int `yaml:"max_per_profile"`
	// AutoGCOnly restricts collection to sets created with automatic GC
	// enabled.
	AutoGCOnly bool `yaml:"autogc_only"`
}

// UnmarshalYAML accepts max_age in time.ParseDuration form ("720h").
func (r *Retention) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxAge        string `yaml:"max_age"`
		MaxPerProfile int    `yaml:"max_per_profile"`
		AutoGCOnly    bool   `yaml:"autogc_only"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxAge != "" {
		d, err := time.ParseDuration(raw.MaxAge)
		if err != nil {
			return fmt.Errorf("retention max_age: %w", err)
		}
		r.MaxAge = d
	}
	r.MaxPerProfile = raw.MaxPerProfile
	r.AutoGCOnly = raw.AutoGCOnly
	return nil
}

// Config is the tool configuration, loaded from YAML.
type Config struct {
	// MetadataRoot is the directory holding all persistent metadata.
	MetadataRoot string `yaml:"metadata_root"`
	// BackendOrder fixes the probe order for backend dispatch.
	BackendOrder []string `yaml:"backend_order"`
	// DefaultSizePolicy applies when create is given no --size, in the
	// form "20%" or "2GiB".
	DefaultSizePolicy string `yaml:"default_size_policy"`
	// DefaultProfile names the profile used when resolution finds no
	// match; empty means resolution failure is an error.
	DefaultProfile string `yaml:"default_profile"`
	// AutoCleanupRevert deletes a set immediately after a successful
	// revert instead of leaving it pending deletion.
	AutoCleanupRevert bool `yaml:"auto_cleanup_revert"`
	// BootManagerPath is the boot-entry manager binary; empty disables
	// boot integration.
	BootManagerPath string `yaml:"boot_manager_path"`

	Retention Retention `yaml:"retention"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MetadataRoot:      "/var/lib/snapset",
		BackendOrder:      []string{"lvm2-thin", "lvm2-cow"},
		DefaultSizePolicy: "20%",
		BootManagerPath:   "boom",
	}
}

// Load reads the configuration at path, layered over Default. A missing
// file is not an error: the defaults apply unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
