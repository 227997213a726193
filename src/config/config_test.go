package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapset/src/config"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	def := config.Default()
	if cfg.MetadataRoot != def.MetadataRoot {
		t.Fatalf("metadata root = %q", cfg.MetadataRoot)
	}
	if len(cfg.BackendOrder) != 2 || cfg.BackendOrder[0] != "lvm2-thin" {
		t.Fatalf("backend order = %v", cfg.BackendOrder)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapset.yaml")
	doc := `metadata_root: /srv/snapset
default_size_policy: 2GiB
default_profile: generic
auto_cleanup_revert: true
retention:
  max_age: 720h
  max_per_profile: 4
  autogc_only: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MetadataRoot != "/srv/snapset" {
		t.Fatalf("metadata root = %q", cfg.MetadataRoot)
	}
	if cfg.DefaultSizePolicy != "2GiB" || cfg.DefaultProfile != "generic" || !cfg.AutoCleanupRevert {
		t.Fatalf("cfg = %+v", cfg)
	}
	// Untouched keys keep their defaults.
	if cfg.BootManagerPath != "boom" {
		t.Fatalf("boot manager path = %q", cfg.BootManagerPath)
	}
	if cfg.Retention.MaxAge != 720*time.Hour || cfg.Retention.MaxPerProfile != 4 || !cfg.Retention.AutoGCOnly {
		t.Fatalf("retention = %+v", cfg.Retention)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapset.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
