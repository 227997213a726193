package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"snapset/src/snapset"
)

// Profiles loads every boot profile, sorted by name. Unreadable profiles
// are skipped with a warning.
func (s *Store) Profiles() ([]snapset.Profile, error) {
	dir := filepath.Join(s.root, profilesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profiles directory: %w", err)
	}
	var profiles []snapset.Profile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
		var p snapset.Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			s.log.Warn("skipping unreadable profile",
				zap.Error(&snapset.CorruptRecordError{Path: path, Err: err}))
			continue
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Profile loads one profile by name.
func (s *Store) Profile(name string) (snapset.Profile, error) {
	path := filepath.Join(s.root, profilesDir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapset.Profile{}, &snapset.ProfileNotFoundError{Name: name}
		}
		return snapset.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p snapset.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return snapset.Profile{}, &snapset.CorruptRecordError{Path: path, Err: err}
	}
	return p, nil
}

// WriteProfile persists a profile atomically.
func (s *Store) WriteProfile(p snapset.Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	path := filepath.Join(s.root, profilesDir, p.Name+".yaml")
	if err := renameio.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// DeleteProfile removes a profile. Idempotent.
func (s *Store) DeleteProfile(name string) error {
	return removeIgnoreMissing(filepath.Join(s.root, profilesDir, name+".yaml"))
}
