package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"snapset/src/snapset"
)

// HostEntry loads the per-host default profile binding for a machine-id.
func (s *Store) HostEntry(machineID string) (snapset.HostEntry, error) {
	path := filepath.Join(s.root, hostsDir, machineID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapset.HostEntry{}, &snapset.NotFoundError{Kind: "host entry", Name: machineID}
		}
		return snapset.HostEntry{}, fmt.Errorf("read host entry: %w", err)
	}
	var h snapset.HostEntry
	if err := yaml.Unmarshal(data, &h); err != nil {
		return snapset.HostEntry{}, &snapset.CorruptRecordError{Path: path, Err: err}
	}
	return h, nil
}

// WriteHostEntry persists a host binding atomically.
func (s *Store) WriteHostEntry(h snapset.HostEntry) error {
	if h.MachineID == "" {
		return fmt.Errorf("host entry machine-id must not be empty")
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode host entry: %w", err)
	}
	path := filepath.Join(s.root, hostsDir, h.MachineID+".yaml")
	if err := renameio.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write host entry: %w", err)
	}
	return nil
}

// DeleteHostEntry removes a host binding. Idempotent. Used when the host's
// kernel identity changes and the cached resolution becomes stale.
func (s *Store) DeleteHostEntry(machineID string) error {
	return removeIgnoreMissing(filepath.Join(s.root, hostsDir, machineID+".yaml"))
}
