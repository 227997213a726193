// Package store provides durable, file-backed persistence for snapshot set
// metadata and the profile/host/cache hierarchy used by the boot bridge.
// All mutation is write-new-then-rename; records are never edited in place.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	setsDir      = "sets"
	snapshotsDir = "snapshots"
	profilesDir  = "profiles"
	hostsDir     = "hosts"
	cacheDir     = "cache"

	lockFile = ".snapset.lock"

	filePerm = 0o644
)

// Store is the on-disk metadata root. One Store owns one directory tree:
//
//	<root>/sets/<set-id>.json
//	<root>/snapshots/<record-id>.json
//	<root>/profiles/<name>.yaml
//	<root>/hosts/<machine-id>.yaml
//	<root>/cache/resolutions.yaml
type Store struct {
	root string
	log  *zap.Logger
}

// New opens (creating if needed) a metadata root.
func New(root string, log *zap.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root must not be empty")
	}
	for _, sub := range []string{setsDir, snapshotsDir, profilesDir, hostsDir, cacheDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &Store{root: root, log: log}, nil
}

// Root returns the metadata root path.
func (s *Store) Root() string { return s.root }

// LockPath returns the advisory lock file guarding this store. The lock is
// the documented cross-process single-writer contract: every mutating
// engine operation acquires it; readers do not.
func (s *Store) LockPath() string { return filepath.Join(s.root, lockFile) }

func (s *Store) setPath(name string) string {
	return filepath.Join(s.root, setsDir, name)
}

func (s *Store) snapshotPath(name string) string {
	return filepath.Join(s.root, snapshotsDir, name)
}
