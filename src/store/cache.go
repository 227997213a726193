package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

const resolutionsFile = "resolutions.yaml"

// ResolutionCache is the derived uname→profile lookup table. It only ever
// holds results that can be recomputed from the profile directory, so
// invalidation is simply deleting it.
type ResolutionCache struct {
	// ByUname maps an exact uname release to the resolved profile name.
	ByUname map[string]string `yaml:"by_uname"`
}

func (s *Store) cachePath() string {
	return filepath.Join(s.root, cacheDir, resolutionsFile)
}

// LoadResolutionCache reads the cache; a missing or corrupt cache is an
// empty one.
func (s *Store) LoadResolutionCache() ResolutionCache {
	cache := ResolutionCache{ByUname: map[string]string{}}
	data, err := os.ReadFile(s.cachePath())
	if err != nil {
		return cache
	}
	if err := yaml.Unmarshal(data, &cache); err != nil || cache.ByUname == nil {
		cache.ByUname = map[string]string{}
	}
	return cache
}

// SaveResolutionCache persists the cache atomically.
func (s *Store) SaveResolutionCache(cache ResolutionCache) error {
	data, err := yaml.Marshal(cache)
	if err != nil {
		return fmt.Errorf("encode resolution cache: %w", err)
	}
	if err := renameio.WriteFile(s.cachePath(), data, filePerm); err != nil {
		return fmt.Errorf("write resolution cache: %w", err)
	}
	return nil
}

// InvalidateResolutionCache discards the cache. Called when profiles change
// or the host kernel identity moves.
func (s *Store) InvalidateResolutionCache() error {
	return removeIgnoreMissing(s.cachePath())
}
