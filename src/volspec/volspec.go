// Package volspec parses volume arguments of the form
// "[backend:]source[@mountpoint]".
//
// Examples:
//
//	vg0/root@/
//	vg0/data@/srv/data
//	lvm2-cow:vg0/swap
package volspec

import (
	"fmt"
	"path/filepath"
	"strings"

	"snapset/src/snapset"
)

// Parse parses a single volume argument. The backend prefix is an optional
// dispatch hint; without it the registry probes. The mount point, when
// present, must be an absolute path.
func Parse(raw string) (snapset.Volume, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return snapset.Volume{}, fmt.Errorf("volume must not be empty; expected format '[backend:]source[@mountpoint]'")
	}

	var backendHint string
	if i := strings.Index(s, ":"); i > 0 {
		backendHint = strings.ToLower(strings.TrimSpace(s[:i]))
		s = strings.TrimSpace(s[i+1:])
	}

	var mount string
	if i := strings.LastIndex(s, "@"); i >= 0 {
		mount = strings.TrimSpace(s[i+1:])
		s = strings.TrimSpace(s[:i])
		if mount == "" {
			return snapset.Volume{}, fmt.Errorf("invalid volume %q: empty mount point after '@'", raw)
		}
		mount = filepath.Clean(mount)
		if !filepath.IsAbs(mount) {
			return snapset.Volume{}, fmt.Errorf("invalid volume %q: mount point must be an absolute path", raw)
		}
	}

	if s == "" {
		return snapset.Volume{}, fmt.Errorf("invalid volume %q: empty source", raw)
	}

	return snapset.Volume{
		ID:         s,
		Backend:    backendHint,
		Source:     s,
		MountPoint: mount,
	}, nil
}

// ParseAll parses a list of volume arguments, preserving order and
// rejecting duplicate sources and duplicate mount points.
func ParseAll(raw []string) ([]snapset.Volume, error) {
	vols := make([]snapset.Volume, 0, len(raw))
	seenSrc := map[string]struct{}{}
	seenMount := map[string]struct{}{}
	for _, r := range raw {
		vol, err := Parse(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seenSrc[vol.Source]; dup {
			return nil, fmt.Errorf("duplicate volume source %q", vol.Source)
		}
		seenSrc[vol.Source] = struct{}{}
		if vol.MountPoint != "" {
			if _, dup := seenMount[vol.MountPoint]; dup {
				return nil, fmt.Errorf("duplicate mount point %q", vol.MountPoint)
			}
			seenMount[vol.MountPoint] = struct{}{}
		}
		vols = append(vols, vol)
	}
	return vols, nil
}

// String renders a volume in the form Parse accepts.
func String(vol snapset.Volume) string {
	s := vol.Source
	if vol.Backend != "" {
		s = vol.Backend + ":" + s
	}
	if vol.MountPoint != "" {
		s += "@" + vol.MountPoint
	}
	return s
}
