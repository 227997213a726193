package snapset

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Selection holds filter criteria for snapshot sets. The zero value matches
// everything.
type Selection struct {
	Name    string
	UUID    uuid.UUID
	Profile string
	Host    string
	// MinAge selects sets at least this old at match time.
	MinAge time.Duration
	// MountPoint selects sets containing a member for this mount point.
	MountPoint string
	// Status selects sets with this effective status.
	Status SetStatus
}

// ParseIdentifier builds a Selection from a single CLI identifier, which may
// be either a set UUID or a set name.
func ParseIdentifier(ident string) Selection {
	if id, err := uuid.Parse(ident); err == nil {
		return Selection{UUID: id}
	}
	return Selection{Name: ident}
}

// IsNull reports whether the selection matches all sets.
func (sel Selection) IsNull() bool {
	return sel == Selection{}
}

// IsSingle reports whether the selection identifies at most one set.
func (sel Selection) IsSingle() bool {
	return sel.Name != "" || sel.UUID != uuid.Nil
}

// Matches tests a snapshot set against the selection criteria.
func (sel Selection) Matches(set SnapshotSet, now time.Time) bool {
	if sel.Name != "" && sel.Name != set.Name {
		return false
	}
	if sel.UUID != uuid.Nil && sel.UUID != set.ID {
		return false
	}
	if sel.Profile != "" && sel.Profile != set.Profile {
		return false
	}
	if sel.Host != "" && sel.Host != set.Host {
		return false
	}
	if sel.MinAge > 0 && now.Sub(set.CreatedAt) < sel.MinAge {
		return false
	}
	if sel.MountPoint != "" {
		if _, err := set.SnapshotByMountPoint(sel.MountPoint); err != nil {
			return false
		}
	}
	if sel.Status != "" && set.EffectiveStatus() != sel.Status {
		return false
	}
	return true
}

// String renders the non-empty criteria, for log and error messages.
func (sel Selection) String() string {
	var parts []string
	if sel.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%q", sel.Name))
	}
	if sel.UUID != uuid.Nil {
		parts = append(parts, "uuid="+sel.UUID.String())
	}
	if sel.Profile != "" {
		parts = append(parts, "profile="+sel.Profile)
	}
	if sel.Host != "" {
		parts = append(parts, "host="+sel.Host)
	}
	if sel.MinAge > 0 {
		parts = append(parts, "min-age="+sel.MinAge.String())
	}
	if sel.MountPoint != "" {
		parts = append(parts, "mount-point="+sel.MountPoint)
	}
	if sel.Status != "" {
		parts = append(parts, "status="+string(sel.Status))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}
