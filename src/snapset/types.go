package snapset

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SnapStatus is the state of an individual snapshot record.
type SnapStatus string

const (
	SnapPending   SnapStatus = "pending"
	SnapActive    SnapStatus = "active"
	SnapReverting SnapStatus = "reverting"
	SnapDeleted   SnapStatus = "deleted"
	SnapError     SnapStatus = "error"
)

// SetStatus is the state of a snapshot set as a whole.
type SetStatus string

const (
	SetCreating  SetStatus = "creating"
	SetActive    SetStatus = "active"
	SetPartial   SetStatus = "partial"
	SetReverting SetStatus = "reverting"
	SetReverted  SetStatus = "reverted"
	SetDeleting  SetStatus = "deleting"
	SetDeleted   SetStatus = "deleted"
)

// setTransitions is the set-level state machine. PARTIAL only exits via
// manual repair or delete; a set stuck REVERTING after a crashed revert can
// only be cleaned up by deletion.
var setTransitions = map[SetStatus][]SetStatus{
	SetCreating:  {SetActive, SetPartial, SetDeleted},
	SetActive:    {SetReverting, SetDeleting, SetPartial},
	SetPartial:   {SetDeleting},
	SetReverting: {SetReverted, SetPartial, SetDeleting},
	SetReverted:  {SetDeleting},
	SetDeleting:  {SetDeleted},
}

// CanTransition reports whether a set may move from s to next.
func (s SetStatus) CanTransition(next SetStatus) bool {
	for _, t := range setTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Volume is a read-only reference to a storage device or logical volume
// supplied by the environment.
type Volume struct {
	ID         string // stable identifier, e.g. "vg0/root"
	Backend    string // optional backend hint; empty means probe
	Source     string // backend-specific source, e.g. "vg0/root"
	DevicePath string // device node; filled by probing when empty
	MountPoint string // optional; empty for unmounted volumes
	Size       uint64 // bytes
}

// Handle identifies the backend-specific storage for one snapshot.
type Handle struct {
	Name       string `json:"name"`        // backend-specific snapshot name
	DevicePath string `json:"device_path"` // device node, if any
}

// SnapshotRecord describes one snapshot of one volume.
type SnapshotRecord struct {
	ID           uuid.UUID  `json:"id"`
	SetID        uuid.UUID  `json:"set_id"`
	VolumeID     string     `json:"volume_id"`
	Backend      string     `json:"backend"`
	Origin       string     `json:"origin"`
	OriginDevice string     `json:"origin_device,omitempty"` // device node of the origin volume
	MountPoint   string     `json:"mount_point,omitempty"`
	Handle       Handle     `json:"handle"`
	Size         uint64     `json:"size"`
	Used         uint64     `json:"used,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Status       SnapStatus `json:"status"`
}

// SnapshotSet is a named, timestamped group of snapshots created together
// and managed as one logical restore point.
type SnapshotSet struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Host          string           `json:"host"` // machine-id of the owning host
	CreatedAt     time.Time        `json:"created_at"`
	Status        SetStatus        `json:"status"`
	BootEntry     string           `json:"boot_entry,omitempty"`
	RollbackEntry string           `json:"rollback_entry,omitempty"`
	Profile       string           `json:"profile,omitempty"`
	UnamePattern  string           `json:"uname_pattern,omitempty"`
	AutoGC        bool             `json:"autogc,omitempty"`
	Snapshots     []SnapshotRecord `json:"-"` // persisted separately, in member order
}

// MemberIDs returns the ordered member record IDs.
func (s *SnapshotSet) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(s.Snapshots))
	for i, snap := range s.Snapshots {
		ids[i] = snap.ID
	}
	return ids
}

// MountPoints returns the mount points of all members, in member order.
func (s *SnapshotSet) MountPoints() []string {
	mps := make([]string, 0, len(s.Snapshots))
	for _, snap := range s.Snapshots {
		if snap.MountPoint != "" {
			mps = append(mps, snap.MountPoint)
		}
	}
	return mps
}

// SnapshotByMountPoint returns the member snapshot for a mount point.
func (s *SnapshotSet) SnapshotByMountPoint(mp string) (SnapshotRecord, error) {
	for _, snap := range s.Snapshots {
		if snap.MountPoint == mp {
			return snap, nil
		}
	}
	return SnapshotRecord{}, &NotFoundError{Kind: "snapshot", Name: s.Name + ":" + mp}
}

// EffectiveStatus derives the set status from its members: active only if
// every member is active, otherwise partial. Non-member-derived states
// (reverting, deleting, ...) are reported as stored.
func (s *SnapshotSet) EffectiveStatus() SetStatus {
	switch s.Status {
	case SetActive, SetPartial, SetCreating:
		for _, snap := range s.Snapshots {
			if snap.Status != SnapActive {
				return SetPartial
			}
		}
		if s.Status == SetCreating {
			return SetCreating
		}
		return SetActive
	default:
		return s.Status
	}
}

// UUIDv5 namespaces for stable, derivable identifiers.
var (
	namespaceSet      = uuid.MustParse("7c9d2c3e-5a41-4f8a-9b1d-30c2a8f06e17")
	namespaceSnapshot = uuid.MustParse("e4f0b7a2-8d65-4c09-a3be-51d79e4c2b88")
)

// NewSetID derives the stable set ID from the host machine-id, set name and
// creation timestamp.
func NewSetID(host, name string, created time.Time) uuid.UUID {
	seed := host + "/" + name + "/" + strconv.FormatInt(created.Unix(), 10)
	return uuid.NewSHA1(namespaceSet, []byte(seed))
}

// NewSnapshotID derives the stable record ID for one member of a set.
func NewSnapshotID(setID uuid.UUID, volumeID string) uuid.UUID {
	return uuid.NewSHA1(namespaceSnapshot, []byte(setID.String()+"/"+volumeID))
}

// Profile is a per-host bootable-kernel identity descriptor. Kernel,
// Initramfs and Options are templates; see boot.Render for the supported
// expansions.
type Profile struct {
	Name         string `yaml:"name"`
	UnamePattern string `yaml:"uname_pattern"`
	Kernel       string `yaml:"kernel"`
	Initramfs    string `yaml:"initramfs"`
	Options      string `yaml:"options"`
}

// HostEntry binds a host to its resolved default profile so the running
// kernel does not have to be re-probed on every invocation.
type HostEntry struct {
	MachineID  string    `yaml:"machine_id"`
	Uname      string    `yaml:"uname"`
	Profile    string    `yaml:"profile"`
	ResolvedAt time.Time `yaml:"resolved_at"`
}
