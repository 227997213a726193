package manager

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/snapset"
)

// CreateOptions carries per-create settings.
type CreateOptions struct {
	// Profile is an explicit boot profile name; empty resolves by uname.
	Profile string
	// SizePolicy overrides the engine default for every member.
	SizePolicy backend.SizePolicy
	// NoBootEntry skips boot-entry creation for this set.
	NoBootEntry bool
	// AutoGC tags the set as eligible for retention-policy deletion.
	AutoGC bool
}

// CreateSet creates one snapshot per volume, in the given order, and
// persists the resulting set. If any member creation fails, the
// already-created members are deleted before the error is returned; the
// store then carries no trace of the aborted set. A boot-entry failure
// after a fully successful creation is a warning, not an error: the set
// stays active without an entry.
func (m *Manager) CreateSet(ctx context.Context, name string, vols []snapset.Volume, opts CreateOptions) (*snapset.SnapshotSet, error) {
	if len(vols) == 0 {
		return nil, fmt.Errorf("create snapshot set: no volumes given")
	}
	release, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.validateNewName(name); err != nil {
		return nil, err
	}
	backends, err := m.resolveBackends(vols)
	if err != nil {
		return nil, err
	}

	// Fill in environment-derived volume details (origin sizes) so percent
	// size policies resolve against real numbers.
	for i, vol := range vols {
		if prober, ok := backends[i].(backend.Prober); ok {
			probed, err := prober.ProbeVolume(ctx, vol)
			if err != nil {
				return nil, err
			}
			vols[i] = probed
		}
	}

	policy := opts.SizePolicy
	if policy == (backend.SizePolicy{}) {
		policy = m.opts.DefaultSizePolicy
	}

	created := m.opts.Clock().UTC().Truncate(time.Second)
	set := snapset.SnapshotSet{
		ID:        snapset.NewSetID(m.opts.Host, name, created),
		Name:      name,
		Host:      m.opts.Host,
		CreatedAt: created,
		Status:    snapset.SetCreating,
		Profile:   opts.Profile,
		AutoGC:    opts.AutoGC,
	}

	// Space pre-checks for every member before any side effect.
	for i, vol := range vols {
		if err := backends[i].CheckCreate(ctx, vol, policy); err != nil {
			return nil, err
		}
	}

	// Create strictly in caller order so a failure has a well-defined
	// already-done prefix to unwind.
	for i, vol := range vols {
		handle, err := backends[i].Create(ctx, vol, name, created, policy)
		if err != nil {
			residual := m.unwindCreated(ctx, backends[:i], set.Snapshots)
			if i == 0 {
				return nil, err
			}
			return nil, &snapset.PartialFailureError{
				Op:       "create snapshot set " + name,
				Member:   vol.ID,
				Err:      err,
				Residual: residual,
			}
		}
		set.Snapshots = append(set.Snapshots, snapset.SnapshotRecord{
			ID:           snapset.NewSnapshotID(set.ID, vol.ID),
			SetID:        set.ID,
			VolumeID:     vol.ID,
			Backend:      backends[i].Name(),
			Origin:       vol.Source,
			OriginDevice: vol.DevicePath,
			MountPoint:   vol.MountPoint,
			Handle:       handle,
			Size:         vol.Size,
			CreatedAt:    created,
			Status:       snapset.SnapActive,
		})
	}

	if err := m.transition(&set, snapset.SetActive); err != nil {
		m.unwindCreated(ctx, backends, set.Snapshots)
		return nil, err
	}
	if err := m.store.Write(set); err != nil {
		// Metadata never made it to disk: the snapshots are unusable
		// without records, so unwind them too.
		residual := m.unwindCreated(ctx, backends, set.Snapshots)
		for _, r := range residual {
			m.log.Error("cleanup after failed metadata write", zap.Error(r))
		}
		return nil, fmt.Errorf("persist snapshot set %s: %w", name, err)
	}

	if !opts.NoBootEntry {
		changed := false
		if ref, err := m.bridge.CreateEntry(ctx, &set, opts.Profile); err != nil {
			// Non-fatal: the snapshots are sound without an entry.
			m.log.Warn("snapshot set created but boot entry creation failed",
				zap.String("snapset", name), zap.Error(err))
		} else {
			set.BootEntry = ref
			changed = true
		}
		if ref, err := m.bridge.CreateRollbackEntry(ctx, &set, opts.Profile); err != nil {
			m.log.Warn("snapshot set created but rollback boot entry creation failed",
				zap.String("snapset", name), zap.Error(err))
		} else {
			set.RollbackEntry = ref
			changed = true
		}
		if changed {
			if err := m.store.Write(set); err != nil {
				m.log.Warn("persist boot entry references", zap.String("snapset", name), zap.Error(err))
			}
		}
	}

	m.addToView(set)
	m.log.Info("created snapshot set",
		zap.String("snapset", name), zap.String("id", set.ID.String()),
		zap.Int("members", len(set.Snapshots)))
	result := set
	return &result, nil
}

// unwindCreated deletes the already-created prefix of a failed set, in
// reverse order. Failures are returned for the caller to record; they
// never mask the original creation error.
func (m *Manager) unwindCreated(ctx context.Context, backends []backend.Backend, records []snapset.SnapshotRecord) []error {
	var residual []error
	for i := len(records) - 1; i >= 0; i-- {
		if err := backends[i].Delete(ctx, records[i].Handle); err != nil {
			m.log.Error("rollback of partially created snapshot set failed for member",
				zap.String("member", records[i].VolumeID), zap.Error(err))
			residual = append(residual, fmt.Errorf("delete %s: %w", records[i].Handle.Name, err))
		}
	}
	return residual
}
