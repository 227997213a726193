package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/snapset"
)

// RenameSet renames a set, which renames every member snapshot through its
// backend because backend snapshot names encode the set name. On a member
// failure the already-renamed prefix is renamed back; restore failures are
// logged and the set is left partial.
func (m *Manager) RenameSet(ctx context.Context, oldName, newName string) (*snapset.SnapshotSet, error) {
	release, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	set, ok := m.byName[oldName]
	if !ok {
		return nil, &snapset.NotFoundError{Kind: "snapshot set", Name: oldName}
	}
	if err := m.validateNewName(newName); err != nil {
		return nil, err
	}

	renamers := make([]backend.Renamer, len(set.Snapshots))
	for i, rec := range set.Snapshots {
		b, err := m.reg.Lookup(rec.Backend)
		if err != nil {
			return nil, err
		}
		r, ok := b.(backend.Renamer)
		if !ok {
			return nil, &snapset.BackendError{
				Backend: rec.Backend,
				Op:      "rename",
				Err:     fmt.Errorf("backend does not support rename"),
			}
		}
		renamers[i] = r
	}

	newID := snapset.NewSetID(set.Host, newName, set.CreatedAt)
	renamed := snapset.SnapshotSet{
		ID:            newID,
		Name:          newName,
		Host:          set.Host,
		CreatedAt:     set.CreatedAt,
		Status:        set.Status,
		BootEntry:     set.BootEntry,
		RollbackEntry: set.RollbackEntry,
		Profile:       set.Profile,
		UnamePattern:  set.UnamePattern,
		AutoGC:        set.AutoGC,
	}

	for i, rec := range set.Snapshots {
		vol := snapset.Volume{
			ID:         rec.VolumeID,
			Source:     rec.Origin,
			MountPoint: rec.MountPoint,
		}
		handle, err := renamers[i].Rename(ctx, rec.Handle, vol, newName, set.CreatedAt)
		if err != nil {
			m.restoreRenamed(ctx, set, renamers[:i], renamed.Snapshots)
			return nil, fmt.Errorf("rename member %s: %w", rec.VolumeID, err)
		}
		rec.ID = snapset.NewSnapshotID(newID, rec.VolumeID)
		rec.SetID = newID
		rec.Handle = handle
		renamed.Snapshots = append(renamed.Snapshots, rec)
	}

	if err := m.store.Write(renamed); err != nil {
		return nil, fmt.Errorf("persist renamed set: %w", err)
	}
	if err := m.store.Delete(set.ID); err != nil {
		return nil, fmt.Errorf("remove old set record: %w", err)
	}
	m.removeFromView(set.ID)
	m.addToView(renamed)
	m.log.Info("renamed snapshot set", zap.String("from", oldName), zap.String("to", newName))
	result := renamed
	return &result, nil
}

// restoreRenamed renames the already-renamed prefix back to the old set
// name after a mid-rename failure.
func (m *Manager) restoreRenamed(ctx context.Context, set *snapset.SnapshotSet, renamers []backend.Renamer, newRecords []snapset.SnapshotRecord) {
	for i := len(newRecords) - 1; i >= 0; i-- {
		rec := newRecords[i]
		vol := snapset.Volume{ID: rec.VolumeID, Source: rec.Origin, MountPoint: rec.MountPoint}
		if _, err := renamers[i].Rename(ctx, rec.Handle, vol, set.Name, set.CreatedAt); err != nil {
			m.log.Error("failed to restore snapshot name after aborted rename",
				zap.String("member", rec.VolumeID), zap.Error(err))
		}
	}
}
