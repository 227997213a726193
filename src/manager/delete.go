package manager

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"snapset/src/snapset"
)

// DeleteSet deletes a set's boot entry, member snapshots and records. Every
// step is idempotent, so the whole operation can be retried after a crash
// at any point; a missing set is success.
func (m *Manager) DeleteSet(ctx context.Context, id uuid.UUID) error {
	release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()

	set, ok := m.byID[id]
	if !ok {
		// Already gone (or never existed): deletion is idempotent.
		return nil
	}
	return m.deleteLocked(ctx, set)
}

// DeleteSets deletes every set matching the selection and returns how many
// were fully removed. Individual failures are accumulated, not fatal to
// the batch.
func (m *Manager) DeleteSets(ctx context.Context, sel snapset.Selection) (int, error) {
	release, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	matches := m.match(sel)
	if len(matches) == 0 {
		return 0, &snapset.NotFoundError{Kind: "snapshot sets matching", Name: sel.String()}
	}
	deleted := 0
	var errs error
	for _, id := range matches {
		set, ok := m.byID[id]
		if !ok {
			continue
		}
		if err := m.deleteLocked(ctx, set); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", set.Name, err))
			continue
		}
		deleted++
	}
	return deleted, errs
}

// deleteLocked runs the delete sequence for one set with the metadata lock
// held: boot entries first, then each member snapshot, then the persisted
// records. On member failures the set is left persisted (status deleting)
// so a retry can finish the job.
func (m *Manager) deleteLocked(ctx context.Context, set *snapset.SnapshotSet) error {
	if set.Status != snapset.SetDeleting {
		if err := m.transition(set, snapset.SetDeleting); err != nil {
			return err
		}
		if err := m.store.Write(*set); err != nil {
			return fmt.Errorf("mark set deleting: %w", err)
		}
	}

	var errs error

	if err := m.bridge.DeleteEntry(ctx, set.BootEntry); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete boot entry %s: %w", set.BootEntry, err))
	} else if set.BootEntry != "" {
		set.BootEntry = ""
		if err := m.store.Write(*set); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if err := m.bridge.DeleteEntry(ctx, set.RollbackEntry); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete rollback boot entry %s: %w", set.RollbackEntry, err))
	} else if set.RollbackEntry != "" {
		set.RollbackEntry = ""
		if err := m.store.Write(*set); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for i := range set.Snapshots {
		rec := &set.Snapshots[i]
		if rec.Status == snapset.SnapDeleted {
			continue
		}
		b, err := m.reg.Lookup(rec.Backend)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := b.Delete(ctx, rec.Handle); err != nil {
			m.log.Error("failed to delete snapshot set member",
				zap.String("snapset", set.Name), zap.String("member", rec.VolumeID), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("member %s: %w", rec.VolumeID, err))
			continue
		}
		rec.Status = snapset.SnapDeleted
	}

	if errs != nil {
		if werr := m.store.Write(*set); werr != nil {
			errs = multierr.Append(errs, werr)
		}
		return errs
	}

	if err := m.store.Delete(set.ID); err != nil {
		return err
	}
	m.removeFromView(set.ID)
	m.log.Info("deleted snapshot set", zap.String("snapset", set.Name))
	return nil
}
