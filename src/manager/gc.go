package manager

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"snapset/src/snapset"
)

// ReclaimOrphans removes snapshot records whose owning set file is gone,
// freeing the backend storage they still reference. Orphans are the
// expected residue of a deletion interrupted between removing the set file
// and removing its member records. Returns the number of records reclaimed.
func (m *Manager) ReclaimOrphans(ctx context.Context) (int, error) {
	release, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	orphans, err := m.store.OrphanRecords()
	if err != nil {
		return 0, err
	}

	var errs error
	reclaimed := 0
	for _, rec := range orphans {
		if err := ctx.Err(); err != nil {
			return reclaimed, multierr.Append(errs, err)
		}
		if rec.Status != snapset.SnapDeleted {
			b, err := m.reg.Lookup(rec.Backend)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("orphan %s: %w", rec.ID, err))
				continue
			}
			if err := b.Delete(ctx, rec.Handle); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("orphan %s: delete snapshot: %w", rec.ID, err))
				continue
			}
		}
		if err := m.store.DeleteRecord(rec.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("orphan %s: remove record: %w", rec.ID, err))
			continue
		}
		m.log.Info("reclaimed orphan snapshot record",
			zap.Stringer("id", rec.ID),
			zap.String("volume", rec.VolumeID))
		reclaimed++
	}
	return reclaimed, errs
}
