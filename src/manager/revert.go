package manager

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/snapset"
)

// RevertSet rolls every member volume back to its snapshot content, in
// member order. Reverts are physically irreversible, so a member failure
// aborts without touching the remaining members and marks the set partial
// for operator intervention. A fully reverted set is logically consumed:
// it is deleted immediately when AutoCleanupRevert is set, and otherwise
// remains listed as reverted pending deletion.
func (m *Manager) RevertSet(ctx context.Context, id uuid.UUID) error {
	release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()

	set, ok := m.byID[id]
	if !ok {
		return &snapset.NotFoundError{Kind: "snapshot set", Name: id.String()}
	}
	if status := set.EffectiveStatus(); status != snapset.SetActive {
		return fmt.Errorf("cannot revert snapshot set %s in %s state", set.Name, status)
	}

	// Every member backend must support revert before anything starts.
	reverters := make([]backend.Reverter, len(set.Snapshots))
	for i, rec := range set.Snapshots {
		b, err := m.reg.Lookup(rec.Backend)
		if err != nil {
			return err
		}
		r, ok := b.(backend.Reverter)
		if !ok {
			return &snapset.BackendError{
				Backend: rec.Backend,
				Op:      "revert",
				Err:     fmt.Errorf("backend does not support revert"),
			}
		}
		reverters[i] = r
	}

	if err := m.transition(set, snapset.SetReverting); err != nil {
		return err
	}
	for i := range set.Snapshots {
		set.Snapshots[i].Status = snapset.SnapReverting
	}
	if err := m.store.Write(*set); err != nil {
		return fmt.Errorf("mark set reverting: %w", err)
	}

	for i := range set.Snapshots {
		rec := &set.Snapshots[i]
		if err := reverters[i].Revert(ctx, rec.Handle); err != nil {
			rec.Status = snapset.SnapError
			if terr := m.transition(set, snapset.SetPartial); terr != nil {
				m.log.Error("mark set partial", zap.Error(terr))
			}
			if werr := m.store.Write(*set); werr != nil {
				m.log.Error("persist partial revert state", zap.Error(werr))
			}
			return &snapset.PartialFailureError{
				Op:     "revert snapshot set " + set.Name,
				Member: rec.VolumeID,
				Err:    err,
			}
		}
		// The merge consumes the snapshot storage.
		rec.Status = snapset.SnapDeleted
	}

	if err := m.transition(set, snapset.SetReverted); err != nil {
		return err
	}
	if err := m.store.Write(*set); err != nil {
		return fmt.Errorf("persist reverted state: %w", err)
	}
	m.log.Info("reverted snapshot set", zap.String("snapset", set.Name))

	if m.opts.AutoCleanupRevert {
		if err := m.deleteLocked(ctx, set); err != nil {
			m.log.Warn("cleanup of reverted snapshot set failed; it remains pending deletion",
				zap.String("snapset", set.Name), zap.Error(err))
		}
	}
	return nil
}
