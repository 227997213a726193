package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/snapset"
)

// ResizeSet grows the snapshot storage of every member of the matching
// sets to the given policy. Every member backend must support resizing;
// the check runs before any member is touched.
func (m *Manager) ResizeSet(ctx context.Context, sel snapset.Selection, policy backend.SizePolicy) (int, error) {
	release, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	matches := m.match(sel)
	if len(matches) == 0 {
		return 0, &snapset.NotFoundError{Kind: "snapshot sets matching", Name: sel.String()}
	}

	resized := 0
	for _, id := range matches {
		set := m.byID[id]

		resizers := make([]backend.Resizer, len(set.Snapshots))
		for i, rec := range set.Snapshots {
			b, err := m.reg.Lookup(rec.Backend)
			if err != nil {
				return resized, err
			}
			r, ok := b.(backend.Resizer)
			if !ok {
				return resized, &snapset.BackendError{
					Backend: rec.Backend,
					Op:      "resize",
					Err:     fmt.Errorf("backend does not support resize"),
				}
			}
			resizers[i] = r
		}

		for i, rec := range set.Snapshots {
			if err := resizers[i].Resize(ctx, rec.Handle, policy, rec.Size); err != nil {
				return resized, fmt.Errorf("resize member %s of %s: %w", rec.VolumeID, set.Name, err)
			}
		}
		m.log.Info("resized snapshot set",
			zap.String("snapset", set.Name), zap.String("policy", policy.String()))
		resized++
	}
	return resized, nil
}
