package manager

import (
	"context"

	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/snapset"
)

// Activate activates every member of the sets matching the selection.
// Member failures are logged, not fatal: snapshot activation is best
// effort across a set.
func (m *Manager) Activate(ctx context.Context, sel snapset.Selection) (int, error) {
	return m.forEachMember(sel, "activate", func(a backend.Activator, h snapset.Handle) error {
		return a.Activate(ctx, h)
	})
}

// Deactivate deactivates every member of the matching sets.
func (m *Manager) Deactivate(ctx context.Context, sel snapset.Selection) (int, error) {
	return m.forEachMember(sel, "deactivate", func(a backend.Activator, h snapset.Handle) error {
		return a.Deactivate(ctx, h)
	})
}

// SetAutoactivate sets the autoactivation state for every member of the
// matching sets. Members must autoactivate for a snapshot boot entry to
// come up with all volumes present.
func (m *Manager) SetAutoactivate(ctx context.Context, sel snapset.Selection, auto bool) (int, error) {
	return m.forEachMember(sel, "set autoactivation", func(a backend.Activator, h snapset.Handle) error {
		return a.SetAutoactivate(ctx, h, auto)
	})
}

func (m *Manager) forEachMember(sel snapset.Selection, op string, f func(backend.Activator, snapset.Handle) error) (int, error) {
	release, err := m.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	matches := m.match(sel)
	if len(matches) == 0 {
		return 0, &snapset.NotFoundError{Kind: "snapshot sets matching", Name: sel.String()}
	}
	changed := 0
	for _, id := range matches {
		set := m.byID[id]
		for _, rec := range set.Snapshots {
			b, err := m.reg.Lookup(rec.Backend)
			if err != nil {
				m.log.Error("unknown backend for member", zap.String("member", rec.VolumeID), zap.Error(err))
				continue
			}
			a, ok := b.(backend.Activator)
			if !ok {
				m.log.Debug("backend does not support activation control",
					zap.String("backend", rec.Backend))
				continue
			}
			if err := f(a, rec.Handle); err != nil {
				m.log.Error("failed to "+op+" snapshot set member",
					zap.String("snapset", set.Name), zap.String("member", rec.VolumeID), zap.Error(err))
			}
		}
		changed++
	}
	return changed, nil
}
