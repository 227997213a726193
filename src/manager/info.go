package manager

import (
	"context"

	"snapset/src/backend"
	"snapset/src/snapset"
)

// MemberInfo pairs a persisted member record with the snapshot's live
// backend state. Err is set when the backend could not be queried; the
// record is still valid in that case.
type MemberInfo struct {
	Record snapset.SnapshotRecord
	Live   backend.Info
	Err    error
}

// SetInfo resolves a single-set selection and queries each member's
// backend for its current state. Backends without usage reporting yield
// a zero Live value.
func (m *Manager) SetInfo(ctx context.Context, sel snapset.Selection) (*snapset.SnapshotSet, []MemberInfo, error) {
	set, err := m.FindSet(sel)
	if err != nil {
		return nil, nil, err
	}
	infos := make([]MemberInfo, len(set.Snapshots))
	for i, rec := range set.Snapshots {
		infos[i] = MemberInfo{Record: rec}
		b, err := m.reg.Lookup(rec.Backend)
		if err != nil {
			infos[i].Err = err
			continue
		}
		inf, ok := b.(backend.Infoer)
		if !ok {
			continue
		}
		infos[i].Live, infos[i].Err = inf.Info(ctx, rec.Handle)
	}
	return set, infos, nil
}
