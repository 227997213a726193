package manager

import (
	"iter"

	"github.com/google/uuid"

	"snapset/src/snapset"
)

// ListSets returns a lazy sequence of the sets matching the selection.
// Filter predicates are applied during iteration; the sequence is ordered
// by creation timestamp ascending, ties by set ID.
func (m *Manager) ListSets(sel snapset.Selection) (iter.Seq[snapset.SnapshotSet], error) {
	if err := m.Refresh(); err != nil {
		return nil, err
	}
	now := m.opts.Clock()
	sets := m.sets
	return func(yield func(snapset.SnapshotSet) bool) {
		for _, set := range sets {
			if !sel.Matches(set, now) {
				continue
			}
			if !yield(set) {
				return
			}
		}
	}, nil
}

// Sets returns the matching sets as a slice, for callers that need the
// whole result.
func (m *Manager) Sets(sel snapset.Selection) ([]snapset.SnapshotSet, error) {
	seq, err := m.ListSets(sel)
	if err != nil {
		return nil, err
	}
	var out []snapset.SnapshotSet
	for set := range seq {
		out = append(out, set)
	}
	return out, nil
}

// FindSet resolves a single-set selection (name or UUID) to a set.
func (m *Manager) FindSet(sel snapset.Selection) (*snapset.SnapshotSet, error) {
	if !sel.IsSingle() {
		return nil, &snapset.NotFoundError{Kind: "snapshot set", Name: sel.String()}
	}
	if err := m.Refresh(); err != nil {
		return nil, err
	}
	if sel.UUID != uuid.Nil {
		if set, ok := m.byID[sel.UUID]; ok {
			result := *set
			return &result, nil
		}
		return nil, &snapset.NotFoundError{Kind: "snapshot set", Name: sel.UUID.String()}
	}
	if set, ok := m.byName[sel.Name]; ok {
		result := *set
		return &result, nil
	}
	return nil, &snapset.NotFoundError{Kind: "snapshot set", Name: sel.Name}
}

// match returns the IDs of sets matching a selection, against the current
// view. Callers must hold the lock if they intend to mutate.
func (m *Manager) match(sel snapset.Selection) []uuid.UUID {
	now := m.opts.Clock()
	var ids []uuid.UUID
	for i := range m.sets {
		if sel.Matches(m.sets[i], now) {
			ids = append(ids, m.sets[i].ID)
		}
	}
	return ids
}
