// Package retention evaluates expiry policy over existing snapshot sets
// and drives their removal through the engine's delete path.
package retention

import (
	"sort"
	"time"

	"snapset/src/snapset"
)

// Policy selects snapshot sets for deletion. The zero value selects
// nothing.
type Policy struct {
	// MaxAge marks sets older than this for deletion; 0 disables.
	MaxAge time.Duration
	// MaxPerProfile keeps at most this many sets per profile, evicting
	// the oldest; 0 disables.
	MaxPerProfile int
	// AutoGCOnly restricts evaluation to sets tagged for automatic GC.
	AutoGCOnly bool
}

// Evaluate returns the sets the policy marks for deletion, oldest first
// with ties broken by set ID ascending. It is a pure function of its
// inputs: it never mutates state and the same inputs always produce the
// same selection in the same order.
//
// Only active sets are eligible. Partial sets need operator attention and
// are never reclaimed automatically; reverted sets are already pending
// deletion through the revert path.
func Evaluate(pol Policy, sets []snapset.SnapshotSet, now time.Time) []snapset.SnapshotSet {
	var eligible []snapset.SnapshotSet
	for _, set := range sets {
		if set.EffectiveStatus() != snapset.SetActive {
			continue
		}
		if pol.AutoGCOnly && !set.AutoGC {
			continue
		}
		eligible = append(eligible, set)
	}
	sortSets(eligible)

	selected := map[string]snapset.SnapshotSet{}

	if pol.MaxAge > 0 {
		cutoff := now.Add(-pol.MaxAge)
		for _, set := range eligible {
			if set.CreatedAt.Before(cutoff) {
				selected[set.ID.String()] = set
			}
		}
	}

	if pol.MaxPerProfile > 0 {
		byProfile := map[string][]snapset.SnapshotSet{}
		for _, set := range eligible {
			byProfile[set.Profile] = append(byProfile[set.Profile], set)
		}
		for _, group := range byProfile {
			// group is already oldest-first; evict the surplus head.
			if excess := len(group) - pol.MaxPerProfile; excess > 0 {
				for _, set := range group[:excess] {
					selected[set.ID.String()] = set
				}
			}
		}
	}

	out := make([]snapset.SnapshotSet, 0, len(selected))
	for _, set := range selected {
		out = append(out, set)
	}
	sortSets(out)
	return out
}

// sortSets orders by creation timestamp ascending, ties by set ID, so
// eviction order is reproducible across runs.
func sortSets(sets []snapset.SnapshotSet) {
	sort.Slice(sets, func(i, j int) bool {
		a, b := sets[i], sets[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
