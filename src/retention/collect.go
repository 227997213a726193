package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"snapset/src/snapset"
)

// Deleter is the slice of the engine the collector drives.
type Deleter interface {
	DeleteSet(ctx context.Context, id uuid.UUID) error
	ReclaimOrphans(ctx context.Context) (int, error)
}

// Report summarizes one collection pass.
type Report struct {
	Evaluated int
	Deleted   []snapset.SnapshotSet
	Failed    []snapset.SnapshotSet
	Orphans   int
}

// Collector applies a Policy to the current set inventory and deletes
// whatever it selects, continuing past per-set failures.
type Collector struct {
	Policy  Policy
	Deleter Deleter
	Log     *zap.Logger
}

// Collect evaluates the policy over sets and deletes the selection through
// the engine, one set per transaction. A failure to delete one set does not
// stop the pass; all failures are accumulated into the returned error.
// Orphaned member records left over from interrupted deletions are
// reclaimed at the end of every pass, even when the policy selects nothing.
func (c *Collector) Collect(ctx context.Context, sets []snapset.SnapshotSet, now time.Time) (Report, error) {
	victims := Evaluate(c.Policy, sets, now)
	rep := Report{Evaluated: len(sets)}

	var errs error
	for _, set := range victims {
		if err := ctx.Err(); err != nil {
			return rep, multierr.Append(errs, err)
		}
		if err := c.Deleter.DeleteSet(ctx, set.ID); err != nil {
			c.Log.Warn("retention delete failed",
				zap.String("set", set.Name),
				zap.Stringer("id", set.ID),
				zap.Error(err))
			rep.Failed = append(rep.Failed, set)
			errs = multierr.Append(errs, fmt.Errorf("delete set %q: %w", set.Name, err))
			continue
		}
		c.Log.Info("retention deleted set",
			zap.String("set", set.Name),
			zap.Stringer("id", set.ID),
			zap.Time("created_at", set.CreatedAt))
		rep.Deleted = append(rep.Deleted, set)
	}

	n, err := c.Deleter.ReclaimOrphans(ctx)
	rep.Orphans = n
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reclaim orphan records: %w", err))
	}
	return rep, errs
}
