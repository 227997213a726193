package manager_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/manager"
	"snapset/src/snapset"
	"snapset/src/store"
)

type fakeBridge struct {
	nextID    int
	entries   map[string]string // ref -> set name
	deleted   []string
	createErr error
	deleteErr error
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{entries: map[string]string{}}
}

func (f *fakeBridge) CreateEntry(_ context.Context, set *snapset.SnapshotSet, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	ref := fmt.Sprintf("entry-%d", f.nextID)
	f.entries[ref] = set.Name
	return ref, nil
}

func (f *fakeBridge) CreateRollbackEntry(_ context.Context, set *snapset.SnapshotSet, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	ref := fmt.Sprintf("rollback-%d", f.nextID)
	f.entries[ref] = set.Name
	return ref, nil
}

func (f *fakeBridge) DeleteEntry(_ context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.entries, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

type fixture struct {
	st     *store.Store
	fake   *backend.Fake
	bridge *fakeBridge
	mgr    *manager.Manager
	now    time.Time
}

func newFixture(t *testing.T, opts ...func(*manager.Options)) *fixture {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	fake := backend.NewFake("fake", "vg0/root", "vg0/home", "vg0/srv")
	bridge := newFakeBridge()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mopts := manager.Options{
		Host:  "machine-1",
		Clock: func() time.Time { return now },
	}
	for _, o := range opts {
		o(&mopts)
	}
	mgr, err := manager.New(st, backend.NewRegistry(fake), bridge, zap.NewNop(), mopts)
	require.NoError(t, err)
	return &fixture{st: st, fake: fake, bridge: bridge, mgr: mgr, now: now}
}

func vols(ids ...string) []snapset.Volume {
	out := make([]snapset.Volume, len(ids))
	for i, id := range ids {
		mp := "/"
		if i > 0 {
			mp = "/" + id[4:] // "vg0/home" -> "/home"
		}
		out[i] = snapset.Volume{ID: id, Source: id, MountPoint: mp, Size: 10 << 30}
	}
	return out
}

func TestCreateSet_AllMembersActive(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, snapset.SetActive, set.EffectiveStatus())
	require.Len(t, set.Snapshots, 2)
	for _, rec := range set.Snapshots {
		require.Equal(t, snapset.SnapActive, rec.Status)
	}
	require.NotEmpty(t, set.BootEntry)
	require.NotEmpty(t, set.RollbackEntry)
	require.NotEqual(t, set.BootEntry, set.RollbackEntry)

	// Survives a fresh load from disk.
	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Sets, 1)
	require.Equal(t, *set, loaded.Sets[0])
}

func TestCreateSet_MemberFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.fake.CreateErr["vg0/home"] = errors.New("lvcreate failed")

	_, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	var partial *snapset.PartialFailureError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, "vg0/home", partial.Member)

	// The first member's snapshot was deleted during unwind.
	require.Empty(t, f.fake.Created)
	require.Len(t, f.fake.Deleted, 1)

	// The store carries no trace of the aborted set.
	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Empty(t, loaded.Sets)
	orphans, err := f.st.OrphanRecords()
	require.NoError(t, err)
	require.Empty(t, orphans)
}

func TestCreateSet_FirstMemberFailureReturnsOriginal(t *testing.T) {
	f := newFixture(t)
	cause := &snapset.CapacityError{Backend: "fake", Volume: "vg0/root", Needed: 100, Free: 10}
	f.fake.CreateErr["vg0/root"] = cause

	_, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	var partial *snapset.PartialFailureError
	require.False(t, errors.As(err, &partial), "no member succeeded, error should not be partial")
	var cap *snapset.CapacityError
	require.ErrorAs(t, err, &cap)
}

func TestCreateSet_PrecheckFailureIsSideEffectFree(t *testing.T) {
	f := newFixture(t)
	f.fake.CheckErr["vg0/home"] = &snapset.CapacityError{Backend: "fake", Volume: "vg0/home", Needed: 100, Free: 10}

	_, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	var cap *snapset.CapacityError
	require.ErrorAs(t, err, &cap)
	require.Empty(t, f.fake.Created, "no snapshot may exist after a failed pre-check")
}

func TestCreateSet_DuplicateNameRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	_, err = f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/home"), manager.CreateOptions{NoBootEntry: true})
	var inv *snapset.InvalidNameError
	require.ErrorAs(t, err, &inv)
}

func TestCreateSet_BootEntryFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.bridge.createErr = errors.New("boom unavailable")

	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root"), manager.CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, snapset.SetActive, set.EffectiveStatus())
	require.Empty(t, set.BootEntry)
	require.Empty(t, set.RollbackEntry)
}

func TestDeleteSet_RemovesEverything(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, f.mgr.DeleteSet(context.Background(), set.ID))

	require.Empty(t, f.fake.Created)
	require.Contains(t, f.bridge.deleted, set.BootEntry)
	require.Contains(t, f.bridge.deleted, set.RollbackEntry)
	require.Empty(t, f.bridge.entries)
	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Empty(t, loaded.Sets)
}

func TestDeleteSet_Idempotent(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	require.NoError(t, f.mgr.DeleteSet(context.Background(), set.ID))
	require.NoError(t, f.mgr.DeleteSet(context.Background(), set.ID))
}

func TestDeleteSet_MemberFailureLeavesRetryableState(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	stuck := set.Snapshots[1].Handle.Name
	f.fake.DeleteErr[stuck] = errors.New("device busy")
	require.Error(t, f.mgr.DeleteSet(context.Background(), set.ID))

	// The set survives, marked deleting, with the failed member intact.
	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Sets, 1)
	require.Equal(t, snapset.SetDeleting, loaded.Sets[0].Status)

	// Retry once the member is deletable.
	delete(f.fake.DeleteErr, stuck)
	require.NoError(t, f.mgr.DeleteSet(context.Background(), set.ID))
	loaded, err = f.st.LoadAll()
	require.NoError(t, err)
	require.Empty(t, loaded.Sets)
}

func TestRevertSet_Pending(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home", "vg0/srv"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	require.NoError(t, f.mgr.RevertSet(context.Background(), set.ID))
	require.Len(t, f.fake.Reverted, 3)

	// Without automatic cleanup the set stays listed as reverted.
	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Sets, 1)
	require.Equal(t, snapset.SetReverted, loaded.Sets[0].Status)
	for _, rec := range loaded.Sets[0].Snapshots {
		require.Equal(t, snapset.SnapDeleted, rec.Status)
	}
}

func TestRevertSet_AutoCleanup(t *testing.T) {
	f := newFixture(t, func(o *manager.Options) { o.AutoCleanupRevert = true })
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root"), manager.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, f.mgr.RevertSet(context.Background(), set.ID))

	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Empty(t, loaded.Sets)
	require.Contains(t, f.bridge.deleted, set.BootEntry)
}

func TestRevertSet_MemberFailureMarksPartial(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	f.fake.RevertErr[set.Snapshots[1].Handle.Name] = errors.New("merge refused")
	err = f.mgr.RevertSet(context.Background(), set.ID)
	var partial *snapset.PartialFailureError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, "vg0/home", partial.Member)

	loaded, lerr := f.st.LoadAll()
	require.NoError(t, lerr)
	require.Len(t, loaded.Sets, 1)
	require.Equal(t, snapset.SetPartial, loaded.Sets[0].EffectiveStatus())
}

func TestRevertSet_BusyOriginAbortsBeforeAnyMerge(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	f.fake.Busy[set.Snapshots[0].Handle.Name] = true
	err = f.mgr.RevertSet(context.Background(), set.ID)
	require.Error(t, err)
	var busy *snapset.BusyError
	require.ErrorAs(t, err, &busy)
	require.Empty(t, f.fake.Reverted)
}

func TestRevertSet_UnsupportedBackendRejected(t *testing.T) {
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	fake := backend.NewFake("fake", "vg0/root")
	reg := backend.NewRegistry(fake.WithoutRevert())
	mgr, err := manager.New(st, reg, newFakeBridge(), zap.NewNop(), manager.Options{Host: "machine-1"})
	require.NoError(t, err)

	set, err := mgr.CreateSet(context.Background(), "nightly", vols("vg0/root"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	err = mgr.RevertSet(context.Background(), set.ID)
	var be *snapset.BackendError
	require.ErrorAs(t, err, &be)
	require.Empty(t, fake.Reverted)

	// The set is untouched.
	loaded, err := st.LoadAll()
	require.NoError(t, err)
	require.Equal(t, snapset.SetActive, loaded.Sets[0].EffectiveStatus())
}

func TestRenameSet(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	renamed, err := f.mgr.RenameSet(context.Background(), "nightly", "pre-upgrade")
	require.NoError(t, err)
	require.Equal(t, "pre-upgrade", renamed.Name)
	require.NotEqual(t, set.ID, renamed.ID)
	require.Equal(t, set.CreatedAt, renamed.CreatedAt)
	for _, rec := range renamed.Snapshots {
		require.Equal(t, renamed.ID, rec.SetID)
		require.Contains(t, rec.Handle.Name, "pre-upgrade")
	}

	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Sets, 1)
	require.Equal(t, "pre-upgrade", loaded.Sets[0].Name)

	_, err = f.mgr.FindSet(snapset.Selection{Name: "nightly"})
	var nf *snapset.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRenameSet_MemberFailureRestoresPrefix(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	f.fake.RenameErr[set.Snapshots[1].Handle.Name] = errors.New("lvrename failed")
	_, err = f.mgr.RenameSet(context.Background(), "nightly", "pre-upgrade")
	require.Error(t, err)

	// The original set is still intact under its old name.
	got, err := f.mgr.FindSet(snapset.Selection{Name: "nightly"})
	require.NoError(t, err)
	require.Equal(t, set.ID, got.ID)
}

func TestListSets_SelectionFilters(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.CreateSet(context.Background(), "with-root", vols("vg0/root"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)
	_, err = f.mgr.CreateSet(context.Background(), "home-only",
		[]snapset.Volume{{ID: "vg0/home", Source: "vg0/home", MountPoint: "/home", Size: 10 << 30}},
		manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	all, err := f.mgr.Sets(snapset.Selection{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	rooted, err := f.mgr.Sets(snapset.Selection{MountPoint: "/"})
	require.NoError(t, err)
	require.Len(t, rooted, 1)
	require.Equal(t, "with-root", rooted[0].Name)

	seq, err := f.mgr.ListSets(snapset.Selection{Name: "home-only"})
	require.NoError(t, err)
	count := 0
	for set := range seq {
		require.Equal(t, "home-only", set.Name)
		count++
	}
	require.Equal(t, 1, count)
}

func TestDeleteSets_NoMatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.DeleteSets(context.Background(), snapset.Selection{Name: "absent"})
	var nf *snapset.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestActivate_CountsSets(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	n, err := f.mgr.Activate(context.Background(), snapset.Selection{Name: "nightly"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	for _, rec := range set.Snapshots {
		require.True(t, f.fake.Activated[rec.Handle.Name])
	}

	n, err = f.mgr.SetAutoactivate(context.Background(), snapset.Selection{Name: "nightly"}, true)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	for _, rec := range set.Snapshots {
		require.True(t, f.fake.AutoAct[rec.Handle.Name])
	}
}

func TestReclaimOrphans(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root", "vg0/home"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	// Simulate a deletion interrupted between the two phases: the set file
	// is gone but the member records and their snapshots survive.
	require.NoError(t, os.Remove(filepath.Join(f.st.Root(), "sets", set.ID.String()+".json")))

	n, err := f.mgr.ReclaimOrphans(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Snapshot storage was freed and the record files removed.
	require.Empty(t, f.fake.Created)
	orphans, err := f.st.OrphanRecords()
	require.NoError(t, err)
	require.Empty(t, orphans)
}

func TestReclaimOrphans_NothingToDo(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	n, err := f.mgr.ReclaimOrphans(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteSet_RefusesIllegalStatusTransition(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	// A stored status with no path to deleting stays put.
	stored := *set
	stored.Status = snapset.SetCreating
	require.NoError(t, f.st.Write(stored))

	err = f.mgr.DeleteSet(context.Background(), set.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot move")
	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Sets, 1)
}

func TestDeleteSet_CleansUpCrashedRevert(t *testing.T) {
	f := newFixture(t)
	set, err := f.mgr.CreateSet(context.Background(), "nightly", vols("vg0/root"), manager.CreateOptions{NoBootEntry: true})
	require.NoError(t, err)

	// A crash mid-revert leaves the set stored as reverting; deletion is the
	// only way out.
	stored := *set
	stored.Status = snapset.SetReverting
	require.NoError(t, f.st.Write(stored))

	require.NoError(t, f.mgr.DeleteSet(context.Background(), set.ID))
	loaded, err := f.st.LoadAll()
	require.NoError(t, err)
	require.Empty(t, loaded.Sets)
}
