package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapset/src/snapset"
	"snapset/src/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return st
}

func sampleSet(name string, created time.Time) snapset.SnapshotSet {
	id := snapset.NewSetID("machine-1", name, created)
	set := snapset.SnapshotSet{
		ID:        id,
		Name:      name,
		Host:      "machine-1",
		CreatedAt: created,
		Status:    snapset.SetActive,
		Profile:   "generic",
	}
	for _, vol := range []struct{ id, mp string }{
		{"vg0/root", "/"},
		{"vg0/home", "/home"},
	} {
		set.Snapshots = append(set.Snapshots, snapset.SnapshotRecord{
			ID:         snapset.NewSnapshotID(id, vol.id),
			SetID:      id,
			VolumeID:   vol.id,
			Backend:    "lvm2-cow",
			Origin:     vol.id,
			MountPoint: vol.mp,
			Handle:     snapset.Handle{Name: vol.id + "-" + name, DevicePath: "/dev/" + vol.id},
			Size:       10 << 30,
			CreatedAt:  created,
			Status:     snapset.SnapActive,
		})
	}
	return set
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	st := newStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	set := sampleSet("nightly", created)
	require.NoError(t, st.Write(set))

	loaded, err := st.LoadAll()
	require.NoError(t, err)
	require.Empty(t, loaded.Skipped)
	require.Len(t, loaded.Sets, 1)
	require.Equal(t, set, loaded.Sets[0])
}

func TestLoadAll_SortsByCreationThenID(t *testing.T) {
	st := newStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.Write(sampleSet("newer", base.Add(time.Hour))))
	require.NoError(t, st.Write(sampleSet("older", base)))

	loaded, err := st.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Sets, 2)
	require.Equal(t, "older", loaded.Sets[0].Name)
	require.Equal(t, "newer", loaded.Sets[1].Name)
}

func TestLoadAll_SkipsCorruptSet(t *testing.T) {
	st := newStore(t)
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.Write(sampleSet("good", created)))
	require.NoError(t, os.WriteFile(
		filepath.Join(st.Root(), "sets", "broken.json"), []byte("{not json"), 0o644))

	loaded, err := st.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Sets, 1)
	require.Equal(t, "good", loaded.Sets[0].Name)
	require.Len(t, loaded.Skipped, 1)
	var corrupt *snapset.CorruptRecordError
	require.ErrorAs(t, loaded.Skipped[0], &corrupt)
}

func TestLoadAll_MissingMemberRecordCorruptsSet(t *testing.T) {
	st := newStore(t)
	set := sampleSet("nightly", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.Write(set))
	require.NoError(t, st.DeleteRecord(set.Snapshots[1].ID))

	loaded, err := st.LoadAll()
	require.NoError(t, err)
	require.Empty(t, loaded.Sets)
	require.Len(t, loaded.Skipped, 1)
}

func TestDelete_Idempotent(t *testing.T) {
	st := newStore(t)
	set := sampleSet("nightly", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.Write(set))

	require.NoError(t, st.Delete(set.ID))
	require.NoError(t, st.Delete(set.ID))

	loaded, err := st.LoadAll()
	require.NoError(t, err)
	require.Empty(t, loaded.Sets)

	orphans, err := st.OrphanRecords()
	require.NoError(t, err)
	require.Empty(t, orphans)
}

func TestDelete_FinishesInterruptedDeletion(t *testing.T) {
	st := newStore(t)
	set := sampleSet("nightly", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.Write(set))

	// Simulate a crash between the two phases: set file gone, records left.
	require.NoError(t, os.Remove(filepath.Join(st.Root(), "sets", set.ID.String()+".json")))

	orphans, err := st.OrphanRecords()
	require.NoError(t, err)
	require.Len(t, orphans, 2)

	// A retried Delete finds the members by scanning and removes them.
	require.NoError(t, st.Delete(set.ID))
	orphans, err = st.OrphanRecords()
	require.NoError(t, err)
	require.Empty(t, orphans)
}

func TestOrphanRecords_IgnoresOwnedRecords(t *testing.T) {
	st := newStore(t)
	owned := sampleSet("owned", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.Write(owned))

	orphans, err := st.OrphanRecords()
	require.NoError(t, err)
	require.Empty(t, orphans)
}
