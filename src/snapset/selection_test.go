package snapset_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"snapset/src/snapset"
)

func TestParseIdentifier_UUID(t *testing.T) {
	id := uuid.MustParse("7c9d2c3e-5a41-4f8a-9b1d-30c2a8f06e17")
	sel := snapset.ParseIdentifier(id.String())
	if sel.UUID != id || sel.Name != "" {
		t.Fatalf("ParseIdentifier(uuid) = %+v", sel)
	}
}

func TestParseIdentifier_Name(t *testing.T) {
	sel := snapset.ParseIdentifier("nightly")
	if sel.Name != "nightly" || sel.UUID != uuid.Nil {
		t.Fatalf("ParseIdentifier(name) = %+v", sel)
	}
}

func TestSelection_Matches(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	set := snapset.SnapshotSet{
		ID:        uuid.MustParse("e4f0b7a2-8d65-4c09-a3be-51d79e4c2b88"),
		Name:      "nightly",
		Profile:   "generic",
		CreatedAt: now.Add(-48 * time.Hour),
		Status:    snapset.SetActive,
		Snapshots: []snapset.SnapshotRecord{
			{VolumeID: "vg0/root", MountPoint: "/", Status: snapset.SnapActive},
		},
	}

	cases := []struct {
		name string
		sel  snapset.Selection
		want bool
	}{
		{"null matches", snapset.Selection{}, true},
		{"name match", snapset.Selection{Name: "nightly"}, true},
		{"name mismatch", snapset.Selection{Name: "weekly"}, false},
		{"uuid match", snapset.Selection{UUID: set.ID}, true},
		{"profile match", snapset.Selection{Profile: "generic"}, true},
		{"min age satisfied", snapset.Selection{MinAge: 24 * time.Hour}, true},
		{"min age too young", snapset.Selection{MinAge: 72 * time.Hour}, false},
		{"mount point match", snapset.Selection{MountPoint: "/"}, true},
		{"mount point mismatch", snapset.Selection{MountPoint: "/home"}, false},
		{"status match", snapset.Selection{Status: snapset.SetActive}, true},
		{"status mismatch", snapset.Selection{Status: snapset.SetPartial}, false},
	}
	for _, c := range cases {
		if got := c.sel.Matches(set, now); got != c.want {
			t.Fatalf("%s: Matches = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSelection_IsSingle(t *testing.T) {
	if (snapset.Selection{}).IsSingle() {
		t.Fatalf("null selection reported single")
	}
	if !(snapset.Selection{Name: "nightly"}).IsSingle() {
		t.Fatalf("name selection not reported single")
	}
	if (snapset.Selection{MinAge: time.Hour}).IsSingle() {
		t.Fatalf("min-age selection reported single")
	}
}
