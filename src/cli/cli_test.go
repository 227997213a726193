package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/boot"
	"snapset/src/config"
	"snapset/src/manager"
	"snapset/src/store"
)

// testEnv wires a real engine over a temp store, a fake backend and a fake
// boot-entry manager, bypassing buildEnv entirely.
func testEnv(t *testing.T) (*env, *backend.Fake) {
	t.Helper()
	log := zap.NewNop()
	st, err := store.New(t.TempDir(), log)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	fake := backend.NewFake("fake", "vg0/root", "vg0/home")
	reg := backend.NewRegistry(fake)

	bridge := boot.NewBridge(st, boot.NewFakeManager(), log, "")
	bridge.Uname = func() (string, error) { return "6.8.0-test", nil }
	bridge.MachineID = func() (string, error) { return "machine-test", nil }

	policy, err := backend.ParseSizePolicy("20%")
	if err != nil {
		t.Fatalf("ParseSizePolicy: %v", err)
	}
	mgr, err := manager.New(st, reg, bridge, log, manager.Options{
		Host:              "machine-test",
		DefaultSizePolicy: policy,
	})
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	return &env{cfg: config.Default(), log: log, st: st, mgr: mgr}, fake
}

// run executes the command tree against a prepared env and returns the
// captured stdout, stderr and error.
func run(t *testing.T, e *env, args ...string) (string, string, error) {
	t.Helper()
	orig := buildEnvFunc
	buildEnvFunc = func(*cobra.Command) (*env, error) { return e, nil }
	t.Cleanup(func() { buildEnvFunc = orig })

	var stdout, stderr bytes.Buffer
	root := NewRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCmd(t *testing.T) {
	e, _ := testEnv(t)
	out, _, err := run(t, e, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatalf("version printed nothing")
	}
}

func TestCreate_Success(t *testing.T) {
	e, fake := testEnv(t)
	out, _, err := run(t, e, "create", "nightly", "vg0/root@/", "vg0/home@/home", "--no-boot-entry")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "Created snapshot set nightly") {
		t.Fatalf("output = %q", out)
	}
	if len(fake.Created) != 2 {
		t.Fatalf("created %d snapshots, want 2", len(fake.Created))
	}
}

func TestCreate_DryRunMakesNoChanges(t *testing.T) {
	e, fake := testEnv(t)
	out, _, err := run(t, e, "--dry-run", "create", "nightly", "vg0/root@/")
	if err != nil {
		t.Fatalf("create --dry-run: %v", err)
	}
	if !strings.Contains(out, "Would create") || !strings.Contains(out, "vg0/root@/") {
		t.Fatalf("output = %q", out)
	}
	if len(fake.Created) != 0 {
		t.Fatalf("dry run created snapshots: %v", fake.Created)
	}
}

func TestCreate_UsageErrors(t *testing.T) {
	e, _ := testEnv(t)

	_, _, err := run(t, e, "create", "nightly")
	var ue *usageError
	if !errors.As(err, &ue) {
		t.Fatalf("missing volumes: got %v, want usage error", err)
	}

	_, _, err = run(t, e, "create", "nightly", "vg0/root@relative")
	if !errors.As(err, &ue) {
		t.Fatalf("relative mount point: got %v, want usage error", err)
	}
}

func TestList_TableAndJSON(t *testing.T) {
	e, _ := testEnv(t)
	for _, name := range []string{"alpha", "beta"} {
		if _, _, err := run(t, e, "create", name, "vg0/root@/", "--no-boot-entry"); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	out, _, err := run(t, e, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "alpha") || !strings.Contains(out, "beta") {
		t.Fatalf("table output = %q", out)
	}

	out, _, err = run(t, e, "list", "--output", "json")
	if err != nil {
		t.Fatalf("list --output json: %v", err)
	}
	var listed []map[string]any
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("json output did not parse: %v\n%s", err, out)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d sets, want 2", len(listed))
	}

	_, _, err = run(t, e, "list", "--output", "xml")
	var ue *usageError
	if !errors.As(err, &ue) {
		t.Fatalf("unsupported output: got %v, want usage error", err)
	}
}

func TestDelete_RequiresSelector(t *testing.T) {
	e, _ := testEnv(t)
	_, _, err := run(t, e, "delete")
	var ue *usageError
	if !errors.As(err, &ue) {
		t.Fatalf("got %v, want usage error", err)
	}
}

func TestDelete_Confirmed(t *testing.T) {
	e, fake := testEnv(t)
	if _, _, err := run(t, e, "create", "nightly", "vg0/root@/", "--no-boot-entry"); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, _, err := run(t, e, "delete", "nightly", "-y")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Deleted 1 snapshot set(s)") {
		t.Fatalf("output = %q", out)
	}
	if len(fake.Created) != 0 {
		t.Fatalf("snapshots survive deletion: %v", fake.Created)
	}
}

func TestDelete_DryRunKeepsSet(t *testing.T) {
	e, fake := testEnv(t)
	if _, _, err := run(t, e, "create", "nightly", "vg0/root@/", "--no-boot-entry"); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, _, err := run(t, e, "--dry-run", "delete", "nightly")
	if err != nil {
		t.Fatalf("delete --dry-run: %v", err)
	}
	if !strings.Contains(out, "nightly") {
		t.Fatalf("preview missing victim: %q", out)
	}
	if len(fake.Created) != 1 {
		t.Fatalf("dry run deleted snapshots: %v", fake.Created)
	}
}

func TestRename(t *testing.T) {
	e, _ := testEnv(t)
	if _, _, err := run(t, e, "create", "nightly", "vg0/root@/", "--no-boot-entry"); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, _, err := run(t, e, "rename", "nightly", "weekly")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if !strings.Contains(out, "Renamed snapshot set nightly to weekly") {
		t.Fatalf("output = %q", out)
	}

	out, _, err = run(t, e, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "weekly") || strings.Contains(out, "nightly") {
		t.Fatalf("list after rename = %q", out)
	}
}

func TestShow(t *testing.T) {
	e, _ := testEnv(t)
	if _, _, err := run(t, e, "create", "nightly", "vg0/root@/", "--no-boot-entry"); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, _, err := run(t, e, "show", "nightly")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Name:", "nightly", "Mounts:     /", "vg0/root", "ACTIVE", "1.0 GiB"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q: %q", want, out)
		}
	}
}

func TestResize(t *testing.T) {
	e, fake := testEnv(t)
	if _, _, err := run(t, e, "create", "nightly", "vg0/root@/", "--no-boot-entry"); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, _, err := run(t, e, "resize", "nightly")
	var ue *usageError
	if !errors.As(err, &ue) {
		t.Fatalf("missing --size: got %v, want usage error", err)
	}

	out, _, err := run(t, e, "resize", "nightly", "--size", "30%")
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if !strings.Contains(out, "Resized 1 snapshot set(s) to 30%") {
		t.Fatalf("output = %q", out)
	}
	if len(fake.Resized) != 1 {
		t.Fatalf("resized %d snapshots, want 1", len(fake.Resized))
	}
}

func TestProfileChanges_InvalidateResolutionCache(t *testing.T) {
	e, _ := testEnv(t)
	seed := func() {
		cache := store.ResolutionCache{ByUname: map[string]string{"6.8.0-test": "generic"}}
		if err := e.st.SaveResolutionCache(cache); err != nil {
			t.Fatalf("SaveResolutionCache: %v", err)
		}
	}

	seed()
	_, _, err := run(t, e, "profile", "set", "hwe", "--kernel", "/boot/vmlinuz-%{uname}", "--uname-pattern", "6.8.*")
	if err != nil {
		t.Fatalf("profile set: %v", err)
	}
	if got := e.st.LoadResolutionCache(); len(got.ByUname) != 0 {
		t.Fatalf("cache survived profile set: %v", got.ByUname)
	}

	seed()
	if _, _, err := run(t, e, "profile", "delete", "hwe"); err != nil {
		t.Fatalf("profile delete: %v", err)
	}
	if got := e.st.LoadResolutionCache(); len(got.ByUname) != 0 {
		t.Fatalf("cache survived profile delete: %v", got.ByUname)
	}
}
