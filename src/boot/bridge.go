package boot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"snapset/src/snapset"
	"snapset/src/store"
)

// Bridge resolves profiles and turns snapshot sets into boot entries via
// the external entry manager.
type Bridge struct {
	store          *store.Store
	mgr            EntryManager
	log            *zap.Logger
	defaultProfile string

	// Host identity probes, injectable for tests.
	Uname     func() (string, error)
	MachineID func() (string, error)
}

func NewBridge(st *store.Store, mgr EntryManager, log *zap.Logger, defaultProfile string) *Bridge {
	return &Bridge{
		store:          st,
		mgr:            mgr,
		log:            log,
		defaultProfile: defaultProfile,
		Uname:          hostUname,
		MachineID:      hostMachineID,
	}
}

// CreateEntry resolves the applicable profile, renders a boot entry booting
// into the set's snapshots and registers it. It returns the new entry
// reference.
func (b *Bridge) CreateEntry(ctx context.Context, set *snapset.SnapshotSet, profileName string) (string, error) {
	rootDevice := ""
	if rootSnap, err := set.SnapshotByMountPoint("/"); err == nil {
		rootDevice = rootSnap.Handle.DevicePath
	}
	return b.createEntry(ctx, set, profileName, "Snapshot", rootDevice)
}

// CreateRollbackEntry registers the paired entry that boots the origin
// volumes, so the system can be brought up on its pre-snapshot state while a
// revert merges.
func (b *Bridge) CreateRollbackEntry(ctx context.Context, set *snapset.SnapshotSet, profileName string) (string, error) {
	rootDevice := ""
	if rootSnap, err := set.SnapshotByMountPoint("/"); err == nil {
		rootDevice = rootSnap.OriginDevice
	}
	return b.createEntry(ctx, set, profileName, "Rollback", rootDevice)
}

func (b *Bridge) createEntry(ctx context.Context, set *snapset.SnapshotSet, profileName, kind, rootDevice string) (string, error) {
	uname, err := b.Uname()
	if err != nil {
		return "", fmt.Errorf("probe kernel identity: %w", err)
	}
	profile, err := b.Resolve(profileName, uname)
	if err != nil {
		return "", err
	}

	vars := map[string]string{
		"uname":        uname,
		"snapset_name": set.Name,
		"root_device":  rootDevice,
	}
	entry := Entry{
		Title:      fmt.Sprintf("%s %s %s", kind, set.Name, set.CreatedAt.UTC().Format(time.RFC3339)),
		Kernel:     expand(profile.Kernel, vars),
		Initramfs:  expand(profile.Initramfs, vars),
		Options:    expand(profile.Options, vars),
		RootDevice: rootDevice,
	}
	id, err := b.mgr.CreateEntry(ctx, entry)
	if err != nil {
		return "", err
	}
	b.log.Info("created boot entry", zap.String("kind", kind),
		zap.String("entry", id), zap.String("snapset", set.Name), zap.String("profile", profile.Name))
	return id, nil
}

// DeleteEntry removes an entry by reference. Empty references and absent
// entries are success.
func (b *Bridge) DeleteEntry(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	return b.mgr.DeleteEntry(ctx, ref)
}

// Resolve selects the profile for this host, consulting and maintaining
// the host binding and resolution cache. An empty explicit name triggers
// uname-based resolution.
func (b *Bridge) Resolve(explicit, uname string) (snapset.Profile, error) {
	profiles, err := b.store.Profiles()
	if err != nil {
		return snapset.Profile{}, err
	}

	if explicit == "" {
		if name, ok := b.cachedResolution(uname); ok {
			for _, p := range profiles {
				if p.Name == name {
					return p, nil
				}
			}
			// Cached profile vanished; fall through and re-resolve.
		}
	}

	profile, err := resolveProfile(profiles, explicit, uname, b.defaultProfile)
	if err != nil {
		return snapset.Profile{}, err
	}
	if explicit == "" {
		b.rememberResolution(uname, profile.Name)
	}
	return profile, nil
}

// cachedResolution checks the host binding and resolution cache, dropping
// both when the host's kernel identity has changed since they were written.
func (b *Bridge) cachedResolution(uname string) (string, bool) {
	machineID, err := b.MachineID()
	if err != nil {
		return "", false
	}
	host, err := b.store.HostEntry(machineID)
	if err == nil && host.Uname != uname {
		// Kernel changed under us: stale binding and cache.
		b.log.Info("host kernel identity changed, invalidating cached profile resolution",
			zap.String("old", host.Uname), zap.String("new", uname))
		if err := b.store.DeleteHostEntry(machineID); err != nil {
			b.log.Warn("delete stale host entry", zap.Error(err))
		}
		if err := b.store.InvalidateResolutionCache(); err != nil {
			b.log.Warn("invalidate resolution cache", zap.Error(err))
		}
		return "", false
	}

	cache := b.store.LoadResolutionCache()
	name, ok := cache.ByUname[uname]
	return name, ok
}

func (b *Bridge) rememberResolution(uname, profileName string) {
	cache := b.store.LoadResolutionCache()
	cache.ByUname[uname] = profileName
	if err := b.store.SaveResolutionCache(cache); err != nil {
		b.log.Warn("save resolution cache", zap.Error(err))
	}
	machineID, err := b.MachineID()
	if err != nil {
		return
	}
	entry := snapset.HostEntry{
		MachineID:  machineID,
		Uname:      uname,
		Profile:    profileName,
		ResolvedAt: time.Now().UTC(),
	}
	if err := b.store.WriteHostEntry(entry); err != nil {
		b.log.Warn("save host entry", zap.Error(err))
	}
}

// expand substitutes %{name} tokens in profile templates.
func expand(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "%{"+k+"}", v)
	}
	return out
}

// HostUname returns the running kernel's release string.
func HostUname() (string, error) { return hostUname() }

// HostMachineID returns this host's stable machine identity.
func HostMachineID() (string, error) { return hostMachineID() }

func hostUname() (string, error) {
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func hostMachineID() (string, error) {
	data, err := os.ReadFile("/etc/machine-id")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
