package lvm2

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/cmdrun"
	"snapset/src/snapset"
)

// Minimum usable thick CoW snapshot size (512 MiB); smaller snapshots fill
// almost immediately under normal write load.
const minCowSnapshotSize = 512 * 1024 * 1024

// Cow is the thick copy-on-write LVM2 backend. Snapshots take an explicit
// size and revert by lvconvert --merge.
type Cow struct {
	run cmdrun.Runner
	log *zap.Logger
}

func NewCow(run cmdrun.Runner, log *zap.Logger) *Cow {
	return &Cow{run: run, log: log}
}

func (c *Cow) Name() string { return "lvm2-cow" }

// Discover claims volumes that are plain LVM2 LVs: not thin volumes and not
// themselves snapshots.
func (c *Cow) Discover(vol snapset.Volume) bool {
	vg, lv, err := splitVGLV(vol.Source)
	if err != nil {
		return false
	}
	info, err := findLV(context.Background(), c.run, c.Name(), vg+"/"+lv)
	if err != nil || info == nil {
		return false
	}
	if info.thin() {
		return false
	}
	t := byte(attrDefault)
	if len(info.LVAttr) > attrTypeIdx {
		t = info.LVAttr[attrTypeIdx]
	}
	return t == attrDefault || t == attrCowOrigin
}

func (c *Cow) snapshotSize(vol snapset.Volume, policy backend.SizePolicy) uint64 {
	size := policy.Bytes(vol.Size)
	if size < minCowSnapshotSize {
		size = minCowSnapshotSize
	}
	return size
}

func (c *Cow) CheckCreate(ctx context.Context, vol snapset.Volume, policy backend.SizePolicy) error {
	vg, _, err := splitVGLV(vol.Source)
	if err != nil {
		return &snapset.BackendError{Backend: c.Name(), Op: "check create", Err: err}
	}
	free, err := vgFreeSpace(ctx, c.run, c.Name(), vg)
	if err != nil {
		return err
	}
	need := c.snapshotSize(vol, policy)
	if need > free {
		return &snapset.CapacityError{Backend: c.Name(), Volume: vol.ID, Needed: need, Free: free}
	}
	return nil
}

func (c *Cow) Create(ctx context.Context, vol snapset.Volume, setName string, created time.Time, policy backend.SizePolicy) (snapset.Handle, error) {
	vg, lv, err := splitVGLV(vol.Source)
	if err != nil {
		return snapset.Handle{}, &snapset.BackendError{Backend: c.Name(), Op: "create", Err: err}
	}
	snapName, err := formatSnapshotName(lv, setName, created, vol.MountPoint)
	if err != nil {
		return snapset.Handle{}, &snapset.BackendError{Backend: c.Name(), Op: "create", Err: err}
	}
	size := c.snapshotSize(vol, policy)
	_, err = c.run.Run(ctx, "lvcreate",
		"--snapshot", "--name", snapName,
		"--size", strconv.FormatUint(size, 10)+"b",
		vg+"/"+lv)
	if err != nil {
		return snapset.Handle{}, classifyCreateError(c.Name(), vol.ID, size, err)
	}
	c.log.Debug("created CoW snapshot",
		zap.String("snapshot", vg+"/"+snapName), zap.Uint64("size", size))
	return snapset.Handle{
		Name:       vg + "/" + snapName,
		DevicePath: "/dev/" + vg + "/" + snapName,
	}, nil
}

func (c *Cow) Delete(ctx context.Context, handle snapset.Handle) error {
	return deleteLV(ctx, c.run, c.Name(), c.log, handle)
}

// Revert merges the snapshot back into its origin. The merge is refused
// while the origin is open; LVM defers merges of in-use volumes to the next
// activation, which would leave the system in a surprising half-state.
func (c *Cow) Revert(ctx context.Context, handle snapset.Handle) error {
	return revertLV(ctx, c.run, c.Name(), handle)
}

// Resize grows the snapshot CoW area to the policy size.
func (c *Cow) Resize(ctx context.Context, handle snapset.Handle, policy backend.SizePolicy, originSize uint64) error {
	size := policy.Bytes(originSize)
	if size < minCowSnapshotSize {
		size = minCowSnapshotSize
	}
	_, err := c.run.Run(ctx, "lvextend",
		"--size", strconv.FormatUint(size, 10)+"b", handle.Name)
	if err != nil {
		return &snapset.BackendError{Backend: c.Name(), Op: "lvextend", Err: err}
	}
	return nil
}

func (c *Cow) Info(ctx context.Context, handle snapset.Handle) (backend.Info, error) {
	return lvSnapshotInfo(ctx, c.run, c.Name(), handle)
}

func (c *Cow) Activate(ctx context.Context, handle snapset.Handle) error {
	return activateLV(ctx, c.run, c.Name(), handle, true)
}

func (c *Cow) Deactivate(ctx context.Context, handle snapset.Handle) error {
	return activateLV(ctx, c.run, c.Name(), handle, false)
}

func (c *Cow) SetAutoactivate(ctx context.Context, handle snapset.Handle, auto bool) error {
	return setAutoactivateLV(ctx, c.run, c.Name(), handle, auto)
}

func (c *Cow) Rename(ctx context.Context, handle snapset.Handle, vol snapset.Volume, newSetName string, created time.Time) (snapset.Handle, error) {
	return renameLV(ctx, c.run, c.Name(), handle, vol, newSetName, created)
}

// ProbeVolume fills in the origin LV's device path and, when the caller
// supplied none, its size.
func (c *Cow) ProbeVolume(ctx context.Context, vol snapset.Volume) (snapset.Volume, error) {
	return probeVolume(ctx, c.run, c.Name(), vol)
}

// classifyCreateError maps lvcreate failures onto the error taxonomy.
func classifyCreateError(backendName, volumeID string, need uint64, err error) error {
	if exit, ok := err.(*cmdrun.ExitError); ok {
		if insufficientSpaceOutput(exit.Stderr) {
			return &snapset.CapacityError{Backend: backendName, Volume: volumeID, Needed: need}
		}
	}
	return &snapset.BackendError{Backend: backendName, Op: "lvcreate", Err: err}
}

// Shared LV operations used by both the thick and thin backends.

func deleteLV(ctx context.Context, run cmdrun.Runner, backendName string, log *zap.Logger, handle snapset.Handle) error {
	_, err := run.Run(ctx, "lvremove", "--yes", handle.Name)
	if err != nil {
		if exit, ok := err.(*cmdrun.ExitError); ok && notFoundOutput(exit.Stderr) {
			// Already gone; deletion is idempotent.
			log.Debug("snapshot already removed", zap.String("snapshot", handle.Name))
			return nil
		}
		return &snapset.BackendError{Backend: backendName, Op: "lvremove", Err: err}
	}
	return nil
}

func revertLV(ctx context.Context, run cmdrun.Runner, backendName string, handle snapset.Handle) error {
	info, err := findLV(ctx, run, backendName, handle.Name)
	if err != nil {
		return err
	}
	if info == nil {
		return &snapset.NotFoundError{Kind: "snapshot", Name: handle.Name}
	}
	if info.Origin != "" {
		origin, err := findLV(ctx, run, backendName, info.VGName+"/"+info.Origin)
		if err != nil {
			return err
		}
		if origin != nil && origin.open() {
			return &snapset.BusyError{Backend: backendName, Volume: origin.vgLV()}
		}
	}
	if _, err := run.Run(ctx, "lvconvert", "--merge", handle.Name); err != nil {
		return &snapset.BackendError{Backend: backendName, Op: "lvconvert --merge", Err: err}
	}
	return nil
}

func lvSnapshotInfo(ctx context.Context, run cmdrun.Runner, backendName string, handle snapset.Handle) (backend.Info, error) {
	info, err := findLV(ctx, run, backendName, handle.Name)
	if err != nil {
		return backend.Info{}, err
	}
	if info == nil {
		return backend.Info{}, &snapset.NotFoundError{Kind: "snapshot", Name: handle.Name}
	}
	size, err := parseReportBytes(info.LVSize)
	if err != nil {
		return backend.Info{}, &snapset.BackendError{Backend: backendName, Op: "info", Err: err}
	}
	return backend.Info{
		Size:   size,
		Used:   parseDataPercent(info.DataPercent, size),
		Active: info.active(),
	}, nil
}

func activateLV(ctx context.Context, run cmdrun.Runner, backendName string, handle snapset.Handle, on bool) error {
	state := "n"
	if on {
		state = "y"
	}
	_, err := run.Run(ctx, "lvchange", "--yes", "--ignoreactivationskip", "--activate", state, handle.Name)
	if err != nil {
		return &snapset.BackendError{Backend: backendName, Op: "lvchange --activate", Err: err}
	}
	return nil
}

func setAutoactivateLV(ctx context.Context, run cmdrun.Runner, backendName string, handle snapset.Handle, auto bool) error {
	// Activation skip set means the LV is NOT autoactivated.
	skip := "y"
	if auto {
		skip = "n"
	}
	_, err := run.Run(ctx, "lvchange", "--yes", "--setactivationskip", skip, handle.Name)
	if err != nil {
		return &snapset.BackendError{Backend: backendName, Op: "lvchange --setactivationskip", Err: err}
	}
	return nil
}

func renameLV(ctx context.Context, run cmdrun.Runner, backendName string, handle snapset.Handle, vol snapset.Volume, newSetName string, created time.Time) (snapset.Handle, error) {
	vg, lv, err := splitVGLV(vol.Source)
	if err != nil {
		return snapset.Handle{}, &snapset.BackendError{Backend: backendName, Op: "rename", Err: err}
	}
	newName, err := formatSnapshotName(lv, newSetName, created, vol.MountPoint)
	if err != nil {
		return snapset.Handle{}, &snapset.BackendError{Backend: backendName, Op: "rename", Err: err}
	}
	if _, err := run.Run(ctx, "lvrename", handle.Name, vg+"/"+newName); err != nil {
		return snapset.Handle{}, &snapset.BackendError{Backend: backendName, Op: "lvrename", Err: err}
	}
	return snapset.Handle{
		Name:       vg + "/" + newName,
		DevicePath: "/dev/" + vg + "/" + newName,
	}, nil
}

func probeVolume(ctx context.Context, run cmdrun.Runner, backendName string, vol snapset.Volume) (snapset.Volume, error) {
	vg, lv, err := splitVGLV(vol.Source)
	if err != nil {
		return vol, &snapset.BackendError{Backend: backendName, Op: "probe", Err: err}
	}
	if vol.DevicePath == "" {
		vol.DevicePath = "/dev/" + vg + "/" + lv
	}
	if vol.Size > 0 {
		return vol, nil
	}
	info, err := findLV(ctx, run, backendName, vg+"/"+lv)
	if err != nil {
		return vol, err
	}
	if info == nil {
		return vol, &snapset.NotFoundError{Kind: "volume", Name: vol.Source}
	}
	size, err := parseReportBytes(info.LVSize)
	if err != nil {
		return vol, &snapset.BackendError{Backend: backendName, Op: "probe", Err: err}
	}
	vol.Size = size
	return vol, nil
}

func insufficientSpaceOutput(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "insufficient free space") ||
		strings.Contains(s, "not enough free space")
}
