package lvm2

import (
	"context"
	"time"

	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/cmdrun"
	"snapset/src/snapset"
)

// Thin is the thin-pool LVM2 backend. Thin snapshots allocate from the
// origin's pool and take no explicit size, so the size policy only informs
// the capacity pre-check.
type Thin struct {
	run cmdrun.Runner
	log *zap.Logger
}

func NewThin(run cmdrun.Runner, log *zap.Logger) *Thin {
	return &Thin{run: run, log: log}
}

func (t *Thin) Name() string { return "lvm2-thin" }

// Discover claims thin volumes (lv_attr type 'V').
func (t *Thin) Discover(vol snapset.Volume) bool {
	vg, lv, err := splitVGLV(vol.Source)
	if err != nil {
		return false
	}
	info, err := findLV(context.Background(), t.run, t.Name(), vg+"/"+lv)
	if err != nil || info == nil {
		return false
	}
	return info.thin()
}

// CheckCreate requires the origin's pool to have room for the policy size
// of new allocations. Thin pools overcommit, so this is a heuristic floor,
// not a reservation.
func (t *Thin) CheckCreate(ctx context.Context, vol snapset.Volume, policy backend.SizePolicy) error {
	vg, lv, err := splitVGLV(vol.Source)
	if err != nil {
		return &snapset.BackendError{Backend: t.Name(), Op: "check create", Err: err}
	}
	info, err := findLV(ctx, t.run, t.Name(), vg+"/"+lv)
	if err != nil {
		return err
	}
	if info == nil || info.PoolLV == "" {
		return &snapset.NotFoundError{Kind: "thin volume", Name: vol.Source}
	}
	pool, err := findLV(ctx, t.run, t.Name(), vg+"/"+info.PoolLV)
	if err != nil {
		return err
	}
	if pool == nil {
		return &snapset.NotFoundError{Kind: "thin pool", Name: vg + "/" + info.PoolLV}
	}
	poolSize, err := parseReportBytes(pool.LVSize)
	if err != nil {
		return &snapset.BackendError{Backend: t.Name(), Op: "check create", Err: err}
	}
	free := poolSize - parseDataPercent(pool.DataPercent, poolSize)
	need := policy.Bytes(vol.Size)
	if need > free {
		return &snapset.CapacityError{Backend: t.Name(), Volume: vol.ID, Needed: need, Free: free}
	}
	return nil
}

func (t *Thin) Create(ctx context.Context, vol snapset.Volume, setName string, created time.Time, policy backend.SizePolicy) (snapset.Handle, error) {
	vg, lv, err := splitVGLV(vol.Source)
	if err != nil {
		return snapset.Handle{}, &snapset.BackendError{Backend: t.Name(), Op: "create", Err: err}
	}
	snapName, err := formatSnapshotName(lv, setName, created, vol.MountPoint)
	if err != nil {
		return snapset.Handle{}, &snapset.BackendError{Backend: t.Name(), Op: "create", Err: err}
	}
	_, err = t.run.Run(ctx, "lvcreate", "--snapshot", "--name", snapName, vg+"/"+lv)
	if err != nil {
		return snapset.Handle{}, classifyCreateError(t.Name(), vol.ID, policy.Bytes(vol.Size), err)
	}
	t.log.Debug("created thin snapshot", zap.String("snapshot", vg+"/"+snapName))
	return snapset.Handle{
		Name:       vg + "/" + snapName,
		DevicePath: "/dev/" + vg + "/" + snapName,
	}, nil
}

func (t *Thin) Delete(ctx context.Context, handle snapset.Handle) error {
	return deleteLV(ctx, t.run, t.Name(), t.log, handle)
}

func (t *Thin) Revert(ctx context.Context, handle snapset.Handle) error {
	return revertLV(ctx, t.run, t.Name(), handle)
}

func (t *Thin) Info(ctx context.Context, handle snapset.Handle) (backend.Info, error) {
	return lvSnapshotInfo(ctx, t.run, t.Name(), handle)
}

func (t *Thin) Activate(ctx context.Context, handle snapset.Handle) error {
	return activateLV(ctx, t.run, t.Name(), handle, true)
}

func (t *Thin) Deactivate(ctx context.Context, handle snapset.Handle) error {
	return activateLV(ctx, t.run, t.Name(), handle, false)
}

func (t *Thin) SetAutoactivate(ctx context.Context, handle snapset.Handle, auto bool) error {
	return setAutoactivateLV(ctx, t.run, t.Name(), handle, auto)
}

func (t *Thin) Rename(ctx context.Context, handle snapset.Handle, vol snapset.Volume, newSetName string, created time.Time) (snapset.Handle, error) {
	return renameLV(ctx, t.run, t.Name(), handle, vol, newSetName, created)
}

// ProbeVolume fills in the origin LV's device path and, when the caller
// supplied none, its size.
func (t *Thin) ProbeVolume(ctx context.Context, vol snapset.Volume) (snapset.Volume, error) {
	return probeVolume(ctx, t.run, t.Name(), vol)
}
