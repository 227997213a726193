// Package backend defines the capability contract implemented by every
// storage technology adapter, and the registry that dispatches volumes to
// the adapter that owns them.
package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"snapset/src/snapset"
)

// Backend is the core capability set every adapter must provide. Revert,
// Resize, Info, Activate and Rename are optional capabilities declared by
// implementing the corresponding interface; absence signals "unsupported",
// not an error.
type Backend interface {
	// Name returns the stable backend kind, e.g. "lvm2-cow".
	Name() string

	// Discover reports whether this backend owns and can snapshot the
	// volume. It must be side-effect-free and fast; it is used for
	// dispatch on every operation.
	Discover(vol snapset.Volume) bool

	// CheckCreate verifies the size policy can be satisfied without
	// creating anything. It returns a CapacityError when space is short.
	CheckCreate(ctx context.Context, vol snapset.Volume, policy SizePolicy) error

	// Create allocates backend-specific snapshot storage. It must be safe
	// to retry after Delete of a failed attempt.
	Create(ctx context.Context, vol snapset.Volume, setName string, created time.Time, policy SizePolicy) (snapset.Handle, error)

	// Delete removes the snapshot storage. Already-gone is success; a
	// NotFoundError means no cleanup is possible at all.
	Delete(ctx context.Context, handle snapset.Handle) error
}

// Reverter is implemented by backends that can merge a snapshot back into
// its origin volume. Revert must detect an in-use origin and fail with a
// BusyError rather than corrupt data.
type Reverter interface {
	Revert(ctx context.Context, handle snapset.Handle) error
}

// Resizer is implemented by backends whose snapshot storage can grow.
type Resizer interface {
	Resize(ctx context.Context, handle snapset.Handle, policy SizePolicy, originSize uint64) error
}

// Info describes current snapshot storage state.
type Info struct {
	Size   uint64
	Used   uint64
	Active bool
}

// Infoer is implemented by backends that can report snapshot usage.
type Infoer interface {
	Info(ctx context.Context, handle snapset.Handle) (Info, error)
}

// Activator is implemented by backends whose snapshots must be activated
// before they are reachable from a booted system.
type Activator interface {
	Activate(ctx context.Context, handle snapset.Handle) error
	Deactivate(ctx context.Context, handle snapset.Handle) error
	SetAutoactivate(ctx context.Context, handle snapset.Handle, auto bool) error
}

// Prober is implemented by backends that can fill in environment-derived
// volume details (notably Size) the caller did not supply.
type Prober interface {
	ProbeVolume(ctx context.Context, vol snapset.Volume) (snapset.Volume, error)
}

// Renamer is implemented by backends whose snapshot names encode the set
// name and therefore must change when a set is renamed.
type Renamer interface {
	Rename(ctx context.Context, handle snapset.Handle, vol snapset.Volume, newSetName string, created time.Time) (snapset.Handle, error)
}

// SizePolicy controls how much space is allocated for copy-on-write
// snapshot storage. Either a fixed byte size or a percentage of the origin
// volume size.
type SizePolicy struct {
	Fixed   uint64
	Percent uint
}

// DefaultSizePolicy allocates 20% of the origin size.
var DefaultSizePolicy = SizePolicy{Percent: 20}

// ParseSizePolicy accepts "20%" or a humanized byte size such as "2GiB".
func ParseSizePolicy(s string) (SizePolicy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSizePolicy, nil
	}
	if strings.HasSuffix(s, "%") {
		pct, err := strconv.ParseUint(strings.TrimSuffix(s, "%"), 10, 32)
		if err != nil || pct == 0 || pct > 100 {
			return SizePolicy{}, fmt.Errorf("invalid size percentage %q", s)
		}
		return SizePolicy{Percent: uint(pct)}, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return SizePolicy{}, fmt.Errorf("invalid size policy %q: %w", s, err)
	}
	return SizePolicy{Fixed: n}, nil
}

// Bytes resolves the policy against an origin volume size.
func (p SizePolicy) Bytes(originSize uint64) uint64 {
	if p.Fixed > 0 {
		return p.Fixed
	}
	pct := p.Percent
	if pct == 0 {
		pct = DefaultSizePolicy.Percent
	}
	return originSize / 100 * uint64(pct)
}

// String renders the policy in the form ParseSizePolicy accepts.
func (p SizePolicy) String() string {
	if p.Fixed > 0 {
		return humanize.IBytes(p.Fixed)
	}
	pct := p.Percent
	if pct == 0 {
		pct = DefaultSizePolicy.Percent
	}
	return strconv.FormatUint(uint64(pct), 10) + "%"
}
