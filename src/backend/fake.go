package backend

import (
	"context"
	"sync"
	"time"

	"snapset/src/snapset"
)

// Fake is an in-memory backend for unit tests. Failures are injected per
// volume or per snapshot name through the error maps.
type Fake struct {
	Kind    string
	Volumes map[string]bool // volume IDs this backend claims

	CheckErr  map[string]error // by volume ID
	CreateErr map[string]error // by volume ID
	DeleteErr map[string]error // by handle name
	RevertErr map[string]error // by handle name
	RenameErr map[string]error // by handle name
	ResizeErr map[string]error // by handle name
	Busy      map[string]bool  // handle names whose origin is open

	mu        sync.Mutex
	Created   map[string]snapset.Handle // by volume ID
	Deleted   []string                  // handle names, in call order
	Reverted  []string                  // handle names, in call order
	Activated map[string]bool           // by handle name
	AutoAct   map[string]bool           // by handle name
	Resized   map[string]SizePolicy     // by handle name
}

func NewFake(kind string, volumes ...string) *Fake {
	f := &Fake{
		Kind:      kind,
		Volumes:   map[string]bool{},
		CheckErr:  map[string]error{},
		CreateErr: map[string]error{},
		DeleteErr: map[string]error{},
		RevertErr: map[string]error{},
		RenameErr: map[string]error{},
		ResizeErr: map[string]error{},
		Busy:      map[string]bool{},
		Created:   map[string]snapset.Handle{},
		Activated: map[string]bool{},
		AutoAct:   map[string]bool{},
		Resized:   map[string]SizePolicy{},
	}
	for _, v := range volumes {
		f.Volumes[v] = true
	}
	return f
}

func (f *Fake) Name() string { return f.Kind }

func (f *Fake) Discover(vol snapset.Volume) bool { return f.Volumes[vol.ID] }

func (f *Fake) CheckCreate(_ context.Context, vol snapset.Volume, _ SizePolicy) error {
	return f.CheckErr[vol.ID]
}

func (f *Fake) ProbeVolume(_ context.Context, vol snapset.Volume) (snapset.Volume, error) {
	if vol.DevicePath == "" {
		vol.DevicePath = "/dev/fake/" + vol.ID
	}
	return vol, nil
}

func (f *Fake) Create(_ context.Context, vol snapset.Volume, setName string, _ time.Time, policy SizePolicy) (snapset.Handle, error) {
	if err := f.CreateErr[vol.ID]; err != nil {
		return snapset.Handle{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h := snapset.Handle{
		Name:       vol.ID + "-" + setName,
		DevicePath: "/dev/fake/" + vol.ID + "-" + setName,
	}
	f.Created[vol.ID] = h
	return h, nil
}

func (f *Fake) Delete(_ context.Context, handle snapset.Handle) error {
	if err := f.DeleteErr[handle.Name]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, handle.Name)
	for vol, h := range f.Created {
		if h.Name == handle.Name {
			delete(f.Created, vol)
		}
	}
	return nil
}

func (f *Fake) Revert(_ context.Context, handle snapset.Handle) error {
	if f.Busy[handle.Name] {
		return &snapset.BusyError{Backend: f.Kind, Volume: handle.Name}
	}
	if err := f.RevertErr[handle.Name]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reverted = append(f.Reverted, handle.Name)
	return nil
}

func (f *Fake) Resize(_ context.Context, handle snapset.Handle, policy SizePolicy, _ uint64) error {
	if err := f.ResizeErr[handle.Name]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resized[handle.Name] = policy
	return nil
}

func (f *Fake) Info(_ context.Context, handle snapset.Handle) (Info, error) {
	return Info{Size: 1 << 30, Used: 1 << 20, Active: true}, nil
}

func (f *Fake) Rename(_ context.Context, handle snapset.Handle, vol snapset.Volume, newSetName string, _ time.Time) (snapset.Handle, error) {
	if err := f.RenameErr[handle.Name]; err != nil {
		return snapset.Handle{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h := snapset.Handle{
		Name:       vol.ID + "-" + newSetName,
		DevicePath: "/dev/fake/" + vol.ID + "-" + newSetName,
	}
	f.Created[vol.ID] = h
	return h, nil
}

func (f *Fake) Activate(_ context.Context, handle snapset.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Activated[handle.Name] = true
	return nil
}

func (f *Fake) Deactivate(_ context.Context, handle snapset.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Activated[handle.Name] = false
	return nil
}

func (f *Fake) SetAutoactivate(_ context.Context, handle snapset.Handle, auto bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AutoAct[handle.Name] = auto
	return nil
}

// WithoutRevert returns the fake as a Backend that does not implement
// Reverter, so tests can model a backend lacking that capability.
func (f *Fake) WithoutRevert() Backend { return noRevertBackend{f: f} }

type noRevertBackend struct{ f *Fake }

func (n noRevertBackend) Name() string                     { return n.f.Name() }
func (n noRevertBackend) Discover(vol snapset.Volume) bool { return n.f.Discover(vol) }

func (n noRevertBackend) CheckCreate(ctx context.Context, vol snapset.Volume, policy SizePolicy) error {
	return n.f.CheckCreate(ctx, vol, policy)
}

func (n noRevertBackend) Create(ctx context.Context, vol snapset.Volume, setName string, created time.Time, policy SizePolicy) (snapset.Handle, error) {
	return n.f.Create(ctx, vol, setName, created, policy)
}

func (n noRevertBackend) Delete(ctx context.Context, handle snapset.Handle) error {
	return n.f.Delete(ctx, handle)
}
