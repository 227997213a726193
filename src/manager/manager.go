// Package manager implements the snapshot-set orchestration engine: atomic
// multi-volume create, delete and revert over pluggable backends, with
// durable metadata in the record store and boot entries via the bridge.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/snapset"
	"snapset/src/store"
)

// BootBridge is the slice of the boot-entry bridge the engine needs.
type BootBridge interface {
	CreateEntry(ctx context.Context, set *snapset.SnapshotSet, profileName string) (string, error)
	CreateRollbackEntry(ctx context.Context, set *snapset.SnapshotSet, profileName string) (string, error)
	DeleteEntry(ctx context.Context, ref string) error
}

// Options configures engine behavior.
type Options struct {
	// Host is this host's stable identity (machine-id); it seeds set IDs.
	Host string
	// Clock supplies creation timestamps; defaults to time.Now.
	Clock func() time.Time
	// AutoCleanupRevert deletes a set (and its boot entry) immediately
	// after a successful revert. When false the set remains listed as
	// reverted, pending deletion.
	AutoCleanupRevert bool
	// DefaultSizePolicy applies when a create request carries none.
	DefaultSizePolicy backend.SizePolicy
}

// Manager is the snapshot set engine. It holds the only mutable in-memory
// view of set metadata; all persistence goes through the store. Mutating
// operations take the store's advisory lock, which is the cross-process
// single-writer contract.
type Manager struct {
	store  *store.Store
	reg    *backend.Registry
	bridge BootBridge
	log    *zap.Logger
	lock   *flock.Flock
	opts   Options

	sets   []snapset.SnapshotSet
	byID   map[uuid.UUID]*snapset.SnapshotSet
	byName map[string]*snapset.SnapshotSet
}

func New(st *store.Store, reg *backend.Registry, bridge BootBridge, log *zap.Logger, opts Options) (*Manager, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("manager requires a host identity")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	m := &Manager{
		store:  st,
		reg:    reg,
		bridge: bridge,
		log:    log,
		lock:   flock.New(st.LockPath()),
		opts:   opts,
	}
	if err := m.Refresh(); err != nil {
		return nil, err
	}
	return m, nil
}

// Refresh reloads the in-memory view from the store.
func (m *Manager) Refresh() error {
	loaded, err := m.store.LoadAll()
	if err != nil {
		return err
	}
	m.sets = loaded.Sets
	m.byID = make(map[uuid.UUID]*snapset.SnapshotSet, len(m.sets))
	m.byName = make(map[string]*snapset.SnapshotSet, len(m.sets))
	for i := range m.sets {
		set := &m.sets[i]
		m.byID[set.ID] = set
		m.byName[set.Name] = set
	}
	return nil
}

// acquire takes the metadata lock and refreshes the view under it.
func (m *Manager) acquire() (release func(), err error) {
	if err := m.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire metadata lock: %w", err)
	}
	if err := m.Refresh(); err != nil {
		_ = m.lock.Unlock()
		return nil, err
	}
	return func() {
		if err := m.lock.Unlock(); err != nil {
			m.log.Warn("release metadata lock", zap.Error(err))
		}
	}, nil
}

// transition moves a set's stored status through the set state machine.
// Writes that are not legal transitions are refused.
func (m *Manager) transition(set *snapset.SnapshotSet, next snapset.SetStatus) error {
	if set.Status == next {
		return nil
	}
	if !set.Status.CanTransition(next) {
		return fmt.Errorf("snapshot set %s cannot move from %s to %s", set.Name, set.Status, next)
	}
	set.Status = next
	return nil
}

// validateNewName applies the naming rules and the uniqueness check.
func (m *Manager) validateNewName(name string) error {
	if err := snapset.ValidateSetName(name); err != nil {
		return err
	}
	if _, exists := m.byName[name]; exists {
		return &snapset.InvalidNameError{Name: name, Reason: "a snapshot set with this name already exists"}
	}
	return nil
}

// resolveBackends resolves the backend for every volume, in caller order,
// before any snapshot is created.
func (m *Manager) resolveBackends(vols []snapset.Volume) ([]backend.Backend, error) {
	backends := make([]backend.Backend, len(vols))
	for i, vol := range vols {
		b, err := m.reg.Resolve(vol)
		if err != nil {
			return nil, err
		}
		backends[i] = b
	}
	return backends, nil
}

func (m *Manager) removeFromView(id uuid.UUID) {
	for i := range m.sets {
		if m.sets[i].ID == id {
			name := m.sets[i].Name
			m.sets = append(m.sets[:i], m.sets[i+1:]...)
			delete(m.byID, id)
			delete(m.byName, name)
			// Reindex: the slice elements moved.
			m.byID = make(map[uuid.UUID]*snapset.SnapshotSet, len(m.sets))
			m.byName = make(map[string]*snapset.SnapshotSet, len(m.sets))
			for j := range m.sets {
				set := &m.sets[j]
				m.byID[set.ID] = set
				m.byName[set.Name] = set
			}
			return
		}
	}
}

func (m *Manager) addToView(set snapset.SnapshotSet) {
	m.sets = append(m.sets, set)
	m.byID = make(map[uuid.UUID]*snapset.SnapshotSet, len(m.sets))
	m.byName = make(map[string]*snapset.SnapshotSet, len(m.sets))
	for i := range m.sets {
		s := &m.sets[i]
		m.byID[s.ID] = s
		m.byName[s.Name] = s
	}
}
