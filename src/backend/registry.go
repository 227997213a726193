package backend

import (
	"fmt"
	"strings"

	"snapset/src/snapset"
)

// ConflictError reports that more than one backend claimed the same volume.
// Overlapping claims are a configuration error and are never resolved
// silently.
type ConflictError struct {
	Volume   string
	Backends []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("volume %s claimed by multiple backends: %s",
		e.Volume, strings.Join(e.Backends, ", "))
}

// Registry dispatches volumes to backends. Backends are probed in the
// fixed order they were registered, so resolution is deterministic.
type Registry struct {
	backends []Backend
}

func NewRegistry(backends ...Backend) *Registry {
	return &Registry{backends: backends}
}

// Register appends a backend at the lowest priority.
func (r *Registry) Register(b Backend) {
	r.backends = append(r.backends, b)
}

// Backends returns the registered backends in priority order.
func (r *Registry) Backends() []Backend {
	return r.backends
}

// Lookup returns the backend with the given kind name.
func (r *Registry) Lookup(name string) (Backend, error) {
	for _, b := range r.backends {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, &snapset.NotFoundError{Kind: "backend", Name: name}
}

// Resolve selects the backend for a volume. A backend hint on the volume
// short-circuits probing; otherwise every backend is probed and exactly one
// claim is required.
func (r *Registry) Resolve(vol snapset.Volume) (Backend, error) {
	if vol.Backend != "" {
		b, err := r.Lookup(vol.Backend)
		if err != nil {
			return nil, err
		}
		if !b.Discover(vol) {
			return nil, fmt.Errorf("backend %s cannot snapshot volume %s", vol.Backend, vol.ID)
		}
		return b, nil
	}

	var claims []Backend
	for _, b := range r.backends {
		if b.Discover(vol) {
			claims = append(claims, b)
		}
	}
	switch len(claims) {
	case 0:
		return nil, &snapset.NotFoundError{Kind: "backend for volume", Name: vol.ID}
	case 1:
		return claims[0], nil
	default:
		names := make([]string, len(claims))
		for i, b := range claims {
			names[i] = b.Name()
		}
		return nil, &ConflictError{Volume: vol.ID, Backends: names}
	}
}
