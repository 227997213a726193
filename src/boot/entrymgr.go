// Package boot translates snapshot sets into bootloader entries through an
// external boot-entry manager, and resolves the per-host profile describing
// kernel and initramfs identity.
package boot

import (
	"context"
	"errors"
)

// Entry is a rendered boot entry handed to the external manager. This core
// never writes bootloader file formats itself.
type Entry struct {
	Title      string
	Kernel     string
	Initramfs  string
	Options    string
	RootDevice string // root override; empty keeps the running root
}

// EntryManager is the narrow interface over the external boot-entry
// manager.
type EntryManager interface {
	// CreateEntry registers a boot entry and returns its identifier.
	CreateEntry(ctx context.Context, entry Entry) (string, error)
	// DeleteEntry removes an entry. Absence is success.
	DeleteEntry(ctx context.Context, id string) error
}

// Disabled is the EntryManager used when boot integration is turned off.
// Entry creation fails, which callers treat as non-fatal; deletion is a
// no-op so sets without entries still delete cleanly.
type Disabled struct{}

func (Disabled) CreateEntry(context.Context, Entry) (string, error) {
	return "", errors.New("boot integration is disabled")
}

func (Disabled) DeleteEntry(context.Context, string) error { return nil }
