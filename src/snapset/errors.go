package snapset

import (
	"fmt"
	"strings"
)

// CapacityError reports that a backend could not satisfy the space policy
// for a requested snapshot.
type CapacityError struct {
	Backend string
	Volume  string
	Needed  uint64
	Free    uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: insufficient space for snapshot of %s: need %d bytes, %d free",
		e.Backend, e.Volume, e.Needed, e.Free)
}

// BackendError wraps a technology-specific failure from a storage backend.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// BusyError reports that a volume is in use and the requested destructive
// operation was refused rather than risk corrupting data.
type BusyError struct {
	Backend string
	Volume  string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: volume %s is in use", e.Backend, e.Volume)
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Kind string // "snapshot set", "snapshot", "backend", "volume", ...
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// ProfileNotFoundError reports that no boot profile matched the host and
// none was supplied explicitly.
type ProfileNotFoundError struct {
	Name  string // explicit name, if one was given
	Uname string
}

func (e *ProfileNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("profile not found: %s", e.Name)
	}
	return fmt.Sprintf("no profile matches uname %q and no default is configured", e.Uname)
}

// CorruptRecordError reports an on-disk metadata record that could not be
// read. Store loads demote it to a skipped-entry warning.
type CorruptRecordError struct {
	Path string
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record %s: %v", e.Path, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// InvalidNameError reports a snapshot set name that fails validation or
// collides with an existing set.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid snapshot set name %q: %s", e.Name, e.Reason)
}

// PartialFailureError reports a multi-step operation that partially
// succeeded. Err is the original failure; Member identifies the failing
// element. Residual carries cleanup failures encountered while unwinding,
// which never mask the original error.
type PartialFailureError struct {
	Op       string
	Member   string
	Err      error
	Residual []error
}

func (e *PartialFailureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: member %s failed: %v", e.Op, e.Member, e.Err)
	for _, r := range e.Residual {
		fmt.Fprintf(&b, "; cleanup: %v", r)
	}
	return b.String()
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// nameInvalidChars are rejected in snapshot set names: path separators would
// break on-disk layouts and underscore is reserved by backend name encoding.
const nameInvalidChars = `/\_ `

// ValidateSetName checks a snapshot set name against the naming rules.
func ValidateSetName(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name, Reason: "name must not be empty"}
	}
	if i := strings.IndexAny(name, nameInvalidChars); i >= 0 {
		return &InvalidNameError{Name: name, Reason: fmt.Sprintf("name cannot include %q", name[i])}
	}
	return nil
}
