// Package lvm2 implements snapshot backends for LVM2 logical volumes, in
// thick copy-on-write and thin-pool variants. All state changes go through
// the LVM2 command-line tools via an injectable runner.
package lvm2

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const maxLVNameLen = 127

// Snapshot LV names encode the origin, set name, timestamp and mount point
// so an operator can attribute any snapshot LV at a glance and names never
// collide across sets:
//
//	<origin>-snapset_<setname>_<unix-ts>_<encoded-mountpoint>
//
// Set names may not contain underscores, which keeps the field boundaries
// unambiguous. The encoding is one-way: mount points containing dashes make
// it irreversible, and set membership is tracked in the record store, never
// recovered from LV names.
const nameInfix = "-snapset_"

// encodeMountPoint maps a mount point path to an LV-name-safe token:
// "/" becomes "-", "/home" becomes "-home". Unmounted volumes use ".".
func encodeMountPoint(mp string) string {
	if mp == "" {
		return "."
	}
	return strings.ReplaceAll(mp, "/", "-")
}

// formatSnapshotName builds the snapshot LV name for one set member.
func formatSnapshotName(originLV, setName string, created time.Time, mountPoint string) (string, error) {
	name := originLV + nameInfix + setName + "_" +
		strconv.FormatInt(created.Unix(), 10) + "_" + encodeMountPoint(mountPoint)
	if len(name) > maxLVNameLen {
		return "", fmt.Errorf("snapshot name exceeds %d characters: %s", maxLVNameLen, name)
	}
	return name, nil
}
