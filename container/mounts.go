package container

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// mountpoint is one pseudo-filesystem mounted into a container's rootfs
// before its process starts.
type mountpoint struct {
	typ         string
	source      string
	destination string
}

// defaultMounts returns the standard devtmpfs/proc/sysfs mounts every
// container gets, matching what a minimal OCI runtime provides regardless
// of what the bundle's config.json requests explicitly.
func defaultMounts() []mountpoint {
	return []mountpoint{
		{typ: "devtmpfs", source: "dev", destination: "/dev"},
		{typ: "proc", source: "proc", destination: "/proc"},
		{typ: "sysfs", source: "sys", destination: "/sys"},
	}
}

// prepareMounts mounts each of mounts under rootfs. The reference
// implementation shells out to /bin/mount; this calls unix.Mount directly,
// which avoids forking a subprocess per mount and surfaces the underlying
// errno instead of an opaque exit code.
//
// If a mount partway through the list fails, prepareMounts unmounts
// everything it already applied (in reverse order) before returning, so a
// failed call never leaves any of mounts behind on rootfs.
func prepareMounts(rootfs string, mounts []mountpoint) error {
	for i, m := range mounts {
		target := filepath.Join(rootfs, m.destination)
		if err := unix.Mount(m.source, target, m.typ, 0, ""); err != nil {
			_ = cleanupMounts(rootfs, mounts[:i])
			return fmt.Errorf("mount %s at %s: %w", m.typ, target, err)
		}
	}
	return nil
}

// cleanupMounts unmounts each of mounts from rootfs, in reverse order so
// any mount nested under another is torn down first. Errors are collected
// rather than aborting partway, since cleanup must make a best effort
// across every mount even if one fails.
func cleanupMounts(rootfs string, mounts []mountpoint) error {
	var firstErr error
	for i := len(mounts) - 1; i >= 0; i-- {
		target := filepath.Join(rootfs, mounts[i].destination)
		if err := unix.Unmount(target, 0); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmount %s: %w", target, err)
		}
	}
	return firstErr
}
