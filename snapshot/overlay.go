// Package snapshot implements the Snapshotter: stacking an image's unpacked
// layer directories into a single rootfs view via overlayfs.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/projecteru2/core/log"
	"golang.org/x/sys/unix"

	"github.com/virt-do/kaps/config"
)

// ErrNoLayers is returned when Mount is called with an empty layer list.
var ErrNoLayers = errors.New("snapshot: no layers to mount")

// MountPoint describes a live overlayfs mount.
type MountPoint struct {
	Index    uint64
	Path     string
	UpperDir string
	WorkDir  string
}

// Overlay is the Snapshotter (component C): it combines the unpacked layer
// directories belonging to an image into one overlayfs mount per snapshot
// index.
type Overlay struct {
	cfg *config.Config
}

// New builds an Overlay snapshotter.
func New(cfg *config.Config) *Overlay {
	return &Overlay{cfg: cfg}
}

// Mount stacks layerDirs (bottom-most layer first, matching OCI manifest
// order) into mountPath using index to name the scratch upperdir/workdir.
// overlayfs wants its lowerdir list topmost-first, the reverse of manifest
// order, so Mount reverses layerDirs before building the option string —
// passing them in manifest order here would invert the stack and shadow
// later layers with earlier ones.
func (o *Overlay) Mount(ctx context.Context, index uint64, layerDirs []string, mountPath string, readOnly bool) (*MountPoint, error) {
	logger := log.WithFunc("snapshot.Mount")

	if len(layerDirs) == 0 {
		return nil, ErrNoLayers
	}

	scratch := o.cfg.SnapshotDir(index)
	upperDir := filepath.Join(scratch, "upperdir")
	workDir := filepath.Join(scratch, "workdir")

	for _, dir := range []string{upperDir, workDir, mountPath} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	options := overlayOptions(layerDirs, upperDir, workDir)

	var flags uintptr
	if readOnly {
		flags |= unix.MS_RDONLY
	}

	logger.Infof(ctx, "mounting %d layers at %s (index %d)", len(layerDirs), mountPath, index)
	if err := unix.Mount("overlay", mountPath, "overlay", flags, options); err != nil {
		return nil, fmt.Errorf("mount overlay at %s: %w", mountPath, err)
	}

	return &MountPoint{Index: index, Path: mountPath, UpperDir: upperDir, WorkDir: workDir}, nil
}

// overlayOptions builds the overlayfs mount option string for layerDirs,
// reversing them to topmost-first since overlayfs's lowerdir order is the
// opposite of OCI manifest order.
func overlayOptions(layerDirs []string, upperDir, workDir string) string {
	reversed := make([]string, len(layerDirs))
	for i, l := range layerDirs {
		reversed[len(layerDirs)-1-i] = l
	}
	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s",
		strings.Join(reversed, ":"), upperDir, workDir)
}

// Unmount tears down a mount previously created by Mount. It does not
// remove the scratch upperdir/workdir — callers that want those reclaimed
// should remove mp.UpperDir/mp.WorkDir themselves once they're sure no
// container still references the mount.
func (o *Overlay) Unmount(ctx context.Context, mp *MountPoint) error {
	if err := unix.Unmount(mp.Path, 0); err != nil {
		return fmt.Errorf("unmount %s: %w", mp.Path, err)
	}
	log.WithFunc("snapshot.Unmount").Infof(ctx, "unmounted %s", mp.Path)
	return nil
}
