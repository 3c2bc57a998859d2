package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureImageDirs creates all static directories required by the image
// manager and snapshotter.
func (c *Config) EnsureImageDirs() error {
	dirs := []string{
		c.DBDir(),
		c.TempDir(),
		c.LayersDir(),
		c.BundlesDir(),
		c.SnapshotsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Derived path helpers.

func (c *Config) DBDir() string   { return filepath.Join(c.RootDir, "db") }
func (c *Config) TempDir() string { return filepath.Join(c.RootDir, "temp") }

// StateFile is the single JSON file backing the State Store (component A).
func (c *Config) StateFile() string { return filepath.Join(c.DBDir(), "state.json") }
func (c *Config) StateLock() string { return filepath.Join(c.DBDir(), "state.lock") }

// LayersDir holds unpacked layer directories, one per compressed digest.
func (c *Config) LayersDir() string { return filepath.Join(c.RootDir, "layers") }

// LayerPath returns the unpack directory for a layer, named after its
// compressed digest (e.g. "sha256:abcd...") with ':' replaced by '_'.
func (c *Config) LayerPath(compressedDigest string) string {
	return filepath.Join(c.LayersDir(), strings.ReplaceAll(compressedDigest, ":", "_"))
}

// BundlesDir holds one bundle directory per mounted image.
func (c *Config) BundlesDir() string { return filepath.Join(c.RootDir, "bundles") }

func (c *Config) BundlePath(imageID string) string {
	return filepath.Join(c.BundlesDir(), imageID)
}

// SnapshotsDir holds per-snapshot-index overlay scratch directories
// (upperdir/workdir), one per successful mount.
func (c *Config) SnapshotsDir() string { return filepath.Join(c.RootDir, "snapshots") }

func (c *Config) SnapshotDir(index uint64) string {
	return filepath.Join(c.SnapshotsDir(), fmt.Sprintf("%d", index))
}

// ContainerDir returns the live-state directory for one container.
func (c *Config) ContainerDir(id string) string {
	return filepath.Join(c.ContainersDir, id)
}

func (c *Config) ContainerStateFile(id string) string {
	return filepath.Join(c.ContainerDir(id), "state.json")
}
