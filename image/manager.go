package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/projecteru2/core/log"

	"github.com/virt-do/kaps/bundle"
	"github.com/virt-do/kaps/config"
	"github.com/virt-do/kaps/container"
	"github.com/virt-do/kaps/gc"
	"github.com/virt-do/kaps/lock/flock"
	"github.com/virt-do/kaps/snapshot"
	"github.com/virt-do/kaps/types"
)

// Manager is the Image Manager (component E): the single entry point for
// pull, listing, and mount, coordinating the Snapshotter, Bundle Builder,
// and Container State Store on top of its own State Store.
type Manager struct {
	cfg     *config.Config
	state   *Store
	puller  *Puller
	snapper *snapshot.Overlay
	bundler *bundle.Builder
	states  *container.Store
}

// NewManager wires a Manager over cfg, creating directories as needed.
func NewManager(ctx context.Context, cfg *config.Config) (*Manager, error) {
	if err := cfg.EnsureImageDirs(); err != nil {
		return nil, fmt.Errorf("ensure image dirs: %w", err)
	}
	state := NewStore(cfg)
	log.WithFunc("image.NewManager").Infof(ctx, "image manager initialized, root=%s", cfg.RootDir)
	return &Manager{
		cfg:     cfg,
		state:   state,
		puller:  NewPuller(cfg, state),
		snapper: snapshot.New(cfg),
		bundler: bundle.New(),
		states:  container.NewStore(cfg),
	}, nil
}

// State exposes the underlying State Store for other components
// (Snapshotter, Bundle Builder) that need to read image/layer metadata.
func (m *Manager) State() *Store { return m.state }

// Pull fetches reference into the local store, returning its metadata.
func (m *Manager) Pull(ctx context.Context, reference string) (*ImageMetadata, error) {
	return m.puller.Pull(ctx, reference)
}

// Mount stacks imageID's layers into a fresh overlay rootfs, synthesizes a
// runtime bundle over it, and records a new container in the Created
// state. It returns the new container's ID.
func (m *Manager) Mount(ctx context.Context, imageID string) (string, error) {
	meta, err := m.state.Image(ctx, imageID)
	if err != nil {
		return "", fmt.Errorf("image %q: %w", imageID, err)
	}

	layerDirs := make([]string, len(meta.Layers))
	for i, l := range meta.Layers {
		layerDirs[i] = l.StorePath
	}

	idx, err := m.state.NextSnapshotIndex(ctx)
	if err != nil {
		return "", fmt.Errorf("allocate snapshot index: %w", err)
	}

	containerID := fmt.Sprintf("%s-%d", truncate(meta.ID, 12), idx)
	bundlePath := m.cfg.BundlePath(containerID)
	rootfsPath := filepath.Join(bundlePath, bundle.RootfsDir)

	if err := os.MkdirAll(bundlePath, 0o750); err != nil {
		return "", fmt.Errorf("create bundle dir: %w", err)
	}

	if _, err := m.snapper.Mount(ctx, idx, layerDirs, rootfsPath, false); err != nil {
		return "", fmt.Errorf("mount snapshot: %w", err)
	}

	if err := m.bundler.Build(bundlePath, rootfsPath, &meta.Config); err != nil {
		return "", fmt.Errorf("build bundle: %w", err)
	}

	if _, err := m.states.Create(ctx, containerID, bundlePath, rootfsPath, idx); err != nil {
		return "", fmt.Errorf("create container state: %w", err)
	}
	if err := m.states.SetStatus(ctx, containerID, container.StatusCreated); err != nil {
		return "", fmt.Errorf("set container status: %w", err)
	}

	return containerID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// List returns summaries of every locally known image.
func (m *Manager) List(ctx context.Context) ([]*types.Image, error) {
	var out []*types.Image
	err := m.state.With(ctx, func(st *State) error {
		for _, img := range st.Images {
			var size int64
			for _, l := range img.Layers {
				if info, err := os.Stat(l.StorePath); err == nil {
					size += dirSize(info, l.StorePath)
				}
			}
			out = append(out, &types.Image{
				ID:        img.ID,
				Name:      img.Reference,
				Type:      "oci",
				Size:      size,
				CreatedAt: img.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}

func dirSize(info os.FileInfo, path string) int64 {
	if !info.IsDir() {
		return info.Size()
	}
	var total int64
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		total += dirSize(fi, filepath.Join(path, e.Name()))
	}
	return total
}

// gcSnapshot is what readSnapshot returns for the image module: every layer
// digest currently referenced by a known image, used to find unreferenced
// layer directories.
type gcSnapshot struct {
	referenced map[string]struct{}
	layers     map[string]*LayerMetadata
}

// RegisterGC adds the image module to orch: unreferenced layer directories
// (those no longer pointed to by any image) are removed, and the state
// store's layer map is pruned to match.
func (m *Manager) RegisterGC(orch *gc.Orchestrator) {
	gc.Register(orch, gc.Module[gcSnapshot]{
		Name: "image",
		// A lock file of its own: ReadDB and Collect go through m.state,
		// which takes the state lock itself.
		Locker: flock.New(filepath.Join(m.cfg.DBDir(), "gc.lock")),
		ReadDB: func(ctx context.Context) (gcSnapshot, error) {
			var snap gcSnapshot
			err := m.state.With(ctx, func(st *State) error {
				snap.referenced = st.ReferencedLayerDigests()
				snap.layers = make(map[string]*LayerMetadata, len(st.Layers))
				for digest, l := range st.Layers {
					cp := *l
					snap.layers[digest] = &cp
				}
				return nil
			})
			return snap, err
		},
		Resolve: func(snap gcSnapshot, _ map[string]any) []string {
			var stale []string
			for digest, layer := range snap.layers {
				if _, ok := snap.referenced[digest]; !ok {
					stale = append(stale, layer.ID)
				}
			}
			return stale
		},
		Collect: func(ctx context.Context, ids []string) error {
			logger := log.WithFunc("image.gc.Collect")
			for _, id := range ids {
				path := m.cfg.LayerPath(id)
				if err := os.RemoveAll(path); err != nil {
					return fmt.Errorf("remove layer %s: %w", id, err)
				}
				logger.Infof(ctx, "removed unreferenced layer %s", id)
			}
			if len(ids) == 0 {
				return nil
			}
			return m.state.Update(ctx, func(st *State) error {
				for _, id := range ids {
					for digest, l := range st.Layers {
						if l.ID == id {
							delete(st.Layers, digest)
						}
					}
				}
				return nil
			})
		},
	})
}
