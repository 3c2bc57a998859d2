package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	ggcrv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/projecteru2/core/log"
	"golang.org/x/sync/errgroup"

	"github.com/virt-do/kaps/config"
)

// Puller is the Puller (component B): fetches an image's manifest, config,
// and layers from a registry, verifies digests, and unpacks layers into the
// layer store, deduplicating against what is already cached.
type Puller struct {
	cfg   *config.Config
	state *Store
}

// NewPuller builds a Puller that persists into the given State Store.
func NewPuller(cfg *config.Config, state *Store) *Puller {
	return &Puller{cfg: cfg, state: state}
}

// Pull fetches reference, returning its ImageMetadata. If an image with the
// same manifest digest has already been pulled, Pull returns the cached
// metadata without hitting the network for layer content — though the
// manifest itself is always re-resolved, so a moving tag is detected.
func (p *Puller) Pull(ctx context.Context, reference string) (*ImageMetadata, error) {
	logger := log.WithFunc("image.Pull")

	ref, err := name.ParseReference(reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidReference, reference, err)
	}

	img, err := remote.Image(ref,
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
		remote.WithContext(ctx),
		remote.WithPlatform(ggcrv1.Platform{Architecture: runtime.GOARCH, OS: "linux"}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPullManifest, ref, err)
	}

	manifestDigest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("%w: digest: %v", ErrPullManifest, err)
	}
	imageID := manifestDigest.Hex

	if existing, ok := p.state.hasMatchingImage(ctx, imageID, manifestDigest.String()); ok {
		logger.Infof(ctx, "image %s already pulled (digest %s)", ref, manifestDigest)
		return existing, nil
	}

	rawConfig, err := img.RawConfigFile()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPullConfig, err)
	}
	var imgConfig ociv1.Image
	if err := json.Unmarshal(rawConfig, &imgConfig); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPullConfig, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("%w: layers: %v", ErrPullManifest, err)
	}
	if len(layers) != len(imgConfig.RootFS.DiffIDs) {
		return nil, fmt.Errorf("%w: manifest has %d layers but config declares %d diff ids",
			ErrPullManifest, len(layers), len(imgConfig.RootFS.DiffIDs))
	}

	results := make([]LayerMetadata, len(layers))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(p.cfg.PoolSize)
	for i, layer := range layers {
		i, layer := i, layer
		wantDiffID := imgConfig.RootFS.DiffIDs[i].Encoded()
		grp.Go(func() error {
			meta, err := p.pullLayer(gctx, layer, wantDiffID)
			if err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
			results[i] = *meta
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	meta := &ImageMetadata{
		ID:        imageID,
		Reference: ref.String(),
		Digest:    manifestDigest.String(),
		Layers:    results,
		Config:    imgConfig,
		CreatedAt: time.Now().UTC(),
	}

	if err := p.state.Update(ctx, func(st *State) error {
		for i := range results {
			st.AddLayer(&results[i])
		}
		st.AddImage(meta)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("persist pulled image: %w", err)
	}

	logger.Infof(ctx, "pulled %s (id %s, %d layers)", ref, imageID, len(layers))
	return meta, nil
}

// pullLayer downloads and unpacks a single layer, skipping work entirely if
// its compressed digest is already present in the layer store.
func (p *Puller) pullLayer(ctx context.Context, layer ggcrv1.Layer, wantDiffID string) (*LayerMetadata, error) {
	logger := log.WithFunc("image.pullLayer")

	digest, err := layer.Digest()
	if err != nil {
		return nil, fmt.Errorf("%w: digest: %v", ErrPullLayer, err)
	}
	compressedDigest := digest.String()

	if existing, ok := p.state.hasLayer(ctx, compressedDigest); ok {
		logger.Infof(ctx, "layer %s already cached", compressedDigest)
		return existing, nil
	}

	storePath := p.cfg.LayerPath(compressedDigest)
	workDir, err := os.MkdirTemp(p.cfg.TempDir(), "layer-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	rc, err := layer.Compressed()
	if err != nil {
		return nil, fmt.Errorf("%w: open compressed stream: %v", ErrPullLayer, err)
	}
	defer rc.Close() //nolint:errcheck

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrPullLayer, err)
	}
	defer gz.Close() //nolint:errcheck

	h := sha256.New()
	if err := untar(io.TeeReader(gz, h), workDir); err != nil {
		return nil, fmt.Errorf("%w: unpack: %v", ErrPullLayer, err)
	}

	gotDiffID := hex.EncodeToString(h.Sum(nil))
	if gotDiffID != wantDiffID {
		return nil, fmt.Errorf("%w: got sha256:%s, want sha256:%s",
			ErrUncompressedLayerInvalid, gotDiffID, wantDiffID)
	}

	if err := os.Rename(workDir, storePath); err != nil {
		// Another pull of the same layer may have placed it first; that
		// copy is complete and verified, so keep it.
		if _, statErr := os.Stat(storePath); statErr != nil {
			return nil, fmt.Errorf("move layer into store: %w", err)
		}
	}

	logger.Infof(ctx, "unpacked layer %s -> %s", compressedDigest, storePath)
	return &LayerMetadata{
		ID:                 compressedDigest,
		CompressedDigest:   compressedDigest,
		UncompressedDigest: "sha256:" + gotDiffID,
		StorePath:          storePath,
	}, nil
}

// hasMatchingImage reports whether an image with id and the same manifest
// digest is already known, returning its metadata if so.
func (s *Store) hasMatchingImage(ctx context.Context, id, digest string) (*ImageMetadata, bool) {
	var out *ImageMetadata
	_ = s.With(ctx, func(st *State) error {
		if m, ok := st.Image(id); ok && m.Digest == digest {
			cp := *m
			out = &cp
		}
		return nil
	})
	return out, out != nil
}

// hasLayer reports whether a layer with the given compressed digest is
// already known, returning its metadata if so.
func (s *Store) hasLayer(ctx context.Context, compressedDigest string) (*LayerMetadata, bool) {
	var out *LayerMetadata
	_ = s.With(ctx, func(st *State) error {
		if l, ok := st.Layer(compressedDigest); ok {
			cp := *l
			out = &cp
		}
		return nil
	})
	return out, out != nil
}

// newTempID returns a random UUID string. Bundle and container IDs are not
// generated with it: Manager.Mount derives them from the image ID and the
// snapshot index.
func newTempID() string {
	return uuid.NewString()
}
