// Package image implements the image-pull state machine: fetching OCI
// manifests and layers, verifying digests, and tracking what has already
// been cached on disk.
package image

import (
	"time"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// LayerMetadata describes one unpacked image layer.
//
// ID equals CompressedDigest (the full "sha256:<hex>" form). StorePath is
// a directory containing the unpacked tar contents, named after
// CompressedDigest with ':' replaced by '_'.
type LayerMetadata struct {
	ID                 string `json:"id"`
	CompressedDigest   string `json:"compressed_digest"`
	UncompressedDigest string `json:"uncompressed_digest"`
	StorePath          string `json:"store_path"`
}

// ImageMetadata describes one pulled image.
//
// Invariant: len(Layers) == len(Config.RootFS.DiffIDs), in manifest order.
type ImageMetadata struct {
	ID        string         `json:"id"`
	Reference string         `json:"reference"`
	Digest    string         `json:"digest"`
	Layers    []LayerMetadata `json:"layers"`
	Config    ociv1.Image    `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
}

// State is the on-disk registry of known images, layers, and the
// monotonic snapshot counter. It is the single JSON document backing the
// State Store (component A); a zero-value State is a valid empty state.
type State struct {
	Images map[string]*ImageMetadata `json:"images"`
	Layers map[string]*LayerMetadata `json:"layers"`
	Index  uint64                    `json:"index"`
}

// Init satisfies storage.Initer: it guarantees the maps are non-nil after
// deserialization (or on a first-run empty state), so callers never need
// a nil check before indexing into them.
func (s *State) Init() {
	if s.Images == nil {
		s.Images = make(map[string]*ImageMetadata)
	}
	if s.Layers == nil {
		s.Layers = make(map[string]*LayerMetadata)
	}
}

// HasImage reports whether id is known.
func (s *State) HasImage(id string) bool {
	_, ok := s.Images[id]
	return ok
}

// HasLayer reports whether a layer with the given compressed digest is known.
func (s *State) HasLayer(digest string) bool {
	_, ok := s.Layers[digest]
	return ok
}

// Image returns the metadata for id, if known.
func (s *State) Image(id string) (*ImageMetadata, bool) {
	m, ok := s.Images[id]
	return m, ok
}

// Layer returns the metadata for the layer with the given compressed digest.
func (s *State) Layer(digest string) (*LayerMetadata, bool) {
	m, ok := s.Layers[digest]
	return m, ok
}

// AddImage records img, keyed by its ID.
func (s *State) AddImage(img *ImageMetadata) {
	s.Init()
	s.Images[img.ID] = img
}

// AddLayer records layer, keyed by its compressed digest.
func (s *State) AddLayer(layer *LayerMetadata) {
	s.Init()
	s.Layers[layer.CompressedDigest] = layer
}

// NextSnapshotIndex increments the snapshot counter and returns its new
// value, so the first index handed out is 1.
// The caller is responsible for persisting the state afterward; the index
// is consumed (never reused) the moment this returns, regardless of
// whether the eventual mount succeeds.
func (s *State) NextSnapshotIndex() uint64 {
	s.Index++
	return s.Index
}

// ReferencedLayerDigests returns the set of layer digests referenced by
// any known image, used by GC to compute unreferenced layers.
func (s *State) ReferencedLayerDigests() map[string]struct{} {
	refs := make(map[string]struct{}, len(s.Layers))
	for _, img := range s.Images {
		for _, l := range img.Layers {
			refs[l.CompressedDigest] = struct{}{}
		}
	}
	return refs
}
