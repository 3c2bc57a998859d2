package image

import (
	"context"
	"fmt"

	"github.com/virt-do/kaps/config"
	jsonstore "github.com/virt-do/kaps/storage/json"
)

// Store is the State Store (component A): locked read/modify/write access
// to the single JSON document tracking known images, layers, and the
// monotonic snapshot counter.
type Store struct {
	inner *jsonstore.Store[State]
}

// NewStore builds a Store backed by cfg's state file and lock path.
func NewStore(cfg *config.Config) *Store {
	return &Store{inner: jsonstore.New[State](cfg.StateLock(), cfg.StateFile())}
}

// With loads the state under lock and passes it to fn. Use this for
// read-only queries; fn's return value is propagated but no write occurs.
func (s *Store) With(ctx context.Context, fn func(*State) error) error {
	return s.inner.With(ctx, fn)
}

// Update performs a read-modify-write of the state under lock, persisting
// the result if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(*State) error) error {
	return s.inner.Update(ctx, fn)
}

// HasImage reports whether id is already known, without needing a caller
// to write their own With closure for the common case.
func (s *Store) HasImage(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.With(ctx, func(st *State) error {
		found = st.HasImage(id)
		return nil
	})
	return found, err
}

// Image returns a copy of the metadata for id.
func (s *Store) Image(ctx context.Context, id string) (ImageMetadata, error) {
	var out ImageMetadata
	err := s.With(ctx, func(st *State) error {
		m, ok := st.Image(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrImageNotFound, id)
		}
		out = *m
		return nil
	})
	return out, err
}

// Layer returns a copy of the metadata for the layer with the given
// compressed digest.
func (s *Store) Layer(ctx context.Context, digest string) (LayerMetadata, error) {
	var out LayerMetadata
	err := s.With(ctx, func(st *State) error {
		m, ok := st.Layer(digest)
		if !ok {
			return fmt.Errorf("%w: %s", ErrLayerNotFound, digest)
		}
		out = *m
		return nil
	})
	return out, err
}

// NextSnapshotIndex atomically increments and persists the snapshot
// counter, returning the freshly allocated value. Every call consumes an
// index, even if the caller's eventual mount attempt fails, guaranteeing
// snapshot directory names are never reused within the lifetime of the
// state file.
func (s *Store) NextSnapshotIndex(ctx context.Context) (uint64, error) {
	var idx uint64
	err := s.Update(ctx, func(st *State) error {
		idx = st.NextSnapshotIndex()
		return nil
	})
	return idx, err
}

// ReferencedLayerDigests returns the set of layer digests currently
// referenced by any known image.
func (s *Store) ReferencedLayerDigests(ctx context.Context) (map[string]struct{}, error) {
	var refs map[string]struct{}
	err := s.With(ctx, func(st *State) error {
		refs = st.ReferencedLayerDigests()
		return nil
	})
	return refs, err
}
