package image

import "errors"

var (
	// ErrInvalidReference is returned when an image reference string cannot
	// be parsed.
	ErrInvalidReference = errors.New("image: invalid reference")
	// ErrPullManifest is returned when the registry manifest cannot be
	// fetched or decoded.
	ErrPullManifest = errors.New("image: failed to pull manifest")
	// ErrPullConfig is returned when the image config blob cannot be
	// fetched or decoded.
	ErrPullConfig = errors.New("image: failed to pull config")
	// ErrPullLayer is returned when a layer blob cannot be fetched.
	ErrPullLayer = errors.New("image: failed to pull layer")
	// ErrUncompressedLayerInvalid is returned when a layer's decompressed
	// content does not hash to the digest declared in its config's
	// RootFS.DiffIDs.
	ErrUncompressedLayerInvalid = errors.New("image: uncompressed layer digest mismatch")
	// ErrImageNotFound is returned when an operation references an image ID
	// absent from the state store.
	ErrImageNotFound = errors.New("image: not found")
	// ErrLayerNotFound is returned when an operation references a layer
	// digest absent from the state store.
	ErrLayerNotFound = errors.New("image: layer not found")
)
