// Package container implements the container lifecycle: translating an OCI
// runtime Spec into namespaces, mounts, cgroup limits, and a supervised
// process, and tracking each container's on-disk state.
package container

import "errors"

var (
	// ErrContainerExists is returned when creating a container whose ID is
	// already tracked.
	ErrContainerExists = errors.New("container: already exists")
	// ErrContainerNotFound is returned when an operation references an
	// unknown container ID.
	ErrContainerNotFound = errors.New("container: not found")
	// ErrOCIInvalidNamespace is returned when a runtime spec names a
	// namespace type this runtime does not recognize.
	ErrOCIInvalidNamespace = errors.New("container: invalid OCI namespace type")
	// ErrContainerExit is returned when the container process exits with a
	// non-zero status. The caller can unwrap to recover the exit code.
	ErrContainerExit = errors.New("container: process exited with non-zero status")
	// ErrContainerSpawn wraps failures starting the container process.
	ErrContainerSpawn = errors.New("container: failed to spawn process")
)
