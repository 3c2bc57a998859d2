package container

import (
	"fmt"

	"github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

// namespaceFlags translates a runtime spec's requested Linux namespaces
// into the corresponding CLONE_NEW* flags for use with unix.SysProcAttr.
// Unlike the reference implementation this never panics on an unrecognized
// namespace type — it returns ErrOCIInvalidNamespace, leaving the caller
// free to fail the container creation cleanly.
func namespaceFlags(namespaces []specs.LinuxNamespace) (uintptr, error) {
	var flags uintptr
	for _, ns := range namespaces {
		flag, err := namespaceFlag(ns.Type)
		if err != nil {
			return 0, err
		}
		flags |= flag
	}
	return flags, nil
}

func namespaceFlag(typ specs.LinuxNamespaceType) (uintptr, error) {
	switch typ {
	case specs.CgroupNamespace:
		return unix.CLONE_NEWCGROUP, nil
	case specs.IPCNamespace:
		return unix.CLONE_NEWIPC, nil
	case specs.MountNamespace:
		return unix.CLONE_NEWNS, nil
	case specs.NetworkNamespace:
		return unix.CLONE_NEWNET, nil
	case specs.PIDNamespace:
		return unix.CLONE_NEWPID, nil
	case specs.UTSNamespace:
		return unix.CLONE_NEWUTS, nil
	case specs.UserNamespace:
		// Recognized but deliberately not cloned: this runtime never writes
		// a uid/gid map, so a process started with CLONE_NEWUSER would have
		// no valid mapping and fail at exec. Bundles requesting it still
		// start, just without an isolated user namespace.
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrOCIInvalidNamespace, typ)
	}
}
