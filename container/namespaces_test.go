package container

import (
	"errors"
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

func TestNamespaceFlags_MapsKnownTypes(t *testing.T) {
	namespaces := []specs.LinuxNamespace{
		{Type: specs.PIDNamespace},
		{Type: specs.NetworkNamespace},
		{Type: specs.MountNamespace},
	}
	flags, err := namespaceFlags(namespaces)
	if err != nil {
		t.Fatalf("namespaceFlags: %v", err)
	}
	want := uintptr(unix.CLONE_NEWPID | unix.CLONE_NEWNET | unix.CLONE_NEWNS)
	if flags != want {
		t.Fatalf("flags = %#x, want %#x", flags, want)
	}
}

func TestNamespaceFlags_EmptyYieldsZero(t *testing.T) {
	flags, err := namespaceFlags(nil)
	if err != nil {
		t.Fatalf("namespaceFlags: %v", err)
	}
	if flags != 0 {
		t.Fatalf("flags = %#x, want 0", flags)
	}
}

func TestNamespaceFlags_UserNamespaceExcluded(t *testing.T) {
	namespaces := []specs.LinuxNamespace{{Type: specs.UserNamespace}}
	flags, err := namespaceFlags(namespaces)
	if err != nil {
		t.Fatalf("namespaceFlags: %v", err)
	}
	if flags != 0 {
		t.Fatalf("flags = %#x, want 0 (user namespace must be excluded)", flags)
	}
}

func TestNamespaceFlags_UserNamespaceDoesNotMaskOthers(t *testing.T) {
	namespaces := []specs.LinuxNamespace{
		{Type: specs.UserNamespace},
		{Type: specs.PIDNamespace},
	}
	flags, err := namespaceFlags(namespaces)
	if err != nil {
		t.Fatalf("namespaceFlags: %v", err)
	}
	if flags != uintptr(unix.CLONE_NEWPID) {
		t.Fatalf("flags = %#x, want CLONE_NEWPID only", flags)
	}
}

func TestNamespaceFlags_UnknownTypeRejected(t *testing.T) {
	namespaces := []specs.LinuxNamespace{{Type: specs.LinuxNamespaceType("bogus")}}
	_, err := namespaceFlags(namespaces)
	if !errors.Is(err, ErrOCIInvalidNamespace) {
		t.Fatalf("err = %v, want ErrOCIInvalidNamespace", err)
	}
}
