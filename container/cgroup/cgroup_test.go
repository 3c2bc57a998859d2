package cgroup

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
)

// withFakeRoot points rootDir at a temp directory for the duration of the
// test, so subsystem file writes land in a throwaway tree instead of the
// real cgroupfs. Only delete depends on the kernel: it is a plain rmdir,
// which cgroupfs allows while the control files are present, so tests
// remove the fake control files before deleting.
func withFakeRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := rootDir
	rootDir = dir
	t.Cleanup(func() { rootDir = old })
	return dir
}

func TestSubsystem_CreateAddRemoveDelete(t *testing.T) {
	withFakeRoot(t)
	sub := newSubsystem("cpu", "c1")

	if err := sub.create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := os.Stat(sub.path); err != nil {
		t.Fatalf("cgroup dir not created: %v", err)
	}

	if err := sub.addTask(123); err != nil {
		t.Fatalf("addTask: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(sub.path, "tasks"))
	if err != nil {
		t.Fatalf("read tasks: %v", err)
	}
	if string(got) != "123" {
		t.Fatalf("tasks = %q, want 123", got)
	}

	// removeTask writes to the controller's root tasks file, which must
	// exist first since it lives outside the per-container cgroup dir.
	if err := os.MkdirAll(filepath.Join(rootDir, "cpu"), 0o755); err != nil {
		t.Fatalf("mkdir root cpu dir: %v", err)
	}
	if err := sub.removeTask("cpu", 123); err != nil {
		t.Fatalf("removeTask: %v", err)
	}

	if err := os.Remove(filepath.Join(sub.path, "tasks")); err != nil {
		t.Fatalf("remove fake tasks file: %v", err)
	}
	if err := sub.delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(sub.path); !os.IsNotExist(err) {
		t.Fatalf("expected cgroup dir removed, stat err = %v", err)
	}
}

func TestWriteIfNonZero_SkipsZeroAndNil(t *testing.T) {
	withFakeRoot(t)
	sub := newSubsystem("memory", "c2")
	if err := sub.create(); err != nil {
		t.Fatalf("create: %v", err)
	}

	zero := int64(0)
	if err := writeIfNonZeroInt(sub, "memory.limit_in_bytes", &zero); err != nil {
		t.Fatalf("writeIfNonZeroInt(zero): %v", err)
	}
	if err := writeIfNonZeroInt(sub, "memory.limit_in_bytes", nil); err != nil {
		t.Fatalf("writeIfNonZeroInt(nil): %v", err)
	}
	if _, err := os.Stat(filepath.Join(sub.path, "memory.limit_in_bytes")); !os.IsNotExist(err) {
		t.Fatalf("expected no file written for zero/nil values")
	}

	limit := int64(1 << 20)
	if err := writeIfNonZeroInt(sub, "memory.limit_in_bytes", &limit); err != nil {
		t.Fatalf("writeIfNonZeroInt: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(sub.path, "memory.limit_in_bytes"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != strconv.FormatInt(limit, 10) {
		t.Fatalf("content = %q, want %d", got, limit)
	}
}

func TestCPU_ApplyWritesSharesAndAttaches(t *testing.T) {
	withFakeRoot(t)
	if err := os.MkdirAll(filepath.Join(rootDir, "cpu"), 0o755); err != nil {
		t.Fatalf("mkdir root cpu dir: %v", err)
	}

	cpu, err := NewCPU("c3")
	if err != nil {
		t.Fatalf("NewCPU: %v", err)
	}
	shares := uint64(512)
	if err := cpu.Apply(&specs.LinuxCPU{Shares: &shares}, 999); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(cpu.sub.path, "cpu.shares"))
	if err != nil {
		t.Fatalf("read cpu.shares: %v", err)
	}
	if string(got) != "512" {
		t.Fatalf("cpu.shares = %q, want 512", got)
	}

	for _, f := range []string{"cpu.shares", "tasks"} {
		if err := os.Remove(filepath.Join(cpu.sub.path, f)); err != nil {
			t.Fatalf("remove fake %s file: %v", f, err)
		}
	}
	if err := cpu.Delete(999); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
