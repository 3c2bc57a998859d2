// Package cgroup implements the Cgroup Controllers (component F): applying
// an OCI runtime spec's LinuxResources to cgroup v1 CPU and memory
// controllers.
//
// No cgroups client library appears anywhere in the retrieved reference
// corpus usable from Go (the only candidate is a vendored, test-only
// fragment of runc's libcontainer/cgroups), so these controllers write
// directly to the cgroupfs files, matching what the reference
// implementation's own thin wrapper over the kernel interface does.
package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// rootDir is the cgroup v1 mountpoint. Overridable in tests.
var rootDir = "/sys/fs/cgroup"

const groupName = "kaps"

// subsystem is shared plumbing for one cgroup v1 controller scoped to a
// single container by ID.
type subsystem struct {
	path string
}

func newSubsystem(controller, id string) *subsystem {
	return &subsystem{path: filepath.Join(rootDir, controller, groupName, id)}
}

// create makes the cgroup directory, which the kernel populates with the
// controller's default interface files.
func (s *subsystem) create() error {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("create cgroup %s: %w", s.path, err)
	}
	return nil
}

// addTask attaches pid to this cgroup.
func (s *subsystem) addTask(pid int) error {
	return s.writeFile("tasks", strconv.Itoa(pid))
}

// removeTask moves pid back to the root cgroup for this controller.
func (s *subsystem) removeTask(controller string, pid int) error {
	rootTasks := filepath.Join(rootDir, controller, "tasks")
	return os.WriteFile(rootTasks, []byte(strconv.Itoa(pid)), 0o644) //nolint:gosec // cgroupfs control file
}

// delete removes the cgroup directory. The kernel refuses this while any
// task remains attached, so callers must removeTask first.
func (s *subsystem) delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cgroup %s: %w", s.path, err)
	}
	return nil
}

func (s *subsystem) writeFile(name, value string) error {
	path := filepath.Join(s.path, name)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil { //nolint:gosec // cgroupfs control file
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeIfNonZeroInt(s *subsystem, file string, v *int64) error {
	if v == nil || *v == 0 {
		return nil
	}
	return s.writeFile(file, strconv.FormatInt(*v, 10))
}

func writeIfNonZeroUint(s *subsystem, file string, v *uint64) error {
	if v == nil || *v == 0 {
		return nil
	}
	return s.writeFile(file, strconv.FormatUint(*v, 10))
}
