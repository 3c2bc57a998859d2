package container

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/projecteru2/core/log"

	"github.com/virt-do/kaps/bundle"
	"github.com/virt-do/kaps/container/cgroup"
	"github.com/virt-do/kaps/utils"
)

const stopGracePeriod = 10 * time.Second

// Launcher is the Launcher (component J): it loads a bundle's runtime
// spec, applies namespaces/mounts/cgroups, spawns the container process,
// and waits for it to exit.
//
// Cgroup wiring is not present in the reference implementation — nothing
// there ever constructs a Cpu or Memory controller — but the runtime spec
// this runtime implements requires it, so Run always applies
// spec.Linux.Resources when present.
type Launcher struct {
	states *Store
}

// NewLauncher builds a Launcher over the given container State Store.
func NewLauncher(states *Store) *Launcher {
	return &Launcher{states: states}
}

// Run loads container id's state, spawns its process per the bundle's
// config.json, and blocks until it exits. On any failure to spawn, mounts
// prepared so far are cleaned up before returning so a failed launch never
// leaks pseudo-filesystem mounts.
func (l *Launcher) Run(ctx context.Context, id string) error {
	logger := log.WithFunc("container.Run")

	st, err := l.states.Get(ctx, id)
	if err != nil {
		return err
	}

	spec, err := loadSpec(st.Bundle)
	if err != nil {
		return err
	}

	rootfs := resolveRootfs(st.Bundle, spec)
	mounts := defaultMounts()

	var cloneFlags uintptr
	if spec.Linux != nil {
		cloneFlags, err = namespaceFlags(spec.Linux.Namespaces)
		if err != nil {
			return err
		}
	}

	if err := prepareMounts(rootfs, mounts); err != nil {
		// prepareMounts unwinds its own partial work, but cleanupMounts is
		// idempotent-safe to call again here too: it only collects errors,
		// never panics on an already-absent mount.
		_ = cleanupMounts(rootfs, mounts)
		return fmt.Errorf("prepare mounts: %w", err)
	}

	args := processArgs(spec.Process)
	if len(args) == 0 {
		args = []string{"sh"}
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // args come from a caller-supplied bundle spec
	if spec.Process != nil {
		cmd.Env = spec.Process.Env
		if spec.Process.Cwd != "" {
			cmd.Dir = spec.Process.Cwd
		}
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Chroot:     rootfs,
		Cloneflags: cloneFlags,
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	var (
		cpuCtl *cgroup.CPU
		memCtl *cgroup.Memory
	)
	if spec.Linux != nil && spec.Linux.Resources != nil {
		cpuCtl, memCtl, err = l.setupCgroups(id, spec.Linux.Resources)
		if err != nil {
			_ = cleanupMounts(rootfs, mounts)
			return err
		}
	}

	if err := cmd.Start(); err != nil {
		_ = cleanupMounts(rootfs, mounts)
		return fmt.Errorf("%w: %v", ErrContainerSpawn, err)
	}

	pid := cmd.Process.Pid
	if err := l.states.SetPID(ctx, id, pid); err != nil {
		logger.Errorf(ctx, err, "persist pid for %s", id)
	}
	if err := l.states.SetStatus(ctx, id, StatusRunning); err != nil {
		logger.Errorf(ctx, err, "persist running status for %s", id)
	}

	if cpuCtl != nil {
		if err := cpuCtl.Apply(spec.Linux.Resources.CPU, pid); err != nil {
			logger.Errorf(ctx, err, "apply cpu cgroup for %s", id)
		}
	}
	if memCtl != nil {
		if err := memCtl.Apply(spec.Linux.Resources.Memory, pid); err != nil {
			logger.Errorf(ctx, err, "apply memory cgroup for %s", id)
		}
	}

	waitErr := cmd.Wait()

	if cpuCtl != nil {
		if err := cpuCtl.Delete(pid); err != nil {
			logger.Errorf(ctx, err, "teardown cpu cgroup for %s", id)
		}
	}
	if memCtl != nil {
		if err := memCtl.Delete(pid); err != nil {
			logger.Errorf(ctx, err, "teardown memory cgroup for %s", id)
		}
	}

	if err := cleanupMounts(rootfs, mounts); err != nil {
		logger.Errorf(ctx, err, "cleanup mounts for %s", id)
	}

	if setErr := l.states.SetStatus(ctx, id, StatusStopped); setErr != nil {
		logger.Errorf(ctx, setErr, "persist stopped status for %s", id)
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return fmt.Errorf("%w: exit code %d", ErrContainerExit, exitErr.ExitCode())
		}
		return fmt.Errorf("%w: %v", ErrContainerExit, waitErr)
	}
	return nil
}

// Stop signals container id's process to exit, escalating from SIGTERM to
// SIGKILL if it has not exited within stopGracePeriod, and marks the
// container stopped once the process is confirmed gone. A container with
// no recorded PID, or whose process is already gone, is only marked
// stopped; no signal is sent.
func (l *Launcher) Stop(ctx context.Context, id string) error {
	st, err := l.states.Get(ctx, id)
	if err != nil {
		return err
	}
	if st.PID == 0 || !utils.IsProcessAlive(st.PID) {
		return l.states.SetStatus(ctx, id, StatusStopped)
	}
	if err := utils.TerminateProcess(ctx, st.PID, stopGracePeriod); err != nil {
		return fmt.Errorf("terminate pid %d: %w", st.PID, err)
	}
	return l.states.SetStatus(ctx, id, StatusStopped)
}

func (l *Launcher) setupCgroups(id string, res *specs.LinuxResources) (*cgroup.CPU, *cgroup.Memory, error) {
	var (
		cpuCtl *cgroup.CPU
		memCtl *cgroup.Memory
		err    error
	)
	if res.CPU != nil {
		if cpuCtl, err = cgroup.NewCPU(id); err != nil {
			return nil, nil, fmt.Errorf("create cpu cgroup: %w", err)
		}
	}
	if res.Memory != nil {
		if memCtl, err = cgroup.NewMemory(id); err != nil {
			return cpuCtl, nil, fmt.Errorf("create memory cgroup: %w", err)
		}
	}
	return cpuCtl, memCtl, nil
}

func loadSpec(bundlePath string) (*specs.Spec, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, bundle.ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("read bundle spec: %w", err)
	}
	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode bundle spec: %w", err)
	}
	return &spec, nil
}

func resolveRootfs(bundlePath string, spec *specs.Spec) string {
	if spec.Root == nil || spec.Root.Path == "" {
		return filepath.Join(bundlePath, bundle.RootfsDir)
	}
	if filepath.IsAbs(spec.Root.Path) {
		return spec.Root.Path
	}
	return filepath.Join(bundlePath, spec.Root.Path)
}

func processArgs(p *specs.Process) []string {
	if p == nil {
		return nil
	}
	return p.Args
}
