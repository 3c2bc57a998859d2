package cgroup

import (
	"github.com/opencontainers/runtime-spec/specs-go"
)

const cpuController = "cpu"

// CPU manages one container's cpu cgroup v1 subsystem.
type CPU struct {
	id  string
	sub *subsystem
}

// NewCPU creates the cgroup directory for container id under the cpu
// controller.
func NewCPU(id string) (*CPU, error) {
	sub := newSubsystem(cpuController, id)
	if err := sub.create(); err != nil {
		return nil, err
	}
	return &CPU{id: id, sub: sub}, nil
}

// Apply writes res's shares/period/quota/realtime settings and attaches
// pid to the cgroup. Zero-valued fields are left at the
// kernel default, matching the reference implementation's behavior.
func (c *CPU) Apply(res *specs.LinuxCPU, pid int) error {
	if res != nil {
		if err := writeIfNonZeroUint(c.sub, "cpu.shares", res.Shares); err != nil {
			return err
		}
		if err := writeIfNonZeroUint(c.sub, "cpu.cfs_period_us", res.Period); err != nil {
			return err
		}
		if err := writeIfNonZeroInt(c.sub, "cpu.cfs_quota_us", res.Quota); err != nil {
			return err
		}
		if err := writeIfNonZeroInt(c.sub, "cpu.rt_runtime_us", res.RealtimeRuntime); err != nil {
			return err
		}
		if err := writeIfNonZeroUint(c.sub, "cpu.rt_period_us", res.RealtimePeriod); err != nil {
			return err
		}
	}
	return c.sub.addTask(pid)
}

// Delete detaches pid and removes the cgroup.
func (c *CPU) Delete(pid int) error {
	if err := c.sub.removeTask(cpuController, pid); err != nil {
		return err
	}
	return c.sub.delete()
}
