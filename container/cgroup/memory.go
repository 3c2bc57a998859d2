package cgroup

import (
	"github.com/opencontainers/runtime-spec/specs-go"
)

const memoryController = "memory"

// Memory manages one container's memory cgroup v1 subsystem.
type Memory struct {
	id  string
	sub *subsystem
}

// NewMemory creates the cgroup directory for container id under the
// memory controller.
func NewMemory(id string) (*Memory, error) {
	sub := newSubsystem(memoryController, id)
	if err := sub.create(); err != nil {
		return nil, err
	}
	return &Memory{id: id, sub: sub}, nil
}

// Apply writes res's limit/reservation/kernel/swappiness/oom settings and
// attaches pid to the cgroup.
func (m *Memory) Apply(res *specs.LinuxMemory, pid int) error {
	if res != nil {
		if err := writeIfNonZeroInt(m.sub, "memory.limit_in_bytes", res.Limit); err != nil {
			return err
		}
		if err := writeIfNonZeroInt(m.sub, "memory.soft_limit_in_bytes", res.Reservation); err != nil {
			return err
		}
		if err := writeIfNonZeroInt(m.sub, "memory.kmem.limit_in_bytes", res.Kernel); err != nil {
			return err
		}
		if err := writeIfNonZeroInt(m.sub, "memory.kmem.tcp.limit_in_bytes", res.KernelTCP); err != nil {
			return err
		}
		if err := writeIfNonZeroUint(m.sub, "memory.swappiness", res.Swappiness); err != nil {
			return err
		}
		if res.DisableOOMKiller != nil {
			v := "0"
			if *res.DisableOOMKiller {
				v = "1"
			}
			if err := m.sub.writeFile("memory.oom_control", v); err != nil {
				return err
			}
		}
	}
	return m.sub.addTask(pid)
}

// Delete detaches pid and removes the cgroup.
func (m *Memory) Delete(pid int) error {
	if err := m.sub.removeTask(memoryController, pid); err != nil {
		return err
	}
	return m.sub.delete()
}
