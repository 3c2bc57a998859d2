package gc

import (
	"context"

	"github.com/virt-do/kaps/lock"
)

// Module describes one storage module that participates in garbage
// collection. S is the concrete type of the snapshot ReadDB produces; other
// modules see it only as any during Resolve.
type Module[S any] struct {
	Name string

	// Locker coordinates with active operations (e.g. pull/mount). TryLock
	// returning false means another operation is in progress; GC skips the
	// module for this cycle and retries on the next run.
	Locker lock.Locker

	// ReadDB reads the module's current index state. Called while the lock
	// is held — must not re-acquire it.
	ReadDB func(ctx context.Context) (S, error)

	// Resolve analyses this module's typed snapshot, with every
	// successfully-read module's snapshot available as map[string]any for
	// cross-module reference checks, and returns the resource IDs to delete.
	Resolve func(snap S, others map[string]any) []string

	// Collect removes the given resource IDs. Called while the lock is
	// held — must not re-acquire it. Invoked even with an empty ids slice so
	// a module can use the pass for housekeeping (e.g. stale temp cleanup).
	Collect func(ctx context.Context, ids []string) error
}

func (m Module[S]) getName() string       { return m.Name }
func (m Module[S]) getLocker() lock.Locker { return m.Locker }

func (m Module[S]) readSnapshot(ctx context.Context) (any, error) {
	return m.ReadDB(ctx)
}

func (m Module[S]) resolveTargets(snap any, others map[string]any) []string {
	typed, ok := snap.(S)
	if !ok {
		return nil
	}
	return m.Resolve(typed, others)
}

func (m Module[S]) collect(ctx context.Context, ids []string) error {
	return m.Collect(ctx, ids)
}
