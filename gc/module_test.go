package gc

import (
	"context"
	"testing"
)

type fakeLocker struct{}

func (fakeLocker) Lock(context.Context) error          { return nil }
func (fakeLocker) Unlock(context.Context) error         { return nil }
func (fakeLocker) TryLock(context.Context) (bool, error) { return true, nil }

func TestOrchestrator_CollectsUnreferencedTargets(t *testing.T) {
	var collected []string

	type snapshot struct{ ids []string }

	orch := New()
	Register(orch, Module[snapshot]{
		Name:   "fake",
		Locker: fakeLocker{},
		ReadDB: func(context.Context) (snapshot, error) {
			return snapshot{ids: []string{"stale-1", "stale-2"}}, nil
		},
		Resolve: func(snap snapshot, _ map[string]any) []string {
			return snap.ids
		},
		Collect: func(_ context.Context, ids []string) error {
			collected = append(collected, ids...)
			return nil
		},
	})

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(collected) != 2 || collected[0] != "stale-1" || collected[1] != "stale-2" {
		t.Fatalf("collected = %v", collected)
	}
}

func TestOrchestrator_EmptyResolveStillCollects(t *testing.T) {
	called := false

	type snapshot struct{}

	orch := New()
	Register(orch, Module[snapshot]{
		Name:    "noop",
		Locker:  fakeLocker{},
		ReadDB:  func(context.Context) (snapshot, error) { return snapshot{}, nil },
		Resolve: func(snapshot, map[string]any) []string { return nil },
		Collect: func(_ context.Context, ids []string) error {
			called = true
			if len(ids) != 0 {
				t.Fatalf("ids = %v, want empty", ids)
			}
			return nil
		},
	})

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatal("expected Collect to be called even with no targets")
	}
}
