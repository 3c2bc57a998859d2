package container

import (
	"context"
	"testing"
)

func TestLauncherStop_NoRecordedPIDMarksStopped(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	if _, err := store.Create(ctx, "c1", "/bundle", "/rootfs", 1); err != nil {
		t.Fatalf("Create: %v", err)
	}

	launcher := NewLauncher(store)
	if err := launcher.Stop(ctx, "c1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusStopped {
		t.Fatalf("Status = %q, want %q", got.Status, StatusStopped)
	}
}

func TestLauncherStop_UnknownContainerErrors(t *testing.T) {
	store := testStore(t)
	launcher := NewLauncher(store)
	if err := launcher.Stop(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for an unknown container")
	}
}
