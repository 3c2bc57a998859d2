package container

import (
	"context"
	"errors"
	"testing"

	"github.com/virt-do/kaps/config"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ContainersDir = t.TempDir()
	return NewStore(cfg)
}

func TestCreate_DuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if _, err := store.Create(ctx, "c1", "/bundle", "/rootfs", 1); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := store.Create(ctx, "c1", "/bundle", "/rootfs", 2)
	if !errors.Is(err, ErrContainerExists) {
		t.Fatalf("err = %v, want ErrContainerExists", err)
	}
}

func TestCreate_GetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	created, err := store.Create(ctx, "c2", "/bundle", "/rootfs", 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != StatusCreating {
		t.Fatalf("Status = %q, want %q", created.Status, StatusCreating)
	}

	got, err := store.Get(ctx, "c2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Bundle != "/bundle" || got.SnapshotIdx != 7 {
		t.Fatalf("Get = %+v", got)
	}
}

func TestGet_UnknownContainerReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	_, err := store.Get(ctx, "missing")
	if !errors.Is(err, ErrContainerNotFound) {
		t.Fatalf("err = %v, want ErrContainerNotFound", err)
	}
}

func TestSetStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if _, err := store.Create(ctx, "c3", "/bundle", "/rootfs", 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, status := range []Status{StatusCreated, StatusRunning, StatusStopped} {
		if err := store.SetStatus(ctx, "c3", status); err != nil {
			t.Fatalf("SetStatus(%s): %v", status, err)
		}
		got, err := store.Get(ctx, "c3")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != status {
			t.Fatalf("Status = %q, want %q", got.Status, status)
		}
	}
}

func TestSetPID_Persists(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if _, err := store.Create(ctx, "c4", "/bundle", "/rootfs", 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetPID(ctx, "c4", 4242); err != nil {
		t.Fatalf("SetPID: %v", err)
	}
	got, err := store.Get(ctx, "c4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PID != 4242 {
		t.Fatalf("PID = %d, want 4242", got.PID)
	}
}

func TestList_ReturnsAllContainerIDs(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(ctx, id, "/bundle", "/rootfs", 1); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}
	ids, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("List = %v, want 3 entries", ids)
	}
}

func TestRemove_DeletesState(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if _, err := store.Create(ctx, "c5", "/bundle", "/rootfs", 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Remove(ctx, "c5"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Get(ctx, "c5"); !errors.Is(err, ErrContainerNotFound) {
		t.Fatalf("err = %v, want ErrContainerNotFound after Remove", err)
	}
}
