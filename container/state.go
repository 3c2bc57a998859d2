package container

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/virt-do/kaps/config"
	jsonstore "github.com/virt-do/kaps/storage/json"
)

const ociVersion = "0.2.0"

// Status is a container's lifecycle status, per the OCI runtime spec's
// state machine.
type Status string

const (
	StatusCreating Status = "creating"
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
)

// State is the on-disk record of one container, persisted as this
// container's state.json (component I).
type State struct {
	ID          string    `json:"id"`
	OCIVersion  string    `json:"oci_version"`
	Status      Status    `json:"status"`
	PID         int       `json:"pid"`
	Bundle      string    `json:"bundle"`
	Rootfs      string    `json:"rootfs"`
	SnapshotIdx uint64    `json:"snapshot_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the per-container State Store: each container ID gets its own
// lock and JSON file under cfg.ContainerDir(id), so operations on distinct
// containers never contend with each other.
type Store struct {
	cfg *config.Config
}

// NewStore builds a Store rooted at cfg.ContainersDir.
func NewStore(cfg *config.Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) storeFor(id string) *jsonstore.Store[State] {
	lockPath := s.cfg.ContainerStateFile(id) + ".lock"
	return jsonstore.New[State](lockPath, s.cfg.ContainerStateFile(id))
}

// Create initializes a new container's on-disk state. It fails with
// ErrContainerExists if the container directory already exists, mirroring
// the exclusivity the OCI runtime spec requires of `create`.
func (s *Store) Create(ctx context.Context, id, bundlePath, rootfsPath string, snapshotIdx uint64) (*State, error) {
	dir := s.cfg.ContainerDir(id)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrContainerExists, id)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create container dir: %w", err)
	}

	st := &State{
		ID:          id,
		OCIVersion:  ociVersion,
		Status:      StatusCreating,
		Bundle:      bundlePath,
		Rootfs:      rootfsPath,
		SnapshotIdx: snapshotIdx,
		CreatedAt:   time.Now().UTC(),
	}
	store := s.storeFor(id)
	if err := store.Update(ctx, func(s *State) error {
		*s = *st
		return nil
	}); err != nil {
		return nil, fmt.Errorf("persist container state: %w", err)
	}
	return st, nil
}

// Get loads the current state of container id.
func (s *Store) Get(ctx context.Context, id string) (*State, error) {
	if _, err := os.Stat(s.cfg.ContainerDir(id)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, id)
	}
	var out State
	if err := s.storeFor(id).With(ctx, func(st *State) error {
		out = *st
		return nil
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetStatus persists a status transition for container id.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	return s.storeFor(id).Update(ctx, func(st *State) error {
		st.Status = status
		return nil
	})
}

// SetPID records the PID of the running container process.
func (s *Store) SetPID(ctx context.Context, id string, pid int) error {
	return s.storeFor(id).Update(ctx, func(st *State) error {
		st.PID = pid
		return nil
	})
}

// Remove deletes a container's state directory entirely.
func (s *Store) Remove(_ context.Context, id string) error {
	if err := os.RemoveAll(s.cfg.ContainerDir(id)); err != nil {
		return fmt.Errorf("remove container dir: %w", err)
	}
	return nil
}

// List returns the IDs of every container with on-disk state.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.ContainersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list containers: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
