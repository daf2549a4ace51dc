package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/c360studio/tagmirror/backend"
	"github.com/c360studio/tagmirror/config"
	"github.com/c360studio/tagmirror/entity"
)

// loadSnapshot reads an exported workspace snapshot from a JSON file.
func loadSnapshot(path string) (*entity.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap entity.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// applyWorkspace overrides the snapshot's workspace identity with any ids
// set in the config section.
func applyWorkspace(snap *entity.Snapshot, ws config.WorkspaceConfig) {
	if ws.AccountID != "" {
		snap.Workspace.AccountID = ws.AccountID
	}
	if ws.ContainerID != "" {
		snap.Workspace.ContainerID = ws.ContainerID
	}
	if ws.WorkspaceID != "" {
		snap.Workspace.WorkspaceID = ws.WorkspaceID
	}
}

// resolveSnapshotPath prefers the flag over the config's snapshotFile.
func resolveSnapshotPath(flag string, ws config.WorkspaceConfig, role string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if ws.SnapshotFile != "" {
		return ws.SnapshotFile, nil
	}
	return "", fmt.Errorf("no %s snapshot: pass --%s or set %s.snapshotFile in the config", role, role, role)
}

// openBackend seeds an in-memory adapter from a snapshot. The returned
// backend assigns ids with the given prefix for entities created into it.
func openBackend(snap *entity.Snapshot, idPrefix string) *backend.InMemory {
	b := backend.NewInMemory(snap.Workspace, idPrefix)
	b.Seed(snap)
	return b
}

// writeSnapshot exports a backend's current state back to a JSON file.
func writeSnapshot(path string, b backend.Backend) error {
	snap, err := backend.Snapshot(context.Background(), b, backend.ListOptions{Refresh: true})
	if err != nil {
		return fmt.Errorf("read back target: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
