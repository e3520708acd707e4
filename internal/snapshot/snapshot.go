// Package snapshot persists point-in-time reports of committed vault state.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"liquidityVault/internal/model"
	"liquidityVault/internal/storage/postgres"
)

// Store saves and loads vault snapshots.
type Store interface {
	Save(ctx context.Context, snap model.VaultSnapshot) error
	Load(ctx context.Context) (model.VaultSnapshot, bool, error)
}

// FileStore keeps the latest snapshot in one JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) (model.VaultSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.VaultSnapshot{}, false, err
	}
	stat, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.VaultSnapshot{}, false, nil
		}
		return model.VaultSnapshot{}, false, fmt.Errorf("stat snapshot: %w", err)
	}
	if stat.IsDir() {
		return model.VaultSnapshot{}, false, fmt.Errorf("snapshot path is a directory")
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return model.VaultSnapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var snap model.VaultSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.VaultSnapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

func (f *FileStore) Save(ctx context.Context, snap model.VaultSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// PostgresStore keeps every snapshot of one vault in the vault_snapshots
// table. Load returns the one with the highest session id.
type PostgresStore struct {
	store *postgres.Store
	vault string
}

func NewPostgresStore(store *postgres.Store, vaultAddress string) *PostgresStore {
	return &PostgresStore{store: store, vault: vaultAddress}
}

func (p *PostgresStore) Save(ctx context.Context, snap model.VaultSnapshot) error {
	return p.store.SaveSnapshot(ctx, p.vault, snap)
}

func (p *PostgresStore) Load(ctx context.Context) (model.VaultSnapshot, bool, error) {
	return p.store.LatestSnapshot(ctx, p.vault)
}
