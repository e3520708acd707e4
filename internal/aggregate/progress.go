package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProgressStore remembers the last event timestamp whose windows are fully
// stored, so a rerun over the same typed-event file skips them.
type ProgressStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// ProgressName keys a cursor by run name and window size. Changing the window
// starts a fresh cursor instead of resuming a mismatched one.
func ProgressName(name string, windowSeconds uint64) string {
	return fmt.Sprintf("%s:%d", name, windowSeconds)
}

// FileProgress keeps the cursors of every run in one JSON file and reads and
// writes the one under Name.
type FileProgress struct {
	Path string
	Name string
}

type progressFile struct {
	Cursors map[string]progressCursor `json:"cursors"`
}

type progressCursor struct {
	LastProcessed uint64 `json:"last_processed_ts"`
	UpdatedAt     string `json:"updated_at"`
}

func (p *FileProgress) Load(ctx context.Context) (uint64, bool, error) {
	if p == nil || p.Path == "" {
		return 0, false, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	file, err := p.read()
	if err != nil {
		return 0, false, err
	}
	cursor, ok := file.Cursors[p.Name]
	if !ok {
		return 0, false, nil
	}
	return cursor.LastProcessed, true, nil
}

func (p *FileProgress) Save(ctx context.Context, ts uint64) error {
	if p == nil || p.Path == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := p.read()
	if err != nil {
		return err
	}
	file.Cursors[p.Name] = progressCursor{
		LastProcessed: ts,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return replaceFile(p.Path, data)
}

func (p *FileProgress) read() (progressFile, error) {
	file := progressFile{Cursors: make(map[string]progressCursor)}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, fmt.Errorf("read progress: %w", err)
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse progress %s: %w", p.Path, err)
	}
	if file.Cursors == nil {
		file.Cursors = make(map[string]progressCursor)
	}
	return file, nil
}

// replaceFile writes data next to path and renames it into place.
func replaceFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create progress dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename progress: %w", err)
	}
	return nil
}

// ProgressTable is the aggregator_state access of postgres.Store.
type ProgressTable interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, ts uint64) error
}

// PostgresProgress keeps the cursor under Name in the aggregator_state table.
type PostgresProgress struct {
	Table ProgressTable
	Name  string
}

func (p *PostgresProgress) Load(ctx context.Context) (uint64, bool, error) {
	if p == nil || p.Table == nil {
		return 0, false, nil
	}
	ts, ok, err := p.Table.LoadState(ctx, p.Name)
	if err != nil {
		return 0, false, fmt.Errorf("load progress %s: %w", p.Name, err)
	}
	return ts, ok, nil
}

func (p *PostgresProgress) Save(ctx context.Context, ts uint64) error {
	if p == nil || p.Table == nil {
		return nil
	}
	if err := p.Table.SaveState(ctx, p.Name, ts); err != nil {
		return fmt.Errorf("save progress %s: %w", p.Name, err)
	}
	return nil
}
