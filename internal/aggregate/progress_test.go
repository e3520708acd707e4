package aggregate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileProgressKeepsCursorsPerName(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "progress.json")
	short := &FileProgress{Path: path, Name: ProgressName("vault", 60)}
	long := &FileProgress{Path: path, Name: ProgressName("vault", 3600)}

	if _, ok, err := short.Load(ctx); err != nil || ok {
		t.Fatalf("empty load: ok=%v err=%v", ok, err)
	}
	if err := short.Save(ctx, 120); err != nil {
		t.Fatalf("save short: %v", err)
	}
	if err := long.Save(ctx, 7200); err != nil {
		t.Fatalf("save long: %v", err)
	}
	if err := short.Save(ctx, 180); err != nil {
		t.Fatalf("save short again: %v", err)
	}

	if ts, ok, err := short.Load(ctx); err != nil || !ok || ts != 180 {
		t.Fatalf("short = %d ok=%v err=%v", ts, ok, err)
	}
	if ts, ok, err := long.Load(ctx); err != nil || !ok || ts != 7200 {
		t.Fatalf("long = %d ok=%v err=%v", ts, ok, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestFileProgressRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p := &FileProgress{Path: path, Name: "vault:60"}
	if _, _, err := p.Load(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := p.Save(context.Background(), 1); err == nil {
		t.Fatalf("save should not overwrite a corrupt file")
	}
}

type memoryTable struct {
	rows map[string]uint64
	err  error
}

func (m *memoryTable) LoadState(_ context.Context, name string) (uint64, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	ts, ok := m.rows[name]
	return ts, ok, nil
}

func (m *memoryTable) SaveState(_ context.Context, name string, ts uint64) error {
	if m.err != nil {
		return m.err
	}
	m.rows[name] = ts
	return nil
}

func TestPostgresProgress(t *testing.T) {
	ctx := context.Background()
	table := &memoryTable{rows: make(map[string]uint64)}
	p := &PostgresProgress{Table: table, Name: ProgressName("aggregate", 300)}

	if err := p.Save(ctx, 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	if table.rows["aggregate:300"] != 42 {
		t.Fatalf("rows = %v", table.rows)
	}
	if ts, ok, err := p.Load(ctx); err != nil || !ok || ts != 42 {
		t.Fatalf("load = %d ok=%v err=%v", ts, ok, err)
	}

	table.err = errors.New("connection reset")
	if _, _, err := p.Load(ctx); !errors.Is(err, table.err) {
		t.Fatalf("load err = %v", err)
	}

	var unset *PostgresProgress
	if _, ok, err := unset.Load(ctx); ok || err != nil {
		t.Fatalf("nil store: ok=%v err=%v", ok, err)
	}
}
