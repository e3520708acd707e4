package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"liquidityVault/internal/model"
)

func TestJSONLWriterTruncatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")

	w, err := newJSONLWriter(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w, err = newJSONLWriter(path, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w.Write(map[string]int{"a": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := readLines(t, path); len(got) != 2 {
		t.Fatalf("expected 2 lines after append, got %d", len(got))
	}

	w, err = newJSONLWriter(path, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := readLines(t, path); len(got) != 0 {
		t.Fatalf("expected truncated file, got %d lines", len(got))
	}
}

func TestDecodeErrorFromRecord(t *testing.T) {
	record := model.LogRecord{
		ChainID:     31337,
		BlockNumber: 4,
		TxHash:      "0xabc",
		LogIndex:    2,
		Address:     "0x00000000000000000000000000000000000000ba",
		Topics:      []string{"0xdead"},
	}
	got := decodeErrorFromRecord(record, 9, errors.New("boom"))

	want := model.DecodeError{
		ChainID:     31337,
		BlockNumber: 4,
		TxHash:      "0xabc",
		LogIndex:    2,
		Address:     "0x00000000000000000000000000000000000000ba",
		Topic0:      "0xdead",
		Line:        9,
		Error:       "boom",
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func readLines(t *testing.T, path string) []json.RawMessage {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var out []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		out = append(out, json.RawMessage(append([]byte(nil), scanner.Bytes()...)))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}
