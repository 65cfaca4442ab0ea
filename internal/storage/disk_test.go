package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "idscan.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	index := filepath.Join(dir, "index", "store")
	if err := os.MkdirAll(index, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "seg"), []byte("xyz"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := UsageBytes(SQLiteFiles(db)...)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("sqlite files: got %d bytes, want 7 (missing -shm counts as zero)", got)
	}

	got, err = UsageBytes(append(SQLiteFiles(db), filepath.Join(dir, "index"), "")...)
	if err != nil {
		t.Fatal(err)
	}
	if got != 10 {
		t.Errorf("with index: got %d bytes, want 10", got)
	}
}
