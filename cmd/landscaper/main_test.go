package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenJournalCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs", "journal.db")
	db, err := openJournal(path)
	if err != nil {
		t.Fatalf("openJournal: %v", err)
	}
	defer db.Close()
	if _, err := db.Recent(context.Background(), 1); err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("journal directory: %v", err)
	}
}

func TestOpenJournalReportsDirectoryError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := openJournal(filepath.Join(blocker, "journal.db"))
	if err == nil || !strings.Contains(err.Error(), "create journal directory") {
		t.Fatalf("err = %v, want a directory error", err)
	}
}
