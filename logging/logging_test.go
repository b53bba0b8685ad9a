package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriterRotatesAtCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	w, err := NewRotatingWriter(path, 64)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	line := bytes.Repeat([]byte("x"), 40)
	for i := 0; i < 3; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	backup, err := os.Stat(path + ".1")
	if err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if backup.Size() == 0 {
		t.Fatalf("backup is empty")
	}

	current, err := os.Stat(path)
	if err != nil {
		t.Fatalf("current file missing: %v", err)
	}
	if current.Size() > 64 {
		t.Fatalf("current file not reset: %d bytes", current.Size())
	}
}

func TestRotatingWriterRotatesOversizedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, bytes.Repeat([]byte("y"), 200), 0644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	w, err := NewRotatingWriter(path, 100)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("oversized log not rotated on open: %v", err)
	}
}
