package safefile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRejectSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.json")
	if err := os.WriteFile(target, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if err := RejectSymlink(target); err != nil {
		t.Errorf("regular file rejected: %v", err)
	}
	if err := RejectSymlink(link); err == nil {
		t.Error("symlink should be rejected")
	}
	if _, err := ReadFile(link); err == nil {
		t.Error("ReadFile through symlink should fail")
	}
}

func TestReadFileMax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadFileMax(path, 10); err != nil {
		t.Errorf("read at limit failed: %v", err)
	}
	if _, err := ReadFileMax(path, 9); err == nil {
		t.Error("oversized file should be rejected")
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "facts.json")

	if err := WriteAtomic(path, []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("content = %q", data)
	}

	// Overwrite replaces the previous contents entirely.
	if err := WriteAtomic(path, []byte(`{"b":2}`), 0o600); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != `{"b":2}` {
		t.Errorf("content after replace = %q", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}
