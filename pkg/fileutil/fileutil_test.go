package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if !FileExists(file) {
		t.Error("FileExists() = false for existing file")
	}
	if FileExists(tmpDir) {
		t.Error("FileExists() = true for a directory")
	}
	if FileExists(filepath.Join(tmpDir, "missing")) {
		t.Error("FileExists() = true for missing path")
	}
}

func TestDirExists(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if !DirExists(tmpDir) {
		t.Error("DirExists() = false for existing directory")
	}
	if DirExists(file) {
		t.Error("DirExists() = true for a file")
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b", "c")

	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir() returned error: %v", err)
	}
	if !DirExists(nested) {
		t.Error("EnsureDir() did not create nested directories")
	}

	// Idempotent on an existing directory
	if err := EnsureDir(nested); err != nil {
		t.Errorf("EnsureDir() on existing directory: %v", err)
	}
}

func TestSearchPaths(t *testing.T) {
	tmpDir := t.TempDir()
	existing := filepath.Join(tmpDir, "targets.yaml")
	if err := os.WriteFile(existing, []byte("targets:"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	paths := []string{
		filepath.Join(tmpDir, "missing.yaml"),
		existing,
	}

	got, err := SearchPaths(paths)
	if err != nil {
		t.Fatalf("SearchPaths() returned error: %v", err)
	}
	if got != existing {
		t.Errorf("SearchPaths() = %q, expected %q", got, existing)
	}

	if _, err := SearchPaths([]string{filepath.Join(tmpDir, "nope")}); err == nil {
		t.Error("SearchPaths() expected error when nothing matches")
	}

	if got := SearchPathsOptional([]string{filepath.Join(tmpDir, "nope")}); got != "" {
		t.Errorf("SearchPathsOptional() = %q, expected empty", got)
	}
}

func TestDefaultConfigPaths(t *testing.T) {
	paths := DefaultConfigPaths("targets.yaml")
	if len(paths) != 3 {
		t.Fatalf("DefaultConfigPaths() returned %d paths", len(paths))
	}
	if paths[0] != "targets.yaml" {
		t.Errorf("first search path = %q, expected current directory", paths[0])
	}
}
