package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFile_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "switches.json")

	for _, content := range []string{"first", "second"} {
		if err := writeFile(path, []byte(content)); err != nil {
			t.Fatalf("writeFile(%q): %v", content, err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(got) != content {
			t.Errorf("content = %q, want %q", got, content)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only switches.json", names)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestWriteFile_FailureLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	// a non-empty directory cannot be replaced by a file
	path := filepath.Join(dir, "switches.json")
	if err := os.MkdirAll(filepath.Join(path, "keep"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	if err := writeFile(path, []byte("new")); err == nil {
		t.Fatal("writeFile over a directory succeeded")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "switches.json" || !entries[0].IsDir() {
		t.Errorf("temporary file left behind: %v", entries)
	}
}
