package merge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestMergeConcatenatesInOrderAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	p0 := writeTemp(t, dir, "f.part0", "hello ")
	p1 := writeTemp(t, dir, "f.part1", "world")

	out := filepath.Join(dir, "f")
	err := Merge(out, []TempPart{{Path: p0, Size: 6}, {Path: p1, Size: 5}}, 11)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("output = %q, want %q", data, "hello world")
	}

	if _, err := os.Stat(p0); !os.IsNotExist(err) {
		t.Fatal("expected part0 temp file to be removed")
	}
	if _, err := os.Stat(p1); !os.IsNotExist(err) {
		t.Fatal("expected part1 temp file to be removed")
	}
}

func TestMergeRemovesPartialOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist.part0")
	out := filepath.Join(dir, "f")

	err := Merge(out, []TempPart{{Path: missing, Size: 10}}, 10)
	if err == nil {
		t.Fatal("expected error for missing temp file")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("expected output file to be removed on failure")
	}
}

func TestMergeToleratesSizeMismatchWithWarning(t *testing.T) {
	dir := t.TempDir()
	p0 := writeTemp(t, dir, "f.part0", "short")
	out := filepath.Join(dir, "f")

	// Declared size 100 doesn't match actual 5 bytes; merge still succeeds.
	if err := Merge(out, []TempPart{{Path: p0, Size: 100}}, 100); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "short" {
		t.Fatalf("output = %q", data)
	}
}
